package facade

import (
	"context"
	"strings"

	"ctxengine/internal/llm"
)

const defaultExtractionModel = "gpt-4o-mini"

// decisionProviderAdapter adapts an llm.ChatProvider into
// convstore.DecisionProvider by sending the extraction prompt as a single
// user message and collecting the non-streamed reply.
type decisionProviderAdapter struct {
	chat llm.ChatProvider
}

func (a decisionProviderAdapter) IsAvailable(ctx context.Context) bool {
	return a.chat != nil
}

func (a decisionProviderAdapter) Complete(ctx context.Context, prompt string) (string, error) {
	stream, err := a.chat.Chat(ctx, defaultExtractionModel, []llm.Message{{Role: llm.RoleUser, Content: prompt}}, false, 0)
	if err != nil {
		return "", err
	}
	defer stream.Close()
	var sb strings.Builder
	for {
		delta, done, err := stream.Recv()
		if err != nil {
			return "", err
		}
		sb.WriteString(delta)
		if done {
			break
		}
	}
	return sb.String(), nil
}
