package summarize

import (
	"context"
	"fmt"
	"strings"

	"ctxengine/internal/llm"
)

// ChatProvider adapts an llm.ChatProvider (a chat-completion backend) into a
// summarize.Provider by sending a structured summarization prompt and
// collecting the non-streamed response.
type ChatProvider struct {
	Chat  llm.ChatProvider
	Model string
}

func (c ChatProvider) IsAvailable(ctx context.Context) bool {
	return c.Chat != nil && c.Model != ""
}

func (c ChatProvider) Summarize(ctx context.Context, content string, opt SummarizeOptions) (string, error) {
	messages := []llm.Message{
		{Role: llm.RoleSystem, Content: "You write concise, factual one- to two-sentence summaries of source code and documentation entities. Respond with the summary only."},
		{Role: llm.RoleUser, Content: buildSummarizePrompt(content, opt)},
	}
	stream, err := c.Chat.Chat(ctx, c.Model, messages, false, opt.Temperature)
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
	out := strings.TrimSpace(sb.String())
	if out == "" {
		return "", fmt.Errorf("summarize: empty response from provider")
	}
	return out, nil
}

func buildSummarizePrompt(content string, opt SummarizeOptions) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Entity type: %s\nEntity name: %s\n\n", opt.EntityType, opt.Name)
	b.WriteString("Content:\n")
	b.WriteString(content)
	return b.String()
}
