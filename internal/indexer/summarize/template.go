package summarize

import (
	"strings"

	"ctxengine/internal/models"
)

const maxTemplateLines = 3

// TemplateSummary produces a deterministic summary from an entity's symbol
// signature (its name and type) and the first few non-blank lines of its
// content, for use when no summarization provider is available.
func TemplateSummary(e *models.Entity) string {
	var b strings.Builder
	b.WriteString(string(e.Type))
	if e.Name != "" {
		b.WriteString(" ")
		b.WriteString(e.Name)
	}
	lines := firstNonBlankLines(e.Content, maxTemplateLines)
	if len(lines) > 0 {
		b.WriteString(": ")
		b.WriteString(strings.Join(lines, " "))
	}
	return b.String()
}

func firstNonBlankLines(content string, n int) []string {
	var out []string
	for _, line := range strings.Split(content, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		out = append(out, line)
		if len(out) >= n {
			break
		}
	}
	return out
}
