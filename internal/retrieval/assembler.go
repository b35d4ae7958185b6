package retrieval

import (
	"fmt"
	"strings"
)

// RenderFormat selects how assembled context is serialized.
type RenderFormat string

const (
	FormatMarkdown RenderFormat = "markdown"
	FormatXML      RenderFormat = "xml"
	FormatText     RenderFormat = "text"
)

// AssembleOptions parameterizes Assemble.
type AssembleOptions struct {
	TokenBudget int // <=0 defaults to 4000
	Format      RenderFormat
	// Estimator overrides the default chars/4 token estimate.
	Estimator func(string) int
}

func (o *AssembleOptions) applyDefaults() {
	if o.TokenBudget <= 0 {
		o.TokenBudget = 4000
	}
	if o.Format == "" {
		o.Format = FormatMarkdown
	}
	if o.Estimator == nil {
		o.Estimator = estimateTokens
	}
}

// AssembledContext is the packed, rendered context ready to hand to an LLM.
type AssembledContext struct {
	Text       string
	Sources    []string // entity IDs included, in inclusion order
	Confidence float64  // mean score of included entities
	TokensUsed int
	Truncated bool // true if at least one candidate was dropped for budget
}

// estimateTokens approximates token count as one token per four characters,
// the same heuristic the corpus uses elsewhere for rough budgeting.
func estimateTokens(s string) int {
	n := len(s) / 4
	if n == 0 && s != "" {
		n = 1
	}
	return n
}

// Assemble greedily packs results, highest score first, into renderable
// context until adding the next entity would exceed the token budget.
func Assemble(results []EntityResult, opt AssembleOptions) AssembledContext {
	opt.applyDefaults()

	var included []EntityResult
	used := 0
	truncated := false
	for _, r := range results {
		block := renderBlock(r, opt.Format)
		cost := opt.Estimator(block)
		if used+cost > opt.TokenBudget {
			truncated = true
			break
		}
		used += cost
		included = append(included, r)
	}

	text := render(included, opt.Format)
	sources := make([]string, 0, len(included))
	sum := 0.0
	for _, r := range included {
		sources = append(sources, r.Entity.ID)
		sum += r.Score
	}
	confidence := 0.0
	if len(included) > 0 {
		confidence = sum / float64(len(included))
	}

	return AssembledContext{
		Text:       text,
		Sources:    sources,
		Confidence: confidence,
		TokensUsed: opt.Estimator(text),
		Truncated:  truncated,
	}
}

func render(results []EntityResult, format RenderFormat) string {
	var b strings.Builder
	switch format {
	case FormatXML:
		b.WriteString("<context>\n")
		for _, r := range results {
			b.WriteString(renderBlock(r, format))
		}
		b.WriteString("</context>")
	case FormatText:
		for i, r := range results {
			if i > 0 {
				b.WriteString("\n\n")
			}
			b.WriteString(renderBlock(r, format))
		}
	default:
		for i, r := range results {
			if i > 0 {
				b.WriteString("\n\n")
			}
			b.WriteString(renderBlock(r, format))
		}
	}
	return b.String()
}

func renderBlock(r EntityResult, format RenderFormat) string {
	e := r.Entity
	body := e.Summary
	if body == "" {
		body = e.Content
	}
	switch format {
	case FormatXML:
		return fmt.Sprintf("  <entity id=%q type=%q name=%q score=%.3f>\n%s\n  </entity>\n",
			e.ID, e.Type, e.Name, r.Score, indent(body, "    "))
	case FormatText:
		return fmt.Sprintf("%s (%s, score %.3f)\n%s", e.Name, e.Type, r.Score, body)
	default:
		header := fmt.Sprintf("### %s", e.Name)
		if e.FilePath != "" {
			header += fmt.Sprintf(" (%s)", e.FilePath)
		}
		return fmt.Sprintf("%s\n%s", header, body)
	}
}

func indent(s, prefix string) string {
	lines := strings.Split(s, "\n")
	for i, l := range lines {
		lines[i] = prefix + l
	}
	return strings.Join(lines, "\n")
}
