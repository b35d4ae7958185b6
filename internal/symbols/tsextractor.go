package symbols

import (
	"bufio"
	"regexp"
	"strings"
)

// TSSymbol is one exported top-level declaration found in a TS/JS file.
type TSSymbol struct {
	Name      string
	Kind      string // function|class|interface|type|const|var|let
	StartLine int
	EndLine   int
	Signature string
}

type tsPattern struct {
	re   *regexp.Regexp
	kind string
}

// tsPatterns is tried in order per line; the first match wins, so more
// specific forms (arrow-function consts, export default) must precede the
// general declaration they would otherwise also match.
var tsPatterns = []tsPattern{
	{regexp.MustCompile(`^\s*export\s+default\s+function\s+([A-Za-z_][A-Za-z0-9_]*)?\s*\(`), "function"},
	{regexp.MustCompile(`^\s*export\s+default\s+class\s+([A-Za-z_][A-Za-z0-9_]*)?\b`), "class"},
	{regexp.MustCompile(`^\s*export\s+(?:async\s+)?function\s+([A-Za-z_][A-Za-z0-9_]*)\s*\(`), "function"},
	{regexp.MustCompile(`^\s*export\s+class\s+([A-Za-z_][A-Za-z0-9_]*)\b`), "class"},
	{regexp.MustCompile(`^\s*export\s+interface\s+([A-Za-z_][A-Za-z0-9_]*)\b`), "interface"},
	{regexp.MustCompile(`^\s*export\s+type\s+([A-Za-z_][A-Za-z0-9_]*)\b`), "type"},
	{regexp.MustCompile(`^\s*export\s+const\s+([A-Za-z_][A-Za-z0-9_]*)\s*=\s*(?:async\s*)?\([^)]*\)\s*(?::[^=]+)?=>`), "function"},
	{regexp.MustCompile(`^\s*export\s+const\s+([A-Za-z_][A-Za-z0-9_]*)\b`), "const"},
	{regexp.MustCompile(`^\s*export\s+var\s+([A-Za-z_][A-Za-z0-9_]*)\b`), "var"},
	{regexp.MustCompile(`^\s*export\s+let\s+([A-Za-z_][A-Za-z0-9_]*)\b`), "let"},
}

// ExtractTSSymbols scans TypeScript/TSX/JS/JSX source text line-by-line and
// extracts exported top-level symbols with rough line numbers. Arrow-function
// consts (export const f = () => ...) and export-default declarations are
// reported alongside the plain function/class/interface/type/const forms.
func ExtractTSSymbols(src string) ([]TSSymbol, error) {
	var out []TSSymbol
	rd := bufio.NewScanner(strings.NewReader(src))
	line := 0
	for rd.Scan() {
		line++
		s := rd.Text()
		if strings.HasPrefix(strings.TrimSpace(s), "//") {
			continue
		}
		for _, p := range tsPatterns {
			m := p.re.FindStringSubmatch(s)
			if m == nil {
				continue
			}
			name := "default"
			if len(m) == 2 && m[1] != "" {
				name = m[1]
			}
			sig := name
			if p.kind == "function" {
				sig = name + "()"
			}
			out = append(out, TSSymbol{Name: name, Kind: p.kind, StartLine: line, EndLine: line, Signature: sig})
			break
		}
	}
	return out, nil
}
