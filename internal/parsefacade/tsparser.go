package parsefacade

import (
	"bufio"
	"regexp"
	"strings"

	"ctxengine/internal/symbols"
)

// TSParser implements Parser for .ts/.tsx/.js/.jsx source, grounded on
// internal/symbols/tsextractor.go's line-scanning approach, with an
// additional import-statement scan layered on top.
type TSParser struct{}

var tsExts = []string{".ts", ".tsx", ".js", ".jsx"}

func (TSParser) Supports(path string) bool {
	for _, ext := range tsExts {
		if strings.HasSuffix(path, ext) {
			return true
		}
	}
	return false
}

var reImport = regexp.MustCompile(`^\s*import\s+.*\sfrom\s+['"]([^'"]+)['"]`)

func (TSParser) Parse(path string, source []byte) (ParseResult, error) {
	lang := "typescript"
	if strings.HasSuffix(path, ".js") || strings.HasSuffix(path, ".jsx") {
		lang = "javascript"
	}
	syms, err := symbols.ExtractTSSymbols(string(source))
	if err != nil {
		return ParseResult{FilePath: path, Language: lang, Errors: []string{err.Error()}}, nil
	}
	res := ParseResult{FilePath: path, Language: lang}
	for _, s := range syms {
		res.Symbols = append(res.Symbols, Symbol{
			Type:          symbolKindOf(s.Kind),
			Name:          s.Name,
			QualifiedName: s.Name,
			Signature:     s.Signature,
			StartLine:     s.StartLine,
			EndLine:       s.EndLine,
		})
		res.Exports = append(res.Exports, s.Name)
	}
	sc := bufio.NewScanner(strings.NewReader(string(source)))
	for sc.Scan() {
		if m := reImport.FindStringSubmatch(sc.Text()); len(m) == 2 {
			res.Imports = append(res.Imports, m[1])
		}
	}
	return res, nil
}

func symbolKindOf(tsKind string) SymbolKind {
	switch tsKind {
	case "function":
		return KindFunction
	case "class":
		return KindClass
	case "interface":
		return KindInterface
	case "type":
		return KindType
	case "const":
		return KindConst
	default:
		return KindVar
	}
}
