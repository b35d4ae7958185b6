package parsefacade

import (
	"strings"

	"ctxengine/internal/symbols"
)

// GoParser implements Parser for .go source by wiring
// internal/symbols.ExtractGoSymbols (AST-based, exported and unexported
// declarations plus imports) and reshaping its output into ParseResult.
type GoParser struct{}

func (GoParser) Supports(path string) bool { return strings.HasSuffix(path, ".go") }

func (GoParser) Parse(path string, source []byte) (ParseResult, error) {
	syms, imports, err := symbols.ExtractGoSymbols(string(source))
	if err != nil {
		return ParseResult{FilePath: path, Language: "go", Errors: []string{err.Error()}}, nil
	}
	res := ParseResult{FilePath: path, Language: "go", Imports: imports}
	for _, s := range syms {
		res.Symbols = append(res.Symbols, Symbol{
			Type:          goSymbolKind(s.Kind),
			Name:          s.Name,
			QualifiedName: s.Name,
			Signature:     s.Signature,
			Docstring:     s.Doc,
			StartLine:     s.StartLine,
			EndLine:       s.EndLine,
		})
		if s.Exported {
			res.Exports = append(res.Exports, s.Name)
		}
	}
	return res, nil
}

func goSymbolKind(k string) SymbolKind {
	switch k {
	case "func":
		return KindFunction
	case "method":
		return KindMethod
	case "interface":
		return KindInterface
	case "struct":
		return KindClass
	case "type":
		return KindType
	case "const":
		return KindConst
	default:
		return KindVar
	}
}
