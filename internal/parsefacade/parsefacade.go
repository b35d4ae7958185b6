// Package parsefacade is the parser facade (C4): a language-agnostic
// Parser capability producing a normalized ParseResult, so the indexer
// never knows which grammar produced a symbol. The default implementation
// wraps the internal/symbols Go/TypeScript extractors (goextractor.go,
// tsextractor.go) and adds import/export extraction on top of what those
// extractors surface on their own.
package parsefacade

// SymbolKind is a tagged-variant header used in place of symbol-kind
// inheritance, so callers can switch on one field regardless of language.
type SymbolKind string

const (
	KindFunction  SymbolKind = "function"
	KindMethod    SymbolKind = "method"
	KindClass     SymbolKind = "class"
	KindInterface SymbolKind = "interface"
	KindType      SymbolKind = "type"
	KindConst     SymbolKind = "const"
	KindVar       SymbolKind = "var"
)

// Symbol is one parsed code symbol.
type Symbol struct {
	Type          SymbolKind
	Name          string
	QualifiedName string
	Signature     string
	Parameters    []string
	ReturnType    string
	Docstring     string
	StartLine     int
	EndLine       int
	Children      []Symbol
}

// ParseResult is the normalized shape every Parser implementation returns.
type ParseResult struct {
	FilePath string
	Language string
	Symbols  []Symbol
	Imports  []string
	Exports  []string
	Errors   []string
}

// Parser is the capability the indexer depends on; the core never imports
// a concrete grammar package directly.
type Parser interface {
	Parse(path string, source []byte) (ParseResult, error)
	// Supports reports whether this Parser can handle path's extension.
	Supports(path string) bool
}

// Facade dispatches to the first Parser that supports a given path.
type Facade struct {
	parsers []Parser
}

// New returns a Facade with the default Go and TypeScript/JavaScript
// parsers registered, in that order.
func New() *Facade {
	return &Facade{parsers: []Parser{GoParser{}, TSParser{}}}
}

// Register appends an additional Parser, consulted after the built-ins.
func (f *Facade) Register(p Parser) {
	f.parsers = append(f.parsers, p)
}

// Parse finds the first registered Parser that Supports path and delegates
// to it. A file with no matching parser yields a ParseResult with language
// "plaintext" and no symbols, never an error, so the streaming indexer can
// still ingest it as a file entity, overview-only rather than a hard
// failure.
func (f *Facade) Parse(path string, source []byte) (ParseResult, error) {
	for _, p := range f.parsers {
		if p.Supports(path) {
			return p.Parse(path, source)
		}
	}
	return ParseResult{FilePath: path, Language: "plaintext"}, nil
}
