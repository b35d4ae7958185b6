package parsefacade

import "testing"

func TestGoParserExtractsFuncAndImports(t *testing.T) {
	src := `package x

import "fmt"

func Hello() {
	fmt.Println("hi")
}
`
	f := New()
	res, err := f.Parse("a.go", []byte(src))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if res.Language != "go" {
		t.Fatalf("expected go, got %s", res.Language)
	}
	if len(res.Symbols) != 1 || res.Symbols[0].Name != "Hello" {
		t.Fatalf("expected one Hello symbol, got %+v", res.Symbols)
	}
	if len(res.Imports) != 1 || res.Imports[0] != "fmt" {
		t.Fatalf("expected one fmt import, got %v", res.Imports)
	}
	if len(res.Exports) != 1 || res.Exports[0] != "Hello" {
		t.Fatalf("expected Hello export, got %v", res.Exports)
	}
}

func TestTSParserExtractsExportedFunction(t *testing.T) {
	src := "import { x } from './x'\nexport function hello(){return 1}\n"
	f := New()
	res, err := f.Parse("a.ts", []byte(src))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if res.Language != "typescript" {
		t.Fatalf("expected typescript, got %s", res.Language)
	}
	if len(res.Symbols) != 1 || res.Symbols[0].Name != "hello" {
		t.Fatalf("expected one hello symbol, got %+v", res.Symbols)
	}
	if len(res.Imports) != 1 || res.Imports[0] != "./x" {
		t.Fatalf("expected one import, got %v", res.Imports)
	}
}

func TestUnsupportedFileYieldsPlaintextNoError(t *testing.T) {
	f := New()
	res, err := f.Parse("README.md", []byte("hello"))
	if err != nil {
		t.Fatalf("Parse should not error on unsupported file: %v", err)
	}
	if res.Language != "plaintext" || len(res.Symbols) != 0 {
		t.Fatalf("expected plaintext no-symbol result, got %+v", res)
	}
}

func TestGoParseErrorIsCollectedNotReturned(t *testing.T) {
	f := New()
	res, err := f.Parse("bad.go", []byte("package x\nfunc ( {"))
	if err != nil {
		t.Fatalf("parse errors must be collected, not returned: %v", err)
	}
	if len(res.Errors) == 0 {
		t.Fatalf("expected a collected parse error")
	}
}
