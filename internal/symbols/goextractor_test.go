package symbols

import "testing"

func TestExtractGoSymbols(t *testing.T) {
	src := `package p

import "fmt"

type Foo struct{X int}
type Greeter interface{Greet() string}
func (f *Foo) Bar() {}
func Util(){}
var ExportedVar = 1
const ExportedConst = 2
func unexported(){ fmt.Println("x") }
`
	syms, imports, err := ExtractGoSymbols(src)
	if err != nil {
		t.Fatalf("extract: %v", err)
	}
	if len(imports) != 1 || imports[0] != "fmt" {
		t.Fatalf("imports = %v, want [fmt]", imports)
	}
	byName := make(map[string]GoSymbol)
	for _, s := range syms {
		byName[s.Name] = s
	}
	wantKind := map[string]string{
		"Foo": "struct", "Greeter": "interface", "Bar": "method",
		"Util": "func", "ExportedVar": "var", "ExportedConst": "const",
		"unexported": "func",
	}
	for name, kind := range wantKind {
		s, ok := byName[name]
		if !ok {
			t.Fatalf("missing symbol %s", name)
		}
		if s.Kind != kind {
			t.Fatalf("%s: kind = %s, want %s", name, s.Kind, kind)
		}
	}
	if !byName["Util"].Exported {
		t.Fatalf("Util should be Exported")
	}
	if byName["unexported"].Exported {
		t.Fatalf("unexported should not be Exported")
	}
	if byName["Bar"].Signature != "Foo.Bar(0 params, 0 results)" {
		t.Fatalf("Bar signature = %q", byName["Bar"].Signature)
	}
}
