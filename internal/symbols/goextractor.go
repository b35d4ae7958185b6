package symbols

import (
	"fmt"
	"go/ast"
	"go/parser"
	"go/token"
	"strings"
)

// GoSymbol is one top-level declaration extracted from a Go source file,
// exported or not: internal/parsefacade needs the unexported ones too for a
// complete entity picture.
type GoSymbol struct {
	Name      string
	Kind      string // func|method|type|interface|struct|var|const
	Exported  bool
	StartLine int
	EndLine   int
	Signature string
	Doc       string
}

// ExtractGoSymbols parses Go source and returns every top-level declaration
// along with the file's import paths.
func ExtractGoSymbols(src string) ([]GoSymbol, []string, error) {
	fset := token.NewFileSet()
	f, err := parser.ParseFile(fset, "<memory>", src, parser.ParseComments)
	if err != nil {
		return nil, nil, err
	}
	var imports []string
	for _, imp := range f.Imports {
		imports = append(imports, strings.Trim(imp.Path.Value, `"`))
	}
	var out []GoSymbol
	add := func(name, kind string, n ast.Node, sig, doc string) {
		if name == "" {
			return
		}
		out = append(out, GoSymbol{
			Name:      name,
			Kind:      kind,
			Exported:  ast.IsExported(name),
			StartLine: fset.Position(n.Pos()).Line,
			EndLine:   fset.Position(n.End()).Line,
			Signature: sig,
			Doc:       doc,
		})
	}
	ast.Inspect(f, func(n ast.Node) bool {
		switch x := n.(type) {
		case *ast.GenDecl: // const|var|type
			k := ""
			switch x.Tok {
			case token.CONST:
				k = "const"
			case token.VAR:
				k = "var"
			case token.TYPE:
				k = "type"
			}
			if k == "" {
				return true
			}
			doc := strings.TrimSpace(x.Doc.Text())
			for _, spec := range x.Specs {
				switch s := spec.(type) {
				case *ast.TypeSpec:
					kind := k
					switch s.Type.(type) {
					case *ast.InterfaceType:
						kind = "interface"
					case *ast.StructType:
						kind = "struct"
					}
					add(s.Name.Name, kind, s, s.Name.Name, doc)
				case *ast.ValueSpec:
					for _, nm := range s.Names {
						add(nm.Name, k, s, nm.Name, doc)
					}
				}
			}
			return false
		case *ast.FuncDecl:
			kind := "func"
			name := x.Name.Name
			sig := name + signatureOf(x.Type)
			if x.Recv != nil && len(x.Recv.List) > 0 {
				kind = "method"
				if recv := receiverType(x.Recv.List[0].Type); recv != "" {
					sig = recv + "." + sig
				}
			}
			add(name, kind, x, sig, strings.TrimSpace(x.Doc.Text()))
			return false
		}
		return true
	})
	sortGoSymbols(out)
	return out, imports, nil
}

func receiverType(expr ast.Expr) string {
	switch rt := expr.(type) {
	case *ast.StarExpr:
		if id, ok := rt.X.(*ast.Ident); ok {
			return id.Name
		}
	case *ast.Ident:
		return rt.Name
	}
	return ""
}

func signatureOf(ft *ast.FuncType) string {
	params := ft.Params.NumFields()
	results := 0
	if ft.Results != nil {
		results = ft.Results.NumFields()
	}
	return fmt.Sprintf("(%d params, %d results)", params, results)
}

// sortGoSymbols orders by line then name; insertion sort since typical
// per-file symbol counts are small.
func sortGoSymbols(out []GoSymbol) {
	for i := 1; i < len(out); i++ {
		j := i
		for j > 0 {
			if out[j-1].StartLine > out[j].StartLine || (out[j-1].StartLine == out[j].StartLine && strings.Compare(out[j-1].Name, out[j].Name) > 0) {
				out[j-1], out[j] = out[j], out[j-1]
				j--
			} else {
				break
			}
		}
	}
}
