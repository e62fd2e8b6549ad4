package check

import (
	"go/ast"
	"go/parser"
	"go/token"
	"os"
	"runtime"
	"strings"
	"sync"
)

type sourceFile struct {
	fset *token.FileSet
	file *ast.File
	src  []byte
}

var (
	sourcesMu sync.Mutex
	sources   = make(map[string]*sourceFile)
)

// site describes the call to a check primitive: where it is and the
// literal text of each argument.
type site struct {
	file string
	line int
	args []string
}

func (s site) arg(i int) string {
	if i < len(s.args) {
		return s.args[i]
	}

	return ""
}

// callSite resolves the caller of the check primitive named fn. skip
// counts frames above callSite's caller, as in runtime.Caller.
func callSite(fn string, skip int) site {
	_, file, line, ok := runtime.Caller(skip + 2)
	if !ok {
		return site{}
	}

	s := site{file: file, line: line}

	sf := loadSource(file)
	if sf == nil {
		return s
	}

	call := findCall(sf, fn, line)
	if call == nil {
		return s
	}

	for _, a := range call.Args {
		s.args = append(s.args, argText(sf, a))
	}

	return s
}

func loadSource(path string) *sourceFile {
	sourcesMu.Lock()
	defer sourcesMu.Unlock()

	if sf, ok := sources[path]; ok {
		return sf
	}

	var sf *sourceFile

	src, err := os.ReadFile(path)
	if err == nil {
		fset := token.NewFileSet()
		file, perr := parser.ParseFile(fset, path, src, parser.SkipObjectResolution)
		if perr == nil {
			sf = &sourceFile{fset: fset, file: file, src: src}
		}
	}

	// Failed loads are cached too so a missing file is only tried once.
	sources[path] = sf

	return sf
}

// findCall returns the innermost call to fn spanning line. It returns nil
// when the line holds more than one such call, since the line alone cannot
// tell them apart.
func findCall(sf *sourceFile, fn string, line int) *ast.CallExpr {
	var candidates []*ast.CallExpr

	ast.Inspect(sf.file, func(n ast.Node) bool {
		if n == nil {
			return false
		}

		start := sf.fset.Position(n.Pos()).Line
		end := sf.fset.Position(n.End()).Line
		if line < start || line > end {
			return false
		}

		if call, ok := n.(*ast.CallExpr); ok && calleeName(call.Fun) == fn {
			candidates = append(candidates, call)
		}

		return true
	})

	var found *ast.CallExpr

	for _, c := range candidates {
		if enclosesOther(c, candidates) {
			continue
		}

		if found != nil {
			return nil
		}

		found = c
	}

	return found
}

func enclosesOther(c *ast.CallExpr, calls []*ast.CallExpr) bool {
	for _, o := range calls {
		if o != c && c.Pos() <= o.Pos() && o.End() <= c.End() {
			return true
		}
	}

	return false
}

func calleeName(e ast.Expr) string {
	switch f := e.(type) {
	case *ast.Ident:
		return f.Name
	case *ast.SelectorExpr:
		return f.Sel.Name
	case *ast.IndexExpr:
		return calleeName(f.X)
	case *ast.IndexListExpr:
		return calleeName(f.X)
	default:
		return ""
	}
}

// argText returns the source of e. For a function literal it returns the
// statements of its body, which is what the caller wrote as the checked
// code.
func argText(sf *sourceFile, e ast.Expr) string {
	if lit, ok := e.(*ast.FuncLit); ok {
		stmts := lit.Body.List
		if len(stmts) == 0 {
			return ""
		}

		parts := make([]string, 0, len(stmts))
		for _, st := range stmts {
			parts = append(parts, collapse(sf.text(st.Pos(), st.End())))
		}

		return strings.Join(parts, "; ")
	}

	return collapse(sf.text(e.Pos(), e.End()))
}

func (sf *sourceFile) text(from, to token.Pos) string {
	tf := sf.fset.File(from)
	if tf == nil {
		return ""
	}

	start, end := tf.Offset(from), tf.Offset(to)
	if start < 0 || end > len(sf.src) || start > end {
		return ""
	}

	return string(sf.src[start:end])
}

// collapse joins multi-line source onto one line.
func collapse(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
