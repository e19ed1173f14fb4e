// Package agentclock запрещает прямое чтение часов в коде агента.
// Время отчёта и длительность видимости считаются от Deps.Clock,
// иначе их не проверить в тестах.
package agentclock

import (
	"go/ast"
	"go/types"
	"strings"

	"golang.org/x/tools/go/analysis"
)

var Analyzer = &analysis.Analyzer{
	Name: "agentclock",
	Doc:  "запрещает вызовы time.Now, time.Since и таймеров в пакетах агента; время берётся из внедрённых часов",
	Run:  run,
}

// packages суффиксы путей проверяемых пакетов, через запятую
var packages = "internal/agent"

// ссылка на time.Now как значение разрешена, это умолчание для часов
var clockCalls = map[string]bool{
	"Now":       true,
	"Since":     true,
	"Until":     true,
	"Sleep":     true,
	"After":     true,
	"Tick":      true,
	"AfterFunc": true,
	"NewTimer":  true,
	"NewTicker": true,
}

func init() {
	Analyzer.Flags.StringVar(&packages, "packages", packages, "суффиксы путей пакетов агента через запятую")
}

func run(pass *analysis.Pass) (interface{}, error) {
	if !inScope(pass.Pkg.Path()) {
		return nil, nil
	}

	for _, f := range pass.Files {
		if strings.HasSuffix(pass.Fset.File(f.Pos()).Name(), "_test.go") {
			continue
		}
		ast.Inspect(f, func(n ast.Node) bool {
			call, ok := n.(*ast.CallExpr)
			if !ok {
				return true
			}
			if name, ok := timeFunc(pass, call.Fun); ok && clockCalls[name] {
				pass.Reportf(call.Pos(), "time.%s в коде агента; используй внедрённые часы", name)
			}
			return true
		})
	}
	return nil, nil
}

func inScope(path string) bool {
	for _, p := range strings.Split(packages, ",") {
		p = strings.TrimSpace(p)
		if p != "" && (path == p || strings.HasSuffix(path, "/"+p)) {
			return true
		}
	}
	return false
}

func timeFunc(pass *analysis.Pass, fun ast.Expr) (string, bool) {
	var id *ast.Ident
	switch e := fun.(type) {
	case *ast.SelectorExpr:
		id = e.Sel
	case *ast.Ident:
		id = e
	default:
		return "", false
	}
	fn, ok := pass.TypesInfo.Uses[id].(*types.Func)
	if !ok || fn.Pkg() == nil || fn.Pkg().Path() != "time" {
		return "", false
	}
	// методы time.Time и time.Timer не трогаем
	if sig, ok := fn.Type().(*types.Signature); ok && sig.Recv() != nil {
		return "", false
	}
	return fn.Name(), true
}
