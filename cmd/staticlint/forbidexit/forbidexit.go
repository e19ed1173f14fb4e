// Package forbidexit запрещает os.Exit в main.main и в любом библиотечном пакете.
package forbidexit

import (
	"go/ast"
	"go/types"
	"strings"

	"golang.org/x/tools/go/analysis"
)

var Analyzer = &analysis.Analyzer{
	Name: "forbidexit",
	Doc:  "запрещает os.Exit в функции main пакета main и в библиотечных пакетах",
	Run:  run,
}

func run(pass *analysis.Pass) (interface{}, error) {
	isMain := pass.Pkg.Name() == "main"

	for _, f := range pass.Files {
		filename := pass.Fset.File(f.Pos()).Name()
		// сгенерированный testmain и тесты не проверяем
		if strings.Contains(filename, "go-build") || strings.HasSuffix(filename, "_test.go") {
			continue
		}

		if !isMain {
			inspectExit(pass, f, "os.Exit в библиотечном пакете; верни ошибку вызывающему")
			continue
		}

		for _, decl := range f.Decls {
			fn, ok := decl.(*ast.FuncDecl)
			if !ok || fn.Recv != nil || fn.Name.Name != "main" || fn.Body == nil {
				continue
			}
			inspectExit(pass, fn.Body, "запрещён прямой вызов os.Exit в main.main; верни ошибку или используй логическое завершение")
		}
	}

	return nil, nil
}

func inspectExit(pass *analysis.Pass, root ast.Node, msg string) {
	ast.Inspect(root, func(n ast.Node) bool {
		call, ok := n.(*ast.CallExpr)
		if !ok {
			return true
		}
		sel, ok := call.Fun.(*ast.SelectorExpr)
		if !ok {
			return true
		}
		if isOsExit(pass.TypesInfo.Uses[sel.Sel]) {
			pass.Reportf(call.Pos(), "%s", msg)
		}
		return true
	})
}

func isOsExit(obj types.Object) bool {
	fn, ok := obj.(*types.Func)
	return ok && fn.Pkg() != nil && fn.Pkg().Path() == "os" && fn.Name() == "Exit"
}
