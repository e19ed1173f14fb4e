// Command staticlint гоняет анализаторы, которые держат инварианты агента аналитики.
//
//	go build -o staticlint ./cmd/staticlint
//	go vet -vettool=./staticlint ./...
//
// Проектные анализаторы:
//
//   - agentclock: код internal/agent читает время только через внедрённые часы
//     (время отчёта и длительность видимости проверяются в тестах).
//   - forbidexit: os.Exit запрещён в main.main и в библиотечных пакетах,
//     агент и сервер завершаются через возврат ошибки из run.
//
// Сторонние: nilerr (return nil при err != nil в обработчиках отчётов),
// sqlrows (закрытие *sql.Rows в хранилище флагов Postgres).
//
// Из x/tools берутся проходы про контекст, ошибки и JSON теги,
// из staticcheck все SA, часть S1 и ST1000.
package main

import (
	"strings"

	"github.com/IvanChernomyrdin/go-privacy-analytics/cmd/staticlint/agentclock"
	"github.com/IvanChernomyrdin/go-privacy-analytics/cmd/staticlint/forbidexit"
	"github.com/gostaticanalysis/nilerr"
	"github.com/gostaticanalysis/sqlrows/passes/sqlrows"
	"golang.org/x/tools/go/analysis"
	"golang.org/x/tools/go/analysis/multichecker"
	"golang.org/x/tools/go/analysis/passes/atomic"
	"golang.org/x/tools/go/analysis/passes/copylock"
	"golang.org/x/tools/go/analysis/passes/errorsas"
	"golang.org/x/tools/go/analysis/passes/httpresponse"
	"golang.org/x/tools/go/analysis/passes/lostcancel"
	"golang.org/x/tools/go/analysis/passes/nilfunc"
	"golang.org/x/tools/go/analysis/passes/printf"
	"golang.org/x/tools/go/analysis/passes/shadow"
	"golang.org/x/tools/go/analysis/passes/structtag"
	"golang.org/x/tools/go/analysis/passes/unmarshal"
	"golang.org/x/tools/go/analysis/passes/unusedresult"
	"honnef.co/go/tools/analysis/lint"
	"honnef.co/go/tools/simple"
	"honnef.co/go/tools/staticcheck"
	"honnef.co/go/tools/stylecheck"
)

// simpleChecks упрощения, которые встречаются в обработчиках сигналов и кодеках
var simpleChecks = map[string]bool{
	"S1002": true, // сравнение bool с константой
	"S1005": true, // лишний blank в range
	"S1008": true, // if x { return true }; return false
	"S1021": true, // объявление и присваивание функции раздельно
	"S1030": true, // string(buf.Bytes())
}

func analyzers() []*analysis.Analyzer {
	list := []*analysis.Analyzer{
		agentclock.Analyzer,
		forbidexit.Analyzer,
		nilerr.Analyzer,
		sqlrows.Analyzer,

		// контекст и конкурентность: отправки отчётов и политики в горутинах
		atomic.Analyzer,
		copylock.Analyzer,
		lostcancel.Analyzer,
		// ошибки и ответы resty/http
		errorsas.Analyzer,
		httpresponse.Analyzer,
		nilfunc.Analyzer,
		unusedresult.Analyzer,
		// конфиги домена и отчёты в JSON
		structtag.Analyzer,
		unmarshal.Analyzer,
		printf.Analyzer,
		shadow.Analyzer,
	}

	list = append(list, pick(staticcheck.Analyzers, func(name string) bool {
		return strings.HasPrefix(name, "SA")
	})...)
	list = append(list, pick(simple.Analyzers, func(name string) bool {
		return simpleChecks[name]
	})...)
	list = append(list, pick(stylecheck.Analyzers, func(name string) bool {
		return name == "ST1000"
	})...)
	return list
}

func pick(from []*lint.Analyzer, keep func(name string) bool) []*analysis.Analyzer {
	var out []*analysis.Analyzer
	for _, a := range from {
		if keep(a.Analyzer.Name) {
			out = append(out, a.Analyzer)
		}
	}
	return out
}

func main() {
	multichecker.Main(analyzers()...)
}
