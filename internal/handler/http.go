// Package httpserver http api dev-бэкенда: раздача конфигурации доменов и приём отчётов.
package httpserver

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"text/template"

	"github.com/IvanChernomyrdin/go-privacy-analytics/internal/middleware"
	"github.com/IvanChernomyrdin/go-privacy-analytics/internal/service"
	"github.com/go-chi/chi/v5"
)

type Handler struct {
	configs *service.ConfigService
	reports *service.ReportsService
}

func NewHandler(configs *service.ConfigService, reports *service.ReportsService) *Handler {
	return &Handler{configs: configs, reports: reports}
}

// TaskStats ответ GET /tasks/{taskId}
type TaskStats struct {
	TaskID  string `json:"task_id"`
	Reports int    `json:"reports"`
}

// GetConfig отдаёт документ конфигурации домена как есть
func (h *Handler) GetConfig(w http.ResponseWriter, r *http.Request) {
	domain := chi.URLParam(r, "domain")

	doc, err := h.configs.Get(domain)
	if errors.Is(err, service.ErrUnknownDomain) {
		http.NotFound(w, r)
		return
	}
	if err != nil {
		http.Error(w, "config error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(doc)
}

// PutReport принимает один отчёт задачи
func (h *Handler) PutReport(w http.ResponseWriter, r *http.Request) {
	taskID := chi.URLParam(r, "taskId")
	if taskID == "" {
		http.NotFound(w, r)
		return
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, middleware.MaxBodySize))
	if err != nil {
		http.Error(w, "cannot read body", http.StatusBadRequest)
		return
	}

	_, err = h.reports.Accept(taskID, body)
	switch {
	case err == nil:
		w.WriteHeader(http.StatusCreated)
	case errors.Is(err, service.ErrDuplicateReport):
		http.Error(w, err.Error(), http.StatusConflict)
	case errors.Is(err, service.ErrBadReport), errors.Is(err, service.ErrSealedWithoutKey):
		http.Error(w, err.Error(), http.StatusBadRequest)
	default:
		http.Error(w, "report error", http.StatusInternalServerError)
	}
}

func (h *Handler) GetTask(w http.ResponseWriter, r *http.Request) {
	taskID := chi.URLParam(r, "taskId")

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(TaskStats{TaskID: taskID, Reports: h.reports.Count(taskID)})
}

var indexTpl = template.Must(template.New("idx").Parse(`<!doctype html>
<html><head><meta charset="utf-8"><title>analytics</title></head>
<body>
<h1>Domains</h1>
<ul>
{{- range .Domains }}
  <li><a href="/domains/{{.}}/config">{{.}}</a></li>
{{- end }}
</ul>
<h1>Reports</h1>
<ul>
{{- range $k, $v := .Counts }}
  <li><b>{{$k}}</b>: {{$v}}</li>
{{- end }}
</ul>
</body></html>`))

func (h *Handler) GetAll(w http.ResponseWriter, r *http.Request) {
	data := struct {
		Domains []string
		Counts  map[string]int
	}{
		Domains: h.configs.Domains(),
		Counts:  h.reports.Counts(),
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_ = indexTpl.Execute(w, data)
}
