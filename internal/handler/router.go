package httpserver

import (
	"net/http"
	"strings"

	"github.com/IvanChernomyrdin/go-privacy-analytics/internal/middleware"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

type RouterOptions struct {
	HashKey string
	Audit   []middleware.AuditReceiver
	Logger  middleware.RequestLogger
	Log     *zap.SugaredLogger
}

func NewRouter(h *Handler, opts RouterOptions) http.Handler {
	r := chi.NewRouter()
	hash := middleware.NewHashMiddleware(opts.HashKey)

	// Убираем "/" в конце url
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path != "/" && strings.HasSuffix(r.URL.Path, "/") {
				r.URL.Path = strings.TrimSuffix(r.URL.Path, "/")
			}
			next.ServeHTTP(w, r)
		})
	})

	// подпись считается по несжатому телу
	r.Use(middleware.GzipDecompression)
	r.Use(hash.CheckHash)
	r.Use(middleware.LoggerMiddleware(opts.Logger))
	r.Use(middleware.GzipCompression)
	r.Use(hash.AddHash)

	r.Get("/", h.GetAll)
	r.Get("/domains/{domain}/config", h.GetConfig)
	r.Get("/tasks/{taskId}", h.GetTask)
	r.With(middleware.AuditMiddleware(opts.Audit, opts.Log)).Put("/tasks/{taskId}/reports", h.PutReport)

	return r
}
