package middleware

import (
	"net/http"
	"time"

	"github.com/IvanChernomyrdin/go-privacy-analytics/internal/runtime"
)

// RequestLogger пишет одну строку на запрос
type RequestLogger interface {
	LogRequest(method, uri string, status, responseSize int, duration float64)
}

// ResponseWriter запоминает статус и размер ответа
type ResponseWriter struct {
	http.ResponseWriter
	Status int
	Size   int
}

func (w *ResponseWriter) WriteHeader(status int) {
	w.Status = status
	w.ResponseWriter.WriteHeader(status)
}

func (w *ResponseWriter) Write(b []byte) (int, error) {
	if w.Status == 0 {
		w.Status = http.StatusOK
	}
	size, err := w.ResponseWriter.Write(b)
	w.Size += size
	return size, err
}

// StatusCode статус ответа, 200 если handler ничего не выставил
func (w *ResponseWriter) StatusCode() int {
	if w.Status == 0 {
		return http.StatusOK
	}
	return w.Status
}

func LoggerMiddleware(log RequestLogger) func(http.Handler) http.Handler {
	if log == nil {
		log = runtime.NewHTTPLogger()
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			wr := &ResponseWriter{ResponseWriter: w}
			next.ServeHTTP(wr, r)

			duration := time.Since(start).Seconds() * 1000
			log.LogRequest(r.Method, r.RequestURI, wr.StatusCode(), wr.Size, duration)
		})
	}
}
