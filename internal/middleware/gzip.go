package middleware

import (
	"bytes"
	"compress/gzip"
	"io"
	"net/http"
	"strings"
)

// MaxBodySize предел распакованного тела. Отчёт агента - несколько сотен байт,
// самый большой вектор (country) около 2 КБ.
const MaxBodySize = 1 << 20

// GzipDecompression распаковывает тело запроса с Content-Encoding: gzip
func GzipDecompression(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		contentEncoding := r.Header.Get("Content-Encoding")
		if !strings.Contains(strings.ToLower(contentEncoding), "gzip") {
			next.ServeHTTP(w, r)
			return
		}

		// пустое тело, распаковывать нечего
		if r.ContentLength == 0 || r.Body == http.NoBody {
			r.Header.Del("Content-Encoding")
			next.ServeHTTP(w, r)
			return
		}

		gz, err := gzip.NewReader(r.Body)
		if err != nil {
			http.Error(w, "Invalid gzip data", http.StatusBadRequest)
			return
		}
		defer gz.Close()

		body, err := io.ReadAll(io.LimitReader(gz, MaxBodySize+1))
		if err != nil {
			http.Error(w, "Failed to decompress body", http.StatusBadRequest)
			return
		}
		if len(body) > MaxBodySize {
			http.Error(w, "Body too large", http.StatusRequestEntityTooLarge)
			return
		}

		r.Body = io.NopCloser(bytes.NewReader(body))
		r.Header.Del("Content-Encoding")
		r.ContentLength = int64(len(body))
		next.ServeHTTP(w, r)
	})
}

type GzipResponseWriter struct {
	io.Writer
	http.ResponseWriter
}

func (w GzipResponseWriter) Write(b []byte) (int, error) {
	return w.Writer.Write(b)
}

func (w GzipResponseWriter) WriteHeader(statusCode int) {
	w.ResponseWriter.Header().Del("Content-Length")
	w.ResponseWriter.WriteHeader(statusCode)
}

// GzipCompression сжимает ответ, если клиент принимает gzip
func GzipCompression(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.Contains(r.Header.Get("Accept-Encoding"), "gzip") {
			next.ServeHTTP(w, r)
			return
		}

		gz, err := gzip.NewWriterLevel(w, gzip.BestSpeed)
		if err != nil {
			next.ServeHTTP(w, r)
			return
		}
		defer gz.Close()

		w.Header().Set("Content-Encoding", "gzip")
		w.Header().Add("Vary", "Accept-Encoding")

		next.ServeHTTP(GzipResponseWriter{Writer: gz, ResponseWriter: w}, r)
	})
}
