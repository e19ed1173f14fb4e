package middleware

import (
	"bytes"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"io"
	"net/http"
)

// HashHeader заголовок с HMAC-SHA256 тела, тот же что ставит агент
const HashHeader = "HashSHA256"

type HashMiddleware struct {
	HashKey string
}

func NewHashMiddleware(hashKey string) *HashMiddleware {
	return &HashMiddleware{HashKey: hashKey}
}

// CheckHash сверяет подпись входящего PUT/POST.
// Запрос без заголовка пропускается, неверная подпись - 400.
// Должен стоять после GzipDecompression: агент подписывает несжатый JSON.
func (h *HashMiddleware) CheckHash(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if h.HashKey == "" || (r.Method != http.MethodPut && r.Method != http.MethodPost) {
			next.ServeHTTP(w, r)
			return
		}

		incomingHash := r.Header.Get(HashHeader)
		if incomingHash == "" {
			next.ServeHTTP(w, r)
			return
		}

		body, err := io.ReadAll(r.Body)
		if err != nil {
			http.Error(w, "Cannot read body", http.StatusBadRequest)
			return
		}
		r.Body = io.NopCloser(bytes.NewReader(body))

		if !hmac.Equal([]byte(incomingHash), []byte(h.ComputeHash(body))) {
			http.Error(w, "Invalid hash sum", http.StatusBadRequest)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (h *HashMiddleware) ComputeHash(body []byte) string {
	mac := hmac.New(sha256.New, []byte(h.HashKey))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

// bufferedWriter копит тело, чтобы заголовок с подписью ушёл раньше тела
type bufferedWriter struct {
	header http.Header
	body   bytes.Buffer
	status int
}

func (w *bufferedWriter) Header() http.Header { return w.header }

func (w *bufferedWriter) Write(b []byte) (int, error) {
	if w.status == 0 {
		w.status = http.StatusOK
	}
	return w.body.Write(b)
}

func (w *bufferedWriter) WriteHeader(statusCode int) {
	if w.status == 0 {
		w.status = statusCode
	}
}

// AddHash подписывает тело ответа
func (h *HashMiddleware) AddHash(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if h.HashKey == "" {
			next.ServeHTTP(w, r)
			return
		}

		buf := &bufferedWriter{header: w.Header()}
		next.ServeHTTP(buf, r)

		if buf.body.Len() > 0 {
			w.Header().Set(HashHeader, h.ComputeHash(buf.body.Bytes()))
		}
		if buf.status == 0 {
			buf.status = http.StatusOK
		}
		w.WriteHeader(buf.status)
		w.Write(buf.body.Bytes())
	})
}
