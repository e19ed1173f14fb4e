package tests

import (
	"bytes"
	"compress/gzip"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	mw "github.com/IvanChernomyrdin/go-privacy-analytics/internal/middleware"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func gzipBytes(t *testing.T, data []byte) []byte {
	t.Helper()
	var buf bytes.Buffer
	gz := gzip.NewWriter(&buf)
	_, err := gz.Write(data)
	require.NoError(t, err)
	require.NoError(t, gz.Close())
	return buf.Bytes()
}

func echoHandler(t *testing.T) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, err := io.ReadAll(r.Body)
		if !assert.NoError(t, err) {
			return
		}
		assert.Empty(t, r.Header.Get("Content-Encoding"))
		w.Write(body)
	})
}

func TestGzipDecompression(t *testing.T) {
	report := []byte(`{"report_id":"1","task_id":"t","measurement":[1]}`)

	tests := []struct {
		name       string
		body       []byte
		encoding   string
		wantStatus int
		wantBody   string
	}{
		{name: "обычный запрос без сжатия", body: report, wantStatus: http.StatusOK, wantBody: string(report)},
		{name: "сжатый отчёт", body: gzipBytes(t, report), encoding: "gzip", wantStatus: http.StatusOK, wantBody: string(report)},
		{name: "заголовок в верхнем регистре", body: gzipBytes(t, report), encoding: "GZIP", wantStatus: http.StatusOK, wantBody: string(report)},
		{name: "gzip заголовок но данные не сжаты", body: report, encoding: "gzip", wantStatus: http.StatusBadRequest, wantBody: "Invalid gzip data"},
		{name: "слишком большое тело", body: gzipBytes(t, bytes.Repeat([]byte("a"), mw.MaxBodySize+1)), encoding: "gzip", wantStatus: http.StatusRequestEntityTooLarge, wantBody: "Body too large"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPut, "/tasks/t/reports", bytes.NewReader(tt.body))
			if tt.encoding != "" {
				req.Header.Set("Content-Encoding", tt.encoding)
			}
			rr := httptest.NewRecorder()

			mw.GzipDecompression(echoHandler(t)).ServeHTTP(rr, req)

			assert.Equal(t, tt.wantStatus, rr.Code)
			assert.Equal(t, tt.wantBody, strings.TrimSpace(rr.Body.String()))
		})
	}

	t.Run("пустое тело со сжатием", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPut, "/tasks/t/reports", http.NoBody)
		req.Header.Set("Content-Encoding", "gzip")
		rr := httptest.NewRecorder()

		mw.GzipDecompression(echoHandler(t)).ServeHTTP(rr, req)
		assert.Equal(t, http.StatusOK, rr.Code)
		assert.Empty(t, rr.Body.String())
	})
}

func TestGzipCompression(t *testing.T) {
	doc := `{"leaderUrl":"http://leader","helperUrl":"http://helper","metrics":{}}`
	handler := mw.GzipCompression(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(doc))
	}))

	t.Run("клиент принимает gzip", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/domains/example.com/config", nil)
		req.Header.Set("Accept-Encoding", "gzip")
		rr := httptest.NewRecorder()
		handler.ServeHTTP(rr, req)

		assert.Equal(t, "gzip", rr.Header().Get("Content-Encoding"))
		gz, err := gzip.NewReader(rr.Body)
		require.NoError(t, err)
		plain, err := io.ReadAll(gz)
		require.NoError(t, err)
		assert.JSONEq(t, doc, string(plain))
	})

	t.Run("клиент без gzip", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/domains/example.com/config", nil)
		rr := httptest.NewRecorder()
		handler.ServeHTTP(rr, req)

		assert.Empty(t, rr.Header().Get("Content-Encoding"))
		assert.JSONEq(t, doc, rr.Body.String())
	})
}
