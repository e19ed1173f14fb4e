// Package middleware http middleware dev-бэкенда: сжатие, подпись, аудит, логирование.
package middleware

import (
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"
)

// AuditEvent запись о принятом отчёте. Содержимого отчёта здесь нет.
type AuditEvent struct {
	Timestamp int64  `json:"ts"`
	TaskID    string `json:"task_id"`
	IPAddress string `json:"ip_address"`
}

type AuditReceiver interface {
	Notify(event *AuditEvent) error
}

// FileAuditReceiver дописывает события в файл, по одному JSON на строку
type FileAuditReceiver struct {
	FilePath string

	mu sync.Mutex
}

func (f *FileAuditReceiver) Notify(event *AuditEvent) error {
	data, err := json.Marshal(event)
	if err != nil {
		return err
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	file, err := os.OpenFile(f.FilePath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return err
	}
	defer file.Close()

	_, err = file.Write(append(data, '\n'))
	return err
}

// URLAuditReceiver отправляет события POST запросом
type URLAuditReceiver struct {
	URL    string
	client *resty.Client
}

func NewURLAuditReceiver(url string) *URLAuditReceiver {
	return &URLAuditReceiver{
		URL:    url,
		client: resty.New().SetTimeout(5 * time.Second),
	}
}

func (u *URLAuditReceiver) Notify(event *AuditEvent) error {
	if u.client == nil {
		u.client = resty.New().SetTimeout(5 * time.Second)
	}

	resp, err := u.client.R().
		SetHeader("Content-Type", "application/json").
		SetBody(event).
		Post(u.URL)
	if err != nil {
		return err
	}
	if resp.StatusCode() != http.StatusOK {
		return fmt.Errorf("failed to send audit log, status: %s", resp.Status())
	}
	return nil
}

// AuditMiddleware уведомляет получателей о каждом успешно принятом отчёте.
// Ставится на маршрут с параметром {taskId}.
func AuditMiddleware(receivers []AuditReceiver, log *zap.SugaredLogger) func(next http.Handler) http.Handler {
	if log == nil {
		log = zap.NewNop().Sugar()
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if len(receivers) == 0 {
				next.ServeHTTP(w, r)
				return
			}

			wr := &ResponseWriter{ResponseWriter: w}
			next.ServeHTTP(wr, r)

			status := wr.StatusCode()
			if status < 200 || status >= 300 {
				return
			}

			event := &AuditEvent{
				Timestamp: time.Now().Unix(),
				TaskID:    chi.URLParam(r, "taskId"),
				IPAddress: r.RemoteAddr,
			}
			for _, receiver := range receivers {
				if err := receiver.Notify(event); err != nil {
					log.Warnf("Error while sending audit: %v", err)
				}
			}
		})
	}
}
