package agent

import (
	"bytes"
	"compress/gzip"
	"context"
	"crypto/hmac"
	"crypto/rsa"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/IvanChernomyrdin/go-privacy-analytics/internal/model"
	"github.com/IvanChernomyrdin/go-privacy-analytics/internal/pool"
	"github.com/go-resty/resty/v2"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// HashHeader заголовок с HMAC-SHA256 несжатого тела отчёта
const HashHeader = "HashSHA256"

var gzipBuffers = pool.New(func() *bytes.Buffer { return &bytes.Buffer{} })

// HTTPSink отправляет отчёты лидеру: PUT {leader}/tasks/{taskId}/reports.
// Протокол приватной агрегации за пределами агента, это транспортная прослойка.
type HTTPSink struct {
	client  *resty.Client
	key     *rsa.PublicKey
	hashKey string
	now     func() time.Time
}

func NewHTTPSink(key *rsa.PublicKey) *HTTPSink {
	return &HTTPSink{
		client: resty.New(),
		key:    key,
		now:    time.Now,
	}
}

// WithHashKey подписывать тело отчёта ключом
func (s *HTTPSink) WithHashKey(key string) *HTTPSink {
	s.hashKey = key
	return s
}

func (s *HTTPSink) Submit(ctx context.Context, task *model.Task, m model.Measurement) error {
	report, err := s.buildReport(task, m)
	if err != nil {
		return err
	}

	data, err := json.Marshal(report)
	if err != nil {
		return fmt.Errorf("failed to marshal report: %w", err)
	}

	//сжимаем данные в gzip
	compressionBuf := gzipBuffers.Get()
	defer gzipBuffers.Put(compressionBuf)

	gz := gzip.NewWriter(compressionBuf)
	if _, err := gz.Write(data); err != nil {
		return fmt.Errorf("failed to write data to gzip: %w", err)
	}
	if err := gz.Close(); err != nil {
		return fmt.Errorf("failed to close gzip writer: %w", err)
	}

	req := s.client.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetHeader("Content-Encoding", "gzip").
		SetBody(compressionBuf.Bytes())
	if s.hashKey != "" {
		req.SetHeader(HashHeader, ComputeHash(s.hashKey, data))
	}

	resp, err := req.Put(ReportURL(task))
	if err != nil {
		return err
	}

	if !resp.IsSuccess() {
		return fmt.Errorf("status %d", resp.StatusCode())
	}
	return nil
}

// ComputeHash hex HMAC-SHA256
func ComputeHash(key string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(key))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

func (s *HTTPSink) buildReport(task *model.Task, m model.Measurement) (*model.Report, error) {
	vector, err := EncodeMeasurement(task, m)
	if err != nil {
		return nil, err
	}

	report := &model.Report{
		ReportID: uuid.NewString(),
		TaskID:   task.ID,
		Time:     ReportTime(s.now(), task.TimePrecision),
		Helper:   task.HelperURL,
	}
	if s.key == nil {
		report.Measurement = vector
		return report, nil
	}

	plain, err := json.Marshal(vector)
	if err != nil {
		return nil, err
	}
	sealed, err := SealMeasurement(s.key, task.ID, plain)
	if err != nil {
		return nil, fmt.Errorf("failed to seal report: %w", err)
	}
	report.Sealed = sealed
	return report, nil
}

// ReportURL адрес загрузки отчётов задачи
func ReportURL(task *model.Task) string {
	return strings.TrimRight(task.LeaderURL, "/") + "/tasks/" + url.PathEscape(task.ID) + "/reports"
}

// ReportTime время отчёта, округлённое вниз до точности задачи
func ReportTime(now time.Time, precision time.Duration) int64 {
	secs := now.Unix()
	p := int64(precision / time.Second)
	if p <= 0 {
		return secs
	}
	return secs - secs%p
}

// EncodeMeasurement вектор входа агрегации
func EncodeMeasurement(task *model.Task, m model.Measurement) ([]uint64, error) {
	if err := task.Check(m); err != nil {
		return nil, err
	}

	if task.Kind == model.KindCount {
		if m.Bool() {
			return []uint64{1}, nil
		}
		return []uint64{0}, nil
	}

	vector := make([]uint64, task.Length)
	vector[m.Index()] = 1
	return vector, nil
}

// LogSink только пишет измерения в лог, для dry-run
type LogSink struct {
	Log *zap.SugaredLogger
}

func (s LogSink) Submit(_ context.Context, task *model.Task, m model.Measurement) error {
	if err := task.Check(m); err != nil {
		return err
	}
	if s.Log != nil {
		s.Log.Infow("measurement", "metric", task.Metric, "task_id", task.ID, "value", m.String())
	}
	return nil
}
