package service

import (
	"crypto/rsa"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/IvanChernomyrdin/go-privacy-analytics/internal/model"
	"github.com/google/uuid"
)

var (
	ErrBadReport        = errors.New("bad report")
	ErrDuplicateReport  = errors.New("duplicate report")
	ErrSealedWithoutKey = errors.New("sealed report but no private key configured")
)

// ReportsService принимает отчёты и считает их по задачам.
// Агрегации нет: это заглушка лидера для разработки и e2e проверок агента.
type ReportsService struct {
	key *rsa.PrivateKey

	mu     sync.Mutex
	counts map[string]int
	seen   map[string]struct{}
}

func NewReportsService(key *rsa.PrivateKey) *ReportsService {
	return &ReportsService{
		key:    key,
		counts: make(map[string]int),
		seen:   make(map[string]struct{}),
	}
}

// Accept разбирает тело отчёта для задачи taskID
func (s *ReportsService) Accept(taskID string, body []byte) (*model.Report, error) {
	var report model.Report
	if err := json.Unmarshal(body, &report); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadReport, err)
	}
	if _, err := uuid.Parse(report.ReportID); err != nil {
		return nil, fmt.Errorf("%w: report_id: %v", ErrBadReport, err)
	}
	if report.TaskID != taskID {
		return nil, fmt.Errorf("%w: task_id %q does not match %q", ErrBadReport, report.TaskID, taskID)
	}

	vector := report.Measurement
	if report.Sealed != "" {
		opened, err := s.open(taskID, report.Sealed)
		if err != nil {
			return nil, err
		}
		vector = opened
	}
	if err := checkVector(vector); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.seen[report.ReportID]; ok {
		return nil, fmt.Errorf("%w: %s", ErrDuplicateReport, report.ReportID)
	}
	s.seen[report.ReportID] = struct{}{}
	s.counts[taskID]++

	report.Measurement = vector
	return &report, nil
}

func (s *ReportsService) Count(taskID string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.counts[taskID]
}

// Counts снимок счётчиков по всем задачам
func (s *ReportsService) Counts() map[string]int {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]int, len(s.counts))
	for taskID, n := range s.counts {
		out[taskID] = n
	}
	return out
}

func (s *ReportsService) open(taskID, sealed string) ([]uint64, error) {
	if s.key == nil {
		return nil, ErrSealedWithoutKey
	}
	plain, err := OpenMeasurement(s.key, taskID, sealed)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadReport, err)
	}
	var vector []uint64
	if err := json.Unmarshal(plain, &vector); err != nil {
		return nil, fmt.Errorf("%w: sealed vector: %v", ErrBadReport, err)
	}
	return vector, nil
}

// checkVector count: [0|1], histogram: ровно одна единица
func checkVector(vector []uint64) error {
	if len(vector) == 0 {
		return fmt.Errorf("%w: empty measurement", ErrBadReport)
	}
	ones := 0
	for _, v := range vector {
		switch v {
		case 0:
		case 1:
			ones++
		default:
			return fmt.Errorf("%w: measurement must be 0/1 encoded", ErrBadReport)
		}
	}
	if len(vector) > 1 && ones != 1 {
		return fmt.Errorf("%w: histogram measurement must be one-hot", ErrBadReport)
	}
	return nil
}
