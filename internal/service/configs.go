// Package service логика dev-бэкенда: документы конфигурации доменов и приём отчётов.
package service

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sort"
	"sync"

	"github.com/IvanChernomyrdin/go-privacy-analytics/internal/model"
	"go.uber.org/zap"
)

var ErrUnknownDomain = errors.New("unknown domain")

// ConfigService хранит документы конфигурации как есть, отдаёт их агентам без изменений
type ConfigService struct {
	mu   sync.RWMutex
	docs map[string]json.RawMessage
	log  *zap.SugaredLogger
}

func NewConfigService(log *zap.SugaredLogger) *ConfigService {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	return &ConfigService{
		docs: make(map[string]json.RawMessage),
		log:  log,
	}
}

// Set проверяет документ тем же декодером, что и агент.
// Битые метрики допустимы, агент их отбросит.
func (s *ConfigService) Set(domain string, doc []byte) error {
	_, issues, err := model.DecodeGlobalConfig(doc)
	if err != nil {
		return fmt.Errorf("config for %s: %w", domain, err)
	}
	for _, issue := range issues {
		s.log.Warnf("%s: %v", domain, issue)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.docs[domain] = append(json.RawMessage(nil), doc...)
	return nil
}

func (s *ConfigService) Get(domain string) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	doc, ok := s.docs[domain]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownDomain, domain)
	}
	return doc, nil
}

func (s *ConfigService) Domains() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	domains := make([]string, 0, len(s.docs))
	for domain := range s.docs {
		domains = append(domains, domain)
	}
	sort.Strings(domains)
	return domains
}

// LoadFromFile файл вида {"example.com": {...документ...}}
func (s *ConfigService) LoadFromFile(filename string) error {
	if filename == "" {
		return nil
	}

	file, err := os.Open(filename)
	if err != nil {
		return fmt.Errorf("failed to open file: %w", err)
	}
	defer file.Close()

	var docs map[string]json.RawMessage
	if err := json.NewDecoder(file).Decode(&docs); err != nil {
		return fmt.Errorf("failed to decode configs: %w", err)
	}

	for domain, doc := range docs {
		if err := s.Set(domain, doc); err != nil {
			return err
		}
	}

	s.log.Infof("Successfully loaded %d domain configs from %s", len(docs), filename)
	return nil
}
