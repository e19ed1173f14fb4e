package agent

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/IvanChernomyrdin/go-privacy-analytics/internal/model"
	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"
)

// DefaultConfigEndpoint продовый адрес сервиса конфигурации
const DefaultConfigEndpoint = "https://api.tinfoil.sh"

// HTTPFetcher получает конфигурацию домена по http.
// Сам ничего не кэширует и не повторяет запросы.
type HTTPFetcher struct {
	client   *resty.Client
	endpoint string
	log      *zap.SugaredLogger
}

func NewHTTPFetcher(endpoint string, log *zap.SugaredLogger) *HTTPFetcher {
	if endpoint == "" {
		endpoint = DefaultConfigEndpoint
	}
	if log == nil {
		log = zap.NewNop().Sugar()
	}

	return &HTTPFetcher{
		client:   resty.New().SetHeader("Accept", "application/json"),
		endpoint: strings.TrimRight(endpoint, "/"),
		log:      log,
	}
}

// ConfigURL {endpoint}/domains/{domain}/config
func ConfigURL(endpoint, domain string) string {
	return strings.TrimRight(endpoint, "/") + "/domains/" + url.PathEscape(domain) + "/config"
}

func (f *HTTPFetcher) Fetch(ctx context.Context, domain string) (*model.GlobalConfig, error) {
	fullURL := ConfigURL(f.endpoint, domain)
	f.log.Debugf("Fetching global config from URL: %s", fullURL)

	resp, err := f.client.R().
		SetContext(ctx).
		Get(fullURL)
	if err != nil {
		f.log.Errorf("Error fetching config: %v", err)
		return nil, fmt.Errorf("%w: %v", ErrConfigUnavailable, err)
	}

	if !resp.IsSuccess() {
		f.log.Errorf("Error fetching config: HTTP status %d", resp.StatusCode())
		return nil, fmt.Errorf("%w: status %d", ErrConfigUnavailable, resp.StatusCode())
	}

	gc, issues, err := model.DecodeGlobalConfig(resp.Body())
	if err != nil {
		f.log.Errorf("Error fetching config: %v", err)
		return nil, fmt.Errorf("%w: %w", ErrConfigUnavailable, err)
	}
	for _, issue := range issues {
		f.log.Warn(issue.Error())
	}

	return gc, nil
}
