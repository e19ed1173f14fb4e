// config/config.go
package config

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/IvanChernomyrdin/go-privacy-analytics/internal/runtime"
	"github.com/ilyakaznacheev/cleanenv"
)

const (
	SinkHTTP = "http"
	SinkLog  = "log"

	StoreFile     = "file"
	StorePostgres = "postgres"
	StoreMemory   = "memory"
)

var ErrInvalidOptions = errors.New("invalid options")

// Options настройки агента: значения по умолчанию, JSON, окружение, флаги
type Options struct {
	Domain         string `json:"domain" env:"DOMAIN"`
	ConfigEndpoint string `json:"config_endpoint" env:"CONFIG_ENDPOINT" env-default:"https://api.tinfoil.sh"`
	Debug          bool   `json:"debug" env:"DEBUG"`
	UserAgent      string `json:"user_agent" env:"USER_AGENT"`
	SinkMode       string `json:"sink" env:"SINK" env-default:"http"`
	CryptoKey      string `json:"crypto_key" env:"CRYPTO_KEY"`
	HashKey        string `json:"key" env:"KEY"`
	LifetimeStore  string `json:"lifetime_store" env:"LIFETIME_STORE" env-default:"file"`
	StateFile      string `json:"state_file" env:"STATE_FILE"`
	DatabaseDSN    string `json:"database_dsn" env:"DATABASE_DSN"`
	MetricsAddr    string `json:"metrics_addr" env:"METRICS_ADDR"`
	ConfigFile     string `json:"-" env:"CONFIG"`
}

// Load args без имени программы
func Load(args []string) (*Options, error) {
	fs := flag.NewFlagSet("agent", flag.ContinueOnError)
	fs.SetOutput(io.Discard)

	var cfgPath string
	fs.StringVar(&cfgPath, "c", "", "config file path")
	fs.StringVar(&cfgPath, "config", "", "config file path")

	domain := fs.String("domain", "", "tracked site domain")
	endpoint := fs.String("e", "", "config endpoint base URL")
	debug := fs.Bool("debug", false, "verbose logging")
	userAgent := fs.String("ua", "", "user-agent string of the client")
	sink := fs.String("sink", "", "submission sink: http or log")
	crypto := fs.String("crypto-key", "", "path to public key for sealing reports")
	hashKey := fs.String("k", "", "HMAC key for report signatures")
	store := fs.String("store", "", "lifetime flag store: file, postgres or memory")
	state := fs.String("state", "", "state file for the file store")
	dsn := fs.String("d", "", "postgres DSN for the postgres store")
	metrics := fs.String("metrics", "", "address for prometheus and pprof")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	opts := &Options{}

	// JSON + ENV
	jsonPath := cfgPath
	if jsonPath == "" {
		jsonPath = os.Getenv("CONFIG")
	}
	if err := readLayers(jsonPath, opts); err != nil {
		return nil, err
	}
	opts.ConfigFile = jsonPath

	// FLAGS
	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "domain":
			opts.Domain = *domain
		case "e":
			opts.ConfigEndpoint = *endpoint
		case "debug":
			opts.Debug = *debug
		case "ua":
			opts.UserAgent = *userAgent
		case "sink":
			opts.SinkMode = *sink
		case "crypto-key":
			opts.CryptoKey = *crypto
		case "k":
			opts.HashKey = *hashKey
		case "store":
			opts.LifetimeStore = *store
		case "state":
			opts.StateFile = *state
		case "d":
			opts.DatabaseDSN = *dsn
		case "metrics":
			opts.MetricsAddr = *metrics
		}
	})

	if opts.StateFile == "" && opts.Domain != "" {
		opts.StateFile = filepath.Join(os.TempDir(), "analytics-"+opts.Domain+".json")
	}

	if err := opts.Validate(); err != nil {
		return nil, err
	}
	return opts, nil
}

// readLayers битый файл не фатален, как и раньше: предупреждение и только окружение
func readLayers(jsonPath string, opts *Options) error {
	if jsonPath != "" {
		err := cleanenv.ReadConfig(jsonPath, opts)
		if err == nil {
			return nil
		}
		runtime.NewHTTPLogger().Logger.Sugar().Warnf("cannot load config file: %v", err)
		*opts = Options{}
	}
	if err := cleanenv.ReadEnv(opts); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidOptions, err)
	}
	return nil
}

func (o *Options) Validate() error {
	if strings.TrimSpace(o.Domain) == "" {
		return fmt.Errorf("%w: domain is required", ErrInvalidOptions)
	}

	u, err := url.Parse(o.ConfigEndpoint)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("%w: config endpoint must be an absolute http(s) URL, got %q", ErrInvalidOptions, o.ConfigEndpoint)
	}

	switch o.SinkMode {
	case SinkHTTP, SinkLog:
	default:
		return fmt.Errorf("%w: unknown sink %q", ErrInvalidOptions, o.SinkMode)
	}

	switch o.LifetimeStore {
	case StoreFile, StorePostgres, StoreMemory:
	default:
		return fmt.Errorf("%w: unknown lifetime store %q", ErrInvalidOptions, o.LifetimeStore)
	}
	return nil
}

// ServerConfig настройки dev-бэкенда: раздаёт конфиги и принимает отчёты
type ServerConfig struct {
	Address     string `json:"address" env:"ADDRESS" env-default:"localhost:8080"`
	ConfigsFile string `json:"configs_file" env:"CONFIGS_FILE"`
	HashKey     string `json:"key" env:"KEY"`
	CryptoKey   string `json:"crypto_key" env:"CRYPTO_KEY"`
	AuditFile   string `json:"audit_file" env:"AUDIT_FILE"`
	AuditURL    string `json:"audit_url" env:"AUDIT_URL"`
	Debug       bool   `json:"debug" env:"DEBUG"`
}

func LoadServer(args []string) (*ServerConfig, error) {
	fs := flag.NewFlagSet("configserver", flag.ContinueOnError)
	fs.SetOutput(io.Discard)

	addr := fs.String("a", "", "HTTP server address")
	file := fs.String("f", "", "JSON file: domain -> config document")
	hashKey := fs.String("k", "", "HMAC key for report signatures")
	cryptoKey := fs.String("crypto-key", "", "path to RSA private key for sealed reports")
	auditFile := fs.String("audit-file", "", "file for audit events")
	auditURL := fs.String("audit-url", "", "URL for audit events")
	debug := fs.Bool("debug", false, "verbose logging")
	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	cfg := &ServerConfig{}
	if err := cleanenv.ReadEnv(cfg); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidOptions, err)
	}
	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "a":
			cfg.Address = *addr
		case "f":
			cfg.ConfigsFile = *file
		case "k":
			cfg.HashKey = *hashKey
		case "crypto-key":
			cfg.CryptoKey = *cryptoKey
		case "audit-file":
			cfg.AuditFile = *auditFile
		case "audit-url":
			cfg.AuditURL = *auditURL
		case "debug":
			cfg.Debug = *debug
		}
	})
	return cfg, nil
}
