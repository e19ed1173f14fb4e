package main

import (
	"bufio"
	"context"
	"crypto/rsa"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/pprof"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/IvanChernomyrdin/go-privacy-analytics/internal/agent"
	"github.com/IvanChernomyrdin/go-privacy-analytics/internal/config"
	"github.com/IvanChernomyrdin/go-privacy-analytics/internal/config/db"
	"github.com/IvanChernomyrdin/go-privacy-analytics/internal/model"
	logger "github.com/IvanChernomyrdin/go-privacy-analytics/internal/runtime"
	"github.com/IvanChernomyrdin/go-privacy-analytics/internal/selfmetrics"
	"github.com/IvanChernomyrdin/go-privacy-analytics/internal/storage/file"
	"github.com/IvanChernomyrdin/go-privacy-analytics/internal/storage/memory"
	"github.com/IvanChernomyrdin/go-privacy-analytics/internal/storage/postgres"
	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

var (
	buildVersion string
	buildDate    string
	buildCommit  string
)

func defaultIfEmpty(s string) string {
	if s == "" {
		return "N/A"
	}
	return s
}

func main() {
	fmt.Printf("Build version: %s\n", defaultIfEmpty(buildVersion))
	fmt.Printf("Build date: %s\n", defaultIfEmpty(buildDate))
	fmt.Printf("Build commit: %s\n", defaultIfEmpty(buildCommit))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, os.Args[1:], os.Stdin); err != nil {
		logger.NewHTTPLogger().Logger.Sugar().Fatalf("Analytics agent stopped: %v", err)
	}
}

// run собирает агент из настроек и кормит его сигналами страницы из in
func run(ctx context.Context, args []string, in io.Reader) error {
	opts, err := config.Load(args)
	if err != nil {
		return err
	}

	log := logger.NewLogger(opts.Debug).Sugar()
	defer log.Sync()

	registry := prometheus.NewRegistry()
	metrics := selfmetrics.New(registry)
	registry.MustRegister(selfmetrics.NewHostCollector())

	sink, err := buildSink(opts, log)
	if err != nil {
		return err
	}

	lifetime, closeStore, err := buildLifetimeStore(ctx, opts, log)
	if err != nil {
		return err
	}
	defer closeStore()

	a, err := agent.NewAgent(agent.Deps{
		Domain:        opts.Domain,
		Fetcher:       selfmetrics.NewInstrumentedFetcher(agent.NewHTTPFetcher(opts.ConfigEndpoint, log), metrics),
		Sink:          selfmetrics.NewInstrumentedSink(sink, metrics),
		SessionStore:  memory.NewFlagStore(),
		LifetimeStore: lifetime,
		UserAgent:     opts.UserAgent,
		Logger:        log,
	})
	if err != nil {
		return err
	}

	if opts.MetricsAddr != "" {
		srv := startMetricsServer(opts.MetricsAddr, registry, log)
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
		}()
	}

	// политики старта идут параллельно с сигналами, зависший лидер не держит цикл
	started := make(chan error, 1)
	go func() { started <- a.Start(ctx) }()

	signals := make(chan agent.Signal)
	go readSignals(ctx, in, signals, log)
	runErr := a.Run(ctx, signals)

	// без конфигурации сигналы обрабатываются вхолостую, это не авария
	if err := <-started; err != nil {
		log.Warnf("Tracking disabled for %s: %v", opts.Domain, err)
	}
	return runErr
}

func buildSink(opts *config.Options, log *zap.SugaredLogger) (model.Sink, error) {
	if opts.SinkMode == config.SinkLog {
		// измерения видны и без debug
		return agent.LogSink{Log: logger.NewHTTPLogger().Sugar()}, nil
	}

	var pub *rsa.PublicKey
	if opts.CryptoKey != "" {
		key, err := agent.LoadPublicKey(opts.CryptoKey)
		if err != nil {
			return nil, fmt.Errorf("load crypto key: %w", err)
		}
		pub = key
		log.Infof("Reports are sealed with %s", opts.CryptoKey)
	}
	return agent.NewHTTPSink(pub).WithHashKey(opts.HashKey), nil
}

func buildLifetimeStore(ctx context.Context, opts *config.Options, log *zap.SugaredLogger) (model.FlagStore, func(), error) {
	noop := func() {}

	switch opts.LifetimeStore {
	case config.StoreMemory:
		return memory.NewFlagStore(), noop, nil

	case config.StorePostgres:
		dsn := db.GetConnect(opts.DatabaseDSN)
		conn, err := db.Open(ctx, dsn)
		if err != nil {
			return nil, noop, err
		}
		if err := postgres.Migrate(dsn); err != nil {
			conn.Close()
			return nil, noop, fmt.Errorf("migrate flag store: %w", err)
		}
		closeDB := func() {
			if err := conn.Close(); err != nil {
				log.Warnf("Error closing database: %v", err)
			}
		}
		return postgres.New(conn, opts.Domain, log), closeDB, nil
	}

	store, err := file.Open(opts.StateFile)
	if err != nil {
		return nil, noop, err
	}
	return store, noop, nil
}

func startMetricsServer(addr string, registry *prometheus.Registry, log *zap.SugaredLogger) *http.Server {
	r := chi.NewRouter()
	r.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
	r.HandleFunc("/debug/pprof/*", pprof.Index)
	r.HandleFunc("/debug/pprof/cmdline", pprof.Cmdline)
	r.HandleFunc("/debug/pprof/profile", pprof.Profile)
	r.HandleFunc("/debug/pprof/symbol", pprof.Symbol)
	r.HandleFunc("/debug/pprof/trace", pprof.Trace)

	srv := &http.Server{Addr: addr, Handler: r}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Errorf("Metrics server failed: %v", err)
		}
	}()
	return srv
}

// readSignals одна команда на строку, канал закрывается на EOF
func readSignals(ctx context.Context, in io.Reader, out chan<- agent.Signal, log *zap.SugaredLogger) {
	defer close(out)

	scanner := bufio.NewScanner(in)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		sig, err := parseSignal(line)
		if err != nil {
			log.Warnf("Skipping input line %q: %v", line, err)
			continue
		}
		select {
		case out <- sig:
		case <-ctx.Done():
			return
		}
	}
	if err := scanner.Err(); err != nil {
		log.Errorf("Error reading signals: %v", err)
	}
}

// parseSignal формат строк:
//
//	visible | hidden | keypress | unload
//	click [классы цели] [| классы родителя]...
//	submit [классы формы]
//	event <имя>[=значение]
func parseSignal(line string) (agent.Signal, error) {
	cmd, rest, _ := strings.Cut(line, " ")
	rest = strings.TrimSpace(rest)

	switch cmd {
	case "visible":
		return agent.Visibility(true), nil
	case "hidden":
		return agent.Visibility(false), nil
	case "keypress":
		return agent.KeyPress(), nil
	case "unload":
		return agent.Unload(), nil

	case "click":
		var path [][]string
		if rest != "" {
			for _, segment := range strings.Split(rest, "|") {
				path = append(path, strings.Fields(segment))
			}
		}
		return agent.Click(path...), nil

	case "submit":
		return agent.FormSubmit(strings.Fields(rest)), nil

	case "event":
		if rest == "" {
			return agent.Signal{}, errors.New("event name is required")
		}
		name, raw, hasValue := strings.Cut(rest, "=")
		if !hasValue {
			return agent.Custom(name, nil), nil
		}
		return agent.Custom(name, parseValue(raw)), nil
	}

	return agent.Signal{}, fmt.Errorf("unknown command %q", cmd)
}

func parseValue(raw string) any {
	// числа раньше bool: "1" - индекс бакета, а не true
	if n, err := strconv.Atoi(raw); err == nil {
		return n
	}
	if b, err := strconv.ParseBool(raw); err == nil {
		return b
	}
	return raw
}
