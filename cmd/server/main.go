// Dev-бэкенд агента: раздаёт конфигурации доменов и принимает отчёты,
// как это делал бы лидер. Для локальной разработки и e2e проверок.
package main

import (
	"context"
	"crypto/rsa"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/IvanChernomyrdin/go-privacy-analytics/internal/config"
	httpserver "github.com/IvanChernomyrdin/go-privacy-analytics/internal/handler"
	"github.com/IvanChernomyrdin/go-privacy-analytics/internal/middleware"
	logger "github.com/IvanChernomyrdin/go-privacy-analytics/internal/runtime"
	"github.com/IvanChernomyrdin/go-privacy-analytics/internal/service"
	"go.uber.org/zap"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, os.Args[1:]); err != nil {
		logger.NewHTTPLogger().Logger.Sugar().Fatalf("Ошибка сервера: %v", err)
	}
}

func run(ctx context.Context, args []string) error {
	cfg, err := config.LoadServer(args)
	if err != nil {
		return err
	}

	httpLog := logger.NewHTTPLogger()
	if cfg.Debug {
		httpLog = logger.NewLogger(true)
	}
	log := httpLog.Sugar()
	defer log.Sync()

	server, err := newServer(cfg, httpLog)
	if err != nil {
		return err
	}

	errCh := make(chan error, 1)
	go func() {
		log.Infof("Сервер запущен на %s", cfg.Address)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}
	log.Info("Завершение работы сервера...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("принудительное завершение: %w", err)
	}

	log.Info("Сервер остановлен")
	return nil
}

// newServer собирает сервисы, аудит и роутер по настройкам
func newServer(cfg *config.ServerConfig, httpLog *logger.HTTPLogger) (*http.Server, error) {
	log := httpLog.Sugar()

	configs := service.NewConfigService(log)
	if err := configs.LoadFromFile(cfg.ConfigsFile); err != nil {
		return nil, err
	}

	var key *rsa.PrivateKey
	if cfg.CryptoKey != "" {
		k, err := service.LoadPrivateKey(cfg.CryptoKey)
		if err != nil {
			return nil, fmt.Errorf("load crypto key: %w", err)
		}
		key = k
	}

	h := httpserver.NewHandler(configs, service.NewReportsService(key))
	router := httpserver.NewRouter(h, httpserver.RouterOptions{
		HashKey: cfg.HashKey,
		Audit:   auditReceivers(cfg, log),
		Logger:  httpLog,
		Log:     log,
	})

	return &http.Server{
		Addr:              cfg.Address,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}, nil
}

func auditReceivers(cfg *config.ServerConfig, log *zap.SugaredLogger) []middleware.AuditReceiver {
	var receivers []middleware.AuditReceiver
	if cfg.AuditFile != "" {
		receivers = append(receivers, &middleware.FileAuditReceiver{FilePath: cfg.AuditFile})
		log.Infof("Аудит в файл %s", cfg.AuditFile)
	}
	if cfg.AuditURL != "" {
		receivers = append(receivers, middleware.NewURLAuditReceiver(cfg.AuditURL))
		log.Infof("Аудит на %s", cfg.AuditURL)
	}
	return receivers
}
