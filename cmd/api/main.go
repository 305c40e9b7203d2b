package main

import (
	"context"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"chat-timeline/internal/adapters/httpapi"
	"chat-timeline/internal/app"
	"chat-timeline/internal/infra/config"
	httpinfra "chat-timeline/internal/infra/http"
	applog "chat-timeline/internal/infra/log"
	"chat-timeline/internal/infra/metrics"
)

func main() {
	cfg := config.Load()
	logger := applog.NewLogger(cfg.AppEnv)

	metrics.MustRegister(prometheus.DefaultRegisterer)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	deps, err := app.Open(ctx, cfg, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("api: не удалось собрать зависимости")
	}
	defer func() {
		if err := deps.Close(); err != nil {
			logger.Error().Err(err).Msg("api: ошибка закрытия соединений")
		}
	}()
	if deps.Queue == nil {
		logger.Warn().Msg("api: очередь не настроена, пересчёт выполняется в запросе")
	}

	server := httpinfra.NewServer(logger.With().Str("component", "http").Logger())
	httpapi.NewHandler(deps.Service, deps.Queue, deps.Defaults, logger.With().Str("component", "httpapi").Logger()).Mount(server.Router)

	go func() {
		addr := ":" + strconv.Itoa(cfg.Port)
		if err := server.Start(addr); err != nil {
			logger.Error().Err(err).Msg("api: сервер остановлен")
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info().Msg("api: остановка")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("api: ошибка остановки сервера")
	}
}
