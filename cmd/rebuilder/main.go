package main

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/time/rate"

	"chat-timeline/internal/app"
	"chat-timeline/internal/infra/config"
	applog "chat-timeline/internal/infra/log"
	"chat-timeline/internal/infra/metrics"
)

func main() {
	cfg := config.Load()
	logger := applog.NewLogger(cfg.AppEnv)

	metrics.MustRegister(prometheus.DefaultRegisterer)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	metrics.StartServer(ctx, logger.With().Str("component", "metrics").Logger(), cfg.MetricsAddr)

	deps, err := app.Open(ctx, cfg, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("rebuilder: не удалось собрать зависимости")
	}
	defer func() {
		if err := deps.Close(); err != nil {
			logger.Error().Err(err).Msg("rebuilder: ошибка закрытия соединений")
		}
	}()
	if deps.Queue == nil {
		logger.Fatal().Msg("rebuilder: не указан адрес RabbitMQ (RABBITMQ_URL) или Redis (REDIS_ADDR)")
	}

	limit := rate.Inf
	if cfg.Rebuild.RPS > 0 {
		limit = rate.Limit(cfg.Rebuild.RPS)
	}
	worker := &jobWorker{
		log:     logger,
		queue:   deps.Queue,
		service: deps.Service,
		limiter: rate.NewLimiter(limit, 1),
	}

	logger.Info().Msg("rebuilder: запуск обработки очереди")
	worker.Run(ctx)
	logger.Info().Msg("rebuilder: остановлен")
}
