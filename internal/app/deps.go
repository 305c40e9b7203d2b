// Package app собирает зависимости сервисов из конфигурации.
package app

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"chat-timeline/internal/adapters/repo"
	"chat-timeline/internal/adapters/snapshot"
	"chat-timeline/internal/domain"
	"chat-timeline/internal/infra/cache"
	"chat-timeline/internal/infra/config"
	"chat-timeline/internal/infra/db"
	"chat-timeline/internal/infra/queue"
	"chat-timeline/internal/usecase/sections"
)

// Deps хранит собранные зависимости. Close освобождает соединения.
type Deps struct {
	Source   domain.MessageSource
	Cache    domain.SectionCache
	Queue    domain.RebuildQueue
	Service  *sections.Service
	Defaults domain.Variant

	pool   *pgxpool.Pool
	redis  *redis.Client
	rabbit *queue.RabbitRebuildQueue
}

// Open подключает источник, кэш и очередь. Postgres заменяется каталогом
// снимков без PG_DSN, кэш и очередь отключаются без соответствующих адресов.
func Open(ctx context.Context, cfg config.AppConfig, logger zerolog.Logger) (*Deps, error) {
	loc, err := cfg.Location()
	if err != nil {
		return nil, err
	}
	defaults, err := cfg.DefaultVariant()
	if err != nil {
		return nil, fmt.Errorf("default variant: %w", err)
	}
	warm, err := cfg.WarmVariants()
	if err != nil {
		return nil, fmt.Errorf("warm variants: %w", err)
	}

	d := &Deps{Defaults: defaults}

	if cfg.PGDSN != "" {
		pool, err := db.Connect(ctx, cfg.PGDSN)
		if err != nil {
			return nil, fmt.Errorf("connect postgres: %w", err)
		}
		d.pool = pool
		d.Source = repo.NewPostgres(pool)
	} else {
		logger.Warn().Str("dir", cfg.SnapshotDir).Msg("PG_DSN не задан, сообщения читаются из снимков")
		d.Source = snapshot.NewDir(cfg.SnapshotDir)
	}

	if cfg.RedisAddr != "" {
		d.redis = redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		if err := d.redis.Ping(ctx).Err(); err != nil {
			d.Close()
			return nil, fmt.Errorf("ping redis: %w", err)
		}
		d.Cache = cache.NewRedis(d.redis, "chat-timeline:")
	}

	switch {
	case cfg.RabbitURL != "":
		rq, err := queue.NewRabbitRebuildQueue(cfg.RabbitURL, cfg.Queues.Rebuild)
		if err != nil {
			d.Close()
			return nil, err
		}
		d.rabbit = rq
		d.Queue = rq
	case d.redis != nil:
		d.Queue = queue.NewRedisRebuildQueue(d.redis, "chat-timeline:"+cfg.Queues.Rebuild)
	}

	d.Service = sections.NewService(d.Source, d.Cache, sections.Settings{
		Location:    loc,
		CacheTTL:    cfg.Sections.CacheTTL,
		Warm:        warm,
		Concurrency: cfg.Rebuild.Concurrency,
	}, logger.With().Str("component", "sections").Logger())
	return d, nil
}

// Close закрывает все открытые соединения.
func (d *Deps) Close() error {
	var errs []error
	if d.rabbit != nil {
		errs = append(errs, d.rabbit.Close())
	}
	if d.redis != nil {
		errs = append(errs, d.redis.Close())
	}
	if d.pool != nil {
		d.pool.Close()
	}
	return errors.Join(errs...)
}
