package config

import (
	"fmt"
	"log"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"

	"chat-timeline/internal/domain"
)

// AppConfig описывает конфигурацию сервисов.
type AppConfig struct {
	AppEnv      string `envconfig:"APP_ENV" default:"dev"`
	TZ          string `envconfig:"TZ" default:"Europe/Moscow"`
	Port        int    `envconfig:"PORT" default:"8080"`
	MetricsAddr string `envconfig:"METRICS_ADDR" default:":9090"`

	PGDSN       string `envconfig:"PG_DSN"`
	// SnapshotDir используется вместо Postgres, если PG_DSN не задан.
	SnapshotDir string `envconfig:"SNAPSHOT_DIR" default:"./snapshots"`

	RedisAddr string `envconfig:"REDIS_ADDR"`

	RabbitURL string `envconfig:"RABBITMQ_URL"`

	Queues struct {
		Rebuild string `envconfig:"REBUILD_QUEUE" default:"chat_rebuild_jobs"`
	} `envconfig:""`

	Sections struct {
		CacheTTL         time.Duration `envconfig:"SECTIONS_CACHE_TTL" default:"10m"`
		DefaultChatType  string        `envconfig:"DEFAULT_CHAT_TYPE" default:"conversation"`
		DefaultReplyMode string        `envconfig:"DEFAULT_REPLY_MODE" default:"quote"`
		WarmAllVariants  bool          `envconfig:"WARM_ALL_VARIANTS" default:"false"`
	} `envconfig:""`

	Rebuild struct {
		Concurrency int     `envconfig:"REBUILD_CONCURRENCY" default:"2"`
		RPS         float64 `envconfig:"REBUILD_RPS" default:"20"`
	} `envconfig:""`
}

// Load загружает конфиг из .env (если есть) и окружения.
func Load() AppConfig {
	_ = godotenv.Load()

	var cfg AppConfig
	if err := envconfig.Process("", &cfg); err != nil {
		log.Fatalf("не удалось загрузить конфиг: %v", err)
	}
	return cfg
}

// Location возвращает часовой пояс, по которому сообщения делятся на дни.
func (c AppConfig) Location() (*time.Location, error) {
	if c.TZ == "" {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(c.TZ)
	if err != nil {
		return nil, fmt.Errorf("load timezone %q: %w", c.TZ, err)
	}
	return loc, nil
}

// DefaultVariant возвращает вариант раскладки по умолчанию.
func (c AppConfig) DefaultVariant() (domain.Variant, error) {
	chatType, err := domain.ParseChatType(c.Sections.DefaultChatType)
	if err != nil {
		return domain.Variant{}, err
	}
	replyMode, err := domain.ParseReplyMode(c.Sections.DefaultReplyMode)
	if err != nil {
		return domain.Variant{}, err
	}
	return domain.Variant{ChatType: chatType, ReplyMode: replyMode}, nil
}

// WarmVariants возвращает варианты, которые пересчитываются после изменения чата.
func (c AppConfig) WarmVariants() ([]domain.Variant, error) {
	if c.Sections.WarmAllVariants {
		return domain.AllVariants(), nil
	}
	v, err := c.DefaultVariant()
	if err != nil {
		return nil, err
	}
	return []domain.Variant{v}, nil
}
