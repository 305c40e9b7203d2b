package domain

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrChatNotFound возвращается, если в источнике нет сообщений чата.
	ErrChatNotFound  = errors.New("chat not found")
	// ErrInvalidChatID возвращается источником для недопустимого идентификатора чата.
	ErrInvalidChatID = errors.New("invalid chat id")
	// ErrCacheMiss возвращается кэшем, если ключ не найден или истёк.
	ErrCacheMiss     = errors.New("cache miss")
)

// MessageSource отдаёт снимок сообщений чата. Источник только читает.
type MessageSource interface {
	ListChatMessages(ctx context.Context, chatID string) ([]ChatMessage, error)
}

// SectionCache хранит посчитанные секции до следующего изменения чата
// и счётчики поколений, по которым старые значения отбрасываются.
type SectionCache interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, keys ...string) error
	// Incr атомарно увеличивает счётчик и возвращает новое значение.
	Incr(ctx context.Context, key string) (int64, error)
}

// SectionService отдаёт секции чата вызывающему слою.
type SectionService interface {
	Sections(ctx context.Context, chatID string, variant Variant) ([]DateSection, error)
	Compute(messages []ChatMessage, variant Variant) ([]DateSection, error)
	Invalidate(ctx context.Context, chatID string) error
	Rebuild(ctx context.Context, job RebuildJob) error
}
