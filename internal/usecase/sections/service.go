// Package sections отдаёт раскладку чата вызывающему слою: читает снимок
// сообщений, строит секции движком grouping и держит результат в кэше
// до следующего изменения чата.
package sections

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"chat-timeline/internal/domain"
	"chat-timeline/internal/infra/metrics"
	"chat-timeline/internal/usecase/grouping"
)

// Settings задаёт параметры сервиса.
type Settings struct {
	Location    *time.Location
	CacheTTL    time.Duration
	// Warm перечисляет варианты, которые пересчитываются, если задача их не указала.
	Warm        []domain.Variant
	Concurrency int
}

// Service реализует domain.SectionService.
type Service struct {
	source   domain.MessageSource
	cache    domain.SectionCache
	settings Settings
	log      zerolog.Logger
	group    singleflight.Group
}

// NewService создаёт сервис. cache может быть nil, тогда каждый запрос считается заново.
func NewService(source domain.MessageSource, cache domain.SectionCache, settings Settings, log zerolog.Logger) *Service {
	if settings.Location == nil {
		settings.Location = time.Local
	}
	if len(settings.Warm) == 0 {
		settings.Warm = []domain.Variant{{ChatType: domain.ChatTypeConversation, ReplyMode: domain.ReplyModeQuote}}
	}
	if settings.Concurrency <= 0 {
		settings.Concurrency = 1
	}
	return &Service{source: source, cache: cache, settings: settings, log: log}
}

var _ domain.SectionService = (*Service)(nil)

// loadTimeout ограничивает загрузку снимка, общую для всех ожидающих запросов.
const loadTimeout = 10 * time.Second

// CacheKey возвращает ключ кэша для чата, поколения и варианта раскладки.
func CacheKey(chatID string, generation int64, variant domain.Variant) string {
	return fmt.Sprintf("sections:%s:g%d:%s", chatID, generation, variant)
}

// GenerationKey возвращает ключ счётчика поколений чата. Каждое изменение
// чата увеличивает поколение, и значения прошлых поколений больше не читаются.
func GenerationKey(chatID string) string {
	return "sections:" + chatID + ":gen"
}

// Sections возвращает секции чата, по возможности из кэша.
func (s *Service) Sections(ctx context.Context, chatID string, variant domain.Variant) ([]domain.DateSection, error) {
	generation, cacheable := s.generation(ctx, chatID)
	key := CacheKey(chatID, generation, variant)
	if cacheable {
		if cached, ok := s.fromCache(ctx, key); ok {
			return cached, nil
		}
	}

	// загрузка не зависит от отмены запроса, который её начал:
	// результат ждут и другие запросы того же ключа
	ch := s.group.DoChan(key, func() (any, error) {
		loadCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), loadTimeout)
		defer cancel()

		messages, err := s.source.ListChatMessages(loadCtx, chatID)
		if err != nil {
			return nil, fmt.Errorf("загрузка сообщений чата %s: %w", chatID, err)
		}
		sections, err := s.compute(chatID, messages, variant)
		if err != nil {
			return nil, err
		}
		if cacheable {
			s.store(loadCtx, key, sections)
		}
		return sections, nil
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.([]domain.DateSection), nil
	}
}

// Compute строит секции без обращения к источнику и кэшу.
func (s *Service) Compute(messages []domain.ChatMessage, variant domain.Variant) ([]domain.DateSection, error) {
	return s.compute("", messages, variant)
}

// Invalidate переводит чат на новое поколение и удаляет варианты прошлого.
func (s *Service) Invalidate(ctx context.Context, chatID string) error {
	_, err := s.invalidate(ctx, chatID)
	return err
}

func (s *Service) invalidate(ctx context.Context, chatID string) (int64, error) {
	if s.cache == nil {
		return 0, nil
	}
	generation, err := s.cache.Incr(ctx, GenerationKey(chatID))
	if err != nil {
		return 0, fmt.Errorf("смена поколения чата %s: %w", chatID, err)
	}
	variants := domain.AllVariants()
	keys := make([]string, 0, len(variants))
	for _, v := range variants {
		keys = append(keys, CacheKey(chatID, generation-1, v))
	}
	if err := s.cache.Delete(ctx, keys...); err != nil {
		return 0, fmt.Errorf("очистка кэша чата %s: %w", chatID, err)
	}
	return generation, nil
}

// Rebuild пересчитывает секции чата после изменения: старые варианты
// удаляются, затем заново считаются варианты из задачи.
func (s *Service) Rebuild(ctx context.Context, job domain.RebuildJob) error {
	if job.ChatID == "" {
		return errors.New("пустой chat_id в задаче пересчёта")
	}
	generation, err := s.invalidate(ctx, job.ChatID)
	if err != nil {
		return err
	}

	messages, err := s.source.ListChatMessages(ctx, job.ChatID)
	if err != nil {
		if errors.Is(err, domain.ErrChatNotFound) {
			s.log.Info().Str("chat_id", job.ChatID).Msg("чат не найден, кэш очищен")
			return nil
		}
		return fmt.Errorf("загрузка сообщений чата %s: %w", job.ChatID, err)
	}
	if s.cache == nil {
		return nil
	}

	variants := job.Variants
	if len(variants) == 0 {
		variants = s.settings.Warm
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.settings.Concurrency)
	for _, variant := range variants {
		g.Go(func() error {
			sections, err := s.compute(job.ChatID, messages, variant)
			if err != nil {
				return err
			}
			payload, err := json.Marshal(sections)
			if err != nil {
				return fmt.Errorf("marshal sections: %w", err)
			}
			if err := s.cache.Set(gctx, CacheKey(job.ChatID, generation, variant), payload, s.settings.CacheTTL); err != nil {
				return fmt.Errorf("запись кэша %s: %w", variant, err)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	s.log.Debug().
		Str("chat_id", job.ChatID).
		Str("job_id", job.ID).
		Int64("generation", generation).
		Int("variants", len(variants)).
		Int("messages", len(messages)).
		Msg("секции пересчитаны")
	return nil
}

func (s *Service) compute(chatID string, messages []domain.ChatMessage, variant domain.Variant) ([]domain.DateSection, error) {
	start := time.Now()
	sections, err := grouping.Build(messages, grouping.OptionsFor(variant, s.settings.Location))
	metrics.ObserveSectionsBuild(variant.String(), len(messages), start, err)
	if err != nil {
		if errors.Is(err, grouping.ErrDuplicateID) {
			metrics.DuplicateIDErrors.Inc()
		}
		return nil, err
	}

	if variant.ReplyMode == domain.ReplyModeAnswer {
		if dropped := grouping.DroppedReplies(messages); len(dropped) > 0 {
			metrics.DroppedRepliesTotal.Add(float64(len(dropped)))
			s.log.Debug().
				Str("chat_id", chatID).
				Strs("message_ids", grouping.IDs(dropped)).
				Msg("ответы без поста первого уровня не показаны")
		}
	}
	return sections, nil
}

// generation читает текущее поколение чата. Если кэш недоступен,
// второе значение false и результат не кэшируется.
func (s *Service) generation(ctx context.Context, chatID string) (int64, bool) {
	if s.cache == nil {
		return 0, false
	}
	raw, err := s.cache.Get(ctx, GenerationKey(chatID))
	if errors.Is(err, domain.ErrCacheMiss) {
		return 0, true
	}
	if err != nil {
		s.log.Warn().Err(err).Str("chat_id", chatID).Msg("чтение поколения чата")
		return 0, false
	}
	generation, err := strconv.ParseInt(string(raw), 10, 64)
	if err != nil {
		s.log.Warn().Err(err).Str("chat_id", chatID).Msg("битое поколение чата")
		return 0, false
	}
	return generation, true
}

func (s *Service) fromCache(ctx context.Context, key string) ([]domain.DateSection, bool) {
	if s.cache == nil {
		return nil, false
	}
	data, err := s.cache.Get(ctx, key)
	if err != nil {
		if !errors.Is(err, domain.ErrCacheMiss) {
			s.log.Warn().Err(err).Str("key", key).Msg("чтение кэша секций")
		}
		metrics.ObserveCache(false)
		return nil, false
	}
	var sections []domain.DateSection
	if err := json.Unmarshal(data, &sections); err != nil {
		s.log.Warn().Err(err).Str("key", key).Msg("битое значение в кэше секций")
		metrics.ObserveCache(false)
		return nil, false
	}
	metrics.ObserveCache(true)
	return sections, true
}

func (s *Service) store(ctx context.Context, key string, sections []domain.DateSection) {
	if s.cache == nil {
		return
	}
	payload, err := json.Marshal(sections)
	if err != nil {
		s.log.Warn().Err(err).Str("key", key).Msg("сериализация секций")
		return
	}
	if err := s.cache.Set(ctx, key, payload, s.settings.CacheTTL); err != nil {
		s.log.Warn().Err(err).Str("key", key).Msg("запись кэша секций")
	}
}
