// Package grouping раскладывает плоский список сообщений чата по дням
// и вычисляет позицию каждой строки для отрисовки.
//
// Движок не хранит состояния и не меняет входные данные: его можно
// вызывать конкурентно и пересчитывать на каждое изменение списка.
package grouping

import (
	"errors"
	"fmt"
	"time"

	"chat-timeline/internal/domain"
)

// ErrDuplicateID возвращается, если во входном списке повторяется идентификатор.
var ErrDuplicateID = errors.New("messages can not have duplicate ids")

// Options задаёт вариант раскладки.
type Options struct {
	ChatType  domain.ChatType
	ReplyMode domain.ReplyMode
	// Location задаёт календарь для разбиения по дням. По умолчанию time.Local.
	Location *time.Location
}

// OptionsFor собирает Options из варианта и часового пояса.
func OptionsFor(variant domain.Variant, loc *time.Location) Options {
	return Options{ChatType: variant.ChatType, ReplyMode: variant.ReplyMode, Location: loc}
}

func (o Options) normalized() Options {
	if o.ChatType == "" {
		o.ChatType = domain.ChatTypeConversation
	}
	if o.ReplyMode == "" {
		o.ReplyMode = domain.ReplyModeQuote
	}
	if o.Location == nil {
		o.Location = time.Local
	}
	return o
}

// Build раскладывает сообщения по секциям. Секции идут от нового дня к старому,
// строки внутри секции от нового сообщения к старому.
func Build(messages []domain.ChatMessage, opts Options) ([]domain.DateSection, error) {
	if err := checkUniqueIDs(messages); err != nil {
		return nil, err
	}
	opts = opts.normalized()

	ordered := chronological(messages)
	if opts.ReplyMode == domain.ReplyModeAnswer {
		return buildAnswerSections(ordered, opts), nil
	}
	return buildQuoteSections(ordered, opts), nil
}

// MustBuild работает как Build, но паникует на повторяющихся идентификаторах.
func MustBuild(messages []domain.ChatMessage, opts Options) []domain.DateSection {
	sections, err := Build(messages, opts)
	if err != nil {
		panic(err)
	}
	return sections
}

func checkUniqueIDs(messages []domain.ChatMessage) error {
	seen := make(map[string]struct{}, len(messages))
	for _, m := range messages {
		if _, ok := seen[m.ID]; ok {
			return fmt.Errorf("%w: %q", ErrDuplicateID, m.ID)
		}
		seen[m.ID] = struct{}{}
	}
	return nil
}

func buildQuoteSections(ordered []domain.ChatMessage, opts Options) []domain.DateSection {
	buckets := bucketByDay(ordered, opts.Location)
	sections := make([]domain.DateSection, 0, len(buckets))
	for _, b := range buckets {
		sections = append(sections, domain.DateSection{
			Date: b.day,
			Rows: annotate(b.messages, opts.ChatType, false),
		})
	}
	return sections
}

func buildAnswerSections(ordered []domain.ChatMessage, opts Options) []domain.DateSection {
	firstLevel, replies := splitTopology(ordered)
	buckets := bucketByDay(firstLevel, opts.Location)
	sections := make([]domain.DateSection, 0, len(buckets))
	for _, b := range buckets {
		dayMessages := interleaveReplies(b.messages, replies, opts.ChatType)
		sections = append(sections, domain.DateSection{
			Date: b.day,
			Rows: annotate(dayMessages, opts.ChatType, true),
		})
	}
	return sections
}
