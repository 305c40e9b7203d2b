package grouping

import (
	"sort"
	"time"

	"chat-timeline/internal/domain"
)

type dayBucket struct {
	day      time.Time
	messages []domain.ChatMessage
}

// StartOfDay возвращает начало календарного дня t в часовом поясе loc.
func StartOfDay(t time.Time, loc *time.Location) time.Time {
	if loc == nil {
		loc = time.Local
	}
	y, m, d := t.In(loc).Date()
	return time.Date(y, m, d, 0, 0, 0, 0, loc)
}

// chronological возвращает копию, упорядоченную по CreatedAt.
// При равном времени сохраняется входной порядок.
func chronological(messages []domain.ChatMessage) []domain.ChatMessage {
	out := make([]domain.ChatMessage, len(messages))
	copy(out, messages)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out
}

// bucketByDay раскладывает упорядоченные сообщения по дням, новый день первым.
func bucketByDay(messages []domain.ChatMessage, loc *time.Location) []dayBucket {
	index := make(map[int64]int)
	var buckets []dayBucket
	for _, m := range messages {
		day := StartOfDay(m.CreatedAt, loc)
		key := day.Unix()
		pos, ok := index[key]
		if !ok {
			pos = len(buckets)
			index[key] = pos
			buckets = append(buckets, dayBucket{day: day})
		}
		buckets[pos].messages = append(buckets[pos].messages, m)
	}
	sort.Slice(buckets, func(i, j int) bool {
		return buckets[i].day.After(buckets[j].day)
	})
	return buckets
}
