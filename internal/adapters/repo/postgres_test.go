package repo

import (
	"testing"
	"time"

	"chat-timeline/internal/domain"
)

func TestAttachReplyPreviews(t *testing.T) {
	parentID := "m1"
	missing := "gone"
	base := time.Date(2024, 3, 14, 10, 0, 0, 0, time.UTC)
	messages := []domain.ChatMessage{
		{ID: "m1", User: domain.User{ID: "u1", Name: "Анна"}, CreatedAt: base, Text: "привет"},
		{ID: "m2", User: domain.User{ID: "u2"}, CreatedAt: base.Add(time.Minute), ReplyToID: &parentID},
		{ID: "m3", User: domain.User{ID: "u2"}, CreatedAt: base.Add(2 * time.Minute), ReplyToID: &missing},
	}

	attachReplyPreviews(messages)

	if messages[0].ReplyMessage != nil {
		t.Fatalf("у поста первого уровня не должно быть цитаты")
	}
	preview := messages[1].ReplyMessage
	if preview == nil {
		t.Fatalf("ожидали превью цитаты")
	}
	if preview.ID != "m1" || preview.Text != "привет" || preview.User.Name != "Анна" {
		t.Fatalf("неожиданное превью %+v", preview)
	}
	if messages[2].ReplyMessage != nil {
		t.Fatalf("для отсутствующего родителя превью не строится")
	}
	if id, ok := messages[2].ParentID(); !ok || id != "gone" {
		t.Fatalf("ответ должен сохранить ссылку на родителя, получили %q", id)
	}
}

func TestDecodeJSONEmpty(t *testing.T) {
	var links []string
	if err := decodeJSON(nil, &links); err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	if err := decodeJSON([]byte(`["https://example.com"]`), &links); err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	if len(links) != 1 {
		t.Fatalf("ожидали одну ссылку, получили %d", len(links))
	}
}
