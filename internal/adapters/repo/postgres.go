package repo

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"chat-timeline/internal/domain"
	"chat-timeline/internal/infra/metrics"
)

// Postgres читает снимки чатов из таблиц chats, chat_users и chat_messages.
// Адаптер ничего не пишет: сообщения сохраняет другой сервис.
type Postgres struct {
	pool *pgxpool.Pool
}

var _ domain.MessageSource = (*Postgres)(nil)

// NewPostgres создаёт адаптер БД.
func NewPostgres(pool *pgxpool.Pool) *Postgres {
	return &Postgres{pool: pool}
}

func (p *Postgres) connCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	if _, ok := ctx.Deadline(); ok {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, 5*time.Second)
}

// ListChatMessages возвращает все сообщения чата. Превью цитаты собирается
// из родительского сообщения того же снимка.
func (p *Postgres) ListChatMessages(ctx context.Context, chatID string) ([]domain.ChatMessage, error) {
	ctx, cancel := p.connCtx(ctx)
	defer cancel()

	start := time.Now()
	rows, err := p.pool.Query(ctx, `
SELECT m.id, m.user_id, u.name, u.avatar_url, m.status, m.created_at, m.text, m.attachments, m.recording, m.reply_to_id, m.links
FROM chat_messages m
JOIN chat_users u ON u.id = m.user_id
WHERE m.chat_id = $1
ORDER BY m.created_at, m.id
`, chatID)
	metrics.ObserveNetworkRequest("postgres", "chat_messages_list", "chat_messages", start, err)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var messages []domain.ChatMessage
	for rows.Next() {
		var (
			m           domain.ChatMessage
			name        sql.NullString
			avatarURL   sql.NullString
			status      sql.NullString
			text        sql.NullString
			attachments []byte
			recording   []byte
			links       []byte
		)
		if err := rows.Scan(&m.ID, &m.User.ID, &name, &avatarURL, &status, &m.CreatedAt, &text, &attachments, &recording, &m.ReplyToID, &links); err != nil {
			return nil, err
		}
		m.User.Name = name.String
		m.User.AvatarURL = avatarURL.String
		m.Status = domain.MessageStatus(status.String)
		m.Text = text.String
		if err := decodeJSON(attachments, &m.Attachments); err != nil {
			return nil, fmt.Errorf("decode attachments of %s: %w", m.ID, err)
		}
		if len(recording) > 0 {
			var rec domain.Recording
			if err := json.Unmarshal(recording, &rec); err != nil {
				return nil, fmt.Errorf("decode recording of %s: %w", m.ID, err)
			}
			m.Recording = &rec
		}
		if err := decodeJSON(links, &m.Links); err != nil {
			return nil, fmt.Errorf("decode links of %s: %w", m.ID, err)
		}
		messages = append(messages, m)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	if len(messages) == 0 {
		exists, err := p.chatExists(ctx, chatID)
		if err != nil {
			return nil, err
		}
		if !exists {
			return nil, domain.ErrChatNotFound
		}
		return []domain.ChatMessage{}, nil
	}
	attachReplyPreviews(messages)
	return messages, nil
}

func (p *Postgres) chatExists(ctx context.Context, chatID string) (bool, error) {
	start := time.Now()
	var exists bool
	err := p.pool.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM chats WHERE id = $1)`, chatID).Scan(&exists)
	metrics.ObserveNetworkRequest("postgres", "chats_exists", "chats", start, err)
	return exists, err
}

func decodeJSON(raw []byte, dst any) error {
	if len(raw) == 0 {
		return nil
	}
	return json.Unmarshal(raw, dst)
}

// attachReplyPreviews заполняет ReplyMessage для ответов, чей родитель есть в снимке.
func attachReplyPreviews(messages []domain.ChatMessage) {
	byID := make(map[string]int, len(messages))
	for i, m := range messages {
		byID[m.ID] = i
	}
	for i := range messages {
		if messages[i].ReplyToID == nil || messages[i].ReplyMessage != nil {
			continue
		}
		idx, ok := byID[*messages[i].ReplyToID]
		if !ok {
			continue
		}
		preview := messages[idx].ToReplyMessage()
		messages[i].ReplyMessage = &preview
	}
}
