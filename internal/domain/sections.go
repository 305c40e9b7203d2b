package domain

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

var (
	// ErrUnknownChatType возвращается при разборе неизвестного типа чата.
	ErrUnknownChatType  = errors.New("unknown chat type")
	// ErrUnknownReplyMode возвращается при разборе неизвестного режима ответов.
	ErrUnknownReplyMode = errors.New("unknown reply mode")
)

// ChatType определяет, где находится самое свежее сообщение.
type ChatType string

const (
	// ChatTypeConversation: поле ввода и последнее сообщение внизу.
	ChatTypeConversation ChatType = "conversation"
	// ChatTypeComments: поле ввода и последнее сообщение сверху.
	ChatTypeComments ChatType = "comments"
)

// ParseChatType разбирает тип чата. Старое имя "chat" означает conversation.
func ParseChatType(raw string) (ChatType, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "", "conversation", "chat":
		return ChatTypeConversation, nil
	case "comments":
		return ChatTypeComments, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownChatType, raw)
}

// ReplyMode определяет, как показываются ответы.
type ReplyMode string

const (
	// ReplyModeQuote: ответ стоит на своём месте и цитирует родителя.
	ReplyModeQuote ReplyMode = "quote"
	// ReplyModeAnswer: ответы собираются сразу за родительским постом.
	ReplyModeAnswer ReplyMode = "answer"
)

// ParseReplyMode разбирает режим ответов.
func ParseReplyMode(raw string) (ReplyMode, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "", "quote":
		return ReplyModeQuote, nil
	case "answer":
		return ReplyModeAnswer, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownReplyMode, raw)
}

// Variant задаёт пару настроек, от которых зависит раскладка.
type Variant struct {
	ChatType  ChatType  `json:"chat_type"`
	ReplyMode ReplyMode `json:"reply_mode"`
}

// String используется в ключах кэша и метках метрик.
func (v Variant) String() string {
	return string(v.ChatType) + ":" + string(v.ReplyMode)
}

// AllVariants перечисляет все сочетания типа чата и режима ответов.
func AllVariants() []Variant {
	return []Variant{
		{ChatType: ChatTypeConversation, ReplyMode: ReplyModeQuote},
		{ChatType: ChatTypeConversation, ReplyMode: ReplyModeAnswer},
		{ChatType: ChatTypeComments, ReplyMode: ReplyModeQuote},
		{ChatType: ChatTypeComments, ReplyMode: ReplyModeAnswer},
	}
}

// PositionInGroup описывает место сообщения в серии подряд идущих сообщений одного автора.
type PositionInGroup string

const (
	PositionFirst  PositionInGroup = "first"
	PositionMiddle PositionInGroup = "middle"
	PositionLast   PositionInGroup = "last"
	PositionSingle PositionInGroup = "single"
)

// PositionInCommentsGroup описывает место сообщения в ветке комментариев (режим answer).
type PositionInCommentsGroup string

const (
	CommentsSingleFirstLevelPost       PositionInCommentsGroup = "singleFirstLevelPost"
	CommentsFirstLevelPost             PositionInCommentsGroup = "firstLevelPost"
	CommentsLastComment                PositionInCommentsGroup = "lastComment"
	CommentsFirstComment               PositionInCommentsGroup = "firstComment"
	CommentsMiddleComment              PositionInCommentsGroup = "middleComment"
	CommentsLatestFirstLevelPost       PositionInCommentsGroup = "latestFirstLevelPost"
	CommentsLatestCommentInLatestGroup PositionInCommentsGroup = "latestCommentInLatestGroup"
)

// MessageRow хранит сообщение вместе с вычисленной позицией для отрисовки.
type MessageRow struct {
	Message                 ChatMessage              `json:"message"`
	PositionInGroup         PositionInGroup          `json:"position_in_group"`
	PositionInCommentsGroup *PositionInCommentsGroup `json:"position_in_comments_group,omitempty"`
}

// DateSection группирует строки одного календарного дня.
type DateSection struct {
	Date time.Time    `json:"date"`
	Rows []MessageRow `json:"rows"`
}
