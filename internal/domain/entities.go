package domain

import "time"

// User описывает автора сообщения.
type User struct {
	ID            string `json:"id" yaml:"id"`
	Name          string `json:"name,omitempty" yaml:"name,omitempty"`
	AvatarURL     string `json:"avatar_url,omitempty" yaml:"avatar_url,omitempty"`
	IsCurrentUser bool   `json:"is_current_user,omitempty" yaml:"is_current_user,omitempty"`
}

// AttachmentType описывает тип вложения.
type AttachmentType string

const (
	AttachmentImage AttachmentType = "image"
	AttachmentVideo AttachmentType = "video"
	AttachmentFiles AttachmentType = "files"
)

// Title возвращает человекочитаемое название типа.
func (t AttachmentType) Title() string {
	switch t {
	case AttachmentImage:
		return "Image"
	case AttachmentVideo:
		return "Video"
	default:
		return "Files"
	}
}

// Attachment описывает файл, прикреплённый к сообщению.
type Attachment struct {
	ID        string         `json:"id" yaml:"id"`
	Thumbnail string         `json:"thumbnail" yaml:"thumbnail"`
	Full      string         `json:"full" yaml:"full"`
	Type      AttachmentType `json:"type" yaml:"type"`
}

// Recording описывает голосовое сообщение.
type Recording struct {
	Duration        float64   `json:"duration" yaml:"duration"`
	WaveformSamples []float64 `json:"waveform_samples,omitempty" yaml:"waveform_samples,omitempty"`
	URL             string    `json:"url,omitempty" yaml:"url,omitempty"`
}

// MessageStatus описывает статус доставки сообщения.
type MessageStatus string

const (
	StatusSending MessageStatus = "sending"
	StatusSent    MessageStatus = "sent"
	StatusRead    MessageStatus = "read"
	StatusError   MessageStatus = "error"
)

// ReplyMessage описывает превью цитируемого сообщения.
type ReplyMessage struct {
	ID          string       `json:"id" yaml:"id"`
	User        User         `json:"user" yaml:"user"`
	CreatedAt   time.Time    `json:"created_at" yaml:"created_at"`
	Text        string       `json:"text,omitempty" yaml:"text,omitempty"`
	Attachments []Attachment `json:"attachments,omitempty" yaml:"attachments,omitempty"`
	Recording   *Recording   `json:"recording,omitempty" yaml:"recording,omitempty"`
}

// ChatMessage представляет одно сообщение чата. Внутри снимка сообщения не меняются.
type ChatMessage struct {
	ID           string        `json:"id" yaml:"id"`
	User         User          `json:"user" yaml:"user"`
	Status       MessageStatus `json:"status,omitempty" yaml:"status,omitempty"`
	CreatedAt    time.Time     `json:"created_at" yaml:"created_at"`
	Text         string        `json:"text,omitempty" yaml:"text,omitempty"`
	Attachments  []Attachment  `json:"attachments,omitempty" yaml:"attachments,omitempty"`
	Recording    *Recording    `json:"recording,omitempty" yaml:"recording,omitempty"`
	ReplyMessage *ReplyMessage `json:"reply_message,omitempty" yaml:"reply_message,omitempty"`
	ReplyToID    *string       `json:"reply_to_id,omitempty" yaml:"reply_to_id,omitempty"`
	Links        []string      `json:"links,omitempty" yaml:"links,omitempty"`
}

// UserID возвращает идентификатор автора.
func (m ChatMessage) UserID() string {
	return m.User.ID
}

// ParentID возвращает идентификатор сообщения, на которое отвечает m.
// Если ReplyToID не задан, используется идентификатор встроенной цитаты.
func (m ChatMessage) ParentID() (string, bool) {
	if m.ReplyToID != nil {
		return *m.ReplyToID, true
	}
	if m.ReplyMessage != nil {
		return m.ReplyMessage.ID, true
	}
	return "", false
}

// IsFirstLevel сообщает, что сообщение ни на что не отвечает.
func (m ChatMessage) IsFirstLevel() bool {
	_, ok := m.ParentID()
	return !ok
}

// ToReplyMessage строит превью для ответа на сообщение.
func (m ChatMessage) ToReplyMessage() ReplyMessage {
	return ReplyMessage{
		ID:          m.ID,
		User:        m.User,
		CreatedAt:   m.CreatedAt,
		Text:        m.Text,
		Attachments: m.Attachments,
		Recording:   m.Recording,
	}
}
