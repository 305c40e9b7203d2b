// Package snapshot читает снимки чатов из YAML и JSON файлов. Используется
// CLI и как источник сообщений без базы данных.
package snapshot

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"chat-timeline/internal/domain"
)

// Format задаёт формат файла снимка.
type Format string

const (
	FormatYAML Format = "yaml"
	FormatJSON Format = "json"
)

// FormatFromPath определяет формат по расширению. Неизвестные расширения читаются как YAML.
func FormatFromPath(path string) Format {
	if strings.EqualFold(filepath.Ext(path), ".json") {
		return FormatJSON
	}
	return FormatYAML
}

// Snapshot хранит содержимое файла: сообщения и, необязательно, вариант раскладки.
// Файл может быть и просто списком сообщений.
type Snapshot struct {
	ChatType  string               `json:"chat_type,omitempty" yaml:"chat_type,omitempty"`
	ReplyMode string               `json:"reply_mode,omitempty" yaml:"reply_mode,omitempty"`
	Messages  []domain.ChatMessage `json:"messages" yaml:"messages"`
}

// Variant разбирает вариант из файла, пустые поля берутся из fallback.
func (s Snapshot) Variant(fallback domain.Variant) (domain.Variant, error) {
	v := fallback
	if s.ChatType != "" {
		chatType, err := domain.ParseChatType(s.ChatType)
		if err != nil {
			return domain.Variant{}, err
		}
		v.ChatType = chatType
	}
	if s.ReplyMode != "" {
		replyMode, err := domain.ParseReplyMode(s.ReplyMode)
		if err != nil {
			return domain.Variant{}, err
		}
		v.ReplyMode = replyMode
	}
	return v, nil
}

// Decode читает снимок из r.
func Decode(r io.Reader, format Format) (Snapshot, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return Snapshot{}, fmt.Errorf("read snapshot: %w", err)
	}
	if format == FormatJSON {
		return decodeJSON(data)
	}
	return decodeYAML(data)
}

func decodeJSON(data []byte) (Snapshot, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) > 0 && trimmed[0] == '[' {
		var messages []domain.ChatMessage
		if err := json.Unmarshal(trimmed, &messages); err != nil {
			return Snapshot{}, fmt.Errorf("decode json snapshot: %w", err)
		}
		return Snapshot{Messages: messages}, nil
	}
	var snap Snapshot
	if err := json.Unmarshal(trimmed, &snap); err != nil {
		return Snapshot{}, fmt.Errorf("decode json snapshot: %w", err)
	}
	return snap, nil
}

func decodeYAML(data []byte) (Snapshot, error) {
	var root yaml.Node
	if err := yaml.Unmarshal(data, &root); err != nil {
		return Snapshot{}, fmt.Errorf("decode yaml snapshot: %w", err)
	}
	if len(root.Content) == 0 {
		return Snapshot{}, nil
	}
	doc := root.Content[0]
	if doc.Kind == yaml.SequenceNode {
		var messages []domain.ChatMessage
		if err := doc.Decode(&messages); err != nil {
			return Snapshot{}, fmt.Errorf("decode yaml snapshot: %w", err)
		}
		return Snapshot{Messages: messages}, nil
	}
	var snap Snapshot
	if err := doc.Decode(&snap); err != nil {
		return Snapshot{}, fmt.Errorf("decode yaml snapshot: %w", err)
	}
	return snap, nil
}

// LoadFile читает снимок с диска.
func LoadFile(path string) (Snapshot, error) {
	f, err := os.Open(path)
	if err != nil {
		return Snapshot{}, err
	}
	defer f.Close()
	return Decode(f, FormatFromPath(path))
}

// Dir читает сообщения из каталога, где каждый чат лежит в файле <chat_id>.yaml, .yml или .json.
type Dir struct {
	root string
}

var _ domain.MessageSource = (*Dir)(nil)

// NewDir создаёт источник поверх каталога.
func NewDir(root string) *Dir {
	return &Dir{root: root}
}

// ListChatMessages читает файл чата.
func (d *Dir) ListChatMessages(_ context.Context, chatID string) ([]domain.ChatMessage, error) {
	if chatID == "" || strings.ContainsAny(chatID, `/\`) || chatID == "." || chatID == ".." {
		return nil, fmt.Errorf("%w: %q", domain.ErrInvalidChatID, chatID)
	}
	for _, ext := range []string{".yaml", ".yml", ".json"} {
		snap, err := LoadFile(filepath.Join(d.root, chatID+ext))
		if errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err != nil {
			return nil, err
		}
		if snap.Messages == nil {
			return []domain.ChatMessage{}, nil
		}
		return snap.Messages, nil
	}
	return nil, domain.ErrChatNotFound
}
