package snapshot

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"chat-timeline/internal/domain"
)

const yamlSnapshot = `
chat_type: comments
reply_mode: answer
messages:
  - id: p1
    user: {id: u1, name: Анна}
    created_at: 2024-03-14T10:00:00Z
    text: пост
  - id: r1
    user: {id: u2}
    created_at: 2024-03-14T10:05:00Z
    reply_to_id: p1
    attachments:
      - {id: a1, thumbnail: t.jpg, full: f.jpg, type: image}
`

func TestDecodeYAMLSnapshot(t *testing.T) {
	snap, err := Decode(strings.NewReader(yamlSnapshot), FormatYAML)
	require.NoError(t, err)
	require.Len(t, snap.Messages, 2)

	assert.Equal(t, "Анна", snap.Messages[0].User.Name)
	assert.True(t, snap.Messages[0].CreatedAt.Equal(time.Date(2024, 3, 14, 10, 0, 0, 0, time.UTC)))
	parent, ok := snap.Messages[1].ParentID()
	require.True(t, ok)
	assert.Equal(t, "p1", parent)
	assert.Equal(t, domain.AttachmentImage, snap.Messages[1].Attachments[0].Type)

	v, err := snap.Variant(domain.Variant{ChatType: domain.ChatTypeConversation, ReplyMode: domain.ReplyModeQuote})
	require.NoError(t, err)
	assert.Equal(t, domain.ChatTypeComments, v.ChatType)
	assert.Equal(t, domain.ReplyModeAnswer, v.ReplyMode)
}

func TestDecodeBareLists(t *testing.T) {
	yamlList := "- id: m1\n  user: {id: u1}\n  created_at: 2024-03-14T10:00:00Z\n"
	snap, err := Decode(strings.NewReader(yamlList), FormatYAML)
	require.NoError(t, err)
	require.Len(t, snap.Messages, 1)

	jsonList := `[{"id":"m1","user":{"id":"u1"},"created_at":"2024-03-14T10:00:00Z"}]`
	snap, err = Decode(strings.NewReader(jsonList), FormatJSON)
	require.NoError(t, err)
	require.Len(t, snap.Messages, 1)
	assert.Equal(t, "u1", snap.Messages[0].UserID())
}

func TestSnapshotVariantFallback(t *testing.T) {
	fallback := domain.Variant{ChatType: domain.ChatTypeComments, ReplyMode: domain.ReplyModeAnswer}
	v, err := Snapshot{}.Variant(fallback)
	require.NoError(t, err)
	assert.Equal(t, fallback, v)

	_, err = Snapshot{ReplyMode: "thread"}.Variant(fallback)
	require.ErrorIs(t, err, domain.ErrUnknownReplyMode)
}

func TestFormatFromPath(t *testing.T) {
	assert.Equal(t, FormatJSON, FormatFromPath("chat.JSON"))
	assert.Equal(t, FormatYAML, FormatFromPath("chat.yml"))
	assert.Equal(t, FormatYAML, FormatFromPath("chat"))
}

func TestDirSource(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, "c1.yaml"), []byte(yamlSnapshot), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(root, "empty.json"), []byte(`{"messages":null}`), 0o600))
	src := NewDir(root)

	msgs, err := src.ListChatMessages(context.Background(), "c1")
	require.NoError(t, err)
	assert.Len(t, msgs, 2)

	msgs, err = src.ListChatMessages(context.Background(), "empty")
	require.NoError(t, err)
	assert.NotNil(t, msgs)
	assert.Empty(t, msgs)

	_, err = src.ListChatMessages(context.Background(), "missing")
	require.ErrorIs(t, err, domain.ErrChatNotFound)

	_, err = src.ListChatMessages(context.Background(), "../c1")
	require.ErrorIs(t, err, domain.ErrInvalidChatID)
}
