package httpapi

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	chi "github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"chat-timeline/internal/domain"
	"chat-timeline/internal/usecase/grouping"
)

type stubService struct {
	chats       map[string][]domain.ChatMessage
	lastVariant domain.Variant
	invalidated []string
	rebuilt     []domain.RebuildJob
}

func (s *stubService) Sections(_ context.Context, chatID string, variant domain.Variant) ([]domain.DateSection, error) {
	s.lastVariant = variant
	msgs, ok := s.chats[chatID]
	if !ok {
		return nil, domain.ErrChatNotFound
	}
	return s.Compute(msgs, variant)
}

func (s *stubService) Compute(messages []domain.ChatMessage, variant domain.Variant) ([]domain.DateSection, error) {
	s.lastVariant = variant
	return grouping.Build(messages, grouping.OptionsFor(variant, time.UTC))
}

func (s *stubService) Invalidate(_ context.Context, chatID string) error {
	s.invalidated = append(s.invalidated, chatID)
	return nil
}

func (s *stubService) Rebuild(_ context.Context, job domain.RebuildJob) error {
	s.rebuilt = append(s.rebuilt, job)
	return nil
}

type stubQueue struct {
	jobs []domain.RebuildJob
}

func (q *stubQueue) Enqueue(_ context.Context, job domain.RebuildJob) error {
	q.jobs = append(q.jobs, job)
	return nil
}

func (q *stubQueue) Receive(ctx context.Context) (domain.RebuildJob, domain.RebuildAckFunc, error) {
	<-ctx.Done()
	return domain.RebuildJob{}, nil, ctx.Err()
}

var defaults = domain.Variant{ChatType: domain.ChatTypeConversation, ReplyMode: domain.ReplyModeQuote}

func chatFixture() []domain.ChatMessage {
	base := time.Date(2024, 3, 14, 10, 0, 0, 0, time.UTC)
	parent := "p1"
	return []domain.ChatMessage{
		{ID: "p1", User: domain.User{ID: "u1"}, CreatedAt: base},
		{ID: "r1", User: domain.User{ID: "u2"}, CreatedAt: base.Add(time.Minute), ReplyToID: &parent},
	}
}

func newRouter(svc domain.SectionService, queue domain.RebuildQueue) http.Handler {
	r := chi.NewRouter()
	NewHandler(svc, queue, defaults, zerolog.Nop()).Mount(r)
	return r
}

func do(t *testing.T, h http.Handler, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, target, nil)
	} else {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestChatSections(t *testing.T) {
	svc := &stubService{chats: map[string][]domain.ChatMessage{"c1": chatFixture()}}
	h := newRouter(svc, nil)

	rec := do(t, h, http.MethodGet, "/api/v1/chats/c1/sections?chat_type=comments&reply_mode=answer", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var resp sectionsResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "c1", resp.ChatID)
	assert.Equal(t, domain.ChatTypeComments, resp.ChatType)
	require.Len(t, resp.Sections, 1)
	require.Len(t, resp.Sections[0].Rows, 2)
	assert.Equal(t, "p1", resp.Sections[0].Rows[0].Message.ID)
	require.NotNil(t, resp.Sections[0].Rows[0].PositionInCommentsGroup)
	assert.Equal(t, domain.CommentsFirstLevelPost, *resp.Sections[0].Rows[0].PositionInCommentsGroup)
}

func TestChatSectionsDefaults(t *testing.T) {
	svc := &stubService{chats: map[string][]domain.ChatMessage{"c1": chatFixture()}}
	h := newRouter(svc, nil)

	rec := do(t, h, http.MethodGet, "/api/v1/chats/c1/sections", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, defaults, svc.lastVariant)
	assert.NotContains(t, rec.Body.String(), "position_in_comments_group")
}

func TestChatSectionsErrors(t *testing.T) {
	svc := &stubService{chats: map[string][]domain.ChatMessage{}}
	h := newRouter(svc, nil)

	rec := do(t, h, http.MethodGet, "/api/v1/chats/missing/sections", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = do(t, h, http.MethodGet, "/api/v1/chats/c1/sections?chat_type=forum", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "unknown chat type")
}

func TestComputeSections(t *testing.T) {
	h := newRouter(&stubService{}, nil)

	body := `{"chat_type":"chat","reply_mode":"quote","messages":[
		{"id":"m1","user":{"id":"u1"},"created_at":"2024-03-14T10:00:00Z"},
		{"id":"m2","user":{"id":"u1"},"created_at":"2024-03-14T10:01:00Z"}]}`
	rec := do(t, h, http.MethodPost, "/api/v1/sections", body)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp sectionsResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, domain.ChatTypeConversation, resp.ChatType)
	require.Len(t, resp.Sections, 1)
	assert.Equal(t, "m2", resp.Sections[0].Rows[0].Message.ID)
}

func TestComputeSectionsEmpty(t *testing.T) {
	h := newRouter(&stubService{}, nil)

	rec := do(t, h, http.MethodPost, "/api/v1/sections", `{"messages":[]}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"chat_type":"conversation","reply_mode":"quote","sections":[]}`, rec.Body.String())
}

func TestComputeSectionsDuplicateIDs(t *testing.T) {
	h := newRouter(&stubService{}, nil)

	body := `{"messages":[
		{"id":"m1","user":{"id":"u1"},"created_at":"2024-03-14T10:00:00Z"},
		{"id":"m1","user":{"id":"u2"},"created_at":"2024-03-14T10:01:00Z"}]}`
	rec := do(t, h, http.MethodPost, "/api/v1/sections", body)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Contains(t, rec.Body.String(), "duplicate ids")
}

func TestComputeSectionsBadBody(t *testing.T) {
	h := newRouter(&stubService{}, nil)

	rec := do(t, h, http.MethodPost, "/api/v1/sections", `{"messages":`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRebuildEnqueuesJob(t *testing.T) {
	queue := &stubQueue{}
	h := newRouter(&stubService{}, queue)

	rec := do(t, h, http.MethodPost, "/api/v1/chats/c1/rebuild", `{"variants":[{"chat_type":"comments","reply_mode":"answer"}]}`)
	require.Equal(t, http.StatusAccepted, rec.Code)
	require.Len(t, queue.jobs, 1)

	job := queue.jobs[0]
	assert.Equal(t, "c1", job.ChatID)
	assert.Equal(t, domain.RebuildCauseManual, job.Cause)
	assert.NotEmpty(t, job.ID)
	assert.Equal(t, []domain.Variant{{ChatType: domain.ChatTypeComments, ReplyMode: domain.ReplyModeAnswer}}, job.Variants)

	var resp rebuildResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, job.ID, resp.JobID)
	assert.Equal(t, "queued", resp.Status)
}

func TestRebuildInlineWithoutQueue(t *testing.T) {
	svc := &stubService{}
	h := newRouter(svc, nil)

	rec := do(t, h, http.MethodPost, "/api/v1/chats/c1/rebuild", "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Len(t, svc.rebuilt, 1)
	assert.Equal(t, "c1", svc.rebuilt[0].ChatID)
	assert.Empty(t, svc.rebuilt[0].Variants)
}

func TestRebuildEmptyChunkedBody(t *testing.T) {
	queue := &stubQueue{}
	h := newRouter(&stubService{}, queue)

	// обёртка скрывает длину тела, как у chunked-запроса
	req := httptest.NewRequest(http.MethodPost, "/api/v1/chats/c1/rebuild", struct{ io.Reader }{strings.NewReader("")})
	require.EqualValues(t, -1, req.ContentLength)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	require.Equal(t, http.StatusAccepted, rec.Code)
	require.Len(t, queue.jobs, 1)
	assert.Empty(t, queue.jobs[0].Variants)
}

func TestRebuildBadBody(t *testing.T) {
	queue := &stubQueue{}
	h := newRouter(&stubService{}, queue)

	rec := do(t, h, http.MethodPost, "/api/v1/chats/c1/rebuild", `{"variants":`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Empty(t, queue.jobs)
}

func TestInvalidate(t *testing.T) {
	svc := &stubService{}
	h := newRouter(svc, nil)

	rec := do(t, h, http.MethodDelete, "/api/v1/chats/c1/sections", "")
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, []string{"c1"}, svc.invalidated)
}
