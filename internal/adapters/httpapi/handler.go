// Package httpapi публикует раскладку чатов по HTTP.
package httpapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	chi "github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"chat-timeline/internal/domain"
	httpinfra "chat-timeline/internal/infra/http"
	"chat-timeline/internal/usecase/grouping"
)

const maxBodyBytes = 8 << 20

// Handler обслуживает /api/v1.
type Handler struct {
	svc      domain.SectionService
	queue    domain.RebuildQueue
	defaults domain.Variant
	log      zerolog.Logger
}

// NewHandler создаёт обработчик. Если queue равна nil, пересчёт выполняется синхронно.
func NewHandler(svc domain.SectionService, queue domain.RebuildQueue, defaults domain.Variant, log zerolog.Logger) *Handler {
	return &Handler{svc: svc, queue: queue, defaults: defaults, log: log}
}

// Mount регистрирует маршруты.
func (h *Handler) Mount(r chi.Router) {
	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/sections", h.computeSections)
		r.Route("/chats/{chatID}", func(r chi.Router) {
			r.Get("/sections", h.chatSections)
			r.Delete("/sections", h.invalidate)
			r.Post("/rebuild", h.rebuild)
		})
	})
}

type sectionsResponse struct {
	ChatID    string               `json:"chat_id,omitempty"`
	ChatType  domain.ChatType      `json:"chat_type"`
	ReplyMode domain.ReplyMode     `json:"reply_mode"`
	Sections  []domain.DateSection `json:"sections"`
}

type computeRequest struct {
	ChatType  string               `json:"chat_type"`
	ReplyMode string               `json:"reply_mode"`
	Messages  []domain.ChatMessage `json:"messages"`
}

type rebuildRequest struct {
	Variants []struct {
		ChatType  string `json:"chat_type"`
		ReplyMode string `json:"reply_mode"`
	} `json:"variants"`
}

type rebuildResponse struct {
	JobID  string `json:"job_id"`
	Status string `json:"status"`
}

func (h *Handler) chatSections(w http.ResponseWriter, r *http.Request) {
	chatID := chi.URLParam(r, "chatID")
	variant, err := h.variant(r.URL.Query().Get("chat_type"), r.URL.Query().Get("reply_mode"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	sections, err := h.svc.Sections(r.Context(), chatID, variant)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httpinfra.WriteJSON(w, http.StatusOK, newSectionsResponse(chatID, variant, sections))
}

func (h *Handler) computeSections(w http.ResponseWriter, r *http.Request) {
	var req computeRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req); err != nil {
		httpinfra.WriteError(w, r, http.StatusBadRequest, fmt.Errorf("некорректное тело запроса: %w", err))
		return
	}
	variant, err := h.variant(req.ChatType, req.ReplyMode)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	sections, err := h.svc.Compute(req.Messages, variant)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httpinfra.WriteJSON(w, http.StatusOK, newSectionsResponse("", variant, sections))
}

func (h *Handler) invalidate(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.Invalidate(r.Context(), chi.URLParam(r, "chatID")); err != nil {
		h.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) rebuild(w http.ResponseWriter, r *http.Request) {
	// тело необязательно; длина может быть неизвестна (chunked)
	var req rebuildRequest
	err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req)
	if err != nil && !errors.Is(err, io.EOF) {
		httpinfra.WriteError(w, r, http.StatusBadRequest, fmt.Errorf("некорректное тело запроса: %w", err))
		return
	}
	job := domain.RebuildJob{
		ID:          uuid.NewString(),
		ChatID:      chi.URLParam(r, "chatID"),
		RequestedAt: time.Now().UTC(),
		Cause:       domain.RebuildCauseManual,
	}
	for _, v := range req.Variants {
		variant, err := h.variant(v.ChatType, v.ReplyMode)
		if err != nil {
			h.fail(w, r, err)
			return
		}
		job.Variants = append(job.Variants, variant)
	}

	if h.queue == nil {
		if err := h.svc.Rebuild(r.Context(), job); err != nil {
			h.fail(w, r, err)
			return
		}
		httpinfra.WriteJSON(w, http.StatusOK, rebuildResponse{JobID: job.ID, Status: "done"})
		return
	}
	if err := h.queue.Enqueue(r.Context(), job); err != nil {
		h.fail(w, r, err)
		return
	}
	h.log.Info().Str("chat_id", job.ChatID).Str("job_id", job.ID).Msg("пересчёт поставлен в очередь")
	httpinfra.WriteJSON(w, http.StatusAccepted, rebuildResponse{JobID: job.ID, Status: "queued"})
}

// variant разбирает параметры, пустые значения берутся из настроек по умолчанию.
func (h *Handler) variant(chatType, replyMode string) (domain.Variant, error) {
	v := h.defaults
	if chatType != "" {
		parsed, err := domain.ParseChatType(chatType)
		if err != nil {
			return domain.Variant{}, err
		}
		v.ChatType = parsed
	}
	if replyMode != "" {
		parsed, err := domain.ParseReplyMode(replyMode)
		if err != nil {
			return domain.Variant{}, err
		}
		v.ReplyMode = parsed
	}
	return v, nil
}

func (h *Handler) fail(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		h.log.Error().Err(err).Str("request_id", httpinfra.RequestID(r)).Str("path", r.URL.Path).Msg("ошибка обработки запроса")
	}
	httpinfra.WriteError(w, r, status, err)
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrUnknownChatType),
		errors.Is(err, domain.ErrUnknownReplyMode),
		errors.Is(err, domain.ErrInvalidChatID):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrChatNotFound):
		return http.StatusNotFound
	case errors.Is(err, grouping.ErrDuplicateID):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

func newSectionsResponse(chatID string, variant domain.Variant, sections []domain.DateSection) sectionsResponse {
	if sections == nil {
		sections = []domain.DateSection{}
	}
	return sectionsResponse{ChatID: chatID, ChatType: variant.ChatType, ReplyMode: variant.ReplyMode, Sections: sections}
}
