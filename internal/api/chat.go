package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/procureflow/procureflow/internal/assistant"
	"github.com/procureflow/procureflow/internal/chatstore"
	"github.com/procureflow/procureflow/internal/log"
	"github.com/procureflow/procureflow/internal/message"
)

const maxChatBody = 1 << 20

// recentWindow splits conversation listings into recent and older.
const recentWindow = 7 * 24 * time.Hour

// chatHandler serves the conversation endpoints. A nil agent means
// the provider API key is missing; sending then fails per request
// instead of at startup.
type chatHandler struct {
	agent  *assistant.Agent
	store  *chatstore.Store
	logger log.Logger
}

type sendRequest struct {
	ID      string          `json:"id"`
	Message message.Message `json:"message"`
}

// send serves POST /api/chat: it streams the assistant response as
// SSE part events. Duplicates answer 204 with no stream.
func (h *chatHandler) send(w http.ResponseWriter, r *http.Request) {
	if h.agent == nil {
		writeError(w, http.StatusInternalServerError, "missing_api_key",
			"Server not configured: missing API key", h.logger)
		return
	}

	var req sendRequest
	if err := decodeJSON(r, &req, maxChatBody); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_body", "invalid request body", h.logger)
		return
	}
	if req.ID == "" {
		writeError(w, http.StatusBadRequest, "missing_chat_id", "chat id is required", h.logger)
		return
	}

	// The SSE stream opens lazily on the first event so duplicate and
	// not-found cases can still answer with plain status codes.
	var (
		sw     *sseWriter
		sseErr error
	)
	emit := func(ev message.Event) error {
		if sseErr != nil {
			return sseErr
		}
		if sw == nil {
			sw, sseErr = newSSEWriter(w)
			if sseErr != nil {
				return sseErr
			}
		}
		return sw.writeEvent(ev)
	}

	// Generation and persistence continue even if the client goes
	// away mid-stream.
	ctx := context.WithoutCancel(r.Context())
	err := h.agent.Send(ctx, req.ID, req.Message, emit)
	switch {
	case err == nil:
	case errors.Is(err, assistant.ErrDuplicate):
		w.WriteHeader(http.StatusNoContent)
	case errors.Is(err, chatstore.ErrNotFound), errors.Is(err, chatstore.ErrInvalidID):
		writeError(w, http.StatusNotFound, "chat_not_found", "chat not found", h.logger)
	case errors.Is(err, assistant.ErrRateLimited):
		w.Header().Set("Retry-After", "1")
		writeError(w, http.StatusTooManyRequests, "rate_limited", "too many requests", h.logger)
	default:
		h.logger.Error("chat send failed", "chat_id", req.ID, "error", err)
		if sw == nil {
			writeError(w, http.StatusInternalServerError, "chat_failed", "failed to generate response", h.logger)
		}
		// Streaming already started: the error event has been sent.
	}
}

// create serves POST /api/chat/create.
func (h *chatHandler) create(w http.ResponseWriter, r *http.Request) {
	id, err := h.store.Create(r.Context())
	if err != nil {
		h.logger.Error("creating chat failed", "error", err)
		writeError(w, http.StatusInternalServerError, "create_failed", "failed to create chat", h.logger)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"id": id}, h.logger)
}

// get serves GET /api/chat/{id}. An unknown chat answers 404 with an
// empty message list so a fresh client can render an empty thread.
func (h *chatHandler) get(w http.ResponseWriter, r *http.Request) {
	msgs, err := h.store.Load(r.Context(), r.PathValue("id"))
	if err != nil {
		if errors.Is(err, chatstore.ErrNotFound) || errors.Is(err, chatstore.ErrInvalidID) {
			writeJSON(w, http.StatusNotFound, map[string]any{"messages": []message.Message{}}, h.logger)
			return
		}
		h.logger.Error("loading chat failed", "error", err)
		writeError(w, http.StatusInternalServerError, "load_failed", "failed to load chat", h.logger)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"messages": msgs}, h.logger)
}

type conversationsResponse struct {
	Recent []chatstore.Info `json:"recent"`
	Older  []chatstore.Info `json:"older"`
}

// conversations serves GET /api/conversations, split into recent
// (last 7 days) and older.
func (h *chatHandler) conversations(w http.ResponseWriter, r *http.Request) {
	infos, err := h.store.ListInfo(r.Context())
	if err != nil {
		h.logger.Error("listing conversations failed", "error", err)
		writeError(w, http.StatusInternalServerError, "list_failed", "failed to list conversations", h.logger)
		return
	}

	resp := conversationsResponse{Recent: []chatstore.Info{}, Older: []chatstore.Info{}}
	cutoff := time.Now().Add(-recentWindow)
	for _, info := range infos {
		if info.UpdatedAt.After(cutoff) {
			resp.Recent = append(resp.Recent, info)
		} else {
			resp.Older = append(resp.Older, info)
		}
	}
	writeJSON(w, http.StatusOK, resp, h.logger)
}
