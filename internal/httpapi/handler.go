// Package httpapi implements the HTTP adapter (C9): three endpoints plus
// cancel, wiring bubblestream's runtime onto net/http the way the
// teacher's internal/handler package wires its services onto net/http.
package httpapi

import (
	"log/slog"
	"net/http"

	"bubblestream/internal/bubble"
	"bubblestream/internal/httputil"
	"bubblestream/internal/runtime"
	"bubblestream/internal/stream"
)

// Handler holds everything an HTTP request needs to drive the runtime.
type Handler struct {
	store      *bubble.SessionStore
	index      *bubble.ConversationIndex
	handlers   *runtime.HandlerRegistry
	controller *stream.Controller
	logger     *slog.Logger
}

func NewHandler(store *bubble.SessionStore, index *bubble.ConversationIndex, handlers *runtime.HandlerRegistry, controller *stream.Controller, logger *slog.Logger) *Handler {
	return &Handler{store: store, index: index, handlers: handlers, controller: controller, logger: logger}
}

// Register mounts the adapter's routes on mux, mirroring the teacher's
// cmd/server/main.go route-registration style.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /health", h.HealthCheck)
	mux.HandleFunc("GET /api/conversations", h.ListConversations)
	mux.HandleFunc("GET /api/conversations/{conversationId}/messages", h.GetMessages)
	mux.HandleFunc("POST /api/conversations/stream", h.StreamConversation)
	mux.HandleFunc("POST /api/streams/{streamId}/cancel", h.CancelStream)
}

func (h *Handler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	httputil.RespondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// ListConversations serves GET /api/conversations (spec.md §6.1).
func (h *Handler) ListConversations(w http.ResponseWriter, r *http.Request) {
	userID := httputil.NormalizeUserID(r)
	entries := h.index.Get(userID)
	httputil.RespondJSON(w, http.StatusOK, map[string]any{"conversations": entries})
}

// GetMessages serves GET /api/conversations/{conversationId}/messages.
func (h *Handler) GetMessages(w http.ResponseWriter, r *http.Request) {
	conversationID := r.PathValue("conversationId")
	userID := httputil.NormalizeUserID(r)

	records, err := stream.RunHistory(r.Context(), h.handlers, h.store, conversationID, userID)
	if err != nil {
		httputil.RespondAPIError(w, err)
		return
	}

	httputil.RespondJSON(w, http.StatusOK, map[string]any{
		"conversationId": conversationID,
		"messages":       records,
	})
}

type streamRequest struct {
	ConversationID string `json:"conversationId"`
	Message        string `json:"message"`
}

// StreamConversation serves POST /api/conversations/stream, the NDJSON
// streaming endpoint (spec.md §6.2). Both request fields are optional; an
// empty body means "new conversation, no message" (spec.md's greet-only
// path).
func (h *Handler) StreamConversation(w http.ResponseWriter, r *http.Request) {
	var req streamRequest
	if r.ContentLength != 0 {
		if err := httputil.ParseJSON(w, r, &req); err != nil {
			httputil.RespondError(w, http.StatusBadRequest, "invalid request body")
			return
		}
	}

	userID := httputil.NormalizeUserID(r)

	flusher, _ := w.(http.Flusher)
	attached := false

	runErr := h.controller.Run(r.Context(), stream.RunRequest{
		ConversationID: req.ConversationID,
		UserID:         userID,
		Message:        req.Message,
		Handlers:       h.handlers,
		Store:          h.store,
		Writer:         w,
		Flusher:        flusher,
		OnAttached: func(conversationID, streamID string) {
			attached = true
			w.Header().Set("Content-Type", "application/x-ndjson")
			w.Header().Set("Cache-Control", "no-cache")
			w.WriteHeader(http.StatusOK)
			if flusher != nil {
				flusher.Flush()
			}
		},
	})

	if runErr != nil {
		if attached {
			// Headers are already committed; nothing more to send.
			h.logger.Error("stream failed after attach", "error", runErr)
			return
		}
		httputil.RespondAPIError(w, runErr)
	}
}

type cancelResponse struct {
	Status string `json:"status"`
}

// CancelStream serves POST /api/streams/{streamId}/cancel (spec.md §6.1).
func (h *Handler) CancelStream(w http.ResponseWriter, r *http.Request) {
	streamID := r.PathValue("streamId")
	if h.controller.Cancel(streamID) {
		httputil.RespondJSON(w, http.StatusOK, cancelResponse{Status: "cancelled"})
		return
	}
	httputil.RespondJSON(w, http.StatusOK, cancelResponse{Status: "unknown"})
}
