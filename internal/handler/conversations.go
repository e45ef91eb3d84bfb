// Package handler provides HTTP handlers for the API.
package handler

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/techsolutions/agency-chat/internal/middleware"
	"github.com/techsolutions/agency-chat/internal/model"
	"github.com/techsolutions/agency-chat/internal/service"
	"github.com/techsolutions/agency-chat/pkg/logger"
)

// Notifier pushes state changes made over REST to live connections.
type Notifier interface {
	NotifyMessage(p model.Principal, res *service.SendResult)
	NotifyRead(p model.Principal, res *service.ReadResult)
}

// ConversationHandler handles conversation endpoints.
type ConversationHandler struct {
	chat     *service.ChatService
	notifier Notifier
	logger   *logger.Logger
}

// NewConversationHandler creates a new conversation handler. notifier may be nil.
func NewConversationHandler(chat *service.ChatService, notifier Notifier, log *logger.Logger) *ConversationHandler {
	return &ConversationHandler{
		chat:     chat,
		notifier: notifier,
		logger:   log,
	}
}

type sendResponse struct {
	Conversation *model.Conversation `json:"conversation"`
	Message      *model.Message      `json:"message"`
	Created      bool                `json:"created"`
}

type readResponse struct {
	ConversationID int64 `json:"conversationId"`
	Count          int64 `json:"count"`
}

// List handles GET /api/v1/chat/conversations
func (h *ConversationHandler) List(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}

	list, err := h.chat.ListConversations(r.Context(), p)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeSuccess(w, http.StatusOK, list)
}

// History handles GET /api/v1/chat/conversations/:id/messages
func (h *ConversationHandler) History(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}
	id, err := middleware.ParseID(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}

	views, err := h.chat.History(r.Context(), p, id)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeSuccess(w, http.StatusOK, views)
}

// Send handles POST /api/v1/chat/conversations/:id/messages
func (h *ConversationHandler) Send(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}
	id, err := middleware.ParseID(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}

	var req model.SendMessageRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)
		return
	}
	if err := middleware.ValidateMessageContent(req.Message); err != nil {
		writeError(w, err)
		return
	}

	res, err := h.chat.SendMessage(r.Context(), p, service.SendInput{
		ConversationID: &id,
		Content:        req.Message,
		Transport:      "rest",
	})
	if err != nil {
		h.fail(w, r, err)
		return
	}

	if h.notifier != nil {
		h.notifier.NotifyMessage(p, res)
	}
	writeSuccess(w, http.StatusCreated, sendResponse{
		Conversation: res.Conversation,
		Message:      res.Message,
		Created:      res.Created,
	})
}

// MarkRead handles PUT /api/v1/chat/conversations/:id/read
func (h *ConversationHandler) MarkRead(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}
	id, err := middleware.ParseID(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}

	res, err := h.chat.MarkRead(r.Context(), p, id)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	if h.notifier != nil {
		h.notifier.NotifyRead(p, res)
	}
	writeSuccess(w, http.StatusOK, readResponse{ConversationID: res.Conversation.ID, Count: res.Count})
}

// Delete handles DELETE /api/v1/chat/conversations/:id
func (h *ConversationHandler) Delete(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}
	id, err := middleware.ParseID(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}

	if err := h.chat.DeleteConversation(r.Context(), p, id); err != nil {
		h.fail(w, r, err)
		return
	}
	writeSuccess(w, http.StatusOK, map[string]int64{"conversationId": id})
}

// Stats handles GET /api/v1/chat/stats
func (h *ConversationHandler) Stats(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}

	stats, err := h.chat.Stats(r.Context(), p)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeSuccess(w, http.StatusOK, stats)
}

// Search handles GET /api/v1/chat/search?query=&conversationId=
func (h *ConversationHandler) Search(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}

	q := r.URL.Query()
	convID, err := middleware.ParseOptionalID(q.Get("conversationId"))
	if err != nil {
		writeError(w, err)
		return
	}

	views, err := h.chat.Search(r.Context(), p, strings.TrimSpace(q.Get("query")), convID)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeSuccess(w, http.StatusOK, views)
}

// fail writes err and logs it when it is not a domain error.
func (h *ConversationHandler) fail(w http.ResponseWriter, r *http.Request, err error) {
	logFailure(h.logger, r, err)
	writeError(w, err)
}

func logFailure(log *logger.Logger, r *http.Request, err error) {
	if model.CodeOf(err) != model.CodeServer {
		return
	}
	p, _ := middleware.GetPrincipal(r.Context())
	log.WithContext(middleware.GetCorrelationID(r.Context()), p.ID, string(p.Role)).Error("request failed",
		zap.String("method", r.Method),
		zap.String("path", r.URL.Path),
		zap.Error(err),
	)
}

func principal(w http.ResponseWriter, r *http.Request) (model.Principal, bool) {
	p, ok := middleware.GetPrincipal(r.Context())
	if !ok {
		middleware.Unauthorized(w, "Authentication required")
	}
	return p, ok
}
