package handler

import (
	"net/http"

	"github.com/techsolutions/agency-chat/internal/middleware"
	"github.com/techsolutions/agency-chat/internal/model"
	"github.com/techsolutions/agency-chat/internal/service"
	"github.com/techsolutions/agency-chat/pkg/logger"
)

// MessageHandler handles messages sent without a known conversation.
type MessageHandler struct {
	chat     *service.ChatService
	notifier Notifier
	logger   *logger.Logger
}

// NewMessageHandler creates a new message handler. notifier may be nil.
func NewMessageHandler(chat *service.ChatService, notifier Notifier, log *logger.Logger) *MessageHandler {
	return &MessageHandler{
		chat:     chat,
		notifier: notifier,
		logger:   log,
	}
}

// Send handles POST /api/v1/chat/messages
//
// A client's first message opens its conversation with the agency; later calls
// append to the same active conversation. Staff get a validation error and
// must address a conversation instead.
func (h *MessageHandler) Send(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
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
		Content:   req.Message,
		Transport: "rest",
	})
	if err != nil {
		logFailure(h.logger, r, err)
		writeError(w, err)
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
