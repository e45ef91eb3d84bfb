package handler

import (
	"net/http"
	"strings"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/techsolutions/agency-chat/internal/gateway"
	"github.com/techsolutions/agency-chat/internal/middleware"
	"github.com/techsolutions/agency-chat/pkg/logger"
)

// LiveHandler upgrades authenticated requests to live chat connections.
type LiveHandler struct {
	hub      *gateway.Hub
	verifier *middleware.TokenVerifier
	upgrader websocket.Upgrader
	logger   *logger.Logger
}

// NewLiveHandler creates a new live connection handler. An empty origin list
// accepts any origin.
func NewLiveHandler(hub *gateway.Hub, verifier *middleware.TokenVerifier, allowedOrigins []string, log *logger.Logger) *LiveHandler {
	return &LiveHandler{
		hub:      hub,
		verifier: verifier,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin: func(r *http.Request) bool {
				return originAllowed(allowedOrigins, r.Header.Get("Origin"))
			},
		},
		logger: log,
	}
}

// Connect handles GET /ws
// The credential comes from the Authorization header or the token query parameter.
func (h *LiveHandler) Connect(w http.ResponseWriter, r *http.Request) {
	p, err := h.verifier.Verify(middleware.BearerToken(r))
	if err != nil {
		middleware.Unauthorized(w, "Invalid or missing token")
		return
	}

	ws, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already written the HTTP error.
		h.logger.Debug("websocket upgrade failed", zap.Int64("user_id", p.ID), zap.Error(err))
		return
	}

	h.hub.Serve(ws, p)
}

func originAllowed(allowed []string, origin string) bool {
	if origin == "" || len(allowed) == 0 {
		return true
	}
	for _, a := range allowed {
		if a == "*" || strings.EqualFold(a, origin) {
			return true
		}
		if prefix, ok := strings.CutSuffix(a, "*"); ok && strings.HasPrefix(origin, prefix) {
			return true
		}
	}
	return false
}
