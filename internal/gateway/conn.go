package gateway

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/techsolutions/agency-chat/internal/model"
	"github.com/techsolutions/agency-chat/pkg/metrics"
)

// Conn is one live connection of an authenticated principal.
type Conn struct {
	id        string
	ws        *websocket.Conn
	principal model.Principal
	hub       *Hub

	send      chan []byte
	done      chan struct{}
	closeOnce sync.Once
}

func newConn(h *Hub, ws *websocket.Conn, p model.Principal) *Conn {
	return &Conn{
		id:        uuid.NewString(),
		ws:        ws,
		principal: p,
		hub:       h,
		send:      make(chan []byte, h.cfg.SendBuffer),
		done:      make(chan struct{}),
	}
}

// emit queues one event for this connection only.
func (c *Conn) emit(event string, data interface{}) {
	frame, err := json.Marshal(outbound{Event: event, Data: data})
	if err != nil {
		c.hub.logger.Error("failed to encode event", zap.String("event", event), zap.Error(err))
		return
	}
	c.enqueue(frame)
}

func (c *Conn) emitError(event string, err error) {
	c.emit(EventError, ErrorPayload{
		Code:    model.CodeOf(err),
		Message: model.MessageOf(err),
		Event:   event,
	})
}

// enqueue hands a frame to the writer. A connection whose queue is full is too
// slow to keep up and gets closed.
func (c *Conn) enqueue(frame []byte) bool {
	select {
	case <-c.done:
		return false
	default:
	}

	select {
	case c.send <- frame:
		return true
	default:
		metrics.WSDroppedConnections.Inc()
		c.hub.logger.Warn("send queue full, dropping connection",
			zap.String("conn_id", c.id),
			zap.Int64("user_id", c.principal.ID),
		)
		c.close()
		return false
	}
}

func (c *Conn) close() {
	c.closeOnce.Do(func() {
		close(c.done)
	})
}

// writePump drains the send queue and keeps the connection alive with pings.
func (c *Conn) writePump() {
	ticker := time.NewTicker(c.hub.cfg.PingPeriod)
	defer func() {
		ticker.Stop()
		c.ws.Close()
	}()

	for {
		select {
		case frame := <-c.send:
			c.ws.SetWriteDeadline(time.Now().Add(c.hub.cfg.WriteWait))
			if err := c.ws.WriteMessage(websocket.TextMessage, frame); err != nil {
				return
			}

		case <-ticker.C:
			c.ws.SetWriteDeadline(time.Now().Add(c.hub.cfg.WriteWait))
			if err := c.ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}

		case <-c.done:
			c.ws.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				time.Now().Add(c.hub.cfg.WriteWait))
			return
		}
	}
}

// readPump processes inbound frames one at a time until the connection fails or
// goes idle past PongWait.
func (c *Conn) readPump() {
	c.ws.SetReadLimit(c.hub.cfg.MaxMessageSize)
	c.ws.SetReadDeadline(time.Now().Add(c.hub.cfg.PongWait))
	c.ws.SetPongHandler(func(string) error {
		c.ws.SetReadDeadline(time.Now().Add(c.hub.cfg.PongWait))
		return nil
	})

	for {
		_, data, err := c.ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.hub.logger.Debug("websocket read error",
					zap.String("conn_id", c.id),
					zap.Error(err),
				)
			}
			return
		}

		c.ws.SetReadDeadline(time.Now().Add(c.hub.cfg.PongWait))
		c.hub.dispatch(c, data)
	}
}
