// internal/handler/websocket_handler.go
package handler

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"serial-link/internal/config"
	"serial-link/internal/service"
	"serial-link/internal/utils"
)

const (
	pongWait   = 60 * time.Second
	pingPeriod = 54 * time.Second
	writeWait  = 10 * time.Second
)

// WebSocketHandler serves an interactive console on the serial session. Every
// text message is sent as one segment; every reply carries one frame.
type WebSocketHandler struct {
	upgrader    websocket.Upgrader
	connections *ConnectionManager
	sessions    *service.SessionService
	logger      *utils.ServiceLogger
}

// NewWebSocketHandler creates a new WebSocket handler
func NewWebSocketHandler(sessions *service.SessionService, security *config.SecurityConfig, logger *zap.Logger) *WebSocketHandler {
	upgrader := websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     checkOrigin(security.AllowedOrigins),
	}

	return &WebSocketHandler{
		upgrader:    upgrader,
		connections: NewConnectionManager(),
		sessions:    sessions,
		logger:      utils.NewServiceLogger(logger, "websocket-handler"),
	}
}

// checkOrigin allows every origin when none are configured
func checkOrigin(allowed []string) func(r *http.Request) bool {
	return func(r *http.Request) bool {
		if len(allowed) == 0 {
			return true
		}
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		for _, o := range allowed {
			if o == origin {
				return true
			}
		}
		return false
	}
}

// HandleSession upgrades the request and runs the console until the client
// disconnects
func (h *WebSocketHandler) HandleSession(c *gin.Context) {
	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Error("Failed to upgrade WebSocket connection", zap.Error(err))
		return
	}

	client := &Client{
		ID:          uuid.New().String(),
		Connection:  conn,
		Send:        make(chan []byte, 256),
		UserAgent:   c.Request.UserAgent(),
		RemoteAddr:  c.Request.RemoteAddr,
		ConnectedAt: time.Now(),
	}

	h.connections.Register(client)
	h.logger.Info("Console client connected",
		zap.String("client_id", client.ID),
		zap.String("remote_addr", client.RemoteAddr),
	)

	h.sendMessage(client, &WebSocketMessage{
		Type:      "session",
		Data:      h.sessions.Status(),
		Timestamp: time.Now(),
	})

	go h.handleClientWrite(client)
	h.handleClientRead(client)
}

// GetClients lists connected console clients
func (h *WebSocketHandler) GetClients(c *gin.Context) {
	utils.SuccessResponse(c, http.StatusOK, "Console clients retrieved", h.connections.GetStats())
}

// handleClientRead exchanges each text message in order
func (h *WebSocketHandler) handleClientRead(client *Client) {
	ctx, cancel := context.WithCancel(context.Background())
	defer func() {
		cancel()
		h.connections.Unregister(client)
		h.logger.Info("Console client disconnected",
			zap.String("client_id", client.ID),
			zap.Int64("exchanges", client.exchanges.Load()),
		)
	}()

	client.Connection.SetReadDeadline(time.Now().Add(pongWait))
	client.Connection.SetPongHandler(func(string) error {
		client.Connection.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		messageType, payload, err := client.Connection.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.logger.Error("WebSocket read error",
					zap.Error(err),
					zap.String("client_id", client.ID),
				)
			}
			return
		}

		if messageType != websocket.TextMessage {
			h.sendMessage(client, &WebSocketMessage{
				Type:      "error",
				Data:      &ErrorMessage{Code: "UNSUPPORTED_MESSAGE", Error: "only text messages are exchanged"},
				Timestamp: time.Now(),
			})
			continue
		}

		// a long exchange must not trip the read deadline
		client.Connection.SetReadDeadline(time.Time{})
		h.exchange(ctx, client, string(payload))
		client.Connection.SetReadDeadline(time.Now().Add(pongWait))
	}
}

func (h *WebSocketHandler) exchange(ctx context.Context, client *Client, segment string) {
	result, err := h.sessions.Exchange(ctx, []string{segment})
	client.exchanges.Add(1)

	if err != nil {
		_, code := errorStatus(err)
		h.sendMessage(client, &WebSocketMessage{
			Type:      "error",
			Data:      &ErrorMessage{Code: code, Segment: segment, Error: err.Error()},
			Timestamp: time.Now(),
		})
		return
	}

	h.sendMessage(client, &WebSocketMessage{
		Type: "frame",
		Data: &FrameMessage{
			ExchangeID:  result.ExchangeID,
			Segment:     segment,
			Response:    string(result.Response),
			ResponseHex: hex.EncodeToString(result.Response),
		},
		Timestamp: time.Now(),
	})
}

// handleClientWrite handles writing messages to WebSocket client
func (h *WebSocketHandler) handleClientWrite(client *Client) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		client.Connection.Close()
	}()

	for {
		select {
		case message, ok := <-client.Send:
			client.Connection.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				client.Connection.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			if err := client.Connection.WriteMessage(websocket.TextMessage, message); err != nil {
				h.logger.Error("WebSocket write error",
					zap.Error(err),
					zap.String("client_id", client.ID),
				)
				return
			}

		case <-ticker.C:
			client.Connection.SetWriteDeadline(time.Now().Add(writeWait))
			if err := client.Connection.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// sendMessage queues a message for a client
func (h *WebSocketHandler) sendMessage(client *Client, message *WebSocketMessage) {
	messageBytes, err := json.Marshal(message)
	if err != nil {
		h.logger.Error("Failed to marshal WebSocket message", zap.Error(err))
		return
	}

	select {
	case client.Send <- messageBytes:
	default:
		h.logger.Warn("Client send channel full, dropping message",
			zap.String("client_id", client.ID),
		)
	}
}
