package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/campusreach/backend/internal/chat"
	"github.com/campusreach/backend/internal/middleware"
	"github.com/campusreach/backend/pkg/apperrors"
)

const (
	maxReadBytes = 4096
	// recheckTimeout bounds the access check made before each delivery.
	recheckTimeout = 5 * time.Second
)

// WSMessage is the WebSocket message envelope.
type WSMessage struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// Authorizer runs the chat access guard. *chat.Service implements it.
type Authorizer interface {
	Authorize(ctx context.Context, eventID, userID uuid.UUID) (*chat.Access, error)
}

// Client is a single subscribe-only WebSocket connection to an event's chat.
type Client struct {
	ID      string
	EventID uuid.UUID
	UserID  uuid.UUID
	hub     *Hub
	conn    *websocket.Conn
	send    chan WSMessage
	done    chan struct{}
	authz   Authorizer
	logger  *zap.Logger
}

// NewUpgrader returns an upgrader that accepts the given origins. "*" or an empty list accepts any.
func NewUpgrader(allowedOrigins []string) *websocket.Upgrader {
	allowed := make(map[string]bool, len(allowedOrigins))
	for _, o := range allowedOrigins {
		allowed[o] = true
	}
	return &websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			return len(allowed) == 0 || allowed["*"] || origin == "" || allowed[origin]
		},
	}
}

// ServeWs handles GET /ws/chat?event_id=&token=. Access is checked at connect and again before every
// delivered message; a caller who lost access is disconnected with a policy-violation close.
func ServeWs(hub *Hub, upgrader *websocket.Upgrader, tokens middleware.TokenValidator, authz Authorizer, logger *zap.Logger) gin.HandlerFunc {
	if logger == nil {
		logger = zap.NewNop()
	}
	return func(c *gin.Context) {
		eventIDStr := c.Query("event_id")
		token := c.Query("token")
		if eventIDStr == "" || token == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "event_id and token required"})
			return
		}
		eventID, err := uuid.Parse(eventIDStr)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid event_id"})
			return
		}
		claims, err := tokens.Validate(token)
		if err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			return
		}
		if _, err := authz.Authorize(c.Request.Context(), eventID, claims.UserID); err != nil {
			switch {
			case errors.Is(err, apperrors.ErrNotFound):
				c.JSON(http.StatusNotFound, gin.H{"error": "event not found"})
			case errors.Is(err, apperrors.ErrForbidden):
				c.JSON(http.StatusForbidden, gin.H{"error": "not a participant of this event"})
			default:
				logger.Error("chat stream authorize failed", zap.Error(err))
				c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to authorize"})
			}
			return
		}

		conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			logger.Warn("websocket upgrade failed", zap.Error(err))
			return
		}
		client := &Client{
			ID:      uuid.New().String(),
			EventID: eventID,
			UserID:  claims.UserID,
			hub:     hub,
			conn:    conn,
			send:    make(chan WSMessage, 256),
			done:    make(chan struct{}),
			authz:   authz,
			logger:  logger,
		}
		hub.Register(client)
		go client.writePump()
		client.readPump()
	}
}

// readPump only keeps the connection alive; clients post through the HTTP API.
func (c *Client) readPump() {
	defer func() {
		c.hub.Unregister(c)
		close(c.done)
		_ = c.conn.Close()
	}()

	c.conn.SetReadLimit(maxReadBytes)
	_ = c.conn.SetReadDeadline(time.Now().Add(PongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(PongWait))
	})
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
		_ = c.conn.SetReadDeadline(time.Now().Add(PongWait))
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(PingInterval)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case <-c.done:
			return
		case msg := <-c.send:
			if !c.stillAllowed() {
				return
			}
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteJSON(msg); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// stillAllowed re-runs the access guard. On a revoked or missing event it sends a close frame;
// on a lookup failure the message is withheld and the connection closed.
func (c *Client) stillAllowed() bool {
	ctx, cancel := context.WithTimeout(context.Background(), recheckTimeout)
	defer cancel()
	_, err := c.authz.Authorize(ctx, c.EventID, c.UserID)
	if err == nil {
		return true
	}
	code, reason := websocket.ClosePolicyViolation, "access revoked"
	if !errors.Is(err, apperrors.ErrForbidden) && !errors.Is(err, apperrors.ErrNotFound) {
		c.logger.Error("chat stream recheck failed", zap.String("event_id", c.EventID.String()), zap.Error(err))
		code, reason = websocket.CloseInternalServerErr, "authorization unavailable"
	}
	deadline := time.Now().Add(writeWait)
	_ = c.conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(code, reason), deadline)
	return false
}
