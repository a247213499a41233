package realtime

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/campusreach/backend/internal/auth"
	"github.com/campusreach/backend/internal/chat"
	"github.com/campusreach/backend/internal/models"
	"github.com/campusreach/backend/pkg/apperrors"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type tokenMap map[string]uuid.UUID

func (t tokenMap) Validate(token string) (*auth.Claims, error) {
	id, ok := t[token]
	if !ok {
		return nil, auth.ErrInvalidToken
	}
	return &auth.Claims{UserID: id}, nil
}

type allowList map[uuid.UUID]bool

func (a allowList) Authorize(_ context.Context, eventID, userID uuid.UUID) (*chat.Access, error) {
	if !a[userID] {
		return nil, apperrors.Forbidden("not a participant")
	}
	return &chat.Access{Event: &models.Event{ID: eventID}}, nil
}

// revocable grants access until revoke is called.
type revocable struct {
	mu      sync.Mutex
	revoked bool
}

func (r *revocable) revoke() {
	r.mu.Lock()
	r.revoked = true
	r.mu.Unlock()
}

func (r *revocable) Authorize(_ context.Context, eventID, _ uuid.UUID) (*chat.Access, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.revoked {
		return nil, apperrors.Forbidden("not a participant")
	}
	return &chat.Access{Event: &models.Event{ID: eventID}}, nil
}

// loopback is an in-process stand-in for Redis pub/sub.
type loopback struct {
	mu        sync.Mutex
	handlers  map[uuid.UUID]func(string, []byte)
	published int
}

func (l *loopback) PublishEvent(_ context.Context, eventID uuid.UUID, event string, payload []byte) error {
	l.mu.Lock()
	l.published++
	h := l.handlers[eventID]
	l.mu.Unlock()
	if h != nil {
		h(event, payload)
	}
	return nil
}

func (l *loopback) SubscribeEvent(eventID uuid.UUID, handler func(string, []byte)) (func(), error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.handlers[eventID] = handler
	return func() {
		l.mu.Lock()
		delete(l.handlers, eventID)
		l.mu.Unlock()
	}, nil
}

type stream struct {
	server *httptest.Server
	hub    *Hub
}

func newStream(t *testing.T, hub *Hub, tokens tokenMap, allowed Authorizer) *stream {
	t.Helper()
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/ws/chat", ServeWs(hub, NewUpgrader(nil), tokens, allowed, nil))
	s := &stream{server: httptest.NewServer(r), hub: hub}
	t.Cleanup(s.server.Close)
	return s
}

func (s *stream) url(eventID uuid.UUID, token string) string {
	return "ws" + strings.TrimPrefix(s.server.URL, "http") + "/ws/chat?event_id=" + eventID.String() + "&token=" + token
}

func waitRoom(t *testing.T, hub *Hub, eventID uuid.UUID, n int) {
	t.Helper()
	require.Eventually(t, func() bool { return hub.RoomSize(eventID) == n }, time.Second, 5*time.Millisecond)
}

func TestStreamDeliversPublishedMessages(t *testing.T) {
	user := uuid.New()
	eventID := uuid.New()
	hub := NewHub(nil, nil, nil)
	s := newStream(t, hub, tokenMap{"tok": user}, allowList{user: true})

	conn, _, err := websocket.DefaultDialer.Dial(s.url(eventID, "tok"), nil)
	require.NoError(t, err)
	defer conn.Close()
	waitRoom(t, hub, eventID, 1)

	msg := &models.ChatMessageView{ChatMessage: models.ChatMessage{ID: uuid.New(), EventID: eventID, Body: "Please arrive at 9am", Kind: models.KindAnnouncement}}
	require.NoError(t, hub.PublishChatMessage(context.Background(), eventID, msg))
	require.NoError(t, hub.PublishChatMessage(context.Background(), uuid.New(), msg))

	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var got WSMessage
	require.NoError(t, conn.ReadJSON(&got))
	assert.Equal(t, EventChatMessage, got.Event)
	assert.Contains(t, string(got.Data), "Please arrive at 9am")

	require.NoError(t, conn.Close())
	waitRoom(t, hub, eventID, 0)
}

func TestStreamRejectsBeforeUpgrade(t *testing.T) {
	member, outsider := uuid.New(), uuid.New()
	hub := NewHub(nil, nil, nil)
	s := newStream(t, hub, tokenMap{"in": member, "out": outsider}, allowList{member: true})

	_, resp, err := websocket.DefaultDialer.Dial(s.url(uuid.New(), "out"), nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	resp.Body.Close()

	_, resp, err = websocket.DefaultDialer.Dial(s.url(uuid.New(), "bogus"), nil)
	require.Error(t, err)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	resp.Body.Close()
}

func TestPublishGoesThroughRedisOnce(t *testing.T) {
	user := uuid.New()
	eventID := uuid.New()
	bus := &loopback{handlers: map[uuid.UUID]func(string, []byte){}}
	hub := NewHub(nil, bus, bus)
	defer hub.Close()
	s := newStream(t, hub, tokenMap{"tok": user}, allowList{user: true})

	conn, _, err := websocket.DefaultDialer.Dial(s.url(eventID, "tok"), nil)
	require.NoError(t, err)
	defer conn.Close()
	waitRoom(t, hub, eventID, 1)

	msg := &models.ChatMessageView{ChatMessage: models.ChatMessage{ID: uuid.New(), EventID: eventID, Body: "hello"}}
	require.NoError(t, hub.PublishChatMessage(context.Background(), eventID, msg))
	assert.Equal(t, 1, bus.published)

	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var got WSMessage
	require.NoError(t, conn.ReadJSON(&got))
	assert.Contains(t, string(got.Data), "hello")

	// exactly one delivery
	_ = conn.SetReadDeadline(time.Now().Add(100 * time.Millisecond))
	err = conn.ReadJSON(&got)
	var netErr interface{ Timeout() bool }
	require.True(t, errors.As(err, &netErr) && netErr.Timeout(), "unexpected second frame: %v", err)

	require.NoError(t, conn.Close())
	waitRoom(t, hub, eventID, 0)
	bus.mu.Lock()
	assert.Empty(t, bus.handlers)
	bus.mu.Unlock()
}

func TestStreamClosesAfterWithdrawal(t *testing.T) {
	user := uuid.New()
	eventID := uuid.New()
	access := &revocable{}
	hub := NewHub(nil, nil, nil)
	s := newStream(t, hub, tokenMap{"tok": user}, access)

	conn, _, err := websocket.DefaultDialer.Dial(s.url(eventID, "tok"), nil)
	require.NoError(t, err)
	defer conn.Close()
	waitRoom(t, hub, eventID, 1)

	access.revoke()
	msg := &models.ChatMessageView{ChatMessage: models.ChatMessage{ID: uuid.New(), EventID: eventID, Body: "private after withdrawal"}}
	require.NoError(t, hub.PublishChatMessage(context.Background(), eventID, msg))

	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var got WSMessage
	err = conn.ReadJSON(&got)
	require.Error(t, err)
	assert.True(t, websocket.IsCloseError(err, websocket.ClosePolicyViolation), "got %v", err)
	assert.NotContains(t, string(got.Data), "private after withdrawal")

	waitRoom(t, hub, eventID, 0)
}
