package emaillogs

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/campusreach/backend/internal/events"
	"github.com/campusreach/backend/internal/models"
)

type stubLister struct {
	logs []*models.EmailLog
	err  error
	got  uuid.UUID
}

func (s *stubLister) ListByEvent(_ context.Context, eventID uuid.UUID) ([]*models.EmailLog, error) {
	s.got = eventID
	return s.logs, s.err
}

func serve(t *testing.T, lister Lister, event *models.Event) *httptest.ResponseRecorder {
	t.Helper()
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/events/:id/emails", func(c *gin.Context) {
		c.Set(events.ContextEvent, event)
		c.Next()
	}, NewHandler(lister, nil).ListByEvent)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/events/"+event.ID.String()+"/emails", nil))
	return w
}

func TestListByEvent(t *testing.T) {
	event := &models.Event{ID: uuid.New(), Title: "Food Drive"}
	recipient := uuid.New()
	lister := &stubLister{logs: []*models.EmailLog{{
		ID:             uuid.New(),
		EmailType:      models.EmailTypeRatingReminder,
		RecipientID:    &recipient,
		RecipientEmail: "v@example.edu",
		ReferenceID:    event.ID.String(),
		SentAt:         time.Now(),
	}}}

	w := serve(t, lister, event)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, event.ID, lister.got)
	var body struct {
		Success bool               `json:"success"`
		Data    []*models.EmailLog `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	require.Len(t, body.Data, 1)
	assert.Equal(t, "v@example.edu", body.Data[0].RecipientEmail)
}

func TestListByEventEmptyIsArray(t *testing.T) {
	w := serve(t, &stubLister{}, &models.Event{ID: uuid.New()})
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"success":true,"data":[]}`, w.Body.String())
}

func TestListByEventStoreError(t *testing.T) {
	w := serve(t, &stubLister{err: errors.New("db down")}, &models.Event{ID: uuid.New()})
	assert.Equal(t, http.StatusInternalServerError, w.Code)
}
