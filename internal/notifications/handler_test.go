package notifications

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/campusreach/backend/internal/middleware"
	"github.com/campusreach/backend/internal/models"
)

func asUser(id uuid.UUID) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set(middleware.ContextUserID, id)
		c.Next()
	}
}

func TestPreferencesDefaultsAndPartialUpdate(t *testing.T) {
	gin.SetMode(gin.TestMode)
	prefs := memPrefs{}
	user := uuid.New()
	h := NewPreferencesHandler(prefs, nil)
	r := gin.New()
	r.GET("/me/notification-preferences", asUser(user), h.Get)
	r.PUT("/me/notification-preferences", asUser(user), h.Update)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/me/notification-preferences", nil))
	require.Equal(t, http.StatusOK, w.Code)
	var got struct {
		Data models.NotificationPreference `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
	assert.True(t, got.Data.EmailUpdates)
	assert.False(t, got.Data.WeeklyDigest)

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPut, "/me/notification-preferences", bytes.NewBufferString(`{"weekly_digest":true}`)))
	require.Equal(t, http.StatusOK, w.Code)
	assert.True(t, prefs[user].EmailUpdates)
	assert.True(t, prefs[user].WeeklyDigest)

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPut, "/me/notification-preferences", bytes.NewBufferString(`{"email_updates":false}`)))
	require.Equal(t, http.StatusOK, w.Code)
	assert.False(t, prefs[user].EmailUpdates)
	assert.True(t, prefs[user].WeeklyDigest)
}

type runnerFunc func(ctx context.Context) (Summary, error)

func (f runnerFunc) Run(ctx context.Context) (Summary, error) { return f(ctx) }

func TestCronHandler(t *testing.T) {
	gin.SetMode(gin.TestMode)
	ok := runnerFunc(func(context.Context) (Summary, error) { return Summary{Total: 3, Sent: 2, Errors: 1}, nil })
	broken := runnerFunc(func(context.Context) (Summary, error) { return Summary{}, errors.New("db down") })
	h := NewCronHandler(ok, broken, ok, nil)
	r := gin.New()
	r.GET("/cron/message-notifications", h.MessageNotifications)
	r.GET("/cron/rating-reminders", h.RatingReminders)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/cron/message-notifications", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"success":true,"data":{"total":3,"sent":2,"errors":1}}`, w.Body.String())

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/cron/rating-reminders", nil))
	assert.Equal(t, http.StatusInternalServerError, w.Code)
}

func TestRendererLayout(t *testing.T) {
	r, err := NewRenderer(Links{BaseURL: "https://campusreach.test/"})
	require.NoError(t, err)

	html, err := r.Render(TemplateMessageNotification, "3 new messages in <Food> Drive", &MessageNotificationData{
		RecipientName: "Vera",
		EventTitle:    "<Food> Drive",
		Count:         3,
		ChatURL:       r.Links().EventChat("abc"),
	})
	require.NoError(t, err)
	assert.Contains(t, html, "3 new messages")
	assert.Contains(t, html, "&lt;Food&gt; Drive")
	assert.Contains(t, html, `href="https://campusreach.test/events/abc/chat"`)
	assert.Contains(t, html, `href="https://campusreach.test/settings/notifications"`)

	_, err = r.Render("missing", "x", &MessageNotificationData{})
	assert.Error(t, err)
}
