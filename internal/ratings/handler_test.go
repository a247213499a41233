package ratings

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/campusreach/backend/internal/events"
	"github.com/campusreach/backend/internal/middleware"
	"github.com/campusreach/backend/internal/models"
	"github.com/campusreach/backend/pkg/apperrors"
)

var now = time.Date(2026, 5, 2, 12, 0, 0, 0, time.UTC)

type memStore struct {
	ratings []*models.Rating
}

func (s *memStore) Create(_ context.Context, rt *models.Rating) error {
	for _, r := range s.ratings {
		if r.EventID == rt.EventID && r.VolunteerID == rt.VolunteerID {
			return apperrors.Conflict("event already rated")
		}
	}
	rt.ID = uuid.New()
	s.ratings = append(s.ratings, rt)
	return nil
}

func (s *memStore) ListByEvent(_ context.Context, eventID uuid.UUID) ([]*models.Rating, error) {
	var out []*models.Rating
	for _, r := range s.ratings {
		if r.EventID == eventID {
			out = append(out, r)
		}
	}
	return out, nil
}

type memEvents struct {
	events    map[uuid.UUID]*models.Event
	confirmed map[[2]uuid.UUID]bool
}

func (m *memEvents) GetByID(_ context.Context, id uuid.UUID) (*models.Event, error) {
	if e, ok := m.events[id]; ok {
		return e, nil
	}
	return nil, apperrors.NotFound("event not found")
}

func (m *memEvents) HasConfirmedSignup(_ context.Context, eventID, userID uuid.UUID) (bool, error) {
	return m.confirmed[[2]uuid.UUID{eventID, userID}], nil
}

func setup(user uuid.UUID) (*gin.Engine, *memStore, *memEvents) {
	gin.SetMode(gin.TestMode)
	store := &memStore{}
	evs := &memEvents{events: map[uuid.UUID]*models.Event{}, confirmed: map[[2]uuid.UUID]bool{}}
	h := NewHandler(store, evs, nil)
	h.now = func() time.Time { return now }
	r := gin.New()
	r.POST("/events/:id/ratings", func(c *gin.Context) {
		c.Set(middleware.ContextUserID, user)
		c.Next()
	}, h.Create)
	r.GET("/events/:id/ratings", func(c *gin.Context) {
		e, err := evs.GetByID(c.Request.Context(), uuid.MustParse(c.Param("id")))
		if err != nil {
			c.AbortWithStatus(http.StatusNotFound)
			return
		}
		c.Set(events.ContextEvent, e)
		c.Next()
	}, h.ListByEvent)
	return r, store, evs
}

func post(r *gin.Engine, eventID uuid.UUID, body string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/events/"+eventID.String()+"/ratings", bytes.NewBufferString(body)))
	return w
}

func TestCreateRating(t *testing.T) {
	volunteer := uuid.New()
	r, store, evs := setup(volunteer)
	ended := &models.Event{ID: uuid.New(), Title: "Food Drive", EndsAt: now.Add(-time.Hour)}
	upcoming := &models.Event{ID: uuid.New(), Title: "Tutoring", EndsAt: now.Add(time.Hour)}
	other := &models.Event{ID: uuid.New(), Title: "Park", EndsAt: now.Add(-time.Hour)}
	for _, e := range []*models.Event{ended, upcoming, other} {
		evs.events[e.ID] = e
	}
	evs.confirmed[[2]uuid.UUID{ended.ID, volunteer}] = true
	evs.confirmed[[2]uuid.UUID{upcoming.ID, volunteer}] = true

	assert.Equal(t, http.StatusBadRequest, post(r, ended.ID, `{"score":0}`).Code)
	assert.Equal(t, http.StatusBadRequest, post(r, ended.ID, `{"score":6}`).Code)
	assert.Equal(t, http.StatusBadRequest, post(r, upcoming.ID, `{"score":4}`).Code)
	assert.Equal(t, http.StatusForbidden, post(r, other.ID, `{"score":4}`).Code)
	assert.Equal(t, http.StatusNotFound, post(r, uuid.New(), `{"score":4}`).Code)

	w := post(r, ended.ID, `{"score":5,"comment":"  great  "}`)
	require.Equal(t, http.StatusCreated, w.Code)
	require.Len(t, store.ratings, 1)
	assert.Equal(t, "great", store.ratings[0].Comment)

	assert.Equal(t, http.StatusConflict, post(r, ended.ID, `{"score":3}`).Code)
}

func TestListRatings(t *testing.T) {
	r, store, evs := setup(uuid.New())
	e := &models.Event{ID: uuid.New()}
	evs.events[e.ID] = e

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/events/"+e.ID.String()+"/ratings", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"success":true,"data":[]}`, w.Body.String())

	store.ratings = append(store.ratings, &models.Rating{ID: uuid.New(), EventID: e.ID, Score: 4})
	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/events/"+e.ID.String()+"/ratings", nil))
	assert.Contains(t, w.Body.String(), `"score":4`)
}
