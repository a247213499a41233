package auth

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/campusreach/backend/internal/models"
	"github.com/campusreach/backend/pkg/apperrors"
	"github.com/campusreach/backend/pkg/response"
)

type memUsers struct {
	mu      sync.Mutex
	byEmail map[string]*models.User
	created []CreateUserParams
}

func newMemUsers() *memUsers {
	return &memUsers{byEmail: map[string]*models.User{}}
}

func (m *memUsers) GetByID(_ context.Context, id uuid.UUID) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.byEmail {
		if u.ID == id {
			return u, nil
		}
	}
	return nil, apperrors.NotFound("user not found")
}

func (m *memUsers) GetByEmail(_ context.Context, email string) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if u, ok := m.byEmail[email]; ok {
		return u, nil
	}
	return nil, apperrors.NotFound("user not found")
}

func (m *memUsers) Create(_ context.Context, p CreateUserParams) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.byEmail[p.Email]; ok {
		return nil, apperrors.Conflict("email already registered")
	}
	u := &models.User{ID: uuid.New(), Email: p.Email, Password: p.PasswordHash, AccountType: p.AccountType, CreatedAt: time.Now()}
	m.byEmail[p.Email] = u
	m.created = append(m.created, p)
	return u, nil
}

func newRouter(h *Handler) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.POST("/auth/register", h.Register)
	r.POST("/auth/login", h.Login)
	return r
}

func post(r *gin.Engine, path string, body any) *httptest.ResponseRecorder {
	raw, _ := json.Marshal(body)
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(raw))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func decodeToken(t *testing.T, w *httptest.ResponseRecorder) TokenResponse {
	t.Helper()
	var body struct {
		response.Body
		Data TokenResponse `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return body.Data
}

func TestRegisterThenLogin(t *testing.T) {
	users := newMemUsers()
	jwtSvc := NewJWTService("secret", 1)
	r := newRouter(NewHandler(users, jwtSvc, nil))

	w := post(r, "/auth/register", RegisterRequest{Email: " Ana@Uni.edu", Password: "longenough", FullName: "Ana", School: "State"})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	reg := decodeToken(t, w)
	assert.Equal(t, "ana@uni.edu", reg.User.Email)
	assert.Equal(t, models.AccountVolunteer, reg.User.AccountType)
	require.Len(t, users.created, 1)
	assert.Equal(t, "Ana", users.created[0].FullName)

	claims, err := jwtSvc.Validate(reg.Token)
	require.NoError(t, err)
	assert.Equal(t, reg.User.ID, claims.UserID)

	w = post(r, "/auth/login", LoginRequest{Email: "ana@uni.edu", Password: "longenough"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, reg.User.ID, decodeToken(t, w).User.ID)

	w = post(r, "/auth/login", LoginRequest{Email: "ana@uni.edu", Password: "wrong-password"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = post(r, "/auth/login", LoginRequest{Email: "nobody@uni.edu", Password: "longenough"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestRegisterValidation(t *testing.T) {
	users := newMemUsers()
	r := newRouter(NewHandler(users, NewJWTService("secret", 1), nil))

	assert.Equal(t, http.StatusBadRequest, post(r, "/auth/register", RegisterRequest{Email: "a@b.edu", Password: "short", FullName: "A"}).Code)
	assert.Equal(t, http.StatusBadRequest, post(r, "/auth/register", RegisterRequest{Email: "a@b.edu", Password: "longenough", FullName: "A", AccountType: "admin"}).Code)
	assert.Equal(t, http.StatusBadRequest, post(r, "/auth/register", RegisterRequest{Email: "a@b.edu", Password: "longenough", FullName: "   "}).Code)

	require.Equal(t, http.StatusCreated, post(r, "/auth/register", RegisterRequest{Email: "a@b.edu", Password: "longenough", FullName: "A", AccountType: "organization"}).Code)
	assert.Equal(t, http.StatusConflict, post(r, "/auth/register", RegisterRequest{Email: "a@b.edu", Password: "longenough", FullName: "A"}).Code)
}

func TestJWTRejectsExpiredAndForeignTokens(t *testing.T) {
	svc := NewJWTService("secret", 1)
	svc.now = func() time.Time { return time.Now().Add(-2 * time.Hour) }
	expired, err := svc.Generate(uuid.New(), "a@b.c", models.AccountVolunteer)
	require.NoError(t, err)
	_, err = NewJWTService("secret", 1).Validate(expired)
	assert.ErrorIs(t, err, ErrInvalidToken)

	other, err := NewJWTService("other", 1).Generate(uuid.New(), "a@b.c", models.AccountVolunteer)
	require.NoError(t, err)
	_, err = NewJWTService("secret", 1).Validate(other)
	assert.ErrorIs(t, err, ErrInvalidToken)
}
