package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-account-api/internal/domain"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockUserService struct{ mock.Mock }

func (m *mockUserService) Register(ctx context.Context, req domain.RegisterRequest) (uuid.UUID, error) {
	args := m.Called(ctx, req)
	id, _ := args.Get(0).(uuid.UUID)
	return id, args.Error(1)
}
func (m *mockUserService) Activate(ctx context.Context, userID uuid.UUID, code string) error {
	return m.Called(ctx, userID, code).Error(0)
}
func (m *mockUserService) GetProfile(ctx context.Context, userID uuid.UUID) (*domain.User, error) {
	args := m.Called(ctx, userID)
	if u, _ := args.Get(0).(*domain.User); u != nil {
		return u, args.Error(1)
	}
	return nil, args.Error(1)
}
func (m *mockUserService) UpdateProfile(ctx context.Context, userID uuid.UUID, req domain.UpdateProfileRequest) error {
	return m.Called(ctx, userID, req).Error(0)
}
func (m *mockUserService) List(ctx context.Context, page, perPage int) ([]domain.User, int, error) {
	args := m.Called(ctx, page, perPage)
	users, _ := args.Get(0).([]domain.User)
	return users, args.Int(1), args.Error(2)
}

func TestRegisterReturnsCreatedWithID(t *testing.T) {
	svc := &mockUserService{}
	userID := uuid.New()
	svc.On("Register", mock.Anything, domain.RegisterRequest{
		Username: "u1", Email: "u1@x.com", Password: "pw12345678",
	}).Return(userID, nil)

	h := NewUserHandler(svc)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/users",
		strings.NewReader(`{"username":"u1","email":"u1@x.com","password":"pw12345678"}`))
	rec := httptest.NewRecorder()
	h.Register(rec, req)

	require.Equal(t, http.StatusCreated, rec.Code)
	var body map[string]string
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	assert.Equal(t, userID.String(), body["id"])
}

func TestRegisterConflictMapsTo409(t *testing.T) {
	svc := &mockUserService{}
	svc.On("Register", mock.Anything, mock.Anything).Return(uuid.Nil, domain.ErrConflict)

	h := NewUserHandler(svc)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/users",
		strings.NewReader(`{"username":"u1","email":"u1@x.com","password":"pw12345678"}`))
	rec := httptest.NewRecorder()
	h.Register(rec, req)

	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestRegisterRejectsMalformedBody(t *testing.T) {
	h := NewUserHandler(&mockUserService{})
	req := httptest.NewRequest(http.MethodPost, "/api/v1/users", strings.NewReader(`{not json`))
	rec := httptest.NewRecorder()
	h.Register(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestActivateRejectsNonUUID(t *testing.T) {
	h := NewUserHandler(&mockUserService{})
	req := httptest.NewRequest(http.MethodPost, "/api/v1/users/activate",
		strings.NewReader(`{"user_id":"not-a-uuid","code":"abC1z"}`))
	rec := httptest.NewRecorder()
	h.Activate(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)
	var body errorResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	assert.Equal(t, "user_id", body.Field)
}

func TestActivateWrongCodeMapsTo400(t *testing.T) {
	svc := &mockUserService{}
	userID := uuid.New()
	svc.On("Activate", mock.Anything, userID, "zzzzz").
		Return(domain.NewInvalidInput("code", "code is invalid"))

	h := NewUserHandler(svc)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/users/activate",
		strings.NewReader(`{"user_id":"`+userID.String()+`","code":"zzzzz"}`))
	rec := httptest.NewRecorder()
	h.Activate(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGetMeWithoutClaims(t *testing.T) {
	h := NewUserHandler(&mockUserService{})
	req := httptest.NewRequest(http.MethodGet, "/api/v1/users/me", nil)
	rec := httptest.NewRecorder()
	h.GetMe(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestListDefaultsPagination(t *testing.T) {
	svc := &mockUserService{}
	svc.On("List", mock.Anything, 1, 50).Return([]domain.User{}, 0, nil)

	h := NewUserHandler(svc)
	req := httptest.NewRequest(http.MethodGet, "/api/v1/users", nil)
	rec := httptest.NewRecorder()
	h.List(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var body listUsersResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	assert.Equal(t, 1, body.Page)
	assert.Equal(t, 50, body.PerPage)
	assert.NotNil(t, body.Data)
	svc.AssertExpectations(t)
}
