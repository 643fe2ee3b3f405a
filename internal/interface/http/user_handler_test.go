package handlers_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	userapp "github.com/kabantay/kabantay-api/internal/application"
	"github.com/kabantay/kabantay-api/internal/infrastructure/memstore"
	handlers "github.com/kabantay/kabantay-api/internal/interface/http"
	"github.com/kabantay/kabantay-api/internal/router/modules"
	"github.com/kabantay/kabantay-api/pkg/helpers"
	"github.com/kabantay/kabantay-api/pkg/validation"
)

var initOnce sync.Once

type testEnv struct {
	router *gin.Engine
	svc    *userapp.Service
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	initOnce.Do(func() {
		gin.SetMode(gin.TestMode)
		validation.Init()
	})

	logger := logrus.New()
	logger.SetOutput(bytes.NewBuffer(nil))

	jwt := helpers.NewJWTManager("test-access", "test-refresh", time.Hour, 24*time.Hour)
	svc := userapp.NewService(
		memstore.New(),
		helpers.NewBcryptHasher(bcrypt.MinCost),
		helpers.NewUUID,
		jwt,
		nil, logger, nil, "", nil, "", nil, false,
	)
	h := handlers.NewUserHandler(svc, logger, "localhost", false)

	r := gin.New()
	api := r.Group("/api")
	modules.NewUserModule(h, jwt).Register(api)

	return &testEnv{router: r, svc: svc}
}

type envelope struct {
	Status  int             `json:"status"`
	Success bool            `json:"success"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
	Error   json.RawMessage `json:"error"`
}

func (e *testEnv) do(t *testing.T, method, path string, body any, cookies ...*http.Cookie) (*httptest.ResponseRecorder, envelope) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	for _, c := range cookies {
		req.AddCookie(c)
	}
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)

	var env envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env))
	return w, env
}

func registerBody(email string) map[string]any {
	return map[string]any{
		"email":         email,
		"password":      "password123",
		"isUserInGroup": true,
		"isUserHead":    false,
		"address": map[string]any{
			"streetName": "12 Mabini St",
			"baranggay":  "Poblacion",
			"town":       "Taal",
			"province":   "Batangas",
			"zipCode":    "4208",
		},
		"profile": map[string]any{
			"firstName":   "Maria",
			"lastName":    "Santos",
			"birthDate":   "1990-01-15",
			"phoneNumber": "+639171234567",
		},
	}
}

// login registers nothing; it assumes the account exists and returns
// the auth cookies from a successful login.
func (e *testEnv) login(t *testing.T, email, password string) []*http.Cookie {
	t.Helper()
	w, env := e.do(t, http.MethodPost, "/api/users/login", map[string]any{
		"email":    email,
		"password": password,
	})
	require.Equal(t, http.StatusOK, w.Code)
	require.True(t, env.Success)
	cookies := w.Result().Cookies()
	require.NotEmpty(t, cookies)
	return cookies
}

func TestCreateUserRoute(t *testing.T) {
	e := newTestEnv(t)

	w, env := e.do(t, http.MethodPost, "/api/users", registerBody("maria@kabantay.ph"))
	require.Equal(t, http.StatusCreated, w.Code)
	assert.True(t, env.Success)

	var data struct {
		UserID    string `json:"userId"`
		AddressID string `json:"addressId"`
		ProfileID string `json:"profileId"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &data))
	assert.NotEmpty(t, data.UserID)
	assert.NotEmpty(t, data.AddressID)
	assert.NotEmpty(t, data.ProfileID)
}

func TestCreateUserRouteDuplicateEmail(t *testing.T) {
	e := newTestEnv(t)

	w, _ := e.do(t, http.MethodPost, "/api/users", registerBody("maria@kabantay.ph"))
	require.Equal(t, http.StatusCreated, w.Code)

	w, env := e.do(t, http.MethodPost, "/api/users", registerBody("maria@kabantay.ph"))
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.False(t, env.Success)
	assert.Equal(t, "existing email", env.Message)
}

func TestCreateUserRouteValidation(t *testing.T) {
	e := newTestEnv(t)

	body := registerBody("not-an-email")
	body["password"] = "short"
	w, env := e.do(t, http.MethodPost, "/api/users", body)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.False(t, env.Success)

	var details map[string]string
	require.NoError(t, json.Unmarshal(env.Error, &details))
	assert.Contains(t, details, "email")
	assert.Contains(t, details, "password")
}

func TestLoginRoute(t *testing.T) {
	e := newTestEnv(t)
	e.do(t, http.MethodPost, "/api/users", registerBody("maria@kabantay.ph"))

	w, env := e.do(t, http.MethodPost, "/api/users/login", map[string]any{
		"email":    "maria@kabantay.ph",
		"password": "wrong-password",
	})
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.False(t, env.Success)

	cookies := e.login(t, "maria@kabantay.ph", "password123")
	names := make([]string, 0, len(cookies))
	for _, c := range cookies {
		names = append(names, c.Name)
	}
	assert.Contains(t, names, "access_token")
	assert.Contains(t, names, "refresh_token")
}

func TestProtectedRoutesRequireAuth(t *testing.T) {
	e := newTestEnv(t)
	e.do(t, http.MethodPost, "/api/users", registerBody("maria@kabantay.ph"))

	w, _ := e.do(t, http.MethodGet, "/api/users", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	cookies := e.login(t, "maria@kabantay.ph", "password123")
	w, env := e.do(t, http.MethodGet, "/api/users", nil, cookies...)
	require.Equal(t, http.StatusOK, w.Code)

	var users []map[string]any
	require.NoError(t, json.Unmarshal(env.Data, &users))
	require.Len(t, users, 1)
	assert.Equal(t, "maria@kabantay.ph", users[0]["email"])

	// The credential hash never appears on the wire.
	assert.NotContains(t, users[0], "password")
	assert.NotContains(t, strings.ToLower(w.Body.String()), "$2a$")
}

func TestGetByEmailRoute(t *testing.T) {
	e := newTestEnv(t)
	e.do(t, http.MethodPost, "/api/users", registerBody("maria@kabantay.ph"))
	cookies := e.login(t, "maria@kabantay.ph", "password123")

	w, _ := e.do(t, http.MethodGet, "/api/users/by-email", nil, cookies...)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w, _ = e.do(t, http.MethodGet, "/api/users/by-email?email=ghost@kabantay.ph", nil, cookies...)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w, env := e.do(t, http.MethodGet, "/api/users/by-email?email=maria@kabantay.ph", nil, cookies...)
	require.Equal(t, http.StatusOK, w.Code)
	var user map[string]any
	require.NoError(t, json.Unmarshal(env.Data, &user))
	assert.Equal(t, "maria@kabantay.ph", user["email"])
	assert.NotContains(t, user, "password")
}

func TestUpdateUserRoute(t *testing.T) {
	e := newTestEnv(t)

	_, env := e.do(t, http.MethodPost, "/api/users", registerBody("maria@kabantay.ph"))
	var created struct {
		UserID string `json:"userId"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &created))
	e.do(t, http.MethodPost, "/api/users", registerBody("taken@kabantay.ph"))

	cookies := e.login(t, "maria@kabantay.ph", "password123")

	w, env := e.do(t, http.MethodPatch, "/api/users/"+created.UserID,
		map[string]any{"isUserHead": true}, cookies...)
	require.Equal(t, http.StatusOK, w.Code)
	var user map[string]any
	require.NoError(t, json.Unmarshal(env.Data, &user))
	assert.Equal(t, true, user["isUserHead"])

	w, _ = e.do(t, http.MethodPatch, "/api/users/"+created.UserID,
		map[string]any{"email": "taken@kabantay.ph"}, cookies...)
	assert.Equal(t, http.StatusConflict, w.Code)

	w, _ = e.do(t, http.MethodPatch, "/api/users/no-such-id",
		map[string]any{"isUserHead": true}, cookies...)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestChangePasswordRoute(t *testing.T) {
	e := newTestEnv(t)
	e.do(t, http.MethodPost, "/api/users", registerBody("maria@kabantay.ph"))
	cookies := e.login(t, "maria@kabantay.ph", "password123")

	w, _ := e.do(t, http.MethodPost, "/api/users/change-password",
		map[string]any{"email": "ghost@kabantay.ph", "newPassword": "rotated-456"}, cookies...)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w, env := e.do(t, http.MethodPost, "/api/users/change-password",
		map[string]any{"email": "maria@kabantay.ph", "newPassword": "rotated-456"}, cookies...)
	require.Equal(t, http.StatusOK, w.Code)
	assert.True(t, env.Success)

	// Old password is out, new one logs in.
	w, _ = e.do(t, http.MethodPost, "/api/users/login",
		map[string]any{"email": "maria@kabantay.ph", "password": "password123"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	e.login(t, "maria@kabantay.ph", "rotated-456")
}

func TestSoftDeleteRoute(t *testing.T) {
	e := newTestEnv(t)

	_, env := e.do(t, http.MethodPost, "/api/users", registerBody("maria@kabantay.ph"))
	var created struct {
		UserID string `json:"userId"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &created))
	cookies := e.login(t, "maria@kabantay.ph", "password123")

	w, _ := e.do(t, http.MethodPatch, "/api/users/"+created.UserID+"/soft-delete", nil, cookies...)
	require.Equal(t, http.StatusOK, w.Code)

	w, _ = e.do(t, http.MethodGet, "/api/users/by-email?email=maria@kabantay.ph", nil, cookies...)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w, env = e.do(t, http.MethodGet, "/api/users/deleted", nil, cookies...)
	require.Equal(t, http.StatusOK, w.Code)
	var deleted []map[string]any
	require.NoError(t, json.Unmarshal(env.Data, &deleted))
	require.Len(t, deleted, 1)
	assert.Equal(t, created.UserID, deleted[0]["userId"])
	assert.NotNil(t, deleted[0]["address"])
	assert.NotNil(t, deleted[0]["profile"])
}

func TestRefreshRoute(t *testing.T) {
	e := newTestEnv(t)
	e.do(t, http.MethodPost, "/api/users", registerBody("maria@kabantay.ph"))

	w, _ := e.do(t, http.MethodPost, "/api/users/refresh", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	cookies := e.login(t, "maria@kabantay.ph", "password123")
	w, env := e.do(t, http.MethodPost, "/api/users/refresh", nil, cookies...)
	require.Equal(t, http.StatusOK, w.Code)
	assert.True(t, env.Success)
	assert.NotEmpty(t, w.Result().Cookies())
}

func TestLogoutRoute(t *testing.T) {
	e := newTestEnv(t)
	e.do(t, http.MethodPost, "/api/users", registerBody("maria@kabantay.ph"))
	cookies := e.login(t, "maria@kabantay.ph", "password123")

	w, _ := e.do(t, http.MethodPost, "/api/users/logout", nil, cookies...)
	require.Equal(t, http.StatusOK, w.Code)
	for _, c := range w.Result().Cookies() {
		assert.Empty(t, c.Value, "auth cookies are cleared")
	}
}
