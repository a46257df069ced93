package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/pipedesk/pipedesk/pkg/auth"
)

const testSecret = "test-secret-key-minimum-32-characters-long"

func okHandler(c echo.Context) error {
	return c.String(http.StatusOK, "ok")
}

func runMiddleware(t *testing.T, mw echo.MiddlewareFunc, req *http.Request) (*httptest.ResponseRecorder, echo.Context) {
	t.Helper()
	e := echo.New()
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	err := mw(okHandler)(c)
	require.NoError(t, err)
	return rec, c
}

func TestJWTMiddleware_ValidToken(t *testing.T) {
	userID := primitive.NewObjectID()
	token, err := auth.GenerateJWT(userID.Hex(), "test@example.com", "user", testSecret, 24)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+token)

	rec, c := runMiddleware(t, JWTMiddleware(testSecret), req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, userID, c.Get("user_id"))
	assert.Equal(t, "test@example.com", c.Get("user_email"))
	assert.Equal(t, "user", c.Get("user_role"))
	assert.Equal(t, token, c.Get("token"))
}

func TestJWTMiddleware_MissingHeader(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec, _ := runMiddleware(t, JWTMiddleware(testSecret), req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestJWTMiddleware_MalformedHeader(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "NotBearer xyz")
	rec, _ := runMiddleware(t, JWTMiddleware(testSecret), req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestJWTMiddleware_BadToken(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer not.a.token")
	rec, _ := runMiddleware(t, JWTMiddleware(testSecret), req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestJWTMiddleware_WrongSecret(t *testing.T) {
	token, err := auth.GenerateJWT(primitive.NewObjectID().Hex(), "test@example.com", "user", "another-secret-key-32-characters-xx", 24)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec, _ := runMiddleware(t, JWTMiddleware(testSecret), req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestJWTFromQueryOrHeader_QueryToken(t *testing.T) {
	userID := primitive.NewObjectID()
	token, err := auth.GenerateJWT(userID.Hex(), "test@example.com", "user", testSecret, 24)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/?token="+token, nil)
	rec, c := runMiddleware(t, JWTFromQueryOrHeader(testSecret, nil, nil), req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, userID, c.Get("user_id"))
}

func TestJWTFromQueryOrHeader_HeaderWins(t *testing.T) {
	userID := primitive.NewObjectID()
	token, err := auth.GenerateJWT(userID.Hex(), "test@example.com", "user", testSecret, 24)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/?token=garbage", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec, _ := runMiddleware(t, JWTFromQueryOrHeader(testSecret, nil, nil), req)

	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestJWTFromQueryOrHeader_NoToken(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec, _ := runMiddleware(t, JWTFromQueryOrHeader(testSecret, nil, nil), req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestCurrentUserID(t *testing.T) {
	e := echo.New()
	c := e.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), httptest.NewRecorder())

	_, ok := CurrentUserID(c)
	assert.False(t, ok)

	want := primitive.NewObjectID()
	c.Set("user_id", want)

	got, ok := CurrentUserID(c)
	assert.True(t, ok)
	assert.Equal(t, want, got)
}
