package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vidinsight-tech/queryon/internal/config"
)

func okHandler(c echo.Context) error { return c.String(http.StatusOK, "ok") }

func newRequest(e *echo.Echo) (echo.Context, *httptest.ResponseRecorder) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	return e.NewContext(req, rec), rec
}

func TestRateLimit_DisabledWhenRequestsIsZero(t *testing.T) {
	e := echo.New()
	h := RateLimit(config.RateLimit{})(okHandler)

	c, rec := newRequest(e)
	require.NoError(t, h(c))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestRateLimit_AllowsUpToBurstThenRejects(t *testing.T) {
	e := echo.New()
	h := RateLimit(config.RateLimit{Requests: 2, Per: time.Minute})(okHandler)

	for i := 0; i < 2; i++ {
		c, rec := newRequest(e)
		require.NoError(t, h(c))
		assert.Equal(t, http.StatusOK, rec.Code)
	}

	c, _ := newRequest(e)
	err := h(c)
	require.Error(t, err)
	httpErr, ok := err.(*echo.HTTPError)
	require.True(t, ok)
	assert.Equal(t, http.StatusTooManyRequests, httpErr.Code)
}

func TestRateLimit_TracksPerIPIndependently(t *testing.T) {
	e := echo.New()
	h := RateLimit(config.RateLimit{Requests: 1, Per: time.Minute})(okHandler)

	req1 := httptest.NewRequest(http.MethodGet, "/", nil)
	req1.RemoteAddr = "10.0.0.1:1234"
	c1 := e.NewContext(req1, httptest.NewRecorder())
	require.NoError(t, h(c1))
	assert.Error(t, h(c1))

	req2 := httptest.NewRequest(http.MethodGet, "/", nil)
	req2.RemoteAddr = "10.0.0.2:1234"
	c2 := e.NewContext(req2, httptest.NewRecorder())
	assert.NoError(t, h(c2))
}

func TestAdminAuth_AcceptsMatchingAPIKeyHeader(t *testing.T) {
	e := echo.New()
	h := AdminAuth("secret")(okHandler)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Admin-Key", "secret")
	c := e.NewContext(req, httptest.NewRecorder())

	assert.NoError(t, h(c))
}

func TestAdminAuth_RejectsWrongAPIKeyHeader(t *testing.T) {
	e := echo.New()
	h := AdminAuth("secret")(okHandler)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Admin-Key", "wrong")
	c := e.NewContext(req, httptest.NewRecorder())

	err := h(c)
	require.Error(t, err)
	httpErr, ok := err.(*echo.HTTPError)
	require.True(t, ok)
	assert.Equal(t, http.StatusUnauthorized, httpErr.Code)
}

func TestAdminAuth_AcceptsValidBearerJWT(t *testing.T) {
	e := echo.New()
	h := AdminAuth("secret")(okHandler)

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{})
	signed, err := token.SignedString([]byte("secret"))
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+signed)
	c := e.NewContext(req, httptest.NewRecorder())

	assert.NoError(t, h(c))
}

func TestAdminAuth_RejectsJWTSignedWithWrongSecret(t *testing.T) {
	e := echo.New()
	h := AdminAuth("secret")(okHandler)

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{})
	signed, err := token.SignedString([]byte("not-the-secret"))
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+signed)
	c := e.NewContext(req, httptest.NewRecorder())

	err = h(c)
	require.Error(t, err)
}

func TestAdminAuth_RejectsMissingCredentials(t *testing.T) {
	e := echo.New()
	h := AdminAuth("secret")(okHandler)

	c, _ := newRequest(e)
	err := h(c)
	require.Error(t, err)
	httpErr, ok := err.(*echo.HTTPError)
	require.True(t, ok)
	assert.Equal(t, http.StatusUnauthorized, httpErr.Code)
}
