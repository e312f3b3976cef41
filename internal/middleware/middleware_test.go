package middleware

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-redis/redismock/v9"
	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"
	logtest "github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/theater-booking/internal/config"
	"github.com/iliyamo/theater-booking/internal/utils"
)

const testSecret = "test-secret"

func serve(t *testing.T, mw []echo.MiddlewareFunc, header string) *httptest.ResponseRecorder {
	t.Helper()
	e := echo.New()
	e.GET("/", func(c echo.Context) error {
		return c.String(http.StatusOK, StaffID(c)+"|"+Role(c))
	}, mw...)
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	if header != "" {
		req.Header.Set(echo.HeaderAuthorization, header)
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func TestJWTAuth(t *testing.T) {
	chain := []echo.MiddlewareFunc{JWTAuth(testSecret), RequireRole(RoleAdmin, RoleStaff)}

	t.Run("valid staff token", func(t *testing.T) {
		tok, err := utils.NewAccessToken(testSecret, "staff-7", "staff", 5)
		require.NoError(t, err)
		rec := serve(t, chain, "Bearer "+tok.Token)
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "staff-7|STAFF", rec.Body.String())
	})

	t.Run("missing header", func(t *testing.T) {
		rec := serve(t, chain, "")
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("wrong secret", func(t *testing.T) {
		tok, err := utils.NewAccessToken("other", "staff-7", "ADMIN", 5)
		require.NoError(t, err)
		rec := serve(t, chain, "Bearer "+tok.Token)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("token without expiry", func(t *testing.T) {
		raw, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"sub": "staff-7", "role": "ADMIN"}).
			SignedString([]byte(testSecret))
		require.NoError(t, err)
		rec := serve(t, chain, "Bearer "+raw)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("role not allowed", func(t *testing.T) {
		tok, err := utils.NewAccessToken(testSecret, "cust-1", "CUSTOMER", 5)
		require.NoError(t, err)
		rec := serve(t, chain, "Bearer "+tok.Token)
		assert.Equal(t, http.StatusForbidden, rec.Code)
	})
}

func TestEditThrottle(t *testing.T) {
	log, _ := logtest.NewNullLogger()
	cfg := config.ThrottleConfig{Enabled: true, Limit: 2, Window: time.Minute, Prefix: "edits"}
	tok, err := utils.NewAccessToken(testSecret, "staff-7", "STAFF", 5)
	require.NoError(t, err)
	header := "Bearer " + tok.Token

	t.Run("first edit starts the window", func(t *testing.T) {
		rdb, mock := redismock.NewClientMock()
		mock.ExpectIncr("edits:staff-7").SetVal(1)
		mock.ExpectExpire("edits:staff-7", time.Minute).SetVal(true)

		rec := serve(t, []echo.MiddlewareFunc{JWTAuth(testSecret), EditThrottle(cfg, rdb, log)}, header)
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "1", rec.Header().Get("X-RateLimit-Remaining"))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("over the limit", func(t *testing.T) {
		rdb, mock := redismock.NewClientMock()
		mock.ExpectIncr("edits:staff-7").SetVal(3)
		mock.ExpectTTL("edits:staff-7").SetVal(42 * time.Second)

		rec := serve(t, []echo.MiddlewareFunc{JWTAuth(testSecret), EditThrottle(cfg, rdb, log)}, header)
		assert.Equal(t, http.StatusTooManyRequests, rec.Code)
		assert.Equal(t, "42", rec.Header().Get("Retry-After"))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("redis failure lets the edit through", func(t *testing.T) {
		rdb, mock := redismock.NewClientMock()
		mock.ExpectIncr("edits:staff-7").SetErr(errors.New("connection refused"))

		rec := serve(t, []echo.MiddlewareFunc{JWTAuth(testSecret), EditThrottle(cfg, rdb, log)}, header)
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}
