package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"

	"messenger-service/internal/auth"
	"messenger-service/internal/mocks"
)

func protectedRouter(verifier auth.Verifier) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.GET("/protected", AuthMiddleware(verifier), func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"user_id":  c.GetInt("userID"),
			"username": c.GetString("username"),
		})
	})
	return router
}

func TestAuthMiddlewareMissingHeader(t *testing.T) {
	router := protectedRouter(new(mocks.VerifierMock))

	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestAuthMiddlewareMalformedHeader(t *testing.T) {
	router := protectedRouter(new(mocks.VerifierMock))

	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	req.Header.Set("Authorization", "Basic abc123")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestAuthMiddlewareRejectedToken(t *testing.T) {
	verifier := new(mocks.VerifierMock)
	verifier.On("Verify", "bad-token").Return(nil, auth.ErrInvalidToken).Once()
	router := protectedRouter(verifier)

	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	req.Header.Set("Authorization", "Bearer bad-token")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusUnauthorized, rec.Code)
	verifier.AssertExpectations(t)
}

func TestAuthMiddlewareSetsIdentity(t *testing.T) {
	verifier := new(mocks.VerifierMock)
	verifier.On("Verify", "good-token").Return(auth.Identity{ID: 1, Username: "alice"}, nil).Once()
	router := protectedRouter(verifier)

	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	req.Header.Set("Authorization", "Bearer good-token")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	require.JSONEq(t, `{"user_id": 1, "username": "alice"}`, rec.Body.String())
}
