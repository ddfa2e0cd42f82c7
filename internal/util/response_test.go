package util

import (
	"encoding/json"
	stderrors "errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/codeconnects/backend/internal/errors"
	"github.com/codeconnects/backend/internal/logger"
	"github.com/codeconnects/backend/internal/session"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func serve(t *testing.T, handler gin.HandlerFunc) (*httptest.ResponseRecorder, ErrorResponse) {
	t.Helper()
	logger.UseNop()
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.GET("/", handler)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))

	var body ErrorResponse
	if w.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	}
	return w, body
}

func TestRespondWithError_FeedError(t *testing.T) {
	w, body := serve(t, func(c *gin.Context) {
		RespondWithError(c, errors.WriteFailed(errors.OpToggleLike, "post-1", stderrors.New("timeout")))
	})

	assert.Equal(t, http.StatusBadGateway, w.Code)
	assert.Equal(t, "WRITE_FAILED", body.Code)
	assert.Equal(t, "toggle_like", body.Op)
	assert.Equal(t, "post-1", body.TargetID)
	assert.NotContains(t, w.Body.String(), "timeout", "cause is not exposed")
}

func TestRespondWithError_StatusMapping(t *testing.T) {
	tests := []struct {
		err    error
		status int
	}{
		{errors.NotFound(errors.OpFetch, "post", "x"), http.StatusNotFound},
		{errors.NotAuthenticated(errors.OpAddComment), http.StatusUnauthorized},
		{errors.ValidationError(errors.OpAddComment, "content", "empty"), http.StatusUnprocessableEntity},
		{errors.Forbidden(errors.OpDeletePost, "p", "no"), http.StatusForbidden},
		{errors.ConstraintViolation(errors.OpCreatePost, "p", nil), http.StatusConflict},
		{stderrors.New("plain"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		w, _ := serve(t, func(c *gin.Context) { RespondWithError(c, tt.err) })
		assert.Equal(t, tt.status, w.Code, tt.err.Error())
	}
}

func TestRespondWithError_PlainErrorHidden(t *testing.T) {
	w, body := serve(t, func(c *gin.Context) { RespondWithError(c, stderrors.New("dsn=secret")) })
	assert.Equal(t, "INTERNAL_ERROR", body.Code)
	assert.NotContains(t, w.Body.String(), "secret")
}

func TestIdentityContext(t *testing.T) {
	w, body := serve(t, func(c *gin.Context) {
		_, ok := RequireIdentity(c)
		assert.False(t, ok)
	})
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, "NOT_AUTHENTICATED", body.Code)

	w, _ = serve(t, func(c *gin.Context) {
		SetIdentity(c, session.Identity{ID: "u1", Username: "alice"})
		id, ok := GetIdentity(c)
		require.True(t, ok)
		assert.Equal(t, "alice", id.Username)

		fromCtx, ok := session.FromContext(c.Request.Context())
		require.True(t, ok)
		assert.Equal(t, "u1", fromCtx.ID)
		c.Status(http.StatusNoContent)
	})
	assert.Equal(t, http.StatusNoContent, w.Code)
}
