package middleware

import (
	"strings"

	"github.com/codeconnects/backend/internal/auth"
	"github.com/codeconnects/backend/internal/logger"
	"github.com/codeconnects/backend/internal/session"
	"github.com/codeconnects/backend/internal/util"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// AuthMiddleware resolves the viewer from a Bearer token or a ?token= query
// parameter. Requests without a token continue anonymously; a token that is
// present but invalid is rejected with 401.
func AuthMiddleware(authService auth.AuthServiceInterface) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := extractToken(c)
		if token == "" {
			c.Next()
			return
		}

		identity, err := authService.ValidateToken(c.Request.Context(), token)
		if err != nil {
			logger.Log.Debug("Rejected token",
				zap.String("path", c.Request.URL.Path),
				zap.Error(err),
			)
			util.RespondUnauthorized(c, "invalid or expired token")
			return
		}

		util.SetIdentity(c, *identity)
		c.Next()
	}
}

// RequireAuth aborts anonymous requests with 401 NOT_AUTHENTICATED.
// Install it after AuthMiddleware.
func RequireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		if _, ok := util.RequireIdentity(c); !ok {
			return
		}
		c.Next()
	}
}

// IdentityFrom returns the viewer AuthMiddleware attached to the request
func IdentityFrom(c *gin.Context) (session.Identity, bool) {
	return util.GetIdentity(c)
}

func extractToken(c *gin.Context) string {
	if header := c.GetHeader("Authorization"); header != "" {
		if after, ok := strings.CutPrefix(header, "Bearer "); ok {
			return strings.TrimSpace(after)
		}
		return ""
	}
	return c.Query("token")
}
