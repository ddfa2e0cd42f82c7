package util

import (
	"github.com/codeconnects/backend/internal/session"
	"github.com/gin-gonic/gin"
)

// IdentityKey is the gin context key the auth middleware stores the viewer under
const IdentityKey = "identity"

// SetIdentity records the authenticated viewer on the request, on both the gin
// context and the request context.
func SetIdentity(c *gin.Context, id session.Identity) {
	c.Set(IdentityKey, id)
	c.Set("user_id", id.ID)
	c.Request = c.Request.WithContext(session.WithIdentity(c.Request.Context(), id))
}

// GetIdentity returns the viewer, or the zero identity and false if the request
// is anonymous.
func GetIdentity(c *gin.Context) (session.Identity, bool) {
	v, exists := c.Get(IdentityKey)
	if !exists {
		return session.Identity{}, false
	}
	id, ok := v.(session.Identity)
	return id, ok && id.ID != ""
}

// RequireIdentity is GetIdentity that answers 401 itself when there is no viewer
func RequireIdentity(c *gin.Context) (session.Identity, bool) {
	id, ok := GetIdentity(c)
	if !ok {
		RespondUnauthorized(c)
	}
	return id, ok
}
