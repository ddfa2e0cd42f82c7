package handlers

import (
	"github.com/codeconnects/backend/internal/middleware"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// RouteLimits are the rate limiters applied to route groups. Nil entries are skipped.
type RouteLimits struct {
	Read  gin.HandlerFunc
	Write gin.HandlerFunc
	Auth  gin.HandlerFunc
}

func use(handlers ...gin.HandlerFunc) []gin.HandlerFunc {
	out := handlers[:0:0]
	for _, h := range handlers {
		if h != nil {
			out = append(out, h)
		}
	}
	return out
}

// RegisterRoutes mounts the API on r. AuthMiddleware runs for every /api/v1
// route; writes additionally require a viewer.
func (h *Handlers) RegisterRoutes(r *gin.Engine, limits RouteLimits) {
	r.GET("/health", h.Health)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
	if h.wsHandler != nil {
		r.GET("/ws/notifications", h.wsHandler.HandleWebSocket)
		r.GET("/ws/stats", h.wsHandler.HandleStats)
	}

	api := r.Group("/api/v1")
	api.Use(middleware.AuthMiddleware(h.auth))

	authGroup := api.Group("/auth", use(limits.Auth)...)
	{
		authGroup.POST("/register", h.Register)
		authGroup.POST("/token", h.IssueToken)
		authGroup.GET("/me", middleware.RequireAuth(), h.Me)
		authGroup.DELETE("/session", middleware.RequireAuth(), h.Logout)
	}

	reads := api.Group("", use(limits.Read)...)
	{
		reads.GET("/feed/global", h.GetGlobalFeed)
		reads.GET("/feed/following", middleware.RequireAuth(), h.GetFollowingFeed)
		reads.GET("/users/:id/posts", h.GetUserPosts)
		reads.GET("/posts/:id", h.GetPost)
		reads.GET("/posts/:id/comments", h.GetComments)
		reads.GET("/search/posts", h.SearchPosts)
		reads.GET("/search/users", h.SearchUsers)
	}

	writes := api.Group("", use(middleware.RequireAuth(), limits.Write)...)
	{
		writes.POST("/posts", h.CreatePost)
		writes.DELETE("/posts/:id", h.DeletePost)
		writes.POST("/posts/:id/like", h.ToggleLike)
		writes.POST("/posts/:id/comments", h.CreateComment)
		writes.POST("/users/:id/follow", h.SetFollowing)
	}

	if h.messages != nil {
		inbox := api.Group("/messages", use(middleware.RequireAuth(), limits.Read)...)
		inbox.GET("", h.GetConversations)
		inbox.GET("/:userId", h.GetConversation)

		send := api.Group("/messages", use(middleware.RequireAuth(), limits.Write)...)
		send.POST("/:userId", h.SendMessage)
		send.POST("/:userId/read", h.MarkConversationRead)
	}
}
