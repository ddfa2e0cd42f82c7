package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/codeconnects/backend/internal/auth"
	"github.com/codeconnects/backend/internal/feed"
	"github.com/codeconnects/backend/internal/logger"
	"github.com/codeconnects/backend/internal/messaging"
	"github.com/codeconnects/backend/internal/notify"
	"github.com/codeconnects/backend/internal/store/memory"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
)

// HandlersTestSuite drives the HTTP surface against the in-memory store
type HandlersTestSuite struct {
	suite.Suite
	repo     *memory.Store
	recorder *notify.Recorder
	handlers *Handlers
	router   *gin.Engine

	aliceID, aliceToken string
	bobID, bobToken     string
}

func (suite *HandlersTestSuite) SetupTest() {
	logger.UseNop()
	gin.SetMode(gin.TestMode)

	suite.repo = memory.New()
	suite.recorder = notify.NewRecorder()
	registry := feed.NewRegistry(suite.repo, suite.recorder, feed.WithConcurrency(4))
	authService := auth.NewService([]byte("test-secret"), suite.repo)

	suite.handlers = NewHandlers(registry, authService)
	suite.handlers.SetMessaging(messaging.NewService(suite.repo, suite.recorder))
	suite.router = gin.New()
	suite.handlers.RegisterRoutes(suite.router, RouteLimits{})

	suite.aliceID, suite.aliceToken = suite.register("alice")
	suite.bobID, suite.bobToken = suite.register("bob")
}

func (suite *HandlersTestSuite) request(method, path, token string, body interface{}) *httptest.ResponseRecorder {
	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(suite.T(), err)
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	suite.router.ServeHTTP(w, req)
	return w
}

func (suite *HandlersTestSuite) decode(w *httptest.ResponseRecorder, out interface{}) {
	require.NoError(suite.T(), json.Unmarshal(w.Body.Bytes(), out), w.Body.String())
}

func (suite *HandlersTestSuite) register(username string) (string, string) {
	w := suite.request(http.MethodPost, "/api/v1/auth/register", "", gin.H{"username": username})
	require.Equal(suite.T(), http.StatusCreated, w.Code, w.Body.String())
	var resp auth.AuthResponse
	suite.decode(w, &resp)
	return resp.User.ID, resp.Token
}

type pageBody struct {
	View      string          `json:"view"`
	Posts     []feed.PostView `json:"posts"`
	FromCache bool            `json:"from_cache"`
	Stale     bool            `json:"stale"`
}

func (suite *HandlersTestSuite) feedPage(path, token string) pageBody {
	w := suite.request(http.MethodGet, path, token, nil)
	require.Equal(suite.T(), http.StatusOK, w.Code, w.Body.String())
	var page pageBody
	suite.decode(w, &page)
	return page
}

func (suite *HandlersTestSuite) createPost(token, description string, tags ...string) string {
	w := suite.request(http.MethodPost, "/api/v1/posts", token, gin.H{"description": description, "tags": tags})
	require.Equal(suite.T(), http.StatusCreated, w.Code, w.Body.String())
	var resp struct {
		ID string `json:"id"`
	}
	suite.decode(w, &resp)
	return resp.ID
}

func (suite *HandlersTestSuite) TestHealth() {
	w := suite.request(http.MethodGet, "/health", "", nil)
	suite.Equal(http.StatusOK, w.Code)

	suite.handlers.SetHealthCheck(func(ctx context.Context) error { return errors.New("connection refused") })
	w = suite.request(http.MethodGet, "/health", "", nil)
	suite.Equal(http.StatusServiceUnavailable, w.Code)
	suite.Contains(w.Body.String(), "degraded")
}

func (suite *HandlersTestSuite) TestRegisterDuplicateUsername() {
	w := suite.request(http.MethodPost, "/api/v1/auth/register", "", gin.H{"username": "alice"})
	suite.Equal(http.StatusConflict, w.Code)
	suite.Contains(w.Body.String(), "CONSTRAINT_VIOLATION")
}

func (suite *HandlersTestSuite) TestRegisterRejectsShortUsername() {
	w := suite.request(http.MethodPost, "/api/v1/auth/register", "", gin.H{"username": "x"})
	suite.Equal(http.StatusUnprocessableEntity, w.Code)
}

func (suite *HandlersTestSuite) TestIssueTokenOnlyWithDevTokens() {
	w := suite.request(http.MethodPost, "/api/v1/auth/token", "", gin.H{"user_id": suite.aliceID})
	suite.Equal(http.StatusNotFound, w.Code)

	suite.handlers.EnableDevTokens(true)
	w = suite.request(http.MethodPost, "/api/v1/auth/token", "", gin.H{"user_id": suite.aliceID})
	suite.Equal(http.StatusOK, w.Code)

	w = suite.request(http.MethodPost, "/api/v1/auth/token", "", gin.H{"user_id": "ghost"})
	suite.Equal(http.StatusNotFound, w.Code)
}

func (suite *HandlersTestSuite) TestMe() {
	w := suite.request(http.MethodGet, "/api/v1/auth/me", suite.aliceToken, nil)
	suite.Equal(http.StatusOK, w.Code)
	suite.Contains(w.Body.String(), `"username":"alice"`)

	w = suite.request(http.MethodGet, "/api/v1/auth/me", "", nil)
	suite.Equal(http.StatusUnauthorized, w.Code)
}

func (suite *HandlersTestSuite) TestInvalidTokenRejected() {
	w := suite.request(http.MethodGet, "/api/v1/feed/global", "not-a-jwt", nil)
	suite.Equal(http.StatusUnauthorized, w.Code)
}

func (suite *HandlersTestSuite) TestGlobalFeedServedFromCacheOnSecondRead() {
	suite.createPost(suite.bobToken, "first")

	first := suite.feedPage("/api/v1/feed/global", suite.aliceToken)
	suite.False(first.FromCache)
	suite.Equal("feed:global", first.View)
	suite.Len(first.Posts, 1)

	second := suite.feedPage("/api/v1/feed/global", suite.aliceToken)
	suite.True(second.FromCache)

	refreshed := suite.feedPage("/api/v1/feed/global?refresh=true", suite.aliceToken)
	suite.False(refreshed.FromCache)
}

func (suite *HandlersTestSuite) TestAnonymousReadsAreOpen() {
	suite.createPost(suite.bobToken, "public")

	page := suite.feedPage("/api/v1/feed/global", "")
	suite.Len(page.Posts, 1)
	suite.False(page.Posts[0].IsLikedByViewer)

	w := suite.request(http.MethodGet, "/api/v1/feed/following", "", nil)
	suite.Equal(http.StatusUnauthorized, w.Code)
}

func (suite *HandlersTestSuite) TestWritesRequireToken() {
	w := suite.request(http.MethodPost, "/api/v1/posts", "", gin.H{"description": "hi"})
	suite.Equal(http.StatusUnauthorized, w.Code)
	suite.Contains(w.Body.String(), "NOT_AUTHENTICATED")
	suite.Zero(suite.repo.CallCount("InsertPost"))
}

func (suite *HandlersTestSuite) TestCreatePostPrependsToCachedFeed() {
	suite.createPost(suite.aliceToken, "older")
	suite.feedPage("/api/v1/feed/global", suite.aliceToken)

	newID := suite.createPost(suite.aliceToken, "newer", "Go", "go", " API ")

	page := suite.feedPage("/api/v1/feed/global", suite.aliceToken)
	suite.True(page.FromCache)
	suite.Require().Len(page.Posts, 2)
	suite.Equal(newID, page.Posts[0].ID)
	suite.Equal([]string{"api", "go"}, page.Posts[0].Tags)
	suite.Contains(suite.recorder.Texts(), "Post created successfully")
}

func (suite *HandlersTestSuite) TestCreatePostRejectsBlankDescription() {
	w := suite.request(http.MethodPost, "/api/v1/posts", suite.aliceToken, gin.H{"description": "   "})
	suite.Equal(http.StatusUnprocessableEntity, w.Code)
	suite.Contains(w.Body.String(), `"field":"description"`)
}

func (suite *HandlersTestSuite) TestToggleLike() {
	postID := suite.createPost(suite.bobToken, "like me")
	suite.feedPage("/api/v1/feed/global", suite.aliceToken)

	w := suite.request(http.MethodPost, "/api/v1/posts/"+postID+"/like", suite.aliceToken, gin.H{"liked": false})
	suite.Require().Equal(http.StatusOK, w.Code, w.Body.String())
	suite.Contains(w.Body.String(), `"liked":true`)

	page := suite.feedPage("/api/v1/feed/global", suite.aliceToken)
	suite.True(page.FromCache)
	suite.Equal(1, page.Posts[0].LikesCount)
	suite.True(page.Posts[0].IsLikedByViewer)

	w = suite.request(http.MethodPost, "/api/v1/posts/"+postID+"/like", suite.aliceToken, gin.H{"liked": true})
	suite.Contains(w.Body.String(), `"liked":false`)
	page = suite.feedPage("/api/v1/feed/global", suite.aliceToken)
	suite.Equal(0, page.Posts[0].LikesCount)
}

func (suite *HandlersTestSuite) TestComments() {
	postID := suite.createPost(suite.bobToken, "discuss")

	w := suite.request(http.MethodPost, "/api/v1/posts/"+postID+"/comments", suite.aliceToken, gin.H{"content": "  "})
	suite.Equal(http.StatusUnprocessableEntity, w.Code)
	suite.Zero(suite.repo.CallCount("InsertComment"))

	w = suite.request(http.MethodPost, "/api/v1/posts/"+postID+"/comments", suite.aliceToken, gin.H{"content": "nice"})
	suite.Require().Equal(http.StatusCreated, w.Code, w.Body.String())
	var comment feed.CommentView
	suite.decode(w, &comment)
	suite.Equal("alice", comment.Author.Username)

	w = suite.request(http.MethodGet, "/api/v1/posts/"+postID+"/comments", "", nil)
	suite.Equal(http.StatusOK, w.Code)
	suite.Contains(w.Body.String(), `"count":1`)

	w = suite.request(http.MethodGet, "/api/v1/posts/missing/comments", "", nil)
	suite.Equal(http.StatusNotFound, w.Code)
}

func (suite *HandlersTestSuite) TestDeletePost() {
	postID := suite.createPost(suite.bobToken, "mine")

	w := suite.request(http.MethodDelete, "/api/v1/posts/"+postID, suite.aliceToken, nil)
	suite.Equal(http.StatusForbidden, w.Code)

	w = suite.request(http.MethodDelete, "/api/v1/posts/"+postID, suite.bobToken, nil)
	suite.Equal(http.StatusOK, w.Code)

	w = suite.request(http.MethodGet, "/api/v1/posts/"+postID, suite.bobToken, nil)
	suite.Equal(http.StatusNotFound, w.Code)
}

func (suite *HandlersTestSuite) TestGetPost() {
	postID := suite.createPost(suite.bobToken, "single")

	w := suite.request(http.MethodGet, "/api/v1/posts/"+postID, "", nil)
	suite.Require().Equal(http.StatusOK, w.Code)
	var body struct {
		Post feed.PostView `json:"post"`
	}
	suite.decode(w, &body)
	suite.Equal("single", body.Post.Description)
	suite.Equal("bob", body.Post.Author.Username)
}

func (suite *HandlersTestSuite) TestUserPosts() {
	suite.createPost(suite.bobToken, "by bob")
	suite.createPost(suite.aliceToken, "by alice")

	page := suite.feedPage("/api/v1/users/"+suite.bobID+"/posts", "")
	suite.Equal("feed:user:"+suite.bobID, page.View)
	suite.Require().Len(page.Posts, 1)
	suite.Equal(suite.bobID, page.Posts[0].UserID)
}

func (suite *HandlersTestSuite) TestFollowing() {
	suite.createPost(suite.bobToken, "from bob")
	_, carolToken := suite.register("carol")
	suite.createPost(carolToken, "from carol")

	page := suite.feedPage("/api/v1/feed/following", suite.aliceToken)
	suite.Empty(page.Posts)

	w := suite.request(http.MethodPost, "/api/v1/users/"+suite.bobID+"/follow", suite.aliceToken, gin.H{"following": true})
	suite.Require().Equal(http.StatusOK, w.Code, w.Body.String())

	page = suite.feedPage("/api/v1/feed/following", suite.aliceToken)
	suite.False(page.FromCache, "following feed is invalidated by a follow")
	suite.Require().Len(page.Posts, 1)
	suite.Equal("from bob", page.Posts[0].Description)

	w = suite.request(http.MethodPost, "/api/v1/users/"+suite.aliceID+"/follow", suite.aliceToken, gin.H{"following": true})
	suite.Equal(http.StatusUnprocessableEntity, w.Code)

	w = suite.request(http.MethodPost, "/api/v1/users/"+suite.bobID+"/follow", suite.aliceToken, gin.H{})
	suite.Equal(http.StatusBadRequest, w.Code)
}

func (suite *HandlersTestSuite) TestSessionsHaveSeparateCaches() {
	suite.createPost(suite.bobToken, "shared")
	suite.feedPage("/api/v1/feed/global", suite.aliceToken)

	page := suite.feedPage("/api/v1/feed/global", suite.bobToken)
	suite.False(page.FromCache)
}

func (suite *HandlersTestSuite) TestStoreFailureMapsToBadGateway() {
	suite.repo.SetHook(func(ctx context.Context, method string, args ...string) error {
		if method == "ListPosts" {
			return errors.New("connection reset")
		}
		return nil
	})

	w := suite.request(http.MethodGet, "/api/v1/feed/global", suite.aliceToken, nil)
	suite.Equal(http.StatusBadGateway, w.Code)
	suite.Contains(w.Body.String(), "FETCH_FAILED")
	suite.NotContains(w.Body.String(), "connection reset")
}

func (suite *HandlersTestSuite) TestLogoutReleasesSession() {
	suite.createPost(suite.bobToken, "hello")
	suite.feedPage("/api/v1/feed/global", suite.aliceToken)
	suite.feedPage("/api/v1/feed/global", suite.bobToken)
	before := suite.handlers.registry.Len()

	w := suite.request(http.MethodDelete, "/api/v1/auth/session", suite.aliceToken, nil)
	suite.Require().Equal(http.StatusNoContent, w.Code, w.Body.String())
	suite.Equal(before-1, suite.handlers.registry.Len())

	page := suite.feedPage("/api/v1/feed/global", suite.aliceToken)
	suite.False(page.FromCache, "a new session starts with an empty cache")
	suite.Equal(before, suite.handlers.registry.Len())

	w = suite.request(http.MethodDelete, "/api/v1/auth/session", "", nil)
	suite.Equal(http.StatusUnauthorized, w.Code)
}

func (suite *HandlersTestSuite) TestMessages() {
	w := suite.request(http.MethodPost, "/api/v1/messages/"+suite.bobID, suite.aliceToken, gin.H{"content": "hey bob"})
	suite.Require().Equal(http.StatusCreated, w.Code, w.Body.String())
	var sent messaging.MessageView
	suite.decode(w, &sent)
	suite.Equal("alice", sent.Sender.Username)
	suite.Contains(suite.recorder.Texts(), "New message from @alice")

	w = suite.request(http.MethodGet, "/api/v1/messages", suite.bobToken, nil)
	suite.Require().Equal(http.StatusOK, w.Code)
	var inbox struct {
		Conversations []messaging.Conversation `json:"conversations"`
	}
	suite.decode(w, &inbox)
	suite.Require().Len(inbox.Conversations, 1)
	suite.Equal(1, inbox.Conversations[0].UnreadCount)

	w = suite.request(http.MethodPost, "/api/v1/messages/"+suite.aliceID+"/read", suite.bobToken, nil)
	suite.Require().Equal(http.StatusOK, w.Code)
	suite.Contains(w.Body.String(), `"marked":1`)

	w = suite.request(http.MethodGet, "/api/v1/messages/"+suite.aliceID, suite.bobToken, nil)
	suite.Require().Equal(http.StatusOK, w.Code)
	suite.Contains(w.Body.String(), `"count":1`)
	suite.Contains(w.Body.String(), `"read":true`)

	w = suite.request(http.MethodPost, "/api/v1/messages/"+suite.bobID, suite.aliceToken, gin.H{"content": " "})
	suite.Equal(http.StatusUnprocessableEntity, w.Code)
	w = suite.request(http.MethodPost, "/api/v1/messages/ghost", suite.aliceToken, gin.H{"content": "hi"})
	suite.Equal(http.StatusNotFound, w.Code)
	w = suite.request(http.MethodGet, "/api/v1/messages", "", nil)
	suite.Equal(http.StatusUnauthorized, w.Code)
}

func (suite *HandlersTestSuite) TestSearch() {
	suite.createPost(suite.bobToken, "notes on channels", "golang")
	suite.createPost(suite.bobToken, "pasta recipe")

	w := suite.request(http.MethodGet, "/api/v1/search/posts?q=GOLANG", "", nil)
	suite.Require().Equal(http.StatusOK, w.Code, w.Body.String())
	var posts struct {
		Posts []feed.PostView `json:"posts"`
	}
	suite.decode(w, &posts)
	suite.Require().Len(posts.Posts, 1)
	suite.Equal("notes on channels", posts.Posts[0].Description)

	w = suite.request(http.MethodGet, "/api/v1/search/users?q=ali", "", nil)
	suite.Require().Equal(http.StatusOK, w.Code)
	suite.Contains(w.Body.String(), `"username":"alice"`)
	suite.NotContains(w.Body.String(), `"username":"bob"`)

	w = suite.request(http.MethodGet, "/api/v1/search/posts?q=x", "", nil)
	suite.Equal(http.StatusUnprocessableEntity, w.Code)
}

func TestHandlersTestSuite(t *testing.T) {
	suite.Run(t, new(HandlersTestSuite))
}

