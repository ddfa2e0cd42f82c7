// Package apiclient is a typed HTTP client for the CodeConnects API, used by
// the command line tool.
package apiclient

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"time"

	"github.com/codeconnects/backend/internal/feed"
	"github.com/codeconnects/backend/internal/logger"
	"github.com/codeconnects/backend/internal/session"
	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"
)

// DefaultTimeout bounds every request
const DefaultTimeout = 15 * time.Second

// Client talks to one API server as at most one viewer
type Client struct {
	baseURL string
	http    *resty.Client
	token   string
}

// New creates a client for baseURL, e.g. http://localhost:8787
func New(baseURL string) *Client {
	httpClient := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(DefaultTimeout).
		SetHeader("User-Agent", "CodeConnects-CLI/0.1.0").
		SetHeader("Accept", "application/json")

	httpClient.OnBeforeRequest(func(_ *resty.Client, req *resty.Request) error {
		logger.Log.Debug("HTTP Request", zap.String("method", req.Method), zap.String("url", req.URL))
		return nil
	})
	httpClient.OnAfterResponse(func(_ *resty.Client, resp *resty.Response) error {
		logger.Log.Debug("HTTP Response", zap.Int("status", resp.StatusCode()), zap.Duration("took", resp.Time()))
		return nil
	})

	return &Client{baseURL: baseURL, http: httpClient}
}

// SetToken authenticates every following request
func (c *Client) SetToken(token string) {
	c.token = token
	c.http.SetAuthToken(token)
}

// Token returns the bearer token in use, or ""
func (c *Client) Token() string {
	return c.token
}

// AuthResponse is returned by register and token
type AuthResponse struct {
	Token     string           `json:"token"`
	User      session.Identity `json:"user"`
	ExpiresAt time.Time        `json:"expires_at"`
}

// Page is one feed view as served by the API
type Page struct {
	View      string          `json:"view"`
	Posts     []feed.PostView `json:"posts"`
	FromCache bool            `json:"from_cache"`
	Stale     bool            `json:"stale"`
}

// NewPost is the body of CreatePost
type NewPost struct {
	Description string   `json:"description"`
	Content     string   `json:"content,omitempty"`
	Code        *string  `json:"code,omitempty"`
	Media       *string  `json:"media,omitempty"`
	Tags        []string `json:"tags,omitempty"`
}

// do sends req and decodes a non-2xx answer into an *APIError
func do(resp *resty.Response, err error) error {
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	if resp.IsError() {
		return ParseError(resp)
	}
	return nil
}

// Register creates a profile and keeps its token
func (c *Client) Register(ctx context.Context, username, avatarURL string) (*AuthResponse, error) {
	var out AuthResponse
	err := do(c.http.R().SetContext(ctx).
		SetBody(map[string]string{"username": username, "avatar_url": avatarURL}).
		SetResult(&out).
		Post("/api/v1/auth/register"))
	if err != nil {
		return nil, err
	}
	c.SetToken(out.Token)
	return &out, nil
}

// Login asks a development server for a token for userID and keeps it
func (c *Client) Login(ctx context.Context, userID string) (*AuthResponse, error) {
	var out AuthResponse
	err := do(c.http.R().SetContext(ctx).
		SetBody(map[string]string{"user_id": userID}).
		SetResult(&out).
		Post("/api/v1/auth/token"))
	if err != nil {
		return nil, err
	}
	c.SetToken(out.Token)
	return &out, nil
}

// Me returns the viewer the token belongs to
func (c *Client) Me(ctx context.Context) (*session.Identity, error) {
	var out struct {
		User session.Identity `json:"user"`
	}
	if err := do(c.http.R().SetContext(ctx).SetResult(&out).Get("/api/v1/auth/me")); err != nil {
		return nil, err
	}
	return &out.User, nil
}

// Logout drops the server-side feed session of the token's viewer
func (c *Client) Logout(ctx context.Context) error {
	return do(c.http.R().SetContext(ctx).Delete("/api/v1/auth/session"))
}

func (c *Client) page(ctx context.Context, path string, refresh bool) (*Page, error) {
	var out Page
	req := c.http.R().SetContext(ctx).SetResult(&out)
	if refresh {
		req.SetQueryParam("refresh", strconv.FormatBool(true))
	}
	if err := do(req.Get(path)); err != nil {
		return nil, err
	}
	return &out, nil
}

// GlobalFeed returns every post, newest first
func (c *Client) GlobalFeed(ctx context.Context, refresh bool) (*Page, error) {
	return c.page(ctx, "/api/v1/feed/global", refresh)
}

// FollowingFeed returns posts by the viewer and the people they follow
func (c *Client) FollowingFeed(ctx context.Context, refresh bool) (*Page, error) {
	return c.page(ctx, "/api/v1/feed/following", refresh)
}

// UserPosts returns one author's posts
func (c *Client) UserPosts(ctx context.Context, userID string, refresh bool) (*Page, error) {
	return c.page(ctx, "/api/v1/users/"+url.PathEscape(userID)+"/posts", refresh)
}

// Post returns a single post
func (c *Client) Post(ctx context.Context, postID string) (*feed.PostView, error) {
	var out struct {
		Post feed.PostView `json:"post"`
	}
	if err := do(c.http.R().SetContext(ctx).SetResult(&out).Get("/api/v1/posts/" + url.PathEscape(postID))); err != nil {
		return nil, err
	}
	return &out.Post, nil
}

// CreatePost publishes a post and returns its id
func (c *Client) CreatePost(ctx context.Context, post NewPost) (string, error) {
	var out struct {
		ID string `json:"id"`
	}
	if err := do(c.http.R().SetContext(ctx).SetBody(post).SetResult(&out).Post("/api/v1/posts")); err != nil {
		return "", err
	}
	return out.ID, nil
}

// DeletePost deletes one of the viewer's posts
func (c *Client) DeletePost(ctx context.Context, postID string) error {
	return do(c.http.R().SetContext(ctx).Delete("/api/v1/posts/" + url.PathEscape(postID)))
}

// ToggleLike flips the like from currentLiked and returns the new state
func (c *Client) ToggleLike(ctx context.Context, postID string, currentLiked bool) (bool, error) {
	var out struct {
		Liked bool `json:"liked"`
	}
	err := do(c.http.R().SetContext(ctx).
		SetBody(map[string]bool{"liked": currentLiked}).
		SetResult(&out).
		Post("/api/v1/posts/" + url.PathEscape(postID) + "/like"))
	if err != nil {
		return currentLiked, err
	}
	return out.Liked, nil
}

// Comments lists a post's comments, oldest first
func (c *Client) Comments(ctx context.Context, postID string) ([]feed.CommentView, error) {
	var out struct {
		Comments []feed.CommentView `json:"comments"`
	}
	if err := do(c.http.R().SetContext(ctx).SetResult(&out).Get("/api/v1/posts/" + url.PathEscape(postID) + "/comments")); err != nil {
		return nil, err
	}
	return out.Comments, nil
}

// AddComment comments on a post as the viewer
func (c *Client) AddComment(ctx context.Context, postID, content string) (*feed.CommentView, error) {
	var out feed.CommentView
	err := do(c.http.R().SetContext(ctx).
		SetBody(map[string]string{"content": content}).
		SetResult(&out).
		Post("/api/v1/posts/" + url.PathEscape(postID) + "/comments"))
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// SetFollowing follows or unfollows userID
func (c *Client) SetFollowing(ctx context.Context, userID string, follow bool) error {
	return do(c.http.R().SetContext(ctx).
		SetBody(map[string]bool{"following": follow}).
		Post("/api/v1/users/" + url.PathEscape(userID) + "/follow"))
}
