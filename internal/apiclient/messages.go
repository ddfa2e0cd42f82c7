package apiclient

import (
	"context"
	"net/url"

	"github.com/codeconnects/backend/internal/feed"
	"github.com/codeconnects/backend/internal/messaging"
)

// SearchPosts matches post descriptions and tags
func (c *Client) SearchPosts(ctx context.Context, query string) ([]feed.PostView, error) {
	var out struct {
		Posts []feed.PostView `json:"posts"`
	}
	err := do(c.http.R().SetContext(ctx).SetQueryParam("q", query).SetResult(&out).Get("/api/v1/search/posts"))
	if err != nil {
		return nil, err
	}
	return out.Posts, nil
}

// SearchUsers matches usernames and bios
func (c *Client) SearchUsers(ctx context.Context, query string) ([]feed.Author, error) {
	var out struct {
		Users []feed.Author `json:"users"`
	}
	err := do(c.http.R().SetContext(ctx).SetQueryParam("q", query).SetResult(&out).Get("/api/v1/search/users"))
	if err != nil {
		return nil, err
	}
	return out.Users, nil
}

// Conversations lists the viewer's conversations, most recent first
func (c *Client) Conversations(ctx context.Context) ([]messaging.Conversation, error) {
	var out struct {
		Conversations []messaging.Conversation `json:"conversations"`
	}
	if err := do(c.http.R().SetContext(ctx).SetResult(&out).Get("/api/v1/messages")); err != nil {
		return nil, err
	}
	return out.Conversations, nil
}

// Conversation returns the messages exchanged with userID, oldest first
func (c *Client) Conversation(ctx context.Context, userID string) ([]messaging.MessageView, error) {
	var out struct {
		Messages []messaging.MessageView `json:"messages"`
	}
	if err := do(c.http.R().SetContext(ctx).SetResult(&out).Get("/api/v1/messages/" + url.PathEscape(userID))); err != nil {
		return nil, err
	}
	return out.Messages, nil
}

// SendMessage sends content to userID
func (c *Client) SendMessage(ctx context.Context, userID, content string) (*messaging.MessageView, error) {
	var out messaging.MessageView
	err := do(c.http.R().SetContext(ctx).
		SetBody(map[string]string{"content": content}).
		SetResult(&out).
		Post("/api/v1/messages/" + url.PathEscape(userID)))
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// MarkRead marks the messages userID sent the viewer as read and returns how many changed
func (c *Client) MarkRead(ctx context.Context, userID string) (int64, error) {
	var out struct {
		Marked int64 `json:"marked"`
	}
	if err := do(c.http.R().SetContext(ctx).SetResult(&out).Post("/api/v1/messages/" + url.PathEscape(userID) + "/read")); err != nil {
		return 0, err
	}
	return out.Marked, nil
}
