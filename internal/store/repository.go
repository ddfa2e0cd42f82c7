// Package store defines the relational store the feed layer reads and writes.
// Implementations enforce uniqueness of (post_id, user_id) likes, tag names and
// (post_id, tag_id) links, and report violations as ErrConstraintViolation.
package store

import (
	"context"
	"errors"

	"github.com/codeconnects/backend/internal/models"
)

var (
	// ErrNotFound is returned when a lookup by id or name has no row
	ErrNotFound = errors.New("record not found")
	// ErrConstraintViolation is returned when a write breaks a uniqueness rule
	ErrConstraintViolation = errors.New("unique constraint violation")
)

// PostFilter selects rows of the posts relation. An empty filter selects every post.
type PostFilter struct {
	UserID  string   // only posts by this author
	UserIDs []string // only posts by any of these authors; nil means no restriction
	Limit   int      // 0 means no limit
}

// Repository is the row-level contract over posts, comments, likes, tags,
// post_tags, profiles, follows and messages.
type Repository interface {
	// Posts. ListPosts orders newest first, ties broken by id descending.
	ListPosts(ctx context.Context, filter PostFilter) ([]models.Post, error)
	GetPost(ctx context.Context, postID string) (*models.Post, error)
	InsertPost(ctx context.Context, post *models.Post) (string, error)
	DeletePost(ctx context.Context, postID string) (int64, error)

	// Likes
	ListLikeUserIDs(ctx context.Context, postID string) ([]string, error)
	InsertLike(ctx context.Context, postID, userID string) error
	DeleteLike(ctx context.Context, postID, userID string) (int64, error)

	// Comments. ListComments orders oldest first, ties broken by id ascending.
	CountComments(ctx context.Context, postID string) (int64, error)
	ListComments(ctx context.Context, postID string) ([]models.Comment, error)
	InsertComment(ctx context.Context, comment *models.Comment) (string, error)

	// Tags
	ListTagNames(ctx context.Context, postID string) ([]string, error)
	FindTagByName(ctx context.Context, name string) (*models.Tag, error)
	InsertTag(ctx context.Context, name string) (string, error)
	LinkTag(ctx context.Context, postID, tagID string) error

	// Profiles
	GetProfile(ctx context.Context, userID string) (*models.Profile, error)
	GetProfiles(ctx context.Context, userIDs []string) (map[string]models.Profile, error)
	InsertProfile(ctx context.Context, profile *models.Profile) (string, error)

	// Follows
	ListFollowing(ctx context.Context, followerID string) ([]string, error)
	Follow(ctx context.Context, followerID, followingID string) error
	Unfollow(ctx context.Context, followerID, followingID string) (int64, error)

	MessageRepository
	SearchRepository
}

// MessageRepository covers direct messages between two profiles
type MessageRepository interface {
	InsertMessage(ctx context.Context, msg *models.Message) (string, error)
	// ListConversation returns the messages exchanged by a and b, oldest first.
	ListConversation(ctx context.Context, a, b string) ([]models.Message, error)
	// ListMessagesFor returns every message userID sent or received, newest first.
	ListMessagesFor(ctx context.Context, userID string) ([]models.Message, error)
	// MarkConversationRead flags the unread messages sent by senderID to
	// receiverID as read and returns how many changed.
	MarkConversationRead(ctx context.Context, receiverID, senderID string) (int64, error)
}

// SearchRepository matches a case-insensitive substring. Limit 0 means no limit.
type SearchRepository interface {
	// SearchProfiles matches username or bio, ordered by username.
	SearchProfiles(ctx context.Context, query string, limit int) ([]models.Profile, error)
	// SearchPosts matches description or any tag name, newest first.
	SearchPosts(ctx context.Context, query string, limit int) ([]models.Post, error)
}

// IsNotFound reports whether err is (or wraps) ErrNotFound
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsConstraintViolation reports whether err is (or wraps) ErrConstraintViolation
func IsConstraintViolation(err error) bool {
	return errors.Is(err, ErrConstraintViolation)
}
