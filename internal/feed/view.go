package feed

import (
	"fmt"
	"strings"
)

// Kind names a family of views the cache can hold
type Kind string

const (
	KindGlobal    Kind = "global"
	KindUser      Kind = "user"
	KindFollowing Kind = "following"
	KindPost      Kind = "post"
)

// View describes one cacheable page: a feed or a single post
type View struct {
	Kind   Kind
	UserID string // author for KindUser, viewer for KindFollowing
	PostID string // KindPost only
}

// Global is the feed of every post, newest first
func Global() View { return View{Kind: KindGlobal} }

// UserFeed is the feed of posts authored by userID
func UserFeed(userID string) View { return View{Kind: KindUser, UserID: userID} }

// Following is the feed of posts by the users viewerID follows
func Following(viewerID string) View { return View{Kind: KindFollowing, UserID: viewerID} }

// SinglePost is the detail view of one post
func SinglePost(postID string) View { return View{Kind: KindPost, PostID: postID} }

// Key is the cache key: feed:global, feed:user:<id>, feed:following:<id> or post:<id>
func (v View) Key() string {
	switch v.Kind {
	case KindGlobal:
		return "feed:global"
	case KindUser:
		return "feed:user:" + v.UserID
	case KindFollowing:
		return "feed:following:" + v.UserID
	case KindPost:
		return "post:" + v.PostID
	default:
		return "unknown:" + string(v.Kind)
	}
}

func (v View) String() string {
	return v.Key()
}

// Validate checks the view carries the id its kind needs
func (v View) Validate() error {
	switch v.Kind {
	case KindGlobal:
		return nil
	case KindUser, KindFollowing:
		if v.UserID == "" {
			return fmt.Errorf("%s view requires a user id", v.Kind)
		}
		return nil
	case KindPost:
		if v.PostID == "" {
			return fmt.Errorf("post view requires a post id")
		}
		return nil
	default:
		return fmt.Errorf("unknown view kind %q", v.Kind)
	}
}

// ParseKey is the inverse of Key
func ParseKey(key string) (View, error) {
	var v View
	switch {
	case key == "feed:global":
		v = Global()
	case strings.HasPrefix(key, "feed:user:"):
		v = UserFeed(strings.TrimPrefix(key, "feed:user:"))
	case strings.HasPrefix(key, "feed:following:"):
		v = Following(strings.TrimPrefix(key, "feed:following:"))
	case strings.HasPrefix(key, "post:"):
		v = SinglePost(strings.TrimPrefix(key, "post:"))
	default:
		return View{}, fmt.Errorf("unrecognized view key %q", key)
	}
	if err := v.Validate(); err != nil {
		return View{}, err
	}
	return v, nil
}
