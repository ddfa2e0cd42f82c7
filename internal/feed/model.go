package feed

import (
	"sort"
	"strings"
	"time"

	"github.com/codeconnects/backend/internal/models"
	"github.com/codeconnects/backend/internal/session"
)

// Author is the denormalized display identity attached to posts and comments
type Author struct {
	ID        string `json:"id"`
	Username  string `json:"username"`
	AvatarURL string `json:"avatar_url,omitempty"`
}

// PostView is an assembled, UI-ready post
type PostView struct {
	ID              string    `json:"id"`
	UserID          string    `json:"user_id"`
	Description     string    `json:"description"`
	Content         string    `json:"content"`
	Code            *string   `json:"code,omitempty"`
	Media           *string   `json:"media,omitempty"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
	Author          Author    `json:"author"`
	LikeUserIDs     []string  `json:"like_user_ids"`
	LikesCount      int       `json:"likes_count"`
	CommentsCount   int64     `json:"comments_count"`
	Tags            []string  `json:"tags"`
	IsLikedByViewer bool      `json:"is_liked_by_viewer"`
}

// CommentView is a comment with its author attached
type CommentView struct {
	ID        string    `json:"id"`
	PostID    string    `json:"post_id"`
	Author    Author    `json:"author"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}

// AuthorFromProfile maps a profile row to an Author. A missing row falls back
// to the bare user id.
func AuthorFromProfile(userID string, p *models.Profile) Author {
	a := Author{ID: userID, Username: userID}
	if p == nil {
		return a
	}
	if p.Username != "" {
		a.Username = p.Username
	}
	if p.ProfilePicture != nil {
		a.AvatarURL = *p.ProfilePicture
	}
	return a
}

func authorFromIdentity(id session.Identity) Author {
	a := Author{ID: id.ID, Username: id.Username, AvatarURL: id.AvatarURL}
	if a.Username == "" {
		a.Username = id.ID
	}
	return a
}

func newPostView(post models.Post, author Author, likeUserIDs []string, comments int64, tags []string, viewerID string) PostView {
	likes := uniqueStrings(likeUserIDs)
	content := post.Content
	if content == "" {
		content = post.Description
	}
	return PostView{
		ID:              post.ID,
		UserID:          post.UserID,
		Description:     post.Description,
		Content:         content,
		Code:            post.Code,
		Media:           post.Media,
		CreatedAt:       post.CreatedAt,
		UpdatedAt:       post.UpdatedAt,
		Author:          author,
		LikeUserIDs:     likes,
		LikesCount:      len(likes),
		CommentsCount:   comments,
		Tags:            normalizeTags(tags),
		IsLikedByViewer: viewerID != "" && containsString(likes, viewerID),
	}
}

func newCommentView(c models.Comment, author Author) CommentView {
	return CommentView{
		ID:        c.ID,
		PostID:    c.PostID,
		Author:    author,
		Content:   c.Content,
		CreatedAt: c.CreatedAt,
	}
}

// clone deep-copies the slices so cached values never alias caller values
func (p PostView) clone() PostView {
	out := p
	out.LikeUserIDs = append([]string(nil), p.LikeUserIDs...)
	out.Tags = append([]string(nil), p.Tags...)
	if out.LikeUserIDs == nil {
		out.LikeUserIDs = []string{}
	}
	if out.Tags == nil {
		out.Tags = []string{}
	}
	return out
}

// NormalizeTag trims and lower-cases a tag name
func NormalizeTag(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

// normalizeTags returns unique non-empty normalized names, sorted
func normalizeTags(names []string) []string {
	out := make([]string, 0, len(names))
	seen := make(map[string]bool, len(names))
	for _, n := range names {
		n = NormalizeTag(n)
		if n == "" || seen[n] {
			continue
		}
		seen[n] = true
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}

func uniqueStrings(in []string) []string {
	out := make([]string, 0, len(in))
	seen := make(map[string]bool, len(in))
	for _, s := range in {
		if seen[s] {
			continue
		}
		seen[s] = true
		out = append(out, s)
	}
	return out
}

func containsString(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

func removeString(list []string, s string) []string {
	out := list[:0:0]
	for _, v := range list {
		if v != s {
			out = append(out, v)
		}
	}
	return out
}
