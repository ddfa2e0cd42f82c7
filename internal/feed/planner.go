package feed

import (
	"context"
	"sort"

	apperrors "github.com/codeconnects/backend/internal/errors"
	"github.com/codeconnects/backend/internal/models"
	"github.com/codeconnects/backend/internal/store"
)

// Planner issues the reads that select the raw post rows of a view
type Planner struct {
	repo store.Repository
}

// NewPlanner creates a planner over repo
func NewPlanner(repo store.Repository) *Planner {
	return &Planner{repo: repo}
}

// Plan returns the view's posts, newest first with ties broken by id descending.
// It never retries: store errors surface as FETCH_FAILED.
func (p *Planner) Plan(ctx context.Context, view View) ([]models.Post, error) {
	if err := view.Validate(); err != nil {
		return nil, apperrors.BadRequest(err.Error())
	}

	var (
		posts []models.Post
		err   error
	)
	switch view.Kind {
	case KindGlobal:
		posts, err = p.repo.ListPosts(ctx, store.PostFilter{})
	case KindUser:
		posts, err = p.repo.ListPosts(ctx, store.PostFilter{UserID: view.UserID})
	case KindFollowing:
		posts, err = p.following(ctx, view.UserID)
	case KindPost:
		var post *models.Post
		post, err = p.repo.GetPost(ctx, view.PostID)
		if store.IsNotFound(err) {
			return nil, apperrors.NotFound(apperrors.OpFetch, "post", view.PostID)
		}
		if err == nil {
			posts = []models.Post{*post}
		}
	}
	if err != nil {
		return nil, apperrors.FetchFailed(apperrors.OpFetch, view.Key(), err)
	}

	SortPosts(posts)
	return posts, nil
}

// following is the global ordering restricted to followed authors and the viewer
func (p *Planner) following(ctx context.Context, viewerID string) ([]models.Post, error) {
	authors, err := p.repo.ListFollowing(ctx, viewerID)
	if err != nil {
		return nil, err
	}
	authors = append(authors, viewerID)
	return p.repo.ListPosts(ctx, store.PostFilter{UserIDs: uniqueStrings(authors)})
}

// SortPosts orders newest first; equal timestamps fall back to id descending
func SortPosts(posts []models.Post) {
	sort.SliceStable(posts, func(i, j int) bool {
		if !posts[i].CreatedAt.Equal(posts[j].CreatedAt) {
			return posts[i].CreatedAt.After(posts[j].CreatedAt)
		}
		return posts[i].ID > posts[j].ID
	})
}
