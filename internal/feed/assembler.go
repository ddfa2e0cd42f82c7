package feed

import (
	"context"

	apperrors "github.com/codeconnects/backend/internal/errors"
	"github.com/codeconnects/backend/internal/models"
	"github.com/codeconnects/backend/internal/store"
	"github.com/codeconnects/backend/internal/telemetry"
	"golang.org/x/sync/errgroup"
)

// DefaultConcurrency bounds how many posts are assembled at once
const DefaultConcurrency = 8

// Assembler merges post rows with their likes, comment count, tags and author
type Assembler struct {
	repo        store.Repository
	concurrency int
	events      *telemetry.FeedEvents
}

// NewAssembler creates an assembler; concurrency < 1 falls back to DefaultConcurrency
func NewAssembler(repo store.Repository, concurrency int) *Assembler {
	if concurrency < 1 {
		concurrency = DefaultConcurrency
	}
	return &Assembler{
		repo:        repo,
		concurrency: concurrency,
		events:      telemetry.NewFeedEvents(),
	}
}

// Assemble builds the view model of a single post
func (a *Assembler) Assemble(ctx context.Context, post models.Post, viewerID string) (*PostView, error) {
	views, err := a.AssembleAll(ctx, []models.Post{post}, viewerID)
	if err != nil {
		return nil, err
	}
	return &views[0], nil
}

// AssembleAll builds view models in input order. Any failed lookup fails the
// whole call; partial feeds are never returned.
func (a *Assembler) AssembleAll(ctx context.Context, posts []models.Post, viewerID string) (out []PostView, err error) {
	ctx, span := a.events.TraceAssemble(ctx, len(posts))
	defer func() { telemetry.End(span, err) }()

	if len(posts) == 0 {
		return []PostView{}, nil
	}

	authorIDs := make([]string, 0, len(posts))
	for _, p := range posts {
		authorIDs = append(authorIDs, p.UserID)
	}
	profiles, err := a.repo.GetProfiles(ctx, uniqueStrings(authorIDs))
	if err != nil {
		return nil, apperrors.FetchFailed(apperrors.OpFetch, "profiles", err)
	}

	out = make([]PostView, len(posts))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(a.concurrency)
	for i := range posts {
		i := i
		g.Go(func() error {
			var author Author
			if p, ok := profiles[posts[i].UserID]; ok {
				author = AuthorFromProfile(posts[i].UserID, &p)
			} else {
				author = AuthorFromProfile(posts[i].UserID, nil)
			}
			view, err := a.assembleOne(gctx, posts[i], author, viewerID)
			if err != nil {
				return err
			}
			out[i] = view
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

// assembleOne runs the three per-post lookups concurrently. They are issued
// after the post row was read and do not share a snapshot.
func (a *Assembler) assembleOne(ctx context.Context, post models.Post, author Author, viewerID string) (PostView, error) {
	var (
		likes    []string
		comments int64
		tags     []string
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		likes, err = a.repo.ListLikeUserIDs(gctx, post.ID)
		return err
	})
	g.Go(func() error {
		var err error
		comments, err = a.repo.CountComments(gctx, post.ID)
		return err
	})
	g.Go(func() error {
		var err error
		tags, err = a.repo.ListTagNames(gctx, post.ID)
		return err
	})
	if err := g.Wait(); err != nil {
		return PostView{}, apperrors.FetchFailed(apperrors.OpFetch, post.ID, err)
	}

	return newPostView(post, author, likes, comments, tags, viewerID), nil
}
