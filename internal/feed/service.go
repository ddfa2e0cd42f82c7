// Package feed assembles posts into cached, viewer-specific feeds and keeps
// those caches consistent as the viewer likes, comments and posts.
//
// Reads go planner -> assembler -> cache. Mutations write through the store
// and then patch every cached entry holding the affected post instead of
// refetching. One Service (and one Cache) exists per viewer session.
package feed

import (
	"context"
	"time"

	apperrors "github.com/codeconnects/backend/internal/errors"
	"github.com/codeconnects/backend/internal/logger"
	"github.com/codeconnects/backend/internal/metrics"
	"github.com/codeconnects/backend/internal/notify"
	"github.com/codeconnects/backend/internal/session"
	"github.com/codeconnects/backend/internal/store"
	"github.com/codeconnects/backend/internal/telemetry"
	"go.uber.org/zap"
)

// Service is the per-session entry point for reads and mutations
type Service struct {
	repo      store.Repository
	session   session.Provider
	sink      notify.Sink
	planner   *Planner
	assembler *Assembler
	cache     *Cache
	events    *telemetry.FeedEvents
}

// Option configures a Service
type Option func(*serviceOptions)

type serviceOptions struct {
	concurrency int
}

// WithConcurrency bounds parallel post assembly
func WithConcurrency(n int) Option {
	return func(o *serviceOptions) { o.concurrency = n }
}

// NewService creates a service with an empty cache
func NewService(repo store.Repository, provider session.Provider, sink notify.Sink, opts ...Option) *Service {
	o := serviceOptions{concurrency: DefaultConcurrency}
	for _, opt := range opts {
		opt(&o)
	}
	if provider == nil {
		provider = session.Anonymous()
	}
	if sink == nil {
		sink = notify.Discard
	}
	return &Service{
		repo:      repo,
		session:   provider,
		sink:      sink,
		planner:   NewPlanner(repo),
		assembler: NewAssembler(repo, o.concurrency),
		cache:     NewCache(),
		events:    telemetry.NewFeedEvents(),
	}
}

// Page is the result of reading a view
type Page struct {
	View      View       `json:"-"`
	Key       string     `json:"view"`
	Posts     []PostView `json:"posts"`
	FromCache bool       `json:"from_cache"`
	// Stale is set when the fetch finished after the caller moved on or the
	// cache changed underneath it. The posts are returned but were not cached.
	Stale bool `json:"stale"`
}

// Viewer returns the session identity, if any
func (s *Service) Viewer() (session.Identity, bool) {
	return s.session.Current()
}

// Cache exposes the session cache for inspection
func (s *Service) Cache() *Cache {
	return s.cache
}

// Open makes view the active view and returns it from cache, fetching on a miss
func (s *Service) Open(ctx context.Context, view View) (*Page, error) {
	view, err := s.resolve(view)
	if err != nil {
		return nil, s.fail(ctx, err)
	}
	key := view.Key()
	s.cache.SetActive(key)

	if posts, ok := s.cache.Get(key); ok {
		metrics.RecordCacheRead(string(view.Kind), true)
		return &Page{View: view, Key: key, Posts: posts, FromCache: true}, nil
	}
	metrics.RecordCacheRead(string(view.Kind), false)
	return s.fetch(ctx, view)
}

// Refetch makes view active and reloads it from the store, replacing any cached entry
func (s *Service) Refetch(ctx context.Context, view View) (*Page, error) {
	view, err := s.resolve(view)
	if err != nil {
		return nil, s.fail(ctx, err)
	}
	s.cache.SetActive(view.Key())
	return s.fetch(ctx, view)
}

func (s *Service) fetch(ctx context.Context, view View) (page *Page, err error) {
	key := view.Key()
	ticket := s.cache.Begin(key)

	ctx, span := s.events.TraceFetch(ctx, key, ticket.Token)
	defer func() { telemetry.End(span, err) }()

	start := time.Now()
	rows, err := s.planner.Plan(ctx, view)
	if err != nil {
		return nil, s.fail(ctx, err)
	}
	posts, err := s.assembler.AssembleAll(ctx, rows, s.viewerID())
	if err != nil {
		return nil, s.fail(ctx, err)
	}
	metrics.RecordFeedFetch(string(view.Kind), time.Since(start))

	page = &Page{View: view, Key: key, Posts: posts}
	if ok, reason := s.cache.Commit(ticket, posts); !ok {
		page.Stale = true
		telemetry.MarkStale(span)
		metrics.RecordStaleDiscard(string(view.Kind), reason)
		logger.Log.Debug("Discarded stale fetch",
			logger.WithView(key),
			zap.String("reason", reason),
			zap.Uint64("token", ticket.Token),
		)
	}
	return page, nil
}

// Comments returns a post's comments oldest first, from cache when present
func (s *Service) Comments(ctx context.Context, postID string) ([]CommentView, error) {
	const op = apperrors.OpListComments
	if list, ok := s.cache.Comments(postID); ok {
		metrics.RecordCacheRead("comments", true)
		return list, nil
	}
	metrics.RecordCacheRead("comments", false)

	generation := s.cache.Generation()
	rows, err := s.repo.ListComments(ctx, postID)
	if err != nil {
		return nil, s.fail(ctx, apperrors.FetchFailed(op, postID, err))
	}
	if len(rows) == 0 {
		if _, err := s.repo.GetPost(ctx, postID); err != nil {
			if store.IsNotFound(err) {
				return nil, s.fail(ctx, apperrors.NotFound(op, "post", postID))
			}
			return nil, s.fail(ctx, apperrors.FetchFailed(op, postID, err))
		}
	}

	userIDs := make([]string, 0, len(rows))
	for _, c := range rows {
		userIDs = append(userIDs, c.UserID)
	}
	profiles, err := s.repo.GetProfiles(ctx, uniqueStrings(userIDs))
	if err != nil {
		return nil, s.fail(ctx, apperrors.FetchFailed(op, postID, err))
	}

	list := make([]CommentView, 0, len(rows))
	for _, c := range rows {
		var author Author
		if p, ok := profiles[c.UserID]; ok {
			author = AuthorFromProfile(c.UserID, &p)
		} else {
			author = AuthorFromProfile(c.UserID, nil)
		}
		list = append(list, newCommentView(c, author))
	}

	if !s.cache.CommitComments(postID, generation, list) {
		metrics.RecordStaleDiscard("comments", ReasonMutated)
	}
	return list, nil
}

// resolve fills the viewer into a following view that omitted it
func (s *Service) resolve(view View) (View, error) {
	if view.Kind == KindFollowing && view.UserID == "" {
		viewer, ok := s.session.Current()
		if !ok {
			return view, apperrors.NotAuthenticated(apperrors.OpFetch)
		}
		view.UserID = viewer.ID
	}
	if err := view.Validate(); err != nil {
		return view, apperrors.BadRequest(err.Error())
	}
	return view, nil
}

func (s *Service) viewerID() string {
	if id, ok := s.session.Current(); ok {
		return id.ID
	}
	return ""
}

var failureText = map[apperrors.Op]string{
	apperrors.OpFetch:        "Failed to load feed",
	apperrors.OpCreatePost:   "Failed to create post",
	apperrors.OpToggleLike:   "Failed to like post",
	apperrors.OpAddComment:   "Failed to add comment",
	apperrors.OpListComments: "Failed to load comments",
	apperrors.OpDeletePost:   "Failed to delete post",
	apperrors.OpFollow:       "Failed to update follow",
	apperrors.OpSearch:       "Search failed",
}

// fail emits the one-line error notification for err and returns it unchanged
func (s *Service) fail(ctx context.Context, err error) error {
	code := apperrors.CodeOf(err)
	var op apperrors.Op
	var target string
	text := err.Error()
	if fe, ok := apperrors.As(err); ok {
		op, target = fe.Op, fe.TargetID
		text = fe.Message
		if prefix, ok := failureText[fe.Op]; ok {
			text = prefix + ": " + fe.Message
		}
	}

	metrics.RecordError(string(code), string(op))
	logger.Log.Warn("Feed operation failed",
		zap.String("op", string(op)),
		zap.String("target_id", target),
		logger.WithUserID(s.viewerID()),
		zap.Error(err),
	)
	s.sink.Notify(ctx, notify.Notification{
		Level:    notify.LevelError,
		Text:     text,
		UserID:   s.viewerID(),
		Op:       string(op),
		TargetID: target,
		At:       time.Now().UTC(),
	})
	return err
}

func (s *Service) succeed(ctx context.Context, op apperrors.Op, targetID, text string) {
	s.sink.Notify(ctx, notify.Notification{
		Level:    notify.LevelSuccess,
		Text:     text,
		UserID:   s.viewerID(),
		Op:       string(op),
		TargetID: targetID,
		At:       time.Now().UTC(),
	})
}
