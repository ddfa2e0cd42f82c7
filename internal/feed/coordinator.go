package feed

import (
	"context"
	"strings"

	apperrors "github.com/codeconnects/backend/internal/errors"
	"github.com/codeconnects/backend/internal/logger"
	"github.com/codeconnects/backend/internal/metrics"
	"github.com/codeconnects/backend/internal/models"
	"github.com/codeconnects/backend/internal/store"
	"github.com/codeconnects/backend/internal/telemetry"
	"go.uber.org/zap"
)

// NewPost is the input of CreatePost
type NewPost struct {
	Description string
	Content     string
	Code        *string
	Media       *string
	Tags        []string
}

// CreatePost inserts a post for the viewer, links its tags best effort and
// prepends it to the viewer's cached feeds. It is not idempotent: a retried
// call creates a second post.
func (s *Service) CreatePost(ctx context.Context, in NewPost) (postID string, err error) {
	const op = apperrors.OpCreatePost
	viewer, ok := s.session.Current()
	if !ok {
		return "", s.fail(ctx, apperrors.NotAuthenticated(op))
	}
	if strings.TrimSpace(in.Description) == "" {
		return "", s.fail(ctx, apperrors.ValidationError(op, "description", "post body cannot be empty"))
	}

	ctx, span := s.events.TraceMutation(ctx, string(op), viewer.ID)
	defer func() {
		telemetry.End(span, err)
		metrics.RecordMutation(string(op), err)
	}()

	post := &models.Post{
		UserID:      viewer.ID,
		Description: in.Description,
		Content:     in.Content,
		Code:        in.Code,
		Media:       in.Media,
	}
	postID, err = s.repo.InsertPost(ctx, post)
	if err != nil {
		return "", s.fail(ctx, writeError(op, viewer.ID, err))
	}

	tags := s.attachTags(ctx, postID, in.Tags)

	view := newPostView(*post, authorFromIdentity(viewer), nil, 0, tags, viewer.ID)
	s.cache.PrependPost(view,
		Global().Key(),
		UserFeed(viewer.ID).Key(),
		Following(viewer.ID).Key(),
	)

	logger.Log.Info("Post created",
		logger.WithPostID(postID),
		logger.WithUserID(viewer.ID),
		zap.Strings("tags", tags),
	)
	s.succeed(ctx, op, postID, "Post created successfully")
	return postID, nil
}

// attachTags resolves and links each distinct normalized tag name. Failures
// skip that tag only; the post is never rolled back. It returns the linked names.
func (s *Service) attachTags(ctx context.Context, postID string, names []string) []string {
	linked := make([]string, 0, len(names))
	seen := make(map[string]bool, len(names))
	for _, raw := range names {
		name := NormalizeTag(raw)
		if name == "" || seen[name] {
			continue
		}
		seen[name] = true

		tagID, ok := s.resolveTag(ctx, name)
		if !ok {
			continue
		}
		if err := s.repo.LinkTag(ctx, postID, tagID); err != nil {
			logger.Log.Warn("Skipping tag, link failed",
				logger.WithPostID(postID),
				zap.String("tag", name),
				zap.Error(err),
			)
			continue
		}
		linked = append(linked, name)
	}
	return linked
}

// resolveTag finds or creates a tag. A creation race is retried with exactly one
// re-lookup; if that misses too the tag is skipped.
func (s *Service) resolveTag(ctx context.Context, name string) (string, bool) {
	tag, err := s.repo.FindTagByName(ctx, name)
	if err == nil {
		return tag.ID, true
	}
	if !store.IsNotFound(err) {
		logger.Log.Warn("Skipping tag, lookup failed", zap.String("tag", name), zap.Error(err))
		return "", false
	}

	id, err := s.repo.InsertTag(ctx, name)
	if err == nil {
		return id, true
	}
	if !store.IsConstraintViolation(err) {
		logger.Log.Warn("Skipping tag, create failed", zap.String("tag", name), zap.Error(err))
		return "", false
	}

	// someone else created it between our lookup and insert
	tag, err = s.repo.FindTagByName(ctx, name)
	if err != nil {
		metrics.RecordTagRetry("skipped")
		logger.Log.Warn("Skipping tag, unresolved after retry", zap.String("tag", name), zap.Error(err))
		return "", false
	}
	metrics.RecordTagRetry("resolved")
	return tag.ID, true
}

// ToggleLike flips the viewer's like on a post given the caller's view of the
// current state, and returns the new state. A duplicate like or a missing
// unlike is treated as success.
func (s *Service) ToggleLike(ctx context.Context, postID string, currentLiked bool) (liked bool, err error) {
	const op = apperrors.OpToggleLike
	viewer, ok := s.session.Current()
	if !ok {
		return currentLiked, s.fail(ctx, apperrors.NotAuthenticated(op))
	}
	if postID == "" {
		return currentLiked, s.fail(ctx, apperrors.ValidationError(op, "post_id", "post id is required"))
	}

	ctx, span := s.events.TraceMutation(ctx, string(op), postID)
	defer func() {
		telemetry.End(span, err)
		metrics.RecordMutation(string(op), err)
	}()

	if currentLiked {
		err = s.unlike(ctx, postID, viewer.ID)
	} else {
		err = s.repo.InsertLike(ctx, postID, viewer.ID)
		if store.IsConstraintViolation(err) {
			err = nil
		}
	}
	if err != nil {
		if store.IsNotFound(err) {
			s.cache.EvictPost(postID)
		}
		return currentLiked, s.fail(ctx, writeError(op, postID, err))
	}

	liked = !currentLiked
	s.cache.PatchLike(postID, viewer.ID, liked, viewer.ID)

	text := "Post unliked"
	if liked {
		text = "Post liked"
	}
	s.succeed(ctx, op, postID, text)
	return liked, nil
}

// unlike removes the viewer's like. When there was nothing to delete the post
// itself is looked up, so unliking a deleted post reports it missing.
func (s *Service) unlike(ctx context.Context, postID, userID string) error {
	n, err := s.repo.DeleteLike(ctx, postID, userID)
	if err != nil || n > 0 {
		return err
	}
	_, err = s.repo.GetPost(ctx, postID)
	return err
}

// AddComment stores a comment by the viewer and patches the cached comment
// count (and list, if cached) of the post. Blank bodies are rejected before
// any write.
func (s *Service) AddComment(ctx context.Context, postID, body string) (comment *CommentView, err error) {
	const op = apperrors.OpAddComment
	viewer, ok := s.session.Current()
	if !ok {
		return nil, s.fail(ctx, apperrors.NotAuthenticated(op))
	}
	body = strings.TrimSpace(body)
	if body == "" {
		return nil, s.fail(ctx, apperrors.ValidationError(op, "content", "comment cannot be empty"))
	}

	ctx, span := s.events.TraceMutation(ctx, string(op), postID)
	defer func() {
		telemetry.End(span, err)
		metrics.RecordMutation(string(op), err)
	}()

	row := &models.Comment{PostID: postID, UserID: viewer.ID, Content: body}
	if _, err = s.repo.InsertComment(ctx, row); err != nil {
		return nil, s.fail(ctx, writeError(op, postID, err))
	}

	// display identity is attached now, not on the next read
	author := authorFromIdentity(viewer)
	if profile, perr := s.repo.GetProfile(ctx, viewer.ID); perr == nil {
		author = AuthorFromProfile(viewer.ID, profile)
	} else {
		logger.Log.Debug("Using session identity for comment author", logger.WithUserID(viewer.ID), zap.Error(perr))
	}

	view := newCommentView(*row, author)
	s.cache.AddComment(view)
	s.succeed(ctx, op, postID, "Comment added")
	return &view, nil
}

// DeletePost removes one of the viewer's posts with its likes, comments and tag
// links, then evicts it from every cached view.
func (s *Service) DeletePost(ctx context.Context, postID string) (err error) {
	const op = apperrors.OpDeletePost
	viewer, ok := s.session.Current()
	if !ok {
		return s.fail(ctx, apperrors.NotAuthenticated(op))
	}

	ctx, span := s.events.TraceMutation(ctx, string(op), postID)
	defer func() {
		telemetry.End(span, err)
		metrics.RecordMutation(string(op), err)
	}()

	post, err := s.repo.GetPost(ctx, postID)
	if err != nil {
		if store.IsNotFound(err) {
			s.cache.EvictPost(postID)
			return s.fail(ctx, apperrors.NotFound(op, "post", postID))
		}
		return s.fail(ctx, apperrors.FetchFailed(op, postID, err))
	}
	if post.UserID != viewer.ID {
		return s.fail(ctx, apperrors.Forbidden(op, postID, "only the author can delete a post"))
	}

	n, err := s.repo.DeletePost(ctx, postID)
	if err != nil {
		return s.fail(ctx, writeError(op, postID, err))
	}
	if n == 0 {
		return s.fail(ctx, apperrors.NotFound(op, "post", postID))
	}

	s.cache.EvictPost(postID)
	s.succeed(ctx, op, postID, "Post deleted")
	return nil
}

// SetFollowing follows or unfollows userID. Repeating either call is a no-op.
// The viewer's following feed is dropped from cache so the next read refetches it.
func (s *Service) SetFollowing(ctx context.Context, userID string, follow bool) (err error) {
	const op = apperrors.OpFollow
	viewer, ok := s.session.Current()
	if !ok {
		return s.fail(ctx, apperrors.NotAuthenticated(op))
	}
	if userID == "" || userID == viewer.ID {
		return s.fail(ctx, apperrors.ValidationError(op, "user_id", "cannot follow yourself"))
	}

	defer func() { metrics.RecordMutation(string(op), err) }()

	if follow {
		err = s.repo.Follow(ctx, viewer.ID, userID)
		if store.IsConstraintViolation(err) {
			err = nil
		}
	} else {
		_, err = s.repo.Unfollow(ctx, viewer.ID, userID)
	}
	if err != nil {
		return s.fail(ctx, writeError(op, userID, err))
	}

	s.cache.Invalidate(Following(viewer.ID).Key())
	text := "Unfollowed"
	if follow {
		text = "Following"
	}
	s.succeed(ctx, op, userID, text)
	return nil
}

// writeError classifies a store write failure
func writeError(op apperrors.Op, targetID string, err error) *apperrors.FeedError {
	switch {
	case store.IsConstraintViolation(err):
		return apperrors.ConstraintViolation(op, targetID, err)
	case store.IsNotFound(err):
		return apperrors.NotFound(op, "post", targetID)
	default:
		return apperrors.WriteFailed(op, targetID, err)
	}
}
