package feed

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	apperrors "github.com/codeconnects/backend/internal/errors"
	"github.com/codeconnects/backend/internal/logger"
	"github.com/codeconnects/backend/internal/models"
	"github.com/codeconnects/backend/internal/notify"
	"github.com/codeconnects/backend/internal/session"
	"github.com/codeconnects/backend/internal/store"
	"github.com/stretchr/testify/suite"
)

type ServiceTestSuite struct {
	suite.Suite
	ctx   context.Context
	f     *fixture
	alice session.Identity
	bob   session.Identity
	svc   *Service
}

func (s *ServiceTestSuite) SetupTest() {
	logger.UseNop()
	s.ctx = context.Background()
	s.f = newFixture()
	s.alice = s.f.profile("alice")
	s.bob = s.f.profile("bob")
	s.svc = s.f.service(s.alice)
}

func (s *ServiceTestSuite) TestOpenGlobalOrdersNewestFirst() {
	p1 := s.f.post(s.bob.ID, "first")
	p2 := s.f.post(s.alice.ID, "second")

	page, err := s.svc.Open(s.ctx, Global())
	s.Require().NoError(err)
	s.False(page.FromCache)
	s.False(page.Stale)
	s.Require().Len(page.Posts, 2)
	s.Equal(p2, page.Posts[0].ID)
	s.Equal(p1, page.Posts[1].ID)
	s.Equal("bob", page.Posts[1].Author.Username)
	s.Equal("first", page.Posts[1].Content, "content falls back to description")

	again, err := s.svc.Open(s.ctx, Global())
	s.Require().NoError(err)
	s.True(again.FromCache)
	s.Equal(1, s.f.repo.CallCount("ListPosts"))
}

func (s *ServiceTestSuite) TestRefetchBypassesCache() {
	s.f.post(s.bob.ID, "one")
	_, err := s.svc.Open(s.ctx, Global())
	s.Require().NoError(err)

	s.f.post(s.bob.ID, "two")
	page, err := s.svc.Refetch(s.ctx, Global())
	s.Require().NoError(err)
	s.False(page.FromCache)
	s.Len(page.Posts, 2)

	cached, ok := s.svc.Cache().Get(Global().Key())
	s.True(ok)
	s.Len(cached, 2)
}

func (s *ServiceTestSuite) TestSinglePostNotFound() {
	_, err := s.svc.Open(s.ctx, SinglePost("missing"))
	s.True(apperrors.HasCode(err, apperrors.ErrNotFound))
	s.False(s.svc.Cache().Has(SinglePost("missing").Key()))
	s.Len(s.f.recorder.All(), 1)
}

func (s *ServiceTestSuite) TestSubLookupFailureFailsWholeFeed() {
	s.f.post(s.bob.ID, "ok")
	broken := s.f.post(s.bob.ID, "broken")
	s.f.repo.SetHook(func(ctx context.Context, method string, args ...string) error {
		if method == "CountComments" && args[0] == broken {
			return errors.New("connection reset")
		}
		return nil
	})

	page, err := s.svc.Open(s.ctx, Global())
	s.Nil(page)
	s.True(apperrors.HasCode(err, apperrors.ErrFetchFailed))
	fe, ok := apperrors.As(err)
	s.Require().True(ok)
	s.Equal(broken, fe.TargetID)
	s.False(s.svc.Cache().Has(Global().Key()))

	notes := s.f.recorder.All()
	s.Require().Len(notes, 1)
	s.Equal(notify.LevelError, notes[0].Level)
}

func (s *ServiceTestSuite) TestPlannerFailureIsFetchFailed() {
	s.f.repo.SetHook(func(ctx context.Context, method string, args ...string) error {
		if method == "ListPosts" {
			return errors.New("timeout")
		}
		return nil
	})

	_, err := s.svc.Open(s.ctx, UserFeed(s.bob.ID))
	s.True(apperrors.HasCode(err, apperrors.ErrFetchFailed))
	s.Equal(1, s.f.repo.CallCount("ListPosts"), "no internal retry")
}

func (s *ServiceTestSuite) TestFollowingFeed() {
	carol := s.f.profile("carol")
	mine := s.f.post(s.alice.ID, "mine")
	followed := s.f.post(s.bob.ID, "followed")
	s.f.post(carol.ID, "not followed")

	s.Require().NoError(s.svc.SetFollowing(s.ctx, s.bob.ID, true))
	s.Require().NoError(s.svc.SetFollowing(s.ctx, s.bob.ID, true), "following twice is a no-op")

	page, err := s.svc.Open(s.ctx, View{Kind: KindFollowing})
	s.Require().NoError(err)
	s.Equal(Following(s.alice.ID).Key(), page.Key)
	s.Require().Len(page.Posts, 2)
	s.Equal(followed, page.Posts[0].ID)
	s.Equal(mine, page.Posts[1].ID)

	s.Require().NoError(s.svc.SetFollowing(s.ctx, s.bob.ID, false))
	s.False(s.svc.Cache().Has(Following(s.alice.ID).Key()))

	page, err = s.svc.Open(s.ctx, View{Kind: KindFollowing})
	s.Require().NoError(err)
	s.Require().Len(page.Posts, 1)
	s.Equal(mine, page.Posts[0].ID)
}

func (s *ServiceTestSuite) TestFollowingRequiresViewer() {
	anon := s.f.service(session.Identity{})
	_, err := anon.Open(s.ctx, View{Kind: KindFollowing})
	s.True(apperrors.HasCode(err, apperrors.ErrNotAuthenticated))
}

// toggling twice restores the original like set
func (s *ServiceTestSuite) TestToggleLikeTwiceRestoresLikes() {
	postID := s.f.post(s.bob.ID, "hello", s.bob.ID)
	_, err := s.svc.Open(s.ctx, Global())
	s.Require().NoError(err)

	liked, err := s.svc.ToggleLike(s.ctx, postID, false)
	s.Require().NoError(err)
	s.True(liked)

	liked, err = s.svc.ToggleLike(s.ctx, postID, true)
	s.Require().NoError(err)
	s.False(liked)

	ids, err := s.f.repo.ListLikeUserIDs(s.ctx, postID)
	s.Require().NoError(err)
	s.Equal([]string{s.bob.ID}, ids)

	cached, ok := s.svc.Cache().Post(postID)
	s.Require().True(ok)
	s.Equal([]string{s.bob.ID}, cached.LikeUserIDs)
	s.Equal(1, cached.LikesCount)
	s.False(cached.IsLikedByViewer)

	s.Equal([]string{"Post liked", "Post unliked"}, s.f.recorder.Texts())
}

func (s *ServiceTestSuite) TestDuplicateLikeIsSwallowed() {
	postID := s.f.post(s.bob.ID, "hello", s.alice.ID)

	liked, err := s.svc.ToggleLike(s.ctx, postID, false)
	s.Require().NoError(err)
	s.True(liked)

	ids, err := s.f.repo.ListLikeUserIDs(s.ctx, postID)
	s.Require().NoError(err)
	s.Len(ids, 1)
}

func (s *ServiceTestSuite) TestUnlikeOfAbsentPairIsNoop() {
	postID := s.f.post(s.bob.ID, "hello")

	liked, err := s.svc.ToggleLike(s.ctx, postID, true)
	s.Require().NoError(err)
	s.False(liked)
}

func (s *ServiceTestSuite) TestToggleLikeUnknownPost() {
	liked, err := s.svc.ToggleLike(s.ctx, "no-such-post", false)
	s.False(liked)
	s.True(apperrors.HasCode(err, apperrors.ErrNotFound), "got %v", err)
	fe, _ := apperrors.As(err)
	s.Equal(apperrors.OpToggleLike, fe.Op)
	s.Equal("no-such-post", fe.TargetID)

	ids, err := s.f.repo.ListLikeUserIDs(s.ctx, "no-such-post")
	s.Require().NoError(err)
	s.Empty(ids)
	s.Equal([]string{"Failed to like post: post not found"}, s.f.recorder.Texts())

	liked, err = s.svc.ToggleLike(s.ctx, "no-such-post", true)
	s.True(liked)
	s.True(apperrors.HasCode(err, apperrors.ErrNotFound), "got %v", err)
}

func (s *ServiceTestSuite) TestLikeOfPostDeletedElsewhereEvictsIt() {
	postID := s.f.post(s.bob.ID, "soon gone")
	_, err := s.svc.Open(s.ctx, Global())
	s.Require().NoError(err)

	_, err = s.f.repo.DeletePost(s.ctx, postID)
	s.Require().NoError(err)

	_, err = s.svc.ToggleLike(s.ctx, postID, false)
	s.True(apperrors.HasCode(err, apperrors.ErrNotFound))

	_, cached := s.svc.Cache().Post(postID)
	s.False(cached)
	global, ok := s.svc.Cache().Get(Global().Key())
	s.Require().True(ok)
	_, found := findPost(global, postID)
	s.False(found)
}

func (s *ServiceTestSuite) TestToggleLikeStoreFailureLeavesCache() {
	postID := s.f.post(s.bob.ID, "hello")
	_, err := s.svc.Open(s.ctx, Global())
	s.Require().NoError(err)

	s.f.repo.SetHook(func(ctx context.Context, method string, args ...string) error {
		if method == "InsertLike" {
			return errors.New("write timeout")
		}
		return nil
	})

	liked, err := s.svc.ToggleLike(s.ctx, postID, false)
	s.False(liked)
	s.True(apperrors.HasCode(err, apperrors.ErrWriteFailed))
	fe, _ := apperrors.As(err)
	s.Equal(apperrors.OpToggleLike, fe.Op)
	s.Equal(postID, fe.TargetID)

	cached, _ := s.svc.Cache().Post(postID)
	s.Empty(cached.LikeUserIDs)
	s.Equal([]string{"Failed to like post: failed to save changes"}, s.f.recorder.Texts())
}

// global [P1{}, P2{A}]; A likes P1; every cached entry holding P1 agrees
func (s *ServiceTestSuite) TestLikePatchesEveryViewHoldingPost() {
	p1 := s.f.post(s.bob.ID, "P1")
	p2 := s.f.post(s.bob.ID, "P2", s.alice.ID)

	_, err := s.svc.Open(s.ctx, Global())
	s.Require().NoError(err)
	_, err = s.svc.Open(s.ctx, SinglePost(p1))
	s.Require().NoError(err)
	listCalls := s.f.repo.CallCount("ListPosts")

	liked, err := s.svc.ToggleLike(s.ctx, p1, false)
	s.Require().NoError(err)
	s.True(liked)

	global, ok := s.svc.Cache().Get(Global().Key())
	s.Require().True(ok)
	gp1, _ := findPost(global, p1)
	s.Equal([]string{s.alice.ID}, gp1.LikeUserIDs)
	s.True(gp1.IsLikedByViewer)
	s.Equal(1, gp1.LikesCount)

	gp2, _ := findPost(global, p2)
	s.Equal([]string{s.alice.ID}, gp2.LikeUserIDs)
	s.True(gp2.IsLikedByViewer)

	single, ok := s.svc.Cache().Get(SinglePost(p1).Key())
	s.Require().True(ok)
	s.Require().Len(single, 1)
	s.Equal(gp1.LikeUserIDs, single[0].LikeUserIDs)
	s.True(single[0].IsLikedByViewer)

	s.Equal(listCalls, s.f.repo.CallCount("ListPosts"), "no refetch after toggle")
}

// commentsCount in every cached view tracks the number of comment rows
func (s *ServiceTestSuite) TestCommentCountConsistentAcrossViews() {
	postID := s.f.post(s.bob.ID, "discuss")
	for _, v := range []View{Global(), UserFeed(s.bob.ID), SinglePost(postID)} {
		_, err := s.svc.Open(s.ctx, v)
		s.Require().NoError(err)
	}

	for _, body := range []string{"one", "two", "three"} {
		_, err := s.svc.AddComment(s.ctx, postID, body)
		s.Require().NoError(err)
	}

	rows, err := s.f.repo.CountComments(s.ctx, postID)
	s.Require().NoError(err)
	s.EqualValues(3, rows)

	for _, v := range []View{Global(), UserFeed(s.bob.ID), SinglePost(postID)} {
		posts, ok := s.svc.Cache().Get(v.Key())
		s.Require().True(ok, v.Key())
		p, ok := findPost(posts, postID)
		s.Require().True(ok, v.Key())
		s.Equal(rows, p.CommentsCount, v.Key())
	}
}

func (s *ServiceTestSuite) TestAddCommentAttachesAuthorAndAppendsList() {
	postID := s.f.post(s.bob.ID, "discuss")
	_, err := s.f.repo.InsertComment(s.ctx, &models.Comment{PostID: postID, UserID: s.bob.ID, Content: "earlier"})
	s.Require().NoError(err)

	list, err := s.svc.Comments(s.ctx, postID)
	s.Require().NoError(err)
	s.Require().Len(list, 1)

	comment, err := s.svc.AddComment(s.ctx, postID, "  nice post  ")
	s.Require().NoError(err)
	s.Equal("alice", comment.Author.Username)
	s.Equal("nice post", comment.Content)

	cached, err := s.svc.Comments(s.ctx, postID)
	s.Require().NoError(err)
	s.Require().Len(cached, 2)
	s.Equal("earlier", cached[0].Content)
	s.Equal(comment.ID, cached[1].ID)
	s.Equal(1, s.f.repo.CallCount("ListComments"), "second read served from cache")
}

// blank comments are rejected before any store write
func (s *ServiceTestSuite) TestEmptyCommentRejectedBeforeWrite() {
	postID := s.f.post(s.bob.ID, "discuss")
	_, err := s.svc.Open(s.ctx, Global())
	s.Require().NoError(err)

	for _, body := range []string{"", "   ", "\n\t"} {
		comment, err := s.svc.AddComment(s.ctx, postID, body)
		s.Nil(comment)
		s.True(apperrors.HasCode(err, apperrors.ErrValidation))
	}

	s.Equal(0, s.f.repo.CallCount("InsertComment"))
	cached, _ := s.svc.Cache().Post(postID)
	s.EqualValues(0, cached.CommentsCount)
	s.Len(s.f.recorder.All(), 3)
}

func (s *ServiceTestSuite) TestAddCommentUnknownPost() {
	_, err := s.svc.AddComment(s.ctx, "missing", "hello")
	s.True(apperrors.HasCode(err, apperrors.ErrNotFound))
}

func (s *ServiceTestSuite) TestCommentsUnknownPost() {
	_, err := s.svc.Comments(s.ctx, "missing")
	s.True(apperrors.HasCode(err, apperrors.ErrNotFound))
}

func (s *ServiceTestSuite) TestMutationsRequireViewer() {
	anon := s.f.service(session.Identity{})
	postID := s.f.post(s.bob.ID, "hello")

	_, err := anon.CreatePost(s.ctx, NewPost{Description: "x"})
	s.True(apperrors.HasCode(err, apperrors.ErrNotAuthenticated))
	_, err = anon.ToggleLike(s.ctx, postID, false)
	s.True(apperrors.HasCode(err, apperrors.ErrNotAuthenticated))
	_, err = anon.AddComment(s.ctx, postID, "hi")
	s.True(apperrors.HasCode(err, apperrors.ErrNotAuthenticated))
	s.True(apperrors.HasCode(anon.DeletePost(s.ctx, postID), apperrors.ErrNotAuthenticated))

	s.Equal(0, s.f.repo.CallCount("InsertPost"))
	s.Equal(0, s.f.repo.CallCount("InsertLike"))
	s.Equal(0, s.f.repo.CallCount("InsertComment"))
}

func (s *ServiceTestSuite) TestCreatePostPrependsIntoCachedFeeds() {
	old := s.f.post(s.bob.ID, "old")
	_, err := s.svc.Open(s.ctx, Global())
	s.Require().NoError(err)
	_, err = s.svc.Open(s.ctx, UserFeed(s.alice.ID))
	s.Require().NoError(err)

	postID, err := s.svc.CreatePost(s.ctx, NewPost{Description: "new", Content: "body", Tags: []string{"Go", "go", " API "}})
	s.Require().NoError(err)

	global, _ := s.svc.Cache().Get(Global().Key())
	s.Require().Len(global, 2)
	s.Equal(postID, global[0].ID)
	s.Equal(old, global[1].ID)
	s.Equal([]string{"api", "go"}, global[0].Tags)
	s.Equal("alice", global[0].Author.Username)
	s.Equal("body", global[0].Content)

	mine, _ := s.svc.Cache().Get(UserFeed(s.alice.ID).Key())
	s.Require().Len(mine, 1)
	s.Equal(postID, mine[0].ID)

	s.False(s.svc.Cache().Has(UserFeed(s.bob.ID).Key()), "uncached views stay uncached")

	page, err := s.svc.Open(s.ctx, SinglePost(postID))
	s.Require().NoError(err)
	s.True(page.FromCache)

	s.Equal([]string{"Post created successfully"}, s.f.recorder.Texts())
}

func (s *ServiceTestSuite) TestCreatePostRejectsEmptyBody() {
	_, err := s.svc.CreatePost(s.ctx, NewPost{Description: "  "})
	s.True(apperrors.HasCode(err, apperrors.ErrValidation))
	s.Equal(0, s.f.repo.CallCount("InsertPost"))
}

// "React", " react " and "react" resolve to one tag row
func (s *ServiceTestSuite) TestTagNamesNormalizeToOneRow() {
	var ids []string
	for _, name := range []string{"React", " react ", "react"} {
		id, err := s.svc.CreatePost(s.ctx, NewPost{Description: "uses " + name, Tags: []string{name}})
		s.Require().NoError(err)
		ids = append(ids, id)
	}

	s.Equal(1, s.f.repo.CallCount("InsertTag"))
	for _, id := range ids {
		names, err := s.f.repo.ListTagNames(s.ctx, id)
		s.Require().NoError(err)
		s.Equal([]string{"react"}, names)
	}
}

// a concurrent creator wins the race for the second tag; the re-lookup finds it
func (s *ServiceTestSuite) TestTagRaceResolvedByRelookup() {
	raced := false
	s.f.repo.SetHook(func(ctx context.Context, method string, args ...string) error {
		if method != "InsertTag" || args[0] != "beta" || raced {
			return nil
		}
		raced = true
		_, err := s.f.repo.InsertTag(ctx, "beta")
		s.Require().NoError(err)
		return store.ErrConstraintViolation
	})

	postID, err := s.svc.CreatePost(s.ctx, NewPost{Description: "race", Tags: []string{"alpha", "beta"}})
	s.Require().NoError(err)

	names, err := s.f.repo.ListTagNames(s.ctx, postID)
	s.Require().NoError(err)
	s.Equal([]string{"alpha", "beta"}, names)
}

// the second tag stays unresolved after one re-lookup; the post keeps the first
func (s *ServiceTestSuite) TestTagRaceUnresolvedSkipsTag() {
	s.f.repo.SetHook(func(ctx context.Context, method string, args ...string) error {
		if method == "InsertTag" && args[0] == "beta" {
			return store.ErrConstraintViolation
		}
		return nil
	})

	postID, err := s.svc.CreatePost(s.ctx, NewPost{Description: "race", Tags: []string{"alpha", "beta"}})
	s.Require().NoError(err)

	names, err := s.f.repo.ListTagNames(s.ctx, postID)
	s.Require().NoError(err)
	s.Equal([]string{"alpha"}, names)

	lookups := 0
	for _, c := range s.f.repo.Calls {
		if c.Method == "FindTagByName" && c.Args[0] == "beta" {
			lookups++
		}
	}
	s.Equal(2, lookups, "initial lookup plus exactly one retry")

	cached, ok := s.svc.Cache().Post(postID)
	s.Require().True(ok)
	s.Equal([]string{"alpha"}, cached.Tags)
}

func (s *ServiceTestSuite) TestLinkFailureSkipsOnlyThatTag() {
	s.f.repo.SetHook(func(ctx context.Context, method string, args ...string) error {
		if method == "LinkTag" {
			tag, err := s.f.repo.FindTagByName(ctx, "broken")
			if err == nil && args[1] == tag.ID {
				return errors.New("link rejected")
			}
		}
		return nil
	})

	postID, err := s.svc.CreatePost(s.ctx, NewPost{Description: "x", Tags: []string{"ok", "broken", "fine"}})
	s.Require().NoError(err)

	names, err := s.f.repo.ListTagNames(s.ctx, postID)
	s.Require().NoError(err)
	s.Equal([]string{"fine", "ok"}, names)
}

// a response for a view the caller navigated away from is not cached
func (s *ServiceTestSuite) TestStaleResponseDiscarded() {
	u42 := s.f.profile("user42")
	u7 := s.f.profile("user7")
	s.f.post(u42.ID, "from 42")
	s.f.post(u7.ID, "from 7")

	entered := make(chan struct{})
	release := make(chan struct{})
	var once sync.Once
	s.f.repo.SetHook(func(ctx context.Context, method string, args ...string) error {
		if method == "ListPosts" && args[0] == u42.ID {
			blocked := false
			once.Do(func() { blocked = true })
			if blocked {
				close(entered)
				<-release
			}
		}
		return nil
	})

	type result struct {
		page *Page
		err  error
	}
	done := make(chan result, 1)
	go func() {
		page, err := s.svc.Open(s.ctx, UserFeed(u42.ID))
		done <- result{page, err}
	}()

	select {
	case <-entered:
	case <-time.After(5 * time.Second):
		s.FailNow("fetch for user 42 never started")
	}

	page7, err := s.svc.Open(s.ctx, UserFeed(u7.ID))
	s.Require().NoError(err)
	s.False(page7.Stale)

	close(release)
	var stale result
	select {
	case stale = <-done:
	case <-time.After(5 * time.Second):
		s.FailNow("fetch for user 42 never finished")
	}
	s.Require().NoError(stale.err)
	s.True(stale.page.Stale)

	s.True(s.svc.Cache().Has(UserFeed(u7.ID).Key()))
	s.False(s.svc.Cache().Has(UserFeed(u42.ID).Key()))
	s.Equal(UserFeed(u7.ID).Key(), s.svc.Cache().Active())

	again, err := s.svc.Open(s.ctx, UserFeed(u42.ID))
	s.Require().NoError(err)
	s.False(again.FromCache)
	s.False(again.Stale)
	s.Len(again.Posts, 1)
}

func (s *ServiceTestSuite) TestDeletePost() {
	mine := s.f.post(s.alice.ID, "mine")
	theirs := s.f.post(s.bob.ID, "theirs")
	_, err := s.svc.Open(s.ctx, Global())
	s.Require().NoError(err)
	_, err = s.svc.Open(s.ctx, SinglePost(mine))
	s.Require().NoError(err)

	err = s.svc.DeletePost(s.ctx, theirs)
	s.True(apperrors.HasCode(err, apperrors.ErrForbidden))

	s.Require().NoError(s.svc.DeletePost(s.ctx, mine))
	global, _ := s.svc.Cache().Get(Global().Key())
	s.Require().Len(global, 1)
	s.Equal(theirs, global[0].ID)
	s.False(s.svc.Cache().Has(SinglePost(mine).Key()))

	err = s.svc.DeletePost(s.ctx, mine)
	s.True(apperrors.HasCode(err, apperrors.ErrNotFound))
}

func (s *ServiceTestSuite) TestSetFollowingRejectsSelf() {
	err := s.svc.SetFollowing(s.ctx, s.alice.ID, true)
	s.True(apperrors.HasCode(err, apperrors.ErrValidation))
}

func TestServiceTestSuite(t *testing.T) {
	suite.Run(t, new(ServiceTestSuite))
}
