package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/codeconnects/backend/internal/models"
	"github.com/codeconnects/backend/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestListPostsOrdering(t *testing.T) {
	ctx := context.Background()
	s := New()
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	for _, p := range []models.Post{
		{ID: "a", UserID: "u1", Description: "old", CreatedAt: base},
		{ID: "b", UserID: "u2", Description: "tie low", CreatedAt: base.Add(time.Hour)},
		{ID: "c", UserID: "u1", Description: "tie high", CreatedAt: base.Add(time.Hour)},
	} {
		p := p
		_, err := s.InsertPost(ctx, &p)
		require.NoError(t, err)
	}

	posts, err := s.ListPosts(ctx, store.PostFilter{})
	require.NoError(t, err)
	require.Len(t, posts, 3)
	assert.Equal(t, []string{"c", "b", "a"}, []string{posts[0].ID, posts[1].ID, posts[2].ID})

	byUser, err := s.ListPosts(ctx, store.PostFilter{UserID: "u1"})
	require.NoError(t, err)
	assert.Len(t, byUser, 2)

	subset, err := s.ListPosts(ctx, store.PostFilter{UserIDs: []string{"u2"}})
	require.NoError(t, err)
	require.Len(t, subset, 1)
	assert.Equal(t, "b", subset[0].ID)

	none, err := s.ListPosts(ctx, store.PostFilter{UserIDs: []string{}})
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestLikeUniqueness(t *testing.T) {
	ctx := context.Background()
	s := New()

	err := s.InsertLike(ctx, "p1", "u1")
	assert.True(t, store.IsNotFound(err), "like on a missing post")
	_, err = s.InsertPost(ctx, &models.Post{ID: "p1", UserID: "u2", Description: "hello"})
	require.NoError(t, err)

	require.NoError(t, s.InsertLike(ctx, "p1", "u1"))
	err = s.InsertLike(ctx, "p1", "u1")
	assert.True(t, store.IsConstraintViolation(err))

	ids, err := s.ListLikeUserIDs(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, []string{"u1"}, ids)

	n, err := s.DeleteLike(ctx, "p1", "u1")
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)

	n, err = s.DeleteLike(ctx, "p1", "u1")
	require.NoError(t, err)
	assert.EqualValues(t, 0, n)
}

func TestTagUniqueness(t *testing.T) {
	ctx := context.Background()
	s := New()

	id, err := s.InsertTag(ctx, "go")
	require.NoError(t, err)

	_, err = s.InsertTag(ctx, "go")
	assert.True(t, store.IsConstraintViolation(err))

	tag, err := s.FindTagByName(ctx, "go")
	require.NoError(t, err)
	assert.Equal(t, id, tag.ID)

	_, err = s.FindTagByName(ctx, "rust")
	assert.True(t, store.IsNotFound(err))
}

func TestDeletePostCascades(t *testing.T) {
	ctx := context.Background()
	s := New()

	post := &models.Post{UserID: "u1", Description: "hello"}
	postID, err := s.InsertPost(ctx, post)
	require.NoError(t, err)
	require.NoError(t, s.InsertLike(ctx, postID, "u2"))
	_, err = s.InsertComment(ctx, &models.Comment{PostID: postID, UserID: "u2", Content: "hi"})
	require.NoError(t, err)
	tagID, err := s.InsertTag(ctx, "go")
	require.NoError(t, err)
	require.NoError(t, s.LinkTag(ctx, postID, tagID))

	n, err := s.DeletePost(ctx, postID)
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)

	count, err := s.CountComments(ctx, postID)
	require.NoError(t, err)
	assert.Zero(t, count)
	likes, err := s.ListLikeUserIDs(ctx, postID)
	require.NoError(t, err)
	assert.Empty(t, likes)
	tags, err := s.ListTagNames(ctx, postID)
	require.NoError(t, err)
	assert.Empty(t, tags)

	// the tag itself survives
	_, err = s.FindTagByName(ctx, "go")
	assert.NoError(t, err)
}

func TestHookFailsCall(t *testing.T) {
	ctx := context.Background()
	s := New()
	boom := errors.New("boom")

	s.SetHook(func(ctx context.Context, method string, args ...string) error {
		if method == "CountComments" {
			return boom
		}
		return nil
	})

	_, err := s.CountComments(ctx, "p1")
	assert.ErrorIs(t, err, boom)
	_, err = s.ListLikeUserIDs(ctx, "p1")
	assert.NoError(t, err)

	assert.Equal(t, 1, s.CallCount("CountComments"))
}

func TestCommentRequiresPost(t *testing.T) {
	ctx := context.Background()
	s := New()

	_, err := s.InsertComment(ctx, &models.Comment{PostID: "missing", UserID: "u1", Content: "x"})
	assert.True(t, store.IsNotFound(err))
}

func TestMessagesAndConversationRead(t *testing.T) {
	ctx := context.Background()
	s := New()
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	for _, p := range []models.Profile{{ID: "a", Username: "alice"}, {ID: "b", Username: "bob"}, {ID: "c", Username: "carol"}} {
		p := p
		_, err := s.InsertProfile(ctx, &p)
		require.NoError(t, err)
	}

	for i, m := range []models.Message{
		{SenderID: "a", ReceiverID: "b", Content: "one"},
		{SenderID: "b", ReceiverID: "a", Content: "two"},
		{SenderID: "c", ReceiverID: "a", Content: "three"},
	} {
		m := m
		m.CreatedAt = base.Add(time.Duration(i) * time.Minute)
		_, err := s.InsertMessage(ctx, &m)
		require.NoError(t, err)
	}
	_, err := s.InsertMessage(ctx, &models.Message{SenderID: "a", ReceiverID: "nobody", Content: "x"})
	assert.True(t, store.IsNotFound(err))

	convo, err := s.ListConversation(ctx, "a", "b")
	require.NoError(t, err)
	require.Len(t, convo, 2)
	assert.Equal(t, "one", convo[0].Content)

	all, err := s.ListMessagesFor(ctx, "a")
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "three", all[0].Content)

	n, err := s.MarkConversationRead(ctx, "a", "b")
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)
	convo, err = s.ListConversation(ctx, "b", "a")
	require.NoError(t, err)
	assert.False(t, convo[0].Read, "messages a sent stay unread")
	assert.True(t, convo[1].Read)
}

func TestSearch(t *testing.T) {
	ctx := context.Background()
	s := New()
	_, err := s.InsertProfile(ctx, &models.Profile{Username: "Gopher", Bio: "go all day"})
	require.NoError(t, err)
	_, err = s.InsertProfile(ctx, &models.Profile{Username: "pythonista"})
	require.NoError(t, err)

	profiles, err := s.SearchProfiles(ctx, "go", 0)
	require.NoError(t, err)
	require.Len(t, profiles, 1)
	assert.Equal(t, "Gopher", profiles[0].Username)

	postID, err := s.InsertPost(ctx, &models.Post{UserID: "u1", Description: "weekend project"})
	require.NoError(t, err)
	_, err = s.InsertPost(ctx, &models.Post{UserID: "u1", Description: "Go generics"})
	require.NoError(t, err)
	tagID, err := s.InsertTag(ctx, "golang")
	require.NoError(t, err)
	require.NoError(t, s.LinkTag(ctx, postID, tagID))

	posts, err := s.SearchPosts(ctx, "GO", 0)
	require.NoError(t, err)
	assert.Len(t, posts, 2)

	posts, err = s.SearchPosts(ctx, "weekend", 0)
	require.NoError(t, err)
	require.Len(t, posts, 1)
	assert.Equal(t, postID, posts[0].ID)
}
