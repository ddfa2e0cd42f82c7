// Package memory is an in-process implementation of store.Repository.
// It backs STORE_DRIVER=memory and every test that needs a store. Calls are
// recorded and an optional hook can fail or delay any method.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/codeconnects/backend/internal/models"
	"github.com/codeconnects/backend/internal/store"
)

// Call records a method call for assertion
type Call struct {
	Method string
	Args   []string
}

// Hook runs before every method. A non-nil error is returned from the method
// without touching any data.
type Hook func(ctx context.Context, method string, args ...string) error

type pair struct{ a, b string }

// Store is a mutex-guarded in-memory relational store
type Store struct {
	mu sync.Mutex

	posts    map[string]models.Post
	comments map[string]models.Comment
	likes    map[pair]models.Like
	tags     map[string]models.Tag // by id
	tagNames map[string]string     // name -> id
	postTags map[pair]struct{}
	profiles map[string]models.Profile
	follows  map[pair]models.Follow
	messages map[string]models.Message

	// Calls lists every method invocation in order
	Calls []Call

	hook Hook
	now  func() time.Time
}

var _ store.Repository = (*Store)(nil)

// New creates an empty store
func New() *Store {
	return &Store{
		posts:    make(map[string]models.Post),
		comments: make(map[string]models.Comment),
		likes:    make(map[pair]models.Like),
		tags:     make(map[string]models.Tag),
		tagNames: make(map[string]string),
		postTags: make(map[pair]struct{}),
		profiles: make(map[string]models.Profile),
		follows:  make(map[pair]models.Follow),
		messages: make(map[string]models.Message),
		Calls:    make([]Call, 0),
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// SetHook installs (or clears, with nil) the pre-call hook
func (s *Store) SetHook(h Hook) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.hook = h
}

// SetClock overrides the timestamp source used for new rows
func (s *Store) SetClock(now func() time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.now = now
}

// CallCount returns how many times method was invoked
func (s *Store) CallCount(method string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, c := range s.Calls {
		if c.Method == method {
			n++
		}
	}
	return n
}

// begin records the call and runs the hook outside the lock so a hook may block.
func (s *Store) begin(ctx context.Context, method string, args ...string) error {
	s.mu.Lock()
	s.Calls = append(s.Calls, Call{Method: method, Args: args})
	hook := s.hook
	s.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}
	if hook != nil {
		return hook(ctx, method, args...)
	}
	return nil
}

func (s *Store) ListPosts(ctx context.Context, filter store.PostFilter) ([]models.Post, error) {
	if err := s.begin(ctx, "ListPosts", filter.UserID); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	var allowed map[string]bool
	if filter.UserIDs != nil {
		allowed = make(map[string]bool, len(filter.UserIDs))
		for _, id := range filter.UserIDs {
			allowed[id] = true
		}
	}

	posts := make([]models.Post, 0, len(s.posts))
	for _, p := range s.posts {
		if filter.UserID != "" && p.UserID != filter.UserID {
			continue
		}
		if allowed != nil && !allowed[p.UserID] {
			continue
		}
		posts = append(posts, p)
	}
	sort.Slice(posts, func(i, j int) bool {
		if !posts[i].CreatedAt.Equal(posts[j].CreatedAt) {
			return posts[i].CreatedAt.After(posts[j].CreatedAt)
		}
		return posts[i].ID > posts[j].ID
	})
	if filter.Limit > 0 && len(posts) > filter.Limit {
		posts = posts[:filter.Limit]
	}
	return posts, nil
}

func (s *Store) GetPost(ctx context.Context, postID string) (*models.Post, error) {
	if err := s.begin(ctx, "GetPost", postID); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.posts[postID]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &p, nil
}

func (s *Store) InsertPost(ctx context.Context, post *models.Post) (string, error) {
	if err := s.begin(ctx, "InsertPost", post.UserID); err != nil {
		return "", err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	row := *post
	if row.ID == "" {
		row.ID = models.NewID()
	}
	if _, exists := s.posts[row.ID]; exists {
		return "", fmt.Errorf("post %s: %w", row.ID, store.ErrConstraintViolation)
	}
	if row.CreatedAt.IsZero() {
		row.CreatedAt = s.now()
	}
	if row.UpdatedAt.IsZero() {
		row.UpdatedAt = row.CreatedAt
	}
	s.posts[row.ID] = row
	*post = row
	return row.ID, nil
}

func (s *Store) DeletePost(ctx context.Context, postID string) (int64, error) {
	if err := s.begin(ctx, "DeletePost", postID); err != nil {
		return 0, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.posts[postID]; !ok {
		return 0, nil
	}
	delete(s.posts, postID)
	for k := range s.likes {
		if k.a == postID {
			delete(s.likes, k)
		}
	}
	for id, c := range s.comments {
		if c.PostID == postID {
			delete(s.comments, id)
		}
	}
	for k := range s.postTags {
		if k.a == postID {
			delete(s.postTags, k)
		}
	}
	return 1, nil
}

func (s *Store) ListLikeUserIDs(ctx context.Context, postID string) ([]string, error) {
	if err := s.begin(ctx, "ListLikeUserIDs", postID); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	likes := make([]models.Like, 0)
	for k, l := range s.likes {
		if k.a == postID {
			likes = append(likes, l)
		}
	}
	sort.Slice(likes, func(i, j int) bool {
		if !likes[i].CreatedAt.Equal(likes[j].CreatedAt) {
			return likes[i].CreatedAt.Before(likes[j].CreatedAt)
		}
		return likes[i].UserID < likes[j].UserID
	})
	ids := make([]string, len(likes))
	for i, l := range likes {
		ids[i] = l.UserID
	}
	return ids, nil
}

func (s *Store) InsertLike(ctx context.Context, postID, userID string) error {
	if err := s.begin(ctx, "InsertLike", postID, userID); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.posts[postID]; !ok {
		return fmt.Errorf("like on post %s: %w", postID, store.ErrNotFound)
	}
	k := pair{postID, userID}
	if _, exists := s.likes[k]; exists {
		return fmt.Errorf("like (%s, %s): %w", postID, userID, store.ErrConstraintViolation)
	}
	s.likes[k] = models.Like{PostID: postID, UserID: userID, CreatedAt: s.now()}
	return nil
}

func (s *Store) DeleteLike(ctx context.Context, postID, userID string) (int64, error) {
	if err := s.begin(ctx, "DeleteLike", postID, userID); err != nil {
		return 0, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	k := pair{postID, userID}
	if _, exists := s.likes[k]; !exists {
		return 0, nil
	}
	delete(s.likes, k)
	return 1, nil
}

func (s *Store) CountComments(ctx context.Context, postID string) (int64, error) {
	if err := s.begin(ctx, "CountComments", postID); err != nil {
		return 0, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	var n int64
	for _, c := range s.comments {
		if c.PostID == postID {
			n++
		}
	}
	return n, nil
}

func (s *Store) ListComments(ctx context.Context, postID string) ([]models.Comment, error) {
	if err := s.begin(ctx, "ListComments", postID); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]models.Comment, 0)
	for _, c := range s.comments {
		if c.PostID == postID {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (s *Store) InsertComment(ctx context.Context, comment *models.Comment) (string, error) {
	if err := s.begin(ctx, "InsertComment", comment.PostID, comment.UserID); err != nil {
		return "", err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.posts[comment.PostID]; !ok {
		return "", fmt.Errorf("comment on post %s: %w", comment.PostID, store.ErrNotFound)
	}
	row := *comment
	if row.ID == "" {
		row.ID = models.NewID()
	}
	if row.CreatedAt.IsZero() {
		row.CreatedAt = s.now()
	}
	s.comments[row.ID] = row
	*comment = row
	return row.ID, nil
}

func (s *Store) ListTagNames(ctx context.Context, postID string) ([]string, error) {
	if err := s.begin(ctx, "ListTagNames", postID); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	names := make([]string, 0)
	for k := range s.postTags {
		if k.a != postID {
			continue
		}
		if t, ok := s.tags[k.b]; ok {
			names = append(names, t.Name)
		}
	}
	sort.Strings(names)
	return names, nil
}

func (s *Store) FindTagByName(ctx context.Context, name string) (*models.Tag, error) {
	if err := s.begin(ctx, "FindTagByName", name); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	id, ok := s.tagNames[name]
	if !ok {
		return nil, store.ErrNotFound
	}
	t := s.tags[id]
	return &t, nil
}

func (s *Store) InsertTag(ctx context.Context, name string) (string, error) {
	if err := s.begin(ctx, "InsertTag", name); err != nil {
		return "", err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.tagNames[name]; exists {
		return "", fmt.Errorf("tag %q: %w", name, store.ErrConstraintViolation)
	}
	t := models.Tag{ID: models.NewID(), Name: name, CreatedAt: s.now()}
	s.tags[t.ID] = t
	s.tagNames[name] = t.ID
	return t.ID, nil
}

func (s *Store) LinkTag(ctx context.Context, postID, tagID string) error {
	if err := s.begin(ctx, "LinkTag", postID, tagID); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.posts[postID]; !ok {
		return fmt.Errorf("post %s: %w", postID, store.ErrNotFound)
	}
	if _, ok := s.tags[tagID]; !ok {
		return fmt.Errorf("tag %s: %w", tagID, store.ErrNotFound)
	}
	k := pair{postID, tagID}
	if _, exists := s.postTags[k]; exists {
		return fmt.Errorf("post_tag (%s, %s): %w", postID, tagID, store.ErrConstraintViolation)
	}
	s.postTags[k] = struct{}{}
	return nil
}

func (s *Store) GetProfile(ctx context.Context, userID string) (*models.Profile, error) {
	if err := s.begin(ctx, "GetProfile", userID); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.profiles[userID]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &p, nil
}

func (s *Store) GetProfiles(ctx context.Context, userIDs []string) (map[string]models.Profile, error) {
	if err := s.begin(ctx, "GetProfiles", userIDs...); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make(map[string]models.Profile, len(userIDs))
	for _, id := range userIDs {
		if p, ok := s.profiles[id]; ok {
			out[id] = p
		}
	}
	return out, nil
}

func (s *Store) InsertProfile(ctx context.Context, profile *models.Profile) (string, error) {
	if err := s.begin(ctx, "InsertProfile", profile.Username); err != nil {
		return "", err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	row := *profile
	if row.ID == "" {
		row.ID = models.NewID()
	}
	if _, exists := s.profiles[row.ID]; exists {
		return "", fmt.Errorf("profile %s: %w", row.ID, store.ErrConstraintViolation)
	}
	for _, p := range s.profiles {
		if p.Username == row.Username {
			return "", fmt.Errorf("username %q: %w", row.Username, store.ErrConstraintViolation)
		}
	}
	now := s.now()
	if row.CreatedAt.IsZero() {
		row.CreatedAt = now
	}
	row.UpdatedAt = now
	s.profiles[row.ID] = row
	*profile = row
	return row.ID, nil
}

func (s *Store) ListFollowing(ctx context.Context, followerID string) ([]string, error) {
	if err := s.begin(ctx, "ListFollowing", followerID); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	ids := make([]string, 0)
	for k := range s.follows {
		if k.a == followerID {
			ids = append(ids, k.b)
		}
	}
	sort.Strings(ids)
	return ids, nil
}

func (s *Store) Follow(ctx context.Context, followerID, followingID string) error {
	if err := s.begin(ctx, "Follow", followerID, followingID); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	k := pair{followerID, followingID}
	if _, exists := s.follows[k]; exists {
		return fmt.Errorf("follow (%s, %s): %w", followerID, followingID, store.ErrConstraintViolation)
	}
	s.follows[k] = models.Follow{FollowerID: followerID, FollowingID: followingID, CreatedAt: s.now()}
	return nil
}

func (s *Store) Unfollow(ctx context.Context, followerID, followingID string) (int64, error) {
	if err := s.begin(ctx, "Unfollow", followerID, followingID); err != nil {
		return 0, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	k := pair{followerID, followingID}
	if _, exists := s.follows[k]; !exists {
		return 0, nil
	}
	delete(s.follows, k)
	return 1, nil
}
