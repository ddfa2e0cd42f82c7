package feed

import (
	"sync"

	"github.com/codeconnects/backend/internal/metrics"
)

// Ticket identifies one in-flight fetch. Commit accepts the result only if the
// ticket is still current.
type Ticket struct {
	Key        string
	Token      uint64
	Generation uint64
}

// Discard reasons reported by Commit
const (
	ReasonSuperseded = "superseded" // a newer fetch for the same view started
	ReasonInactive   = "inactive"   // the caller navigated to another view
	ReasonMutated    = "mutated"    // a patch touched the cache during the fetch
)

// Cache holds assembled posts for one viewer session. Views are ordered lists
// of post ids over a shared post index, so a post held by several views is
// patched once. All access goes through the methods below, under one mutex.
type Cache struct {
	mu sync.Mutex

	views    map[string][]string
	posts    map[string]*PostView
	comments map[string][]CommentView

	tokens     map[string]uint64
	nextToken  uint64
	generation uint64
	active     string
}

// NewCache creates an empty cache
func NewCache() *Cache {
	return &Cache{
		views:    make(map[string][]string),
		posts:    make(map[string]*PostView),
		comments: make(map[string][]CommentView),
		tokens:   make(map[string]uint64),
	}
}

// SetActive records the view the caller is currently looking at
func (c *Cache) SetActive(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.active = key
}

// Active returns the current view key
func (c *Cache) Active() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.active
}

// Get returns copies of a cached view's posts
func (c *Cache) Get(key string) ([]PostView, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	ids, ok := c.views[key]
	if !ok {
		return nil, false
	}
	out := make([]PostView, 0, len(ids))
	for _, id := range ids {
		if p, ok := c.posts[id]; ok {
			out = append(out, p.clone())
		}
	}
	return out, true
}

// Post returns a copy of one indexed post, whichever view it came from
func (c *Cache) Post(postID string) (PostView, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	p, ok := c.posts[postID]
	if !ok {
		return PostView{}, false
	}
	return p.clone(), true
}

// Has reports whether a view entry exists
func (c *Cache) Has(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.views[key]
	return ok
}

// Begin issues the next request token for key
func (c *Cache) Begin(key string) Ticket {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.nextToken++
	c.tokens[key] = c.nextToken
	return Ticket{Key: key, Token: c.nextToken, Generation: c.generation}
}

// Commit stores a fetched view if the ticket is the latest for its view, the
// view is still active and no patch ran since Begin. Otherwise nothing is
// written and the reason is returned.
func (c *Cache) Commit(t Ticket, posts []PostView) (bool, string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	switch {
	case c.tokens[t.Key] != t.Token:
		return false, ReasonSuperseded
	case c.active != t.Key:
		return false, ReasonInactive
	case c.generation != t.Generation:
		return false, ReasonMutated
	}

	ids := make([]string, 0, len(posts))
	for _, p := range posts {
		stored := p.clone()
		c.posts[p.ID] = &stored
		ids = append(ids, p.ID)
	}
	c.views[t.Key] = ids
	c.collect()
	return true, ""
}

// Generation returns the patch counter, for fetches that are not view-scoped
func (c *Cache) Generation() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.generation
}

// Comments returns a copy of a cached comment list
func (c *Cache) Comments(postID string) ([]CommentView, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	list, ok := c.comments[postID]
	if !ok {
		return nil, false
	}
	return append([]CommentView{}, list...), true
}

// CommitComments stores a fetched comment list unless a patch ran since generation
func (c *Cache) CommitComments(postID string, generation uint64, list []CommentView) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.generation != generation {
		return false
	}
	c.comments[postID] = append([]CommentView{}, list...)
	return true
}

// PatchLike adds or removes userID from the post's like set and recomputes the
// derived fields for viewerID. It returns the number of views holding the post.
func (c *Cache) PatchLike(postID, userID string, liked bool, viewerID string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.generation++

	p, ok := c.posts[postID]
	if !ok {
		return 0
	}
	if liked {
		if !containsString(p.LikeUserIDs, userID) {
			p.LikeUserIDs = append(p.LikeUserIDs, userID)
		}
	} else {
		p.LikeUserIDs = removeString(p.LikeUserIDs, userID)
	}
	p.LikesCount = len(p.LikeUserIDs)
	p.IsLikedByViewer = viewerID != "" && containsString(p.LikeUserIDs, viewerID)
	metrics.RecordCachePatch("like")
	return c.holders(postID)
}

// AddComment increments the post's comment count by one and appends comment to
// the post's comment list when that list is cached.
func (c *Cache) AddComment(comment CommentView) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.generation++

	if p, ok := c.posts[comment.PostID]; ok {
		p.CommentsCount++
		metrics.RecordCachePatch("comment_count")
	}
	if list, ok := c.comments[comment.PostID]; ok {
		c.comments[comment.PostID] = append(list, comment)
		metrics.RecordCachePatch("comment_list")
	}
}

// PrependPost indexes a new post (with its tag list) and puts it at the head of
// every listed view that is cached. Its post:<id> entry is created as well.
func (c *Cache) PrependPost(post PostView, keys ...string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.generation++

	stored := post.clone()
	c.posts[post.ID] = &stored
	c.views[SinglePost(post.ID).Key()] = []string{post.ID}

	for _, key := range keys {
		ids, ok := c.views[key]
		if !ok || containsString(ids, post.ID) {
			continue
		}
		c.views[key] = append([]string{post.ID}, ids...)
	}
	metrics.RecordCachePatch("prepend")
}

// EvictPost removes a post from every view, the index and the comment lists.
// It returns how many views held it.
func (c *Cache) EvictPost(postID string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.generation++

	removed := 0
	for key, ids := range c.views {
		if !containsString(ids, postID) {
			continue
		}
		removed++
		c.views[key] = removeString(ids, postID)
	}
	delete(c.views, SinglePost(postID).Key())
	delete(c.posts, postID)
	delete(c.comments, postID)
	metrics.RecordCacheEviction("deleted", removed)
	return removed
}

// Invalidate drops one view entry so the next read refetches it
func (c *Cache) Invalidate(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.generation++
	delete(c.views, key)
	c.collect()
}

// Keys lists the cached view keys
func (c *Cache) Keys() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	keys := make([]string, 0, len(c.views))
	for k := range c.views {
		keys = append(keys, k)
	}
	return keys
}

// holders counts views containing postID. Caller holds mu.
func (c *Cache) holders(postID string) int {
	n := 0
	for _, ids := range c.views {
		if containsString(ids, postID) {
			n++
		}
	}
	return n
}

// collect drops indexed posts no view refers to. Caller holds mu.
func (c *Cache) collect() {
	referenced := make(map[string]bool, len(c.posts))
	for _, ids := range c.views {
		for _, id := range ids {
			referenced[id] = true
		}
	}
	for id := range c.posts {
		if !referenced[id] {
			delete(c.posts, id)
		}
	}
}
