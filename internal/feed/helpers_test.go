package feed

import (
	"context"
	"sync"
	"time"

	"github.com/codeconnects/backend/internal/models"
	"github.com/codeconnects/backend/internal/notify"
	"github.com/codeconnects/backend/internal/session"
	"github.com/codeconnects/backend/internal/store/memory"
)

// tickingClock returns strictly increasing timestamps so insertion order is creation order
func tickingClock(start time.Time) func() time.Time {
	var mu sync.Mutex
	next := start
	return func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		next = next.Add(time.Second)
		return next
	}
}

type fixture struct {
	repo     *memory.Store
	recorder *notify.Recorder
}

func newFixture() *fixture {
	repo := memory.New()
	repo.SetClock(tickingClock(time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)))
	return &fixture{repo: repo, recorder: notify.NewRecorder()}
}

func (f *fixture) service(viewer session.Identity) *Service {
	return NewService(f.repo, session.Of(viewer), f.recorder, WithConcurrency(4))
}

func (f *fixture) profile(username string) session.Identity {
	p := &models.Profile{Username: username}
	if _, err := f.repo.InsertProfile(context.Background(), p); err != nil {
		panic(err)
	}
	return session.Identity{ID: p.ID, Username: username}
}

func (f *fixture) post(authorID, description string, likedBy ...string) string {
	ctx := context.Background()
	id, err := f.repo.InsertPost(ctx, &models.Post{UserID: authorID, Description: description})
	if err != nil {
		panic(err)
	}
	for _, u := range likedBy {
		if err := f.repo.InsertLike(ctx, id, u); err != nil {
			panic(err)
		}
	}
	return id
}

func findPost(posts []PostView, id string) (PostView, bool) {
	for _, p := range posts {
		if p.ID == id {
			return p, true
		}
	}
	return PostView{}, false
}
