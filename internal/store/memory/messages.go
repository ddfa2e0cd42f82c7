package memory

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/codeconnects/backend/internal/models"
	"github.com/codeconnects/backend/internal/store"
)

func (s *Store) InsertMessage(ctx context.Context, msg *models.Message) (string, error) {
	if err := s.begin(ctx, "InsertMessage", msg.SenderID, msg.ReceiverID); err != nil {
		return "", err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.profiles[msg.ReceiverID]; !ok {
		return "", fmt.Errorf("message to %s: %w", msg.ReceiverID, store.ErrNotFound)
	}
	row := *msg
	if row.ID == "" {
		row.ID = models.NewID()
	}
	if row.CreatedAt.IsZero() {
		row.CreatedAt = s.now()
	}
	s.messages[row.ID] = row
	*msg = row
	return row.ID, nil
}

func (s *Store) ListConversation(ctx context.Context, a, b string) ([]models.Message, error) {
	if err := s.begin(ctx, "ListConversation", a, b); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]models.Message, 0)
	for _, m := range s.messages {
		if m.Involves(a) && m.Peer(a) == b {
			out = append(out, m)
		}
	}
	sortMessages(out, true)
	return out, nil
}

func (s *Store) ListMessagesFor(ctx context.Context, userID string) ([]models.Message, error) {
	if err := s.begin(ctx, "ListMessagesFor", userID); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]models.Message, 0)
	for _, m := range s.messages {
		if m.Involves(userID) {
			out = append(out, m)
		}
	}
	sortMessages(out, false)
	return out, nil
}

func (s *Store) MarkConversationRead(ctx context.Context, receiverID, senderID string) (int64, error) {
	if err := s.begin(ctx, "MarkConversationRead", receiverID, senderID); err != nil {
		return 0, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	var n int64
	for id, m := range s.messages {
		if m.ReceiverID == receiverID && m.SenderID == senderID && !m.Read {
			m.Read = true
			s.messages[id] = m
			n++
		}
	}
	return n, nil
}

func (s *Store) SearchProfiles(ctx context.Context, query string, limit int) ([]models.Profile, error) {
	if err := s.begin(ctx, "SearchProfiles", query); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	q := strings.ToLower(query)
	out := make([]models.Profile, 0)
	for _, p := range s.profiles {
		if strings.Contains(strings.ToLower(p.Username), q) || strings.Contains(strings.ToLower(p.Bio), q) {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Username < out[j].Username })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *Store) SearchPosts(ctx context.Context, query string, limit int) ([]models.Post, error) {
	if err := s.begin(ctx, "SearchPosts", query); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	q := strings.ToLower(query)
	tagged := make(map[string]bool)
	for link := range s.postTags {
		if tag, ok := s.tags[link.b]; ok && strings.Contains(tag.Name, q) {
			tagged[link.a] = true
		}
	}

	out := make([]models.Post, 0)
	for _, p := range s.posts {
		if tagged[p.ID] || strings.Contains(strings.ToLower(p.Description), q) {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID > out[j].ID
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// sortMessages orders by created_at then id, oldest first when asc
func sortMessages(msgs []models.Message, asc bool) {
	sort.Slice(msgs, func(i, j int) bool {
		a, b := msgs[i], msgs[j]
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.Before(b.CreatedAt) == asc
		}
		return (a.ID < b.ID) == asc
	})
}
