// Package messaging stores direct messages between profiles and pushes a
// notification to the receiver through the same sink the feed uses.
package messaging

import (
	"context"
	"sort"
	"strings"
	"time"

	apperrors "github.com/codeconnects/backend/internal/errors"
	"github.com/codeconnects/backend/internal/feed"
	"github.com/codeconnects/backend/internal/logger"
	"github.com/codeconnects/backend/internal/metrics"
	"github.com/codeconnects/backend/internal/models"
	"github.com/codeconnects/backend/internal/notify"
	"github.com/codeconnects/backend/internal/session"
	"github.com/codeconnects/backend/internal/store"
	"go.uber.org/zap"
)

// MaxContentLength bounds a message body in runes
const MaxContentLength = 4000

// MessageView is a message with both participants resolved
type MessageView struct {
	ID        string      `json:"id"`
	Sender    feed.Author `json:"sender"`
	Receiver  feed.Author `json:"receiver"`
	Content   string      `json:"content"`
	Media     *string     `json:"media,omitempty"`
	Read      bool        `json:"read"`
	CreatedAt time.Time   `json:"created_at"`
}

// Conversation summarizes the thread between the viewer and one peer
type Conversation struct {
	Peer          feed.Author `json:"peer"`
	LatestMessage MessageView `json:"latest_message"`
	UnreadCount   int         `json:"unread_count"`
}

// Service is shared by every viewer; the viewer is passed per call
type Service struct {
	repo store.Repository
	sink notify.Sink
	now  func() time.Time
}

// NewService creates the messaging service. A nil sink discards notifications.
func NewService(repo store.Repository, sink notify.Sink) *Service {
	if sink == nil {
		sink = notify.Discard
	}
	return &Service{repo: repo, sink: sink, now: func() time.Time { return time.Now().UTC() }}
}

// Send stores a message from viewer to receiverID and notifies the receiver
func (s *Service) Send(ctx context.Context, viewer session.Identity, receiverID, content string, media *string) (view *MessageView, err error) {
	const op = apperrors.OpSendMessage
	defer func() { metrics.RecordMutation(string(op), err) }()

	if viewer.ID == "" {
		return nil, apperrors.NotAuthenticated(op)
	}
	content = strings.TrimSpace(content)
	switch {
	case receiverID == "":
		return nil, apperrors.ValidationError(op, "receiver_id", "receiver is required")
	case receiverID == viewer.ID:
		return nil, apperrors.ValidationError(op, "receiver_id", "cannot message yourself")
	case content == "":
		return nil, apperrors.ValidationError(op, "content", "message cannot be empty")
	case len([]rune(content)) > MaxContentLength:
		return nil, apperrors.ValidationError(op, "content", "message is too long")
	}

	msg := &models.Message{
		SenderID:   viewer.ID,
		ReceiverID: receiverID,
		Content:    content,
		Media:      media,
		CreatedAt:  s.now(),
	}
	if _, err := s.repo.InsertMessage(ctx, msg); err != nil {
		if store.IsNotFound(err) {
			return nil, apperrors.NotFound(op, "user", receiverID)
		}
		logger.Log.Warn("Failed to store message", logger.WithUserID(viewer.ID), zap.Error(err))
		return nil, apperrors.WriteFailed(op, receiverID, err)
	}

	profiles, err := s.repo.GetProfiles(ctx, []string{viewer.ID, receiverID})
	if err != nil {
		// The message is stored; fall back to bare ids for display
		profiles = map[string]models.Profile{}
	}
	view = newMessageView(*msg, profiles)

	s.sink.Notify(ctx, notify.Notification{
		Level:    notify.LevelInfo,
		Text:     "New message from @" + view.Sender.Username,
		UserID:   receiverID,
		Op:       string(op),
		TargetID: msg.ID,
		At:       s.now(),
	})
	return view, nil
}

// Conversation returns the messages between viewer and peerID, oldest first
func (s *Service) Conversation(ctx context.Context, viewer session.Identity, peerID string) ([]MessageView, error) {
	const op = apperrors.OpListMessages
	if viewer.ID == "" {
		return nil, apperrors.NotAuthenticated(op)
	}
	rows, err := s.repo.ListConversation(ctx, viewer.ID, peerID)
	if err != nil {
		return nil, apperrors.FetchFailed(op, peerID, err)
	}
	profiles, err := s.repo.GetProfiles(ctx, []string{viewer.ID, peerID})
	if err != nil {
		return nil, apperrors.FetchFailed(op, peerID, err)
	}
	if _, ok := profiles[peerID]; !ok && len(rows) == 0 {
		return nil, apperrors.NotFound(op, "user", peerID)
	}

	out := make([]MessageView, 0, len(rows))
	for _, m := range rows {
		out = append(out, *newMessageView(m, profiles))
	}
	return out, nil
}

// Conversations lists one entry per peer, most recent conversation first
func (s *Service) Conversations(ctx context.Context, viewer session.Identity) ([]Conversation, error) {
	const op = apperrors.OpListMessages
	if viewer.ID == "" {
		return nil, apperrors.NotAuthenticated(op)
	}
	rows, err := s.repo.ListMessagesFor(ctx, viewer.ID)
	if err != nil {
		return nil, apperrors.FetchFailed(op, viewer.ID, err)
	}

	// rows are newest first, so the first row seen per peer is the latest
	latest := make(map[string]models.Message)
	unread := make(map[string]int)
	ids := []string{viewer.ID}
	for _, m := range rows {
		peer := m.Peer(viewer.ID)
		if _, seen := latest[peer]; !seen {
			latest[peer] = m
			ids = append(ids, peer)
		}
		if m.ReceiverID == viewer.ID && !m.Read {
			unread[peer]++
		}
	}

	profiles, err := s.repo.GetProfiles(ctx, ids)
	if err != nil {
		return nil, apperrors.FetchFailed(op, viewer.ID, err)
	}

	out := make([]Conversation, 0, len(latest))
	for peer, m := range latest {
		var profile *models.Profile
		if p, ok := profiles[peer]; ok {
			profile = &p
		}
		out = append(out, Conversation{
			Peer:          feed.AuthorFromProfile(peer, profile),
			LatestMessage: *newMessageView(m, profiles),
			UnreadCount:   unread[peer],
		})
	}
	sort.Slice(out, func(i, j int) bool {
		a, b := out[i].LatestMessage, out[j].LatestMessage
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.After(b.CreatedAt)
		}
		return a.ID > b.ID
	})
	return out, nil
}

// MarkRead flags every unread message peerID sent the viewer as read
func (s *Service) MarkRead(ctx context.Context, viewer session.Identity, peerID string) (int64, error) {
	const op = apperrors.OpMarkRead
	if viewer.ID == "" {
		return 0, apperrors.NotAuthenticated(op)
	}
	n, err := s.repo.MarkConversationRead(ctx, viewer.ID, peerID)
	if err != nil {
		return 0, apperrors.WriteFailed(op, peerID, err)
	}
	return n, nil
}

func newMessageView(m models.Message, profiles map[string]models.Profile) *MessageView {
	author := func(id string) feed.Author {
		if p, ok := profiles[id]; ok {
			return feed.AuthorFromProfile(id, &p)
		}
		return feed.AuthorFromProfile(id, nil)
	}
	return &MessageView{
		ID:        m.ID,
		Sender:    author(m.SenderID),
		Receiver:  author(m.ReceiverID),
		Content:   m.Content,
		Media:     m.Media,
		Read:      m.Read,
		CreatedAt: m.CreatedAt,
	}
}
