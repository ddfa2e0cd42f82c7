package gormstore

import (
	"context"
	"strings"

	"github.com/codeconnects/backend/internal/models"
	"gorm.io/gorm"
)

func (s *Store) InsertMessage(ctx context.Context, msg *models.Message) (string, error) {
	var exists int64
	if err := s.db.WithContext(ctx).Model(&models.Profile{}).Where("id = ?", msg.ReceiverID).Count(&exists).Error; err != nil {
		return "", translate(err, "insert message")
	}
	if exists == 0 {
		return "", translate(gorm.ErrRecordNotFound, "message to "+msg.ReceiverID)
	}
	if err := s.db.WithContext(ctx).Create(msg).Error; err != nil {
		return "", translate(err, "insert message")
	}
	return msg.ID, nil
}

func (s *Store) ListConversation(ctx context.Context, a, b string) ([]models.Message, error) {
	var msgs []models.Message
	err := s.db.WithContext(ctx).
		Where("(sender_id = ? AND receiver_id = ?) OR (sender_id = ? AND receiver_id = ?)", a, b, b, a).
		Order("created_at ASC").Order("id ASC").
		Find(&msgs).Error
	if err != nil {
		return nil, translate(err, "list conversation "+b)
	}
	return msgs, nil
}

func (s *Store) ListMessagesFor(ctx context.Context, userID string) ([]models.Message, error) {
	var msgs []models.Message
	err := s.db.WithContext(ctx).
		Where("sender_id = ? OR receiver_id = ?", userID, userID).
		Order("created_at DESC").Order("id DESC").
		Find(&msgs).Error
	if err != nil {
		return nil, translate(err, "list messages "+userID)
	}
	return msgs, nil
}

func (s *Store) MarkConversationRead(ctx context.Context, receiverID, senderID string) (int64, error) {
	res := s.db.WithContext(ctx).Model(&models.Message{}).
		Where("receiver_id = ? AND sender_id = ? AND is_read = ?", receiverID, senderID, false).
		Update("is_read", true)
	if res.Error != nil {
		return 0, translate(res.Error, "mark read "+senderID)
	}
	return res.RowsAffected, nil
}

func (s *Store) SearchProfiles(ctx context.Context, query string, limit int) ([]models.Profile, error) {
	var profiles []models.Profile
	pattern := likePattern(query)
	q := s.db.WithContext(ctx).
		Where(`LOWER(username) LIKE ? ESCAPE '\' OR LOWER(bio) LIKE ? ESCAPE '\'`, pattern, pattern).
		Order("username ASC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Find(&profiles).Error; err != nil {
		return nil, translate(err, "search profiles")
	}
	return profiles, nil
}

func (s *Store) SearchPosts(ctx context.Context, query string, limit int) ([]models.Post, error) {
	var posts []models.Post
	pattern := likePattern(query)
	tagged := s.db.Table("post_tags").
		Select("post_tags.post_id").
		Joins("JOIN tags ON tags.id = post_tags.tag_id").
		Where(`tags.name LIKE ? ESCAPE '\'`, pattern)
	q := s.db.WithContext(ctx).
		Where(`LOWER(description) LIKE ? ESCAPE '\'`, pattern).
		Or("id IN (?)", tagged).
		Order("created_at DESC").Order("id DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Find(&posts).Error; err != nil {
		return nil, translate(err, "search posts")
	}
	return posts, nil
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// likePattern lower-cases query and wraps it for a substring LIKE
func likePattern(query string) string {
	return "%" + likeEscaper.Replace(strings.ToLower(query)) + "%"
}
