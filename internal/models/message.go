package models

import (
	"time"

	"gorm.io/gorm"
)

// Message is a direct message between two profiles. Only Read ever changes
// after the row is created.
type Message struct {
	ID         string    `gorm:"primaryKey;size:36" json:"id"`
	SenderID   string    `gorm:"size:36;not null;index:idx_messages_pair,priority:1" json:"sender_id"`
	ReceiverID string    `gorm:"size:36;not null;index:idx_messages_pair,priority:2;index" json:"receiver_id"`
	Content    string    `gorm:"type:text;not null" json:"content"`
	Media      *string   `gorm:"type:text" json:"media,omitempty"`
	Read       bool      `gorm:"column:is_read;not null;default:false" json:"read"`
	CreatedAt  time.Time `gorm:"not null;index" json:"created_at"`
}

func (m *Message) BeforeCreate(tx *gorm.DB) error {
	if m.ID == "" {
		m.ID = NewID()
	}
	return nil
}

// Involves reports whether userID sent or received the message
func (m Message) Involves(userID string) bool {
	return m.SenderID == userID || m.ReceiverID == userID
}

// Peer returns the other participant from userID's point of view
func (m Message) Peer(userID string) string {
	if m.SenderID == userID {
		return m.ReceiverID
	}
	return m.SenderID
}
