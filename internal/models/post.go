package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Post is a row of the posts relation
type Post struct {
	ID          string    `gorm:"primaryKey;size:36" json:"id"`
	UserID      string    `gorm:"size:36;not null;index" json:"user_id"`
	Description string    `gorm:"type:text;not null" json:"description"`
	Content     string    `gorm:"type:text" json:"content"`
	Code        *string   `gorm:"type:text" json:"code,omitempty"`
	Media       *string   `gorm:"type:text" json:"media,omitempty"`
	CreatedAt   time.Time `gorm:"not null;index" json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Comment is a row of the comments relation. Comments are never edited.
type Comment struct {
	ID        string    `gorm:"primaryKey;size:36" json:"id"`
	PostID    string    `gorm:"size:36;not null;index" json:"post_id"`
	UserID    string    `gorm:"size:36;not null;index" json:"user_id"`
	Content   string    `gorm:"type:text;not null" json:"content"`
	CreatedAt time.Time `gorm:"not null" json:"created_at"`
}

// Like is a (post, user) pair; the composite key keeps each pair unique.
type Like struct {
	PostID    string    `gorm:"primaryKey;size:36" json:"post_id"`
	UserID    string    `gorm:"primaryKey;size:36;index" json:"user_id"`
	CreatedAt time.Time `json:"created_at"`
}

// Tag names are stored lower-cased and are globally unique
type Tag struct {
	ID        string    `gorm:"primaryKey;size:36" json:"id"`
	Name      string    `gorm:"size:64;not null;uniqueIndex" json:"name"`
	CreatedAt time.Time `json:"created_at"`
}

// PostTag links posts to tags (many-to-many)
type PostTag struct {
	PostID string `gorm:"primaryKey;size:36" json:"post_id"`
	TagID  string `gorm:"primaryKey;size:36;index" json:"tag_id"`
}

// Profile is the public identity of a user
type Profile struct {
	ID             string    `gorm:"primaryKey;size:36" json:"id"`
	Username       string    `gorm:"size:64;not null;uniqueIndex" json:"username"`
	ProfilePicture *string   `gorm:"type:text" json:"profile_picture,omitempty"`
	Bio            string    `gorm:"type:text" json:"bio"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// Follow records that FollowerID follows FollowingID
type Follow struct {
	FollowerID  string    `gorm:"primaryKey;size:36" json:"follower_id"`
	FollowingID string    `gorm:"primaryKey;size:36;index" json:"following_id"`
	CreatedAt   time.Time `json:"created_at"`
}

// BeforeCreate hooks for GORM
func (p *Post) BeforeCreate(tx *gorm.DB) error {
	if p.ID == "" {
		p.ID = NewID()
	}
	return nil
}

func (c *Comment) BeforeCreate(tx *gorm.DB) error {
	if c.ID == "" {
		c.ID = NewID()
	}
	return nil
}

func (t *Tag) BeforeCreate(tx *gorm.DB) error {
	if t.ID == "" {
		t.ID = NewID()
	}
	return nil
}

func (p *Profile) BeforeCreate(tx *gorm.DB) error {
	if p.ID == "" {
		p.ID = NewID()
	}
	return nil
}

// NewID returns a fresh random row id
func NewID() string {
	return uuid.New().String()
}

// All lists every model for auto-migration
func All() []interface{} {
	return []interface{}{
		&Profile{},
		&Post{},
		&Comment{},
		&Like{},
		&Tag{},
		&PostTag{},
		&Follow{},
		&Message{},
	}
}
