// Package gormstore implements store.Repository on top of GORM. It runs
// against postgres in production and sqlite in tests.
package gormstore

import (
	"context"
	"sort"

	"github.com/codeconnects/backend/internal/models"
	"github.com/codeconnects/backend/internal/store"
	"gorm.io/gorm"
)

// Store is the GORM-backed repository
type Store struct {
	db *gorm.DB
}

var _ store.Repository = (*Store)(nil)

// New creates a repository over an open connection
func New(db *gorm.DB) *Store {
	return &Store{db: db}
}

func (s *Store) ListPosts(ctx context.Context, filter store.PostFilter) ([]models.Post, error) {
	var posts []models.Post
	q := s.db.WithContext(ctx).Model(&models.Post{})
	if filter.UserID != "" {
		q = q.Where("user_id = ?", filter.UserID)
	}
	if filter.UserIDs != nil {
		if len(filter.UserIDs) == 0 {
			return []models.Post{}, nil
		}
		q = q.Where("user_id IN ?", filter.UserIDs)
	}
	if filter.Limit > 0 {
		q = q.Limit(filter.Limit)
	}
	err := q.Order("created_at DESC").Order("id DESC").Find(&posts).Error
	if err != nil {
		return nil, translate(err, "list posts")
	}
	return posts, nil
}

func (s *Store) GetPost(ctx context.Context, postID string) (*models.Post, error) {
	var post models.Post
	err := s.db.WithContext(ctx).Where("id = ?", postID).First(&post).Error
	if err != nil {
		return nil, translate(err, "get post "+postID)
	}
	return &post, nil
}

func (s *Store) InsertPost(ctx context.Context, post *models.Post) (string, error) {
	if err := s.db.WithContext(ctx).Create(post).Error; err != nil {
		return "", translate(err, "insert post")
	}
	return post.ID, nil
}

// DeletePost removes the post and its dependent rows in one transaction
func (s *Store) DeletePost(ctx context.Context, postID string) (int64, error) {
	var affected int64
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("post_id = ?", postID).Delete(&models.Like{}).Error; err != nil {
			return err
		}
		if err := tx.Where("post_id = ?", postID).Delete(&models.Comment{}).Error; err != nil {
			return err
		}
		if err := tx.Where("post_id = ?", postID).Delete(&models.PostTag{}).Error; err != nil {
			return err
		}
		res := tx.Where("id = ?", postID).Delete(&models.Post{})
		if res.Error != nil {
			return res.Error
		}
		affected = res.RowsAffected
		return nil
	})
	if err != nil {
		return 0, translate(err, "delete post "+postID)
	}
	return affected, nil
}

func (s *Store) ListLikeUserIDs(ctx context.Context, postID string) ([]string, error) {
	var ids []string
	err := s.db.WithContext(ctx).Model(&models.Like{}).
		Where("post_id = ?", postID).
		Order("created_at ASC").Order("user_id ASC").
		Pluck("user_id", &ids).Error
	if err != nil {
		return nil, translate(err, "list likes "+postID)
	}
	return ids, nil
}

func (s *Store) InsertLike(ctx context.Context, postID, userID string) error {
	if err := s.requirePost(ctx, postID, "insert like"); err != nil {
		return err
	}
	like := &models.Like{PostID: postID, UserID: userID}
	if err := s.db.WithContext(ctx).Create(like).Error; err != nil {
		return translate(err, "insert like "+postID)
	}
	return nil
}

func (s *Store) DeleteLike(ctx context.Context, postID, userID string) (int64, error) {
	res := s.db.WithContext(ctx).
		Where("post_id = ? AND user_id = ?", postID, userID).
		Delete(&models.Like{})
	if res.Error != nil {
		return 0, translate(res.Error, "delete like "+postID)
	}
	return res.RowsAffected, nil
}

func (s *Store) CountComments(ctx context.Context, postID string) (int64, error) {
	var n int64
	err := s.db.WithContext(ctx).Model(&models.Comment{}).Where("post_id = ?", postID).Count(&n).Error
	if err != nil {
		return 0, translate(err, "count comments "+postID)
	}
	return n, nil
}

func (s *Store) ListComments(ctx context.Context, postID string) ([]models.Comment, error) {
	var comments []models.Comment
	err := s.db.WithContext(ctx).
		Where("post_id = ?", postID).
		Order("created_at ASC").Order("id ASC").
		Find(&comments).Error
	if err != nil {
		return nil, translate(err, "list comments "+postID)
	}
	return comments, nil
}

func (s *Store) InsertComment(ctx context.Context, comment *models.Comment) (string, error) {
	if err := s.requirePost(ctx, comment.PostID, "insert comment"); err != nil {
		return "", err
	}
	if err := s.db.WithContext(ctx).Create(comment).Error; err != nil {
		return "", translate(err, "insert comment")
	}
	return comment.ID, nil
}

func (s *Store) ListTagNames(ctx context.Context, postID string) ([]string, error) {
	var names []string
	err := s.db.WithContext(ctx).Table("tags").
		Select("tags.name").
		Joins("JOIN post_tags ON post_tags.tag_id = tags.id").
		Where("post_tags.post_id = ?", postID).
		Order("tags.name ASC").
		Pluck("tags.name", &names).Error
	if err != nil {
		return nil, translate(err, "list tags "+postID)
	}
	return names, nil
}

func (s *Store) FindTagByName(ctx context.Context, name string) (*models.Tag, error) {
	var tag models.Tag
	if err := s.db.WithContext(ctx).Where("name = ?", name).First(&tag).Error; err != nil {
		return nil, translate(err, "find tag "+name)
	}
	return &tag, nil
}

func (s *Store) InsertTag(ctx context.Context, name string) (string, error) {
	tag := &models.Tag{Name: name}
	if err := s.db.WithContext(ctx).Create(tag).Error; err != nil {
		return "", translate(err, "insert tag "+name)
	}
	return tag.ID, nil
}

func (s *Store) LinkTag(ctx context.Context, postID, tagID string) error {
	link := &models.PostTag{PostID: postID, TagID: tagID}
	if err := s.db.WithContext(ctx).Create(link).Error; err != nil {
		return translate(err, "link tag "+tagID)
	}
	return nil
}

func (s *Store) GetProfile(ctx context.Context, userID string) (*models.Profile, error) {
	var profile models.Profile
	if err := s.db.WithContext(ctx).Where("id = ?", userID).First(&profile).Error; err != nil {
		return nil, translate(err, "get profile "+userID)
	}
	return &profile, nil
}

func (s *Store) GetProfiles(ctx context.Context, userIDs []string) (map[string]models.Profile, error) {
	out := make(map[string]models.Profile, len(userIDs))
	if len(userIDs) == 0 {
		return out, nil
	}
	var profiles []models.Profile
	if err := s.db.WithContext(ctx).Where("id IN ?", userIDs).Find(&profiles).Error; err != nil {
		return nil, translate(err, "get profiles")
	}
	for _, p := range profiles {
		out[p.ID] = p
	}
	return out, nil
}

func (s *Store) InsertProfile(ctx context.Context, profile *models.Profile) (string, error) {
	if err := s.db.WithContext(ctx).Create(profile).Error; err != nil {
		return "", translate(err, "insert profile "+profile.Username)
	}
	return profile.ID, nil
}

func (s *Store) ListFollowing(ctx context.Context, followerID string) ([]string, error) {
	var ids []string
	err := s.db.WithContext(ctx).Model(&models.Follow{}).
		Where("follower_id = ?", followerID).
		Pluck("following_id", &ids).Error
	if err != nil {
		return nil, translate(err, "list following "+followerID)
	}
	sort.Strings(ids)
	return ids, nil
}

func (s *Store) Follow(ctx context.Context, followerID, followingID string) error {
	follow := &models.Follow{FollowerID: followerID, FollowingID: followingID}
	if err := s.db.WithContext(ctx).Create(follow).Error; err != nil {
		return translate(err, "follow "+followingID)
	}
	return nil
}

func (s *Store) Unfollow(ctx context.Context, followerID, followingID string) (int64, error) {
	res := s.db.WithContext(ctx).
		Where("follower_id = ? AND following_id = ?", followerID, followingID).
		Delete(&models.Follow{})
	if res.Error != nil {
		return 0, translate(res.Error, "unfollow "+followingID)
	}
	return res.RowsAffected, nil
}

// requirePost fails with store.ErrNotFound when no post row has postID. Sqlite
// does not enforce the post foreign keys, so rows are checked before writing.
func (s *Store) requirePost(ctx context.Context, postID, what string) error {
	var exists int64
	if err := s.db.WithContext(ctx).Model(&models.Post{}).Where("id = ?", postID).Count(&exists).Error; err != nil {
		return translate(err, what)
	}
	if exists == 0 {
		return translate(gorm.ErrRecordNotFound, what+" on "+postID)
	}
	return nil
}
