package main

import (
	"encoding/json"
	"fmt"

	"github.com/codeconnects/backend/internal/models"
	"gorm.io/gorm"
)

// verify prints record counts, a few sample rows and relationship checks for
// a seeded database. With --json it also prints ids usable for API testing.
func verify(db *gorm.DB, asJSON bool) error {
	fmt.Println("🔍 Verifying seed data...")
	fmt.Println()

	counts := []struct {
		label string
		model interface{}
	}{
		{"Profiles", &models.Profile{}},
		{"Posts", &models.Post{}},
		{"Comments", &models.Comment{}},
		{"Likes", &models.Like{}},
		{"Tags", &models.Tag{}},
		{"Post tags", &models.PostTag{}},
		{"Follows", &models.Follow{}},
		{"Messages", &models.Message{}},
	}

	fmt.Println("📊 Record Counts:")
	for _, c := range counts {
		var n int64
		if err := db.Model(c.model).Count(&n).Error; err != nil {
			return fmt.Errorf("count %s: %w", c.label, err)
		}
		fmt.Printf("  %-10s %d\n", c.label+":", n)
	}
	fmt.Println()

	var profiles []models.Profile
	db.Order("created_at DESC").Limit(3).Find(&profiles)
	fmt.Println("  Sample Profiles:")
	for _, p := range profiles {
		fmt.Printf("    - @%s (%s)\n", p.Username, p.ID)
	}

	var posts []models.Post
	db.Order("created_at DESC").Limit(3).Find(&posts)
	fmt.Println("  Newest Posts:")
	for _, p := range posts {
		desc := p.Description
		if len(desc) > 50 {
			desc = desc[:50] + "..."
		}
		fmt.Printf("    - %s %s\n", p.CreatedAt.Format("2006-01-02"), desc)
	}

	type tagUsage struct {
		Name  string
		Posts int64
	}
	var top []tagUsage
	db.Table("tags").
		Select("tags.name AS name, COUNT(post_tags.post_id) AS posts").
		Joins("JOIN post_tags ON post_tags.tag_id = tags.id").
		Group("tags.name").
		Order("posts DESC").
		Limit(5).
		Scan(&top)
	fmt.Println("  Top Tags:")
	for _, t := range top {
		fmt.Printf("    - #%s (%d posts)\n", t.Name, t.Posts)
	}
	fmt.Println()

	fmt.Println("🔗 Relationship Verification:")
	orphans := []struct {
		label string
		query string
	}{
		{"posts without a profile", "SELECT COUNT(*) FROM posts WHERE user_id NOT IN (SELECT id FROM profiles)"},
		{"comments without a post", "SELECT COUNT(*) FROM comments WHERE post_id NOT IN (SELECT id FROM posts)"},
		{"likes without a post", "SELECT COUNT(*) FROM likes WHERE post_id NOT IN (SELECT id FROM posts)"},
		{"post tags without a tag", "SELECT COUNT(*) FROM post_tags WHERE tag_id NOT IN (SELECT id FROM tags)"},
	}
	failed := 0
	for _, o := range orphans {
		var n int64
		if err := db.Raw(o.query).Scan(&n).Error; err != nil {
			return fmt.Errorf("check %s: %w", o.label, err)
		}
		if n == 0 {
			fmt.Printf("  ✅ no %s\n", o.label)
			continue
		}
		failed++
		fmt.Printf("  ❌ %d %s\n", n, o.label)
	}
	fmt.Println()

	if asJSON && len(profiles) > 0 && len(posts) > 0 {
		sample := map[string]string{
			"user_id":  profiles[0].ID,
			"username": profiles[0].Username,
			"post_id":  posts[0].ID,
		}
		out, _ := json.MarshalIndent(sample, "", "  ")
		fmt.Println("📋 Sample IDs for API testing:")
		fmt.Println(string(out))
	}

	if failed > 0 {
		return fmt.Errorf("%d relationship checks failed", failed)
	}
	fmt.Println("✅ Seed data verification complete!")
	return nil
}
