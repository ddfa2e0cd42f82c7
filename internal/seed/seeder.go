// Package seed fills a store with fake profiles, posts, tags, likes, comments,
// follows and direct messages for local development.
package seed

import (
	"context"
	"fmt"
	"math/rand"
	"strings"
	"time"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/codeconnects/backend/internal/logger"
	"github.com/codeconnects/backend/internal/models"
	"github.com/codeconnects/backend/internal/store"
	"go.uber.org/zap"
)

// Options sizes a seeding run
type Options struct {
	Users          int
	Posts          int
	Comments       int
	MaxLikes       int // per post
	FollowsPerUser int
	Messages       int
}

// DevOptions returns the sizes used by SeedDev
func DevOptions() Options {
	return Options{
		Users:          40,
		Posts:          200,
		Comments:       400,
		MaxLikes:       15,
		FollowsPerUser: 8,
		Messages:       150,
	}
}

// Summary counts what a run created
type Summary struct {
	Profiles int
	Posts    int
	Tags     int
	Likes    int
	Comments int
	Follows  int
	Messages int
}

func (s Summary) String() string {
	return fmt.Sprintf("%d profiles, %d posts, %d tag links, %d likes, %d comments, %d follows, %d messages",
		s.Profiles, s.Posts, s.Tags, s.Likes, s.Comments, s.Follows, s.Messages)
}

// Seeder handles seeding through the repository, so it works for every store driver
type Seeder struct {
	repo store.Repository
	rng  *rand.Rand
	now  func() time.Time
}

// NewSeeder creates a seeder. The same seed produces the same shape of data.
func NewSeeder(repo store.Repository, seed int64) *Seeder {
	// Seed returns an error only for invalid sources
	_ = gofakeit.Seed(seed)
	return &Seeder{
		repo: repo,
		rng:  rand.New(rand.NewSource(seed)),
		now:  time.Now,
	}
}

var tagPool = []string{
	"go", "rust", "typescript", "python", "react", "postgres", "redis", "kubernetes",
	"docker", "api", "testing", "performance", "security", "cli", "webdev", "devops",
}

var commentTemplates = []string{
	"Nice, this is exactly what I needed",
	"Have you benchmarked this?",
	"Clean solution!",
	"What about the edge case with empty input?",
	"Bookmarking this",
	"Would love a follow-up post",
	"This saved me an afternoon",
	"LGTM",
}

var codeSnippets = []string{
	"func main() {\n\tfmt.Println(\"hello\")\n}",
	"SELECT id, created_at FROM posts ORDER BY created_at DESC LIMIT 20;",
	"const sum = (xs) => xs.reduce((a, b) => a + b, 0);",
	"fn main() {\n    println!(\"hello\");\n}",
	"kubectl rollout restart deployment/api",
}

// SeedDev seeds the store with DevOptions
func (s *Seeder) SeedDev(ctx context.Context) (*Summary, error) {
	return s.Seed(ctx, DevOptions())
}

// Seed creates opts.Users profiles and everything that hangs off them
func (s *Seeder) Seed(ctx context.Context, opts Options) (*Summary, error) {
	summary := &Summary{}

	logger.Log.Info("Creating profiles...")
	users, err := s.seedProfiles(ctx, opts.Users)
	if err != nil {
		return summary, fmt.Errorf("failed to seed profiles: %w", err)
	}
	summary.Profiles = len(users)
	if len(users) == 0 {
		return summary, nil
	}

	logger.Log.Info("Creating posts...")
	posts, tagLinks, err := s.seedPosts(ctx, users, opts.Posts)
	if err != nil {
		return summary, fmt.Errorf("failed to seed posts: %w", err)
	}
	summary.Posts = len(posts)
	summary.Tags = tagLinks

	logger.Log.Info("Creating likes...")
	if summary.Likes, err = s.seedLikes(ctx, users, posts, opts.MaxLikes); err != nil {
		return summary, fmt.Errorf("failed to seed likes: %w", err)
	}

	logger.Log.Info("Creating comments...")
	if summary.Comments, err = s.seedComments(ctx, users, posts, opts.Comments); err != nil {
		return summary, fmt.Errorf("failed to seed comments: %w", err)
	}

	logger.Log.Info("Creating follows...")
	if summary.Follows, err = s.seedFollows(ctx, users, opts.FollowsPerUser); err != nil {
		return summary, fmt.Errorf("failed to seed follows: %w", err)
	}

	logger.Log.Info("Creating messages...")
	if summary.Messages, err = s.seedMessages(ctx, users, opts.Messages); err != nil {
		return summary, fmt.Errorf("failed to seed messages: %w", err)
	}

	logger.Log.Info("Seeding complete", zap.String("summary", summary.String()))
	return summary, nil
}

func (s *Seeder) seedProfiles(ctx context.Context, count int) ([]models.Profile, error) {
	users := make([]models.Profile, 0, count)
	for i := 0; i < count; i++ {
		var profile *models.Profile
		// usernames collide now and then; try a few fresh ones before giving up
		for attempt := 0; attempt < 5; attempt++ {
			username := gofakeit.Username()
			avatar := fmt.Sprintf("https://api.dicebear.com/7.x/identicon/png?seed=%s", username)
			candidate := &models.Profile{
				Username:       username,
				ProfilePicture: &avatar,
				Bio:            gofakeit.HipsterSentence(),
			}
			_, err := s.repo.InsertProfile(ctx, candidate)
			if store.IsConstraintViolation(err) {
				continue
			}
			if err != nil {
				return users, err
			}
			profile = candidate
			break
		}
		if profile == nil {
			logger.Log.Warn("Skipping profile after repeated username collisions", zap.Int("index", i))
			continue
		}
		users = append(users, *profile)
	}
	logger.Log.Info("Created profiles", zap.Int("count", len(users)))
	return users, nil
}

func (s *Seeder) seedPosts(ctx context.Context, users []models.Profile, count int) ([]models.Post, int, error) {
	posts := make([]models.Post, 0, count)
	tagIDs := make(map[string]string)
	links := 0
	now := s.now()

	for i := 0; i < count; i++ {
		author := users[s.rng.Intn(len(users))]
		createdAt := gofakeit.DateRange(now.AddDate(0, 0, -30), now)

		post := models.Post{
			UserID:      author.ID,
			Description: gofakeit.HipsterSentence(),
			CreatedAt:   createdAt,
			UpdatedAt:   createdAt,
		}
		if s.rng.Float32() < 0.6 {
			post.Content = strings.Repeat(gofakeit.HipsterSentence()+" ", 1+s.rng.Intn(3))
		}
		if s.rng.Float32() < 0.4 {
			snippet := codeSnippets[s.rng.Intn(len(codeSnippets))]
			post.Code = &snippet
		}

		if _, err := s.repo.InsertPost(ctx, &post); err != nil {
			return posts, links, err
		}
		posts = append(posts, post)

		for _, name := range s.pick(tagPool, s.rng.Intn(4)) {
			tagID, err := s.tagID(ctx, tagIDs, name)
			if err != nil {
				return posts, links, err
			}
			if err := s.repo.LinkTag(ctx, post.ID, tagID); err != nil && !store.IsConstraintViolation(err) {
				return posts, links, err
			}
			links++
		}
	}
	logger.Log.Info("Created posts", zap.Int("count", len(posts)), zap.Int("tag_links", links))
	return posts, links, nil
}

// tagID finds or creates the tag, remembering ids already resolved in this run
func (s *Seeder) tagID(ctx context.Context, known map[string]string, name string) (string, error) {
	if id, ok := known[name]; ok {
		return id, nil
	}
	if tag, err := s.repo.FindTagByName(ctx, name); err == nil {
		known[name] = tag.ID
		return tag.ID, nil
	} else if !store.IsNotFound(err) {
		return "", err
	}
	id, err := s.repo.InsertTag(ctx, name)
	if err != nil {
		return "", err
	}
	known[name] = id
	return id, nil
}

func (s *Seeder) seedLikes(ctx context.Context, users []models.Profile, posts []models.Post, maxLikes int) (int, error) {
	if maxLikes <= 0 {
		return 0, nil
	}
	total := 0
	for _, post := range posts {
		for _, user := range s.pickProfiles(users, s.rng.Intn(maxLikes+1)) {
			err := s.repo.InsertLike(ctx, post.ID, user.ID)
			if store.IsConstraintViolation(err) {
				continue
			}
			if err != nil {
				return total, err
			}
			total++
		}
	}
	logger.Log.Info("Created likes", zap.Int("count", total))
	return total, nil
}

func (s *Seeder) seedComments(ctx context.Context, users []models.Profile, posts []models.Post, count int) (int, error) {
	if len(posts) == 0 {
		return 0, nil
	}
	now := s.now()
	for i := 0; i < count; i++ {
		user := users[s.rng.Intn(len(users))]
		post := posts[s.rng.Intn(len(posts))]

		content := gofakeit.HipsterSentence()
		if s.rng.Float32() < 0.5 {
			content = commentTemplates[s.rng.Intn(len(commentTemplates))]
		}

		comment := &models.Comment{
			PostID:    post.ID,
			UserID:    user.ID,
			Content:   content,
			CreatedAt: gofakeit.DateRange(post.CreatedAt, now),
		}
		if _, err := s.repo.InsertComment(ctx, comment); err != nil {
			return i, fmt.Errorf("failed to create comment: %w", err)
		}
	}
	logger.Log.Info("Created comments", zap.Int("count", count))
	return count, nil
}

func (s *Seeder) seedFollows(ctx context.Context, users []models.Profile, perUser int) (int, error) {
	if perUser <= 0 || len(users) < 2 {
		return 0, nil
	}
	total := 0
	for _, follower := range users {
		for _, target := range s.pickProfiles(users, perUser) {
			if target.ID == follower.ID {
				continue
			}
			err := s.repo.Follow(ctx, follower.ID, target.ID)
			if store.IsConstraintViolation(err) {
				continue
			}
			if err != nil {
				return total, err
			}
			total++
		}
	}
	logger.Log.Info("Created follows", zap.Int("count", total))
	return total, nil
}

var messageTemplates = []string{
	"Hey, saw your last post",
	"Are you going to the meetup?",
	"Can you review my PR when you get a chance?",
	"Thanks for the tip!",
	"Want to pair on this tomorrow?",
}

// seedMessages sends count messages between random pairs of distinct users.
// Older messages are marked read.
func (s *Seeder) seedMessages(ctx context.Context, users []models.Profile, count int) (int, error) {
	if count <= 0 || len(users) < 2 {
		return 0, nil
	}
	now := s.now()
	for i := 0; i < count; i++ {
		pair := s.pickProfiles(users, 2)

		content := gofakeit.HipsterSentence()
		if s.rng.Float32() < 0.5 {
			content = messageTemplates[s.rng.Intn(len(messageTemplates))]
		}
		createdAt := gofakeit.DateRange(now.AddDate(0, 0, -14), now)

		msg := &models.Message{
			SenderID:   pair[0].ID,
			ReceiverID: pair[1].ID,
			Content:    content,
			Read:       now.Sub(createdAt) > 3*24*time.Hour,
			CreatedAt:  createdAt,
		}
		if _, err := s.repo.InsertMessage(ctx, msg); err != nil {
			return i, fmt.Errorf("failed to create message: %w", err)
		}
	}
	logger.Log.Info("Created messages", zap.Int("count", count))
	return count, nil
}

// pick returns n distinct entries of pool in random order
func (s *Seeder) pick(pool []string, n int) []string {
	if n > len(pool) {
		n = len(pool)
	}
	out := make([]string, 0, n)
	for _, i := range s.rng.Perm(len(pool))[:n] {
		out = append(out, pool[i])
	}
	return out
}

func (s *Seeder) pickProfiles(pool []models.Profile, n int) []models.Profile {
	if n > len(pool) {
		n = len(pool)
	}
	out := make([]models.Profile, 0, n)
	for _, i := range s.rng.Perm(len(pool))[:n] {
		out = append(out, pool[i])
	}
	return out
}
