package main

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"time"

	"github.com/codeconnects/backend/internal/config"
	"github.com/codeconnects/backend/internal/database"
	"github.com/codeconnects/backend/internal/logger"
	_ "github.com/lib/pq"
	"go.uber.org/zap"
)

// constraintStatements add the foreign keys GORM's AutoMigrate leaves out.
// Deleting a post cascades to its likes, comments and tag links.
var constraintStatements = []struct {
	name string
	ddl  string
}{
	{"fk_likes_post", "ALTER TABLE likes ADD CONSTRAINT fk_likes_post FOREIGN KEY (post_id) REFERENCES posts(id) ON DELETE CASCADE"},
	{"fk_comments_post", "ALTER TABLE comments ADD CONSTRAINT fk_comments_post FOREIGN KEY (post_id) REFERENCES posts(id) ON DELETE CASCADE"},
	{"fk_post_tags_post", "ALTER TABLE post_tags ADD CONSTRAINT fk_post_tags_post FOREIGN KEY (post_id) REFERENCES posts(id) ON DELETE CASCADE"},
	{"fk_post_tags_tag", "ALTER TABLE post_tags ADD CONSTRAINT fk_post_tags_tag FOREIGN KEY (tag_id) REFERENCES tags(id) ON DELETE CASCADE"},
	{"chk_posts_description", "ALTER TABLE posts ADD CONSTRAINT chk_posts_description CHECK (length(trim(description)) > 0)"},
	{"chk_comments_content", "ALTER TABLE comments ADD CONSTRAINT chk_comments_content CHECK (length(trim(content)) > 0)"},
	{"chk_follows_self", "ALTER TABLE follows ADD CONSTRAINT chk_follows_self CHECK (follower_id <> following_id)"},
	{"chk_messages_self", "ALTER TABLE messages ADD CONSTRAINT chk_messages_self CHECK (sender_id <> receiver_id)"},
	{"chk_messages_content", "ALTER TABLE messages ADD CONSTRAINT chk_messages_content CHECK (length(trim(content)) > 0)"},
}

func main() {
	cfg, err := config.Load(".env")
	if err != nil {
		panic(err)
	}
	if err := logger.Initialize(cfg.LogLevel, cfg.LogFile); err != nil {
		panic(err)
	}
	defer logger.Close()

	command := "up"
	if len(os.Args) > 1 {
		command = os.Args[1]
	}

	switch command {
	case "up":
		runMigrationsUp(cfg)
	case "constraints":
		applyConstraints(cfg)
	case "status":
		showStatus(cfg)
	default:
		fmt.Println("Usage: migrate [up|constraints|status]")
		fmt.Println("  up          - Create or update tables and indexes, then add postgres constraints")
		fmt.Println("  constraints - Add postgres foreign keys and checks only")
		fmt.Println("  status      - List postgres constraints already present")
		os.Exit(1)
	}
}

func runMigrationsUp(cfg *config.Config) {
	if cfg.StoreDriver == config.DriverMemory {
		logger.Log.Fatal("Nothing to migrate for the memory store")
	}

	logger.Log.Info("Connecting to database...", zap.String("driver", cfg.StoreDriver))
	db, err := database.Open(database.OptionsFromConfig(cfg))
	if err != nil {
		logger.FatalWithFields("Failed to connect to database", err)
	}
	defer database.Close(db)

	if err := database.Migrate(db); err != nil {
		logger.FatalWithFields("Migration failed", err)
	}

	if cfg.StoreDriver == config.DriverPostgres {
		applyConstraints(cfg)
	}
	logger.Log.Info("All migrations completed successfully")
}

func openPostgres(cfg *config.Config) *sql.DB {
	if cfg.StoreDriver != config.DriverPostgres {
		logger.Log.Fatal("Constraints are only managed for postgres", zap.String("driver", cfg.StoreDriver))
	}
	db, err := sql.Open("postgres", cfg.DatabaseURL)
	if err != nil {
		logger.FatalWithFields("Failed to open postgres", err)
	}
	return db
}

func applyConstraints(cfg *config.Config) {
	db := openPostgres(cfg)
	defer db.Close()

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	existing, err := constraintNames(ctx, db)
	if err != nil {
		logger.FatalWithFields("Failed to read constraints", err)
	}

	added := 0
	for _, c := range constraintStatements {
		if existing[c.name] {
			continue
		}
		if _, err := db.ExecContext(ctx, c.ddl); err != nil {
			logger.Log.Fatal("Failed to add constraint", zap.String("constraint", c.name), zap.Error(err))
		}
		added++
	}
	logger.Log.Info("Constraints applied", zap.Int("added", added), zap.Int("already_present", len(constraintStatements)-added))
}

func showStatus(cfg *config.Config) {
	db := openPostgres(cfg)
	defer db.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	existing, err := constraintNames(ctx, db)
	if err != nil {
		logger.FatalWithFields("Failed to read constraints", err)
	}
	for _, c := range constraintStatements {
		state := "missing"
		if existing[c.name] {
			state = "present"
		}
		fmt.Printf("%-24s %s\n", c.name, state)
	}
}

func constraintNames(ctx context.Context, db *sql.DB) (map[string]bool, error) {
	rows, err := db.QueryContext(ctx,
		"SELECT constraint_name FROM information_schema.table_constraints WHERE table_schema = current_schema()")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	names := make(map[string]bool)
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		names[name] = true
	}
	return names, rows.Err()
}
