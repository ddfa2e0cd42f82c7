package main

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/codeconnects/backend/internal/config"
	"github.com/codeconnects/backend/internal/kernel"
	"github.com/codeconnects/backend/internal/logger"
	"github.com/codeconnects/backend/internal/seed"
	"go.uber.org/zap"
)

func main() {
	cfg, err := config.Load(".env")
	if err != nil {
		panic(err)
	}
	if err := logger.Initialize(cfg.LogLevel, cfg.LogFile); err != nil {
		panic(err)
	}
	defer logger.Close()

	command := "dev"
	if len(os.Args) > 1 {
		command = os.Args[1]
	}

	opts := seed.DevOptions()
	switch command {
	case "dev", "verify":
	case "small":
		opts = seed.Options{Users: 5, Posts: 20, Comments: 30, MaxLikes: 4, FollowsPerUser: 2, Messages: 10}
	default:
		fmt.Println("Usage: seed [dev|small|verify] [random-seed|--json]")
		fmt.Println("  dev    - Seed the configured store with a realistic amount of data")
		fmt.Println("  small  - Seed a handful of profiles and posts")
		fmt.Println("  verify - Print counts and check relationships of seeded data")
		os.Exit(1)
	}

	randomSeed := time.Now().UnixNano()
	if len(os.Args) > 2 && command != "verify" {
		if randomSeed, err = strconv.ParseInt(os.Args[2], 10, 64); err != nil {
			logger.FatalWithFields("Random seed must be an integer", err)
		}
	}

	if cfg.StoreDriver == config.DriverMemory {
		logger.Log.Fatal("Seeding the memory store is pointless; set STORE_DRIVER to postgres or sqlite")
	}

	k, err := kernel.OpenStore(cfg)
	if err != nil {
		logger.FatalWithFields("Failed to connect to database", err)
	}
	ctx := context.Background()
	defer k.Cleanup(ctx)

	if command == "verify" {
		if err := verify(k.DB(), len(os.Args) > 2 && os.Args[2] == "--json"); err != nil {
			logger.FatalWithFields("Verification failed", err)
		}
		return
	}

	logger.Log.Info("Seeding database...", zap.String("driver", cfg.StoreDriver), zap.Int64("seed", randomSeed))
	summary, err := seed.NewSeeder(k.Repository(), randomSeed).Seed(ctx, opts)
	if err != nil {
		logger.FatalWithFields("Seeding failed", err)
	}

	logger.Log.Info("Database seeded successfully", zap.Stringer("summary", summary))
}
