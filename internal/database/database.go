// Package database opens the GORM connection for the postgres and sqlite
// store drivers and keeps the schema current.
package database

import (
	"fmt"
	"time"

	"github.com/codeconnects/backend/internal/config"
	"github.com/codeconnects/backend/internal/logger"
	"github.com/codeconnects/backend/internal/models"
	"github.com/codeconnects/backend/internal/telemetry"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// Options selects the driver and connection string
type Options struct {
	Driver      string // config.DriverPostgres or config.DriverSQLite
	DSN         string
	Development bool
}

// OptionsFromConfig picks the DSN matching the configured driver
func OptionsFromConfig(cfg *config.Config) Options {
	opts := Options{Driver: cfg.StoreDriver, Development: cfg.IsDevelopment()}
	switch cfg.StoreDriver {
	case config.DriverSQLite:
		opts.DSN = cfg.SQLitePath
	default:
		opts.DSN = cfg.DatabaseURL
	}
	return opts
}

// Open connects, installs the tracing plugin and sizes the pool
func Open(opts Options) (*gorm.DB, error) {
	var dialector gorm.Dialector
	var system string
	switch opts.Driver {
	case config.DriverPostgres:
		dialector = postgres.Open(opts.DSN)
		system = "postgresql"
	case config.DriverSQLite:
		dialector = sqlite.Open(opts.DSN)
		system = "sqlite"
	default:
		return nil, fmt.Errorf("unsupported database driver %q", opts.Driver)
	}

	gormLogger := gormlogger.Default.LogMode(gormlogger.Warn)
	if opts.Development {
		gormLogger = gormlogger.Default.LogMode(gormlogger.Info)
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger:         gormLogger,
		TranslateError: true,
		NowFunc: func() time.Time {
			return time.Now().UTC()
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if err := db.Use(telemetry.GORMTracingPlugin(system)); err != nil {
		return nil, fmt.Errorf("failed to install tracing plugin: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}
	if opts.Driver == config.DriverSQLite {
		// sqlite serializes writers; one connection keeps :memory: databases shared
		sqlDB.SetMaxOpenConns(1)
	} else {
		sqlDB.SetMaxIdleConns(10)
		sqlDB.SetMaxOpenConns(100)
		sqlDB.SetConnMaxLifetime(time.Hour)
	}

	logger.Log.Info("Database connected", zap.String("driver", opts.Driver))
	return db, nil
}

// Migrate creates or updates every table and the feed indexes
func Migrate(db *gorm.DB) error {
	if db == nil {
		return fmt.Errorf("database not initialized")
	}

	if err := db.AutoMigrate(models.All()...); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	for _, stmt := range indexStatements {
		if err := db.Exec(stmt).Error; err != nil {
			return fmt.Errorf("failed to create index: %w", err)
		}
	}

	logger.Log.Info("Database migrations completed")
	return nil
}

// Feed and comment queries sort on these columns
var indexStatements = []string{
	"CREATE INDEX IF NOT EXISTS idx_posts_created_id ON posts (created_at DESC, id DESC)",
	"CREATE INDEX IF NOT EXISTS idx_posts_user_created ON posts (user_id, created_at DESC)",
	"CREATE INDEX IF NOT EXISTS idx_comments_post_created ON comments (post_id, created_at ASC)",
	"CREATE INDEX IF NOT EXISTS idx_post_tags_tag ON post_tags (tag_id)",
}

// Close closes the underlying connection pool
func Close(db *gorm.DB) error {
	if db == nil {
		return nil
	}
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// Health pings the database
func Health(db *gorm.DB) error {
	if db == nil {
		return fmt.Errorf("database not initialized")
	}
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Ping()
}
