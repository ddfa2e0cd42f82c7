package kernel

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/codeconnects/backend/internal/config"
	"github.com/codeconnects/backend/internal/logger"
	"github.com/codeconnects/backend/internal/session"
	"github.com/codeconnects/backend/internal/store/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateReportsMissingDependencies(t *testing.T) {
	err := New().Validate()
	require.Error(t, err)

	assert.ErrorIs(t, err, ErrMissingDependency)
	var missing *MissingDependencyError
	require.ErrorAs(t, err, &missing)
	assert.ElementsMatch(t, []string{"repository", "feed registry", "auth service"}, missing.Names)
	assert.Contains(t, err.Error(), "repository")
}

func TestCleanupRunsInReverseOrder(t *testing.T) {
	logger.UseNop()
	var order []int
	k := New().
		OnCleanup(func(context.Context) error { order = append(order, 1); return nil }).
		OnCleanup(func(context.Context) error { order = append(order, 2); return errors.New("boom") }).
		OnCleanup(func(context.Context) error { order = append(order, 3); return nil })

	err := k.Cleanup(context.Background())
	assert.EqualError(t, err, "boom")
	assert.Equal(t, []int{3, 2, 1}, order)

	// cleanup functions run once
	require.NoError(t, k.Cleanup(context.Background()))
	assert.Len(t, order, 3)
}

func TestSinkDefaultsToLog(t *testing.T) {
	assert.NotNil(t, New().Sink())
}

func TestBootstrapMemoryStore(t *testing.T) {
	logger.UseNop()
	cfg := &config.Config{
		StoreDriver:         config.DriverMemory,
		JWTSecret:           "secret",
		AssemblyConcurrency: 2,
	}

	k, err := Bootstrap(context.Background(), cfg)
	require.NoError(t, err)
	defer func() { require.NoError(t, k.Cleanup(context.Background())) }()

	assert.Nil(t, k.DB())
	assert.Nil(t, k.Redis())
	assert.IsType(t, &memory.Store{}, k.Repository())
	assert.NotNil(t, k.Hub())
	assert.NotNil(t, k.Auth())
	assert.NotNil(t, k.Messages())

	registry := k.Registry()
	require.NotNil(t, registry)
	assert.Same(t, registry.For(anonymous()), registry.For(anonymous()))
}

func TestBootstrapSweepsIdleSessions(t *testing.T) {
	logger.UseNop()
	cfg := &config.Config{
		StoreDriver:         config.DriverMemory,
		JWTSecret:           "secret",
		AssemblyConcurrency: 2,
		SessionIdleTimeout:  20 * time.Millisecond,
	}

	k, err := Bootstrap(context.Background(), cfg)
	require.NoError(t, err)
	defer func() { require.NoError(t, k.Cleanup(context.Background())) }()

	k.Registry().For(session.Identity{ID: "u1"})
	assert.Eventually(t, func() bool { return k.Registry().Len() == 0 }, time.Second, 5*time.Millisecond)
}

func TestOpenStoreSQLite(t *testing.T) {
	logger.UseNop()
	cfg := &config.Config{StoreDriver: config.DriverSQLite, SQLitePath: "file::memory:?cache=shared"}

	k, err := OpenStore(cfg)
	require.NoError(t, err)
	defer k.Cleanup(context.Background())

	assert.NotNil(t, k.DB())
	following, err := k.Repository().ListFollowing(context.Background(), "nobody")
	require.NoError(t, err)
	assert.Empty(t, following)
}

func anonymous() session.Identity { return session.Identity{} }
