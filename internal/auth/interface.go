package auth

import (
	"context"

	"github.com/codeconnects/backend/internal/session"
)

// AuthServiceInterface defines the contract for authentication operations.
// This enables mocking for handler and middleware tests.
type AuthServiceInterface interface {
	Register(ctx context.Context, req RegisterRequest) (*AuthResponse, error)
	IssueToken(ctx context.Context, userID string) (*AuthResponse, error)

	// Token operations
	GenerateToken(id session.Identity) (*AuthResponse, error)
	ValidateToken(ctx context.Context, tokenString string) (*session.Identity, error)
}

// Ensure Service implements AuthServiceInterface
var _ AuthServiceInterface = (*Service)(nil)
