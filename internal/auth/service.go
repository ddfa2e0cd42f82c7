package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/codeconnects/backend/internal/logger"
	"github.com/codeconnects/backend/internal/models"
	"github.com/codeconnects/backend/internal/session"
	"github.com/codeconnects/backend/internal/store"
	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"
)

var (
	ErrUserNotFound   = errors.New("user not found")
	ErrUsernameExists = errors.New("username already taken")
	ErrInvalidToken   = errors.New("invalid token")
	ErrInvalidInput   = errors.New("invalid input")
)

// DefaultTokenTTL is how long issued tokens stay valid
const DefaultTokenTTL = 24 * time.Hour

// Service issues and validates the bearer tokens that identify a viewer
type Service struct {
	jwtSecret []byte
	repo      store.Repository
	ttl       time.Duration
	now       func() time.Time
}

// NewService creates a new authentication service
func NewService(jwtSecret []byte, repo store.Repository) *Service {
	return &Service{
		jwtSecret: jwtSecret,
		repo:      repo,
		ttl:       DefaultTokenTTL,
		now:       time.Now,
	}
}

// AuthResponse represents authentication response
type AuthResponse struct {
	Token     string           `json:"token"`
	User      session.Identity `json:"user"`
	ExpiresAt time.Time        `json:"expires_at"`
}

// RegisterRequest represents a profile registration request
type RegisterRequest struct {
	Username  string `json:"username" binding:"required,min=3,max=30"`
	AvatarURL string `json:"avatar_url"`
}

// TokenRequest asks for a token for an existing profile
type TokenRequest struct {
	UserID string `json:"user_id" binding:"required"`
}

// Register creates a profile and signs a token for it
func (s *Service) Register(ctx context.Context, req RegisterRequest) (*AuthResponse, error) {
	username := strings.TrimSpace(req.Username)
	if username == "" {
		return nil, fmt.Errorf("%w: username is required", ErrInvalidInput)
	}

	profile := &models.Profile{Username: username}
	if req.AvatarURL != "" {
		avatar := req.AvatarURL
		profile.ProfilePicture = &avatar
	}
	if _, err := s.repo.InsertProfile(ctx, profile); err != nil {
		if store.IsConstraintViolation(err) {
			return nil, ErrUsernameExists
		}
		return nil, fmt.Errorf("database error: %w", err)
	}

	logger.Log.Info("Profile registered", logger.WithUserID(profile.ID), zap.String("username", username))
	return s.GenerateToken(identityFromProfile(profile))
}

// IssueToken signs a token for an existing profile
func (s *Service) IssueToken(ctx context.Context, userID string) (*AuthResponse, error) {
	profile, err := s.repo.GetProfile(ctx, userID)
	if err != nil {
		if store.IsNotFound(err) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("database error: %w", err)
	}
	return s.GenerateToken(identityFromProfile(profile))
}

// GenerateToken creates an HS256 token and auth response for id
func (s *Service) GenerateToken(id session.Identity) (*AuthResponse, error) {
	now := s.now()
	expiresAt := now.Add(s.ttl)

	claims := jwt.MapClaims{
		"user_id":  id.ID,
		"username": id.Username,
		"exp":      expiresAt.Unix(),
		"iat":      now.Unix(),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenString, err := token.SignedString(s.jwtSecret)
	if err != nil {
		return nil, fmt.Errorf("failed to sign token: %w", err)
	}

	return &AuthResponse{
		Token:     tokenString,
		User:      id,
		ExpiresAt: expiresAt,
	}, nil
}

// ValidateToken validates a JWT token and returns the viewer it names, with
// username and avatar refreshed from profiles.
func (s *Service) ValidateToken(ctx context.Context, tokenString string) (*session.Identity, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return s.jwtSecret, nil
	}, jwt.WithTimeFunc(s.now))

	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok || !token.Valid {
		return nil, fmt.Errorf("%w: invalid claims", ErrInvalidToken)
	}

	userID, ok := claims["user_id"].(string)
	if !ok || userID == "" {
		return nil, fmt.Errorf("%w: invalid user_id in token", ErrInvalidToken)
	}

	// Fetch fresh profile data
	profile, err := s.repo.GetProfile(ctx, userID)
	if err != nil {
		if store.IsNotFound(err) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("database error: %w", err)
	}

	id := identityFromProfile(profile)
	return &id, nil
}

func identityFromProfile(p *models.Profile) session.Identity {
	id := session.Identity{ID: p.ID, Username: p.Username}
	if p.ProfilePicture != nil {
		id.AvatarURL = *p.ProfilePicture
	}
	return id
}
