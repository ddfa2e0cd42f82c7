package auth

import (
	"context"
	"sync"
	"time"

	"github.com/codeconnects/backend/internal/session"
	"github.com/google/uuid"
)

// MockAuthService is an in-memory AuthServiceInterface for handler and
// middleware tests. Tokens are opaque strings mapped to identities.
type MockAuthService struct {
	mu     sync.Mutex
	tokens map[string]session.Identity
	calls  map[string]int

	// Err, when set, is returned by every method
	Err error
}

var _ AuthServiceInterface = (*MockAuthService)(nil)

func NewMockAuthService() *MockAuthService {
	return &MockAuthService{
		tokens: make(map[string]session.Identity),
		calls:  make(map[string]int),
	}
}

// AddToken makes token resolve to id
func (m *MockAuthService) AddToken(token string, id session.Identity) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tokens[token] = id
}

// CallCount reports how often method was called
func (m *MockAuthService) CallCount(method string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls[method]
}

func (m *MockAuthService) Register(_ context.Context, req RegisterRequest) (*AuthResponse, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls["Register"]++
	if m.Err != nil {
		return nil, m.Err
	}
	for _, id := range m.tokens {
		if id.Username == req.Username {
			return nil, ErrUsernameExists
		}
	}
	return m.issue(session.Identity{ID: uuid.NewString(), Username: req.Username, AvatarURL: req.AvatarURL}), nil
}

func (m *MockAuthService) IssueToken(_ context.Context, userID string) (*AuthResponse, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls["IssueToken"]++
	if m.Err != nil {
		return nil, m.Err
	}
	for _, id := range m.tokens {
		if id.ID == userID {
			return m.issue(id), nil
		}
	}
	return nil, ErrUserNotFound
}

func (m *MockAuthService) GenerateToken(id session.Identity) (*AuthResponse, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls["GenerateToken"]++
	if m.Err != nil {
		return nil, m.Err
	}
	return m.issue(id), nil
}

func (m *MockAuthService) ValidateToken(_ context.Context, token string) (*session.Identity, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls["ValidateToken"]++
	if m.Err != nil {
		return nil, m.Err
	}
	id, ok := m.tokens[token]
	if !ok {
		return nil, ErrInvalidToken
	}
	return &id, nil
}

// issue stores a fresh token for id; mu must be held
func (m *MockAuthService) issue(id session.Identity) *AuthResponse {
	token := "mock_" + uuid.NewString()
	m.tokens[token] = id
	return &AuthResponse{Token: token, User: id, ExpiresAt: time.Now().Add(DefaultTokenTTL)}
}
