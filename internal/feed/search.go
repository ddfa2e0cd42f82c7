package feed

import (
	"context"
	"strings"
	"time"

	apperrors "github.com/codeconnects/backend/internal/errors"
	"github.com/codeconnects/backend/internal/metrics"
)

const (
	// MinSearchLength is the shortest query accepted
	MinSearchLength = 2
	// SearchLimit caps the rows a search returns
	SearchLimit = 50
)

// SearchPosts returns assembled posts whose description or tags contain query,
// newest first. Results are not cached and never patched.
func (s *Service) SearchPosts(ctx context.Context, query string) ([]PostView, error) {
	query, err := searchQuery(query)
	if err != nil {
		return nil, s.fail(ctx, err)
	}
	start := time.Now()
	rows, err := s.repo.SearchPosts(ctx, query, SearchLimit)
	if err != nil {
		return nil, s.fail(ctx, apperrors.FetchFailed(apperrors.OpSearch, query, err))
	}
	posts, err := s.assembler.AssembleAll(ctx, rows, s.viewerID())
	if err != nil {
		return nil, s.fail(ctx, err)
	}
	metrics.RecordFeedFetch("search", time.Since(start))
	return posts, nil
}

// SearchUsers returns authors whose username or bio contains query
func (s *Service) SearchUsers(ctx context.Context, query string) ([]Author, error) {
	query, err := searchQuery(query)
	if err != nil {
		return nil, s.fail(ctx, err)
	}
	rows, err := s.repo.SearchProfiles(ctx, query, SearchLimit)
	if err != nil {
		return nil, s.fail(ctx, apperrors.FetchFailed(apperrors.OpSearch, query, err))
	}
	out := make([]Author, 0, len(rows))
	for i := range rows {
		out = append(out, AuthorFromProfile(rows[i].ID, &rows[i]))
	}
	return out, nil
}

func searchQuery(q string) (string, error) {
	q = strings.TrimSpace(q)
	if len([]rune(q)) < MinSearchLength {
		return "", apperrors.ValidationError(apperrors.OpSearch, "q", "search needs at least 2 characters")
	}
	return q, nil
}
