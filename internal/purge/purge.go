// Package purge implements the two-step destructive delete of sink rows:
// Preview returns a token and the number of rows that would go, Confirm
// presents the token and performs the delete.
package purge

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/PratikDhanave/attendance-sync-service/internal/metrics"
	"github.com/PratikDhanave/attendance-sync-service/internal/models"
	"github.com/PratikDhanave/attendance-sync-service/internal/store"
)

var (
	ErrUnknownToken = errors.New("purge: unknown or already used token")
	ErrTokenExpired = errors.New("purge: token expired")
)

// DefaultTTL is how long a preview token stays valid.
const DefaultTTL = 5 * time.Minute

// Pending is a previewed delete waiting for confirmation.
type Pending struct {
	Query     store.Query `json:"query"`
	Count     int64       `json:"count"`
	ExpiresAt time.Time   `json:"expires_at"`
}

// TokenStore keeps pending deletes. Take must remove the token so it can
// be used once.
type TokenStore interface {
	Put(ctx context.Context, token string, p Pending, ttl time.Duration) error
	Take(ctx context.Context, token string) (Pending, error)
}

type Service struct {
	sink    store.Sink
	tokens  TokenStore
	ttl     time.Duration
	now     func() time.Time
	metrics *metrics.Metrics
	logger  *zap.Logger
}

func NewService(sink store.Sink, tokens TokenStore, ttl time.Duration, m *metrics.Metrics, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	if tokens == nil {
		tokens = NewMemoryTokens()
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Service{sink: sink, tokens: tokens, ttl: ttl, now: time.Now, metrics: m, logger: logger}
}

// Preview counts the rows q would delete and issues a confirmation token.
func (s *Service) Preview(ctx context.Context, q store.Query) (*models.PurgePreview, error) {
	q.Limit, q.Offset, q.Desc = 0, 0, false

	n, err := s.sink.Count(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("count rows to delete: %w", err)
	}

	token := uuid.NewString()
	expires := s.now().Add(s.ttl).UTC()
	if err := s.tokens.Put(ctx, token, Pending{Query: q, Count: n, ExpiresAt: expires}, s.ttl); err != nil {
		return nil, fmt.Errorf("store purge token: %w", err)
	}

	s.logger.Warn("Purge previewed", zap.Int64("preview_count", n), zap.Time("expires_at", expires))
	return &models.PurgePreview{Token: token, PreviewCount: n, ExpiresAt: expires}, nil
}

// Confirm deletes the rows of a previewed purge. A token works once.
func (s *Service) Confirm(ctx context.Context, token string) (int64, error) {
	p, err := s.tokens.Take(ctx, token)
	if err != nil {
		return 0, err
	}
	if !s.now().Before(p.ExpiresAt) {
		return 0, ErrTokenExpired
	}

	deleted, err := s.sink.Delete(ctx, p.Query)
	if err != nil {
		return 0, fmt.Errorf("delete rows: %w", err)
	}

	s.metrics.Purged(deleted)
	s.logger.Warn("Purge confirmed",
		zap.Int64("deleted", deleted),
		zap.Int64("preview_count", p.Count))
	return deleted, nil
}
