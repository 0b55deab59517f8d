package service

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/contravention-api/internal/models"
	appErrors "github.com/noah-isme/contravention-api/pkg/errors"
)

type standingsReader interface {
	Standings(ctx context.Context, filter models.StandingsFilter) ([]models.Standing, error)
}

// ReportService serves read-only reports, cached until the next ledger mutation.
type ReportService struct {
	repo   standingsReader
	cache  *CacheService
	ttl    time.Duration
	logger *zap.Logger
}

// NewReportService constructs the report service. cache may be nil.
func NewReportService(repo standingsReader, cache *CacheService, ttl time.Duration, logger *zap.Logger) *ReportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ReportService{repo: repo, cache: cache, ttl: ttl, logger: logger}
}

// Standings returns per-employee totals and tiers. The bool reports a cache hit.
func (s *ReportService) Standings(ctx context.Context, filter models.StandingsFilter) ([]models.Standing, bool, error) {
	key := standingsCacheKey(filter)

	var cached []models.Standing
	if hit, err := s.cache.Get(ctx, key, &cached); err == nil && hit {
		return cached, true, nil
	}

	items, err := s.repo.Standings(ctx, filter)
	if err != nil {
		return nil, false, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load standings")
	}
	if items == nil {
		items = []models.Standing{}
	}
	_ = s.cache.Set(ctx, key, items, s.ttl)
	return items, false, nil
}

func standingsCacheKey(filter models.StandingsFilter) string {
	minPoints := "any"
	if filter.MinPoints != nil {
		minPoints = fmt.Sprintf("%d", *filter.MinPoints)
	}
	return fmt.Sprintf("reports:standings:dept=%s:min=%s:tier=%t", filter.Department, minPoints, filter.TierOnly)
}
