package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/uni-course-api/internal/models"
	appErrors "github.com/noah-isme/uni-course-api/pkg/errors"
)

type rosterRepository interface {
	ListByOffering(ctx context.Context, offeringID string) ([]models.RosterEntry, error)
}

type rosterCache interface {
	Get(ctx context.Context, key string, dest interface{}) error
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
}

// RosterService serves offering rosters with a read-through cache. Confirm
// invalidates the cache so freshly committed enrollments show up immediately.
type RosterService struct {
	enrollments rosterRepository
	offerings   offeringReader
	cache       rosterCache
	cacheTTL    time.Duration
	logger      *zap.Logger
}

// NewRosterService constructs the roster service.
func NewRosterService(enrollments rosterRepository, offerings offeringReader, cache rosterCache, cacheTTL time.Duration, logger *zap.Logger) *RosterService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cacheTTL <= 0 {
		cacheTTL = 5 * time.Minute
	}
	return &RosterService{enrollments: enrollments, offerings: offerings, cache: cache, cacheTTL: cacheTTL, logger: logger}
}

func rosterCacheKey(offeringID string) string {
	return fmt.Sprintf("roster:%s", offeringID)
}

// List returns the enrolled students for an offering.
func (s *RosterService) List(ctx context.Context, offeringID string) ([]models.RosterEntry, error) {
	if _, err := s.offerings.FindByID(ctx, offeringID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "offering not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load offering")
	}

	key := rosterCacheKey(offeringID)
	if s.cache != nil {
		var cached []models.RosterEntry
		if err := s.cache.Get(ctx, key, &cached); err == nil {
			return cached, nil
		} else if !errors.Is(err, appErrors.ErrCacheMiss) {
			s.logger.Warn("roster cache read failed", zap.String("offering_id", offeringID), zap.Error(err))
		}
	}

	roster, err := s.enrollments.ListByOffering(ctx, offeringID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list roster")
	}

	if s.cache != nil {
		if err := s.cache.Set(ctx, key, roster, s.cacheTTL); err != nil {
			s.logger.Warn("roster cache write failed", zap.String("offering_id", offeringID), zap.Error(err))
		}
	}
	return roster, nil
}

// InvalidateRoster drops the cached roster for an offering.
func (s *RosterService) InvalidateRoster(ctx context.Context, offeringID string) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Delete(ctx, rosterCacheKey(offeringID)); err != nil {
		s.logger.Warn("roster cache invalidation failed", zap.String("offering_id", offeringID), zap.Error(err))
	}
}
