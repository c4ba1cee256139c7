// Package usage enforces the monthly processing quota and meters consumed
// minutes and bytes.
package usage

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	apperrors "media-studio/errors"
	"media-studio/models"
	"media-studio/repository"
)

// Config sets the quota ceiling.
type Config struct {
	MonthlyLimitMinutes float64
}

// Service gates new work against the quota and records consumption. A nil
// repository disables both: everything is admitted and nothing is stored.
type Service struct {
	cfg    Config
	repo   repository.UsageRepository
	logger *logrus.Logger
}

func NewService(cfg Config, repo repository.UsageRepository, logger *logrus.Logger) *Service {
	if cfg.MonthlyLimitMinutes <= 0 {
		cfg.MonthlyLimitMinutes = 10.0
	}
	return &Service{cfg: cfg, repo: repo, logger: logger}
}

// Check admits or rejects a request before any processing starts.
// Anonymous requests are always admitted, as is any user with no usage on
// record. A user at or past the minute ceiling is rejected.
func (s *Service) Check(ctx context.Context, userID string) error {
	const op = "usage.Check"

	if userID == "" || s.repo == nil {
		return nil
	}

	record, err := s.repo.Get(ctx, userID)
	if err != nil {
		if apperrors.IsNotFound(err) {
			return nil
		}
		// A broken ledger must not take the service down with it.
		s.logger.WithError(err).WithField("user_id", userID).Warn("usage lookup failed, admitting request")
		return nil
	}

	if record.MinutesProcessed >= s.cfg.MonthlyLimitMinutes {
		return apperrors.Forbidden(op, nil,
			fmt.Sprintf("monthly processing limit of %.1f minutes reached", s.cfg.MonthlyLimitMinutes))
	}
	return nil
}

// Lookup returns the user's current usage, or a zero-valued record when
// nothing has been metered yet.
func (s *Service) Lookup(ctx context.Context, userID string) (*models.UsageRecord, error) {
	if userID == "" || s.repo == nil {
		return &models.UsageRecord{UserID: userID}, nil
	}

	record, err := s.repo.Get(ctx, userID)
	if err != nil {
		if apperrors.IsNotFound(err) {
			return &models.UsageRecord{UserID: userID}, nil
		}
		return nil, err
	}
	return record, nil
}

// Record adds consumed minutes and bytes to the user's ledger. Metering
// failures are logged and swallowed; a finished pipeline run never fails
// over bookkeeping.
func (s *Service) Record(ctx context.Context, userID string, minutes float64, bytes int64) {
	if userID == "" || s.repo == nil {
		return
	}
	if minutes == 0 && bytes == 0 {
		return
	}

	if err := s.repo.Add(ctx, userID, minutes, bytes); err != nil {
		s.logger.WithError(err).WithFields(logrus.Fields{
			"user_id": userID,
			"minutes": minutes,
			"bytes":   bytes,
		}).Error("failed to record usage")
	}
}
