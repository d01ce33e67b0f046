package reconcile

import (
	"context"
	"time"

	repo "github.com/earnbuddy/backend/internal/modules/reconcile/repository"
	"go.uber.org/zap"
)

const DefaultInterval = time.Hour

type Service interface {
	// Reconcile runs one pass and returns the number of rows corrected.
	Reconcile(ctx context.Context) (int64, error)
	// StartWorker reconciles every interval until ctx is done.
	StartWorker(ctx context.Context, interval time.Duration)
}

type service struct {
	counters repo.CounterRepository
	logger   *zap.Logger
}

func NewService(counters repo.CounterRepository, logger *zap.Logger) Service {
	return &service{counters: counters, logger: logger}
}

func (s *service) Reconcile(ctx context.Context) (int64, error) {
	rooms, err := s.counters.ReconcileMembersCount(ctx)
	if err != nil {
		return 0, err
	}
	opportunities, err := s.counters.ReconcileTotalApplicants(ctx)
	if err != nil {
		return rooms, err
	}

	if rooms+opportunities > 0 {
		s.logger.Info("reconciled counters",
			zap.Int64("rooms", rooms),
			zap.Int64("opportunities", opportunities),
		)
	}
	return rooms + opportunities, nil
}

func (s *service) StartWorker(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		return
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if _, err := s.Reconcile(ctx); err != nil {
				s.logger.Error("counter reconciliation failed", zap.Error(err))
			}
		case <-ctx.Done():
			return
		}
	}
}
