package repository

import (
	"context"

	"gorm.io/gorm"
)

// CounterRepository recomputes denormalized counters from their source rows.
type CounterRepository interface {
	// ReconcileMembersCount resets rooms.members_count to the number of accepted
	// memberships and returns how many rooms were corrected.
	ReconcileMembersCount(ctx context.Context) (int64, error)
	// ReconcileTotalApplicants resets opportunities.total_applicants, where set,
	// to the number of applications and returns how many were corrected.
	ReconcileTotalApplicants(ctx context.Context) (int64, error)
}

type counterRepository struct {
	db *gorm.DB
}

func NewCounterRepository(db *gorm.DB) CounterRepository {
	return &counterRepository{db: db}
}

const reconcileMembersSQL = `
UPDATE rooms SET members_count = counts.total
FROM (
	SELECT r.id, COUNT(m.id) AS total
	FROM rooms r
	LEFT JOIN room_memberships m ON m.room_id = r.id AND m.status = 'accepted'
	GROUP BY r.id
) AS counts
WHERE rooms.id = counts.id AND rooms.members_count <> counts.total`

const reconcileApplicantsSQL = `
UPDATE opportunities SET total_applicants = counts.total
FROM (
	SELECT o.id, COUNT(a.id) AS total
	FROM opportunities o
	LEFT JOIN applications a ON a.opportunity_id = o.id
	GROUP BY o.id
) AS counts
WHERE opportunities.id = counts.id
	AND opportunities.total_applicants IS NOT NULL
	AND opportunities.total_applicants <> counts.total`

func (r *counterRepository) ReconcileMembersCount(ctx context.Context) (int64, error) {
	result := r.db.WithContext(ctx).Exec(reconcileMembersSQL)
	return result.RowsAffected, result.Error
}

func (r *counterRepository) ReconcileTotalApplicants(ctx context.Context) (int64, error) {
	result := r.db.WithContext(ctx).Exec(reconcileApplicantsSQL)
	return result.RowsAffected, result.Error
}
