package repository

import (
	"context"
	"errors"

	"github.com/earnbuddy/backend/internal/entity"
	"github.com/earnbuddy/backend/pkg/apperror"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

type OpportunityFilter struct {
	Kind   string
	Limit  int
	Offset int
}

type OpportunityRepository interface {
	Create(ctx context.Context, opportunity *entity.Opportunity) error
	FindByID(ctx context.Context, id uuid.UUID) (*entity.Opportunity, error)
	List(ctx context.Context, filter OpportunityFilter) ([]*entity.Opportunity, int64, error)
	// AddApplicant appends applicantID to the applicants list and bumps
	// total_applicants when it is set.
	AddApplicant(ctx context.Context, id, applicantID uuid.UUID) error
}

type opportunityRepository struct {
	db *gorm.DB
}

func NewOpportunityRepository(db *gorm.DB) OpportunityRepository {
	return &opportunityRepository{db: db}
}

func (r *opportunityRepository) Create(ctx context.Context, opportunity *entity.Opportunity) error {
	return r.db.WithContext(ctx).Create(opportunity).Error
}

func (r *opportunityRepository) FindByID(ctx context.Context, id uuid.UUID) (*entity.Opportunity, error) {
	var opportunity entity.Opportunity
	err := r.db.WithContext(ctx).
		Preload("Poster").
		Where("id = ?", id).
		First(&opportunity).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperror.ErrNotFound
		}
		return nil, err
	}
	return &opportunity, nil
}

func (r *opportunityRepository) List(ctx context.Context, filter OpportunityFilter) ([]*entity.Opportunity, int64, error) {
	var (
		opportunities []*entity.Opportunity
		total         int64
	)

	query := r.db.WithContext(ctx).Model(&entity.Opportunity{})
	if filter.Kind != "" {
		query = query.Where("kind = ?", filter.Kind)
	}
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	err := query.
		Preload("Poster").
		Order("created_at desc").
		Limit(filter.Limit).
		Offset(filter.Offset).
		Find(&opportunities).Error
	return opportunities, total, err
}

func (r *opportunityRepository) AddApplicant(ctx context.Context, id, applicantID uuid.UUID) error {
	return r.db.WithContext(ctx).
		Model(&entity.Opportunity{}).
		Where("id = ?", id).
		UpdateColumns(map[string]any{
			"applicants":       gorm.Expr("COALESCE(applicants, '[]'::jsonb) || jsonb_build_array(?::text)", applicantID.String()),
			"total_applicants": gorm.Expr("CASE WHEN total_applicants IS NULL THEN NULL ELSE total_applicants + 1 END"),
		}).Error
}
