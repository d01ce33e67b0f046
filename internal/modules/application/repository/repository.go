package repository

import (
	"context"
	"errors"

	"github.com/earnbuddy/backend/internal/entity"
	"github.com/earnbuddy/backend/pkg/apperror"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type ApplicationRepository interface {
	// CreateIfAbsent inserts app unless the applicant already applied to the
	// opportunity. It reports whether the row was inserted.
	CreateIfAbsent(ctx context.Context, app *entity.Application) (bool, error)
	FindByID(ctx context.Context, id uuid.UUID) (*entity.Application, error)
	Exists(ctx context.Context, opportunityID, applicantID uuid.UUID) (bool, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, status string) error
	ListByApplicant(ctx context.Context, applicantID uuid.UUID) ([]*entity.Application, error)
	ListByOpportunity(ctx context.Context, opportunityID uuid.UUID) ([]*entity.Application, error)
}

type applicationRepository struct {
	db *gorm.DB
}

func NewApplicationRepository(db *gorm.DB) ApplicationRepository {
	return &applicationRepository{db: db}
}

func (r *applicationRepository) CreateIfAbsent(ctx context.Context, app *entity.Application) (bool, error) {
	result := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "opportunity_id"}, {Name: "applicant_id"}},
			DoNothing: true,
		}).
		Create(app)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

func (r *applicationRepository) FindByID(ctx context.Context, id uuid.UUID) (*entity.Application, error) {
	var app entity.Application
	err := r.db.WithContext(ctx).
		Preload("Opportunity").
		Where("id = ?", id).
		First(&app).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperror.ErrNotFound
		}
		return nil, err
	}
	return &app, nil
}

func (r *applicationRepository) Exists(ctx context.Context, opportunityID, applicantID uuid.UUID) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&entity.Application{}).
		Where("opportunity_id = ? AND applicant_id = ?", opportunityID, applicantID).
		Count(&count).Error
	return count > 0, err
}

func (r *applicationRepository) UpdateStatus(ctx context.Context, id uuid.UUID, status string) error {
	return r.db.WithContext(ctx).
		Model(&entity.Application{}).
		Where("id = ?", id).
		Update("status", status).Error
}

func (r *applicationRepository) ListByApplicant(ctx context.Context, applicantID uuid.UUID) ([]*entity.Application, error) {
	var apps []*entity.Application
	err := r.db.WithContext(ctx).
		Preload("Opportunity").
		Preload("Opportunity.Poster").
		Where("applicant_id = ?", applicantID).
		Order("created_at desc").
		Find(&apps).Error
	return apps, err
}

func (r *applicationRepository) ListByOpportunity(ctx context.Context, opportunityID uuid.UUID) ([]*entity.Application, error) {
	var apps []*entity.Application
	err := r.db.WithContext(ctx).
		Preload("Applicant").
		Where("opportunity_id = ?", opportunityID).
		Order("created_at desc").
		Find(&apps).Error
	return apps, err
}
