package application

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/earnbuddy/backend/internal/entity"
	"github.com/earnbuddy/backend/internal/modules/application/dto"
	appRepo "github.com/earnbuddy/backend/internal/modules/application/repository"
	opportunityRepo "github.com/earnbuddy/backend/internal/modules/opportunity/repository"
	roomRepo "github.com/earnbuddy/backend/internal/modules/room/repository"
	userRepo "github.com/earnbuddy/backend/internal/modules/user/repository"
	"github.com/earnbuddy/backend/internal/realtime"
	"github.com/earnbuddy/backend/pkg/apperror"
	"github.com/earnbuddy/backend/pkg/cache"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

var errAlreadyApplied = apperror.New(http.StatusBadRequest, "already applied", apperror.ErrConflict)

// Notifier delivers a persisted notification to its recipient.
type Notifier interface {
	Notify(ctx context.Context, notification *entity.Notification)
}

type Service interface {
	Apply(ctx context.Context, uid string, req dto.ApplyRequest) (*entity.Application, error)
	UpdateStatus(ctx context.Context, uid string, applicationID uuid.UUID, status string) (*entity.Application, error)
	GetMyApplications(ctx context.Context, uid string) ([]*entity.Application, error)
	GetApplicationsForOpportunity(ctx context.Context, uid string, opportunityID uuid.UUID) ([]dto.ApplicantResponse, error)
}

type service struct {
	users         userRepo.UserRepository
	opportunities opportunityRepo.OpportunityRepository
	applications  appRepo.ApplicationRepository
	rooms         roomRepo.RoomRepository
	memberships   roomRepo.MembershipRepository
	cache         cache.Cache
	bus           realtime.Bus
	notifier      Notifier
	logger        *zap.Logger
}

func NewService(
	users userRepo.UserRepository,
	opportunities opportunityRepo.OpportunityRepository,
	applications appRepo.ApplicationRepository,
	rooms roomRepo.RoomRepository,
	memberships roomRepo.MembershipRepository,
	cache cache.Cache,
	bus realtime.Bus,
	notifier Notifier,
	logger *zap.Logger,
) Service {
	return &service{
		users:         users,
		opportunities: opportunities,
		applications:  applications,
		rooms:         rooms,
		memberships:   memberships,
		cache:         cache,
		bus:           bus,
		notifier:      notifier,
		logger:        logger,
	}
}

type statusEvent struct {
	ApplicationID uuid.UUID `json:"application_id"`
	OpportunityID uuid.UUID `json:"opportunity_id"`
	ApplicantID   uuid.UUID `json:"applicant_id"`
	Status        string    `json:"status"`
}

type membershipEvent struct {
	RoomID uuid.UUID `json:"room_id"`
	UserID uuid.UUID `json:"user_id"`
	Status string    `json:"status"`
}

func (s *service) Apply(ctx context.Context, uid string, req dto.ApplyRequest) (*entity.Application, error) {
	user, err := s.users.FindByFirebaseUID(ctx, uid)
	if err != nil {
		return nil, fmt.Errorf("user not found: %w", err)
	}
	opportunityID, err := uuid.Parse(req.OpportunityID)
	if err != nil {
		return nil, apperror.New(http.StatusBadRequest, "invalid opportunity id", apperror.ErrBadRequest)
	}
	opportunity, err := s.opportunities.FindByID(ctx, opportunityID)
	if err != nil {
		return nil, fmt.Errorf("opportunity not found: %w", err)
	}

	exists, err := s.applications.Exists(ctx, opportunity.ID, user.ID)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, errAlreadyApplied
	}

	if req.RoleID != nil && len(opportunity.Roles) > 0 && !hasRole(opportunity, *req.RoleID) {
		return nil, apperror.New(http.StatusBadRequest, "unknown role", apperror.ErrBadRequest)
	}

	message, details := ParseApplicationMessage(req.MessageText())
	app := &entity.Application{
		OpportunityID: opportunity.ID,
		ApplicantID:   user.ID,
		Message:       message,
		Details:       details,
		RoleID:        req.RoleID,
		Status:        entity.ApplicationPending,
	}

	created, err := s.applications.CreateIfAbsent(ctx, app)
	if err != nil {
		return nil, fmt.Errorf("failed to create application: %w", err)
	}
	if !created {
		return nil, errAlreadyApplied
	}

	if err := s.opportunities.AddApplicant(ctx, opportunity.ID, user.ID); err != nil {
		s.logger.Error("failed to record applicant",
			zap.String("opportunity_id", opportunity.ID.String()),
			zap.Error(err),
		)
	}

	s.notifier.Notify(ctx, &entity.Notification{
		UserID:  opportunity.PostedBy,
		ActorID: &user.ID,
		Type:    entity.NotificationNewApplication,
		Title:   "New application",
		Body:    fmt.Sprintf("%s applied to %s", user.Name(), opportunity.Title),
		Link:    fmt.Sprintf("/opportunities/%s/applications", opportunity.ID),
	})
	s.bus.EmitGlobal(ctx, realtime.EventApplicationCreated, app)

	return app, nil
}

func (s *service) UpdateStatus(ctx context.Context, uid string, applicationID uuid.UUID, status string) (*entity.Application, error) {
	switch status {
	case entity.ApplicationAccepted, entity.ApplicationRejected, entity.ApplicationInterviewing:
	default:
		return nil, apperror.New(http.StatusBadRequest, "status must be one of accepted, rejected, interviewing", apperror.ErrBadRequest)
	}

	user, err := s.users.FindByFirebaseUID(ctx, uid)
	if err != nil {
		return nil, fmt.Errorf("user not found: %w", err)
	}
	app, err := s.applications.FindByID(ctx, applicationID)
	if err != nil {
		return nil, fmt.Errorf("application not found: %w", err)
	}
	opportunity := app.Opportunity
	if opportunity == nil {
		if opportunity, err = s.opportunities.FindByID(ctx, app.OpportunityID); err != nil {
			return nil, fmt.Errorf("opportunity not found: %w", err)
		}
	}
	if opportunity.PostedBy != user.ID {
		return nil, fmt.Errorf("only the poster can update applications: %w", apperror.ErrForbidden)
	}

	if err := s.applications.UpdateStatus(ctx, app.ID, status); err != nil {
		return nil, fmt.Errorf("failed to update application: %w", err)
	}
	app.Status = status

	if status == entity.ApplicationAccepted && opportunity.RoomID != nil {
		if err := s.ensureMember(ctx, *opportunity.RoomID, app.ApplicantID); err != nil {
			return nil, err
		}
	}

	notification := &entity.Notification{
		UserID:  app.ApplicantID,
		ActorID: &user.ID,
		Type:    entity.NotificationApplicationUpdate,
		Title:   "Application updated",
		Body:    fmt.Sprintf("Your application to %s is now %s", opportunity.Title, status),
		Link:    "/applications",
	}
	if status == entity.ApplicationAccepted {
		notification.Type = entity.NotificationApplicationAccepted
		notification.Title = "Application accepted"
		notification.Body = fmt.Sprintf("Your application to %s was accepted", opportunity.Title)
		if opportunity.RoomID != nil {
			notification.Link = "/circles/" + opportunity.RoomID.String()
		}
	}
	s.notifier.Notify(ctx, notification)

	s.bus.EmitGlobal(ctx, realtime.EventApplicationStatusUpdated, statusEvent{
		ApplicationID: app.ID,
		OpportunityID: app.OpportunityID,
		ApplicantID:   app.ApplicantID,
		Status:        status,
	})
	return app, nil
}

// ensureMember gives the applicant an accepted membership in the opportunity
// circle. The member count moves only when this call made the member accepted.
func (s *service) ensureMember(ctx context.Context, roomID, userID uuid.UUID) error {
	if _, err := s.rooms.FindByID(ctx, roomID); err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			s.logger.Warn("opportunity circle no longer exists", zap.String("room_id", roomID.String()))
			return nil
		}
		return err
	}

	joined := false
	existing, err := s.memberships.Find(ctx, roomID, userID)
	switch {
	case err == nil:
		if joined, err = s.memberships.Promote(ctx, existing.ID); err != nil {
			return fmt.Errorf("failed to promote membership: %w", err)
		}
	case errors.Is(err, apperror.ErrNotFound):
		membership := &entity.RoomMembership{
			RoomID: roomID,
			UserID: userID,
			Role:   entity.MemberRoleMember,
			Status: entity.MembershipAccepted,
		}
		if joined, err = s.memberships.CreateIfAbsent(ctx, membership); err != nil {
			return fmt.Errorf("failed to create membership: %w", err)
		}
	default:
		return err
	}

	if !joined {
		return nil
	}

	if err := s.rooms.IncrementMembers(ctx, roomID, 1); err != nil {
		s.logger.Error("failed to increment members count", zap.String("room_id", roomID.String()), zap.Error(err))
	}
	if err := s.cache.DeletePattern(ctx, fmt.Sprintf("rooms:list:%s:*", userID)); err != nil {
		s.logger.Warn("failed to evict user room listings", zap.Error(err))
	}
	s.bus.EmitGlobal(ctx, realtime.EventMembershipCreated, membershipEvent{
		RoomID: roomID,
		UserID: userID,
		Status: entity.MembershipAccepted,
	})
	return nil
}

func (s *service) GetMyApplications(ctx context.Context, uid string) ([]*entity.Application, error) {
	user, err := s.users.FindByFirebaseUID(ctx, uid)
	if err != nil {
		return nil, fmt.Errorf("user not found: %w", err)
	}
	apps, err := s.applications.ListByApplicant(ctx, user.ID)
	if err != nil {
		return nil, err
	}
	if apps == nil {
		apps = []*entity.Application{}
	}
	return apps, nil
}

func (s *service) GetApplicationsForOpportunity(ctx context.Context, uid string, opportunityID uuid.UUID) ([]dto.ApplicantResponse, error) {
	user, err := s.users.FindByFirebaseUID(ctx, uid)
	if err != nil {
		return nil, fmt.Errorf("user not found: %w", err)
	}
	opportunity, err := s.opportunities.FindByID(ctx, opportunityID)
	if err != nil {
		return nil, fmt.Errorf("opportunity not found: %w", err)
	}
	if opportunity.PostedBy != user.ID {
		return nil, fmt.Errorf("only the poster can view applications: %w", apperror.ErrForbidden)
	}

	apps, err := s.applications.ListByOpportunity(ctx, opportunity.ID)
	if err != nil {
		return nil, err
	}

	out := make([]dto.ApplicantResponse, 0, len(apps))
	for _, a := range apps {
		resp := dto.ApplicantResponse{
			ApplicationID: a.ID,
			Status:        a.Status,
			Message:       a.Message,
			Details:       a.Details,
			RoleID:        a.RoleID,
			AppliedAt:     a.CreatedAt,
		}
		if a.Applicant != nil {
			resp.Applicant = a.Applicant.Summary()
		} else {
			resp.Applicant.ID = a.ApplicantID
		}
		out = append(out, resp)
	}
	return out, nil
}

func hasRole(opportunity *entity.Opportunity, roleID string) bool {
	for _, r := range opportunity.Roles {
		if r.ID == roleID {
			return true
		}
	}
	return false
}
