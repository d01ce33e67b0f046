package collaboration

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/earnbuddy/backend/internal/entity"
	"github.com/earnbuddy/backend/internal/modules/collaboration/dto"
	collabRepo "github.com/earnbuddy/backend/internal/modules/collaboration/repository"
	roomRepo "github.com/earnbuddy/backend/internal/modules/room/repository"
	room "github.com/earnbuddy/backend/internal/modules/room/service"
	userRepo "github.com/earnbuddy/backend/internal/modules/user/repository"
	"github.com/earnbuddy/backend/internal/realtime"
	"github.com/earnbuddy/backend/pkg/apperror"
	"github.com/earnbuddy/backend/pkg/cache"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/datatypes"
)

var (
	errSameCircle       = apperror.New(http.StatusBadRequest, "cannot collaborate with the same circle", apperror.ErrBadRequest)
	errAlreadyRequested = apperror.New(http.StatusBadRequest, "a collaboration request is already pending", apperror.ErrConflict)
	errProcessed        = apperror.New(http.StatusBadRequest, "request already processed", apperror.ErrConflict)
	errOwnCircle        = apperror.New(http.StatusBadRequest, "cannot collaborate with your own circle", apperror.ErrBadRequest)
)

// Notifier delivers a persisted notification to its recipient.
type Notifier interface {
	Notify(ctx context.Context, notification *entity.Notification)
}

type Service interface {
	SendRequest(ctx context.Context, uid string, req dto.SendRequest) (*entity.CollaborationRequest, error)
	GetPending(ctx context.Context, uid string) ([]*entity.CollaborationRequest, error)
	Accept(ctx context.Context, uid string, requestID uuid.UUID) (*entity.Room, error)
	Reject(ctx context.Context, uid string, requestID uuid.UUID) error
}

type service struct {
	users       userRepo.UserRepository
	requests    collabRepo.CollaborationRepository
	rooms       roomRepo.RoomRepository
	memberships roomRepo.MembershipRepository
	cache       cache.Cache
	bus         realtime.Bus
	notifier    Notifier
	logger      *zap.Logger
	now         func() time.Time
}

func NewService(
	users userRepo.UserRepository,
	requests collabRepo.CollaborationRepository,
	rooms roomRepo.RoomRepository,
	memberships roomRepo.MembershipRepository,
	cache cache.Cache,
	bus realtime.Bus,
	notifier Notifier,
	logger *zap.Logger,
) Service {
	return &service{
		users:       users,
		requests:    requests,
		rooms:       rooms,
		memberships: memberships,
		cache:       cache,
		bus:         bus,
		notifier:    notifier,
		logger:      logger,
		now:         time.Now,
	}
}

func (s *service) SendRequest(ctx context.Context, uid string, req dto.SendRequest) (*entity.CollaborationRequest, error) {
	fromID, err := uuid.Parse(req.FromCircleID)
	if err != nil {
		return nil, apperror.New(http.StatusBadRequest, "invalid from_circle_id", apperror.ErrBadRequest)
	}
	toID, err := uuid.Parse(req.ToCircleID)
	if err != nil {
		return nil, apperror.New(http.StatusBadRequest, "invalid to_circle_id", apperror.ErrBadRequest)
	}
	if fromID == toID {
		return nil, errSameCircle
	}

	user, err := s.users.FindByFirebaseUID(ctx, uid)
	if err != nil {
		return nil, fmt.Errorf("user not found: %w", err)
	}
	from, err := s.rooms.FindByID(ctx, fromID)
	if err != nil {
		return nil, fmt.Errorf("source circle not found: %w", err)
	}
	to, err := s.rooms.FindByID(ctx, toID)
	if err != nil {
		return nil, fmt.Errorf("target circle not found: %w", err)
	}

	allowed, err := s.canManage(ctx, from, user)
	if err != nil {
		return nil, err
	}
	if !allowed {
		return nil, fmt.Errorf("only the creator or an admin can send collaboration requests: %w", apperror.ErrForbidden)
	}
	if to.CreatedBy == user.ID {
		return nil, errOwnCircle
	}

	// only this direction is checked; a pending request from the target
	// circle does not block a new one
	pending, err := s.requests.HasPending(ctx, from.ID, to.ID)
	if err != nil {
		return nil, err
	}
	if pending {
		return nil, errAlreadyRequested
	}

	request := &entity.CollaborationRequest{
		FromCircleID: from.ID,
		ToCircleID:   to.ID,
		FromOwnerID:  user.ID,
		ToOwnerID:    to.CreatedBy,
		Message:      req.Message,
		Status:       entity.CollabPending,
	}
	if err := s.requests.Create(ctx, request); err != nil {
		return nil, fmt.Errorf("failed to create collaboration request: %w", err)
	}
	request.FromCircle = from
	request.ToCircle = to

	s.notifier.Notify(ctx, &entity.Notification{
		UserID:  to.CreatedBy,
		ActorID: &user.ID,
		Type:    entity.NotificationCollabRequest,
		Title:   "New collaboration request",
		Body:    fmt.Sprintf("%s wants to collaborate with %s", from.Name, to.Name),
		Link:    "/circles/" + to.ID.String(),
	})

	return request, nil
}

func (s *service) GetPending(ctx context.Context, uid string) ([]*entity.CollaborationRequest, error) {
	user, err := s.users.FindByFirebaseUID(ctx, uid)
	if err != nil {
		return nil, fmt.Errorf("user not found: %w", err)
	}
	reqs, err := s.requests.ListPendingForOwner(ctx, user.ID)
	if err != nil {
		return nil, err
	}
	if reqs == nil {
		reqs = []*entity.CollaborationRequest{}
	}
	return reqs, nil
}

// pendingFor loads a request the caller may resolve.
func (s *service) pendingFor(ctx context.Context, uid string, requestID uuid.UUID) (*entity.User, *entity.CollaborationRequest, error) {
	user, err := s.users.FindByFirebaseUID(ctx, uid)
	if err != nil {
		return nil, nil, fmt.Errorf("user not found: %w", err)
	}
	request, err := s.requests.FindByID(ctx, requestID)
	if err != nil {
		return nil, nil, fmt.Errorf("collaboration request not found: %w", err)
	}
	if request.ToOwnerID != user.ID {
		return nil, nil, fmt.Errorf("only the recipient can respond to this request: %w", apperror.ErrForbidden)
	}
	if request.Status != entity.CollabPending {
		return nil, nil, errProcessed
	}
	return user, request, nil
}

func (s *service) Accept(ctx context.Context, uid string, requestID uuid.UUID) (*entity.Room, error) {
	user, request, err := s.pendingFor(ctx, uid, requestID)
	if err != nil {
		return nil, err
	}

	fromName, toName := circleName(request.FromCircle), circleName(request.ToCircle)
	name := fmt.Sprintf("%s x %s", fromName, toName)
	slug, err := room.UniqueSlug(ctx, s.rooms, name, s.now())
	if err != nil {
		return nil, err
	}

	owners := []uuid.UUID{request.FromOwnerID}
	if request.ToOwnerID != request.FromOwnerID {
		owners = append(owners, request.ToOwnerID)
	}

	collab := &entity.Room{
		Name:          name,
		Slug:          slug,
		Description:   fmt.Sprintf("Collaboration between %s and %s", fromName, toName),
		CreatedBy:     user.ID,
		MembersCount:  len(owners),
		Type:          entity.RoomTypeCollab,
		Collaborators: datatypes.NewJSONSlice(owners),
	}
	if err := s.rooms.Create(ctx, collab); err != nil {
		return nil, fmt.Errorf("failed to create collaboration room: %w", err)
	}

	for _, ownerID := range owners {
		admin := &entity.RoomMembership{
			RoomID: collab.ID,
			UserID: ownerID,
			Role:   entity.MemberRoleAdmin,
			Status: entity.MembershipAccepted,
		}
		if _, err := s.memberships.CreateIfAbsent(ctx, admin); err != nil {
			return nil, fmt.Errorf("failed to seed collaboration room: %w", err)
		}
	}

	resolved, err := s.requests.Resolve(ctx, request.ID, entity.CollabAccepted, &collab.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to accept collaboration request: %w", err)
	}
	if !resolved {
		// lost a race with a concurrent accept or reject
		if err := s.rooms.Delete(ctx, collab.ID); err != nil {
			s.logger.Error("failed to remove orphaned collaboration room", zap.String("room_id", collab.ID.String()), zap.Error(err))
		}
		return nil, errProcessed
	}

	s.notifier.Notify(ctx, &entity.Notification{
		UserID:  request.FromOwnerID,
		ActorID: &user.ID,
		Type:    entity.NotificationCollabAccepted,
		Title:   "Collaboration accepted",
		Body:    fmt.Sprintf("%s accepted your collaboration request", toName),
		Link:    "/circles/" + collab.ID.String(),
	})

	if err := s.cache.DeletePattern(ctx, "rooms:list:*"); err != nil {
		s.logger.Warn("failed to evict room listings", zap.Error(err))
	}
	s.bus.EmitGlobal(ctx, realtime.EventRoomCreated, collab)

	return collab, nil
}

func (s *service) Reject(ctx context.Context, uid string, requestID uuid.UUID) error {
	user, request, err := s.pendingFor(ctx, uid, requestID)
	if err != nil {
		return err
	}

	resolved, err := s.requests.Resolve(ctx, request.ID, entity.CollabRejected, nil)
	if err != nil {
		return fmt.Errorf("failed to reject collaboration request: %w", err)
	}
	if !resolved {
		return errProcessed
	}

	s.notifier.Notify(ctx, &entity.Notification{
		UserID:  request.FromOwnerID,
		ActorID: &user.ID,
		Type:    entity.NotificationCollabRejected,
		Title:   "Collaboration declined",
		Body:    fmt.Sprintf("%s declined your collaboration request", circleName(request.ToCircle)),
		Link:    "/circles/" + request.FromCircleID.String(),
	})
	return nil
}

func (s *service) canManage(ctx context.Context, circle *entity.Room, user *entity.User) (bool, error) {
	if circle.CreatedBy == user.ID {
		return true, nil
	}
	membership, err := s.memberships.Find(ctx, circle.ID, user.ID)
	if errors.Is(err, apperror.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return membership.IsAcceptedAdmin(), nil
}

func circleName(r *entity.Room) string {
	if r == nil {
		return "Circle"
	}
	return r.Name
}
