package opportunity

import (
	"context"
	"fmt"
	"time"

	"github.com/earnbuddy/backend/internal/entity"
	"github.com/earnbuddy/backend/internal/modules/opportunity/dto"
	opportunityRepo "github.com/earnbuddy/backend/internal/modules/opportunity/repository"
	roomRepo "github.com/earnbuddy/backend/internal/modules/room/repository"
	room "github.com/earnbuddy/backend/internal/modules/room/service"
	userRepo "github.com/earnbuddy/backend/internal/modules/user/repository"
	"github.com/earnbuddy/backend/internal/realtime"
	"github.com/earnbuddy/backend/pkg/cache"
	commonDto "github.com/earnbuddy/backend/pkg/dto"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/datatypes"
)

// Indexer keeps the search index in step with opportunity and room writes.
type Indexer interface {
	IndexOpportunity(ctx context.Context, opportunity *entity.Opportunity)
	IndexRoom(ctx context.Context, room *entity.Room)
}

type Service interface {
	CreateOpportunity(ctx context.Context, uid string, req dto.CreateOpportunityRequest) (*entity.Opportunity, error)
	ListOpportunities(ctx context.Context, query dto.ListOpportunitiesQuery) (*dto.OpportunityListResponse, error)
	GetOpportunity(ctx context.Context, id uuid.UUID) (*entity.Opportunity, error)
}

type service struct {
	users         userRepo.UserRepository
	opportunities opportunityRepo.OpportunityRepository
	rooms         roomRepo.RoomRepository
	memberships   roomRepo.MembershipRepository
	cache         cache.Cache
	bus           realtime.Bus
	indexer       Indexer
	logger        *zap.Logger
	now           func() time.Time
}

func NewService(
	users userRepo.UserRepository,
	opportunities opportunityRepo.OpportunityRepository,
	rooms roomRepo.RoomRepository,
	memberships roomRepo.MembershipRepository,
	cache cache.Cache,
	bus realtime.Bus,
	indexer Indexer,
	logger *zap.Logger,
) Service {
	return &service{
		users:         users,
		opportunities: opportunities,
		rooms:         rooms,
		memberships:   memberships,
		cache:         cache,
		bus:           bus,
		indexer:       indexer,
		logger:        logger,
		now:           time.Now,
	}
}

func (s *service) CreateOpportunity(ctx context.Context, uid string, req dto.CreateOpportunityRequest) (*entity.Opportunity, error) {
	user, err := s.users.FindByFirebaseUID(ctx, uid)
	if err != nil {
		return nil, fmt.Errorf("user not found: %w", err)
	}

	kind := req.Kind
	if kind == "" {
		kind = entity.OpportunityKindProject
	}

	roles := make([]entity.OpportunityRole, 0, len(req.Roles))
	for _, r := range req.Roles {
		id := r.ID
		if id == "" {
			id = uuid.NewString()
		}
		roles = append(roles, entity.OpportunityRole{ID: id, Title: r.Title, Description: r.Description})
	}
	tags := req.Tags
	if tags == nil {
		tags = []string{}
	}

	opportunity := &entity.Opportunity{
		Title:           req.Title,
		Description:     req.Description,
		Kind:            kind,
		PostedBy:        user.ID,
		Applicants:      datatypes.NewJSONSlice([]uuid.UUID{}),
		TotalApplicants: new(int),
		Roles:           datatypes.NewJSONSlice(roles),
		Tags:            datatypes.NewJSONSlice(tags),
	}

	if req.CreateCircle {
		circle, err := s.createCircle(ctx, user, req.Title)
		if err != nil {
			return nil, err
		}
		opportunity.RoomID = &circle.ID
	}

	if err := s.opportunities.Create(ctx, opportunity); err != nil {
		return nil, fmt.Errorf("failed to create opportunity: %w", err)
	}
	opportunity.Poster = user

	s.bus.EmitGlobal(ctx, realtime.EventOpportunityCreated, opportunity)
	if s.indexer != nil {
		s.indexer.IndexOpportunity(ctx, opportunity)
	}
	return opportunity, nil
}

// createCircle opens the opportunity circle with the poster as its admin.
func (s *service) createCircle(ctx context.Context, poster *entity.User, title string) (*entity.Room, error) {
	slug, err := room.UniqueSlug(ctx, s.rooms, title, s.now())
	if err != nil {
		return nil, err
	}

	circle := &entity.Room{
		Name:         title,
		Slug:         slug,
		Description:  fmt.Sprintf("Team circle for %s", title),
		CreatedBy:    poster.ID,
		MembersCount: 1,
		Type:         entity.RoomTypeOpportunity,
	}
	if err := s.rooms.Create(ctx, circle); err != nil {
		return nil, fmt.Errorf("failed to create opportunity circle: %w", err)
	}

	admin := &entity.RoomMembership{
		RoomID: circle.ID,
		UserID: poster.ID,
		Role:   entity.MemberRoleAdmin,
		Status: entity.MembershipAccepted,
	}
	if _, err := s.memberships.CreateIfAbsent(ctx, admin); err != nil {
		return nil, fmt.Errorf("failed to create circle membership: %w", err)
	}

	if err := s.cache.DeletePattern(ctx, "rooms:list:*"); err != nil {
		s.logger.Warn("failed to evict room listings", zap.Error(err))
	}
	circle.Creator = poster
	s.bus.EmitGlobal(ctx, realtime.EventRoomCreated, circle)
	if s.indexer != nil {
		s.indexer.IndexRoom(ctx, circle)
	}
	return circle, nil
}

func (s *service) ListOpportunities(ctx context.Context, query dto.ListOpportunitiesQuery) (*dto.OpportunityListResponse, error) {
	query.Normalize(20)
	opportunities, total, err := s.opportunities.List(ctx, opportunityRepo.OpportunityFilter{
		Kind:   query.Kind,
		Limit:  query.Limit,
		Offset: query.Offset,
	})
	if err != nil {
		return nil, err
	}
	if opportunities == nil {
		opportunities = []*entity.Opportunity{}
	}

	return &dto.OpportunityListResponse{
		Data: opportunities,
		Meta: commonDto.PaginationMeta{Limit: query.Limit, Offset: query.Offset, Total: total},
	}, nil
}

func (s *service) GetOpportunity(ctx context.Context, id uuid.UUID) (*entity.Opportunity, error) {
	opportunity, err := s.opportunities.FindByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("opportunity not found: %w", err)
	}
	return opportunity, nil
}
