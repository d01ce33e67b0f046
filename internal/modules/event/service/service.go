package event

import (
	"context"
	"fmt"
	"time"

	"github.com/earnbuddy/backend/internal/entity"
	"github.com/earnbuddy/backend/internal/modules/event/dto"
	eventRepo "github.com/earnbuddy/backend/internal/modules/event/repository"
	userRepo "github.com/earnbuddy/backend/internal/modules/user/repository"
	commonDto "github.com/earnbuddy/backend/pkg/dto"
)

type Service interface {
	CreateEvent(ctx context.Context, uid string, req dto.CreateEventRequest) (*entity.Event, error)
	ListEvents(ctx context.Context, query commonDto.PaginationQuery) ([]*entity.Event, error)
}

type service struct {
	users  userRepo.UserRepository
	events eventRepo.EventRepository
	now    func() time.Time
}

func NewService(users userRepo.UserRepository, events eventRepo.EventRepository) Service {
	return &service{users: users, events: events, now: time.Now}
}

func (s *service) CreateEvent(ctx context.Context, uid string, req dto.CreateEventRequest) (*entity.Event, error) {
	user, err := s.users.FindByFirebaseUID(ctx, uid)
	if err != nil {
		return nil, fmt.Errorf("user not found: %w", err)
	}

	event := &entity.Event{
		Title:       req.Title,
		Description: req.Description,
		Location:    req.Location,
		StartsAt:    req.StartsAt,
		Link:        req.Link,
		CreatedBy:   user.ID,
	}
	if err := s.events.Create(ctx, event); err != nil {
		return nil, fmt.Errorf("failed to create event: %w", err)
	}
	event.Creator = user
	return event, nil
}

func (s *service) ListEvents(ctx context.Context, query commonDto.PaginationQuery) ([]*entity.Event, error) {
	query.Normalize(20)
	events, err := s.events.ListUpcoming(ctx, s.now(), query.Limit, query.Offset)
	if err != nil {
		return nil, err
	}
	if events == nil {
		events = []*entity.Event{}
	}
	return events, nil
}
