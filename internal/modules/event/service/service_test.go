package event

import (
	"context"
	"sort"
	"testing"
	"time"

	"github.com/earnbuddy/backend/internal/entity"
	"github.com/earnbuddy/backend/internal/modules/event/dto"
	"github.com/earnbuddy/backend/internal/testutil"
	commonDto "github.com/earnbuddy/backend/pkg/dto"
	"github.com/google/uuid"
)

type memoryEvents struct {
	items []*entity.Event
}

func (m *memoryEvents) Create(_ context.Context, e *entity.Event) error {
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	m.items = append(m.items, e)
	return nil
}

func (m *memoryEvents) ListUpcoming(_ context.Context, from time.Time, limit, offset int) ([]*entity.Event, error) {
	var out []*entity.Event
	for _, e := range m.items {
		if !e.StartsAt.Before(from) {
			out = append(out, e)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartsAt.Before(out[j].StartsAt) })
	if offset >= len(out) {
		return nil, nil
	}
	out = out[offset:]
	if limit < len(out) {
		out = out[:limit]
	}
	return out, nil
}

func TestEvents(t *testing.T) {
	alice := testutil.NewUser("uid-alice", "Alice")
	events := &memoryEvents{}
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	svc := &service{users: testutil.NewUsers(alice), events: events, now: func() time.Time { return now }}
	ctx := context.Background()

	for _, offset := range []time.Duration{48 * time.Hour, -time.Hour, 24 * time.Hour} {
		if _, err := svc.CreateEvent(ctx, alice.FirebaseUID, dto.CreateEventRequest{
			Title:    "Meetup",
			StartsAt: now.Add(offset),
		}); err != nil {
			t.Fatalf("CreateEvent: %v", err)
		}
	}

	list, err := svc.ListEvents(ctx, commonDto.PaginationQuery{})
	if err != nil {
		t.Fatalf("ListEvents: %v", err)
	}
	if len(list) != 2 {
		t.Fatalf("upcoming = %d, want 2", len(list))
	}
	if !list[0].StartsAt.Before(list[1].StartsAt) {
		t.Error("events should be soonest first")
	}
	if list[0].CreatedBy != alice.ID {
		t.Errorf("created_by = %s, want alice", list[0].CreatedBy)
	}
}
