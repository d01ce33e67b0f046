package service

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/earnbuddy/backend/internal/entity"
	"github.com/earnbuddy/backend/internal/realtime"
	"github.com/earnbuddy/backend/internal/testutil"
	"github.com/earnbuddy/backend/pkg/apperror"
	commonDto "github.com/earnbuddy/backend/pkg/dto"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

type memoryRepo struct {
	mu    sync.Mutex
	items []*entity.Notification
}

func (r *memoryRepo) Create(_ context.Context, n *entity.Notification) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if n.ID == uuid.Nil {
		n.ID = uuid.New()
	}
	r.items = append(r.items, n)
	return nil
}

func (r *memoryRepo) GetByUserID(_ context.Context, userID uuid.UUID, limit, offset int) ([]entity.Notification, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []entity.Notification
	for i := len(r.items) - 1; i >= 0; i-- {
		if r.items[i].UserID == userID {
			out = append(out, *r.items[i])
		}
	}
	if offset >= len(out) {
		return nil, nil
	}
	out = out[offset:]
	if limit < len(out) {
		out = out[:limit]
	}
	return out, nil
}

func (r *memoryRepo) MarkAsRead(_ context.Context, id, userID uuid.UUID) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, n := range r.items {
		if n.ID == id && n.UserID == userID {
			n.IsRead = true
			return true, nil
		}
	}
	return false, nil
}

func (r *memoryRepo) MarkAllAsRead(_ context.Context, userID uuid.UUID) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	for _, item := range r.items {
		if item.UserID == userID && !item.IsRead {
			item.IsRead = true
			n++
		}
	}
	return n, nil
}

func (r *memoryRepo) count(userID uuid.UUID, unreadOnly bool) int64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	for _, item := range r.items {
		if item.UserID == userID && (!unreadOnly || !item.IsRead) {
			n++
		}
	}
	return n
}

func (r *memoryRepo) CountUnread(_ context.Context, userID uuid.UUID) (int64, error) {
	return r.count(userID, true), nil
}

func (r *memoryRepo) CountByUserID(_ context.Context, userID uuid.UUID) (int64, error) {
	return r.count(userID, false), nil
}

func newTestService(t *testing.T) (NotificationService, *memoryRepo, *testutil.Bus, *entity.User) {
	t.Helper()
	alice := testutil.NewUser("uid-alice", "Alice")
	repo := &memoryRepo{}
	bus := &testutil.Bus{}
	svc := NewNotificationService(repo, testutil.NewUsers(alice), bus, zap.NewNop())
	return svc, repo, bus, alice
}

func TestNotify_PersistsAndEmitsToRecipient(t *testing.T) {
	svc, repo, bus, alice := newTestService(t)

	svc.Notify(context.Background(), &entity.Notification{
		UserID: alice.ID,
		Type:   entity.NotificationJoinRequest,
		Title:  "New join request",
	})

	if len(repo.items) != 1 {
		t.Fatalf("stored = %d, want 1", len(repo.items))
	}
	emissions := bus.Emissions()
	if len(emissions) != 1 {
		t.Fatalf("emissions = %d, want 1", len(emissions))
	}
	e := emissions[0]
	if e.Scope != "user" || e.Target != alice.FirebaseUID || e.Event != realtime.EventNotificationNew {
		t.Errorf("emission = %+v, want notification:new to %s", e, alice.FirebaseUID)
	}
}

func TestNotify_UnknownRecipientIsSwallowed(t *testing.T) {
	svc, repo, bus, _ := newTestService(t)

	svc.Notify(context.Background(), &entity.Notification{UserID: uuid.New(), Type: "x"})

	if len(repo.items) != 0 || len(bus.Events()) != 0 {
		t.Error("notification for unknown recipient should be dropped")
	}
}

func TestGetNotifications(t *testing.T) {
	svc, _, _, alice := newTestService(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if err := svc.CreateNotification(ctx, &entity.Notification{UserID: alice.ID, Type: "t"}); err != nil {
			t.Fatalf("CreateNotification: %v", err)
		}
	}

	resp, err := svc.GetNotifications(ctx, alice.FirebaseUID, commonDto.PaginationQuery{Limit: 2})
	if err != nil {
		t.Fatalf("GetNotifications: %v", err)
	}
	if len(resp.Data) != 2 {
		t.Errorf("page = %d, want 2", len(resp.Data))
	}
	if resp.Meta.Total != 3 || resp.Unread != 3 {
		t.Errorf("total/unread = %d/%d, want 3/3", resp.Meta.Total, resp.Unread)
	}
}

func TestMarkAsRead(t *testing.T) {
	svc, repo, _, alice := newTestService(t)
	ctx := context.Background()

	n := &entity.Notification{UserID: alice.ID, Type: "t"}
	if err := svc.CreateNotification(ctx, n); err != nil {
		t.Fatalf("CreateNotification: %v", err)
	}
	if err := svc.MarkAsRead(ctx, alice.FirebaseUID, n.ID); err != nil {
		t.Fatalf("MarkAsRead: %v", err)
	}
	if !repo.items[0].IsRead {
		t.Error("notification not marked read")
	}
	if err := svc.MarkAsRead(ctx, alice.FirebaseUID, uuid.New()); !errors.Is(err, apperror.ErrNotFound) {
		t.Errorf("unknown id err = %v, want not found", err)
	}
}

func TestMarkAllAsRead(t *testing.T) {
	svc, _, _, alice := newTestService(t)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		_ = svc.CreateNotification(ctx, &entity.Notification{UserID: alice.ID, Type: "t"})
	}
	updated, err := svc.MarkAllAsRead(ctx, alice.FirebaseUID)
	if err != nil {
		t.Fatalf("MarkAllAsRead: %v", err)
	}
	if updated != 2 {
		t.Errorf("updated = %d, want 2", updated)
	}

	unread, err := svc.UnreadCount(ctx, alice.FirebaseUID)
	if err != nil {
		t.Fatalf("UnreadCount: %v", err)
	}
	if unread != 0 {
		t.Errorf("unread = %d, want 0", unread)
	}
}

func TestGetNotifications_EmptyIsNotNil(t *testing.T) {
	svc, _, _, alice := newTestService(t)
	resp, err := svc.GetNotifications(context.Background(), alice.FirebaseUID, commonDto.PaginationQuery{})
	if err != nil {
		t.Fatalf("GetNotifications: %v", err)
	}
	if resp.Data == nil {
		t.Error("expected empty slice")
	}
	if resp.Meta.Limit != 20 {
		t.Errorf("limit = %d, want default 20", resp.Meta.Limit)
	}
}
