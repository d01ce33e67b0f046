package collaboration

import (
	"context"
	"errors"
	"testing"

	"github.com/earnbuddy/backend/internal/entity"
	"github.com/earnbuddy/backend/internal/modules/collaboration/dto"
	"github.com/earnbuddy/backend/internal/realtime"
	"github.com/earnbuddy/backend/internal/testutil"
	"github.com/earnbuddy/backend/pkg/apperror"
	"github.com/earnbuddy/backend/pkg/cache"
	"go.uber.org/zap"
)

type fixture struct {
	svc         Service
	rooms       *testutil.Rooms
	memberships *testutil.Memberships
	requests    *testutil.Collaborations
	bus         *testutil.Bus
	notifier    *testutil.Notifier
	alice, bob  *entity.User
	design, dev *entity.Room
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	alice := testutil.NewUser("uid-alice", "Alice")
	bob := testutil.NewUser("uid-bob", "Bob")
	design := &entity.Room{Name: "Design", Slug: "design", CreatedBy: alice.ID, MembersCount: 1, Type: entity.RoomTypeCommunity}
	dev := &entity.Room{Name: "Dev", Slug: "dev", CreatedBy: bob.ID, MembersCount: 1, Type: entity.RoomTypeCommunity}
	rooms := testutil.NewRooms(design, dev)

	f := &fixture{
		rooms:       rooms,
		memberships: testutil.NewMemberships(),
		requests:    testutil.NewCollaborations(rooms),
		bus:         &testutil.Bus{},
		notifier:    &testutil.Notifier{},
		alice:       alice,
		bob:         bob,
		design:      design,
		dev:         dev,
	}
	f.svc = NewService(
		testutil.NewUsers(alice, bob),
		f.requests,
		f.rooms,
		f.memberships,
		cache.NewMemoryCache(),
		f.bus,
		f.notifier,
		zap.NewNop(),
	)
	return f
}

func (f *fixture) send(t *testing.T) *entity.CollaborationRequest {
	t.Helper()
	req, err := f.svc.SendRequest(context.Background(), f.alice.FirebaseUID, dto.SendRequest{
		FromCircleID: f.design.ID.String(),
		ToCircleID:   f.dev.ID.String(),
		Message:      "let's build together",
	})
	if err != nil {
		t.Fatalf("SendRequest: %v", err)
	}
	return req
}

func TestSendRequest(t *testing.T) {
	f := newFixture(t)
	req := f.send(t)

	if req.Status != entity.CollabPending {
		t.Errorf("status = %q, want pending", req.Status)
	}
	if req.FromOwnerID != f.alice.ID || req.ToOwnerID != f.bob.ID {
		t.Errorf("owners = %s -> %s, want alice -> bob", req.FromOwnerID, req.ToOwnerID)
	}
	sent := f.notifier.Sent()
	if len(sent) != 1 || sent[0].UserID != f.bob.ID || sent[0].Type != entity.NotificationCollabRequest {
		t.Errorf("notifications = %+v, want collab_request to bob", sent)
	}
}

func TestSendRequest_Validation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.SendRequest(ctx, f.alice.FirebaseUID, dto.SendRequest{
		FromCircleID: f.design.ID.String(),
		ToCircleID:   f.design.ID.String(),
	})
	if !errors.Is(err, errSameCircle) {
		t.Errorf("same circle err = %v", err)
	}

	_, err = f.svc.SendRequest(ctx, f.bob.FirebaseUID, dto.SendRequest{
		FromCircleID: f.design.ID.String(),
		ToCircleID:   f.dev.ID.String(),
	})
	if !errors.Is(err, apperror.ErrForbidden) {
		t.Errorf("non-admin err = %v, want forbidden", err)
	}
}

func TestSendRequest_DedupIsOneDirectional(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.send(t)

	_, err := f.svc.SendRequest(ctx, f.alice.FirebaseUID, dto.SendRequest{
		FromCircleID: f.design.ID.String(),
		ToCircleID:   f.dev.ID.String(),
	})
	if !errors.Is(err, apperror.ErrConflict) {
		t.Fatalf("repeat err = %v, want conflict", err)
	}

	// the reverse direction is not deduplicated
	if _, err := f.svc.SendRequest(ctx, f.bob.FirebaseUID, dto.SendRequest{
		FromCircleID: f.dev.ID.String(),
		ToCircleID:   f.design.ID.String(),
	}); err != nil {
		t.Fatalf("reverse request: %v", err)
	}
}

func TestAccept_CreatesCollabRoom(t *testing.T) {
	f := newFixture(t)
	req := f.send(t)
	ctx := context.Background()

	collab, err := f.svc.Accept(ctx, f.bob.FirebaseUID, req.ID)
	if err != nil {
		t.Fatalf("Accept: %v", err)
	}
	if collab.Name != "Design x Dev" {
		t.Errorf("name = %q, want Design x Dev", collab.Name)
	}
	if collab.Type != entity.RoomTypeCollab || collab.MembersCount != 2 {
		t.Errorf("room = %s/%d, want collab/2", collab.Type, collab.MembersCount)
	}
	if len(collab.Collaborators) != 2 {
		t.Errorf("collaborators = %v, want both owners", collab.Collaborators)
	}

	for _, owner := range []*entity.User{f.alice, f.bob} {
		m, err := f.memberships.Find(ctx, collab.ID, owner.ID)
		if err != nil {
			t.Fatalf("%s has no membership: %v", owner.DisplayName, err)
		}
		if m.Role != entity.MemberRoleAdmin || m.Status != entity.MembershipAccepted {
			t.Errorf("%s membership = %s/%s, want admin/accepted", owner.DisplayName, m.Role, m.Status)
		}
	}

	stored, _ := f.requests.FindByID(ctx, req.ID)
	if stored.Status != entity.CollabAccepted || stored.ResultRoomID == nil || *stored.ResultRoomID != collab.ID {
		t.Errorf("request = %s/%v, want accepted with result room", stored.Status, stored.ResultRoomID)
	}
	if f.bus.Count(realtime.EventRoomCreated) != 1 {
		t.Error("room_created was not emitted")
	}

	last := f.notifier.Sent()[len(f.notifier.Sent())-1]
	if last.Type != entity.NotificationCollabAccepted || last.UserID != f.alice.ID {
		t.Errorf("last notification = %+v, want collab_accepted to alice", last)
	}
	if last.Link != "/circles/"+collab.ID.String() {
		t.Errorf("link = %q", last.Link)
	}
}

func TestAccept_SecondTimeIsProcessed(t *testing.T) {
	f := newFixture(t)
	req := f.send(t)
	ctx := context.Background()

	if _, err := f.svc.Accept(ctx, f.bob.FirebaseUID, req.ID); err != nil {
		t.Fatalf("Accept: %v", err)
	}
	rooms := f.rooms.Count()

	_, err := f.svc.Accept(ctx, f.bob.FirebaseUID, req.ID)
	if !errors.Is(err, errProcessed) {
		t.Fatalf("second accept err = %v, want already processed", err)
	}
	if f.rooms.Count() != rooms {
		t.Errorf("rooms = %d, want %d", f.rooms.Count(), rooms)
	}
	if err := f.svc.Reject(ctx, f.bob.FirebaseUID, req.ID); !errors.Is(err, errProcessed) {
		t.Errorf("reject after accept err = %v, want already processed", err)
	}
}

func TestAccept_OnlyRecipient(t *testing.T) {
	f := newFixture(t)
	req := f.send(t)

	_, err := f.svc.Accept(context.Background(), f.alice.FirebaseUID, req.ID)
	if !errors.Is(err, apperror.ErrForbidden) {
		t.Fatalf("err = %v, want forbidden", err)
	}
}

func TestReject(t *testing.T) {
	f := newFixture(t)
	req := f.send(t)
	ctx := context.Background()

	if err := f.svc.Reject(ctx, f.bob.FirebaseUID, req.ID); err != nil {
		t.Fatalf("Reject: %v", err)
	}
	stored, _ := f.requests.FindByID(ctx, req.ID)
	if stored.Status != entity.CollabRejected {
		t.Errorf("status = %q, want rejected", stored.Status)
	}
	last := f.notifier.Sent()[len(f.notifier.Sent())-1]
	if last.Type != entity.NotificationCollabRejected {
		t.Errorf("notification type = %q, want collab_rejected", last.Type)
	}

	pending, err := f.svc.GetPending(ctx, f.bob.FirebaseUID)
	if err != nil {
		t.Fatalf("GetPending: %v", err)
	}
	if len(pending) != 0 {
		t.Errorf("pending = %d, want 0", len(pending))
	}
}

func TestSendRequest_OwnTargetCircle(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	ops := &entity.Room{Name: "Ops", Slug: "ops", CreatedBy: f.alice.ID, MembersCount: 1, Type: entity.RoomTypeCommunity}
	if err := f.rooms.Create(ctx, ops); err != nil {
		t.Fatalf("create room: %v", err)
	}

	_, err := f.svc.SendRequest(ctx, f.alice.FirebaseUID, dto.SendRequest{
		FromCircleID: f.design.ID.String(),
		ToCircleID:   ops.ID.String(),
	})
	if !errors.Is(err, errOwnCircle) {
		t.Fatalf("err = %v, want own circle error", err)
	}
	if len(f.notifier.Sent()) != 0 {
		t.Error("notification sent for a rejected request")
	}
}

func TestAccept_SameOwnerCountsOnce(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	ops := &entity.Room{Name: "Ops", Slug: "ops", CreatedBy: f.alice.ID, MembersCount: 1, Type: entity.RoomTypeCommunity}
	if err := f.rooms.Create(ctx, ops); err != nil {
		t.Fatalf("create room: %v", err)
	}
	req := &entity.CollaborationRequest{
		FromCircleID: f.design.ID,
		ToCircleID:   ops.ID,
		FromOwnerID:  f.alice.ID,
		ToOwnerID:    f.alice.ID,
		Status:       entity.CollabPending,
	}
	if err := f.requests.Create(ctx, req); err != nil {
		t.Fatalf("create request: %v", err)
	}

	collab, err := f.svc.Accept(ctx, f.alice.FirebaseUID, req.ID)
	if err != nil {
		t.Fatalf("Accept: %v", err)
	}
	if collab.MembersCount != 1 {
		t.Errorf("members_count = %d, want 1", collab.MembersCount)
	}
	if len(collab.Collaborators) != 1 {
		t.Errorf("collaborators = %v, want one owner", collab.Collaborators)
	}
	if n := f.memberships.CountFor(collab.ID); n != collab.MembersCount {
		t.Errorf("memberships = %d, members_count = %d", n, collab.MembersCount)
	}
}
