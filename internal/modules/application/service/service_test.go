package application

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/earnbuddy/backend/internal/entity"
	"github.com/earnbuddy/backend/internal/modules/application/dto"
	"github.com/earnbuddy/backend/internal/realtime"
	"github.com/earnbuddy/backend/internal/testutil"
	"github.com/earnbuddy/backend/pkg/apperror"
	"github.com/earnbuddy/backend/pkg/cache"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

type fixture struct {
	svc           Service
	opportunities *testutil.Opportunities
	applications  *testutil.Applications
	rooms         *testutil.Rooms
	memberships   *testutil.Memberships
	bus           *testutil.Bus
	notifier      *testutil.Notifier
	poster        *entity.User
	applicant     *entity.User
	room          *entity.Room
	opportunity   *entity.Opportunity
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	poster := testutil.NewUser("uid-poster", "Poster")
	applicant := testutil.NewUser("uid-applicant", "Applicant")
	room := &entity.Room{
		Name:         "Startup circle",
		Slug:         "startup-circle",
		CreatedBy:    poster.ID,
		MembersCount: 1,
		Type:         entity.RoomTypeOpportunity,
	}
	rooms := testutil.NewRooms(room)
	total := 0
	opportunity := &entity.Opportunity{
		Title:           "Startup",
		Kind:            entity.OpportunityKindStartup,
		PostedBy:        poster.ID,
		RoomID:          &room.ID,
		TotalApplicants: &total,
	}

	f := &fixture{
		opportunities: testutil.NewOpportunities(opportunity),
		applications:  testutil.NewApplications(),
		rooms:         rooms,
		memberships:   testutil.NewMemberships(),
		bus:           &testutil.Bus{},
		notifier:      &testutil.Notifier{},
		poster:        poster,
		applicant:     applicant,
		room:          room,
		opportunity:   opportunity,
	}
	f.svc = NewService(
		testutil.NewUsers(poster, applicant),
		f.opportunities,
		f.applications,
		f.rooms,
		f.memberships,
		cache.NewMemoryCache(),
		f.bus,
		f.notifier,
		zap.NewNop(),
	)
	return f
}

func (f *fixture) apply(t *testing.T, message string) *entity.Application {
	t.Helper()
	raw, _ := json.Marshal(message)
	app, err := f.svc.Apply(context.Background(), f.applicant.FirebaseUID, dto.ApplyRequest{
		OpportunityID: f.opportunity.ID.String(),
		Message:       raw,
	})
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}
	return app
}

func TestApply(t *testing.T) {
	f := newFixture(t)
	app := f.apply(t, `{"coverLetter":"Hire me","github":"gh/me"}`)

	if app.Status != entity.ApplicationPending {
		t.Errorf("status = %q, want pending", app.Status)
	}
	if app.Message != "Hire me" {
		t.Errorf("message = %q, want cover letter", app.Message)
	}
	if len(app.Details) == 0 {
		t.Error("expected structured details")
	}

	opp, _ := f.opportunities.FindByID(context.Background(), f.opportunity.ID)
	if len(opp.Applicants) != 1 || opp.Applicants[0] != f.applicant.ID {
		t.Errorf("applicants = %v, want [%s]", opp.Applicants, f.applicant.ID)
	}
	if opp.TotalApplicants == nil || *opp.TotalApplicants != 1 {
		t.Errorf("total_applicants = %v, want 1", opp.TotalApplicants)
	}

	sent := f.notifier.Sent()
	if len(sent) != 1 || sent[0].UserID != f.poster.ID || sent[0].Type != entity.NotificationNewApplication {
		t.Errorf("notifications = %+v, want new_application to poster", sent)
	}
	if f.bus.Count(realtime.EventApplicationCreated) != 1 {
		t.Error("application_created was not emitted")
	}
}

func TestApply_DuplicateIsConflict(t *testing.T) {
	f := newFixture(t)
	f.apply(t, "first")

	raw, _ := json.Marshal("second")
	_, err := f.svc.Apply(context.Background(), f.applicant.FirebaseUID, dto.ApplyRequest{
		OpportunityID: f.opportunity.ID.String(),
		Message:       raw,
	})
	if !errors.Is(err, apperror.ErrConflict) {
		t.Fatalf("err = %v, want conflict", err)
	}
	if err.Error() != "already applied" {
		t.Errorf("err = %q, want already applied", err.Error())
	}
}

func TestApply_UnknownOpportunity(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.Apply(context.Background(), f.applicant.FirebaseUID, dto.ApplyRequest{
		OpportunityID: uuid.NewString(),
	})
	if !errors.Is(err, apperror.ErrNotFound) {
		t.Fatalf("err = %v, want not found", err)
	}
}

func TestApply_UnknownRole(t *testing.T) {
	f := newFixture(t)
	f.opportunity.Roles = []entity.OpportunityRole{{ID: "backend", Title: "Backend"}}
	role := "designer"

	_, err := f.svc.Apply(context.Background(), f.applicant.FirebaseUID, dto.ApplyRequest{
		OpportunityID: f.opportunity.ID.String(),
		RoleID:        &role,
	})
	if !errors.Is(err, apperror.ErrBadRequest) {
		t.Fatalf("err = %v, want bad request", err)
	}
}

func TestUpdateStatus_AcceptJoinsCircleOnce(t *testing.T) {
	f := newFixture(t)
	app := f.apply(t, "hello")
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		if _, err := f.svc.UpdateStatus(ctx, f.poster.FirebaseUID, app.ID, entity.ApplicationAccepted); err != nil {
			t.Fatalf("accept #%d: %v", i+1, err)
		}
	}

	m, err := f.memberships.Find(ctx, f.room.ID, f.applicant.ID)
	if err != nil {
		t.Fatalf("membership missing: %v", err)
	}
	if m.Status != entity.MembershipAccepted || m.Role != entity.MemberRoleMember {
		t.Errorf("membership = %s/%s, want member/accepted", m.Role, m.Status)
	}
	if n := f.memberships.CountFor(f.room.ID); n != 1 {
		t.Errorf("memberships = %d, want 1", n)
	}

	room, _ := f.rooms.FindByID(ctx, f.room.ID)
	if room.MembersCount != 2 {
		t.Errorf("members_count = %d, want 2", room.MembersCount)
	}
	if got := f.bus.Count(realtime.EventMembershipCreated); got != 1 {
		t.Errorf("membership_created emitted %d times, want 1", got)
	}

	last := f.notifier.Sent()[len(f.notifier.Sent())-1]
	if last.Type != entity.NotificationApplicationAccepted || last.UserID != f.applicant.ID {
		t.Errorf("last notification = %+v, want application_accepted to applicant", last)
	}
}

func TestUpdateStatus_AcceptPromotesPendingMembership(t *testing.T) {
	f := newFixture(t)
	app := f.apply(t, "hello")
	ctx := context.Background()

	pending := &entity.RoomMembership{
		RoomID: f.room.ID,
		UserID: f.applicant.ID,
		Role:   entity.MemberRoleMember,
		Status: entity.MembershipPending,
	}
	if _, err := f.memberships.CreateIfAbsent(ctx, pending); err != nil {
		t.Fatalf("seed membership: %v", err)
	}

	if _, err := f.svc.UpdateStatus(ctx, f.poster.FirebaseUID, app.ID, entity.ApplicationAccepted); err != nil {
		t.Fatalf("accept: %v", err)
	}
	m, _ := f.memberships.Find(ctx, f.room.ID, f.applicant.ID)
	if m.ID != pending.ID || m.Status != entity.MembershipAccepted {
		t.Errorf("membership = %s/%s, want promoted existing row", m.ID, m.Status)
	}
}

func TestUpdateStatus_Interviewing(t *testing.T) {
	f := newFixture(t)
	app := f.apply(t, "hello")

	got, err := f.svc.UpdateStatus(context.Background(), f.poster.FirebaseUID, app.ID, entity.ApplicationInterviewing)
	if err != nil {
		t.Fatalf("UpdateStatus: %v", err)
	}
	if got.Status != entity.ApplicationInterviewing {
		t.Errorf("status = %q, want interviewing", got.Status)
	}
	if n := f.memberships.CountFor(f.room.ID); n != 0 {
		t.Errorf("memberships = %d, want none before acceptance", n)
	}
	last := f.notifier.Sent()[len(f.notifier.Sent())-1]
	if last.Type != entity.NotificationApplicationUpdate {
		t.Errorf("notification type = %q, want application_update", last.Type)
	}
}

func TestUpdateStatus_Validation(t *testing.T) {
	f := newFixture(t)
	app := f.apply(t, "hello")
	ctx := context.Background()

	if _, err := f.svc.UpdateStatus(ctx, f.poster.FirebaseUID, app.ID, "pending"); !errors.Is(err, apperror.ErrBadRequest) {
		t.Errorf("pending err = %v, want bad request", err)
	}
	if _, err := f.svc.UpdateStatus(ctx, f.applicant.FirebaseUID, app.ID, entity.ApplicationAccepted); !errors.Is(err, apperror.ErrForbidden) {
		t.Errorf("non-poster err = %v, want forbidden", err)
	}
	if _, err := f.svc.UpdateStatus(ctx, f.poster.FirebaseUID, uuid.New(), entity.ApplicationAccepted); !errors.Is(err, apperror.ErrNotFound) {
		t.Errorf("missing application err = %v, want not found", err)
	}
}

func TestGetApplicationsForOpportunity_PosterOnly(t *testing.T) {
	f := newFixture(t)
	f.apply(t, "hello")
	ctx := context.Background()

	list, err := f.svc.GetApplicationsForOpportunity(ctx, f.poster.FirebaseUID, f.opportunity.ID)
	if err != nil {
		t.Fatalf("GetApplicationsForOpportunity: %v", err)
	}
	if len(list) != 1 || list[0].Applicant.ID != f.applicant.ID {
		t.Errorf("applicants = %+v, want the one applicant", list)
	}

	if _, err := f.svc.GetApplicationsForOpportunity(ctx, f.applicant.FirebaseUID, f.opportunity.ID); !errors.Is(err, apperror.ErrForbidden) {
		t.Errorf("err = %v, want forbidden", err)
	}
}

func TestGetMyApplications_EmptyIsNotNil(t *testing.T) {
	f := newFixture(t)
	apps, err := f.svc.GetMyApplications(context.Background(), f.applicant.FirebaseUID)
	if err != nil {
		t.Fatalf("GetMyApplications: %v", err)
	}
	if apps == nil || len(apps) != 0 {
		t.Errorf("apps = %v, want empty slice", apps)
	}
}
