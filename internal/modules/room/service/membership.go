package room

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/earnbuddy/backend/internal/entity"
	"github.com/earnbuddy/backend/internal/modules/room/dto"
	"github.com/earnbuddy/backend/internal/realtime"
	"github.com/earnbuddy/backend/pkg/apperror"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

var (
	errJoinPending   = apperror.New(http.StatusBadRequest, "join request already pending", apperror.ErrConflict)
	errAlreadyMember = apperror.New(http.StatusBadRequest, "already a member", apperror.ErrConflict)
	errNotMember     = apperror.New(http.StatusBadRequest, "not a member", apperror.ErrBadRequest)
	errCreatorLeave  = apperror.New(http.StatusBadRequest, "creator cannot leave, delete the circle instead", apperror.ErrBadRequest)
	errNotPending    = apperror.New(http.StatusBadRequest, "only pending requests can be reviewed", apperror.ErrBadRequest)
)

type membershipEvent struct {
	RoomID       uuid.UUID `json:"room_id"`
	UserID       uuid.UUID `json:"user_id"`
	MembershipID uuid.UUID `json:"membership_id"`
	Status       string    `json:"status"`
}

func eventFor(m *entity.RoomMembership) membershipEvent {
	return membershipEvent{
		RoomID:       m.RoomID,
		UserID:       m.UserID,
		MembershipID: m.ID,
		Status:       m.Status,
	}
}

func (s *service) JoinRoom(ctx context.Context, uid string, roomID uuid.UUID) (*entity.RoomMembership, error) {
	user, err := s.findUser(ctx, uid)
	if err != nil {
		return nil, err
	}
	room, err := s.findRoom(ctx, roomID)
	if err != nil {
		return nil, err
	}

	existing, err := s.Memberships.Find(ctx, room.ID, user.ID)
	switch {
	case err == nil:
		switch existing.Status {
		case entity.MembershipPending:
			return nil, errJoinPending
		case entity.MembershipAccepted:
			return nil, errAlreadyMember
		}
		// rejected rows are reused for the new request
		if err := s.Memberships.UpdateStatus(ctx, existing.ID, entity.MembershipPending); err != nil {
			return nil, fmt.Errorf("failed to update membership: %w", err)
		}
		existing.Status = entity.MembershipPending
		s.evictUserLists(ctx, user.ID)
		s.Bus.EmitGlobal(ctx, realtime.EventMembershipCreated, eventFor(existing))
		return existing, nil
	case !errors.Is(err, apperror.ErrNotFound):
		return nil, err
	}

	membership := &entity.RoomMembership{
		RoomID: room.ID,
		UserID: user.ID,
		Role:   entity.MemberRoleMember,
		Status: entity.MembershipPending,
	}
	created, err := s.Memberships.CreateIfAbsent(ctx, membership)
	if err != nil {
		return nil, fmt.Errorf("failed to create membership: %w", err)
	}
	if !created {
		return nil, errJoinPending
	}

	s.evictUserLists(ctx, user.ID)
	s.Bus.EmitGlobal(ctx, realtime.EventMembershipCreated, eventFor(membership))

	s.Notifier.Notify(ctx, &entity.Notification{
		UserID:  room.CreatedBy,
		ActorID: &user.ID,
		Type:    entity.NotificationJoinRequest,
		Title:   "New join request",
		Body:    fmt.Sprintf("%s wants to join %s", user.Name(), room.Name),
		Link:    circleLink(room.ID),
	})

	return membership, nil
}

func (s *service) GetPendingRequests(ctx context.Context, uid string, roomID uuid.UUID) ([]dto.MemberResponse, error) {
	user, err := s.findUser(ctx, uid)
	if err != nil {
		return nil, err
	}
	room, err := s.findRoom(ctx, roomID)
	if err != nil {
		return nil, err
	}
	allowed, err := s.canManage(ctx, room, user)
	if err != nil {
		return nil, err
	}
	if !allowed {
		return nil, fmt.Errorf("only the creator or an admin can view join requests: %w", apperror.ErrForbidden)
	}

	memberships, err := s.Memberships.ListByRoom(ctx, room.ID, entity.MembershipPending)
	if err != nil {
		return nil, err
	}
	return toMemberResponses(memberships), nil
}

func (s *service) UpdateMembershipStatus(ctx context.Context, uid string, roomID, userID uuid.UUID, status string) (*entity.RoomMembership, error) {
	if status != entity.MembershipAccepted && status != entity.MembershipRejected {
		return nil, apperror.New(http.StatusBadRequest, "status must be accepted or rejected", apperror.ErrBadRequest)
	}

	actor, err := s.findUser(ctx, uid)
	if err != nil {
		return nil, err
	}
	room, err := s.findRoom(ctx, roomID)
	if err != nil {
		return nil, err
	}
	allowed, err := s.canManage(ctx, room, actor)
	if err != nil {
		return nil, err
	}
	if !allowed {
		return nil, fmt.Errorf("only the creator or an admin can manage members: %w", apperror.ErrForbidden)
	}

	membership, err := s.Memberships.Find(ctx, room.ID, userID)
	if err != nil {
		return nil, fmt.Errorf("membership not found: %w", err)
	}
	// accepted rows leave through LeaveRoom so members_count stays in step
	switch {
	case membership.UserID == room.CreatedBy:
		return nil, errNotPending
	case membership.Status == entity.MembershipRejected:
		return nil, errNotPending
	case membership.Status == entity.MembershipAccepted && status == entity.MembershipRejected:
		return nil, errNotPending
	}

	if status == entity.MembershipRejected {
		if err := s.Memberships.UpdateStatus(ctx, membership.ID, status); err != nil {
			return nil, fmt.Errorf("failed to update membership: %w", err)
		}
		membership.Status = status
		s.evictUserLists(ctx, membership.UserID)
		s.Bus.EmitGlobal(ctx, realtime.EventMembershipUpdated, eventFor(membership))
		return membership, nil
	}

	promoted, err := s.Memberships.Promote(ctx, membership.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to update membership: %w", err)
	}
	membership.Status = entity.MembershipAccepted
	if !promoted {
		return membership, nil
	}

	if err := s.Rooms.IncrementMembers(ctx, room.ID, 1); err != nil {
		s.Logger.Error("failed to increment members count", zap.String("room_id", room.ID.String()), zap.Error(err))
	}

	member, err := s.Users.FindByID(ctx, membership.UserID)
	name := "A new member"
	if err == nil {
		name = member.Name()
	}
	s.postSystemMessage(ctx, room.ID, fmt.Sprintf("%s has joined the circle", name))

	s.evictUserLists(ctx, membership.UserID)
	s.Bus.EmitGlobal(ctx, realtime.EventMembershipUpdated, eventFor(membership))

	s.Notifier.Notify(ctx, &entity.Notification{
		UserID:  membership.UserID,
		ActorID: &actor.ID,
		Type:    entity.NotificationJoinApproved,
		Title:   "Join request approved",
		Body:    fmt.Sprintf("You are now a member of %s", room.Name),
		Link:    circleLink(room.ID),
	})

	return membership, nil
}

func (s *service) LeaveRoom(ctx context.Context, uid string, roomID uuid.UUID) error {
	user, err := s.findUser(ctx, uid)
	if err != nil {
		return err
	}
	room, err := s.findRoom(ctx, roomID)
	if err != nil {
		return err
	}
	if room.CreatedBy == user.ID {
		return errCreatorLeave
	}

	membership, err := s.Memberships.Find(ctx, room.ID, user.ID)
	if errors.Is(err, apperror.ErrNotFound) {
		return errNotMember
	}
	if err != nil {
		return err
	}
	if membership.Status != entity.MembershipAccepted {
		return errNotMember
	}

	if err := s.Memberships.Delete(ctx, membership.ID); err != nil {
		return fmt.Errorf("failed to leave room: %w", err)
	}
	if err := s.Rooms.IncrementMembers(ctx, room.ID, -1); err != nil {
		s.Logger.Error("failed to decrement members count", zap.String("room_id", room.ID.String()), zap.Error(err))
	}

	s.Bus.RevokeRoom(ctx, room.ID.String(), user.FirebaseUID)
	s.postSystemMessage(ctx, room.ID, fmt.Sprintf("%s has left the circle", user.Name()))

	s.Bus.EmitGlobal(ctx, realtime.EventMembershipUpdated, membershipEvent{
		RoomID:       room.ID,
		UserID:       user.ID,
		MembershipID: membership.ID,
		Status:       "left",
	})
	s.evictUserLists(ctx, user.ID)
	return nil
}
