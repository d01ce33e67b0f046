package room

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/earnbuddy/backend/internal/entity"
	"github.com/earnbuddy/backend/internal/modules/room/dto"
	roomRepo "github.com/earnbuddy/backend/internal/modules/room/repository"
	"github.com/earnbuddy/backend/internal/realtime"
	"github.com/earnbuddy/backend/pkg/apperror"
	"github.com/earnbuddy/backend/pkg/storage"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

var errSlugTaken = apperror.New(http.StatusBadRequest, "slug already taken", apperror.ErrConflict)

func (s *service) CreateRoom(ctx context.Context, uid string, req dto.CreateRoomRequest) (*entity.Room, error) {
	user, err := s.findUser(ctx, uid)
	if err != nil {
		return nil, err
	}

	var slug string
	if req.Slug != "" {
		slug = Slugify(req.Slug)
		if slug == "" {
			return nil, apperror.New(http.StatusBadRequest, "invalid slug", apperror.ErrBadRequest)
		}
		_, err := s.Rooms.FindBySlug(ctx, slug)
		if err == nil {
			return nil, errSlugTaken
		}
		if !errors.Is(err, apperror.ErrNotFound) {
			return nil, err
		}
	} else {
		slug, err = s.uniqueSlug(ctx, req.Name)
		if err != nil {
			return nil, err
		}
	}

	roomType := req.Type
	if roomType == "" {
		roomType = entity.RoomTypeCommunity
	}

	room := &entity.Room{
		Name:         req.Name,
		Slug:         slug,
		Description:  req.Description,
		Avatar:       req.AvatarURL(),
		IsPrivate:    req.IsPrivate,
		CreatedBy:    user.ID,
		MembersCount: 1,
		Type:         roomType,
	}
	if err := s.Rooms.Create(ctx, room); err != nil {
		if errors.Is(err, apperror.ErrConflict) {
			return nil, errSlugTaken
		}
		return nil, fmt.Errorf("failed to create room: %w", err)
	}

	// no transaction: a failure here leaves a room without members
	creator := &entity.RoomMembership{
		RoomID: room.ID,
		UserID: user.ID,
		Role:   entity.MemberRoleAdmin,
		Status: entity.MembershipAccepted,
	}
	if _, err := s.Memberships.CreateIfAbsent(ctx, creator); err != nil {
		return nil, fmt.Errorf("failed to create creator membership: %w", err)
	}

	room.Creator = user
	s.evictAllLists(ctx)
	s.Bus.EmitGlobal(ctx, realtime.EventRoomCreated, room)
	s.indexRoom(ctx, room)

	return room, nil
}

func (s *service) GetRooms(ctx context.Context, uid string, query dto.ListRoomsQuery) ([]dto.RoomResponse, error) {
	filter := roomRepo.RoomFilter{Type: query.Type}

	user, err := s.Users.FindByFirebaseUID(ctx, uid)
	if err != nil {
		if !errors.Is(err, apperror.ErrNotFound) {
			return nil, err
		}
		rooms, err := s.Rooms.ListPublic(ctx, filter)
		if err != nil {
			return nil, err
		}
		out := make([]dto.RoomResponse, 0, len(rooms))
		for _, r := range rooms {
			out = append(out, dto.RoomResponse{Room: r})
		}
		return out, nil
	}

	key := listCacheKey(user.ID, query.Type)
	var cached []dto.RoomResponse
	if hit, err := s.Cache.Get(ctx, key, &cached); err != nil {
		s.Logger.Warn("room listing cache read failed", zap.String("key", key), zap.Error(err))
	} else if hit {
		return cached, nil
	}

	rooms, err := s.Rooms.ListPublic(ctx, filter)
	if err != nil {
		return nil, err
	}
	memberships, err := s.Memberships.ListByUser(ctx, user.ID)
	if err != nil {
		return nil, err
	}
	status := make(map[uuid.UUID]string, len(memberships))
	for _, m := range memberships {
		status[m.RoomID] = m.Status
	}

	out := make([]dto.RoomResponse, 0, len(rooms))
	for _, r := range rooms {
		out = append(out, dto.RoomResponse{
			Room:              r,
			IsMember:          r.CreatedBy == user.ID || status[r.ID] == entity.MembershipAccepted,
			HasPendingRequest: status[r.ID] == entity.MembershipPending,
		})
	}

	if err := s.Cache.Set(ctx, key, out, s.ListTTL); err != nil {
		s.Logger.Warn("room listing cache write failed", zap.String("key", key), zap.Error(err))
	}
	return out, nil
}

func (s *service) GetMyRooms(ctx context.Context, uid string) ([]dto.MyRoomResponse, error) {
	user, err := s.findUser(ctx, uid)
	if err != nil {
		return nil, err
	}

	memberships, err := s.Memberships.ListByUser(ctx, user.ID)
	if err != nil {
		return nil, err
	}
	roles := make(map[uuid.UUID]string)
	ids := make([]uuid.UUID, 0, len(memberships))
	for _, m := range memberships {
		if m.Status != entity.MembershipAccepted {
			continue
		}
		roles[m.RoomID] = m.Role
		ids = append(ids, m.RoomID)
	}

	// rooms missing here were deleted under a dangling membership
	rooms, err := s.Rooms.FindByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}
	found := make([]uuid.UUID, 0, len(rooms))
	for _, r := range rooms {
		found = append(found, r.ID)
	}
	uids, err := s.Memberships.MemberUIDs(ctx, found)
	if err != nil {
		return nil, err
	}

	out := make([]dto.MyRoomResponse, 0, len(rooms))
	for _, r := range rooms {
		resp := dto.MyRoomResponse{
			Room:       r,
			MemberUIDs: uids[r.ID],
			MyRole:     roles[r.ID],
		}
		if resp.MemberUIDs == nil {
			resp.MemberUIDs = []string{}
		}
		if r.Creator != nil {
			resp.CreatorUID = r.Creator.FirebaseUID
		}
		out = append(out, resp)
	}
	return out, nil
}

func (s *service) UpdateRoom(ctx context.Context, uid string, roomID uuid.UUID, req dto.UpdateRoomRequest) (*entity.Room, error) {
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
		return nil, fmt.Errorf("only the creator or an admin can update this circle: %w", apperror.ErrForbidden)
	}

	updates := map[string]any{}
	if req.Name != nil {
		updates["name"] = *req.Name
		room.Name = *req.Name
	}
	if req.Description != nil {
		updates["description"] = *req.Description
		room.Description = *req.Description
	}
	if req.Avatar != nil {
		updates["avatar"] = *req.Avatar
		room.Avatar = *req.Avatar
	}
	if req.Slug != nil && Slugify(*req.Slug) != room.Slug {
		slug := Slugify(*req.Slug)
		if slug == "" {
			return nil, apperror.New(http.StatusBadRequest, "invalid slug", apperror.ErrBadRequest)
		}
		existing, err := s.Rooms.FindBySlug(ctx, slug)
		if err == nil && existing.ID != room.ID {
			return nil, errSlugTaken
		}
		if err != nil && !errors.Is(err, apperror.ErrNotFound) {
			return nil, err
		}
		updates["slug"] = slug
		room.Slug = slug
	}

	if err := s.Rooms.Update(ctx, room.ID, updates); err != nil {
		if errors.Is(err, apperror.ErrConflict) {
			return nil, errSlugTaken
		}
		return nil, fmt.Errorf("failed to update room: %w", err)
	}

	s.evictAllLists(ctx)
	s.indexRoom(ctx, room)
	return room, nil
}

func (s *service) DeleteRoom(ctx context.Context, uid string, roomID uuid.UUID) error {
	user, err := s.findUser(ctx, uid)
	if err != nil {
		return err
	}
	room, err := s.findRoom(ctx, roomID)
	if err != nil {
		return err
	}
	if room.CreatedBy != user.ID {
		return fmt.Errorf("only the creator can delete this circle: %w", apperror.ErrForbidden)
	}

	if err := s.Rooms.Delete(ctx, room.ID); err != nil {
		return fmt.Errorf("failed to delete room: %w", err)
	}
	s.Bus.RevokeRoom(ctx, room.ID.String(), "")

	if s.Indexer != nil {
		s.Indexer.RemoveRoom(ctx, room.ID)
	}
	s.evictAllLists(ctx)

	if s.Storage != nil && storage.IsHosted(room.Avatar) {
		if err := s.Storage.DeleteImage(ctx, room.Avatar); err != nil {
			s.Logger.Warn("failed to delete room avatar", zap.String("room_id", room.ID.String()), zap.Error(err))
		}
	}
	return nil
}

func (s *service) GetOnlineMembers(ctx context.Context, roomID uuid.UUID) (*dto.OnlineMembersResponse, error) {
	if _, err := s.findRoom(ctx, roomID); err != nil {
		return nil, err
	}

	online := []string{}
	if s.Presence != nil {
		online = append(online, s.Presence.Presence(roomID.String())...)
	}
	return &dto.OnlineMembersResponse{
		RoomID: roomID.String(),
		Online: online,
		Count:  len(online),
	}, nil
}

func (s *service) GetRoomMembers(ctx context.Context, roomID uuid.UUID) ([]dto.MemberResponse, error) {
	if _, err := s.findRoom(ctx, roomID); err != nil {
		return nil, err
	}
	memberships, err := s.Memberships.ListByRoom(ctx, roomID, entity.MembershipAccepted)
	if err != nil {
		return nil, err
	}
	return toMemberResponses(memberships), nil
}

func (s *service) CanAccessRoom(ctx context.Context, uid string, roomID uuid.UUID) (bool, error) {
	user, err := s.Users.FindByFirebaseUID(ctx, uid)
	if errors.Is(err, apperror.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	room, err := s.Rooms.FindByID(ctx, roomID)
	if errors.Is(err, apperror.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return s.isMember(ctx, room, user)
}

func toMemberResponses(memberships []*entity.RoomMembership) []dto.MemberResponse {
	out := make([]dto.MemberResponse, 0, len(memberships))
	for _, m := range memberships {
		resp := dto.MemberResponse{
			MembershipID: m.ID,
			Role:         m.Role,
			Status:       m.Status,
			JoinedAt:     m.CreatedAt,
		}
		if m.User != nil {
			resp.User = m.User.Summary()
		} else {
			resp.User.ID = m.UserID
		}
		out = append(out, resp)
	}
	return out
}
