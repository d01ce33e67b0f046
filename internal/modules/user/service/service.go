package user

import (
	"context"
	"errors"
	"fmt"

	"github.com/earnbuddy/backend/internal/entity"
	opportunityRepo "github.com/earnbuddy/backend/internal/modules/opportunity/repository"
	"github.com/earnbuddy/backend/internal/modules/user/dto"
	userRepo "github.com/earnbuddy/backend/internal/modules/user/repository"
	"github.com/earnbuddy/backend/pkg/apperror"
	"github.com/earnbuddy/backend/pkg/response"
	"github.com/google/uuid"
	"gorm.io/datatypes"
)

type Service interface {
	Sync(ctx context.Context, auth *response.AuthUser, req dto.SyncUserRequest) (*entity.User, error)
	GetMe(ctx context.Context, uid string) (*entity.User, error)
	UpdateMe(ctx context.Context, uid string, req dto.UpdateUserRequest) (*entity.User, error)
	ToggleBookmark(ctx context.Context, uid string, opportunityID uuid.UUID) (*dto.BookmarkResponse, error)
}

type service struct {
	users         userRepo.UserRepository
	opportunities opportunityRepo.OpportunityRepository
}

func NewService(users userRepo.UserRepository, opportunities opportunityRepo.OpportunityRepository) Service {
	return &service{users: users, opportunities: opportunities}
}

func (s *service) Sync(ctx context.Context, auth *response.AuthUser, req dto.SyncUserRequest) (*entity.User, error) {
	displayName := req.DisplayName
	if displayName == "" {
		displayName = auth.Name
	}
	photoURL := req.PhotoURL
	if photoURL == "" {
		photoURL = auth.Picture
	}

	existing, err := s.users.FindByFirebaseUID(ctx, auth.UID)
	if err == nil {
		// phone and anonymous sign-ins carry no email claim
		if auth.Email != "" {
			existing.Email = &auth.Email
		}
		if displayName != "" {
			existing.DisplayName = displayName
		}
		if photoURL != "" {
			existing.PhotoURL = photoURL
		}
		if err := s.users.Update(ctx, existing); err != nil {
			return nil, fmt.Errorf("failed to update user: %w", err)
		}
		return existing, nil
	}
	if !isNotFound(err) {
		return nil, err
	}

	user := &entity.User{
		FirebaseUID: auth.UID,
		Email:       optionalEmail(auth.Email),
		DisplayName: displayName,
		PhotoURL:    photoURL,
		Role:        entity.UserRoleStudent,
		Skills:      datatypes.NewJSONSlice([]string{}),
		Bookmarks:   datatypes.NewJSONSlice([]uuid.UUID{}),
		SocialLinks: datatypes.JSONMap{},
	}
	if req.Role != "" {
		user.Role = req.Role
	}

	if err := s.users.Create(ctx, user); err != nil {
		// a concurrent sync for the same uid may have won the insert
		if winner, findErr := s.users.FindByFirebaseUID(ctx, auth.UID); findErr == nil {
			return winner, nil
		}
		return nil, fmt.Errorf("failed to create user: %w", err)
	}
	return user, nil
}

func (s *service) GetMe(ctx context.Context, uid string) (*entity.User, error) {
	user, err := s.users.FindByFirebaseUID(ctx, uid)
	if err != nil {
		return nil, fmt.Errorf("user not found: %w", err)
	}
	return user, nil
}

func (s *service) UpdateMe(ctx context.Context, uid string, req dto.UpdateUserRequest) (*entity.User, error) {
	user, err := s.users.FindByFirebaseUID(ctx, uid)
	if err != nil {
		return nil, fmt.Errorf("user not found: %w", err)
	}

	if req.DisplayName != nil {
		user.DisplayName = *req.DisplayName
	}
	if req.PhotoURL != nil {
		user.PhotoURL = *req.PhotoURL
	}
	if req.Bio != nil {
		user.Bio = *req.Bio
	}
	if req.Role != nil {
		user.Role = *req.Role
	}
	if req.Skills != nil {
		user.Skills = datatypes.NewJSONSlice(req.Skills)
	}
	if req.SocialLinks != nil {
		links := datatypes.JSONMap{}
		for k, v := range req.SocialLinks {
			links[k] = v
		}
		user.SocialLinks = links
	}

	if err := s.users.Update(ctx, user); err != nil {
		return nil, fmt.Errorf("failed to update user: %w", err)
	}
	return user, nil
}

func (s *service) ToggleBookmark(ctx context.Context, uid string, opportunityID uuid.UUID) (*dto.BookmarkResponse, error) {
	user, err := s.users.FindByFirebaseUID(ctx, uid)
	if err != nil {
		return nil, fmt.Errorf("user not found: %w", err)
	}
	if _, err := s.opportunities.FindByID(ctx, opportunityID); err != nil {
		return nil, fmt.Errorf("opportunity not found: %w", err)
	}

	bookmarks := make([]uuid.UUID, 0, len(user.Bookmarks)+1)
	bookmarked := !user.HasBookmark(opportunityID)
	for _, id := range user.Bookmarks {
		if id != opportunityID {
			bookmarks = append(bookmarks, id)
		}
	}
	if bookmarked {
		bookmarks = append(bookmarks, opportunityID)
	}

	if err := s.users.UpdateBookmarks(ctx, user.ID, bookmarks); err != nil {
		return nil, fmt.Errorf("failed to update bookmarks: %w", err)
	}

	return &dto.BookmarkResponse{Bookmarked: bookmarked, Bookmarks: bookmarks}, nil
}

func isNotFound(err error) bool {
	return errors.Is(err, apperror.ErrNotFound)
}

func optionalEmail(email string) *string {
	if email == "" {
		return nil
	}
	return &email
}
