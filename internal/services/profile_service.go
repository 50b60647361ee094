package services

import (
	"context"
	"errors"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/makroxyz/simplechat/internal/models"
	"github.com/makroxyz/simplechat/internal/repository"
)

const maxDisplayNameLength = 120

type profileStore interface {
	GetByUserID(ctx context.Context, userID int64) (*models.UserProfile, error)
	UpdatePartial(ctx context.Context, userID int64, input repository.UpdateUserProfileInput) (*models.UserProfile, error)
	ListContacts(ctx context.Context, excludeUserID int64) ([]models.Identity, error)
}

type ProfileService struct {
	profileRepo profileStore
}

func NewProfileService(profileRepo profileStore) *ProfileService {
	return &ProfileService{profileRepo: profileRepo}
}

func (s *ProfileService) GetProfile(ctx context.Context, userID int64) (*models.UserProfile, error) {
	profile, err := s.profileRepo.GetByUserID(ctx, userID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, storeError(err)
	}
	return profile, nil
}

func (s *ProfileService) UpdateProfile(
	ctx context.Context,
	userID int64,
	input repository.UpdateUserProfileInput,
) (*models.UserProfile, error) {
	if input.DisplayName != nil {
		trimmed := strings.TrimSpace(*input.DisplayName)
		if trimmed == "" || len(trimmed) > maxDisplayNameLength {
			return nil, ErrInvalidInput
		}
		input.DisplayName = &trimmed
	}

	profile, err := s.profileRepo.UpdatePartial(ctx, userID, input)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, storeError(err)
	}
	return profile, nil
}

// ListContacts returns the user directory minus the caller, for starting new
// conversations.
func (s *ProfileService) ListContacts(ctx context.Context, userID int64) ([]models.Identity, error) {
	contacts, err := s.profileRepo.ListContacts(ctx, userID)
	if err != nil {
		return nil, storeError(err)
	}
	return contacts, nil
}
