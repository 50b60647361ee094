package services

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/makroxyz/simplechat/internal/models"
)

// IdentityResolver maps a user id to display data. Exists is false when the
// id no longer resolves to an account; callers are expected to keep going
// with the placeholder rather than fail.
type IdentityResolver interface {
	Resolve(ctx context.Context, userID int64) (models.Identity, error)
}

type profileReader interface {
	GetByUserID(ctx context.Context, userID int64) (*models.UserProfile, error)
}

// ProfileIdentityResolver resolves identities from the users and
// user_profiles tables, falling back to the account email when no display
// name is set.
type ProfileIdentityResolver struct {
	userRepo    userReader
	profileRepo profileReader
}

func NewProfileIdentityResolver(userRepo userReader, profileRepo profileReader) *ProfileIdentityResolver {
	return &ProfileIdentityResolver{
		userRepo:    userRepo,
		profileRepo: profileRepo,
	}
}

func (r *ProfileIdentityResolver) Resolve(ctx context.Context, userID int64) (models.Identity, error) {
	user, err := r.userRepo.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return PlaceholderIdentity(userID), nil
		}
		return models.Identity{}, storeError(err)
	}

	identity := models.Identity{
		UserID:      userID,
		DisplayName: user.Email,
		Exists:      true,
	}

	profile, err := r.profileRepo.GetByUserID(ctx, userID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return identity, nil
		}
		return models.Identity{}, storeError(err)
	}

	if profile.DisplayName != nil && *profile.DisplayName != "" {
		identity.DisplayName = *profile.DisplayName
	}
	identity.AvatarURL = profile.AvatarURL

	return identity, nil
}

// PlaceholderIdentity stands in for a contact that no longer resolves to an
// account. Conversations with such contacts stay listed.
func PlaceholderIdentity(userID int64) models.Identity {
	return models.Identity{
		UserID:      userID,
		DisplayName: "Former member",
		Exists:      false,
	}
}
