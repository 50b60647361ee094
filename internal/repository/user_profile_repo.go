package repository

import (
	"context"

	"github.com/makroxyz/simplechat/internal/models"
)

type UserProfileRepository struct {
	db DBTX
}

func NewUserProfileRepository(db DBTX) *UserProfileRepository {
	return &UserProfileRepository{db: db}
}

func (r *UserProfileRepository) CreateEmpty(ctx context.Context, userID int64) error {
	_, err := r.db.Exec(ctx, `
		INSERT INTO user_profiles (user_id)
		VALUES ($1)
		ON CONFLICT (user_id) DO NOTHING
	`, userID)
	return err
}

func (r *UserProfileRepository) GetByUserID(
	ctx context.Context,
	userID int64,
) (*models.UserProfile, error) {
	query := `
		SELECT id, user_id, display_name, avatar_url, created_at, updated_at
		FROM user_profiles
		WHERE user_id = $1
	`

	var profile models.UserProfile
	err := r.db.QueryRow(ctx, query, userID).Scan(
		&profile.ID,
		&profile.UserID,
		&profile.DisplayName,
		&profile.AvatarURL,
		&profile.CreatedAt,
		&profile.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	return &profile, nil
}

type UpdateUserProfileInput struct {
	DisplayName *string
	AvatarURL   *string
}

func (r *UserProfileRepository) UpdatePartial(
	ctx context.Context,
	userID int64,
	input UpdateUserProfileInput,
) (*models.UserProfile, error) {
	query := `
		UPDATE user_profiles
		SET display_name = COALESCE($2, display_name),
		    avatar_url   = COALESCE($3, avatar_url),
		    updated_at   = NOW()
		WHERE user_id = $1
		RETURNING id, user_id, display_name, avatar_url, created_at, updated_at
	`

	var profile models.UserProfile
	err := r.db.QueryRow(ctx, query, userID, input.DisplayName, input.AvatarURL).Scan(
		&profile.ID,
		&profile.UserID,
		&profile.DisplayName,
		&profile.AvatarURL,
		&profile.CreatedAt,
		&profile.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	return &profile, nil
}

// ListContacts returns the directory of users other than excludeUserID,
// with profile display data where present.
func (r *UserProfileRepository) ListContacts(
	ctx context.Context,
	excludeUserID int64,
) ([]models.Identity, error) {
	query := `
		SELECT u.id, COALESCE(p.display_name, u.email), p.avatar_url
		FROM users u
		LEFT JOIN user_profiles p ON p.user_id = u.id
		WHERE u.id <> $1
		ORDER BY u.id
	`

	rows, err := r.db.Query(ctx, query, excludeUserID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	contacts := make([]models.Identity, 0)
	for rows.Next() {
		identity := models.Identity{Exists: true}
		if err := rows.Scan(&identity.UserID, &identity.DisplayName, &identity.AvatarURL); err != nil {
			return nil, err
		}
		contacts = append(contacts, identity)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return contacts, nil
}
