package repositories

import (
	"context"

	"github.com/vidgallery/backend/internal/models"
)

// UserRepository defines the data access contract for user profiles.
type UserRepository interface {
	Create(ctx context.Context, profile models.UserProfile) error
	CreateIfAbsent(ctx context.Context, profile models.UserProfile) (models.UserProfile, bool, error)
	FindByID(ctx context.Context, uid string) (models.UserProfile, error)
	FindByEmail(ctx context.Context, email string) (models.UserProfile, error)
	FindByShareToken(ctx context.Context, token string) (models.UserProfile, error)
}
