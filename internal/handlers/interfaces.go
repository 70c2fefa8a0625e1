package handlers

import (
	"context"

	"github.com/vidgallery/backend/internal/accounts"
	"github.com/vidgallery/backend/internal/auth"
	"github.com/vidgallery/backend/internal/gallery"
	"github.com/vidgallery/backend/internal/models"
	"github.com/vidgallery/backend/internal/sharing"
)

// Accounts drives the authentication flow.
type Accounts interface {
	SignUp(ctx context.Context, email, password, displayName string) (accounts.Session, error)
	Login(ctx context.Context, email, password string) (accounts.Session, error)
	BeginFederated(state string) (accounts.Session, error)
	CompleteFederated(ctx context.Context, code string) (accounts.Session, error)
	Restore(ctx context.Context, accessToken string) (accounts.Session, error)
	Refresh(ctx context.Context, refreshToken string) (accounts.Session, error)
	Logout(ctx context.Context, accessToken, refreshToken string) (accounts.Session, error)
}

// SessionResolver maps access tokens to sessions for the bearer middleware.
type SessionResolver interface {
	Resolve(ctx context.Context, accessToken string) (auth.Session, error)
}

// Gallery captures the owner's CRUD operations.
type Gallery interface {
	Add(ctx context.Context, userID, rawURL, title, tagsCSV string) (models.Video, error)
	Update(ctx context.Context, userID, videoID, title, tagsCSV string) (models.Video, error)
	Delete(ctx context.Context, userID, videoID string, confirmed bool) error
	List(ctx context.Context, userID, query string) ([]models.Video, error)
}

// Subscriber opens live gallery views.
type Subscriber interface {
	Subscribe(ctx context.Context, userID, sessionID string) (*gallery.Subscription, error)
}

// SharedGalleries resolves share tokens and share links.
type SharedGalleries interface {
	Open(ctx context.Context, token, query string) (sharing.SharedGallery, error)
	LinkFor(ctx context.Context, userID string) (sharing.Link, error)
}

// QRRenderer renders a share link as a PNG image.
type QRRenderer interface {
	QRCode(token string, size int) ([]byte, error)
}

// Pinger reports whether a backing service is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}
