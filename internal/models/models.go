package models

import "time"

// UserProfile represents an account that owns a video gallery.
type UserProfile struct {
	UID          string    `json:"uid"`
	Email        string    `json:"email"`
	DisplayName  string    `json:"displayName"`
	ShareToken   string    `json:"shareToken"`
	PasswordHash string    `json:"-"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"-"`
}

// Federated reports whether the profile signs in through an external identity provider.
func (p UserProfile) Federated() bool {
	return p.PasswordHash == ""
}

// Video is a YouTube link saved to a user's gallery.
type Video struct {
	ID                   string    `json:"id"`
	UserID               string    `json:"userId"`
	YoutubeURL           string    `json:"youtubeUrl"`
	YoutubeVideoID       string    `json:"youtubeVideoId"`
	Title                string    `json:"title"`
	ThumbnailURL         string    `json:"thumbnailUrl"`
	Tags                 []string  `json:"tags"`
	CreatedAt            time.Time `json:"createdAt"`
	ThumbnailAssetURL    string    `json:"thumbnailAssetUrl,omitempty"`
	ThumbnailAssetStatus string    `json:"thumbnailAssetStatus,omitempty"`
}

const (
	AssetStatusPending  = "pending"
	AssetStatusReady    = "ready"
	AssetStatusFailed   = "failed"
	AssetStatusDisabled = "disabled"
)

// SessionTokens groups the bearer credentials issued to authenticated users.
type SessionTokens struct {
	AccessToken      string    `json:"accessToken"`
	AccessExpiresAt  time.Time `json:"accessExpiresAt"`
	RefreshToken     string    `json:"refreshToken"`
	RefreshExpiresAt time.Time `json:"refreshExpiresAt"`
}
