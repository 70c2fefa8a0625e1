package accounts

import "github.com/vidgallery/backend/internal/models"

// State is the position of a client in the authentication flow.
type State int

const (
	Unauthenticated State = iota
	Authenticating
	Authenticated
)

func (s State) String() string {
	switch s {
	case Authenticating:
		return "authenticating"
	case Authenticated:
		return "authenticated"
	default:
		return "unauthenticated"
	}
}

// MarshalText renders the state as its lowercase name in JSON payloads.
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Session is the explicit authentication context handed to callers in place
// of process-wide state. Profile is set only when Authenticated; Tokens only
// when the operation issued new credentials.
type Session struct {
	State       State                 `json:"state"`
	Profile     *models.UserProfile   `json:"profile,omitempty"`
	Tokens      *models.SessionTokens `json:"tokens,omitempty"`
	RedirectURL string                `json:"redirectUrl,omitempty"`
}
