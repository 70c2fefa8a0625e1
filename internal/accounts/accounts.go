// Package accounts implements sign-up, sign-in and session restoration on top
// of the session token manager and the user profile store.
package accounts

import (
	"context"
	"errors"
	"net/mail"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/vidgallery/backend/internal/apperrors"
	"github.com/vidgallery/backend/internal/auth"
	"github.com/vidgallery/backend/internal/logging"
	"github.com/vidgallery/backend/internal/metrics"
	"github.com/vidgallery/backend/internal/models"
	"github.com/vidgallery/backend/internal/repositories"
)

// MinPasswordLength is the shortest password accepted at sign-up.
const MinPasswordLength = 6

// DefaultDisplayName is used when an identity carries no name.
const DefaultDisplayName = "User"

const (
	methodPassword  = "password"
	methodFederated = "federated"
	methodSignUp    = "signup"

	shareTokenAttempts = 3
)

// UserStore captures the profile persistence used by the service.
type UserStore interface {
	Create(ctx context.Context, profile models.UserProfile) error
	CreateIfAbsent(ctx context.Context, profile models.UserProfile) (models.UserProfile, bool, error)
	FindByID(ctx context.Context, uid string) (models.UserProfile, error)
	FindByEmail(ctx context.Context, email string) (models.UserProfile, error)
}

// TokenManager issues, rotates and resolves session tokens.
type TokenManager interface {
	Issue(ctx context.Context, userID string) (models.SessionTokens, error)
	Refresh(ctx context.Context, refreshToken string) (models.SessionTokens, error)
	Resolve(ctx context.Context, accessToken string) (auth.Session, error)
	Lookup(ctx context.Context, refreshToken string) (auth.Session, error)
	Revoke(ctx context.Context, refreshToken string)
}

// Identity is an assertion obtained from an external identity provider.
type Identity struct {
	Issuer      string
	Subject     string
	Email       string
	DisplayName string
}

// FederatedProvider performs the authorization code flow with an external provider.
type FederatedProvider interface {
	AuthCodeURL(state string) string
	Exchange(ctx context.Context, code string) (Identity, error)
}

// SessionCloser tears down resources bound to a session, such as live subscriptions.
type SessionCloser interface {
	CloseSession(sessionID string)
}

// Service orchestrates the authentication state machine.
type Service struct {
	Users         UserStore
	Sessions      TokenManager
	Federated     FederatedProvider
	Subscriptions SessionCloser
	Metrics       *metrics.Metrics
	NowFunc       func() time.Time
}

// SignUp registers a password account and signs it in.
func (s *Service) SignUp(ctx context.Context, email, password, displayName string) (Session, error) {
	logger := logging.FromContext(ctx)

	email = normalizeEmail(email)
	if err := validateEmail(email); err != nil {
		s.Metrics.AuthAttempt(methodSignUp, metrics.OutcomeRejected)
		return Session{}, err
	}
	if len(password) < MinPasswordLength {
		s.Metrics.AuthAttempt(methodSignUp, metrics.OutcomeRejected)
		return Session{}, apperrors.Validation("password must be at least 6 characters")
	}

	if _, err := s.Users.FindByEmail(ctx, email); err == nil {
		s.Metrics.AuthAttempt(methodSignUp, metrics.OutcomeRejected)
		return Session{}, apperrors.Conflict("account already exists")
	} else if !errors.Is(err, repositories.ErrNotFound) {
		s.Metrics.AuthAttempt(methodSignUp, metrics.OutcomeError)
		return Session{}, apperrors.Transient("unable to verify existing accounts", err)
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		s.Metrics.AuthAttempt(methodSignUp, metrics.OutcomeError)
		return Session{}, err
	}

	now := s.now()
	profile := models.UserProfile{
		UID:          uuid.NewString(),
		Email:        email,
		DisplayName:  displayNameOrDefault(displayName),
		ShareToken:   NewShareToken(),
		PasswordHash: string(hashed),
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if err := s.Users.Create(ctx, profile); err != nil {
		if errors.Is(err, repositories.ErrConflict) {
			s.Metrics.AuthAttempt(methodSignUp, metrics.OutcomeRejected)
			return Session{}, apperrors.Conflict("account already exists")
		}
		s.Metrics.AuthAttempt(methodSignUp, metrics.OutcomeError)
		return Session{}, apperrors.Transient("failed to create account", err)
	}

	logger.Info("account created", "userId", profile.UID)
	s.Metrics.AuthAttempt(methodSignUp, metrics.OutcomeSuccess)
	return s.authenticate(ctx, profile)
}

// Login signs in a password account. Unknown emails and wrong passwords
// produce the same error.
func (s *Service) Login(ctx context.Context, email, password string) (Session, error) {
	logger := logging.FromContext(ctx)

	email = normalizeEmail(email)
	if email == "" || password == "" {
		s.Metrics.AuthAttempt(methodPassword, metrics.OutcomeRejected)
		return Session{}, apperrors.Validation("email and password are required")
	}

	profile, err := s.Users.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			logger.Warn("login unknown email")
			s.Metrics.AuthAttempt(methodPassword, metrics.OutcomeRejected)
			return Session{}, apperrors.Auth("invalid credentials")
		}
		s.Metrics.AuthAttempt(methodPassword, metrics.OutcomeError)
		return Session{}, apperrors.Transient("unable to sign in", err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(profile.PasswordHash), []byte(password)); err != nil {
		logger.Warn("login password mismatch", "userId", profile.UID)
		s.Metrics.AuthAttempt(methodPassword, metrics.OutcomeRejected)
		return Session{}, apperrors.Auth("invalid credentials")
	}

	s.Metrics.AuthAttempt(methodPassword, metrics.OutcomeSuccess)
	return s.authenticate(ctx, profile)
}

// BeginFederated starts an external sign-in. The returned session is in the
// Authenticating state and carries the provider URL the client must visit.
func (s *Service) BeginFederated(state string) (Session, error) {
	if s.Federated == nil {
		return Session{}, apperrors.NotFound("federated sign-in is not configured")
	}
	return Session{State: Authenticating, RedirectURL: s.Federated.AuthCodeURL(state)}, nil
}

// CompleteFederated finishes an external sign-in, creating the profile on the
// identity's first visit.
func (s *Service) CompleteFederated(ctx context.Context, code string) (Session, error) {
	logger := logging.FromContext(ctx)

	if s.Federated == nil {
		return Session{}, apperrors.NotFound("federated sign-in is not configured")
	}

	identity, err := s.Federated.Exchange(ctx, code)
	if err != nil {
		logger.Warn("federated exchange failed", "error", err)
		s.Metrics.AuthAttempt(methodFederated, metrics.OutcomeRejected)
		return Session{}, apperrors.Auth("unable to verify identity")
	}

	now := s.now()
	candidate := models.UserProfile{
		UID:         FederatedUID(identity.Issuer, identity.Subject),
		Email:       normalizeEmail(identity.Email),
		DisplayName: displayNameOrDefault(identity.DisplayName),
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	var (
		profile models.UserProfile
		created bool
	)
	for attempt := 0; attempt < shareTokenAttempts; attempt++ {
		candidate.ShareToken = NewShareToken()
		profile, created, err = s.Users.CreateIfAbsent(ctx, candidate)
		if !errors.Is(err, repositories.ErrConflict) {
			break
		}
	}
	if err != nil {
		s.Metrics.AuthAttempt(methodFederated, metrics.OutcomeError)
		return Session{}, apperrors.Transient("failed to load profile", err)
	}

	if created {
		logger.Info("federated account created", "userId", profile.UID)
	}
	s.Metrics.AuthAttempt(methodFederated, metrics.OutcomeSuccess)
	return s.authenticate(ctx, profile)
}

// Restore resolves a persisted access token back to its profile.
func (s *Service) Restore(ctx context.Context, accessToken string) (Session, error) {
	session, err := s.Sessions.Resolve(ctx, accessToken)
	if err != nil {
		return Session{}, sessionError(err)
	}

	profile, err := s.Users.FindByID(ctx, session.UserID)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return Session{}, apperrors.Auth("session is no longer valid")
		}
		return Session{}, apperrors.Transient("unable to restore session", err)
	}

	return Session{State: Authenticated, Profile: &profile}, nil
}

// Refresh rotates the token pair of a session.
func (s *Service) Refresh(ctx context.Context, refreshToken string) (Session, error) {
	refreshToken = strings.TrimSpace(refreshToken)
	if refreshToken == "" {
		return Session{}, apperrors.Validation("refresh token is required")
	}

	tokens, err := s.Sessions.Refresh(ctx, refreshToken)
	if err != nil {
		return Session{}, sessionError(err)
	}

	restored, err := s.Restore(ctx, tokens.AccessToken)
	if err != nil {
		return Session{}, err
	}
	restored.Tokens = &tokens
	return restored, nil
}

// Logout revokes the session behind accessToken and closes every live
// subscription opened under it. When the access token is unknown or has
// expired, refreshToken identifies the session instead. Unknown tokens are
// not an error.
func (s *Service) Logout(ctx context.Context, accessToken, refreshToken string) (Session, error) {
	session, err := s.Sessions.Resolve(ctx, accessToken)
	if refreshToken != "" && (errors.Is(err, auth.ErrSessionNotFound) || errors.Is(err, auth.ErrAccessTokenExpired)) {
		session, err = s.Sessions.Lookup(ctx, refreshToken)
	}
	switch {
	case err == nil:
	case errors.Is(err, auth.ErrSessionNotFound), errors.Is(err, auth.ErrAccessTokenExpired):
		return Session{State: Unauthenticated}, nil
	default:
		return Session{}, apperrors.Transient("unable to sign out", err)
	}

	if s.Subscriptions != nil {
		s.Subscriptions.CloseSession(session.ID)
	}
	s.Sessions.Revoke(ctx, session.RefreshToken)

	logging.FromContext(ctx).Info("session ended", "userId", session.UserID)
	return Session{State: Unauthenticated}, nil
}

func (s *Service) authenticate(ctx context.Context, profile models.UserProfile) (Session, error) {
	tokens, err := s.Sessions.Issue(ctx, profile.UID)
	if err != nil {
		return Session{}, apperrors.Transient("failed to create session", err)
	}
	return Session{State: Authenticated, Profile: &profile, Tokens: &tokens}, nil
}

func (s *Service) now() time.Time {
	if s.NowFunc != nil {
		return s.NowFunc()
	}
	return time.Now().UTC()
}

func sessionError(err error) error {
	switch {
	case errors.Is(err, auth.ErrSessionNotFound):
		return apperrors.Auth("session not found")
	case errors.Is(err, auth.ErrAccessTokenExpired), errors.Is(err, auth.ErrRefreshTokenExpired):
		return apperrors.Auth("session expired")
	default:
		return apperrors.Transient("session service unavailable", err)
	}
}

func normalizeEmail(email string) string {
	return strings.TrimSpace(strings.ToLower(email))
}

func validateEmail(email string) error {
	if email == "" {
		return apperrors.Validation("email is required")
	}
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return apperrors.Validation("invalid email address")
	}
	return nil
}

func displayNameOrDefault(name string) string {
	if name = strings.TrimSpace(name); name != "" {
		return name
	}
	return DefaultDisplayName
}

// NewShareToken returns a fresh unguessable share token.
func NewShareToken() string {
	return uuid.NewString()
}

// FederatedUID derives a stable profile id from an external identity so that
// repeated sign-ins resolve to the same profile.
func FederatedUID(issuer, subject string) string {
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte(issuer+"#"+subject)).String()
}
