package handlers

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/vidgallery/backend/internal/apperrors"
	"github.com/vidgallery/backend/internal/auth"
	"github.com/vidgallery/backend/internal/logging"
	"github.com/vidgallery/backend/internal/middleware"
)

const oidcStateCookie = "vidgallery_oidc_state"

// AuthHandler implements user authentication endpoints.
type AuthHandler struct {
	Accounts Accounts
	// SecureCookies marks the OIDC state cookie Secure; enable behind TLS.
	SecureCookies bool
}

// Login handles POST /api/v1/auth/login requests.
func (h AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	ctx := r.Context()
	if !h.available(ctx, w) {
		return
	}

	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		logging.FromContext(ctx).Warn("invalid login payload", "error", err)
		respondJSON(ctx, w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	session, err := h.Accounts.Login(ctx, req.Email, req.Password)
	if err != nil {
		respondError(ctx, w, err, "unable to sign in")
		return
	}

	respondJSON(ctx, w, http.StatusOK, session)
}

// SignUp handles POST /api/v1/auth/signup requests.
func (h AuthHandler) SignUp(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	ctx := r.Context()
	if !h.available(ctx, w) {
		return
	}

	var req signUpRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		logging.FromContext(ctx).Warn("invalid signup payload", "error", err)
		respondJSON(ctx, w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	session, err := h.Accounts.SignUp(ctx, req.Email, req.Password, req.DisplayName)
	if err != nil {
		respondError(ctx, w, err, "failed to create account")
		return
	}

	respondJSON(ctx, w, http.StatusCreated, session)
}

// Refresh exchanges a refresh token for a new token pair.
func (h AuthHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	ctx := r.Context()
	if !h.available(ctx, w) {
		return
	}

	var req refreshRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		logging.FromContext(ctx).Warn("invalid refresh payload", "error", err)
		respondJSON(ctx, w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	session, err := h.Accounts.Refresh(ctx, req.RefreshToken)
	if err != nil {
		respondError(ctx, w, err, "unable to refresh session")
		return
	}

	respondJSON(ctx, w, http.StatusOK, session)
}

// Session handles GET /api/v1/auth/session, restoring the caller's profile.
func (h AuthHandler) Session(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	ctx := r.Context()
	if !h.available(ctx, w) {
		return
	}

	principal, ok := auth.PrincipalFromContext(ctx)
	if !ok {
		respondJSON(ctx, w, http.StatusUnauthorized, map[string]string{"error": "not signed in"})
		return
	}

	session, err := h.Accounts.Restore(ctx, principal.AccessToken)
	if err != nil {
		respondError(ctx, w, err, "unable to restore session")
		return
	}

	respondJSON(ctx, w, http.StatusOK, session)
}

// Logout handles POST /api/v1/auth/logout. The session is named by the
// bearer access token, or by a refreshToken body once the access token has
// expired.
func (h AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	ctx := r.Context()
	if !h.available(ctx, w) {
		return
	}

	var req refreshRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		logging.FromContext(ctx).Warn("invalid logout payload", "error", err)
		respondJSON(ctx, w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	accessToken := middleware.BearerToken(r)
	if accessToken == "" && req.RefreshToken == "" {
		respondJSON(ctx, w, http.StatusUnauthorized, map[string]string{"error": "not signed in"})
		return
	}

	session, err := h.Accounts.Logout(ctx, accessToken, req.RefreshToken)
	if err != nil {
		respondError(ctx, w, err, "unable to sign out")
		return
	}

	respondJSON(ctx, w, http.StatusOK, session)
}

// OIDCLogin handles GET /api/v1/auth/oidc/login by redirecting to the
// identity provider.
func (h AuthHandler) OIDCLogin(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	ctx := r.Context()
	if !h.available(ctx, w) {
		return
	}

	state, err := generateState()
	if err != nil {
		logging.FromContext(ctx).Error("generate oidc state", "error", err)
		respondJSON(ctx, w, http.StatusInternalServerError, map[string]string{"error": "unable to start sign-in"})
		return
	}

	session, err := h.Accounts.BeginFederated(state)
	if err != nil {
		respondError(ctx, w, err, "unable to start sign-in")
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     oidcStateCookie,
		Value:    state,
		Path:     "/api/v1/auth/oidc",
		MaxAge:   600,
		HttpOnly: true,
		Secure:   h.SecureCookies,
		SameSite: http.SameSiteLaxMode,
	})
	http.Redirect(w, r, session.RedirectURL, http.StatusFound)
}

// OIDCCallback handles GET /api/v1/auth/oidc/callback.
func (h AuthHandler) OIDCCallback(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	ctx := r.Context()
	if !h.available(ctx, w) {
		return
	}

	cookie, err := r.Cookie(oidcStateCookie)
	if err != nil || cookie.Value == "" || cookie.Value != r.URL.Query().Get("state") {
		logging.FromContext(ctx).Warn("oidc state mismatch")
		respondJSON(ctx, w, http.StatusBadRequest, map[string]string{"error": "invalid state"})
		return
	}
	http.SetCookie(w, &http.Cookie{
		Name:     oidcStateCookie,
		Path:     "/api/v1/auth/oidc",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.SecureCookies,
		SameSite: http.SameSiteLaxMode,
	})

	if providerErr := r.URL.Query().Get("error"); providerErr != "" {
		logging.FromContext(ctx).Warn("oidc provider returned error", "error", providerErr)
		respondJSON(ctx, w, http.StatusUnauthorized, map[string]string{"error": "sign-in was cancelled"})
		return
	}

	session, err := h.Accounts.CompleteFederated(ctx, r.URL.Query().Get("code"))
	if err != nil {
		respondError(ctx, w, err, "unable to complete sign-in")
		return
	}

	respondJSON(ctx, w, http.StatusOK, session)
}

func (h AuthHandler) available(ctx context.Context, w http.ResponseWriter) bool {
	if h.Accounts == nil {
		logging.FromContext(ctx).Error("authentication dependencies unavailable")
		respondJSON(ctx, w, http.StatusInternalServerError, map[string]string{"error": "authentication services unavailable"})
		return false
	}
	return true
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type signUpRequest struct {
	Email       string `json:"email"`
	Password    string `json:"password"`
	DisplayName string `json:"displayName"`
}

type refreshRequest struct {
	RefreshToken string `json:"refreshToken"`
}

func generateState() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

func respondJSON(ctx context.Context, w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(payload); err != nil {
		logging.FromContext(ctx).Error("encode response body", "status", status, "error", err)
		return
	}

	logger := logging.FromContext(ctx)
	switch {
	case status >= http.StatusInternalServerError:
		logger.Error("request failed", "status", status, "response", payload)
	case status >= http.StatusBadRequest:
		logger.Warn("request returned client error", "status", status, "response", payload)
	}
}

// respondError maps err onto its HTTP status and user-facing message.
func respondError(ctx context.Context, w http.ResponseWriter, err error, fallback string) {
	status := apperrors.HTTPStatus(err)
	if status >= http.StatusInternalServerError {
		logging.FromContext(ctx).Error(fallback, "error", err)
	}
	respondJSON(ctx, w, status, map[string]string{"error": apperrors.Message(err, fallback)})
}
