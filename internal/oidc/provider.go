// Package oidc signs users in through an external OpenID Connect provider.
package oidc

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	gooidc "github.com/coreos/go-oidc/v3/oidc"
	"golang.org/x/oauth2"

	"github.com/vidgallery/backend/internal/accounts"
)

// Config identifies this application to the provider.
type Config struct {
	Issuer       string
	ClientID     string
	ClientSecret string
	RedirectURL  string
}

// Enabled reports whether enough settings are present to use the provider.
func (c Config) Enabled() bool {
	return c.Issuer != "" && c.ClientID != ""
}

// Provider runs the authorization code flow and verifies the returned ID
// token.
type Provider struct {
	provider     *gooidc.Provider
	oauth2Config oauth2.Config
	verifier     *gooidc.IDTokenVerifier
	logger       *slog.Logger
}

// NewProvider discovers the issuer's endpoints.
func NewProvider(ctx context.Context, cfg Config, logger *slog.Logger) (*Provider, error) {
	if !cfg.Enabled() {
		return nil, errors.New("oidc issuer and client id are required")
	}
	if logger == nil {
		logger = slog.Default()
	}

	provider, err := gooidc.NewProvider(ctx, cfg.Issuer)
	if err != nil {
		return nil, fmt.Errorf("discover oidc provider: %w", err)
	}

	return &Provider{
		provider: provider,
		oauth2Config: oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			RedirectURL:  cfg.RedirectURL,
			Endpoint:     provider.Endpoint(),
			Scopes:       []string{gooidc.ScopeOpenID, "profile", "email"},
		},
		verifier: provider.Verifier(&gooidc.Config{ClientID: cfg.ClientID}),
		logger:   logger,
	}, nil
}

// AuthCodeURL returns the provider URL the user must visit to sign in.
func (p *Provider) AuthCodeURL(state string) string {
	return p.oauth2Config.AuthCodeURL(state)
}

type claims struct {
	Subject string `json:"sub"`
	Email   string `json:"email"`
	Name    string `json:"name"`
}

// Exchange trades an authorization code for a verified identity.
func (p *Provider) Exchange(ctx context.Context, code string) (accounts.Identity, error) {
	if code == "" {
		return accounts.Identity{}, errors.New("missing authorization code")
	}

	token, err := p.oauth2Config.Exchange(ctx, code)
	if err != nil {
		return accounts.Identity{}, fmt.Errorf("exchange code: %w", err)
	}

	rawIDToken, ok := token.Extra("id_token").(string)
	if !ok {
		return accounts.Identity{}, errors.New("missing id_token")
	}

	idToken, err := p.verifier.Verify(ctx, rawIDToken)
	if err != nil {
		return accounts.Identity{}, fmt.Errorf("verify id_token: %w", err)
	}

	var c claims
	if err := idToken.Claims(&c); err != nil {
		return accounts.Identity{}, fmt.Errorf("decode claims: %w", err)
	}

	// Some providers only put the subject in the ID token.
	if c.Email == "" || c.Name == "" {
		info, err := p.provider.UserInfo(ctx, oauth2.StaticTokenSource(token))
		if err != nil {
			p.logger.Warn("failed to fetch oidc userinfo", "error", err)
		} else {
			var extra claims
			if err := info.Claims(&extra); err == nil {
				c = mergeClaims(c, extra)
			}
		}
	}

	return accounts.Identity{
		Issuer:      idToken.Issuer,
		Subject:     idToken.Subject,
		Email:       c.Email,
		DisplayName: c.Name,
	}, nil
}

func mergeClaims(base, extra claims) claims {
	if base.Email == "" {
		base.Email = extra.Email
	}
	if base.Name == "" {
		base.Name = extra.Name
	}
	return base
}

var _ accounts.FederatedProvider = (*Provider)(nil)
