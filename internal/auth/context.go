package auth

import "context"

type principalKey struct{}

// Principal identifies the caller of an authenticated request.
type Principal struct {
	UserID      string
	SessionID   string
	AccessToken string
}

// WithPrincipal stores the authenticated caller on the context.
func WithPrincipal(ctx context.Context, p Principal) context.Context {
	return context.WithValue(ctx, principalKey{}, p)
}

// PrincipalFromContext returns the authenticated caller, if any.
func PrincipalFromContext(ctx context.Context) (Principal, bool) {
	if ctx == nil {
		return Principal{}, false
	}
	p, ok := ctx.Value(principalKey{}).(Principal)
	return p, ok && p.UserID != ""
}
