package auth

import (
	"context"
	"errors"
	"net/http"
)

var ErrUnauthenticated = errors.New("auth: authentication required")

// Identity is who a request acts for. A guest always has a GuestID; an authenticated
// caller additionally has a UserID.
type Identity struct {
	UserID        string
	GuestID       string
	Authenticated bool
	// NewGuest is set when GuestID was issued for this request and still has to reach the client.
	NewGuest bool
}

// Authenticator resolves the caller of an HTTP request. It never fails: unknown or
// missing credentials resolve to an unauthenticated identity.
type Authenticator interface {
	Identify(r *http.Request) Identity
}

type ctxKey struct{}

func WithIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, ctxKey{}, id)
}

// FromContext returns the identity stored by WithIdentity, or a zero (guest) identity.
func FromContext(ctx context.Context) Identity {
	if ctx == nil {
		return Identity{}
	}
	id, _ := ctx.Value(ctxKey{}).(Identity)
	return id
}
