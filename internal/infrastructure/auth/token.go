package auth

import (
	"net/http"
	"strings"

	domauth "github.com/Zhima-Mochi/minishop-storefront/app/internal/domain/auth"
	"github.com/google/uuid"
)

const (
	HeaderGuestID = "X-Guest-ID"
	CookieGuestID = "guest_id"
)

// TokenAuthenticator resolves bearer tokens against a fixed token -> user table. The guest
// session ID comes from the X-Guest-ID header or the guest_id cookie; callers without one
// get a fresh ID, which the HTTP layer hands back as a cookie.
type TokenAuthenticator struct {
	tokens map[string]string
	newID  func() string
}

func NewTokenAuthenticator(tokens map[string]string) *TokenAuthenticator {
	copied := make(map[string]string, len(tokens))
	for k, v := range tokens {
		if k != "" && v != "" {
			copied[k] = v
		}
	}
	return &TokenAuthenticator{tokens: copied, newID: uuid.NewString}
}

func (a *TokenAuthenticator) Identify(r *http.Request) domauth.Identity {
	id := domauth.Identity{GuestID: guestID(r)}
	if id.GuestID == "" {
		id.GuestID = a.newID()
		id.NewGuest = true
	}

	token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
	if !ok {
		return id
	}
	if userID, found := a.tokens[strings.TrimSpace(token)]; found {
		id.UserID = userID
		id.Authenticated = true
	}
	return id
}

func guestID(r *http.Request) string {
	if v := strings.TrimSpace(r.Header.Get(HeaderGuestID)); v != "" {
		return v
	}
	if c, err := r.Cookie(CookieGuestID); err == nil {
		return strings.TrimSpace(c.Value)
	}
	return ""
}
