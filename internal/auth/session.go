// Package auth wraps the managed backend's authentication service: cookie
// session resolution for the gate, password sign-in for the login action,
// and the elevated admin API for account management.
package auth

import (
	"context"
	"net/http"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Cookie names owned by this collaborator.
const (
	AccessCookie  = "mhy_access_token"
	RefreshCookie = "mhy_refresh_token"
)

// Access tokens this close to expiry are refreshed eagerly so the page the
// user lands on does not lose its session mid-request.
const expiryLeeway = 30 * time.Second

// Session is the resolved caller identity.
type Session struct {
	UserID       string
	Email        string
	AccessToken  string
	RefreshToken string
	ExpiresAt    time.Time
}

// Resolver yields the session bound to a request's cookies plus any
// refreshed cookies the caller must forward onto the response.
type Resolver interface {
	Resolve(ctx context.Context, r *http.Request) (*Session, []*http.Cookie, error)
}

// Admin mutates auth identities with the elevated key.
type Admin interface {
	CreateUser(ctx context.Context, email, password string, metadata map[string]string) (string, error)
	UpdateUserMetadata(ctx context.Context, id string, metadata map[string]string) error
	DeleteUser(ctx context.Context, id string) error
}

// sessionFromToken reads subject, email and expiry out of an access token.
// The signature is the auth service's to verify, not ours; the token only
// reaches the backend again over its own authenticated API.
func sessionFromToken(access, refresh string) (*Session, error) {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(access, claims); err != nil {
		return nil, err
	}
	sess := &Session{AccessToken: access, RefreshToken: refresh}
	if sub, err := claims.GetSubject(); err == nil {
		sess.UserID = sub
	}
	if email, ok := claims["email"].(string); ok {
		sess.Email = email
	}
	if exp, err := claims.GetExpirationTime(); err == nil && exp != nil {
		sess.ExpiresAt = exp.Time
	}
	return sess, nil
}

// SessionCookies builds the cookie pair for a fresh session.
func SessionCookies(sess *Session) []*http.Cookie {
	maxAge := int(time.Until(sess.ExpiresAt).Seconds())
	if maxAge <= 0 {
		maxAge = 3600
	}
	return []*http.Cookie{
		{
			Name:     AccessCookie,
			Value:    sess.AccessToken,
			Path:     "/",
			MaxAge:   maxAge,
			HttpOnly: true,
			SameSite: http.SameSiteLaxMode,
		},
		{
			Name:     RefreshCookie,
			Value:    sess.RefreshToken,
			Path:     "/",
			MaxAge:   30 * 24 * 3600,
			HttpOnly: true,
			SameSite: http.SameSiteLaxMode,
		},
	}
}

// ClearCookies expires the session cookie pair.
func ClearCookies() []*http.Cookie {
	return []*http.Cookie{
		{Name: AccessCookie, Value: "", Path: "/", MaxAge: -1, HttpOnly: true, SameSite: http.SameSiteLaxMode},
		{Name: RefreshCookie, Value: "", Path: "/", MaxAge: -1, HttpOnly: true, SameSite: http.SameSiteLaxMode},
	}
}
