package auth

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// ErrInvalidCredentials marks a rejected password sign-in.
var ErrInvalidCredentials = errors.New("auth: invalid credentials")

// Client is the HTTP client for the managed auth service. Session endpoints
// use the public anonymous key, admin endpoints the elevated service key.
type Client struct {
	BaseURL    string
	AnonKey    string
	ServiceKey string
	HTTPClient *http.Client
}

func NewClient(baseURL, anonKey, serviceKey string) *Client {
	return &Client{
		BaseURL:    strings.TrimRight(baseURL, "/"),
		AnonKey:    anonKey,
		ServiceKey: serviceKey,
		HTTPClient: &http.Client{Timeout: 10 * time.Second},
	}
}

type tokenResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresIn    int    `json:"expires_in"`
	User         struct {
		ID    string `json:"id"`
		Email string `json:"email"`
	} `json:"user"`
}

func (c *Client) do(ctx context.Context, method, path, key string, body any, out any) error {
	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, reader)
	if err != nil {
		return err
	}
	req.Header.Set("apikey", key)
	req.Header.Set("Authorization", "Bearer "+key)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusBadRequest || resp.StatusCode == http.StatusUnauthorized {
		return ErrInvalidCredentials
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("auth: %s %s: status %d: %s", method, path, resp.StatusCode, strings.TrimSpace(string(b)))
	}
	if out != nil {
		return json.NewDecoder(resp.Body).Decode(out)
	}
	return nil
}

// SignInWithPassword exchanges credentials for a session.
func (c *Client) SignInWithPassword(ctx context.Context, email, password string) (*Session, error) {
	var tok tokenResponse
	err := c.do(ctx, http.MethodPost, "/auth/v1/token?grant_type=password", c.AnonKey,
		map[string]string{"email": email, "password": password}, &tok)
	if err != nil {
		return nil, err
	}
	return c.sessionFromResponse(tok), nil
}

// RefreshSession mints a new session from a refresh token.
func (c *Client) RefreshSession(ctx context.Context, refreshToken string) (*Session, error) {
	var tok tokenResponse
	err := c.do(ctx, http.MethodPost, "/auth/v1/token?grant_type=refresh_token", c.AnonKey,
		map[string]string{"refresh_token": refreshToken}, &tok)
	if err != nil {
		return nil, err
	}
	return c.sessionFromResponse(tok), nil
}

// SignOut revokes the session behind the access token. Revocation failures
// are the service's problem; cookies are cleared regardless.
func (c *Client) SignOut(ctx context.Context, accessToken string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+"/auth/v1/logout", nil)
	if err != nil {
		return err
	}
	req.Header.Set("apikey", c.AnonKey)
	req.Header.Set("Authorization", "Bearer "+accessToken)
	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return err
	}
	resp.Body.Close()
	return nil
}

func (c *Client) sessionFromResponse(tok tokenResponse) *Session {
	sess, err := sessionFromToken(tok.AccessToken, tok.RefreshToken)
	if err != nil || sess.UserID == "" {
		// The service's word beats an unreadable token payload.
		sess = &Session{AccessToken: tok.AccessToken, RefreshToken: tok.RefreshToken}
	}
	if sess.UserID == "" {
		sess.UserID = tok.User.ID
	}
	if sess.Email == "" {
		sess.Email = tok.User.Email
	}
	if sess.ExpiresAt.IsZero() && tok.ExpiresIn > 0 {
		sess.ExpiresAt = time.Now().Add(time.Duration(tok.ExpiresIn) * time.Second)
	}
	return sess
}

// Resolve implements Resolver: a read-only session lookup from request
// cookies, refreshing through the auth service when the access token has
// expired. Refreshed cookies come back for the caller to set on the
// response; nil session with nil error means "not signed in".
func (c *Client) Resolve(ctx context.Context, r *http.Request) (*Session, []*http.Cookie, error) {
	access, refresh := "", ""
	if ck, err := r.Cookie(AccessCookie); err == nil {
		access = ck.Value
	}
	if ck, err := r.Cookie(RefreshCookie); err == nil {
		refresh = ck.Value
	}
	if access == "" && refresh == "" {
		return nil, nil, nil
	}

	if access != "" {
		sess, err := sessionFromToken(access, refresh)
		if err == nil && sess.UserID != "" &&
			(sess.ExpiresAt.IsZero() || time.Until(sess.ExpiresAt) > expiryLeeway) {
			return sess, nil, nil
		}
	}

	if refresh == "" {
		return nil, nil, nil
	}
	sess, err := c.RefreshSession(ctx, refresh)
	if err != nil {
		if errors.Is(err, ErrInvalidCredentials) {
			return nil, ClearCookies(), nil
		}
		return nil, nil, err
	}
	return sess, SessionCookies(sess), nil
}

var _ Resolver = (*Client)(nil)

type adminUserResponse struct {
	ID    string `json:"id"`
	Email string `json:"email"`
}

// CreateUser provisions an auth identity with pre-confirmed email.
func (c *Client) CreateUser(ctx context.Context, email, password string, metadata map[string]string) (string, error) {
	var out adminUserResponse
	err := c.do(ctx, http.MethodPost, "/auth/v1/admin/users", c.ServiceKey, map[string]any{
		"email":         email,
		"password":      password,
		"email_confirm": true,
		"user_metadata": metadata,
	}, &out)
	if err != nil {
		return "", err
	}
	return out.ID, nil
}

func (c *Client) UpdateUserMetadata(ctx context.Context, id string, metadata map[string]string) error {
	return c.do(ctx, http.MethodPut, "/auth/v1/admin/users/"+id, c.ServiceKey,
		map[string]any{"user_metadata": metadata}, nil)
}

func (c *Client) DeleteUser(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, "/auth/v1/admin/users/"+id, c.ServiceKey, nil, nil)
}

var _ Admin = (*Client)(nil)
