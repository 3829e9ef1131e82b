package auth

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

func signedToken(t *testing.T, sub, email string, exp time.Time) string {
	t.Helper()
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub":   sub,
		"email": email,
		"exp":   exp.Unix(),
	})
	s, err := tok.SignedString([]byte("test-secret"))
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return s
}

func authServer(t *testing.T, refreshCalls *int64, access string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/auth/v1/token":
			grant := r.URL.Query().Get("grant_type")
			if grant == "refresh_token" {
				atomic.AddInt64(refreshCalls, 1)
			}
			var body map[string]string
			_ = json.NewDecoder(r.Body).Decode(&body)
			if body["password"] == "mala" || body["refresh_token"] == "revoked" {
				w.WriteHeader(http.StatusUnauthorized)
				return
			}
			_ = json.NewEncoder(w).Encode(map[string]any{
				"access_token":  access,
				"refresh_token": "refresh-2",
				"expires_in":    3600,
				"user":          map[string]string{"id": "u1", "email": "a@b.pe"},
			})
		case "/auth/v1/logout":
			w.WriteHeader(http.StatusNoContent)
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
}

func TestSignInWithPassword(t *testing.T) {
	var refreshCalls int64
	access := signedToken(t, "u1", "a@b.pe", time.Now().Add(time.Hour))
	srv := authServer(t, &refreshCalls, access)
	defer srv.Close()

	c := NewClient(srv.URL, "anon", "service")
	sess, err := c.SignInWithPassword(context.Background(), "a@b.pe", "buena")
	if err != nil {
		t.Fatalf("sign in: %v", err)
	}
	if sess.UserID != "u1" || sess.Email != "a@b.pe" {
		t.Fatalf("unexpected session: %+v", sess)
	}
	if sess.RefreshToken != "refresh-2" {
		t.Fatalf("expected refresh token carried, got %s", sess.RefreshToken)
	}

	if _, err := c.SignInWithPassword(context.Background(), "a@b.pe", "mala"); err != ErrInvalidCredentials {
		t.Fatalf("expected ErrInvalidCredentials, got %v", err)
	}
}

func TestResolve_ValidAccessTokenSkipsRefresh(t *testing.T) {
	var refreshCalls int64
	access := signedToken(t, "u1", "a@b.pe", time.Now().Add(time.Hour))
	srv := authServer(t, &refreshCalls, access)
	defer srv.Close()

	c := NewClient(srv.URL, "anon", "service")
	req := httptest.NewRequest(http.MethodGet, "/dashboard", nil)
	req.AddCookie(&http.Cookie{Name: AccessCookie, Value: access})
	req.AddCookie(&http.Cookie{Name: RefreshCookie, Value: "refresh-1"})

	sess, cookies, err := c.Resolve(context.Background(), req)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if sess == nil || sess.UserID != "u1" {
		t.Fatalf("expected session, got %+v", sess)
	}
	if len(cookies) != 0 {
		t.Fatalf("expected no cookie refresh, got %v", cookies)
	}
	if refreshCalls != 0 {
		t.Fatalf("expected no refresh call, got %d", refreshCalls)
	}
}

func TestResolve_ExpiredAccessTokenRefreshes(t *testing.T) {
	var refreshCalls int64
	fresh := signedToken(t, "u1", "a@b.pe", time.Now().Add(time.Hour))
	srv := authServer(t, &refreshCalls, fresh)
	defer srv.Close()

	expired := signedToken(t, "u1", "a@b.pe", time.Now().Add(-time.Minute))
	c := NewClient(srv.URL, "anon", "service")
	req := httptest.NewRequest(http.MethodGet, "/dashboard", nil)
	req.AddCookie(&http.Cookie{Name: AccessCookie, Value: expired})
	req.AddCookie(&http.Cookie{Name: RefreshCookie, Value: "refresh-1"})

	sess, cookies, err := c.Resolve(context.Background(), req)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if sess == nil || sess.UserID != "u1" {
		t.Fatalf("expected refreshed session, got %+v", sess)
	}
	if refreshCalls != 1 {
		t.Fatalf("expected 1 refresh call, got %d", refreshCalls)
	}
	if len(cookies) != 2 {
		t.Fatalf("expected refreshed cookie pair, got %d", len(cookies))
	}
}

func TestResolve_RevokedRefreshClearsCookies(t *testing.T) {
	var refreshCalls int64
	srv := authServer(t, &refreshCalls, "")
	defer srv.Close()

	expired := signedToken(t, "u1", "a@b.pe", time.Now().Add(-time.Minute))
	c := NewClient(srv.URL, "anon", "service")
	req := httptest.NewRequest(http.MethodGet, "/dashboard", nil)
	req.AddCookie(&http.Cookie{Name: AccessCookie, Value: expired})
	req.AddCookie(&http.Cookie{Name: RefreshCookie, Value: "revoked"})

	sess, cookies, err := c.Resolve(context.Background(), req)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if sess != nil {
		t.Fatalf("expected no session, got %+v", sess)
	}
	if len(cookies) != 2 || cookies[0].MaxAge != -1 || cookies[1].MaxAge != -1 {
		t.Fatalf("expected clearing cookies, got %v", cookies)
	}
}

func TestResolve_NoCookiesIsAnonymous(t *testing.T) {
	c := NewClient("http://unused", "anon", "service")
	req := httptest.NewRequest(http.MethodGet, "/dashboard", nil)

	sess, cookies, err := c.Resolve(context.Background(), req)
	if err != nil || sess != nil || cookies != nil {
		t.Fatalf("expected anonymous result, got %+v %v %v", sess, cookies, err)
	}
}
