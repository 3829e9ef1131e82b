package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/muni-incidencias/backend/internal/auth"
)

type stubResolver struct {
	Session *auth.Session
	Cookies []*http.Cookie
	Err     error
}

func (s *stubResolver) Resolve(ctx context.Context, r *http.Request) (*auth.Session, []*http.Cookie, error) {
	return s.Session, s.Cookies, s.Err
}

func gateRouter(resolver auth.Resolver) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(SessionGate(resolver, zerolog.Nop()))
	ok := func(c *gin.Context) { c.Status(http.StatusOK) }
	r.GET("/dashboard", ok)
	r.GET("/incidents/INC-2026-001/confirm", ok)
	r.GET("/login", ok)
	r.GET("/healthz", ok)
	return r
}

func TestSessionGate_RedirectsAnonymousOffProtectedPaths(t *testing.T) {
	r := gateRouter(&stubResolver{})

	for _, path := range []string{"/dashboard", "/incidents/INC-2026-001/confirm"} {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
		if w.Code != http.StatusSeeOther {
			t.Fatalf("%s: expected 303, got %d", path, w.Code)
		}
		loc := w.Header().Get("Location")
		want := "/login?redirect=" + url.QueryEscape(path)
		if loc != want {
			t.Fatalf("%s: expected redirect to %s, got %s", path, want, loc)
		}
	}
}

func TestSessionGate_BouncesSignedInOffLogin(t *testing.T) {
	r := gateRouter(&stubResolver{Session: &auth.Session{UserID: "u1"}})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/login?redirect=%2Fincidents", nil))
	if w.Code != http.StatusSeeOther {
		t.Fatalf("expected 303, got %d", w.Code)
	}
	if loc := w.Header().Get("Location"); loc != "/dashboard" {
		t.Fatalf("expected /dashboard, got %s", loc)
	}
}

func TestSessionGate_PassesThroughElsewhere(t *testing.T) {
	// Anonymous caller on an ungated path.
	r := gateRouter(&stubResolver{})
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200 on ungated path, got %d", w.Code)
	}

	// Signed-in caller on a protected path.
	r = gateRouter(&stubResolver{Session: &auth.Session{UserID: "u1"}})
	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/dashboard", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200 with session, got %d", w.Code)
	}
}

func TestSessionGate_ForwardsRefreshedCookies(t *testing.T) {
	refreshed := []*http.Cookie{{Name: auth.AccessCookie, Value: "fresh", Path: "/"}}
	r := gateRouter(&stubResolver{Session: &auth.Session{UserID: "u1"}, Cookies: refreshed})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/dashboard", nil))
	found := false
	for _, ck := range w.Result().Cookies() {
		if ck.Name == auth.AccessCookie && ck.Value == "fresh" {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected refreshed cookie on response, got %v", w.Result().Cookies())
	}
}

func TestSessionGate_ResolverErrorTreatedAsAnonymous(t *testing.T) {
	r := gateRouter(&stubResolver{Err: context.DeadlineExceeded})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/dashboard", nil))
	if w.Code != http.StatusSeeOther {
		t.Fatalf("expected redirect when resolution fails, got %d", w.Code)
	}
}
