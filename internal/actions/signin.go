package actions

import (
	"context"
	"errors"
	"net/url"
	"strings"

	"github.com/muni-incidencias/backend/internal/auth"
)

const defaultLanding = "/dashboard"

// SignInResult carries the session for the handler to turn into cookies.
type SignInResult struct {
	OK         bool   `json:"ok"`
	Message    string `json:"message,omitempty"`
	RedirectTo string `json:"redirect_to,omitempty"`
	Session    *auth.Session `json:"-"`
}

// safeRedirect keeps the post-login return path on this site.
func safeRedirect(path string) string {
	if strings.HasPrefix(path, "/") && !strings.HasPrefix(path, "//") {
		return path
	}
	return defaultLanding
}

// SignIn exchanges the login form for a session.
func (s *Service) SignIn(ctx context.Context, form url.Values) SignInResult {
	email := strings.TrimSpace(form.Get("email"))
	password := form.Get("password")
	redirectTo := safeRedirect(strings.TrimSpace(form.Get("redirect_to")))

	if email == "" || password == "" {
		return SignInResult{OK: false, Message: "Ingresa tu correo y contrasena."}
	}

	sess, err := s.Sessions.SignInWithPassword(ctx, email, password)
	if err != nil {
		if !errors.Is(err, auth.ErrInvalidCredentials) {
			s.Logger.Error().Err(err).Msg("sign-in failed")
		}
		return SignInResult{OK: false, Message: "Credenciales invalidas. Verifica tus datos."}
	}

	return SignInResult{OK: true, RedirectTo: redirectTo, Session: sess}
}

// SignOut revokes the session. Revocation failures are logged and ignored;
// the handler clears the cookies either way.
func (s *Service) SignOut(ctx context.Context, accessToken string) {
	if accessToken == "" {
		return
	}
	if err := s.Sessions.SignOut(ctx, accessToken); err != nil {
		s.Logger.Warn().Err(err).Msg("sign-out revocation failed")
	}
}
