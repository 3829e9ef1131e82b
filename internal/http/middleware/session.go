package middleware

import (
	"net/http"
	"net/url"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/muni-incidencias/backend/internal/auth"
)

// SessionKey is the gin context key the resolved session is stored under.
const SessionKey = "session"

const (
	loginPath      = "/login"
	defaultLanding = "/dashboard"
)

var protectedPrefixes = []string{"/dashboard", "/incidents", "/reports", "/settings"}

var authPrefixes = []string{loginPath}

func hasPrefixAny(path string, prefixes []string) bool {
	for _, p := range prefixes {
		if strings.HasPrefix(path, p) {
			return true
		}
	}
	return false
}

// SessionGate resolves the caller's session from request cookies and applies
// the per-request routing rule: unauthenticated callers are bounced off
// protected paths to the login page (keeping the original path for the
// post-login return), authenticated callers are bounced off the login page
// to the dashboard. Refreshed session cookies are forwarded onto the
// response in every branch.
func SessionGate(resolver auth.Resolver, logger zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		sess, cookies, err := resolver.Resolve(c.Request.Context(), c.Request)
		if err != nil {
			logger.Error().Err(err).Msg("session resolution failed")
			sess = nil
		}
		for _, ck := range cookies {
			http.SetCookie(c.Writer, ck)
		}

		path := c.Request.URL.Path
		switch {
		case sess == nil && hasPrefixAny(path, protectedPrefixes):
			q := url.Values{"redirect": {path}}
			c.Redirect(http.StatusSeeOther, loginPath+"?"+q.Encode())
			c.Abort()
		case sess != nil && hasPrefixAny(path, authPrefixes):
			// Any stale redirect parameter is deliberately dropped.
			c.Redirect(http.StatusSeeOther, defaultLanding)
			c.Abort()
		default:
			if sess != nil {
				c.Set(SessionKey, sess)
			}
			c.Next()
		}
	}
}

// Session returns the session stored by the gate, or nil.
func Session(c *gin.Context) *auth.Session {
	v, ok := c.Get(SessionKey)
	if !ok {
		return nil
	}
	sess, _ := v.(*auth.Session)
	return sess
}
