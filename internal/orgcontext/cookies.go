package orgcontext

import (
	"net/http"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/promptlab/internal/config"
)

const (
	CookieActiveOrgID = "active_org_id"
	CookieOrgRole     = "org_role"

	// HeaderOrgID carries the org claim for non-browser clients.
	HeaderOrgID = "X-Org-ID"
)

// CookieWriter emits the advisory org claim cookies. They are readable by
// scripts and never trusted for authorization.
type CookieWriter struct {
	secure bool
}

func NewCookieWriter(cfg config.Config) *CookieWriter {
	return &CookieWriter{secure: cfg.AuthCookieSecure}
}

func (w *CookieWriter) Set(rw http.ResponseWriter, orgID snowflake.ID, role string) {
	w.write(rw, CookieActiveOrgID, orgID.String(), 0)
	w.write(rw, CookieOrgRole, role, 0)
}

func (w *CookieWriter) Clear(rw http.ResponseWriter) {
	w.write(rw, CookieActiveOrgID, "", -1)
	w.write(rw, CookieOrgRole, "", -1)
}

func (w *CookieWriter) write(rw http.ResponseWriter, name, value string, maxAge int) {
	http.SetCookie(rw, &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		MaxAge:   maxAge,
		Secure:   w.secure,
		HttpOnly: false,
		SameSite: http.SameSiteLaxMode,
	})
}

// ReadClaim returns the raw active org claim from the header, falling back to
// the cookie.
func ReadClaim(r *http.Request) (string, bool) {
	if r == nil {
		return "", false
	}
	if value := strings.TrimSpace(r.Header.Get(HeaderOrgID)); value != "" {
		return value, true
	}
	cookie, err := r.Cookie(CookieActiveOrgID)
	if err != nil {
		return "", false
	}
	value := strings.TrimSpace(cookie.Value)
	return value, value != ""
}
