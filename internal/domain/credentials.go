package domain

import (
	"context"
	"errors"
	"net/url"
	"strings"
)

// SessionCookie is SSO state captured from the original HTTP request and
// re-attached to authenticated sub-requests made by a job. It travels through
// an explicit context value rather than ambient per-goroutine state.
type SessionCookie struct {
	Name  string `json:"name"`
	Value string `json:"-"`
}

type sessionCookieKey struct{}

// WithSessionCookie returns a context carrying the cookie for outbound
// authenticated sub-requests. A nil cookie returns ctx unchanged.
func WithSessionCookie(ctx context.Context, c *SessionCookie) context.Context {
	if c == nil {
		return ctx
	}
	return context.WithValue(ctx, sessionCookieKey{}, c)
}

// SessionCookieFrom extracts the session cookie from ctx, if any.
func SessionCookieFrom(ctx context.Context) *SessionCookie {
	c, _ := ctx.Value(sessionCookieKey{}).(*SessionCookie)
	return c
}

// ErrURIAlreadyBound is returned when a second URI binding is attempted.
var ErrURIAlreadyBound = errors.New("credentials: target uri already bound")

// Credentials holds the authentication material for one target repository.
// The target URI may be unknown when the job is created (operations that
// resolve a named remote); it is bound exactly once, before any error
// classification that needs to report connection details.
type Credentials struct {
	uri      *url.URL
	Username string
	Password string
	SSHKey   []byte
	Cookie   *SessionCookie
}

// BindURI resolves and binds the target repository URI. Binding twice is an
// error; classification reads the bound value.
func (c *Credentials) BindURI(raw string) error {
	if c.uri != nil {
		return ErrURIAlreadyBound
	}
	u, err := url.Parse(raw)
	if err != nil {
		// scp-like syntax (git@host:path) is not a URL; keep what we can.
		u = &url.URL{Opaque: raw}
	}
	c.uri = u
	return nil
}

// URI returns the bound target URI, or nil if none was bound yet.
func (c *Credentials) URI() *url.URL {
	if c == nil {
		return nil
	}
	return c.uri
}

// ConnectionInfo returns the structured repository connection details used in
// classified error payloads. Returns nil when no URI was bound.
func (c *Credentials) ConnectionInfo() JSONB {
	if c == nil || c.uri == nil {
		return nil
	}
	info := JSONB{"Url": c.uri.String()}
	if c.uri.Scheme != "" {
		info["Scheme"] = c.uri.Scheme
	}
	if c.uri.Host != "" {
		info["Host"] = c.uri.Hostname()
		if p := c.uri.Port(); p != "" {
			info["Port"] = p
		}
	}
	user := c.Username
	if user == "" && c.uri.User != nil {
		user = c.uri.User.Username()
	}
	if user != "" {
		info["User"] = user
	}
	if name := HumanishName(c.uri.String()); name != "" {
		info["HumanishName"] = name
	}
	return info
}

// HumanishName derives a short repository name from a clone URL: scheme and
// user-info stripped, last path segment, trailing ".git" removed.
func HumanishName(raw string) string {
	s := raw
	if i := strings.Index(s, "://"); i >= 0 {
		s = s[i+3:]
	}
	if i := strings.Index(s, "@"); i >= 0 {
		s = s[i+1:]
	}
	s = strings.TrimRight(s, "/")
	if i := strings.LastIndexAny(s, "/:"); i >= 0 {
		s = s[i+1:]
	}
	return strings.TrimSuffix(s, ".git")
}

// HostOf extracts the host portion of a clone URL, tolerating scp-like syntax.
func HostOf(raw string) string {
	s := raw
	if i := strings.Index(s, "://"); i >= 0 {
		s = s[i+3:]
	}
	if i := strings.Index(s, "@"); i >= 0 {
		s = s[i+1:]
	}
	if i := strings.IndexAny(s, "/:"); i >= 0 {
		s = s[:i]
	}
	return s
}
