package gitengine

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/go-git/go-git/v5/plumbing/transport"
	githttp "github.com/go-git/go-git/v5/plumbing/transport/http"
	gitssh "github.com/go-git/go-git/v5/plumbing/transport/ssh"

	"github.com/codebay/backend/internal/domain"
)

// AuthFor builds the transport auth method for the given clone URL from the
// bound credentials. On HTTP transports the session cookie carried in ctx is
// attached to every outbound request, so authenticated same-origin
// sub-requests keep the caller's SSO state.
func AuthFor(ctx context.Context, rawURL string, creds *domain.Credentials) (transport.AuthMethod, error) {
	if isSSH(rawURL) {
		if creds == nil || len(creds.SSHKey) == 0 {
			return nil, nil
		}
		user := creds.Username
		if user == "" {
			user = "git"
		}
		keys, err := gitssh.NewPublicKeys(user, creds.SSHKey, creds.Password)
		if err != nil {
			return nil, fmt.Errorf("gitengine: parse ssh key: %w", err)
		}
		return keys, nil
	}

	var inner githttp.AuthMethod
	if creds != nil && (creds.Username != "" || creds.Password != "") {
		inner = &githttp.BasicAuth{Username: creds.Username, Password: creds.Password}
	}
	cookie := domain.SessionCookieFrom(ctx)
	if cookie == nil && creds != nil {
		cookie = creds.Cookie
	}
	if cookie == nil {
		if inner == nil {
			return nil, nil
		}
		return inner, nil
	}
	return &cookieAuth{inner: inner, name: cookie.Name, value: cookie.Value}, nil
}

func isSSH(rawURL string) bool {
	if strings.HasPrefix(rawURL, "ssh://") {
		return true
	}
	// scp-like syntax: user@host:path
	return !strings.Contains(rawURL, "://") && strings.Contains(rawURL, "@")
}

// cookieAuth decorates an HTTP auth method with a session cookie header.
type cookieAuth struct {
	inner githttp.AuthMethod
	name  string
	value string
}

func (a *cookieAuth) Name() string {
	if a.inner != nil {
		return a.inner.Name()
	}
	return "http-cookie"
}

func (a *cookieAuth) String() string {
	if a.inner != nil {
		return a.inner.String()
	}
	return "http-cookie"
}

func (a *cookieAuth) SetAuth(r *http.Request) {
	if a.inner != nil {
		a.inner.SetAuth(r)
	}
	r.AddCookie(&http.Cookie{Name: a.name, Value: a.value})
}
