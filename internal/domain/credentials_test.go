package domain

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBindURIOnce(t *testing.T) {
	creds := &Credentials{}
	require.NoError(t, creds.BindURI("https://example.com/team/app.git"))
	assert.ErrorIs(t, creds.BindURI("https://example.com/other.git"), ErrURIAlreadyBound)
	assert.Equal(t, "https://example.com/team/app.git", creds.URI().String())
}

func TestBindURIScpSyntax(t *testing.T) {
	creds := &Credentials{}
	require.NoError(t, creds.BindURI("git@example.com:team/app.git"))
	require.NotNil(t, creds.URI())
}

func TestURINilReceiver(t *testing.T) {
	var creds *Credentials
	assert.Nil(t, creds.URI())
	assert.Nil(t, creds.ConnectionInfo())
}

func TestConnectionInfoUnbound(t *testing.T) {
	creds := &Credentials{Username: "alice"}
	assert.Nil(t, creds.ConnectionInfo())
}

func TestConnectionInfoUserFromURI(t *testing.T) {
	creds := &Credentials{}
	require.NoError(t, creds.BindURI("https://bob@example.com/app.git"))
	info := creds.ConnectionInfo()
	assert.Equal(t, "bob", info["User"])
}

func TestHumanishName(t *testing.T) {
	tests := []struct {
		raw  string
		want string
	}{
		{"https://example.com/team/app.git", "app"},
		{"https://example.com/team/app.git/", "app"},
		{"git@example.com:team/app.git", "app"},
		{"ssh://git@example.com:2222/app.git", "app"},
		{"/local/app", "app"},
		{"app", "app"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, HumanishName(tt.raw), tt.raw)
	}
}

func TestHostOf(t *testing.T) {
	assert.Equal(t, "example.com", HostOf("https://example.com/team/app.git"))
	assert.Equal(t, "example.com", HostOf("git@example.com:team/app.git"))
	assert.Equal(t, "", HostOf("/local/app"))
}

func TestSessionCookieContext(t *testing.T) {
	ctx := context.Background()
	assert.Nil(t, SessionCookieFrom(ctx))

	cookie := &SessionCookie{Name: "codebay_session", Value: "secret"}
	ctx = WithSessionCookie(ctx, cookie)
	assert.Equal(t, cookie, SessionCookieFrom(ctx))

	// Nil cookie leaves the context untouched.
	assert.Equal(t, ctx, WithSessionCookie(ctx, nil))
}
