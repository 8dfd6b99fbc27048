package dto

import (
	"time"

	"github.com/codebay/backend/internal/domain"
)

// CredentialsPayload carries optional per-request credentials. The session
// cookie is never part of the body; it travels as a request cookie.
type CredentialsPayload struct {
	Username string `json:"username,omitempty"`
	Password string `json:"password,omitempty"`
	SSHKey   string `json:"ssh_key,omitempty"`
}

func (p *CredentialsPayload) ToDomain() *domain.Credentials {
	creds := &domain.Credentials{
		Username: p.Username,
		Password: p.Password,
	}
	if p.SSHKey != "" {
		creds.SSHKey = []byte(p.SSHKey)
	}
	return creds
}

type CloneRequest struct {
	URL  string `json:"url" validate:"required"`
	Path string `json:"path" validate:"required"`
	// InitProject creates project metadata alongside the clone.
	InitProject bool `json:"init_project"`
	// Keep exempts the resulting task record from TTL expiry.
	Keep bool `json:"keep"`
	CredentialsPayload
}

func (r *CloneRequest) Validate() []string {
	var errors []string
	if r.URL == "" {
		errors = append(errors, "url is required")
	}
	if r.Path == "" {
		errors = append(errors, "path is required")
	}
	return errors
}

type InitRequest struct {
	Path string `json:"path" validate:"required"`
	Keep bool   `json:"keep"`
}

func (r *InitRequest) Validate() []string {
	var errors []string
	if r.Path == "" {
		errors = append(errors, "path is required")
	}
	return errors
}

type FetchRequest struct {
	Remote string `json:"remote"`
	Branch string `json:"branch,omitempty"`
	Force  bool   `json:"force"`
	Keep   bool   `json:"keep"`
	CredentialsPayload
}

func (r *FetchRequest) GetRemote() string {
	if r.Remote == "" {
		return "origin"
	}
	return r.Remote
}

type PullRequest struct {
	Remote string `json:"remote"`
	Branch string `json:"branch,omitempty"`
	Force  bool   `json:"force"`
	Keep   bool   `json:"keep"`
	CredentialsPayload
}

func (r *PullRequest) GetRemote() string {
	if r.Remote == "" {
		return "origin"
	}
	return r.Remote
}

type PushRequest struct {
	Remote string `json:"remote"`
	SrcRef string `json:"src_ref"`
	// DstBranch is the destination branch; a "for/" prefix routes the push to
	// the code-review ref namespace.
	DstBranch string `json:"dst_branch" validate:"required"`
	PushTags  bool   `json:"push_tags"`
	Force     bool   `json:"force"`
	Keep      bool   `json:"keep"`
	CredentialsPayload
}

func (r *PushRequest) Validate() []string {
	var errors []string
	if r.DstBranch == "" {
		errors = append(errors, "dst_branch is required")
	}
	return errors
}

func (r *PushRequest) GetRemote() string {
	if r.Remote == "" {
		return "origin"
	}
	return r.Remote
}

func (r *PushRequest) GetSrcRef() string {
	if r.SrcRef == "" {
		return "HEAD"
	}
	return r.SrcRef
}

// LogQuery holds the parsed query parameters of a commit listing.
type LogQuery struct {
	Ref       string
	Base      string
	Author    string
	Committer string
	Message   string
	Since     *time.Time
	Until     *time.Time
}
