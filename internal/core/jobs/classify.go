package jobs

import (
	"errors"
	"net"
	"net/url"

	gogit "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/transport"
	"golang.org/x/crypto/ssh/knownhosts"

	"github.com/codebay/backend/internal/domain"
)

// ClassifiedError is the stable, client-consumable form of a failed
// operation: an HTTP-style status code, a human-readable message and
// structured connection details when they were reliably available.
type ClassifiedError struct {
	HttpCode int
	Message  string
	JsonData domain.JSONB
}

// Result converts the classified error into a task result.
func (c *ClassifiedError) Result() *domain.TaskResult {
	return &domain.TaskResult{HttpCode: c.HttpCode, Message: c.Message, JsonData: c.JsonData}
}

// Message shapes of the underlying libraries. These are formatted strings,
// not stable identifiers, so they are matched as wildcard templates.
var (
	sshAuthPhrase = "unable to authenticate"

	hostKeyTemplates = []string{
		"knownhosts: key mismatch%s",
		"%sknownhosts: key mismatch",
		"%sknownhosts: key is unknown",
	}
	notPermittedTemplate  = "%s not permitted%s"
	notAuthorizedTemplate = "%s not authorized"
	malformedTemplates    = []string{
		"user name absent in URI %s",
		"no host in URI %s",
		"invalid endpoint: %s",
	}
)

// Classify maps a failure from a repository operation to a classified error.
// Rules are ordered, first match wins. Typed causes are preferred; message
// templates are the fallback for failures the libraries only surface as
// formatted strings. Classification never mutates credentials and never
// retries.
func Classify(err error, contextMessage string, creds *domain.Credentials) *ClassifiedError {
	msg := ""
	if err != nil {
		msg = err.Error()
	}

	// 1. SSH host-fingerprint mismatch: a distinct bad-request variant, the
	// caller must present a confirmation UI before any retry.
	var keyErr *knownhosts.KeyError
	if errors.As(err, &keyErr) || matchesAny(hostKeyTemplates, msg) {
		data := connectionInfo(creds)
		data["Diagnostic"] = "requires host-key confirmation"
		if keyErr != nil && len(keyErr.Want) > 0 {
			data["HostKey"] = keyErr.Want[0].String()
		}
		return &ClassifiedError{HttpCode: 400, Message: msg, JsonData: data}
	}

	// 2. SSH authentication failure.
	if containsFold(msg, sshAuthPhrase) {
		return &ClassifiedError{HttpCode: 401, Message: "Authentication failed", JsonData: connectionInfo(creds)}
	}

	// 3. Transport-layer failures.
	switch {
	case errors.Is(err, transport.ErrAuthenticationRequired):
		return &ClassifiedError{HttpCode: 401, Message: transport.ErrAuthenticationRequired.Error(), JsonData: connectionInfo(creds)}
	case errors.Is(err, transport.ErrAuthorizationFailed):
		return &ClassifiedError{HttpCode: 403, Message: transport.ErrAuthorizationFailed.Error(), JsonData: connectionInfo(creds)}
	case errors.Is(err, transport.ErrRepositoryNotFound),
		errors.Is(err, plumbing.ErrReferenceNotFound),
		errors.Is(err, gogit.ErrBranchNotFound),
		errors.Is(err, gogit.ErrTagNotFound),
		errors.Is(err, gogit.ErrRemoteNotFound):
		return &ClassifiedError{HttpCode: 404, Message: msg}
	case matchesTemplate(notPermittedTemplate, msg):
		return &ClassifiedError{HttpCode: 403, Message: msg, JsonData: connectionInfo(creds)}
	case matchesTemplate(notAuthorizedTemplate, msg):
		return &ClassifiedError{HttpCode: 401, Message: msg, JsonData: connectionInfo(creds)}
	case matchesAny(malformedTemplates, msg):
		return &ClassifiedError{HttpCode: 400, Message: msg}
	case isTransportError(err):
		return &ClassifiedError{HttpCode: 500, Message: contextMessage, JsonData: connectionInfo(creds)}
	}

	// 4. Unclassified: the contextual message is the user-facing text, raw
	// library detail only as secondary data. No connection details, none were
	// reliably available.
	return &ClassifiedError{HttpCode: 500, Message: contextMessage, JsonData: domain.JSONB{"DetailedMessage": msg}}
}

func matchesAny(templates []string, msg string) bool {
	for _, t := range templates {
		if matchesTemplate(t, msg) {
			return true
		}
	}
	return false
}

func isTransportError(err error) bool {
	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return true
	}
	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		return true
	}
	var dnsErr *net.DNSError
	return errors.As(err, &dnsErr)
}

func connectionInfo(creds *domain.Credentials) domain.JSONB {
	if info := creds.ConnectionInfo(); info != nil {
		return info
	}
	return domain.JSONB{}
}
