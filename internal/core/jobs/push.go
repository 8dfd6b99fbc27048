package jobs

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"

	gogit "github.com/go-git/go-git/v5"
	gitconfig "github.com/go-git/go-git/v5/config"

	"github.com/codebay/backend/internal/core/ports"
	"github.com/codebay/backend/internal/domain"
	"github.com/codebay/backend/internal/infrastructure/gitengine"
	"github.com/codebay/backend/internal/infrastructure/logger"
)

// ReviewBranchPrefix marks a destination branch as a push-to-code-review:
// "for/main" is routed to the refs/for/main review namespace instead of a
// branch ref.
const ReviewBranchPrefix = "for/"

// Push update statuses reported per remote ref.
const (
	PushStatusOK             = "OK"
	PushStatusUpToDate       = "UP_TO_DATE"
	PushStatusNonFastForward = "REJECTED_NONFASTFORWARD"
)

var nonFastForwardRef = regexp.MustCompile(`non-fast-forward update:\s*(\S+)`)

// PushOperation pushes a source ref to a destination branch (or review ref)
// on a remote, optionally with tags.
type PushOperation struct {
	Engine    *gitengine.Engine
	Providers ports.TokenProviderRegistry
	Creds     *domain.Credentials
	Path      string
	RelPath   string
	Remote    string
	SrcRef    string
	DstBranch string
	PushTags  bool
	Force     bool
	Log       *logger.Logger
}

func (op *PushOperation) Name() string { return "Error pushing git repository" }

func (op *PushOperation) Execute(ctx context.Context, sink *ProgressSink) (*Result, error) {
	handle, err := op.Engine.Open(op.Path)
	if err != nil {
		return nil, err
	}
	defer handle.Close()

	remoteURL, err := handle.RemoteURL(op.Remote)
	if err != nil {
		return nil, err
	}
	if op.Creds == nil {
		op.Creds = &domain.Credentials{}
	}
	if op.Creds.URI() == nil {
		if err := op.Creds.BindURI(remoteURL); err != nil {
			return nil, err
		}
	}
	auth, err := gitengine.AuthFor(ctx, remoteURL, op.Creds)
	if err != nil {
		return nil, err
	}

	dstRef := destinationRef(op.DstBranch)
	spec := fmt.Sprintf("%s:%s", op.SrcRef, dstRef)
	if op.Force {
		spec = "+" + spec
	}
	refSpecs := []gitconfig.RefSpec{gitconfig.RefSpec(spec)}
	if op.PushTags {
		refSpecs = append(refSpecs, gitconfig.RefSpec("refs/tags/*:refs/tags/*"))
	}

	sink.Start(1)
	sink.BeginSubtask(fmt.Sprintf("Pushing %s", op.Remote), UnknownTotal)
	pushErr := handle.Repo.PushContext(ctx, &gogit.PushOptions{
		RemoteName: op.Remote,
		RefSpecs:   refSpecs,
		Auth:       auth,
		Progress:   sink.Writer(),
		Force:      op.Force,
	})
	sink.EndSubtask()

	if sink.IsCancelled() {
		return nil, ctx.Err()
	}

	location := domain.JSONB{"Location": repoLocation(op.RelPath)}

	switch {
	case pushErr == nil:
		location["Updates"] = []domain.JSONB{}
		return &Result{Severity: SeverityOK, Message: "OK", JsonData: location}, nil
	case errors.Is(pushErr, gogit.NoErrAlreadyUpToDate):
		// Up-to-date updates are filtered out of the itemized list entirely.
		location["Updates"] = []domain.JSONB{}
		return &Result{Severity: SeverityOK, Message: "Already up to date", JsonData: location}, nil
	}

	if rejected := op.rejectedUpdates(pushErr, dstRef); len(rejected) > 0 {
		location["Updates"] = rejected
		return &Result{Severity: SeverityError, Message: "Push rejected", JsonData: location}, nil
	}

	return nil, pushErr
}

// rejectedUpdates itemizes the refs the remote rejected, filtered to the
// requested branch, tag or review namespace. Refs outside the request are not
// reported.
func (op *PushOperation) rejectedUpdates(pushErr error, dstRef string) []domain.JSONB {
	var updates []domain.JSONB
	for _, match := range nonFastForwardRef.FindAllStringSubmatch(pushErr.Error(), -1) {
		ref := match[1]
		if !op.refRequested(ref, dstRef) {
			continue
		}
		updates = append(updates, domain.JSONB{
			"Ref":     ref,
			"Result":  PushStatusNonFastForward,
			"Message": fmt.Sprintf("non-fast-forward update: %s", ref),
		})
	}
	return updates
}

func (op *PushOperation) refRequested(ref, dstRef string) bool {
	switch {
	case ref == dstRef:
		return true
	case strings.HasPrefix(ref, "refs/for/"):
		return true
	case op.PushTags && strings.HasPrefix(ref, "refs/tags/"):
		return true
	}
	return false
}

// EnrichError attaches a token-exchange endpoint when the push failed for
// authorization reasons, as a remediation hint for the caller. Strictly
// additive diagnostic data, never a separate error path.
func (op *PushOperation) EnrichError(ce *ClassifiedError) {
	if op.Providers == nil || (ce.HttpCode != 401 && ce.HttpCode != 403) {
		return
	}
	uri := op.Creds.URI()
	if uri == nil {
		return
	}
	if authURL, ok := op.Providers.AuthURL(uri.Hostname()); ok {
		if ce.JsonData == nil {
			ce.JsonData = domain.JSONB{}
		}
		ce.JsonData["GitHubAuth"] = authURL
	}
}

// destinationRef routes a destination branch to its full ref name, honoring
// the push-to-review convention.
func destinationRef(dstBranch string) string {
	if strings.HasPrefix(dstBranch, ReviewBranchPrefix) {
		return "refs/for/" + strings.TrimPrefix(dstBranch, ReviewBranchPrefix)
	}
	return "refs/heads/" + dstBranch
}
