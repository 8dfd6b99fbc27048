package jobs

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/codebay/backend/internal/core/ports"
	"github.com/codebay/backend/internal/domain"
	"github.com/codebay/backend/internal/infrastructure/gitengine"
	"github.com/codebay/backend/internal/infrastructure/logger"
)

// ProjectDescriptorFile is the workspace descriptor synthesized for projects
// created from a clone.
const ProjectDescriptorFile = "project.json"

// CloneOperation clones a remote repository into the workspace.
type CloneOperation struct {
	Engine   *gitengine.Engine
	Projects ports.ProjectRepository
	Creds    *domain.Credentials
	URL      string
	// Path is the absolute target directory; RelPath the workspace-relative
	// form used for the resource location and the project record.
	Path    string
	RelPath string
	// InitProject creates workspace project metadata alongside the clone.
	InitProject    bool
	Owner          string
	CommitterName  string
	CommitterEmail string
	Log            *logger.Logger
}

func (op *CloneOperation) Name() string { return "Error cloning git repository" }

func (op *CloneOperation) Execute(ctx context.Context, sink *ProgressSink) (*Result, error) {
	if op.Creds == nil {
		op.Creds = &domain.Credentials{}
	}
	if op.Creds.URI() == nil {
		if err := op.Creds.BindURI(op.URL); err != nil {
			return nil, err
		}
	}

	_, statErr := os.Stat(op.Path)
	dirExisted := statErr == nil

	auth, err := gitengine.AuthFor(ctx, op.URL, op.Creds)
	if err != nil {
		return nil, err
	}

	sink.Start(1)
	sink.BeginSubtask("Cloning repository", UnknownTotal)
	handle, err := op.Engine.Clone(ctx, op.Path, gitengine.CloneOptions{
		URL:        op.URL,
		RemoteName: "origin",
		Auth:       auth,
		Progress:   sink.Writer(),
	})
	if err != nil {
		return nil, op.compensate(ctx, err, dirExisted)
	}
	defer handle.Close()
	sink.EndSubtask()

	// Cancelled mid-clone: stop here, no further steps.
	if sink.IsCancelled() {
		return nil, ctx.Err()
	}

	if err := handle.SetCommitter(op.CommitterName, op.CommitterEmail); err != nil {
		return nil, op.compensate(ctx, err, dirExisted)
	}

	// Loose-ref compaction is a non-essential optimization.
	if err := handle.PackRefs(); err != nil {
		op.Log.Debugw("clone_pack_refs_failed", "path", op.Path, "error", err)
	}

	if op.InitProject {
		if err := op.initProject(ctx); err != nil {
			return nil, op.compensate(ctx, err, dirExisted)
		}
	}

	location := repoLocation(op.RelPath)
	return &Result{
		Message:  "OK",
		Severity: SeverityOK,
		JsonData: domain.JSONB{"Location": location, "Path": op.RelPath},
	}, nil
}

// initProject synthesizes the project descriptor and metadata record. The
// descriptor is never overwritten if one already exists.
func (op *CloneOperation) initProject(ctx context.Context) error {
	name := ProjectNameFromURL(op.URL)
	descriptor := filepath.Join(op.Path, ProjectDescriptorFile)
	if _, err := os.Stat(descriptor); os.IsNotExist(err) {
		body, err := json.MarshalIndent(map[string]string{"Name": name}, "", "\t")
		if err != nil {
			return err
		}
		if err := os.WriteFile(descriptor, body, 0o644); err != nil {
			return err
		}
	}
	if op.Projects == nil {
		return nil
	}
	return op.Projects.Create(ctx, &domain.Project{
		Name:     name,
		Path:     op.RelPath,
		CloneURL: op.URL,
		Owner:    op.Owner,
	})
}

// compensate cleans up after a failed clone: the project record when one
// exists, otherwise the partially-cloned directory. A secondary failure here
// never overrides the original one; it is carried as a suppressed error.
func (op *CloneOperation) compensate(ctx context.Context, cause error, dirExisted bool) error {
	var suppressed error
	if op.Projects != nil {
		if project, err := op.Projects.GetByPath(ctx, op.RelPath); err == nil && project != nil {
			suppressed = op.Projects.Delete(ctx, project.ID)
			if rmErr := os.RemoveAll(op.Path); suppressed == nil {
				suppressed = rmErr
			}
			return &OpError{Err: cause, Suppressed: suppressed}
		}
	}
	if !dirExisted {
		suppressed = os.RemoveAll(op.Path)
	}
	if suppressed == nil {
		return cause
	}
	return &OpError{Err: cause, Suppressed: suppressed}
}

// ProjectNameFromURL derives the synthesized project name from a clone URL:
// "{repoName} at {host}".
func ProjectNameFromURL(rawURL string) string {
	repo := domain.HumanishName(rawURL)
	host := domain.HostOf(rawURL)
	if host == "" {
		return repo
	}
	return fmt.Sprintf("%s at %s", repo, host)
}

func repoLocation(relPath string) string {
	return "/api/v1/repos/" + relPath
}
