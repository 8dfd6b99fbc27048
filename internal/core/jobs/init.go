package jobs

import (
	"context"

	"github.com/codebay/backend/internal/domain"
	"github.com/codebay/backend/internal/infrastructure/gitengine"
	"github.com/codebay/backend/internal/infrastructure/logger"
)

// InitOperation creates an empty repository in the workspace. An empty
// initial commit is mandatory; downstream tooling assumes at least one commit
// exists.
type InitOperation struct {
	Engine         *gitengine.Engine
	Path           string
	RelPath        string
	CommitterName  string
	CommitterEmail string
	Log            *logger.Logger
}

func (op *InitOperation) Name() string { return "Error initializing git repository" }

func (op *InitOperation) Execute(ctx context.Context, sink *ProgressSink) (*Result, error) {
	sink.Start(1)
	sink.BeginSubtask("Initializing repository", UnknownTotal)

	handle, err := op.Engine.Init(op.Path)
	if err != nil {
		return nil, err
	}
	defer handle.Close()

	if err := handle.SetCommitter(op.CommitterName, op.CommitterEmail); err != nil {
		return nil, err
	}
	if err := handle.EmptyCommit("Initial commit", op.CommitterName, op.CommitterEmail); err != nil {
		return nil, err
	}
	sink.EndSubtask()

	return &Result{
		Message:  "OK",
		Severity: SeverityOK,
		JsonData: domain.JSONB{"Location": repoLocation(op.RelPath), "Path": op.RelPath},
	}, nil
}
