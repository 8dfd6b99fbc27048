package handlers

import (
	"errors"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/codebay/backend/internal/config"
	"github.com/codebay/backend/internal/core/jobs"
	"github.com/codebay/backend/internal/core/ports"
	"github.com/codebay/backend/internal/core/services"
	"github.com/codebay/backend/internal/domain"
	"github.com/codebay/backend/internal/infrastructure/gitengine"
	"github.com/codebay/backend/internal/infrastructure/logger"
	"github.com/codebay/backend/internal/transport/http/dto"
	"github.com/codebay/backend/internal/transport/http/middleware"
)

// VCSHandler exposes repository operations. Mutating operations run as
// background jobs and answer 202 with a task id; listings run synchronously.
type VCSHandler struct {
	engine      *gitengine.Engine
	projects    ports.ProjectService
	projectRepo ports.ProjectRepository
	tasks       ports.TaskRegistry
	runner      *jobs.Runner
	providers   ports.TokenProviderRegistry
	cfg         *config.Config
	logger      *logger.Logger
}

func NewVCSHandler(
	engine *gitengine.Engine,
	projects ports.ProjectService,
	projectRepo ports.ProjectRepository,
	tasks ports.TaskRegistry,
	runner *jobs.Runner,
	providers ports.TokenProviderRegistry,
	cfg *config.Config,
	logger *logger.Logger,
) *VCSHandler {
	return &VCSHandler{
		engine:      engine,
		projects:    projects,
		projectRepo: projectRepo,
		tasks:       tasks,
		runner:      runner,
		providers:   providers,
		cfg:         cfg,
		logger:      logger,
	}
}

func (h *VCSHandler) Clone(c *fiber.Ctx) error {
	var req dto.CloneRequest
	if err := c.BodyParser(&req); err != nil {
		h.logger.Warnw("clone_body_parse_failed", "error", err)
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{
			Error: "invalid request body",
		})
	}
	if errs := req.Validate(); len(errs) > 0 {
		h.logger.Warnw("clone_validation_failed", "details", errs)
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{
			Error:   "validation failed",
			Details: errs,
		})
	}

	abs, err := h.projects.ResolvePath(req.Path)
	if err != nil {
		h.logger.Warnw("clone_bad_path", "path", req.Path, "error", err)
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: err.Error()})
	}

	creds := req.ToDomain()
	op := &jobs.CloneOperation{
		Engine:         h.engine,
		Projects:       h.projectRepo,
		Creds:          creds,
		URL:            req.URL,
		Path:           abs,
		RelPath:        req.Path,
		InitProject:    req.InitProject,
		Owner:          owner(c),
		CommitterName:  h.cfg.Jobs.CommitterName,
		CommitterEmail: h.cfg.Jobs.CommitterEmail,
		Log:            h.logger,
	}
	h.logger.Infow("clone_request", "url", req.URL, "path", req.Path)
	return h.submit(c, op, creds, req.Keep)
}

func (h *VCSHandler) Init(c *fiber.Ctx) error {
	var req dto.InitRequest
	if err := c.BodyParser(&req); err != nil {
		h.logger.Warnw("init_body_parse_failed", "error", err)
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{
			Error: "invalid request body",
		})
	}
	if errs := req.Validate(); len(errs) > 0 {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{
			Error:   "validation failed",
			Details: errs,
		})
	}

	abs, err := h.projects.ResolvePath(req.Path)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: err.Error()})
	}

	op := &jobs.InitOperation{
		Engine:         h.engine,
		Path:           abs,
		RelPath:        req.Path,
		CommitterName:  h.cfg.Jobs.CommitterName,
		CommitterEmail: h.cfg.Jobs.CommitterEmail,
		Log:            h.logger,
	}
	h.logger.Infow("init_request", "path", req.Path)
	return h.submit(c, op, nil, req.Keep)
}

func (h *VCSHandler) Fetch(c *fiber.Ctx) error {
	project, abs, ok := h.resolveRepo(c)
	if !ok {
		return nil
	}
	var req dto.FetchRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{
			Error: "invalid request body",
		})
	}

	creds := req.ToDomain()
	op := &jobs.FetchOperation{
		Engine:  h.engine,
		Creds:   creds,
		Path:    abs,
		RelPath: project.Path,
		Remote:  req.GetRemote(),
		Branch:  req.Branch,
		Force:   req.Force,
		Log:     h.logger,
	}
	h.logger.Infow("fetch_request", "project_id", project.ID, "remote", req.GetRemote(), "branch", req.Branch)
	return h.submit(c, op, creds, req.Keep)
}

func (h *VCSHandler) Pull(c *fiber.Ctx) error {
	project, abs, ok := h.resolveRepo(c)
	if !ok {
		return nil
	}
	var req dto.PullRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{
			Error: "invalid request body",
		})
	}

	creds := req.ToDomain()
	op := &jobs.PullOperation{
		Engine:  h.engine,
		Creds:   creds,
		Path:    abs,
		RelPath: project.Path,
		Remote:  req.GetRemote(),
		Branch:  req.Branch,
		Force:   req.Force,
		Log:     h.logger,
	}
	h.logger.Infow("pull_request", "project_id", project.ID, "remote", req.GetRemote(), "branch", req.Branch)
	return h.submit(c, op, creds, req.Keep)
}

func (h *VCSHandler) Push(c *fiber.Ctx) error {
	project, abs, ok := h.resolveRepo(c)
	if !ok {
		return nil
	}
	var req dto.PushRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{
			Error: "invalid request body",
		})
	}
	if errs := req.Validate(); len(errs) > 0 {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{
			Error:   "validation failed",
			Details: errs,
		})
	}

	creds := req.ToDomain()
	op := &jobs.PushOperation{
		Engine:    h.engine,
		Providers: h.providers,
		Creds:     creds,
		Path:      abs,
		RelPath:   project.Path,
		Remote:    req.GetRemote(),
		SrcRef:    req.GetSrcRef(),
		DstBranch: req.DstBranch,
		PushTags:  req.PushTags,
		Force:     req.Force,
		Log:       h.logger,
	}
	h.logger.Infow("push_request",
		"project_id", project.ID, "remote", req.GetRemote(), "dst_branch", req.DstBranch)
	return h.submit(c, op, creds, req.Keep)
}

func (h *VCSHandler) ListBranches(c *fiber.Ctx) error {
	project, abs, ok := h.resolveRepo(c)
	if !ok {
		return nil
	}
	op := &jobs.BranchListOperation{
		Engine:  h.engine,
		Path:    abs,
		RelPath: project.Path,
		Filter:  c.Query("filter"),
		Page:    pageQuery(c),
	}
	return h.runSync(c, op)
}

func (h *VCSHandler) ListTags(c *fiber.Ctx) error {
	project, abs, ok := h.resolveRepo(c)
	if !ok {
		return nil
	}
	op := &jobs.TagListOperation{
		Engine:  h.engine,
		Path:    abs,
		RelPath: project.Path,
		Filter:  c.Query("filter"),
		Page:    pageQuery(c),
	}
	return h.runSync(c, op)
}

func (h *VCSHandler) ListCommits(c *fiber.Ctx) error {
	project, abs, ok := h.resolveRepo(c)
	if !ok {
		return nil
	}
	query, errs := logQuery(c)
	if len(errs) > 0 {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{
			Error:   "validation failed",
			Details: errs,
		})
	}
	op := &jobs.LogOperation{
		Engine:  h.engine,
		Path:    abs,
		RelPath: project.Path,
		Ref:     query.Ref,
		BaseRef: query.Base,
		Filters: jobs.LogFilters{
			Author:    query.Author,
			Committer: query.Committer,
			Message:   query.Message,
			Since:     query.Since,
			Until:     query.Until,
		},
		Page: pageQuery(c),
	}
	return h.runSync(c, op)
}

func (h *VCSHandler) Status(c *fiber.Ctx) error {
	project, abs, ok := h.resolveRepo(c)
	if !ok {
		return nil
	}
	op := &jobs.StatusOperation{Engine: h.engine, Path: abs, RelPath: project.Path}
	return h.runSync(c, op)
}

func (h *VCSHandler) RemoteDetails(c *fiber.Ctx) error {
	project, abs, ok := h.resolveRepo(c)
	if !ok {
		return nil
	}
	op := &jobs.RemoteDetailsOperation{
		Engine:  h.engine,
		Path:    abs,
		RelPath: project.Path,
		Remote:  c.Params("remote"),
	}
	return h.runSync(c, op)
}

// submit registers a task, wraps the operation in a job and hands it to the
// worker pool. The caller polls or watches the task for the outcome.
func (h *VCSHandler) submit(c *fiber.Ctx, op jobs.Operation, creds *domain.Credentials, keep bool) error {
	task, ctx := h.tasks.Create(owner(c), keep)
	job := jobs.New(task, ctx, op, creds, middleware.SessionCookieFrom(c), h.tasks, h.logger)

	if err := h.runner.Submit(job); err != nil {
		h.tasks.Complete(task.ID, &domain.TaskResult{
			HttpCode: fiber.StatusServiceUnavailable,
			Message:  "Server busy",
		})
		h.logger.Warnw("job_submit_rejected", "task_id", task.ID, "error", err)
		return c.Status(fiber.StatusServiceUnavailable).JSON(dto.ErrorResponse{
			Error: "too many queued operations, try again later",
		})
	}

	location := "/api/v1/tasks/" + task.ID
	c.Set("Location", location)
	return c.Status(fiber.StatusAccepted).JSON(dto.TaskSubmittedResponse{
		TaskID:   task.ID,
		Location: location,
	})
}

// runSync executes a read-only operation on the request goroutine.
func (h *VCSHandler) runSync(c *fiber.Ctx, op jobs.Operation) error {
	result, classified := jobs.RunSync(c.Context(), op, nil)
	if classified != nil {
		h.logger.Warnw("listing_failed",
			"operation", op.Name(), "status", classified.HttpCode, "error", classified.Message)
		return c.Status(classified.HttpCode).JSON(dto.ErrorResponse{Error: classified.Message})
	}
	return c.JSON(result.JsonData)
}

// resolveRepo loads the project addressed by the :id parameter and maps its
// path into the workspace. On failure the response has been written and the
// caller must return nil.
func (h *VCSHandler) resolveRepo(c *fiber.Ctx) (*domain.Project, string, bool) {
	id, err := strconv.ParseUint(c.Params("id"), 10, 32)
	if err != nil {
		c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: "invalid project id"})
		return nil, "", false
	}
	project, err := h.projects.Get(c.Context(), uint(id))
	if err != nil {
		if errors.Is(err, services.ErrProjectNotFound) {
			c.Status(fiber.StatusNotFound).JSON(dto.ErrorResponse{Error: "project not found"})
		} else {
			h.logger.Errorw("project_lookup_failed", "id", id, "error", err)
			c.Status(fiber.StatusInternalServerError).JSON(dto.ErrorResponse{Error: err.Error()})
		}
		return nil, "", false
	}
	abs, err := h.projects.ResolvePath(project.Path)
	if err != nil {
		c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: err.Error()})
		return nil, "", false
	}
	return project, abs, true
}

func owner(c *fiber.Ctx) string {
	if user := c.Get("X-User-Id"); user != "" {
		return user
	}
	return c.IP()
}

func pageQuery(c *fiber.Ctx) jobs.Page {
	return jobs.Page{
		Number: c.QueryInt("page", 1),
		Size:   c.QueryInt("pageSize", 0),
	}
}

func logQuery(c *fiber.Ctx) (dto.LogQuery, []string) {
	query := dto.LogQuery{
		Ref:       c.Query("ref", "HEAD"),
		Base:      c.Query("base"),
		Author:    c.Query("author"),
		Committer: c.Query("committer"),
		Message:   c.Query("message"),
	}
	var errs []string
	if raw := c.Query("since"); raw != "" {
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			errs = append(errs, "since must be an RFC 3339 timestamp")
		} else {
			query.Since = &t
		}
	}
	if raw := c.Query("until"); raw != "" {
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			errs = append(errs, "until must be an RFC 3339 timestamp")
		} else {
			query.Until = &t
		}
	}
	return query, errs
}
