package handlers

import (
	"errors"
	"strconv"

	"github.com/gofiber/fiber/v2"

	"github.com/codebay/backend/internal/core/ports"
	"github.com/codebay/backend/internal/core/services"
	"github.com/codebay/backend/internal/domain"
	"github.com/codebay/backend/internal/infrastructure/logger"
	"github.com/codebay/backend/internal/transport/http/dto"
)

type ProjectHandler struct {
	service ports.ProjectService
	logger  *logger.Logger
}

func NewProjectHandler(service ports.ProjectService, logger *logger.Logger) *ProjectHandler {
	return &ProjectHandler{service: service, logger: logger}
}

func (h *ProjectHandler) CreateProject(c *fiber.Ctx) error {
	var req dto.CreateProjectRequest
	if err := c.BodyParser(&req); err != nil {
		h.logger.Warnw("project_create_body_parse_failed", "error", err)
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{
			Error: "invalid request body",
		})
	}
	if errs := req.Validate(); len(errs) > 0 {
		h.logger.Warnw("project_create_validation_failed", "details", errs)
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{
			Error:   "validation failed",
			Details: errs,
		})
	}

	project := &domain.Project{
		Name:     req.Name,
		Path:     req.Path,
		CloneURL: req.CloneURL,
		Owner:    owner(c),
	}

	h.logger.Infow("project_create_request", "name", req.Name, "path", req.Path)
	err := h.service.Create(c.Context(), project)
	switch {
	case errors.Is(err, services.ErrProjectExists):
		return c.Status(fiber.StatusConflict).JSON(dto.ErrorResponse{
			Error: "project with this path already exists",
		})
	case errors.Is(err, services.ErrProjectInvalidInput), errors.Is(err, services.ErrPathOutsideRoot):
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: err.Error()})
	case err != nil:
		h.logger.Errorw("project_create_failed", "error", err)
		return c.Status(fiber.StatusInternalServerError).JSON(dto.ErrorResponse{Error: err.Error()})
	}

	h.logger.Infow("project_create_success", "project_id", project.ID, "path", project.Path)
	return c.Status(fiber.StatusCreated).JSON(dto.ProjectToResponse(project))
}

func (h *ProjectHandler) GetProjects(c *fiber.Ctx) error {
	projects, err := h.service.List(c.Context())
	if err != nil {
		h.logger.Errorw("projects_list_failed", "error", err)
		return c.Status(fiber.StatusInternalServerError).JSON(dto.ErrorResponse{Error: err.Error()})
	}
	return c.JSON(dto.ProjectsToResponse(projects))
}

func (h *ProjectHandler) GetProject(c *fiber.Ctx) error {
	id, err := strconv.ParseUint(c.Params("id"), 10, 32)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: "invalid project id"})
	}
	project, err := h.service.Get(c.Context(), uint(id))
	if err != nil {
		return c.Status(fiber.StatusNotFound).JSON(dto.ErrorResponse{Error: "project not found"})
	}
	return c.JSON(dto.ProjectToResponse(project))
}

func (h *ProjectHandler) DeleteProject(c *fiber.Ctx) error {
	id, err := strconv.ParseUint(c.Params("id"), 10, 32)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: "invalid project id"})
	}
	removeContents := c.QueryBool("remove_contents", false)

	h.logger.Infow("project_delete_request", "project_id", id, "remove_contents", removeContents)
	err = h.service.Delete(c.Context(), uint(id), removeContents)
	switch {
	case errors.Is(err, services.ErrProjectNotFound):
		return c.Status(fiber.StatusNotFound).JSON(dto.ErrorResponse{Error: "project not found"})
	case err != nil:
		h.logger.Errorw("project_delete_failed", "project_id", id, "error", err)
		return c.Status(fiber.StatusInternalServerError).JSON(dto.ErrorResponse{Error: err.Error()})
	}
	return c.JSON(dto.SuccessResponse{Message: "project deleted"})
}
