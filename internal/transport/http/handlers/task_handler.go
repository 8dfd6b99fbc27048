package handlers

import (
	"errors"

	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"

	"github.com/codebay/backend/internal/core/ports"
	"github.com/codebay/backend/internal/core/services"
	"github.com/codebay/backend/internal/infrastructure/logger"
	"github.com/codebay/backend/internal/transport/http/dto"
)

type TaskHandler struct {
	tasks  ports.TaskRegistry
	logger *logger.Logger
}

func NewTaskHandler(tasks ports.TaskRegistry, logger *logger.Logger) *TaskHandler {
	return &TaskHandler{tasks: tasks, logger: logger}
}

func (h *TaskHandler) GetTask(c *fiber.Ctx) error {
	task, err := h.tasks.Get(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusNotFound).JSON(dto.ErrorResponse{Error: "task not found"})
	}
	return c.JSON(task)
}

func (h *TaskHandler) CancelTask(c *fiber.Ctx) error {
	id := c.Params("id")
	err := h.tasks.Cancel(id)
	switch {
	case errors.Is(err, services.ErrTaskNotFound):
		return c.Status(fiber.StatusNotFound).JSON(dto.ErrorResponse{Error: "task not found"})
	case errors.Is(err, services.ErrTaskCompleted):
		return c.Status(fiber.StatusConflict).JSON(dto.ErrorResponse{Error: "task already completed"})
	case err != nil:
		h.logger.Errorw("task_cancel_failed", "task_id", id, "error", err)
		return c.Status(fiber.StatusInternalServerError).JSON(dto.ErrorResponse{Error: err.Error()})
	}
	return c.JSON(dto.SuccessResponse{Message: "cancellation requested"})
}

func (h *TaskHandler) DeleteTask(c *fiber.Ctx) error {
	id := c.Params("id")
	if err := h.tasks.Delete(id); err != nil {
		return c.Status(fiber.StatusNotFound).JSON(dto.ErrorResponse{Error: "task not found"})
	}
	return c.JSON(dto.SuccessResponse{Message: "task deleted"})
}

// StreamTask pushes task snapshots over a websocket until the task reaches a
// terminal state or the client disconnects.
func (h *TaskHandler) StreamTask(conn *websocket.Conn) {
	id := conn.Params("id")
	updates, stop, err := h.tasks.Watch(id)
	if err != nil {
		conn.WriteJSON(dto.ErrorResponse{Error: "task not found"})
		conn.Close()
		return
	}
	defer stop()
	defer conn.Close()

	for task := range updates {
		if err := conn.WriteJSON(task); err != nil {
			h.logger.Debugw("task_stream_write_failed", "task_id", id, "error", err)
			return
		}
		if task.Completed() {
			return
		}
	}
}
