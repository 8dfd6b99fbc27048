package http

import (
	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"

	"github.com/codebay/backend/internal/config"
	"github.com/codebay/backend/internal/core/jobs"
	"github.com/codebay/backend/internal/core/services"
	"github.com/codebay/backend/internal/infrastructure/db"
	"github.com/codebay/backend/internal/infrastructure/gitengine"
	"github.com/codebay/backend/internal/infrastructure/logger"
	"github.com/codebay/backend/internal/transport/http/handlers"
	httpmw "github.com/codebay/backend/internal/transport/http/middleware"
)

type RouterConfig struct {
	DB     *gorm.DB
	Logger *logger.Logger
	Config *config.Config
	Runner *jobs.Runner
	Tasks  *services.TaskService
}

func SetupRoutes(app *fiber.App, cfg RouterConfig) {
	// Initialize repositories
	projectRepo := db.NewProjectRepository(cfg.DB, cfg.Logger)

	// Initialize services
	engine := gitengine.New(cfg.Logger)
	projectService := services.NewProjectService(projectRepo, cfg.Config.Jobs.WorkspaceRoot, cfg.Logger)
	providerRegistry := services.NewProviderRegistry(cfg.Config.Providers)

	// Initialize handlers
	vcsHandler := handlers.NewVCSHandler(
		engine, projectService, projectRepo, cfg.Tasks, cfg.Runner,
		providerRegistry, cfg.Config, cfg.Logger,
	)
	taskHandler := handlers.NewTaskHandler(cfg.Tasks, cfg.Logger)
	projectHandler := handlers.NewProjectHandler(projectService, cfg.Logger)

	app.Use(httpmw.SessionCookie(cfg.Config))

	// Task stream route
	app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			c.Locals("allowed", true)
			return c.Next()
		}
		return c.SendStatus(fiber.StatusUpgradeRequired)
	})
	app.Get("/ws/tasks/:id", websocket.New(taskHandler.StreamTask))

	// API v1 routes
	api := app.Group("/api/v1")

	// Repository creation routes
	vcs := api.Group("/vcs", httpmw.AdminAuth(cfg.Config))
	vcs.Post("/clone", vcsHandler.Clone)
	vcs.Post("/init", vcsHandler.Init)

	// Repository operation routes
	repos := api.Group("/repos", httpmw.AdminAuth(cfg.Config))
	repos.Post("/:id/fetch", vcsHandler.Fetch)
	repos.Post("/:id/pull", vcsHandler.Pull)
	repos.Post("/:id/push", vcsHandler.Push)
	repos.Get("/:id/branches", vcsHandler.ListBranches)
	repos.Get("/:id/tags", vcsHandler.ListTags)
	repos.Get("/:id/commits", vcsHandler.ListCommits)
	repos.Get("/:id/status", vcsHandler.Status)
	repos.Get("/:id/remotes/:remote", vcsHandler.RemoteDetails)

	// Task routes
	tasks := api.Group("/tasks", httpmw.AdminAuth(cfg.Config))
	tasks.Get("/:id", taskHandler.GetTask)
	tasks.Post("/:id/cancel", taskHandler.CancelTask)
	tasks.Delete("/:id", taskHandler.DeleteTask)

	// Project routes
	projects := api.Group("/projects", httpmw.AdminAuth(cfg.Config))
	projects.Post("/", projectHandler.CreateProject)
	projects.Get("/", projectHandler.GetProjects)
	projects.Get("/:id", projectHandler.GetProject)
	projects.Delete("/:id", projectHandler.DeleteProject)
}
