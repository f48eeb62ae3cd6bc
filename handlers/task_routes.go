// handlers/task_routes.go
package handlers

import (
	"errors"
	"time"

	"gamified-task-system/middleware"
	"gamified-task-system/services"
	"gamified-task-system/utils"

	"github.com/gofiber/fiber/v2"
)

func SetupTaskRoutes(app fiber.Router, taskService *services.TaskService, loc *time.Location) {
	secured := app.Group("/tasks", middleware.UserContextMiddleware())

	secured.Post("", func(c *fiber.Ctx) error {
		var req services.TaskInput
		if err := c.BodyParser(&req); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "invalid JSON",
				"cause": err.Error(),
			})
		}
		if err := validate.Struct(req); err != nil {
			return validationError(c, err)
		}

		task, err := taskService.CreateTask(c.UserContext(), currentUserID(c), req)
		if err != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"error": "failed to create task",
				"cause": err.Error(),
			})
		}
		return c.Status(fiber.StatusCreated).JSON(task)
	})

	secured.Get("", func(c *fiber.Ctx) error {
		tasks, err := taskService.ListTasks(c.UserContext(), currentUserID(c))
		if err != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"error": "failed to list tasks",
				"cause": err.Error(),
			})
		}
		return c.JSON(tasks)
	})

	secured.Get("/:id", func(c *fiber.Ctx) error {
		task, err := taskService.GetTask(c.UserContext(), currentUserID(c), c.Params("id"))
		if err != nil {
			return taskError(c, err)
		}
		return c.JSON(task)
	})

	secured.Put("/:id", func(c *fiber.Ctx) error {
		var req services.TaskUpdate
		if err := c.BodyParser(&req); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "invalid JSON",
				"cause": err.Error(),
			})
		}
		if err := validate.Struct(req); err != nil {
			return validationError(c, err)
		}

		task, err := taskService.UpdateTask(c.UserContext(), currentUserID(c), c.Params("id"), req)
		if err != nil {
			return taskError(c, err)
		}
		return c.JSON(task)
	})

	secured.Delete("/:id", func(c *fiber.Ctx) error {
		if err := taskService.DeleteTask(c.UserContext(), currentUserID(c), c.Params("id")); err != nil {
			return taskError(c, err)
		}
		return c.SendStatus(fiber.StatusNoContent)
	})

	// ✅ Completion: flips status and returns the rewards
	secured.Post("/:id/complete", func(c *fiber.Ctx) error {
		_, summary, err := taskService.CompleteTask(c.UserContext(), currentUserID(c), c.Params("id"), utils.Today(loc))
		if err != nil {
			return taskError(c, err)
		}
		return c.JSON(summary)
	})
}

func taskError(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, services.ErrTaskNotFound):
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Task not found"})
	case errors.Is(err, services.ErrTaskAlreadyCompleted):
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Task already completed"})
	case errors.Is(err, services.ErrConcurrentUpdate):
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{"error": "concurrent update, retry"})
	default:
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "task operation failed",
			"cause": err.Error(),
		})
	}
}
