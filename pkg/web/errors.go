package web

import (
	"errors"
	"net/http"

	"github.com/gofiber/fiber/v3"
	"github.com/moogar0880/problems"

	"github.com/agorahq/agora/pkg/plugin"
	"github.com/agorahq/agora/pkg/process"
	"github.com/agorahq/agora/pkg/schema"
)

func badRequest(c fiber.Ctx, detail string) error {
	problem := problems.NewStatusProblem(http.StatusBadRequest).
		WithInstance(c.Path()).
		WithType("validation_error").
		WithDetail(detail)

	return c.Status(fiber.StatusBadRequest).JSON(problem)
}

func notFound(c fiber.Ctx, detail string) error {
	problem := problems.NewStatusProblem(http.StatusNotFound).
		WithInstance(c.Path()).
		WithType("not_found").
		WithDetail(detail)

	return c.Status(fiber.StatusNotFound).JSON(problem)
}

func internalError(c fiber.Ctx, err error) error {
	problem := problems.NewStatusProblem(http.StatusInternalServerError).
		WithInstance(c.Path()).
		WithType("internal_error").
		WithError(err)

	return c.Status(fiber.StatusInternalServerError).JSON(problem)
}

// handleError maps the framework's error taxonomy onto problem documents.
func handleError(c fiber.Ctx, err error) error {
	switch {
	case schema.IsValidationError(err):
		return badRequest(c, err.Error())

	case plugin.IsAuthenticationError(err):
		problem := problems.NewStatusProblem(http.StatusForbidden).
			WithInstance(c.Path()).
			WithType("authentication_error").
			WithDetail(err.Error())

		return c.Status(fiber.StatusForbidden).JSON(problem)

	case plugin.IsExecutionError(err):
		problem := problems.NewStatusProblem(http.StatusBadGateway).
			WithInstance(c.Path()).
			WithType("plugin_execution_error").
			WithDetail(err.Error())

		return c.Status(fiber.StatusBadGateway).JSON(problem)

	case errors.Is(err, plugin.ErrInstanceNotFound):
		return notFound(c, err.Error())

	case errors.Is(err, plugin.ErrInstanceExists):
		problem := problems.NewStatusProblem(http.StatusConflict).
			WithInstance(c.Path()).
			WithType("conflict").
			WithDetail(err.Error())

		return c.Status(fiber.StatusConflict).JSON(problem)

	case process.IsNotFound(err):
		return notFound(c, "process not found")

	default:
		return internalError(c, err)
	}
}
