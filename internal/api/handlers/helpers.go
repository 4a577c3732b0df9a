package handlers

import (
	"errors"
	"log/slog"

	"github.com/gofiber/fiber/v2"
	"github.com/maheshrc27/postflow/internal/lock"
	"github.com/maheshrc27/postflow/internal/service"
)

func GetOperatorID(c *fiber.Ctx) string {
	operatorID, _ := c.Locals("operator_id").(string)
	return operatorID
}

func GetPostID(c *fiber.Ctx) (int64, error) {
	id, err := c.ParamsInt("id")
	if err != nil || id <= 0 {
		return 0, fiber.NewError(fiber.StatusBadRequest, "invalid post id")
	}
	return int64(id), nil
}

// errorResponse maps service errors onto HTTP status codes.
func errorResponse(c *fiber.Ctx, err error) error {
	status := fiber.StatusInternalServerError
	switch {
	case errors.Is(err, service.ErrPostNotFound):
		status = fiber.StatusNotFound
	case errors.Is(err, service.ErrMissingScheduleTime), errors.Is(err, service.ErrNoTargets):
		status = fiber.StatusUnprocessableEntity
	case errors.Is(err, lock.ErrNotAcquired):
		status = fiber.StatusConflict
	}

	var fe *fiber.Error
	if errors.As(err, &fe) {
		status = fe.Code
	}

	if status == fiber.StatusInternalServerError {
		slog.Error(err.Error())
	}
	return c.Status(status).JSON(fiber.Map{
		"error": err.Error(),
	})
}
