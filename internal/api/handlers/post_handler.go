package handlers

import (
	"context"
	"log/slog"

	"github.com/gofiber/fiber/v2"
	"github.com/maheshrc27/postflow/internal/service"
)

type PostHandler struct {
	s service.SchedulingService
	o service.OutcomeService
}

func NewPostHandler(s service.SchedulingService, o service.OutcomeService) *PostHandler {
	return &PostHandler{s: s, o: o}
}

func (h *PostHandler) SchedulePost(c *fiber.Ctx) error {
	return h.run(c, "schedule", h.s.SchedulePost, "Post scheduled successfully")
}

func (h *PostHandler) CancelPost(c *fiber.Ctx) error {
	return h.run(c, "cancel", h.s.CancelScheduledPost, "Scheduled jobs cancelled")
}

func (h *PostHandler) ReschedulePost(c *fiber.Ctx) error {
	return h.run(c, "reschedule", h.s.ReschedulePost, "Post rescheduled successfully")
}

func (h *PostHandler) PublishNow(c *fiber.Ctx) error {
	return h.run(c, "publish_now", h.s.PublishNow, "Post queued for publishing")
}

func (h *PostHandler) DeletePost(c *fiber.Ctx) error {
	return h.run(c, "delete", h.s.DeletePost, "Post deleted successfully")
}

func (h *PostHandler) TargetResults(c *fiber.Ctx) error {
	postID, err := GetPostID(c)
	if err != nil {
		return errorResponse(c, err)
	}

	results, err := h.o.TargetResults(c.Context(), postID)
	if err != nil {
		return errorResponse(c, err)
	}
	return c.Status(fiber.StatusOK).JSON(results)
}

func (h *PostHandler) run(c *fiber.Ctx, action string, op func(ctx context.Context, postID int64) error, message string) error {
	postID, err := GetPostID(c)
	if err != nil {
		return errorResponse(c, err)
	}

	if err := op(c.Context(), postID); err != nil {
		return errorResponse(c, err)
	}

	slog.Info("operator action", "action", action, "post_id", postID, "operator_id", GetOperatorID(c))
	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"message": message,
		"post_id": postID,
	})
}
