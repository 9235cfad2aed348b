package handlers

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/anonto42/yellowcard/backend/internal/models"
	"github.com/anonto42/yellowcard/backend/internal/repositories"
)

// FeedbackHandler stores member feedback
type FeedbackHandler struct {
	feedback FeedbackStore
	members  MemberStore
	logger   *slog.Logger
}

func NewFeedbackHandler(feedback FeedbackStore, members MemberStore, logger *slog.Logger) *FeedbackHandler {
	return &FeedbackHandler{feedback: feedback, members: members, logger: logger}
}

func (h *FeedbackHandler) RegisterFeedbackRoutes(g *echo.Group) {
	g.POST("/feedback", h.CreateFeedback)
}

// CreateFeedback stores the message with the sender's profile details
func (h *FeedbackHandler) CreateFeedback(c echo.Context) error {
	claims, err := currentMember(c)
	if err != nil {
		return err
	}

	var req models.CreateFeedbackRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}
	message := strings.TrimSpace(req.Message)
	if message == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "Please enter your feedback.")
	}

	ctx := c.Request().Context()
	feedback := &models.Feedback{UID: claims.UID, Email: claims.Email, Message: message}
	member, err := h.members.GetMember(ctx, claims.UID)
	switch {
	case err == nil:
		feedback.FullName = member.DisplayName()
		if member.Email != "" {
			feedback.Email = member.Email
		}
	case errors.Is(err, repositories.ErrMemberNotFound):
	default:
		h.logger.Warn("feedback without profile details", "uid", claims.UID, "error", err)
	}

	id, err := h.feedback.CreateFeedback(ctx, feedback)
	if err != nil {
		h.logger.Error("store feedback", "uid", claims.UID, "error", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "Failed to submit feedback")
	}
	return c.JSON(http.StatusCreated, echo.Map{"success": true, "data": echo.Map{"id": id}})
}
