package alert

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/jwalitptl/identito-api/internal/handler"
	"github.com/jwalitptl/identito-api/internal/model"
	"github.com/jwalitptl/identito-api/internal/service/vigilance"
	apperrors "github.com/jwalitptl/identito-api/pkg/errors"
)

type Handler struct {
	svc vigilance.VigilanceService
}

func NewHandler(svc vigilance.VigilanceService) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	r.POST("/identities/:id/checks", h.RecordCheck)
	r.POST("/identities/:id/collisions", h.CheckCollisions)

	alerts := r.Group("/alerts")
	{
		alerts.GET("", h.List)
		alerts.GET("/:id", h.Get)
		alerts.POST("/:id/acknowledge", h.Acknowledge)
		alerts.POST("/:id/resolve", h.Resolve)
		alerts.POST("/:id/false-positive", h.FalsePositive)
	}
}

func (h *Handler) RecordCheck(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		handler.Fail(c, apperrors.BadRequest("invalid identity id", err))
		return
	}
	var req model.RecordCheckRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		handler.Fail(c, apperrors.BadRequest("invalid request body", err))
		return
	}
	check, err := h.svc.RecordIdentityCheck(c.Request.Context(), id, &req)
	if err != nil {
		handler.Fail(c, err)
		return
	}
	handler.OK(c, http.StatusCreated, check)
}

func (h *Handler) CheckCollisions(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		handler.Fail(c, apperrors.BadRequest("invalid identity id", err))
		return
	}
	var req model.CheckCollisionsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		handler.Fail(c, apperrors.BadRequest("invalid request body", err))
		return
	}
	alerts, err := h.svc.CheckForCollisions(c.Request.Context(), id, &req)
	if err != nil {
		handler.Fail(c, err)
		return
	}
	handler.OK(c, http.StatusOK, alerts)
}

func (h *Handler) List(c *gin.Context) {
	var filters model.AlertFilters
	if err := c.ShouldBindQuery(&filters); err != nil {
		handler.Fail(c, apperrors.BadRequest("invalid filters", err))
		return
	}
	alerts, err := h.svc.ListAlerts(c.Request.Context(), &filters)
	if err != nil {
		handler.Fail(c, err)
		return
	}
	handler.OK(c, http.StatusOK, alerts)
}

func (h *Handler) Get(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		handler.Fail(c, apperrors.BadRequest("invalid alert id", err))
		return
	}
	alert, err := h.svc.GetAlert(c.Request.Context(), id)
	if err != nil {
		handler.Fail(c, err)
		return
	}
	handler.OK(c, http.StatusOK, alert)
}

func (h *Handler) Acknowledge(c *gin.Context) {
	h.action(c, h.svc.AcknowledgeAlert)
}

func (h *Handler) Resolve(c *gin.Context) {
	h.action(c, h.svc.ResolveAlert)
}

func (h *Handler) FalsePositive(c *gin.Context) {
	h.action(c, h.svc.MarkFalsePositive)
}

func (h *Handler) action(c *gin.Context, fn func(ctx context.Context, id uuid.UUID, req *model.AlertActionRequest) (*model.CollisionAlert, error)) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		handler.Fail(c, apperrors.BadRequest("invalid alert id", err))
		return
	}
	var req model.AlertActionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		handler.Fail(c, apperrors.BadRequest("invalid request body", err))
		return
	}
	alert, err := fn(c.Request.Context(), id, &req)
	if err != nil {
		handler.Fail(c, err)
		return
	}
	handler.OK(c, http.StatusOK, alert)
}
