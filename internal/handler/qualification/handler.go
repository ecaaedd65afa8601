package qualification

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/jwalitptl/identito-api/internal/handler"
	"github.com/jwalitptl/identito-api/internal/model"
	qualificationsvc "github.com/jwalitptl/identito-api/internal/service/qualification"
	apperrors "github.com/jwalitptl/identito-api/pkg/errors"
)

type Handler struct {
	svc qualificationsvc.QualificationService
}

func NewHandler(svc qualificationsvc.QualificationService) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	r.POST("/identities/:id/qualification", h.Request)
	qualifications := r.Group("/qualifications")
	{
		qualifications.GET("/:id", h.Get)
		qualifications.POST("/:id/response", h.ApplyResponse)
	}
}

func (h *Handler) Request(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		handler.Fail(c, apperrors.BadRequest("invalid identity id", err))
		return
	}
	var req model.RequestQualificationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		handler.Fail(c, apperrors.BadRequest("invalid request body", err))
		return
	}
	request, err := h.svc.RequestQualification(c.Request.Context(), id, &req)
	if err != nil {
		handler.Fail(c, err)
		return
	}
	handler.OK(c, http.StatusAccepted, request)
}

func (h *Handler) Get(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		handler.Fail(c, apperrors.BadRequest("invalid request id", err))
		return
	}
	request, err := h.svc.GetRequest(c.Request.Context(), id)
	if err != nil {
		handler.Fail(c, err)
		return
	}
	handler.OK(c, http.StatusOK, request)
}

// ApplyResponse lets an operator settle a pending request manually, e.g. when
// the verdict arrived out of band.
func (h *Handler) ApplyResponse(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		handler.Fail(c, apperrors.BadRequest("invalid request id", err))
		return
	}
	var req struct {
		model.QualificationResponse
		Actor string `json:"actor" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		handler.Fail(c, apperrors.BadRequest("invalid request body", err))
		return
	}
	request, err := h.svc.ApplyResponse(c.Request.Context(), id, &req.QualificationResponse, req.Actor)
	if err != nil {
		handler.Fail(c, err)
		return
	}
	handler.OK(c, http.StatusOK, request)
}
