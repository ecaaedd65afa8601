package dedup

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/jwalitptl/identito-api/internal/handler"
	"github.com/jwalitptl/identito-api/internal/model"
	dedupsvc "github.com/jwalitptl/identito-api/internal/service/dedup"
	apperrors "github.com/jwalitptl/identito-api/pkg/errors"
)

type Handler struct {
	svc dedupsvc.DedupService
}

func NewHandler(svc dedupsvc.DedupService) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	r.GET("/identities/:id/duplicates", h.FindCandidates)
	r.GET("/identities/:id/cases", h.ListOpenCases)

	cases := r.Group("/cases")
	{
		cases.POST("", h.CreateCase)
		cases.GET("/:id", h.GetCase)
		cases.POST("/:id/investigate", h.StartInvestigation)
		cases.POST("/:id/resolve", h.ResolveCase)
	}

	r.POST("/merges", h.Merge)
}

func (h *Handler) FindCandidates(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		handler.Fail(c, apperrors.BadRequest("invalid identity id", err))
		return
	}
	candidates, err := h.svc.FindCandidates(c.Request.Context(), id)
	if err != nil {
		handler.Fail(c, err)
		return
	}
	handler.OK(c, http.StatusOK, candidates)
}

func (h *Handler) CreateCase(c *gin.Context) {
	var req model.CreateCaseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		handler.Fail(c, apperrors.BadRequest("invalid request body", err))
		return
	}
	dc, err := h.svc.CreateCase(c.Request.Context(), &req)
	if err != nil {
		handler.Fail(c, err)
		return
	}
	handler.OK(c, http.StatusCreated, dc)
}

func (h *Handler) GetCase(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		handler.Fail(c, apperrors.BadRequest("invalid case id", err))
		return
	}
	dc, err := h.svc.GetCase(c.Request.Context(), id)
	if err != nil {
		handler.Fail(c, err)
		return
	}
	handler.OK(c, http.StatusOK, dc)
}

func (h *Handler) ListOpenCases(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		handler.Fail(c, apperrors.BadRequest("invalid identity id", err))
		return
	}
	cases, err := h.svc.ListOpenCases(c.Request.Context(), id)
	if err != nil {
		handler.Fail(c, err)
		return
	}
	handler.OK(c, http.StatusOK, cases)
}

func (h *Handler) StartInvestigation(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		handler.Fail(c, apperrors.BadRequest("invalid case id", err))
		return
	}
	var req struct {
		Actor string `json:"actor" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		handler.Fail(c, apperrors.BadRequest("invalid request body", err))
		return
	}
	dc, err := h.svc.StartInvestigation(c.Request.Context(), id, req.Actor)
	if err != nil {
		handler.Fail(c, err)
		return
	}
	handler.OK(c, http.StatusOK, dc)
}

func (h *Handler) ResolveCase(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		handler.Fail(c, apperrors.BadRequest("invalid case id", err))
		return
	}
	var req model.ResolveCaseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		handler.Fail(c, apperrors.BadRequest("invalid request body", err))
		return
	}
	dc, err := h.svc.ResolveCase(c.Request.Context(), id, &req)
	if err != nil {
		handler.Fail(c, err)
		return
	}
	handler.OK(c, http.StatusOK, dc)
}

func (h *Handler) Merge(c *gin.Context) {
	var req model.MergeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		handler.Fail(c, apperrors.BadRequest("invalid request body", err))
		return
	}
	survivor, err := h.svc.MergeIdentities(c.Request.Context(), &req)
	if err != nil {
		handler.Fail(c, err)
		return
	}
	handler.OK(c, http.StatusOK, survivor)
}
