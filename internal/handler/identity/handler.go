package identity

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/jwalitptl/identito-api/internal/handler"
	"github.com/jwalitptl/identito-api/internal/model"
	identitysvc "github.com/jwalitptl/identito-api/internal/service/identity"
	apperrors "github.com/jwalitptl/identito-api/pkg/errors"
)

type Handler struct {
	svc identitysvc.IdentityService
}

func NewHandler(svc identitysvc.IdentityService) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	identities := r.Group("/identities")
	{
		identities.POST("", h.Create)
		identities.GET("", h.List)
		identities.GET("/compliance", h.ComplianceAudit)
		identities.GET("/:id", h.Get)
		identities.PATCH("/:id/traits", h.UpdateTraits)
		identities.POST("/:id/aliases", h.AddAlias)
		identities.POST("/:id/verifications", h.RecordVerification)
		identities.GET("/:id/verifications", h.VerificationHistory)
		identities.GET("/:id/quality", h.QualityScore)
		identities.POST("/:id/ins/invalidate", h.InvalidateINS)
	}
}

func (h *Handler) Create(c *gin.Context) {
	var req model.CreateIdentityRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		handler.Fail(c, apperrors.BadRequest("invalid request body", err))
		return
	}
	identity, err := h.svc.CreateIdentity(c.Request.Context(), &req)
	if err != nil {
		handler.Fail(c, err)
		return
	}
	handler.OK(c, http.StatusCreated, identity)
}

func (h *Handler) Get(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		handler.Fail(c, apperrors.BadRequest("invalid identity id", err))
		return
	}
	identity, err := h.svc.GetIdentity(c.Request.Context(), id)
	if err != nil {
		handler.Fail(c, err)
		return
	}
	handler.OK(c, http.StatusOK, identity)
}

func (h *Handler) List(c *gin.Context) {
	var filters model.IdentityFilters
	if err := c.ShouldBindQuery(&filters); err != nil {
		handler.Fail(c, apperrors.BadRequest("invalid filters", err))
		return
	}
	identities, err := h.svc.ListIdentities(c.Request.Context(), &filters)
	if err != nil {
		handler.Fail(c, err)
		return
	}
	handler.OK(c, http.StatusOK, identities)
}

func (h *Handler) UpdateTraits(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		handler.Fail(c, apperrors.BadRequest("invalid identity id", err))
		return
	}
	var req model.UpdateTraitsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		handler.Fail(c, apperrors.BadRequest("invalid request body", err))
		return
	}
	identity, err := h.svc.UpdateTraits(c.Request.Context(), id, &req)
	if err != nil {
		handler.Fail(c, err)
		return
	}
	handler.OK(c, http.StatusOK, identity)
}

func (h *Handler) AddAlias(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		handler.Fail(c, apperrors.BadRequest("invalid identity id", err))
		return
	}
	var req model.AddAliasRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		handler.Fail(c, apperrors.BadRequest("invalid request body", err))
		return
	}
	alias, err := h.svc.AddAlias(c.Request.Context(), id, &req)
	if err != nil {
		handler.Fail(c, err)
		return
	}
	handler.OK(c, http.StatusCreated, alias)
}

func (h *Handler) RecordVerification(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		handler.Fail(c, apperrors.BadRequest("invalid identity id", err))
		return
	}
	var req model.RecordVerificationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		handler.Fail(c, apperrors.BadRequest("invalid request body", err))
		return
	}
	verification, err := h.svc.RecordVerification(c.Request.Context(), id, &req)
	if err != nil {
		handler.Fail(c, err)
		return
	}
	handler.OK(c, http.StatusCreated, verification)
}

func (h *Handler) VerificationHistory(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		handler.Fail(c, apperrors.BadRequest("invalid identity id", err))
		return
	}
	history, err := h.svc.GetVerificationHistory(c.Request.Context(), id)
	if err != nil {
		handler.Fail(c, err)
		return
	}
	handler.OK(c, http.StatusOK, history)
}

func (h *Handler) QualityScore(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		handler.Fail(c, apperrors.BadRequest("invalid identity id", err))
		return
	}
	score, err := h.svc.GetQualityScore(c.Request.Context(), id)
	if err != nil {
		handler.Fail(c, err)
		return
	}
	handler.OK(c, http.StatusOK, gin.H{"identity_id": id, "quality_score": score})
}

func (h *Handler) InvalidateINS(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		handler.Fail(c, apperrors.BadRequest("invalid identity id", err))
		return
	}
	var req struct {
		Actor string `json:"actor" binding:"required"`
		Note  string `json:"note"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		handler.Fail(c, apperrors.BadRequest("invalid request body", err))
		return
	}
	verification, err := h.svc.InvalidateINS(c.Request.Context(), id, req.Actor, req.Note)
	if err != nil {
		handler.Fail(c, err)
		return
	}
	handler.OK(c, http.StatusOK, verification)
}

func (h *Handler) ComplianceAudit(c *gin.Context) {
	findings, err := h.svc.RunComplianceAudit(c.Request.Context())
	if err != nil {
		handler.Fail(c, err)
		return
	}
	handler.OK(c, http.StatusOK, findings)
}
