package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/studybits/studybits-backend/internal/platform/logger"
	"github.com/studybits/studybits-backend/internal/requestdata"
	"github.com/studybits/studybits-backend/internal/services"
)

type UnitHandler struct {
	log            *logger.Logger
	catalogService services.CatalogService
}

func NewUnitHandler(log *logger.Logger, catalogService services.CatalogService) *UnitHandler {
	return &UnitHandler{
		log:            log.With("handler", "UnitHandler"),
		catalogService: catalogService,
	}
}

type createUnitRequest struct {
	Name        string `json:"name" binding:"required"`
	Description string `json:"description"`
	Position    int    `json:"order"`
}

func (h *UnitHandler) CreateUnit(c *gin.Context) {
	rd := requestdata.GetRequestData(c.Request.Context())
	courseID, err := uuid.Parse(c.Param("course_id"))
	if err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_course_id", err)
		return
	}

	var req createUnitRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_request", err)
		return
	}

	unit, err := h.catalogService.CreateUnit(c.Request.Context(), rd.UserID, courseID, services.UnitInput{
		Name:        req.Name,
		Description: req.Description,
		Position:    req.Position,
	})
	if err != nil {
		h.log.Error("CreateUnit failed", "error", err, "courseID", courseID)
		RespondServiceError(c, err)
		return
	}
	RespondCreated(c, gin.H{"unit": unit})
}

func (h *UnitHandler) GetUnit(c *gin.Context) {
	courseID, unitID, err := courseUnitParams(c)
	if err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_id", err)
		return
	}

	unit, err := h.catalogService.GetUnit(c.Request.Context(), courseID, unitID)
	if err != nil {
		h.log.Error("GetUnit failed", "error", err, "courseID", courseID, "unitID", unitID)
		RespondServiceError(c, err)
		return
	}
	RespondOK(c, gin.H{"unit": unit})
}

func (h *UnitHandler) ListUnits(c *gin.Context) {
	courseID, err := uuid.Parse(c.Param("course_id"))
	if err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_course_id", err)
		return
	}

	units, err := h.catalogService.ListUnits(c.Request.Context(), courseID)
	if err != nil {
		h.log.Error("ListUnits failed", "error", err, "courseID", courseID)
		RespondServiceError(c, err)
		return
	}
	RespondOK(c, gin.H{"units": units})
}

type updateUnitRequest struct {
	Name        *string `json:"name"`
	Description *string `json:"description"`
	Position    *int    `json:"order"`
}

func (h *UnitHandler) UpdateUnit(c *gin.Context) {
	rd := requestdata.GetRequestData(c.Request.Context())
	courseID, unitID, err := courseUnitParams(c)
	if err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_id", err)
		return
	}

	var req updateUnitRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_request", err)
		return
	}

	unit, err := h.catalogService.UpdateUnit(c.Request.Context(), rd.UserID, courseID, unitID, services.UnitUpdate{
		Name:        req.Name,
		Description: req.Description,
		Position:    req.Position,
	})
	if err != nil {
		h.log.Error("UpdateUnit failed", "error", err, "courseID", courseID, "unitID", unitID)
		RespondServiceError(c, err)
		return
	}
	RespondOK(c, gin.H{"unit": unit})
}

func (h *UnitHandler) DeleteUnit(c *gin.Context) {
	rd := requestdata.GetRequestData(c.Request.Context())
	courseID, unitID, err := courseUnitParams(c)
	if err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_id", err)
		return
	}

	if err := h.catalogService.DeleteUnit(c.Request.Context(), rd.UserID, courseID, unitID); err != nil {
		h.log.Error("DeleteUnit failed", "error", err, "courseID", courseID, "unitID", unitID)
		RespondServiceError(c, err)
		return
	}
	RespondOK(c, gin.H{"status": "deleted"})
}

func courseUnitParams(c *gin.Context) (uuid.UUID, uuid.UUID, error) {
	courseID, err := uuid.Parse(c.Param("course_id"))
	if err != nil {
		return uuid.Nil, uuid.Nil, err
	}
	unitID, err := uuid.Parse(c.Param("unit_id"))
	if err != nil {
		return uuid.Nil, uuid.Nil, err
	}
	return courseID, unitID, nil
}
