package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/studybits/studybits-backend/internal/platform/logger"
	"github.com/studybits/studybits-backend/internal/requestdata"
	"github.com/studybits/studybits-backend/internal/services"
)

type LearningHandler struct {
	log             *logger.Logger
	learningService services.LearningService
}

func NewLearningHandler(log *logger.Logger, learningService services.LearningService) *LearningHandler {
	return &LearningHandler{
		log:             log.With("handler", "LearningHandler"),
		learningService: learningService,
	}
}

func (h *LearningHandler) AddCourse(c *gin.Context) {
	rd := requestdata.GetRequestData(c.Request.Context())
	courseID, err := uuid.Parse(c.Param("course_id"))
	if err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_course_id", err)
		return
	}

	record, err := h.learningService.AddCourse(c.Request.Context(), rd.UserID, courseID)
	if err != nil {
		h.log.Error("AddCourse failed", "error", err, "courseID", courseID)
		RespondServiceError(c, err)
		return
	}
	RespondCreated(c, gin.H{"record": record})
}

func (h *LearningHandler) RemoveCourse(c *gin.Context) {
	rd := requestdata.GetRequestData(c.Request.Context())
	courseID, err := uuid.Parse(c.Param("course_id"))
	if err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_course_id", err)
		return
	}

	if err := h.learningService.RemoveCourse(c.Request.Context(), rd.UserID, courseID); err != nil {
		h.log.Error("RemoveCourse failed", "error", err, "courseID", courseID)
		RespondServiceError(c, err)
		return
	}
	RespondOK(c, gin.H{"status": "removed"})
}

func (h *LearningHandler) GetRecord(c *gin.Context) {
	rd := requestdata.GetRequestData(c.Request.Context())
	courseID, err := uuid.Parse(c.Param("course_id"))
	if err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_course_id", err)
		return
	}

	record, err := h.learningService.GetRecord(c.Request.Context(), rd.UserID, courseID)
	if err != nil {
		h.log.Error("GetRecord failed", "error", err, "courseID", courseID)
		RespondServiceError(c, err)
		return
	}
	RespondOK(c, gin.H{"record": record})
}

func (h *LearningHandler) ListRecords(c *gin.Context) {
	rd := requestdata.GetRequestData(c.Request.Context())

	records, err := h.learningService.ListRecords(c.Request.Context(), rd.UserID)
	if err != nil {
		h.log.Error("ListRecords failed", "error", err, "userID", rd.UserID)
		RespondServiceError(c, err)
		return
	}
	RespondOK(c, gin.H{"records": records})
}

type useUnitsRequest struct {
	UseUnits *bool `json:"use_units" binding:"required"`
}

func (h *LearningHandler) SetUseUnits(c *gin.Context) {
	rd := requestdata.GetRequestData(c.Request.Context())
	courseID, err := uuid.Parse(c.Param("course_id"))
	if err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_course_id", err)
		return
	}

	var req useUnitsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_request", err)
		return
	}

	record, err := h.learningService.SetUseUnits(c.Request.Context(), rd.UserID, courseID, *req.UseUnits)
	if err != nil {
		h.log.Error("SetUseUnits failed", "error", err, "courseID", courseID)
		RespondServiceError(c, err)
		return
	}
	RespondOK(c, gin.H{"record": record})
}

func (h *LearningHandler) ToggleStudyingUnit(c *gin.Context) {
	rd := requestdata.GetRequestData(c.Request.Context())
	courseID, unitID, err := courseUnitParams(c)
	if err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_id", err)
		return
	}

	record, err := h.learningService.ToggleStudyingUnit(c.Request.Context(), rd.UserID, courseID, unitID)
	if err != nil {
		h.log.Error("ToggleStudyingUnit failed", "error", err, "courseID", courseID, "unitID", unitID)
		RespondServiceError(c, err)
		return
	}
	RespondOK(c, gin.H{"record": record})
}

func (h *LearningHandler) GetCourseInteraction(c *gin.Context) {
	rd := requestdata.GetRequestData(c.Request.Context())
	courseID, err := uuid.Parse(c.Param("course_id"))
	if err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_course_id", err)
		return
	}

	interaction, err := h.learningService.CourseInteraction(c.Request.Context(), rd.UserID, courseID)
	if err != nil {
		h.log.Error("GetCourseInteraction failed", "error", err, "courseID", courseID)
		RespondServiceError(c, err)
		return
	}
	RespondOK(c, gin.H{"interaction": interaction})
}

func (h *LearningHandler) ReconcileRecord(c *gin.Context) {
	rd := requestdata.GetRequestData(c.Request.Context())
	courseID, err := uuid.Parse(c.Param("course_id"))
	if err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_course_id", err)
		return
	}

	record, err := h.learningService.ReconcileRecord(c.Request.Context(), rd.UserID, courseID)
	if err != nil {
		h.log.Error("ReconcileRecord failed", "error", err, "courseID", courseID)
		RespondServiceError(c, err)
		return
	}
	RespondOK(c, gin.H{"record": record})
}
