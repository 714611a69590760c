package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/studybits/studybits-backend/internal/platform/logger"
	"github.com/studybits/studybits-backend/internal/requestdata"
	"github.com/studybits/studybits-backend/internal/services"
)

type EngagementHandler struct {
	log               *logger.Logger
	engagementService services.EngagementService
}

func NewEngagementHandler(log *logger.Logger, engagementService services.EngagementService) *EngagementHandler {
	return &EngagementHandler{
		log:               log.With("handler", "EngagementHandler"),
		engagementService: engagementService,
	}
}

type reactionRequest struct {
	CourseID   uuid.UUID `json:"course_id" binding:"required"`
	QuestionID uuid.UUID `json:"question_id" binding:"required"`
}

func (h *EngagementHandler) ToggleLike(c *gin.Context) {
	rd := requestdata.GetRequestData(c.Request.Context())
	var req reactionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_request", err)
		return
	}

	record, err := h.engagementService.ToggleLike(c.Request.Context(), rd.UserID, req.CourseID, req.QuestionID)
	if err != nil {
		h.log.Error("ToggleLike failed", "error", err, "questionID", req.QuestionID)
		RespondServiceError(c, err)
		return
	}
	RespondOK(c, gin.H{"record": record})
}

func (h *EngagementHandler) ToggleDislike(c *gin.Context) {
	rd := requestdata.GetRequestData(c.Request.Context())
	var req reactionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_request", err)
		return
	}

	record, err := h.engagementService.ToggleDislike(c.Request.Context(), rd.UserID, req.CourseID, req.QuestionID)
	if err != nil {
		h.log.Error("ToggleDislike failed", "error", err, "questionID", req.QuestionID)
		RespondServiceError(c, err)
		return
	}
	RespondOK(c, gin.H{"record": record})
}

func (h *EngagementHandler) MarkAnswered(c *gin.Context) {
	rd := requestdata.GetRequestData(c.Request.Context())
	var req reactionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_request", err)
		return
	}

	if err := h.engagementService.MarkAnswered(c.Request.Context(), rd.UserID, req.CourseID, req.QuestionID); err != nil {
		h.log.Error("MarkAnswered failed", "error", err, "questionID", req.QuestionID)
		RespondServiceError(c, err)
		return
	}
	RespondOK(c, gin.H{"status": "answered"})
}

func (h *EngagementHandler) RecordQuestionView(c *gin.Context) {
	questionID, err := uuid.Parse(c.Param("question_id"))
	if err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_question_id", err)
		return
	}

	if err := h.engagementService.RecordQuestionView(c.Request.Context(), questionID); err != nil {
		h.log.Error("RecordQuestionView failed", "error", err, "questionID", questionID)
		RespondServiceError(c, err)
		return
	}
	RespondOK(c, gin.H{"status": "recorded"})
}

func (h *EngagementHandler) RecordCourseView(c *gin.Context) {
	courseID, err := uuid.Parse(c.Param("course_id"))
	if err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_course_id", err)
		return
	}

	if err := h.engagementService.RecordCourseView(c.Request.Context(), courseID); err != nil {
		h.log.Error("RecordCourseView failed", "error", err, "courseID", courseID)
		RespondServiceError(c, err)
		return
	}
	RespondOK(c, gin.H{"status": "recorded"})
}

type subscribeRequest struct {
	BaseCourseID   uuid.UUID `json:"base_course_id" binding:"required"`
	TargetCourseID uuid.UUID `json:"target_course_id" binding:"required"`
}

func (h *EngagementHandler) Subscribe(c *gin.Context) {
	rd := requestdata.GetRequestData(c.Request.Context())
	var req subscribeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_request", err)
		return
	}

	if err := h.engagementService.Subscribe(c.Request.Context(), rd.UserID, req.BaseCourseID, req.TargetCourseID); err != nil {
		h.log.Error("Subscribe failed", "error", err, "targetCourseID", req.TargetCourseID)
		RespondServiceError(c, err)
		return
	}
	RespondOK(c, gin.H{"status": "subscribed"})
}

type unsubscribeRequest struct {
	TargetCourseID uuid.UUID `json:"target_course_id" binding:"required"`
}

func (h *EngagementHandler) Unsubscribe(c *gin.Context) {
	rd := requestdata.GetRequestData(c.Request.Context())
	var req unsubscribeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_request", err)
		return
	}

	if err := h.engagementService.Unsubscribe(c.Request.Context(), rd.UserID, req.TargetCourseID); err != nil {
		h.log.Error("Unsubscribe failed", "error", err, "targetCourseID", req.TargetCourseID)
		RespondServiceError(c, err)
		return
	}
	RespondOK(c, gin.H{"status": "unsubscribed"})
}

func (h *EngagementHandler) GetLikeState(c *gin.Context) {
	rd := requestdata.GetRequestData(c.Request.Context())
	courseID, err := uuid.Parse(c.Query("course_id"))
	if err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_course_id", err)
		return
	}
	questionID, err := uuid.Parse(c.Param("question_id"))
	if err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_question_id", err)
		return
	}

	state, err := h.engagementService.LikeState(c.Request.Context(), rd.UserID, courseID, questionID)
	if err != nil {
		h.log.Error("GetLikeState failed", "error", err, "questionID", questionID)
		RespondServiceError(c, err)
		return
	}
	RespondOK(c, gin.H{"state": state})
}

func (h *EngagementHandler) GetSubscription(c *gin.Context) {
	rd := requestdata.GetRequestData(c.Request.Context())
	targetCourseID, err := uuid.Parse(c.Param("course_id"))
	if err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_course_id", err)
		return
	}

	subscribed, err := h.engagementService.IsSubscribed(c.Request.Context(), rd.UserID, targetCourseID)
	if err != nil {
		h.log.Error("GetSubscription failed", "error", err, "targetCourseID", targetCourseID)
		RespondServiceError(c, err)
		return
	}
	RespondOK(c, gin.H{"subscribed": subscribed})
}

func (h *EngagementHandler) ListSubscriptions(c *gin.Context) {
	rd := requestdata.GetRequestData(c.Request.Context())
	baseCourseID, err := uuid.Parse(c.Query("base_course_id"))
	if err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_course_id", err)
		return
	}

	courseIDs, err := h.engagementService.SubscribedCoursesThrough(c.Request.Context(), rd.UserID, baseCourseID)
	if err != nil {
		h.log.Error("ListSubscriptions failed", "error", err, "baseCourseID", baseCourseID)
		RespondServiceError(c, err)
		return
	}
	RespondOK(c, gin.H{"course_ids": courseIDs})
}

func (h *EngagementHandler) RebuildSubscriptionIndex(c *gin.Context) {
	rd := requestdata.GetRequestData(c.Request.Context())

	if err := h.engagementService.RebuildSubscriptionIndex(c.Request.Context(), rd.UserID); err != nil {
		h.log.Error("RebuildSubscriptionIndex failed", "error", err, "userID", rd.UserID)
		RespondServiceError(c, err)
		return
	}
	RespondOK(c, gin.H{"status": "rebuilt"})
}
