package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/studybits/studybits-backend/internal/platform/logger"
	"github.com/studybits/studybits-backend/internal/requestdata"
	"github.com/studybits/studybits-backend/internal/services"
	"github.com/studybits/studybits-backend/internal/study"
)

type StudyHandler struct {
	log        *logger.Logger
	sessions   *study.SessionRegistry
	engagement services.EngagementService
}

func NewStudyHandler(log *logger.Logger, sessions *study.SessionRegistry, engagement services.EngagementService) *StudyHandler {
	return &StudyHandler{
		log:        log.With("handler", "StudyHandler"),
		sessions:   sessions,
		engagement: engagement,
	}
}

func (h *StudyHandler) StartSession(c *gin.Context) {
	rd := requestdata.GetRequestData(c.Request.Context())

	count, err := h.sessions.Start(c.Request.Context(), rd.UserID)
	if err != nil {
		h.log.Error("StartSession failed", "error", err, "userID", rd.UserID)
		RespondServiceError(c, err)
		return
	}
	RespondOK(c, gin.H{"combinations": count})
}

func (h *StudyHandler) NextBatch(c *gin.Context) {
	rd := requestdata.GetRequestData(c.Request.Context())

	batch, err := h.sessions.NextBatch(c.Request.Context(), rd.UserID)
	if err != nil {
		h.log.Error("NextBatch failed", "error", err, "userID", rd.UserID)
		RespondServiceError(c, err)
		return
	}
	RespondOK(c, gin.H{"batch": batch})
}

// PickCombo fetches similar courses for an explicit course/unit pair
// without touching the caller's rotation state. The "unit_id" query param
// is optional; omitting it targets the whole course.
func (h *StudyHandler) PickCombo(c *gin.Context) {
	rd := requestdata.GetRequestData(c.Request.Context())
	courseID, err := uuid.Parse(c.Param("course_id"))
	if err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_course_id", err)
		return
	}
	unitID := uuid.Nil
	if raw := c.Query("unit_id"); raw != "" {
		unitID, err = uuid.Parse(raw)
		if err != nil {
			RespondError(c, http.StatusBadRequest, "invalid_unit_id", err)
			return
		}
	}

	batch, err := h.sessions.PickCombo(c.Request.Context(), rd.UserID, courseID, unitID)
	if err != nil {
		h.log.Error("PickCombo failed", "error", err, "courseID", courseID, "unitID", unitID)
		RespondServiceError(c, err)
		return
	}
	RespondOK(c, gin.H{"batch": batch})
}

// ResetSession reshuffles the caller's rotation in place and reports how
// many combinations remain before the cycle completes.
func (h *StudyHandler) ResetSession(c *gin.Context) {
	rd := requestdata.GetRequestData(c.Request.Context())

	count, err := h.sessions.Reset(c.Request.Context(), rd.UserID)
	if err != nil {
		h.log.Error("ResetSession failed", "error", err, "userID", rd.UserID)
		RespondServiceError(c, err)
		return
	}
	RespondOK(c, gin.H{"remaining": count})
}

type answerRequest struct {
	CourseID   uuid.UUID `json:"course_id" binding:"required"`
	QuestionID uuid.UUID `json:"question_id" binding:"required"`
}

// Answer records a question as answered within the caller's study session
// and bumps the view counters the same way a plain read would.
func (h *StudyHandler) Answer(c *gin.Context) {
	rd := requestdata.GetRequestData(c.Request.Context())
	var req answerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_request", err)
		return
	}

	if err := h.engagement.MarkAnswered(c.Request.Context(), rd.UserID, req.CourseID, req.QuestionID); err != nil {
		h.log.Error("Answer failed", "error", err, "questionID", req.QuestionID)
		RespondServiceError(c, err)
		return
	}
	if err := h.engagement.RecordQuestionView(c.Request.Context(), req.QuestionID); err != nil {
		h.log.Error("Answer view count failed", "error", err, "questionID", req.QuestionID)
		RespondServiceError(c, err)
		return
	}
	RespondOK(c, gin.H{"status": "answered"})
}

func (h *StudyHandler) EndSession(c *gin.Context) {
	rd := requestdata.GetRequestData(c.Request.Context())
	h.sessions.End(rd.UserID)
	RespondOK(c, gin.H{"status": "ended"})
}
