package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	types "github.com/studybits/studybits-backend/internal/domain"
	"github.com/studybits/studybits-backend/internal/platform/logger"
	"github.com/studybits/studybits-backend/internal/requestdata"
	"github.com/studybits/studybits-backend/internal/services"
)

type QuestionHandler struct {
	log             *logger.Logger
	questionService services.QuestionService
}

func NewQuestionHandler(log *logger.Logger, questionService services.QuestionService) *QuestionHandler {
	return &QuestionHandler{
		log:             log.With("handler", "QuestionHandler"),
		questionService: questionService,
	}
}

type hintPayload struct {
	Key      string `json:"key"`
	Title    string `json:"title"`
	Content  string `json:"content"`
	ImageURL string `json:"image"`
}

type questionPayload struct {
	Text    string         `json:"question"`
	Hints   []hintPayload  `json:"hints"`
	Answers []types.Answer `json:"answers"`
}

// questionInput reads a multipart form carrying a "payload" JSON field and
// optional hint image parts named "hint_image_<key>". The returned closer
// releases every opened file part.
func questionInput(c *gin.Context) (services.QuestionInput, func(), error) {
	noop := func() {}

	var payload questionPayload
	if err := json.Unmarshal([]byte(c.PostForm("payload")), &payload); err != nil {
		return services.QuestionInput{}, noop, err
	}

	input := services.QuestionInput{
		Text:    payload.Text,
		Answers: payload.Answers,
	}
	var closers []func()
	closeAll := func() {
		for _, fn := range closers {
			fn()
		}
	}
	for _, hint := range payload.Hints {
		hi := services.HintInput{
			Key:      hint.Key,
			Title:    hint.Title,
			Content:  hint.Content,
			ImageURL: hint.ImageURL,
		}
		image, closeImage, err := formImage(c, "hint_image_"+hint.Key)
		if err != nil {
			closeAll()
			return services.QuestionInput{}, noop, err
		}
		closers = append(closers, closeImage)
		hi.NewImage = image
		input.Hints = append(input.Hints, hi)
	}
	return input, closeAll, nil
}

func (h *QuestionHandler) CreateDraft(c *gin.Context) {
	rd := requestdata.GetRequestData(c.Request.Context())
	courseID, unitID, err := courseUnitParams(c)
	if err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_id", err)
		return
	}

	input, closeInput, err := questionInput(c)
	if err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_request", err)
		return
	}
	defer closeInput()

	draft, err := h.questionService.CreateDraft(c.Request.Context(), rd.UserID, courseID, unitID, input)
	if err != nil {
		h.log.Error("CreateDraft failed", "error", err, "courseID", courseID, "unitID", unitID)
		RespondServiceError(c, err)
		return
	}
	RespondCreated(c, gin.H{"draft": draft})
}

// CreateQuestion writes a question straight into the published set,
// skipping the draft stage.
func (h *QuestionHandler) CreateQuestion(c *gin.Context) {
	rd := requestdata.GetRequestData(c.Request.Context())
	courseID, unitID, err := courseUnitParams(c)
	if err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_id", err)
		return
	}

	input, closeInput, err := questionInput(c)
	if err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_request", err)
		return
	}
	defer closeInput()

	question, err := h.questionService.CreateQuestion(c.Request.Context(), rd.UserID, courseID, unitID, input)
	if err != nil {
		h.log.Error("CreateQuestion failed", "error", err, "courseID", courseID, "unitID", unitID)
		RespondServiceError(c, err)
		return
	}
	RespondCreated(c, gin.H{"question": question})
}

func (h *QuestionHandler) EditDraft(c *gin.Context) {
	rd := requestdata.GetRequestData(c.Request.Context())
	courseID, unitID, questionID, err := questionParams(c)
	if err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_id", err)
		return
	}

	input, closeInput, err := questionInput(c)
	if err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_request", err)
		return
	}
	defer closeInput()

	draft, err := h.questionService.EditDraft(c.Request.Context(), rd.UserID, courseID, unitID, questionID, input)
	if err != nil {
		h.log.Error("EditDraft failed", "error", err, "questionID", questionID)
		RespondServiceError(c, err)
		return
	}
	RespondOK(c, gin.H{"draft": draft})
}

func (h *QuestionHandler) EditQuestion(c *gin.Context) {
	rd := requestdata.GetRequestData(c.Request.Context())
	courseID, unitID, questionID, err := questionParams(c)
	if err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_id", err)
		return
	}

	input, closeInput, err := questionInput(c)
	if err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_request", err)
		return
	}
	defer closeInput()

	question, err := h.questionService.EditQuestion(c.Request.Context(), rd.UserID, courseID, unitID, questionID, input)
	if err != nil {
		h.log.Error("EditQuestion failed", "error", err, "questionID", questionID)
		RespondServiceError(c, err)
		return
	}
	RespondOK(c, gin.H{"question": question})
}

func (h *QuestionHandler) Promote(c *gin.Context) {
	rd := requestdata.GetRequestData(c.Request.Context())
	courseID, unitID, questionID, err := questionParams(c)
	if err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_id", err)
		return
	}

	question, err := h.questionService.Promote(c.Request.Context(), rd.UserID, courseID, unitID, questionID)
	if err != nil {
		h.log.Error("Promote failed", "error", err, "questionID", questionID)
		RespondServiceError(c, err)
		return
	}
	RespondOK(c, gin.H{"question": question})
}

func (h *QuestionHandler) Demote(c *gin.Context) {
	rd := requestdata.GetRequestData(c.Request.Context())
	courseID, unitID, questionID, err := questionParams(c)
	if err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_id", err)
		return
	}

	draft, err := h.questionService.Demote(c.Request.Context(), rd.UserID, courseID, unitID, questionID)
	if err != nil {
		h.log.Error("Demote failed", "error", err, "questionID", questionID)
		RespondServiceError(c, err)
		return
	}
	RespondOK(c, gin.H{"draft": draft})
}

func (h *QuestionHandler) DeleteQuestion(c *gin.Context) {
	rd := requestdata.GetRequestData(c.Request.Context())
	courseID, unitID, questionID, err := questionParams(c)
	if err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_id", err)
		return
	}

	if err := h.questionService.DeleteQuestion(c.Request.Context(), rd.UserID, courseID, unitID, questionID); err != nil {
		h.log.Error("DeleteQuestion failed", "error", err, "questionID", questionID)
		RespondServiceError(c, err)
		return
	}
	RespondOK(c, gin.H{"status": "deleted"})
}

func (h *QuestionHandler) DeleteDraft(c *gin.Context) {
	rd := requestdata.GetRequestData(c.Request.Context())
	courseID, unitID, questionID, err := questionParams(c)
	if err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_id", err)
		return
	}

	if err := h.questionService.DeleteDraft(c.Request.Context(), rd.UserID, courseID, unitID, questionID); err != nil {
		h.log.Error("DeleteDraft failed", "error", err, "questionID", questionID)
		RespondServiceError(c, err)
		return
	}
	RespondOK(c, gin.H{"status": "deleted"})
}

func (h *QuestionHandler) GetQuestion(c *gin.Context) {
	questionID, err := uuid.Parse(c.Param("question_id"))
	if err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_question_id", err)
		return
	}

	question, err := h.questionService.GetQuestion(c.Request.Context(), questionID)
	if err != nil {
		h.log.Error("GetQuestion failed", "error", err, "questionID", questionID)
		RespondServiceError(c, err)
		return
	}
	RespondOK(c, gin.H{"question": question})
}

// ListQuestions returns the published questions for a course, optionally
// narrowed to one unit via the "unit_id" query param.
func (h *QuestionHandler) ListQuestions(c *gin.Context) {
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

	questions, err := h.questionService.QuestionsForCourseUnit(c.Request.Context(), courseID, unitID)
	if err != nil {
		h.log.Error("ListQuestions failed", "error", err, "courseID", courseID)
		RespondServiceError(c, err)
		return
	}
	RespondOK(c, gin.H{"questions": questions})
}

func (h *QuestionHandler) GetDraft(c *gin.Context) {
	rd := requestdata.GetRequestData(c.Request.Context())
	questionID, err := uuid.Parse(c.Param("question_id"))
	if err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_question_id", err)
		return
	}

	draft, err := h.questionService.GetDraft(c.Request.Context(), rd.UserID, questionID)
	if err != nil {
		h.log.Error("GetDraft failed", "error", err, "questionID", questionID)
		RespondServiceError(c, err)
		return
	}
	RespondOK(c, gin.H{"draft": draft})
}

// ListDrafts returns the draft questions for a course, optionally narrowed
// to one unit via the "unit_id" query param. Owner only.
func (h *QuestionHandler) ListDrafts(c *gin.Context) {
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

	drafts, err := h.questionService.DraftsForCourseUnit(c.Request.Context(), rd.UserID, courseID, unitID)
	if err != nil {
		h.log.Error("ListDrafts failed", "error", err, "courseID", courseID)
		RespondServiceError(c, err)
		return
	}
	RespondOK(c, gin.H{"drafts": drafts})
}

func questionParams(c *gin.Context) (uuid.UUID, uuid.UUID, uuid.UUID, error) {
	courseID, unitID, err := courseUnitParams(c)
	if err != nil {
		return uuid.Nil, uuid.Nil, uuid.Nil, err
	}
	questionID, err := uuid.Parse(c.Param("question_id"))
	if err != nil {
		return uuid.Nil, uuid.Nil, uuid.Nil, err
	}
	return courseID, unitID, questionID, nil
}
