package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/studybits/studybits-backend/internal/platform/logger"
	"github.com/studybits/studybits-backend/internal/requestdata"
	"github.com/studybits/studybits-backend/internal/services"
)

type CourseHandler struct {
	log            *logger.Logger
	catalogService services.CatalogService
}

func NewCourseHandler(log *logger.Logger, catalogService services.CatalogService) *CourseHandler {
	return &CourseHandler{
		log:            log.With("handler", "CourseHandler"),
		catalogService: catalogService,
	}
}

// CreateCourse accepts a multipart form with "name", "description" and an
// optional "pic" file part.
func (h *CourseHandler) CreateCourse(c *gin.Context) {
	rd := requestdata.GetRequestData(c.Request.Context())

	input := services.CourseInput{
		Name:        c.PostForm("name"),
		Description: c.PostForm("description"),
	}
	pic, closePic, err := formImage(c, "pic")
	if err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_pic", err)
		return
	}
	defer closePic()
	input.Pic = pic

	course, err := h.catalogService.CreateCourse(c.Request.Context(), rd.UserID, input)
	if err != nil {
		h.log.Error("CreateCourse failed", "error", err, "userID", rd.UserID)
		RespondServiceError(c, err)
		return
	}
	RespondCreated(c, gin.H{"course": course})
}

func (h *CourseHandler) GetCourse(c *gin.Context) {
	courseID, err := uuid.Parse(c.Param("course_id"))
	if err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_course_id", err)
		return
	}

	course, err := h.catalogService.GetCourse(c.Request.Context(), courseID)
	if err != nil {
		h.log.Error("GetCourse failed", "error", err, "courseID", courseID)
		RespondServiceError(c, err)
		return
	}
	RespondOK(c, gin.H{"course": course})
}

func (h *CourseHandler) UpdateCourse(c *gin.Context) {
	rd := requestdata.GetRequestData(c.Request.Context())
	courseID, err := uuid.Parse(c.Param("course_id"))
	if err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_course_id", err)
		return
	}

	var update services.CourseUpdate
	if v, ok := c.GetPostForm("name"); ok {
		update.Name = &v
	}
	if v, ok := c.GetPostForm("description"); ok {
		update.Description = &v
	}
	pic, closePic, err := formImage(c, "pic")
	if err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_pic", err)
		return
	}
	defer closePic()
	update.Pic = pic

	course, err := h.catalogService.UpdateCourse(c.Request.Context(), rd.UserID, courseID, update)
	if err != nil {
		h.log.Error("UpdateCourse failed", "error", err, "courseID", courseID)
		RespondServiceError(c, err)
		return
	}
	RespondOK(c, gin.H{"course": course})
}

func (h *CourseHandler) DeleteCourse(c *gin.Context) {
	rd := requestdata.GetRequestData(c.Request.Context())
	courseID, err := uuid.Parse(c.Param("course_id"))
	if err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_course_id", err)
		return
	}

	if err := h.catalogService.DeleteCourse(c.Request.Context(), rd.UserID, courseID); err != nil {
		h.log.Error("DeleteCourse failed", "error", err, "courseID", courseID)
		RespondServiceError(c, err)
		return
	}
	RespondOK(c, gin.H{"status": "deleted"})
}

func (h *CourseHandler) SearchCourses(c *gin.Context) {
	query := c.Query("q")
	if query == "" {
		RespondError(c, http.StatusBadRequest, "missing_query", nil)
		return
	}

	results, err := h.catalogService.SearchCourses(c.Request.Context(), query)
	if err != nil {
		h.log.Error("SearchCourses failed", "error", err, "query", query)
		RespondServiceError(c, err)
		return
	}
	RespondOK(c, gin.H{"results": results})
}

func (h *CourseHandler) PrimeChannelCache(c *gin.Context) {
	rd := requestdata.GetRequestData(c.Request.Context())

	if err := h.catalogService.PrimeChannelCache(c.Request.Context(), rd.UserID); err != nil {
		h.log.Error("PrimeChannelCache failed", "error", err, "userID", rd.UserID)
		RespondServiceError(c, err)
		return
	}
	RespondOK(c, gin.H{"status": "primed"})
}
