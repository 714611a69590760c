package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/studybits/studybits-backend/internal/platform/logger"
	"github.com/studybits/studybits-backend/internal/requestdata"
	"github.com/studybits/studybits-backend/internal/services"
)

type ChannelHandler struct {
	log            *logger.Logger
	channelService services.ChannelService
}

func NewChannelHandler(log *logger.Logger, channelService services.ChannelService) *ChannelHandler {
	return &ChannelHandler{
		log:            log.With("handler", "ChannelHandler"),
		channelService: channelService,
	}
}

func (h *ChannelHandler) GetChannel(c *gin.Context) {
	userID, err := channelOwner(c)
	if err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_user_id", err)
		return
	}

	channel, err := h.channelService.GetChannel(c.Request.Context(), userID)
	if err != nil {
		h.log.Error("GetChannel failed", "error", err, "userID", userID)
		RespondServiceError(c, err)
		return
	}
	RespondOK(c, gin.H{"channel": channel})
}

func (h *ChannelHandler) GetChannelCourses(c *gin.Context) {
	userID, err := channelOwner(c)
	if err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_user_id", err)
		return
	}

	courses, err := h.channelService.GetChannelCourses(c.Request.Context(), userID)
	if err != nil {
		h.log.Error("GetChannelCourses failed", "error", err, "userID", userID)
		RespondServiceError(c, err)
		return
	}
	RespondOK(c, gin.H{"courses": courses})
}

// UpdateChannel accepts a multipart form. Text fields are optional;
// "banner" and "profile_pic" are optional file parts.
func (h *ChannelHandler) UpdateChannel(c *gin.Context) {
	rd := requestdata.GetRequestData(c.Request.Context())

	var update services.ChannelUpdate
	if v, ok := c.GetPostForm("display_name"); ok {
		update.DisplayName = &v
	}

	banner, closeBanner, err := formImage(c, "banner")
	if err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_banner", err)
		return
	}
	defer closeBanner()
	update.Banner = banner

	profilePic, closeProfilePic, err := formImage(c, "profile_pic")
	if err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_profile_pic", err)
		return
	}
	defer closeProfilePic()
	update.ProfilePic = profilePic

	channel, err := h.channelService.UpdateChannel(c.Request.Context(), rd.UserID, update)
	if err != nil {
		h.log.Error("UpdateChannel failed", "error", err, "userID", rd.UserID)
		RespondServiceError(c, err)
		return
	}
	RespondOK(c, gin.H{"channel": channel})
}

// channelOwner resolves the target channel's user id: the "user_id" path
// param when present, otherwise the authenticated caller.
func channelOwner(c *gin.Context) (uuid.UUID, error) {
	if raw := c.Param("user_id"); raw != "" {
		return uuid.Parse(raw)
	}
	rd := requestdata.GetRequestData(c.Request.Context())
	return rd.UserID, nil
}

// formImage pulls an optional file part out of the multipart form. The
// returned closer is always safe to defer.
func formImage(c *gin.Context, field string) (*services.ImageUpload, func(), error) {
	noop := func() {}
	header, err := c.FormFile(field)
	if err != nil {
		if errors.Is(err, http.ErrMissingFile) {
			return nil, noop, nil
		}
		return nil, noop, err
	}
	file, err := header.Open()
	if err != nil {
		return nil, noop, err
	}
	return &services.ImageUpload{
		Filename: header.Filename,
		Reader:   file,
	}, func() { file.Close() }, nil
}
