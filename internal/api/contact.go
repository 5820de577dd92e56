package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/lalith-99/hostchat/internal/middleware"
	"github.com/lalith-99/hostchat/internal/models"
	"github.com/lalith-99/hostchat/internal/service"
	"go.uber.org/zap"
)

type ContactHandler struct {
	contacts        *service.ContactService
	pollInterval    time.Duration
	longPollTimeout time.Duration
	logger          *zap.Logger
}

func NewContactHandler(contacts *service.ContactService, pollInterval, longPollTimeout time.Duration, logger *zap.Logger) *ContactHandler {
	return &ContactHandler{
		contacts:        contacts,
		pollInterval:    pollInterval,
		longPollTimeout: longPollTimeout,
		logger:          logger,
	}
}

// List handles GET /v1/contacts[?wait=true]
//
// Plain requests return immediately. With wait=true the request is held
// until something changes for the caller or the long-poll timeout passes.
// X-Poll-Interval tells clients how often to refresh.
func (h *ContactHandler) List(c *gin.Context) {
	viewer := middleware.GetUserID(c)
	c.Header("X-Poll-Interval", strconv.Itoa(int(h.pollInterval.Seconds())))

	wait, _ := strconv.ParseBool(c.Query("wait"))

	var (
		contacts []models.ChatContact
		err      error
	)
	if wait {
		contacts, err = h.contacts.Wait(c.Request.Context(), viewer, h.longPollTimeout)
	} else {
		contacts, err = h.contacts.Contacts(c.Request.Context(), viewer)
	}
	if err != nil {
		if c.Request.Context().Err() != nil {
			// Client went away mid long poll.
			c.Status(http.StatusNoContent)
			return
		}
		respondError(c, h.logger, "list contacts", err)
		return
	}
	c.JSON(http.StatusOK, contacts)
}

// Open handles POST /v1/contacts/:id/open. It marks the contact's messages
// to the caller read and returns the refreshed list plus the thread.
func (h *ContactHandler) Open(c *gin.Context) {
	contactID, ok := paramID(c, "id")
	if !ok {
		return
	}

	res, err := h.contacts.Open(c.Request.Context(), middleware.GetUserID(c), contactID)
	if err != nil {
		respondError(c, h.logger, "open conversation", err)
		return
	}
	c.JSON(http.StatusOK, res)
}
