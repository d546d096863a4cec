package handlers

import (
	"net/http"

	"example.com/raceday/services/registration/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

// EventHandler handles event-related requests
type EventHandler struct {
	service service.Service
	log     *logrus.Logger
}

// NewEventHandler creates a new EventHandler instance
func NewEventHandler(svc service.Service, log *logrus.Logger) *EventHandler {
	return &EventHandler{
		service: svc,
		log:     log,
	}
}

// CreateEvent handles event creation
func (h *EventHandler) CreateEvent(c *gin.Context) {
	var input service.EventInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid event payload"})
		return
	}

	event, err := h.service.CreateEvent(c.Request.Context(), input)
	if err != nil {
		writeError(c, h.log, err)
		return
	}

	c.JSON(http.StatusCreated, event)
}

// GetEvent handles event retrieval
func (h *EventHandler) GetEvent(c *gin.Context) {
	event, err := h.service.GetEvent(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, h.log, err)
		return
	}

	c.JSON(http.StatusOK, event)
}

// ListEvents handles listing all events of the organization
func (h *EventHandler) ListEvents(c *gin.Context) {
	events, err := h.service.ListEvents(c.Request.Context())
	if err != nil {
		writeError(c, h.log, err)
		return
	}

	c.JSON(http.StatusOK, events)
}

// UpdateEvent handles event updates
func (h *EventHandler) UpdateEvent(c *gin.Context) {
	var input service.EventInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid event payload"})
		return
	}

	event, err := h.service.UpdateEvent(c.Request.Context(), c.Param("id"), input)
	if err != nil {
		writeError(c, h.log, err)
		return
	}

	c.JSON(http.StatusOK, event)
}

// DeleteEvent handles event deletion, removing the event's runners too
func (h *EventHandler) DeleteEvent(c *gin.Context) {
	if err := h.service.DeleteEvent(c.Request.Context(), c.Param("id")); err != nil {
		writeError(c, h.log, err)
		return
	}

	c.Status(http.StatusNoContent)
}

// GetEventStats handles event progress statistics
func (h *EventHandler) GetEventStats(c *gin.Context) {
	stats, err := h.service.EventStats(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, h.log, err)
		return
	}

	c.JSON(http.StatusOK, stats)
}
