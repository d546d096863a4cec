package handlers

import (
	"net/http"

	"example.com/raceday/services/registration/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

// RunnerHandler handles runner-related requests
type RunnerHandler struct {
	service service.Service
	log     *logrus.Logger
}

// NewRunnerHandler creates a new RunnerHandler instance
func NewRunnerHandler(svc service.Service, log *logrus.Logger) *RunnerHandler {
	return &RunnerHandler{
		service: svc,
		log:     log,
	}
}

// CreateRunner handles runner registration
func (h *RunnerHandler) CreateRunner(c *gin.Context) {
	var input service.RunnerInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid runner payload"})
		return
	}

	runner, err := h.service.CreateRunner(c.Request.Context(), c.Param("id"), input)
	if err != nil {
		writeError(c, h.log, err)
		return
	}

	c.JSON(http.StatusCreated, runner)
}

// GetRunner handles runner retrieval
func (h *RunnerHandler) GetRunner(c *gin.Context) {
	runner, err := h.service.GetRunner(c.Request.Context(), c.Param("id"), c.Param("runnerId"))
	if err != nil {
		writeError(c, h.log, err)
		return
	}

	c.JSON(http.StatusOK, runner)
}

// ListRunners handles listing the runners of an event
func (h *RunnerHandler) ListRunners(c *gin.Context) {
	runners, err := h.service.ListRunners(
		c.Request.Context(),
		c.Param("id"),
		c.Query("race"),
		c.Query("order"),
	)
	if err != nil {
		writeError(c, h.log, err)
		return
	}

	c.JSON(http.StatusOK, runners)
}

// UpdateRunner handles runner updates
func (h *RunnerHandler) UpdateRunner(c *gin.Context) {
	var input service.RunnerInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid runner payload"})
		return
	}

	runner, err := h.service.UpdateRunner(c.Request.Context(), c.Param("id"), c.Param("runnerId"), input)
	if err != nil {
		writeError(c, h.log, err)
		return
	}

	c.JSON(http.StatusOK, runner)
}

// DeleteRunner handles runner deletion
func (h *RunnerHandler) DeleteRunner(c *gin.Context) {
	if err := h.service.DeleteRunner(c.Request.Context(), c.Param("id"), c.Param("runnerId")); err != nil {
		writeError(c, h.log, err)
		return
	}

	c.Status(http.StatusNoContent)
}

// finishRequest is the payload of the live timing fast path.
type finishRequest struct {
	StartNo int    `json:"start_no" binding:"required,min=1"`
	Time    string `json:"time"`
}

// RecordFinish handles setting the finish time for a start number
func (h *RunnerHandler) RecordFinish(c *gin.Context) {
	var req finishRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid finish payload"})
		return
	}

	runner, err := h.service.RecordFinish(c.Request.Context(), c.Param("id"), req.StartNo, req.Time)
	if err != nil {
		writeError(c, h.log, err)
		return
	}

	c.JSON(http.StatusOK, runner)
}
