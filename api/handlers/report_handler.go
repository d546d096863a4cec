package handlers

import (
	"bytes"
	"net/http"

	"example.com/raceday/services/registration/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

// ReportHandler handles report and archive requests
type ReportHandler struct {
	service service.Service
	log     *logrus.Logger
}

// NewReportHandler creates a new ReportHandler instance
func NewReportHandler(svc service.Service, log *logrus.Logger) *ReportHandler {
	return &ReportHandler{
		service: svc,
		log:     log,
	}
}

// StarterList handles the starter list report
func (h *ReportHandler) StarterList(c *gin.Context) {
	list, err := h.service.StarterList(
		c.Request.Context(),
		c.Param("id"),
		c.Query("race"),
		c.Query("order"),
	)
	if err != nil {
		writeError(c, h.log, err)
		return
	}

	c.JSON(http.StatusOK, list)
}

// FinishedReport handles the finished runners report
func (h *ReportHandler) FinishedReport(c *gin.Context) {
	rep, err := h.service.FinishedReport(
		c.Request.Context(),
		c.Param("id"),
		c.Query("race"),
		c.Query("by"),
	)
	if err != nil {
		writeError(c, h.log, err)
		return
	}

	c.JSON(http.StatusOK, rep)
}

// ExportArchive streams the event as its tab-separated archive form
func (h *ReportHandler) ExportArchive(c *gin.Context) {
	archive, err := h.service.ExportArchive(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, h.log, err)
		return
	}

	var buf bytes.Buffer
	if err := archive.WriteTSV(&buf); err != nil {
		writeError(c, h.log, err)
		return
	}

	c.Header("Content-Disposition", "attachment; filename="+c.Param("id")+".tsv")
	c.Data(http.StatusOK, "text/tab-separated-values; charset=utf-8", buf.Bytes())
}

// ImportArchive creates a new event from an uploaded archive
func (h *ReportHandler) ImportArchive(c *gin.Context) {
	event, err := h.service.ImportArchive(c.Request.Context(), c.Request.Body)
	if err != nil {
		writeError(c, h.log, err)
		return
	}

	c.JSON(http.StatusCreated, event)
}
