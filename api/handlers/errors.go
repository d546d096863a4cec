package handlers

import (
	"errors"
	"net/http"

	"example.com/raceday/services/registration/internal/service"
	"example.com/raceday/services/registration/internal/timing"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

// writeError translates engine errors into HTTP responses. Validation
// problems carry their per-field messages so the client can re-prompt.
func writeError(c *gin.Context, log *logrus.Logger, err error) {
	var dupErr *service.DuplicateStartNoError
	if errors.As(err, &dupErr) {
		c.JSON(http.StatusConflict, gin.H{
			"error":  dupErr.Error(),
			"fields": gin.H{"start_no": []string{"start number is already taken"}},
		})
		return
	}

	var verr *service.ValidationError
	if errors.As(err, &verr) {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":  "validation failed",
			"fields": verr.Fields,
		})
		return
	}

	var ferr *timing.FormatError
	if errors.As(err, &ferr) {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":  ferr.Error(),
			"fields": gin.H{"time": []string{"does not match [hh:]mm:ss"}},
		})
		return
	}

	if errors.Is(err, service.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
		return
	}

	if errors.Is(err, service.ErrTxConflict) {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "temporarily unavailable, retry"})
		return
	}

	log.WithError(err).Error("Unhandled error")
	c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
}
