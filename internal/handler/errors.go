package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/gavram/ckan-search/internal/document"
	"github.com/gavram/ckan-search/internal/notify"
	"github.com/gavram/ckan-search/internal/service"
	"github.com/gavram/ckan-search/internal/validator"
)

// statusFor maps service errors to HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, validator.ErrValidation),
		errors.Is(err, service.ErrFacetsUnsupported),
		errors.Is(err, notify.ErrUnknownOperation),
		errors.Is(err, document.ErrMissingID):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func abortWithError(c *gin.Context, log *zap.Logger, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		log.Error("request failed",
			zap.String("path", c.FullPath()),
			zap.String("request_id", c.GetString(RequestIDKey)),
			zap.Error(err),
		)
	}
	c.AbortWithStatusJSON(status, gin.H{"error": err.Error()})
}
