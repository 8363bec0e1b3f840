package handler

import (
	"context"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/gavram/ckan-search/internal/logger"
	"github.com/gavram/ckan-search/internal/notify"
	"github.com/gavram/ckan-search/internal/validator"
)

// EventHandler applies one host notification.
type EventHandler interface {
	Handle(ctx context.Context, ev *notify.Event) error
}

type NotifyHandler struct {
	events    EventHandler
	validator *validator.Validator
	logger    *zap.Logger
}

func NewNotifyHandler(events EventHandler, log *zap.Logger) *NotifyHandler {
	return &NotifyHandler{
		events:    events,
		validator: validator.New(),
		logger:    logger.OrNop(log),
	}
}

// Notify POST /notify
func (h *NotifyHandler) Notify(c *gin.Context) {
	data, err := readBody(c.Request.Body)
	if err != nil {
		abortWithError(c, h.logger, err)
		return
	}
	ev, err := notify.DecodeEvent(data)
	if err != nil {
		abortWithError(c, h.logger, fmt.Errorf("%w: %v", validator.ErrValidation, err))
		return
	}
	if err := h.validator.ValidateEvent(ev); err != nil {
		abortWithError(c, h.logger, err)
		return
	}
	if err := h.events.Handle(c.Request.Context(), ev); err != nil {
		abortWithError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"ok": true})
}
