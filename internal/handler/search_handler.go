package handler

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/gavram/ckan-search/internal/logger"
	"github.com/gavram/ckan-search/internal/service"
	"github.com/gavram/ckan-search/internal/validator"
)

// Searcher runs dataset queries.
type Searcher interface {
	Run(ctx context.Context, req service.Request) (*service.Result, error)
}

type SearchHandler struct {
	runner    Searcher
	validator *validator.Validator
	logger    *zap.Logger
}

func NewSearchHandler(runner Searcher, log *zap.Logger) *SearchHandler {
	return &SearchHandler{
		runner:    runner,
		validator: validator.New(),
		logger:    logger.OrNop(log),
	}
}

// Search GET /search?q=...&fq=field:value&sort=name+asc&start=0&rows=20&facet=false
func (h *SearchHandler) Search(c *gin.Context) {
	req, err := parseSearchRequest(c)
	if err != nil {
		abortWithError(c, h.logger, err)
		return
	}
	if err := h.validator.ValidateSearchRequest(req); err != nil {
		abortWithError(c, h.logger, err)
		return
	}

	result, err := h.runner.Run(c.Request.Context(), req)
	if err != nil {
		abortWithError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func parseSearchRequest(c *gin.Context) (service.Request, error) {
	req := service.Request{
		Q:    c.Query("q"),
		Sort: c.Query("sort"),
	}
	for _, fq := range c.QueryArray("fq") {
		field, value, ok := strings.Cut(fq, ":")
		if !ok {
			return req, fmt.Errorf("%w: fq must be field:value, got %q", validator.ErrValidation, fq)
		}
		req.Filters = append(req.Filters, service.Filter{Field: strings.TrimSpace(field), Value: value})
	}

	var err error
	if req.Start, err = intParam(c, "start"); err != nil {
		return req, err
	}
	if req.Rows, err = intParam(c, "rows"); err != nil {
		return req, err
	}
	if v := c.Query("facet"); v != "" {
		if req.Facet, err = strconv.ParseBool(v); err != nil {
			return req, fmt.Errorf("%w: facet must be a boolean", validator.ErrValidation)
		}
	}
	return req, nil
}

func intParam(c *gin.Context, name string) (*int, error) {
	v, ok := c.GetQuery(name)
	if !ok || v == "" {
		return nil, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return nil, fmt.Errorf("%w: %s must be an integer", validator.ErrValidation, name)
	}
	return &n, nil
}
