package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/gavram/ckan-search/internal/document"
	"github.com/gavram/ckan-search/internal/logger"
	"github.com/gavram/ckan-search/internal/service"
	"github.com/gavram/ckan-search/internal/validator"
)

// DatasetIndex is the index writer surface exposed over HTTP.
type DatasetIndex interface {
	service.Indexer
	Pinger
	Show(ctx context.Context, id string) (document.Document, error)
	Check(ctx context.Context) (*service.HealthReport, error)
}

type DatasetHandler struct {
	index     DatasetIndex
	validator *validator.Validator
	logger    *zap.Logger
}

func NewDatasetHandler(index DatasetIndex, log *zap.Logger) *DatasetHandler {
	return &DatasetHandler{
		index:     index,
		validator: validator.New(),
		logger:    logger.OrNop(log),
	}
}

// Show GET /datasets/:id
func (h *DatasetHandler) Show(c *gin.Context) {
	id := c.Param("id")
	if err := h.validator.ValidateDatasetID(id); err != nil {
		abortWithError(c, h.logger, err)
		return
	}
	doc, err := h.index.Show(c.Request.Context(), id)
	if err != nil {
		abortWithError(c, h.logger, err)
		return
	}
	if len(doc) == 0 {
		c.JSON(http.StatusNotFound, gin.H{"error": "dataset not indexed"})
		return
	}
	c.JSON(http.StatusOK, doc)
}

// Create POST /datasets
func (h *DatasetHandler) Create(c *gin.Context) {
	doc, ok := h.bindDataset(c, "")
	if !ok {
		return
	}
	if err := h.index.Insert(c.Request.Context(), doc); err != nil {
		abortWithError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"ok": true, "id": doc.ID()})
}

// Update PUT /datasets/:id
func (h *DatasetHandler) Update(c *gin.Context) {
	doc, ok := h.bindDataset(c, c.Param("id"))
	if !ok {
		return
	}
	if err := h.index.Update(c.Request.Context(), doc); err != nil {
		abortWithError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true, "id": doc.ID()})
}

// Delete DELETE /datasets/:id
func (h *DatasetHandler) Delete(c *gin.Context) {
	id := c.Param("id")
	if err := h.validator.ValidateDatasetID(id); err != nil {
		abortWithError(c, h.logger, err)
		return
	}
	if err := h.index.Remove(c.Request.Context(), id); err != nil {
		abortWithError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

// bindDataset decodes the body into a document. A non-empty pathID
// fills in a missing id and must match a present one.
func (h *DatasetHandler) bindDataset(c *gin.Context, pathID string) (document.Document, bool) {
	record, err := decodeObject(c.Request.Body)
	if err != nil {
		abortWithError(c, h.logger, err)
		return nil, false
	}
	if pathID != "" {
		if record == nil {
			record = map[string]any{}
		}
		if _, has := record[document.FieldID]; !has {
			record[document.FieldID] = pathID
		} else if document.Document(record).ID() != pathID {
			abortWithError(c, h.logger, fmt.Errorf("%w: body id does not match path", validator.ErrValidation))
			return nil, false
		}
	}
	if err := h.validator.ValidateDataset(record); err != nil {
		abortWithError(c, h.logger, err)
		return nil, false
	}
	doc, err := document.New(record)
	if err != nil {
		abortWithError(c, h.logger, fmt.Errorf("%w: %v", validator.ErrValidation, err))
		return nil, false
	}
	return doc, true
}

func readBody(r io.Reader) ([]byte, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}
	return data, nil
}

// decodeObject parses a JSON object body, keeping numbers exact.
func decodeObject(r io.Reader) (map[string]any, error) {
	data, err := readBody(r)
	if err != nil {
		return nil, err
	}
	var out map[string]any
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	if err := dec.Decode(&out); err != nil {
		return nil, fmt.Errorf("%w: invalid body: %v", validator.ErrValidation, err)
	}
	return out, nil
}
