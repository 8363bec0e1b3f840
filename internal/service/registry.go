package service

import (
	"go.uber.org/zap"

	"github.com/gavram/ckan-search/internal/logger"
)

// PackageType is the host entity type that is indexed.
const PackageType = "package"

// Registry maps host entity types to their index.
type Registry struct {
	indices map[string]Indexer
	logger  *zap.Logger
}

func NewRegistry(pkg Indexer, log *zap.Logger) *Registry {
	return &Registry{
		indices: map[string]Indexer{PackageType: pkg},
		logger:  logger.OrNop(log),
	}
}

// IndexFor returns the index for entityType, or a NoopIndex for types that are not indexed.
func (r *Registry) IndexFor(entityType string) Indexer {
	if idx, ok := r.indices[entityType]; ok {
		return idx
	}
	r.logger.Warn("unknown search type", zap.String("entity_type", entityType))
	return NewNoopIndex(r.logger)
}
