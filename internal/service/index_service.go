package service

import (
	"context"
	"errors"
	"fmt"
	"io"

	"go.uber.org/zap"

	"github.com/gavram/ckan-search/internal/document"
	"github.com/gavram/ckan-search/internal/elasticsearch"
	"github.com/gavram/ckan-search/internal/logger"
	"github.com/gavram/ckan-search/internal/metrics"
)

// Indexer writes host records into a search index.
type Indexer interface {
	Insert(ctx context.Context, doc document.Document, opts ...WriteOption) error
	Update(ctx context.Context, doc document.Document, opts ...WriteOption) error
	Remove(ctx context.Context, id string, opts ...WriteOption) error
	Clear(ctx context.Context) error
	Commit(ctx context.Context) error
}

type writeOptions struct {
	deferCommit bool
}

// WriteOption adjusts a single Insert, Update or Remove call.
type WriteOption func(*writeOptions)

// DeferCommit skips the refresh after a write; call Commit later.
func DeferCommit() WriteOption {
	return func(o *writeOptions) { o.deferCommit = true }
}

func applyWriteOptions(opts []WriteOption) writeOptions {
	var o writeOptions
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// PackageIndex indexes datasets into a single Elasticsearch index.
type PackageIndex struct {
	es     elasticsearch.IndexSearcher
	index  string
	logger *zap.Logger
}

var _ Indexer = (*PackageIndex)(nil)

func NewPackageIndex(es elasticsearch.IndexSearcher, index string, log *zap.Logger) *PackageIndex {
	return &PackageIndex{
		es:     es,
		index:  index,
		logger: logger.OrNop(log).With(zap.String("index", index)),
	}
}

// EnsureIndex creates the index with the dataset mapping if it is missing.
func (p *PackageIndex) EnsureIndex(ctx context.Context) error {
	if err := p.es.EnsureIndex(ctx, p.index, elasticsearch.DatasetsMapping()); err != nil {
		return fmt.Errorf("ensure %s index: %w", p.index, err)
	}
	return nil
}

// IsAvailable reports whether the cluster answers.
func (p *PackageIndex) IsAvailable(ctx context.Context) bool {
	if err := p.es.Ping(ctx); err != nil {
		p.logger.Error("elasticsearch unavailable", zap.Error(err))
		return false
	}
	return true
}

func (p *PackageIndex) Insert(ctx context.Context, doc document.Document, opts ...WriteOption) (err error) {
	defer func() { metrics.ObserveIndexOp("insert", err) }()

	id := doc.ID()
	if id == "" {
		return &IndexError{Op: "insert", Err: document.ErrMissingID}
	}
	if err := p.es.IndexDocument(ctx, p.index, id, doc); err != nil {
		p.logger.Error("insert failed", zap.String("id", id), zap.Error(err))
		return &IndexError{Op: "insert", ID: id, Err: err}
	}
	return p.refresh(ctx, "insert", id, applyWriteOptions(opts))
}

// Update merges doc into the stored document, inserting it when absent.
// The fallback is counted as an update and as an insert.
func (p *PackageIndex) Update(ctx context.Context, doc document.Document, opts ...WriteOption) (err error) {
	defer func() { metrics.ObserveIndexOp("update", err) }()

	id := doc.ID()
	if id == "" {
		return &IndexError{Op: "update", Err: document.ErrMissingID}
	}

	err = p.es.UpdateDocument(ctx, p.index, id, doc)
	if errors.Is(err, elasticsearch.ErrNotFound) {
		p.logger.Info("document not in index, inserting", zap.String("id", id))
		return p.Insert(ctx, doc, opts...)
	}
	if err != nil {
		p.logger.Error("update failed", zap.String("id", id), zap.Error(err))
		return &IndexError{Op: "update", ID: id, Err: err}
	}
	return p.refresh(ctx, "update", id, applyWriteOptions(opts))
}

// Remove deletes a document. A document that is not indexed is not an error.
func (p *PackageIndex) Remove(ctx context.Context, id string, opts ...WriteOption) (err error) {
	defer func() { metrics.ObserveIndexOp("remove", err) }()

	if id == "" {
		return &IndexError{Op: "remove", Err: document.ErrMissingID}
	}
	if err := p.es.DeleteDocument(ctx, p.index, id); err != nil {
		if errors.Is(err, elasticsearch.ErrNotFound) {
			p.logger.Info("document not found in index", zap.String("id", id))
			return nil
		}
		p.logger.Error("remove failed", zap.String("id", id), zap.Error(err))
		return &IndexError{Op: "remove", ID: id, Err: err}
	}
	return p.refresh(ctx, "remove", id, applyWriteOptions(opts))
}

// Clear drops and recreates the index.
func (p *PackageIndex) Clear(ctx context.Context) (err error) {
	defer func() { metrics.ObserveIndexOp("clear", err) }()

	if err := p.es.DeleteIndex(ctx, p.index); err != nil {
		p.logger.Error("clear: delete index failed", zap.Error(err))
		return &IndexError{Op: "clear", Err: err}
	}
	if err := p.es.CreateIndex(ctx, p.index, elasticsearch.DatasetsMapping()); err != nil {
		p.logger.Error("clear: create index failed", zap.Error(err))
		return &IndexError{Op: "clear", Err: err}
	}
	p.logger.Info("all documents removed, index recreated")
	return nil
}

// Commit makes deferred writes visible to search.
func (p *PackageIndex) Commit(ctx context.Context) (err error) {
	defer func() { metrics.ObserveIndexOp("commit", err) }()

	if err := p.es.Refresh(ctx, p.index); err != nil {
		p.logger.Error("commit failed", zap.Error(err))
		return &IndexError{Op: "commit", Err: err}
	}
	return nil
}

func (p *PackageIndex) refresh(ctx context.Context, op, id string, o writeOptions) error {
	if o.deferCommit {
		return nil
	}
	if err := p.es.Refresh(ctx, p.index); err != nil {
		p.logger.Error("refresh failed", zap.String("op", op), zap.String("id", id), zap.Error(err))
		return &IndexError{Op: op, ID: id, Err: err}
	}
	return nil
}

// Show returns the stored document, or an empty document when it is not indexed.
func (p *PackageIndex) Show(ctx context.Context, id string) (document.Document, error) {
	res, err := p.es.GetDocument(ctx, p.index, id)
	if err != nil {
		if errors.Is(err, elasticsearch.ErrNotFound) {
			p.logger.Warn("document not found", zap.String("id", id))
			return document.Document{}, nil
		}
		return nil, &IndexError{Op: "show", ID: id, Err: err}
	}
	if !res.Found {
		return document.Document{}, nil
	}
	return document.Document(res.Source), nil
}

// HealthReport summarises cluster health for the index.
type HealthReport struct {
	Index            string `json:"index"`
	Cluster          string `json:"cluster"`
	Status           string `json:"status"`
	Nodes            int    `json:"nodes"`
	ActiveShards     int    `json:"active_shards"`
	UnassignedShards int    `json:"unassigned_shards"`
}

// Healthy is true for green and yellow clusters.
func (h *HealthReport) Healthy() bool {
	return h.Status == "green" || h.Status == "yellow"
}

func (p *PackageIndex) Check(ctx context.Context) (*HealthReport, error) {
	p.logger.Info("checking index status")
	h, err := p.es.Health(ctx, p.index)
	if err != nil {
		return nil, &IndexError{Op: "check", Err: err}
	}
	return &HealthReport{
		Index:            p.index,
		Cluster:          h.ClusterName,
		Status:           h.Status,
		Nodes:            h.NumberOfNodes,
		ActiveShards:     h.ActiveShards,
		UnassignedShards: h.UnassignedShards,
	}, nil
}

type RebuildOptions struct {
	// OnlyMissing skips documents whose id is already indexed.
	OnlyMissing bool
	// Force keeps going after a document fails to index.
	Force bool
}

type RebuildStats struct {
	Indexed int `json:"indexed"`
	Skipped int `json:"skipped"`
	Failed  int `json:"failed"`
}

// Rebuild indexes every document from src with deferred commits and
// refreshes once at the end. Source read errors always stop the rebuild.
func (p *PackageIndex) Rebuild(ctx context.Context, src document.Source, opts RebuildOptions) (RebuildStats, error) {
	var stats RebuildStats
	p.logger.Info("rebuilding index", zap.Bool("only_missing", opts.OnlyMissing), zap.Bool("force", opts.Force))

	for {
		if err := ctx.Err(); err != nil {
			return stats, &IndexError{Op: "rebuild", Err: err}
		}
		doc, err := src.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return stats, &IndexError{Op: "rebuild", Err: fmt.Errorf("read source: %w", err)}
		}

		id := doc.ID()
		if opts.OnlyMissing {
			present, err := p.exists(ctx, id)
			if err == nil && present {
				stats.Skipped++
				continue
			}
			if err != nil {
				if !opts.Force {
					return stats, &IndexError{Op: "rebuild", ID: id, Err: err}
				}
				stats.Failed++
				continue
			}
		}

		if err := p.Insert(ctx, doc, DeferCommit()); err != nil {
			if !opts.Force {
				return stats, err
			}
			p.logger.Warn("rebuild: skipping document", zap.String("id", id), zap.Error(err))
			stats.Failed++
			continue
		}
		stats.Indexed++
	}

	if err := p.Commit(ctx); err != nil {
		return stats, err
	}
	p.logger.Info("finished rebuilding index",
		zap.Int("indexed", stats.Indexed),
		zap.Int("skipped", stats.Skipped),
		zap.Int("failed", stats.Failed),
	)
	return stats, nil
}

func (p *PackageIndex) exists(ctx context.Context, id string) (bool, error) {
	res, err := p.es.GetDocument(ctx, p.index, id)
	if err != nil {
		if errors.Is(err, elasticsearch.ErrNotFound) {
			return false, nil
		}
		return false, err
	}
	return res.Found, nil
}

// NoopIndex accepts every write and does nothing with it.
type NoopIndex struct {
	logger *zap.Logger
}

var _ Indexer = NoopIndex{}

func NewNoopIndex(log *zap.Logger) NoopIndex {
	return NoopIndex{logger: logger.OrNop(log)}
}

func (n NoopIndex) Insert(_ context.Context, doc document.Document, _ ...WriteOption) error {
	n.log().Debug("noop insert", zap.Strings("fields", doc.Keys()))
	return nil
}

func (n NoopIndex) Update(_ context.Context, doc document.Document, _ ...WriteOption) error {
	n.log().Debug("noop update", zap.Strings("fields", doc.Keys()))
	return nil
}

func (n NoopIndex) Remove(_ context.Context, id string, _ ...WriteOption) error {
	n.log().Debug("noop remove", zap.String("id", id))
	return nil
}

func (n NoopIndex) Clear(context.Context) error { return nil }

func (n NoopIndex) Commit(context.Context) error { return nil }

func (n NoopIndex) log() *zap.Logger { return logger.OrNop(n.logger) }
