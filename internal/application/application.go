package application

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/gavram/ckan-search/internal/config"
	"github.com/gavram/ckan-search/internal/elasticsearch"
	"github.com/gavram/ckan-search/internal/handler"
	"github.com/gavram/ckan-search/internal/logger"
	"github.com/gavram/ckan-search/internal/notify"
	"github.com/gavram/ckan-search/internal/router"
	"github.com/gavram/ckan-search/internal/service"
)

// Services bundles everything built on one Elasticsearch client.
type Services struct {
	Index    *service.PackageIndex
	Query    *service.QueryRunner
	Notifier *notify.Notifier
}

// NewServices connects to Elasticsearch using the configured settings.
func NewServices(cfg *config.Config, log *zap.Logger) (*Services, error) {
	es, err := elasticsearch.NewClient(cfg.Settings(), elasticsearch.Options{
		Timeout:       cfg.Elasticsearch.Timeout.Std(),
		SkipTLSVerify: cfg.Elasticsearch.SkipTLSVerify,
	})
	if err != nil {
		return nil, fmt.Errorf("elasticsearch: %w", err)
	}
	idx := service.NewPackageIndex(es, cfg.Elasticsearch.Index, log)
	return &Services{
		Index:    idx,
		Query:    service.NewQueryRunner(es, cfg.Elasticsearch.Index, log),
		Notifier: notify.NewNotifier(service.NewRegistry(idx, log), log),
	}, nil
}

// API is the HTTP server (api mode).
type API struct {
	cfg     *config.Config
	httpSrv *http.Server
	svcs    *Services
	logger  *zap.Logger
}

func NewAPI(cfg *config.Config, log *zap.Logger) (*API, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	log = logger.OrNop(log)

	svcs, err := NewServices(cfg, log)
	if err != nil {
		return nil, err
	}

	h := router.New(router.Handlers{
		Search:   handler.NewSearchHandler(svcs.Query, log),
		Datasets: handler.NewDatasetHandler(svcs.Index, log),
		Notify:   handler.NewNotifyHandler(svcs.Notifier, log),
		Ready:    svcs.Index,
	})

	httpSrv := &http.Server{
		Addr:              net.JoinHostPort(cfg.HTTP.Host, cfg.HTTP.Port),
		Handler:           h,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	return &API{cfg: cfg, httpSrv: httpSrv, svcs: svcs, logger: log}, nil
}

// Run serves HTTP until ctx is cancelled.
func (a *API) Run(ctx context.Context) error {
	if err := a.svcs.Index.EnsureIndex(ctx); err != nil {
		a.logger.Warn("index not ensured, continuing", zap.Error(err))
	}

	host := a.cfg.HTTP.Host
	if host == "0.0.0.0" || host == "" {
		host = "localhost"
	}
	base := "http://" + net.JoinHostPort(host, a.cfg.HTTP.Port)
	a.logger.Info("HTTP server listening",
		zap.String("addr", a.httpSrv.Addr),
		zap.String("health", base+router.PathHealth),
		zap.String("search", base+"/search"),
		zap.String("metrics", base+router.PathMetrics),
	)

	errCh := make(chan error, 1)
	go func() {
		if err := a.httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("http: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := a.httpSrv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("http shutdown: %w", err)
	}
	a.logger.Info("HTTP server stopped")
	return nil
}
