package router

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/gavram/ckan-search/internal/handler"
	"github.com/gavram/ckan-search/internal/metrics"
)

const (
	PathHealth  = "/health"
	PathReady   = "/ready"
	PathMetrics = "/metrics"
)

type Handlers struct {
	Search   *handler.SearchHandler
	Datasets *handler.DatasetHandler
	Notify   *handler.NotifyHandler
	Ready    handler.Pinger
}

func New(h Handlers) http.Handler {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(handler.RequestID())
	r.Use(metrics.Middleware())

	r.GET(PathHealth, handler.Health)
	r.GET(PathReady, handler.Ready(h.Ready))
	r.GET(PathMetrics, gin.WrapH(promhttp.Handler()))

	r.GET("/search", h.Search.Search)

	datasets := r.Group("/datasets")
	datasets.POST("", h.Datasets.Create)
	datasets.GET("/:id", h.Datasets.Show)
	datasets.PUT("/:id", h.Datasets.Update)
	datasets.DELETE("/:id", h.Datasets.Delete)

	r.POST("/notify", h.Notify.Notify)

	admin := r.Group("/admin")
	admin.POST("/clear", h.Datasets.Clear)
	admin.POST("/commit", h.Datasets.Commit)
	admin.GET("/check", h.Datasets.Check)
	return r
}
