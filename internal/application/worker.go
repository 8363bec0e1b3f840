package application

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/gavram/ckan-search/internal/config"
	"github.com/gavram/ckan-search/internal/kafka"
	"github.com/gavram/ckan-search/internal/logger"
	"github.com/gavram/ckan-search/internal/stream"
)

// Worker consumes host events from Kafka or a Redis Stream (worker mode).
type Worker struct {
	cfg    *config.Config
	svcs   *Services
	logger *zap.Logger
}

func NewWorker(cfg *config.Config, log *zap.Logger) (*Worker, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if cfg.Events.Driver == config.DriverKafka && (len(cfg.Kafka.Brokers) == 0 || len(cfg.Kafka.Topics) == 0) {
		return nil, errors.New("worker requires KAFKA_BROKERS and KAFKA_TOPICS")
	}
	log = logger.OrNop(log)
	svcs, err := NewServices(cfg, log)
	if err != nil {
		return nil, err
	}
	return &Worker{cfg: cfg, svcs: svcs, logger: log}, nil
}

// Run blocks until ctx is cancelled.
func (w *Worker) Run(ctx context.Context) error {
	if err := w.svcs.Index.EnsureIndex(ctx); err != nil {
		return err
	}

	switch w.cfg.Events.Driver {
	case config.DriverRedis:
		c, err := stream.NewConsumer(stream.Config{
			RedisURL:     w.cfg.Redis.URL,
			StreamKey:    w.cfg.Redis.StreamKey,
			GroupName:    w.cfg.Redis.Group,
			ConsumerName: w.cfg.Redis.Consumer,
			BatchSize:    w.cfg.Redis.BatchSize,
			BlockTimeout: w.cfg.Redis.Block.Std(),
		}, w.svcs.Notifier, w.logger)
		if err != nil {
			return err
		}
		return c.Run(ctx)
	case config.DriverKafka:
		kafka.RunConsumer(ctx, w.cfg.Kafka.Brokers, w.cfg.Kafka.GroupID, w.cfg.Kafka.Topics, w.svcs.Notifier, w.logger)
		return nil
	default:
		return fmt.Errorf("unknown events driver %q", w.cfg.Events.Driver)
	}
}
