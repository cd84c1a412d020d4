package queue

import (
	"context"
	"fmt"

	"github.com/ehsaniara/jobqueue/job"
	"github.com/ehsaniara/jobqueue/notify"
	notifycloudwatch "github.com/ehsaniara/jobqueue/notify/cloudwatch"
	"github.com/ehsaniara/jobqueue/pkg/config"
	"github.com/ehsaniara/jobqueue/pkg/logger"
	"github.com/ehsaniara/jobqueue/store"
	storedynamodb "github.com/ehsaniara/jobqueue/store/dynamodb"
)

// Build constructs a Queue from a loaded config.Config, wiring the
// DynamoDB store backend and/or CloudWatch notification sink when
// the configuration selects them. userHandler, if non-nil, is always
// invoked; when CloudWatch is also enabled both run, CloudWatch first.
func Build(ctx context.Context, cfg config.Config, userHandler notify.Handler) (*Queue, error) {
	level, err := logger.ParseLevel(cfg.Logging.Level)
	if err != nil {
		level = logger.INFO
	}
	log := logger.NewWithConfig(logger.Config{
		Level:  level,
		Format: cfg.Logging.Format,
	}).WithField("component", "jobqueue")

	opts := []Option{
		WithPoolSize(cfg.Pool.Size),
		WithLogger(log),
	}
	if cfg.Pool.SweepInterval > 0 {
		opts = append(opts, WithSweepInterval(cfg.Pool.SweepInterval))
	}

	handler := userHandler

	switch cfg.Notify.CloudWatch != nil && cfg.Notify.CloudWatch.Enabled {
	case true:
		sink, err := notifycloudwatch.New(ctx, notifycloudwatch.Config{
			Region:          cfg.Notify.CloudWatch.Region,
			LogGroupName:    cfg.Notify.CloudWatch.LogGroupName,
			LogStreamPrefix: cfg.Notify.CloudWatch.LogStreamPrefix,
		})
		if err != nil {
			return nil, fmt.Errorf("build cloudwatch sink: %w", err)
		}
		cwHandler := sink.Handler()
		handler = func(n notify.Notification) {
			cwHandler(n)
			if userHandler != nil {
				userHandler(n)
			}
		}
	}
	if handler != nil {
		opts = append(opts, WithNotificationHandler(handler))
	}

	var backend store.Backend
	switch cfg.Store.Backend {
	case "dynamodb":
		if cfg.Store.DynamoDB == nil {
			return nil, fmt.Errorf("store.dynamodb configuration is required when backend is dynamodb")
		}
		b, err := storedynamodb.New(ctx, storedynamodb.Config{
			Region:     cfg.Store.DynamoDB.Region,
			TableName:  cfg.Store.DynamoDB.TableName,
			TTLAttr:    cfg.Store.DynamoDB.TTLAttr,
			TTLEnabled: cfg.Store.DynamoDB.TTLEnabled,
		})
		if err != nil {
			return nil, fmt.Errorf("build dynamodb backend: %w", err)
		}
		backend = b
	case "", "memory":
		backend = store.NewMemory()
	default:
		return nil, fmt.Errorf("unknown store backend: %s", cfg.Store.Backend)
	}
	opts = append(opts, WithBackend(backend))

	return New(opts...)
}

// DefaultExpirePolicy derives the job.ExpirePolicy a caller should
// apply to a job that doesn't specify its own, from cfg.Pool's
// defaults.
func DefaultExpirePolicy(cfg config.Config) job.ExpirePolicy {
	switch cfg.Pool.DefaultExpireKind {
	case "onResultFetch":
		return job.OnResultFetch(cfg.Pool.DefaultExpireDur)
	case "timeout":
		return job.Timeout(cfg.Pool.DefaultExpireDur)
	default:
		return job.Never()
	}
}
