package backend

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/cuongbtq/jobrunner/internal/adapter"
	"github.com/cuongbtq/jobrunner/internal/adapter/amqpq"
	"github.com/cuongbtq/jobrunner/internal/adapter/postgres"
	"github.com/cuongbtq/jobrunner/internal/adapter/redisq"
	"github.com/cuongbtq/jobrunner/internal/config"
	"github.com/cuongbtq/jobrunner/internal/jobs"
	"github.com/cuongbtq/jobrunner/shared/postgresql"
	"github.com/cuongbtq/jobrunner/shared/rabbitmq"
)

// Store is a backing store that both serves workers and accepts new jobs.
type Store interface {
	adapter.Adapter
	Enqueue(ctx context.Context, queue string, desc *jobs.Descriptor, runAt time.Time) (string, error)
}

// Backend bundles a connected store with its health check and teardown.
type Backend struct {
	Store  Store
	Health func(ctx context.Context) error

	cleanup func()
}

// Close releases the backend's connections. Safe on a nil receiver.
func (b *Backend) Close() {
	if b != nil && b.cleanup != nil {
		b.cleanup()
	}
}

// New connects the backing store selected by cfg.Worker.Adapter.
// workerName is recorded as the claim owner where the store supports it.
func New(cfg *config.Config, log *slog.Logger, workerName string) (*Backend, error) {
	switch cfg.Worker.Adapter {
	case config.BackendPostgres:
		client, err := postgresql.NewClient(&postgresql.Config{
			Host:            cfg.Database.Host,
			Port:            cfg.Database.Port,
			User:            cfg.Database.User,
			Password:        cfg.Database.Password,
			Database:        cfg.Database.Database,
			SSLMode:         cfg.Database.SSLMode,
			MaxOpenConns:    cfg.Database.MaxOpenConns,
			MaxIdleConns:    cfg.Database.MaxIdleConns,
			ConnMaxLifetime: cfg.Database.ConnMaxLifetime,
			ConnMaxIdleTime: cfg.Database.ConnMaxIdleTime,
		}, log)
		if err != nil {
			return nil, err
		}

		return &Backend{
			Store:   postgres.New(client.GetDB(), log, workerName),
			Health:  client.HealthCheck,
			cleanup: func() { client.Close() },
		}, nil

	case config.BackendRedis:
		rdb := goredis.NewClient(&goredis.Options{
			Addr:     fmt.Sprintf("%s:%d", cfg.Redis.Host, cfg.Redis.Port),
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := rdb.Ping(ctx).Err(); err != nil {
			rdb.Close()
			return nil, fmt.Errorf("failed to ping Redis: %w", err)
		}

		defaultQueue := cfg.Worker.DefaultQueue
		if defaultQueue == "" {
			defaultQueue = "default"
		}

		return &Backend{
			Store:   redisq.New(rdb, log, defaultQueue),
			Health:  func(ctx context.Context) error { return rdb.Ping(ctx).Err() },
			cleanup: func() { rdb.Close() },
		}, nil

	case config.BackendRabbitMQ:
		client, err := rabbitmq.NewClient(&rabbitmq.Config{
			Host:               cfg.RabbitMQ.Host,
			Port:               cfg.RabbitMQ.Port,
			User:               cfg.RabbitMQ.User,
			Password:           cfg.RabbitMQ.Password,
			VHost:              cfg.RabbitMQ.VHost,
			ExchangeName:       cfg.RabbitMQ.Exchange.Name,
			ExchangeType:       cfg.RabbitMQ.Exchange.Type,
			ExchangeDurable:    cfg.RabbitMQ.Exchange.Durable,
			ExchangeAutoDelete: cfg.RabbitMQ.Exchange.AutoDelete,
			QueueName:          cfg.RabbitMQ.Queue.Name,
			QueueDurable:       cfg.RabbitMQ.Queue.Durable,
			QueueAutoDelete:    cfg.RabbitMQ.Queue.AutoDelete,
			QueueExclusive:     cfg.RabbitMQ.Queue.Exclusive,
			RoutingKey:         cfg.RabbitMQ.RoutingKey,
			RetryAttempts:      cfg.RabbitMQ.Connection.RetryAttempts,
			RetryInterval:      cfg.RabbitMQ.Connection.RetryInterval,
			Heartbeat:          cfg.RabbitMQ.Connection.Heartbeat,
			ConnectionTimeout:  cfg.RabbitMQ.Connection.ConnectionTimeout,
		}, log)
		if err != nil {
			return nil, err
		}

		return &Backend{
			Store: amqpq.New(client, log),
			Health: func(ctx context.Context) error {
				if !client.IsConnected() {
					return fmt.Errorf("rabbitmq connection lost")
				}
				return nil
			},
			cleanup: func() { client.Close() },
		}, nil

	default:
		return nil, fmt.Errorf("unknown worker adapter: %q", cfg.Worker.Adapter)
	}
}
