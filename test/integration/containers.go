// Package integration runs the Postgres, Kafka and Redis adapters against
// real containers. The tests skip under -short or when Docker is missing.
package integration

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/kafka"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	tcredis "github.com/testcontainers/testcontainers-go/modules/redis"
)

type Env struct {
	PG       *postgres.PostgresContainer
	Kafka    *kafka.KafkaContainer
	Redis    *tcredis.RedisContainer
	PGURL    string
	KAddr    []string
	RedisOpt *redis.Options
}

// Setup starts all three containers. Whatever did start is terminated when
// a later one fails.
func Setup(ctx context.Context) (_ *Env, err error) {
	ctx, cancel := context.WithTimeout(ctx, 3*time.Minute)
	defer cancel()

	env := &Env{}
	defer func() {
		if err != nil {
			_ = env.Teardown(context.Background())
		}
	}()

	env.PG, err = postgres.Run(ctx,
		"postgres:16-alpine",
		postgres.WithDatabase("tickets"),
		postgres.WithUsername("postgres"),
		postgres.WithPassword("postgres"),
		postgres.BasicWaitStrategies(),
	)
	if err != nil {
		return nil, err
	}
	env.PGURL, err = env.PG.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		return nil, err
	}

	env.Kafka, err = kafka.Run(ctx,
		"confluentinc/confluent-local:7.5.0",
		kafka.WithClusterID("tickets-test"),
	)
	if err != nil {
		return nil, err
	}
	env.KAddr, err = env.Kafka.Brokers(ctx)
	if err != nil {
		return nil, err
	}

	env.Redis, err = tcredis.Run(ctx, "redis:7-alpine")
	if err != nil {
		return nil, err
	}
	uri, err := env.Redis.ConnectionString(ctx)
	if err != nil {
		return nil, err
	}
	env.RedisOpt, err = redis.ParseURL(uri)
	if err != nil {
		return nil, err
	}
	return env, nil
}

func (e *Env) Teardown(ctx context.Context) error {
	return errors.Join(
		testcontainers.TerminateContainer(e.Redis, testcontainers.StopContext(ctx)),
		testcontainers.TerminateContainer(e.Kafka, testcontainers.StopContext(ctx)),
		testcontainers.TerminateContainer(e.PG, testcontainers.StopContext(ctx)),
	)
}
