package suite

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/nats-io/nats.go"
	"github.com/ory/dockertest/v3"
	"github.com/ory/dockertest/v3/docker"
	"github.com/redis/go-redis/v9"
)

const (
	expireDuration  = 120
	maxWaitDuration = 120 * time.Second
)

const (
	redisPort  = "6379/tcp"
	redisImage = "redis"
	redisTag   = "alpine"

	postgresPort     = "5432/tcp"
	postgresImage    = "postgres"
	postgresTag      = "16-alpine"
	postgresPassword = "secret"
	postgresDatabase = "matchmaker"

	natsPort  = "4222/tcp"
	natsImage = "nats"
	natsTag   = "alpine"
)

type Suite struct {
	*testing.T
	Logger *slog.Logger

	Storage  *redis.Client
	Postgres *pgxpool.Pool
	NATSURL  string
}

// New - suite backed by a fresh redis container.
func New(t *testing.T) (context.Context, *Suite) {
	t.Helper()

	ctx, st := newSuite(t)

	redisHost := st.run(redisImage, redisTag, nil, redisPort)

	var redisClient *redis.Client
	st.retry(func() error {
		redisClient = redis.NewClient(&redis.Options{
			Addr: redisHost,
		})
		return redisClient.Ping(ctx).Err()
	}, "redis")

	if err := redisClient.FlushDB(ctx).Err(); err != nil {
		t.Fatalf("could not flush database: %v", err)
	}

	t.Cleanup(func() {
		_ = redisClient.Close()
	})

	st.Storage = redisClient

	return ctx, st.Suite
}

// NewPostgres - suite backed by a fresh postgres container.
func NewPostgres(t *testing.T) (context.Context, *Suite) {
	t.Helper()

	ctx, st := newSuite(t)

	env := []string{
		"POSTGRES_PASSWORD=" + postgresPassword,
		"POSTGRES_DB=" + postgresDatabase,
	}
	host := st.run(postgresImage, postgresTag, env, postgresPort)
	dsn := fmt.Sprintf("postgres://postgres:%s@%s/%s?sslmode=disable", postgresPassword, host, postgresDatabase)

	var pool *pgxpool.Pool
	st.retry(func() error {
		var err error
		if pool, err = pgxpool.New(ctx, dsn); err != nil {
			return err
		}
		if err = pool.Ping(ctx); err != nil {
			pool.Close()
			return err
		}
		return nil
	}, "postgres")

	t.Cleanup(pool.Close)

	st.Postgres = pool

	return ctx, st.Suite
}

// NewNATS - suite with a running nats server; NATSURL points at it.
func NewNATS(t *testing.T) (context.Context, *Suite) {
	t.Helper()

	ctx, st := newSuite(t)

	host := st.run(natsImage, natsTag, nil, natsPort)
	url := "nats://" + host

	st.retry(func() error {
		conn, err := nats.Connect(url)
		if err != nil {
			return err
		}
		conn.Close()
		return nil
	}, "nats")

	st.NATSURL = url

	return ctx, st.Suite
}

type containerSuite struct {
	*Suite
	pool *dockertest.Pool
}

func newSuite(t *testing.T) (context.Context, *containerSuite) {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), maxWaitDuration)
	t.Cleanup(func() {
		cancel()
	})

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))

	pool, err := dockertest.NewPool("")
	if err != nil {
		t.Fatalf("could not connect to docker: %v", err)
	}

	// exponential backoff-retry, because the application in the container might not be ready to accept connections yet
	pool.MaxWait = maxWaitDuration

	return ctx, &containerSuite{
		Suite: &Suite{
			T:      t,
			Logger: logger,
		},
		pool: pool,
	}
}

// run - pulls an image, creates a container based on it and runs it. Returns host:port of the exposed port.
func (that *containerSuite) run(repository, tag string, env []string, port string) string {
	that.Helper()

	resource, err := that.pool.RunWithOptions(&dockertest.RunOptions{
		Repository: repository,
		Tag:        tag,
		Env:        env,
	}, func(config *docker.HostConfig) {
		// set AutoRemove to true so that stopped container goes away by itself
		config.AutoRemove = true
		config.RestartPolicy = docker.RestartPolicy{Name: "no"}
	})
	if err != nil {
		that.Fatalf("could not start %s: %v", repository, err)
	}

	// never returns error
	_ = resource.Expire(expireDuration) // Tell docker to hard kill the container in 120 seconds

	that.Cleanup(func() {
		if err = that.pool.Purge(resource); err != nil {
			that.Logf("could not purge %s: %v", repository, err)
		}
	})

	return resource.GetHostPort(port)
}

func (that *containerSuite) retry(op func() error, name string) {
	that.Helper()

	if err := that.pool.Retry(op); err != nil {
		that.Fatalf("could not connect to %s: %v", name, err)
	}
}
