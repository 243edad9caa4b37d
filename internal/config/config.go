package config

import (
	"fmt"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

const (
	BackendRedis    = "redis"
	BackendPostgres = "postgres"
	BackendMemory   = "memory"
)

type Config struct {
	LogLevel    string      `yaml:"log-level" env:"LOG_LEVEL" env-default:"info"`
	HTTPPort    string      `yaml:"http-port" env:"HTTP_PORT" env-default:"9090"`
	SocketPort  string      `yaml:"socket-port" env:"SOCKET_PORT" env-default:"8080"`
	Backend     string      `yaml:"backend" env:"BACKEND" env-default:"redis"`
	Redis       Redis       `yaml:"redis"`
	Postgres    Postgres    `yaml:"postgres"`
	NATS        NATS        `yaml:"nats"`
	Room        Room        `yaml:"room"`
	Matchmaking Matchmaking `yaml:"matchmaking"`
	Game        Game        `yaml:"game"`
	Favorites   Favorites   `yaml:"favorites"`
}

type Redis struct {
	Host string `yaml:"host" env:"REDIS_HOST" env-default:"localhost"`
	Port string `yaml:"port" env:"REDIS_PORT" env-default:"6379"`
}

type Postgres struct {
	Host     string `yaml:"host" env:"POSTGRES_HOST" env-default:"localhost"`
	Port     string `yaml:"port" env:"POSTGRES_PORT" env-default:"5432"`
	User     string `yaml:"user" env:"POSTGRES_USER" env-default:"postgres"`
	Password string `yaml:"password" env:"POSTGRES_PASSWORD" env-default:"postgres"`
	Database string `yaml:"database" env:"POSTGRES_DB" env-default:"matchmaker"`
	SSLMode  string `yaml:"ssl-mode" env:"POSTGRES_SSLMODE" env-default:"disable"`
}

// NATS - when URL is set, room change events travel over NATS instead of the store's own feed.
type NATS struct {
	URL string `yaml:"url" env:"NATS_URL" env-default:""`
}

type Room struct {
	BoardSize int           `yaml:"board-size" env-default:"3"`
	TimeLimit time.Duration `yaml:"time-limit" env-default:"300s"`
}

type Matchmaking struct {
	FoundDelay      time.Duration `yaml:"found-delay" env-default:"1s"`
	ConnectDelay    time.Duration `yaml:"connect-delay" env-default:"1s"`
	ElapsedInterval time.Duration `yaml:"elapsed-interval" env-default:"1s"`
}

type Game struct {
	WarningThreshold time.Duration `yaml:"warning-threshold" env-default:"10s"`
}

type Favorites struct {
	Path string `yaml:"path" env:"FAVORITES_PATH" env-default:"./favorites.json"`
}

// MustLoad - load all configurations in config.yml file.
func MustLoad(path string) *Config {
	config := &Config{}

	if err := cleanenv.ReadConfig(path, config); err != nil {
		panic(fmt.Errorf("unable to load config file: %w", err))
	}

	return config
}

func (that *Redis) GetRedisAddr() string {
	return fmt.Sprintf("%s:%s", that.Host, that.Port)
}

// GetDSN - returns the postgres connection URL.
func (that *Postgres) GetDSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%s/%s?sslmode=%s",
		that.User, that.Password, that.Host, that.Port, that.Database, that.SSLMode,
	)
}
