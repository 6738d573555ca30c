// Package config loads service configuration from environment variables so
// main stays lean.
package config

import (
	"fmt"
	"net/url"
	"time"

	"github.com/caarlos0/env/v11"
)

// Config is the full runtime configuration for both the HTTP server and the
// consumer supervisor.
type Config struct {
	ServiceName string `env:"SERVICE_NAME" envDefault:"tally"`
	Addr        string `env:"TALLY_ADDR" envDefault:":8080"`

	JWTSigningKey string `env:"JWT_SIGNING_KEY" envDefault:"dev-secret-key-change-in-production"`

	DatabaseUsername string `env:"DATABASE_USERNAME" envDefault:"postgres"`
	DatabasePassword string `env:"DATABASE_PASSWORD" envDefault:"password"`
	DatabaseURL      string `env:"DATABASE_URL" envDefault:"127.0.0.1:5432/tally"`

	RabbitMQHost        string `env:"RABBITMQ_HOST" envDefault:"localhost"`
	RabbitMQPort        string `env:"RABBITMQ_PORT" envDefault:"5672"`
	RabbitMQUsername    string `env:"RABBITMQ_USERNAME" envDefault:"guest"`
	RabbitMQPassword    string `env:"RABBITMQ_PASSWORD" envDefault:"guest"`
	RabbitMQVirtualHost string `env:"RABBITMQ_VIRTUAL_HOST" envDefault:"/"`
	ExchangeName        string `env:"RABBITMQ_EXCHANGE_NAME" envDefault:"tally-channel"`
	ConsumerName        string `env:"RABBITMQ_CONSUMER_NAME" envDefault:"tally-consumer"`
	RestartBudget       int    `env:"CONSUMER_RESTART_BUDGET" envDefault:"10"`

	RedisURL       string        `env:"REDIS_URL"`
	IdempotencyTTL time.Duration `env:"IDEMPOTENCY_TTL" envDefault:"24h"`
}

// FromEnv parses the environment.
func FromEnv() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	return cfg, nil
}

// PostgresDSN assembles the connection string for lib/pq.
func (c Config) PostgresDSN() string {
	return fmt.Sprintf("postgres://%s:%s@%s?sslmode=disable",
		c.DatabaseUsername, url.QueryEscape(c.DatabasePassword), c.DatabaseURL)
}

// AMQPURL assembles the broker connection string.
func (c Config) AMQPURL() string {
	return fmt.Sprintf("amqp://%s:%s@%s:%s/%s?heartbeat=600",
		c.RabbitMQUsername, url.QueryEscape(c.RabbitMQPassword),
		c.RabbitMQHost, c.RabbitMQPort, url.QueryEscape(c.RabbitMQVirtualHost))
}

// ServiceRoutingKey is the wildcard pattern each consumer queue binds with:
// any route that contains the service name as one word.
func (c Config) ServiceRoutingKey() string {
	return fmt.Sprintf("#.%s.#", c.ServiceName)
}

// QueueName derives the per-exchange queue name.
func (c Config) QueueName(exchange string) string {
	return fmt.Sprintf("%s-queue_%s", c.ServiceName, exchange)
}
