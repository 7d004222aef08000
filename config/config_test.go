package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("STORE_DRIVER", "memory")
	t.Setenv("KAFKA_BROKERS", "k1:9092, k2:9092,")
	t.Setenv("OFFER_TTL", "2h")
	t.Setenv("SWEEP_ENABLED", "true")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, StoreDriverMemory, cfg.Store.Driver)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.Kafka.Brokers)
	assert.Equal(t, 2*time.Hour, cfg.Offer.TTL)
	assert.True(t, cfg.Sweep.Enabled)
	assert.Equal(t, time.Minute, cfg.Sweep.Interval)
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		return &Config{
			Env:      "development",
			Server:   ServerConfig{HTTPPort: 8080, GRpcPort: 50057},
			Store:    StoreConfig{Driver: StoreDriverPostgres},
			Postgres: PostgresConfig{DSN: "host=db"},
			Redis:    RedisConfig{Enabled: true, Addr: "localhost:6379"},
			Kafka:    KafkaConfig{Enabled: true, Brokers: []string{"localhost:9092"}},
			Offer:    OfferConfig{TTL: time.Hour, TokenSecret: "s3cret"},
		}
	}
	require.NoError(t, valid().Validate())

	tests := []struct {
		name   string
		mutate func(c *Config)
	}{
		{"bad http port", func(c *Config) { c.Server.HTTPPort = 0 }},
		{"bad grpc port", func(c *Config) { c.Server.GRpcPort = 70000 }},
		{"unknown driver", func(c *Config) { c.Store.Driver = "mongo" }},
		{"missing dsn", func(c *Config) { c.Postgres.DSN = "" }},
		{"missing redis", func(c *Config) { c.Redis.Addr = "" }},
		{"missing brokers", func(c *Config) { c.Kafka.Brokers = nil }},
		{"zero ttl", func(c *Config) { c.Offer.TTL = 0 }},
		{"default secret in production", func(c *Config) {
			c.Env = "production"
			c.Offer.TokenSecret = "offer-token-secret"
		}},
		{"sweep without interval", func(c *Config) { c.Sweep = SweepConfig{Enabled: true, BatchSize: 10} }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := valid()
			tt.mutate(c)
			assert.Error(t, c.Validate())
		})
	}

	c := valid()
	c.Redis = RedisConfig{Enabled: false}
	c.Kafka = KafkaConfig{Enabled: false}
	c.Store.Driver = StoreDriverMemory
	c.Postgres.DSN = ""
	assert.NoError(t, c.Validate())
}
