package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

type Config struct {
	Port          string        `env:"PORT" envDefault:"8080"`
	OpenAIKey     string        `env:"OPENAI_API_KEY"`
	OpenAIBaseURL string        `env:"OPENAI_BASE_URL"`
	Model         string        `env:"OPENAI_MODEL" envDefault:"gpt-4o-mini"`
	RedisAddr     string        `env:"REDIS_ADDR"`
	RedisPassword string        `env:"REDIS_PASSWORD"`
	RedisDB       int           `env:"REDIS_DB" envDefault:"0"`
	Rounds        int           `env:"GAME_ROUNDS" envDefault:"3"`
	RoundDuration time.Duration `env:"ROUND_DURATION" envDefault:"60s"`
	LeaseTTL      time.Duration `env:"LEASE_TTL" envDefault:"5m"`
	RetryDelay    time.Duration `env:"ADVANCE_RETRY_DELAY" envDefault:"5s"`
}

// FromEnv loads configuration from environment variables.
func FromEnv() (Config, error) {
	var c Config
	if err := env.Parse(&c); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	return c, nil
}
