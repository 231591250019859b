package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

type Config struct {
	Port      string `env:"PORT" envDefault:"8080"`
	PublicURL string `env:"PUBLIC_URL"` // base URL baked into join links and QR codes

	AnthropicKey   string `env:"ANTHROPIC_API_KEY"`
	AnthropicModel string `env:"ANTHROPIC_MODEL" envDefault:"claude-3-sonnet-20240229"`
	GeminiKey      string `env:"GEMINI_API_KEY"`
	GeminiModel    string `env:"GEMINI_MODEL" envDefault:"gemini-1.5-pro"`

	GenerateTimeout time.Duration `env:"GENERATE_TIMEOUT" envDefault:"15s"`
	ReplyDelayMin   time.Duration `env:"REPLY_DELAY_MIN" envDefault:"2s"`
	ReplyDelayMax   time.Duration `env:"REPLY_DELAY_MAX" envDefault:"6s"`
}

// Load reads a .env file if present, then parses the environment.
func Load() (Config, error) {
	_ = godotenv.Load()
	var c Config
	if err := env.Parse(&c); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	return c, nil
}
