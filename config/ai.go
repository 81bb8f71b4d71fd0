package config

import "time"

// AIConfig points at the hosted edge functions backing the AI assistant.
// Leave BaseURL empty to disable the assistant endpoints.
type AIConfig struct {
	BaseURL string        `env:"BASE_URL"`
	APIKey  string        `env:"API_KEY"`
	Timeout time.Duration `env:"TIMEOUT" envDefault:"30s"`
}
