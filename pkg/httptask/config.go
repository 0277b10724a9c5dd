package httptask

import "time"

// Config holds the HTTP transport settings.
type Config struct {
	Timeout   time.Duration `env:"HTTP_TIMEOUT" envDefault:"30s"`
	UserAgent string        `env:"HTTP_USER_AGENT" envDefault:"netdispatch"`
	BaseURL   string        `env:"HTTP_BASE_URL"`
}

// DefaultConfig mirrors the envDefault tags.
func DefaultConfig() Config {
	return Config{
		Timeout:   30 * time.Second,
		UserAgent: "netdispatch",
	}
}
