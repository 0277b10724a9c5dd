package dispatch

import "time"

// Config holds the configuration for the dispatch manager
type Config struct {
	Workers         int           `env:"DISPATCH_WORKERS" envDefault:"1"`
	Timeout         time.Duration `env:"DISPATCH_TIMEOUT" envDefault:"5m"`
	GracePeriod     time.Duration `env:"DISPATCH_GRACE_PERIOD" envDefault:"500ms"`
	AffinityBackoff time.Duration `env:"DISPATCH_AFFINITY_BACKOFF" envDefault:"30ms"`
	DisposeTimeout  time.Duration `env:"DISPATCH_DISPOSE_TIMEOUT" envDefault:"2s"`
	ProgressBuffer  int           `env:"DISPATCH_PROGRESS_BUFFER" envDefault:"64"`
}

// DefaultConfig mirrors the envDefault tags.
func DefaultConfig() Config {
	return Config{
		Workers:         1,
		Timeout:         5 * time.Minute,
		GracePeriod:     500 * time.Millisecond,
		AffinityBackoff: 30 * time.Millisecond,
		DisposeTimeout:  2 * time.Second,
		ProgressBuffer:  64,
	}
}
