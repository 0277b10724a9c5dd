package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Option configures a single Load call.
type Option func(*loader)

type loader struct {
	prefix  string
	files   []string
	environ map[string]string
}

// WithPrefix prepends prefix to every variable name, so `env:"WORKERS"`
// reads NETDISPATCH_WORKERS with prefix "NETDISPATCH_".
func WithPrefix(prefix string) Option {
	return func(l *loader) { l.prefix = prefix }
}

// WithEnvFiles reads the given dotenv files. A missing file is an error.
// Later files override earlier ones; the process environment overrides all
// of them.
func WithEnvFiles(files ...string) Option {
	return func(l *loader) { l.files = append(l.files, files...) }
}

// WithEnvironment replaces the process environment, mostly for tests.
func WithEnvironment(vars map[string]string) Option {
	return func(l *loader) {
		if vars != nil {
			l.environ = vars
		}
	}
}

// Load parses the environment into a new T using its `env` field tags.
// Without WithEnvFiles it reads ./.env when that file exists.
//
//	type Config struct {
//		Workers int           `env:"DISPATCH_WORKERS" envDefault:"1"`
//		Timeout time.Duration `env:"DISPATCH_TIMEOUT" envDefault:"5m"`
//	}
//
//	cfg, err := config.Load[Config]()
func Load[T any](opts ...Option) (T, error) {
	l := &loader{}
	for _, opt := range opts {
		opt(l)
	}

	vars, err := l.readFiles()
	if err != nil {
		var zero T
		return zero, err
	}

	environ := l.environ
	if environ == nil {
		environ = env.ToMap(os.Environ())
	}
	for k, v := range environ {
		vars[k] = v
	}

	cfg, err := env.ParseAsWithOptions[T](env.Options{
		Environment: vars,
		Prefix:      l.prefix,
	})
	if err != nil {
		return cfg, errors.Join(ErrParsingConfig, err)
	}
	return cfg, nil
}

func (l *loader) readFiles() (map[string]string, error) {
	files, optional := l.files, false
	if len(files) == 0 {
		files, optional = []string{".env"}, true
	}

	vars := make(map[string]string)
	for _, file := range files {
		values, err := godotenv.Read(file)
		if err != nil {
			if optional && errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return nil, fmt.Errorf("%w %s: %w", ErrLoadingEnvFile, file, err)
		}
		for k, v := range values {
			vars[k] = v
		}
	}
	return vars, nil
}
