package main

import (
	"io"
	"log/slog"

	"github.com/go-resty/resty/v2"
	"github.com/spf13/cobra"

	"github.com/dmitrymomot/netdispatch/pkg/config"
	"github.com/dmitrymomot/netdispatch/pkg/dispatch"
	"github.com/dmitrymomot/netdispatch/pkg/httptask"
	"github.com/dmitrymomot/netdispatch/pkg/logger"
)

const rootShortDescription = `Run HTTP requests through a prioritised dispatch queue`
const rootLongDescription = `netdispatch sends HTTP requests through a small pool of workers.

Requests are ordered by priority, can be pinned to a worker by category and
are cancelled when they exceed the configured timeout.

Settings are read from the environment and from .env files:
  DISPATCH_WORKERS, DISPATCH_TIMEOUT, DISPATCH_GRACE_PERIOD,
  HTTP_TIMEOUT, HTTP_USER_AGENT, HTTP_BASE_URL,
  APP_ENV, LOG_LEVEL, LOG_FORMAT, LOG_SOURCE
Flags override the environment.
`

type appConfig struct {
	Dispatch dispatch.Config
	HTTP     httptask.Config
	// Env selects the logging preset: debug text logs for development,
	// info JSON logs otherwise. LOG_LEVEL and LOG_FORMAT override it.
	Env       string `env:"APP_ENV" envDefault:"production"`
	LogLevel  string `env:"LOG_LEVEL"`
	LogFormat string `env:"LOG_FORMAT"`
	LogSource bool   `env:"LOG_SOURCE"`
}

type rootOptions struct {
	envFiles  []string
	logLevel  string
	logFormat string

	// set by tests
	environ   map[string]string
	client    *resty.Client
	logOutput io.Writer

	cfg    appConfig
	logger *slog.Logger
}

func newRootCommand(root *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:          "netdispatch",
		Short:        rootShortDescription,
		Long:         rootLongDescription,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return root.init(cmd)
		},
	}

	flags := cmd.PersistentFlags()
	flags.StringSliceVar(&root.envFiles, "env-file", nil, "dotenv files to read, later files win")
	flags.StringVar(&root.logLevel, "log-level", "", "debug, info, warn or error (default from LOG_LEVEL)")
	flags.StringVar(&root.logFormat, "log-format", "", "text or json (default from LOG_FORMAT)")

	cmd.AddCommand(fetchCommand(root))
	return cmd
}

func (root *rootOptions) init(cmd *cobra.Command) error {
	loadOpts := []config.Option{}
	if len(root.envFiles) > 0 {
		loadOpts = append(loadOpts, config.WithEnvFiles(root.envFiles...))
	}
	if root.environ != nil {
		loadOpts = append(loadOpts, config.WithEnvironment(root.environ))
	}
	cfg, err := config.Load[appConfig](loadOpts...)
	if err != nil {
		return err
	}

	if root.logLevel != "" {
		cfg.LogLevel = root.logLevel
	}
	if root.logFormat != "" {
		cfg.LogFormat = root.logFormat
	}

	out := root.logOutput
	if out == nil {
		out = cmd.ErrOrStderr()
	}
	logOpts := []logger.Option{
		logger.WithEnvironment(cfg.Env, "netdispatch"),
		logger.WithOutput(out),
		logger.WithContextExtractors(dispatch.LoggerExtractor()),
	}
	if cfg.LogLevel != "" {
		level, err := logger.ParseLevel(cfg.LogLevel)
		if err != nil {
			return err
		}
		logOpts = append(logOpts, logger.WithLevel(level))
	}
	if cfg.LogFormat != "" {
		format, err := logger.ParseFormat(cfg.LogFormat)
		if err != nil {
			return err
		}
		logOpts = append(logOpts, logger.WithFormat(format))
	}
	if cfg.LogSource {
		logOpts = append(logOpts, logger.WithSource())
	}

	root.cfg = cfg
	root.logger = logger.New(logOpts...)
	return nil
}
