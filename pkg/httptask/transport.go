package httptask

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/dmitrymomot/netdispatch/pkg/logger"
)

// Transport sends requests through a resty client. The client enforces the
// timeout itself, so a dispatch manager using this transport does not run
// its watchdog.
type Transport struct {
	client *resty.Client
	logger *slog.Logger
}

// TransportOption configures a Transport.
type TransportOption func(*Transport)

// WithLogger routes resty's own messages and per-response debug records to l.
func WithLogger(l *slog.Logger) TransportOption {
	return func(t *Transport) {
		if l != nil {
			t.logger = l
		}
	}
}

// NewTransport creates a resty client from cfg.
func NewTransport(cfg Config, opts ...TransportOption) *Transport {
	client := resty.New()
	if cfg.Timeout > 0 {
		client.SetTimeout(cfg.Timeout)
	}
	if cfg.UserAgent != "" {
		client.SetHeader("User-Agent", cfg.UserAgent)
	}
	if cfg.BaseURL != "" {
		client.SetBaseURL(cfg.BaseURL)
	}
	return NewTransportWithClient(client, opts...)
}

// NewTransportWithClient wraps an existing client.
func NewTransportWithClient(client *resty.Client, opts ...TransportOption) *Transport {
	t := &Transport{client: client, logger: slog.Default()}
	for _, opt := range opts {
		opt(t)
	}
	t.logger = t.logger.With(logger.Component("httptask"))

	client.SetLogger(restyLogger{t.logger})
	client.OnAfterResponse(func(_ *resty.Client, res *resty.Response) error {
		t.logger.DebugContext(res.Request.Context(), "http response",
			slog.String("method", res.Request.Method),
			logger.URL(res.Request.URL),
			logger.StatusCode(res.StatusCode()),
			logger.Duration(res.Time()))
		return nil
	})
	return t
}

func (t *Transport) SupportsTimeout() bool {
	return true
}

// SetTimeout changes the client timeout. Requests already in flight keep
// the previous value.
func (t *Transport) SetTimeout(d time.Duration) {
	t.client.SetTimeout(d)
}

// restyLogger adapts slog to resty.Logger.
type restyLogger struct {
	l *slog.Logger
}

func (r restyLogger) Errorf(format string, v ...any) {
	r.l.Error(fmt.Sprintf(format, v...))
}

func (r restyLogger) Warnf(format string, v ...any) {
	r.l.Warn(fmt.Sprintf(format, v...))
}

func (r restyLogger) Debugf(format string, v ...any) {
	r.l.Debug(fmt.Sprintf(format, v...))
}
