package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/dmitrymomot/netdispatch/pkg/dispatch"
	"github.com/dmitrymomot/netdispatch/pkg/httptask"
	"github.com/dmitrymomot/netdispatch/pkg/logger"
)

const fetchShortDescription = `Fetch URLs through the dispatch queue`
const fetchLongDescription = `Command "fetch"

Fetch every URL given as argument and print one line per response:
  <status> <method> <url> <bytes> <duration>

A URL repeated while the first request for it is still pending is
printed as SKIP and does not count as a failure.

All requests share the --priority and --category flags. Categories can be
pinned to a worker with --pin category=index. The command fails when at
least one request fails.
`

// errRequestsFailed is returned when at least one request did not succeed.
var errRequestsFailed = errors.New("some requests failed")

type fetchOptions struct {
	workers     int
	timeout     time.Duration
	priority    string
	category    string
	method      string
	body        string
	headers     []string
	pins        []string
	metricsAddr string
}

func fetchCommand(root *rootOptions) *cobra.Command {
	opts := &fetchOptions{}

	cmd := &cobra.Command{
		Use:   "fetch URL...",
		Short: fetchShortDescription,
		Long:  fetchLongDescription,
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if cmd.Flags().Changed("workers") {
				root.cfg.Dispatch.Workers = opts.workers
			}
			if cmd.Flags().Changed("timeout") {
				root.cfg.Dispatch.Timeout = opts.timeout
			}
			return runFetch(cmd.Context(), root, opts, args, cmd.OutOrStdout())
		},
	}

	flags := cmd.Flags()
	flags.IntVarP(&opts.workers, "workers", "w", 0, "number of workers (default from DISPATCH_WORKERS)")
	flags.DurationVarP(&opts.timeout, "timeout", "t", 0, "request timeout (default from DISPATCH_TIMEOUT)")
	flags.StringVarP(&opts.priority, "priority", "p", "normal", "critical, high, normal, low or redundant")
	flags.StringVarP(&opts.category, "category", "c", "", "category of every request")
	flags.StringVarP(&opts.method, "method", "X", http.MethodGet, "HTTP method")
	flags.StringVarP(&opts.body, "data", "d", "", "request body")
	flags.StringArrayVarP(&opts.headers, "header", "H", nil, "default header as key=value, repeatable")
	flags.StringArrayVar(&opts.pins, "pin", nil, "pin a category to a worker as category=index, repeatable")
	flags.StringVar(&opts.metricsAddr, "metrics-addr", "", "serve Prometheus metrics on this address while running")

	return cmd
}

func runFetch(ctx context.Context, root *rootOptions, opts *fetchOptions, urls []string, out io.Writer) error {
	log := root.logger

	priority, err := dispatch.ParsePriority(opts.priority)
	if err != nil {
		return err
	}
	headers, err := parseHeaders(opts.headers)
	if err != nil {
		return err
	}
	pins, err := parsePins(opts.pins)
	if err != nil {
		return err
	}

	var tr *httptask.Transport
	if root.client != nil {
		tr = httptask.NewTransportWithClient(root.client, httptask.WithLogger(log))
	} else {
		tr = httptask.NewTransport(root.cfg.HTTP, httptask.WithLogger(log))
	}

	registry := prometheus.NewRegistry()
	metrics, err := dispatch.NewMetrics(registry)
	if err != nil {
		return err
	}

	m := dispatch.New(
		dispatch.WithConfig(root.cfg.Dispatch),
		dispatch.WithTransport(tr),
		dispatch.WithLogger(log),
		dispatch.WithMetrics(metrics),
	)
	for k, v := range headers {
		m.AddDefaultHeader(k, v)
	}
	for category, index := range pins {
		m.BindCategory(category, index)
	}

	runCtx, stop := context.WithCancel(ctx)
	defer stop()
	g, gctx := errgroup.WithContext(runCtx)

	g.Go(m.Run(gctx))
	g.Go(logProgress(gctx, m, log))
	if opts.metricsAddr != "" {
		g.Go(serveMetrics(gctx, opts.metricsAddr, registry, log))
	}

	var failed int
	g.Go(func() error {
		defer stop()
		failed = fetchAll(gctx, m, tr, opts, priority, urls, out)
		return nil
	})

	if err := g.Wait(); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if failed > 0 {
		return fmt.Errorf("%w: %d of %d", errRequestsFailed, failed, len(urls))
	}
	return nil
}

// fetchAll submits every URL and waits for all of them. It returns the
// number of failed requests.
func fetchAll(
	ctx context.Context,
	m *dispatch.Manager,
	tr *httptask.Transport,
	opts *fetchOptions,
	priority dispatch.Priority,
	urls []string,
	out io.Writer,
) int {
	var (
		mu     sync.Mutex
		failed int
		wg     sync.WaitGroup
	)

	report := func(line string, ok bool) {
		mu.Lock()
		defer mu.Unlock()
		if !ok {
			failed++
		}
		fmt.Fprintln(out, line)
	}

	for _, url := range urls {
		var reqErr error
		reqOpts := []httptask.RequestOption{
			httptask.WithPriority(priority),
			httptask.WithCategory(dispatch.Category(opts.category)),
			httptask.WithErrorHandler(func(err error) { reqErr = err }),
		}
		if opts.body != "" {
			reqOpts = append(reqOpts, httptask.WithBody([]byte(opts.body)))
		}
		req := tr.NewRequest(strings.ToUpper(opts.method), url, reqOpts...)

		wg.Add(1)
		go func() {
			defer wg.Done()

			start := time.Now()
			err := m.SubmitAndWait(ctx, req)
			if errors.Is(err, dispatch.ErrDuplicate) {
				report(fmt.Sprintf("SKIP %s %s duplicate of a pending request", req.Method(), req.URL()), true)
				return
			}
			if err != nil {
				report(fmt.Sprintf("ERR %s %s %v", req.Method(), req.URL(), err), false)
				return
			}
			elapsed := time.Since(start).Round(time.Millisecond)

			res := req.Response()
			switch {
			case res == nil && reqErr != nil:
				report(fmt.Sprintf("ERR %s %s %v", req.Method(), req.URL(), reqErr), false)
			case res == nil:
				report(fmt.Sprintf("ERR %s %s killed", req.Method(), req.URL()), false)
			default:
				report(fmt.Sprintf("%d %s %s %dB %s",
					res.StatusCode, req.Method(), req.URL(), len(res.Body), elapsed), reqErr == nil)
			}
		}()
	}
	wg.Wait()

	return failed
}

func logProgress(ctx context.Context, m *dispatch.Manager, log *slog.Logger) func() error {
	sub := m.SubscribeProgress(ctx)
	return func() error {
		for ev := range sub.Receive() {
			log.Debug("progress",
				logger.Phase(string(ev.Phase)),
				logger.WorkerIndex(ev.WorkerIndex),
				slog.Int64("transferred", ev.Transferred),
				slog.Int64("length", ev.Length))
		}
		return nil
	}
}

func serveMetrics(ctx context.Context, addr string, registry *prometheus.Registry, log *slog.Logger) func() error {
	return func() error {
		srv := &http.Server{
			Addr:              addr,
			Handler:           metricsRouter(registry),
			ReadHeaderTimeout: 5 * time.Second,
		}

		go func() {
			<-ctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
		}()

		log.Info("serving metrics", slog.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("metrics server: %w", err)
		}
		return nil
	}
}

func metricsRouter(registry *prometheus.Registry) chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
	return r
}

// parseHeaders accepts "key=value" and "key: value".
func parseHeaders(values []string) (map[string]string, error) {
	headers := make(map[string]string, len(values))
	for _, v := range values {
		key, value, ok := strings.Cut(v, "=")
		if !ok {
			key, value, ok = strings.Cut(v, ":")
		}
		key = strings.TrimSpace(key)
		if !ok || key == "" {
			return nil, fmt.Errorf("invalid header %q: expected key=value", v)
		}
		headers[key] = strings.TrimSpace(value)
	}
	return headers, nil
}

func parsePins(values []string) (map[dispatch.Category]int, error) {
	pins := make(map[dispatch.Category]int, len(values))
	for _, v := range values {
		category, index, ok := strings.Cut(v, "=")
		if !ok || category == "" {
			return nil, fmt.Errorf("invalid pin %q: expected category=index", v)
		}
		i, err := strconv.Atoi(index)
		if err != nil || i < 0 {
			return nil, fmt.Errorf("invalid pin %q: index must be a non-negative integer", v)
		}
		pins[dispatch.Category(category)] = i
	}
	return pins, nil
}
