package dispatch

import (
	"context"
	"log/slog"
	"maps"
	"sync"
	"sync/atomic"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/dmitrymomot/netdispatch/pkg/broadcast"
	"github.com/dmitrymomot/netdispatch/pkg/logger"
)

// Manager queues network tasks and runs them on a fixed pool of workers.
type Manager struct {
	// mu guards the pending queue, every worker slot, notEmpty and changed.
	mu       sync.Mutex
	notEmpty *sync.Cond
	// changed is closed and replaced whenever a worker lets go of a task.
	changed chan struct{}
	pending pendingQueue
	workers []*worker
	started bool
	wg      sync.WaitGroup

	// ctx is cancelled by Shutdown; it stops the watchdog and affinity backoffs.
	ctx    context.Context
	cancel context.CancelFunc

	running     atomic.Bool
	workerCount atomic.Int32
	timeout     atomic.Int64

	gracePeriod     time.Duration
	affinityBackoff time.Duration
	disposeTimeout  time.Duration

	// copy-on-write tables, written under tablesMu
	tablesMu sync.Mutex
	headers  atomic.Pointer[map[string]string]
	affinity atomic.Pointer[map[Category]int]

	errorListeners    listenerSet[ErrorListener]
	progressListeners listenerSet[ProgressListener]
	stream            *broadcast.MemoryBroadcaster[ProgressEvent]

	transport Transport
	bridge    Bridge
	clock     clockwork.Clock
	logger    *slog.Logger
	metrics   *Metrics
}

// WorkerInfo is a point-in-time view of one worker.
type WorkerInfo struct {
	Index      int
	Generation int
	State      WorkerState
	Task       Task
	Hint       Hint
}

// New creates a manager. Workers are not started until Start.
func New(opts ...Option) *Manager {
	options := &options{
		config: DefaultConfig(),
		logger: slog.Default(),
		clock:  clockwork.NewRealClock(),
	}

	for _, opt := range opts {
		opt(options)
	}

	m := &Manager{
		changed:         make(chan struct{}),
		gracePeriod:     options.config.GracePeriod,
		affinityBackoff: options.config.AffinityBackoff,
		disposeTimeout:  options.config.DisposeTimeout,
		stream:          broadcast.NewMemoryBroadcaster[ProgressEvent](options.config.ProgressBuffer),
		transport:       options.transport,
		bridge:          options.bridge,
		clock:           options.clock,
		logger:          options.logger.With(logger.Component("dispatch")),
		metrics:         options.metrics,
	}
	m.notEmpty = sync.NewCond(&m.mu)
	m.ctx, m.cancel = context.WithCancel(context.Background())
	m.workerCount.Store(int32(options.config.Workers))
	m.timeout.Store(int64(options.config.Timeout))
	m.headers.Store(&map[string]string{})
	m.affinity.Store(&map[Category]int{})

	if m.nativeTimeout() {
		m.transport.SetTimeout(options.config.Timeout)
	}

	return m
}

// Start spawns the workers and, when the transport cannot enforce timeouts
// itself, the watchdog. Calling it again is a no-op.
func (m *Manager) Start() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.started {
		return
	}
	m.started = true
	m.running.Store(true)

	n := int(m.workerCount.Load())
	m.workers = make([]*worker, n)
	for i := range m.workers {
		m.workers[i] = m.spawnWorkerLocked(i, 0)
	}

	watchdog := !m.nativeTimeout()
	if watchdog {
		m.wg.Add(1)
		go m.watchdog()
	}

	// wake workers for anything submitted before Start
	m.notEmpty.Broadcast()
	m.metrics.setPending(m.pending.len())

	m.logger.Info("dispatch manager started",
		slog.Int("workers", n),
		slog.Bool("watchdog", watchdog),
		slog.Duration("timeout", m.Timeout()))
}

// Shutdown asks workers and the watchdog to exit. Operations already
// running are not interrupted and Shutdown does not wait for them.
func (m *Manager) Shutdown() {
	m.mu.Lock()
	if !m.running.Load() {
		m.mu.Unlock()
		return
	}
	m.running.Store(false)
	m.cancel()
	m.notEmpty.Broadcast()
	m.mu.Unlock()

	_ = m.stream.Close()

	m.logger.Info("dispatch manager stopping")
}

// Run starts the manager and returns a function suitable for errgroup.
// The function blocks until ctx is done, then shuts down and waits for
// the workers to finish their current operations.
func (m *Manager) Run(ctx context.Context) func() error {
	return func() error {
		m.Start()

		<-ctx.Done()

		m.Shutdown()
		m.wg.Wait()

		m.logger.Info("dispatch manager stopped")
		return nil
	}
}

// Running reports whether the manager has been started and not shut down.
func (m *Manager) Running() bool {
	return m.running.Load()
}

// SetWorkerCount sets how many workers Start spawns. It has no effect once
// the manager has started.
func (m *Manager) SetWorkerCount(n int) {
	if n < 1 {
		m.logger.Warn("ignoring invalid worker count", slog.Int("workers", n))
		return
	}

	m.mu.Lock()
	started := m.started
	m.mu.Unlock()

	if started {
		m.logger.Warn("worker count changed after start has no effect until restart",
			slog.Int("workers", n))
	}
	m.workerCount.Store(int32(n))
}

func (m *Manager) WorkerCount() int {
	return int(m.workerCount.Load())
}

// SetTimeout sets the global operation timeout. A transport with native
// timeout support receives the value; otherwise the watchdog enforces it.
func (m *Manager) SetTimeout(d time.Duration) {
	if d <= 0 {
		m.logger.Warn("ignoring non-positive timeout", slog.Duration("timeout", d))
		return
	}
	m.timeout.Store(int64(d))
	if m.nativeTimeout() {
		m.transport.SetTimeout(d)
	}
}

func (m *Manager) Timeout() time.Duration {
	return time.Duration(m.timeout.Load())
}

func (m *Manager) nativeTimeout() bool {
	return m.transport != nil && m.transport.SupportsTimeout()
}

// AddDefaultHeader adds a header to every task executed from now on.
// Headers a task sets itself are never overwritten.
func (m *Manager) AddDefaultHeader(key, value string) {
	m.tablesMu.Lock()
	defer m.tablesMu.Unlock()

	next := maps.Clone(*m.headers.Load())
	next[key] = value
	m.headers.Store(&next)
}

// BindCategory pins every task of the category to the worker at index.
// A negative index removes the binding.
func (m *Manager) BindCategory(category Category, index int) {
	m.tablesMu.Lock()
	defer m.tablesMu.Unlock()

	next := maps.Clone(*m.affinity.Load())
	if index < 0 {
		delete(next, category)
	} else {
		next[category] = index
	}
	m.affinity.Store(&next)

	if n := m.WorkerCount(); index >= n {
		m.logger.Warn("category bound to a worker index outside the pool",
			logger.Category(string(category)),
			logger.WorkerIndex(index),
			slog.Int("workers", n))
	}
}

func (m *Manager) boundWorker(c Category) (int, bool) {
	if c == "" {
		return 0, false
	}
	table := *m.affinity.Load()
	if len(table) == 0 {
		return 0, false
	}
	i, ok := table[c]
	return i, ok
}

func (m *Manager) applyDefaultHeaders(t Task) {
	hs, ok := t.(HeaderSetter)
	if !ok {
		return
	}
	for k, v := range *m.headers.Load() {
		hs.AddHeaderIfAbsent(k, v)
	}
}

// SnapshotPending returns a copy of the pending queue in dequeue order.
func (m *Manager) SnapshotPending() []Task {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.pending.snapshot()
}

// Workers returns a view of every live worker.
func (m *Manager) Workers() []WorkerInfo {
	m.mu.Lock()
	defer m.mu.Unlock()

	infos := make([]WorkerInfo, len(m.workers))
	for i, w := range m.workers {
		infos[i] = WorkerInfo{
			Index:      w.index,
			Generation: w.generation,
			State:      w.state,
			Task:       w.current,
			Hint:       w.hint,
		}
	}
	return infos
}

// heldLocked reports whether a live worker currently owns t.
func (m *Manager) heldLocked(t Task) bool {
	for _, w := range m.workers {
		if w.current == t {
			return true
		}
	}
	return false
}

// releaseLocked wakes everyone waiting for a worker to let go of a task.
func (m *Manager) releaseLocked() {
	close(m.changed)
	m.changed = make(chan struct{})
	if m.pending.len() > 0 {
		m.notEmpty.Broadcast()
	}
}

// waitReleased blocks until no live worker owns t, or until timeout
// (when positive), ctx or shutdown. It reports whether t was released.
func (m *Manager) waitReleased(ctx context.Context, t Task, timeout time.Duration) bool {
	var expired <-chan time.Time
	if timeout > 0 {
		timer := m.clock.NewTimer(timeout)
		defer timer.Stop()
		expired = timer.Chan()
	}

	for {
		m.mu.Lock()
		held := m.heldLocked(t)
		changed := m.changed
		m.mu.Unlock()

		if !held {
			return true
		}

		select {
		case <-changed:
		case <-expired:
			return false
		case <-ctx.Done():
			return false
		}
	}
}
