package dispatch

import (
	"maps"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
)

// BaseTask implements every Task method except PerformOperation.
// The zero value is ready to use; configure it before submitting.
type BaseTask struct {
	idOnce sync.Once
	id     uuid.UUID

	priority atomic.Int32
	timeout  atomic.Int64
	pausable atomic.Bool
	killed   atomic.Bool
	paused   atomic.Bool

	// unix nanoseconds of the last recorded activity, 0 before Prepare
	lastActivity atomic.Int64

	mu       sync.RWMutex
	category Category
	clock    clockwork.Clock
	headers  map[string]string

	// OnIOError and OnRuntimeError are the task's own failure handlers.
	OnIOError      func(err error)
	OnRuntimeError func(err error)
}

// ID returns a random identifier assigned on first use.
func (t *BaseTask) ID() uuid.UUID {
	t.idOnce.Do(func() {
		t.id = uuid.New()
	})
	return t.id
}

func (t *BaseTask) Priority() Priority {
	return Priority(t.priority.Load())
}

func (t *BaseTask) SetPriority(p Priority) {
	t.priority.Store(int32(p))
}

func (t *BaseTask) Category() Category {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.category
}

func (t *BaseTask) SetCategory(c Category) {
	t.mu.Lock()
	t.category = c
	t.mu.Unlock()
}

// SetClock replaces the clock used for activity tracking.
func (t *BaseTask) SetClock(c clockwork.Clock) {
	t.mu.Lock()
	t.clock = c
	t.mu.Unlock()
}

func (t *BaseTask) now() time.Time {
	t.mu.RLock()
	c := t.clock
	t.mu.RUnlock()
	if c == nil {
		return time.Now()
	}
	return c.Now()
}

// Prepare clears the paused flag and starts the activity clock.
func (t *BaseTask) Prepare() {
	t.paused.Store(false)
	t.Touch()
}

func (t *BaseTask) Kill() {
	t.killed.Store(true)
}

func (t *BaseTask) IsKilled() bool {
	return t.killed.Load()
}

func (t *BaseTask) IsPausable() bool {
	return t.pausable.Load()
}

func (t *BaseTask) SetPausable(v bool) {
	t.pausable.Store(v)
}

// Pause marks a pausable task as paused until its next Prepare.
func (t *BaseTask) Pause() {
	if t.pausable.Load() {
		t.paused.Store(true)
	}
}

func (t *BaseTask) IsPaused() bool {
	return t.paused.Load()
}

// Touch records activity now.
func (t *BaseTask) Touch() {
	t.lastActivity.Store(t.now().UnixNano())
}

func (t *BaseTask) TimeSinceLastActivity() time.Duration {
	last := t.lastActivity.Load()
	if last == 0 {
		return 0
	}
	return t.now().Sub(time.Unix(0, last))
}

func (t *BaseTask) Timeout() time.Duration {
	return time.Duration(t.timeout.Load())
}

// SetTimeout sets a per-task timeout; zero falls back to the global one.
func (t *BaseTask) SetTimeout(d time.Duration) {
	t.timeout.Store(int64(d))
}

// SetHeader sets a request header, replacing any previous value.
func (t *BaseTask) SetHeader(key, value string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.headers == nil {
		t.headers = make(map[string]string)
	}
	t.headers[key] = value
}

func (t *BaseTask) AddHeaderIfAbsent(key, value string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.headers == nil {
		t.headers = make(map[string]string)
	}
	if _, ok := t.headers[key]; !ok {
		t.headers[key] = value
	}
}

// Headers returns a copy of the request headers.
func (t *BaseTask) Headers() map[string]string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return maps.Clone(t.headers)
}

func (t *BaseTask) HandleIOError(err error) {
	if t.OnIOError != nil {
		t.OnIOError(err)
	}
}

func (t *BaseTask) HandleRuntimeError(err error) {
	if t.OnRuntimeError != nil {
		t.OnRuntimeError(err)
	}
}
