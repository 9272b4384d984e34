package task

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/blacktop/xpub/internal/logutil"
	"github.com/blacktop/xpub/internal/xpub"
)

var (
	ErrNoValidPlatforms    = errors.New("no valid target platforms")
	ErrTaskNotFound        = errors.New("task not found")
	ErrTaskRunning         = errors.New("task is already running")
	ErrCannotCancelRunning = errors.New("cannot cancel while running")
)

// DefaultMaxRetries is the attempt ceiling for tasks created without one.
const DefaultMaxRetries = 3

// Deliverer publishes one content to one platform. *publish.Manager
// satisfies it.
type Deliverer interface {
	PublishToPlatform(ctx context.Context, c *xpub.Content, platform xpub.Platform, maxRetries int) xpub.Result
}

// ProgressFunc observes task progress. percent ranges from 0 to 100.
type ProgressFunc func(taskID string, percent float64, message string)

// Options configures a Manager.
type Options struct {
	// Pacing is waited between two platforms of the same task, never after
	// the last one.
	Pacing time.Duration
	// MaxRetries is used when CreateTask gets a ceiling below 1.
	MaxRetries int
}

// Manager owns tasks and runs them one platform at a time.
type Manager struct {
	deliverer  Deliverer
	pacing     time.Duration
	maxRetries int

	mu        sync.Mutex
	tasks     map[string]*Task
	order     []string
	observers map[int]ProgressFunc
	nextObs   int

	sleep func(ctx context.Context, d time.Duration) error
}

// NewManager returns a Manager delivering through d.
func NewManager(d Deliverer, opts Options) *Manager {
	if opts.MaxRetries < 1 {
		opts.MaxRetries = DefaultMaxRetries
	}
	if opts.Pacing < 0 {
		opts.Pacing = 0
	}
	return &Manager{
		deliverer:  d,
		pacing:     opts.Pacing,
		maxRetries: opts.MaxRetries,
		tasks:      make(map[string]*Task),
		observers:  make(map[int]ProgressFunc),
		sleep:      sleep,
	}
}

// OnProgress registers fn and returns a handle for RemoveProgress.
func (m *Manager) OnProgress(fn ProgressFunc) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextObs++
	m.observers[m.nextObs] = fn
	return m.nextObs
}

// RemoveProgress unregisters the observer behind id.
func (m *Manager) RemoveProgress(id int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.observers, id)
}

// CreateTask registers a pending task delivering c to the named platforms.
// Unknown names are dropped with a warning and duplicates collapse.
func (m *Manager) CreateTask(c *xpub.Content, names []string, maxRetries int) (string, error) {
	if c == nil {
		return "", errors.New("content is required")
	}

	platforms := make([]xpub.Platform, 0, len(names))
	seen := make(map[xpub.Platform]struct{}, len(names))
	for _, name := range names {
		p, err := xpub.ParsePlatform(name)
		if err != nil {
			logutil.Warnf("dropping target: %v", err)
			continue
		}
		if _, ok := seen[p]; ok {
			continue
		}
		seen[p] = struct{}{}
		platforms = append(platforms, p)
	}
	if len(platforms) == 0 {
		return "", ErrNoValidPlatforms
	}
	if maxRetries < 1 {
		maxRetries = m.maxRetries
	}

	t := &Task{
		ID:         uuid.NewString(),
		Content:    c.Clone(),
		Platforms:  platforms,
		MaxRetries: maxRetries,
		Status:     StatusPending,
		Results:    make([]xpub.Result, 0, len(platforms)),
		CreatedAt:  time.Now().UTC(),
	}

	m.mu.Lock()
	m.tasks[t.ID] = t
	m.order = append(m.order, t.ID)
	m.mu.Unlock()

	logutil.Debugf("task created: id=%s platforms=%v max_retries=%d", t.ID, platforms, maxRetries)
	return t.ID, nil
}

// ExecuteTask runs a pending task to completion and returns its final state.
// A task that already finished is returned as is. Delivery failures never
// surface as errors: they are recorded in the task's Results.
//
// ctx is only checked between platforms; once it is done the task ends
// cancelled and the remaining platforms are skipped.
func (m *Manager) ExecuteTask(ctx context.Context, id string) (Task, error) {
	m.mu.Lock()
	t, ok := m.tasks[id]
	if !ok {
		m.mu.Unlock()
		return Task{}, fmt.Errorf("%w: %s", ErrTaskNotFound, id)
	}
	if t.Done() {
		snap := t.snapshot()
		m.mu.Unlock()
		return snap, nil
	}
	if t.Status == StatusRunning {
		m.mu.Unlock()
		return Task{}, fmt.Errorf("%w: %s", ErrTaskRunning, id)
	}
	t.Status = StatusRunning
	t.StartedAt = time.Now().UTC()
	content := t.Content
	platforms := append([]xpub.Platform(nil), t.Platforms...)
	retries := t.MaxRetries
	m.mu.Unlock()

	total := len(platforms)
	logutil.Infof("task started: id=%s platforms=%d", id, total)
	m.notify(id, 0, fmt.Sprintf("started: %d platform(s)", total))

	cancelled := false
	for i, p := range platforms {
		if i > 0 {
			logutil.Debugf("pacing %s before %s", m.pacing, p)
			_ = m.sleep(ctx, m.pacing)
		}
		if ctx.Err() != nil {
			cancelled = true
			break
		}

		res := m.deliver(ctx, content, p, retries)

		m.mu.Lock()
		t.Results = append(t.Results, res)
		t.Completed++
		if !res.Success() {
			t.Failed++
		}
		percent := t.Progress()
		m.mu.Unlock()

		msg := fmt.Sprintf("%s: %s", p, res.Status)
		if !res.Success() {
			msg += " (" + res.Error + ")"
		}
		m.notify(id, percent, msg)
	}

	m.mu.Lock()
	switch {
	case cancelled:
		t.Status = StatusCancelled
	case t.Failed == total:
		t.Status = StatusFailed
	default:
		t.Status = StatusCompleted
	}
	t.FinishedAt = time.Now().UTC()
	snap := t.snapshot()
	m.mu.Unlock()

	logutil.Infof("task finished: id=%s %s", id, snap.Summary())
	m.notify(id, snap.Progress(), snap.Summary())
	return snap, nil
}

// deliver shields the task loop from panics in the delivery path.
func (m *Manager) deliver(ctx context.Context, c *xpub.Content, p xpub.Platform, retries int) (res xpub.Result) {
	defer func() {
		if r := recover(); r != nil {
			logutil.Errorf("delivery panicked: platform=%s panic=%v", p, r)
			res = xpub.Failed(p, fmt.Errorf("unexpected error: %v", r))
		}
	}()
	res = m.deliverer.PublishToPlatform(ctx, c, p, retries)
	if res.Platform == "" {
		res.Platform = p
	}
	if res.Status != xpub.StatusSuccess && res.Status != xpub.StatusFailed {
		res.Status = xpub.StatusFailed
	}
	return res
}

// CancelTask cancels a pending task. Running tasks cannot be cancelled;
// finished ones are left untouched and report false.
func (m *Manager) CancelTask(id string) (bool, error) {
	m.mu.Lock()
	t, ok := m.tasks[id]
	if !ok {
		m.mu.Unlock()
		return false, fmt.Errorf("%w: %s", ErrTaskNotFound, id)
	}
	switch {
	case t.Status == StatusRunning:
		m.mu.Unlock()
		return false, ErrCannotCancelRunning
	case t.Done():
		m.mu.Unlock()
		return false, nil
	}
	t.Status = StatusCancelled
	t.FinishedAt = time.Now().UTC()
	m.mu.Unlock()

	logutil.Infof("task cancelled: id=%s", id)
	m.notify(id, 0, "cancelled")
	return true, nil
}

// Task returns a snapshot of the task behind id.
func (m *Manager) Task(id string) (Task, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.tasks[id]
	if !ok {
		return Task{}, false
	}
	return t.snapshot(), true
}

// Tasks returns snapshots of every task in creation order.
func (m *Manager) Tasks() []Task {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Task, 0, len(m.order))
	for _, id := range m.order {
		out = append(out, m.tasks[id].snapshot())
	}
	return out
}

// Stats aggregates every task this Manager has seen.
type Stats struct {
	Tasks     int
	Pending   int
	Running   int
	Completed int
	Failed    int
	Cancelled int

	Deliveries  int
	Delivered   int
	Undelivered int
}

// SuccessRate is delivered over attempted deliveries, 0 to 1.
func (s Stats) SuccessRate() float64 {
	if s.Deliveries == 0 {
		return 0
	}
	return float64(s.Delivered) / float64(s.Deliveries)
}

// Stats returns counts by state and delivery totals across all tasks.
func (m *Manager) Stats() Stats {
	m.mu.Lock()
	defer m.mu.Unlock()
	var s Stats
	for _, t := range m.tasks {
		s.Tasks++
		switch t.Status {
		case StatusPending:
			s.Pending++
		case StatusRunning:
			s.Running++
		case StatusCompleted:
			s.Completed++
		case StatusFailed:
			s.Failed++
		case StatusCancelled:
			s.Cancelled++
		}
		s.Deliveries += t.Completed
		s.Delivered += t.Succeeded()
		s.Undelivered += t.Failed
	}
	return s
}

func (m *Manager) notify(id string, percent float64, msg string) {
	m.mu.Lock()
	fns := make([]ProgressFunc, 0, len(m.observers))
	for i := 1; i <= m.nextObs; i++ {
		if fn, ok := m.observers[i]; ok {
			fns = append(fns, fn)
		}
	}
	m.mu.Unlock()

	for _, fn := range fns {
		callObserver(fn, id, percent, msg)
	}
}

func callObserver(fn ProgressFunc, id string, percent float64, msg string) {
	defer func() {
		if r := recover(); r != nil {
			logutil.Errorf("progress observer panicked: task=%s panic=%v", id, r)
		}
	}()
	fn(id, percent, msg)
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
