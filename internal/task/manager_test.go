package task

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/blacktop/xpub/internal/xpub"
)

// scriptedDeliverer fails the platforms in fail and succeeds the others,
// reporting one attempt per allowed retry for failures.
type scriptedDeliverer struct {
	mu      sync.Mutex
	fail    map[xpub.Platform]bool
	panics  map[xpub.Platform]bool
	calls   []xpub.Platform
	retries []int
	onCall  func(xpub.Platform)
}

func (d *scriptedDeliverer) PublishToPlatform(_ context.Context, _ *xpub.Content, p xpub.Platform, maxRetries int) xpub.Result {
	d.mu.Lock()
	d.calls = append(d.calls, p)
	d.retries = append(d.retries, maxRetries)
	d.mu.Unlock()
	if d.onCall != nil {
		d.onCall(p)
	}
	if d.panics[p] {
		panic("automation driver crashed")
	}
	if d.fail[p] {
		return xpub.Failed(p, errors.New("rejected")).WithTiming(maxRetries, 0)
	}
	return xpub.Succeeded(p, xpub.Receipt{PostID: "id-" + p.String()}).WithTiming(1, 0)
}

func newContent(t *testing.T) *xpub.Content {
	t.Helper()
	c, err := xpub.NewContent("Weekend hike", xpub.WithMedia("trail.jpg"))
	require.NoError(t, err)
	return c
}

func newTestManager(d Deliverer, opts Options) (*Manager, *[]time.Duration) {
	m := NewManager(d, opts)
	var sleeps []time.Duration
	m.sleep = func(ctx context.Context, d time.Duration) error {
		sleeps = append(sleeps, d)
		return ctx.Err()
	}
	return m, &sleeps
}

func TestCreateTaskRejectsUnknownPlatforms(t *testing.T) {
	m, _ := newTestManager(&scriptedDeliverer{}, Options{})

	_, err := m.CreateTask(newContent(t), []string{"unknown_platform"}, 3)

	require.ErrorIs(t, err, ErrNoValidPlatforms)
	assert.EqualError(t, err, "no valid target platforms")
	assert.Empty(t, m.Tasks())
}

func TestCreateTaskResolvesNames(t *testing.T) {
	m, _ := newTestManager(&scriptedDeliverer{}, Options{MaxRetries: 4})
	c := newContent(t)

	id, err := m.CreateTask(c, []string{"xhs", "bogus", "video", "Lifestyle", "weibo"}, 0)
	require.NoError(t, err)

	task, ok := m.Task(id)
	require.True(t, ok)
	assert.Equal(t, []xpub.Platform{xpub.Lifestyle, xpub.Video, xpub.Microblog}, task.Platforms)
	assert.Equal(t, 4, task.MaxRetries)
	assert.Equal(t, StatusPending, task.Status)
	assert.False(t, task.Done())

	c.Title = "changed"
	task, _ = m.Task(id)
	assert.Equal(t, "Weekend hike", task.Content.Title)

	_, err = m.CreateTask(nil, []string{"video"}, 1)
	assert.Error(t, err)
}

func TestExecuteTaskPartialSuccessIsCompleted(t *testing.T) {
	d := &scriptedDeliverer{fail: map[xpub.Platform]bool{xpub.Marketplace: true}}
	m, _ := newTestManager(d, Options{})

	id, err := m.CreateTask(newContent(t), []string{"marketplace", "lifestyle"}, 2)
	require.NoError(t, err)

	task, err := m.ExecuteTask(context.Background(), id)
	require.NoError(t, err)

	require.Len(t, task.Results, 2)
	assert.Equal(t, xpub.Marketplace, task.Results[0].Platform)
	assert.Equal(t, xpub.StatusFailed, task.Results[0].Status)
	assert.Equal(t, 2, task.Results[0].Attempts)
	assert.Equal(t, xpub.Lifestyle, task.Results[1].Platform)
	assert.True(t, task.Results[1].Success())
	assert.Equal(t, 1, task.Results[1].Attempts)

	assert.Equal(t, StatusCompleted, task.Status)
	assert.True(t, task.Partial())
	assert.InDelta(t, 0.5, task.SuccessRate(), 1e-9)
	assert.InDelta(t, 100, task.Progress(), 1e-9)
	assert.Equal(t, []int{2, 2}, d.retries)
	assert.Equal(t, "completed with failures: 1/2 platforms succeeded, 1 failed", task.Summary())
	assert.False(t, task.StartedAt.IsZero())
	assert.False(t, task.FinishedAt.Before(task.StartedAt))
}

func TestExecuteTaskAllFailedIsFailed(t *testing.T) {
	d := &scriptedDeliverer{fail: map[xpub.Platform]bool{xpub.Video: true, xpub.Article: true}}
	m, _ := newTestManager(d, Options{})
	id, err := m.CreateTask(newContent(t), []string{"video", "article"}, 1)
	require.NoError(t, err)

	task, err := m.ExecuteTask(context.Background(), id)
	require.NoError(t, err)

	assert.Equal(t, StatusFailed, task.Status)
	assert.Equal(t, 2, task.Failed)
	assert.Zero(t, task.SuccessRate())
}

func TestExecuteTaskCountersStayConsistent(t *testing.T) {
	d := &scriptedDeliverer{fail: map[xpub.Platform]bool{xpub.Article: true}}
	m, _ := newTestManager(d, Options{})
	id, err := m.CreateTask(newContent(t), []string{"video", "article", "lifestyle", "marketplace"}, 1)
	require.NoError(t, err)

	m.OnProgress(func(taskID string, percent float64, _ string) {
		snap, ok := m.Task(taskID)
		require.True(t, ok)
		assert.LessOrEqual(t, snap.Failed, snap.Completed)
		assert.LessOrEqual(t, snap.Completed, snap.Total())
		assert.Len(t, snap.Results, snap.Completed)
		assert.GreaterOrEqual(t, percent, 0.0)
		assert.LessOrEqual(t, percent, 100.0)
	})

	task, err := m.ExecuteTask(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, 4, task.Completed)
	assert.Equal(t, 1, task.Failed)
	assert.Equal(t, 3, task.Succeeded())
}

func TestExecuteTaskSynthesizesResultOnPanic(t *testing.T) {
	d := &scriptedDeliverer{panics: map[xpub.Platform]bool{xpub.Video: true}}
	m, _ := newTestManager(d, Options{})
	id, err := m.CreateTask(newContent(t), []string{"video", "article"}, 1)
	require.NoError(t, err)

	task, err := m.ExecuteTask(context.Background(), id)
	require.NoError(t, err)

	require.Len(t, task.Results, 2)
	assert.Equal(t, xpub.StatusFailed, task.Results[0].Status)
	assert.Contains(t, task.Results[0].Error, "automation driver crashed")
	assert.True(t, task.Results[1].Success())
	assert.Equal(t, StatusCompleted, task.Status)
}

func TestExecuteTaskPacesBetweenPlatformsOnly(t *testing.T) {
	m, sleeps := newTestManager(&scriptedDeliverer{}, Options{Pacing: 3 * time.Second})
	id, err := m.CreateTask(newContent(t), []string{"marketplace", "lifestyle", "video"}, 1)
	require.NoError(t, err)

	_, err = m.ExecuteTask(context.Background(), id)
	require.NoError(t, err)

	assert.Equal(t, []time.Duration{3 * time.Second, 3 * time.Second}, *sleeps)
}

func TestExecuteTaskStopsBetweenPlatformsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	d := &scriptedDeliverer{onCall: func(xpub.Platform) { cancel() }}
	m, _ := newTestManager(d, Options{})
	id, err := m.CreateTask(newContent(t), []string{"marketplace", "lifestyle", "video"}, 1)
	require.NoError(t, err)

	task, err := m.ExecuteTask(ctx, id)
	require.NoError(t, err)

	assert.Equal(t, []xpub.Platform{xpub.Marketplace}, d.calls)
	assert.Equal(t, StatusCancelled, task.Status)
	assert.Equal(t, 1, task.Completed)
	assert.True(t, task.Done())
}

func TestExecuteTaskUnknownAndFinished(t *testing.T) {
	d := &scriptedDeliverer{}
	m, _ := newTestManager(d, Options{})

	_, err := m.ExecuteTask(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrTaskNotFound)

	id, err := m.CreateTask(newContent(t), []string{"video"}, 1)
	require.NoError(t, err)
	first, err := m.ExecuteTask(context.Background(), id)
	require.NoError(t, err)

	again, err := m.ExecuteTask(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, first.Status, again.Status)
	assert.Len(t, d.calls, 1, "a finished task is not re-run")
}

func TestCancelTask(t *testing.T) {
	m, _ := newTestManager(&scriptedDeliverer{}, Options{})

	_, err := m.CancelTask("missing")
	assert.ErrorIs(t, err, ErrTaskNotFound)

	id, err := m.CreateTask(newContent(t), []string{"video"}, 1)
	require.NoError(t, err)

	ok, err := m.CancelTask(id)
	require.NoError(t, err)
	assert.True(t, ok)
	task, _ := m.Task(id)
	assert.Equal(t, StatusCancelled, task.Status)

	ok, err = m.CancelTask(id)
	require.NoError(t, err)
	assert.False(t, ok)

	task, err = m.ExecuteTask(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, StatusCancelled, task.Status)
	assert.Empty(t, task.Results)
}

func TestCancelTaskRefusedWhileRunning(t *testing.T) {
	var (
		m         *Manager
		id        string
		cancelErr error
	)
	d := &scriptedDeliverer{onCall: func(xpub.Platform) {
		_, cancelErr = m.CancelTask(id)
	}}
	m, _ = newTestManager(d, Options{})
	var err error
	id, err = m.CreateTask(newContent(t), []string{"video"}, 1)
	require.NoError(t, err)

	task, err := m.ExecuteTask(context.Background(), id)
	require.NoError(t, err)

	assert.ErrorIs(t, cancelErr, ErrCannotCancelRunning)
	assert.Equal(t, StatusCompleted, task.Status)
}

func TestProgressObservers(t *testing.T) {
	m, _ := newTestManager(&scriptedDeliverer{}, Options{})
	id, err := m.CreateTask(newContent(t), []string{"marketplace", "video"}, 1)
	require.NoError(t, err)

	var percents []float64
	var messages []string
	m.OnProgress(func(string, float64, string) { panic("observer bug") })
	m.OnProgress(func(taskID string, percent float64, msg string) {
		assert.Equal(t, id, taskID)
		percents = append(percents, percent)
		messages = append(messages, msg)
	})
	removed := m.OnProgress(func(string, float64, string) { t.Error("removed observer called") })
	m.RemoveProgress(removed)

	task, err := m.ExecuteTask(context.Background(), id)
	require.NoError(t, err)

	assert.Equal(t, StatusCompleted, task.Status)
	assert.Equal(t, []float64{0, 50, 100, 100}, percents)
	assert.Equal(t, "started: 2 platform(s)", messages[0])
	assert.Equal(t, "marketplace: success", messages[1])
	assert.Equal(t, "video: success", messages[2])
	assert.Equal(t, "completed: 2/2 platforms succeeded, 0 failed", messages[3])
}

func TestStats(t *testing.T) {
	d := &scriptedDeliverer{fail: map[xpub.Platform]bool{xpub.Article: true}}
	m, _ := newTestManager(d, Options{})
	ctx := context.Background()

	mixed, err := m.CreateTask(newContent(t), []string{"video", "article"}, 1)
	require.NoError(t, err)
	failing, err := m.CreateTask(newContent(t), []string{"article"}, 1)
	require.NoError(t, err)
	cancelled, err := m.CreateTask(newContent(t), []string{"video"}, 1)
	require.NoError(t, err)
	_, err = m.CreateTask(newContent(t), []string{"lifestyle"}, 1)
	require.NoError(t, err)

	_, err = m.ExecuteTask(ctx, mixed)
	require.NoError(t, err)
	_, err = m.ExecuteTask(ctx, failing)
	require.NoError(t, err)
	_, err = m.CancelTask(cancelled)
	require.NoError(t, err)

	s := m.Stats()
	assert.Equal(t, Stats{
		Tasks:       4,
		Pending:     1,
		Completed:   1,
		Failed:      1,
		Cancelled:   1,
		Deliveries:  3,
		Delivered:   1,
		Undelivered: 2,
	}, s)
	assert.InDelta(t, 1.0/3.0, s.SuccessRate(), 1e-9)
	assert.Zero(t, Stats{}.SuccessRate())

	tasks := m.Tasks()
	require.Len(t, tasks, 4)
	assert.Equal(t, mixed, tasks[0].ID)
}
