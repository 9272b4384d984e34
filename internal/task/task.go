// Package task sequences the delivery of one content to an ordered list of
// platforms and tracks each request as a Task.
package task

import (
	"fmt"
	"time"

	"github.com/blacktop/xpub/internal/xpub"
)

// Status is the lifecycle state of a Task.
type Status string

const (
	StatusPending   Status = "pending"
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
	StatusCancelled Status = "cancelled"
)

// Terminal reports whether s is a final state.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed || s == StatusCancelled
}

// Task is a snapshot of one publish request. Values handed out by the
// Manager are copies; mutating them does not affect the Manager.
type Task struct {
	ID         string
	Content    *xpub.Content
	Platforms  []xpub.Platform
	MaxRetries int
	Status     Status
	Completed  int
	Failed     int
	Results    []xpub.Result
	CreatedAt  time.Time
	StartedAt  time.Time
	FinishedAt time.Time
}

// Total is the number of target platforms.
func (t Task) Total() int { return len(t.Platforms) }

// Succeeded counts successful Results.
func (t Task) Succeeded() int { return t.Completed - t.Failed }

// Done reports whether the task reached a terminal state.
func (t Task) Done() bool { return t.Status.Terminal() }

// Partial reports a finished task where some, but not all, platforms failed.
func (t Task) Partial() bool {
	return t.Status == StatusCompleted && t.Failed > 0
}

// Progress is the share of platforms that produced a Result, 0 to 100.
func (t Task) Progress() float64 {
	if t.Total() == 0 {
		return 0
	}
	return float64(t.Completed) / float64(t.Total()) * 100
}

// SuccessRate is successful platforms over all target platforms, 0 to 1.
func (t Task) SuccessRate() float64 {
	if t.Total() == 0 {
		return 0
	}
	return float64(t.Succeeded()) / float64(t.Total())
}

// Summary renders the counts of the task for humans.
func (t Task) Summary() string {
	switch {
	case t.Status == StatusCancelled:
		return fmt.Sprintf("cancelled: %d/%d platforms attempted, %d succeeded, %d failed", t.Completed, t.Total(), t.Succeeded(), t.Failed)
	case t.Partial():
		return fmt.Sprintf("completed with failures: %d/%d platforms succeeded, %d failed", t.Succeeded(), t.Total(), t.Failed)
	case t.Done():
		return fmt.Sprintf("%s: %d/%d platforms succeeded, %d failed", t.Status, t.Succeeded(), t.Total(), t.Failed)
	default:
		return fmt.Sprintf("%s: %d/%d platforms done", t.Status, t.Completed, t.Total())
	}
}

func (t *Task) snapshot() Task {
	out := *t
	out.Platforms = append([]xpub.Platform(nil), t.Platforms...)
	out.Results = append([]xpub.Result(nil), t.Results...)
	out.Content = t.Content.Clone()
	return out
}
