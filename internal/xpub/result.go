package xpub

import (
	"maps"
	"time"
)

// Status is the state of a single platform delivery.
type Status string

const (
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusSuccess    Status = "success"
	StatusFailed     Status = "failed"
	StatusCancelled  Status = "cancelled"
)

// Result is the outcome of delivering one Content to one platform.
// Results are values; copies never share the Extra map.
type Result struct {
	Platform    Platform
	Status      Status
	PostID      string
	URL         string
	Error       string
	Attempts    int
	CompletedAt time.Time
	Duration    time.Duration
	Extra       map[string]string
}

// Success reports whether the delivery succeeded.
func (r Result) Success() bool { return r.Status == StatusSuccess }

// Succeeded builds a successful Result from a transport receipt.
func Succeeded(p Platform, rc Receipt) Result {
	return Result{
		Platform:    p,
		Status:      StatusSuccess,
		PostID:      rc.PostID,
		URL:         rc.URL,
		CompletedAt: time.Now().UTC(),
		Extra:       maps.Clone(rc.Extra),
	}
}

// Failed builds a failed Result carrying err's message.
func Failed(p Platform, err error) Result {
	msg := "unknown error"
	if err != nil {
		msg = err.Error()
	}
	return Result{
		Platform:    p,
		Status:      StatusFailed,
		Error:       msg,
		CompletedAt: time.Now().UTC(),
	}
}

// WithExtra returns a copy of r with key set in Extra.
func (r Result) WithExtra(key, value string) Result {
	extra := maps.Clone(r.Extra)
	if extra == nil {
		extra = make(map[string]string, 1)
	}
	extra[key] = value
	r.Extra = extra
	return r
}

// WithTiming returns a copy of r stamped with attempt count and elapsed time.
func (r Result) WithTiming(attempts int, elapsed time.Duration) Result {
	r.Attempts = attempts
	r.Duration = elapsed
	r.Extra = maps.Clone(r.Extra)
	if r.CompletedAt.IsZero() {
		r.CompletedAt = time.Now().UTC()
	}
	return r
}
