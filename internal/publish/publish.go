// Package publish drives delivery of one content to registered platform
// publishers, with a bounded number of attempts per platform.
package publish

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/failsafe-go/failsafe-go"
	"github.com/failsafe-go/failsafe-go/retrypolicy"

	"github.com/blacktop/xpub/internal/logutil"
	"github.com/blacktop/xpub/internal/xpub"
)

// DefaultMaxRetries is the attempt ceiling used by PublishToPlatforms.
const DefaultMaxRetries = 3

// Options configures a Manager.
type Options struct {
	// MaxRetries is the default attempt ceiling; below 1 selects DefaultMaxRetries.
	MaxRetries int
	// RetryDelay is waited between two attempts on the same platform.
	RetryDelay time.Duration
}

// Manager is a registry of publishers keyed by platform.
type Manager struct {
	mu         sync.RWMutex
	publishers map[xpub.Platform]xpub.Publisher
	maxRetries int
	retryDelay time.Duration
}

// NewManager returns an empty Manager.
func NewManager(opts Options) *Manager {
	if opts.MaxRetries < 1 {
		opts.MaxRetries = DefaultMaxRetries
	}
	if opts.RetryDelay < 0 {
		opts.RetryDelay = 0
	}
	return &Manager{
		publishers: make(map[xpub.Platform]xpub.Publisher),
		maxRetries: opts.MaxRetries,
		retryDelay: opts.RetryDelay,
	}
}

// Register adds p, replacing any publisher already bound to its platform.
func (m *Manager) Register(p xpub.Publisher) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.publishers[p.Platform()] = p
	logutil.Debugf("registered publisher: platform=%s", p.Platform())
}

// Unregister removes the publisher bound to platform.
func (m *Manager) Unregister(platform xpub.Platform) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.publishers, platform)
}

// Publisher returns the publisher bound to platform.
func (m *Manager) Publisher(platform xpub.Platform) (xpub.Publisher, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.publishers[platform]
	return p, ok
}

// Platforms lists the registered platforms, sorted.
func (m *Manager) Platforms() []xpub.Platform {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]xpub.Platform, 0, len(m.publishers))
	for p := range m.publishers {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// outcome is one attempt's Result plus whether retrying could change it.
type outcome struct {
	result    xpub.Result
	permanent bool
}

// PublishToPlatform delivers c to platform, making at most maxRetries
// attempts in total. Validation failures are returned at once; failed
// deliveries and unexpected errors are retried until the ceiling.
//
// The attempt loop is not bound to ctx: a cancellation reaches each Publish
// call but only stops the task between platforms.
func (m *Manager) PublishToPlatform(ctx context.Context, c *xpub.Content, platform xpub.Platform, maxRetries int) xpub.Result {
	pub, ok := m.Publisher(platform)
	if !ok {
		logutil.Errorf("no publisher registered: platform=%s", platform)
		return xpub.Failed(platform, fmt.Errorf("%s: %w", platform, xpub.ErrNotRegistered))
	}
	if maxRetries < 1 {
		maxRetries = 1
	}

	start := time.Now()
	attempts := 0

	builder := retrypolicy.NewBuilder[outcome]().
		HandleIf(func(o outcome, err error) bool {
			return err != nil || (!o.result.Success() && !o.permanent)
		}).
		WithMaxRetries(maxRetries - 1).
		ReturnLastFailure()
	if m.retryDelay > 0 {
		builder = builder.WithDelay(m.retryDelay)
	}

	o, err := failsafe.With[outcome](builder.Build()).Get(func() (outcome, error) {
		attempts++
		o := m.attempt(ctx, pub, c)
		switch {
		case o.result.Success():
			logutil.Debugf("published: platform=%s attempt=%d/%d", platform, attempts, maxRetries)
		case o.permanent:
			logutil.Warnf("rejected: platform=%s reason=%s", platform, o.result.Error)
		case attempts < maxRetries:
			logutil.Warnf("attempt failed, retrying: platform=%s attempt=%d/%d error=%s", platform, attempts, maxRetries, o.result.Error)
		default:
			logutil.Errorf("giving up: platform=%s attempts=%d error=%s", platform, attempts, o.result.Error)
		}
		return o, nil
	})

	res := o.result
	if res.Status == "" {
		if err == nil {
			err = errors.New("no result")
		}
		res = xpub.Failed(platform, err)
	}
	return res.WithTiming(attempts, time.Since(start))
}

// attempt runs one pre-publish, publish and post-publish cycle. Panics and
// errors come back as failed Results.
func (m *Manager) attempt(ctx context.Context, pub xpub.Publisher, c *xpub.Content) (o outcome) {
	platform := pub.Platform()
	defer func() {
		if r := recover(); r != nil {
			o = outcome{result: xpub.Failed(platform, fmt.Errorf("panic: %v", r))}
		}
	}()

	adapted, err := xpub.PrePublish(pub, c)
	if err != nil {
		return outcome{result: xpub.Failed(platform, err), permanent: xpub.IsValidation(err)}
	}

	res, err := pub.Publish(ctx, adapted)
	if err != nil {
		return outcome{result: xpub.Failed(platform, err)}
	}
	res.Platform = platform
	if res.Status != xpub.StatusSuccess {
		res.Status = xpub.StatusFailed
		if res.Error == "" {
			res.Error = "publish failed"
		}
	}
	return outcome{result: xpub.PostPublish(pub, res)}
}

// PublishToPlatforms delivers c to each platform in turn using the default
// attempt ceiling. Delivery is sequential to respect per-platform pacing;
// Results come back in request order.
func (m *Manager) PublishToPlatforms(ctx context.Context, c *xpub.Content, platforms []xpub.Platform) []xpub.Result {
	results := make([]xpub.Result, 0, len(platforms))
	for _, p := range platforms {
		results = append(results, m.PublishToPlatform(ctx, c, p, m.maxRetries))
	}
	return results
}
