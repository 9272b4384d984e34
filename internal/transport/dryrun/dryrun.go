// Package dryrun provides a transport that records deliveries instead of
// performing them.
package dryrun

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"github.com/blacktop/xpub/internal/logutil"
	"github.com/blacktop/xpub/internal/xpub"
)

const providerName = "dryrun"

// Delivery is one recorded call to Deliver.
type Delivery struct {
	Platform xpub.Platform
	Content  *xpub.Content
	PostID   string
}

// Transport logs what would be published and returns a synthetic receipt.
type Transport struct {
	mu         sync.Mutex
	deliveries []Delivery
}

// New returns an empty dry-run transport.
func New() *Transport {
	return &Transport{}
}

// Name identifies the transport.
func (t *Transport) Name() string { return providerName }

func (t *Transport) Deliver(ctx context.Context, p xpub.Platform, c *xpub.Content) (xpub.Receipt, error) {
	if err := ctx.Err(); err != nil {
		return xpub.Receipt{}, err
	}
	id := uuid.NewString()
	logutil.Infof("[dry-run] would publish to %s: title=%q media=%d tags=%d", p, c.Title, len(c.Media), len(c.Tags))

	t.mu.Lock()
	t.deliveries = append(t.deliveries, Delivery{Platform: p, Content: c.Clone(), PostID: id})
	t.mu.Unlock()

	return xpub.Receipt{
		PostID: id,
		URL:    "dryrun://" + p.String() + "/" + id,
	}, nil
}

// Deliveries returns what has been recorded so far, oldest first.
func (t *Transport) Deliveries() []Delivery {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]Delivery(nil), t.deliveries...)
}
