// Package video publishes videos and short posts with a cover image set.
package video

import (
	"context"

	"github.com/blacktop/xpub/internal/xpub"
)

const platform = xpub.Video

// Adapt bounds title, description and status update, and keeps the first
// three media references as covers.
func Adapt(c *xpub.Content) *xpub.Content {
	l, _ := xpub.LimitsFor(platform)
	out := c.Clone()
	out.Title = xpub.Truncate(out.Title, l.MaxTitle)
	out.Description = xpub.Truncate(out.Description, l.MaxDescription)
	out.Body = xpub.Truncate(out.Body, l.MaxBody)
	out.Media = xpub.CapStrings(out.Media, l.MaxMedia)
	out.Tags = xpub.CapStrings(out.Tags, l.MaxTags)
	if out.Ext.Status != "" {
		out.Ext.Status = xpub.Truncate(out.Ext.Status, l.MaxStatus)
	}
	return out
}

// Publisher implements xpub.Publisher for videos.
type Publisher struct {
	transport xpub.Transport
}

// New returns a video publisher delivering through t.
func New(t xpub.Transport) xpub.Publisher {
	return &Publisher{transport: t}
}

func (p *Publisher) Platform() xpub.Platform { return platform }

func (p *Publisher) Validate(c *xpub.Content) error {
	return xpub.CheckLimits(platform, c)
}

func (p *Publisher) Adapt(c *xpub.Content) *xpub.Content { return Adapt(c) }

func (p *Publisher) Publish(ctx context.Context, c *xpub.Content) (xpub.Result, error) {
	r, err := xpub.Deliver(ctx, p.transport, platform, c)
	if err != nil || !r.Success() {
		return r, err
	}
	if c.Ext.Status != "" {
		r = r.WithExtra("status_update", "posted")
	}
	return r, nil
}
