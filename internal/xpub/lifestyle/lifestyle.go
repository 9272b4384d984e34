// Package lifestyle publishes image notes to a lifestyle community.
package lifestyle

import (
	"context"
	"strconv"

	"github.com/blacktop/xpub/internal/xpub"
)

const platform = xpub.Lifestyle

// Marker is prepended to titles that carry no decorative marker of their own.
const Marker = "✨"

// Adapt shapes c into a note. The title always ends up with a marker inside
// the visible window, so adapting twice changes nothing.
func Adapt(c *xpub.Content) *xpub.Content {
	l, _ := xpub.LimitsFor(platform)
	out := c.Clone()
	title := out.Title
	if !xpub.HasEmoji(xpub.Truncate(title, l.MaxTitle)) {
		title = Marker + title
	}
	out.Title = xpub.Truncate(title, l.MaxTitle)
	out.Body = xpub.Truncate(out.Body, l.MaxBody)
	out.Description = xpub.Truncate(out.Description, l.MaxDescription)
	out.Media = xpub.CapStrings(out.Media, l.MaxMedia)
	out.Tags = xpub.CapStrings(out.Tags, l.MaxTags)
	return out
}

// Publisher implements xpub.Publisher for lifestyle notes.
type Publisher struct {
	transport xpub.Transport
}

// New returns a lifestyle publisher delivering through t.
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
	return r.WithExtra("images", strconv.Itoa(len(c.Media))), nil
}
