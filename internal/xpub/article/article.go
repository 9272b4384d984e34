// Package article publishes long-form, markdown-capable articles.
package article

import (
	"context"

	"github.com/blacktop/xpub/internal/xpub"
)

const platform = xpub.Article

// Adapt strips decorative markers, bounds title and body, keeps at most five
// tags and marks the body as markdown.
func Adapt(c *xpub.Content) *xpub.Content {
	l, _ := xpub.LimitsFor(platform)
	out := c.Clone()
	out.Title = xpub.Truncate(xpub.StripEmoji(out.Title), l.MaxTitle)
	out.Body = xpub.Truncate(xpub.StripEmoji(out.Body), l.MaxBody)
	out.Description = xpub.Truncate(out.Description, l.MaxDescription)
	out.Media = xpub.CapStrings(out.Media, l.MaxMedia)
	out.Tags = xpub.CapStrings(out.Tags, l.MaxTags)
	out.Ext.Markdown = l.Markdown
	return out
}

// Publisher implements xpub.Publisher for articles.
type Publisher struct {
	transport xpub.Transport
}

// New returns an article publisher delivering through t.
func New(t xpub.Transport) xpub.Publisher {
	return &Publisher{transport: t}
}

func (p *Publisher) Platform() xpub.Platform { return platform }

// Validate enforces the minimum title and body lengths. Markers are stripped
// before measuring since the adapter removes them.
func (p *Publisher) Validate(c *xpub.Content) error {
	if c == nil {
		return xpub.CheckLimits(platform, c)
	}
	stripped := c.Clone()
	stripped.Title = xpub.StripEmoji(c.Title)
	stripped.Body = xpub.StripEmoji(c.Body)
	return xpub.CheckLimits(platform, stripped)
}

func (p *Publisher) Adapt(c *xpub.Content) *xpub.Content { return Adapt(c) }

func (p *Publisher) Publish(ctx context.Context, c *xpub.Content) (xpub.Result, error) {
	return xpub.Deliver(ctx, p.transport, platform, c)
}

// PostPublish records that the article went out as markdown.
func (p *Publisher) PostPublish(r xpub.Result) xpub.Result {
	if !r.Success() {
		return r
	}
	return r.WithExtra("format", "markdown")
}
