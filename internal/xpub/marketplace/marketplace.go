// Package marketplace publishes second-hand item listings.
package marketplace

import (
	"context"
	"net/url"

	"github.com/blacktop/xpub/internal/xpub"
)

const (
	platform = xpub.Marketplace
	itemURL  = "https://www.goofish.com/item?id="
)

// Adapt shapes c into a listing: short title, bounded description and body,
// at most nine photos and ten tags.
func Adapt(c *xpub.Content) *xpub.Content {
	l, _ := xpub.LimitsFor(platform)
	out := c.Clone()
	out.Title = xpub.Truncate(out.Title, l.MaxTitle)
	out.Description = xpub.Truncate(out.Description, l.MaxDescription)
	out.Body = xpub.Truncate(out.Body, l.MaxBody)
	out.Media = xpub.CapStrings(out.Media, l.MaxMedia)
	out.Tags = xpub.CapStrings(out.Tags, l.MaxTags)
	return out
}

// Publisher implements xpub.Publisher for the marketplace.
type Publisher struct {
	transport xpub.Transport
}

// New returns a marketplace publisher delivering through t.
func New(t xpub.Transport) xpub.Publisher {
	return &Publisher{transport: t}
}

func (p *Publisher) Platform() xpub.Platform { return platform }

// Validate requires a positive price and a category on top of the shared rules.
func (p *Publisher) Validate(c *xpub.Content) error {
	if err := xpub.CheckLimits(platform, c); err != nil {
		return err
	}
	if c.Price == nil {
		return xpub.Invalid(platform, "price is required")
	}
	if !c.Price.IsPositive() {
		return xpub.Invalid(platform, "price must be positive, got %s", c.Price.String())
	}
	if c.Category == "" {
		return xpub.Invalid(platform, "category is required")
	}
	return nil
}

func (p *Publisher) Adapt(c *xpub.Content) *xpub.Content { return Adapt(c) }

// Publish delivers the listing and records its price and category.
func (p *Publisher) Publish(ctx context.Context, c *xpub.Content) (xpub.Result, error) {
	r, err := xpub.Deliver(ctx, p.transport, platform, c)
	if err != nil || !r.Success() {
		return r, err
	}
	if c.Price != nil {
		r = r.WithExtra("price", c.Price.StringFixed(2))
	}
	if c.Ext.Location != "" {
		r = r.WithExtra("location", c.Ext.Location)
	}
	if c.Ext.Condition != "" {
		r = r.WithExtra("condition", c.Ext.Condition)
	}
	return r.WithExtra("category", c.Category), nil
}

// PostPublish fills in the item link when the transport only returned an id.
func (p *Publisher) PostPublish(r xpub.Result) xpub.Result {
	if r.Success() && r.URL == "" && r.PostID != "" {
		r.URL = itemURL + url.QueryEscape(r.PostID)
	}
	return r
}
