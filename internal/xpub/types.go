package xpub

import (
	"errors"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Extensions carries the platform-specific fields a Content may hold.
type Extensions struct {
	// Status is the short status update posted alongside a video.
	Status string
	// Markdown reports whether the body is rendered as rich text.
	Markdown bool
	// Location is the pickup or shipping location of a marketplace listing.
	Location string
	// Condition describes the state of a marketplace item ("new", "used", ...).
	Condition string
}

// Content defines the payload shared across all platforms.
//
// Content is treated as immutable once built: adapters return a Clone with
// their changes applied and never touch the source value.
type Content struct {
	Title       string
	Body        string
	Description string
	Media       []string
	Tags        []string
	Category    string
	Price       *decimal.Decimal
	Ext         Extensions
	CreatedAt   time.Time
}

// Option customizes a Content during construction.
type Option func(*Content)

func WithBody(body string) Option { return func(c *Content) { c.Body = body } }

func WithDescription(desc string) Option { return func(c *Content) { c.Description = desc } }

func WithMedia(media ...string) Option {
	return func(c *Content) { c.Media = append(c.Media, media...) }
}

func WithTags(tags ...string) Option {
	return func(c *Content) { c.Tags = append(c.Tags, tags...) }
}

func WithCategory(category string) Option { return func(c *Content) { c.Category = category } }

func WithPrice(price decimal.Decimal) Option {
	return func(c *Content) { c.Price = &price }
}

func WithExtensions(ext Extensions) Option { return func(c *Content) { c.Ext = ext } }

// NewContent builds a Content with the given title. The title must not be
// blank and a price, when given, must be positive.
func NewContent(title string, opts ...Option) (*Content, error) {
	c := &Content{
		Title:     strings.TrimSpace(title),
		CreatedAt: time.Now().UTC(),
	}
	if c.Title == "" {
		return nil, errors.New("content title is required")
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.Price != nil && !c.Price.IsPositive() {
		return nil, errors.New("content price must be positive")
	}
	return c, nil
}

// Clone returns a deep copy of c.
func (c *Content) Clone() *Content {
	if c == nil {
		return nil
	}
	out := *c
	out.Media = append([]string(nil), c.Media...)
	out.Tags = append([]string(nil), c.Tags...)
	if c.Price != nil {
		price := *c.Price
		out.Price = &price
	}
	return &out
}
