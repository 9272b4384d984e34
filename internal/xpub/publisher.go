package xpub

import (
	"context"
	"fmt"
	"strings"
)

// Publisher validates, shapes and delivers Content for one platform.
type Publisher interface {
	Platform() Platform
	// Validate checks the structural rules of the platform. It returns a
	// *ValidationError when the content cannot be published as is.
	Validate(c *Content) error
	// Adapt returns a platform-shaped copy of c.
	Adapt(c *Content) *Content
	// Publish delivers already adapted content. An error signals an
	// unexpected failure; ordinary rejections come back as failed Results.
	Publish(ctx context.Context, c *Content) (Result, error)
}

// PostPublisher is implemented by publishers that enrich their Results.
type PostPublisher interface {
	PostPublish(r Result) Result
}

// PrePublish validates c for p and returns the adapted copy.
func PrePublish(p Publisher, c *Content) (*Content, error) {
	if c == nil {
		return nil, Invalid(p.Platform(), "content is required")
	}
	if err := p.Validate(c); err != nil {
		return nil, err
	}
	return p.Adapt(c), nil
}

// PostPublish runs the publisher's PostPublish hook when it has one.
func PostPublish(p Publisher, r Result) Result {
	if pp, ok := p.(PostPublisher); ok {
		return pp.PostPublish(r)
	}
	return r
}

// Receipt is what a transport hands back after a delivery.
type Receipt struct {
	PostID string
	URL    string
	Extra  map[string]string
}

// Transport abstracts the client that performs the actual delivery, an
// automation driver or an API client.
type Transport interface {
	Name() string
	Deliver(ctx context.Context, p Platform, c *Content) (Receipt, error)
}

// Deliver publishes c through t and converts the receipt into a Result.
func Deliver(ctx context.Context, t Transport, p Platform, c *Content) (Result, error) {
	if t == nil {
		return Result{}, fmt.Errorf("%s: no transport configured", p)
	}
	rc, err := t.Deliver(ctx, p, c)
	if err != nil {
		return Failed(p, fmt.Errorf("%s: %w", t.Name(), err)), nil
	}
	return Succeeded(p, rc).WithExtra("transport", t.Name()), nil
}

// RenderStatus flattens c into a single status text of at most limit
// characters: headline, text and hashtags.
func RenderStatus(c *Content, limit int) string {
	headline := c.Ext.Status
	if headline == "" {
		headline = c.Title
	}
	text := c.Description
	if text == "" {
		text = c.Body
	}

	parts := []string{strings.TrimSpace(headline)}
	if t := strings.TrimSpace(text); t != "" {
		parts = append(parts, t)
	}
	if tags := hashtags(c.Tags); tags != "" {
		parts = append(parts, tags)
	}
	return Truncate(strings.Join(parts, "\n\n"), limit)
}

func hashtags(tags []string) string {
	out := make([]string, 0, len(tags))
	for _, tag := range tags {
		tag = strings.Join(strings.Fields(strings.TrimPrefix(strings.TrimSpace(tag), "#")), "")
		if tag != "" {
			out = append(out, "#"+tag)
		}
	}
	return strings.Join(out, " ")
}
