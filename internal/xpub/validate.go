package xpub

import "strings"

// CheckLimits applies the structural rules every platform shares: a title,
// non-blank media references and the minimums and status ceiling from the
// platform's Limits. Ceilings the adapter enforces by truncation are not
// checked here.
func CheckLimits(p Platform, c *Content) error {
	if c == nil {
		return Invalid(p, "content is required")
	}
	if strings.TrimSpace(c.Title) == "" {
		return Invalid(p, "title is required")
	}
	for i, m := range c.Media {
		if strings.TrimSpace(m) == "" {
			return Invalid(p, "media #%d is empty", i+1)
		}
	}

	l, ok := LimitsFor(p)
	if !ok {
		return nil
	}
	if l.MinTitle > 0 && Length(c.Title) < l.MinTitle {
		return Invalid(p, "title must be at least %d characters", l.MinTitle)
	}
	if l.MinBody > 0 && Length(strings.TrimSpace(c.Body)) < l.MinBody {
		return Invalid(p, "body must be at least %d characters", l.MinBody)
	}
	if l.MinMedia > 0 && len(c.Media) < l.MinMedia {
		return Invalid(p, "at least %d media item(s) required", l.MinMedia)
	}
	if l.MaxStatus > 0 && Length(c.Ext.Status) > l.MaxStatus {
		return Invalid(p, "status update exceeds %d characters", l.MaxStatus)
	}
	return nil
}
