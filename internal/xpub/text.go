package xpub

import (
	"strings"
	"unicode"

	"github.com/rivo/uniseg"
)

// Ellipsis is appended to truncated text.
const Ellipsis = "..."

// Length counts user-perceived characters (grapheme clusters) in s.
func Length(s string) int {
	return uniseg.GraphemeClusterCount(s)
}

// Truncate shortens s to at most limit characters, ending with Ellipsis when
// anything was cut.
func Truncate(s string, limit int) string {
	return TruncateWith(s, limit, Ellipsis)
}

// TruncateWith shortens s to at most limit characters. Text that fits is
// returned unchanged; otherwise limit-len(suffix) characters are kept and the
// suffix appended. A suffix that does not fit is dropped.
func TruncateWith(s string, limit int, suffix string) string {
	if limit <= 0 {
		return ""
	}
	if Length(s) <= limit {
		return s
	}
	keep := limit - Length(suffix)
	if keep <= 0 {
		return head(s, limit)
	}
	return head(s, keep) + suffix
}

func head(s string, n int) string {
	var b strings.Builder
	g := uniseg.NewGraphemes(s)
	for i := 0; i < n && g.Next(); i++ {
		b.WriteString(g.Str())
	}
	return b.String()
}

// CapStrings returns a copy of the first n items.
func CapStrings(items []string, n int) []string {
	if n < 0 || len(items) <= n {
		return append([]string(nil), items...)
	}
	return append([]string(nil), items[:n]...)
}

// HasEmoji reports whether s contains a decorative marker.
func HasEmoji(s string) bool {
	g := uniseg.NewGraphemes(s)
	for g.Next() {
		if isEmoji(g.Runes()) {
			return true
		}
	}
	return false
}

// StripEmoji removes decorative markers from s together with the space that
// separated them from the surrounding text.
func StripEmoji(s string) string {
	var b strings.Builder
	dropSpace := false
	g := uniseg.NewGraphemes(s)
	for g.Next() {
		cluster := g.Str()
		if isEmoji(g.Runes()) {
			dropSpace = b.Len() == 0 || endsWithSpace(b.String())
			continue
		}
		if dropSpace && cluster == " " {
			dropSpace = false
			continue
		}
		dropSpace = false
		b.WriteString(cluster)
	}
	return strings.TrimSpace(b.String())
}

func endsWithSpace(s string) bool {
	if s == "" {
		return false
	}
	r := []rune(s)
	return unicode.IsSpace(r[len(r)-1])
}

func isEmoji(cluster []rune) bool {
	if len(cluster) == 0 {
		return false
	}
	r := cluster[0]
	switch {
	case r >= 0x1F000 && r <= 0x1FAFF: // pictographs, emoticons, transport, flags
		return true
	case r >= 0x2600 && r <= 0x27BF: // misc symbols and dingbats
		return true
	case r == 0x2B50 || r == 0x2B55 || r == 0x2B1B || r == 0x2B1C || r == 0x203C || r == 0x2049:
		return true
	}
	for _, c := range cluster[1:] {
		if c == 0xFE0F || c == 0x20E3 {
			return true
		}
	}
	return false
}
