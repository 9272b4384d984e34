// Package transport holds helpers shared by the delivery clients.
package transport

import (
	"os"
	"strings"
)

// FirstLocalFile returns the first media reference that names a readable
// regular file on disk, or "" when there is none. Remote references are
// left to automation transports.
func FirstLocalFile(media []string) string {
	for _, m := range media {
		m = strings.TrimSpace(m)
		if m == "" || strings.Contains(m, "://") {
			continue
		}
		if info, err := os.Stat(m); err == nil && info.Mode().IsRegular() {
			return m
		}
	}
	return ""
}
