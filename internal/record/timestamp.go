package record

import (
	"fmt"
	"strings"
	"time"
)

// timestampLayouts are the ISO-8601 forms emitted by the JXA scripts.
// JSON.stringify(Date) yields RFC 3339 with a Z suffix; other sources use a
// numeric offset without a colon.
var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999Z0700",
	"2006-01-02T15:04:05Z0700",
}

// ParseTimestamp parses an ISO-8601 timestamp with offset.
func ParseTimestamp(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("invalid timestamp %q", s)
}

// SameInstant reports whether two modification dates are equal at the
// millisecond precision the backend reports.
func SameInstant(a, b time.Time) bool {
	return a.UnixMilli() == b.UnixMilli()
}
