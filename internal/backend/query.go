package backend

import (
	"fmt"
	"strings"
	"time"
)

// queryTimeLayout renders snapshot times in DEVONthink's date comparison syntax.
const queryTimeLayout = "2006-01-02T15:04:05"

// formatQueryTime renders t in local time, rounded down to the second.
// Rounding down keeps the >= delta bound inclusive of the snapshot instant.
func formatQueryTime(t time.Time) string {
	return t.Local().Truncate(time.Second).Format(queryTimeLayout)
}

// UntilQuery matches records of query added at or before t.
func UntilQuery(query string, t time.Time) string {
	return fmt.Sprintf("(%s) additionDate<=%s", query, formatQueryTime(t))
}

// AfterQuery matches records of query added or modified at or after t.
func AfterQuery(query string, t time.Time) string {
	ts := formatQueryTime(t)
	return fmt.Sprintf("(%s) (additionDate>=%s OR modificationDate>=%s)", query, ts, ts)
}

// WithExclusion appends a tag exclusion to query. An empty tag is a no-op.
func WithExclusion(query, tag string) string {
	tag = strings.TrimSpace(tag)
	if tag == "" {
		return query
	}
	return fmt.Sprintf("%s NOT tags:%s", query, tag)
}
