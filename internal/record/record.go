// Package record defines the DEVONthink record descriptors passed between the
// backend client, the caches and the ranking step.
package record

import (
	"fmt"
	"time"
)

// Payload holds the display attributes of a record. The cache and
// synchronization logic carry it through without inspecting it.
type Payload struct {
	Name     string `json:"name"`
	Kind     string `json:"kind,omitempty"`
	Location string `json:"location,omitempty"`
	Type     string `json:"type,omitempty"`
	Filename string `json:"filename,omitempty"`
	Path     string `json:"path,omitempty"`
}

// Record is a backend document, tag or group descriptor.
type Record struct {
	// UUID is the stable DEVONthink identifier
	UUID string

	// ModifiedAt is the backend-side modification date
	ModifiedAt time.Time

	// Score is the relevance score; only comparable within one result set
	Score float64

	Payload
}

// Record types with special handling.
const (
	TypeGroup      = "group"
	TypeSmartGroup = "smart group"
)

// IsGroup reports whether the record is a group or smart group.
func (r Record) IsGroup() bool {
	return r.Type == TypeGroup || r.Type == TypeSmartGroup
}

// IsSmartGroup reports whether the record is a smart group.
func (r Record) IsSmartGroup() bool {
	return r.Type == TypeSmartGroup
}

// ReferenceURL returns the x-devonthink URL that opens the record.
func ReferenceURL(uuid string, smartGroup bool) string {
	if smartGroup {
		return fmt.Sprintf("x-devonthink-smartgroup//%s", uuid)
	}
	return fmt.Sprintf("x-devonthink-item://%s", uuid)
}

// UUIDs returns the identifiers of records in order.
func UUIDs(records []Record) []string {
	uuids := make([]string, len(records))
	for i, r := range records {
		uuids[i] = r.UUID
	}
	return uuids
}
