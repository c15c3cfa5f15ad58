// Package backend talks to DEVONthink.
//
// Every call is a blocking request/response exchange with an osascript
// process. Failures are returned as BACKEND_ERROR (or FETCH_ERROR for content
// fetches) and are never retried here; retry policy belongs to the caller.
//
// # Script protocol
//
// JXAClient runs three scripts from its script directory as
// "osascript -l JavaScript <dir>/<script> <arg>" and reads JSON from stdout.
// A non-zero exit is a failure; stderr is carried in the error.
//
// search.js takes a JSON argument in one of two forms:
//
//	{"query": "...", "field": "part", "range": [0, 80]}
//	{"batch": [{"query": ...}, {"query": ...}]}
//
// "range" is omitted when there is no cap. The single form prints an array
// of hits; the batch form runs every request in the same process and prints
// an array holding one hit array per request, in request order. A hit is
//
//	{"uuid", "score", "modificationDate", "name", "kind", "location",
//	 "type", "filename", "path"}
//
// with modificationDate in ISO-8601 (offset or Z, optional fractional
// seconds). uuid and modificationDate are required.
//
// record.js takes a bare uuid and prints one hit object for that record;
// modificationDate is required. group.js takes a bare group uuid and prints
// an array of hits for its children, where modificationDate may be omitted.
package backend

import (
	"context"

	"github.com/hpungsan/dtbar/internal/record"
)

// Field scopes.
const (
	FieldPart = "part"
	FieldAll  = "all"
)

// Request is one scored search.
type Request struct {
	Query string
	Field string
	// Limit truncates the result set; 0 means no limit.
	Limit int
}

// Searcher runs scored searches. Hits carry uuid, score, modification date
// and minimal display metadata.
type Searcher interface {
	Search(ctx context.Context, req Request) ([]record.Record, error)

	// BatchSearch runs independent requests within one backend invocation
	// and returns one result list per request, in request order.
	BatchSearch(ctx context.Context, reqs []Request) ([][]record.Record, error)
}

// Fetcher loads the full record for one uuid.
type Fetcher interface {
	Fetch(ctx context.Context, uuid string) (record.Record, error)
}

// Browser lists the children of a group.
type Browser interface {
	GroupChildren(ctx context.Context, uuid string) ([]record.Record, error)
}

// Opener hands a reference URL to the system.
type Opener interface {
	Open(ctx context.Context, url string, activate bool) error
}

// Client is the full DEVONthink surface.
type Client interface {
	Searcher
	Fetcher
	Browser
	Opener
}
