package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/hpungsan/dtbar/internal/errors"
	"github.com/hpungsan/dtbar/internal/record"
)

// Script file names expected in the script directory.
const (
	SearchScript = "search.js"
	RecordScript = "record.js"
	GroupScript  = "group.js"
)

// Runner executes an external command and returns its stdout.
type Runner interface {
	Run(ctx context.Context, name string, args ...string) ([]byte, error)
}

// ExecRunner runs commands with os/exec.
type ExecRunner struct{}

// Run implements Runner. A non-zero exit is reported with the command's stderr.
func (ExecRunner) Run(ctx context.Context, name string, args ...string) ([]byte, error) {
	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		if msg := strings.TrimSpace(stderr.String()); msg != "" {
			return nil, fmt.Errorf("%w: %s", err, msg)
		}
		return nil, err
	}
	return stdout.Bytes(), nil
}

// JXAClient implements Client by running JavaScript for Automation scripts
// through osascript.
type JXAClient struct {
	runner      Runner
	scriptDir   string
	excludedTag string
}

// Option configures a JXAClient.
type Option func(*JXAClient)

// WithRunner replaces the command runner (tests use a fake).
func WithRunner(r Runner) Option {
	return func(c *JXAClient) { c.runner = r }
}

// WithExcludedTag hides records carrying tag from every search.
func WithExcludedTag(tag string) Option {
	return func(c *JXAClient) { c.excludedTag = tag }
}

// NewJXAClient creates a client whose scripts live in scriptDir.
func NewJXAClient(scriptDir string, opts ...Option) *JXAClient {
	c := &JXAClient{
		runner:    ExecRunner{},
		scriptDir: scriptDir,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// searchArg is the JSON argument of search.js.
type searchArg struct {
	Query string `json:"query"`
	Field string `json:"field"`
	Range []int  `json:"range,omitempty"`
}

// batchArg is the JSON argument of search.js in batch mode.
type batchArg struct {
	Batch []searchArg `json:"batch"`
}

func (c *JXAClient) toArg(req Request) searchArg {
	field := req.Field
	if field == "" {
		field = FieldPart
	}
	arg := searchArg{
		Query: WithExclusion(req.Query, c.excludedTag),
		Field: field,
	}
	if req.Limit > 0 {
		arg.Range = []int{0, req.Limit}
	}
	return arg
}

// Search implements Searcher.
func (c *JXAClient) Search(ctx context.Context, req Request) ([]record.Record, error) {
	out, err := c.runScript(ctx, SearchScript, c.toArg(req))
	if err != nil {
		return nil, errors.NewBackend("search", err)
	}

	var hits []wireRecord
	if err := json.Unmarshal(out, &hits); err != nil {
		return nil, errors.NewBackend("search", fmt.Errorf("malformed response: %w", err))
	}
	records, err := toRecords(hits, true)
	if err != nil {
		return nil, errors.NewBackend("search", err)
	}
	return records, nil
}

// BatchSearch implements Searcher with a single osascript invocation.
func (c *JXAClient) BatchSearch(ctx context.Context, reqs []Request) ([][]record.Record, error) {
	if len(reqs) == 0 {
		return nil, nil
	}

	arg := batchArg{Batch: make([]searchArg, len(reqs))}
	for i, req := range reqs {
		arg.Batch[i] = c.toArg(req)
	}

	out, err := c.runScript(ctx, SearchScript, arg)
	if err != nil {
		return nil, errors.NewBackend("batch search", err)
	}

	var lists [][]wireRecord
	if err := json.Unmarshal(out, &lists); err != nil {
		return nil, errors.NewBackend("batch search", fmt.Errorf("malformed response: %w", err))
	}
	if len(lists) != len(reqs) {
		return nil, errors.NewBackend("batch search",
			fmt.Errorf("got %d result lists for %d requests", len(lists), len(reqs)))
	}

	results := make([][]record.Record, len(lists))
	for i, hits := range lists {
		records, err := toRecords(hits, true)
		if err != nil {
			return nil, errors.NewBackend("batch search", err)
		}
		results[i] = records
	}
	return results, nil
}

// Fetch implements Fetcher.
func (c *JXAClient) Fetch(ctx context.Context, uuid string) (record.Record, error) {
	out, err := c.run(ctx, RecordScript, uuid)
	if err != nil {
		return record.Record{}, errors.NewFetch(uuid, err)
	}

	var w wireRecord
	if err := json.Unmarshal(out, &w); err != nil {
		return record.Record{}, errors.NewFetch(uuid, fmt.Errorf("malformed response: %w", err))
	}
	r, err := w.toRecord(true)
	if err != nil {
		return record.Record{}, errors.NewFetch(uuid, err)
	}
	if r.UUID != uuid {
		return record.Record{}, errors.NewFetch(uuid, fmt.Errorf("backend returned record %q", r.UUID))
	}
	return r, nil
}

// GroupChildren implements Browser.
func (c *JXAClient) GroupChildren(ctx context.Context, uuid string) ([]record.Record, error) {
	out, err := c.run(ctx, GroupScript, uuid)
	if err != nil {
		return nil, errors.NewBackend("group children", err)
	}

	var hits []wireRecord
	if err := json.Unmarshal(out, &hits); err != nil {
		return nil, errors.NewBackend("group children", fmt.Errorf("malformed response: %w", err))
	}
	records, err := toRecords(hits, false)
	if err != nil {
		return nil, errors.NewBackend("group children", err)
	}
	return records, nil
}

// Open implements Opener. With activate set DEVONthink is brought to the
// front first, which turns the open into a reveal.
func (c *JXAClient) Open(ctx context.Context, url string, activate bool) error {
	if activate {
		if _, err := c.runner.Run(ctx, "osascript", "-e", `tell application "DEVONthink" to activate`); err != nil {
			return errors.NewBackend("activate", err)
		}
	}
	if _, err := c.runner.Run(ctx, "/usr/bin/open", url); err != nil {
		return errors.NewBackend("open", err)
	}
	return nil
}

func (c *JXAClient) runScript(ctx context.Context, script string, arg any) ([]byte, error) {
	data, err := json.Marshal(arg)
	if err != nil {
		return nil, err
	}
	return c.run(ctx, script, string(data))
}

func (c *JXAClient) run(ctx context.Context, script, arg string) ([]byte, error) {
	return c.runner.Run(ctx, "osascript", "-l", "JavaScript", filepath.Join(c.scriptDir, script), arg)
}
