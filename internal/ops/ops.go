// Package ops implements the use cases shared by the CLI and MCP surfaces.
package ops

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/hpungsan/dtbar/internal/backend"
	"github.com/hpungsan/dtbar/internal/cache"
	"github.com/hpungsan/dtbar/internal/config"
	"github.com/hpungsan/dtbar/internal/db"
	"github.com/hpungsan/dtbar/internal/errors"
	"github.com/hpungsan/dtbar/internal/launchbar"
	"github.com/hpungsan/dtbar/internal/rank"
	"github.com/hpungsan/dtbar/internal/record"
	"github.com/hpungsan/dtbar/internal/syncer"
)

// MaxQueryLength bounds query text in runes.
const MaxQueryLength = 1000

// Service wires the backend, caches and synchronization engine together.
// It is built once per process.
type Service struct {
	db        *sql.DB
	cfg       *config.Config
	client    backend.Client
	content   *cache.ContentCache
	queries   *cache.QueryCache
	engine    *syncer.Engine
	formatter launchbar.Formatter
	now       func() time.Time
	log       *slog.Logger
}

// Option configures a Service.
type Option func(*Service)

// WithClock overrides time.Now for snapshots and picks.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// WithAction sets the LaunchBar action script named in items.
func WithAction(action string) Option {
	return func(s *Service) { s.formatter.Action = action }
}

// NewService creates a Service. A nil logger uses slog.Default().
func NewService(database *sql.DB, cfg *config.Config, client backend.Client, logger *slog.Logger, opts ...Option) (*Service, error) {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	if logger == nil {
		logger = slog.Default()
	}
	s := &Service{
		db:        database,
		cfg:       cfg,
		client:    client,
		formatter: launchbar.Formatter{ResourcesPath: cfg.ResourcesPath},
		now:       time.Now,
		log:       logger,
	}
	for _, opt := range opts {
		opt(s)
	}

	content, err := cache.NewContentCache(database, client,
		cache.WithLimit(cfg.CacheLimit()),
		cache.WithConcurrency(cfg.FetchConcurrency),
		cache.WithClock(s.now),
		cache.WithLogger(logger))
	if err != nil {
		return nil, err
	}
	s.content = content
	s.queries = cache.NewQueryCache(database, s.now)

	field := cfg.FieldScope
	if field == "" {
		field = config.FieldScopePart
	}
	s.engine = syncer.NewEngine(client, content, s.queries,
		syncer.WithField(field),
		syncer.WithLimit(cfg.ResultLimit()),
		syncer.WithStrictStaleness(cfg.StrictStaleness),
		syncer.WithLogger(logger))

	return s, nil
}

// ResultItem is one ranked record in an operation output.
type ResultItem struct {
	UUID       string    `json:"uuid"`
	Name       string    `json:"name"`
	Kind       string    `json:"kind,omitempty"`
	Location   string    `json:"location,omitempty"`
	Type       string    `json:"type,omitempty"`
	Path       string    `json:"path,omitempty"`
	Filename   string    `json:"filename,omitempty"`
	Score      float64   `json:"score"`
	ModifiedAt time.Time `json:"modified_at,omitzero"`
}

func toResultItems(records []record.Record) []ResultItem {
	items := make([]ResultItem, len(records))
	for i, r := range records {
		items[i] = ResultItem{
			UUID:       r.UUID,
			Name:       r.Name,
			Kind:       r.Kind,
			Location:   r.Location,
			Type:       r.Type,
			Path:       r.Path,
			Filename:   r.Filename,
			Score:      r.Score,
			ModifiedAt: r.ModifiedAt,
		}
	}
	return items
}

// rescore applies pick frequencies to records.
func (s *Service) rescore(ctx context.Context, records []record.Record) ([]record.Record, error) {
	counts, err := db.GetPickCounts(ctx, s.db, record.UUIDs(records))
	if err != nil {
		return nil, err
	}
	return rank.Rescore(records, rank.Counts(counts), s.cfg.Weight()), nil
}

func validateQuery(query string) (string, error) {
	if strings.TrimSpace(query) == "" {
		return "", errors.NewInvalidRequest("query is required")
	}
	if utf8.RuneCountInString(query) > MaxQueryLength {
		return "", errors.NewInvalidRequest(fmt.Sprintf("query exceeds maximum length of %d characters", MaxQueryLength))
	}
	return query, nil
}

func validateUUID(uuid string) (string, error) {
	uuid = strings.TrimSpace(uuid)
	if uuid == "" {
		return "", errors.NewInvalidRequest("uuid is required")
	}
	return uuid, nil
}
