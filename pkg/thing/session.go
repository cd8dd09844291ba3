package thing

import (
	"context"
	"fmt"
	"time"

	"github.com/conduit-lang/pim/pkg/backend"
	"github.com/conduit-lang/pim/pkg/query"
	"github.com/conduit-lang/pim/pkg/schema"
	"go.uber.org/zap"
)

// SessionConfig holds configuration for a session
type SessionConfig struct {
	// Logger receives debug output about queries and relation fetches
	Logger *zap.Logger
	// MaxFanOut bounds the parents resolved concurrently for one relation hop
	MaxFanOut int
}

// DefaultSessionConfig returns the default session configuration
func DefaultSessionConfig() SessionConfig {
	return SessionConfig{
		Logger:    zap.NewNop(),
		MaxFanOut: 8,
	}
}

// Session ties a schema graph, a backend and the identity map of the things it loaded
type Session struct {
	graph   *schema.Graph
	backend backend.Backend
	store   *Store
	logger  *zap.Logger
	fanOut  int
}

// Result is the outcome of a things query
type Result struct {
	Things []*Thing
	// Page is set for paginated queries
	Page *query.PageInfo
}

// NewSession creates a session with the default configuration
func NewSession(g *schema.Graph, b backend.Backend) *Session {
	return NewSessionWithConfig(g, b, DefaultSessionConfig())
}

// NewSessionWithConfig creates a session with custom configuration
func NewSessionWithConfig(g *schema.Graph, b backend.Backend, config SessionConfig) *Session {
	if config.Logger == nil {
		config.Logger = zap.NewNop()
	}
	if config.MaxFanOut < 1 {
		config.MaxFanOut = 1
	}
	s := &Session{
		graph:   g,
		backend: b,
		store:   NewStore(g),
		logger:  config.Logger,
		fanOut:  config.MaxFanOut,
	}
	s.store.session = s
	return s
}

// Open fetches the schema from the backend and creates a session for it
func Open(ctx context.Context, b backend.Backend, config SessionConfig) (*Session, error) {
	raw, err := backend.Get(ctx, b, backend.EndpointSchema, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to load schema: %w", err)
	}
	g, err := schema.Parse(raw)
	if err != nil {
		return nil, err
	}
	return NewSessionWithConfig(g, b, config), nil
}

// Graph returns the schema graph
func (s *Session) Graph() *schema.Graph { return s.graph }

// Store returns the identity map of loaded things
func (s *Session) Store() *Store { return s.store }

// Query executes a builder against the backend and merges the returned rows
func (s *Session) Query(ctx context.Context, b *query.Builder) (*Result, error) {
	req := b.Request()
	res, err := s.graph.MustResource(req.Resource)
	if err != nil {
		return nil, err
	}
	if !req.Return.Valid() {
		return nil, fmt.Errorf("%w: %q", query.ErrUnsupportedReturn, req.Return)
	}

	start := time.Now()
	var (
		rows   []Row
		result Result
	)
	switch req.Return {
	case query.ReturnFirst:
		var row *Row
		if err := backend.GetInto(ctx, s.backend, backend.EndpointThings, req, &row); err != nil {
			return nil, err
		}
		if row != nil {
			rows = []Row{*row}
		}
	case query.ReturnList:
		if err := backend.GetInto(ctx, s.backend, backend.EndpointThings, req, &rows); err != nil {
			return nil, err
		}
	case query.ReturnPaginate:
		var page query.Page[Row]
		if err := backend.GetInto(ctx, s.backend, backend.EndpointThings, req, &page); err != nil {
			return nil, err
		}
		rows = page.Data
		info := page.Info()
		result.Page = &info
	}

	result.Things, err = s.store.Merge(res, rows)
	if err != nil {
		return nil, err
	}

	s.logger.Debug("things query",
		zap.String("resource", res.Name()),
		zap.String("return", string(req.Return)),
		zap.Int("rows", len(rows)),
		zap.Duration("duration", time.Since(start)),
	)
	return &result, nil
}

// First returns the first matching thing, or nil when nothing matches
func (s *Session) First(ctx context.Context, b *query.Builder) (*Thing, error) {
	res, err := s.Query(ctx, b.First())
	if err != nil {
		return nil, err
	}
	if len(res.Things) == 0 {
		return nil, nil
	}
	return res.Things[0], nil
}

// List returns every matching thing
func (s *Session) List(ctx context.Context, b *query.Builder) ([]*Thing, error) {
	res, err := s.Query(ctx, b.List())
	if err != nil {
		return nil, err
	}
	return res.Things, nil
}

// Paginate returns one page of matching things
func (s *Session) Paginate(ctx context.Context, b *query.Builder, page, perPage int) (*Result, error) {
	return s.Query(ctx, b.Paginate(page, perPage))
}

// fetchRelated loads the things related to t through f, preloading the remaining path
func (s *Session) fetchRelated(ctx context.Context, t *Thing, f *schema.Field, preload string) ([]*Thing, error) {
	target, err := f.RelatedResource()
	if err != nil {
		return nil, err
	}

	b := query.New(target.Ref()).RelatedTo(f.Ref(), t.ID()).List()
	if preload != "" {
		b.With(preload)
	}

	s.logger.Debug("fetching relation",
		zap.String("thing", t.String()),
		zap.String("alias", f.Name()),
		zap.String("preload", preload),
	)
	res, err := s.Query(ctx, b)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve %s of %s: %w", f.Name(), t, err)
	}
	return res.Things, nil
}
