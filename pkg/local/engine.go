// Package local implements an in-memory backend. It evaluates the same request payloads
// as the remote service directly against a store of things, so a session can run
// entirely offline with the same filter semantics for the operators it supports.
package local

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/conduit-lang/pim/pkg/backend"
	"github.com/conduit-lang/pim/pkg/query"
	"github.com/conduit-lang/pim/pkg/schema"
	"github.com/conduit-lang/pim/pkg/thing"
	"go.uber.org/zap"
)

// EngineConfig holds configuration for the engine
type EngineConfig struct {
	Logger *zap.Logger
}

// Engine is the in-memory backend
type Engine struct {
	store      *thing.Store
	logger     *zap.Logger
	predicates map[query.Operator]predicate
}

var _ backend.Backend = (*Engine)(nil)

// NewEngine creates an engine over a store
func NewEngine(store *thing.Store) *Engine {
	return NewEngineWithConfig(store, EngineConfig{})
}

// NewEngineWithConfig creates an engine with custom configuration
func NewEngineWithConfig(store *thing.Store, config EngineConfig) *Engine {
	if config.Logger == nil {
		config.Logger = zap.NewNop()
	}
	return &Engine{
		store:      store,
		logger:     config.Logger,
		predicates: predicates(),
	}
}

// Store returns the store the engine reads from
func (e *Engine) Store() *thing.Store { return e.store }

// Request implements backend.Backend for "get schema" and "get things"
func (e *Engine) Request(ctx context.Context, method backend.Method, endpoint string, data any) (json.RawMessage, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if method != backend.MethodGet {
		return nil, fmt.Errorf("%w: %s %s", ErrUnsupportedRequest, method, endpoint)
	}

	switch endpoint {
	case backend.EndpointSchema:
		return json.Marshal(e.store.Graph().Snapshot())
	case backend.EndpointThings:
		req, err := decodeRequest(data)
		if err != nil {
			return nil, err
		}
		out, err := e.Things(req)
		if err != nil {
			return nil, err
		}
		return json.Marshal(out)
	default:
		return nil, fmt.Errorf("%w: %s %s", ErrUnsupportedRequest, method, endpoint)
	}
}

// decodeRequest normalizes a payload through its JSON form so the engine accepts
// exactly what the remote service accepts
func decodeRequest(data any) (query.Request, error) {
	var raw []byte
	switch d := data.(type) {
	case nil:
		return query.Request{}, fmt.Errorf("%w: missing payload", ErrInvalidRequest)
	case []byte:
		raw = d
	case json.RawMessage:
		raw = d
	default:
		var err error
		if raw, err = json.Marshal(d); err != nil {
			return query.Request{}, fmt.Errorf("%w: %v", ErrInvalidRequest, err)
		}
	}

	var req query.Request
	if err := json.Unmarshal(raw, &req); err != nil {
		return query.Request{}, fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}
	return req, nil
}

// Things evaluates a request and returns the response value for its return mode:
// a thing.Row or nil, a []thing.Row, or a query.Page[thing.Row]
func (e *Engine) Things(req query.Request) (any, error) {
	if !req.Return.Valid() {
		return nil, fmt.Errorf("%w: %q", query.ErrUnsupportedReturn, req.Return)
	}

	found, err := e.Find(req)
	if err != nil {
		return nil, err
	}

	sel := req.Selector()
	rows := make([]thing.Row, 0, len(found))
	for _, t := range found {
		rows = append(rows, t.Row(sel))
	}

	switch req.Return {
	case query.ReturnFirst:
		if len(rows) == 0 {
			return nil, nil
		}
		return rows[0], nil
	case query.ReturnPaginate:
		return query.Paginate(rows, req.PageNumber(), req.PageSize())
	default:
		return rows, nil
	}
}

// Find returns the things matching a request after filters and offset
func (e *Engine) Find(req query.Request) ([]*thing.Thing, error) {
	g := e.store.Graph()
	res, err := g.MustResource(req.Resource)
	if err != nil {
		return nil, err
	}

	candidates, err := e.candidates(res, req.RelatedTo)
	if err != nil {
		return nil, err
	}

	for _, c := range req.Filters {
		m, err := e.compile(res, c)
		if err != nil {
			return nil, err
		}
		if m == nil {
			continue
		}
		kept := make([]*thing.Thing, 0, len(candidates))
		for _, t := range candidates {
			if m(t) {
				kept = append(kept, t)
			}
		}
		candidates = kept
	}

	if req.Offset != nil && *req.Offset > 0 {
		candidates = candidates[min(*req.Offset, len(candidates)):]
	}

	e.logger.Debug("local things query",
		zap.String("resource", res.Name()),
		zap.Int("filters", len(req.Filters)),
		zap.Int("matches", len(candidates)),
	)
	return candidates, nil
}

func (e *Engine) candidates(res *schema.Resource, rel *query.RelatedTo) ([]*thing.Thing, error) {
	if rel == nil {
		return e.store.Things(res.Ref())
	}

	f, err := relatedToField(res, rel.Field)
	if err != nil {
		return nil, err
	}
	anchor, ok := e.store.Get(f.Resource().Ref(), rel.Thing)
	if !ok {
		return nil, fmt.Errorf("%w: %s/%s", ErrThingNotFound, f.Resource().Name(), rel.Thing)
	}
	return anchor.RelationSync(f.Name()), nil
}

// relatedToField resolves the anchor field of a related-to request. The field lives on
// the anchor's resource and must point at res.
func relatedToField(res *schema.Resource, ref schema.Ref) (*schema.Field, error) {
	g := res.Graph()
	if _, byID := ref.ID(); byID {
		f, ok := g.Field(ref)
		if !ok {
			return nil, fmt.Errorf("%w: %s", schema.ErrFieldNotFound, ref)
		}
		target, err := f.RelatedResource()
		if err != nil {
			return nil, err
		}
		if target != res {
			return nil, fmt.Errorf("%w: field %s does not relate to %s", ErrInvalidRequest, f.Name(), res.Name())
		}
		return f, nil
	}

	for _, r := range g.Resources() {
		f, ok := r.Field(ref)
		if !ok || !f.IsRelation() {
			continue
		}
		if target, err := f.RelatedResource(); err == nil && target == res {
			return f, nil
		}
	}
	return nil, fmt.Errorf("%w: relation %s to %s", schema.ErrFieldNotFound, ref, res.Name())
}
