package thing

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/conduit-lang/pim/pkg/backend"
	"github.com/conduit-lang/pim/pkg/query"
	"github.com/conduit-lang/pim/pkg/schema"
	"github.com/conduit-lang/pim/pkg/schema/schematest"
	"github.com/conduit-lang/pim/pkg/selector"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeBackend answers related-to queries from canned rows and records every request
type fakeBackend struct {
	mu      sync.Mutex
	calls   []query.Request
	related map[string][]Row
	list    []Row
	fail    map[string]error
	gate    chan struct{}
	count   atomic.Int32
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{
		related: make(map[string][]Row),
		fail:    make(map[string]error),
	}
}

func relKey(field schema.FieldID, id schema.ThingID) string {
	return fmt.Sprintf("%d/%s", field, id)
}

func (f *fakeBackend) Request(ctx context.Context, method backend.Method, endpoint string, data any) (json.RawMessage, error) {
	req := data.(query.Request)
	f.count.Add(1)
	f.mu.Lock()
	f.calls = append(f.calls, req)
	f.mu.Unlock()

	if f.gate != nil {
		<-f.gate
	}

	rows := f.list
	if req.RelatedTo != nil {
		fid, _ := req.RelatedTo.Field.ID()
		key := relKey(schema.FieldID(fid), req.RelatedTo.Thing)
		if err := f.fail[key]; err != nil {
			return nil, err
		}
		rows = f.related[key]
	}
	if rows == nil {
		rows = []Row{}
	}

	switch req.Return {
	case query.ReturnFirst:
		if len(rows) == 0 {
			return json.RawMessage("null"), nil
		}
		return json.Marshal(rows[0])
	case query.ReturnPaginate:
		page, err := query.Paginate(rows, req.PageNumber(), req.PageSize())
		if err != nil {
			return nil, err
		}
		return json.Marshal(page)
	}
	return json.Marshal(rows)
}

func (f *fakeBackend) requests() []query.Request {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]query.Request(nil), f.calls...)
}

func row(id schema.ThingID, fields map[string]any) Row {
	if fields == nil {
		fields = map[string]any{}
	}
	return Row{ID: id, Fields: fields}
}

func setupSession(t *testing.T) (*Session, *fakeBackend) {
	t.Helper()
	fb := newFakeBackend()
	return NewSession(schematest.Graph(t), fb), fb
}

func mustThing(t *testing.T, s *Session, res schema.ResourceID, r Row) *Thing {
	t.Helper()
	resource, ok := s.Graph().Resource(schema.RefID(res))
	require.True(t, ok)
	things, err := s.Store().Merge(resource, []Row{r})
	require.NoError(t, err)
	return things[0]
}

func TestStore_MergeInternsThings(t *testing.T) {
	s, _ := setupSession(t)

	a := mustThing(t, s, schematest.Product, row("1", map[string]any{"sku": "A1", "title_en": "Shirt"}))
	b := mustThing(t, s, schematest.Product, row("1", map[string]any{"sku": "A2"}))

	assert.Same(t, a, b)
	assert.Equal(t, map[string]any{"sku": "A2", "title_en": "Shirt"}, a.Values())
	assert.Equal(t, 1, s.Store().Len())

	v, err := a.Value(schema.RefName("title"), "en")
	require.NoError(t, err)
	assert.Equal(t, "Shirt", v)

	_, err = a.Value(schema.RefName("nope"), "")
	assert.ErrorIs(t, err, schema.ErrFieldNotFound)
}

func TestStore_MergeInstallsNestedRelations(t *testing.T) {
	s, fb := setupSession(t)

	p := mustThing(t, s, schematest.Product, Row{
		ID:     "1",
		Fields: map[string]any{"sku": "A1"},
		Relations: map[string][]Row{
			"category": {{ID: "10", Fields: map[string]any{"name_en": "Shoes"}, Relations: map[string][]Row{
				"parent": {row("11", nil)},
			}}},
		},
	})

	assert.True(t, p.IsResolved("category"))
	assert.False(t, p.IsResolved("variants"))

	parents, err := p.Relation(context.Background(), "category.parent")
	require.NoError(t, err)
	require.Len(t, parents, 1)
	assert.Equal(t, schema.ThingID("11"), parents[0].ID())
	assert.Equal(t, "category", parents[0].Resource().Name())
	assert.Zero(t, fb.count.Load())
}

func TestStore_MergeErrors(t *testing.T) {
	s, _ := setupSession(t)
	product, _ := s.Graph().Resource(schema.RefID(schematest.Product))

	_, err := s.Store().Merge(product, []Row{{ID: "1", ResourceID: 99}})
	assert.ErrorIs(t, err, schema.ErrResourceNotFound)

	_, err = s.Store().Merge(nil, []Row{{ID: "1"}})
	assert.ErrorIs(t, err, schema.ErrResourceNotFound)

	_, err = s.Store().Merge(product, []Row{{ID: "1", Relations: map[string][]Row{"nope": {}}}})
	assert.ErrorIs(t, err, schema.ErrFieldNotFound)

	_, err = s.Store().Merge(product, []Row{{ID: "1", Relations: map[string][]Row{"sku": {}}}})
	assert.ErrorIs(t, err, schema.ErrMissingRelationTarget)
}

func TestRelation_AtMostOnceFetch(t *testing.T) {
	s, fb := setupSession(t)
	p := mustThing(t, s, schematest.Product, row("1", nil))
	fb.related[relKey(schematest.ProductVariants, "1")] = []Row{row("v1", nil), row("v2", nil)}

	ctx := context.Background()
	first, err := p.Relation(ctx, "variants")
	require.NoError(t, err)
	second, err := p.Relation(ctx, "variants")
	require.NoError(t, err)

	assert.EqualValues(t, 1, fb.count.Load())
	require.Len(t, first, 2)
	assert.Equal(t, first, second)
	assert.Same(t, first[0], second[0])

	req := fb.requests()[0]
	assert.Equal(t, schema.RefID(schematest.Variant), req.Resource)
	assert.Equal(t, &query.RelatedTo{Field: schema.RefID(schematest.ProductVariants), Thing: "1"}, req.RelatedTo)
	assert.Equal(t, query.ReturnList, req.Return)
}

func TestRelation_ConcurrentCallersShareOneFetch(t *testing.T) {
	s, fb := setupSession(t)
	p := mustThing(t, s, schematest.Product, row("1", nil))
	fb.related[relKey(schematest.ProductVariants, "1")] = []Row{row("v1", nil)}
	fb.gate = make(chan struct{})

	var wg sync.WaitGroup
	results := make([][]*Thing, 16)
	for i := range results {
		wg.Add(1)
		go func() {
			defer wg.Done()
			list, err := p.Relation(context.Background(), "variants")
			assert.NoError(t, err)
			results[i] = list
		}()
	}
	close(fb.gate)
	wg.Wait()

	assert.EqualValues(t, 1, fb.count.Load())
	for _, list := range results {
		require.Len(t, list, 1)
		assert.Same(t, results[0][0], list[0])
	}
}

func TestRelation_PreloadsRemainingPath(t *testing.T) {
	s, fb := setupSession(t)
	p := mustThing(t, s, schematest.Product, row("1", nil))
	fb.related[relKey(schematest.ProductCategory, "1")] = []Row{{
		ID:     "10",
		Fields: map[string]any{},
		Relations: map[string][]Row{
			"parent": {{ID: "11", Fields: map[string]any{}, Relations: map[string][]Row{"parent": {}}}},
		},
	}}

	ctx := context.Background()
	got, err := p.Relation(ctx, "category.parent.parent")
	require.NoError(t, err)
	assert.Empty(t, got)
	assert.EqualValues(t, 1, fb.count.Load())
	assert.Equal(t, []string{"parent.parent"}, fb.requests()[0].Fields.Paths())

	_, err = p.Relation(ctx, "category.parent")
	require.NoError(t, err)
	assert.EqualValues(t, 1, fb.count.Load())
}

func TestRelation_SyncAsyncConsistency(t *testing.T) {
	s, fb := setupSession(t)
	c := mustThing(t, s, schematest.Category, row("10", nil))
	fb.related[relKey(schematest.CategoryChildren, "10")] = []Row{row("20", nil), row("21", nil)}
	fb.related[relKey(schematest.CategoryChildren, "20")] = []Row{row("30", nil)}
	fb.related[relKey(schematest.CategoryChildren, "21")] = []Row{row("31", nil), row("32", nil)}

	assert.Empty(t, c.RelationSync("children.children"))

	async, err := c.Relation(context.Background(), "children.children")
	require.NoError(t, err)
	calls := fb.count.Load()

	cached := c.RelationSync("children.children")
	assert.Equal(t, async, cached)
	assert.Len(t, cached, 3)
	assert.Equal(t, calls, fb.count.Load())
}

func TestRelation_FanInDeduplicates(t *testing.T) {
	s, fb := setupSession(t)
	c0 := mustThing(t, s, schematest.Category, row("1", nil))
	fb.related[relKey(schematest.CategoryProducts, "1")] = []Row{row("p1", nil), row("p2", nil)}
	fb.related[relKey(schematest.ProductCategory, "p1")] = []Row{row("9", nil)}
	fb.related[relKey(schematest.ProductCategory, "p2")] = []Row{row("9", nil)}

	got, err := c0.Relation(context.Background(), "products.category")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, schema.ThingID("9"), got[0].ID())
	assert.EqualValues(t, 3, fb.count.Load())

	assert.Len(t, c0.RelationSync("products.category"), 1)
}

func TestRelation_FailedHopAbortsPath(t *testing.T) {
	s, fb := setupSession(t)
	c := mustThing(t, s, schematest.Category, row("1", nil))
	boom := errors.New("backend down")
	fb.related[relKey(schematest.CategoryChildren, "1")] = []Row{row("2", nil), row("3", nil)}
	fb.fail[relKey(schematest.CategoryChildren, "3")] = boom

	got, err := c.Relation(context.Background(), "children.children")
	assert.ErrorIs(t, err, boom)
	assert.Nil(t, got)

	// the first hop stays cached, the failed alias does not
	assert.True(t, c.IsResolved("children"))
	three, ok := s.Store().Get(schema.RefName("category"), "3")
	require.True(t, ok)
	assert.False(t, three.IsResolved("children"))
}

func TestRelation_InvalidAliases(t *testing.T) {
	s, _ := setupSession(t)
	p := mustThing(t, s, schematest.Product, row("1", nil))
	ctx := context.Background()

	_, err := p.Relation(ctx, "sku")
	assert.ErrorIs(t, err, ErrNotRelation)

	_, err = p.Relation(ctx, "nope")
	assert.ErrorIs(t, err, schema.ErrFieldNotFound)

	_, err = p.Relation(ctx, "")
	assert.ErrorIs(t, err, ErrEmptyPath)

	assert.Empty(t, p.RelationSync("nope.deeper"))
	assert.Empty(t, p.RelationSync(""))
}

func TestRelation_DetachedStore(t *testing.T) {
	store := NewStore(schematest.Graph(t))
	p, err := store.Add(schema.RefName("product"), "1", nil)
	require.NoError(t, err)

	_, err = p.Relation(context.Background(), "variants")
	assert.ErrorIs(t, err, ErrDetached)
}

func TestSession_QueryReturnModes(t *testing.T) {
	s, fb := setupSession(t)
	fb.list = []Row{row("1", map[string]any{"sku": "A"}), row("2", map[string]any{"sku": "B"}), row("3", nil)}
	ctx := context.Background()
	products := func() *query.Builder { return query.New(schema.RefName("product")) }

	first, err := s.First(ctx, products())
	require.NoError(t, err)
	require.NotNil(t, first)
	assert.Equal(t, schema.ThingID("1"), first.ID())

	list, err := s.List(ctx, products())
	require.NoError(t, err)
	assert.Len(t, list, 3)
	assert.Same(t, first, list[0])

	res, err := s.Paginate(ctx, products(), 2, 2)
	require.NoError(t, err)
	require.NotNil(t, res.Page)
	assert.Equal(t, query.PageInfo{PerPage: 2, CurrentPage: 2, Total: 3, LastPage: 2}, *res.Page)
	require.Len(t, res.Things, 1)
	assert.Equal(t, schema.ThingID("3"), res.Things[0].ID())

	fb.list = nil
	none, err := s.First(ctx, products())
	require.NoError(t, err)
	assert.Nil(t, none)
}

func TestSession_QueryErrors(t *testing.T) {
	s, _ := setupSession(t)
	ctx := context.Background()

	_, err := s.Query(ctx, query.New(schema.RefName("nope")))
	assert.ErrorIs(t, err, schema.ErrResourceNotFound)

	_, err = s.Query(ctx, query.New(schema.RefName("product")).Return("all"))
	assert.ErrorIs(t, err, query.ErrUnsupportedReturn)

	garbled := NewSession(schematest.Graph(t), backend.Func(func(context.Context, backend.Method, string, any) (json.RawMessage, error) {
		return json.RawMessage(`{"id":`), nil
	}))
	_, err = garbled.List(ctx, query.New(schema.RefName("product")))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to decode things response")
}

func TestOpen_LoadsSchema(t *testing.T) {
	snap, err := json.Marshal(schematest.Catalog())
	require.NoError(t, err)

	b := backend.Func(func(ctx context.Context, method backend.Method, endpoint string, data any) (json.RawMessage, error) {
		assert.Equal(t, backend.MethodGet, method)
		assert.Equal(t, backend.EndpointSchema, endpoint)
		return snap, nil
	})

	s, err := Open(context.Background(), b, DefaultSessionConfig())
	require.NoError(t, err)
	assert.Equal(t, "catalog", s.Graph().Name())

	failing := backend.Func(func(context.Context, backend.Method, string, any) (json.RawMessage, error) {
		return nil, errors.New("unreachable")
	})
	_, err = Open(context.Background(), failing, DefaultSessionConfig())
	assert.Error(t, err)
}

func TestStore_RelateLinksBothSides(t *testing.T) {
	store := NewStore(schematest.Graph(t))
	p, err := store.Add(schema.RefName("product"), "1", map[string]any{"sku": "A"})
	require.NoError(t, err)
	c, err := store.Add(schema.RefName("category"), "10", nil)
	require.NoError(t, err)
	v, err := store.Add(schema.RefName("variant"), "", nil)
	require.NoError(t, err)
	assert.NotEmpty(t, v.ID())

	require.NoError(t, store.Relate(p, "category", c))
	require.NoError(t, store.Relate(p, "category", c))

	assert.Equal(t, []*Thing{c}, p.RelationSync("category"))
	assert.Equal(t, []*Thing{p}, c.RelationSync("products"))

	err = store.Relate(p, "category", v)
	assert.ErrorIs(t, err, ErrResourceMismatch)
	err = store.Relate(p, "sku", c)
	assert.ErrorIs(t, err, schema.ErrMissingRelationTarget)
}

func TestThing_Row(t *testing.T) {
	s, _ := setupSession(t)
	p := mustThing(t, s, schematest.Product, Row{
		ID:     "1",
		Label:  "Shirt",
		Fields: map[string]any{"sku": "A1", "title_en": "Shirt", "title_it": "Camicia", "price": 10.0},
		Relations: map[string][]Row{
			"category": {row("10", map[string]any{"name_en": "Tops"})},
		},
	})

	sel := selector.New().Select("title")
	sel.SelectRelation("category").Select("name")
	sel.SelectRelation("variants")

	r := p.Row(sel)
	assert.Equal(t, schema.ThingID("1"), r.ID)
	assert.Equal(t, schematest.Product, r.ResourceID)
	assert.Equal(t, map[string]any{"title_en": "Shirt", "title_it": "Camicia"}, r.Fields)
	require.Len(t, r.Relations["category"], 1)
	assert.Equal(t, map[string]any{"name_en": "Tops"}, r.Relations["category"][0].Fields)
	assert.Empty(t, r.Relations["variants"])
	assert.NotNil(t, r.Relations["variants"])

	full := p.Row(nil)
	assert.Len(t, full.Fields, 4)
	assert.Nil(t, full.Relations)
}

func TestThing_RowPrefersExactFieldNames(t *testing.T) {
	g, err := schema.NewGraph(schema.Snapshot{
		ID: 1, Name: "labels", DefaultLang: "en", Languages: []string{"en", "it"},
		Resources: []schema.ResourceDef{{
			ID: 1, Name: "label", IsMultiple: true,
			Fields: []schema.FieldDef{
				{ID: 1, Name: "title", Type: schema.TypeText, IsTranslatable: true, Order: 1},
				{ID: 2, Name: "title_code", Type: schema.TypeText, Order: 2},
			},
		}},
	})
	require.NoError(t, err)

	thing, err := NewStore(g).Add(schema.RefID(1), "1", map[string]any{
		"title_en":   "Shirt",
		"title_it":   "Camicia",
		"title_code": "SH",
		"title_xx":   "stray",
	})
	require.NoError(t, err)

	assert.Equal(t, map[string]any{"title_code": "SH"}, thing.Row(selector.New().Select("title_code")).Fields)
	assert.Equal(t, map[string]any{"title_en": "Shirt", "title_it": "Camicia"}, thing.Row(selector.New().Select("title")).Fields)
	assert.Len(t, thing.Row(nil).Fields, 4)
}

func TestThing_Label(t *testing.T) {
	s, _ := setupSession(t)
	p := mustThing(t, s, schematest.Product, Row{ID: "1", Labels: schema.Translations{"it": "Camicia"}})
	q := mustThing(t, s, schematest.Product, Row{ID: "2", Label: "Plain"})
	r := mustThing(t, s, schematest.Product, row("3", nil))

	assert.Equal(t, "Camicia", p.Label("it"))
	assert.Equal(t, "#1", p.Label("en"))
	assert.Equal(t, "Plain", q.Label("it"))
	assert.Equal(t, "#3", r.Label(""))
	assert.Equal(t, "product/3", r.String())
}
