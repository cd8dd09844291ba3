package thing

import (
	"context"
	"fmt"
	"strings"

	"github.com/conduit-lang/pim/pkg/schema"
	"golang.org/x/sync/errgroup"
)

// RelationSync returns the things already cached along a dotted relation path. Hops
// that are not cached contribute nothing; nothing is fetched.
func (t *Thing) RelationSync(path string) []*Thing {
	segs := splitPath(path)
	if len(segs) == 0 {
		return []*Thing{}
	}

	current := []*Thing{t}
	for _, seg := range segs {
		if len(current) == 1 {
			list, _ := current[0].cached(seg)
			current = list
			continue
		}
		lists := make([][]*Thing, 0, len(current))
		for _, p := range current {
			if list, ok := p.cached(seg); ok {
				lists = append(lists, list)
			}
		}
		current = union(lists...)
	}
	if current == nil {
		return []*Thing{}
	}
	return current
}

// Relation resolves a dotted relation path. Each hop reuses the cached alias or issues
// exactly one fetch for it, preloading the rest of the path in the same request. Hops
// are resolved in order and a failed hop fails the whole path.
func (t *Thing) Relation(ctx context.Context, path string) ([]*Thing, error) {
	segs := splitPath(path)
	if len(segs) == 0 {
		return nil, ErrEmptyPath
	}

	current := []*Thing{t}
	for i, seg := range segs {
		rest := strings.Join(segs[i+1:], ".")
		next, err := resolveHop(ctx, current, seg, rest)
		if err != nil {
			return nil, err
		}
		current = next
	}
	return current, nil
}

func resolveHop(ctx context.Context, parents []*Thing, alias, rest string) ([]*Thing, error) {
	if len(parents) == 1 {
		return parents[0].resolve(ctx, alias, rest)
	}
	if len(parents) == 0 {
		return []*Thing{}, nil
	}

	limit := 1
	if s := parents[0].store.session; s != nil {
		limit = s.fanOut
	}

	results := make([][]*Thing, len(parents))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(limit)
	for i, p := range parents {
		g.Go(func() error {
			list, err := p.resolve(ctx, alias, rest)
			if err != nil {
				return err
			}
			results[i] = list
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return union(results...), nil
}

// resolve returns the cached alias or fetches it once. Concurrent callers for the same
// alias share one in-flight fetch.
func (t *Thing) resolve(ctx context.Context, alias, preload string) ([]*Thing, error) {
	if list, ok := t.cached(alias); ok {
		return list, nil
	}

	f, err := t.relationField(alias)
	if err != nil {
		return nil, err
	}
	s := t.store.session
	if s == nil {
		return nil, fmt.Errorf("%w: %s", ErrDetached, t)
	}

	v, err, _ := t.flight.Do(alias, func() (any, error) {
		if list, ok := t.cached(alias); ok {
			return list, nil
		}
		list, err := s.fetchRelated(ctx, t, f, preload)
		if err != nil {
			return nil, err
		}
		t.install(alias, list)
		list, _ = t.cached(alias)
		return list, nil
	})
	if err != nil {
		return nil, err
	}
	return v.([]*Thing), nil
}

func (t *Thing) relationField(alias string) (*schema.Field, error) {
	f, err := t.resource.MustField(schema.RefName(alias))
	if err != nil {
		return nil, err
	}
	if !f.IsRelation() {
		return nil, fmt.Errorf("%w: %s on resource %s", ErrNotRelation, alias, t.resource.Name())
	}
	return f, nil
}

func splitPath(path string) []string {
	var segs []string
	for _, s := range strings.Split(path, ".") {
		if s != "" {
			segs = append(segs, s)
		}
	}
	return segs
}
