// Package backlog loads bounded, oldest-first history for conversations and
// notification feeds.
package backlog

import (
	"context"
	"sort"
	"time"
)

const DefaultLimit = 20

// Item is anything with a position in time. seq breaks timestamp ties in
// insertion order.
type Item interface {
	OrderKey() (at time.Time, seq int64)
}

// Source returns at most limit items of a scope, newest first.
type Source[S any, T Item] interface {
	Newest(ctx context.Context, scope S, limit int) ([]T, error)
}

// SourceFunc adapts a function to Source.
type SourceFunc[S any, T Item] func(ctx context.Context, scope S, limit int) ([]T, error)

func (f SourceFunc[S, T]) Newest(ctx context.Context, scope S, limit int) ([]T, error) {
	return f(ctx, scope, limit)
}

// LoadRecent returns the most recent limit items of scope, oldest first.
// The cap is applied newest-first before reordering, so truncation always
// drops the oldest items.
func LoadRecent[S any, T Item](ctx context.Context, src Source[S, T], scope S, limit int) ([]T, error) {
	if limit <= 0 {
		limit = DefaultLimit
	}
	items, err := src.Newest(ctx, scope, limit)
	if err != nil {
		return nil, err
	}
	if len(items) > limit {
		sortNewestFirst(items)
		items = items[:limit]
	}
	sort.SliceStable(items, func(i, j int) bool {
		ti, si := items[i].OrderKey()
		tj, sj := items[j].OrderKey()
		if !ti.Equal(tj) {
			return ti.Before(tj)
		}
		return si < sj
	})
	if items == nil {
		items = []T{}
	}
	return items, nil
}

func sortNewestFirst[T Item](items []T) {
	sort.SliceStable(items, func(i, j int) bool {
		ti, si := items[i].OrderKey()
		tj, sj := items[j].OrderKey()
		if !ti.Equal(tj) {
			return ti.After(tj)
		}
		return si > sj
	})
}
