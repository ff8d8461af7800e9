package backlog

import (
	"context"
	"errors"
	"sort"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type entry struct {
	id int64
	at time.Time
}

func (e entry) OrderKey() (time.Time, int64) { return e.at, e.id }

// fakeSource honors the newest-first contract over an in-memory slice.
type fakeSource struct {
	items map[string][]entry
	calls int
}

func (f *fakeSource) Newest(_ context.Context, scope string, limit int) ([]entry, error) {
	f.calls++
	all := append([]entry(nil), f.items[scope]...)
	sort.Slice(all, func(i, j int) bool { return all[i].at.After(all[j].at) })
	if len(all) > limit {
		all = all[:limit]
	}
	return all, nil
}

func seed(n int) []entry {
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	out := make([]entry, n)
	for i := range out {
		out[i] = entry{id: int64(i + 1), at: base.Add(time.Duration(i) * time.Minute)}
	}
	return out
}

func TestLoadRecentKeepsMostRecentAscending(t *testing.T) {
	src := &fakeSource{items: map[string][]entry{"room": seed(25)}}

	got, err := LoadRecent[string, entry](context.Background(), src, "room", 20)
	require.NoError(t, err)
	require.Len(t, got, 20)

	assert.Equal(t, int64(6), got[0].id, "the five oldest are dropped")
	assert.Equal(t, int64(25), got[19].id)
	for i := 1; i < len(got); i++ {
		assert.True(t, got[i-1].at.Before(got[i].at), "strictly ascending at %d", i)
	}
}

func TestLoadRecent(t *testing.T) {
	tests := []struct {
		name    string
		stored  int
		limit   int
		wantLen int
		wantIDs []int64
	}{
		{"empty scope", 0, 20, 0, []int64{}},
		{"fewer than limit", 3, 20, 3, []int64{1, 2, 3}},
		{"exactly limit", 4, 4, 4, []int64{1, 2, 3, 4}},
		{"non-positive limit uses default", 30, 0, DefaultLimit, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			src := &fakeSource{items: map[string][]entry{"s": seed(tt.stored)}}
			got, err := LoadRecent[string, entry](context.Background(), src, "s", tt.limit)
			require.NoError(t, err)
			assert.NotNil(t, got)
			assert.Len(t, got, tt.wantLen)
			if tt.wantIDs != nil {
				ids := make([]int64, 0, len(got))
				for _, e := range got {
					ids = append(ids, e.id)
				}
				assert.Equal(t, tt.wantIDs, ids)
			}
		})
	}
}

func TestLoadRecentTiesBreakOnSeq(t *testing.T) {
	at := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	src := SourceFunc[string, entry](func(context.Context, string, int) ([]entry, error) {
		return []entry{{id: 3, at: at}, {id: 2, at: at}, {id: 1, at: at}}, nil
	})

	got, err := LoadRecent[string, entry](context.Background(), src, "s", 20)
	require.NoError(t, err)
	assert.Equal(t, []entry{{1, at}, {2, at}, {3, at}}, got)
}

// A source that ignores the limit still yields the most recent items.
func TestLoadRecentCapsOverlongSource(t *testing.T) {
	items := seed(10)
	src := SourceFunc[string, entry](func(context.Context, string, int) ([]entry, error) {
		return items, nil
	})

	got, err := LoadRecent[string, entry](context.Background(), src, "s", 3)
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, int64(8), got[0].id)
	assert.Equal(t, int64(10), got[2].id)
}

func TestLoadRecentPropagatesErrors(t *testing.T) {
	boom := errors.New("boom")
	src := SourceFunc[string, entry](func(context.Context, string, int) ([]entry, error) {
		return nil, boom
	})

	_, err := LoadRecent[string, entry](context.Background(), src, "s", 5)
	assert.ErrorIs(t, err, boom)
}
