// SPDX-License-Identifier: GPL-3.0-or-later

package api

import (
	"context"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tbmedge/edgecore/internal/config"
	"github.com/tbmedge/edgecore/internal/quality"
	"github.com/tbmedge/edgecore/internal/ringsummary"
	"github.com/tbmedge/edgecore/internal/sample"
	"github.com/tbmedge/edgecore/internal/telemetry"
)

type fakeStore struct {
	summaries map[int64]ringsummary.RingSummary
	batches   map[sample.Table][]sample.Row
	counts    map[sample.Table]int64
}

func newFakeStore() *fakeStore {
	return &fakeStore{summaries: make(map[int64]ringsummary.RingSummary), batches: make(map[sample.Table][]sample.Row), counts: make(map[sample.Table]int64)}
}

func (f *fakeStore) ListRingSummaries(ctx context.Context, afterRing int64, limit int) ([]ringsummary.RingSummary, error) {
	var nums []int64
	for n := range f.summaries {
		if n > afterRing {
			nums = append(nums, n)
		}
	}
	sort.Slice(nums, func(i, j int) bool { return nums[i] < nums[j] })
	if len(nums) > limit {
		nums = nums[:limit]
	}
	out := make([]ringsummary.RingSummary, 0, len(nums))
	for _, n := range nums {
		out = append(out, f.summaries[n])
	}
	return out, nil
}

func (f *fakeStore) GetRingSummary(ctx context.Context, ringNumber int64) (*ringsummary.RingSummary, bool, error) {
	rs, ok := f.summaries[ringNumber]
	if !ok {
		return nil, false, nil
	}
	return &rs, true, nil
}

func (f *fakeStore) CountRange(ctx context.Context, table sample.Table, startMS, endMS int64) (int64, error) {
	return f.counts[table], nil
}

func (f *fakeStore) WriteBatch(ctx context.Context, table sample.Table, rows []sample.Row) error {
	f.batches[table] = append(f.batches[table], rows...)
	return nil
}

func testRouter() *quality.Router {
	snap := func() *config.Snapshot {
		return &config.Snapshot{Thresholds: map[string]config.ThresholdConfig{
			"thrust_total": {Min: 0, Max: 30000},
		}}
	}
	return quality.NewRouter(snap, telemetry.DefaultSLogger(), telemetry.NewRateGate(0), nil)
}

func TestListRingsAppliesFilterAndPaginates(t *testing.T) {
	store := newFakeStore()
	for i := int64(1); i <= 5; i++ {
		store.summaries[i] = ringsummary.RingSummary{RingNumber: i, Completeness: ringsummary.Complete}
	}
	store.summaries[3] = ringsummary.RingSummary{RingNumber: 3, Completeness: ringsummary.MissingPLC}

	a := New(store, testRouter(), testRouter(), testRouter())

	var got []int64
	for rs := range a.ListRings(context.Background(), Filter{Completeness: ringsummary.Complete, PageSize: 2}) {
		got = append(got, rs.RingNumber)
	}
	assert.Equal(t, []int64{1, 2, 4, 5}, got)
}

func TestGetRingIncludesRawCounts(t *testing.T) {
	store := newFakeStore()
	store.summaries[10] = ringsummary.RingSummary{RingNumber: 10, StartTS: 0, EndTS: 1000}
	store.counts[sample.TablePLC] = 42

	a := New(store, testRouter(), testRouter(), testRouter())
	view, ok, err := a.GetRing(context.Background(), 10, true)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, int64(42), view.RawCounts[sample.TablePLC])
}

func TestGetRingMissingReturnsFalse(t *testing.T) {
	store := newFakeStore()
	a := New(store, testRouter(), testRouter(), testRouter())
	_, ok, err := a.GetRing(context.Background(), 999, false)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestSubmitManualLogsRunsPipelineAndPersists(t *testing.T) {
	store := newFakeStore()
	a := New(store, testRouter(), testRouter(), testRouter())

	results, err := a.SubmitManualLogs(context.Background(),
		[]ManualLog{{Tag: "thrust_total", Value: 15000, TimestampMS: 1000}, {Tag: "thrust_total", Value: -1, TimestampMS: 2000}},
		nil, nil, "op-1")
	require.NoError(t, err)
	require.Len(t, results.PLC, 2)
	assert.True(t, results.PLC[0].Accepted)
	assert.False(t, results.PLC[1].Accepted)
	assert.Len(t, store.batches[sample.TablePLC], 1)
}
