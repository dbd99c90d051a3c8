// SPDX-License-Identifier: GPL-3.0-or-later

package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tbmedge/edgecore/internal/ringsummary"
	"github.com/tbmedge/edgecore/internal/sample"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "edge.db")
	s, err := Open(context.Background(), path)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestOpenIsIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "edge.db")
	s1, err := Open(context.Background(), path)
	require.NoError(t, err)
	require.NoError(t, s1.Close())

	s2, err := Open(context.Background(), path)
	require.NoError(t, err)
	defer s2.Close()
}

func TestWriteBatchAndQueryRange(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	ring := int64(7)
	rows := []sample.Row{
		{Table: sample.TablePLC, TimestampMS: 1000, Tag: "thrust_total", Value: 100, Flag: sample.Good, RingNumberAtCapture: &ring},
		{Table: sample.TablePLC, TimestampMS: 2000, Tag: "thrust_total", Value: 110, Flag: sample.Interpolated, RingNumberAtCapture: &ring},
	}
	require.NoError(t, s.WriteBatch(ctx, sample.TablePLC, rows))

	got, err := s.QueryRange(ctx, sample.TablePLC, 0, 3000)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "thrust_total", got[0].Tag)
	assert.Equal(t, sample.Interpolated, got[1].Flag)
	assert.Equal(t, int64(7), *got[1].RingNumberAtCapture)

	n, err := s.CountRange(ctx, sample.TablePLC, 0, 1500)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}

func TestWriteBatchEmptyIsNoop(t *testing.T) {
	s := openTestStore(t)
	require.NoError(t, s.WriteBatch(context.Background(), sample.TablePLC, nil))
}

func TestRingSummaryRoundTrip(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	energy := 12.5
	rs := &ringsummary.RingSummary{
		RingNumber:   42,
		StartTS:      1000,
		EndTS:        2000,
		Thrust:       ringsummary.Stat{Mean: 1, Max: 2, Min: 0, Std: 0.5, N: 10},
		Completeness: ringsummary.Complete,
		State:        ringsummary.StateSummarizedOpen,
		SpecificEnergy: &energy,
		CreatedAt: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
		WriteTS:   time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
	}
	require.NoError(t, s.WriteRingSummary(ctx, rs))

	got, ok, err := s.GetRingSummary(ctx, 42)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, int64(42), got.RingNumber)
	assert.Equal(t, ringsummary.Complete, got.Completeness)
	require.NotNil(t, got.SpecificEnergy)
	assert.InDelta(t, 12.5, *got.SpecificEnergy, 1e-9)
	assert.Nil(t, got.SettlementValue)
}

func TestRingSummaryUpdateOnlyWhileOpen(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	base := &ringsummary.RingSummary{
		RingNumber: 1, StartTS: 0, EndTS: 100,
		Completeness: ringsummary.MissingMonitoring,
		State:        ringsummary.StateSummarizedOpen,
		CreatedAt:    time.Now().UTC(),
		WriteTS:      time.Now().UTC(),
	}
	require.NoError(t, s.WriteRingSummary(ctx, base))
	require.NoError(t, s.FinalizeRingSummary(ctx, 1, -time.Second))

	updated := *base
	updated.Completeness = ringsummary.Complete
	settlement := 3.3
	updated.SettlementValue = &settlement
	require.NoError(t, s.WriteRingSummary(ctx, &updated))

	got, ok, err := s.GetRingSummary(ctx, 1)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, ringsummary.StateSummarizedFinal, got.State)
	assert.Equal(t, ringsummary.MissingMonitoring, got.Completeness, "finalized summary must not be overwritten")
}

func TestRingSummaryWriteTSUnchangedAcrossUpdate(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	firstWrite := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	base := &ringsummary.RingSummary{
		RingNumber: 7, StartTS: 0, EndTS: 100,
		Completeness: ringsummary.MissingMonitoring,
		State:        ringsummary.StateSummarizedOpen,
		CreatedAt:    firstWrite,
		WriteTS:      firstWrite,
	}
	require.NoError(t, s.WriteRingSummary(ctx, base))

	updated := *base
	updated.Completeness = ringsummary.Complete
	updated.CreatedAt = time.Now().UTC()
	updated.WriteTS = time.Now().UTC()
	require.NoError(t, s.WriteRingSummary(ctx, &updated))

	got, ok, err := s.GetRingSummary(ctx, 7)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, ringsummary.Complete, got.Completeness, "re-aggregated fields still update")
	assert.True(t, firstWrite.Equal(got.WriteTS), "write_ts must stay pinned to the first write, not the latest update")
	assert.True(t, firstWrite.Equal(got.CreatedAt))
}

func TestRingBoundaryQueries(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	ring100, ring101 := int64(100), int64(101)
	rows := []sample.Row{
		{Table: sample.TablePLC, TimestampMS: 0, Tag: "thrust_total", Value: 1, RingNumberAtCapture: &ring100},
		{Table: sample.TablePLC, TimestampMS: 100, Tag: "thrust_total", Value: 2, RingNumberAtCapture: &ring100},
		{Table: sample.TablePLC, TimestampMS: 200, Tag: "thrust_total", Value: 3, RingNumberAtCapture: &ring101},
	}
	require.NoError(t, s.WriteBatch(ctx, sample.TablePLC, rows))

	maxRing, ok, err := s.MaxPLCRingNumber(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, int64(101), maxRing)

	_, summarized, err := s.MaxSummarizedRingNumber(ctx)
	require.NoError(t, err)
	assert.False(t, summarized)

	start, ok, err := s.RingStart(ctx, 100)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, int64(0), start)

	start, ok, err = s.RingStart(ctx, 101)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, int64(200), start)
}

func TestListRingSummariesPaginatesByRingNumber(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	for i := int64(1); i <= 3; i++ {
		require.NoError(t, s.WriteRingSummary(ctx, &ringsummary.RingSummary{
			RingNumber: i, StartTS: i * 100, EndTS: i*100 + 100,
			Completeness: ringsummary.Complete,
			State:        ringsummary.StateSummarizedOpen,
			CreatedAt:    time.Now().UTC(),
			WriteTS:      time.Now().UTC(),
		}))
	}

	page, err := s.ListRingSummaries(ctx, 1, 10)
	require.NoError(t, err)
	require.Len(t, page, 2)
	assert.Equal(t, int64(2), page[0].RingNumber)
	assert.Equal(t, int64(3), page[1].RingNumber)
}
