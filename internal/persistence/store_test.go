package persistence

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nix0283/CITARION-dev-sub004/internal/classifier"
	"github.com/nix0283/CITARION-dev-sub004/internal/features"
)

func testSnapshot(t *testing.T) *Snapshot {
	t.Helper()
	fv1, err := features.NewVector(
		[]string{"momentum", "trend_strength"}, []float64{0.42, -0.17})
	require.NoError(t, err)
	fv2, err := features.NewVector(
		[]string{"momentum", "trend_strength"}, []float64{-0.9, 0.33})
	require.NoError(t, err)

	return &Snapshot{
		Symbol:    "ETH/USD",
		CreatedAt: time.Date(2025, 6, 3, 14, 0, 0, 0, time.UTC),
		Samples: []classifier.TrainingSample{
			{Features: fv1, Label: classifier.Long, Weight: 1.5, Timestamp: time.Date(2025, 6, 3, 13, 0, 0, 0, time.UTC)},
			{Features: fv2, Label: classifier.Short, Weight: 0.5, Timestamp: time.Date(2025, 6, 3, 13, 30, 0, 0, time.UTC)},
		},
		Platt: PlattParams{A: -1.25, B: 0.1, Fitted: true},
	}
}

func TestFileStoreRoundTrip(t *testing.T) {
	store, err := NewFileStore(t.TempDir())
	require.NoError(t, err)

	want := testSnapshot(t)
	require.NoError(t, store.Save(context.Background(), want))

	got, err := store.Load(context.Background(), "ETH/USD")
	require.NoError(t, err)

	assert.Equal(t, want.Symbol, got.Symbol)
	assert.True(t, want.CreatedAt.Equal(got.CreatedAt))
	assert.Equal(t, want.Platt, got.Platt)

	require.Len(t, got.Samples, 2)
	for i, sample := range got.Samples {
		assert.Equal(t, want.Samples[i].Label, sample.Label)
		assert.Equal(t, want.Samples[i].Weight, sample.Weight)
		assert.True(t, want.Samples[i].Timestamp.Equal(sample.Timestamp))
		assert.Equal(t, want.Samples[i].Features.Keys(), sample.Features.Keys())
		assert.Equal(t, want.Samples[i].Features.Values(), sample.Features.Values())
	}
}

func TestFileStoreOverwrite(t *testing.T) {
	store, err := NewFileStore(t.TempDir())
	require.NoError(t, err)

	snap := testSnapshot(t)
	require.NoError(t, store.Save(context.Background(), snap))

	snap.Samples = snap.Samples[:1]
	snap.Platt = PlattParams{}
	require.NoError(t, store.Save(context.Background(), snap))

	got, err := store.Load(context.Background(), "ETH/USD")
	require.NoError(t, err)
	assert.Len(t, got.Samples, 1)
	assert.False(t, got.Platt.Fitted)
}

func TestFileStoreMissingSymbol(t *testing.T) {
	store, err := NewFileStore(t.TempDir())
	require.NoError(t, err)

	_, err = store.Load(context.Background(), "NOPE")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestFileStoreSanitizesSymbol(t *testing.T) {
	store, err := NewFileStore(t.TempDir())
	require.NoError(t, err)

	snap := testSnapshot(t)
	snap.Symbol = `a/b\c:d`
	require.NoError(t, store.Save(context.Background(), snap))

	got, err := store.Load(context.Background(), `a/b\c:d`)
	require.NoError(t, err)
	assert.Equal(t, `a/b\c:d`, got.Symbol)
}
