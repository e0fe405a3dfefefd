package sqlite

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MrSnakeDoc/guide/internal/domain"
	"github.com/MrSnakeDoc/guide/internal/store"
)

func TestDurableReadWrite(t *testing.T) {
	d, err := Open(":memory:")
	require.NoError(t, err)
	defer func() { _ = d.Close() }()
	ctx := context.Background()

	_, found, err := d.Read(ctx, "missing")
	require.NoError(t, err)
	assert.False(t, found)

	require.NoError(t, d.Write(ctx, "k", "v1"))
	require.NoError(t, d.Write(ctx, "k", "v2"))

	v, found, err := d.Read(ctx, "k")
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, "v2", v)
}

func TestDurableSurvivesReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "guide.db")
	ctx := context.Background()
	t0 := time.Date(2023, 12, 25, 13, 0, 0, 0, time.UTC)

	d, err := Open(path)
	require.NoError(t, err)
	programs := []domain.GuideProgram{{
		ID: "p", ChannelID: "la1.es", Title: "Noticias",
		Start: t0, End: t0.Add(30 * time.Minute), Duration: 30,
	}}
	store.New(time.Hour, d, nil).Set(ctx, "la1.es", programs, t0)
	require.NoError(t, d.Close())

	d, err = Open(path)
	require.NoError(t, err)
	defer func() { _ = d.Close() }()

	got, ok := store.New(time.Hour, d, nil).Get(ctx, "la1.es", t0.Add(time.Minute))
	require.True(t, ok)
	assert.Equal(t, "Noticias", got[0].Title)
}

func TestDurableClosedDatabase(t *testing.T) {
	d, err := Open(":memory:")
	require.NoError(t, err)
	require.NoError(t, d.Close())

	_, _, err = d.Read(context.Background(), "k")
	var serr *domain.StorageError
	require.True(t, errors.As(err, &serr))
	assert.Equal(t, "read", serr.Op)
}
