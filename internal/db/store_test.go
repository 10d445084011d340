package db

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Nixie-Tech-LLC/vakit/internal/model"
	"github.com/Nixie-Tech-LLC/vakit/internal/settings"
)

func newTestStore(t *testing.T) *SettingsStore {
	t.Helper()
	ctx := context.Background()
	conn, err := Open(ctx, DriverSQLite, ":memory:", zerolog.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })

	require.NoError(t, RunMigrations(ctx, conn))
	// running twice must be harmless
	require.NoError(t, RunMigrations(ctx, conn))
	return NewSettingsStore(conn)
}

func TestOpen_RejectsUnknownDriver(t *testing.T) {
	_, err := Open(context.Background(), "mysql", "", zerolog.Nop())
	assert.Error(t, err)
}

func TestSettingsStore_LoadEmpty(t *testing.T) {
	store := newTestStore(t)

	_, err := store.Load(context.Background())
	assert.ErrorIs(t, err, settings.ErrNotFound)
}

func TestSettingsStore_SaveAndLoad(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	s := model.DefaultSettings()
	s.AdhanType = model.AdhanMadinah
	s.Offsets = &model.Offsets{Maghrib: 3}
	require.NoError(t, store.Save(ctx, s))

	s.PreAlertMinutes = 20
	require.NoError(t, store.Save(ctx, s))

	loaded, err := store.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, s, loaded)
}

func TestSettingsStore_History(t *testing.T) {
	store := newTestStore(t)
	store.now = func() time.Time { return time.Date(2026, 10, 16, 9, 0, 0, 0, time.UTC) }
	ctx := context.Background()

	s := model.DefaultSettings()
	for _, minutes := range []int{5, 10, 15} {
		s.PreAlertMinutes = minutes
		require.NoError(t, store.Save(ctx, s))
	}

	revs, err := store.History(ctx, 2)
	require.NoError(t, err)
	require.Len(t, revs, 2)
	assert.Equal(t, 3, revs[0].Revision)
	assert.Equal(t, 2, revs[1].Revision)

	old, err := model.DecodeSettings([]byte(revs[1].Document))
	require.NoError(t, err)
	assert.Equal(t, 10, old.PreAlertMinutes)
}
