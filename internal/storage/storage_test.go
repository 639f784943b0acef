package storage

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"toastd/internal/toast"
	logx "toastd/pkg/logx"
)

func snap(msg string) toast.Snapshot {
	return toast.Snapshot{
		Message:           msg,
		Kind:              toast.KindError,
		Priority:          toast.PriorityCritical,
		Duration:          5 * time.Second,
		DedupeKey:         "k-" + msg,
		AllowsUserDismiss: true,
		ActionTitle:       "Retry",
		SavedAt:           time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC),
	}
}

func drivers(t *testing.T) map[string]func(t *testing.T, path string) Store {
	return map[string]func(t *testing.T, path string) Store{
		"memory": func(t *testing.T, _ string) Store { return NewMemory() },
		"file": func(t *testing.T, path string) Store {
			st, err := Open(Config{Driver: "file", Path: filepath.Join(path, "toastd.db")}, logx.Nop())
			require.NoError(t, err)
			return st
		},
		"sqlite": func(t *testing.T, path string) Store {
			st, err := Open(Config{Driver: "sqlite", Path: filepath.Join(path, "toastd.sqlite"), BusyTimeout: time.Second}, logx.Nop())
			require.NoError(t, err)
			return st
		},
	}
}

func TestStore_SaveLoadClear(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	for name, open := range drivers(t) {
		name, open := name, open
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			st := open(t, t.TempDir())
			t.Cleanup(func() { _ = st.Close() })

			require.NoError(t, st.Save(ctx, "a", snap("first")))
			require.NoError(t, st.Save(ctx, "b", snap("second")))
			require.NoError(t, st.Save(ctx, "a", snap("first, updated")))

			got, err := st.LoadAll(ctx)
			require.NoError(t, err)
			require.Len(t, got, 2)
			assert.Equal(t, "a", got[0].Key)
			assert.Equal(t, "first, updated", got[0].Message)
			assert.Equal(t, "second", got[1].Message)
			assert.Equal(t, toast.PriorityCritical, got[1].Priority)
			assert.Equal(t, 5*time.Second, got[1].Duration)
			assert.Equal(t, "Retry", got[1].ActionTitle)

			require.NoError(t, st.AppendAudit(ctx, AuditEntry{Action: "dismiss_all", OK: true}))

			require.NoError(t, st.Clear(ctx))
			got, err = st.LoadAll(ctx)
			require.NoError(t, err)
			assert.Empty(t, got)
		})
	}
}

func TestStore_SurvivesReopen(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	for name, open := range drivers(t) {
		name, open := name, open
		if name == "memory" {
			continue
		}
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			dir := t.TempDir()

			st := open(t, dir)
			require.NoError(t, st.Save(ctx, "a", snap("persisted")))
			require.NoError(t, st.Close())

			st = open(t, dir)
			t.Cleanup(func() { _ = st.Close() })
			got, err := st.LoadAll(ctx)
			require.NoError(t, err)
			require.Len(t, got, 1)
			assert.Equal(t, "persisted", got[0].Message)
		})
	}
}

func TestFileStore_SkipsCorruptLines(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	journal := filepath.Join(dir, "toastd.snapshots.jsonl")
	require.NoError(t, os.WriteFile(journal, []byte("{not json}\n\n"), 0o600))

	st, err := Open(Config{Driver: "file", Path: filepath.Join(dir, "toastd.db")}, logx.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })

	require.NoError(t, st.Save(context.Background(), "a", snap("ok")))
	got, err := st.LoadAll(context.Background())
	require.NoError(t, err)
	assert.Len(t, got, 1)
}

func TestOpen(t *testing.T) {
	t.Parallel()

	st, err := Open(Config{Driver: "none"}, logx.Nop())
	require.NoError(t, err)
	assert.Nil(t, st)

	_, err = Open(Config{Driver: "redis"}, logx.Nop())
	assert.Error(t, err)

	_, err = Open(Config{Driver: "file"}, logx.Nop())
	assert.Error(t, err)
}

func TestClosedStoreRejectsWrites(t *testing.T) {
	t.Parallel()
	st := NewMemory()
	require.NoError(t, st.Close())
	assert.ErrorIs(t, st.Save(context.Background(), "a", snap("x")), ErrClosed)
}
