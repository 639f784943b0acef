package logx

import (
	"bytes"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewJSON_WritesFieldsAndCaller(t *testing.T) {
	var buf bytes.Buffer
	log := NewJSON(&buf, "debug").Component("toast")

	log.Info("presented", String("id", "abc"), Duration("dur", time.Second), Err(errors.New("boom")), Err(nil))

	var m map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &m))
	assert.Equal(t, "presented", m["message"])
	assert.Equal(t, "toast", m["comp"])
	assert.Equal(t, "abc", m["id"])
	assert.Equal(t, "boom", m["err"])
	assert.Contains(t, m["caller"], "logging_test.go:")
}

func TestLogger_LevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	log := NewJSON(&buf, "warn")

	log.Debug("hidden")
	log.Info("hidden")
	assert.Zero(t, buf.Len())
	assert.False(t, log.Enabled(LevelInfo))
	assert.True(t, log.Enabled(LevelError))
}

func TestLogger_ZeroValueIsSafe(t *testing.T) {
	var l Logger
	assert.True(t, l.IsZero())
	l.Error("nothing happens")
	assert.False(t, Nop().IsZero())
}

func TestService_ApplySwitchesToFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "toastd.log")
	svc, log := New(Config{Level: "info"})
	t.Cleanup(func() { _ = svc.Close() })

	svc.Apply(Config{Level: "info", File: FileConfig{Enabled: true, Path: path}})
	log.Info("to file", Int("n", 1))

	b, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(b), `"message":"to file"`)
}

func TestValidLevel(t *testing.T) {
	for _, s := range []string{"", "debug", "WARN", "error"} {
		assert.True(t, ValidLevel(s), s)
	}
	assert.False(t, ValidLevel("loud"))
}

func TestRotatingFile_ShiftsBackups(t *testing.T) {
	path := filepath.Join(t.TempDir(), "toastd.log")
	r, err := openRotating(path, 10, 2)
	require.NoError(t, err)
	t.Cleanup(func() { _ = r.Close() })

	for _, line := range []string{"first---\n", "second--\n", "third---\n"} {
		_, err := r.Write([]byte(line))
		require.NoError(t, err)
	}

	cur, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "third---\n", string(cur))
	b1, err := os.ReadFile(path + ".1")
	require.NoError(t, err)
	assert.Equal(t, "second--\n", string(b1))
	b2, err := os.ReadFile(path + ".2")
	require.NoError(t, err)
	assert.Equal(t, "first---\n", string(b2))

	require.NoError(t, r.Close())
	_, err = r.Write([]byte("x"))
	assert.ErrorIs(t, err, os.ErrClosed)
}
