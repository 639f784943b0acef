package app

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"toastd/internal/httpapi"
	"toastd/internal/toast"
)

func freeAddr(t *testing.T) string {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := ln.Addr().String()
	require.NoError(t, ln.Close())
	return addr
}

func writeConfig(t *testing.T, path string, cfg map[string]any) {
	t.Helper()
	b, err := json.Marshal(cfg)
	require.NoError(t, err)
	tmp := path + ".tmp"
	require.NoError(t, os.WriteFile(tmp, b, 0o600))
	require.NoError(t, os.Rename(tmp, path))
}

func baseConfig(dir string) map[string]any {
	return map[string]any{
		"logging": map[string]any{"level": "error"},
		"policy":  map[string]any{"minimum_interval": "0s", "coalescing_window": "1s"},
		"storage": map[string]any{"driver": "file", "path": filepath.Join(dir, "snapshots")},
		"http":    map[string]any{"enabled": false},
		"metrics": map[string]any{"enabled": true},
	}
}

func startApp(t *testing.T, path string) *App {
	t.Helper()
	a, err := New(path, Options{Version: "test"})
	require.NoError(t, err)
	require.NoError(t, a.Start(context.Background()))
	return a
}

func stopApp(t *testing.T, a *App) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	require.NoError(t, a.Stop(ctx, StopAppStop))
}

func TestApp_ServesControlAPI(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "toastd.json")
	cfg := baseConfig(dir)
	addr := freeAddr(t)
	cfg["http"] = map[string]any{"enabled": true, "addr": addr}
	writeConfig(t, path, cfg)

	a := startApp(t, path)
	defer stopApp(t, a)

	require.Eventually(t, func() bool { return a.HTTPAddr() != "" }, 3*time.Second, 20*time.Millisecond)

	adm := a.Toasts().ShowMessage("hello", toast.KindInfo, toast.DefaultOptions())
	assert.Equal(t, toast.OutcomePresented, adm.Outcome)

	resp, err := http.Get(fmt.Sprintf("http://%s/v1/health", addr))
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var rep httpapi.HealthReport
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&rep))
	assert.True(t, rep.OK)
	assert.Equal(t, "test", rep.Version)
	assert.Equal(t, "presenting", rep.State)

	mresp, err := http.Get(fmt.Sprintf("http://%s/metrics", addr))
	require.NoError(t, err)
	defer mresp.Body.Close()
	assert.Equal(t, http.StatusOK, mresp.StatusCode)
}

func TestApp_CriticalToastSurvivesRestart(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "toastd.json")
	writeConfig(t, path, baseConfig(dir))

	a := startApp(t, path)
	opts := toast.DefaultOptions()
	opts.Priority = toast.PriorityCritical
	opts.Duration = 0
	a.Toasts().ShowMessage("disk almost full", toast.KindWarning, opts)
	a.Toasts().ShowMessage("just fyi", toast.KindInfo, toast.DefaultOptions())
	stopApp(t, a)

	b := startApp(t, path)
	defer stopApp(t, b)
	active, ok := b.Toasts().Status().State.Active()
	require.True(t, ok)
	assert.Equal(t, "disk almost full", active.Message)
	assert.Empty(t, b.Toasts().Status().Queue)
}

func TestApp_PolicyReloadReplacesManager(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "toastd.json")
	cfg := baseConfig(dir)
	writeConfig(t, path, cfg)

	a := startApp(t, path)
	defer stopApp(t, a)
	before := a.Toasts().Manager()

	opts := toast.DefaultOptions()
	opts.Priority = toast.PriorityCritical
	opts.Duration = 0
	a.Toasts().ShowMessage("keep me", toast.KindError, opts)
	a.Toasts().SetLowPowerMode(true)

	// Let the watcher register before rewriting the file.
	time.Sleep(100 * time.Millisecond)
	cfg["policy"] = map[string]any{"minimum_interval": "0s", "max_queue_size": 2}
	writeConfig(t, path, cfg)

	require.Eventually(t, func() bool {
		return a.Toasts().Manager().Policy().MaxQueueSize == 2
	}, 5*time.Second, 20*time.Millisecond)
	assert.NotSame(t, before, a.Toasts().Manager())

	st := a.Toasts().Status()
	assert.True(t, st.LowPower)
	active, ok := st.State.Active()
	require.True(t, ok)
	assert.Equal(t, "keep me", active.Message)
}

func TestApp_InvalidConfigFailsFast(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "toastd.json")
	cfg := baseConfig(dir)
	cfg["policy"] = map[string]any{"max_queue_size": 0}
	writeConfig(t, path, cfg)

	_, err := New(path, Options{})
	assert.ErrorContains(t, err, "policy.max_queue_size")
}
