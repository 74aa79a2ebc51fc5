package main

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pitlane/kart/internal/storage/memory"
)

type fakeLeaderboard struct {
	mu      sync.Mutex
	uploads []map[string]string
}

func (f *fakeLeaderboard) handler(t *testing.T) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthcheck", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	mux.HandleFunc("/api/v1/ghosts/add", func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseMultipartForm(10 << 20); err != nil {
			t.Errorf("parse form: %v", err)
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		f.mu.Lock()
		f.uploads = append(f.uploads, map[string]string{
			"secret": r.FormValue("secret"),
			"runId":  r.FormValue("runId"),
			"course": r.FormValue("course"),
		})
		f.mu.Unlock()
		w.WriteHeader(http.StatusOK)
	})
	return mux
}

func setupApp(t *testing.T, serverURL string) (*app, string) {
	t.Helper()
	t.Cleanup(viper.Reset)
	dir := t.TempDir()
	viper.Set("logsDir", filepath.Join(dir, "logs"))
	viper.Set("storage.memory.outputDir", filepath.Join(dir, "ghosts"))
	viper.Set("api.serverUrl", serverURL)
	viper.Set("api.apiKey", "k3y")

	a, err := newApp(dir)
	require.NoError(t, err)
	t.Cleanup(a.shutdown)
	return a, dir
}

func TestRunScript_PersistsExportsAndUploads(t *testing.T) {
	lb := &fakeLeaderboard{}
	server := httptest.NewServer(lb.handler(t))
	defer server.Close()

	a, dir := setupApp(t, server.URL)
	assert.FileExists(t, a.logFilePath)

	script := filepath.Join(dir, "script.json")
	require.NoError(t, os.WriteFile(script, []byte(`{
		"tickRate": 100,
		"duration": 3,
		"events": [
			{"at": 0, "command": ":GHOST:TOGGLE:"},
			{"at": 0, "command": ":ACCELERATE:", "args": ["0", "1"]},
			{"at": 1, "command": ":GHOST:TOGGLE:"},
			{"at": 1, "command": ":ACCELERATE:", "args": ["0", "0"]}
		]
	}`), 0644))

	require.NoError(t, a.runScript(context.Background(), script))
	assert.Equal(t, 1, a.session.Runs())

	entries, err := os.ReadDir(filepath.Join(dir, "ghosts"))
	require.NoError(t, err)
	require.Len(t, entries, 1)
	run, err := memory.ReadExportFile(filepath.Join(dir, "ghosts", entries[0].Name()))
	require.NoError(t, err)
	assert.Equal(t, "Sprint", run.CourseName)

	lb.mu.Lock()
	defer lb.mu.Unlock()
	require.Len(t, lb.uploads, 1)
	assert.Equal(t, "k3y", lb.uploads[0]["secret"])
	assert.Equal(t, run.ID, lb.uploads[0]["runId"])
	assert.Equal(t, "Sprint", lb.uploads[0]["course"])
}

func TestRunScript_MissingScript(t *testing.T) {
	a, dir := setupApp(t, "http://127.0.0.1:1")
	assert.Error(t, a.runScript(context.Background(), filepath.Join(dir, "nope.json")))
}

func TestUploadFiles(t *testing.T) {
	lb := &fakeLeaderboard{}
	server := httptest.NewServer(lb.handler(t))
	defer server.Close()

	a, dir := setupApp(t, server.URL)
	run := testRun()
	path := filepath.Join(dir, memory.ExportFileName(run, true))
	require.NoError(t, writeExportFile(path, run, true))

	require.NoError(t, a.uploadFiles([]string{path}))
	lb.mu.Lock()
	defer lb.mu.Unlock()
	require.Len(t, lb.uploads, 1)
	assert.Equal(t, run.ID, lb.uploads[0]["runId"])
}

func TestUploadFiles_ServerDown(t *testing.T) {
	a, _ := setupApp(t, "http://127.0.0.1:1")
	assert.Error(t, a.uploadFiles([]string{"whatever.json"}))
}

func TestExportRuns_UnknownRun(t *testing.T) {
	a, _ := setupApp(t, "http://127.0.0.1:1")
	assert.Error(t, a.exportRuns([]string{"missing"}))
}

func TestPrintRecords_MemoryUnsupported(t *testing.T) {
	a, _ := setupApp(t, "http://127.0.0.1:1")
	assert.Error(t, a.printRecords())
}

func TestPrintRecords_SQLite(t *testing.T) {
	a, dir := setupApp(t, "http://127.0.0.1:1")
	viper.Set("storage.type", "sqlite")
	viper.Set("storage.sqlite.dumpPath", filepath.Join(dir, "kart.db"))
	assert.NoError(t, a.printRecords())
}

func TestDispatch_UnknownCommand(t *testing.T) {
	a, _ := setupApp(t, "http://127.0.0.1:1")
	assert.Error(t, a.dispatch(context.Background(), []string{"fly"}))
	assert.Error(t, a.dispatch(context.Background(), []string{"run"}))
}
