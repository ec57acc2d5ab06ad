package hotreload

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const minimalDocument = `{
	"name": "w1",
	"IO_Graph": [
		{"name": "p", "output_stream": ["/data/a.bin"]}
	]
}`

const updatedDocument = `{
	"name": "w2",
	"IO_Graph": [
		{"name": "p", "output_stream": ["/data/a.bin"]},
		{"name": "q", "output_stream": ["/data/b.bin"]}
	]
}`

func writeDoc(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func TestReloaderLoadsInitialDocument(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "workflow.json")
	writeDoc(t, path, minimalDocument)

	r, err := New(Config{DebounceInterval: 20 * time.Millisecond}, path, nil)
	require.NoError(t, err)
	require.NoError(t, r.Start())
	defer r.Stop()

	require.NotNil(t, r.Current())
	assert.Equal(t, "w1", r.Current().WorkflowName())
}

func TestReloaderPicksUpFileChange(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "workflow.json")
	writeDoc(t, path, minimalDocument)

	r, err := New(Config{DebounceInterval: 20 * time.Millisecond}, path, nil)
	require.NoError(t, err)
	require.NoError(t, r.Start())
	defer r.Stop()

	writeDoc(t, path, updatedDocument)

	require.Eventually(t, func() bool {
		return r.Current() != nil && r.Current().WorkflowName() == "w2"
	}, 2*time.Second, 20*time.Millisecond)

	stats := r.Stats()
	assert.GreaterOrEqual(t, stats.SuccessfulReloads, int64(2))
}

func TestReloaderRecordsFailureOnMalformedDocument(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "workflow.json")
	writeDoc(t, path, minimalDocument)

	r, err := New(Config{DebounceInterval: 20 * time.Millisecond}, path, nil)
	require.NoError(t, err)
	require.NoError(t, r.Start())
	defer r.Stop()

	writeDoc(t, path, `{not json`)

	require.Eventually(t, func() bool {
		return r.Stats().FailedReloads >= 1
	}, 2*time.Second, 20*time.Millisecond)

	assert.NotEmpty(t, r.Stats().LastError)
	assert.Equal(t, "w1", r.Current().WorkflowName(), "engine pointer must stay on last good parse")
}
