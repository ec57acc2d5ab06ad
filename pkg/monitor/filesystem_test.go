package monitor

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFilesystemBackendCommitLifecycle(t *testing.T) {
	dir := t.TempDir()
	p := filepath.Join(dir, "out.txt")

	b := NewFilesystemBackend(nil)
	defer b.Close()

	assert.False(t, b.IsCommitted(p))

	b.SetCommitted(p)
	assert.True(t, b.IsCommitted(p))

	assert.FileExists(t, TokenPath(p))
}

func TestFilesystemBackendCreatesMissingParentDirs(t *testing.T) {
	dir := t.TempDir()
	p := filepath.Join(dir, "nested", "deep", "out.txt")

	b := NewFilesystemBackend(nil)
	b.SetCommitted(p)

	assert.True(t, b.IsCommitted(p))
}

func TestFilesystemBackendSetCommittedIsIdempotent(t *testing.T) {
	dir := t.TempDir()
	p := filepath.Join(dir, "out.txt")

	b := NewFilesystemBackend(nil)
	b.SetCommitted(p)
	b.SetCommitted(p) // must not error on a second call
	assert.True(t, b.IsCommitted(p))
}
