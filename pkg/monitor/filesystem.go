package monitor

import (
	"os"
	"path/filepath"

	"github.com/sirupsen/logrus"

	"github.com/High-Performance-IO/capiocl-go/internal/metrics"
)

// tokenSuffix is the fixed suffix on every commit token's hidden
// sibling file, per spec.md §4.3.1 / §6.
const tokenSuffix = ".capiocl"

// FilesystemBackend implements Backend by creating/checking a hidden
// sibling "commit token" file next to each committed path. It holds no
// in-memory state — the disk is authoritative — matching spec.md
// §4.3.1 and §5 ("for filesystem backends, only the disk is
// authoritative").
type FilesystemBackend struct {
	logger *logrus.Logger
}

// NewFilesystemBackend returns a FilesystemBackend. A nil logger falls
// back to logrus.StandardLogger().
func NewFilesystemBackend(logger *logrus.Logger) *FilesystemBackend {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &FilesystemBackend{logger: logger}
}

// TokenPath returns the commit token path for p:
// <parent(abs(p))>/.<filename(p)>.capiocl
func TokenPath(p string) string {
	abs, err := filepath.Abs(p)
	if err != nil {
		abs = p
	}
	dir := filepath.Dir(abs)
	base := filepath.Base(abs)
	return filepath.Join(dir, "."+base+tokenSuffix)
}

// IsCommitted reports whether p's token file exists.
func (b *FilesystemBackend) IsCommitted(p string) bool {
	_, err := os.Stat(TokenPath(p))
	hit := err == nil
	metrics.MonitorCommitChecked("filesystem", hit)
	return hit
}

// SetCommitted creates p's token file (and any missing parent
// directories) if it does not already exist. Content is empty.
func (b *FilesystemBackend) SetCommitted(p string) {
	token := TokenPath(p)
	if _, err := os.Stat(token); err == nil {
		return
	}

	if err := os.MkdirAll(filepath.Dir(token), 0o755); err != nil {
		b.logger.WithFields(logrus.Fields{"path": p, "error": err}).Error("failed to create commit token directory")
		return
	}
	f, err := os.OpenFile(token, os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		if !os.IsExist(err) {
			b.logger.WithFields(logrus.Fields{"path": p, "error": err}).Error("failed to create commit token")
		}
		return
	}
	f.Close()
	metrics.MonitorCommitSet()
}

// Close is a no-op: the filesystem backend holds no in-memory state.
func (b *FilesystemBackend) Close() error {
	return nil
}
