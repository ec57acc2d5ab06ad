package monitor

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

type fakeBackend struct {
	committed map[string]bool
	setCalls  []string
	closed    bool
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{committed: make(map[string]bool)}
}

func (f *fakeBackend) IsCommitted(path string) bool { return f.committed[path] }
func (f *fakeBackend) SetCommitted(path string) {
	f.setCalls = append(f.setCalls, path)
	f.committed[path] = true
}
func (f *fakeBackend) Close() error { f.closed = true; return nil }

func TestAggregatorIsCommittedIsAnyBackend(t *testing.T) {
	a := newFakeBackend()
	b := newFakeBackend()
	b.committed["/x"] = true

	agg := NewAggregator(a, b)
	assert.True(t, agg.IsCommitted("/x"))
	assert.False(t, agg.IsCommitted("/y"))
}

func TestAggregatorSetCommittedFansOutToEveryBackend(t *testing.T) {
	a := newFakeBackend()
	b := newFakeBackend()

	agg := NewAggregator(a, b)
	agg.SetCommitted("/x")

	assert.True(t, a.committed["/x"])
	assert.True(t, b.committed["/x"])
}

func TestAggregatorCloseReleasesEveryBackend(t *testing.T) {
	a := newFakeBackend()
	b := newFakeBackend()

	agg := NewAggregator(a, b)
	assert.NoError(t, agg.Close())
	assert.True(t, a.closed)
	assert.True(t, b.closed)
}

func TestAggregatorWithNoBackendsIsNeverCommitted(t *testing.T) {
	agg := NewAggregator()
	assert.False(t, agg.IsCommitted("/x"))
}
