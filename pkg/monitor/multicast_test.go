package monitor

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

// testMulticastConfig is the group/port of the same-process test. Each
// multicast test uses its own group/port so parallel runs don't
// cross-talk; multicast ports aren't allocated by the OS the way
// ephemeral TCP ports are.
func testMulticastConfig() MulticastConfig {
	return MulticastConfig{Group: "224.224.224.2", Port: 29123}
}

func TestMulticastSetThenIsCommittedSameProcess(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreTopFunction("internal/poll.runtime_pollWait"))

	b, err := NewMulticastBackend(testMulticastConfig(), nil)
	require.NoError(t, err)
	defer b.Close()

	assert.False(t, b.IsCommitted("/x"), "fresh backend must report uncommitted")

	b.SetCommitted("/x")
	assert.True(t, b.IsCommitted("/x"))
}

func TestMulticastCloseJoinsListenerGoroutine(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreTopFunction("internal/poll.runtime_pollWait"))

	b, err := NewMulticastBackend(MulticastConfig{Group: "224.224.224.3", Port: 29124}, nil)
	require.NoError(t, err)

	require.NoError(t, b.Close())
	// Give the runtime a moment to finalize socket teardown before
	// goleak inspects the goroutine dump.
	time.Sleep(10 * time.Millisecond)
}

func TestMulticastHandleDatagramIgnoresUnknownCommandInLenientMode(t *testing.T) {
	b, err := NewMulticastBackend(MulticastConfig{Group: "224.224.224.4", Port: 29125, Strict: false}, nil)
	require.NoError(t, err)
	defer b.Close()

	b.handleDatagram([]byte("@ /weird"))
	assert.False(t, b.IsCommitted("/weird"))
}

// TestMulticastLateJoinRecovery covers spec.md §8 scenario 5: a
// backend constructed after another has already committed a path must
// still observe it, via the "?"/"!" request/reply protocol rather than
// missing the original "!" advertisement.
func TestMulticastLateJoinRecovery(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreTopFunction("internal/poll.runtime_pollWait"))

	cfg := MulticastConfig{Group: "224.224.224.5", Port: 29126}

	early, err := NewMulticastBackend(cfg, nil)
	require.NoError(t, err)
	defer early.Close()

	early.SetCommitted("/late-join")

	// late joins the group only after the commit already happened, so
	// it never saw the original "!" advertisement.
	late, err := NewMulticastBackend(cfg, nil)
	require.NoError(t, err)
	defer late.Close()

	assert.True(t, late.IsCommitted("/late-join"), "late joiner must recover commit state via the ?/! protocol")
}
