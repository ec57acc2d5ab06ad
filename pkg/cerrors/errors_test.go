package cerrors

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestErrorMessageFormatting(t *testing.T) {
	err := InvalidRule("registry", "SetCommitRule", `unknown rule "bogus"`)
	assert.Equal(t, `[registry:SetCommitRule] InvalidRule: unknown rule "bogus"`, err.Error())

	wrapped := ParseErrorWrap("codec", "Parse", "schema violation", errors.New("boom"))
	assert.Contains(t, wrapped.Error(), "boom")
}

func TestErrorIsMatchesByKind(t *testing.T) {
	err := MonitorFailure("monitor", "Listen", "bind failed")
	require.True(t, errors.Is(err, New(KindMonitorFailure, "", "", "")))
	require.False(t, errors.Is(err, New(KindParseError, "", "", "")))
}

func TestErrorUnwrap(t *testing.T) {
	cause := errors.New("disk full")
	err := SerializeErrorWrap("codec", "Serialize", "write failed", cause)
	require.Equal(t, cause, errors.Unwrap(err))
}
