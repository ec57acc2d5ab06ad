package codec

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/High-Performance-IO/capiocl-go/pkg/cerrors"
	"github.com/High-Performance-IO/capiocl-go/pkg/engine"
	"github.com/High-Performance-IO/capiocl-go/pkg/registry"
)

func TestParseRejectsSchemaViolations(t *testing.T) {
	_, err := Parse([]byte(`{"IO_Graph": []}`))
	require.Error(t, err)
	assert.True(t, isParseError(err))
}

func isParseError(err error) bool {
	ce, ok := err.(*cerrors.Error)
	return ok && ce.Kind == cerrors.KindParseError
}

func TestParseRejectsUnsupportedVersion(t *testing.T) {
	doc := `{"name": "w", "version": "9.9", "IO_Graph": []}`
	_, err := Parse([]byte(doc))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported document version")
}

func TestParseMinimalDocument(t *testing.T) {
	doc := `{
		"name": "pipeline",
		"IO_Graph": [
			{"name": "producer", "output_stream": ["/data/out.csv"]},
			{"name": "consumer", "input_stream": ["/data/out.csv"]}
		]
	}`
	e, err := Parse([]byte(doc))
	require.NoError(t, err)

	assert.Equal(t, "pipeline", e.WorkflowName())
	assert.True(t, e.Store.IsProducer("/data/out.csv", "producer"))
	assert.True(t, e.Store.IsConsumer("/data/out.csv", "consumer"))
}

func TestParseOnCloseSuffixSetsCloseCount(t *testing.T) {
	doc := `{
		"name": "w",
		"IO_Graph": [
			{"name": "p", "output_stream": ["/out/a.bin"], "streaming": [
				{"name": ["/out/a.bin"], "committed": "on_close:3", "mode": "update"}
			]}
		]
	}`
	e, err := Parse([]byte(doc))
	require.NoError(t, err)
	assert.Equal(t, registry.CommitOnClose, e.Store.GetCommitRule("/out/a.bin"))
	assert.Equal(t, 3, e.Store.GetCloseCount("/out/a.bin"))
}

func TestParseOnFileRequiresFileDeps(t *testing.T) {
	doc := `{
		"name": "w",
		"IO_Graph": [
			{"name": "p", "output_stream": ["/out/a.bin"], "streaming": [
				{"name": ["/out/a.bin"], "committed": "on_file"}
			]}
		]
	}`
	_, err := Parse([]byte(doc))
	require.Error(t, err)
}

func TestParseRelativePathWithResolvePrefix(t *testing.T) {
	doc := `{
		"name": "w",
		"IO_Graph": [
			{"name": "p", "output_stream": ["rel/out.bin"]}
		]
	}`
	e, err := Parse([]byte(doc), WithResolvePrefix("/base"))
	require.NoError(t, err)
	assert.True(t, e.Store.IsProducer("/base/rel/out.bin", "p"))
}

// TestRoundTripLaw exercises the testable property from the codec's
// specification: for an engine built entirely through public setters,
// Parse(Serialize(e)) reconstructs an equal engine.
func TestRoundTripLaw(t *testing.T) {
	e := engine.New(engine.WithWorkflowName("roundtrip"))

	e.Store.AddProducer("/data/a.csv", "step1")
	e.Store.AddProducer("/data/a.csv", "step1b")
	e.Store.AddConsumer("/data/a.csv", "step2")
	require.NoError(t, e.Store.SetCommitRule("/data/a.csv", registry.CommitOnClose))
	e.Store.SetCloseCount("/data/a.csv", 3)
	require.NoError(t, e.Store.SetFireRule("/data/a.csv", registry.FireUpdate))

	e.Store.AddProducer("/data/b.csv", "step1")
	require.NoError(t, e.Store.SetFireRule("/data/b.csv", registry.FireNoUpdate))

	e.Store.SetDirectoryFileCount("/data/dir", 10)
	e.Store.AddConsumer("/data/dir", "step3")

	e.Store.AddFileDependency("/data/merged.bin", "/data/a.csv")
	e.Store.AddFileDependency("/data/merged.bin", "/data/b.csv")
	e.Store.AddProducer("/data/merged.bin", "step4")

	e.Store.SetExcluded("/data/scratch", true)
	e.Store.AddProducer("/data/scratch", "step1")
	e.Store.AddProducer("/data/scratch", "step1b")
	e.Store.AddProducer("/data/scratch", "stepX")

	e.Store.SetPermanent("/data/final.out", true)
	e.Store.AddProducer("/data/final.out", "step4")

	e.Store.SetStoreInMemory("/data/hot.tmp", true)
	require.NoError(t, e.Store.SetCommitRule("/data/hot.tmp", registry.CommitOnTermination))

	raw, err := Serialize(e)
	require.NoError(t, err)

	reparsed, err := Parse(raw)
	require.NoError(t, err)

	assert.True(t, e.Equal(reparsed), "round trip must reconstruct an equal engine:\n%s", raw)
}

func TestRoundTripLawPreservesOrphanEntry(t *testing.T) {
	e := engine.New(engine.WithWorkflowName("orphans"))
	e.Store.SetDirectoryFileCount("/data/lonely", 5)

	raw, err := Serialize(e)
	require.NoError(t, err)

	reparsed, err := Parse(raw)
	require.NoError(t, err)

	assert.True(t, e.Equal(reparsed))
	assert.True(t, reparsed.Store.IsDirectory("/data/lonely"))
	assert.Equal(t, 5, reparsed.Store.GetDirectoryFileCount("/data/lonely"))
}

func TestSerializeUnsupportedVersion(t *testing.T) {
	e := engine.New()
	_, err := SerializeVersion(e, "0.1")
	require.Error(t, err)
}
