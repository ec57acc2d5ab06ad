package codec

import (
	"encoding/json"
	"sort"
	"strconv"

	"github.com/High-Performance-IO/capiocl-go/internal/metrics"
	"github.com/High-Performance-IO/capiocl-go/pkg/cerrors"
	"github.com/High-Performance-IO/capiocl-go/pkg/engine"
	"github.com/High-Performance-IO/capiocl-go/pkg/registry"
)

// Serialize renders e as a CAPIO-CL workflow document using the latest
// supported codec version.
func Serialize(e *engine.Engine) ([]byte, error) {
	return SerializeVersion(e, defaultVersion)
}

// SerializeVersion renders e using a specific codec version.
func SerializeVersion(e *engine.Engine, version string) ([]byte, error) {
	serializeFn, ok := versionSerializers[version]
	if !ok {
		metrics.CodecDocument("serialize", "unsupported_version")
		return nil, cerrors.SerializeError("codec", "SerializeVersion", "unsupported document version "+version)
	}

	doc, err := serializeFn(e)
	if err != nil {
		metrics.CodecDocument("serialize", "error")
		return nil, err
	}
	out, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		metrics.CodecDocument("serialize", "error")
		return nil, cerrors.SerializeErrorWrap("codec", "SerializeVersion", "document encode failed", err)
	}
	metrics.CodecDocument("serialize", "ok")
	return out, nil
}

// serializeV1 builds producer/consumer indexes from the store snapshot
// and emits one IO_Graph entry per app name, plus a synthetic
// unassignedAppName entry for paths with no producer but with
// non-default coordination metadata. Every known path is also listed
// under storage.memory or storage.fs, so that a path materialized with
// no other footprint still round-trips through Parse.
func serializeV1(e *engine.Engine) (*Document, error) {
	snapshot := e.Store.Snapshot()

	producerPaths := map[string][]string{}
	consumerPaths := map[string][]string{}
	for p, entry := range snapshot {
		for _, step := range entry.Producers.Items() {
			producerPaths[step] = append(producerPaths[step], p)
		}
		for _, step := range entry.Consumers.Items() {
			consumerPaths[step] = append(consumerPaths[step], p)
		}
	}

	appNames := map[string]struct{}{}
	for name := range producerPaths {
		appNames[name] = struct{}{}
	}
	for name := range consumerPaths {
		appNames[name] = struct{}{}
	}

	// A path only ever gets a streaming record through a producer app's
	// block (matching the wire format's nesting). Anything with no
	// producer at all — a pure orphan, or a path that is only
	// consumed — still needs its commit/fire metadata captured
	// somewhere, so it rides along in the synthetic unassigned bucket.
	var orphanPaths []string
	for p, entry := range snapshot {
		if entry.Producers.Len() > 0 {
			continue
		}
		if hasNonDefaultMetadata(entry) {
			orphanPaths = append(orphanPaths, p)
		}
	}
	if len(orphanPaths) > 0 {
		appNames[unassignedAppName] = struct{}{}
	}

	sortedNames := make([]string, 0, len(appNames))
	for name := range appNames {
		sortedNames = append(sortedNames, name)
	}
	sort.Strings(sortedNames)

	doc := &Document{
		Name:    e.WorkflowName(),
		Version: defaultVersion,
	}

	for _, name := range sortedNames {
		app := AppSpec{Name: name}
		if name == unassignedAppName {
			app.Streaming = streamingRecordsFor(orphanPaths, snapshot)
		} else {
			produced := sortedCopy(producerPaths[name])
			app.OutputStream = produced
			app.InputStream = sortedCopy(consumerPaths[name])
			app.Streaming = streamingRecordsFor(produced, snapshot)
		}
		doc.IOGraph = append(doc.IOGraph, app)
	}

	var memory, fs, permanent, exclude []string
	for p, entry := range snapshot {
		if entry.Permanent {
			permanent = append(permanent, p)
		}
		if entry.Excluded {
			exclude = append(exclude, p)
		}
		if entry.StoreInMemory {
			memory = append(memory, p)
		} else {
			fs = append(fs, p)
		}
	}
	sort.Strings(permanent)
	sort.Strings(exclude)
	sort.Strings(memory)
	sort.Strings(fs)

	doc.Permanent = permanent
	doc.Exclude = exclude
	if len(memory) > 0 || len(fs) > 0 {
		doc.Storage = &StorageSpec{Memory: memory, FS: fs}
	}

	return doc, nil
}

func sortedCopy(in []string) []string {
	if len(in) == 0 {
		return nil
	}
	out := append([]string(nil), in...)
	sort.Strings(out)
	return out
}

// hasNonDefaultMetadata reports whether entry carries coordination
// metadata beyond a freshly materialized default entry, i.e. whether
// it deserves a streaming record of its own even with no role.
func hasNonDefaultMetadata(entry *registry.Entry) bool {
	def := registry.NewDefaultEntry()
	return entry.CommitRule != def.CommitRule ||
		entry.FireRule != def.FireRule ||
		entry.CommitOnCloseCount != 0 ||
		entry.DirectoryChildrenCount != 0 ||
		entry.AutoUpdateDirCount != def.AutoUpdateDirCount ||
		entry.IsFile != def.IsFile ||
		entry.FileDependencies.Len() > 0
}

func streamingRecordsFor(paths []string, snapshot map[string]*registry.Entry) []StreamingRecord {
	var out []StreamingRecord
	for _, p := range sortedCopy(paths) {
		entry := snapshot[p]
		if entry == nil {
			continue
		}
		rec := StreamingRecord{
			Committed: formatCommitted(entry),
			Mode:      string(entry.FireRule),
			FileDeps:  sortedCopy(entry.FileDependencies.Items()),
		}
		if entry.IsFile {
			rec.Name = []string{p}
		} else {
			rec.Dirname = []string{p}
			n := entry.DirectoryChildrenCount
			rec.NFiles = &n
		}
		out = append(out, rec)
	}
	return out
}

func formatCommitted(entry *registry.Entry) string {
	if entry.CommitRule == registry.CommitOnClose && entry.CommitOnCloseCount > 0 {
		return string(entry.CommitRule) + ":" + strconv.Itoa(entry.CommitOnCloseCount)
	}
	return string(entry.CommitRule)
}
