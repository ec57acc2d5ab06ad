package codec

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/High-Performance-IO/capiocl-go/internal/metrics"
	"github.com/High-Performance-IO/capiocl-go/pkg/cerrors"
	"github.com/High-Performance-IO/capiocl-go/pkg/engine"
	"github.com/High-Performance-IO/capiocl-go/pkg/registry"
)

// ParseOption configures a single Parse call.
type ParseOption func(*parseConfig)

type parseConfig struct {
	logger           *logrus.Logger
	resolvePrefix    string
	storeAllInMemory bool
	engineOpts       []engine.Option
}

// WithResolvePrefix prepends prefix to every relative path encountered
// in the document. Without it, relative paths are kept as-is and a
// warning is logged for each one.
func WithResolvePrefix(prefix string) ParseOption {
	return func(c *parseConfig) { c.resolvePrefix = prefix }
}

// WithParseLogger injects a *logrus.Logger for parse-time diagnostics,
// defaulting to logrus.StandardLogger().
func WithParseLogger(logger *logrus.Logger) ParseOption {
	return func(c *parseConfig) { c.logger = logger }
}

// WithStoreAllInMemory engages the engine-wide store_all_in_memory
// flag once parsing succeeds.
func WithStoreAllInMemory() ParseOption {
	return func(c *parseConfig) { c.storeAllInMemory = true }
}

// WithEngineOptions forwards extra engine.Option values (e.g.
// engine.WithBackends) to the Engine constructed by Parse.
func WithEngineOptions(opts ...engine.Option) ParseOption {
	return func(c *parseConfig) { c.engineOpts = append(c.engineOpts, opts...) }
}

// Parse decodes a CAPIO-CL workflow document and returns a populated
// Engine. The document's "version" field selects the codec revision
// that parses it; a missing field defaults to "1.0".
func Parse(raw []byte, opts ...ParseOption) (*engine.Engine, error) {
	cfg := &parseConfig{logger: logrus.StandardLogger()}
	for _, opt := range opts {
		opt(cfg)
	}

	version, err := peekVersion(raw)
	if err != nil {
		metrics.CodecDocument("parse", "error")
		return nil, cerrors.ParseErrorWrap("codec", "Parse", "malformed JSON document", err)
	}

	parseFn, ok := versionParsers[version]
	if !ok {
		metrics.CodecDocument("parse", "unsupported_version")
		return nil, cerrors.ParseError("codec", "Parse", "unsupported document version "+version)
	}

	e, err := parseFn(raw, cfg)
	if err != nil {
		metrics.CodecDocument("parse", "error")
		return nil, err
	}
	metrics.CodecDocument("parse", "ok")
	return e, nil
}

func peekVersion(raw []byte) (string, error) {
	var probe struct {
		Version string `json:"version"`
	}
	if err := json.Unmarshal(raw, &probe); err != nil {
		return "", err
	}
	if probe.Version == "" {
		return defaultVersion, nil
	}
	return probe.Version, nil
}

func parseV1(raw []byte, cfg *parseConfig) (*engine.Engine, error) {
	if err := validateAgainstV1Schema(raw); err != nil {
		return nil, cerrors.ParseErrorWrap("codec", "parseV1", "document failed schema validation", err)
	}

	var doc Document
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, cerrors.ParseErrorWrap("codec", "parseV1", "document decode failed", err)
	}

	eng := engine.New(append([]engine.Option{engine.WithWorkflowName(doc.Name)}, cfg.engineOpts...)...)
	store := eng.Store

	resolve := func(p string) string { return resolvePath(p, cfg) }

	for _, app := range doc.IOGraph {
		for _, p := range app.OutputStream {
			store.AddProducer(resolve(p), app.Name)
		}
		for _, p := range app.InputStream {
			store.AddConsumer(resolve(p), app.Name)
		}
		for _, rec := range app.Streaming {
			if err := applyStreamingRecord(store, rec, resolve); err != nil {
				return nil, err
			}
		}
	}

	for _, p := range doc.Permanent {
		store.SetPermanent(resolve(p), true)
	}
	for _, p := range doc.Exclude {
		store.SetExcluded(resolve(p), true)
	}
	if doc.Storage != nil {
		for _, p := range doc.Storage.Memory {
			store.SetStoreInMemory(resolve(p), true)
		}
		for _, p := range doc.Storage.FS {
			store.SetStoreInMemory(resolve(p), false)
		}
	}

	if cfg.storeAllInMemory {
		eng.SetAllStoreInMemory()
	}

	return eng, nil
}

// resolvePath prepends a configured prefix to relative paths. Absolute
// paths are left untouched.
func resolvePath(p string, cfg *parseConfig) string {
	if p == "" || strings.HasPrefix(p, "/") {
		return p
	}
	if cfg.resolvePrefix != "" {
		return strings.TrimRight(cfg.resolvePrefix, "/") + "/" + p
	}
	cfg.logger.WithField("path", p).Warn("relative path with no resolve prefix configured, keeping as written")
	return p
}

func applyStreamingRecord(store *registry.Store, rec StreamingRecord, resolve func(string) string) error {
	paths := rec.Name
	isFile := true
	if len(rec.Dirname) > 0 {
		paths = rec.Dirname
		isFile = false
	}

	fireRule := registry.FireUpdate
	if rec.Mode != "" {
		parsed, err := registry.ParseFireRule(rec.Mode)
		if err != nil {
			return err
		}
		fireRule = parsed
	}

	commitRule, closeCount, err := parseCommitted(rec.Committed)
	if err != nil {
		return err
	}
	if len(rec.FileDeps) > 0 {
		commitRule = registry.CommitOnFile
	}
	if commitRule == registry.CommitOnFile && len(rec.FileDeps) == 0 {
		return cerrors.InvalidRule("codec", "applyStreamingRecord", "commit rule on_file requires a non-empty file_deps list")
	}

	for _, raw := range paths {
		p := resolve(raw)
		if commitRule != "" {
			if err := store.SetCommitRule(p, commitRule); err != nil {
				return err
			}
		}
		if err := store.SetFireRule(p, fireRule); err != nil {
			return err
		}
		if closeCount > 0 {
			store.SetCloseCount(p, closeCount)
		}
		for _, dep := range rec.FileDeps {
			store.AddFileDependency(p, resolve(dep))
		}
		if !isFile {
			store.SetDirectory(p)
			if rec.NFiles != nil {
				store.SetDirectoryFileCount(p, *rec.NFiles)
			}
		}
	}
	return nil
}

// parseCommitted splits the wire-format "committed" field. on_close
// carries an optional ":N" close-count suffix, e.g. "on_close:3".
func parseCommitted(raw string) (registry.CommitRule, int, error) {
	if raw == "" {
		return "", 0, nil
	}
	rule, countStr, hasCount := strings.Cut(raw, ":")
	parsed, err := registry.ParseCommitRule(rule)
	if err != nil {
		return "", 0, err
	}
	if !hasCount {
		return parsed, 0, nil
	}
	n, err := strconv.Atoi(countStr)
	if err != nil {
		return "", 0, cerrors.ParseErrorWrap("codec", "parseCommitted", fmt.Sprintf("invalid close count in %q", raw), err)
	}
	return parsed, n, nil
}
