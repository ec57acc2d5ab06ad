package codec

import "github.com/High-Performance-IO/capiocl-go/pkg/engine"

// defaultVersion is used when a document omits "version" and is the
// version Serialize emits. Future codec revisions (e.g. "1.1") add an
// entry to both maps below without touching v1's functions.
const defaultVersion = "1.0"

type parseFunc func([]byte, *parseConfig) (*engine.Engine, error)
type serializeFunc func(*engine.Engine) (*Document, error)

var versionParsers = map[string]parseFunc{
	defaultVersion: parseV1,
}

var versionSerializers = map[string]serializeFunc{
	defaultVersion: serializeV1,
}
