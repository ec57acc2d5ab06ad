package codec

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

//go:embed schema/v1.schema.json
var v1SchemaDoc []byte

const v1SchemaResource = "capiocl://schema/v1.schema.json"

var (
	v1SchemaOnce    sync.Once
	v1SchemaCompile *jsonschema.Schema
	v1SchemaErr     error
)

// compiledV1Schema lazily compiles the embedded v1 JSON Schema once per
// process.
func compiledV1Schema() (*jsonschema.Schema, error) {
	v1SchemaOnce.Do(func() {
		compiler := jsonschema.NewCompiler()
		if err := compiler.AddResource(v1SchemaResource, bytes.NewReader(v1SchemaDoc)); err != nil {
			v1SchemaErr = err
			return
		}
		v1SchemaCompile, v1SchemaErr = compiler.Compile(v1SchemaResource)
	})
	return v1SchemaCompile, v1SchemaErr
}

// validateAgainstV1Schema decodes raw into an untyped value and runs it
// through the compiled v1 schema, independent of struct-tag based
// decoding so that schema violations are reported before Document
// unmarshalling papers over them with zero values.
func validateAgainstV1Schema(raw []byte) error {
	schema, err := compiledV1Schema()
	if err != nil {
		return err
	}
	var v interface{}
	if err := json.Unmarshal(raw, &v); err != nil {
		return err
	}
	return schema.Validate(v)
}
