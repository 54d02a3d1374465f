package challenge

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"fmt"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

//go:embed challenge.schema.json
var schemaJSON []byte

const schemaName = "challenge.schema.json"

var documentSchema = mustCompileSchema()

func mustCompileSchema() *jsonschema.Schema {
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource(schemaName, bytes.NewReader(schemaJSON)); err != nil {
		panic(fmt.Sprintf("add challenge schema: %v", err))
	}
	schema, err := compiler.Compile(schemaName)
	if err != nil {
		panic(fmt.Sprintf("compile challenge schema: %v", err))
	}
	return schema
}

// decodeDocument validates raw against the challenge schema before
// decoding it. Copies written by other clients are untrusted.
func decodeDocument(raw json.RawMessage) (*Challenge, error) {
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return nil, err
	}
	if err := documentSchema.Validate(v); err != nil {
		return nil, err
	}
	var ch Challenge
	if err := json.Unmarshal(raw, &ch); err != nil {
		return nil, err
	}
	ch.ensureMaps()
	return &ch, nil
}
