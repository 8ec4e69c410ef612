package value

import (
	"bytes"
	"fmt"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// ValidateSchema checks a Struct/Generic value against its pin's optional
// JSON schema (§3 Pin invariants: "Struct/Generic pins may carry a JSON
// schema; a write that doesn't validate is rejected"). Grounded on
// internal/nodes/data/schema_transformer.go's use of the same compiler for
// schema-driven transforms, reused here for the narrower job of validating
// a single value instead of compiling a transform pipeline.
//
// A pin with no schema, or a value of any other DataType, is always valid.
func ValidateSchema(dt DataType, schema []byte, v Value) error {
	if len(schema) == 0 || (dt != Struct && dt != Generic) || v.IsNull() {
		return nil
	}

	compiler := jsonschema.NewCompiler()
	const resource = "pin-schema.json"
	if err := compiler.AddResource(resource, bytes.NewReader(schema)); err != nil {
		return &TypeError{From: dt, To: dt, Err: fmt.Errorf("loading pin schema: %w", err)}
	}
	compiled, err := compiler.Compile(resource)
	if err != nil {
		return &TypeError{From: dt, To: dt, Err: fmt.Errorf("compiling pin schema: %w", err)}
	}
	if err := compiled.Validate(v.RawValue); err != nil {
		return &TypeError{From: dt, To: dt, Err: fmt.Errorf("schema validation: %w", err)}
	}
	return nil
}
