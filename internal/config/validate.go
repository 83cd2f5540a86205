package config

import (
	_ "embed"
	"fmt"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	cueerrors "cuelang.org/go/cue/errors"
	cueyaml "cuelang.org/go/encoding/yaml"
)

//go:embed schema.cue
var schemaCUE string

// SchemaError wraps CUE validation failures with their field positions.
type SchemaError struct {
	Details string
	Err     error
}

func (e *SchemaError) Error() string {
	return fmt.Sprintf("config does not match schema:\n%s", e.Details)
}

func (e *SchemaError) Unwrap() error { return e.Err }

// validateSchema checks raw YAML bytes against the embedded #Config
// schema before any Go-side decoding happens.
func validateSchema(data []byte) error {
	ctx := cuecontext.New()

	schema := ctx.CompileString(schemaCUE, cue.Filename("schema.cue"))
	if err := schema.Err(); err != nil {
		// The schema is embedded; failing to compile it is a bug.
		return fmt.Errorf("compile config schema: %w", err)
	}
	def := schema.LookupPath(cue.ParsePath("#Config"))
	if err := def.Err(); err != nil {
		return fmt.Errorf("lookup #Config: %w", err)
	}

	if err := cueyaml.Validate(data, def); err != nil {
		return &SchemaError{Details: cueerrors.Details(err, nil), Err: err}
	}
	return nil
}
