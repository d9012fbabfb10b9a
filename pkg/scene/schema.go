package scene

import (
	_ "embed"
	"strings"
	"sync"

	"github.com/xeipuuv/gojsonschema"

	"github.com/matzehuels/sightline/pkg/errors"
	"github.com/matzehuels/sightline/pkg/geom"
)

//go:embed schema.json
var schemaJSON []byte

// Schema returns the JSON Schema scene documents are validated against.
func Schema() []byte { return schemaJSON }

// rationalFormatChecker accepts coordinate strings ParseRat understands.
type rationalFormatChecker struct{}

func (rationalFormatChecker) IsFormat(input any) bool {
	s, ok := input.(string)
	if !ok {
		return false
	}
	_, err := geom.ParseRat(s)
	return err == nil
}

var (
	schemaOnce sync.Once
	schema     *gojsonschema.Schema
	schemaErr  error
)

func compiledSchema() (*gojsonschema.Schema, error) {
	schemaOnce.Do(func() {
		gojsonschema.FormatCheckers.Add("rational", rationalFormatChecker{})
		schema, schemaErr = gojsonschema.NewSchema(gojsonschema.NewBytesLoader(schemaJSON))
	})
	return schema, schemaErr
}

// ValidateJSON checks a JSON scene document against the scene schema.
func ValidateJSON(data []byte) error {
	s, err := compiledSchema()
	if err != nil {
		return errors.Wrap(errors.ErrCodeInternal, err, "compile scene schema")
	}
	result, err := s.Validate(gojsonschema.NewBytesLoader(data))
	if err != nil {
		return errors.Wrap(errors.ErrCodeInvalidScene, err, "invalid json")
	}
	if !result.Valid() {
		var msgs []string
		for _, desc := range result.Errors() {
			msgs = append(msgs, desc.String())
		}
		return errors.New(errors.ErrCodeInvalidScene, "schema validation failed: %s", strings.Join(msgs, "; "))
	}
	return nil
}
