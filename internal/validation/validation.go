// Package validation holds the field-level shape checks used by the booking
// wizard. Each field has its own JSON schema, compiled lazily and cached.
package validation

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"

	"supperclub/internal/models"

	"github.com/ettle/strcase"
	"github.com/santhosh-tekuri/jsonschema/v5"
)

//go:embed fields.json
var defaultSchemas []byte

var (
	ErrInvalidField  = errors.New("invalid field value")
	ErrUnknownSchema = errors.New("no schema for field")
)

// FieldChecker validates a single field value.
type FieldChecker interface {
	CheckField(field models.Field, value any) error
}

// FieldError describes why a value failed its schema.
type FieldError struct {
	Field   models.Field
	Message string
}

func (e *FieldError) Error() string {
	return fmt.Sprintf("%s: %s", FieldLabel(e.Field), e.Message)
}

func (e *FieldError) Is(target error) bool {
	return target == ErrInvalidField
}

// SchemaValidator checks field values against per-field JSON schemas.
type SchemaValidator struct {
	mu       sync.RWMutex
	raw      map[models.Field]json.RawMessage
	compiled map[models.Field]*jsonschema.Schema
}

// NewSchemaValidator builds a validator from the embedded field schemas.
func NewSchemaValidator() (*SchemaValidator, error) {
	return NewSchemaValidatorFrom(defaultSchemas)
}

// NewSchemaValidatorFrom builds a validator from a JSON document mapping field
// names to schemas.
func NewSchemaValidatorFrom(doc []byte) (*SchemaValidator, error) {
	var raw map[models.Field]json.RawMessage
	if err := json.Unmarshal(doc, &raw); err != nil {
		return nil, fmt.Errorf("validation: parse field schemas: %w", err)
	}
	return &SchemaValidator{
		raw:      raw,
		compiled: make(map[models.Field]*jsonschema.Schema, len(raw)),
	}, nil
}

// MustDefault panics if the embedded schemas fail to parse.
func MustDefault() *SchemaValidator {
	v, err := NewSchemaValidator()
	if err != nil {
		panic(err)
	}
	return v
}

// CheckField validates value against the schema registered for field.
// Fields without a schema are accepted.
func (v *SchemaValidator) CheckField(field models.Field, value any) error {
	schema, err := v.schemaFor(field)
	if errors.Is(err, ErrUnknownSchema) {
		return nil
	}
	if err != nil {
		return err
	}

	payload, err := normalize(value)
	if err != nil {
		return fmt.Errorf("validation: normalize %s: %w", field, err)
	}
	if err := schema.Validate(payload); err != nil {
		return &FieldError{Field: field, Message: leafMessage(err)}
	}
	return nil
}

func (v *SchemaValidator) schemaFor(field models.Field) (*jsonschema.Schema, error) {
	v.mu.RLock()
	schema, ok := v.compiled[field]
	v.mu.RUnlock()
	if ok {
		return schema, nil
	}

	data, ok := v.raw[field]
	if !ok {
		return nil, ErrUnknownSchema
	}

	compiler := jsonschema.NewCompiler()
	name := string(field) + ".json"
	if err := compiler.AddResource(name, bytes.NewReader(data)); err != nil {
		return nil, fmt.Errorf("validation: load schema %s: %w", field, err)
	}
	compiled, err := compiler.Compile(name)
	if err != nil {
		return nil, fmt.Errorf("validation: compile schema %s: %w", field, err)
	}

	v.mu.Lock()
	v.compiled[field] = compiled
	v.mu.Unlock()
	return compiled, nil
}

// normalize round-trips a Go value through JSON so the schema sees the same
// shapes a decoded request body would have.
func normalize(value any) (any, error) {
	data, err := json.Marshal(value)
	if err != nil {
		return nil, err
	}
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var out any
	if err := dec.Decode(&out); err != nil {
		return nil, err
	}
	return out, nil
}

func leafMessage(err error) string {
	var ve *jsonschema.ValidationError
	if !errors.As(err, &ve) {
		return err.Error()
	}
	for len(ve.Causes) > 0 {
		ve = ve.Causes[0]
	}
	return ve.Message
}

// FieldLabel renders a field name for display, e.g. "guestName" -> "Guest name".
func FieldLabel(field models.Field) string {
	words := strings.ReplaceAll(strcase.ToSnake(string(field)), "_", " ")
	if words == "" {
		return ""
	}
	return strings.ToUpper(words[:1]) + words[1:]
}

// NormalizePhone strips common separators from a phone number and keeps a
// leading plus. The result is not validated.
func NormalizePhone(raw string) string {
	s := strings.TrimSpace(raw)
	if s == "" {
		return ""
	}
	plus := strings.HasPrefix(s, "+")

	var b strings.Builder
	b.Grow(len(s))
	if plus {
		b.WriteByte('+')
	}
	for _, r := range s {
		switch {
		case r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == ' ', r == '-', r == '(', r == ')', r == '.', r == '\t', r == '+':
		default:
			// unexpected characters are kept so the schema rejects them
			b.WriteRune(r)
		}
	}
	return b.String()
}
