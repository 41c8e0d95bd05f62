package tool

import (
	"fmt"
	"math"

	"github.com/finch-ai/finch/internal/domain"
)

// FieldType is the declared type of a schema field.
type FieldType string

const (
	TypeString FieldType = "string"
	TypeNumber FieldType = "number"
	TypeInt    FieldType = "int"
	TypeBool   FieldType = "bool"
)

// Field declares one argument in a tool schema.
type Field struct {
	Name        string    `json:"name"`
	Type        FieldType `json:"type"`
	Required    bool      `json:"required"`
	Description string    `json:"description,omitempty"`
}

// Schema declares the argument set a tool accepts.
type Schema struct {
	Fields []Field `json:"fields"`
}

// Validate checks args against the schema and returns a normalized copy:
// declared ints are coerced from JSON float64, unknown keys are rejected,
// and missing optional fields are left absent. The input map is not mutated.
func (s Schema) Validate(args Args) (Args, error) {
	byName := make(map[string]Field, len(s.Fields))
	for _, f := range s.Fields {
		byName[f.Name] = f
	}

	for name := range args {
		if _, ok := byName[name]; !ok {
			return nil, fmt.Errorf("%w: unexpected argument %q", domain.ErrInvalidArguments, name)
		}
	}

	normalized := make(Args, len(args))
	for _, f := range s.Fields {
		raw, present := args[f.Name]
		if !present {
			if f.Required {
				return nil, fmt.Errorf("%w: missing required argument %q", domain.ErrInvalidArguments, f.Name)
			}
			continue
		}

		v, err := coerce(f, raw)
		if err != nil {
			return nil, err
		}
		normalized[f.Name] = v
	}

	return normalized, nil
}

// coerce converts raw into the declared field type. JSON decoding produces
// float64 for all numbers, so declared ints accept whole floats.
func coerce(f Field, raw any) (any, error) {
	switch f.Type {
	case TypeString:
		s, ok := raw.(string)
		if !ok {
			return nil, typeError(f, raw)
		}
		return s, nil
	case TypeNumber:
		switch n := raw.(type) {
		case float64:
			return n, nil
		case int:
			return float64(n), nil
		case int64:
			return float64(n), nil
		}
		return nil, typeError(f, raw)
	case TypeInt:
		switch n := raw.(type) {
		case int:
			return n, nil
		case int64:
			return int(n), nil
		case float64:
			if n != math.Trunc(n) {
				return nil, typeError(f, raw)
			}
			return int(n), nil
		}
		return nil, typeError(f, raw)
	case TypeBool:
		b, ok := raw.(bool)
		if !ok {
			return nil, typeError(f, raw)
		}
		return b, nil
	}
	return nil, fmt.Errorf("%w: field %q has unsupported type %q", domain.ErrInvalidArguments, f.Name, f.Type)
}

func typeError(f Field, raw any) error {
	return fmt.Errorf("%w: argument %q must be %s, got %T", domain.ErrInvalidArguments, f.Name, f.Type, raw)
}
