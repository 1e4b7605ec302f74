package serializers

import (
	"bytes"
	"errors"
	"fmt"
	"io"

	"github.com/goccy/go-json"
)

// MaxBodyBytes caps request bodies read by Decode.
const MaxBodyBytes = 1 << 20

// BodyField is the error key for bodies that are not a JSON object.
const BodyField = "body"

// Decode reads a JSON object from r into dst. Syntax and type errors come back as FieldErrors.
// An empty body decodes as {}.
func Decode(r io.Reader, dst interface{}) error {
	data, err := io.ReadAll(io.LimitReader(r, MaxBodyBytes+1))
	if err != nil {
		return fmt.Errorf("failed to read body: %w", err)
	}
	if len(data) > MaxBodyBytes {
		return FieldErrors{BodyField: "Request body is too large."}
	}
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		data = []byte("{}")
	}

	if err := json.Unmarshal(data, dst); err != nil {
		var typeErr *json.UnmarshalTypeError
		if errors.As(err, &typeErr) && typeErr.Field != "" && typeErr.Type != nil {
			return FieldErrors{typeErr.Field: fmt.Sprintf("Expected a %s.", typeName(typeErr.Type.Kind().String()))}
		}
		return FieldErrors{BodyField: "JSON parse error."}
	}
	return nil
}

func typeName(kind string) string {
	switch kind {
	case "int", "int8", "int16", "int32", "int64", "uint", "uint8", "uint16", "uint32", "uint64", "float32", "float64":
		return "number"
	case "ptr":
		return "value"
	case "slice", "array":
		return "list"
	case "struct", "map":
		return "object"
	case "bool":
		return "boolean"
	default:
		return kind
	}
}
