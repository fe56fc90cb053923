package events

import (
	"encoding/json"
	"errors"
	"fmt"
)

// ErrValidation marks an event that is missing a required envelope field.
var ErrValidation = errors.New("events: validation failed")

// ValidationError names the first missing required field.
type ValidationError struct {
	Field string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("The field '%s' is required.", e.Field)
}

func (e *ValidationError) Unwrap() error {
	return ErrValidation
}

var requiredFields = []string{"id", "eventType", "time", "name"}

// ValidateJSON checks that the raw wire form carries every required envelope field.
// An unrecognized eventType passes and later decodes as UNKNOWN.
func ValidateJSON(data []byte) error {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return err
	}
	for _, name := range requiredFields {
		raw, ok := fields[name]
		if !ok || string(raw) == "null" || string(raw) == `""` {
			return &ValidationError{Field: name}
		}
	}
	return nil
}
