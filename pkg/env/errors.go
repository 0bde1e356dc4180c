package env

import (
	"errors"
	"fmt"
)

// Kind names the type a configuration value was coerced to.
type Kind string

// Coercion kinds.
const (
	KindString   Kind = "string"
	KindNumber   Kind = "number"
	KindBoolean  Kind = "boolean"
	KindDuration Kind = "duration"
	KindLocale   Kind = "locale"
)

var (
	errNotIntegral = errors.New("value is not an integer")
	errNotFinite   = errors.New("value is not a finite number")
	errMissingUnit = errors.New("duration requires a unit such as s, m or h")
	errNotBoolean  = errors.New("value is not a JSON boolean or number")
	errOutOfRange  = errors.New("value is out of range")
)

// ConfigurationError is returned when an environment value cannot be coerced
// to its declared kind, or fails validation after coercion.
type ConfigurationError struct {
	Key   string
	Value string
	Kind  Kind
	Err   error
}

// Error implements error.
func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("%s environment variable is not a valid %s (got %q): %v", e.Key, e.Kind, e.Value, e.Err)
}

// Unwrap returns the underlying parse or validation error.
func (e *ConfigurationError) Unwrap() error {
	return e.Err
}

// Invalid builds a ConfigurationError for a value that parsed but failed validation.
func Invalid(key, value string, kind Kind, err error) *ConfigurationError {
	return &ConfigurationError{Key: key, Value: value, Kind: kind, Err: err}
}
