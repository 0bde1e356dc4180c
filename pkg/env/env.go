// Package env reads typed values from an environment.
//
// An Env never reads process state on its own: it is constructed from a lookup
// function, either the process environment (FromOS) or a fixed map (FromMap).
package env

import (
	"encoding/json"
	"errors"
	"math"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cast"
)

// LookupFunc resolves an environment variable, reporting whether it is set.
type LookupFunc func(key string) (string, bool)

// Coerce converts a raw environment value into T.
type Coerce[T any] func(raw string) (T, error)

// Env is a read-only view over a set of environment variables.
type Env struct {
	lookup LookupFunc
}

// New creates an Env backed by the given lookup function.
func New(lookup LookupFunc) *Env {
	return &Env{lookup: lookup}
}

// FromOS creates an Env backed by the process environment.
func FromOS() *Env {
	return New(os.LookupEnv)
}

// FromMap creates an Env backed by a fixed set of values.
func FromMap(values map[string]string) *Env {
	copied := make(map[string]string, len(values))
	for k, v := range values {
		copied[k] = v
	}

	return New(func(key string) (string, bool) {
		v, ok := copied[key]

		return v, ok
	})
}

// Lookup returns the raw value of key and whether it is set.
func (e *Env) Lookup(key string) (string, bool) {
	return e.lookup(key)
}

// IsSet reports whether key is present in the environment.
func (e *Env) IsSet(key string) bool {
	_, ok := e.lookup(key)

	return ok
}

// Get returns the coerced value of key, or defaultValue when key is unset.
func Get[T any](e *Env, key string, defaultValue T, kind Kind, coerce Coerce[T]) (T, error) {
	raw, ok := e.lookup(key)
	if !ok {
		return defaultValue, nil
	}

	value, err := coerce(raw)
	if err != nil {
		var zero T

		return zero, &ConfigurationError{Key: key, Value: raw, Kind: kind, Err: err}
	}

	return value, nil
}

// String returns the value of key, or defaultValue when unset.
func (e *Env) String(key, defaultValue string) string {
	if raw, ok := e.lookup(key); ok {
		return raw
	}

	return defaultValue
}

// Number returns the value of key parsed as a decimal number.
func (e *Env) Number(key string, defaultValue float64) (float64, error) {
	return Get(e, key, defaultValue, KindNumber, parseNumber)
}

// Int returns the value of key parsed as an integral number.
func (e *Env) Int(key string, defaultValue int) (int, error) {
	return Get(e, key, defaultValue, KindNumber, func(raw string) (int, error) {
		n, err := parseInteger(raw, strconv.IntSize)

		return int(n), err
	})
}

// Int64 returns the value of key parsed as a 64-bit integral number.
func (e *Env) Int64(key string, defaultValue int64) (int64, error) {
	return Get(e, key, defaultValue, KindNumber, func(raw string) (int64, error) {
		return parseInteger(raw, 64)
	})
}

// Bool returns the value of key parsed as JSON: true and false, or a number
// where anything but zero is true.
func (e *Env) Bool(key string, defaultValue bool) (bool, error) {
	return Get(e, key, defaultValue, KindBoolean, func(raw string) (bool, error) {
		var v any
		if err := json.Unmarshal([]byte(raw), &v); err != nil {
			return false, errNotBoolean
		}

		switch b := v.(type) {
		case bool:
			return b, nil
		case float64:
			return b != 0, nil
		default:
			return false, errNotBoolean
		}
	})
}

// Duration returns the value of key parsed as a duration such as "10s" or "1h30m".
// Values without a unit are rejected.
func (e *Env) Duration(key string, defaultValue time.Duration) (time.Duration, error) {
	return Get(e, key, defaultValue, KindDuration, func(raw string) (time.Duration, error) {
		raw = strings.TrimSpace(raw)
		if _, err := cast.ToFloat64E(raw); err == nil && raw != "0" {
			return 0, errMissingUnit
		}

		return cast.ToDurationE(raw)
	})
}

// parseNumber parses a decimal number, rejecting NaN and infinities.
func parseNumber(raw string) (float64, error) {
	f, err := cast.ToFloat64E(strings.TrimSpace(raw))
	if err != nil {
		return 0, err
	}

	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, errNotFinite
	}

	return f, nil
}

// parseInteger parses a base 10 integer of the given bit size. Values written
// as integral decimals such as "5.0" or "1e3" are accepted too.
func parseInteger(raw string, bitSize int) (int64, error) {
	raw = strings.TrimSpace(raw)

	n, err := strconv.ParseInt(raw, 10, bitSize)
	if err == nil {
		return n, nil
	}

	if errors.Is(err, strconv.ErrRange) {
		return 0, errOutOfRange
	}

	f, err := parseNumber(raw)
	if err != nil {
		return 0, err
	}

	if f != math.Trunc(f) {
		return 0, errNotIntegral
	}

	limit := math.Ldexp(1, bitSize-1)
	if f < -limit || f >= limit {
		return 0, errOutOfRange
	}

	return int64(f), nil
}
