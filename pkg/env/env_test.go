package env

import (
	"errors"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUnsetReturnsDefault(t *testing.T) {
	e := FromMap(nil)

	assert.Equal(t, "fallback", e.String("APP_NAME", "fallback"))

	n, err := e.Number("APP_RATIO", 1.5)
	require.NoError(t, err)
	assert.InDelta(t, 1.5, n, 0)

	i, err := e.Int("APP_PORT", 3000)
	require.NoError(t, err)
	assert.Equal(t, 3000, i)

	b, err := e.Bool("SWAGGER_ENABLE", true)
	require.NoError(t, err)
	assert.True(t, b)

	d, err := e.Duration("THROTTLE_TTL", 10*time.Second)
	require.NoError(t, err)
	assert.Equal(t, 10*time.Second, d)
}

func TestSetValuesAreCoerced(t *testing.T) {
	e := FromMap(map[string]string{
		"APP_NAME":       "demo",
		"APP_PORT":       "8080",
		"APP_RATIO":      " 0.25 ",
		"SWAGGER_ENABLE": "false",
		"THROTTLE_TTL":   "1m30s",
		"UPLOAD_SIZE":    "6291456",
	})

	assert.Equal(t, "demo", e.String("APP_NAME", ""))

	i, err := e.Int("APP_PORT", 0)
	require.NoError(t, err)
	assert.Equal(t, 8080, i)

	n, err := e.Number("APP_RATIO", 0)
	require.NoError(t, err)
	assert.InDelta(t, 0.25, n, 1e-9)

	b, err := e.Bool("SWAGGER_ENABLE", true)
	require.NoError(t, err)
	assert.False(t, b)

	d, err := e.Duration("THROTTLE_TTL", 0)
	require.NoError(t, err)
	assert.Equal(t, 90*time.Second, d)

	i64, err := e.Int64("UPLOAD_SIZE", 0)
	require.NoError(t, err)
	assert.Equal(t, int64(6291456), i64)
}

func TestBoolUsesJSONValues(t *testing.T) {
	tests := []struct {
		raw  string
		want bool
	}{
		{raw: "true", want: true},
		{raw: "false", want: false},
		{raw: " true ", want: true},
		{raw: "1", want: true},
		{raw: "0", want: false},
		{raw: "2.5", want: true},
		{raw: "-1", want: true},
	}

	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			b, err := FromMap(map[string]string{"FLAG": tt.raw}).Bool("FLAG", !tt.want)
			require.NoError(t, err)
			assert.Equal(t, tt.want, b)
		})
	}
}

func TestIntegersKeepFullPrecision(t *testing.T) {
	e := FromMap(map[string]string{
		"BIG":       "9007199254740993",
		"MAX":       "9223372036854775807",
		"DECIMAL":   "5.0",
		"EXPONENT":  "1e3",
		"ZERO_LEAD": "010",
	})

	big, err := e.Int64("BIG", 0)
	require.NoError(t, err)
	assert.Equal(t, int64(9007199254740993), big)

	maxed, err := e.Int64("MAX", 0)
	require.NoError(t, err)
	assert.Equal(t, int64(math.MaxInt64), maxed)

	five, err := e.Int("DECIMAL", 0)
	require.NoError(t, err)
	assert.Equal(t, 5, five)

	thousand, err := e.Int64("EXPONENT", 0)
	require.NoError(t, err)
	assert.Equal(t, int64(1000), thousand)

	ten, err := e.Int("ZERO_LEAD", 0)
	require.NoError(t, err)
	assert.Equal(t, 10, ten, "leading zeros are decimal, not octal")
}

func TestEmptyStringIsNotUnset(t *testing.T) {
	e := FromMap(map[string]string{"GLOBAL_PREFIX": ""})

	assert.True(t, e.IsSet("GLOBAL_PREFIX"))
	assert.Equal(t, "", e.String("GLOBAL_PREFIX", "api"))
}

func TestInvalidValuesReturnConfigurationError(t *testing.T) {
	e := FromMap(map[string]string{
		"NOT_NUMBER":   "three thousand",
		"NAN":          "NaN",
		"FRACTION":     "3000.5",
		"NOT_BOOL":     "yes please",
		"UPPER_BOOL":   "TRUE",
		"SHORT_BOOL":   "t",
		"SHORT_FALSE":  "F",
		"QUOTED_BOOL":  `"true"`,
		"TOO_BIG":      "9223372036854775808",
		"NO_UNIT":      "10",
		"BAD_DURATION": "ten seconds",
	})

	tests := []struct {
		name string
		kind Kind
		call func() error
	}{
		{
			name: "number",
			kind: KindNumber,
			call: func() error { _, err := e.Number("NOT_NUMBER", 0); return err },
		},
		{
			name: "nan",
			kind: KindNumber,
			call: func() error { _, err := e.Number("NAN", 0); return err },
		},
		{
			name: "fractional int",
			kind: KindNumber,
			call: func() error { _, err := e.Int("FRACTION", 0); return err },
		},
		{
			name: "boolean",
			kind: KindBoolean,
			call: func() error { _, err := e.Bool("NOT_BOOL", false); return err },
		},
		{
			name: "upper case boolean",
			kind: KindBoolean,
			call: func() error { _, err := e.Bool("UPPER_BOOL", false); return err },
		},
		{
			name: "short boolean",
			kind: KindBoolean,
			call: func() error { _, err := e.Bool("SHORT_BOOL", false); return err },
		},
		{
			name: "short false",
			kind: KindBoolean,
			call: func() error { _, err := e.Bool("SHORT_FALSE", true); return err },
		},
		{
			name: "json string boolean",
			kind: KindBoolean,
			call: func() error { _, err := e.Bool("QUOTED_BOOL", false); return err },
		},
		{
			name: "int64 overflow",
			kind: KindNumber,
			call: func() error { _, err := e.Int64("TOO_BIG", 0); return err },
		},
		{
			name: "duration without unit",
			kind: KindDuration,
			call: func() error { _, err := e.Duration("NO_UNIT", 0); return err },
		},
		{
			name: "duration",
			kind: KindDuration,
			call: func() error { _, err := e.Duration("BAD_DURATION", 0); return err },
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.call()
			require.Error(t, err)

			var cfgErr *ConfigurationError
			require.True(t, errors.As(err, &cfgErr))
			assert.Equal(t, tt.kind, cfgErr.Kind)
			assert.NotNil(t, cfgErr.Unwrap())
			assert.Contains(t, err.Error(), "environment variable is not a valid")
		})
	}
}

func TestGetWithCustomCoercion(t *testing.T) {
	e := FromMap(map[string]string{"MODE": "loud"})

	upper := func(raw string) (string, error) {
		if raw == "" {
			return "", errors.New("empty")
		}

		return raw + "!", nil
	}

	v, err := Get(e, "MODE", "quiet", KindString, upper)
	require.NoError(t, err)
	assert.Equal(t, "loud!", v)

	v, err = Get(e, "MISSING", "quiet", KindString, upper)
	require.NoError(t, err)
	assert.Equal(t, "quiet", v)
}

func TestFromMapCopiesInput(t *testing.T) {
	values := map[string]string{"APP_NAME": "before"}
	e := FromMap(values)
	values["APP_NAME"] = "after"

	assert.Equal(t, "before", e.String("APP_NAME", ""))
}
