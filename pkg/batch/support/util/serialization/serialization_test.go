package serialization_test

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tigerroll/surfin-flow/pkg/batch/support/util/serialization"
)

func TestExecutionContext_PreservesTypes(t *testing.T) {
	at := time.Date(2026, 10, 19, 8, 30, 0, 0, time.UTC)
	entries := map[string]interface{}{
		"count":   7,
		"offset":  int64(1 << 40),
		"ratio":   0.25,
		"done":    true,
		"started": at,
		"timeout": 3 * time.Second,
		"tables":  []string{"a", "b"},
		"nested":  map[string]interface{}{"page": 2, "cursor": nil},
		"mixed":   []interface{}{"x", 1},
	}

	data, err := serialization.MarshalExecutionContext(entries)
	require.NoError(t, err)
	decoded, err := serialization.UnmarshalExecutionContext(data)
	require.NoError(t, err)

	assert.Equal(t, entries, decoded)
}

func TestUnmarshalExecutionContext_PlainJSON(t *testing.T) {
	decoded, err := serialization.UnmarshalExecutionContext([]byte(`{"count": 3, "ratio": 1.5, "meta": {"type": "legacy", "owner": "ops"}}`))
	require.NoError(t, err)

	assert.Equal(t, int64(3), decoded["count"])
	assert.Equal(t, 1.5, decoded["ratio"])
	assert.Equal(t, map[string]interface{}{"type": "legacy", "owner": "ops"}, decoded["meta"])
}

func TestExecutionContext_EmptyAndInvalid(t *testing.T) {
	data, err := serialization.MarshalExecutionContext(nil)
	require.NoError(t, err)
	assert.Equal(t, "{}", string(data))

	for _, in := range []string{"", "null", "  "} {
		decoded, err := serialization.UnmarshalExecutionContext([]byte(in))
		require.NoError(t, err)
		assert.Empty(t, decoded)
	}

	_, err = serialization.UnmarshalExecutionContext([]byte(`{"k": {"type": "bogus", "value": 1}}`))
	assert.Error(t, err)
	_, err = serialization.MarshalExecutionContext(map[string]interface{}{"nan": math.NaN()})
	assert.Error(t, err)
}

func TestMaskParameters(t *testing.T) {
	params := map[string]interface{}{"user": "alice", "password": "secret", "count": 10}
	masked := serialization.MaskParameters(params, []string{"password", "api_key"})

	assert.Equal(t, map[string]interface{}{"user": "alice", "password": serialization.MaskedValue, "count": 10}, masked)
	assert.Equal(t, "secret", params["password"], "input is not modified")
	assert.Empty(t, serialization.MaskParameters(nil, []string{"password"}))
}
