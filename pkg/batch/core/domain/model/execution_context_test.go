package model_test

import (
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	model "github.com/tigerroll/surfin-flow/pkg/batch/core/domain/model"
)

func TestExecutionContext_PutGetRemove(t *testing.T) {
	ec := model.NewExecutionContext()
	assert.True(t, ec.IsEmpty())

	ec.Put("name", "orders")
	ec.Put("count", 3)
	ec.Put("ratio", 0.5)
	ec.Put("done", true)

	s, ok := ec.GetString("name")
	assert.True(t, ok)
	assert.Equal(t, "orders", s)
	n, ok := ec.GetInt("count")
	assert.True(t, ok)
	assert.Equal(t, 3, n)
	f, ok := ec.GetFloat64("count")
	assert.True(t, ok)
	assert.Equal(t, 3.0, f)
	b, ok := ec.GetBool("done")
	assert.True(t, ok)
	assert.True(t, b)
	assert.Equal(t, []string{"count", "done", "name", "ratio"}, ec.Keys())

	_, ok = ec.GetBool("name")
	assert.False(t, ok)

	v, ok := ec.Remove("name")
	assert.True(t, ok)
	assert.Equal(t, "orders", v)
	assert.False(t, ec.ContainsKey("name"))

	ec.Put("count", nil)
	assert.False(t, ec.ContainsKey("count"))
	assert.Equal(t, 2, ec.Len())
}

func TestExecutionContext_IntegralFloats(t *testing.T) {
	ec := model.NewExecutionContextFromMap(map[string]interface{}{"whole": 4.0, "half": 4.5})
	n, ok := ec.GetInt64("whole")
	assert.True(t, ok)
	assert.Equal(t, int64(4), n)
	_, ok = ec.GetInt64("half")
	assert.False(t, ok)
}

func TestExecutionContext_DirtyFlag(t *testing.T) {
	ec := model.NewExecutionContext()
	assert.False(t, ec.IsDirty())

	ec.Put("k", "v")
	assert.True(t, ec.IsDirty())
	ec.ClearDirtyFlag()

	ec.Put("k", "v")
	assert.False(t, ec.IsDirty())
	ec.Put("k", "w")
	assert.True(t, ec.IsDirty())
}

func TestExecutionContext_Nested(t *testing.T) {
	ec := model.NewExecutionContext()
	ec.PutNested("reader.offset", 10)
	ec.PutNested("reader.file", "a.csv")

	v, ok := ec.GetNested("reader.offset")
	assert.True(t, ok)
	assert.Equal(t, 10, v)
	_, ok = ec.GetNested("reader.missing")
	assert.False(t, ok)
	_, ok = ec.GetNested("reader.file.name")
	assert.False(t, ok)
}

func TestExecutionContext_CopyIsIndependent(t *testing.T) {
	ec := model.NewExecutionContext()
	ec.PutNested("reader.offset", 5)
	ec.Put("tags", []string{"a"})

	cp := ec.Copy()
	ec.PutNested("reader.offset", 9)
	ec.Put("extra", true)

	v, ok := cp.GetNested("reader.offset")
	require.True(t, ok)
	assert.EqualValues(t, 5, v)
	assert.False(t, cp.ContainsKey("extra"))

	var nilContext *model.ExecutionContext
	assert.True(t, nilContext.Copy().IsEmpty())
}

func TestExecutionContext_LosslessRoundTrip(t *testing.T) {
	when := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	ec := model.NewExecutionContextFromMap(map[string]interface{}{
		"int":    7,
		"int64":  int64(1) << 40,
		"float":  2.25,
		"bool":   false,
		"string": "x",
		"time":   when,
		"bytes":  []byte("raw"),
		"nested": map[string]interface{}{"depth": 2},
	})

	data, err := json.Marshal(ec)
	require.NoError(t, err)

	decoded := model.NewExecutionContext()
	require.NoError(t, json.Unmarshal(data, decoded))
	assert.True(t, ec.Equal(decoded), "got %v", decoded)
	assert.False(t, decoded.IsDirty())
}

func TestExecutionContext_ValueAndScan(t *testing.T) {
	ec := model.NewExecutionContextFromMap(map[string]interface{}{"step": "load"})
	value, err := ec.Value()
	require.NoError(t, err)

	scanned := model.NewExecutionContext()
	require.NoError(t, scanned.Scan(value))
	assert.True(t, ec.Equal(scanned))

	require.NoError(t, scanned.Scan(nil))
	assert.True(t, scanned.IsEmpty())
	assert.Error(t, scanned.Scan(42))
}

func TestExecutionContext_ConcurrentWriters(t *testing.T) {
	ec := model.NewExecutionContext()
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				ec.Put(string(rune('a'+i)), j)
				ec.Get("a")
			}
		}(i)
	}
	wg.Wait()
	assert.Equal(t, 8, ec.Len())
}
