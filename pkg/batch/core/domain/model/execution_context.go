package model

import (
	"database/sql/driver"
	"fmt"
	"reflect"
	"sort"
	"strings"
	"sync"

	"github.com/tigerroll/surfin-flow/pkg/batch/support/util/serialization"
)

// Execution context keys written by the engine.
const (
	// RestartKey is set on a step execution whose step had already been executed by an earlier job execution.
	RestartKey = "batch.restart"
	// ExecutedKey is set once the step body has run for the step execution.
	ExecutedKey = "batch.executed"
)

// ExecutionContext is a key-value store for checkpoint state shared across executions.
// It is safe for concurrent use, since sibling split branches may write to the same context.
type ExecutionContext struct {
	mu      sync.RWMutex
	entries map[string]interface{}
	dirty   bool
}

// NewExecutionContext creates an empty ExecutionContext.
func NewExecutionContext() *ExecutionContext {
	return &ExecutionContext{entries: make(map[string]interface{})}
}

// NewExecutionContextFromMap creates an ExecutionContext holding a shallow copy of entries.
func NewExecutionContextFromMap(entries map[string]interface{}) *ExecutionContext {
	ec := NewExecutionContext()
	for k, v := range entries {
		ec.entries[k] = v
	}
	return ec
}

// Put stores value under key. A nil value removes the key.
func (ec *ExecutionContext) Put(key string, value interface{}) {
	ec.mu.Lock()
	defer ec.mu.Unlock()
	if ec.entries == nil {
		ec.entries = make(map[string]interface{})
	}
	if value == nil {
		if _, ok := ec.entries[key]; ok {
			delete(ec.entries, key)
			ec.dirty = true
		}
		return
	}
	if old, ok := ec.entries[key]; !ok || !reflect.DeepEqual(old, value) {
		ec.dirty = true
	}
	ec.entries[key] = value
}

// Get returns the value stored under key.
func (ec *ExecutionContext) Get(key string) (interface{}, bool) {
	ec.mu.RLock()
	defer ec.mu.RUnlock()
	v, ok := ec.entries[key]
	return v, ok
}

// GetString returns the string stored under key.
func (ec *ExecutionContext) GetString(key string) (string, bool) {
	v, ok := ec.Get(key)
	if !ok {
		return "", false
	}
	s, ok := v.(string)
	return s, ok
}

// GetInt returns the integer stored under key. Other integer types and integral floats are converted.
func (ec *ExecutionContext) GetInt(key string) (int, bool) {
	v, ok := ec.GetInt64(key)
	return int(v), ok
}

// GetInt64 returns the integer stored under key as an int64.
func (ec *ExecutionContext) GetInt64(key string) (int64, bool) {
	v, ok := ec.Get(key)
	if !ok {
		return 0, false
	}
	switch n := v.(type) {
	case int:
		return int64(n), true
	case int8:
		return int64(n), true
	case int16:
		return int64(n), true
	case int32:
		return int64(n), true
	case int64:
		return n, true
	case uint:
		return int64(n), true
	case uint8:
		return int64(n), true
	case uint16:
		return int64(n), true
	case uint32:
		return int64(n), true
	case uint64:
		return int64(n), true
	case float64:
		if n == float64(int64(n)) {
			return int64(n), true
		}
	case float32:
		if n == float32(int64(n)) {
			return int64(n), true
		}
	}
	return 0, false
}

// GetFloat64 returns the number stored under key as a float64.
func (ec *ExecutionContext) GetFloat64(key string) (float64, bool) {
	v, ok := ec.Get(key)
	if !ok {
		return 0, false
	}
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	}
	if i, ok := ec.GetInt64(key); ok {
		return float64(i), true
	}
	return 0, false
}

// GetBool returns the bool stored under key.
func (ec *ExecutionContext) GetBool(key string) (bool, bool) {
	v, ok := ec.Get(key)
	if !ok {
		return false, false
	}
	b, ok := v.(bool)
	return b, ok
}

// ContainsKey reports whether key is present.
func (ec *ExecutionContext) ContainsKey(key string) bool {
	_, ok := ec.Get(key)
	return ok
}

// Remove deletes key and returns the value it held.
func (ec *ExecutionContext) Remove(key string) (interface{}, bool) {
	ec.mu.Lock()
	defer ec.mu.Unlock()
	v, ok := ec.entries[key]
	if ok {
		delete(ec.entries, key)
		ec.dirty = true
	}
	return v, ok
}

// Len returns the number of entries.
func (ec *ExecutionContext) Len() int {
	ec.mu.RLock()
	defer ec.mu.RUnlock()
	return len(ec.entries)
}

// IsEmpty reports whether the context holds no entries.
func (ec *ExecutionContext) IsEmpty() bool {
	return ec.Len() == 0
}

// Keys returns the keys in sorted order.
func (ec *ExecutionContext) Keys() []string {
	ec.mu.RLock()
	defer ec.mu.RUnlock()
	keys := make([]string, 0, len(ec.entries))
	for k := range ec.entries {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Entries returns a shallow snapshot of the entries.
func (ec *ExecutionContext) Entries() map[string]interface{} {
	ec.mu.RLock()
	defer ec.mu.RUnlock()
	out := make(map[string]interface{}, len(ec.entries))
	for k, v := range ec.entries {
		out[k] = v
	}
	return out
}

// Copy returns an independent copy. Nested maps and slices are deep-copied through the serialization codec
// so that a restarted execution never shares mutable state with the execution it was copied from.
func (ec *ExecutionContext) Copy() *ExecutionContext {
	if ec == nil {
		return NewExecutionContext()
	}
	data, err := serialization.MarshalExecutionContext(ec.Entries())
	if err == nil {
		if entries, err := serialization.UnmarshalExecutionContext(data); err == nil {
			return NewExecutionContextFromMap(entries)
		}
	}
	return NewExecutionContextFromMap(ec.Entries())
}

// IsDirty reports whether the context changed since the last ClearDirtyFlag.
func (ec *ExecutionContext) IsDirty() bool {
	ec.mu.RLock()
	defer ec.mu.RUnlock()
	return ec.dirty
}

// ClearDirtyFlag marks the current content as persisted.
func (ec *ExecutionContext) ClearDirtyFlag() {
	ec.mu.Lock()
	defer ec.mu.Unlock()
	ec.dirty = false
}

// GetNested resolves a dot-separated path through nested maps (e.g. "reader.offset").
func (ec *ExecutionContext) GetNested(path string) (interface{}, bool) {
	parts := strings.Split(path, ".")
	ec.mu.RLock()
	defer ec.mu.RUnlock()
	var current interface{} = ec.entries
	for _, part := range parts {
		m, ok := current.(map[string]interface{})
		if !ok {
			return nil, false
		}
		current, ok = m[part]
		if !ok {
			return nil, false
		}
	}
	return current, true
}

// PutNested stores value under a dot-separated path, creating intermediate maps as needed.
func (ec *ExecutionContext) PutNested(path string, value interface{}) {
	parts := strings.Split(path, ".")
	ec.mu.Lock()
	defer ec.mu.Unlock()
	if ec.entries == nil {
		ec.entries = make(map[string]interface{})
	}
	current := ec.entries
	for _, part := range parts[:len(parts)-1] {
		next, ok := current[part].(map[string]interface{})
		if !ok {
			next = make(map[string]interface{})
			current[part] = next
		}
		current = next
	}
	current[parts[len(parts)-1]] = value
	ec.dirty = true
}

// Equal reports whether both contexts hold the same entries.
func (ec *ExecutionContext) Equal(other *ExecutionContext) bool {
	if ec == nil || other == nil {
		return ec == other
	}
	return reflect.DeepEqual(ec.Entries(), other.Entries())
}

// MarshalJSON encodes the context with the typed serialization format.
func (ec *ExecutionContext) MarshalJSON() ([]byte, error) {
	return serialization.MarshalExecutionContext(ec.Entries())
}

// UnmarshalJSON replaces the content of the context.
func (ec *ExecutionContext) UnmarshalJSON(data []byte) error {
	entries, err := serialization.UnmarshalExecutionContext(data)
	if err != nil {
		return err
	}
	ec.mu.Lock()
	defer ec.mu.Unlock()
	ec.entries = entries
	ec.dirty = false
	return nil
}

// Value implements driver.Valuer.
func (ec *ExecutionContext) Value() (driver.Value, error) {
	if ec == nil {
		return "{}", nil
	}
	data, err := ec.MarshalJSON()
	if err != nil {
		return nil, err
	}
	return string(data), nil
}

// Scan implements sql.Scanner.
func (ec *ExecutionContext) Scan(value interface{}) error {
	switch v := value.(type) {
	case nil:
		return ec.UnmarshalJSON(nil)
	case []byte:
		return ec.UnmarshalJSON(v)
	case string:
		return ec.UnmarshalJSON([]byte(v))
	default:
		return fmt.Errorf("unsupported Scan type for ExecutionContext: %T", value)
	}
}

func (ec *ExecutionContext) String() string {
	return fmt.Sprintf("%v", ec.Entries())
}
