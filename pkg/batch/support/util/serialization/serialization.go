// Package serialization converts execution contexts and job parameters to and from their persisted form.
//
// Values are written as a typed JSON envelope ({"type": ..., "value": ...}) so that a round trip
// through a repository gives back the same Go types (an int stays an int, a time.Time stays a time.Time).
// Plain JSON objects written by older versions are still accepted on read.
package serialization

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"time"

	"github.com/tigerroll/surfin-flow/pkg/batch/support/util/exception"
	logger "github.com/tigerroll/surfin-flow/pkg/batch/support/util/logger"
)

const module = "serialization"

// MaskedValue replaces the value of masked job parameters.
const MaskedValue = "********"

const (
	typeNull     = "null"
	typeString   = "string"
	typeBool     = "bool"
	typeInt      = "int"
	typeInt8     = "int8"
	typeInt16    = "int16"
	typeInt32    = "int32"
	typeInt64    = "int64"
	typeUint     = "uint"
	typeUint8    = "uint8"
	typeUint16   = "uint16"
	typeUint32   = "uint32"
	typeUint64   = "uint64"
	typeFloat32  = "float32"
	typeFloat64  = "float64"
	typeTime     = "time"
	typeDuration = "duration"
	typeBytes    = "bytes"
	typeStrings  = "strings"
	typeInts     = "ints"
	typeMap      = "map"
	typeList     = "list"
	typeJSON     = "json"
)

type typedValue struct {
	Type  string          `json:"type"`
	Value json.RawMessage `json:"value,omitempty"`
}

// MarshalExecutionContext serializes execution context entries into the typed JSON form.
// A nil map is written as an empty object.
func MarshalExecutionContext(entries map[string]interface{}) ([]byte, error) {
	if entries == nil {
		return []byte("{}"), nil
	}
	encoded, err := encodeMap(entries)
	if err != nil {
		logger.Errorf("Failed to serialize ExecutionContext: %v", err)
		return nil, exception.NewBatchError(module, "Failed to serialize ExecutionContext", err, false, false)
	}
	data, err := json.Marshal(encoded)
	if err != nil {
		return nil, exception.NewBatchError(module, "Failed to serialize ExecutionContext", err, false, false)
	}
	return data, nil
}

// UnmarshalExecutionContext deserializes data written by MarshalExecutionContext.
// Empty input and JSON null yield an empty map.
func UnmarshalExecutionContext(data []byte) (map[string]interface{}, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || string(trimmed) == "null" {
		return map[string]interface{}{}, nil
	}
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(trimmed, &raw); err != nil {
		logger.Errorf("Failed to deserialize ExecutionContext: %v", err)
		return nil, exception.NewBatchError(module, "Failed to deserialize ExecutionContext", err, false, false)
	}
	result, err := decodeMap(raw)
	if err != nil {
		return nil, exception.NewBatchError(module, "Failed to deserialize ExecutionContext", err, false, false)
	}
	return result, nil
}

// MarshalJobParameters serializes job parameters with the same typed encoding as execution contexts.
func MarshalJobParameters(params map[string]interface{}) ([]byte, error) {
	return MarshalExecutionContext(params)
}

// UnmarshalJobParameters deserializes job parameters written by MarshalJobParameters.
func UnmarshalJobParameters(data []byte) (map[string]interface{}, error) {
	return UnmarshalExecutionContext(data)
}

// MaskParameters returns a copy of params in which the values of maskedKeys are replaced by MaskedValue.
func MaskParameters(params map[string]interface{}, maskedKeys []string) map[string]interface{} {
	masked := make(map[string]interface{}, len(params))
	for k, v := range params {
		masked[k] = v
	}
	for _, key := range maskedKeys {
		if _, ok := masked[key]; ok {
			masked[key] = MaskedValue
		}
	}
	return masked
}

func encodeMap(entries map[string]interface{}) (map[string]typedValue, error) {
	out := make(map[string]typedValue, len(entries))
	for k, v := range entries {
		tv, err := encodeValue(v)
		if err != nil {
			return nil, fmt.Errorf("key %q: %w", k, err)
		}
		out[k] = tv
	}
	return out, nil
}

func encodeValue(v interface{}) (typedValue, error) {
	var (
		typ     string
		payload interface{}
	)
	switch val := v.(type) {
	case nil:
		return typedValue{Type: typeNull}, nil
	case string:
		typ, payload = typeString, val
	case bool:
		typ, payload = typeBool, val
	case int:
		typ, payload = typeInt, val
	case int8:
		typ, payload = typeInt8, val
	case int16:
		typ, payload = typeInt16, val
	case int32:
		typ, payload = typeInt32, val
	case int64:
		typ, payload = typeInt64, val
	case uint:
		typ, payload = typeUint, val
	case uint8:
		typ, payload = typeUint8, val
	case uint16:
		typ, payload = typeUint16, val
	case uint32:
		typ, payload = typeUint32, val
	case uint64:
		typ, payload = typeUint64, val
	case float32:
		typ, payload = typeFloat32, val
	case float64:
		if math.IsNaN(val) || math.IsInf(val, 0) {
			return typedValue{}, fmt.Errorf("unsupported float value %v", val)
		}
		typ, payload = typeFloat64, val
	case time.Time:
		typ, payload = typeTime, val.Format(time.RFC3339Nano)
	case time.Duration:
		typ, payload = typeDuration, int64(val)
	case []byte:
		typ, payload = typeBytes, val
	case []string:
		typ, payload = typeStrings, val
	case []int:
		typ, payload = typeInts, val
	case map[string]interface{}:
		nested, err := encodeMap(val)
		if err != nil {
			return typedValue{}, err
		}
		typ, payload = typeMap, nested
	case []interface{}:
		list := make([]typedValue, 0, len(val))
		for i, item := range val {
			tv, err := encodeValue(item)
			if err != nil {
				return typedValue{}, fmt.Errorf("index %d: %w", i, err)
			}
			list = append(list, tv)
		}
		typ, payload = typeList, list
	default:
		// Structs and other types are stored as plain JSON and come back as generic values.
		typ, payload = typeJSON, val
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return typedValue{}, err
	}
	return typedValue{Type: typ, Value: data}, nil
}

func decodeMap(raw map[string]json.RawMessage) (map[string]interface{}, error) {
	out := make(map[string]interface{}, len(raw))
	for k, msg := range raw {
		v, err := decodeRaw(msg)
		if err != nil {
			return nil, fmt.Errorf("key %q: %w", k, err)
		}
		out[k] = v
	}
	return out, nil
}

// decodeRaw decodes one entry, falling back to plain JSON when the entry is not an envelope.
func decodeRaw(msg json.RawMessage) (interface{}, error) {
	var tv typedValue
	if err := json.Unmarshal(msg, &tv); err == nil && tv.Type != "" && isEnvelope(msg) {
		return decodeValue(tv)
	}
	return decodePlain(msg)
}

// isEnvelope reports whether msg is an object holding only the envelope keys.
func isEnvelope(msg json.RawMessage) bool {
	var keys map[string]json.RawMessage
	if err := json.Unmarshal(msg, &keys); err != nil {
		return false
	}
	for k := range keys {
		if k != "type" && k != "value" {
			return false
		}
	}
	return true
}

func decodeValue(tv typedValue) (interface{}, error) {
	switch tv.Type {
	case typeNull:
		return nil, nil
	case typeString:
		return decodeAs[string](tv.Value)
	case typeBool:
		return decodeAs[bool](tv.Value)
	case typeInt:
		return decodeAs[int](tv.Value)
	case typeInt8:
		return decodeAs[int8](tv.Value)
	case typeInt16:
		return decodeAs[int16](tv.Value)
	case typeInt32:
		return decodeAs[int32](tv.Value)
	case typeInt64:
		return decodeAs[int64](tv.Value)
	case typeUint:
		return decodeAs[uint](tv.Value)
	case typeUint8:
		return decodeAs[uint8](tv.Value)
	case typeUint16:
		return decodeAs[uint16](tv.Value)
	case typeUint32:
		return decodeAs[uint32](tv.Value)
	case typeUint64:
		return decodeAs[uint64](tv.Value)
	case typeFloat32:
		return decodeAs[float32](tv.Value)
	case typeFloat64:
		return decodeAs[float64](tv.Value)
	case typeTime:
		var s string
		if err := json.Unmarshal(tv.Value, &s); err != nil {
			return nil, err
		}
		return time.Parse(time.RFC3339Nano, s)
	case typeDuration:
		var v int64
		if err := json.Unmarshal(tv.Value, &v); err != nil {
			return nil, err
		}
		return time.Duration(v), nil
	case typeBytes:
		return decodeAs[[]byte](tv.Value)
	case typeStrings:
		return decodeAs[[]string](tv.Value)
	case typeInts:
		return decodeAs[[]int](tv.Value)
	case typeMap:
		var raw map[string]json.RawMessage
		if err := json.Unmarshal(tv.Value, &raw); err != nil {
			return nil, err
		}
		return decodeMap(raw)
	case typeList:
		var raw []json.RawMessage
		if err := json.Unmarshal(tv.Value, &raw); err != nil {
			return nil, err
		}
		list := make([]interface{}, 0, len(raw))
		for _, item := range raw {
			v, err := decodeRaw(item)
			if err != nil {
				return nil, err
			}
			list = append(list, v)
		}
		return list, nil
	case typeJSON:
		return decodePlain(tv.Value)
	default:
		return nil, fmt.Errorf("unknown value type %q", tv.Type)
	}
}

func decodeAs[T any](raw json.RawMessage) (interface{}, error) {
	var v T
	if err := json.Unmarshal(raw, &v); err != nil {
		return nil, err
	}
	return v, nil
}

// decodePlain decodes untyped JSON. Integral numbers become int64, others float64.
func decodePlain(msg json.RawMessage) (interface{}, error) {
	dec := json.NewDecoder(bytes.NewReader(msg))
	dec.UseNumber()
	var v interface{}
	if err := dec.Decode(&v); err != nil {
		return nil, err
	}
	return normalizeNumbers(v), nil
}

func normalizeNumbers(v interface{}) interface{} {
	switch val := v.(type) {
	case json.Number:
		if i, err := val.Int64(); err == nil {
			return i
		}
		f, _ := val.Float64()
		return f
	case map[string]interface{}:
		for k, item := range val {
			val[k] = normalizeNumbers(item)
		}
		return val
	case []interface{}:
		for i, item := range val {
			val[i] = normalizeNumbers(item)
		}
		return val
	default:
		return v
	}
}
