// Package generic provides general-purpose tasklet implementations.
// These tasklets are designed to be reusable across various batch jobs.
package generic

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"

	port "github.com/tigerroll/surfin-flow/pkg/batch/core/application/port"
	model "github.com/tigerroll/surfin-flow/pkg/batch/core/domain/model"
	"github.com/tigerroll/surfin-flow/pkg/batch/core/support/expression"
	exception "github.com/tigerroll/surfin-flow/pkg/batch/support/util/exception"
	logger "github.com/tigerroll/surfin-flow/pkg/batch/support/util/logger"
)

// Execution context scopes understood by ExecutionContextWriterTasklet.
const (
	ScopeStep = "step"
	ScopeJob  = "job"
)

// scopeProperty selects the execution context that is written. It is not written itself.
const scopeProperty = "scope"

// ExecutionContextWriterTasklet is a [port.Tasklet] that writes values specified in JSL properties to the [model.ExecutionContext].
// It is primarily used to seed state for deciders and later steps.
type ExecutionContextWriterTasklet struct {
	id       string
	scope    string
	entries  map[string]interface{}
	deferred map[string]interface{}
	resolver expression.Resolver
}

// NewExecutionContextWriterTasklet creates a new [ExecutionContextWriterTasklet] instance.
//
// Parameters:
//
//	id: The unique identifier for this tasklet.
//	properties: Values to write. A key in "key.type" format (e.g., "count.int", "name.string")
//	            converts its value to that type ("string", "int", "float", "bool"); other keys are
//	            written as given. The "scope" property selects the step (default) or job context.
//	            String values containing "#{...}" are resolved and converted on every execution.
//	resolver: Resolves placeholders. A nil resolver uses expression.DefaultResolver.
//
// Returns:
//
//	The tasklet, or an error if a typed value cannot be converted or the scope is unknown.
func NewExecutionContextWriterTasklet(id string, properties map[string]interface{}, resolver expression.Resolver) (*ExecutionContextWriterTasklet, error) {
	if resolver == nil {
		resolver = expression.NewDefaultResolver()
	}
	t := &ExecutionContextWriterTasklet{
		id:       id,
		scope:    ScopeStep,
		entries:  make(map[string]interface{}, len(properties)),
		deferred: make(map[string]interface{}),
		resolver: resolver,
	}
	for keyWithType, raw := range properties {
		if keyWithType == scopeProperty {
			t.scope = strings.ToLower(fmt.Sprint(raw))
			continue
		}
		if s, ok := raw.(string); ok && strings.Contains(s, "#{") {
			t.deferred[keyWithType] = s
			continue
		}
		key, value, err := convert(keyWithType, raw)
		if err != nil {
			return nil, exception.NewBatchErrorf(id, "Failed to convert property '%s'", keyWithType, err)
		}
		t.entries[key] = value
	}
	if t.scope != ScopeStep && t.scope != ScopeJob {
		return nil, exception.NewBatchErrorf(id, "Unknown execution context scope '%s'", t.scope)
	}
	return t, nil
}

func convert(keyWithType string, raw interface{}) (string, interface{}, error) {
	i := strings.LastIndex(keyWithType, ".")
	if i < 0 {
		return keyWithType, raw, nil
	}
	key, typeStr := keyWithType[:i], strings.ToLower(keyWithType[i+1:])
	valueStr := fmt.Sprint(raw)
	switch typeStr {
	case "string":
		return key, valueStr, nil
	case "int":
		v, err := strconv.Atoi(valueStr)
		return key, v, err
	case "float", "float64":
		v, err := strconv.ParseFloat(valueStr, 64)
		return key, v, err
	case "bool":
		v, err := strconv.ParseBool(valueStr)
		return key, v, err
	default:
		// Not a type suffix: the dot is part of the key.
		return keyWithType, raw, nil
	}
}

// Execute writes the configured values and finishes.
func (t *ExecutionContextWriterTasklet) Execute(ctx context.Context, stepExecution *model.StepExecution) (port.RepeatStatus, error) {
	ec := stepExecution.ExecutionContext
	if t.scope == ScopeJob {
		if stepExecution.JobExecution == nil {
			return port.RepeatStatusFinished, exception.NewBatchErrorf(t.id, "Step '%s' has no job execution to write to", stepExecution.StepName)
		}
		ec = stepExecution.JobExecution.ExecutionContext
	}
	entries := make(map[string]interface{}, len(t.entries)+len(t.deferred))
	for k, v := range t.entries {
		entries[k] = v
	}
	for keyWithType, raw := range t.deferred {
		resolved := t.resolver.Resolve(raw.(string), stepExecution.JobExecution, stepExecution)
		key, value, err := convert(keyWithType, resolved)
		if err != nil {
			return port.RepeatStatusFinished, exception.NewBatchErrorf(t.id, "Failed to convert resolved property '%s'", keyWithType, err)
		}
		entries[key] = value
	}
	logger.Infof("ExecutionContextWriterTasklet '%s' executing. Writing %d properties to the %s ExecutionContext.", t.id, len(entries), t.scope)

	keys := make([]string, 0, len(entries))
	for k := range entries {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		ec.Put(k, entries[k])
		logger.Debugf("Wrote to EC: %s = %v", k, entries[k])
	}
	return port.RepeatStatusFinished, nil
}

// Verify that [ExecutionContextWriterTasklet] satisfies the [port.Tasklet] interface.
var _ port.Tasklet = (*ExecutionContextWriterTasklet)(nil)
