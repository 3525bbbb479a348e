// Package expression resolves "#{...}" placeholders in component properties against the
// state of a running job.
package expression

import (
	"fmt"
	"regexp"
	"strings"

	model "github.com/tigerroll/surfin-flow/pkg/batch/core/domain/model"
	"github.com/tigerroll/surfin-flow/pkg/batch/support/util/logger"
)

// Resolver resolves placeholders in a property value.
type Resolver interface {
	// Resolve replaces every placeholder in expression. Unresolvable placeholders are left as-is.
	Resolve(expression string, jobExecution *model.JobExecution, stepExecution *model.StepExecution) string
}

// DefaultResolver understands the following placeholders:
//
//	#{jobParameters['key']}
//	#{jobExecutionContext['key']}
//	#{stepExecutionContext['key']}
//	#{stepExecution.stepName|status|exitStatus|readCount|writeCount|filterCount}
type DefaultResolver struct{}

// NewDefaultResolver creates a new instance of DefaultResolver.
func NewDefaultResolver() *DefaultResolver {
	return &DefaultResolver{}
}

var (
	expressionPattern = regexp.MustCompile(`#\{(.+?)\}`)
	indexedPattern    = regexp.MustCompile(`^(jobParameters|jobExecutionContext|stepExecutionContext)\['(.+?)'\]$`)
	stepFieldPattern  = regexp.MustCompile(`^stepExecution\.(\w+)$`)
)

// Resolve implements Resolver.
func (r *DefaultResolver) Resolve(expression string, jobExecution *model.JobExecution, stepExecution *model.StepExecution) string {
	if !strings.Contains(expression, "#{") {
		return expression
	}
	return expressionPattern.ReplaceAllStringFunc(expression, func(match string) string {
		inner := strings.TrimSpace(match[2 : len(match)-1])
		if v, ok := r.lookup(inner, jobExecution, stepExecution); ok {
			return fmt.Sprint(v)
		}
		logger.Warnf("ExpressionResolver: Unknown expression or key not found: %s", inner)
		return match
	})
}

func (r *DefaultResolver) lookup(expr string, je *model.JobExecution, se *model.StepExecution) (interface{}, bool) {
	if m := indexedPattern.FindStringSubmatch(expr); m != nil {
		source, key := m[1], m[2]
		switch source {
		case "jobParameters":
			if je == nil {
				return nil, false
			}
			v, ok := je.Parameters.Params[key]
			return v, ok
		case "jobExecutionContext":
			if je == nil || je.ExecutionContext == nil {
				return nil, false
			}
			return contextValue(je.ExecutionContext, key)
		case "stepExecutionContext":
			if se == nil || se.ExecutionContext == nil {
				return nil, false
			}
			return contextValue(se.ExecutionContext, key)
		}
	}
	if m := stepFieldPattern.FindStringSubmatch(expr); m != nil && se != nil {
		switch m[1] {
		case "stepName":
			return se.StepName, true
		case "status":
			return se.Status.String(), true
		case "exitStatus":
			return se.ExitStatus.ExitCode, true
		case "readCount":
			return se.ReadCount, true
		case "writeCount":
			return se.WriteCount, true
		case "filterCount":
			return se.FilterCount, true
		}
	}
	return nil, false
}

func contextValue(ec *model.ExecutionContext, key string) (interface{}, bool) {
	if v, ok := ec.Get(key); ok {
		return v, true
	}
	return ec.GetNested(key)
}

var _ Resolver = (*DefaultResolver)(nil)
