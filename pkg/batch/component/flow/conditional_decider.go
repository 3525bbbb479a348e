// Package flow provides deciders that route a flow from the state of the job.
package flow

import (
	"context"
	"fmt"

	port "github.com/tigerroll/surfin-flow/pkg/batch/core/application/port"
	model "github.com/tigerroll/surfin-flow/pkg/batch/core/domain/model"
	"github.com/tigerroll/surfin-flow/pkg/batch/core/support/expression"
	logger "github.com/tigerroll/surfin-flow/pkg/batch/support/util/logger"
)

// Properties are the JSL properties of ConditionalDecider.
type Properties struct {
	// ConditionKey is looked up in the last step's execution context, then the job's
	// execution context, then the job parameters. Dot-separated keys also resolve nested maps.
	ConditionKey string `yaml:"conditionKey"`
	// ExpectedValue is compared with the string form of the looked-up value.
	// Both ConditionKey and ExpectedValue may contain "#{...}" placeholders.
	ExpectedValue string `yaml:"expectedValue"`
	// MatchStatus is returned on a match. Defaults to COMPLETED.
	MatchStatus string `yaml:"matchStatus"`
	// DefaultStatus is returned on a mismatch or a missing key. Defaults to FAILED.
	DefaultStatus string `yaml:"defaultStatus"`
	// Status, when ConditionKey is empty, is returned unconditionally.
	Status string `yaml:"status"`
}

// ConditionalDecider is a [port.Decider] that compares one value of the job's state with an
// expected value.
type ConditionalDecider struct {
	id       string
	props    Properties
	resolver expression.Resolver
}

// NewConditionalDecider creates a new instance of ConditionalDecider.
// A nil resolver uses expression.DefaultResolver.
func NewConditionalDecider(id string, props Properties, resolver expression.Resolver) *ConditionalDecider {
	if resolver == nil {
		resolver = expression.NewDefaultResolver()
	}
	if props.MatchStatus == "" {
		props.MatchStatus = model.FlowExecutionStatusCompleted.Name
	}
	if props.DefaultStatus == "" {
		props.DefaultStatus = model.FlowExecutionStatusFailed.Name
	}
	logger.Debugf("ConditionalDecider '%s': conditionKey='%s', expectedValue='%s', defaultStatus='%s'",
		id, props.ConditionKey, props.ExpectedValue, props.DefaultStatus)
	return &ConditionalDecider{id: id, props: props, resolver: resolver}
}

// Decide returns MatchStatus when the condition holds and DefaultStatus otherwise.
func (d *ConditionalDecider) Decide(ctx context.Context, jobExecution *model.JobExecution, stepExecution *model.StepExecution) (model.FlowExecutionStatus, error) {
	if d.props.ConditionKey == "" {
		if d.props.Status != "" {
			logger.Debugf("ConditionalDecider '%s' determined status '%s' from static property.", d.id, d.props.Status)
			return model.NewFlowExecutionStatus(d.props.Status), nil
		}
		logger.Warnf("ConditionalDecider '%s': conditionKey is not set. Returning default status '%s'.", d.id, d.props.DefaultStatus)
		return model.NewFlowExecutionStatus(d.props.DefaultStatus), nil
	}
	if jobExecution == nil {
		return model.FlowExecutionStatusFailed, fmt.Errorf("ConditionalDecider '%s': no job execution", d.id)
	}

	key := d.resolver.Resolve(d.props.ConditionKey, jobExecution, stepExecution)
	actual, ok := lookup(key, jobExecution, stepExecution)
	if !ok {
		logger.Warnf("ConditionalDecider '%s': Key '%s' not found. Returning default status '%s'.", d.id, key, d.props.DefaultStatus)
		return model.NewFlowExecutionStatus(d.props.DefaultStatus), nil
	}

	actualStr := fmt.Sprint(actual)
	expected := d.resolver.Resolve(d.props.ExpectedValue, jobExecution, stepExecution)
	if actualStr == expected {
		logger.Infof("ConditionalDecider '%s': Condition matched ('%s' == '%s'). Returning '%s'.", d.id, actualStr, expected, d.props.MatchStatus)
		return model.NewFlowExecutionStatus(d.props.MatchStatus), nil
	}
	logger.Infof("ConditionalDecider '%s': Condition did not match ('%s' != '%s'). Returning '%s'.", d.id, actualStr, expected, d.props.DefaultStatus)
	return model.NewFlowExecutionStatus(d.props.DefaultStatus), nil
}

func lookup(key string, je *model.JobExecution, se *model.StepExecution) (interface{}, bool) {
	contexts := make([]*model.ExecutionContext, 0, 2)
	if se != nil && se.ExecutionContext != nil {
		contexts = append(contexts, se.ExecutionContext)
	}
	if je.ExecutionContext != nil {
		contexts = append(contexts, je.ExecutionContext)
	}
	for _, ec := range contexts {
		if v, ok := ec.Get(key); ok {
			return v, true
		}
		if v, ok := ec.GetNested(key); ok {
			return v, true
		}
	}
	if v := je.Parameters.Get(key); v != nil {
		return v, true
	}
	return nil, false
}

// Verify that [ConditionalDecider] satisfies the [port.Decider] interface.
var _ port.Decider = (*ConditionalDecider)(nil)
