// Package test provides fixtures shared by the package tests: model factories, a scripted
// flow executor, scripted steps and recording listeners.
package test

import (
	model "github.com/tigerroll/surfin-flow/pkg/batch/core/domain/model"
)

// NewTestJobParameters creates JobParameters for testing.
func NewTestJobParameters(params map[string]interface{}) model.JobParameters {
	jp := model.NewJobParameters()
	for k, v := range params {
		jp.Put(k, v)
	}
	return jp
}

// NewTestJobInstance creates a JobInstance for testing. It panics if the parameters cannot be hashed.
func NewTestJobInstance(jobName string, params model.JobParameters) *model.JobInstance {
	instance, err := model.NewJobInstance(jobName, params)
	if err != nil {
		panic(err)
	}
	return instance
}

// NewTestJobExecution creates a JobExecution of a fresh instance of jobName.
func NewTestJobExecution(jobName string) *model.JobExecution {
	return model.NewJobExecution(NewTestJobInstance(jobName, model.NewJobParameters()))
}

// NewTestStepExecution creates a StepExecution registered with jobExecution.
func NewTestStepExecution(jobExecution *model.JobExecution, stepName string) *model.StepExecution {
	return jobExecution.CreateStepExecution(stepName)
}

// NewTestExecutionContext creates an ExecutionContext holding data.
func NewTestExecutionContext(data map[string]interface{}) *model.ExecutionContext {
	return model.NewExecutionContextFromMap(data)
}
