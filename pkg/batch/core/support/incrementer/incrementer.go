// Package incrementer derives the parameters of the next job instance from the current ones.
package incrementer

import (
	"fmt"
	"strconv"
	"time"

	model "github.com/tigerroll/surfin-flow/pkg/batch/core/domain/model"
	logger "github.com/tigerroll/surfin-flow/pkg/batch/support/util/logger"
)

// JobParametersIncrementer returns parameters that identify a new job instance.
type JobParametersIncrementer interface {
	// GetNext returns a copy of params with the incremented value. params is not modified.
	GetNext(params model.JobParameters) model.JobParameters
}

func copyParams(params model.JobParameters) model.JobParameters {
	next := model.NewJobParameters()
	for k, v := range params.Params {
		next.Put(k, v)
	}
	return next
}

// RunIDIncrementer sets the named parameter to 1, or increments it if it is already an integer.
type RunIDIncrementer struct {
	name string
}

// NewRunIDIncrementer creates a new instance of RunIDIncrementer. An empty name uses "run.id".
func NewRunIDIncrementer(name string) *RunIDIncrementer {
	if name == "" {
		name = "run.id"
	}
	return &RunIDIncrementer{name: name}
}

// GetNext implements JobParametersIncrementer.
func (i *RunIDIncrementer) GetNext(params model.JobParameters) model.JobParameters {
	next := copyParams(params)
	current, ok := toInt64(params.Get(i.name))
	if !ok {
		next.Put(i.name, int64(1))
		logger.Debugf("JobParametersIncrementer '%s': '%s' not found, setting to 1.", i, i.name)
		return next
	}
	next.Put(i.name, current+1)
	logger.Debugf("JobParametersIncrementer '%s': Incrementing '%s' from %d to %d.", i, i.name, current, current+1)
	return next
}

func (i *RunIDIncrementer) String() string {
	return fmt.Sprintf("RunIDIncrementer[name=%s]", i.name)
}

func toInt64(v interface{}) (int64, bool) {
	switch n := v.(type) {
	case int:
		return int64(n), true
	case int64:
		return n, true
	case float64:
		return int64(n), n == float64(int64(n))
	case string:
		parsed, err := strconv.ParseInt(n, 10, 64)
		return parsed, err == nil
	}
	return 0, false
}

// TimestampIncrementer sets the named parameter to the current Unix time in milliseconds.
type TimestampIncrementer struct {
	name string
	now  func() time.Time
}

// NewTimestampIncrementer creates a new instance of TimestampIncrementer. An empty name uses "timestamp".
func NewTimestampIncrementer(name string) *TimestampIncrementer {
	if name == "" {
		name = "timestamp"
	}
	return &TimestampIncrementer{name: name, now: time.Now}
}

// GetNext implements JobParametersIncrementer.
func (i *TimestampIncrementer) GetNext(params model.JobParameters) model.JobParameters {
	next := copyParams(params)
	ts := i.now().UnixMilli()
	next.Put(i.name, strconv.FormatInt(ts, 10))
	logger.Debugf("JobParametersIncrementer '%s': Setting '%s' to %d.", i, i.name, ts)
	return next
}

func (i *TimestampIncrementer) String() string {
	return fmt.Sprintf("TimestampIncrementer[name=%s]", i.name)
}

var (
	_ JobParametersIncrementer = (*RunIDIncrementer)(nil)
	_ JobParametersIncrementer = (*TimestampIncrementer)(nil)
)
