package generic

import (
	"context"
	"math/rand"
	"sync"

	port "github.com/tigerroll/surfin-flow/pkg/batch/core/application/port"
	model "github.com/tigerroll/surfin-flow/pkg/batch/core/domain/model"
	exception "github.com/tigerroll/surfin-flow/pkg/batch/support/util/exception"
	logger "github.com/tigerroll/surfin-flow/pkg/batch/support/util/logger"
)

// RunCountKey holds the number of runs of a FailingTasklet in the step execution context.
// It is carried into the restarted execution of a failed step.
const RunCountKey = "failing_tasklet.run_count"

// FailingTaskletProperties are the JSL properties of FailingTasklet.
type FailingTaskletProperties struct {
	// FailCount makes the first FailCount runs fail. Zero means failures are random.
	FailCount int `yaml:"failCount"`
	// FailRate is the probability of a random failure (0.0 - 1.0). Defaults to 0.5.
	FailRate float64 `yaml:"failRate"`
	// Seed fixes the random sequence when non-zero.
	Seed int64 `yaml:"seed"`
}

// FailingTasklet is a [port.Tasklet] that fails a configured number of times, or with a configured
// probability. It is used to exercise restart and transition handling.
type FailingTasklet struct {
	id    string
	props FailingTaskletProperties

	mu  sync.Mutex
	rnd *rand.Rand
}

// NewFailingTasklet creates a new instance of [FailingTasklet].
func NewFailingTasklet(id string, props FailingTaskletProperties) *FailingTasklet {
	if props.FailCount == 0 && props.FailRate == 0 {
		props.FailRate = 0.5
	}
	t := &FailingTasklet{id: id, props: props}
	if props.Seed != 0 {
		t.rnd = rand.New(rand.NewSource(props.Seed))
	}
	return t
}

// Execute fails or finishes. The run count survives restarts through the step execution context.
func (t *FailingTasklet) Execute(ctx context.Context, stepExecution *model.StepExecution) (port.RepeatStatus, error) {
	run, _ := stepExecution.ExecutionContext.GetInt(RunCountKey)
	run++
	stepExecution.ExecutionContext.Put(RunCountKey, run)

	if t.shouldFail(run) {
		logger.Errorf("FailingTasklet '%s' (Run %d): Intentionally failing (Rate: %.2f, Count: %d).", t.id, run, t.props.FailRate, t.props.FailCount)
		return port.RepeatStatusFinished, exception.NewBatchErrorf(t.id, "Intentional failure on run %d", run)
	}

	logger.Infof("FailingTasklet '%s' (Run %d): Completed successfully.", t.id, run)
	return port.RepeatStatusFinished, nil
}

func (t *FailingTasklet) shouldFail(run int) bool {
	if t.props.FailCount > 0 {
		return run <= t.props.FailCount
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.rnd != nil {
		return t.rnd.Float64() < t.props.FailRate
	}
	return rand.Float64() < t.props.FailRate
}

// Verify that [FailingTasklet] satisfies the [port.Tasklet] interface.
var _ port.Tasklet = (*FailingTasklet)(nil)
