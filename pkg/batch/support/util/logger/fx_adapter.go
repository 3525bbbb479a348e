package logger

import (
	"strings"

	"go.uber.org/fx/fxevent"
)

// FxLoggerAdapter writes fx container events to the batch log. Failures are logged at
// ERROR; wiring chatter (provides, invokes, hooks) only at DEBUG.
type FxLoggerAdapter struct{}

// NewFxLoggerAdapter returns the adapter as an fxevent.Logger.
func NewFxLoggerAdapter() fxevent.Logger {
	return &FxLoggerAdapter{}
}

func (l *FxLoggerAdapter) LogEvent(event fxevent.Event) {
	switch e := event.(type) {
	case *fxevent.OnStartExecuting:
		Debugf("fx: OnStart %s", callerName(e.FunctionName))
	case *fxevent.OnStartExecuted:
		logHook("OnStart", e.FunctionName, e.Err)
	case *fxevent.OnStopExecuting:
		Debugf("fx: OnStop %s", callerName(e.FunctionName))
	case *fxevent.OnStopExecuted:
		logHook("OnStop", e.FunctionName, e.Err)
	case *fxevent.Supplied:
		logOutcome("supply "+e.TypeName, e.Err)
	case *fxevent.Provided:
		logOutcome("provide "+strings.Join(e.OutputTypeNames, ", "), e.Err)
	case *fxevent.Decorated:
		logOutcome("decorate "+strings.Join(e.OutputTypeNames, ", "), e.Err)
	case *fxevent.Run:
		logOutcome(e.Kind+" "+callerName(e.Name), e.Err)
	case *fxevent.Invoked:
		logOutcome("invoke "+callerName(e.FunctionName), e.Err)
	case *fxevent.Stopping:
		Infof("fx: received %s, stopping", strings.ToUpper(e.Signal.String()))
	case *fxevent.Stopped:
		logOutcome("stop", e.Err)
	case *fxevent.RollingBack:
		Errorf("fx: start failed, rolling back: %v", e.StartErr)
	case *fxevent.RolledBack:
		logOutcome("rollback", e.Err)
	case *fxevent.Started:
		if e.Err != nil {
			Errorf("fx: start failed: %v", e.Err)
			return
		}
		Infof("Batch flow container started.")
	case *fxevent.LoggerInitialized:
		logOutcome("logger "+callerName(e.ConstructorName), e.Err)
	}
}

func logHook(kind, fn string, err error) {
	if err != nil {
		Errorf("fx: %s hook %s failed: %v", kind, callerName(fn), err)
		return
	}
	Debugf("fx: %s hook %s done", kind, callerName(fn))
}

func logOutcome(what string, err error) {
	if err != nil {
		Errorf("fx: %s failed: %v", what, err)
		return
	}
	Debugf("fx: %s", what)
}

// callerName strips closure suffixes such as ".func1" so hooks registered from
// anonymous functions are reported under their enclosing function.
func callerName(fn string) string {
	if idx := strings.Index(fn, ".func"); idx != -1 {
		return fn[:idx]
	}
	return fn
}
