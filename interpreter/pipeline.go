package interpreter

import (
	"context"

	"github.com/hunglin/spark-kernel/core/execute"
	"github.com/hunglin/spark-kernel/engine"
	"github.com/hunglin/spark-kernel/observability"
)

// runUnit is the task queue executor. It owns the engine for the duration of
// one unit and applies the result pipeline to the raw engine status:
// classify, attach captured output, resolve payload.
func (itp *Interpreter) runUnit(ctx context.Context, unit execute.Unit) execute.Result {
	itp.mu.Lock()
	eng := itp.eng
	capture := itp.capture
	itp.mu.Unlock()
	if eng == nil || capture == nil {
		return execute.Result{Outcome: execute.Aborted}
	}

	itp.engineMu.Lock()
	defer itp.engineMu.Unlock()

	status, runErr := eng.Run(ctx, unit.Code, unit.Silent)

	// The capture buffer resets after every unit, success or not, so no
	// output leaks into the next unit.
	output := capture.ReadAndReset()

	if runErr != nil || ctx.Err() != nil {
		// Engine-level fatal fault or severed execution context.
		return execute.Result{Outcome: execute.Aborted}
	}

	switch status {
	case engine.StatusSuccess:
		return execute.Result{Outcome: execute.Success, Output: output}
	case engine.StatusIncomplete:
		return execute.Result{Outcome: execute.Incomplete, Output: output}
	case engine.StatusError:
		return execute.Result{Outcome: execute.Error, Output: output, Err: itp.reconstructError(eng, output)}
	default:
		return execute.Result{Outcome: execute.Error, Output: output, Err: itp.reconstructError(eng, output)}
	}
}

// reconstructError builds structured error detail for an Error outcome.
// Precedence: the last-exception slot, then pending compile diagnostics,
// then the Unknown fallback. Taking the exception slot clears it so the
// signal cannot leak into the next unit's error check.
func (itp *Interpreter) reconstructError(eng engine.Engine, output string) *execute.ExecuteError {
	if thrown := eng.Namespace().TakeLastException(); thrown != nil {
		return &execute.ExecuteError{
			Kind:        thrown.Kind,
			Message:     thrown.Message,
			StackFrames: thrown.StackFrames,
		}
	}

	if eng.Reporter().HasErrors() {
		return &execute.ExecuteError{
			Kind:    "Compile Error",
			Message: output,
		}
	}

	// Classification gap. Kept observable so it surfaces in testing.
	itp.emit(EventUnknownError, observability.LevelWarning, map[string]any{
		"output_length": len(output),
	})
	return &execute.ExecuteError{
		Kind:    "Unknown",
		Message: "Unable to retrieve error!",
	}
}
