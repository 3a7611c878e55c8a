package interpreter

import "github.com/hunglin/spark-kernel/observability"

// Interpreter event types emitted across the session lifecycle.
const (
	EventStart         observability.EventType = "interpreter.start"
	EventStop          observability.EventType = "interpreter.stop"
	EventUnitQueued    observability.EventType = "interpreter.unit.queued"
	EventUnitComplete  observability.EventType = "interpreter.unit.complete"
	EventInterrupt     observability.EventType = "interpreter.interrupt"
	EventJarsAdded     observability.EventType = "interpreter.jars.added"
	EventRebindSkipped observability.EventType = "interpreter.rebind.skipped"
	EventUnknownError  observability.EventType = "interpreter.error.unknown"
)
