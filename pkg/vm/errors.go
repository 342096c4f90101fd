// Package vm - error handling with stack traces.
package vm

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// TraceFrame is a single entry in a RuntimeError's call-stack trace: the
// source line active in that frame at the moment of the error, and the
// name of the function running there (empty for the top-level frame, which
// Error renders as "script").
type TraceFrame struct {
	Line int
	Name string
}

// RuntimeError is returned by VM.Interpret when execution fails after
// compilation succeeded: a type mismatch, an undefined variable, a call
// arity mismatch, and so on. RunID correlates this failure with the
// specific Interpret invocation in logs, since a long-lived REPL VM runs
// many programs over its lifetime.
type RuntimeError struct {
	Message string
	Trace   []TraceFrame
	RunID   uuid.UUID
}

func newRuntimeError(runID uuid.UUID, message string, trace []TraceFrame) *RuntimeError {
	return &RuntimeError{Message: message, Trace: trace, RunID: runID}
}

// Error renders the message followed by the call stack, innermost frame
// first:
//
//	Undefined property 'z'.
//	[line 4] in b()
//	[line 7] in a()
//	[line 10] in script
func (e *RuntimeError) Error() string {
	var b strings.Builder
	b.WriteString(e.Message)
	for _, frame := range e.Trace {
		name := frame.Name
		if name == "" {
			name = "script"
		} else {
			name = name + "()"
		}
		fmt.Fprintf(&b, "\n[line %d] in %s", frame.Line, name)
	}
	return b.String()
}
