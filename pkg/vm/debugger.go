// Package vm - execution tracing support.
package vm

import (
	"fmt"
	"strings"

	"github.com/kristofer/glox/pkg/bytecode"
)

// traceInstruction prints the current value stack followed by the
// disassembly of the instruction about to execute, mirroring clox's
// `DEBUG_TRACE_EXECUTION` build flag but gated at runtime by Config's
// TraceExecution field (see pkg/config) instead of a compile-time switch.
func (vm *VM) traceInstruction(chunk *bytecode.Chunk, ip int) {
	var b strings.Builder
	b.WriteString("          ")
	for _, v := range vm.stack {
		fmt.Fprintf(&b, "[ %s ]", v.String())
	}
	b.WriteString("\n")
	bytecode.DisassembleInstruction(&b, chunk, ip)
	fmt.Fprint(vm.Stdout, b.String())
}
