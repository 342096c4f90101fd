// Package vm implements the stack-based bytecode virtual machine for glox.
//
// The VM is the final stage of the pipeline:
//
//	Source -> Compiler (single-pass Pratt, see pkg/compiler) -> Chunk -> VM -> Execution
//
// Virtual Machine Architecture:
//
// The VM is a stack machine: every instruction reads its operands from a
// shared value stack and pushes its result back onto it. Local variables
// live in a region of that same stack (one region per call frame); globals
// live in a separate name-keyed table so their lifetime outlives any single
// frame.
//
//  1. Value stack: holds intermediate values and every frame's locals.
//  2. Call frames: one per active function/method/script invocation, each
//     with its own instruction pointer and a base index into the stack.
//  3. Globals: a map from name to Value, populated by OP_DEFINE_GLOBAL.
//  4. Open upvalues: a singly-linked list of cells still pointing at live
//     stack slots, sorted by descending slot index so closing a range on
//     scope exit or return is a simple prefix walk.
//
// Execution model:
//
// run() fetches one opcode byte at a time from the current frame's Chunk,
// advances that frame's instruction pointer, and dispatches on the opcode.
// Calling a function pushes a new Frame and the loop re-reads the top frame
// on its next iteration; returning pops one.
package vm

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/google/uuid"

	"github.com/kristofer/glox/pkg/bytecode"
	"github.com/kristofer/glox/pkg/compiler"
)

// FramesMax bounds call depth (including the implicit top-level script
// frame): a program that recurses past this depth overflows the VM's own
// stack, not the host's, and reports a clean runtime error instead of a Go
// stack-overflow panic.
const FramesMax = 256

// StackMax is the value stack's default capacity and hard limit: a single
// 8-bit operand budget's worth of slots, matching FramesMax so the default
// configuration enforces the documented limits exactly.
const StackMax = 256

// Frame is one call's activation record: the closure being executed, its
// instruction pointer into that closure's Chunk, and Base, the index in the
// VM's value stack where this call's slot 0 (receiver/callee) begins.
type Frame struct {
	Closure *bytecode.ObjClosure
	IP      int
	Base    int
}

// Config tunes VM behavior; see pkg/config for how it's loaded from YAML.
// StackSlots and FrameLimit default to 256 when zero, which is what every
// VM built via New with a zero-value Config gets. Both are hard limits,
// not just initial capacity hints: exceeding either is a runtime
// "Stack overflow." error, never an unbounded Go slice growth.
type Config struct {
	TraceExecution bool
	StackSlots     int
	FrameLimit     int
}

// VM executes compiled glox bytecode. A VM instance is reusable across
// multiple Interpret calls: globals persist, but the value stack and call
// frames are reset at the start of each Interpret.
type VM struct {
	stack  []bytecode.Value
	frames []Frame

	globals      map[string]bytecode.Value
	openUpvalues *bytecode.ObjUpvalue

	config     Config
	frameLimit int
	stackLimit int
	Stdout     io.Writer
	Stderr     io.Writer

	runID uuid.UUID
}

// New constructs a VM whose global table holds only the registered natives.
func New(cfg Config) *VM {
	stackLimit := cfg.StackSlots
	if stackLimit == 0 {
		stackLimit = StackMax
	}
	frameLimit := cfg.FrameLimit
	if frameLimit == 0 {
		frameLimit = FramesMax
	}

	vm := &VM{
		stack:  make([]bytecode.Value, 0, stackLimit),
		frames: make([]Frame, 0, frameLimit),

		globals:    make(map[string]bytecode.Value),
		config:     cfg,
		frameLimit: frameLimit,
		stackLimit: stackLimit,
		Stdout:     os.Stdout,
		Stderr:     os.Stderr,
	}
	vm.defineNative("clock", clockNative)
	return vm
}

func clockNative(args []bytecode.Value) (bytecode.Value, error) {
	return bytecode.NumberValue(float64(time.Now().UnixNano()) / 1e9), nil
}

func (vm *VM) defineNative(name string, fn bytecode.NativeFn) {
	vm.globals[name] = bytecode.ObjectValue(&bytecode.ObjNative{Name: name, Fn: fn})
}

// Interpret compiles and runs source. A compile failure is returned as
// compiler.CompileErrors without ever reaching the VM; a failure during
// execution is returned as *RuntimeError. RunID tags both the successful
// and failing case so callers (e.g. the CLI) can correlate a single
// Interpret call's trace-execution output and error report.
func (vm *VM) Interpret(source string) error {
	fn, err := compiler.Compile(source)
	if err != nil {
		return err
	}

	vm.runID = uuid.New()
	vm.resetStack()

	if vm.config.TraceExecution {
		fmt.Fprintf(vm.Stdout, "== run %s ==\n", vm.runID)
	}

	closure := bytecode.NewClosure(fn)
	if err := vm.push(bytecode.ObjectValue(closure)); err != nil {
		return err
	}
	if err := vm.call(closure, 0); err != nil {
		return err
	}
	return vm.run()
}

func (vm *VM) resetStack() {
	vm.stack = vm.stack[:0]
	vm.frames = vm.frames[:0]
	vm.openUpvalues = nil
}

// push grows the value stack by one slot, enforcing the configured
// stackLimit: a program that pushes past it (typically via unbounded
// recursion building up temporaries and locals across frames) gets a
// clean "Stack overflow." runtime error instead of unbounded memory growth.
func (vm *VM) push(v bytecode.Value) error {
	if len(vm.stack) >= vm.stackLimit {
		return vm.runtimeError("Stack overflow.")
	}
	vm.stack = append(vm.stack, v)
	return nil
}

func (vm *VM) pop() bytecode.Value {
	v := vm.stack[len(vm.stack)-1]
	vm.stack = vm.stack[:len(vm.stack)-1]
	return v
}

func (vm *VM) peek(distance int) bytecode.Value {
	return vm.stack[len(vm.stack)-1-distance]
}

// runtimeError formats message, attaches the current call stack (innermost
// frame first) as a trace, and resets the VM to a clean state — matching
// clox's behavior of unwinding entirely on any runtime fault rather than
// trying to resume.
func (vm *VM) runtimeError(format string, args ...interface{}) error {
	message := fmt.Sprintf(format, args...)

	trace := make([]TraceFrame, 0, len(vm.frames))
	for i := len(vm.frames) - 1; i >= 0; i-- {
		frame := vm.frames[i]
		chunk := frame.Closure.Function.Chunk
		line := chunk.LineAt(frame.IP - 1)
		trace = append(trace, TraceFrame{Line: line, Name: frame.Closure.Function.Name})
	}

	err := newRuntimeError(vm.runID, message, trace)
	vm.resetStack()
	return err
}

// call pushes a new Frame invoking closure over the top argCount+1 stack
// slots (the callee itself occupies slot 0 of the new frame).
func (vm *VM) call(closure *bytecode.ObjClosure, argCount int) error {
	if argCount != closure.Function.Arity {
		return vm.runtimeError("Expected %d arguments but got %d.", closure.Function.Arity, argCount)
	}
	if len(vm.frames) == vm.frameLimit {
		return vm.runtimeError("Stack overflow.")
	}
	base := len(vm.stack) - argCount - 1
	vm.frames = append(vm.frames, Frame{Closure: closure, Base: base})
	return nil
}

// callValue dispatches a call instruction against whatever kind of callable
// occupies the stack at argCount-from-top: a closure, a native, a class
// (instantiation), or a bound method.
func (vm *VM) callValue(callee bytecode.Value, argCount int) error {
	if callee.Kind != bytecode.ValObject {
		return vm.runtimeError("Can only call functions and classes.")
	}

	switch obj := callee.Obj.(type) {
	case *bytecode.ObjBoundMethod:
		vm.stack[len(vm.stack)-argCount-1] = obj.Receiver
		return vm.call(obj.Method, argCount)

	case *bytecode.ObjClass:
		instance := bytecode.NewInstance(obj)
		vm.stack[len(vm.stack)-argCount-1] = bytecode.ObjectValue(instance)
		if initializer, ok := obj.Methods["init"]; ok {
			return vm.call(initializer, argCount)
		}
		if argCount != 0 {
			return vm.runtimeError("Expected 0 arguments but got %d.", argCount)
		}
		return nil

	case *bytecode.ObjClosure:
		return vm.call(obj, argCount)

	case *bytecode.ObjNative:
		args := vm.stack[len(vm.stack)-argCount:]
		result, err := obj.Fn(args)
		if err != nil {
			return vm.runtimeError("%s", err.Error())
		}
		vm.stack = vm.stack[:len(vm.stack)-argCount-1]
		return vm.push(result)

	default:
		return vm.runtimeError("Can only call functions and classes.")
	}
}

// invoke is the fast path for `receiver.method(args)`: it resolves and
// calls the method directly instead of materializing an intermediate
// ObjBoundMethod, but still checks instance fields first since a field
// holding a closure shadows a same-named method.
func (vm *VM) invoke(name string, argCount int) error {
	receiver := vm.peek(argCount)
	instance, ok := receiver.Obj.(*bytecode.ObjInstance)
	if receiver.Kind != bytecode.ValObject || !ok {
		return vm.runtimeError("Only instances have methods.")
	}

	if field, ok := instance.Fields[name]; ok {
		vm.stack[len(vm.stack)-argCount-1] = field
		return vm.callValue(field, argCount)
	}

	return vm.invokeFromClass(instance.Class, name, argCount)
}

func (vm *VM) invokeFromClass(class *bytecode.ObjClass, name string, argCount int) error {
	method, ok := class.Methods[name]
	if !ok {
		return vm.runtimeError("Undefined property '%s'.", name)
	}
	return vm.call(method, argCount)
}

// bindMethod looks up name on class, wraps it with the value currently on
// top of the stack as its receiver, and replaces that value with the bound
// method. Returns an error if the method doesn't exist.
func (vm *VM) bindMethod(class *bytecode.ObjClass, name string) error {
	method, ok := class.Methods[name]
	if !ok {
		return vm.runtimeError("Undefined property '%s'.", name)
	}
	bound := &bytecode.ObjBoundMethod{Receiver: vm.peek(0), Method: method}
	vm.pop()
	return vm.push(bytecode.ObjectValue(bound))
}

// captureUpvalue returns the open upvalue for absolute stack index
// location, reusing an existing one if some other closure already captured
// that exact slot, otherwise inserting a new one into the sorted open list.
func (vm *VM) captureUpvalue(location int) *bytecode.ObjUpvalue {
	var prev *bytecode.ObjUpvalue
	up := vm.openUpvalues
	for up != nil && up.Location > location {
		prev = up
		up = vm.nextOf(up)
	}
	if up != nil && up.Location == location {
		return up
	}

	created := &bytecode.ObjUpvalue{Location: location}
	vm.setNext(created, up)
	if prev == nil {
		vm.openUpvalues = created
	} else {
		vm.setNext(prev, created)
	}
	return created
}

// closeUpvalues closes every open upvalue at or above absolute stack index
// last, copying its slot's current value into the cell itself so it
// survives that slot being reused or popped.
func (vm *VM) closeUpvalues(last int) {
	for vm.openUpvalues != nil && vm.openUpvalues.Location >= last {
		up := vm.openUpvalues
		up.Value = vm.stack[up.Location]
		up.Closed = true
		vm.openUpvalues = vm.nextOf(up)
	}
}

func (vm *VM) defineMethod(name string) {
	method := vm.peek(0).Obj.(*bytecode.ObjClosure)
	class := vm.peek(1).Obj.(*bytecode.ObjClass)
	class.Methods[name] = method
	vm.pop()
}

func (vm *VM) nextOf(up *bytecode.ObjUpvalue) *bytecode.ObjUpvalue { return up.Next() }

func (vm *VM) setNext(up, next *bytecode.ObjUpvalue) { up.SetNext(next) }

func (vm *VM) upvalueGet(up *bytecode.ObjUpvalue) bytecode.Value {
	if up.Closed {
		return up.Value
	}
	return vm.stack[up.Location]
}

func (vm *VM) upvalueSet(up *bytecode.ObjUpvalue, v bytecode.Value) {
	if up.Closed {
		up.Value = v
	} else {
		vm.stack[up.Location] = v
	}
}
