// Package bytecode defines the bytecode format the compiler emits and the VM
// executes: the OpCode enumeration, the Chunk container, the tagged Value
// type, and the heap Object kinds (strings, functions, closures, classes,
// instances, bound methods, upvalues). These live together in one package
// because Function owns a Chunk and Chunk's constant pool holds Values —
// splitting Value into its own package would create an import cycle back to
// Chunk.
package bytecode

// OpCode is a single-byte instruction tag. Each instruction is one OpCode
// byte followed by zero or more immediate operand bytes, per the table this
// type documents below.
type OpCode byte

const (
	// OpConstant pushes constants[idx] onto the stack. Operand: idx (1 byte).
	OpConstant OpCode = iota
	// OpNil pushes the Nil value.
	OpNil
	// OpTrue pushes Bool(true).
	OpTrue
	// OpFalse pushes Bool(false).
	OpFalse
	// OpPop discards the top of stack.
	OpPop

	// OpGetLocal pushes stack[frame.base+slot]. Operand: slot (1 byte).
	OpGetLocal
	// OpSetLocal overwrites stack[frame.base+slot] with the top of stack,
	// leaving the value on the stack. Operand: slot (1 byte).
	OpSetLocal
	// OpGetGlobal looks up constants[idx] (a name) in globals and pushes it.
	// Operand: idx (1 byte).
	OpGetGlobal
	// OpDefineGlobal pops the top of stack into globals[constants[idx]].
	// Operand: idx (1 byte).
	OpDefineGlobal
	// OpSetGlobal assigns the top of stack (left on the stack) to an
	// existing global. Operand: idx (1 byte).
	OpSetGlobal
	// OpGetUpvalue pushes the value of the frame closure's upvalue[slot].
	// Operand: slot (1 byte).
	OpGetUpvalue
	// OpSetUpvalue writes the top of stack into the frame closure's
	// upvalue[slot], leaving the value on the stack. Operand: slot (1 byte).
	OpSetUpvalue
	// OpGetProperty reads a property named constants[idx] off the instance
	// on top of the stack, replacing the instance with the field value or a
	// bound method. Operand: idx (1 byte).
	OpGetProperty
	// OpSetProperty writes the top of stack as a property named
	// constants[idx] on the instance beneath it, leaving just the value.
	// Operand: idx (1 byte).
	OpSetProperty
	// OpGetSuper binds a method named constants[idx] looked up starting at
	// the superclass popped off the stack, onto the receiver below it.
	// Operand: idx (1 byte).
	OpGetSuper

	// OpEqual pops b, a and pushes Bool(a == b).
	OpEqual
	// OpGreater pops b, a (numbers) and pushes Bool(a > b).
	OpGreater
	// OpLess pops b, a (numbers) and pushes Bool(a < b).
	OpLess

	// OpAdd pops b, a; numbers sum, strings concatenate.
	OpAdd
	// OpSubtract pops b, a (numbers) and pushes a - b.
	OpSubtract
	// OpMultiply pops b, a (numbers) and pushes a * b.
	OpMultiply
	// OpDivide pops b, a (numbers) and pushes a / b.
	OpDivide
	// OpNegate negates the numeric top of stack in place.
	OpNegate
	// OpNot replaces the top of stack with its logical negation (falsey
	// becomes true, else false).
	OpNot

	// OpPrint pops the top of stack, writes its display form plus a newline
	// to stdout.
	OpPrint

	// OpJump unconditionally advances ip by off. Operand: off (2 bytes, BE).
	OpJump
	// OpJumpIfFalse advances ip by off if the top of stack is falsey; the
	// value is left on the stack. Operand: off (2 bytes, BE).
	OpJumpIfFalse
	// OpLoop subtracts off from ip. Operand: off (2 bytes, BE).
	OpLoop

	// OpCall invokes the callable argc-from-top on the stack with argc
	// arguments. Operand: argc (1 byte).
	OpCall
	// OpInvoke is an optimized property-load-then-call: looks up
	// constants[idx] on the instance argc-from-top and calls it directly
	// without materializing a BoundMethod. Operands: idx (1 byte), argc (1
	// byte).
	OpInvoke
	// OpSuperInvoke is OpInvoke starting method lookup at the popped
	// superclass. Operands: idx (1 byte), argc (1 byte).
	OpSuperInvoke

	// OpClosure wraps the Function at constants[idx] into a Closure,
	// capturing upvalues per the immediates that follow. Operands: idx (1
	// byte), then upvalueCount pairs of (isLocal byte, index byte).
	OpClosure
	// OpCloseUpvalue closes the open upvalue referencing the current stack
	// top and pops it.
	OpCloseUpvalue

	// OpReturn pops the return value, closes upvalues at/above the frame
	// base, pops the frame, and pushes the return value in the caller.
	OpReturn

	// OpClass pushes a new Class named constants[idx]. Operand: idx (1 byte).
	OpClass
	// OpInherit copies methods from the superclass (1-below-top) into the
	// subclass (top), then pops the subclass.
	OpInherit
	// OpMethod defines a method named constants[idx] (the closure on top of
	// stack) on the class beneath it, then pops the closure. Operand: idx (1
	// byte).
	OpMethod
)

var opcodeNames = map[OpCode]string{
	OpConstant:      "OP_CONSTANT",
	OpNil:           "OP_NIL",
	OpTrue:          "OP_TRUE",
	OpFalse:         "OP_FALSE",
	OpPop:           "OP_POP",
	OpGetLocal:      "OP_GET_LOCAL",
	OpSetLocal:      "OP_SET_LOCAL",
	OpGetGlobal:     "OP_GET_GLOBAL",
	OpDefineGlobal:  "OP_DEFINE_GLOBAL",
	OpSetGlobal:     "OP_SET_GLOBAL",
	OpGetUpvalue:    "OP_GET_UPVALUE",
	OpSetUpvalue:    "OP_SET_UPVALUE",
	OpGetProperty:   "OP_GET_PROPERTY",
	OpSetProperty:   "OP_SET_PROPERTY",
	OpGetSuper:      "OP_GET_SUPER",
	OpEqual:         "OP_EQUAL",
	OpGreater:       "OP_GREATER",
	OpLess:          "OP_LESS",
	OpAdd:           "OP_ADD",
	OpSubtract:      "OP_SUBTRACT",
	OpMultiply:      "OP_MULTIPLY",
	OpDivide:        "OP_DIVIDE",
	OpNegate:        "OP_NEGATE",
	OpNot:           "OP_NOT",
	OpPrint:         "OP_PRINT",
	OpJump:          "OP_JUMP",
	OpJumpIfFalse:   "OP_JUMP_IF_FALSE",
	OpLoop:          "OP_LOOP",
	OpCall:          "OP_CALL",
	OpInvoke:        "OP_INVOKE",
	OpSuperInvoke:   "OP_SUPER_INVOKE",
	OpClosure:       "OP_CLOSURE",
	OpCloseUpvalue:  "OP_CLOSE_UPVALUE",
	OpReturn:        "OP_RETURN",
	OpClass:         "OP_CLASS",
	OpInherit:       "OP_INHERIT",
	OpMethod:        "OP_METHOD",
}

// String returns the disassembly mnemonic for op.
func (op OpCode) String() string {
	if name, ok := opcodeNames[op]; ok {
		return name
	}
	return "OP_UNKNOWN"
}
