package bytecode

import (
	"encoding/binary"
	"fmt"
	"strings"
)

// Disassemble returns a human-readable dump of every instruction in chunk,
// labeled with name (e.g. a function's name, or "<script>"). This is a pure
// formatting function: it never mutates chunk and has no side effects
// beyond building the returned string, so disassembling a chunk and then
// executing it produces identical execution output to executing it alone.
func Disassemble(chunk *Chunk, name string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "== %s ==\n", name)
	for offset := 0; offset < chunk.Len(); {
		offset = DisassembleInstruction(&b, chunk, offset)
	}
	return b.String()
}

// DisassembleInstruction writes one instruction starting at offset to b and
// returns the offset of the next instruction.
func DisassembleInstruction(b *strings.Builder, chunk *Chunk, offset int) int {
	fmt.Fprintf(b, "%04d ", offset)
	if offset > 0 && chunk.Lines[offset] == chunk.Lines[offset-1] {
		fmt.Fprint(b, "   | ")
	} else {
		fmt.Fprintf(b, "%4d ", chunk.Lines[offset])
	}

	op := OpCode(chunk.Code[offset])
	switch op {
	case OpConstant, OpGetGlobal, OpDefineGlobal, OpSetGlobal,
		OpGetProperty, OpSetProperty, OpGetSuper, OpClass, OpMethod:
		return constantInstruction(b, op, chunk, offset)
	case OpGetLocal, OpSetLocal, OpGetUpvalue, OpSetUpvalue, OpCall:
		return byteInstruction(b, op, chunk, offset)
	case OpInvoke, OpSuperInvoke:
		return invokeInstruction(b, op, chunk, offset)
	case OpJump, OpJumpIfFalse:
		return jumpInstruction(b, op, 1, chunk, offset)
	case OpLoop:
		return jumpInstruction(b, op, -1, chunk, offset)
	case OpClosure:
		return closureInstruction(b, chunk, offset)
	default:
		return simpleInstruction(b, op, offset)
	}
}

func simpleInstruction(b *strings.Builder, op OpCode, offset int) int {
	fmt.Fprintf(b, "%s\n", op)
	return offset + 1
}

func byteInstruction(b *strings.Builder, op OpCode, chunk *Chunk, offset int) int {
	slot := chunk.Code[offset+1]
	fmt.Fprintf(b, "%-16s %4d\n", op, slot)
	return offset + 2
}

func constantInstruction(b *strings.Builder, op OpCode, chunk *Chunk, offset int) int {
	idx := chunk.Code[offset+1]
	fmt.Fprintf(b, "%-16s %4d '%s'\n", op, idx, chunk.Constants[idx].String())
	return offset + 2
}

func invokeInstruction(b *strings.Builder, op OpCode, chunk *Chunk, offset int) int {
	idx := chunk.Code[offset+1]
	argc := chunk.Code[offset+2]
	fmt.Fprintf(b, "%-16s (%d args) %4d '%s'\n", op, argc, idx, chunk.Constants[idx].String())
	return offset + 3
}

func jumpInstruction(b *strings.Builder, op OpCode, sign int, chunk *Chunk, offset int) int {
	jump := int(binary.BigEndian.Uint16(chunk.Code[offset+1 : offset+3]))
	target := offset + 3 + sign*jump
	fmt.Fprintf(b, "%-16s %4d -> %d\n", op, offset, target)
	return offset + 3
}

func closureInstruction(b *strings.Builder, chunk *Chunk, offset int) int {
	offset++
	idx := chunk.Code[offset]
	offset++
	fmt.Fprintf(b, "%-16s %4d '%s'\n", OpClosure, idx, chunk.Constants[idx].String())

	fn, ok := chunk.Constants[idx].Obj.(*ObjFunction)
	if !ok {
		return offset
	}
	for i := 0; i < fn.UpvalueCount; i++ {
		isLocal := chunk.Code[offset]
		offset++
		index := chunk.Code[offset]
		offset++
		kind := "upvalue"
		if isLocal != 0 {
			kind = "local"
		}
		fmt.Fprintf(b, "%04d      |                     %s %d\n", offset-2, kind, index)
	}
	return offset
}
