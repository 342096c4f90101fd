package bytecode

import "fmt"

// MaxConstants is the hard limit on a Chunk's constant pool: constants are
// addressed by a single operand byte, so index 256 can never be encoded.
const MaxConstants = 256

// Chunk is an append-only bytecode container owned by exactly one
// ObjFunction. Code is the instruction stream; Constants is the literal
// pool addressed by a 1-byte index; Lines maps each code offset back to the
// source line that produced it, for runtime error reporting.
type Chunk struct {
	Code      []byte
	Constants []Value
	Lines     []int
}

// NewChunk returns an empty Chunk ready to be written to.
func NewChunk() *Chunk {
	return &Chunk{}
}

// WriteByte appends b to the code stream, recording line as the source line
// for this offset, and returns the offset the byte was written at.
func (c *Chunk) WriteByte(b byte, line int) int {
	c.Code = append(c.Code, b)
	c.Lines = append(c.Lines, line)
	return len(c.Code) - 1
}

// PatchByte overwrites the byte already written at offset, used to back-patch
// jump targets once the jump distance is known.
func (c *Chunk) PatchByte(offset int, b byte) {
	c.Code[offset] = b
}

// Len returns the number of bytes written to the code stream so far.
func (c *Chunk) Len() int {
	return len(c.Code)
}

// AddConstant appends v to the constant pool and returns its index. It
// fails once the pool would exceed MaxConstants entries, since a 1-byte
// operand cannot address a 257th constant.
func (c *Chunk) AddConstant(v Value) (int, error) {
	if len(c.Constants) >= MaxConstants {
		return 0, fmt.Errorf("Too many constants in one chunk.")
	}
	c.Constants = append(c.Constants, v)
	return len(c.Constants) - 1, nil
}

// LineAt returns the source line recorded for the instruction at offset.
func (c *Chunk) LineAt(offset int) int {
	if offset < 0 || offset >= len(c.Lines) {
		return -1
	}
	return c.Lines[offset]
}
