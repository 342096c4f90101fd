package bytecode

import (
	"bytes"
	"math"
	"testing"
)

func TestValueEquality(t *testing.T) {
	tests := []struct {
		name string
		a, b Value
		want bool
	}{
		{"nil equals nil", NilValue, NilValue, true},
		{"bools equal", BoolValue(true), BoolValue(true), true},
		{"bools differ", BoolValue(true), BoolValue(false), false},
		{"numbers equal", NumberValue(3), NumberValue(3), true},
		{"numbers differ", NumberValue(3), NumberValue(4), false},
		{"nan not equal to itself", NumberValue(math.NaN()), NumberValue(math.NaN()), false},
		{"different kinds never equal", NilValue, BoolValue(false), false},
		{"strings equal by content", ObjectValue(NewString("hi")), ObjectValue(NewString("hi")), true},
		{"strings differ by content", ObjectValue(NewString("hi")), ObjectValue(NewString("bye")), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.a.Equal(tt.b); got != tt.want {
				t.Errorf("Equal() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestObjectsOfDistinctKindsNeverEqual(t *testing.T) {
	class := ObjectValue(NewClass("Foo"))
	str := ObjectValue(NewString("Foo"))
	if class.Equal(str) {
		t.Error("a class and a string with the same name must not compare equal")
	}
}

func TestInstancesCompareByIdentity(t *testing.T) {
	class := NewClass("Point")
	a := ObjectValue(NewInstance(class))
	b := ObjectValue(NewInstance(class))
	if a.Equal(b) {
		t.Error("two distinct instances of the same class must not be equal")
	}
	if !a.Equal(a) {
		t.Error("an instance must equal itself")
	}
}

func TestIsFalsey(t *testing.T) {
	falsey := []Value{NilValue, BoolValue(false)}
	for _, v := range falsey {
		if !v.IsFalsey() {
			t.Errorf("%v should be falsey", v)
		}
	}
	truthy := []Value{BoolValue(true), NumberValue(0), ObjectValue(NewString(""))}
	for _, v := range truthy {
		if v.IsFalsey() {
			t.Errorf("%v should be truthy", v)
		}
	}
}

func TestValueStringFormatting(t *testing.T) {
	tests := []struct {
		v    Value
		want string
	}{
		{NilValue, "nil"},
		{BoolValue(true), "true"},
		{BoolValue(false), "false"},
		{NumberValue(9), "9"},
		{NumberValue(9.5), "9.5"},
		{ObjectValue(NewString("hello")), "hello"},
	}
	for _, tt := range tests {
		if got := tt.v.String(); got != tt.want {
			t.Errorf("String() = %q, want %q", got, tt.want)
		}
	}
}

func TestChunkAddConstantLimit(t *testing.T) {
	c := NewChunk()
	for i := 0; i < MaxConstants; i++ {
		if _, err := c.AddConstant(NumberValue(float64(i))); err != nil {
			t.Fatalf("constant %d: unexpected error: %v", i, err)
		}
	}
	if _, err := c.AddConstant(NumberValue(256)); err == nil {
		t.Fatal("expected error adding a 257th constant")
	}
}

func TestChunkWriteByteRecordsLine(t *testing.T) {
	c := NewChunk()
	off := c.WriteByte(byte(OpNil), 3)
	if c.LineAt(off) != 3 {
		t.Errorf("expected line 3, got %d", c.LineAt(off))
	}
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	chunk := NewChunk()
	idx, _ := chunk.AddConstant(NumberValue(42))
	chunk.WriteByte(byte(OpConstant), 1)
	chunk.WriteByte(byte(idx), 1)
	chunk.WriteByte(byte(OpReturn), 1)

	var buf bytes.Buffer
	if err := Encode(chunk, &buf); err != nil {
		t.Fatalf("Encode: %v", err)
	}

	decoded, err := Decode(&buf)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if len(decoded.Code) != len(chunk.Code) {
		t.Fatalf("code length mismatch: got %d, want %d", len(decoded.Code), len(chunk.Code))
	}
	for i := range chunk.Code {
		if decoded.Code[i] != chunk.Code[i] {
			t.Errorf("code[%d] = %d, want %d", i, decoded.Code[i], chunk.Code[i])
		}
	}
	if !decoded.Constants[0].Equal(chunk.Constants[0]) {
		t.Errorf("constant mismatch: got %v, want %v", decoded.Constants[0], chunk.Constants[0])
	}
}

func TestDisassembleIsPurelyTextual(t *testing.T) {
	chunk := NewChunk()
	idx, _ := chunk.AddConstant(NumberValue(7))
	chunk.WriteByte(byte(OpConstant), 1)
	chunk.WriteByte(byte(idx), 1)
	chunk.WriteByte(byte(OpReturn), 1)

	out := Disassemble(chunk, "<script>")
	if out == "" {
		t.Fatal("expected non-empty disassembly")
	}
	if !bytes.Contains([]byte(out), []byte("OP_CONSTANT")) {
		t.Errorf("expected disassembly to mention OP_CONSTANT, got:\n%s", out)
	}
	if !bytes.Contains([]byte(out), []byte("OP_RETURN")) {
		t.Errorf("expected disassembly to mention OP_RETURN, got:\n%s", out)
	}
}
