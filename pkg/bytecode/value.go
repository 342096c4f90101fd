package bytecode

import "fmt"

// ValueKind tags which variant a Value holds.
type ValueKind byte

const (
	ValNil ValueKind = iota
	ValBool
	ValNumber
	ValObject
)

// Value is the tagged union of every value the language can hold: Nil,
// Bool, Number (float64), or a reference to a heap Object. Exactly one
// payload field is meaningful, selected by Kind. A tagged struct rather
// than a Go interface{} keeps Value equality (below) precise and keeps
// the zero Value usefully Nil.
type Value struct {
	Kind   ValueKind
	Bool   bool
	Number float64
	Obj    Object
}

// NilValue is the singleton Nil value.
var NilValue = Value{Kind: ValNil}

// BoolValue wraps a bool as a Value.
func BoolValue(b bool) Value { return Value{Kind: ValBool, Bool: b} }

// NumberValue wraps a float64 as a Value.
func NumberValue(n float64) Value { return Value{Kind: ValNumber, Number: n} }

// ObjectValue wraps a heap Object as a Value.
func ObjectValue(o Object) Value { return Value{Kind: ValObject, Obj: o} }

// IsNil reports whether v is the Nil value.
func (v Value) IsNil() bool { return v.Kind == ValNil }

// IsFalsey reports whether v is Nil or Bool(false) — the only two falsey
// values; every other Value is truthy.
func (v Value) IsFalsey() bool {
	return v.Kind == ValNil || (v.Kind == ValBool && !v.Bool)
}

// Equal implements Value equality: same variant and same payload. Numbers
// compare with IEEE-754 rules (NaN != NaN, including NaN != itself).
// Objects of distinct kinds are never equal; strings compare by content;
// every other object kind compares by identity (same heap allocation).
func (v Value) Equal(other Value) bool {
	if v.Kind != other.Kind {
		return false
	}
	switch v.Kind {
	case ValNil:
		return true
	case ValBool:
		return v.Bool == other.Bool
	case ValNumber:
		return v.Number == other.Number
	case ValObject:
		return objectsEqual(v.Obj, other.Obj)
	default:
		return false
	}
}

func objectsEqual(a, b Object) bool {
	as, aIsString := a.(*ObjString)
	bs, bIsString := b.(*ObjString)
	if aIsString && bIsString {
		return as.Value == bs.Value
	}
	return a == b
}

// String renders v in the Language's canonical display form, used by both
// the `print` opcode and the disassembler when dumping constants.
func (v Value) String() string {
	switch v.Kind {
	case ValNil:
		return "nil"
	case ValBool:
		if v.Bool {
			return "true"
		}
		return "false"
	case ValNumber:
		return formatNumber(v.Number)
	case ValObject:
		return v.Obj.String()
	default:
		return "<invalid value>"
	}
}

// formatNumber matches default f64 decimal formatting: integral values
// render without a fractional part.
func formatNumber(n float64) string {
	if n == float64(int64(n)) {
		return fmt.Sprintf("%d", int64(n))
	}
	return fmt.Sprintf("%g", n)
}

// TypeName returns a short name for v's runtime type (e.g. "number",
// "instance").
func (v Value) TypeName() string {
	switch v.Kind {
	case ValNil:
		return "nil"
	case ValBool:
		return "boolean"
	case ValNumber:
		return "number"
	case ValObject:
		return v.Obj.TypeName()
	default:
		return "unknown"
	}
}
