package bytecode

// Serialization of a compiled Chunk to the .glc binary format, used by the
// `glox compile`/`glox disasm` CLI subcommands to pre-compile a script and
// inspect the result without re-parsing. This format is a CLI convenience,
// not part of the VM's execution contract — the VM only ever consumes an
// in-memory *Chunk, never bytes off disk.
//
// File layout:
//
//	Header:   magic "GLOX" (4 bytes) + format version (4 bytes, LE)
//	Chunk:    constant count (4 bytes) + constants, then
//	          code length (4 bytes) + code bytes, then
//	          one line (4 bytes) per code byte
//
// Constant encoding is a type byte followed by type-specific payload:
//
//	0x01 nil            (no payload)
//	0x02 bool            1 byte
//	0x03 number           8 bytes, IEEE-754 float64 LE
//	0x04 string           4-byte length + UTF-8 bytes
//	0x05 function         name string, arity u32, upvalue count u32, nested Chunk

import (
	"encoding/binary"
	"fmt"
	"io"
)

const (
	magicNumber   uint32 = 0x474C4F58 // "GLOX"
	formatVersion uint32 = 1
)

const (
	constNil byte = iota + 1
	constBool
	constNumber
	constString
	constFunction
)

// Encode writes chunk to w in the .glc binary format.
func Encode(chunk *Chunk, w io.Writer) error {
	if err := binary.Write(w, binary.LittleEndian, magicNumber); err != nil {
		return err
	}
	if err := binary.Write(w, binary.LittleEndian, formatVersion); err != nil {
		return err
	}
	return encodeChunk(chunk, w)
}

func encodeChunk(chunk *Chunk, w io.Writer) error {
	if err := binary.Write(w, binary.LittleEndian, uint32(len(chunk.Constants))); err != nil {
		return err
	}
	for i, v := range chunk.Constants {
		if err := encodeValue(v, w); err != nil {
			return fmt.Errorf("constant %d: %w", i, err)
		}
	}

	if err := binary.Write(w, binary.LittleEndian, uint32(len(chunk.Code))); err != nil {
		return err
	}
	if _, err := w.Write(chunk.Code); err != nil {
		return err
	}
	for _, line := range chunk.Lines {
		if err := binary.Write(w, binary.LittleEndian, uint32(line)); err != nil {
			return err
		}
	}
	return nil
}

func encodeValue(v Value, w io.Writer) error {
	switch v.Kind {
	case ValNil:
		return binary.Write(w, binary.LittleEndian, constNil)
	case ValBool:
		if err := binary.Write(w, binary.LittleEndian, constBool); err != nil {
			return err
		}
		var b byte
		if v.Bool {
			b = 1
		}
		return binary.Write(w, binary.LittleEndian, b)
	case ValNumber:
		if err := binary.Write(w, binary.LittleEndian, constNumber); err != nil {
			return err
		}
		return binary.Write(w, binary.LittleEndian, v.Number)
	case ValObject:
		switch obj := v.Obj.(type) {
		case *ObjString:
			if err := binary.Write(w, binary.LittleEndian, constString); err != nil {
				return err
			}
			return writeString(w, obj.Value)
		case *ObjFunction:
			if err := binary.Write(w, binary.LittleEndian, constFunction); err != nil {
				return err
			}
			if err := writeString(w, obj.Name); err != nil {
				return err
			}
			if err := binary.Write(w, binary.LittleEndian, uint32(obj.Arity)); err != nil {
				return err
			}
			if err := binary.Write(w, binary.LittleEndian, uint32(obj.UpvalueCount)); err != nil {
				return err
			}
			return encodeChunk(obj.Chunk, w)
		default:
			return fmt.Errorf("constant of type %T cannot be serialized", obj)
		}
	default:
		return fmt.Errorf("unknown value kind %d", v.Kind)
	}
}

func writeString(w io.Writer, s string) error {
	if err := binary.Write(w, binary.LittleEndian, uint32(len(s))); err != nil {
		return err
	}
	_, err := io.WriteString(w, s)
	return err
}

// Decode reads a Chunk previously written by Encode.
func Decode(r io.Reader) (*Chunk, error) {
	var magic, version uint32
	if err := binary.Read(r, binary.LittleEndian, &magic); err != nil {
		return nil, err
	}
	if magic != magicNumber {
		return nil, fmt.Errorf("not a glox bytecode file (bad magic 0x%08x)", magic)
	}
	if err := binary.Read(r, binary.LittleEndian, &version); err != nil {
		return nil, err
	}
	if version != formatVersion {
		return nil, fmt.Errorf("unsupported bytecode version %d", version)
	}
	return decodeChunk(r)
}

func decodeChunk(r io.Reader) (*Chunk, error) {
	var constCount uint32
	if err := binary.Read(r, binary.LittleEndian, &constCount); err != nil {
		return nil, err
	}
	constants := make([]Value, constCount)
	for i := range constants {
		v, err := decodeValue(r)
		if err != nil {
			return nil, fmt.Errorf("constant %d: %w", i, err)
		}
		constants[i] = v
	}

	var codeLen uint32
	if err := binary.Read(r, binary.LittleEndian, &codeLen); err != nil {
		return nil, err
	}
	code := make([]byte, codeLen)
	if _, err := io.ReadFull(r, code); err != nil {
		return nil, err
	}
	lines := make([]int, codeLen)
	for i := range lines {
		var line uint32
		if err := binary.Read(r, binary.LittleEndian, &line); err != nil {
			return nil, err
		}
		lines[i] = int(line)
	}

	return &Chunk{Code: code, Constants: constants, Lines: lines}, nil
}

func decodeValue(r io.Reader) (Value, error) {
	var tag byte
	if err := binary.Read(r, binary.LittleEndian, &tag); err != nil {
		return Value{}, err
	}
	switch tag {
	case constNil:
		return NilValue, nil
	case constBool:
		var b byte
		if err := binary.Read(r, binary.LittleEndian, &b); err != nil {
			return Value{}, err
		}
		return BoolValue(b != 0), nil
	case constNumber:
		var n float64
		if err := binary.Read(r, binary.LittleEndian, &n); err != nil {
			return Value{}, err
		}
		return NumberValue(n), nil
	case constString:
		s, err := readString(r)
		if err != nil {
			return Value{}, err
		}
		return ObjectValue(NewString(s)), nil
	case constFunction:
		name, err := readString(r)
		if err != nil {
			return Value{}, err
		}
		var arity, upvalueCount uint32
		if err := binary.Read(r, binary.LittleEndian, &arity); err != nil {
			return Value{}, err
		}
		if err := binary.Read(r, binary.LittleEndian, &upvalueCount); err != nil {
			return Value{}, err
		}
		chunk, err := decodeChunk(r)
		if err != nil {
			return Value{}, err
		}
		fn := &ObjFunction{Name: name, Arity: int(arity), UpvalueCount: int(upvalueCount), Chunk: chunk}
		return ObjectValue(fn), nil
	default:
		return Value{}, fmt.Errorf("unknown constant tag 0x%02x", tag)
	}
}

func readString(r io.Reader) (string, error) {
	var length uint32
	if err := binary.Read(r, binary.LittleEndian, &length); err != nil {
		return "", err
	}
	buf := make([]byte, length)
	if _, err := io.ReadFull(r, buf); err != nil {
		return "", err
	}
	return string(buf), nil
}
