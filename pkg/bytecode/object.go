package bytecode

import "fmt"

// Object is the common interface satisfied by every heap-allocated kind:
// strings, functions, native functions, closures, upvalues, classes,
// instances, and bound methods. Downcasting in the VM is a type switch on
// the concrete pointer type, not a virtual-method hierarchy — the tag *is*
// the Go dynamic type.
type Object interface {
	// String renders the object's display form.
	String() string
	// TypeName names the object's kind (e.g. "string", "class").
	TypeName() string
}

// ObjString is an immutable string with a cached hash, so repeated use as a
// map key (globals, fields, method names) doesn't rehash the content.
type ObjString struct {
	Value string
	hash  uint64
}

// NewString builds an ObjString, computing its hash once.
func NewString(s string) *ObjString {
	return &ObjString{Value: s, hash: fnv1a(s)}
}

func (s *ObjString) String() string   { return s.Value }
func (s *ObjString) TypeName() string { return "string" }

// Hash returns the cached FNV-1a hash of the string's contents.
func (s *ObjString) Hash() uint64 { return s.hash }

func fnv1a(s string) uint64 {
	const offset = 14695981039346656037
	const prime = 1099511628211
	h := uint64(offset)
	for i := 0; i < len(s); i++ {
		h ^= uint64(s[i])
		h *= prime
	}
	return h
}

// ObjFunction is a compiled function body: its arity, how many upvalues its
// closures capture, its name (empty for the implicit top-level script), and
// the Chunk of bytecode the compiler emitted for it. A Function is created
// once by the compiler and never mutated afterward; every Closure built
// from the same constant shares this one Function.
type ObjFunction struct {
	Arity        int
	UpvalueCount int
	Name         string // "" for the top-level script
	Chunk        *Chunk
}

func NewFunction() *ObjFunction {
	return &ObjFunction{Chunk: NewChunk()}
}

func (f *ObjFunction) String() string {
	if f.Name == "" {
		return "<script>"
	}
	return fmt.Sprintf("<fn %s>", f.Name)
}
func (f *ObjFunction) TypeName() string { return "function" }

// NativeFn is the Go function signature backing an ObjNative.
type NativeFn func(args []Value) (Value, error)

// ObjNative wraps a Go function exposed to the Language, e.g. clock.
type ObjNative struct {
	Name string
	Fn   NativeFn
}

func (n *ObjNative) String() string   { return "<native fn>" }
func (n *ObjNative) TypeName() string { return "native function" }

// ObjUpvalue is a mutable cell that, while open, redirects reads/writes to a
// slot in the VM's value stack; once closed, it owns a Value copy directly.
// Multiple Closures that captured the same lexical variable share the same
// *ObjUpvalue, so a write through one is visible to all.
type ObjUpvalue struct {
	// Location indexes into the VM's value stack while the upvalue is open.
	// It is meaningless once Closed is true.
	Location int
	Closed   bool
	Value    Value
	// next chains open upvalues in descending-Location order, forming the
	// VM's open-upvalue list; unused once Closed.
	next *ObjUpvalue
}

func (u *ObjUpvalue) String() string   { return "upvalue" }
func (u *ObjUpvalue) TypeName() string { return "upvalue" }

// Next returns the next open upvalue in the VM's open-upvalue list.
func (u *ObjUpvalue) Next() *ObjUpvalue { return u.next }

// SetNext links u to the next open upvalue in the VM's open-upvalue list.
func (u *ObjUpvalue) SetNext(next *ObjUpvalue) { u.next = next }

// ObjClosure wraps an ObjFunction with the specific Upvalue cells it
// captured from enclosing frames at the point it was created.
type ObjClosure struct {
	Function *ObjFunction
	Upvalues []*ObjUpvalue
}

func NewClosure(fn *ObjFunction) *ObjClosure {
	return &ObjClosure{
		Function: fn,
		Upvalues: make([]*ObjUpvalue, fn.UpvalueCount),
	}
}

func (c *ObjClosure) String() string   { return c.Function.String() }
func (c *ObjClosure) TypeName() string { return "function" }

// ObjClass is a class: its name and its directly-and-inherited methods,
// keyed by method name. Inherit copies the superclass's method
// map entries into the subclass's at class-definition time, so method
// lookup at call time never needs to walk a superclass chain.
type ObjClass struct {
	Name    string
	Methods map[string]*ObjClosure
}

func NewClass(name string) *ObjClass {
	return &ObjClass{Name: name, Methods: make(map[string]*ObjClosure)}
}

func (c *ObjClass) String() string   { return c.Name }
func (c *ObjClass) TypeName() string { return "class" }

// ObjInstance is an instance of a Class, with its own field map.
type ObjInstance struct {
	Class  *ObjClass
	Fields map[string]Value
}

func NewInstance(class *ObjClass) *ObjInstance {
	return &ObjInstance{Class: class, Fields: make(map[string]Value)}
}

func (i *ObjInstance) String() string   { return fmt.Sprintf("%s instance", i.Class.Name) }
func (i *ObjInstance) TypeName() string { return "instance" }

// ObjBoundMethod pairs an already-resolved receiver with the method Closure
// that will run against it; calling one behaves as if the receiver were
// re-pushed as the callee's slot 0 before the call.
type ObjBoundMethod struct {
	Receiver Value
	Method   *ObjClosure
}

func (b *ObjBoundMethod) String() string   { return b.Method.String() }
func (b *ObjBoundMethod) TypeName() string { return "function" }
