package compiler

import (
	"testing"

	"github.com/kristofer/glox/pkg/bytecode"
)

func mustCompile(t *testing.T, source string) *bytecode.ObjFunction {
	t.Helper()
	fn, err := Compile(source)
	if err != nil {
		t.Fatalf("unexpected compile error for %q: %v", source, err)
	}
	return fn
}

func codeOf(fn *bytecode.ObjFunction) []byte {
	return fn.Chunk.Code
}

func containsOp(code []byte, op bytecode.OpCode) bool {
	for _, b := range code {
		if bytecode.OpCode(b) == op {
			return true
		}
	}
	return false
}

func TestCompileArithmeticPrecedence(t *testing.T) {
	fn := mustCompile(t, "print 1 + 2 * 3;")
	code := codeOf(fn)
	if !containsOp(code, bytecode.OpMultiply) || !containsOp(code, bytecode.OpAdd) {
		t.Fatalf("expected both OP_MULTIPLY and OP_ADD in: %s", bytecode.Disassemble(fn.Chunk, "<script>"))
	}
	// Multiply must be emitted before add, since * binds tighter.
	var mulPos, addPos int = -1, -1
	for i, b := range code {
		switch bytecode.OpCode(b) {
		case bytecode.OpMultiply:
			mulPos = i
		case bytecode.OpAdd:
			addPos = i
		}
	}
	if mulPos == -1 || addPos == -1 || mulPos > addPos {
		t.Errorf("expected OP_MULTIPLY before OP_ADD, got mul=%d add=%d", mulPos, addPos)
	}
}

func TestCompileGlobalVariable(t *testing.T) {
	fn := mustCompile(t, "var x = 1; x = 2; print x;")
	code := codeOf(fn)
	if !containsOp(code, bytecode.OpDefineGlobal) {
		t.Error("expected OP_DEFINE_GLOBAL")
	}
	if !containsOp(code, bytecode.OpSetGlobal) {
		t.Error("expected OP_SET_GLOBAL")
	}
	if !containsOp(code, bytecode.OpGetGlobal) {
		t.Error("expected OP_GET_GLOBAL")
	}
}

func TestCompileLocalVariableUsesSlotOps(t *testing.T) {
	fn := mustCompile(t, "{ var x = 1; x = x + 1; print x; }")
	code := codeOf(fn)
	if containsOp(code, bytecode.OpDefineGlobal) {
		t.Error("a block-scoped variable must not compile to OP_DEFINE_GLOBAL")
	}
	if !containsOp(code, bytecode.OpGetLocal) || !containsOp(code, bytecode.OpSetLocal) {
		t.Error("expected OP_GET_LOCAL/OP_SET_LOCAL for a local variable")
	}
}

func TestCompileWhileLoopEmitsLoop(t *testing.T) {
	fn := mustCompile(t, "var i = 0; while (i < 3) { i = i + 1; }")
	code := codeOf(fn)
	if !containsOp(code, bytecode.OpLoop) {
		t.Error("expected OP_LOOP for a while statement")
	}
	if !containsOp(code, bytecode.OpJumpIfFalse) {
		t.Error("expected OP_JUMP_IF_FALSE to test the while condition")
	}
}

func TestCompileForLoopDesugarsToLoopAndJumps(t *testing.T) {
	fn := mustCompile(t, "for (var i = 0; i < 3; i = i + 1) print i;")
	code := codeOf(fn)
	if !containsOp(code, bytecode.OpLoop) || !containsOp(code, bytecode.OpJump) || !containsOp(code, bytecode.OpJumpIfFalse) {
		t.Errorf("expected loop/jump/jump-if-false in for-loop bytecode: %s", bytecode.Disassemble(fn.Chunk, "<script>"))
	}
}

func TestCompileFunctionDeclarationEmitsClosure(t *testing.T) {
	fn := mustCompile(t, "fun add(a, b) { return a + b; } print add(1, 2);")
	code := codeOf(fn)
	if !containsOp(code, bytecode.OpClosure) {
		t.Error("expected OP_CLOSURE for a function declaration")
	}
	if !containsOp(code, bytecode.OpCall) {
		t.Error("expected OP_CALL for invoking the function")
	}
}

func TestCompileClosureCapturesUpvalue(t *testing.T) {
	src := `
		fun outer() {
			var x = "value";
			fun inner() {
				print x;
			}
			return inner;
		}
	`
	fn := mustCompile(t, src)
	// The top-level OP_CLOSURE for outer should carry no upvalue operands
	// (it captures nothing), but outer's own chunk should contain a nested
	// OP_CLOSURE whose function has UpvalueCount 1.
	idx := fn.Chunk.Constants
	found := false
	for _, c := range idx {
		if inner, ok := c.Obj.(*bytecode.ObjFunction); ok && inner.Name == "outer" {
			for _, cc := range inner.Chunk.Constants {
				if innerFn, ok := cc.Obj.(*bytecode.ObjFunction); ok && innerFn.Name == "inner" {
					found = true
					if innerFn.UpvalueCount != 1 {
						t.Errorf("expected inner() to capture exactly 1 upvalue, got %d", innerFn.UpvalueCount)
					}
				}
			}
		}
	}
	if !found {
		t.Fatal("did not find nested inner() function constant")
	}
}

func TestCompileClassWithMethodsAndInheritance(t *testing.T) {
	src := `
		class Animal {
			speak() { print "..."; }
		}
		class Dog < Animal {
			speak() { print "Woof"; }
			init() { this.name = "Rex"; }
		}
	`
	fn := mustCompile(t, src)
	code := codeOf(fn)
	for _, op := range []bytecode.OpCode{bytecode.OpClass, bytecode.OpInherit, bytecode.OpMethod} {
		if !containsOp(code, op) {
			t.Errorf("expected %s in class declaration bytecode", op)
		}
	}
}

func TestCompileSuperCall(t *testing.T) {
	src := `
		class A { greet() { print "A"; } }
		class B < A {
			greet() {
				super.greet();
				print "B";
			}
		}
	`
	fn := mustCompile(t, src)
	found := false
	for _, c := range fn.Chunk.Constants {
		if innerFn, ok := c.Obj.(*bytecode.ObjFunction); ok && innerFn.Name == "greet" {
			if containsOp(innerFn.Chunk.Code, bytecode.OpSuperInvoke) || containsOp(innerFn.Chunk.Code, bytecode.OpGetSuper) {
				found = true
			}
		}
	}
	if !found {
		t.Error("expected OP_SUPER_INVOKE or OP_GET_SUPER somewhere in a method calling super")
	}
}

func TestCompileAndOrShortCircuit(t *testing.T) {
	fn := mustCompile(t, "print true and false or true;")
	code := codeOf(fn)
	if !containsOp(code, bytecode.OpJumpIfFalse) || !containsOp(code, bytecode.OpJump) {
		t.Error("expected jump instructions for and/or short-circuiting")
	}
}

func TestCompileStringLiteralStripsQuotes(t *testing.T) {
	fn := mustCompile(t, `print "hello";`)
	var str *bytecode.ObjString
	for _, c := range fn.Chunk.Constants {
		if s, ok := c.Obj.(*bytecode.ObjString); ok {
			str = s
		}
	}
	if str == nil {
		t.Fatal("expected a string constant")
	}
	if str.Value != "hello" {
		t.Errorf("expected constant %q, got %q (quotes should be stripped)", "hello", str.Value)
	}
}

// ---- error cases ----

func TestCompileErrorOnRedeclaredLocal(t *testing.T) {
	_, err := Compile("{ var a = 1; var a = 2; }")
	if err == nil {
		t.Fatal("expected a compile error for redeclaring a local in the same scope")
	}
}

func TestCompileErrorOnTopLevelReturn(t *testing.T) {
	_, err := Compile("return 1;")
	if err == nil {
		t.Fatal("expected a compile error for returning from top-level code")
	}
}

func TestCompileErrorOnThisOutsideClass(t *testing.T) {
	_, err := Compile("print this;")
	if err == nil {
		t.Fatal("expected a compile error for using 'this' outside a class")
	}
}

func TestCompileErrorOnSuperWithoutSuperclass(t *testing.T) {
	_, err := Compile("class Foo { bar() { super.baz(); } }")
	if err == nil {
		t.Fatal("expected a compile error for using 'super' in a class with no superclass")
	}
}

func TestCompileErrorOnReturnValueFromInitializer(t *testing.T) {
	_, err := Compile("class Foo { init() { return 1; } }")
	if err == nil {
		t.Fatal("expected a compile error for returning a value from an initializer")
	}
}

func TestCompileErrorOnInvalidAssignmentTarget(t *testing.T) {
	_, err := Compile("1 + 2 = 3;")
	if err == nil {
		t.Fatal("expected a compile error for an invalid assignment target")
	}
}

func TestCompileErrorReportsMultipleDiagnostics(t *testing.T) {
	_, err := Compile("var = ; var = ;")
	errs, ok := err.(CompileErrors)
	if !ok {
		t.Fatalf("expected CompileErrors, got %T", err)
	}
	if len(errs) < 2 {
		t.Errorf("expected panic-mode recovery to surface multiple errors, got %d", len(errs))
	}
}

func TestCompileErrorOnSelfInheritance(t *testing.T) {
	_, err := Compile("class Foo < Foo {}")
	if err == nil {
		t.Fatal("expected a compile error for a class inheriting from itself")
	}
}

func TestCompileInitializerImplicitlyReturnsThis(t *testing.T) {
	fn := mustCompile(t, "class Foo { init() { this.x = 1; } }")
	for _, c := range fn.Chunk.Constants {
		if innerFn, ok := c.Obj.(*bytecode.ObjFunction); ok && innerFn.Name == "init" {
			code := innerFn.Chunk.Code
			if len(code) < 2 {
				t.Fatal("init body too short")
			}
			// Implicit return should be OP_GET_LOCAL 0 (this) then OP_RETURN.
			last := len(code)
			if bytecode.OpCode(code[last-1]) != bytecode.OpReturn {
				t.Errorf("expected trailing OP_RETURN, got %s", bytecode.OpCode(code[last-1]))
			}
			if bytecode.OpCode(code[last-3]) != bytecode.OpGetLocal || code[last-2] != 0 {
				t.Errorf("expected OP_GET_LOCAL 0 before implicit return from initializer")
			}
		}
	}
}
