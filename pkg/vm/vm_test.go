package vm

import (
	"bytes"
	"strings"
	"testing"
)

func run(t *testing.T, source string) (stdout string, err error) {
	t.Helper()
	var buf bytes.Buffer
	machine := New(Config{})
	machine.Stdout = &buf
	err = machine.Interpret(source)
	return buf.String(), err
}

func TestArithmeticPrecedence(t *testing.T) {
	out, err := run(t, "print 1 + 2 * 3;")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if strings.TrimSpace(out) != "9" {
		t.Errorf("got %q, want %q", out, "9")
	}
}

func TestStringConcatenation(t *testing.T) {
	out, err := run(t, `print "foo" + "bar" + "baz";`)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if strings.TrimSpace(out) != "foobarbaz" {
		t.Errorf("got %q, want %q", out, "foobarbaz")
	}
}

func TestClosureCapturesByReference(t *testing.T) {
	src := `
		fun makeCounter() {
			var count = 0;
			fun increment() {
				count = count + 1;
				print count;
			}
			return increment;
		}
		var counter = makeCounter();
		counter();
		counter();
		counter();
	`
	out, err := run(t, src)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	got := strings.Fields(out)
	want := []string{"1", "2", "3"}
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("line %d: got %q, want %q", i, got[i], want[i])
		}
	}
}

func TestClassInheritanceAndSuper(t *testing.T) {
	src := `
		class A {
			method() {
				print "A";
			}
		}
		class B < A {
			method() {
				super.method();
				print "B";
			}
		}
		B().method();
	`
	out, err := run(t, src)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	got := strings.Fields(out)
	want := []string{"A", "B"}
	if len(got) != len(want) || got[0] != want[0] || got[1] != want[1] {
		t.Errorf("got %v, want %v", got, want)
	}
}

func TestInitializerWithArguments(t *testing.T) {
	src := `
		class Point {
			init(x, y) {
				this.x = x;
				this.y = y;
			}
			sum() {
				return this.x + this.y;
			}
		}
		var p = Point(3, 4);
		print p.sum();
	`
	out, err := run(t, src)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if strings.TrimSpace(out) != "7" {
		t.Errorf("got %q, want %q", out, "7")
	}
}

func TestRuntimeErrorReportsCallStack(t *testing.T) {
	src := `
		fun a() { b(); }
		fun b() { c(); }
		fun c() { c.undefinedField; }
		a();
	`
	_, err := run(t, src)
	if err == nil {
		t.Fatal("expected a runtime error")
	}
	msg := err.Error()
	if !strings.Contains(msg, "in c()") || !strings.Contains(msg, "in b()") ||
		!strings.Contains(msg, "in a()") || !strings.Contains(msg, "in script") {
		t.Errorf("expected a full call stack trace, got:\n%s", msg)
	}
}

func TestUndefinedVariableIsRuntimeError(t *testing.T) {
	_, err := run(t, "print nope;")
	if err == nil {
		t.Fatal("expected a runtime error for an undefined global")
	}
	if !strings.Contains(err.Error(), "Undefined variable 'nope'") {
		t.Errorf("unexpected message: %v", err)
	}
}

func TestAddingNumberAndStringIsRuntimeError(t *testing.T) {
	_, err := run(t, `print 1 + "two";`)
	if err == nil {
		t.Fatal("expected a runtime error mixing number and string")
	}
	if !strings.Contains(err.Error(), "Operands must be two numbers or two strings.") {
		t.Errorf("unexpected message: %v", err)
	}
}

func TestWhileLoopAccumulates(t *testing.T) {
	out, err := run(t, `
		var i = 0;
		var sum = 0;
		while (i < 5) {
			sum = sum + i;
			i = i + 1;
		}
		print sum;
	`)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if strings.TrimSpace(out) != "10" {
		t.Errorf("got %q, want %q", out, "10")
	}
}

func TestForLoop(t *testing.T) {
	out, err := run(t, `
		var result = "";
		for (var i = 0; i < 3; i = i + 1) {
			print i;
		}
	`)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	got := strings.Fields(out)
	want := []string{"0", "1", "2"}
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("got %v, want %v", got, want)
		}
	}
}

func TestInvokeDispatchesDirectlyToMethod(t *testing.T) {
	out, err := run(t, `
		class Box {
			greet() { print "method"; }
		}
		Box().greet();
	`)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if strings.TrimSpace(out) != "method" {
		t.Errorf("got %q, want %q", out, "method")
	}
}

func TestClockNativeReturnsNumber(t *testing.T) {
	out, err := run(t, "print clock() > 0;")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if strings.TrimSpace(out) != "true" {
		t.Errorf("got %q, want %q", out, "true")
	}
}

func TestRecursionWithinFrameLimitSucceeds(t *testing.T) {
	out, err := run(t, `
		fun sum(n) {
			if (n == 0) return 0;
			return n + sum(n - 1);
		}
		print sum(100);
	`)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if strings.TrimSpace(out) != "5050" {
		t.Errorf("got %q, want %q", out, "5050")
	}
}

func TestRecursionBeyondFrameLimitOverflows(t *testing.T) {
	_, err := run(t, `
		fun recurse(n) {
			return recurse(n + 1);
		}
		recurse(0);
	`)
	if err == nil {
		t.Fatal("expected a stack overflow runtime error")
	}
	if !strings.Contains(err.Error(), "Stack overflow.") {
		t.Errorf("unexpected message: %v", err)
	}
}

func TestValueStackOverflowOnConfiguredLimit(t *testing.T) {
	var buf bytes.Buffer
	machine := New(Config{StackSlots: 4})
	machine.Stdout = &buf

	// Each argument is pushed and left on the stack until the call
	// executes, so this accumulates well past a 4-slot limit before any
	// slot is freed.
	err := machine.Interpret(`
		fun f(a, b, c, d, e, g, h, i) { return a; }
		print f(1, 2, 3, 4, 5, 6, 7, 8);
	`)
	if err == nil {
		t.Fatal("expected a stack overflow runtime error with a tiny configured stack")
	}
	if !strings.Contains(err.Error(), "Stack overflow.") {
		t.Errorf("unexpected message: %v", err)
	}
}

func TestGlobalsPersistAcrossInterpretCalls(t *testing.T) {
	var buf bytes.Buffer
	machine := New(Config{})
	machine.Stdout = &buf

	if err := machine.Interpret("var x = 10;"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := machine.Interpret("print x + 5;"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if strings.TrimSpace(buf.String()) != "15" {
		t.Errorf("got %q, want %q", buf.String(), "15")
	}
}
