// Package compiler implements the single-pass Pratt compiler for glox.
//
// Unlike a traditional parser-then-compiler pipeline, this compiler never
// builds an intermediate AST: it walks the token stream once, and each
// grammar rule emits bytecode directly into the enclosing function's Chunk
// as it is recognized. Lexical scope (locals), closure capture (upvalues),
// and class context (for `this`/`super`) are tracked in compile-time-only
// structures — CompilationUnit and ClassContext — that exist only while
// compiling and are discarded once a function's bytecode is emitted.
//
// The grammar is driven by a Pratt (precedence-climbing) table: each token
// kind has an optional prefix rule, an optional infix rule, and a binding
// precedence. parsePrecedence repeatedly applies infix rules as long as the
// next token's precedence is at least the requested floor, which is what
// gives `1 + 2 * 3` its usual grouping without any recursive-descent
// left-factoring.
package compiler

import (
	"fmt"
	"os"
	"strconv"

	"github.com/kristofer/glox/pkg/bytecode"
	"github.com/kristofer/glox/pkg/lexer"
)

// maxLocals is the per-function limit on local variables: 256 slots,
// 0..255, addressed by a 1-byte operand.
const maxLocals = 256

// maxUpvalues is the per-function limit on upvalues, for the same reason.
const maxUpvalues = 256

// maxParameters is the per-function limit on parameters.
const maxParameters = 255

// FunctionType distinguishes the kind of code a CompilationUnit is
// compiling, which changes what `return`, `this`, and slot 0 mean.
type FunctionType int

const (
	TypeScript FunctionType = iota
	TypeFunction
	TypeMethod
	TypeInitializer
)

// Local is a compile-time-only record of a local variable: the name it was
// declared under, the scope depth it lives at (-1 meaning "declared but not
// yet initialized" — see declareVariable/markInitialized), and whether any
// nested function captures it as an upvalue.
type Local struct {
	Name       string
	Depth      int
	IsCaptured bool
}

// UpvalueSlot records how this CompilationUnit's Nth upvalue is sourced:
// either directly from a local slot in the immediately enclosing unit
// (IsLocal true), or by copying the enclosing unit's own upvalue at Index.
type UpvalueSlot struct {
	Index   int
	IsLocal bool
}

// CompilationUnit holds per-function compiler state. Units form a
// singly-linked chain via Enclosing, one per nested `fun`/method literal
// being compiled, simulating a compile-time call stack: resolveUpvalue walks
// this chain outward to find variables captured from enclosing scopes.
type CompilationUnit struct {
	Enclosing *CompilationUnit

	Function     *bytecode.ObjFunction
	FunctionType FunctionType

	Locals     []Local
	ScopeDepth int

	Upvalues []UpvalueSlot
}

// ClassContext tracks whether compilation is currently inside a class body,
// and whether that class has a superclass (so `super` can be rejected
// outside any subclass). Forms its own linked chain for nested classes.
type ClassContext struct {
	Enclosing     *ClassContext
	HasSuperclass bool
}

// CompileError is a single diagnostic produced during compilation, rendered
// as `[line L] Error[ at X]: message`.
type CompileError struct {
	Line    int
	Where   string // "" (none), "at end", or "at 'lexeme'"
	Message string
}

func (e *CompileError) Error() string {
	if e.Where == "" {
		return fmt.Sprintf("[line %d] Error: %s", e.Line, e.Message)
	}
	return fmt.Sprintf("[line %d] Error %s: %s", e.Line, e.Where, e.Message)
}

// CompileErrors collects every diagnostic from a single compilation pass —
// panic-mode recovery lets the compiler keep going after the first error so
// independent later mistakes are still reported.
type CompileErrors []*CompileError

func (e CompileErrors) Error() string {
	if len(e) == 1 {
		return e[0].Error()
	}
	return fmt.Sprintf("%d compile errors, first: %s", len(e), e[0].Error())
}

// Compiler is a single-pass Pratt parser/emitter. It holds the scanner, a
// one-token lookahead (current/previous), the chain of CompilationUnits
// being built, an optional ClassContext, and panic-mode bookkeeping.
type Compiler struct {
	scanner *lexer.Scanner

	current  lexer.Token
	previous lexer.Token

	unit  *CompilationUnit
	class *ClassContext

	errors    CompileErrors
	panicMode bool
}

// Compile compiles source into a top-level ObjFunction ("the script"). It
// returns CompileErrors if any diagnostics were reported; the returned
// function is still populated in that case (partial compilation), but
// callers must treat a non-nil error as "do not execute this".
func Compile(source string) (*bytecode.ObjFunction, error) {
	c := &Compiler{scanner: lexer.New(source)}
	c.unit = newUnit(nil, TypeScript, "")

	c.advance()
	for !c.matchToken(lexer.Eof) {
		c.declaration()
	}
	c.consume(lexer.Eof, "Expect end of expression.")

	fn := c.endCompiler()
	if len(c.errors) > 0 {
		return fn, c.errors
	}
	return fn, nil
}

func newUnit(enclosing *CompilationUnit, kind FunctionType, name string) *CompilationUnit {
	u := &CompilationUnit{
		Enclosing:    enclosing,
		Function:     bytecode.NewFunction(),
		FunctionType: kind,
	}
	u.Function.Name = name

	// Slot 0 is reserved: "this" for methods/initializers (so a later
	// reference to `this` resolves as an ordinary local), "" otherwise —
	// this is the slot the VM's callValue leaves the callee/receiver in.
	slotName := ""
	if kind == TypeMethod || kind == TypeInitializer {
		slotName = "this"
	}
	u.Locals = append(u.Locals, Local{Name: slotName, Depth: 0})
	return u
}

func (c *Compiler) currentChunk() *bytecode.Chunk {
	return c.unit.Function.Chunk
}

// ---- token management ----

func (c *Compiler) advance() {
	c.previous = c.current
	for {
		c.current = c.scanner.ScanToken()
		if c.current.Kind != lexer.Error {
			break
		}
		c.errorAtCurrent(c.current.Lexeme)
	}
}

func (c *Compiler) check(kind lexer.TokenKind) bool {
	return c.current.Kind == kind
}

func (c *Compiler) matchToken(kind lexer.TokenKind) bool {
	if !c.check(kind) {
		return false
	}
	c.advance()
	return true
}

func (c *Compiler) consume(kind lexer.TokenKind, message string) {
	if c.current.Kind == kind {
		c.advance()
		return
	}
	c.errorAtCurrent(message)
}

// ---- error reporting ----

func (c *Compiler) errorAtCurrent(message string) { c.errorAt(c.current, message) }
func (c *Compiler) errorAtPrevious(message string) { c.errorAt(c.previous, message) }

func (c *Compiler) errorAt(tok lexer.Token, message string) {
	if c.panicMode {
		return
	}
	c.panicMode = true

	where := ""
	switch {
	case tok.Kind == lexer.Eof:
		where = "at end"
	case tok.Kind == lexer.Error:
		// lexeme already is the message; no location fragment
	default:
		where = fmt.Sprintf("at '%s'", tok.Lexeme)
	}

	ce := &CompileError{Line: tok.Line, Where: where, Message: message}
	c.errors = append(c.errors, ce)
	fmt.Fprintln(os.Stderr, ce.Error())
}

// synchronize discards tokens until it reaches a likely statement boundary,
// so one mistake doesn't cascade into a wall of spurious follow-on errors.
func (c *Compiler) synchronize() {
	c.panicMode = false

	for c.current.Kind != lexer.Eof {
		if c.previous.Kind == lexer.Semicolon {
			return
		}
		switch c.current.Kind {
		case lexer.Class, lexer.Fun, lexer.Var, lexer.For,
			lexer.If, lexer.While, lexer.Print, lexer.Return:
			return
		}
		c.advance()
	}
}

// ---- bytecode emission ----

func (c *Compiler) emitByte(b byte) {
	c.currentChunk().WriteByte(b, c.previous.Line)
}

func (c *Compiler) emitOp(op bytecode.OpCode) {
	c.emitByte(byte(op))
}

func (c *Compiler) emitOpByte(op bytecode.OpCode, operand byte) {
	c.emitByte(byte(op))
	c.emitByte(operand)
}

func (c *Compiler) emitLoop(loopStart int) {
	c.emitOp(bytecode.OpLoop)
	// +2 accounts for the two offset bytes this instruction itself writes,
	// so that `ip -= offset` (after those bytes are consumed) lands on
	// loopStart.
	offset := c.currentChunk().Len() - loopStart + 2
	if offset > 0xFFFF {
		c.errorAtPrevious("Loop body too large.")
	}
	c.emitByte(byte(offset >> 8))
	c.emitByte(byte(offset & 0xFF))
}

// emitJump emits op followed by a placeholder 2-byte offset and returns the
// offset of the first placeholder byte, to be fixed up later by patchJump.
func (c *Compiler) emitJump(op bytecode.OpCode) int {
	c.emitOp(op)
	c.emitByte(0xFF)
	c.emitByte(0xFF)
	return c.currentChunk().Len() - 2
}

func (c *Compiler) patchJump(offset int) {
	jump := c.currentChunk().Len() - offset - 2
	if jump > 0xFFFF {
		c.errorAtPrevious("Too much code to jump over.")
	}
	c.currentChunk().PatchByte(offset, byte(jump>>8))
	c.currentChunk().PatchByte(offset+1, byte(jump&0xFF))
}

func (c *Compiler) emitReturn() {
	if c.unit.FunctionType == TypeInitializer {
		// `return;` in an initializer implicitly returns `this` (slot 0).
		c.emitOpByte(bytecode.OpGetLocal, 0)
	} else {
		c.emitOp(bytecode.OpNil)
	}
	c.emitOp(bytecode.OpReturn)
}

func (c *Compiler) makeConstant(v bytecode.Value) byte {
	idx, err := c.currentChunk().AddConstant(v)
	if err != nil {
		c.errorAtPrevious(err.Error())
		return 0
	}
	return byte(idx)
}

func (c *Compiler) emitConstant(v bytecode.Value) {
	c.emitOpByte(bytecode.OpConstant, c.makeConstant(v))
}

func (c *Compiler) identifierConstant(tok lexer.Token) byte {
	return c.makeConstant(bytecode.ObjectValue(bytecode.NewString(tok.Lexeme)))
}

// endCompiler emits the function's implicit trailing return, captures its
// upvalue table, and pops back to the enclosing unit (nil at the top
// level).
func (c *Compiler) endCompiler() *bytecode.ObjFunction {
	c.emitReturn()
	fn := c.unit.Function
	fn.UpvalueCount = len(c.unit.Upvalues)
	c.unit = c.unit.Enclosing
	return fn
}

// ---- scope management ----

func (c *Compiler) beginScope() {
	c.unit.ScopeDepth++
}

// endScope pops locals declared in the scope being left. Captured locals
// must be closed (so any closure holding them keeps a live cell after this
// frame's slot is reused); uncaptured locals are just popped.
func (c *Compiler) endScope() {
	c.unit.ScopeDepth--
	u := c.unit
	for len(u.Locals) > 0 && u.Locals[len(u.Locals)-1].Depth > u.ScopeDepth {
		if u.Locals[len(u.Locals)-1].IsCaptured {
			c.emitOp(bytecode.OpCloseUpvalue)
		} else {
			c.emitOp(bytecode.OpPop)
		}
		u.Locals = u.Locals[:len(u.Locals)-1]
	}
}

// ---- variable declaration ----

func (c *Compiler) declareVariable() {
	if c.unit.ScopeDepth == 0 {
		return // globals are resolved dynamically by name, not declared
	}
	name := c.previous.Lexeme
	u := c.unit
	for i := len(u.Locals) - 1; i >= 0; i-- {
		local := u.Locals[i]
		if local.Depth != -1 && local.Depth < u.ScopeDepth {
			break
		}
		if local.Name == name {
			c.errorAtPrevious("Already a variable with this name in this scope.")
		}
	}
	c.addLocal(name)
}

func (c *Compiler) addLocal(name string) {
	if len(c.unit.Locals) >= maxLocals {
		c.errorAtPrevious("Too many local variables in function.")
		return
	}
	c.unit.Locals = append(c.unit.Locals, Local{Name: name, Depth: -1})
}

func (c *Compiler) markInitialized() {
	if c.unit.ScopeDepth == 0 {
		return
	}
	c.unit.Locals[len(c.unit.Locals)-1].Depth = c.unit.ScopeDepth
}

// parseVariable consumes an identifier, declares it if we're in a local
// scope, and returns the constant-pool index of its name for global
// definition (0, unused, when local).
func (c *Compiler) parseVariable(errMessage string) byte {
	c.consume(lexer.Identifier, errMessage)
	c.declareVariable()
	if c.unit.ScopeDepth > 0 {
		return 0
	}
	return c.identifierConstant(c.previous)
}

func (c *Compiler) defineVariable(global byte) {
	if c.unit.ScopeDepth > 0 {
		c.markInitialized()
		return
	}
	c.emitOpByte(bytecode.OpDefineGlobal, global)
}

// resolveLocal searches unit's locals (innermost first) for name, returning
// its slot or -1 if not found. A local found with Depth == -1 (declared but
// not yet initialized, i.e. referenced in its own initializer) is a
// compile error.
func (c *Compiler) resolveLocal(u *CompilationUnit, name string) int {
	for i := len(u.Locals) - 1; i >= 0; i-- {
		if u.Locals[i].Name == name {
			if u.Locals[i].Depth == -1 {
				c.errorAtPrevious("Can't read local variable in its own initializer.")
			}
			return i
		}
	}
	return -1
}

// resolveUpvalue finds name as a variable captured from an enclosing unit,
// walking outward. If found as a local of the immediately enclosing unit,
// that local is marked captured and a new upvalue slot referencing it is
// added to u. Otherwise it recurses into the enclosing unit's own upvalues.
// Either way, repeated resolution of the same name reuses the existing slot.
func (c *Compiler) resolveUpvalue(u *CompilationUnit, name string) int {
	if u.Enclosing == nil {
		return -1
	}
	if local := c.resolveLocal(u.Enclosing, name); local != -1 {
		u.Enclosing.Locals[local].IsCaptured = true
		return c.addUpvalue(u, local, true)
	}
	if up := c.resolveUpvalue(u.Enclosing, name); up != -1 {
		return c.addUpvalue(u, up, false)
	}
	return -1
}

func (c *Compiler) addUpvalue(u *CompilationUnit, index int, isLocal bool) int {
	for i, existing := range u.Upvalues {
		if existing.Index == index && existing.IsLocal == isLocal {
			return i
		}
	}
	if len(u.Upvalues) >= maxUpvalues {
		c.errorAtPrevious("Too many closure variables in function.")
		return 0
	}
	u.Upvalues = append(u.Upvalues, UpvalueSlot{Index: index, IsLocal: isLocal})
	return len(u.Upvalues) - 1
}

// ---- declarations & statements ----

func (c *Compiler) declaration() {
	switch {
	case c.matchToken(lexer.Class):
		c.classDeclaration()
	case c.matchToken(lexer.Fun):
		c.funDeclaration()
	case c.matchToken(lexer.Var):
		c.varDeclaration()
	default:
		c.statement()
	}
	if c.panicMode {
		c.synchronize()
	}
}

func (c *Compiler) varDeclaration() {
	global := c.parseVariable("Expect variable name.")

	if c.matchToken(lexer.Equal) {
		c.expression()
	} else {
		c.emitOp(bytecode.OpNil)
	}
	c.consume(lexer.Semicolon, "Expect ';' after variable declaration.")

	c.defineVariable(global)
}

func (c *Compiler) funDeclaration() {
	global := c.parseVariable("Expect function name.")
	c.markInitialized()
	c.function(TypeFunction)
	c.defineVariable(global)
}

func (c *Compiler) function(kind FunctionType) {
	name := c.previous.Lexeme
	c.unit = newUnit(c.unit, kind, name)
	c.beginScope()

	c.consume(lexer.LeftParen, "Expect '(' after function name.")
	if !c.check(lexer.RightParen) {
		for {
			c.unit.Function.Arity++
			if c.unit.Function.Arity > maxParameters {
				c.errorAtCurrent("Can't have more than 255 parameters.")
			}
			paramConst := c.parseVariable("Expect parameter name.")
			c.defineVariable(paramConst)
			if !c.matchToken(lexer.Comma) {
				break
			}
		}
	}
	c.consume(lexer.RightParen, "Expect ')' after parameters.")
	c.consume(lexer.LeftBrace, "Expect '{' before function body.")
	c.block()

	// Capture the upvalue table before endCompiler pops the unit away.
	upvalues := c.unit.Upvalues
	fn := c.endCompiler()

	c.emitOpByte(bytecode.OpClosure, c.makeConstant(bytecode.ObjectValue(fn)))
	for _, uv := range upvalues {
		if uv.IsLocal {
			c.emitByte(1)
		} else {
			c.emitByte(0)
		}
		c.emitByte(byte(uv.Index))
	}
}

func (c *Compiler) classDeclaration() {
	c.consume(lexer.Identifier, "Expect class name.")
	className := c.previous
	nameConstant := c.identifierConstant(className)
	c.declareVariable()

	c.emitOpByte(bytecode.OpClass, nameConstant)
	c.defineVariable(nameConstant)

	classCtx := &ClassContext{Enclosing: c.class}
	c.class = classCtx

	if c.matchToken(lexer.Less) {
		c.consume(lexer.Identifier, "Expect superclass name.")
		c.variable(false)
		if className.Lexeme == c.previous.Lexeme {
			c.errorAtPrevious("A class can't inherit from itself.")
		}

		c.beginScope()
		c.addLocal("super")
		c.defineVariable(0)

		c.namedVariable(className, false)
		c.emitOp(bytecode.OpInherit)
		classCtx.HasSuperclass = true
	}

	c.namedVariable(className, false)
	c.consume(lexer.LeftBrace, "Expect '{' before class body.")
	for !c.check(lexer.RightBrace) && !c.check(lexer.Eof) {
		c.method()
	}
	c.consume(lexer.RightBrace, "Expect '}' after class body.")
	c.emitOp(bytecode.OpPop) // drop the class itself

	if classCtx.HasSuperclass {
		c.endScope()
	}
	c.class = classCtx.Enclosing
}

func (c *Compiler) method() {
	c.consume(lexer.Identifier, "Expect method name.")
	name := c.previous
	nameConstant := c.identifierConstant(name)

	kind := TypeMethod
	if name.Lexeme == "init" {
		kind = TypeInitializer
	}
	c.function(kind)
	c.emitOpByte(bytecode.OpMethod, nameConstant)
}

func (c *Compiler) statement() {
	switch {
	case c.matchToken(lexer.Print):
		c.printStatement()
	case c.matchToken(lexer.If):
		c.ifStatement()
	case c.matchToken(lexer.Return):
		c.returnStatement()
	case c.matchToken(lexer.While):
		c.whileStatement()
	case c.matchToken(lexer.For):
		c.forStatement()
	case c.matchToken(lexer.LeftBrace):
		c.beginScope()
		c.block()
		c.endScope()
	default:
		c.expressionStatement()
	}
}

func (c *Compiler) printStatement() {
	c.expression()
	c.consume(lexer.Semicolon, "Expect ';' after value.")
	c.emitOp(bytecode.OpPrint)
}

func (c *Compiler) returnStatement() {
	if c.unit.FunctionType == TypeScript {
		c.errorAtPrevious("Can't return from top-level code.")
	}
	if c.matchToken(lexer.Semicolon) {
		c.emitReturn()
		return
	}
	if c.unit.FunctionType == TypeInitializer {
		c.errorAtPrevious("Can't return a value from an initializer.")
	}
	c.expression()
	c.consume(lexer.Semicolon, "Expect ';' after return value.")
	c.emitOp(bytecode.OpReturn)
}

func (c *Compiler) ifStatement() {
	c.consume(lexer.LeftParen, "Expect '(' after 'if'.")
	c.expression()
	c.consume(lexer.RightParen, "Expect ')' after condition.")

	thenJump := c.emitJump(bytecode.OpJumpIfFalse)
	c.emitOp(bytecode.OpPop)
	c.statement()

	elseJump := c.emitJump(bytecode.OpJump)
	c.patchJump(thenJump)
	c.emitOp(bytecode.OpPop)

	if c.matchToken(lexer.Else) {
		c.statement()
	}
	c.patchJump(elseJump)
}

func (c *Compiler) whileStatement() {
	loopStart := c.currentChunk().Len()
	c.consume(lexer.LeftParen, "Expect '(' after 'while'.")
	c.expression()
	c.consume(lexer.RightParen, "Expect ')' after condition.")

	exitJump := c.emitJump(bytecode.OpJumpIfFalse)
	c.emitOp(bytecode.OpPop)
	c.statement()
	c.emitLoop(loopStart)

	c.patchJump(exitJump)
	c.emitOp(bytecode.OpPop)
}

func (c *Compiler) forStatement() {
	c.beginScope()
	c.consume(lexer.LeftParen, "Expect '(' after 'for'.")

	switch {
	case c.matchToken(lexer.Semicolon):
		// no initializer
	case c.matchToken(lexer.Var):
		c.varDeclaration()
	default:
		c.expressionStatement()
	}

	loopStart := c.currentChunk().Len()
	exitJump := -1
	if !c.matchToken(lexer.Semicolon) {
		c.expression()
		c.consume(lexer.Semicolon, "Expect ';' after loop condition.")
		exitJump = c.emitJump(bytecode.OpJumpIfFalse)
		c.emitOp(bytecode.OpPop)
	}

	if !c.matchToken(lexer.RightParen) {
		bodyJump := c.emitJump(bytecode.OpJump)
		incrementStart := c.currentChunk().Len()
		c.expression()
		c.emitOp(bytecode.OpPop)
		c.consume(lexer.RightParen, "Expect ')' after for clauses.")

		c.emitLoop(loopStart)
		loopStart = incrementStart
		c.patchJump(bodyJump)
	}

	c.statement()
	c.emitLoop(loopStart)

	if exitJump != -1 {
		c.patchJump(exitJump)
		c.emitOp(bytecode.OpPop)
	}
	c.endScope()
}

func (c *Compiler) block() {
	for !c.check(lexer.RightBrace) && !c.check(lexer.Eof) {
		c.declaration()
	}
	c.consume(lexer.RightBrace, "Expect '}' after block.")
}

func (c *Compiler) expressionStatement() {
	c.expression()
	c.consume(lexer.Semicolon, "Expect ';' after expression.")
	c.emitOp(bytecode.OpPop)
}

// ---- expressions (Pratt parser) ----

// Precedence levels, ascending; parsePrecedence keeps consuming infix
// operators as long as the next token binds at least as tightly as the
// requested floor.
type Precedence int

const (
	PrecNone Precedence = iota
	PrecAssignment
	PrecOr
	PrecAnd
	PrecEquality
	PrecComparison
	PrecTerm
	PrecFactor
	PrecUnary
	PrecCall
	PrecPrimary
)

type parseFn func(c *Compiler, canAssign bool)

type parseRule struct {
	prefix     parseFn
	infix      parseFn
	precedence Precedence
}

var rules map[lexer.TokenKind]parseRule

func init() {
	rules = map[lexer.TokenKind]parseRule{
		lexer.LeftParen:    {prefix: (*Compiler).grouping, infix: (*Compiler).call, precedence: PrecCall},
		lexer.Dot:          {infix: (*Compiler).dot, precedence: PrecCall},
		lexer.Minus:        {prefix: (*Compiler).unary, infix: (*Compiler).binary, precedence: PrecTerm},
		lexer.Plus:         {infix: (*Compiler).binary, precedence: PrecTerm},
		lexer.Slash:        {infix: (*Compiler).binary, precedence: PrecFactor},
		lexer.Star:         {infix: (*Compiler).binary, precedence: PrecFactor},
		lexer.Bang:         {prefix: (*Compiler).unary},
		lexer.BangEqual:    {infix: (*Compiler).binary, precedence: PrecEquality},
		lexer.EqualEqual:   {infix: (*Compiler).binary, precedence: PrecEquality},
		lexer.Greater:      {infix: (*Compiler).binary, precedence: PrecComparison},
		lexer.GreaterEqual: {infix: (*Compiler).binary, precedence: PrecComparison},
		lexer.Less:         {infix: (*Compiler).binary, precedence: PrecComparison},
		lexer.LessEqual:    {infix: (*Compiler).binary, precedence: PrecComparison},
		lexer.Identifier:   {prefix: (*Compiler).variableExpr},
		lexer.String:       {prefix: (*Compiler).stringLiteral},
		lexer.Number:       {prefix: (*Compiler).number},
		lexer.And:          {infix: (*Compiler).and_, precedence: PrecAnd},
		lexer.False:        {prefix: (*Compiler).literal},
		lexer.Nil:          {prefix: (*Compiler).literal},
		lexer.Or:           {infix: (*Compiler).or_, precedence: PrecOr},
		lexer.Super:        {prefix: (*Compiler).super_},
		lexer.This:         {prefix: (*Compiler).this_},
		lexer.True:         {prefix: (*Compiler).literal},
	}
}

func (c *Compiler) getRule(kind lexer.TokenKind) parseRule {
	return rules[kind]
}

func (c *Compiler) expression() {
	c.parsePrecedence(PrecAssignment)
}

func (c *Compiler) parsePrecedence(precedence Precedence) {
	c.advance()
	prefixRule := c.getRule(c.previous.Kind).prefix
	if prefixRule == nil {
		c.errorAtPrevious("Expect expression.")
		return
	}

	canAssign := precedence <= PrecAssignment
	prefixRule(c, canAssign)

	for precedence <= c.getRule(c.current.Kind).precedence {
		c.advance()
		infixRule := c.getRule(c.previous.Kind).infix
		infixRule(c, canAssign)
	}

	if canAssign && c.matchToken(lexer.Equal) {
		c.errorAtPrevious("Invalid assignment target.")
	}
}

func (c *Compiler) number(canAssign bool) {
	n, err := strconv.ParseFloat(c.previous.Lexeme, 64)
	if err != nil {
		c.errorAtPrevious("Invalid number literal.")
		return
	}
	c.emitConstant(bytecode.NumberValue(n))
}

func (c *Compiler) stringLiteral(canAssign bool) {
	raw := c.previous.Lexeme
	// Lexeme includes the surrounding quotes; they're stripped only on
	// output, not in the token itself.
	contents := raw[1 : len(raw)-1]
	c.emitConstant(bytecode.ObjectValue(bytecode.NewString(contents)))
}

func (c *Compiler) grouping(canAssign bool) {
	c.expression()
	c.consume(lexer.RightParen, "Expect ')' after expression.")
}

func (c *Compiler) unary(canAssign bool) {
	opKind := c.previous.Kind
	c.parsePrecedence(PrecUnary)
	switch opKind {
	case lexer.Minus:
		c.emitOp(bytecode.OpNegate)
	case lexer.Bang:
		c.emitOp(bytecode.OpNot)
	}
}

func (c *Compiler) binary(canAssign bool) {
	opKind := c.previous.Kind
	rule := c.getRule(opKind)
	c.parsePrecedence(rule.precedence + 1)

	switch opKind {
	case lexer.BangEqual:
		c.emitOp(bytecode.OpEqual)
		c.emitOp(bytecode.OpNot)
	case lexer.EqualEqual:
		c.emitOp(bytecode.OpEqual)
	case lexer.Greater:
		c.emitOp(bytecode.OpGreater)
	case lexer.GreaterEqual:
		c.emitOp(bytecode.OpLess)
		c.emitOp(bytecode.OpNot)
	case lexer.Less:
		c.emitOp(bytecode.OpLess)
	case lexer.LessEqual:
		c.emitOp(bytecode.OpGreater)
		c.emitOp(bytecode.OpNot)
	case lexer.Plus:
		c.emitOp(bytecode.OpAdd)
	case lexer.Minus:
		c.emitOp(bytecode.OpSubtract)
	case lexer.Star:
		c.emitOp(bytecode.OpMultiply)
	case lexer.Slash:
		c.emitOp(bytecode.OpDivide)
	}
}

func (c *Compiler) literal(canAssign bool) {
	switch c.previous.Kind {
	case lexer.False:
		c.emitOp(bytecode.OpFalse)
	case lexer.Nil:
		c.emitOp(bytecode.OpNil)
	case lexer.True:
		c.emitOp(bytecode.OpTrue)
	}
}

func (c *Compiler) and_(canAssign bool) {
	endJump := c.emitJump(bytecode.OpJumpIfFalse)
	c.emitOp(bytecode.OpPop)
	c.parsePrecedence(PrecAnd)
	c.patchJump(endJump)
}

func (c *Compiler) or_(canAssign bool) {
	elseJump := c.emitJump(bytecode.OpJumpIfFalse)
	endJump := c.emitJump(bytecode.OpJump)
	c.patchJump(elseJump)
	c.emitOp(bytecode.OpPop)
	c.parsePrecedence(PrecOr)
	c.patchJump(endJump)
}

func (c *Compiler) call(canAssign bool) {
	argc := c.argumentList()
	c.emitOpByte(bytecode.OpCall, argc)
}

func (c *Compiler) argumentList() byte {
	var argc int
	if !c.check(lexer.RightParen) {
		for {
			c.expression()
			if argc == 255 {
				c.errorAtPrevious("Can't have more than 255 arguments.")
			}
			argc++
			if !c.matchToken(lexer.Comma) {
				break
			}
		}
	}
	c.consume(lexer.RightParen, "Expect ')' after arguments.")
	return byte(argc)
}

func (c *Compiler) dot(canAssign bool) {
	c.consume(lexer.Identifier, "Expect property name after '.'.")
	name := c.identifierConstant(c.previous)

	switch {
	case canAssign && c.matchToken(lexer.Equal):
		c.expression()
		c.emitOpByte(bytecode.OpSetProperty, name)
	case c.matchToken(lexer.LeftParen):
		argc := c.argumentList()
		c.emitOpByte(bytecode.OpInvoke, name)
		c.emitByte(argc)
	default:
		c.emitOpByte(bytecode.OpGetProperty, name)
	}
}

func (c *Compiler) variableExpr(canAssign bool) {
	c.namedVariable(c.previous, canAssign)
}

// variable is used where an identifier must be resolved but assignment was
// already ruled out by the caller (superclass references and `this`).
func (c *Compiler) variable(canAssign bool) {
	c.namedVariable(c.previous, canAssign)
}

func (c *Compiler) namedVariable(name lexer.Token, canAssign bool) {
	var getOp, setOp bytecode.OpCode
	var arg int

	if slot := c.resolveLocal(c.unit, name.Lexeme); slot != -1 {
		getOp, setOp = bytecode.OpGetLocal, bytecode.OpSetLocal
		arg = slot
	} else if slot := c.resolveUpvalue(c.unit, name.Lexeme); slot != -1 {
		getOp, setOp = bytecode.OpGetUpvalue, bytecode.OpSetUpvalue
		arg = slot
	} else {
		arg = int(c.identifierConstant(name))
		getOp, setOp = bytecode.OpGetGlobal, bytecode.OpSetGlobal
	}

	if canAssign && c.matchToken(lexer.Equal) {
		c.expression()
		c.emitOpByte(setOp, byte(arg))
	} else {
		c.emitOpByte(getOp, byte(arg))
	}
}

func (c *Compiler) this_(canAssign bool) {
	if c.class == nil {
		c.errorAtPrevious("Can't use 'this' outside of a class.")
		return
	}
	// `this` never accepts assignment.
	c.variable(false)
}

func (c *Compiler) super_(canAssign bool) {
	if c.class == nil {
		c.errorAtPrevious("Can't use 'super' outside of a class.")
	} else if !c.class.HasSuperclass {
		c.errorAtPrevious("Can't use 'super' in a class with no superclass.")
	}

	c.consume(lexer.Dot, "Expect '.' after 'super'.")
	c.consume(lexer.Identifier, "Expect superclass method name.")
	name := c.identifierConstant(c.previous)

	c.namedVariable(lexer.Token{Kind: lexer.This, Lexeme: "this"}, false)
	if c.matchToken(lexer.LeftParen) {
		argc := c.argumentList()
		c.namedVariable(lexer.Token{Kind: lexer.Super, Lexeme: "super"}, false)
		c.emitOpByte(bytecode.OpSuperInvoke, name)
		c.emitByte(argc)
	} else {
		c.namedVariable(lexer.Token{Kind: lexer.Super, Lexeme: "super"}, false)
		c.emitOpByte(bytecode.OpGetSuper, name)
	}
}
