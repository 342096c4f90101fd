package vm

import (
	"encoding/binary"
	"fmt"

	"github.com/kristofer/glox/pkg/bytecode"
)

// run is the VM's main fetch-decode-execute loop. It re-reads the top frame
// at the start of every iteration (rather than caching a pointer across
// calls/returns) since call() and OP_RETURN push and pop vm.frames.
func (vm *VM) run() error {
	for {
		frame := &vm.frames[len(vm.frames)-1]
		chunk := frame.Closure.Function.Chunk

		if vm.config.TraceExecution {
			vm.traceInstruction(chunk, frame.IP)
		}

		op := bytecode.OpCode(chunk.Code[frame.IP])
		frame.IP++

		switch op {
		case bytecode.OpConstant:
			idx := chunk.Code[frame.IP]
			frame.IP++
			if err := vm.push(chunk.Constants[idx]); err != nil {
				return err
			}

		case bytecode.OpNil:
			if err := vm.push(bytecode.NilValue); err != nil {
				return err
			}
		case bytecode.OpTrue:
			if err := vm.push(bytecode.BoolValue(true)); err != nil {
				return err
			}
		case bytecode.OpFalse:
			if err := vm.push(bytecode.BoolValue(false)); err != nil {
				return err
			}
		case bytecode.OpPop:
			vm.pop()

		case bytecode.OpGetLocal:
			slot := chunk.Code[frame.IP]
			frame.IP++
			if err := vm.push(vm.stack[frame.Base+int(slot)]); err != nil {
				return err
			}
		case bytecode.OpSetLocal:
			slot := chunk.Code[frame.IP]
			frame.IP++
			vm.stack[frame.Base+int(slot)] = vm.peek(0)

		case bytecode.OpGetGlobal:
			name := chunk.Constants[chunk.Code[frame.IP]].Obj.(*bytecode.ObjString).Value
			frame.IP++
			val, ok := vm.globals[name]
			if !ok {
				return vm.runtimeError("Undefined variable '%s'.", name)
			}
			if err := vm.push(val); err != nil {
				return err
			}
		case bytecode.OpDefineGlobal:
			name := chunk.Constants[chunk.Code[frame.IP]].Obj.(*bytecode.ObjString).Value
			frame.IP++
			vm.globals[name] = vm.pop()
		case bytecode.OpSetGlobal:
			name := chunk.Constants[chunk.Code[frame.IP]].Obj.(*bytecode.ObjString).Value
			frame.IP++
			if _, ok := vm.globals[name]; !ok {
				return vm.runtimeError("Undefined variable '%s'.", name)
			}
			vm.globals[name] = vm.peek(0)

		case bytecode.OpGetUpvalue:
			slot := chunk.Code[frame.IP]
			frame.IP++
			if err := vm.push(vm.upvalueGet(frame.Closure.Upvalues[slot])); err != nil {
				return err
			}
		case bytecode.OpSetUpvalue:
			slot := chunk.Code[frame.IP]
			frame.IP++
			vm.upvalueSet(frame.Closure.Upvalues[slot], vm.peek(0))

		case bytecode.OpGetProperty:
			name := chunk.Constants[chunk.Code[frame.IP]].Obj.(*bytecode.ObjString).Value
			frame.IP++
			receiver := vm.peek(0)
			instance, ok := receiver.Obj.(*bytecode.ObjInstance)
			if receiver.Kind != bytecode.ValObject || !ok {
				return vm.runtimeError("Only instances have properties.")
			}
			if val, ok := instance.Fields[name]; ok {
				vm.pop()
				if err := vm.push(val); err != nil {
					return err
				}
				break
			}
			if err := vm.bindMethod(instance.Class, name); err != nil {
				return err
			}
		case bytecode.OpSetProperty:
			name := chunk.Constants[chunk.Code[frame.IP]].Obj.(*bytecode.ObjString).Value
			frame.IP++
			receiver := vm.peek(1)
			instance, ok := receiver.Obj.(*bytecode.ObjInstance)
			if receiver.Kind != bytecode.ValObject || !ok {
				return vm.runtimeError("Only instances have fields.")
			}
			value := vm.peek(0)
			instance.Fields[name] = value
			vm.pop()
			vm.pop()
			if err := vm.push(value); err != nil {
				return err
			}

		case bytecode.OpGetSuper:
			name := chunk.Constants[chunk.Code[frame.IP]].Obj.(*bytecode.ObjString).Value
			frame.IP++
			superclass := vm.pop().Obj.(*bytecode.ObjClass)
			if err := vm.bindMethod(superclass, name); err != nil {
				return err
			}

		case bytecode.OpEqual:
			b := vm.pop()
			a := vm.pop()
			if err := vm.push(bytecode.BoolValue(a.Equal(b))); err != nil {
				return err
			}
		case bytecode.OpGreater:
			if err := vm.binaryNumeric(func(a, b float64) bytecode.Value { return bytecode.BoolValue(a > b) }); err != nil {
				return err
			}
		case bytecode.OpLess:
			if err := vm.binaryNumeric(func(a, b float64) bytecode.Value { return bytecode.BoolValue(a < b) }); err != nil {
				return err
			}

		case bytecode.OpAdd:
			if err := vm.add(); err != nil {
				return err
			}
		case bytecode.OpSubtract:
			if err := vm.binaryNumeric(func(a, b float64) bytecode.Value { return bytecode.NumberValue(a - b) }); err != nil {
				return err
			}
		case bytecode.OpMultiply:
			if err := vm.binaryNumeric(func(a, b float64) bytecode.Value { return bytecode.NumberValue(a * b) }); err != nil {
				return err
			}
		case bytecode.OpDivide:
			if err := vm.binaryNumeric(func(a, b float64) bytecode.Value { return bytecode.NumberValue(a / b) }); err != nil {
				return err
			}
		case bytecode.OpNegate:
			if vm.peek(0).Kind != bytecode.ValNumber {
				return vm.runtimeError("Operand must be a number.")
			}
			v := vm.pop()
			if err := vm.push(bytecode.NumberValue(-v.Number)); err != nil {
				return err
			}
		case bytecode.OpNot:
			if err := vm.push(bytecode.BoolValue(vm.pop().IsFalsey())); err != nil {
				return err
			}

		case bytecode.OpPrint:
			fmt.Fprintln(vm.Stdout, vm.pop().String())

		case bytecode.OpJump:
			offset := binary.BigEndian.Uint16(chunk.Code[frame.IP : frame.IP+2])
			frame.IP += 2 + int(offset)
		case bytecode.OpJumpIfFalse:
			offset := binary.BigEndian.Uint16(chunk.Code[frame.IP : frame.IP+2])
			frame.IP += 2
			if vm.peek(0).IsFalsey() {
				frame.IP += int(offset)
			}
		case bytecode.OpLoop:
			offset := binary.BigEndian.Uint16(chunk.Code[frame.IP : frame.IP+2])
			frame.IP += 2 - int(offset)

		case bytecode.OpCall:
			argCount := int(chunk.Code[frame.IP])
			frame.IP++
			if err := vm.callValue(vm.peek(argCount), argCount); err != nil {
				return err
			}
		case bytecode.OpInvoke:
			name := chunk.Constants[chunk.Code[frame.IP]].Obj.(*bytecode.ObjString).Value
			argCount := int(chunk.Code[frame.IP+1])
			frame.IP += 2
			if err := vm.invoke(name, argCount); err != nil {
				return err
			}
		case bytecode.OpSuperInvoke:
			name := chunk.Constants[chunk.Code[frame.IP]].Obj.(*bytecode.ObjString).Value
			argCount := int(chunk.Code[frame.IP+1])
			frame.IP += 2
			superclass := vm.pop().Obj.(*bytecode.ObjClass)
			if err := vm.invokeFromClass(superclass, name, argCount); err != nil {
				return err
			}

		case bytecode.OpClosure:
			fn := chunk.Constants[chunk.Code[frame.IP]].Obj.(*bytecode.ObjFunction)
			frame.IP++
			closure := bytecode.NewClosure(fn)
			for i := 0; i < fn.UpvalueCount; i++ {
				isLocal := chunk.Code[frame.IP]
				index := chunk.Code[frame.IP+1]
				frame.IP += 2
				if isLocal != 0 {
					closure.Upvalues[i] = vm.captureUpvalue(frame.Base + int(index))
				} else {
					closure.Upvalues[i] = frame.Closure.Upvalues[index]
				}
			}
			if err := vm.push(bytecode.ObjectValue(closure)); err != nil {
				return err
			}
		case bytecode.OpCloseUpvalue:
			vm.closeUpvalues(len(vm.stack) - 1)
			vm.pop()

		case bytecode.OpReturn:
			result := vm.pop()
			vm.closeUpvalues(frame.Base)
			vm.frames = vm.frames[:len(vm.frames)-1]
			if len(vm.frames) == 0 {
				vm.pop() // the top-level script closure
				return nil
			}
			vm.stack = vm.stack[:frame.Base]
			if err := vm.push(result); err != nil {
				return err
			}

		case bytecode.OpClass:
			name := chunk.Constants[chunk.Code[frame.IP]].Obj.(*bytecode.ObjString).Value
			frame.IP++
			if err := vm.push(bytecode.ObjectValue(bytecode.NewClass(name))); err != nil {
				return err
			}
		case bytecode.OpInherit:
			superVal := vm.peek(1)
			superclass, ok := superVal.Obj.(*bytecode.ObjClass)
			if superVal.Kind != bytecode.ValObject || !ok {
				return vm.runtimeError("Superclass must be a class.")
			}
			subclass := vm.peek(0).Obj.(*bytecode.ObjClass)
			for name, method := range superclass.Methods {
				subclass.Methods[name] = method
			}
			vm.pop()
		case bytecode.OpMethod:
			name := chunk.Constants[chunk.Code[frame.IP]].Obj.(*bytecode.ObjString).Value
			frame.IP++
			vm.defineMethod(name)

		default:
			return vm.runtimeError("Unknown opcode %d.", op)
		}
	}
}

// binaryNumeric pops b, a (checking both are numbers) and pushes op(a, b).
func (vm *VM) binaryNumeric(op func(a, b float64) bytecode.Value) error {
	if vm.peek(0).Kind != bytecode.ValNumber || vm.peek(1).Kind != bytecode.ValNumber {
		return vm.runtimeError("Operands must be numbers.")
	}
	b := vm.pop()
	a := vm.pop()
	return vm.push(op(a.Number, b.Number))
}

// add implements OP_ADD: numeric addition, or string concatenation when
// both operands are strings. Mixed operand kinds are a runtime error.
func (vm *VM) add() error {
	bVal := vm.peek(0)
	aVal := vm.peek(1)

	if aVal.Kind == bytecode.ValNumber && bVal.Kind == bytecode.ValNumber {
		b := vm.pop()
		a := vm.pop()
		return vm.push(bytecode.NumberValue(a.Number + b.Number))
	}

	aStr, aOK := aVal.Obj.(*bytecode.ObjString)
	bStr, bOK := bVal.Obj.(*bytecode.ObjString)
	if aVal.Kind == bytecode.ValObject && bVal.Kind == bytecode.ValObject && aOK && bOK {
		vm.pop()
		vm.pop()
		return vm.push(bytecode.ObjectValue(bytecode.NewString(aStr.Value + bStr.Value)))
	}

	return vm.runtimeError("Operands must be two numbers or two strings.")
}
