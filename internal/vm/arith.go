package vm

import (
	"math"

	"github.com/pyvm/pyvm/internal/bytecode"
	"github.com/pyvm/pyvm/internal/vmerr"
)

func isNumeric(v Value) bool { return v.Kind == KindInt || v.Kind == KindFloat }

func asFloat(v Value) float64 {
	if v.Kind == KindFloat {
		return v.Float
	}
	return float64(v.Int)
}

func (m *VM) binaryArith(op bytecode.Op, pc uint32) error {
	b, err := m.stack.Pop(pc)
	if err != nil {
		return err
	}
	a, err := m.stack.Pop(pc)
	if err != nil {
		return err
	}

	if op == bytecode.ADD && a.Kind == KindString && b.Kind == KindString {
		return m.stack.Push(StringValue(a.Str+b.Str), pc)
	}
	if op == bytecode.ADD && (a.Kind == KindString || b.Kind == KindString) {
		return &vmerr.TypeError{
			Message: "ADD: cannot mix string and " + otherType(a, b) + " operands",
			Runtime: true, PC: pc, Opcode: "ADD",
		}
	}
	if !isNumeric(a) || !isNumeric(b) {
		return &vmerr.TypeError{
			Message: op.String() + ": operands must be numeric, got " + a.TypeName() + " and " + b.TypeName(),
			Runtime: true, PC: pc, Opcode: op.String(),
		}
	}

	bothInt := a.Kind == KindInt && b.Kind == KindInt
	switch op {
	case bytecode.ADD:
		if bothInt {
			return m.stack.Push(IntValue(a.Int+b.Int), pc)
		}
		return m.stack.Push(FloatValue(asFloat(a)+asFloat(b)), pc)
	case bytecode.SUB:
		if bothInt {
			return m.stack.Push(IntValue(a.Int-b.Int), pc)
		}
		return m.stack.Push(FloatValue(asFloat(a)-asFloat(b)), pc)
	case bytecode.MUL:
		if bothInt {
			return m.stack.Push(IntValue(a.Int*b.Int), pc)
		}
		return m.stack.Push(FloatValue(asFloat(a)*asFloat(b)), pc)
	case bytecode.DIV:
		if bothInt {
			if b.Int == 0 {
				return &vmerr.ArithmeticError{Message: "division by zero", PC: pc}
			}
			return m.stack.Push(IntValue(a.Int/b.Int), pc)
		}
		bf := asFloat(b)
		if bf == 0 {
			return &vmerr.ArithmeticError{Message: "division by zero", PC: pc}
		}
		return m.stack.Push(FloatValue(asFloat(a)/bf), pc)
	case bytecode.MOD:
		if bothInt {
			if b.Int == 0 {
				return &vmerr.ArithmeticError{Message: "modulo by zero", PC: pc}
			}
			return m.stack.Push(IntValue(a.Int%b.Int), pc)
		}
		bf := asFloat(b)
		if bf == 0 {
			return &vmerr.ArithmeticError{Message: "modulo by zero", PC: pc}
		}
		return m.stack.Push(FloatValue(math.Mod(asFloat(a), bf)), pc)
	}
	return &vmerr.InvalidOpcodeError{Byte: byte(op), PC: pc}
}

func otherType(a, b Value) string {
	if a.Kind == KindString {
		return b.TypeName()
	}
	return a.TypeName()
}

func (m *VM) negate(pc uint32) error {
	v, err := m.stack.Pop(pc)
	if err != nil {
		return err
	}
	switch v.Kind {
	case KindInt:
		return m.stack.Push(IntValue(-v.Int), pc)
	case KindFloat:
		return m.stack.Push(FloatValue(-v.Float), pc)
	default:
		return &vmerr.TypeError{Message: "NEG: operand must be numeric, got " + v.TypeName(), Runtime: true, PC: pc, Opcode: "NEG"}
	}
}

func (m *VM) compare(op bytecode.Op, pc uint32) error {
	b, err := m.stack.Pop(pc)
	if err != nil {
		return err
	}
	a, err := m.stack.Pop(pc)
	if err != nil {
		return err
	}

	if op == bytecode.EQ {
		return m.stack.Push(BoolValue(a.Equal(b)), pc)
	}
	if op == bytecode.NEQ {
		return m.stack.Push(BoolValue(!a.Equal(b)), pc)
	}

	switch {
	case a.Kind == KindString && b.Kind == KindString:
		var result bool
		switch op {
		case bytecode.LT:
			result = a.Str < b.Str
		case bytecode.LE:
			result = a.Str <= b.Str
		case bytecode.GT:
			result = a.Str > b.Str
		case bytecode.GE:
			result = a.Str >= b.Str
		}
		return m.stack.Push(BoolValue(result), pc)
	case isNumeric(a) && isNumeric(b):
		af, bf := asFloat(a), asFloat(b)
		var result bool
		switch op {
		case bytecode.LT:
			result = af < bf
		case bytecode.LE:
			result = af <= bf
		case bytecode.GT:
			result = af > bf
		case bytecode.GE:
			result = af >= bf
		}
		return m.stack.Push(BoolValue(result), pc)
	default:
		return &vmerr.TypeError{
			Message: op.String() + ": cannot compare " + a.TypeName() + " and " + b.TypeName(),
			Runtime: true, PC: pc, Opcode: op.String(),
		}
	}
}

func (m *VM) logical(op bytecode.Op, pc uint32) error {
	b, err := m.stack.Pop(pc)
	if err != nil {
		return err
	}
	a, err := m.stack.Pop(pc)
	if err != nil {
		return err
	}
	var result bool
	if op == bytecode.AND {
		result = a.Truthy() && b.Truthy()
	} else {
		result = a.Truthy() || b.Truthy()
	}
	return m.stack.Push(BoolValue(result), pc)
}
