// Package vm implements the stack-based execution engine: the operand and
// call stacks, the variable store, and the fetch-decode-dispatch loop over
// an internal/container.Program.
package vm

import (
	"bufio"
	"encoding/binary"
	"io"

	"github.com/pyvm/pyvm/internal/bytecode"
	"github.com/pyvm/pyvm/internal/compiler"
	"github.com/pyvm/pyvm/internal/container"
	"github.com/pyvm/pyvm/internal/vmerr"
)

// VM is single-threaded and fully synchronous: every handler runs to
// completion before the next fetch, and there is no suspension or
// cancellation primitive — only HALT or a propagating error ends a run.
type VM struct {
	prog   *container.Program
	stack  *OperandStack
	calls  *callStack
	vars   []Value
	pc     uint32
	limits Limits
	out    io.Writer
	in     *bufio.Reader

	// Instructions executed, maintained for --performance reporting.
	Executed uint64
}

// New constructs a VM over a loaded program. The variable store is sized
// from the symbol table's VAR count and every slot defaults to Null.
func New(prog *container.Program, limits Limits, out io.Writer, in io.Reader) *VM {
	varCount := 0
	for _, s := range prog.Symbols {
		if s.Kind == compiler.SymVar && int(s.Index)+1 > varCount {
			varCount = int(s.Index) + 1
		}
	}
	vars := make([]Value, varCount)
	for i := range vars {
		vars[i] = NullValue()
	}
	return &VM{
		prog:   prog,
		stack:  newOperandStack(limits.MaxStack),
		calls:  newCallStack(limits.MaxFrames),
		vars:   vars,
		limits: limits,
		out:    out,
		in:     bufio.NewReader(in),
	}
}

func constantValue(c compiler.Constant) Value {
	switch c.Kind {
	case compiler.ConstInt:
		return IntValue(c.Int)
	case compiler.ConstFloat:
		return FloatValue(c.Float)
	case compiler.ConstString:
		return StringValue(c.Str)
	case compiler.ConstBool:
		return BoolValue(c.Bool)
	default:
		return NullValue()
	}
}

// Run executes from PC 0 until HALT, PC reaching the end of the code
// section, or an error. It returns the typed vmerr on failure; no partial
// VM state is reusable afterwards.
func (m *VM) Run() error {
	code := m.prog.Code
	for int(m.pc) < len(code) {
		op := bytecode.Op(code[m.pc])
		if op == bytecode.HALT {
			return nil
		}
		if err := m.step(op, code); err != nil {
			return err
		}
		m.Executed++
	}
	return nil
}

func (m *VM) step(op bytecode.Op, code []byte) error {
	startPC := m.pc
	info, ok := bytecode.Lookup(op)
	if !ok {
		return &vmerr.InvalidOpcodeError{Byte: byte(op), PC: startPC}
	}
	operand := code[m.pc+1 : m.pc+1+uint32(info.OperandLen)]
	m.pc += 1 + uint32(info.OperandLen)

	switch op {
	case bytecode.NOP:
		return nil

	case bytecode.POP:
		_, err := m.stack.Pop(startPC)
		return err

	case bytecode.DUP:
		v, err := m.stack.Peek(startPC)
		if err != nil {
			return err
		}
		return m.stack.Push(v, startPC)

	case bytecode.SWAP:
		b, err := m.stack.Pop(startPC)
		if err != nil {
			return err
		}
		a, err := m.stack.Pop(startPC)
		if err != nil {
			return err
		}
		if err := m.stack.Push(b, startPC); err != nil {
			return err
		}
		return m.stack.Push(a, startPC)

	case bytecode.LOAD_CONST:
		return m.pushConst(int(operand[0]), startPC)
	case bytecode.LOAD_CONST_W:
		return m.pushConst(int(binary.LittleEndian.Uint16(operand)), startPC)

	case bytecode.LOAD_VAR:
		return m.pushVar(int(operand[0]), startPC)
	case bytecode.LOAD_VAR_W:
		return m.pushVar(int(binary.LittleEndian.Uint16(operand)), startPC)

	case bytecode.STORE_VAR:
		return m.storeVar(int(operand[0]), startPC)
	case bytecode.STORE_VAR_W:
		return m.storeVar(int(binary.LittleEndian.Uint16(operand)), startPC)

	case bytecode.ADD, bytecode.SUB, bytecode.MUL, bytecode.DIV, bytecode.MOD:
		return m.binaryArith(op, startPC)

	case bytecode.NEG:
		return m.negate(startPC)

	case bytecode.EQ, bytecode.NEQ, bytecode.LT, bytecode.LE, bytecode.GT, bytecode.GE:
		return m.compare(op, startPC)

	case bytecode.AND, bytecode.OR:
		return m.logical(op, startPC)

	case bytecode.NOT:
		v, err := m.stack.Pop(startPC)
		if err != nil {
			return err
		}
		return m.stack.Push(BoolValue(!v.Truthy()), startPC)

	case bytecode.JMP:
		m.pc = binary.LittleEndian.Uint32(operand)
		return nil

	case bytecode.JMP_IF_FALSE:
		v, err := m.stack.Pop(startPC)
		if err != nil {
			return err
		}
		if !v.Truthy() {
			m.pc = binary.LittleEndian.Uint32(operand)
		}
		return nil

	case bytecode.JMP_IF_TRUE:
		v, err := m.stack.Pop(startPC)
		if err != nil {
			return err
		}
		if v.Truthy() {
			m.pc = binary.LittleEndian.Uint32(operand)
		}
		return nil

	case bytecode.CALL:
		return m.call(operand, startPC)

	case bytecode.RETURN:
		return m.ret(startPC)

	case bytecode.PRINT:
		v, err := m.stack.Pop(startPC)
		if err != nil {
			return err
		}
		_, werr := io.WriteString(m.out, v.String()+"\n")
		return werr

	case bytecode.INPUT:
		line, rerr := m.in.ReadString('\n')
		if rerr != nil && line == "" && rerr != io.EOF {
			return &vmerr.RuntimeError{Message: rerr.Error(), PC: startPC, Opcode: op.String()}
		}
		line = trimNewline(line)
		return m.stack.Push(StringValue(line), startPC)

	default:
		return &vmerr.InvalidOpcodeError{Byte: byte(op), PC: startPC}
	}
}

func trimNewline(s string) string {
	n := len(s)
	if n > 0 && s[n-1] == '\n' {
		s = s[:n-1]
	}
	n = len(s)
	if n > 0 && s[n-1] == '\r' {
		s = s[:n-1]
	}
	return s
}

func (m *VM) pushConst(idx int, pc uint32) error {
	if idx < 0 || idx >= len(m.prog.Constants) {
		return &vmerr.RuntimeError{Message: "constant index out of range", PC: pc, Opcode: "LOAD_CONST"}
	}
	return m.stack.Push(constantValue(m.prog.Constants[idx]), pc)
}

func (m *VM) pushVar(idx int, pc uint32) error {
	if idx < 0 || idx >= len(m.vars) {
		return &vmerr.RuntimeError{Message: "variable index out of range", PC: pc, Opcode: "LOAD_VAR"}
	}
	return m.stack.Push(m.vars[idx], pc)
}

func (m *VM) storeVar(idx int, pc uint32) error {
	v, err := m.stack.Pop(pc)
	if err != nil {
		return err
	}
	if idx < 0 || idx >= len(m.vars) {
		return &vmerr.RuntimeError{Message: "variable index out of range", PC: pc, Opcode: "STORE_VAR"}
	}
	m.vars[idx] = v
	return nil
}

// This compiler never emits CALL (it uses the dedicated PRINT/INPUT opcodes
// instead, see DESIGN.md), but the dispatch loop still honors the CALL shape
// spec.md's data model describes, for hand-assembled or future programs:
// the operand's first two bytes are a symbol-table index, not a raw tag, and
// the referenced symbol must be a FUNC entry whose value is the builtin tag.
func (m *VM) call(operand []byte, pc uint32) error {
	symIdx := int(binary.LittleEndian.Uint16(operand[0:2]))
	argc := int(operand[2])

	if symIdx < 0 || symIdx >= len(m.prog.Symbols) {
		return &vmerr.RuntimeError{Message: "CALL: symbol index out of range", PC: pc, Opcode: "CALL"}
	}
	sym := m.prog.Symbols[symIdx]
	if sym.Kind != compiler.SymFunc {
		return &vmerr.RuntimeError{Message: "CALL: symbol " + sym.Name + " is not callable", PC: pc, Opcode: "CALL"}
	}

	switch sym.Index {
	case compiler.BuiltinPrint:
		args := make([]Value, argc)
		for i := argc - 1; i >= 0; i-- {
			v, err := m.stack.Pop(pc)
			if err != nil {
				return err
			}
			args[i] = v
		}
		for i, a := range args {
			if i > 0 {
				if _, err := io.WriteString(m.out, " "); err != nil {
					return err
				}
			}
			if _, err := io.WriteString(m.out, a.String()); err != nil {
				return err
			}
		}
		_, err := io.WriteString(m.out, "\n")
		return err

	case compiler.BuiltinInput:
		if argc > 1 {
			return &vmerr.RuntimeError{Message: "input() takes zero or one argument", PC: pc, Opcode: "CALL"}
		}
		if argc == 1 {
			prompt, err := m.stack.Pop(pc)
			if err != nil {
				return err
			}
			if _, err := io.WriteString(m.out, prompt.String()); err != nil {
				return err
			}
		}
		line, rerr := m.in.ReadString('\n')
		if rerr != nil && line == "" && rerr != io.EOF {
			return &vmerr.RuntimeError{Message: rerr.Error(), PC: pc, Opcode: "CALL"}
		}
		return m.stack.Push(StringValue(trimNewline(line)), pc)

	default:
		return &vmerr.RuntimeError{Message: "CALL: unknown builtin tag (no user-defined functions)", PC: pc, Opcode: "CALL"}
	}
}

func (m *VM) ret(pc uint32) error {
	v, err := m.stack.Pop(pc)
	if err != nil {
		return err
	}
	frame, err := m.calls.pop(pc)
	if err != nil {
		return err
	}
	m.stack.Truncate(frame.SavedDepth)
	if err := m.stack.Push(v, pc); err != nil {
		return err
	}
	m.pc = frame.ReturnPC
	return nil
}

// CallFrames returns a snapshot of the current call stack. The errors Run
// returns do not include this snapshot.
func (m *VM) CallFrames() []CallFrame { return m.calls.snapshot() }

// PC returns the current program counter.
func (m *VM) PC() uint32 { return m.pc }
