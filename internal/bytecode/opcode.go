// Package bytecode defines the pyvm instruction set: the opcode
// enumeration, per-opcode operand-width metadata, and the low-level
// CodeBuffer used by the compiler to assemble instructions.
package bytecode

import "fmt"

// Op is a single one-byte instruction opcode.
type Op byte

const (
	NOP  Op = 0x00
	POP  Op = 0x04
	DUP  Op = 0x05
	SWAP Op = 0x06

	LOAD_CONST   Op = 0x01
	LOAD_VAR     Op = 0x02
	STORE_VAR    Op = 0x03
	LOAD_CONST_W Op = 0x07
	LOAD_VAR_W   Op = 0x08
	STORE_VAR_W  Op = 0x09

	ADD Op = 0x10
	SUB Op = 0x11
	MUL Op = 0x12
	DIV Op = 0x13
	MOD Op = 0x14
	NEG Op = 0x15

	EQ  Op = 0x20
	NEQ Op = 0x21
	LT  Op = 0x22
	LE  Op = 0x23
	GT  Op = 0x24
	GE  Op = 0x25

	AND Op = 0x28
	OR  Op = 0x29
	NOT Op = 0x2A

	JMP           Op = 0x30
	JMP_IF_FALSE  Op = 0x31
	JMP_IF_TRUE   Op = 0x32

	CALL   Op = 0x38
	RETURN Op = 0x39

	PRINT Op = 0x40
	INPUT Op = 0x41

	HALT Op = 0xFF
)

// Width describes an opcode's operand shape.
type Width int

const (
	W0 Width = iota // no operand
	W1              // 1-byte unsigned index
	W2              // 2-byte unsigned index
	W4              // 4-byte signed jump offset
	WCall           // 2-byte symbol index + 1-byte argc (3 bytes total)
)

// Info is the static metadata the compiler, serializer, VM and disassembler
// all share for a given opcode.
type Info struct {
	Name        string
	Width       Width
	OperandLen  int // total operand bytes following the opcode byte
	StackEffect int // static net effect on operand-stack depth, -1 if call-shaped
}

var table = map[Op]Info{
	NOP:  {"NOP", W0, 0, 0},
	POP:  {"POP", W0, 0, -1},
	DUP:  {"DUP", W0, 0, 1},
	SWAP: {"SWAP", W0, 0, 0},

	LOAD_CONST:   {"LOAD_CONST", W1, 1, 1},
	LOAD_VAR:     {"LOAD_VAR", W1, 1, 1},
	STORE_VAR:    {"STORE_VAR", W1, 1, -1},
	LOAD_CONST_W: {"LOAD_CONST_W", W2, 2, 1},
	LOAD_VAR_W:   {"LOAD_VAR_W", W2, 2, 1},
	STORE_VAR_W:  {"STORE_VAR_W", W2, 2, -1},

	ADD: {"ADD", W0, 0, -1},
	SUB: {"SUB", W0, 0, -1},
	MUL: {"MUL", W0, 0, -1},
	DIV: {"DIV", W0, 0, -1},
	MOD: {"MOD", W0, 0, -1},
	NEG: {"NEG", W0, 0, 0},

	EQ:  {"EQ", W0, 0, -1},
	NEQ: {"NEQ", W0, 0, -1},
	LT:  {"LT", W0, 0, -1},
	LE:  {"LE", W0, 0, -1},
	GT:  {"GT", W0, 0, -1},
	GE:  {"GE", W0, 0, -1},

	AND: {"AND", W0, 0, -1},
	OR:  {"OR", W0, 0, -1},
	NOT: {"NOT", W0, 0, 0},

	JMP:          {"JMP", W4, 4, 0},
	JMP_IF_FALSE: {"JMP_IF_FALSE", W4, 4, -1},
	JMP_IF_TRUE:  {"JMP_IF_TRUE", W4, 4, -1},

	CALL:   {"CALL", WCall, 3, -1},
	RETURN: {"RETURN", W0, 0, -1},

	PRINT: {"PRINT", W0, 0, -1},
	INPUT: {"INPUT", W0, 0, 1},

	HALT: {"HALT", W0, 0, 0},
}

// Lookup returns metadata for op. ok is false for unassigned opcode bytes.
func Lookup(op Op) (Info, bool) {
	info, ok := table[op]
	return info, ok
}

// MustLookup is Lookup but panics on an unknown opcode; only safe to call
// after the opcode byte has already been validated by the loader.
func MustLookup(op Op) Info {
	info, ok := table[op]
	if !ok {
		panic(fmt.Sprintf("bytecode: no metadata for opcode 0x%02X", byte(op)))
	}
	return info
}

func (op Op) String() string {
	if info, ok := table[op]; ok {
		return info.Name
	}
	return fmt.Sprintf("UNKNOWN_%02X", byte(op))
}
