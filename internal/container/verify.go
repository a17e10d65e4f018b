package container

import (
	"encoding/binary"
	"fmt"

	"github.com/pyvm/pyvm/internal/bytecode"
	"github.com/pyvm/pyvm/internal/compiler"
)

// validateJumpTargets performs the loader-time verification the container
// spec requires: every LOAD_CONST/LOAD_VAR/STORE_VAR family index must
// address an existing pool/symbol entry, and every jump operand must land
// on the first byte of an instruction rather than mid-operand or out of
// range.
func validateJumpTargets(p *Program) error {
	varSlots := 0
	for _, s := range p.Symbols {
		if s.Kind == compiler.SymVar {
			varSlots++
		}
	}

	code := p.Code
	starts := make(map[uint32]bool)
	pc := uint32(0)
	for int(pc) < len(code) {
		starts[pc] = true
		op := bytecode.Op(code[pc])
		info, ok := bytecode.Lookup(op)
		if !ok {
			return loadErr(fmt.Sprintf("unknown opcode 0x%02X at offset %d", code[pc], pc))
		}
		operandStart := pc + 1
		if int(operandStart)+info.OperandLen > len(code) {
			return loadErr(fmt.Sprintf("truncated operand for %s at offset %d", info.Name, pc))
		}

		switch op {
		case bytecode.LOAD_CONST:
			idx := uint32(code[operandStart])
			if int(idx) >= len(p.Constants) {
				return loadErr(fmt.Sprintf("LOAD_CONST index %d out of range at offset %d", idx, pc))
			}
		case bytecode.LOAD_CONST_W:
			idx := uint32(binary.LittleEndian.Uint16(code[operandStart:]))
			if int(idx) >= len(p.Constants) {
				return loadErr(fmt.Sprintf("LOAD_CONST_W index %d out of range at offset %d", idx, pc))
			}
		case bytecode.LOAD_VAR, bytecode.STORE_VAR:
			idx := uint32(code[operandStart])
			if int(idx) >= varSlots {
				return loadErr(fmt.Sprintf("%s index %d out of range at offset %d", op, idx, pc))
			}
		case bytecode.LOAD_VAR_W, bytecode.STORE_VAR_W:
			idx := uint32(binary.LittleEndian.Uint16(code[operandStart:]))
			if int(idx) >= varSlots {
				return loadErr(fmt.Sprintf("%s index %d out of range at offset %d", op, idx, pc))
			}
		case bytecode.CALL:
			idx := uint32(binary.LittleEndian.Uint16(code[operandStart:]))
			if int(idx) >= len(p.Symbols) {
				return loadErr(fmt.Sprintf("CALL symbol index %d out of range at offset %d", idx, pc))
			}
			if p.Symbols[idx].Kind != compiler.SymFunc {
				return loadErr(fmt.Sprintf("CALL at offset %d targets non-callable symbol %q", pc, p.Symbols[idx].Name))
			}
		}

		pc = operandStart + uint32(info.OperandLen)
	}
	if int(pc) != len(code) {
		return loadErr("code section does not end on an instruction boundary")
	}

	pc = 0
	for int(pc) < len(code) {
		op := bytecode.Op(code[pc])
		info := bytecode.MustLookup(op)
		operandStart := pc + 1
		switch op {
		case bytecode.JMP, bytecode.JMP_IF_FALSE, bytecode.JMP_IF_TRUE:
			target := binary.LittleEndian.Uint32(code[operandStart:])
			if !starts[target] {
				return loadErr(fmt.Sprintf("jump at offset %d targets invalid offset %d", pc, target))
			}
		}
		pc = operandStart + uint32(info.OperandLen)
	}

	return nil
}
