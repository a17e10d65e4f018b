// Package disasm renders a loaded container.Program as human-readable
// instruction listing, resolving constant and symbol operands to their
// canonical text, the way internal/vm/disasm.go in the teacher repo
// resolved constant-pool and local-slot operands.
package disasm

import (
	"encoding/binary"
	"fmt"
	"os"
	"strings"

	"github.com/mattn/go-isatty"

	"github.com/pyvm/pyvm/internal/bytecode"
	"github.com/pyvm/pyvm/internal/compiler"
	"github.com/pyvm/pyvm/internal/container"
)

// Disassemble returns a listing of every instruction in p, one line each:
// `offset  OPCODE  operand_pretty`. Pretty mode (used when stdout is a
// terminal) right-aligns the offset column and pads the mnemonic to a fixed
// width; plain mode separates the columns with tabs, keeping the output
// stable for scripted diffing when piped. Both modes show resolved
// constant/symbol annotations in parentheses.
func Disassemble(p *container.Program) string {
	return disassemble(p, isatty.IsTerminal(os.Stdout.Fd()) || isatty.IsCygwinTerminal(os.Stdout.Fd()))
}

// DisassembleFor is Disassemble with an explicit pretty/plain choice, for
// tests and for writing to a file instead of stdout.
func DisassembleFor(p *container.Program, pretty bool) string {
	return disassemble(p, pretty)
}

func disassemble(p *container.Program, pretty bool) string {
	var sb strings.Builder
	pc := uint32(0)
	code := p.Code
	for int(pc) < len(code) {
		pc = disassembleInstruction(&sb, p, pc, pretty)
	}
	return sb.String()
}

func disassembleInstruction(sb *strings.Builder, p *container.Program, pc uint32, pretty bool) uint32 {
	op := bytecode.Op(p.Code[pc])
	info, ok := bytecode.Lookup(op)
	if !ok {
		fmt.Fprintf(sb, offsetFormat(pretty), pc)
		fmt.Fprintf(sb, "UNKNOWN 0x%02X\n", byte(op))
		return pc + 1
	}

	operand := p.Code[pc+1 : pc+1+uint32(info.OperandLen)]
	fmt.Fprintf(sb, offsetFormat(pretty), pc)

	switch op {
	case bytecode.LOAD_CONST:
		writeMnemonic(sb, pretty, info.Name, fmt.Sprintf("%d %s", operand[0], constText(p, int(operand[0]))))
	case bytecode.LOAD_VAR, bytecode.STORE_VAR:
		writeMnemonic(sb, pretty, info.Name, fmt.Sprintf("%d %s", operand[0], varText(p, int(operand[0]))))
	case bytecode.LOAD_CONST_W:
		idx := int(binary.LittleEndian.Uint16(operand))
		writeMnemonic(sb, pretty, info.Name, fmt.Sprintf("%d %s", idx, constText(p, idx)))
	case bytecode.LOAD_VAR_W, bytecode.STORE_VAR_W:
		idx := int(binary.LittleEndian.Uint16(operand))
		writeMnemonic(sb, pretty, info.Name, fmt.Sprintf("%d %s", idx, varText(p, idx)))
	case bytecode.JMP, bytecode.JMP_IF_FALSE, bytecode.JMP_IF_TRUE:
		target := binary.LittleEndian.Uint32(operand)
		writeMnemonic(sb, pretty, info.Name, fmt.Sprintf("-> %d", target))
	case bytecode.CALL:
		symIdx := int(binary.LittleEndian.Uint16(operand[0:2]))
		argc := operand[2]
		writeMnemonic(sb, pretty, info.Name, fmt.Sprintf("%s argc=%d", symbolText(p, symIdx), argc))
	default:
		sb.WriteString(info.Name)
		sb.WriteString("\n")
	}

	return pc + 1 + uint32(info.OperandLen)
}

func offsetFormat(pretty bool) string {
	if pretty {
		return "%6d  "
	}
	return "%d\t"
}

func writeMnemonic(sb *strings.Builder, pretty bool, name, operand string) {
	if pretty {
		fmt.Fprintf(sb, "%-14s %s\n", name, operand)
		return
	}
	fmt.Fprintf(sb, "%s\t%s\n", name, operand)
}

func constText(p *container.Program, idx int) string {
	if idx < 0 || idx >= len(p.Constants) {
		return "<bad const>"
	}
	c := p.Constants[idx]
	switch c.Kind {
	case compiler.ConstInt:
		return fmt.Sprintf("(%d)", c.Int)
	case compiler.ConstFloat:
		return fmt.Sprintf("(%g)", c.Float)
	case compiler.ConstString:
		return fmt.Sprintf("(%q)", c.Str)
	case compiler.ConstBool:
		return fmt.Sprintf("(%t)", c.Bool)
	default:
		return "(?)"
	}
}

func varText(p *container.Program, slot int) string {
	for _, s := range p.Symbols {
		if s.Kind == compiler.SymVar && int(s.Index) == slot {
			return fmt.Sprintf("(%s)", s.Name)
		}
	}
	return "(?)"
}

// symbolText resolves CALL's operand as a position into the symbol table
// itself, per the container's data model, rather than a value match.
func symbolText(p *container.Program, idx int) string {
	if idx < 0 || idx >= len(p.Symbols) {
		return "(?)"
	}
	return fmt.Sprintf("(%s)", p.Symbols[idx].Name)
}
