package disasm_test

import (
	"strings"
	"testing"

	"github.com/pyvm/pyvm/internal/compiler"
	"github.com/pyvm/pyvm/internal/container"
	"github.com/pyvm/pyvm/internal/disasm"
	"github.com/pyvm/pyvm/internal/lexer"
	"github.com/pyvm/pyvm/internal/parser"
)

func buildProgram(t *testing.T, src string) *container.Program {
	t.Helper()
	toks, err := lexer.Tokenize(src)
	if err != nil {
		t.Fatalf("lexer error: %v", err)
	}
	prog, err := parser.Parse(toks)
	if err != nil {
		t.Fatalf("parser error: %v", err)
	}
	res, err := compiler.Compile(prog)
	if err != nil {
		t.Fatalf("compile error: %v", err)
	}
	return container.FromResult(res, false, nil)
}

func TestDisassembleForPlainListsEveryInstruction(t *testing.T) {
	p := buildProgram(t, "x = 10\ny = 20\nprint(x + y)")
	out := disasm.DisassembleFor(p, false)

	wantMnemonics := []string{"LOAD_CONST", "STORE_VAR", "LOAD_CONST", "STORE_VAR", "LOAD_VAR", "LOAD_VAR", "ADD", "PRINT", "HALT"}
	for _, m := range wantMnemonics {
		if !strings.Contains(out, m) {
			t.Fatalf("disassembly missing mnemonic %q; got:\n%s", m, out)
		}
	}
}

func TestDisassembleForResolvesConstantText(t *testing.T) {
	p := buildProgram(t, "x = 42\nprint(x)")
	out := disasm.DisassembleFor(p, false)
	if !strings.Contains(out, "(42)") {
		t.Fatalf("disassembly does not show resolved constant text; got:\n%s", out)
	}
}

func TestDisassembleForResolvesVariableName(t *testing.T) {
	p := buildProgram(t, "count = 1\nprint(count)")
	out := disasm.DisassembleFor(p, false)
	if !strings.Contains(out, "(count)") {
		t.Fatalf("disassembly does not show resolved variable name; got:\n%s", out)
	}
}

// TestDisassembleForStoreVarResolvesVariableNotConstant guards against
// STORE_VAR being resolved as if it were a LOAD_CONST: the STORE_VAR line
// itself must carry the destination variable's name, not the constant it
// stores.
func TestDisassembleForStoreVarResolvesVariableNotConstant(t *testing.T) {
	p := buildProgram(t, "count = 42\nprint(count)")
	out := disasm.DisassembleFor(p, false)
	for _, line := range strings.Split(out, "\n") {
		if strings.Contains(line, "STORE_VAR") {
			if !strings.Contains(line, "(count)") {
				t.Fatalf("STORE_VAR line does not resolve the variable name; got: %q", line)
			}
			if strings.Contains(line, "(42)") {
				t.Fatalf("STORE_VAR line resolved a constant instead of the variable name; got: %q", line)
			}
			return
		}
	}
	t.Fatal("no STORE_VAR line found in disassembly")
}

func TestDisassembleForShowsJumpTargets(t *testing.T) {
	p := buildProgram(t, "i = 0\nwhile i < 3:\n    i = i + 1")
	out := disasm.DisassembleFor(p, false)
	if !strings.Contains(out, "->") {
		t.Fatalf("disassembly of a while loop should show a jump target; got:\n%s", out)
	}
}

func TestDisassembleForPrettyAndPlainDifferInFormattingOnly(t *testing.T) {
	p := buildProgram(t, "x = 1\nprint(x)")
	plain := disasm.DisassembleFor(p, false)
	pretty := disasm.DisassembleFor(p, true)
	if plain == pretty {
		t.Fatal("pretty and plain output should differ in column formatting")
	}
	if !strings.Contains(pretty, "LOAD_CONST") || !strings.Contains(plain, "LOAD_CONST") {
		t.Fatal("both modes must still name every opcode")
	}
}
