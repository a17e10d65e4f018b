package vm_test

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"github.com/pyvm/pyvm/internal/bytecode"
	"github.com/pyvm/pyvm/internal/compiler"
	"github.com/pyvm/pyvm/internal/container"
	"github.com/pyvm/pyvm/internal/lexer"
	"github.com/pyvm/pyvm/internal/parser"
	"github.com/pyvm/pyvm/internal/vm"
	"github.com/pyvm/pyvm/internal/vmerr"
)

func runSource(t *testing.T, src, stdin string) (string, error) {
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
	cp := container.FromResult(res, false, nil)

	var out bytes.Buffer
	m := vm.New(cp, vm.DefaultLimits(), &out, strings.NewReader(stdin))
	runErr := m.Run()
	return out.String(), runErr
}

func TestRunCanonicalExample(t *testing.T) {
	out, err := runSource(t, "x = 10\ny = 20\nprint(x + y)", "")
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if out != "30\n" {
		t.Fatalf("stdout = %q, want %q", out, "30\n")
	}
}

func TestRunArithmeticPromotesToFloat(t *testing.T) {
	out, err := runSource(t, "print(1 / 2.0)", "")
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if out != "0.5\n" {
		t.Fatalf("stdout = %q, want %q", out, "0.5\n")
	}
}

func TestRunIntDivisionTruncates(t *testing.T) {
	out, err := runSource(t, "print(7 / 2)", "")
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if out != "3\n" {
		t.Fatalf("stdout = %q, want %q", out, "3\n")
	}
}

func TestRunDivisionByZeroIsArithmeticError(t *testing.T) {
	_, err := runSource(t, "x = 1 / 0\nprint(x)", "")
	var arithErr *vmerr.ArithmeticError
	if err == nil {
		t.Fatal("expected an ArithmeticError for division by zero")
	}
	if !errors.As(err, &arithErr) {
		t.Fatalf("error is %T, want *vmerr.ArithmeticError", err)
	}
}

func TestRunStringConcatenation(t *testing.T) {
	out, err := runSource(t, `print("foo" + "bar")`, "")
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if out != "foobar\n" {
		t.Fatalf("stdout = %q, want %q", out, "foobar\n")
	}
}

func TestRunStringPlusIntIsRuntimeTypeError(t *testing.T) {
	_, err := runSource(t, `print("foo" + 1)`, "")
	var typeErr *vmerr.TypeError
	if err == nil {
		t.Fatal("expected a TypeError for mixing string and int with ADD")
	}
	if !errors.As(err, &typeErr) {
		t.Fatalf("error is %T, want *vmerr.TypeError", err)
	}
	if !typeErr.Runtime {
		t.Fatal("expected TypeError.Runtime to be true for a VM-detected type clash")
	}
}

func TestRunIfElse(t *testing.T) {
	out, err := runSource(t, "x = 5\nif x > 3:\n    print(\"big\")\nelse:\n    print(\"small\")", "")
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if out != "big\n" {
		t.Fatalf("stdout = %q, want %q", out, "big\n")
	}
}

func TestRunWhileLoop(t *testing.T) {
	out, err := runSource(t, "i = 0\nwhile i < 3:\n    print(i)\n    i = i + 1", "")
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if out != "0\n1\n2\n" {
		t.Fatalf("stdout = %q, want %q", out, "0\n1\n2\n")
	}
}

func TestRunInputReadsOneLine(t *testing.T) {
	out, err := runSource(t, "name = input()\nprint(name)", "Ada\nIgnored\n")
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if out != "Ada\n" {
		t.Fatalf("stdout = %q, want %q", out, "Ada\n")
	}
}

func TestRunComparisonChainsAndOr(t *testing.T) {
	out, err := runSource(t, "print(1 < 2 and 2 < 3)", "")
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if out != "true\n" {
		t.Fatalf("stdout = %q, want %q", out, "true\n")
	}
}

func TestRunBooleanEqualityAcrossKindsIsFalse(t *testing.T) {
	out, err := runSource(t, `print(1 == "1")`, "")
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if out != "false\n" {
		t.Fatalf("stdout = %q, want %q", out, "false\n")
	}
}

func TestRunNegationAndNot(t *testing.T) {
	out, err := runSource(t, "x = -5\nprint(x)\nprint(not True)", "")
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if out != "-5\nfalse\n" {
		t.Fatalf("stdout = %q, want %q", out, "-5\nfalse\n")
	}
}

func TestRunDeterministicWithoutInput(t *testing.T) {
	src := "total = 0\ni = 0\nwhile i < 5:\n    total = total + i\n    i = i + 1\nprint(total)"
	out1, err := runSource(t, src, "")
	if err != nil {
		t.Fatalf("Run (1): %v", err)
	}
	out2, err := runSource(t, src, "")
	if err != nil {
		t.Fatalf("Run (2): %v", err)
	}
	if out1 != out2 {
		t.Fatalf("non-deterministic stdout: %q vs %q", out1, out2)
	}
}

func TestRunOperandStackOverflow(t *testing.T) {
	pool := compiler.NewConstantPool()
	pool.InternInt(1)
	cp := container.FromResult(&compiler.Result{
		Constants: pool,
		Symbols:   compiler.NewSymbolTable(),
		Code:      overflowProgram(),
	}, false, nil)
	var out bytes.Buffer
	m := vm.New(cp, vm.Limits{MaxStack: 4, MaxFrames: 4}, &out, strings.NewReader(""))
	err := m.Run()
	var overflowErr *vmerr.StackOverflowError
	if err == nil {
		t.Fatal("expected a StackOverflowError")
	}
	if !errors.As(err, &overflowErr) {
		t.Fatalf("error is %T, want *vmerr.StackOverflowError", err)
	}
}

// overflowProgram repeatedly pushes constant 0 without ever popping, to
// exercise the operand stack's overflow check against a small limit.
func overflowProgram() []byte {
	var code []byte
	for i := 0; i < 10; i++ {
		code = append(code, 0x01, 0x00) // LOAD_CONST 0
	}
	code = append(code, 0xFF)
	return code
}

// TestRunHandAssembledCallDispatchesToPrintBuiltin exercises CALL the way a
// hand-assembled container (rather than this compiler, which only ever
// emits the dedicated PRINT/INPUT opcodes) would use it: the operand names a
// symbol-table index, and the referenced FUNC symbol's value is the builtin
// tag to dispatch on.
func TestRunHandAssembledCallDispatchesToPrintBuiltin(t *testing.T) {
	pool := compiler.NewConstantPool()
	strIdx := pool.InternString("hi")
	symbols := compiler.NewSymbolTable() // pre-seeded: index 0 = print, index 1 = input

	code := []byte{
		byte(bytecode.LOAD_CONST), byte(strIdx),
		byte(bytecode.CALL), 0x00, 0x00, 0x01, // symbol index 0 (print), argc=1
		byte(bytecode.HALT),
	}
	cp := container.FromResult(&compiler.Result{
		Constants: pool,
		Symbols:   symbols,
		Code:      code,
	}, false, nil)

	var out bytes.Buffer
	m := vm.New(cp, vm.DefaultLimits(), &out, strings.NewReader(""))
	if err := m.Run(); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if out.String() != "hi\n" {
		t.Fatalf("stdout = %q, want %q", out.String(), "hi\n")
	}
}

// TestRunCallToNonFuncSymbolIsRuntimeError confirms the loader-independent
// path (the VM re-checks at dispatch time too) rejects a CALL whose symbol
// index names an ordinary variable rather than a FUNC entry.
func TestRunCallToNonFuncSymbolIsRuntimeError(t *testing.T) {
	pool := compiler.NewConstantPool()
	symbols := compiler.NewSymbolTable()
	symbols.Declare("x") // ordinary SymVar entry, appended after the builtins

	code := []byte{
		byte(bytecode.CALL), 0x02, 0x00, 0x00, // symbol index 2 (x), argc=0
		byte(bytecode.HALT),
	}
	cp := container.FromResult(&compiler.Result{
		Constants: pool,
		Symbols:   symbols,
		Code:      code,
	}, false, nil)

	var out bytes.Buffer
	m := vm.New(cp, vm.DefaultLimits(), &out, strings.NewReader(""))
	err := m.Run()
	var rtErr *vmerr.RuntimeError
	if err == nil {
		t.Fatal("expected a RuntimeError for CALL targeting a non-FUNC symbol")
	}
	if !errors.As(err, &rtErr) {
		t.Fatalf("error is %T, want *vmerr.RuntimeError", err)
	}
}

// TestRunReturnWithEmptyCallStackIsBadReturnError exercises RETURN, which no
// grammar construct this compiler emits ever reaches (there are no
// user-defined functions in the surface syntax), via a hand-assembled
// program: pushing a value then RETURNing with no CALL frame active must
// fail with BadReturnError rather than panicking on the empty call stack.
func TestRunReturnWithEmptyCallStackIsBadReturnError(t *testing.T) {
	pool := compiler.NewConstantPool()
	pool.InternInt(1)
	code := []byte{
		byte(bytecode.LOAD_CONST), 0x00,
		byte(bytecode.RETURN),
		byte(bytecode.HALT),
	}
	cp := container.FromResult(&compiler.Result{
		Constants: pool,
		Symbols:   compiler.NewSymbolTable(),
		Code:      code,
	}, false, nil)

	var out bytes.Buffer
	m := vm.New(cp, vm.DefaultLimits(), &out, strings.NewReader(""))
	err := m.Run()
	var badReturn *vmerr.BadReturnError
	if err == nil {
		t.Fatal("expected a BadReturnError for RETURN with an empty call stack")
	}
	if !errors.As(err, &badReturn) {
		t.Fatalf("error is %T, want *vmerr.BadReturnError", err)
	}
}

