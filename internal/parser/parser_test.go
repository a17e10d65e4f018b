package parser_test

import (
	"testing"

	"github.com/pyvm/pyvm/internal/ast"
	"github.com/pyvm/pyvm/internal/lexer"
	"github.com/pyvm/pyvm/internal/parser"
)

func parse(t *testing.T, src string) *ast.Program {
	t.Helper()
	toks, err := lexer.Tokenize(src)
	if err != nil {
		t.Fatalf("lexer error: %v", err)
	}
	prog, err := parser.Parse(toks)
	if err != nil {
		t.Fatalf("parser error: %v", err)
	}
	return prog
}

func TestParseAssignment(t *testing.T) {
	prog := parse(t, "x = 1 + 2")
	if len(prog.Statements) != 1 {
		t.Fatalf("got %d statements, want 1", len(prog.Statements))
	}
	assign, ok := prog.Statements[0].(*ast.AssignStatement)
	if !ok {
		t.Fatalf("statement is %T, want *ast.AssignStatement", prog.Statements[0])
	}
	if assign.Name != "x" {
		t.Fatalf("Name = %q, want \"x\"", assign.Name)
	}
	bin, ok := assign.Value.(*ast.BinaryExpr)
	if !ok {
		t.Fatalf("Value is %T, want *ast.BinaryExpr", assign.Value)
	}
	if _, ok := bin.Left.(*ast.IntLiteral); !ok {
		t.Fatalf("Left is %T, want *ast.IntLiteral", bin.Left)
	}
}

func TestParsePrecedence(t *testing.T) {
	prog := parse(t, "x = 1 + 2 * 3")
	assign := prog.Statements[0].(*ast.AssignStatement)
	bin := assign.Value.(*ast.BinaryExpr)
	// '+' must bind loosest: left is the literal 1, right is the '2 * 3' product.
	if _, ok := bin.Left.(*ast.IntLiteral); !ok {
		t.Fatalf("top-level Left is %T, want *ast.IntLiteral (1)", bin.Left)
	}
	if _, ok := bin.Right.(*ast.BinaryExpr); !ok {
		t.Fatalf("top-level Right is %T, want *ast.BinaryExpr (2 * 3)", bin.Right)
	}
}

func TestParseIfElse(t *testing.T) {
	src := "if x > 0:\n    y = 1\nelse:\n    y = 2"
	prog := parse(t, src)
	ifs, ok := prog.Statements[0].(*ast.IfStatement)
	if !ok {
		t.Fatalf("statement is %T, want *ast.IfStatement", prog.Statements[0])
	}
	if len(ifs.Then) != 1 || len(ifs.Alt) != 1 {
		t.Fatalf("Then/Alt lengths = %d/%d, want 1/1", len(ifs.Then), len(ifs.Alt))
	}
}

func TestParseElifDesugarsToNestedIf(t *testing.T) {
	src := "if a:\n    x = 1\nelif b:\n    x = 2\nelse:\n    x = 3"
	prog := parse(t, src)
	ifs := prog.Statements[0].(*ast.IfStatement)
	if len(ifs.Alt) != 1 {
		t.Fatalf("Alt length = %d, want 1 (a single nested elif IfStatement)", len(ifs.Alt))
	}
	if _, ok := ifs.Alt[0].(*ast.IfStatement); !ok {
		t.Fatalf("Alt[0] is %T, want *ast.IfStatement", ifs.Alt[0])
	}
}

func TestParseWhile(t *testing.T) {
	prog := parse(t, "while x < 10:\n    x = x + 1")
	w, ok := prog.Statements[0].(*ast.WhileStatement)
	if !ok {
		t.Fatalf("statement is %T, want *ast.WhileStatement", prog.Statements[0])
	}
	if len(w.Body) != 1 {
		t.Fatalf("Body length = %d, want 1", len(w.Body))
	}
}

func TestParseInlineSuite(t *testing.T) {
	prog := parse(t, "if x: y = 1; z = 2")
	ifs := prog.Statements[0].(*ast.IfStatement)
	if len(ifs.Then) != 2 {
		t.Fatalf("Then length = %d, want 2 (inline ';'-separated suite)", len(ifs.Then))
	}
}

func TestParseCallExpr(t *testing.T) {
	prog := parse(t, "print(1, 2)")
	es := prog.Statements[0].(*ast.ExprStatement)
	call, ok := es.Value.(*ast.CallExpr)
	if !ok {
		t.Fatalf("Value is %T, want *ast.CallExpr", es.Value)
	}
	if call.Callee != "print" || len(call.Args) != 2 {
		t.Fatalf("Callee=%q Args=%d, want print/2", call.Callee, len(call.Args))
	}
}

func TestParseUnexpectedTokenIsError(t *testing.T) {
	toks, err := lexer.Tokenize("x = )")
	if err != nil {
		t.Fatalf("lexer error: %v", err)
	}
	if _, err := parser.Parse(toks); err == nil {
		t.Fatal("expected a parse error for a stray ')'")
	}
}

func TestParseMismatchedParenIsError(t *testing.T) {
	toks, err := lexer.Tokenize("x = (1 + 2")
	if err != nil {
		t.Fatalf("lexer error: %v", err)
	}
	if _, err := parser.Parse(toks); err == nil {
		t.Fatal("expected a parse error for an unclosed '('")
	}
}
