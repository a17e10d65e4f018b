// Package ast defines the abstract syntax tree produced by the parser and
// consumed by the code generator.
package ast

import "github.com/pyvm/pyvm/internal/token"

// Node is the base interface implemented by every AST node.
type Node interface {
	Tok() token.Token
}

// Statement is a Node with statement-level stack discipline (net effect 0).
type Statement interface {
	Node
	stmtNode()
}

// Expression is a Node with expression-level stack discipline (net effect +1).
type Expression interface {
	Node
	exprNode()
}

// Program is the root of a parsed source file.
type Program struct {
	Statements []Statement
}

func (p *Program) Tok() token.Token {
	if len(p.Statements) > 0 {
		return p.Statements[0].Tok()
	}
	return token.Token{}
}

// AssignStatement is `name = expr`.
type AssignStatement struct {
	Token token.Token
	Name  string
	Value Expression
}

func (s *AssignStatement) Tok() token.Token { return s.Token }
func (*AssignStatement) stmtNode()          {}

// ExprStatement is an expression evaluated for effect (its value is
// discarded — codegen must emit a matching POP).
type ExprStatement struct {
	Token token.Token
	Value Expression
}

func (s *ExprStatement) Tok() token.Token { return s.Token }
func (*ExprStatement) stmtNode()          {}

// IfStatement is `if cond: then... [else: alt...]`. `elif` is desugared by
// the parser into an Alt containing a single nested IfStatement.
type IfStatement struct {
	Token     token.Token
	Condition Expression
	Then      []Statement
	Alt       []Statement // nil when there is no else/elif clause
}

func (s *IfStatement) Tok() token.Token { return s.Token }
func (*IfStatement) stmtNode()          {}

// WhileStatement is `while cond: body...`.
type WhileStatement struct {
	Token     token.Token
	Condition Expression
	Body      []Statement
}

func (s *WhileStatement) Tok() token.Token { return s.Token }
func (*WhileStatement) stmtNode()          {}

// IntLiteral is a signed 32-bit integer literal.
type IntLiteral struct {
	Token token.Token
	Value int32
}

func (e *IntLiteral) Tok() token.Token { return e.Token }
func (*IntLiteral) exprNode()          {}

// FloatLiteral is an IEEE-754 float64 literal.
type FloatLiteral struct {
	Token token.Token
	Value float64
}

func (e *FloatLiteral) Tok() token.Token { return e.Token }
func (*FloatLiteral) exprNode()          {}

// StringLiteral is a utf-8 string literal.
type StringLiteral struct {
	Token token.Token
	Value string
}

func (e *StringLiteral) Tok() token.Token { return e.Token }
func (*StringLiteral) exprNode()          {}

// BoolLiteral is `True`/`False`.
type BoolLiteral struct {
	Token token.Token
	Value bool
}

func (e *BoolLiteral) Tok() token.Token { return e.Token }
func (*BoolLiteral) exprNode()          {}

// Identifier is a variable reference.
type Identifier struct {
	Token token.Token
	Name  string
}

func (e *Identifier) Tok() token.Token { return e.Token }
func (*Identifier) exprNode()          {}

// BinaryExpr is `left op right` for arithmetic, comparison and logical
// (and/or) binary operators.
type BinaryExpr struct {
	Token token.Token
	Op    token.Type
	Left  Expression
	Right Expression
}

func (e *BinaryExpr) Tok() token.Token { return e.Token }
func (*BinaryExpr) exprNode()          {}

// UnaryExpr is `op operand` for unary minus and boolean not.
type UnaryExpr struct {
	Token   token.Token
	Op      token.Type
	Operand Expression
}

func (e *UnaryExpr) Tok() token.Token { return e.Token }
func (*UnaryExpr) exprNode()          {}

// CallExpr is a call to a builtin: `print(args...)` or `input([prompt])`.
type CallExpr struct {
	Token  token.Token
	Callee string
	Args   []Expression
}

func (e *CallExpr) Tok() token.Token { return e.Token }
func (*CallExpr) exprNode()          {}
