// Package compiler walks an internal/ast.Program and emits an
// internal/bytecode instruction stream, alongside the constant pool and
// symbol table the container format serializes.
package compiler

import (
	"github.com/pyvm/pyvm/internal/ast"
	"github.com/pyvm/pyvm/internal/bytecode"
	"github.com/pyvm/pyvm/internal/token"
	"github.com/pyvm/pyvm/internal/vmerr"
)

// LineEntry maps one code offset to its originating source position, for
// the container's optional debug section.
type LineEntry struct {
	PC     uint32
	Line   uint32
	Column uint16
}

// Result is everything the container serializer needs to write a compiled
// program to disk.
type Result struct {
	Constants *ConstantPool
	Symbols   *SymbolTable
	Code      []byte
	Lines     []LineEntry
}

// Compile translates a parsed program into bytecode. Statements must leave
// the operand stack exactly as they found it; the generator asserts this
// after every top-level statement and at the end of every if/else branch
// and while body.
func Compile(prog *ast.Program) (*Result, error) {
	g := &generator{
		consts:  NewConstantPool(),
		symbols: NewSymbolTable(),
		buf:     bytecode.NewCodeBuffer(),
	}
	g.predeclare(prog.Statements)
	for _, stmt := range prog.Statements {
		if err := g.compileStatement(stmt); err != nil {
			return nil, err
		}
		if g.depth != 0 {
			return nil, &vmerr.CompileError{
				Message: "statement left a non-empty operand stack",
				Line:    stmt.Tok().Line, Column: stmt.Tok().Column,
			}
		}
	}
	g.buf.EmitOp(bytecode.HALT)
	if err := g.buf.Finalize(); err != nil {
		return nil, &vmerr.CompileError{Message: err.Error()}
	}
	return &Result{
		Constants: g.consts,
		Symbols:   g.symbols,
		Code:      g.buf.Bytes(),
		Lines:     g.lines,
	}, nil
}

type generator struct {
	consts  *ConstantPool
	symbols *SymbolTable
	buf     *bytecode.CodeBuffer
	lines   []LineEntry
	depth   int
}

// predeclare walks every AssignStatement target in the whole program,
// including inside if/while bodies, and reserves its slot up front. This
// mirrors how a single-pass module compiler builds its symbol table before
// generating code, so a variable assigned only inside one branch is still a
// known name (not a NameError) when referenced after the branch.
func (g *generator) predeclare(stmts []ast.Statement) {
	for _, s := range stmts {
		switch st := s.(type) {
		case *ast.AssignStatement:
			g.symbols.Declare(st.Name)
		case *ast.IfStatement:
			g.predeclare(st.Then)
			g.predeclare(st.Alt)
		case *ast.WhileStatement:
			g.predeclare(st.Body)
		}
	}
}

func (g *generator) mark(tok token.Token) {
	g.lines = append(g.lines, LineEntry{PC: uint32(g.buf.Len()), Line: uint32(tok.Line), Column: uint16(tok.Column)})
}

// emit appends a no-operand opcode and tracks its static stack effect.
func (g *generator) emit(op bytecode.Op) {
	g.buf.EmitOp(op)
	g.depth += bytecode.MustLookup(op).StackEffect
}

func (g *generator) emitIndexed(narrow, wide bytecode.Op, index uint32, effect int) {
	if index <= 0xFF {
		g.buf.EmitByte(narrow, uint8(index))
	} else {
		// The container format's index width caps at 2 bytes; programs with
		// more distinct constants/variables than that are out of scope.
		g.buf.EmitWide(wide, uint16(index))
	}
	g.depth += effect
}

func (g *generator) compileStatement(s ast.Statement) error {
	switch st := s.(type) {
	case *ast.AssignStatement:
		return g.compileAssign(st)
	case *ast.ExprStatement:
		return g.compileExprStatement(st)
	case *ast.IfStatement:
		return g.compileIf(st)
	case *ast.WhileStatement:
		return g.compileWhile(st)
	default:
		return &vmerr.CompileError{Message: "unknown statement node", Line: s.Tok().Line, Column: s.Tok().Column}
	}
}

func (g *generator) compileAssign(st *ast.AssignStatement) error {
	if err := g.compileExpr(st.Value); err != nil {
		return err
	}
	g.mark(st.Token)
	slot := g.symbols.Declare(st.Name)
	g.emitIndexed(bytecode.STORE_VAR, bytecode.STORE_VAR_W, slot, -1)
	return nil
}

func (g *generator) compileExprStatement(st *ast.ExprStatement) error {
	if call, ok := st.Value.(*ast.CallExpr); ok && call.Callee == "print" {
		return g.compilePrint(call)
	}
	if err := g.compileExpr(st.Value); err != nil {
		return err
	}
	g.mark(st.Token)
	g.emit(bytecode.POP)
	return nil
}

func (g *generator) compilePrint(call *ast.CallExpr) error {
	if len(call.Args) != 1 {
		return &vmerr.CompileError{
			Message: "print() takes exactly one argument",
			Line:    call.Token.Line, Column: call.Token.Column,
		}
	}
	if err := g.compileExpr(call.Args[0]); err != nil {
		return err
	}
	g.mark(call.Token)
	g.emit(bytecode.PRINT)
	return nil
}

func (g *generator) compileIf(st *ast.IfStatement) error {
	baseline := g.depth
	if err := g.compileExpr(st.Condition); err != nil {
		return err
	}
	elseLabel := g.buf.NewLabel()
	g.mark(st.Token)
	g.buf.EmitJump(bytecode.JMP_IF_FALSE, elseLabel)
	g.depth-- // JMP_IF_FALSE pops the condition

	for _, s := range st.Then {
		if err := g.compileStatement(s); err != nil {
			return err
		}
	}
	if g.depth != baseline {
		return &vmerr.CompileError{Message: "if-branch left an unbalanced operand stack", Line: st.Token.Line, Column: st.Token.Column}
	}

	if st.Alt == nil {
		g.buf.BindLabel(elseLabel)
		return nil
	}

	endLabel := g.buf.NewLabel()
	g.buf.EmitJump(bytecode.JMP, endLabel)
	g.buf.BindLabel(elseLabel)
	for _, s := range st.Alt {
		if err := g.compileStatement(s); err != nil {
			return err
		}
	}
	if g.depth != baseline {
		return &vmerr.CompileError{Message: "else-branch left an unbalanced operand stack", Line: st.Token.Line, Column: st.Token.Column}
	}
	g.buf.BindLabel(endLabel)
	return nil
}

func (g *generator) compileWhile(st *ast.WhileStatement) error {
	baseline := g.depth
	loopTop := g.buf.NewLabel()
	loopEnd := g.buf.NewLabel()
	g.buf.BindLabel(loopTop)

	if err := g.compileExpr(st.Condition); err != nil {
		return err
	}
	g.mark(st.Token)
	g.buf.EmitJump(bytecode.JMP_IF_FALSE, loopEnd)
	g.depth--

	for _, s := range st.Body {
		if err := g.compileStatement(s); err != nil {
			return err
		}
	}
	if g.depth != baseline {
		return &vmerr.CompileError{Message: "while-body left an unbalanced operand stack", Line: st.Token.Line, Column: st.Token.Column}
	}
	g.buf.EmitJump(bytecode.JMP, loopTop)
	g.buf.BindLabel(loopEnd)
	return nil
}

var binaryOps = map[token.Type]bytecode.Op{
	token.PLUS: bytecode.ADD, token.MINUS: bytecode.SUB,
	token.STAR: bytecode.MUL, token.SLASH: bytecode.DIV, token.PERCENT: bytecode.MOD,
	token.EQ: bytecode.EQ, token.NEQ: bytecode.NEQ,
	token.LT: bytecode.LT, token.LE: bytecode.LE, token.GT: bytecode.GT, token.GE: bytecode.GE,
	token.AND: bytecode.AND, token.OR: bytecode.OR,
}

func (g *generator) compileExpr(e ast.Expression) error {
	switch expr := e.(type) {
	case *ast.IntLiteral:
		idx := g.consts.InternInt(expr.Value)
		g.mark(expr.Token)
		g.emitIndexed(bytecode.LOAD_CONST, bytecode.LOAD_CONST_W, uint32(idx), 1)
		return nil

	case *ast.FloatLiteral:
		idx := g.consts.InternFloat(expr.Value)
		g.mark(expr.Token)
		g.emitIndexed(bytecode.LOAD_CONST, bytecode.LOAD_CONST_W, uint32(idx), 1)
		return nil

	case *ast.StringLiteral:
		idx := g.consts.InternString(expr.Value)
		g.mark(expr.Token)
		g.emitIndexed(bytecode.LOAD_CONST, bytecode.LOAD_CONST_W, uint32(idx), 1)
		return nil

	case *ast.BoolLiteral:
		idx := g.consts.InternBool(expr.Value)
		g.mark(expr.Token)
		g.emitIndexed(bytecode.LOAD_CONST, bytecode.LOAD_CONST_W, uint32(idx), 1)
		return nil

	case *ast.Identifier:
		slot, ok := g.symbols.Lookup(expr.Name)
		if !ok {
			return &vmerr.NameError{Name: expr.Name, Line: expr.Token.Line, Column: expr.Token.Column}
		}
		g.mark(expr.Token)
		g.emitIndexed(bytecode.LOAD_VAR, bytecode.LOAD_VAR_W, slot, 1)
		return nil

	case *ast.UnaryExpr:
		if err := g.compileExpr(expr.Operand); err != nil {
			return err
		}
		g.mark(expr.Token)
		switch expr.Op {
		case token.MINUS:
			g.emit(bytecode.NEG)
		case token.NOT:
			g.emit(bytecode.NOT)
		default:
			return &vmerr.CompileError{Message: "unsupported unary operator", Line: expr.Token.Line, Column: expr.Token.Column}
		}
		return nil

	case *ast.BinaryExpr:
		if err := g.compileExpr(expr.Left); err != nil {
			return err
		}
		if err := g.compileExpr(expr.Right); err != nil {
			return err
		}
		op, ok := binaryOps[expr.Op]
		if !ok {
			return &vmerr.CompileError{Message: "unsupported binary operator", Line: expr.Token.Line, Column: expr.Token.Column}
		}
		g.mark(expr.Token)
		g.emit(op)
		return nil

	case *ast.CallExpr:
		return g.compileCall(expr)

	default:
		return &vmerr.CompileError{Message: "unknown expression node", Line: e.Tok().Line, Column: e.Tok().Column}
	}
}

func (g *generator) compileCall(call *ast.CallExpr) error {
	switch call.Callee {
	case "print":
		return &vmerr.CompileError{
			Message: "print() has no value and cannot be used inside an expression",
			Line:    call.Token.Line, Column: call.Token.Column,
		}
	case "input":
		if len(call.Args) != 0 {
			return &vmerr.CompileError{Message: "input() takes no arguments", Line: call.Token.Line, Column: call.Token.Column}
		}
		g.mark(call.Token)
		g.emit(bytecode.INPUT)
		return nil
	default:
		return &vmerr.NameError{Name: call.Callee, Line: call.Token.Line, Column: call.Token.Column}
	}
}
