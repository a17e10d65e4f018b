// Package parser implements a recursive-descent parser over the token
// stream produced by internal/lexer, building the tree internal/ast defines.
package parser

import (
	"fmt"

	"github.com/pyvm/pyvm/internal/ast"
	"github.com/pyvm/pyvm/internal/token"
)

// Error reports a malformed program with its source position.
type Error struct {
	Message string
	Line    int
	Column  int
}

func (e *Error) Error() string {
	return fmt.Sprintf("parse error at %d:%d: %s", e.Line, e.Column, e.Message)
}

// Parser consumes a token slice and produces an *ast.Program.
type Parser struct {
	toks []token.Token
	pos  int
}

// New creates a Parser over a complete token stream (as returned by
// lexer.Tokenize, including the trailing EOF token).
func New(toks []token.Token) *Parser {
	return &Parser{toks: toks}
}

// Parse parses a complete program.
func Parse(toks []token.Token) (*ast.Program, error) {
	p := New(toks)
	return p.parseProgram()
}

func (p *Parser) cur() token.Token  { return p.toks[p.pos] }
func (p *Parser) peek() token.Token {
	if p.pos+1 < len(p.toks) {
		return p.toks[p.pos+1]
	}
	return p.toks[len(p.toks)-1]
}
func (p *Parser) advance() token.Token {
	t := p.cur()
	if p.pos < len(p.toks)-1 {
		p.pos++
	}
	return t
}

func (p *Parser) errf(format string, args ...interface{}) error {
	c := p.cur()
	return &Error{Message: fmt.Sprintf(format, args...), Line: c.Line, Column: c.Column}
}

func (p *Parser) expect(tt token.Type) (token.Token, error) {
	if p.cur().Type != tt {
		return token.Token{}, p.errf("expected %s, got %s %q", tt, p.cur().Type, p.cur().Lexeme)
	}
	return p.advance(), nil
}

func (p *Parser) skipSeparators() {
	for p.cur().Type == token.NEWLINE || p.cur().Type == token.SEMI {
		p.advance()
	}
}

func (p *Parser) parseProgram() (*ast.Program, error) {
	prog := &ast.Program{}
	p.skipSeparators()
	for p.cur().Type != token.EOF {
		stmt, err := p.parseStatement()
		if err != nil {
			return nil, err
		}
		prog.Statements = append(prog.Statements, stmt)
		// A block that closed with DEDENT has already ended its statement.
		if p.cur().Type != token.EOF && p.toks[p.pos-1].Type != token.DEDENT {
			if p.cur().Type != token.NEWLINE && p.cur().Type != token.SEMI {
				return nil, p.errf("expected end of statement, got %s %q", p.cur().Type, p.cur().Lexeme)
			}
		}
		p.skipSeparators()
	}
	return prog, nil
}

func (p *Parser) parseStatement() (ast.Statement, error) {
	switch p.cur().Type {
	case token.IF:
		return p.parseIf()
	case token.WHILE:
		return p.parseWhile()
	default:
		return p.parseSimpleStatement()
	}
}

// parseSimpleStatement parses an assignment or a bare expression statement.
func (p *Parser) parseSimpleStatement() (ast.Statement, error) {
	if p.cur().Type == token.IDENT && p.peek().Type == token.ASSIGN {
		tok := p.cur()
		name := p.advance().Lexeme
		p.advance() // consume '='
		value, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		return &ast.AssignStatement{Token: tok, Name: name, Value: value}, nil
	}
	tok := p.cur()
	expr, err := p.parseExpr()
	if err != nil {
		return nil, err
	}
	return &ast.ExprStatement{Token: tok, Value: expr}, nil
}

// parseSuite parses the body of an if/while: either an indented block
// (NEWLINE INDENT stmt* DEDENT) or an inline sequence of simple statements
// separated by ';' on the current logical line.
func (p *Parser) parseSuite() ([]ast.Statement, error) {
	if p.cur().Type == token.NEWLINE {
		p.advance()
		if _, err := p.expect(token.INDENT); err != nil {
			return nil, err
		}
		var stmts []ast.Statement
		for p.cur().Type != token.DEDENT {
			if p.cur().Type == token.NEWLINE {
				p.advance()
				continue
			}
			if p.cur().Type == token.EOF {
				return nil, p.errf("unexpected end of input inside block")
			}
			stmt, err := p.parseStatement()
			if err != nil {
				return nil, err
			}
			stmts = append(stmts, stmt)
			if p.cur().Type != token.DEDENT && p.toks[p.pos-1].Type != token.DEDENT {
				if p.cur().Type != token.NEWLINE && p.cur().Type != token.SEMI {
					return nil, p.errf("expected end of statement, got %s %q", p.cur().Type, p.cur().Lexeme)
				}
				p.skipSeparators()
			}
		}
		if _, err := p.expect(token.DEDENT); err != nil {
			return nil, err
		}
		return stmts, nil
	}

	// Inline suite on the same logical line.
	stmt, err := p.parseSimpleStatement()
	if err != nil {
		return nil, err
	}
	stmts := []ast.Statement{stmt}
	for p.cur().Type == token.SEMI {
		switch p.peek().Type {
		case token.ELSE, token.ELIF, token.NEWLINE, token.EOF:
			return stmts, nil
		}
		p.advance() // consume ';'
		next, err := p.parseSimpleStatement()
		if err != nil {
			return nil, err
		}
		stmts = append(stmts, next)
	}
	return stmts, nil
}

func (p *Parser) parseIf() (ast.Statement, error) {
	tok := p.advance() // 'if' or 'elif'
	cond, err := p.parseExpr()
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(token.COLON); err != nil {
		return nil, err
	}
	then, err := p.parseSuite()
	if err != nil {
		return nil, err
	}
	stmt := &ast.IfStatement{Token: tok, Condition: cond, Then: then}

	if p.cur().Type == token.SEMI && (p.peek().Type == token.ELSE || p.peek().Type == token.ELIF) {
		p.advance()
	}
	switch p.cur().Type {
	case token.ELIF:
		nested, err := p.parseIf()
		if err != nil {
			return nil, err
		}
		stmt.Alt = []ast.Statement{nested}
	case token.ELSE:
		p.advance()
		if _, err := p.expect(token.COLON); err != nil {
			return nil, err
		}
		alt, err := p.parseSuite()
		if err != nil {
			return nil, err
		}
		stmt.Alt = alt
	}
	return stmt, nil
}

func (p *Parser) parseWhile() (ast.Statement, error) {
	tok := p.advance()
	cond, err := p.parseExpr()
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(token.COLON); err != nil {
		return nil, err
	}
	body, err := p.parseSuite()
	if err != nil {
		return nil, err
	}
	return &ast.WhileStatement{Token: tok, Condition: cond, Body: body}, nil
}
