// Package parser implements the MiniPython recursive-descent parser.
//
// The parser pulls tokens from a lexer.Lexer on demand and never looks more
// than one token ahead. It fails fast: the first malformed construct aborts
// the parse with a *SyntaxError (or the lexer's *lexer.LexError).
//
// Grammar:
//
//	Expr    := "(" Expr BinOp Expr ")" | identifier | number | "this"
//	         | "^" Expr "." (identifier|"this") "(" [Expr ("," Expr)*] ")"
//	         | "&" Expr "." identifier
//	         | "@" identifier
//	Stmt    := (identifier|"_") "=" Expr
//	         | "!" (identifier|"this") "." identifier "=" Expr
//	         | "if" Expr ":" Block "else" Block
//	         | "ifonly" Expr ":" Block
//	         | "while" Expr ":" Block
//	         | "return" Expr
//	         | "print" "(" Expr ")"
//	Block   := "{" NEWLINE Stmt (NEWLINE Stmt)* NEWLINE "}"
//	Method  := "method" identifier "(" IdentList ")" "with" "locals" IdentList
//	           ":" (NEWLINE Stmt)+
//	Class   := "class" identifier "[" NEWLINE "fields" IdentList NEWLINE Method* "]"
//	Program := Class* "main" "with" IdentList ":" (NEWLINE Stmt)*
//
// Wherever NEWLINE appears, a run of blank lines is accepted.
package parser

import (
	"fmt"
	"strconv"

	"github.com/chazu/minipy/pkg/ast"
	"github.com/chazu/minipy/pkg/lexer"
)

// SyntaxError reports the first place the token stream left the grammar.
type SyntaxError struct {
	Line     int    // Line number, counted from consumed newlines
	Expected string // What the grammar required
	Found    string // What was there instead
}

func (e *SyntaxError) Error() string {
	return fmt.Sprintf("syntax error on line %d: expected %s, found %s", e.Line, e.Expected, e.Found)
}

// Parser converts a token stream into an AST.
type Parser struct {
	lex  *lexer.Lexer
	line int
}

// New creates a parser reading from lex.
func New(lex *lexer.Lexer) *Parser {
	return &Parser{lex: lex, line: 1}
}

// Parse parses a complete program from source text.
func Parse(src string) (*ast.Program, error) {
	prog, err := New(lexer.New(src)).ParseProgram()
	if err != nil {
		return nil, err
	}
	return prog, nil
}

// ParseProgram parses classes followed by the main routine, up to end of input.
func (p *Parser) ParseProgram() (*ast.Program, error) {
	prog := &ast.Program{
		Classes:    []*ast.Class{},
		MainLocals: []string{},
		Main:       []ast.Stmt{},
	}

	if err := p.skipNewlines(); err != nil {
		return nil, err
	}
	for {
		tok, err := p.peek()
		if err != nil {
			return nil, err
		}
		if tok.Type != lexer.CLASS {
			break
		}
		class, err := p.ParseClass()
		if err != nil {
			return nil, err
		}
		prog.Classes = append(prog.Classes, class)
		if err := p.skipNewlines(); err != nil {
			return nil, err
		}
	}

	if _, err := p.expect(lexer.MAIN, "'main' or 'class'"); err != nil {
		return nil, err
	}
	if _, err := p.expect(lexer.WITH, "'with'"); err != nil {
		return nil, err
	}
	locals, err := p.parseIdentList()
	if err != nil {
		return nil, err
	}
	prog.MainLocals = locals
	if _, err := p.expect(lexer.COLON, "':'"); err != nil {
		return nil, err
	}

	for {
		tok, err := p.peek()
		if err != nil {
			return nil, err
		}
		if tok.Type == lexer.EOF {
			break
		}
		if err := p.newlines(); err != nil {
			return nil, err
		}
		if tok, err = p.peek(); err != nil {
			return nil, err
		}
		if tok.Type == lexer.EOF {
			break
		}
		stmt, err := p.ParseStatement()
		if err != nil {
			return nil, err
		}
		prog.Main = append(prog.Main, stmt)
	}

	return prog, nil
}

// ParseClass parses a class declaration.
func (p *Parser) ParseClass() (*ast.Class, error) {
	if _, err := p.expect(lexer.CLASS, "'class'"); err != nil {
		return nil, err
	}
	name, err := p.expect(lexer.IDENTIFIER, "class name")
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(lexer.LBRACKET, "'['"); err != nil {
		return nil, err
	}
	if err := p.newlines(); err != nil {
		return nil, err
	}
	if _, err := p.expect(lexer.FIELDS, "'fields'"); err != nil {
		return nil, err
	}
	fields, err := p.parseIdentList()
	if err != nil {
		return nil, err
	}
	if err := p.newlines(); err != nil {
		return nil, err
	}

	class := &ast.Class{
		Name:    name.Value,
		Fields:  fields,
		Methods: []*ast.Method{},
	}
	for {
		tok, err := p.peek()
		if err != nil {
			return nil, err
		}
		if tok.Type != lexer.METHOD {
			break
		}
		method, err := p.ParseMethod()
		if err != nil {
			return nil, err
		}
		class.Methods = append(class.Methods, method)
	}

	if _, err := p.expect(lexer.RBRACKET, "'method' or ']'"); err != nil {
		return nil, err
	}
	return class, nil
}

// ParseMethod parses a method declaration. The body ends, after the newlines
// following a statement, at the next 'method' or ']', which is left unconsumed.
func (p *Parser) ParseMethod() (*ast.Method, error) {
	if _, err := p.expect(lexer.METHOD, "'method'"); err != nil {
		return nil, err
	}
	name, err := p.expect(lexer.IDENTIFIER, "method name")
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(lexer.LPAREN, "'('"); err != nil {
		return nil, err
	}
	args, err := p.parseIdentList()
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(lexer.RPAREN, "')'"); err != nil {
		return nil, err
	}
	if _, err := p.expect(lexer.WITH, "'with'"); err != nil {
		return nil, err
	}
	if _, err := p.expect(lexer.LOCALS, "'locals'"); err != nil {
		return nil, err
	}
	locals, err := p.parseIdentList()
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(lexer.COLON, "':'"); err != nil {
		return nil, err
	}

	method := &ast.Method{
		Name:       name.Value,
		Args:       args,
		Locals:     locals,
		Statements: []ast.Stmt{},
	}
	for {
		if err := p.newlines(); err != nil {
			return nil, err
		}
		if len(method.Statements) > 0 {
			tok, err := p.peek()
			if err != nil {
				return nil, err
			}
			if tok.Type == lexer.METHOD || tok.Type == lexer.RBRACKET {
				return method, nil
			}
		}
		stmt, err := p.ParseStatement()
		if err != nil {
			return nil, err
		}
		method.Statements = append(method.Statements, stmt)
	}
}

// ParseStatement parses one statement.
func (p *Parser) ParseStatement() (ast.Stmt, error) {
	tok, err := p.advance()
	if err != nil {
		return nil, err
	}

	switch tok.Type {
	case lexer.IDENTIFIER, lexer.UNDERSCORE:
		if _, err := p.expect(lexer.ASSIGN, "'='"); err != nil {
			return nil, err
		}
		value, err := p.ParseExpr()
		if err != nil {
			return nil, err
		}
		return &ast.AssignVarStmt{Name: tok.Value, Value: value}, nil

	case lexer.BANG:
		recv, err := p.advance()
		if err != nil {
			return nil, err
		}
		if recv.Type != lexer.IDENTIFIER && recv.Type != lexer.THIS {
			return nil, p.errorf("variable or 'this'", recv)
		}
		if _, err := p.expect(lexer.DOT, "'.'"); err != nil {
			return nil, err
		}
		field, err := p.expect(lexer.IDENTIFIER, "field name")
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(lexer.ASSIGN, "'='"); err != nil {
			return nil, err
		}
		value, err := p.ParseExpr()
		if err != nil {
			return nil, err
		}
		return &ast.AssignFieldStmt{Receiver: recv.Value, Field: field.Value, Value: value}, nil

	case lexer.IF:
		cond, then, err := p.parseGuardedBlock()
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(lexer.ELSE, "'else'"); err != nil {
			return nil, err
		}
		els, err := p.parseBlock()
		if err != nil {
			return nil, err
		}
		return &ast.IfStmt{Cond: cond, Then: then, Else: els}, nil

	case lexer.IFONLY:
		cond, body, err := p.parseGuardedBlock()
		if err != nil {
			return nil, err
		}
		return &ast.IfOnlyStmt{Cond: cond, Body: body}, nil

	case lexer.WHILE:
		cond, body, err := p.parseGuardedBlock()
		if err != nil {
			return nil, err
		}
		return &ast.WhileStmt{Cond: cond, Body: body}, nil

	case lexer.RETURN:
		value, err := p.ParseExpr()
		if err != nil {
			return nil, err
		}
		return &ast.ReturnStmt{Value: value}, nil

	case lexer.PRINT:
		if _, err := p.expect(lexer.LPAREN, "'('"); err != nil {
			return nil, err
		}
		value, err := p.ParseExpr()
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(lexer.RPAREN, "')'"); err != nil {
			return nil, err
		}
		return &ast.PrintStmt{Value: value}, nil
	}

	return nil, p.errorf("statement", tok)
}

// ParseExpr parses one expression.
func (p *Parser) ParseExpr() (ast.Expr, error) {
	tok, err := p.advance()
	if err != nil {
		return nil, err
	}

	switch tok.Type {
	case lexer.NUMBER:
		n, err := strconv.ParseInt(tok.Value, 10, 64)
		if err != nil {
			return nil, p.errorf("number in int64 range", tok)
		}
		return &ast.NumExpr{Value: n}, nil

	case lexer.IDENTIFIER:
		return &ast.VarExpr{Name: tok.Value}, nil

	case lexer.THIS:
		return &ast.ThisExpr{}, nil

	case lexer.LPAREN:
		left, err := p.ParseExpr()
		if err != nil {
			return nil, err
		}
		op, err := p.advance()
		if err != nil {
			return nil, err
		}
		if !op.IsBinaryOp() {
			return nil, p.errorf("binary operator", op)
		}
		right, err := p.ParseExpr()
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(lexer.RPAREN, "')'"); err != nil {
			return nil, err
		}
		return &ast.ParenExpr{Left: left, Op: op.Value, Right: right}, nil

	case lexer.CARET:
		recv, err := p.ParseExpr()
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(lexer.DOT, "'.'"); err != nil {
			return nil, err
		}
		name, err := p.advance()
		if err != nil {
			return nil, err
		}
		if name.Type != lexer.IDENTIFIER && name.Type != lexer.THIS {
			return nil, p.errorf("method name", name)
		}
		args, err := p.parseArgs()
		if err != nil {
			return nil, err
		}
		return &ast.MethodCallExpr{Receiver: recv, Method: name.Value, Args: args}, nil

	case lexer.AMP:
		recv, err := p.ParseExpr()
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(lexer.DOT, "'.'"); err != nil {
			return nil, err
		}
		field, err := p.expect(lexer.IDENTIFIER, "field name")
		if err != nil {
			return nil, err
		}
		return &ast.FieldReadExpr{Receiver: recv, Field: field.Value}, nil

	case lexer.AT:
		class, err := p.expect(lexer.IDENTIFIER, "class name")
		if err != nil {
			return nil, err
		}
		return &ast.NewObjectExpr{Class: class.Value}, nil
	}

	return nil, p.errorf("expression", tok)
}

// parseArgs parses a parenthesized, comma-separated argument list.
func (p *Parser) parseArgs() ([]ast.Expr, error) {
	if _, err := p.expect(lexer.LPAREN, "'('"); err != nil {
		return nil, err
	}
	args := []ast.Expr{}
	tok, err := p.peek()
	if err != nil {
		return nil, err
	}
	if tok.Type == lexer.RPAREN {
		p.advance()
		return args, nil
	}
	for {
		arg, err := p.ParseExpr()
		if err != nil {
			return nil, err
		}
		args = append(args, arg)

		sep, err := p.advance()
		if err != nil {
			return nil, err
		}
		switch sep.Type {
		case lexer.COMMA:
			continue
		case lexer.RPAREN:
			return args, nil
		}
		return nil, p.errorf("',' or ')'", sep)
	}
}

// parseGuardedBlock parses the `Expr ":" Block` tail shared by if, ifonly
// and while.
func (p *Parser) parseGuardedBlock() (ast.Expr, []ast.Stmt, error) {
	cond, err := p.ParseExpr()
	if err != nil {
		return nil, nil, err
	}
	if _, err := p.expect(lexer.COLON, "':'"); err != nil {
		return nil, nil, err
	}
	body, err := p.parseBlock()
	if err != nil {
		return nil, nil, err
	}
	return cond, body, nil
}

// parseBlock parses a braced statement list. The opening brace must end its
// line and the closing brace must start one.
func (p *Parser) parseBlock() ([]ast.Stmt, error) {
	if _, err := p.expect(lexer.LBRACE, "'{'"); err != nil {
		return nil, err
	}
	stmts := []ast.Stmt{}
	for {
		if err := p.newlines(); err != nil {
			return nil, err
		}
		if len(stmts) > 0 {
			tok, err := p.peek()
			if err != nil {
				return nil, err
			}
			if tok.Type == lexer.RBRACE {
				p.advance()
				return stmts, nil
			}
		}
		stmt, err := p.ParseStatement()
		if err != nil {
			return nil, err
		}
		stmts = append(stmts, stmt)
	}
}

// parseIdentList parses a possibly empty comma-separated list of distinct
// identifiers.
func (p *Parser) parseIdentList() ([]string, error) {
	names := []string{}
	tok, err := p.peek()
	if err != nil {
		return nil, err
	}
	if tok.Type != lexer.IDENTIFIER {
		return names, nil
	}

	seen := map[string]bool{}
	for {
		name, err := p.expect(lexer.IDENTIFIER, "identifier")
		if err != nil {
			return nil, err
		}
		if seen[name.Value] {
			return nil, p.errorf("distinct names", name)
		}
		seen[name.Value] = true
		names = append(names, name.Value)

		tok, err := p.peek()
		if err != nil {
			return nil, err
		}
		if tok.Type != lexer.COMMA {
			return names, nil
		}
		p.advance()
	}
}

// Token helpers

func (p *Parser) peek() (lexer.Token, error) {
	return p.lex.Peek()
}

func (p *Parser) advance() (lexer.Token, error) {
	tok, err := p.lex.Next()
	if err != nil {
		return lexer.Token{}, err
	}
	if tok.Type == lexer.NEWLINE {
		p.line++
	}
	return tok, nil
}

// expect consumes the next token, which must be of type typ.
func (p *Parser) expect(typ lexer.TokenType, what string) (lexer.Token, error) {
	tok, err := p.advance()
	if err != nil {
		return lexer.Token{}, err
	}
	if tok.Type != typ {
		return lexer.Token{}, p.errorf(what, tok)
	}
	return tok, nil
}

// newlines consumes one or more NEWLINE tokens.
func (p *Parser) newlines() error {
	if _, err := p.expect(lexer.NEWLINE, "newline"); err != nil {
		return err
	}
	return p.skipNewlines()
}

// skipNewlines consumes any NEWLINE tokens at the cursor.
func (p *Parser) skipNewlines() error {
	for {
		tok, err := p.peek()
		if err != nil {
			return err
		}
		if tok.Type != lexer.NEWLINE {
			return nil
		}
		p.advance()
	}
}

// errorf builds a syntax error for an unexpected token. A newline that was
// just consumed is reported against the line it ended.
func (p *Parser) errorf(expected string, found lexer.Token) *SyntaxError {
	line := p.line
	if found.Type == lexer.NEWLINE {
		line--
	}
	return &SyntaxError{Line: line, Expected: expected, Found: found.String()}
}
