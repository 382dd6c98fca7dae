// Package lexer provides tokenization for the MiniPython language.
//
// The lexer is pull-based: the parser asks for one token at a time and the
// lexer scans just enough source to answer. Every scanned token is appended
// to a cache, and a cursor indexes into that cache, so a token is never
// scanned twice and lookahead never re-reads source characters.
//
// Token Types:
//
//	IDENTIFIER  - maximal alphabetic runs that are not keywords
//	NUMBER      - maximal digit runs
//	NEWLINE     - line breaks (statement separators, kept for the parser)
//	keywords    - if else ifonly while return print this class with locals
//	              fields method main
//	punctuation - ( ) [ ] { } . , : & @ ! ^ _ =
//	operators   - + - * / < > == !=
//
// Output Format (JSON array):
//
//	[{"type": "IDENTIFIER", "value": "x", "line": 1, "col": 0}, ...]
package lexer

import (
	"encoding/json"
	"fmt"
	"io"
	"unicode/utf8"
)

// LexError reports a character that does not begin any token.
type LexError struct {
	Char   rune
	Pos    int // byte offset into the source
	Line   int
	Column int
}

func (e *LexError) Error() string {
	return fmt.Sprintf("line %d, col %d: unexpected character %q", e.Line, e.Column, e.Char)
}

// Lexer tokenizes MiniPython source code.
type Lexer struct {
	input  string  // The source code being tokenized
	pos    int     // Current scan position in input
	line   int     // Current line number (1-indexed)
	col    int     // Current column number (0-indexed)
	tokens []Token // Every token scanned so far
	cursor int     // Index of the next token to hand out; never exceeds len(tokens)
}

// New creates a new Lexer for the given input.
func New(input string) *Lexer {
	return &Lexer{
		input:  input,
		pos:    0,
		line:   1,
		col:    0,
		tokens: make([]Token, 0),
	}
}

// NewFromReader creates a new Lexer from an io.Reader.
func NewFromReader(r io.Reader) (*Lexer, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read input: %w", err)
	}
	return New(string(data)), nil
}

// Peek returns the token at the cursor without consuming it. Repeated calls
// return the same token. At end of input it returns an EOF token.
func (l *Lexer) Peek() (Token, error) {
	if l.cursor == len(l.tokens) {
		ok, err := l.scanToken()
		if err != nil {
			return Token{}, err
		}
		if !ok {
			return NewToken(EOF, "", l.line, l.col), nil
		}
	}
	return l.tokens[l.cursor], nil
}

// Next returns the token at the cursor and advances past it. At end of input
// it returns an EOF token and the cursor stays put.
func (l *Lexer) Next() (Token, error) {
	tok, err := l.Peek()
	if err != nil {
		return Token{}, err
	}
	if tok.Type != EOF {
		l.cursor++
	}
	return tok, nil
}

// Tokenize scans the rest of the input and returns every token of the
// source. The cursor is left where it was, so Peek/Next are unaffected.
// Once the input is exhausted, further calls are served from the cache.
func (l *Lexer) Tokenize() ([]Token, error) {
	for {
		ok, err := l.scanToken()
		if err != nil {
			return nil, err
		}
		if !ok {
			break
		}
	}
	out := make([]Token, len(l.tokens))
	copy(out, l.tokens)
	return out, nil
}

// TokenizeJSON processes the input and returns tokens as a JSON array.
func (l *Lexer) TokenizeJSON() (string, error) {
	tokens, err := l.Tokenize()
	if err != nil {
		return "", err
	}
	data, err := json.Marshal(tokens)
	if err != nil {
		return "", fmt.Errorf("failed to marshal tokens: %w", err)
	}
	return string(data), nil
}

// Scanned reports how many tokens have been scanned from source so far.
func (l *Lexer) Scanned() int {
	return len(l.tokens)
}

// Helper methods for character access and movement

func (l *Lexer) isAtEnd() bool {
	return l.pos >= len(l.input)
}

func (l *Lexer) peek() byte {
	if l.isAtEnd() {
		return 0
	}
	return l.input[l.pos]
}

func (l *Lexer) advance() byte {
	ch := l.input[l.pos]
	l.pos++
	l.col++
	return ch
}

func (l *Lexer) addTokenAt(typ TokenType, value string, line, col int) {
	l.tokens = append(l.tokens, NewToken(typ, value, line, col))
}

func isAlpha(c byte) bool {
	return (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func isDigit(c byte) bool {
	return c >= '0' && c <= '9'
}

var singleChar = map[byte]TokenType{
	'(': LPAREN,
	')': RPAREN,
	'[': LBRACKET,
	']': RBRACKET,
	'{': LBRACE,
	'}': RBRACE,
	'.': DOT,
	',': COMMA,
	':': COLON,
	'&': AMP,
	'@': AT,
	'^': CARET,
	'_': UNDERSCORE,
	'+': PLUS,
	'-': MINUS,
	'*': STAR,
	'/': SLASH,
	'<': LT,
	'>': GT,
}

// scanToken skips horizontal whitespace and appends one token to the cache.
// It returns false once no more tokens remain in the source.
func (l *Lexer) scanToken() (bool, error) {
	for !l.isAtEnd() {
		switch l.peek() {
		case ' ', '\t', '\r':
			l.advance()
			continue
		}
		break
	}
	if l.isAtEnd() {
		return false, nil
	}

	char := l.peek()
	startCol := l.col

	switch {
	case char == '\n':
		l.addTokenAt(NEWLINE, "\n", l.line, startCol)
		l.advance()
		l.line++
		l.col = 0
		return true, nil

	case char == '=':
		l.advance()
		if l.peek() == '=' {
			l.advance()
			l.addTokenAt(EQ, "==", l.line, startCol)
		} else {
			l.addTokenAt(ASSIGN, "=", l.line, startCol)
		}
		return true, nil

	case char == '!':
		l.advance()
		if l.peek() == '=' {
			l.advance()
			l.addTokenAt(NE, "!=", l.line, startCol)
		} else {
			l.addTokenAt(BANG, "!", l.line, startCol)
		}
		return true, nil

	case isDigit(char):
		l.scanNumber()
		return true, nil

	case isAlpha(char):
		l.scanIdentifierOrKeyword()
		return true, nil
	}

	if typ, ok := singleChar[char]; ok {
		l.advance()
		l.addTokenAt(typ, string(char), l.line, startCol)
		return true, nil
	}

	r, _ := utf8.DecodeRuneInString(l.input[l.pos:])
	return false, &LexError{Char: r, Pos: l.pos, Line: l.line, Column: startCol}
}

// scanNumber handles maximal runs of decimal digits.
func (l *Lexer) scanNumber() {
	start, startCol := l.pos, l.col
	for !l.isAtEnd() && isDigit(l.peek()) {
		l.advance()
	}
	l.addTokenAt(NUMBER, l.input[start:l.pos], l.line, startCol)
}

// scanIdentifierOrKeyword handles identifiers and keywords.
func (l *Lexer) scanIdentifierOrKeyword() {
	start, startCol := l.pos, l.col
	for !l.isAtEnd() && isAlpha(l.peek()) {
		l.advance()
	}
	word := l.input[start:l.pos]
	if typ, ok := keywords[word]; ok {
		l.addTokenAt(typ, word, l.line, startCol)
		return
	}
	l.addTokenAt(IDENTIFIER, word, l.line, startCol)
}

// String returns a string representation of the lexer state (for debugging).
func (l *Lexer) String() string {
	return fmt.Sprintf("Lexer{pos=%d, line=%d, col=%d, tokens=%d, cursor=%d}",
		l.pos, l.line, l.col, len(l.tokens), l.cursor)
}
