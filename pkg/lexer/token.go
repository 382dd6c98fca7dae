// Package lexer provides tokenization for the MiniPython language.
package lexer

// TokenType represents the type of a token.
type TokenType string

const (
	// Literals
	IDENTIFIER TokenType = "IDENTIFIER" // Alphabetic names (e.g., Stack, tmp, getVal)
	NUMBER     TokenType = "NUMBER"     // Decimal digit runs (e.g., 0, 42)

	// Brackets and delimiters
	LPAREN   TokenType = "LPAREN"   // (
	RPAREN   TokenType = "RPAREN"   // )
	LBRACKET TokenType = "LBRACKET" // [
	RBRACKET TokenType = "RBRACKET" // ]
	LBRACE   TokenType = "LBRACE"   // {
	RBRACE   TokenType = "RBRACE"   // }

	// Punctuation
	DOT        TokenType = "DOT"        // .
	COMMA      TokenType = "COMMA"      // ,
	COLON      TokenType = "COLON"      // :
	AMP        TokenType = "AMP"        // & (field read)
	AT         TokenType = "AT"         // @ (instantiation)
	BANG       TokenType = "BANG"       // ! (field update)
	CARET      TokenType = "CARET"      // ^ (method call)
	UNDERSCORE TokenType = "UNDERSCORE" // _ (discard target)
	ASSIGN     TokenType = "ASSIGN"     // =

	// Operators
	PLUS  TokenType = "PLUS"  // +
	MINUS TokenType = "MINUS" // -
	STAR  TokenType = "STAR"  // *
	SLASH TokenType = "SLASH" // /
	LT    TokenType = "LT"    // <
	GT    TokenType = "GT"    // >
	EQ    TokenType = "EQ"    // ==
	NE    TokenType = "NE"    // !=

	// Keywords
	IF     TokenType = "IF"
	ELSE   TokenType = "ELSE"
	IFONLY TokenType = "IFONLY"
	WHILE  TokenType = "WHILE"
	RETURN TokenType = "RETURN"
	PRINT  TokenType = "PRINT"
	THIS   TokenType = "THIS"
	CLASS  TokenType = "CLASS"
	WITH   TokenType = "WITH"
	LOCALS TokenType = "LOCALS"
	FIELDS TokenType = "FIELDS"
	METHOD TokenType = "METHOD"
	MAIN   TokenType = "MAIN"

	// Whitespace and structure
	NEWLINE TokenType = "NEWLINE" // Line break (statement separator)

	EOF TokenType = "EOF" // End of input
)

// keywords maps reserved words to their token types. Anything else scanned
// as an alphabetic run is an IDENTIFIER.
var keywords = map[string]TokenType{
	"if":     IF,
	"else":   ELSE,
	"ifonly": IFONLY,
	"while":  WHILE,
	"return": RETURN,
	"print":  PRINT,
	"this":   THIS,
	"class":  CLASS,
	"with":   WITH,
	"locals": LOCALS,
	"fields": FIELDS,
	"method": METHOD,
	"main":   MAIN,
}

// Token represents a single token from the lexer.
type Token struct {
	Type   TokenType `json:"type"`
	Value  string    `json:"value"`
	Line   int       `json:"line"`
	Column int       `json:"col"`
}

// NewToken creates a new token with the given properties.
func NewToken(typ TokenType, value string, line, col int) Token {
	return Token{
		Type:   typ,
		Value:  value,
		Line:   line,
		Column: col,
	}
}

// IsKeyword returns true if the token is a reserved word.
func (t Token) IsKeyword() bool {
	typ, ok := keywords[t.Value]
	return ok && t.Type == typ
}

// IsBinaryOp returns true if the token can appear between the operands of a
// parenthesized expression.
func (t Token) IsBinaryOp() bool {
	switch t.Type {
	case PLUS, MINUS, STAR, SLASH, LT, GT, EQ, NE:
		return true
	}
	return false
}

// String renders the token the way parse errors quote it.
func (t Token) String() string {
	switch t.Type {
	case EOF:
		return "end of input"
	case NEWLINE:
		return "newline"
	case IDENTIFIER, NUMBER:
		return string(t.Type) + " " + t.Value
	}
	return "'" + t.Value + "'"
}
