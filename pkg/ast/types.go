// Package ast defines the MiniPython abstract syntax tree produced by the parser.
//
// Nodes are plain data. Expressions and statements are closed families: only
// the types in this file implement Expr and Stmt, and consumers dispatch with
// a type switch.
package ast

// Expr is an expression node.
type Expr interface {
	exprNode()
}

// Stmt is a statement node.
type Stmt interface {
	stmtNode()
}

// === Expressions ===

// NumExpr is an integer literal: 42
type NumExpr struct {
	Value int64
}

func (*NumExpr) exprNode() {}

// VarExpr is a variable reference: x
type VarExpr struct {
	Name string
}

func (*VarExpr) exprNode() {}

// ParenExpr is a parenthesized binary operation: (left op right)
type ParenExpr struct {
	Left  Expr
	Op    string // one of + - * / < > == !=
	Right Expr
}

func (*ParenExpr) exprNode() {}

// MethodCallExpr is a method invocation: ^receiver.method(args)
type MethodCallExpr struct {
	Receiver Expr
	Method   string
	Args     []Expr
}

func (*MethodCallExpr) exprNode() {}

// FieldReadExpr is a field load: &receiver.field
type FieldReadExpr struct {
	Receiver Expr
	Field    string
}

func (*FieldReadExpr) exprNode() {}

// NewObjectExpr is an instantiation: @ClassName
type NewObjectExpr struct {
	Class string
}

func (*NewObjectExpr) exprNode() {}

// ThisExpr is the receiver of the enclosing method.
type ThisExpr struct{}

func (*ThisExpr) exprNode() {}

// === Statements ===

// AssignVarStmt assigns to a variable: x = expr. The target "_" discards.
type AssignVarStmt struct {
	Name  string
	Value Expr
}

func (*AssignVarStmt) stmtNode() {}

// AssignFieldStmt updates a field: !receiver.field = expr. Receiver is a
// variable name or "this".
type AssignFieldStmt struct {
	Receiver string
	Field    string
	Value    Expr
}

func (*AssignFieldStmt) stmtNode() {}

// IfStmt is a two-armed conditional. Both arms hold at least one statement.
type IfStmt struct {
	Cond Expr
	Then []Stmt
	Else []Stmt
}

func (*IfStmt) stmtNode() {}

// IfOnlyStmt is a conditional without an else arm.
type IfOnlyStmt struct {
	Cond Expr
	Body []Stmt
}

func (*IfOnlyStmt) stmtNode() {}

// WhileStmt is a pre-tested loop.
type WhileStmt struct {
	Cond Expr
	Body []Stmt
}

func (*WhileStmt) stmtNode() {}

// ReturnStmt returns a value from the enclosing method.
type ReturnStmt struct {
	Value Expr
}

func (*ReturnStmt) stmtNode() {}

// PrintStmt prints a value.
type PrintStmt struct {
	Value Expr
}

func (*PrintStmt) stmtNode() {}

// === Declarations ===

// Method is a method declaration inside a class.
type Method struct {
	Name       string
	Args       []string
	Locals     []string
	Statements []Stmt
}

// Class is a class declaration. Field and method order is significant for
// object layout.
type Class struct {
	Name    string
	Fields  []string
	Methods []*Method
}

// Label returns the code label of one of the class's methods.
func (c *Class) Label(method string) string {
	return c.Name + method
}

// Program is a whole source file: classes followed by the main routine.
type Program struct {
	Classes    []*Class
	MainLocals []string
	Main       []Stmt
}

// Class returns the class declared with the given name, or nil.
func (p *Program) Class(name string) *Class {
	for _, c := range p.Classes {
		if c.Name == name {
			return c
		}
	}
	return nil
}
