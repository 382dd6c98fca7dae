// Package ir defines the MiniPython intermediate representation.
// The IR sits between the parsed AST and any backend, providing:
// - Basic blocks of three-address statements, each closed by one control transfer
// - Object layout tables (vtables, field maps, method maps) as global arrays
// - A shape that later passes (SSA construction, value numbering) can work on
package ir

import (
	"strconv"
	"strings"
)

// Program is a lowered MiniPython program.
type Program struct {
	Vtables          []*Array       // One per class, method labels in declaration order
	FieldMaps        []*Array       // One per class, indexed by global field ordinal
	MethodMaps       []*Array       // One per class, indexed by global method ordinal
	FieldNameToSlot  map[string]int // Field name -> global field ordinal
	MethodNameToSlot map[string]int // Method name -> global method ordinal
	Functions        []*Function    // main first, then methods in declaration order
	Blocks           []*BasicBlock  // Every block, in the order it was opened
}

// Block returns the block with the given name, or nil.
func (p *Program) Block(name string) *BasicBlock {
	for _, b := range p.Blocks {
		if b.Name == name {
			return b
		}
	}
	return nil
}

// Globals returns every layout array of the program.
func (p *Program) Globals() []*Array {
	out := make([]*Array, 0, len(p.Vtables)+len(p.FieldMaps)+len(p.MethodMaps))
	out = append(out, p.Vtables...)
	out = append(out, p.FieldMaps...)
	out = append(out, p.MethodMaps...)
	return out
}

// Function records one lowered routine: main or a method.
type Function struct {
	Name   string   // "main" or the method label
	Params []string // Methods take "this" first
	Locals []string
	Temps  []string // Temporaries allocated while lowering, in order
	Entry  string   // Name of the entry block
	Blocks []string // Names of the blocks opened for this routine
}

// BasicBlock is a straight-line run of statements ended by a control transfer.
type BasicBlock struct {
	Name       string
	Statements []Statement
	Terminator ControlTransfer // nil while the block is open
}

// Closed reports whether the block's terminator has been set.
func (b *BasicBlock) Closed() bool {
	return b.Terminator != nil
}

// Successors returns the names of the blocks control can move to.
func (b *BasicBlock) Successors() []string {
	switch t := b.Terminator.(type) {
	case If:
		return []string{t.Then, t.Else}
	case Jump:
		return []string{t.Target}
	}
	return nil
}

// Operand is anything an instruction can read.
type Operand interface {
	operand()
	String() string
}

// Value is a non-global operand: a constant or a register.
type Value interface {
	Operand
	Expression
	value()
}

// Statement is an IR statement inside a block.
type Statement interface {
	irStmt()
	String() string
}

// Expression is the right-hand side of an Assign.
type Expression interface {
	irExpr()
	String() string
}

// ControlTransfer terminates a block.
type ControlTransfer interface {
	irTerm()
	String() string
}

// === Operands ===

// Const is an integer constant.
type Const struct {
	Value int64
}

func (Const) operand() {}
func (Const) value()   {}
func (Const) irExpr()  {}

func (c Const) String() string { return strconv.FormatInt(c.Value, 10) }

// Var is a named register: a parameter, local, or temporary.
type Var struct {
	Name string
}

func (Var) operand() {}
func (Var) value()   {}
func (Var) irExpr()  {}

func (v Var) String() string { return v.Name }

// Array is a global array produced by the layout pass.
type Array struct {
	Name  string
	Elems []Elem
}

func (*Array) operand() {}

func (a *Array) String() string { return "@" + a.Name }

// Elem is one element of a global array: a code label or a number.
type Elem struct {
	Label string // Set for code labels
	Num   int64
}

// LabelElem returns an element holding a code label.
func LabelElem(label string) Elem { return Elem{Label: label} }

// NumElem returns an element holding a number.
func NumElem(n int64) Elem { return Elem{Num: n} }

// IsLabel reports whether the element is a code label.
func (e Elem) IsLabel() bool { return e.Label != "" }

func (e Elem) String() string {
	if e.IsLabel() {
		return e.Label
	}
	return strconv.FormatInt(e.Num, 10)
}

// === Expressions ===

// Operation is a binary operation on two values.
type Operation struct {
	Left  Value
	Op    string
	Right Value
}

func (Operation) irExpr() {}

func (e Operation) String() string {
	return e.Left.String() + " " + e.Op + " " + e.Right.String()
}

// Call invokes the code at Callee with Receiver as the implicit first argument.
type Call struct {
	Callee   Value
	Receiver Value
	Args     []Value
}

func (Call) irExpr() {}

func (e Call) String() string {
	parts := []string{e.Callee.String(), e.Receiver.String()}
	for _, a := range e.Args {
		parts = append(parts, a.String())
	}
	return "call(" + strings.Join(parts, ", ") + ")"
}

// Phi joins values flowing in from predecessor blocks. Lowering never emits
// it; SSA construction does.
type Phi struct {
	Blocks []string
	Values []Value
}

func (Phi) irExpr() {}

func (e Phi) String() string {
	parts := make([]string, len(e.Blocks))
	for i, b := range e.Blocks {
		v := "?"
		if i < len(e.Values) {
			v = e.Values[i].String()
		}
		parts[i] = b + ", " + v
	}
	return "phi(" + strings.Join(parts, ", ") + ")"
}

// Alloc reserves a fresh object of Size slots.
type Alloc struct {
	Size int64
}

func (Alloc) irExpr() {}

func (e Alloc) String() string { return "alloc(" + strconv.FormatInt(e.Size, 10) + ")" }

// GetElement reads slot Index of Base.
type GetElement struct {
	Base  Operand
	Index Value
}

func (GetElement) irExpr() {}

func (e GetElement) String() string {
	return "getelt(" + e.Base.String() + ", " + e.Index.String() + ")"
}

// Load reads slot 0 of Base.
type Load struct {
	Base Operand
}

func (Load) irExpr() {}

func (e Load) String() string { return "load(" + e.Base.String() + ")" }

// === Statements ===

// Assign writes an expression's result to a register.
type Assign struct {
	Dest  Var
	Value Expression
}

func (Assign) irStmt() {}

func (s Assign) String() string { return s.Dest.String() + " = " + s.Value.String() }

// Store writes Value to slot 0 of Base.
type Store struct {
	Base  Operand
	Value Operand
}

func (Store) irStmt() {}

func (s Store) String() string { return "store(" + s.Base.String() + ", " + s.Value.String() + ")" }

// SetElement writes Value to slot Index of Base.
type SetElement struct {
	Base  Operand
	Index Value
	Value Operand
}

func (SetElement) irStmt() {}

func (s SetElement) String() string {
	return "setelt(" + s.Base.String() + ", " + s.Index.String() + ", " + s.Value.String() + ")"
}

// Print writes a value to standard output.
type Print struct {
	Value Value
}

func (Print) irStmt() {}

func (s Print) String() string { return "print(" + s.Value.String() + ")" }

// === Control transfers ===

// If branches on a value: nonzero goes to Then, zero to Else.
type If struct {
	Cond Value
	Then string
	Else string
}

func (If) irTerm() {}

func (t If) String() string { return "if " + t.Cond.String() + " then " + t.Then + " else " + t.Else }

// Jump transfers control unconditionally.
type Jump struct {
	Target string
}

func (Jump) irTerm() {}

func (t Jump) String() string { return "jump " + t.Target }

// Return leaves the current routine with a value.
type Return struct {
	Value Value
}

func (Return) irTerm() {}

func (t Return) String() string { return "ret " + t.Value.String() }

// Fail aborts the program with a message.
type Fail struct {
	Message string
}

func (Fail) irTerm() {}

func (t Fail) String() string { return "fail " + t.Message }

// Failure messages emitted by lowering.
const (
	FailNoSuchField  = "NoSuchField"
	FailNoSuchMethod = "NoSuchMethod"
)
