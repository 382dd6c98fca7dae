package ir

import (
	"fmt"
	"strconv"

	"github.com/chazu/minipy/pkg/ast"
)

// Lower converts a parsed program into IR. Layout tables are computed first
// from the full class list; main is lowered next, then each method in
// declaration order. The result is checked with Verify.
func Lower(prog *ast.Program) (*Program, error) {
	layout := BuildLayout(prog.Classes)
	l := NewLowerer(layout, NewBuilder())

	out := &Program{Functions: []*Function{}}
	layout.apply(out)

	fn, err := l.LowerRoutine("main", nil, prog.MainLocals, prog.Main)
	if err != nil {
		return nil, fmt.Errorf("main: %w", err)
	}
	out.Functions = append(out.Functions, fn)

	for _, c := range prog.Classes {
		for _, m := range c.Methods {
			params := append([]string{"this"}, m.Args...)
			fn, err := l.LowerRoutine(c.Label(m.Name), params, m.Locals, m.Statements)
			if err != nil {
				return nil, fmt.Errorf("method %s.%s: %w", c.Name, m.Name, err)
			}
			out.Functions = append(out.Functions, fn)
		}
	}

	out.Blocks = l.b.Blocks()
	if err := Verify(out); err != nil {
		return nil, err
	}
	return out, nil
}

// Lowerer emits IR for statements and expressions into a Builder.
type Lowerer struct {
	layout *Layout
	b      *Builder
	fn     *Function // Routine being lowered, nil outside LowerRoutine
	temps  map[string]bool
	tmp    int // Next temporary number, reset per top-level statement
	label  int // Next generated block number, program-wide
}

// NewLowerer creates a lowerer that resolves layout against layout and
// appends blocks to b.
func NewLowerer(layout *Layout, b *Builder) *Lowerer {
	return &Lowerer{layout: layout, b: b}
}

// LowerRoutine lowers one routine into blocks starting at a block named
// name. Locals are zeroed on entry; a routine that falls off its end
// returns 0.
func (l *Lowerer) LowerRoutine(name string, params, locals []string, stmts []ast.Stmt) (*Function, error) {
	l.fn = &Function{
		Name:   name,
		Params: append([]string{}, params...),
		Locals: append([]string{}, locals...),
		Temps:  []string{},
		Entry:  name,
		Blocks: []string{},
	}
	l.temps = make(map[string]bool)
	defer func() { l.fn = nil }()

	l.openBlock(name)
	for _, local := range locals {
		l.b.Emit(Assign{Dest: Var{Name: local}, Value: Const{Value: 0}})
	}
	for _, s := range stmts {
		l.tmp = 0
		if err := l.LowerStatement(s); err != nil {
			return nil, err
		}
	}
	if l.b.IsOpen() {
		l.b.Terminate(Return{Value: Const{Value: 0}})
	}
	return l.fn, nil
}

// LowerStatement lowers one statement at the end of the current block.
// Statements following a terminator land in a fresh unreachable block.
func (l *Lowerer) LowerStatement(s ast.Stmt) error {
	if !l.b.IsOpen() {
		l.openBlock(l.newLabel("dead"))
	}

	switch s := s.(type) {
	case *ast.AssignVarStmt:
		value, err := l.lowerExpr(s.Value)
		if err != nil {
			return err
		}
		l.b.Emit(Assign{Dest: Var{Name: s.Name}, Value: value})
		return nil

	case *ast.AssignFieldStmt:
		value, err := l.lowerValue(s.Value)
		if err != nil {
			return err
		}
		recv := Var{Name: s.Receiver}
		off := l.fieldOffset(recv, s.Field)
		l.b.Emit(SetElement{Base: recv, Index: off, Value: value})
		return nil

	case *ast.IfStmt:
		cond, err := l.lowerValue(s.Cond)
		if err != nil {
			return err
		}
		n := l.nextLabel()
		thenName, elseName, joinName := "then"+n, "else"+n, "join"+n
		l.b.Terminate(If{Cond: cond, Then: thenName, Else: elseName})
		if err := l.lowerArm(thenName, joinName, s.Then); err != nil {
			return err
		}
		if err := l.lowerArm(elseName, joinName, s.Else); err != nil {
			return err
		}
		l.openBlock(joinName)
		return nil

	case *ast.IfOnlyStmt:
		cond, err := l.lowerValue(s.Cond)
		if err != nil {
			return err
		}
		n := l.nextLabel()
		thenName, joinName := "then"+n, "join"+n
		l.b.Terminate(If{Cond: cond, Then: thenName, Else: joinName})
		if err := l.lowerArm(thenName, joinName, s.Body); err != nil {
			return err
		}
		l.openBlock(joinName)
		return nil

	case *ast.WhileStmt:
		n := l.nextLabel()
		headName, bodyName, exitName := "head"+n, "body"+n, "exit"+n
		l.b.Terminate(Jump{Target: headName})
		l.openBlock(headName)
		cond, err := l.lowerValue(s.Cond)
		if err != nil {
			return err
		}
		l.b.Terminate(If{Cond: cond, Then: bodyName, Else: exitName})
		if err := l.lowerArm(bodyName, headName, s.Body); err != nil {
			return err
		}
		l.openBlock(exitName)
		return nil

	case *ast.ReturnStmt:
		value, err := l.lowerValue(s.Value)
		if err != nil {
			return err
		}
		l.b.Terminate(Return{Value: value})
		return nil

	case *ast.PrintStmt:
		value, err := l.lowerValue(s.Value)
		if err != nil {
			return err
		}
		l.b.Emit(Print{Value: value})
		return nil
	}

	return fmt.Errorf("unsupported statement type: %T", s)
}

// lowerArm lowers stmts into a block named name that falls through to next.
func (l *Lowerer) lowerArm(name, next string, stmts []ast.Stmt) error {
	l.openBlock(name)
	for _, s := range stmts {
		if err := l.LowerStatement(s); err != nil {
			return err
		}
	}
	if l.b.IsOpen() {
		l.b.Terminate(Jump{Target: next})
	}
	return nil
}

// lowerExpr lowers e to an expression whose operands are all values,
// emitting whatever statements compute those values first.
func (l *Lowerer) lowerExpr(e ast.Expr) (Expression, error) {
	switch e := e.(type) {
	case *ast.NumExpr:
		return Const{Value: e.Value}, nil

	case *ast.VarExpr:
		return Var{Name: e.Name}, nil

	case *ast.ThisExpr:
		return Var{Name: "this"}, nil

	case *ast.ParenExpr:
		left, err := l.lowerValue(e.Left)
		if err != nil {
			return nil, err
		}
		right, err := l.lowerValue(e.Right)
		if err != nil {
			return nil, err
		}
		return Operation{Left: left, Op: e.Op, Right: right}, nil

	case *ast.MethodCallExpr:
		recv, err := l.lowerValue(e.Receiver)
		if err != nil {
			return nil, err
		}
		args := make([]Value, 0, len(e.Args))
		for _, a := range e.Args {
			v, err := l.lowerValue(a)
			if err != nil {
				return nil, err
			}
			args = append(args, v)
		}
		slot, ok := l.layout.MethodSlot(e.Method)
		if !ok {
			l.failAndContinue(FailNoSuchMethod)
			return Const{Value: 0}, nil
		}
		methods := l.newTemp()
		l.b.Emit(Assign{Dest: methods, Value: Load{Base: recv}})
		callee := l.newTemp()
		l.b.Emit(Assign{Dest: callee, Value: GetElement{Base: methods, Index: Const{Value: int64(slot)}}})
		l.guard(callee, FailNoSuchMethod)
		return Call{Callee: callee, Receiver: recv, Args: args}, nil

	case *ast.FieldReadExpr:
		recv, err := l.lowerValue(e.Receiver)
		if err != nil {
			return nil, err
		}
		off := l.fieldOffset(recv, e.Field)
		return GetElement{Base: recv, Index: off}, nil

	case *ast.NewObjectExpr:
		if !l.layout.HasClass(e.Class) {
			return nil, fmt.Errorf("new object of undeclared class %s", e.Class)
		}
		size := l.layout.ObjectSize(e.Class)
		obj := l.newTemp()
		l.b.Emit(Assign{Dest: obj, Value: Alloc{Size: int64(size)}})
		l.b.Emit(Store{Base: obj, Value: l.layout.MethodMap(e.Class)})
		l.b.Emit(SetElement{Base: obj, Index: Const{Value: SlotFields}, Value: l.layout.FieldMap(e.Class)})
		for i := FirstField; i < size; i++ {
			l.b.Emit(SetElement{Base: obj, Index: Const{Value: int64(i)}, Value: Const{Value: 0}})
		}
		return obj, nil
	}

	return nil, fmt.Errorf("unsupported expression type: %T", e)
}

// lowerValue lowers e and, unless the result is already a constant or a
// register, assigns it to a fresh temporary.
func (l *Lowerer) lowerValue(e ast.Expr) (Value, error) {
	expr, err := l.lowerExpr(e)
	if err != nil {
		return nil, err
	}
	if v, ok := expr.(Value); ok {
		return v, nil
	}
	t := l.newTemp()
	l.b.Emit(Assign{Dest: t, Value: expr})
	return t, nil
}

// fieldOffset emits the field map lookup for field on recv and returns the
// register holding the field's physical slot. Control continues only when
// the object's class has the field.
func (l *Lowerer) fieldOffset(recv Value, field string) Value {
	slot, ok := l.layout.FieldSlot(field)
	if !ok {
		l.failAndContinue(FailNoSuchField)
		return Const{Value: 0}
	}
	fields := l.newTemp()
	l.b.Emit(Assign{Dest: fields, Value: GetElement{Base: recv, Index: Const{Value: SlotFields}}})
	off := l.newTemp()
	l.b.Emit(Assign{Dest: off, Value: GetElement{Base: fields, Index: Const{Value: int64(slot)}}})
	l.guard(off, FailNoSuchField)
	return off
}

// guard branches on v: zero fails with message, nonzero continues in a
// fresh block that becomes current.
func (l *Lowerer) guard(v Value, message string) {
	n := l.nextLabel()
	okName, failName := "ok"+n, "fail"+n
	l.b.Terminate(If{Cond: v, Then: okName, Else: failName})
	l.openBlock(failName)
	l.b.Terminate(Fail{Message: message})
	l.openBlock(okName)
}

// failAndContinue closes the current block with a failure and opens an
// unreachable block for whatever follows.
func (l *Lowerer) failAndContinue(message string) {
	l.b.Terminate(Fail{Message: message})
	l.openBlock(l.newLabel("dead"))
}

func (l *Lowerer) openBlock(name string) {
	l.b.OpenBlock(name)
	if l.fn != nil {
		l.fn.Blocks = append(l.fn.Blocks, name)
	}
}

func (l *Lowerer) newTemp() Var {
	name := "tmp" + strconv.Itoa(l.tmp)
	l.tmp++
	if l.fn != nil && !l.temps[name] {
		l.temps[name] = true
		l.fn.Temps = append(l.fn.Temps, name)
	}
	return Var{Name: name}
}

func (l *Lowerer) nextLabel() string {
	n := strconv.Itoa(l.label)
	l.label++
	return n
}

func (l *Lowerer) newLabel(kind string) string {
	return kind + l.nextLabel()
}
