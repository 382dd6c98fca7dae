// Package codegen renders a lowered MiniPython program as a Go source file.
//
// The output is a self-contained package main that mirrors the IR one to
// one: every IR function becomes a Go func, every block a labelled section
// reached by goto, every register a local of type interface{}. It exists to
// inspect and run IR, not to produce fast code.
package codegen

import (
	"bytes"
	"fmt"

	"github.com/dave/jennifer/jen"

	"github.com/chazu/minipy/pkg/ir"
)

// Result contains the generated code and any warnings.
type Result struct {
	Code     string
	Warnings []string
}

// Generate produces Go source code from a lowered program.
func Generate(prog *ir.Program) (*Result, error) {
	g := &generator{
		prog:      prog,
		funcNames: map[string]string{},
		warnings:  []string{},
	}
	for _, fn := range prog.Functions {
		g.funcNames[fn.Name] = goFuncName(fn.Name)
	}
	return g.generate()
}

type generator struct {
	prog      *ir.Program
	funcNames map[string]string // IR function name -> Go func name
	warnings  []string
}

func (g *generator) generate() (*Result, error) {
	f := jen.NewFile("main")
	f.HeaderComment("Code generated by minipy. DO NOT EDIT.")

	if err := g.generateGlobals(f); err != nil {
		return nil, err
	}

	f.Func().Id("main").Params().Block(
		jen.Id(goFuncName("main")).Call(),
	)
	f.Line()

	for _, fn := range g.prog.Functions {
		code, err := g.generateFunction(fn)
		if err != nil {
			return nil, fmt.Errorf("function %s: %w", fn.Name, err)
		}
		f.Add(code)
		f.Line()
	}

	generateHelpers(f)

	buf := &bytes.Buffer{}
	if err := f.Render(buf); err != nil {
		return nil, fmt.Errorf("rendering: %w", err)
	}

	return &Result{
		Code:     buf.String(),
		Warnings: g.warnings,
	}, nil
}

// generateGlobals declares one slice per layout array and fills them in
// init, after every func they refer to exists.
func (g *generator) generateGlobals(f *jen.File) error {
	globals := g.prog.Globals()
	if len(globals) == 0 {
		return nil
	}

	defs := make([]jen.Code, 0, len(globals))
	inits := make([]jen.Code, 0, len(globals))
	for _, a := range globals {
		elems := make([]jen.Code, 0, len(a.Elems))
		for _, e := range a.Elems {
			if !e.IsLabel() {
				elems = append(elems, jen.Lit(e.Num))
				continue
			}
			name, ok := g.funcNames[e.Label]
			if !ok {
				return fmt.Errorf("%s: label %s is not a function", a.Name, e.Label)
			}
			elems = append(elems, jen.Id(name))
		}
		defs = append(defs, jen.Id(globalName(a.Name)).Index().Interface())
		inits = append(inits, jen.Id(globalName(a.Name)).Op("=").Index().Interface().Values(elems...))
	}

	f.Var().Defs(defs...)
	f.Line()
	f.Func().Id("init").Params().Block(inits...)
	f.Line()
	return nil
}

func (g *generator) generateFunction(fn *ir.Function) (jen.Code, error) {
	blocks := make([]*ir.BasicBlock, 0, len(fn.Blocks))
	for _, name := range fn.Blocks {
		b := g.prog.Block(name)
		if b == nil {
			return nil, fmt.Errorf("block %s does not exist", name)
		}
		blocks = append(blocks, b)
	}

	targets := map[string]bool{}
	for _, b := range blocks {
		for _, s := range b.Successors() {
			targets[s] = true
		}
	}
	for _, name := range unreachable(fn.Entry, blocks) {
		g.warnings = append(g.warnings, fmt.Sprintf("%s: block %s is unreachable", fn.Name, name))
	}

	body := []jen.Code{}
	for i, reg := range registers(fn, blocks) {
		if i < len(fn.Params) {
			body = append(body, jen.Var().Id(regName(reg)).Interface().Op("=").Id("arg").Call(jen.Id("args"), jen.Lit(i)))
		} else {
			body = append(body, jen.Var().Id(regName(reg)).Interface())
		}
		body = append(body, jen.Id("_").Op("=").Id(regName(reg)))
	}

	for _, b := range blocks {
		stmts := make([]jen.Code, 0, len(b.Statements)+1)
		for _, s := range b.Statements {
			code, err := g.statement(s)
			if err != nil {
				return nil, fmt.Errorf("block %s: %w", b.Name, err)
			}
			stmts = append(stmts, code)
		}
		if b.Terminator == nil {
			return nil, fmt.Errorf("block %s has no terminator", b.Name)
		}
		stmts = append(stmts, terminator(b.Terminator)...)

		if targets[b.Name] {
			body = append(body, jen.Id(labelName(b.Name)).Op(":"))
		} else {
			body = append(body, jen.Comment(b.Name))
		}
		body = append(body, stmts...)
	}

	return jen.Func().Id(g.funcNames[fn.Name]).
		Params(jen.Id("args").Op("...").Interface()).
		Interface().
		Block(body...), nil
}

func (g *generator) statement(s ir.Statement) (jen.Code, error) {
	switch s := s.(type) {
	case ir.Assign:
		value, err := g.expression(s.Value)
		if err != nil {
			return nil, err
		}
		return jen.Id(regName(s.Dest.Name)).Op("=").Add(value), nil
	case ir.Store:
		return jen.Id("setelt").Call(operand(s.Base), jen.Lit(int64(0)), operand(s.Value)), nil
	case ir.SetElement:
		return jen.Id("setelt").Call(operand(s.Base), operand(s.Index), operand(s.Value)), nil
	case ir.Print:
		return jen.Qual("fmt", "Println").Call(operand(s.Value)), nil
	}
	return nil, fmt.Errorf("unsupported statement type: %T", s)
}

func (g *generator) expression(e ir.Expression) (*jen.Statement, error) {
	switch e := e.(type) {
	case ir.Const:
		return operand(e), nil
	case ir.Var:
		return operand(e), nil
	case ir.Operation:
		return jen.Id("binop").Call(operand(e.Left), jen.Lit(e.Op), operand(e.Right)), nil
	case ir.Call:
		args := []jen.Code{operand(e.Callee), operand(e.Receiver)}
		for _, a := range e.Args {
			args = append(args, operand(a))
		}
		return jen.Id("call").Call(args...), nil
	case ir.Alloc:
		return jen.Id("alloc").Call(jen.Lit(int(e.Size))), nil
	case ir.GetElement:
		return jen.Id("getelt").Call(operand(e.Base), operand(e.Index)), nil
	case ir.Load:
		return jen.Id("getelt").Call(operand(e.Base), jen.Lit(int64(0))), nil
	case ir.Phi:
		return nil, fmt.Errorf("phi %s must be removed before code generation", e)
	}
	return nil, fmt.Errorf("unsupported expression type: %T", e)
}

func terminator(t ir.ControlTransfer) []jen.Code {
	switch t := t.(type) {
	case ir.If:
		return []jen.Code{
			jen.If(jen.Id("truthy").Call(operand(t.Cond))).Block(
				jen.Goto().Id(labelName(t.Then)),
			),
			jen.Goto().Id(labelName(t.Else)),
		}
	case ir.Jump:
		return []jen.Code{jen.Goto().Id(labelName(t.Target))}
	case ir.Return:
		return []jen.Code{jen.Return(operand(t.Value))}
	case ir.Fail:
		return []jen.Code{jen.Panic(jen.Lit(t.Message))}
	}
	return []jen.Code{jen.Panic(jen.Lit(fmt.Sprintf("unsupported terminator %T", t)))}
}

func operand(o ir.Operand) *jen.Statement {
	switch o := o.(type) {
	case ir.Const:
		return jen.Lit(o.Value)
	case ir.Var:
		return jen.Id(regName(o.Name))
	case *ir.Array:
		return jen.Id(globalName(o.Name))
	}
	return jen.Nil()
}

// registers lists every register fn touches: parameters first, then
// locals, temporaries, and any other name in order of appearance.
func registers(fn *ir.Function, blocks []*ir.BasicBlock) []string {
	seen := map[string]bool{}
	var out []string
	add := func(name string) {
		if !seen[name] {
			seen[name] = true
			out = append(out, name)
		}
	}
	for _, list := range [][]string{fn.Params, fn.Locals, fn.Temps} {
		for _, name := range list {
			add(name)
		}
	}
	for _, b := range blocks {
		for _, s := range b.Statements {
			for _, v := range statementVars(s) {
				add(v.Name)
			}
		}
		if t, ok := b.Terminator.(ir.If); ok {
			addValue(add, t.Cond)
		}
		if t, ok := b.Terminator.(ir.Return); ok {
			addValue(add, t.Value)
		}
	}
	return out
}

func statementVars(s ir.Statement) []ir.Var {
	var vars []ir.Var
	collect := func(ops ...ir.Operand) {
		for _, o := range ops {
			if v, ok := o.(ir.Var); ok {
				vars = append(vars, v)
			}
		}
	}
	switch s := s.(type) {
	case ir.Assign:
		collect(s.Dest)
		switch e := s.Value.(type) {
		case ir.Var:
			collect(e)
		case ir.Operation:
			collect(e.Left, e.Right)
		case ir.Call:
			collect(e.Callee, e.Receiver)
			for _, a := range e.Args {
				collect(a)
			}
		case ir.GetElement:
			collect(e.Base, e.Index)
		case ir.Load:
			collect(e.Base)
		}
	case ir.Store:
		collect(s.Base, s.Value)
	case ir.SetElement:
		collect(s.Base, s.Index, s.Value)
	case ir.Print:
		collect(s.Value)
	}
	return vars
}

func addValue(add func(string), v ir.Value) {
	if v, ok := v.(ir.Var); ok {
		add(v.Name)
	}
}

// unreachable returns the blocks that cannot be reached from entry.
func unreachable(entry string, blocks []*ir.BasicBlock) []string {
	byName := make(map[string]*ir.BasicBlock, len(blocks))
	for _, b := range blocks {
		byName[b.Name] = b
	}
	reached := map[string]bool{}
	work := []string{entry}
	for len(work) > 0 {
		name := work[len(work)-1]
		work = work[:len(work)-1]
		if reached[name] {
			continue
		}
		reached[name] = true
		if b, ok := byName[name]; ok {
			work = append(work, b.Successors()...)
		}
	}
	var out []string
	for _, b := range blocks {
		if !reached[b.Name] {
			out = append(out, b.Name)
		}
	}
	return out
}

func goFuncName(name string) string {
	if name == "main" {
		return "entry"
	}
	return "m_" + name
}

func regName(name string) string    { return "r_" + name }
func labelName(name string) string  { return "L_" + name }
func globalName(name string) string { return "g_" + name }
