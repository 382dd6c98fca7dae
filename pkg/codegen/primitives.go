// This file contains the runtime primitives every generated program carries.
package codegen

import (
	"github.com/dave/jennifer/jen"
)

// Objects and layout arrays are []interface{}; numbers are int64; code
// labels are funcs of type func(...interface{}) interface{}.

func object() *jen.Statement {
	return jen.Index().Interface()
}

func generateHelpers(f *jen.File) {
	// arg returns the i'th argument, or 0 when the caller passed fewer.
	f.Func().Id("arg").Params(jen.Id("args").Index().Interface(), jen.Id("i").Int()).Interface().Block(
		jen.If(jen.Id("i").Op("<").Len(jen.Id("args"))).Block(
			jen.Return(jen.Id("args").Index(jen.Id("i"))),
		),
		jen.Return(jen.Lit(int64(0))),
	)
	f.Line()

	f.Func().Id("alloc").Params(jen.Id("n").Int()).Interface().Block(
		jen.Id("obj").Op(":=").Make(object(), jen.Id("n")),
		jen.For(jen.Id("i").Op(":=").Range().Id("obj")).Block(
			jen.Id("obj").Index(jen.Id("i")).Op("=").Lit(int64(0)),
		),
		jen.Return(jen.Id("obj")),
	)
	f.Line()

	f.Func().Id("getelt").Params(jen.List(jen.Id("base"), jen.Id("index")).Interface()).Interface().Block(
		jen.Return(jen.Id("base").Assert(object()).Index(jen.Id("index").Assert(jen.Int64()))),
	)
	f.Line()

	f.Func().Id("setelt").Params(jen.List(jen.Id("base"), jen.Id("index"), jen.Id("value")).Interface()).Block(
		jen.Id("base").Assert(object()).Index(jen.Id("index").Assert(jen.Int64())).Op("=").Id("value"),
	)
	f.Line()

	f.Func().Id("call").Params(jen.Id("fn").Interface(), jen.Id("args").Op("...").Interface()).Interface().Block(
		jen.Return(
			jen.Id("fn").Assert(jen.Func().Params(jen.Op("...").Interface()).Interface()).Call(jen.Id("args").Op("...")),
		),
	)
	f.Line()

	f.Func().Id("truthy").Params(jen.Id("v").Interface()).Bool().Block(
		jen.Switch(jen.Id("v").Op(":=").Id("v").Assert(jen.Type())).Block(
			jen.Case(jen.Nil()).Block(jen.Return(jen.False())),
			jen.Case(jen.Int64()).Block(jen.Return(jen.Id("v").Op("!=").Lit(0))),
		),
		jen.Return(jen.True()),
	)
	f.Line()

	// same compares objects by identity and numbers by value.
	f.Func().Id("same").Params(jen.List(jen.Id("l"), jen.Id("r")).Interface()).Bool().Block(
		jen.List(jen.Id("a"), jen.Id("aok")).Op(":=").Id("l").Assert(object()),
		jen.List(jen.Id("b"), jen.Id("bok")).Op(":=").Id("r").Assert(object()),
		jen.If(jen.Id("aok").Op("&&").Id("bok")).Block(
			jen.Return(jen.Len(jen.Id("a")).Op(">").Lit(0).Op("&&").Len(jen.Id("b")).Op(">").Lit(0).
				Op("&&").Op("&").Id("a").Index(jen.Lit(0)).Op("==").Op("&").Id("b").Index(jen.Lit(0))),
		),
		jen.If(jen.Id("aok").Op("||").Id("bok")).Block(jen.Return(jen.False())),
		jen.Return(jen.Id("l").Op("==").Id("r")),
	)
	f.Line()

	f.Func().Id("boolInt").Params(jen.Id("b").Bool()).Int64().Block(
		jen.If(jen.Id("b")).Block(jen.Return(jen.Lit(1))),
		jen.Return(jen.Lit(0)),
	)
	f.Line()

	arith := func(op string) jen.Code {
		return jen.Case(jen.Lit(op)).Block(jen.Return(jen.Id("a").Op(op).Id("b")))
	}
	compare := func(op string) jen.Code {
		return jen.Case(jen.Lit(op)).Block(jen.Return(jen.Id("boolInt").Call(jen.Id("a").Op(op).Id("b"))))
	}
	f.Func().Id("binop").Params(jen.Id("l").Interface(), jen.Id("op").String(), jen.Id("r").Interface()).Interface().Block(
		jen.Switch(jen.Id("op")).Block(
			jen.Case(jen.Lit("==")).Block(jen.Return(jen.Id("boolInt").Call(jen.Id("same").Call(jen.Id("l"), jen.Id("r"))))),
			jen.Case(jen.Lit("!=")).Block(jen.Return(jen.Id("boolInt").Call(jen.Op("!").Id("same").Call(jen.Id("l"), jen.Id("r"))))),
		),
		jen.List(jen.Id("a"), jen.Id("b")).Op(":=").List(jen.Id("l").Assert(jen.Int64()), jen.Id("r").Assert(jen.Int64())),
		jen.Switch(jen.Id("op")).Block(
			arith("+"), arith("-"), arith("*"), arith("/"),
			compare("<"), compare(">"),
		),
		jen.Panic(jen.Lit("unknown operator ").Op("+").Id("op")),
	)
	f.Line()
}
