package ir

import (
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"github.com/hashicorp/go-multierror"

	"github.com/chazu/minipy/pkg/ast"
	"github.com/chazu/minipy/pkg/lexer"
	"github.com/chazu/minipy/pkg/parser"
)

func mustParse(t *testing.T, src string) *ast.Program {
	t.Helper()
	prog, err := parser.Parse(src)
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	return prog
}

func lowerSource(t *testing.T, src string) *Program {
	t.Helper()
	prog, err := Lower(mustParse(t, src))
	if err != nil {
		t.Fatalf("Lower() error = %v", err)
	}
	return prog
}

func elems(a *Array) []string {
	out := make([]string, len(a.Elems))
	for i, e := range a.Elems {
		out[i] = e.String()
	}
	return out
}

func blockNames(p *Program) []string {
	out := make([]string, len(p.Blocks))
	for i, b := range p.Blocks {
		out[i] = b.Name
	}
	return out
}

func statements(b *BasicBlock) []string {
	out := make([]string, len(b.Statements))
	for i, s := range b.Statements {
		out[i] = s.String()
	}
	return out
}

func TestBuildLayout(t *testing.T) {
	src := `class ListNode [
    fields val, next
    method getNext() with locals:
        return &this.next
    method getVal() with locals:
        return &this.val
]
class Stack [
    fields list
    method push(v) with locals:
        return 0
    method pop() with locals:
        return 0
]
class Stacker [
    fields
    method do(stk) with locals:
        return 0
]
main with:
`
	layout := BuildLayout(mustParse(t, src).Classes)

	wantFields := map[string]int{"val": 0, "next": 1, "list": 2}
	for name, want := range wantFields {
		if got, ok := layout.FieldSlot(name); !ok || got != want {
			t.Errorf("FieldSlot(%q) = %d, %v, want %d", name, got, ok, want)
		}
	}
	wantMethods := map[string]int{"getNext": 0, "getVal": 1, "push": 2, "pop": 3, "do": 4}
	for name, want := range wantMethods {
		if got, ok := layout.MethodSlot(name); !ok || got != want {
			t.Errorf("MethodSlot(%q) = %d, %v, want %d", name, got, ok, want)
		}
	}
	if _, ok := layout.FieldSlot("missing"); ok {
		t.Error("FieldSlot(missing) should not be found")
	}

	tests := []struct {
		array *Array
		want  []string
	}{
		{layout.Vtable("ListNode"), []string{"ListNodegetNext", "ListNodegetVal"}},
		{layout.Vtable("Stack"), []string{"Stackpush", "Stackpop"}},
		{layout.Vtable("Stacker"), []string{"Stackerdo"}},
		{layout.FieldMap("ListNode"), []string{"2", "3", "0"}},
		{layout.FieldMap("Stack"), []string{"0", "0", "2"}},
		{layout.FieldMap("Stacker"), []string{"0", "0", "0"}},
		{layout.MethodMap("Stack"), []string{"0", "0", "Stackpush", "Stackpop", "0"}},
		{layout.MethodMap("Stacker"), []string{"0", "0", "0", "0", "Stackerdo"}},
	}
	for _, tt := range tests {
		t.Run(tt.array.Name, func(t *testing.T) {
			if got := elems(tt.array); !reflect.DeepEqual(got, tt.want) {
				t.Errorf("%s = %v, want %v", tt.array.Name, got, tt.want)
			}
		})
	}

	if got := layout.ObjectSize("ListNode"); got != 4 {
		t.Errorf("ObjectSize(ListNode) = %d, want 4", got)
	}
	if got := layout.ObjectSize("Stacker"); got != 2 {
		t.Errorf("ObjectSize(Stacker) = %d, want 2", got)
	}
	if layout.HasClass("Queue") || layout.Vtable("Queue") != nil {
		t.Error("undeclared class should not resolve")
	}
}

func TestBuildLayout_SharedFieldNames(t *testing.T) {
	classes := []*ast.Class{
		{Name: "A", Fields: []string{"x", "y"}, Methods: []*ast.Method{}},
		{Name: "B", Fields: []string{"y", "z"}, Methods: []*ast.Method{}},
	}
	layout := BuildLayout(classes)

	if got := layout.FieldNames(); !reflect.DeepEqual(got, []string{"x", "y", "z"}) {
		t.Errorf("FieldNames() = %v", got)
	}
	if got := elems(layout.FieldMap("A")); !reflect.DeepEqual(got, []string{"2", "3", "0"}) {
		t.Errorf("fieldsA = %v", got)
	}
	if got := elems(layout.FieldMap("B")); !reflect.DeepEqual(got, []string{"0", "2", "3"}) {
		t.Errorf("fieldsB = %v", got)
	}
}

func TestBuildLayout_Deterministic(t *testing.T) {
	src := readProgram(t, "complex_stack")
	a := lowerSource(t, src)
	b := lowerSource(t, src)
	if a.String() != b.String() {
		t.Error("lowering the same program twice produced different listings")
	}
}

func TestLowerStatement_FlattensNestedOperands(t *testing.T) {
	b := NewBuilder()
	b.OpenBlock("foo")
	l := NewLowerer(BuildLayout(nil), b)

	stmt, err := parser.New(lexer.New("x = (5 / (3+4))")).ParseStatement()
	if err != nil {
		t.Fatalf("ParseStatement() error = %v", err)
	}
	if err := l.LowerStatement(stmt); err != nil {
		t.Fatalf("LowerStatement() error = %v", err)
	}

	want := []Statement{
		Assign{Dest: Var{Name: "tmp0"}, Value: Operation{Left: Const{Value: 3}, Op: "+", Right: Const{Value: 4}}},
		Assign{Dest: Var{Name: "x"}, Value: Operation{Left: Const{Value: 5}, Op: "/", Right: Var{Name: "tmp0"}}},
	}
	block := b.Current()
	if block.Name != "foo" {
		t.Fatalf("current block = %s, want foo", block.Name)
	}
	if !reflect.DeepEqual(block.Statements, want) {
		t.Errorf("statements = %v, want %v", statements(block), want)
	}
	if block.Closed() {
		t.Error("block should still be open")
	}
}

func TestLower_FirstExample(t *testing.T) {
	prog := lowerSource(t, readProgram(t, "first_example"))

	wantBlocks := []string{"main", "fail0", "ok0", "fail1", "ok1", "Am", "fail2", "ok2", "Bm"}
	if got := blockNames(prog); !reflect.DeepEqual(got, wantBlocks) {
		t.Fatalf("blocks = %v, want %v", got, wantBlocks)
	}

	main := prog.Block("main")
	wantMain := []string{
		"x = 0",
		"tmp0 = alloc(3)",
		"store(tmp0, @methodsA)",
		"setelt(tmp0, 1, @fieldsA)",
		"setelt(tmp0, 2, 0)",
		"x = tmp0",
		"tmp0 = getelt(x, 1)",
		"tmp1 = getelt(tmp0, 0)",
	}
	if got := statements(main); !reflect.DeepEqual(got, wantMain) {
		t.Errorf("main statements =\n%s\nwant\n%s", strings.Join(got, "\n"), strings.Join(wantMain, "\n"))
	}
	if got := main.Terminator; !reflect.DeepEqual(got, If{Cond: Var{Name: "tmp1"}, Then: "ok0", Else: "fail0"}) {
		t.Errorf("main terminator = %v", got)
	}
	if got := prog.Block("fail0").Terminator; !reflect.DeepEqual(got, Fail{Message: FailNoSuchField}) {
		t.Errorf("fail0 terminator = %v", got)
	}

	ok0 := prog.Block("ok0")
	wantOK0 := []string{"setelt(x, tmp1, 3)", "tmp0 = load(x)", "tmp1 = getelt(tmp0, 0)"}
	if got := statements(ok0); !reflect.DeepEqual(got, wantOK0) {
		t.Errorf("ok0 statements = %v, want %v", got, wantOK0)
	}

	ok1 := prog.Block("ok1")
	wantOK1 := []string{"tmp2 = call(tmp1, x)", "print(tmp2)"}
	if got := statements(ok1); !reflect.DeepEqual(got, wantOK1) {
		t.Errorf("ok1 statements = %v, want %v", got, wantOK1)
	}
	if got := ok1.Terminator; !reflect.DeepEqual(got, Return{Value: Const{Value: 0}}) {
		t.Errorf("ok1 terminator = %v", got)
	}
	if got := prog.Block("fail1").Terminator; !reflect.DeepEqual(got, Fail{Message: FailNoSuchMethod}) {
		t.Errorf("fail1 terminator = %v", got)
	}

	if got := prog.Block("ok2").Terminator.String(); got != "ret tmp2" {
		t.Errorf("ok2 terminator = %s", got)
	}
	if got := prog.Block("Bm").Terminator.String(); got != "ret 0" {
		t.Errorf("Bm terminator = %s", got)
	}

	if len(prog.Functions) != 3 {
		t.Fatalf("len(Functions) = %d, want 3", len(prog.Functions))
	}
	am := prog.Functions[1]
	if am.Name != "Am" || am.Entry != "Am" || !reflect.DeepEqual(am.Params, []string{"this"}) {
		t.Errorf("Functions[1] = %+v", am)
	}
	if got := prog.Functions[0].Temps; !reflect.DeepEqual(got, []string{"tmp0", "tmp1", "tmp2"}) {
		t.Errorf("main temps = %v", got)
	}
	if prog.FieldNameToSlot["y"] != 1 || prog.MethodNameToSlot["m"] != 0 {
		t.Errorf("slot maps = %v %v", prog.FieldNameToSlot, prog.MethodNameToSlot)
	}
}

func TestLower_ControlFlow(t *testing.T) {
	tests := []struct {
		name  string
		src   string
		want  map[string]string // block name -> terminator
		order []string
	}{
		{
			name: "if",
			src:  "main with x, c:\n  if c: {\n    x = 1\n  } else {\n    x = 2\n  }\n  print(x)\n",
			want: map[string]string{
				"main":  "if c then then0 else else0",
				"then0": "jump join0",
				"else0": "jump join0",
				"join0": "ret 0",
			},
			order: []string{"main", "then0", "else0", "join0"},
		},
		{
			name: "ifonly",
			src:  "main with x, c:\n  ifonly c: {\n    x = 1\n  }\n",
			want: map[string]string{
				"main":  "if c then then0 else join0",
				"then0": "jump join0",
				"join0": "ret 0",
			},
			order: []string{"main", "then0", "join0"},
		},
		{
			name: "while",
			src:  "main with x:\n  x = 3\n  while (x > 0): {\n    x = (x - 1)\n  }\n",
			want: map[string]string{
				"main":  "jump head0",
				"head0": "if tmp0 then body0 else exit0",
				"body0": "jump head0",
				"exit0": "ret 0",
			},
			order: []string{"main", "head0", "body0", "exit0"},
		},
		{
			name: "both arms return",
			src:  "main with c:\n  if c: {\n    return 1\n  } else {\n    return 2\n  }\n",
			want: map[string]string{
				"main":  "if c then then0 else else0",
				"then0": "ret 1",
				"else0": "ret 2",
				"join0": "ret 0",
			},
			order: []string{"main", "then0", "else0", "join0"},
		},
		{
			name: "code after return",
			src:  "main with:\n  return 1\n  print(2)\n",
			want: map[string]string{
				"main":  "ret 1",
				"dead0": "ret 0",
			},
			order: []string{"main", "dead0"},
		},
		{
			name: "nested loop in branch",
			src:  "main with x:\n  ifonly x: {\n    while x: {\n      x = 0\n    }\n  }\n",
			want: map[string]string{
				"main":  "if x then then0 else join0",
				"then0": "jump head1",
				"head1": "if x then body1 else exit1",
				"body1": "jump head1",
				"exit1": "jump join0",
				"join0": "ret 0",
			},
			order: []string{"main", "then0", "head1", "body1", "exit1", "join0"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			prog := lowerSource(t, tt.src)
			if got := blockNames(prog); !reflect.DeepEqual(got, tt.order) {
				t.Fatalf("blocks = %v, want %v", got, tt.order)
			}
			for name, want := range tt.want {
				if got := prog.Block(name).Terminator.String(); got != want {
					t.Errorf("%s terminator = %q, want %q", name, got, want)
				}
			}
		})
	}
}

func TestLower_WhileConditionInHeader(t *testing.T) {
	prog := lowerSource(t, "main with x:\n  while (x > 0): {\n    x = (x - 1)\n  }\n")
	if got := statements(prog.Block("head0")); !reflect.DeepEqual(got, []string{"tmp0 = x > 0"}) {
		t.Errorf("head0 statements = %v", got)
	}
	if got := statements(prog.Block("body0")); !reflect.DeepEqual(got, []string{"x = x - 1"}) {
		t.Errorf("body0 statements = %v", got)
	}
}

func TestLower_DeadCodeAfterReturn(t *testing.T) {
	prog := lowerSource(t, "main with:\n  return 1\n  print(2)\n")
	if got := statements(prog.Block("dead0")); !reflect.DeepEqual(got, []string{"print(2)"}) {
		t.Errorf("dead0 statements = %v", got)
	}
}

func TestLower_UnknownNames(t *testing.T) {
	t.Run("field", func(t *testing.T) {
		prog := lowerSource(t, "main with x:\n  print(&x.nope)\n")
		if got := prog.Block("main").Terminator; !reflect.DeepEqual(got, Fail{Message: FailNoSuchField}) {
			t.Errorf("main terminator = %v", got)
		}
		if got := statements(prog.Block("dead0")); !reflect.DeepEqual(got, []string{"tmp0 = getelt(x, 0)", "print(tmp0)"}) {
			t.Errorf("dead0 statements = %v", got)
		}
	})

	t.Run("method", func(t *testing.T) {
		prog := lowerSource(t, "main with x:\n  x = ^x.nope(1)\n")
		if got := prog.Block("main").Terminator; !reflect.DeepEqual(got, Fail{Message: FailNoSuchMethod}) {
			t.Errorf("main terminator = %v", got)
		}
		if got := statements(prog.Block("dead0")); !reflect.DeepEqual(got, []string{"x = 0"}) {
			t.Errorf("dead0 statements = %v", got)
		}
	})

	t.Run("class", func(t *testing.T) {
		_, err := Lower(mustParse(t, "main with x:\n  x = @Nope\n"))
		if err == nil || !strings.Contains(err.Error(), "Nope") {
			t.Errorf("Lower() error = %v, want undeclared class error", err)
		}
	})
}

func TestLower_TempsRestartPerStatement(t *testing.T) {
	prog := lowerSource(t, "main with x, y:\n  x = ((1 + 2) * (3 + 4))\n  y = ((5 + 6) - 7)\n")
	want := []string{
		"x = 0",
		"y = 0",
		"tmp0 = 1 + 2",
		"tmp1 = 3 + 4",
		"x = tmp0 * tmp1",
		"tmp0 = 5 + 6",
		"y = tmp0 - 7",
	}
	if got := statements(prog.Block("main")); !reflect.DeepEqual(got, want) {
		t.Errorf("main statements = %v, want %v", got, want)
	}
}

func TestLower_LabelCollision(t *testing.T) {
	src := "class A [\n  fields\n  method bc() with locals:\n    return 0\n]\n" +
		"class Ab [\n  fields\n  method c() with locals:\n    return 0\n]\nmain with:\n"
	_, err := Lower(mustParse(t, src))
	if err == nil || !strings.Contains(err.Error(), "duplicate block name Abc") {
		t.Errorf("Lower() error = %v, want duplicate block name", err)
	}
}

func TestLower_Examples(t *testing.T) {
	files, err := filepath.Glob(filepath.Join("..", "..", "testdata", "programs", "*.mpy"))
	if err != nil {
		t.Fatal(err)
	}
	for _, file := range files {
		t.Run(filepath.Base(file), func(t *testing.T) {
			data, err := os.ReadFile(file)
			if err != nil {
				t.Fatal(err)
			}
			prog := lowerSource(t, string(data))
			for _, b := range prog.Blocks {
				if !b.Closed() {
					t.Errorf("block %s left open", b.Name)
				}
			}
			if prog.Functions[0].Name != "main" {
				t.Errorf("first function = %s, want main", prog.Functions[0].Name)
			}
		})
	}
}

func TestBuilder(t *testing.T) {
	b := NewBuilder()
	if b.IsOpen() || b.Current() != nil {
		t.Fatal("new builder should have no current block")
	}

	b.OpenBlock("entry")
	b.Emit(Print{Value: Const{Value: 1}})
	done := b.Terminate(Jump{Target: "next"})
	if done.Name != "entry" || len(done.Statements) != 1 || !done.Closed() {
		t.Errorf("Terminate() returned %+v", done)
	}
	if b.IsOpen() {
		t.Error("builder should be closed after Terminate")
	}

	next := b.OpenBlock("next")
	if b.Current() != next || !b.IsOpen() {
		t.Error("OpenBlock should make the new block current")
	}
	if got := len(b.Blocks()); got != 2 {
		t.Errorf("len(Blocks()) = %d, want 2", got)
	}
}

func TestBuilder_PanicsOnClosedBlock(t *testing.T) {
	tests := []struct {
		name string
		fn   func(b *Builder)
	}{
		{"emit without block", func(b *Builder) { b.Emit(Print{Value: Const{Value: 1}}) }},
		{"emit after terminate", func(b *Builder) {
			b.OpenBlock("a")
			b.Terminate(Return{Value: Const{Value: 0}})
			b.Emit(Print{Value: Const{Value: 1}})
		}},
		{"terminate twice", func(b *Builder) {
			b.OpenBlock("a")
			b.Terminate(Return{Value: Const{Value: 0}})
			b.Terminate(Fail{Message: "again"})
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			defer func() {
				if recover() == nil {
					t.Error("expected panic")
				}
			}()
			tt.fn(NewBuilder())
		})
	}
}

func TestVerify_CollectsAllViolations(t *testing.T) {
	prog := &Program{
		Vtables: []*Array{{Name: "vtblX", Elems: []Elem{LabelElem("Xm")}}},
		Functions: []*Function{
			{Name: "main", Entry: "nope"},
		},
		Blocks: []*BasicBlock{
			{Name: "a"},
			{Name: "b", Terminator: Jump{Target: "zzz"}},
			{Name: "b", Terminator: Return{Value: Const{Value: 0}}},
		},
	}

	err := Verify(prog)
	var merr *multierror.Error
	if !errors.As(err, &merr) {
		t.Fatalf("Verify() error = %v, want *multierror.Error", err)
	}
	if len(merr.Errors) != 5 {
		t.Errorf("len(Errors) = %d, want 5: %v", len(merr.Errors), merr.Errors)
	}
	for _, want := range []string{"duplicate block name b", "block a has no terminator", "unknown block zzz", "label Xm", "entry block nope"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("Verify() error missing %q:\n%v", want, err)
		}
	}
}

func TestVerify_OK(t *testing.T) {
	prog := lowerSource(t, readProgram(t, "simple_stack"))
	if err := Verify(prog); err != nil {
		t.Errorf("Verify() error = %v", err)
	}
}

func TestProgramString(t *testing.T) {
	out := lowerSource(t, readProgram(t, "first_example")).String()
	for _, want := range []string{
		"data:\n",
		"  global array vtblA: { Am }\n",
		"  global array fieldsA: { 2, 0 }\n",
		"  global array fieldsB: { 0, 2 }\n",
		"  global array methodsB: { Bm }\n",
		"  # fields: x=0 y=1\n",
		"code:\n",
		"main:\n  x = 0\n  tmp0 = alloc(3)\n",
		"fail0:\n  fail NoSuchField\n",
		"Bm:\n  ret 0\n",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("String() missing %q in:\n%s", want, out)
		}
	}
}

func readProgram(t *testing.T, name string) string {
	t.Helper()
	data, err := os.ReadFile(filepath.Join("..", "..", "testdata", "programs", name+".mpy"))
	if err != nil {
		t.Fatalf("reading %s: %v", name, err)
	}
	return string(data)
}
