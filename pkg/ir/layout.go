package ir

import "github.com/chazu/minipy/pkg/ast"

// Object slots reserved ahead of the fields.
const (
	SlotMethods = 0 // Method map of the object's class
	SlotFields  = 1 // Field map of the object's class
	FirstField  = 2
)

// Layout holds the object layout tables for a set of classes. It is built
// once, before any statement is lowered, and never changes afterwards.
type Layout struct {
	classes     []*ast.Class
	classIndex  map[string]int
	fieldSlot   map[string]int
	methodSlot  map[string]int
	fieldNames  []string
	methodNames []string
	vtables     []*Array
	fieldMaps   []*Array
	methodMaps  []*Array
}

// BuildLayout computes vtables, field maps and method maps for classes.
//
// Field and method names get global ordinals in class order, then
// declaration order, the first time they are seen. A class's field map
// translates a field ordinal to the physical slot of that field in the
// class's objects (0 when the class lacks it); its method map translates a
// method ordinal to the label implementing it (0 when the class lacks it).
func BuildLayout(classes []*ast.Class) *Layout {
	l := &Layout{
		classes:    classes,
		classIndex: make(map[string]int),
		fieldSlot:  make(map[string]int),
		methodSlot: make(map[string]int),
	}

	for i, c := range classes {
		if _, dup := l.classIndex[c.Name]; !dup {
			l.classIndex[c.Name] = i
		}
		for _, f := range c.Fields {
			if _, ok := l.fieldSlot[f]; !ok {
				l.fieldSlot[f] = len(l.fieldNames)
				l.fieldNames = append(l.fieldNames, f)
			}
		}
		for _, m := range c.Methods {
			if _, ok := l.methodSlot[m.Name]; !ok {
				l.methodSlot[m.Name] = len(l.methodNames)
				l.methodNames = append(l.methodNames, m.Name)
			}
		}
	}

	for _, c := range classes {
		vtbl := &Array{Name: "vtbl" + c.Name, Elems: make([]Elem, 0, len(c.Methods))}
		for _, m := range c.Methods {
			vtbl.Elems = append(vtbl.Elems, LabelElem(c.Label(m.Name)))
		}
		l.vtables = append(l.vtables, vtbl)

		fields := &Array{Name: "fields" + c.Name, Elems: make([]Elem, len(l.fieldNames))}
		for i := range fields.Elems {
			fields.Elems[i] = NumElem(0)
		}
		for i, f := range c.Fields {
			fields.Elems[l.fieldSlot[f]] = NumElem(int64(FirstField + i))
		}
		l.fieldMaps = append(l.fieldMaps, fields)

		methods := &Array{Name: "methods" + c.Name, Elems: make([]Elem, len(l.methodNames))}
		for i := range methods.Elems {
			methods.Elems[i] = NumElem(0)
		}
		for j, m := range c.Methods {
			methods.Elems[l.methodSlot[m.Name]] = vtbl.Elems[j]
		}
		l.methodMaps = append(l.methodMaps, methods)
	}

	return l
}

// FieldSlot returns the global ordinal of a field name.
func (l *Layout) FieldSlot(name string) (int, bool) {
	slot, ok := l.fieldSlot[name]
	return slot, ok
}

// MethodSlot returns the global ordinal of a method name.
func (l *Layout) MethodSlot(name string) (int, bool) {
	slot, ok := l.methodSlot[name]
	return slot, ok
}

// FieldNames returns field names in ordinal order.
func (l *Layout) FieldNames() []string {
	return append([]string(nil), l.fieldNames...)
}

// MethodNames returns method names in ordinal order.
func (l *Layout) MethodNames() []string {
	return append([]string(nil), l.methodNames...)
}

// HasClass reports whether a class with the given name was declared.
func (l *Layout) HasClass(name string) bool {
	_, ok := l.classIndex[name]
	return ok
}

// ObjectSize returns the number of slots in an object of the named class.
func (l *Layout) ObjectSize(class string) int {
	i, ok := l.classIndex[class]
	if !ok {
		return 0
	}
	return FirstField + len(l.classes[i].Fields)
}

// Vtable returns the vtable of the named class, or nil.
func (l *Layout) Vtable(class string) *Array {
	if i, ok := l.classIndex[class]; ok {
		return l.vtables[i]
	}
	return nil
}

// FieldMap returns the field map of the named class, or nil.
func (l *Layout) FieldMap(class string) *Array {
	if i, ok := l.classIndex[class]; ok {
		return l.fieldMaps[i]
	}
	return nil
}

// MethodMap returns the method map of the named class, or nil.
func (l *Layout) MethodMap(class string) *Array {
	if i, ok := l.classIndex[class]; ok {
		return l.methodMaps[i]
	}
	return nil
}

// apply copies the layout tables into p.
func (l *Layout) apply(p *Program) {
	p.Vtables = append([]*Array{}, l.vtables...)
	p.FieldMaps = append([]*Array{}, l.fieldMaps...)
	p.MethodMaps = append([]*Array{}, l.methodMaps...)
	p.FieldNameToSlot = make(map[string]int, len(l.fieldSlot))
	for k, v := range l.fieldSlot {
		p.FieldNameToSlot[k] = v
	}
	p.MethodNameToSlot = make(map[string]int, len(l.methodSlot))
	for k, v := range l.methodSlot {
		p.MethodNameToSlot[k] = v
	}
}
