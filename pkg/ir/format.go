package ir

import (
	"fmt"
	"sort"
	"strings"
)

// String renders the program as a listing: layout tables under "data:",
// then every block under "code:".
func (p *Program) String() string {
	var sb strings.Builder

	sb.WriteString("data:\n")
	for _, a := range p.Globals() {
		elems := make([]string, len(a.Elems))
		for i, e := range a.Elems {
			elems[i] = e.String()
		}
		fmt.Fprintf(&sb, "  global array %s: { %s }\n", a.Name, strings.Join(elems, ", "))
	}
	writeSlots(&sb, "fields", p.FieldNameToSlot)
	writeSlots(&sb, "methods", p.MethodNameToSlot)

	sb.WriteString("\ncode:\n")
	for i, b := range p.Blocks {
		if i > 0 {
			sb.WriteString("\n")
		}
		sb.WriteString(b.String())
	}
	return sb.String()
}

// String renders one block: its label, statements, and terminator.
func (b *BasicBlock) String() string {
	var sb strings.Builder
	sb.WriteString(b.Name + ":\n")
	for _, s := range b.Statements {
		sb.WriteString("  " + s.String() + "\n")
	}
	if b.Terminator != nil {
		sb.WriteString("  " + b.Terminator.String() + "\n")
	}
	return sb.String()
}

func writeSlots(sb *strings.Builder, kind string, slots map[string]int) {
	if len(slots) == 0 {
		return
	}
	names := make([]string, 0, len(slots))
	for name := range slots {
		names = append(names, name)
	}
	sort.Slice(names, func(i, j int) bool { return slots[names[i]] < slots[names[j]] })
	parts := make([]string, len(names))
	for i, name := range names {
		parts[i] = fmt.Sprintf("%s=%d", name, slots[name])
	}
	fmt.Fprintf(sb, "  # %s: %s\n", kind, strings.Join(parts, " "))
}
