package ir

import (
	"fmt"
	"strings"
)

func (m *Module) String() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "module %s\n", m.Name)
	for _, f := range m.SortedFuncs() {
		sb.WriteString("\n")
		f.write(&sb)
	}
	return sb.String()
}

func (f *Func) String() string {
	var sb strings.Builder
	f.write(&sb)
	return sb.String()
}

func (f *Func) write(sb *strings.Builder) {
	params := make([]string, len(f.Params))
	for i, p := range f.Params {
		params[i] = fmt.Sprintf("%s %s", p.Typ, p)
	}
	var attrs string
	if f.Intrinsic { attrs += " intrinsic" }
	if f.InlineHint { attrs += " inline" }
	if f.CCompatible { attrs += " ccc" }

	if f.IsDecl() {
		fmt.Fprintf(sb, "declare%s @%s(%s) %s\n", attrs, f.Name, strings.Join(params, ", "), f.ReturnType)
		return
	}
	fmt.Fprintf(sb, "func%s @%s(%s) %s {\n", attrs, f.Name, strings.Join(params, ", "), f.ReturnType)
	for _, b := range f.Blocks {
		fmt.Fprintf(sb, "%s:\n", b.Label)
		for _, instr := range b.Instructions {
			sb.WriteString("\t")
			sb.WriteString(instr.String())
			sb.WriteString("\n")
		}
	}
	sb.WriteString("}\n")
}

func (instr *Instruction) String() string {
	var sb strings.Builder
	if instr.Result != nil {
		fmt.Fprintf(&sb, "%s = ", instr.Result)
	}
	sb.WriteString(instr.Op.String())
	if instr.Typ != nil && !instr.Typ.IsVoid() {
		fmt.Fprintf(&sb, " %s", instr.Typ)
	}
	if instr.Elem != nil {
		fmt.Fprintf(&sb, " <%s>", instr.Elem)
	}

	switch instr.Op {
	case OpPhi:
		parts := make([]string, len(instr.Args))
		for i, a := range instr.Args {
			parts[i] = fmt.Sprintf("[%s, %s]", instr.Targets[i], a)
		}
		return sb.String() + " " + strings.Join(parts, ", ")
	case OpSwitch:
		fmt.Fprintf(&sb, " %s, default %s", instr.Args[0], instr.Targets[0])
		for i, c := range instr.Cases {
			fmt.Fprintf(&sb, ", %d %s", c, instr.Targets[i+1])
		}
		return sb.String()
	}

	parts := make([]string, 0, len(instr.Args)+len(instr.Targets))
	for _, a := range instr.Args {
		parts = append(parts, a.String())
	}
	for _, t := range instr.Targets {
		parts = append(parts, t.String())
	}
	if len(parts) > 0 {
		sb.WriteString(" ")
		sb.WriteString(strings.Join(parts, ", "))
	}
	return sb.String()
}
