package cli

import (
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"
	"strings"

	"golang.org/x/term"
)

type Value interface {
	String() string
	Set(string) error
	Get() any
}

type stringValue struct{ p *string }

func (v *stringValue) Set(s string) error { *v.p = s; return nil }
func (v *stringValue) String() string     { return *v.p }
func (v *stringValue) Get() any           { return *v.p }

type boolValue struct{ p *bool }

func (v *boolValue) Set(s string) error {
	val, err := strconv.ParseBool(s)
	if err != nil && s != "" {
		return fmt.Errorf("invalid boolean value '%s': %w", s, err)
	}
	*v.p = val || s == ""
	return nil
}
func (v *boolValue) String() string { return strconv.FormatBool(*v.p) }
func (v *boolValue) Get() any       { return *v.p }

type intValue struct{ p *int }

func (v *intValue) Set(s string) error {
	n, err := strconv.Atoi(s)
	if err != nil {
		return fmt.Errorf("invalid integer value '%s': %w", s, err)
	}
	*v.p = n
	return nil
}
func (v *intValue) String() string { return strconv.Itoa(*v.p) }
func (v *intValue) Get() any       { return *v.p }

type listValue struct{ p *[]string }

func (v *listValue) Set(s string) error { *v.p = append(*v.p, s); return nil }
func (v *listValue) String() string     { return strings.Join(*v.p, ", ") }
func (v *listValue) Get() any           { return *v.p }

type Flag struct {
	Name         string
	Shorthand    string
	Usage        string
	Value        Value
	DefValue     string
	ExpectedType string
}

type FlagGroup struct {
	Name                 string
	Description          string
	Flags                []FlagGroupEntry
	GroupType            string
	AvailableFlagsHeader string
}

// FlagGroupEntry backs a -<Prefix><Name> / -<Prefix>no-<Name> pair.
type FlagGroupEntry struct {
	Name     string
	Prefix   string
	Usage    string
	Enabled  *bool
	Disabled *bool
}

type FlagSet struct {
	name       string
	flags      map[string]*Flag
	shorthands map[string]*Flag
	args       []string
	flagGroups []FlagGroup
}

func NewFlagSet(name string) *FlagSet {
	return &FlagSet{
		name:       name,
		flags:      make(map[string]*Flag),
		shorthands: make(map[string]*Flag),
	}
}

func (f *FlagSet) Args() []string { return f.args }

func (f *FlagSet) Lookup(name string) *Flag { return f.flags[name] }

func (f *FlagSet) String(p *string, name, shorthand, value, usage, expectedType string) {
	*p = value
	f.Var(&stringValue{p}, name, shorthand, usage, value, expectedType)
}

func (f *FlagSet) Bool(p *bool, name, shorthand string, value bool, usage string) {
	*p = value
	f.Var(&boolValue{p}, name, shorthand, usage, strconv.FormatBool(value), "")
}

func (f *FlagSet) Int(p *int, name, shorthand string, value int, usage, expectedType string) {
	*p = value
	f.Var(&intValue{p}, name, shorthand, usage, strconv.Itoa(value), expectedType)
}

func (f *FlagSet) List(p *[]string, name, shorthand string, value []string, usage, expectedType string) {
	*p = value
	f.Var(&listValue{p}, name, shorthand, usage, "", expectedType)
}

func (f *FlagSet) AddFlagGroup(name, description, groupType, availableFlagsHeader string, entries []FlagGroupEntry) {
	for i := range entries {
		e := &entries[i]
		if e.Enabled != nil {
			f.Bool(e.Enabled, e.Prefix+e.Name, "", *e.Enabled, e.Usage)
		}
		if e.Disabled != nil {
			f.Bool(e.Disabled, e.Prefix+"no-"+e.Name, "", *e.Disabled, "Disable '"+e.Name+"'")
		}
	}
	f.flagGroups = append(f.flagGroups, FlagGroup{
		Name:                 name,
		Description:          description,
		Flags:                entries,
		GroupType:            groupType,
		AvailableFlagsHeader: availableFlagsHeader,
	})
}

func (f *FlagSet) Var(value Value, name, shorthand, usage, defValue, expectedType string) {
	if name == "" {
		panic("flag name cannot be empty")
	}
	if _, ok := f.flags[name]; ok {
		panic(fmt.Sprintf("flag redefined: %s", name))
	}
	flag := &Flag{Name: name, Shorthand: shorthand, Usage: usage, Value: value, DefValue: defValue, ExpectedType: expectedType}
	f.flags[name] = flag
	if shorthand != "" {
		if _, ok := f.shorthands[shorthand]; ok {
			panic(fmt.Sprintf("shorthand flag redefined: %s", shorthand))
		}
		f.shorthands[shorthand] = flag
	}
}

// Parse accepts -name, --name, -name=value, --name value and single-letter shorthands.
func (f *FlagSet) Parse(arguments []string) error {
	f.args = []string{}
	for i := 0; i < len(arguments); i++ {
		arg := arguments[i]
		if len(arg) < 2 || arg[0] != '-' {
			f.args = append(f.args, arg)
			continue
		}
		if arg == "--" {
			f.args = append(f.args, arguments[i+1:]...)
			break
		}

		body := strings.TrimPrefix(strings.TrimPrefix(arg, "-"), "-")
		name, value, hasValue := strings.Cut(body, "=")
		flag, ok := f.flags[name]
		if !ok && !strings.HasPrefix(arg, "--") {
			flag, ok = f.shorthands[name]
		}
		if !ok {
			return fmt.Errorf("unknown flag: %s", arg)
		}
		if hasValue {
			if err := flag.Value.Set(value); err != nil { return err }
			continue
		}
		if _, isBool := flag.Value.(*boolValue); isBool {
			if err := flag.Value.Set(""); err != nil { return err }
			continue
		}
		if i+1 >= len(arguments) {
			return fmt.Errorf("flag needs an argument: %s", arg)
		}
		i++
		if err := flag.Value.Set(arguments[i]); err != nil { return err }
	}
	return nil
}

type App struct {
	Name        string
	Synopsis    string
	Description string
	Authors     []string
	Repository  string
	FlagSet     *FlagSet
	Action      func(args []string) error
	Stdout      io.Writer
	Stderr      io.Writer
}

func NewApp(name string) *App {
	return &App{
		Name:    name,
		FlagSet: NewFlagSet(name),
		Stdout:  os.Stdout,
		Stderr:  os.Stderr,
	}
}

func (a *App) Run(arguments []string) error {
	help := false
	a.FlagSet.Bool(&help, "help", "h", false, "Display this information")

	if err := a.FlagSet.Parse(arguments); err != nil {
		fmt.Fprintln(a.Stderr, err)
		fmt.Fprintf(a.Stderr, "Usage: %s %s\nRun '%s --help' for all available options and flags.\n", a.Name, a.Synopsis, a.Name)
		return err
	}
	if help {
		a.WriteHelp(a.Stdout)
		return nil
	}
	if a.Action != nil {
		return a.Action(a.FlagSet.Args())
	}
	return nil
}

// WriteHelp renders the full help page, wrapped to the terminal width.
func (a *App) WriteHelp(w io.Writer) {
	var sb strings.Builder
	width := getTerminalWidth()

	if len(a.Authors) > 0 {
		fmt.Fprintf(&sb, "\n    Copyright (c): %s and contributors\n", strings.Join(a.Authors, ", "))
	}
	if a.Repository != "" {
		fmt.Fprintf(&sb, "    For more details refer to %s\n", a.Repository)
	}
	if a.Synopsis != "" {
		fmt.Fprintf(&sb, "\n    Synopsis\n        %s %s\n", a.Name, a.Synopsis)
	}
	if a.Description != "" {
		fmt.Fprintf(&sb, "\n    Description\n        %s\n", a.Description)
	}

	options := a.optionFlags()
	left := 0
	for _, flag := range options {
		left = max(left, len(formatFlag(flag)))
	}
	for _, group := range a.FlagSet.flagGroups {
		for _, entry := range group.Flags {
			left = max(left, len(entry.Name))
		}
		left = max(left, len(group.Flags[0].Prefix)+len(group.GroupType)+6)
	}

	if len(options) > 0 {
		sb.WriteString("\n    Options\n")
		for _, flag := range options {
			right := ""
			if _, isBool := flag.Value.(*boolValue); !isBool && flag.DefValue != "" {
				right = "|" + flag.DefValue + "|"
			}
			writeEntry(&sb, width, left, formatFlag(flag), flag.Usage, right)
		}
	}

	groups := append([]FlagGroup(nil), a.FlagSet.flagGroups...)
	sort.Slice(groups, func(i, j int) bool { return groups[i].Name < groups[j].Name })
	for _, group := range groups {
		prefix := group.Flags[0].Prefix
		fmt.Fprintf(&sb, "\n    %s\n", group.Name)
		writeEntry(&sb, width, left, fmt.Sprintf("-%s<%s>", prefix, group.GroupType), "Enable a specific "+group.GroupType, "")
		writeEntry(&sb, width, left, fmt.Sprintf("-%sno-<%s>", prefix, group.GroupType), "Disable a specific "+group.GroupType, "")
		if group.AvailableFlagsHeader != "" {
			fmt.Fprintf(&sb, "    %s\n", group.AvailableFlagsHeader)
		}
		entries := append([]FlagGroupEntry(nil), group.Flags...)
		sort.Slice(entries, func(i, j int) bool { return entries[i].Name < entries[j].Name })
		for _, entry := range entries {
			mark := "|-|"
			if entry.Enabled != nil && *entry.Enabled && (entry.Disabled == nil || !*entry.Disabled) {
				mark = "|x|"
			}
			writeEntry(&sb, width, left, entry.Name, entry.Usage, mark)
		}
	}
	fmt.Fprint(w, sb.String())
}

func (a *App) optionFlags() []*Flag {
	grouped := make(map[string]bool)
	for _, group := range a.FlagSet.flagGroups {
		for _, e := range group.Flags {
			grouped[e.Prefix+e.Name] = true
			grouped[e.Prefix+"no-"+e.Name] = true
		}
	}
	var out []*Flag
	for _, flag := range a.FlagSet.flags {
		if !grouped[flag.Name] {
			out = append(out, flag)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

func formatFlag(flag *Flag) string {
	_, isBool := flag.Value.(*boolValue)
	s := "--" + flag.Name
	if flag.Shorthand != "" {
		s = "-" + flag.Shorthand + ", " + s
	}
	if !isBool && flag.ExpectedType != "" {
		s += " <" + flag.ExpectedType + ">"
	}
	return s
}

func writeEntry(sb *strings.Builder, termWidth, left int, name, usage, right string) {
	avail := termWidth - 8 - left - 1 - len(right) - 2
	if avail < 10 { avail = 10 }
	lines := wrapText(usage, avail)
	first := ""
	if len(lines) > 0 { first = lines[0] }
	if right != "" {
		fmt.Fprintf(sb, "        %-*s %-*s  %s\n", left, name, avail, first, right)
	} else {
		fmt.Fprintf(sb, "        %-*s %s\n", left, name, first)
	}
	pad := strings.Repeat(" ", 8+left+1)
	for _, l := range lines[min(1, len(lines)):] {
		fmt.Fprintf(sb, "%s%s\n", pad, l)
	}
}

func getTerminalWidth() int {
	width, _, err := term.GetSize(int(os.Stdout.Fd()))
	if err != nil {
		return 80
	}
	if width < 20 {
		return 20
	}
	return width
}

func wrapText(text string, maxWidth int) []string {
	words := strings.Fields(text)
	if len(words) == 0 {
		return nil
	}
	var lines []string
	var cur strings.Builder
	for _, word := range words {
		if cur.Len() > 0 && cur.Len()+len(word)+1 > maxWidth {
			lines = append(lines, cur.String())
			cur.Reset()
		}
		if cur.Len() > 0 {
			cur.WriteByte(' ')
		}
		cur.WriteString(word)
	}
	return append(lines, cur.String())
}
