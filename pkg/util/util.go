package util

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/fatih/color"
	"github.com/sasl-lang/sasl/pkg/config"
)

var (
	errorColor = color.New(color.FgRed, color.Bold)
	warnColor  = color.New(color.FgYellow, color.Bold)
	infoColor  = color.New(color.FgCyan)
)

// Stderr is where diagnostics go. Tests swap it for a buffer.
var Stderr io.Writer = os.Stderr

// Prog prefixes every diagnostic line.
var Prog = "saslc"

// FatalKind separates the fail-fast paths of the generator.
type FatalKind int

const (
	FatalUnimplemented FatalKind = iota
	FatalContract
	FatalInternal
)

func (k FatalKind) String() string {
	switch k {
	case FatalUnimplemented: return "unimplemented"
	case FatalContract: return "contract violation"
	case FatalInternal: return "internal error"
	default: return "fatal"
	}
}

// FatalError is the panic payload of every non-recoverable generation failure.
type FatalError struct {
	Kind FatalKind
	Msg  string
}

func (e *FatalError) Error() string { return fmt.Sprintf("%s: %s", e.Kind, e.Msg) }

// Unimplemented aborts generation of the whole unit.
func Unimplemented(format string, args ...interface{}) {
	panic(&FatalError{Kind: FatalUnimplemented, Msg: fmt.Sprintf(format, args...)})
}

// ContractViolation reports a caller bug detected at the service boundary.
func ContractViolation(format string, args ...interface{}) {
	panic(&FatalError{Kind: FatalContract, Msg: fmt.Sprintf(format, args...)})
}

// Internal reports an inconsistency inside the generator itself.
func Internal(format string, args ...interface{}) {
	panic(&FatalError{Kind: FatalInternal, Msg: fmt.Sprintf(format, args...)})
}

// Recover converts a FatalError panic into *err. Any other panic is re-raised.
// Only drivers call this; the service itself never recovers.
func Recover(err *error) {
	r := recover()
	if r == nil { return }
	var fe *FatalError
	if e, ok := r.(error); ok && errors.As(e, &fe) {
		*err = fe
		return
	}
	panic(r)
}

// IsFatal reports whether err carries a FatalError of the given kind.
func IsFatal(err error, kind FatalKind) bool {
	var fe *FatalError
	return errors.As(err, &fe) && fe.Kind == kind
}

// Error prints a formatted error message and exits the program
func Error(format string, args ...interface{}) {
	fmt.Fprintf(Stderr, "%s: %s ", Prog, errorColor.Sprint("error:"))
	fmt.Fprintf(Stderr, format, args...)
	fmt.Fprintln(Stderr)
	os.Exit(1)
}

// Warn prints a formatted warning message if the corresponding warning is enabled
func Warn(cfg *config.Config, wt config.Warning, format string, args ...interface{}) {
	if cfg != nil && !cfg.IsWarningEnabled(wt) { return }
	fmt.Fprintf(Stderr, "%s: %s ", Prog, warnColor.Sprint("warning:"))
	fmt.Fprintf(Stderr, format, args...)
	if cfg != nil {
		fmt.Fprintf(Stderr, " [-W%s]", cfg.Warnings[wt].Name)
	}
	fmt.Fprintln(Stderr)
}

func Info(format string, args ...interface{}) {
	fmt.Fprintf(Stderr, "%s: %s ", Prog, infoColor.Sprint("info:"))
	fmt.Fprintf(Stderr, format, args...)
	fmt.Fprintln(Stderr)
}

func AlignUp(n, align int64) int64 {
	if align <= 1 { return n }
	return (n + align - 1) &^ (align - 1)
}
