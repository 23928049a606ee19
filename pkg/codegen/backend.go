package codegen

import (
	"bytes"
	"fmt"

	"github.com/sasl-lang/sasl/pkg/config"
	"github.com/sasl-lang/sasl/pkg/ir"
)

// Backend is the interface that all code generation backends must implement.
type Backend interface {
	// Generate takes a verified module and a configuration, and produces the
	// target assembly or intermediate language as a byte buffer.
	Generate(mod *ir.Module, cfg *config.Config) (*bytes.Buffer, error)
}

// NewBackend returns the backend registered under name.
func NewBackend(name string) (Backend, error) {
	switch name {
	case "qbe": return NewQBEBackend(), nil
	case "llvm": return NewLLVMBackend(), nil
	}
	return nil, fmt.Errorf("unknown backend '%s'", name)
}

// TextBackend is implemented by backends that can stop at their textual IL.
type TextBackend interface {
	Backend
	GenerateIR(mod *ir.Module) (string, error)
}
