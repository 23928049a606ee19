//go:build !windows

package codegen

import (
	"bytes"
	"strings"

	"github.com/sasl-lang/sasl/pkg/config"
	"github.com/sasl-lang/sasl/pkg/ir"
	"modernc.org/libqbe"
)

// Generate lowers mod to QBE IL and assembles it in process for
// cfg.QbeTarget. Declarations only become external symbols.
func (b *qbeBackend) Generate(mod *ir.Module, cfg *config.Config) (*bytes.Buffer, error) {
	il, err := b.GenerateIR(mod)
	if err != nil { return nil, err }

	var asm bytes.Buffer
	if err := libqbe.Main(cfg.QbeTarget, mod.Name+".ssa", strings.NewReader(il), &asm, nil); err != nil {
		return nil, qbeFailed(il, err)
	}
	return &asm, nil
}
