//go:build windows

package codegen

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"os/exec"

	"github.com/sasl-lang/sasl/pkg/config"
	"github.com/sasl-lang/sasl/pkg/ir"
	"github.com/sasl-lang/sasl/pkg/util"
)

func (b *qbeBackend) Generate(mod *ir.Module, cfg *config.Config) (*bytes.Buffer, error) {
	util.Info("self-contained QBE backend is not supported on Windows, falling back to the system's 'qbe'")
	if _, err := exec.LookPath("qbe"); err != nil {
		return nil, fmt.Errorf("QBE not found in PATH: %w", err)
	}

	qbeIR, err := b.GenerateIR(mod)
	if err != nil {
		return nil, err
	}

	inputFile, err := os.CreateTemp("", "saslc-qbe-*.ssa")
	if err != nil {
		return nil, err
	}
	defer os.Remove(inputFile.Name())
	defer inputFile.Close()

	if _, err = inputFile.WriteString(qbeIR); err != nil {
		return nil, err
	}

	outputName := inputFile.Name() + ".s"
	defer os.Remove(outputName)
	cmd := exec.Command("qbe", "-o", outputName, "-t", cfg.QbeTarget, inputFile.Name())
	if err = cmd.Run(); err != nil {
		return nil, qbeFailed(qbeIR, err)
	}

	outputFile, err := os.Open(outputName)
	if err != nil {
		return nil, err
	}
	defer outputFile.Close()

	var asmBuf bytes.Buffer
	if _, err = io.Copy(&asmBuf, outputFile); err != nil {
		return nil, err
	}
	return &asmBuf, nil
}
