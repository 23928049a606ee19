package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/google/go-cmp/cmp"
	"github.com/sasl-lang/sasl/pkg/codegen"
	"github.com/sasl-lang/sasl/pkg/config"
	"github.com/sasl-lang/sasl/pkg/interp"
	"github.com/sasl-lang/sasl/pkg/lower"
	"github.com/sasl-lang/sasl/pkg/samples"
)

// Snapshot is everything recorded for one sample.
type Snapshot struct {
	Sample      string            `json:"sample"`
	Fingerprint string            `json:"fingerprint"`
	IR          string            `json:"ir"`
	Backends    map[string]string `json:"backends"` // backend name -> xxhash of its textual IL
	Runs        []Run             `json:"runs"`
}

type Run struct {
	Call   string `json:"call"`
	Args   []any  `json:"args,omitempty"`
	Result any    `json:"result"`
	Error  string `json:"error,omitempty"`
}

type Result struct {
	Sample   string        `json:"sample"`
	Status   string        `json:"status"` // PASS, FAIL, ERROR, NEW
	Message  string        `json:"message,omitempty"`
	Diff     string        `json:"diff,omitempty"`
	Duration time.Duration `json:"duration"`
}

var textBackends = []string{"qbe", "llvm"}

func goldenPath(dir, sample string) string {
	return filepath.Join(dir, "."+sample+".json")
}

// take lowers smp, prints it through every textual backend and runs its
// cases in the interpreter.
func take(cfg *config.Config, smp samples.Sample) (*Snapshot, error) {
	mod, err := lower.Lower(cfg, smp.Name, smp.Decls...)
	if err != nil { return nil, err }

	snap := &Snapshot{
		Sample:      smp.Name,
		Fingerprint: fmt.Sprintf("%016x", mod.Fingerprint()),
		IR:          mod.String(),
		Backends:    make(map[string]string, len(textBackends)),
	}
	for _, name := range textBackends {
		b, err := codegen.NewBackend(name)
		if err != nil { return nil, err }
		text, err := b.(codegen.TextBackend).GenerateIR(mod)
		if err != nil { return nil, fmt.Errorf("%s backend: %w", name, err) }
		snap.Backends[name] = fmt.Sprintf("%016x", xxhash.Sum64String(text))
	}

	engine := interp.New(mod)
	for _, c := range smp.Cases {
		run := Run{Call: c.Fn, Args: c.Args}
		res, err := engine.Call(c.Fn, c.Args...)
		if err != nil {
			run.Error = err.Error()
		} else {
			run.Result = res
		}
		snap.Runs = append(snap.Runs, run)
	}
	return normalize(snap)
}

// normalize round-trips a snapshot through JSON so fresh and stored
// snapshots compare with the same dynamic types.
func normalize(snap *Snapshot) (*Snapshot, error) {
	data, err := json.Marshal(snap)
	if err != nil { return nil, err }
	var out Snapshot
	if err := json.Unmarshal(data, &out); err != nil { return nil, err }
	return &out, nil
}

func writeGolden(path string, snap *Snapshot) error {
	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil { return fmt.Errorf("failed to marshal golden data: %w", err) }
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil { return err }
	return os.WriteFile(path, data, 0644)
}

func readGolden(path string) (*Snapshot, error) {
	data, err := os.ReadFile(path)
	if err != nil { return nil, err }
	var snap Snapshot
	if err := json.Unmarshal(data, &snap); err != nil { return nil, fmt.Errorf("could not parse golden file %s: %w", path, err) }
	return &snap, nil
}

// check compares smp against its golden file, writing the file first when
// update is set or none exists.
func check(cfg *config.Config, dir string, smp samples.Sample, update bool) *Result {
	start := time.Now()
	res := &Result{Sample: smp.Name}
	defer func() { res.Duration = time.Since(start) }()

	snap, err := take(cfg, smp)
	if err != nil {
		res.Status, res.Message = "ERROR", err.Error()
		return res
	}

	path := goldenPath(dir, smp.Name)
	golden, err := readGolden(path)
	if update || os.IsNotExist(err) {
		if err := writeGolden(path, snap); err != nil {
			res.Status, res.Message = "ERROR", err.Error()
			return res
		}
		res.Status, res.Message = "NEW", "golden file written to "+path
		return res
	}
	if err != nil {
		res.Status, res.Message = "ERROR", err.Error()
		return res
	}

	if golden.Fingerprint == snap.Fingerprint && cmp.Equal(golden, snap) {
		res.Status, res.Message = "PASS", "fingerprint "+snap.Fingerprint
		return res
	}
	res.Status = "FAIL"
	res.Message = fmt.Sprintf("fingerprint %s, golden %s", snap.Fingerprint, golden.Fingerprint)
	res.Diff = cmp.Diff(golden, snap)
	return res
}
