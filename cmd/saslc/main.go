package main

import (
	"encoding/json"
	"fmt"
	"os"
	"runtime"
	"strings"

	"github.com/sasl-lang/sasl/pkg/cli"
	"github.com/sasl-lang/sasl/pkg/codegen"
	"github.com/sasl-lang/sasl/pkg/config"
	"github.com/sasl-lang/sasl/pkg/interp"
	"github.com/sasl-lang/sasl/pkg/ir"
	"github.com/sasl-lang/sasl/pkg/lower"
	"github.com/sasl-lang/sasl/pkg/samples"
	"github.com/sasl-lang/sasl/pkg/util"
	"golang.org/x/sync/errgroup"
)

func main() {
	app := cli.NewApp("saslc")
	app.Synopsis = "[options] [sample ...]"
	app.Description = "Generates code for the built-in sasl shader samples. Every sample is lowered into its own module, the modules are merged, and the result goes to a backend or the interpreter."
	app.Authors = []string{"The sasl authors"}
	app.Repository = "<https://github.com/sasl-lang/sasl>"

	var (
		outFile     string
		backendName string
		target      string
		configFile  string
		abi         string
		runs        []string
		dumpIR      bool
		printIR     bool
		fingerprint bool
		list        bool
	)

	fs := app.FlagSet
	fs.String(&outFile, "output", "o", "", "Place the output into <file>.", "file")
	fs.String(&backendName, "backend", "b", "", "Select the backend (qbe, llvm).", "backend")
	fs.String(&target, "target", "t", "", "Set the QBE target ABI.", "target")
	fs.String(&configFile, "config", "c", "", "Read settings from a sasl.toml file.", "file")
	fs.String(&abi, "abi", "", "", "Calling convention of non C-compatible functions (llvm, c).", "abi")
	fs.List(&runs, "run", "r", []string{}, "Interpret a call, e.g. -r 'dot4=[1,2,3,4],[5,6,7,8]'.", "fn=args")
	fs.Bool(&dumpIR, "dump-ir", "d", false, "Dump the backend's intermediate language and exit.")
	fs.Bool(&printIR, "print-ir", "p", false, "Print the generated module and exit.")
	fs.Bool(&fingerprint, "fingerprint", "", false, "Print the module fingerprint.")
	fs.Bool(&list, "list", "l", false, "List the built-in samples and exit.")

	cfg := config.NewConfig()
	warningFlags, featureFlags := cfg.SetupFlagGroups(fs)

	app.Action = func(names []string) error {
		if list {
			for _, smp := range samples.All() {
				fmt.Printf("%-10s %s\n", smp.Name, smp.Doc)
			}
			return nil
		}

		// The file goes first so command line flags override it
		if configFile != "" {
			if err := cfg.LoadFile(configFile); err != nil { util.Error("%v", err) }
		}
		cfg.ApplyFlagGroups(warningFlags, featureFlags)
		if abi != "" {
			if a := codegen.ParseABI(abi); a != codegen.ABIC && a != codegen.ABILLVM {
				util.Error("unsupported abi '%s'. Supported: 'c', 'llvm'", abi)
			}
			cfg.DefaultABI = abi
		}
		if backendName != "" { cfg.BackendName = backendName }
		if target == "" { target = cfg.QbeTarget }
		cfg.SetTarget(runtime.GOOS, runtime.GOARCH, target)

		selected, err := selectSamples(names)
		if err != nil { util.Error("%v", err) }

		prog, err := generate(cfg, selected)
		if err != nil { util.Error("%v", err) }

		if fingerprint { fmt.Printf("%016x\n", prog.Fingerprint()) }

		if printIR {
			fmt.Print(prog.String())
			return nil
		}

		if len(runs) > 0 {
			engine := interp.New(prog)
			for _, r := range runs {
				fn, args, err := parseRun(r)
				if err != nil { util.Error("invalid -r value '%s': %v", r, err) }
				res, err := engine.Call(fn, args...)
				if err != nil { util.Error("%s: %v", fn, err) }
				fmt.Printf("%s(%s) = %v\n", fn, strings.TrimPrefix(r, fn+"="), res)
			}
			return nil
		}

		backend, err := codegen.NewBackend(cfg.BackendName)
		if err != nil { util.Error("%v", err) }

		if dumpIR {
			tb, ok := backend.(codegen.TextBackend)
			if !ok { util.Error("backend '%s' has no textual IL", cfg.BackendName) }
			text, err := tb.GenerateIR(prog)
			if err != nil { util.Error("backend IR generation failed: %v", err) }
			fmt.Print(text)
			return nil
		}

		out, err := backend.Generate(prog, cfg)
		if err != nil { util.Error("code generation failed: %v", err) }
		if outFile == "" { outFile = defaultOutput(cfg.BackendName) }
		if err := os.WriteFile(outFile, out.Bytes(), 0644); err != nil { util.Error("failed to write %s: %v", outFile, err) }
		util.Info("wrote %s (%d functions)", outFile, len(prog.Funcs))
		return nil
	}

	if err := app.Run(os.Args[1:]); err != nil {
		os.Exit(1)
	}
}

func defaultOutput(backend string) string {
	if backend == "llvm" { return "out.ll" }
	return "out.s"
}

func selectSamples(names []string) ([]samples.Sample, error) {
	if len(names) == 0 { return samples.All(), nil }
	out := make([]samples.Sample, 0, len(names))
	for _, n := range names {
		smp, ok := samples.Find(n)
		if !ok { return nil, fmt.Errorf("no sample named '%s' (see --list)", n) }
		out = append(out, smp)
	}
	return out, nil
}

// generate lowers every sample into its own module concurrently, then
// merges them in input order.
func generate(cfg *config.Config, selected []samples.Sample) (*ir.Module, error) {
	mods := make([]*ir.Module, len(selected))
	var g errgroup.Group
	g.SetLimit(runtime.GOMAXPROCS(0))
	for i, smp := range selected {
		g.Go(func() error {
			mod, err := lower.Lower(cfg, smp.Name, smp.Decls...)
			if err != nil { return fmt.Errorf("%s: %w", smp.Name, err) }
			mods[i] = mod
			return nil
		})
	}
	if err := g.Wait(); err != nil { return nil, err }

	prog := ir.NewModule("sasl")
	for _, m := range mods {
		if err := prog.Merge(m); err != nil { return nil, err }
	}
	return prog, nil
}

// parseRun splits "fn=a,b,..." where each argument is a JSON value.
func parseRun(s string) (string, []any, error) {
	fn, rest, ok := strings.Cut(s, "=")
	if !ok { return s, nil, nil }
	var args []any
	if err := json.Unmarshal([]byte("["+rest+"]"), &args); err != nil { return "", nil, err }
	return fn, args, nil
}
