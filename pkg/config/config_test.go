package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/sasl-lang/sasl/pkg/cli"
)

func writeFile(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "sasl.toml")
	if err := os.WriteFile(path, []byte(body), 0644); err != nil { t.Fatal(err) }
	return path
}

func TestDefaults(t *testing.T) {
	cfg := NewConfig()
	for ft, want := range map[Feature]bool{
		FeatPreferExternals: false,
		FeatPreferScalar:    false,
		FeatInlineHints:     true,
		FeatCleanBlocks:     true,
		FeatVerify:          true,
	} {
		if got := cfg.IsFeatureEnabled(ft); got != want { t.Errorf("feature %s = %v", cfg.Features[ft].Name, got) }
	}
	if cfg.IsWarningEnabled(WarnDeadBlock) || !cfg.IsWarningEnabled(WarnExtra) { t.Error("unexpected warning defaults") }
	if cfg.DefaultABI != "llvm" || cfg.BackendName != "qbe" { t.Errorf("abi %q backend %q", cfg.DefaultABI, cfg.BackendName) }
}

func TestLoadFile(t *testing.T) {
	cfg := NewConfig()
	path := writeFile(t, `
backend = "llvm"
abi = "c"
target = "arm64"

[features]
prefer-externals = true
verify = false

[warnings]
dead-block = true
`)
	if err := cfg.LoadFile(path); err != nil { t.Fatal(err) }
	if cfg.BackendName != "llvm" || cfg.DefaultABI != "c" || cfg.QbeTarget != "arm64" {
		t.Errorf("backend %q abi %q target %q", cfg.BackendName, cfg.DefaultABI, cfg.QbeTarget)
	}
	if !cfg.IsFeatureEnabled(FeatPreferExternals) || cfg.IsFeatureEnabled(FeatVerify) { t.Error("features not applied") }
	if !cfg.IsFeatureEnabled(FeatInlineHints) { t.Error("unnamed feature changed") }
	if !cfg.IsWarningEnabled(WarnDeadBlock) { t.Error("warning not applied") }
}

func TestLoadFileErrors(t *testing.T) {
	tests := []struct {
		name, body, want string
	}{
		{"unknown key", "optimize = true\n", "unknown keys: optimize"},
		{"unknown feature", "[features]\nfast-math = true\n", "unknown feature 'fast-math'"},
		{"unknown warning", "[warnings]\npedantic = true\n", "unknown warning 'pedantic'"},
		{"bad abi", "abi = \"vectorize\"\n", "unsupported abi"},
		{"syntax", "backend = \n", "failed to parse TOML"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := NewConfig().LoadFile(writeFile(t, tt.body))
			if err == nil || !strings.Contains(err.Error(), tt.want) { t.Errorf("got %v, want %q", err, tt.want) }
		})
	}
}

func TestFlagGroups(t *testing.T) {
	cfg := NewConfig()
	fs := cli.NewFlagSet("saslc")
	warnings, features := cfg.SetupFlagGroups(fs)
	if err := fs.Parse([]string{"-Fno-verify", "-Wdead-block", "-Fprefer-scalar"}); err != nil { t.Fatal(err) }

	cfg.SetFeature(FeatInlineHints, false) // as if read from a file
	cfg.ApplyFlagGroups(warnings, features)

	if cfg.IsFeatureEnabled(FeatVerify) { t.Error("-Fno-verify ignored") }
	if !cfg.IsFeatureEnabled(FeatPreferScalar) { t.Error("-Fprefer-scalar ignored") }
	if !cfg.IsWarningEnabled(WarnDeadBlock) { t.Error("-Wdead-block ignored") }
	if cfg.IsFeatureEnabled(FeatInlineHints) { t.Error("flag groups reset a setting not named on the command line") }
}

func TestSetTarget(t *testing.T) {
	cfg := NewConfig()
	cfg.SetTarget("linux", "arm", "rv32")
	if cfg.WordSize != 4 || cfg.WordType != "w" || cfg.StackAlignment != 8 {
		t.Errorf("rv32: word %d %q align %d", cfg.WordSize, cfg.WordType, cfg.StackAlignment)
	}
	cfg.SetTarget("linux", "amd64", "")
	if cfg.QbeTarget == "" || cfg.WordSize != 8 { t.Errorf("host target %q word %d", cfg.QbeTarget, cfg.WordSize) }
}
