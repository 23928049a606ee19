package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/sasl-lang/sasl/pkg/cli"
	"modernc.org/libqbe"
)

type Feature int

const (
	FeatPreferExternals Feature = iota
	FeatPreferScalar
	FeatInlineHints
	FeatCleanBlocks
	FeatVerify
	FeatCount
)

type Warning int

const (
	WarnDeadBlock Warning = iota
	WarnExtra
	WarnCount
)

type Info struct {
	Name        string
	Enabled     bool
	Description string
}

type Config struct {
	Features       map[Feature]Info
	Warnings       map[Warning]Info
	FeatureMap     map[string]Feature
	WarningMap     map[string]Warning
	TargetArch     string
	QbeTarget      string
	BackendName    string
	WordSize       int
	WordType       string
	StackAlignment int
	DefaultABI     string
}

func NewConfig() *Config {
	cfg := &Config{
		Features:       make(map[Feature]Info),
		Warnings:       make(map[Warning]Info),
		FeatureMap:     make(map[string]Feature),
		WarningMap:     make(map[string]Warning),
		BackendName:    "qbe",
		WordSize:       8,
		WordType:       "l",
		StackAlignment: 16,
		DefaultABI:     "llvm",
	}

	features := map[Feature]Info{
		FeatPreferExternals: {"prefer-externals", false, "Lower intrinsics to calls of precompiled runtime routines."},
		FeatPreferScalar:    {"prefer-scalar", false, "Expand vector intrinsics into per-lane scalar code."},
		FeatInlineHints:     {"inline-hints", true, "Mark generated helper functions as inline candidates."},
		FeatCleanBlocks:     {"clean-blocks", true, "Drop empty unreferenced blocks once a function body is emitted."},
		FeatVerify:          {"verify", true, "Verify every function when its declaration ends."},
	}

	warnings := map[Warning]Info{
		WarnDeadBlock: {"dead-block", false, "Warn when empty blocks are removed from a function."},
		WarnExtra:     {"extra", true, "Enable extra miscellaneous warnings."},
	}

	cfg.Features, cfg.Warnings = features, warnings
	for ft, info := range features {
		cfg.FeatureMap[info.Name] = ft
	}
	for wt, info := range warnings {
		cfg.WarningMap[info.Name] = wt
	}

	return cfg
}

// SetTarget configures the word size for a QBE target. An empty target picks the host.
func (c *Config) SetTarget(goos, goarch, qbeTarget string) {
	if qbeTarget == "" {
		c.QbeTarget = libqbe.DefaultTarget(goos, goarch)
	} else {
		c.QbeTarget = qbeTarget
	}

	c.TargetArch = goarch

	switch c.QbeTarget {
	case "amd64_sysv", "amd64_apple", "arm64", "arm64_apple", "rv64":
		c.WordSize, c.WordType, c.StackAlignment = 8, "l", 16
	case "arm", "rv32":
		c.WordSize, c.WordType, c.StackAlignment = 4, "w", 8
	default:
		fmt.Fprintf(os.Stderr, "saslc: warning: unrecognized QBE target '%s', defaulting to 64-bit properties.\n", c.QbeTarget)
		c.WordSize, c.WordType, c.StackAlignment = 8, "l", 16
	}
}

func (c *Config) SetFeature(ft Feature, enabled bool) {
	if info, ok := c.Features[ft]; ok {
		info.Enabled = enabled
		c.Features[ft] = info
	}
}

func (c *Config) IsFeatureEnabled(ft Feature) bool { return c.Features[ft].Enabled }

func (c *Config) SetWarning(wt Warning, enabled bool) {
	if info, ok := c.Warnings[wt]; ok {
		info.Enabled = enabled
		c.Warnings[wt] = info
	}
}

func (c *Config) IsWarningEnabled(wt Warning) bool { return c.Warnings[wt].Enabled }

// fileConfig mirrors sasl.toml.
type fileConfig struct {
	Target   string          `toml:"target"`
	Backend  string          `toml:"backend"`
	ABI      string          `toml:"abi"`
	Features map[string]bool `toml:"features"`
	Warnings map[string]bool `toml:"warnings"`
}

// LoadFile applies a sasl.toml file on top of the current settings.
func (c *Config) LoadFile(path string) error {
	var fc fileConfig
	meta, err := toml.DecodeFile(path, &fc)
	if err != nil {
		return fmt.Errorf("%s: failed to parse TOML: %w", path, err)
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, k := range undecoded {
			keys[i] = k.String()
		}
		return fmt.Errorf("%s: unknown keys: %s", path, strings.Join(keys, ", "))
	}
	return c.apply(fc)
}

func (c *Config) apply(fc fileConfig) error {
	if fc.Target != "" { c.QbeTarget = fc.Target }
	if fc.Backend != "" { c.BackendName = fc.Backend }
	if fc.ABI != "" {
		switch fc.ABI {
		case "c", "llvm":
			c.DefaultABI = fc.ABI
		default:
			return fmt.Errorf("unsupported abi '%s'. Supported: 'c', 'llvm'", fc.ABI)
		}
	}
	for name, on := range fc.Features {
		ft, ok := c.FeatureMap[name]
		if !ok { return fmt.Errorf("unknown feature '%s'", name) }
		c.SetFeature(ft, on)
	}
	for name, on := range fc.Warnings {
		wt, ok := c.WarningMap[name]
		if !ok { return fmt.Errorf("unknown warning '%s'", name) }
		c.SetWarning(wt, on)
	}
	return nil
}

// SetupFlagGroups registers -F<feature>/-Fno-<feature> and -W<warning>/-Wno-<warning>.
// The returned entries are indexed by Warning and Feature respectively.
func (c *Config) SetupFlagGroups(fs *cli.FlagSet) (warnings, features []cli.FlagGroupEntry) {
	warnings = make([]cli.FlagGroupEntry, WarnCount)
	for i := Warning(0); i < WarnCount; i++ {
		info := c.Warnings[i]
		warnings[i] = cli.FlagGroupEntry{Name: info.Name, Prefix: "W", Usage: info.Description, Enabled: new(bool), Disabled: new(bool)}
	}
	features = make([]cli.FlagGroupEntry, FeatCount)
	for i := Feature(0); i < FeatCount; i++ {
		info := c.Features[i]
		features[i] = cli.FlagGroupEntry{Name: info.Name, Prefix: "F", Usage: info.Description, Enabled: new(bool), Disabled: new(bool)}
	}
	fs.AddFlagGroup("Warning Flags", "Enable or disable diagnostics.", "warning", "Available Warnings:", warnings)
	fs.AddFlagGroup("Feature Flags", "Enable or disable code generation policies.", "feature", "Available Features:", features)
	return warnings, features
}

// ApplyFlagGroups copies the flags given on the command line into the
// configuration; settings not named on the command line are left alone.
func (c *Config) ApplyFlagGroups(warnings, features []cli.FlagGroupEntry) {
	for i, entry := range warnings {
		if entry.Enabled != nil && *entry.Enabled { c.SetWarning(Warning(i), true) }
		if entry.Disabled != nil && *entry.Disabled { c.SetWarning(Warning(i), false) }
	}
	for i, entry := range features {
		if entry.Enabled != nil && *entry.Enabled { c.SetFeature(Feature(i), true) }
		if entry.Disabled != nil && *entry.Disabled { c.SetFeature(Feature(i), false) }
	}
}
