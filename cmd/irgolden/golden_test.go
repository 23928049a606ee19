package main

import (
	"strings"
	"testing"

	"github.com/sasl-lang/sasl/pkg/config"
	"github.com/sasl-lang/sasl/pkg/samples"
)

func TestGoldenRoundTrip(t *testing.T) {
	dir := t.TempDir()
	smp, ok := samples.Find("classify")
	if !ok { t.Fatal("classify sample missing") }
	cfg := config.NewConfig()

	if r := check(cfg, dir, smp, false); r.Status != "NEW" { t.Fatalf("first check: %s %s", r.Status, r.Message) }
	if r := check(cfg, dir, smp, false); r.Status != "PASS" { t.Fatalf("second check: %s %s\n%s", r.Status, r.Message, r.Diff) }

	path := goldenPath(dir, smp.Name)
	golden, err := readGolden(path)
	if err != nil { t.Fatal(err) }
	for _, run := range golden.Runs {
		if run.Error != "" { t.Errorf("%s%v failed: %s", run.Call, run.Args, run.Error) }
	}
	golden.IR = strings.Replace(golden.IR, "classify", "classified", 1)
	if err := writeGolden(path, golden); err != nil { t.Fatal(err) }

	r := check(cfg, dir, smp, false)
	if r.Status != "FAIL" { t.Fatalf("tampered golden: got %s", r.Status) }
	if !strings.Contains(r.Diff, "IR:") { t.Errorf("diff does not name the IR field:\n%s", r.Diff) }

	if r := check(cfg, dir, smp, true); r.Status != "NEW" { t.Fatalf("update: %s", r.Status) }
	if r := check(cfg, dir, smp, false); r.Status != "PASS" { t.Fatalf("after update: %s\n%s", r.Status, r.Diff) }
}

// Generation must be deterministic for snapshots to mean anything.
func TestSnapshotsAreStable(t *testing.T) {
	cfg := config.NewConfig()
	for _, smp := range samples.All() {
		a, err := take(cfg, smp)
		if err != nil { t.Fatalf("%s: %v", smp.Name, err) }
		b, err := take(cfg, samples.All()[indexOf(smp.Name)])
		if err != nil { t.Fatalf("%s: %v", smp.Name, err) }
		if a.Fingerprint != b.Fingerprint { t.Errorf("%s: fingerprints differ: %s vs %s", smp.Name, a.Fingerprint, b.Fingerprint) }
		if len(a.Backends) != len(textBackends) { t.Errorf("%s: %d backend hashes", smp.Name, len(a.Backends)) }
	}
}

func indexOf(name string) int {
	for i, smp := range samples.All() {
		if smp.Name == name { return i }
	}
	return -1
}
