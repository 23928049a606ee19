// irgolden snapshots the IR of every built-in sample and checks later
// builds against the snapshots.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/fatih/color"
	"github.com/sasl-lang/sasl/pkg/config"
	"github.com/sasl-lang/sasl/pkg/samples"
)

var (
	goldenDir  = flag.String("dir", "testdata/golden", "Directory to store/read golden JSON files.")
	update     = flag.Bool("update", false, "Rewrite the golden files from the current build.")
	only       = flag.String("samples", "", "Samples to check (space-separated, default all).")
	configFile = flag.String("config", "", "Read code generation settings from a sasl.toml file.")
	outputJSON = flag.String("output", ".irgolden_results.json", "Output file for the JSON report, relative to -dir.")
	jobs       = flag.Int("j", 4, "Number of parallel jobs.")
	verbose    = flag.Bool("v", false, "Enable verbose logging.")
)

var (
	cRed    = color.New(color.FgHiRed)
	cYellow = color.New(color.FgHiYellow)
	cGreen  = color.New(color.FgHiGreen)
	cCyan   = color.New(color.FgHiCyan)
)

func main() {
	flag.Parse()
	log.SetFlags(0)
	if *jobs < 1 { *jobs = 1 }

	cfg := config.NewConfig()
	if *configFile != "" {
		if err := cfg.LoadFile(*configFile); err != nil { log.Fatalf("%s %v\n", cRed.Sprint("[ERROR]"), err) }
	}

	selected, err := pick(*only)
	if err != nil { log.Fatalf("%s %v\n", cRed.Sprint("[ERROR]"), err) }

	tasks := make(chan samples.Sample, len(selected))
	resultsChan := make(chan *Result, len(selected))
	var wg sync.WaitGroup

	for i := 0; i < *jobs; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for smp := range tasks {
				if *verbose { log.Printf("checking %s", smp.Name) }
				resultsChan <- check(cfg, *goldenDir, smp, *update)
			}
		}()
	}
	for _, smp := range selected {
		tasks <- smp
	}
	close(tasks)
	wg.Wait()
	close(resultsChan)

	var results []*Result
	for r := range resultsChan {
		results = append(results, r)
	}
	sort.Slice(results, func(i, j int) bool { return results[i].Sample < results[j].Sample })

	printSummary(results)
	writeJSONReport(results)
	if hasFailures(results) { os.Exit(1) }
}

func pick(names string) ([]samples.Sample, error) {
	if names == "" { return samples.All(), nil }
	var out []samples.Sample
	for _, n := range strings.Fields(names) {
		smp, ok := samples.Find(n)
		if !ok { return nil, fmt.Errorf("no sample named '%s'", n) }
		out = append(out, smp)
	}
	return out, nil
}

func printSummary(results []*Result) {
	counts := make(map[string]int)
	for _, r := range results {
		counts[r.Status]++
		fmt.Println("----------------------------------------------------------------------")
		fmt.Printf("Checking %s...\n", cCyan.Sprint(r.Sample))
		switch r.Status {
		case "PASS":
			fmt.Printf("  [%s] %s (%s)\n", cGreen.Sprint("PASS"), r.Message, r.Duration)
		case "NEW":
			fmt.Printf("  [%s] %s\n", cYellow.Sprint("NEW"), r.Message)
		case "FAIL":
			fmt.Printf("  [%s] %s\n", cRed.Sprint("FAIL"), r.Message)
			fmt.Print(formatDiff(r.Diff))
		case "ERROR":
			fmt.Printf("  [%s] %s\n", cRed.Sprint("ERROR"), r.Message)
		}
	}
	fmt.Println("----------------------------------------------------------------------")
	fmt.Printf("%d passed, %d failed, %d errors, %d new\n", counts["PASS"], counts["FAIL"], counts["ERROR"], counts["NEW"])
}

func formatDiff(diff string) string {
	if diff == "" { return "" }
	var builder strings.Builder
	builder.WriteString("    --- Diff ---\n")
	for _, line := range strings.Split(diff, "\n") {
		trimmed := strings.TrimSpace(line)
		switch {
		case strings.HasPrefix(trimmed, "-"): builder.WriteString(cRed.Sprint("    " + line))
		case strings.HasPrefix(trimmed, "+"): builder.WriteString(cGreen.Sprint("    " + line))
		default: builder.WriteString("    " + line)
		}
		builder.WriteString("\n")
	}
	return builder.String()
}

func writeJSONReport(results []*Result) {
	jsonData, err := json.MarshalIndent(results, "", "  ")
	if err != nil {
		log.Printf("%s Failed to marshal results to JSON: %v\n", cRed.Sprint("[ERROR]"), err)
		return
	}
	if err := os.MkdirAll(*goldenDir, 0755); err != nil {
		log.Printf("%s Failed to create dir %s: %v\n", cRed.Sprint("[ERROR]"), *goldenDir, err)
		return
	}
	outputFile := filepath.Join(*goldenDir, *outputJSON)
	if err := os.WriteFile(outputFile, jsonData, 0644); err != nil {
		log.Printf("%s Failed to write JSON report to %s: %v\n", cRed.Sprint("[ERROR]"), outputFile, err)
		return
	}
	fmt.Printf("Full report saved to %s\n", outputFile)
}

func hasFailures(results []*Result) bool {
	for _, r := range results {
		if r.Status == "FAIL" || r.Status == "ERROR" { return true }
	}
	return false
}
