// gradcheck: Gradient conformance checker for the secure mean operation
//
// Usage:
//
//	gradcheck --protocol=Helix,SecureNN --tolerance=0.001 --logdir=log
package main

import (
	"flag"
	"fmt"
	"os"
	"time"

	"mpcten/conformance"
	"mpcten/mpc"
	"mpcten/utils"
)

var (
	protocol  = flag.String("protocol", "", "Comma-separated protocols to run (default: all registered)")
	tolerance = flag.Float64("tolerance", 0, "Absolute tolerance (0 = per-protocol default)")
	logDir    = flag.String("logdir", "log", "Directory for graph traces ('' disables tracing)")
	caseFile  = flag.String("cases", "", "JSON case file to run instead of the built-in table")
	dump      = flag.String("dump", "", "Write the built-in table to this JSON file and exit")
	verbose   = flag.Bool("verbose", true, "Verbose output")
)

func main() {
	flag.Parse()
	utils.Verbose = *verbose

	if *dump != "" {
		if err := conformance.SaveCases(*dump, conformance.TableFile()); err != nil {
			fmt.Fprintf(os.Stderr, "dump: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("Wrote built-in table to %s\n", *dump)
		return
	}

	cfg := &utils.Config{
		Protocols: utils.ParseProtocols(*protocol),
		Tolerance: *tolerance,
		LogDir:    *logDir,
		CaseFile:  *caseFile,
		Verbose:   *verbose,
	}
	if err := utils.ValidateConfig(cfg); err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}
	protocols := cfg.Protocols
	if protocols == nil {
		protocols = mpc.Protocols()
	}

	cases, err := loadCases(cfg.CaseFile, protocols)
	if err != nil {
		fmt.Fprintf(os.Stderr, "cases: %v\n", err)
		os.Exit(1)
	}

	fmt.Println("Secure mean gradient check")
	fmt.Printf("  Protocols: %v\n", protocols)
	if *tolerance > 0 {
		fmt.Printf("  Tolerance: %g\n", *tolerance)
	} else {
		fmt.Printf("  Tolerance: per-protocol default\n")
	}
	fmt.Printf("  Cases:     %d\n\n", len(cases))

	stats := &utils.TimingStats{}
	runner := &conformance.Runner{
		Tolerance: *tolerance,
		Verbose:   false,
		LogDir:    cfg.LogDir,
		Stats:     stats,
	}

	start := time.Now()
	summary := runner.RunAll(cases)
	elapsed := time.Since(start)

	summary.Print(os.Stdout)
	fmt.Printf("Elapsed: %v\n", elapsed)
	utils.PrintTimingStats(stats, len(cases))

	if !summary.OK() {
		os.Exit(1)
	}
}

func loadCases(path string, protocols []string) ([]conformance.Case, error) {
	if path == "" {
		return conformance.CasesFor(protocols), nil
	}
	file, err := conformance.LoadCases(path)
	if err != nil {
		return nil, err
	}
	return file.Expand()
}
