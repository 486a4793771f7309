// Command regexguard analyzes WAF rule regexes for catastrophic
// backtracking, estimates their evaluation cost and proposes safe rewrites.
package main

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"regexguard/config"
	"regexguard/report"
	"regexguard/syntax"

	"github.com/briandowns/spinner"
	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	successColor = color.New(color.FgGreen, color.Bold)
	errorColor   = color.New(color.FgRed, color.Bold)
	warningColor = color.New(color.FgYellow)
	infoColor    = color.New(color.FgCyan)
)

var (
	flagConfig   string
	flagDialect  string
	flagProfile  string
	flagJSON     bool
	flagTimeout  time.Duration
	flagRewrites int
	flagVerbose  bool
)

func main() {
	root := &cobra.Command{
		Use:           "regexguard",
		Short:         "Regex safety and cost analysis for WAF rule sets",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&flagConfig, "config", "", "path to YAML config file")
	root.PersistentFlags().StringVar(&flagDialect, "dialect", string(syntax.DialectPCRE), "regex dialect (pcre, re2)")
	root.PersistentFlags().StringVar(&flagProfile, "profile", "pcre", "target engine profile (pcre, re2, linear, posix-legacy)")
	root.PersistentFlags().BoolVar(&flagJSON, "json", false, "emit the report as JSON")
	root.PersistentFlags().DurationVar(&flagTimeout, "timeout", 30*time.Second, "per-invocation deadline")
	root.PersistentFlags().IntVar(&flagRewrites, "rewrites", 1, "maximum rewrite candidates per pattern")
	root.PersistentFlags().BoolVar(&flagVerbose, "verbose", false, "enable debug logging")

	root.AddCommand(analyzeCmd(), batchCmd())
	if err := root.Execute(); err != nil {
		errorColor.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func newService() (*report.Service, error) {
	cfg, err := config.Load(flagConfig)
	if err != nil {
		return nil, err
	}
	var logger *zap.Logger
	if flagVerbose {
		logger, err = zap.NewDevelopment()
	} else {
		logger = zap.NewNop()
	}
	if err != nil {
		return nil, err
	}
	return report.NewService(cfg, logger.Sugar())
}

func analyzeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "analyze <pattern>",
		Short: "Analyze a single pattern",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := newService()
			if err != nil {
				return err
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), flagTimeout)
			defer cancel()
			rep, err := svc.Analyze(ctx, report.Request{
				Pattern:       args[0],
				Dialect:       syntax.Dialect(flagDialect),
				Profile:       flagProfile,
				MaxCandidates: flagRewrites,
			})
			if err != nil {
				return err
			}
			if flagJSON {
				return printJSON(rep)
			}
			printReport(rep)
			return nil
		},
	}
}

func batchCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "batch <file>",
		Short: "Analyze every pattern in a file, one per line",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := newService()
			if err != nil {
				return err
			}
			reqs, err := readPatternFile(args[0])
			if err != nil {
				return err
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), flagTimeout)
			defer cancel()

			var spin *spinner.Spinner
			if !flagJSON {
				spin = spinner.New(spinner.CharSets[14], 100*time.Millisecond)
				spin.Suffix = fmt.Sprintf(" analyzing %d patterns", len(reqs))
				spin.Start()
			}
			results := svc.AnalyzeBatch(ctx, reqs)
			if spin != nil {
				spin.Stop()
			}
			if flagJSON {
				return printJSON(results)
			}
			for _, res := range results {
				if res.Err != nil {
					errorColor.Printf("[%d] %s\n", res.Index, res.Error)
					continue
				}
				printReport(res.Report)
			}
			return nil
		},
	}
}

func readPatternFile(path string) ([]report.Request, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	var reqs []report.Request
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		reqs = append(reqs, report.Request{
			Pattern:       line,
			Dialect:       syntax.Dialect(flagDialect),
			Profile:       flagProfile,
			MaxCandidates: flagRewrites,
		})
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	return reqs, nil
}

func printJSON(v interface{}) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func printReport(rep *report.Report) {
	fmt.Printf("pattern: %s\n", rep.Pattern)
	if rep.Vulnerable {
		errorColor.Printf("  vulnerable (%s)\n", rep.Complexity)
	} else {
		successColor.Println("  safe")
	}
	for _, f := range rep.Findings {
		warningColor.Printf("  [%s] %s @ %d-%d\n", f.Severity, f.Class, f.Span.Start, f.Span.End)
		fmt.Printf("    %s\n", f.Explanation)
	}
	infoColor.Printf("  cost: %.2f  performance: %d/100\n", rep.Score.Total, rep.PerformanceScore)
	for _, u := range rep.Unsupported {
		warningColor.Printf("  unsupported on %s: %s @ %d-%d\n", rep.Profile, u.Construct, u.Span.Start, u.Span.End)
	}
	for _, c := range rep.Candidates {
		successColor.Printf("  rewrite (%s, %s): %s\n", c.Strategy, c.Equivalence.Kind, c.Pattern)
		if c.Equivalence.Caveat != "" {
			fmt.Printf("    caveat: %s\n", c.Equivalence.Caveat)
		}
	}
	fmt.Println()
}
