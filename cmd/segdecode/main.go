// Package main is the segdecode command line tool.
package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/fidde/segment_decoder/internal/analyzer"
	"github.com/fidde/segment_decoder/internal/parser"
	"github.com/fidde/segment_decoder/pkg/models"
	"github.com/spf13/cobra"
)

type decodeOptions struct {
	json    bool
	workers int
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "segdecode",
		Short:         "Decode scrambled seven-segment display entries",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.AddCommand(newDecodeCmd(), newEntryCmd())
	return rootCmd
}

func newDecodeCmd() *cobra.Command {
	opts := &decodeOptions{}
	cmd := &cobra.Command{
		Use:   "decode <file|->",
		Short: "Decode every entry of a file and print the unique-length count and sum",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDecode(cmd, args[0], opts)
		},
	}
	cmd.Flags().BoolVar(&opts.json, "json", false, "print the full summary as JSON")
	cmd.Flags().IntVar(&opts.workers, "workers", 0, "decode workers (0 = one per CPU)")
	return cmd
}

func newEntryCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "entry <line>",
		Short: "Decode a single entry",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runEntry(cmd, strings.Join(args, " "))
		},
	}
}

func runDecode(cmd *cobra.Command, path string, opts *decodeOptions) error {
	var in io.Reader = cmd.InOrStdin()
	if path != "-" {
		f, err := os.Open(path)
		if err != nil {
			return fmt.Errorf("opening input: %w", err)
		}
		defer f.Close()
		in = f
	}

	lines, err := parser.ReadLines(in)
	if err != nil {
		return err
	}

	results, err := analyzer.NewEntryAnalyzer(opts.workers).AnalyzeLines(cmd.Context(), lines, models.SourceCLI)
	if err != nil {
		return err
	}

	for _, r := range results {
		if !r.Decoded() {
			fmt.Fprintf(cmd.ErrOrStderr(), "warning: line %d: %s\n", r.Line, r.Error)
		}
	}

	summary := models.Summarize(results)
	if opts.json {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(summary)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "unique: %d\n", summary.UniqueCount)
	fmt.Fprintf(cmd.OutOrStdout(), "sum: %d\n", summary.Sum)
	return nil
}

func runEntry(cmd *cobra.Command, text string) error {
	text = strings.TrimSpace(text)
	entry, err := parser.ParseEntry(text)
	if err != nil {
		return err
	}

	result := analyzer.NewEntryAnalyzer(1).AnalyzeLine(parser.Line{Number: 1, Text: text, Entry: entry}, models.SourceCLI)
	if !result.Decoded() {
		return fmt.Errorf("decoding entry: %s", result.Error)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "digits: %s\n", joinDigits(result.Digits))
	fmt.Fprintf(cmd.OutOrStdout(), "value: %d\n", result.Value)
	return nil
}

func joinDigits(digits []int) string {
	parts := make([]string, len(digits))
	for i, d := range digits {
		parts[i] = fmt.Sprint(d)
	}
	return strings.Join(parts, " ")
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
