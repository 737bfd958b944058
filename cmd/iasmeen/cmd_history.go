package main

import (
	"encoding/json"
	"fmt"
	"sort"
	"text/tabwriter"

	"iasmeen/internal/export"
	"iasmeen/internal/report"
	"iasmeen/internal/store"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	historyDomain string
	historyLimit  int
	exportFormat  string
	exportDir     string
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List recorded analyses, newest first",
	Args:  cobra.NoArgs,
	RunE:  runHistory,
}

var usageCmd = &cobra.Command{
	Use:   "usage",
	Short: "Show Gemini token usage and request statistics",
	Args:  cobra.NoArgs,
	RunE:  runUsage,
}

var exportCmd = &cobra.Command{
	Use:   "export [history-id]",
	Short: "Export a recorded analysis as Markdown or PDF",
	Args:  cobra.ExactArgs(1),
	RunE:  runExport,
}

func init() {
	historyCmd.Flags().StringVar(&historyDomain, "domain", "", "Only analyses under this registrable domain")
	historyCmd.Flags().IntVar(&historyLimit, "limit", 20, "Maximum entries")
	historyCmd.Flags().BoolVar(&jsonOutput, "json", false, "Print JSON")

	exportCmd.Flags().StringVar(&exportFormat, "format", "md", "Export format: md or pdf")
	exportCmd.Flags().StringVar(&exportDir, "dir", "", "Output directory (default: export.dir)")
}

func runHistory(cmd *cobra.Command, args []string) error {
	ctx, cancel := signalContext()
	defer cancel()

	a, err := openApp(ctx, false)
	if err != nil {
		return err
	}
	defer a.Close()

	var entries []store.Analysis
	if historyDomain != "" {
		entries, err = a.store.ByRegistrable(ctx, historyDomain, historyLimit)
	} else {
		entries, err = a.store.Recent(ctx, historyLimit)
	}
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if jsonOutput {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(entries)
	}
	if len(entries) == 0 {
		fmt.Fprintln(out, "No analyses recorded.")
		return nil
	}
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tKIND\tSUBJECT\tREVIEW\tCREATED")
	for _, e := range entries {
		review := "-"
		if e.Review != nil {
			review = string(e.Review.Reliability)
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", e.ID, e.Kind, e.Subject, review, e.CreatedAt.Local().Format("2006-01-02 15:04"))
	}
	return tw.Flush()
}

func runUsage(cmd *cobra.Command, args []string) error {
	ctx, cancel := signalContext()
	defer cancel()

	a, err := openApp(ctx, false)
	if err != nil {
		return err
	}
	defer a.Close()

	traces, err := a.store.TraceStats(ctx)
	if err != nil {
		return err
	}
	stats := a.tracker.Stats()

	out := cmd.OutOrStdout()
	fmt.Fprintln(out, "Token Usage")
	fmt.Fprintf(out, "  Calls:  %d\n", stats.Total.Calls)
	fmt.Fprintf(out, "  Input:  %d\n", stats.Total.Input)
	fmt.Fprintf(out, "  Output: %d\n", stats.Total.Output)
	fmt.Fprintf(out, "  Total:  %d\n", stats.Total.Total)

	if len(stats.ByModel) > 0 {
		fmt.Fprintln(out, "\nBy Model")
		models := make([]string, 0, len(stats.ByModel))
		for m := range stats.ByModel {
			models = append(models, m)
		}
		sort.Strings(models)
		for _, m := range models {
			c := stats.ByModel[m]
			fmt.Fprintf(out, "  %-24s calls=%d total=%d\n", m, c.Calls, c.Total)
		}
	}

	fmt.Fprintln(out, "\nRequests")
	if len(traces) == 0 {
		fmt.Fprintln(out, "  none recorded")
		return nil
	}
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "  FAMILY\tCALLS\tFAILURES\tAVG MS\tTOKENS")
	for _, f := range traces {
		fmt.Fprintf(tw, "  %s\t%d\t%d\t%.0f\t%d\n", f.Family, f.Calls, f.Failures, f.AvgDurationMs, f.TotalTokens)
	}
	return tw.Flush()
}

func runExport(cmd *cobra.Command, args []string) error {
	ctx, cancel := signalContext()
	defer cancel()

	if exportFormat != "md" && exportFormat != "pdf" {
		return fmt.Errorf("invalid export format %q (valid: md, pdf)", exportFormat)
	}

	a, err := openApp(ctx, false)
	if err != nil {
		return err
	}
	defer a.Close()

	entry, err := a.store.Get(ctx, args[0])
	if err != nil {
		return err
	}
	result, err := entry.Result()
	if err != nil {
		return fmt.Errorf("failed to decode analysis %s: %w", entry.ID, err)
	}
	loc, err := localizer()
	if err != nil {
		return err
	}
	md := report.Render(loc, result, entry.Review)

	dir := exportDir
	if dir == "" {
		dir = cfg.Export.Dir
	}
	exp := export.New(dir, cfg.Export.ChromeBin, newPrinter())

	var path string
	if exportFormat == "pdf" {
		path, err = exp.PDF(ctx, md)
	} else {
		path, err = exp.Markdown(md)
	}
	if err != nil {
		return err
	}
	logger.Info("report exported", zap.String("id", entry.ID), zap.String("path", path))
	fmt.Fprintln(cmd.OutOrStdout(), path)
	return nil
}

// newPrinter returns the PDF printer; nil selects headless Chrome. Tests
// replace it.
var newPrinter = func() export.Printer { return nil }
