package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"iasmeen/internal/analysis"
	"iasmeen/internal/report"
	"iasmeen/internal/session"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	withReliability bool
	jsonOutput      bool
)

var whoisCmd = &cobra.Command{
	Use:   "whois [domain]",
	Short: "Look up WHOIS registration data for a domain",
	Args:  cobra.ExactArgs(1),
	RunE:  lookupRunner(analysis.TargetDomain),
}

var networkCmd = &cobra.Command{
	Use:   "network [ip]",
	Short: "Look up network data for an IP address",
	Args:  cobra.ExactArgs(1),
	RunE:  lookupRunner(analysis.TargetIP),
}

var emailCmd = &cobra.Command{
	Use:   "email [address]",
	Short: "Look up breach and social data for an email address",
	Args:  cobra.ExactArgs(1),
	RunE:  lookupRunner(analysis.TargetEmail),
}

var metadataCmd = &cobra.Command{
	Use:   "metadata [file]",
	Short: "Read metadata from a JPEG or PNG image",
	Args:  cobra.ExactArgs(1),
	RunE:  runMetadata,
}

func init() {
	for _, c := range []*cobra.Command{whoisCmd, networkCmd, emailCmd} {
		c.Flags().BoolVar(&withReliability, "reliability", false, "Also review the reliability of the result")
		c.Flags().BoolVar(&jsonOutput, "json", false, "Print JSON instead of Markdown")
	}
	metadataCmd.Flags().BoolVar(&jsonOutput, "json", false, "Print JSON instead of Markdown")
}

// lookupOutput is the --json shape of a lookup.
type lookupOutput struct {
	ID               string                      `json:"id,omitempty"`
	Kind             analysis.Kind               `json:"kind"`
	Result           any                         `json:"result"`
	Review           *analysis.ReliabilityReview `json:"review,omitempty"`
	ReliabilityError string                      `json:"reliability_error,omitempty"`
}

// signalContext is cancelled on SIGINT or SIGTERM.
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

func lookupRunner(target analysis.TargetKind) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		ctx, cancel := signalContext()
		defer cancel()

		a, err := openApp(ctx, true)
		if err != nil {
			return err
		}
		defer a.Close()

		loc, err := localizer()
		if err != nil {
			return err
		}
		sess := a.newSession(loc)
		if _, err := sess.SelectTarget(target); err != nil {
			return err
		}

		st, err := sess.Search(ctx, args[0])
		if err != nil {
			return err
		}
		if st.Primary.Phase == session.PhaseFailed {
			return errors.New(st.Primary.Err)
		}
		logger.Info("lookup settled", zap.String("kind", string(st.Primary.Kind)), zap.String("id", st.Primary.HistoryID))

		if withReliability {
			st, err = sess.RequestReliability(ctx)
			if err != nil {
				return err
			}
		}
		return printState(cmd.OutOrStdout(), st, func() string { return report.Markdown(loc, st) })
	}
}

func runMetadata(cmd *cobra.Command, args []string) error {
	ctx, cancel := signalContext()
	defer cancel()

	data, err := os.ReadFile(args[0])
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", args[0], err)
	}

	a, err := openApp(ctx, false)
	if err != nil {
		return err
	}
	defer a.Close()

	loc, err := localizer()
	if err != nil {
		return err
	}
	st, err := a.newSession(loc).Upload(ctx, filepath.Base(args[0]), data)
	if err != nil {
		return err
	}
	return printState(cmd.OutOrStdout(), st, func() string { return report.Markdown(loc, st) })
}

// printState writes st as JSON or as the rendered Markdown report.
func printState(w io.Writer, st session.State, markdown func() string) error {
	if !jsonOutput {
		_, err := fmt.Fprint(w, markdown())
		return err
	}

	out := lookupOutput{
		ID:     st.Primary.HistoryID,
		Kind:   st.Primary.Result.Kind(),
		Result: st.Primary.Result.Record(),
	}
	switch st.Reliability.Phase {
	case session.PhaseSettled:
		out.Review = st.Reliability.Review
	case session.PhaseFailed:
		out.ReliabilityError = st.Reliability.Err
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}
