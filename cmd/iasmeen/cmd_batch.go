package main

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"iasmeen/internal/analysis"
	"iasmeen/internal/session"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

var (
	batchKind        string
	batchFile        string
	batchConcurrency int
)

var batchCmd = &cobra.Command{
	Use:   "batch",
	Short: "Look up every subject listed in a file",
	Long: `Reads one subject per line (blank lines and lines starting with # are
skipped) and runs each through its own session, a few at a time.

Example:
  iasmeen batch --kind domain --file subjects.txt --concurrency 4`,
	Args: cobra.NoArgs,
	RunE: runBatch,
}

func init() {
	batchCmd.Flags().StringVar(&batchKind, "kind", "domain", "Target kind: domain, ip or email")
	batchCmd.Flags().StringVar(&batchFile, "file", "", "File with one subject per line (- for stdin)")
	batchCmd.Flags().IntVar(&batchConcurrency, "concurrency", 0, "Parallel lookups (default: batch.concurrency)")
	_ = batchCmd.MarkFlagRequired("file")
}

// batchLine is one JSON line of batch output.
type batchLine struct {
	Subject string        `json:"subject"`
	Kind    analysis.Kind `json:"kind,omitempty"`
	ID      string        `json:"id,omitempty"`
	Result  any           `json:"result,omitempty"`
	Error   string        `json:"error,omitempty"`
}

func runBatch(cmd *cobra.Command, args []string) error {
	target, err := analysis.ParseTargetKind(batchKind)
	if err != nil {
		return err
	}
	subjects, err := readSubjects(cmd.InOrStdin(), batchFile)
	if err != nil {
		return err
	}

	ctx, cancel := signalContext()
	defer cancel()

	a, err := openApp(ctx, true)
	if err != nil {
		return err
	}
	defer a.Close()

	limit := batchConcurrency
	if limit <= 0 {
		limit = cfg.Batch.Concurrency
	}
	lines, err := a.batch(ctx, target, subjects, limit)
	if err != nil {
		return err
	}

	enc := json.NewEncoder(cmd.OutOrStdout())
	failed := 0
	for _, line := range lines {
		if line.Error != "" {
			failed++
		}
		if err := enc.Encode(line); err != nil {
			return err
		}
	}
	logger.Info("batch finished", zap.Int("subjects", len(lines)), zap.Int("failed", failed))
	return nil
}

// batch runs every subject in its own session with at most limit in
// flight. Producer failures are reported per line; only cancellation
// stops the batch.
func (a *app) batch(ctx context.Context, target analysis.TargetKind, subjects []string, limit int) ([]batchLine, error) {
	lines := make([]batchLine, len(subjects))

	g, gctx := errgroup.WithContext(ctx)
	if limit > 0 {
		g.SetLimit(limit)
	}
	var mu sync.Mutex
	for i, subject := range subjects {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			sess := session.New(a.dispatcher, session.WithRecorder(a.store))
			if _, err := sess.SelectTarget(target); err != nil {
				return err
			}
			st, err := sess.Search(gctx, subject)

			line := batchLine{Subject: subject}
			switch {
			case err != nil:
				line.Error = err.Error()
			case st.Primary.Phase == session.PhaseFailed:
				line.Error = st.Primary.Err
			default:
				line.Kind = st.Primary.Result.Kind()
				line.ID = st.Primary.HistoryID
				line.Result = st.Primary.Result.Record()
			}
			mu.Lock()
			lines[i] = line
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return lines, nil
}

// readSubjects reads non-blank, non-comment lines from path or stdin.
func readSubjects(stdin io.Reader, path string) ([]string, error) {
	r := stdin
	if path != "-" {
		f, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("failed to open subjects file: %w", err)
		}
		defer f.Close()
		r = f
	}

	var subjects []string
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		subjects = append(subjects, line)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("failed to read subjects: %w", err)
	}
	return subjects, nil
}
