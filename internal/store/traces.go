package store

import (
	"context"
	"fmt"

	"iasmeen/internal/generation"
	"iasmeen/internal/logging"
)

// StoreTrace persists one generation call. It satisfies generation.TraceSink.
func (s *Store) StoreTrace(ctx context.Context, t generation.Trace) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO generation_traces
		(id, family, model, instruction_len, response_len, duration_ms, success, reason,
		 error_message, prompt_tokens, candidates_tokens, total_tokens, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		t.ID, t.Family, t.Model, t.InstructionLen, t.ResponseLen, t.Duration.Milliseconds(),
		t.Success, string(t.Reason), t.ErrorMessage, t.PromptTokens, t.CandidatesTokens,
		t.TotalTokens, t.CreatedAt.UnixNano(),
	)
	if err != nil {
		logging.Get(logging.CategoryStore).Error("Failed to store generation trace %s: %v", t.ID, err)
		return fmt.Errorf("failed to store trace: %w", err)
	}
	return nil
}

// FamilyStats aggregates the traces of one request family.
type FamilyStats struct {
	Family        string  `json:"family"`
	Calls         int     `json:"calls"`
	Failures      int     `json:"failures"`
	AvgDurationMs float64 `json:"avgDurationMs"`
	TotalTokens   int     `json:"totalTokens"`
}

// TraceStats summarizes stored traces per family, sorted by family.
func (s *Store) TraceStats(ctx context.Context) ([]FamilyStats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `
		SELECT family,
		       COUNT(*),
		       COALESCE(SUM(CASE WHEN success THEN 0 ELSE 1 END), 0),
		       COALESCE(AVG(duration_ms), 0),
		       COALESCE(SUM(total_tokens), 0)
		FROM generation_traces
		GROUP BY family
		ORDER BY family`)
	if err != nil {
		return nil, fmt.Errorf("failed to query trace stats: %w", err)
	}
	defer rows.Close()

	var out []FamilyStats
	for rows.Next() {
		var fs FamilyStats
		if err := rows.Scan(&fs.Family, &fs.Calls, &fs.Failures, &fs.AvgDurationMs, &fs.TotalTokens); err != nil {
			return nil, err
		}
		out = append(out, fs)
	}
	return out, rows.Err()
}
