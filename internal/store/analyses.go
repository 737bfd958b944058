package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"iasmeen/internal/analysis"
	"iasmeen/internal/logging"

	"github.com/google/uuid"
)

// ErrNotFound is returned by Get for an unknown id.
var ErrNotFound = errors.New("analysis not found")

// Analysis is one stored result with its optional review.
type Analysis struct {
	ID          string                      `json:"id"`
	Kind        analysis.Kind               `json:"kind"`
	Subject     string                      `json:"subject"`
	Registrable string                      `json:"registrable,omitempty"`
	Data        json.RawMessage             `json:"data"`
	Review      *analysis.ReliabilityReview `json:"review,omitempty"`
	CreatedAt   time.Time                   `json:"createdAt"`
}

// Result decodes Data back into its Result variant.
func (a Analysis) Result() (analysis.Result, error) {
	switch a.Kind {
	case analysis.KindWhois:
		var rec analysis.WhoisRecord
		err := json.Unmarshal(a.Data, &rec)
		return analysis.WhoisResult{Data: rec}, err
	case analysis.KindNetwork:
		var rec analysis.NetworkRecord
		err := json.Unmarshal(a.Data, &rec)
		return analysis.NetworkResult{Data: rec}, err
	case analysis.KindEmail:
		var rec analysis.EmailRecord
		err := json.Unmarshal(a.Data, &rec)
		return analysis.EmailResult{Data: rec}, err
	case analysis.KindMetadata:
		var rec analysis.MetadataRecord
		err := json.Unmarshal(a.Data, &rec)
		return analysis.MetadataResult{Data: rec}, err
	}
	return nil, fmt.Errorf("unknown analysis kind %q", a.Kind)
}

// RecordResult stores a settled result and returns its id.
func (s *Store) RecordResult(ctx context.Context, result analysis.Result) (string, error) {
	if result == nil {
		return "", errors.New("cannot record an empty result")
	}
	timer := logging.StartTimer(logging.CategoryStore, "RecordResult")
	defer timer.Stop()

	data, err := json.Marshal(result.Record())
	if err != nil {
		return "", fmt.Errorf("failed to encode result: %w", err)
	}
	id := uuid.NewString()
	kind := result.Kind()

	s.mu.Lock()
	defer s.mu.Unlock()
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO analyses (id, kind, subject, registrable, result, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		id, string(kind), result.Subject(), Registrable(kind, result.Subject()), string(data), s.now().UnixNano(),
	)
	if err != nil {
		logging.Get(logging.CategoryStore).Error("Failed to record %s result: %v", kind, err)
		return "", fmt.Errorf("failed to record result: %w", err)
	}
	logging.StoreDebug("recorded %s result %s for %q", kind, id, result.Subject())
	return id, nil
}

// RecordReview attaches a reliability review to a stored result.
func (s *Store) RecordReview(ctx context.Context, id string, review *analysis.ReliabilityReview) error {
	data, err := json.Marshal(review)
	if err != nil {
		return fmt.Errorf("failed to encode review: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	res, err := s.db.ExecContext(ctx, `UPDATE analyses SET review = ? WHERE id = ?`, string(data), id)
	if err != nil {
		return fmt.Errorf("failed to record review: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return nil
}

const analysisColumns = `id, kind, subject, registrable, result, review, created_at`

// Get returns one analysis by id.
func (s *Store) Get(ctx context.Context, id string) (*Analysis, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.db.QueryRowContext(ctx, `SELECT `+analysisColumns+` FROM analyses WHERE id = ?`, id)
	a, err := scanAnalysis(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return nil, err
	}
	return a, nil
}

// Recent returns the newest analyses first.
func (s *Store) Recent(ctx context.Context, limit int) ([]Analysis, error) {
	if limit <= 0 {
		limit = 50
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx,
		`SELECT `+analysisColumns+` FROM analyses ORDER BY created_at DESC, rowid DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query history: %w", err)
	}
	return collect(rows)
}

// ByRegistrable returns analyses whose subject belongs to the registrable
// domain of domain, newest first. "mail.example.co.uk" and
// "user@example.co.uk" both match "example.co.uk".
func (s *Store) ByRegistrable(ctx context.Context, domain string, limit int) ([]Analysis, error) {
	key := Registrable(analysis.KindWhois, domain)
	if key == "" {
		return nil, fmt.Errorf("%q has no registrable domain", domain)
	}
	if limit <= 0 {
		limit = 50
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx,
		`SELECT `+analysisColumns+` FROM analyses WHERE registrable = ? ORDER BY created_at DESC, rowid DESC LIMIT ?`,
		key, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query history: %w", err)
	}
	return collect(rows)
}

type scanner interface {
	Scan(dest ...any) error
}

func scanAnalysis(row scanner) (*Analysis, error) {
	var (
		a       Analysis
		kind    string
		data    string
		review  sql.NullString
		created int64
	)
	if err := row.Scan(&a.ID, &kind, &a.Subject, &a.Registrable, &data, &review, &created); err != nil {
		return nil, err
	}
	a.Kind = analysis.Kind(kind)
	a.Data = json.RawMessage(data)
	a.CreatedAt = time.Unix(0, created)
	if review.Valid && review.String != "" {
		a.Review = &analysis.ReliabilityReview{}
		if err := json.Unmarshal([]byte(review.String), a.Review); err != nil {
			return nil, fmt.Errorf("failed to decode review of %s: %w", a.ID, err)
		}
	}
	return &a, nil
}

func collect(rows *sql.Rows) ([]Analysis, error) {
	defer rows.Close()
	var out []Analysis
	for rows.Next() {
		a, err := scanAnalysis(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *a)
	}
	return out, rows.Err()
}
