package session

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"

	"iasmeen/internal/analysis"
	"iasmeen/internal/logging"
	"iasmeen/internal/metadata"
)

// ErrEmptySubject is returned by Search for a blank subject.
var ErrEmptySubject = errors.New("search subject is empty")

// Analyzer runs the primary and reliability producers.
type Analyzer interface {
	Dispatch(ctx context.Context, kind analysis.TargetKind, subject string) (analysis.Result, error)
	Review(ctx context.Context, result analysis.Result, lang string) (*analysis.ReliabilityReview, error)
}

// Recorder persists settled results. Failures are logged and otherwise
// ignored.
type Recorder interface {
	RecordResult(ctx context.Context, result analysis.Result) (string, error)
	RecordReview(ctx context.Context, id string, review *analysis.ReliabilityReview) error
}

// LoaderFunc turns an uploaded file into a metadata record.
type LoaderFunc func(ctx context.Context, name string, data []byte) (analysis.MetadataRecord, error)

// Option configures a Session.
type Option func(*Session)

// WithRecorder stores every settled result and review.
func WithRecorder(r Recorder) Option {
	return func(s *Session) { s.recorder = r }
}

// WithLanguage sets the source of the review language. Defaults to "fr".
func WithLanguage(fn func() string) Option {
	return func(s *Session) { s.language = fn }
}

// WithLoader replaces metadata.Load.
func WithLoader(fn LoaderFunc) Option {
	return func(s *Session) { s.loader = fn }
}

// Session is one dashboard. Methods are safe for concurrent use; the
// blocking ones return once their producer call has settled.
type Session struct {
	analyzer Analyzer
	recorder Recorder
	loader   LoaderFunc
	language func() string

	mu        sync.Mutex
	state     State
	gen       uint64
	listeners []func(State)
}

// New creates a session over analyzer.
func New(analyzer Analyzer, opts ...Option) *Session {
	s := &Session{
		analyzer: analyzer,
		loader:   metadata.Load,
		language: func() string { return "fr" },
		state:    Initial(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Snapshot returns the current state.
func (s *Session) Snapshot() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// OnChange registers fn to be called after every accepted transition. fn
// runs outside the session lock, on the goroutine that caused the change.
func (s *Session) OnChange(fn func(State)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listeners = append(s.listeners, fn)
}

// apply reduces ev and notifies listeners if the event was accepted.
func (s *Session) apply(ev Event) (State, bool) {
	s.mu.Lock()
	next, ok := Reduce(s.state, ev)
	if ok {
		s.state = next
	}
	listeners := slices.Clone(s.listeners)
	s.mu.Unlock()

	if ok {
		logging.SessionDebug("event %T accepted: primary=%s reliability=%s", ev, next.Primary.Phase, next.Reliability.Phase)
		for _, fn := range listeners {
			fn(next)
		}
	} else {
		logging.SessionDebug("event %T discarded", ev)
	}
	return next, ok
}

func (s *Session) nextGeneration() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.gen++
	return s.gen
}

// SelectTarget switches the producer used by Search.
func (s *Session) SelectTarget(kind analysis.TargetKind) (State, error) {
	parsed, err := analysis.ParseTargetKind(string(kind))
	if err != nil {
		return s.Snapshot(), err
	}
	st, _ := s.apply(TargetSelected{Kind: parsed})
	return st, nil
}

func kindFor(t analysis.TargetKind) analysis.Kind {
	switch t {
	case analysis.TargetIP:
		return analysis.KindNetwork
	case analysis.TargetEmail:
		return analysis.KindEmail
	}
	return analysis.KindWhois
}

// Search runs the producer for the selected target. Producer failures are
// stored in the state, not returned. A later Search or Upload supersedes
// this one even if it settles first.
func (s *Session) Search(ctx context.Context, subject string) (State, error) {
	if strings.TrimSpace(subject) == "" {
		return s.Snapshot(), ErrEmptySubject
	}

	gen := s.nextGeneration()
	s.mu.Lock()
	target := s.state.Target
	s.mu.Unlock()

	s.apply(SearchStarted{Generation: gen, Kind: kindFor(target), Subject: subject})
	logging.Session("search started: gen=%d target=%s subject=%q", gen, target, subject)

	result, err := s.analyzer.Dispatch(ctx, target, subject)
	if err != nil {
		logging.Get(logging.CategorySession).Warn("search failed: gen=%d err=%v", gen, err)
		st, _ := s.apply(SearchFailed{Generation: gen, Err: err.Error()})
		return st, nil
	}
	st, ok := s.apply(SearchSettled{Generation: gen, Result: result})
	if ok {
		st = s.record(ctx, gen, result)
	}
	return st, nil
}

// Upload reads image metadata. A decode failure keeps the previous result
// and sets UploadErr; the error is also returned.
func (s *Session) Upload(ctx context.Context, name string, data []byte) (State, error) {
	gen := s.nextGeneration()
	logging.Session("upload started: gen=%d file=%q size=%d", gen, name, len(data))

	rec, err := s.loader(ctx, name, data)
	if err != nil {
		st, _ := s.apply(UploadFailed{Generation: gen, Err: err.Error()})
		return st, err
	}
	result := analysis.MetadataResult{Data: rec}
	st, ok := s.apply(UploadSettled{Generation: gen, Result: result})
	if ok {
		st = s.record(ctx, gen, result)
	}
	return st, nil
}

func (s *Session) record(ctx context.Context, gen uint64, result analysis.Result) State {
	if s.recorder == nil {
		return s.Snapshot()
	}
	id, err := s.recorder.RecordResult(ctx, result)
	if err != nil {
		logging.Get(logging.CategorySession).Warn("failed to record result: %v", err)
		return s.Snapshot()
	}
	st, _ := s.apply(ResultRecorded{Generation: gen, ID: id})
	return st
}

// RequestReliability reviews the current result. It returns
// analysis.ErrReliabilityUnavailable when there is no reviewable result and
// is a no-op while a review is pending or after one has finished.
func (s *Session) RequestReliability(ctx context.Context) (State, error) {
	s.mu.Lock()
	cur := s.state
	s.mu.Unlock()

	if cur.Primary.Phase != PhaseSettled || !analysis.Reviewable(cur.Primary.Result) {
		return cur, analysis.ErrReliabilityUnavailable
	}
	gen := cur.Primary.Generation
	if _, ok := s.apply(ReliabilityStarted{Generation: gen}); !ok {
		return s.Snapshot(), nil
	}
	logging.Session("reliability started: gen=%d kind=%s", gen, cur.Primary.Kind)

	review, err := s.analyzer.Review(ctx, cur.Primary.Result, s.language())
	if err != nil {
		logging.Get(logging.CategorySession).Warn("reliability failed: gen=%d err=%v", gen, err)
		st, _ := s.apply(ReliabilityFailed{Generation: gen, Err: err.Error()})
		return st, nil
	}
	st, ok := s.apply(ReliabilitySettled{Generation: gen, Review: review})
	if ok && s.recorder != nil && st.Primary.HistoryID != "" {
		if err := s.recorder.RecordReview(ctx, st.Primary.HistoryID, review); err != nil {
			logging.Get(logging.CategorySession).Warn("failed to record review: %v", err)
		}
	}
	return st, nil
}

// Reset clears the result, review and any errors. In-flight calls are
// discarded when they settle.
func (s *Session) Reset() State {
	st, _ := s.apply(Reset{Generation: s.nextGeneration()})
	return st
}

// Describe is a one-line summary of the state for logs and the CLI.
func (st State) Describe() string {
	switch st.Primary.Phase {
	case PhasePending:
		return fmt.Sprintf("%s %q pending", st.Primary.Kind, st.Primary.Subject)
	case PhaseFailed:
		return fmt.Sprintf("%s %q failed: %s", st.Primary.Kind, st.Primary.Subject, st.Primary.Err)
	case PhaseSettled:
		return fmt.Sprintf("%s %q settled", st.Primary.Kind, st.Primary.Result.Subject())
	}
	return "idle"
}
