// Package session holds the dashboard state machine. A session has a primary
// slot (the current search or upload) and a secondary reliability slot that
// reviews it. All transitions go through Reduce.
package session

import (
	"iasmeen/internal/analysis"
)

// Phase is the lifecycle position of a slot.
type Phase string

const (
	PhaseIdle    Phase = "idle" // no request yet, or reset
	PhasePending Phase = "pending"
	PhaseSettled Phase = "settled"
	PhaseFailed  Phase = "failed"
)

// Primary is the slot holding the current analysis result.
type Primary struct {
	Phase      Phase
	Generation uint64
	Kind       analysis.Kind // of the request in flight or settled
	Subject    string
	Result     analysis.Result
	Err        string
	HistoryID  string
}

// Reliability is the review slot. Generation is the primary generation the
// review was requested for.
type Reliability struct {
	Phase      Phase
	Generation uint64
	Review     *analysis.ReliabilityReview
	Err        string
}

// State is an immutable snapshot of a session.
type State struct {
	Target      analysis.TargetKind
	Primary     Primary
	Reliability Reliability
	// UploadErr is a failed upload. The previous result stays on screen.
	UploadErr string
}

// Initial is the state of a fresh session.
func Initial() State {
	return State{Target: analysis.TargetDomain, Primary: Primary{Phase: PhaseIdle}, Reliability: Reliability{Phase: PhaseIdle}}
}

// Event is an input to Reduce.
type Event interface{ isEvent() }

type (
	TargetSelected struct{ Kind analysis.TargetKind }

	SearchStarted struct {
		Generation uint64
		Kind       analysis.Kind
		Subject    string
	}
	SearchSettled struct {
		Generation uint64
		Result     analysis.Result
	}
	SearchFailed struct {
		Generation uint64
		Err        string
	}

	UploadSettled struct {
		Generation uint64
		Result     analysis.MetadataResult
	}
	UploadFailed struct {
		Generation uint64
		Err        string
	}

	// ResultRecorded attaches the history id of a settled result.
	ResultRecorded struct {
		Generation uint64
		ID         string
	}

	Reset struct{ Generation uint64 }

	ReliabilityStarted struct{ Generation uint64 }
	ReliabilitySettled struct {
		Generation uint64
		Review     *analysis.ReliabilityReview
	}
	ReliabilityFailed struct {
		Generation uint64
		Err        string
	}
)

func (TargetSelected) isEvent()     {}
func (SearchStarted) isEvent()      {}
func (SearchSettled) isEvent()      {}
func (SearchFailed) isEvent()       {}
func (UploadSettled) isEvent()      {}
func (UploadFailed) isEvent()       {}
func (ResultRecorded) isEvent()     {}
func (Reset) isEvent()              {}
func (ReliabilityStarted) isEvent() {}
func (ReliabilitySettled) isEvent() {}
func (ReliabilityFailed) isEvent()  {}

// Reduce applies ev to s. The second return is false when the event was
// rejected (stale generation or not allowed in the current phase), in which
// case s is returned unchanged.
//
// Whenever the primary result is replaced the reliability slot returns to
// idle, so a review can never outlive the result it was computed for.
func Reduce(s State, ev Event) (State, bool) {
	switch e := ev.(type) {
	case TargetSelected:
		s.Target = e.Kind
		s.UploadErr = ""
		return s, true

	case SearchStarted:
		if e.Generation <= s.Primary.Generation {
			return s, false
		}
		s.Primary = Primary{Phase: PhasePending, Generation: e.Generation, Kind: e.Kind, Subject: e.Subject}
		s.Reliability = Reliability{Phase: PhaseIdle}
		s.UploadErr = ""
		return s, true

	case SearchSettled:
		if !s.awaiting(e.Generation) || e.Result == nil {
			return s, false
		}
		s.Primary.Phase = PhaseSettled
		s.Primary.Result = e.Result
		s.Primary.Kind = e.Result.Kind()
		return s, true

	case SearchFailed:
		if !s.awaiting(e.Generation) {
			return s, false
		}
		s.Primary.Phase = PhaseFailed
		s.Primary.Result = nil
		s.Primary.Err = e.Err
		return s, true

	case UploadSettled:
		if e.Generation <= s.Primary.Generation {
			return s, false
		}
		s.Primary = Primary{
			Phase:      PhaseSettled,
			Generation: e.Generation,
			Kind:       analysis.KindMetadata,
			Subject:    e.Result.Subject(),
			Result:     e.Result,
		}
		s.Reliability = Reliability{Phase: PhaseIdle}
		s.UploadErr = ""
		return s, true

	case UploadFailed:
		if e.Generation <= s.Primary.Generation {
			return s, false
		}
		s.UploadErr = e.Err
		return s, true

	case ResultRecorded:
		if e.Generation != s.Primary.Generation || s.Primary.Result == nil {
			return s, false
		}
		s.Primary.HistoryID = e.ID
		return s, true

	case Reset:
		if e.Generation <= s.Primary.Generation {
			return s, false
		}
		s.Primary = Primary{Phase: PhaseIdle, Generation: e.Generation}
		s.Reliability = Reliability{Phase: PhaseIdle}
		s.UploadErr = ""
		return s, true

	case ReliabilityStarted:
		if !s.CanReview() || e.Generation != s.Primary.Generation {
			return s, false
		}
		s.Reliability = Reliability{Phase: PhasePending, Generation: e.Generation}
		s.UploadErr = ""
		return s, true

	case ReliabilitySettled:
		if !s.reviewing(e.Generation) || e.Review == nil {
			return s, false
		}
		s.Reliability.Phase = PhaseSettled
		s.Reliability.Review = e.Review
		return s, true

	case ReliabilityFailed:
		if !s.reviewing(e.Generation) {
			return s, false
		}
		s.Reliability.Phase = PhaseFailed
		s.Reliability.Err = e.Err
		return s, true
	}
	return s, false
}

func (s State) awaiting(gen uint64) bool {
	return s.Primary.Phase == PhasePending && s.Primary.Generation == gen
}

func (s State) reviewing(gen uint64) bool {
	return s.Reliability.Phase == PhasePending &&
		s.Reliability.Generation == gen &&
		s.Primary.Generation == gen
}

// CanReview reports whether a reliability request would start. Settled and
// failed reviews are not re-entered until the primary result changes.
func (s State) CanReview() bool {
	return s.Primary.Phase == PhaseSettled &&
		analysis.Reviewable(s.Primary.Result) &&
		s.Reliability.Phase == PhaseIdle
}
