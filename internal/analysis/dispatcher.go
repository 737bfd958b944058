package analysis

import (
	"context"
	"errors"
	"fmt"

	"iasmeen/internal/generation"
	"iasmeen/internal/logging"
)

// ErrReliabilityUnavailable is returned when a review is requested for no
// result or for file metadata.
var ErrReliabilityUnavailable = errors.New("reliability analysis is not available for this result")

// Dispatcher routes a target to its producer.
type Dispatcher struct {
	gen generation.Generator
}

// NewDispatcher creates a Dispatcher over gen.
func NewDispatcher(gen generation.Generator) *Dispatcher {
	return &Dispatcher{gen: gen}
}

// Dispatch runs exactly one producer for kind and wraps its record in the
// matching Result variant. The subject is interpolated verbatim.
func (d *Dispatcher) Dispatch(ctx context.Context, kind TargetKind, subject string) (Result, error) {
	logging.SessionDebug("dispatch: kind=%s subject=%q", kind, subject)
	switch kind {
	case TargetDomain:
		rec, err := produce[WhoisRecord](ctx, d.gen, FamilyWhois, whoisInstruction(subject), WhoisSchema)
		if err != nil {
			return nil, err
		}
		return WhoisResult{Data: rec}, nil
	case TargetIP:
		rec, err := produce[NetworkRecord](ctx, d.gen, FamilyNetwork, networkInstruction(subject), NetworkSchema)
		if err != nil {
			return nil, err
		}
		return NetworkResult{Data: rec}, nil
	case TargetEmail:
		rec, err := produce[EmailRecord](ctx, d.gen, FamilyEmail, emailInstruction(subject), EmailSchema)
		if err != nil {
			return nil, err
		}
		return EmailResult{Data: rec}, nil
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownTarget, kind)
}

// Review runs the reliability pass over a settled result. lang selects the
// vocabulary of the score ("fr" or "en").
func (d *Dispatcher) Review(ctx context.Context, result Result, lang string) (*ReliabilityReview, error) {
	if !Reviewable(result) {
		return nil, ErrReliabilityUnavailable
	}
	instruction, err := reliabilityInstruction(result.Record(), lang)
	if err != nil {
		return nil, generation.Fail(generation.WithFamily(ctx, string(FamilyReliability)), generation.ReasonRequest, err)
	}
	review, err := produce[ReliabilityReview](ctx, d.gen, FamilyReliability, instruction, ReliabilitySchema)
	if err != nil {
		return nil, err
	}
	return &review, nil
}
