package generation

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"iasmeen/internal/logging"

	"github.com/google/uuid"
	"google.golang.org/genai"
)

// Trace captures one call through the boundary.
type Trace struct {
	ID               string
	Family           string
	Model            string
	InstructionLen   int
	ResponseLen      int
	Duration         time.Duration
	Success          bool
	Reason           Reason
	ErrorMessage     string
	PromptTokens     int
	CandidatesTokens int
	TotalTokens      int
	CreatedAt        time.Time
}

// TraceSink persists traces.
type TraceSink interface {
	StoreTrace(ctx context.Context, t Trace) error
}

// UsageRecorder receives token usage after each call that reported it.
type UsageRecorder interface {
	RecordUsage(u Usage)
}

// TracingGenerator wraps any Generator and records every call.
type TracingGenerator struct {
	next  Generator
	sink  TraceSink
	usage UsageRecorder
	now   func() time.Time
}

// Tracing wraps next. sink may be nil, in which case calls are only logged.
func Tracing(next Generator, sink TraceSink) *TracingGenerator {
	return &TracingGenerator{next: next, sink: sink, now: time.Now}
}

// WithUsage forwards token counts to r.
func (t *TracingGenerator) WithUsage(r UsageRecorder) *TracingGenerator {
	t.usage = r
	return t
}

func (t *TracingGenerator) Generate(ctx context.Context, instruction string, schema *genai.Schema) (json.RawMessage, error) {
	start := t.now()
	family := FamilyFrom(ctx)
	logging.API("generation started: family=%s instruction_len=%d", family, len(instruction))

	callCtx, slot := withUsageSlot(ctx)
	raw, err := t.next.Generate(callCtx, instruction, schema)

	trace := Trace{
		ID:             uuid.NewString(),
		Family:         family,
		InstructionLen: len(instruction),
		ResponseLen:    len(raw),
		Duration:       t.now().Sub(start),
		Success:        err == nil,
		CreatedAt:      start,
	}
	if u := slot.usage; u != nil {
		trace.Model = u.Model
		trace.PromptTokens = u.PromptTokens
		trace.CandidatesTokens = u.CandidatesTokens
		trace.TotalTokens = u.TotalTokens
		if t.usage != nil {
			t.usage.RecordUsage(*u)
		}
	}
	if err != nil {
		trace.ErrorMessage = err.Error()
		var ge *GenerationError
		if errors.As(err, &ge) {
			trace.Reason = ge.Reason
		}
		logging.APIError("generation failed: family=%s duration=%v err=%v", family, trace.Duration, err)
	} else {
		logging.API("generation completed: family=%s duration=%v response_len=%d tokens=%d",
			family, trace.Duration, len(raw), trace.TotalTokens)
	}

	if t.sink != nil {
		// Detached from ctx so a cancelled request still leaves its trace.
		if serr := t.sink.StoreTrace(context.WithoutCancel(ctx), trace); serr != nil {
			logging.Get(logging.CategoryAPI).Warn("failed to store trace %s: %v", trace.ID, serr)
		}
	}
	return raw, err
}
