// Package generation is the boundary to the content-generation service: a
// natural-language instruction plus a response schema go in, a JSON value
// that conforms to the schema (or an error) comes out. Nothing here retries.
package generation

import (
	"context"
	"encoding/json"
	"fmt"

	"google.golang.org/genai"
)

// Generator produces a JSON value for an instruction under a schema.
// Calls are not assumed deterministic, idempotent or side-effect free.
type Generator interface {
	Generate(ctx context.Context, instruction string, schema *genai.Schema) (json.RawMessage, error)
}

// GeneratorFunc adapts a function to Generator.
type GeneratorFunc func(ctx context.Context, instruction string, schema *genai.Schema) (json.RawMessage, error)

func (f GeneratorFunc) Generate(ctx context.Context, instruction string, schema *genai.Schema) (json.RawMessage, error) {
	return f(ctx, instruction, schema)
}

// Reason classifies a GenerationError.
type Reason string

const (
	ReasonRequest       Reason = "request"        // transport or API failure
	ReasonEmpty         Reason = "empty"          // no text in the response
	ReasonMalformed     Reason = "malformed"      // text is not JSON
	ReasonNonConforming Reason = "non_conforming" // JSON does not match the schema
	ReasonDecode        Reason = "decode"         // JSON does not fit the record type
)

// GenerationError is the single error type surfaced by the boundary.
type GenerationError struct {
	Family string // WHOIS, NETWORK, EMAIL, RELIABILITY; empty if unknown
	Reason Reason
	Cause  error
}

func (e *GenerationError) Error() string {
	if e.Family == "" {
		return fmt.Sprintf("content generation failed: %v", e.Cause)
	}
	return fmt.Sprintf("failed to fetch %s data: %v", e.Family, e.Cause)
}

func (e *GenerationError) Unwrap() error { return e.Cause }

type familyKey struct{}

// WithFamily labels ctx with the request family for errors and traces.
func WithFamily(ctx context.Context, family string) context.Context {
	return context.WithValue(ctx, familyKey{}, family)
}

// FamilyFrom returns the family set by WithFamily.
func FamilyFrom(ctx context.Context) string {
	f, _ := ctx.Value(familyKey{}).(string)
	return f
}

// Fail builds a GenerationError labelled with the family carried by ctx.
func Fail(ctx context.Context, reason Reason, err error) *GenerationError {
	return &GenerationError{Family: FamilyFrom(ctx), Reason: reason, Cause: err}
}

// usageSlot lets the innermost generator hand token counts back to a
// decorator without widening the Generator interface.
type usageSlot struct {
	usage *Usage
}

type usageKey struct{}

func withUsageSlot(ctx context.Context) (context.Context, *usageSlot) {
	slot := &usageSlot{}
	return context.WithValue(ctx, usageKey{}, slot), slot
}

// reportUsage stores u in the slot installed by a Tracing decorator, if any.
func reportUsage(ctx context.Context, u Usage) {
	if slot, ok := ctx.Value(usageKey{}).(*usageSlot); ok {
		slot.usage = &u
	}
}
