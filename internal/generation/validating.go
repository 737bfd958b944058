package generation

import (
	"context"
	"encoding/json"
	"errors"

	"iasmeen/internal/schema"

	"google.golang.org/genai"
)

// ValidatingGenerator checks every response against the schema it was
// requested with. After it, a nil error means the value conforms.
type ValidatingGenerator struct {
	next Generator
}

// Validating wraps next with schema enforcement.
func Validating(next Generator) *ValidatingGenerator {
	return &ValidatingGenerator{next: next}
}

func (v *ValidatingGenerator) Generate(ctx context.Context, instruction string, s *genai.Schema) (json.RawMessage, error) {
	raw, err := v.next.Generate(ctx, instruction, s)
	if err != nil {
		var ge *GenerationError
		if errors.As(err, &ge) {
			return nil, err
		}
		return nil, Fail(ctx, ReasonRequest, err)
	}
	if len(raw) == 0 {
		return nil, Fail(ctx, ReasonEmpty, errors.New("empty response"))
	}
	if err := schema.Validate(s, raw); err != nil {
		if errors.Is(err, schema.ErrNotJSON) {
			return nil, Fail(ctx, ReasonMalformed, err)
		}
		return nil, Fail(ctx, ReasonNonConforming, err)
	}
	return raw, nil
}
