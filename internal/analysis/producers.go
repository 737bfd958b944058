package analysis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"iasmeen/internal/generation"

	"google.golang.org/genai"
)

func whoisInstruction(domain string) string {
	return fmt.Sprintf("Perform a WHOIS lookup for the domain: %s", domain)
}

func networkInstruction(target string) string {
	return fmt.Sprintf("Perform a detailed network analysis for the target (IP or domain): %s. "+
		"Provide open ports, SSL info, detected technologies, DNS records, hosting provider, and server location.", target)
}

func emailInstruction(email string) string {
	return fmt.Sprintf("Analyze the email address \"%s\". Check for syntax validity, domain MX records, "+
		"presence in known data breaches, and associated public social media profiles. "+
		"Provide sources and dates for breaches, and URLs for social profiles.", email)
}

// reliabilityLevels names the three scores in the language the review
// should be written in.
var reliabilityLevels = map[string][3]Reliability{
	"fr": {ReliabilityEleve, ReliabilityMoyenne, ReliabilityFaible},
	"en": {ReliabilityHigh, ReliabilityMedium, ReliabilityLow},
}

func reliabilityInstruction(record any, lang string) (string, error) {
	data, err := json.MarshalIndent(record, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to serialize record: %w", err)
	}
	levels, ok := reliabilityLevels[lang]
	if !ok {
		levels = reliabilityLevels["fr"]
	}
	return fmt.Sprintf("Analyze the following OSINT data for reliability and inconsistencies. "+
		"Provide a reliability score (%s, %s, or %s), a summary, and specific findings "+
		"with a status (positive, negative, warning). Data: %s",
		levels[0], levels[1], levels[2], data), nil
}

// produce runs one request and decodes the answer into T.
func produce[T any](ctx context.Context, gen generation.Generator, family Family, instruction string, s *genai.Schema) (T, error) {
	var out T
	ctx = generation.WithFamily(ctx, string(family))
	raw, err := gen.Generate(ctx, instruction, s)
	if err != nil {
		var ge *generation.GenerationError
		if errors.As(err, &ge) {
			return out, err
		}
		return out, generation.Fail(ctx, generation.ReasonRequest, err)
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		return out, generation.Fail(ctx, generation.ReasonDecode, err)
	}
	return out, nil
}
