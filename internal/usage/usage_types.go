package usage

// UsageData is the root structure stored on disk.
type UsageData struct {
	Version   string          `json:"version"`
	Aggregate AggregatedStats `json:"aggregate"`
}

// AggregatedStats holds counters broken down by request family and model.
type AggregatedStats struct {
	Total    TokenCounts            `json:"total"`
	ByFamily map[string]TokenCounts `json:"by_family"` // WHOIS, NETWORK, EMAIL, RELIABILITY
	ByModel  map[string]TokenCounts `json:"by_model"`
}

// TokenCounts holds prompt/candidate sums.
type TokenCounts struct {
	Calls  int64 `json:"calls"`
	Input  int64 `json:"input"`
	Output int64 `json:"output"`
	Total  int64 `json:"total"`
}

// Add counts one call. total is the service-reported total, which can
// exceed input+output when the model spends thinking tokens.
func (tc *TokenCounts) Add(input, output, total int) {
	if total < input+output {
		total = input + output
	}
	tc.Calls++
	tc.Input += int64(input)
	tc.Output += int64(output)
	tc.Total += int64(total)
}
