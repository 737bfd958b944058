package usage

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"iasmeen/internal/generation"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTracker_RecordAggregatesAndPersists(t *testing.T) {
	path := filepath.Join(t.TempDir(), "data", "usage.json")
	tracker, err := NewTracker(path)
	require.NoError(t, err)
	tracker.autoSave = false

	tracker.RecordUsage(generation.Usage{Family: "WHOIS", Model: "gemini-2.5-flash", PromptTokens: 10, CandidatesTokens: 5, TotalTokens: 15})
	tracker.RecordUsage(generation.Usage{Family: "RELIABILITY", Model: "gemini-2.5-flash", PromptTokens: 2, CandidatesTokens: 3, TotalTokens: 9})

	stats := tracker.Stats()
	assert.Equal(t, TokenCounts{Calls: 2, Input: 12, Output: 8, Total: 24}, stats.Total)
	assert.Equal(t, int64(15), stats.ByFamily["WHOIS"].Total)
	assert.Equal(t, int64(9), stats.ByFamily["RELIABILITY"].Total)
	assert.Equal(t, int64(2), stats.ByModel["gemini-2.5-flash"].Calls)

	require.NoError(t, tracker.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	var persisted UsageData
	require.NoError(t, json.Unmarshal(data, &persisted))
	assert.Equal(t, int64(24), persisted.Aggregate.Total.Total)

	reloaded, err := NewTracker(path)
	require.NoError(t, err)
	assert.Equal(t, stats, reloaded.Stats())
}

func TestTracker_TotalNeverBelowParts(t *testing.T) {
	var tc TokenCounts
	tc.Add(10, 5, 0)
	assert.Equal(t, int64(15), tc.Total)
}

func TestTracker_UnknownFamily(t *testing.T) {
	tracker, err := NewTracker(filepath.Join(t.TempDir(), "usage.json"))
	require.NoError(t, err)
	tracker.autoSave = false
	tracker.RecordUsage(generation.Usage{Model: "m", TotalTokens: 1})
	assert.Equal(t, int64(1), tracker.Stats().ByFamily["unknown"].Calls)
}

func TestTracker_CorruptFileStartsFresh(t *testing.T) {
	path := filepath.Join(t.TempDir(), "usage.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0644))

	tracker, err := NewTracker(path)
	require.NoError(t, err)
	assert.Empty(t, tracker.Stats().ByFamily)
}

func TestTracker_StatsIsACopy(t *testing.T) {
	tracker, err := NewTracker(filepath.Join(t.TempDir(), "usage.json"))
	require.NoError(t, err)
	tracker.autoSave = false
	tracker.RecordUsage(generation.Usage{Family: "EMAIL", Model: "m", PromptTokens: 1})

	stats := tracker.Stats()
	stats.ByFamily["EMAIL"] = TokenCounts{}
	assert.Equal(t, int64(1), tracker.Stats().ByFamily["EMAIL"].Calls)
}
