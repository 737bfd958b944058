// Package usage keeps a running tally of tokens spent per request family
// and model, persisted as JSON next to the history database.
package usage

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"iasmeen/internal/generation"
	"iasmeen/internal/logging"
)

const autoSaveDelay = 5 * time.Second

// Tracker records token usage. It implements generation.UsageRecorder.
type Tracker struct {
	mu            sync.Mutex
	data          UsageData
	filePath      string
	dirty         bool
	autoSave      bool
	autoSaveTimer *time.Timer
}

// NewTracker loads or creates the usage file at path. A corrupt file is
// logged and replaced by empty counters.
func NewTracker(path string) (*Tracker, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create usage dir: %w", err)
	}
	t := &Tracker{filePath: path, autoSave: true, data: emptyData()}
	if err := t.Load(); err != nil {
		logging.Get(logging.CategoryStore).Warn("usage file %s unreadable, starting fresh: %v", path, err)
		t.data = emptyData()
	}
	return t, nil
}

func emptyData() UsageData {
	return UsageData{
		Version: "1.0",
		Aggregate: AggregatedStats{
			ByFamily: make(map[string]TokenCounts),
			ByModel:  make(map[string]TokenCounts),
		},
	}
}

// Load reads the usage data from disk. A missing file is not an error.
func (t *Tracker) Load() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	data, err := os.ReadFile(t.filePath)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, &t.data); err != nil {
		return err
	}
	if t.data.Aggregate.ByFamily == nil {
		t.data.Aggregate.ByFamily = make(map[string]TokenCounts)
	}
	if t.data.Aggregate.ByModel == nil {
		t.data.Aggregate.ByModel = make(map[string]TokenCounts)
	}
	return nil
}

// Save writes the usage data to disk.
func (t *Tracker) Save() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.saveLocked()
}

func (t *Tracker) saveLocked() error {
	data, err := json.MarshalIndent(t.data, "", "  ")
	if err != nil {
		return err
	}
	t.dirty = false
	return os.WriteFile(t.filePath, data, 0644)
}

// RecordUsage adds one call to the counters and schedules a save.
func (t *Tracker) RecordUsage(u generation.Usage) {
	t.mu.Lock()
	defer t.mu.Unlock()

	family := u.Family
	if family == "" {
		family = "unknown"
	}
	t.data.Aggregate.Total.Add(u.PromptTokens, u.CandidatesTokens, u.TotalTokens)
	addToMap(t.data.Aggregate.ByFamily, family, u)
	addToMap(t.data.Aggregate.ByModel, u.Model, u)

	if !t.dirty && t.autoSave {
		t.autoSaveTimer = time.AfterFunc(autoSaveDelay, func() {
			if err := t.Save(); err != nil {
				logging.Get(logging.CategoryStore).Warn("failed to save usage: %v", err)
			}
		})
	}
	t.dirty = true
}

// Close cancels a pending auto-save and writes outstanding counts.
func (t *Tracker) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.autoSaveTimer != nil {
		t.autoSaveTimer.Stop()
		t.autoSaveTimer = nil
	}
	if !t.dirty {
		return nil
	}
	return t.saveLocked()
}

// Stats returns a copy of the aggregated stats.
func (t *Tracker) Stats() AggregatedStats {
	t.mu.Lock()
	defer t.mu.Unlock()
	stats := t.data.Aggregate
	stats.ByFamily = copyTokenCountsMap(stats.ByFamily)
	stats.ByModel = copyTokenCountsMap(stats.ByModel)
	return stats
}

func copyTokenCountsMap(src map[string]TokenCounts) map[string]TokenCounts {
	if src == nil {
		return nil
	}
	dst := make(map[string]TokenCounts, len(src))
	for key, counts := range src {
		dst[key] = counts
	}
	return dst
}

func addToMap(m map[string]TokenCounts, key string, u generation.Usage) {
	entry := m[key]
	entry.Add(u.PromptTokens, u.CandidatesTokens, u.TotalTokens)
	m[key] = entry
}
