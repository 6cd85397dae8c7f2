// Package report defines the per-run summary, its JSON file output, and a
// sqlite archive of past runs.
package report

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// Counts aggregates the per-run outcome counters.
type Counts struct {
	Processed             int `json:"processed"`
	RepliesSent           int `json:"replies_sent"`
	ModelReplies          int `json:"model_replies"`
	Fallbacks             int `json:"fallbacks"`
	SafetyBlocks          int `json:"safety_blocks"`
	GeminiErrors          int `json:"gemini_errors"`
	YouTubeErrors         int `json:"youtube_errors"`
	Filtered              int `json:"filtered"`
	SkippedAnswered       int `json:"skipped_answered"`
	SkippedAlreadyReplied int `json:"skipped_already_replied"`
	CrisisIgnored         int `json:"crisis_ignored"`
}

// Run is one execution's report, written as JSON and archived in sqlite.
type Run struct {
	ID             string         `json:"id"`
	ChannelID      string         `json:"channel_id"`
	Model          string         `json:"model"`
	MaxReplies     int            `json:"max_replies"`
	DelaySeconds   int            `json:"delay_seconds"`
	LookbackHours  int            `json:"lookback_hours"`
	StartedAt      time.Time      `json:"started_at"`
	FinishedAt     time.Time      `json:"finished_at"`
	ElapsedSeconds float64        `json:"elapsed_seconds"`
	Counts         Counts         `json:"counts"`
	Categories     map[string]int `json:"categories"`
}

// NewRun creates a report stamped with the start time.
func NewRun(start time.Time) *Run {
	return &Run{
		ID:         start.UTC().Format("20060102_150405"),
		StartedAt:  start,
		Categories: make(map[string]int),
	}
}

// Finish stamps the end time and elapsed duration.
func (r *Run) Finish(end time.Time) {
	r.FinishedAt = end
	r.ElapsedSeconds = end.Sub(r.StartedAt).Seconds()
}

// WriteFile serializes the report to report_<id>.json under dir, creating the
// directory if needed, and returns the written path.
func (r *Run) WriteFile(dir string) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create report dir: %w", err)
	}

	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal report: %w", err)
	}

	path := filepath.Join(dir, fmt.Sprintf("report_%s.json", r.ID))
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("write report file: %w", err)
	}
	return path, nil
}
