package testutil

import (
	"context"
	"encoding/json"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/TheMichaelB/travelmap/internal/config"
	"github.com/TheMichaelB/travelmap/internal/events"
)

// LogEntry represents a captured log entry for testing
type LogEntry struct {
	Level   string `json:"level"`
	Message string `json:"msg"`
	Fields  map[string]interface{}
}

// TestTimeout provides timeout context for tests.
func TestTimeout(duration time.Duration) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), duration)
}

// TestContext creates a test context with reasonable timeout.
func TestContext() (context.Context, context.CancelFunc) {
	return TestTimeout(30 * time.Second)
}

// TestConfig returns a config pointing the contents API at apiURL with all
// local state under dataDir.
func TestConfig(apiURL, dataDir string) *config.Config {
	cfg := config.DefaultConfig()
	cfg.GitHub.Owner = "tester"
	cfg.GitHub.Repo = "travel-map"
	cfg.GitHub.Token = "test-token"
	cfg.API.BaseURL = apiURL
	cfg.API.Timeout = 5 * time.Second
	cfg.API.MaxRetries = 0
	cfg.Map.Key = "test-map-key"
	cfg.Map.RequestsPerSecond = 0
	cfg.Storage.DataDir = dataDir
	cfg.Storage.SnapshotDir = filepath.Join(dataDir, "snapshots")
	cfg.Storage.CacheDB = filepath.Join(dataDir, "geocode.db")
	cfg.Log.Level = "debug"
	cfg.Log.Format = "json"
	return cfg
}

// WaitForCondition waits for a condition to be true with timeout.
func WaitForCondition(t *testing.T, condition func() bool, timeout time.Duration, message string) {
	t.Helper()

	ticker := time.NewTicker(5 * time.Millisecond)
	defer ticker.Stop()

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	for {
		select {
		case <-timer.C:
			t.Fatalf("Timeout waiting for condition: %s", message)
		case <-ticker.C:
			if condition() {
				return
			}
		}
	}
}

// LogOutput captures JSON log output for testing.
type LogOutput struct {
	mu      sync.RWMutex
	entries []LogEntry
}

// NewCapturingLogger returns a debug JSON logger writing into a LogOutput.
func NewCapturingLogger() (*events.Logger, *LogOutput) {
	out := &LogOutput{}
	return events.NewTestLogger(events.DebugLevel, "json", out), out
}

// Write implements io.Writer to capture log output.
func (lo *LogOutput) Write(p []byte) (n int, err error) {
	var entry LogEntry
	if err := json.Unmarshal(p, &entry); err == nil {
		_ = json.Unmarshal(p, &entry.Fields)
		lo.mu.Lock()
		lo.entries = append(lo.entries, entry)
		lo.mu.Unlock()
	}
	return len(p), nil
}

// Entries returns captured log entries.
func (lo *LogOutput) Entries() []LogEntry {
	lo.mu.RLock()
	defer lo.mu.RUnlock()

	entries := make([]LogEntry, len(lo.entries))
	copy(entries, lo.entries)
	return entries
}

// HasLevel checks if any log entry has the specified level.
func (lo *LogOutput) HasLevel(level string) bool {
	for _, entry := range lo.Entries() {
		if entry.Level == level {
			return true
		}
	}
	return false
}

// HasMessage checks if any log entry contains the message.
func (lo *LogOutput) HasMessage(message string) bool {
	for _, entry := range lo.Entries() {
		if strings.Contains(entry.Message, message) {
			return true
		}
	}
	return false
}
