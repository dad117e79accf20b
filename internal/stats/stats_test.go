package stats

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func setupTestDir(t *testing.T) {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("HOME", dir)
	os.MkdirAll(filepath.Join(dir, ".pagesum"), 0o700)
}

func TestSaveAndLoadAll(t *testing.T) {
	setupTestDir(t)

	err := Save(Record{
		Kind:              KindSummary,
		URL:               "https://go.dev/",
		FirstChunkLatency: 300 * time.Millisecond,
		Duration:          2 * time.Second,
		Chunks:            42,
		ThinkingChars:     120,
		VisibleChars:      400,
		Success:           true,
	})
	if err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	records, err := LoadAll()
	if err != nil {
		t.Fatalf("LoadAll failed: %v", err)
	}
	if len(records) != 1 {
		t.Fatalf("expected 1 record, got %d", len(records))
	}
	r := records[0]
	if r.URL != "https://go.dev/" || r.Chunks != 42 || r.Duration != 2*time.Second {
		t.Errorf("record not round-tripped: %+v", r)
	}
	if r.Timestamp.IsZero() {
		t.Error("timestamp should be set on save")
	}
}

func TestSave_CapsRecords(t *testing.T) {
	setupTestDir(t)

	// Seed the file directly; saving 1000 records one by one is slow.
	var seed []Record
	for i := 0; i < maxRecords; i++ {
		seed = append(seed, Record{URL: fmt.Sprintf("u%d", i)})
	}
	data, err := json.Marshal(seed)
	if err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(statsPath(), data, 0o600); err != nil {
		t.Fatal(err)
	}

	if err := Save(Record{URL: "newest"}); err != nil {
		t.Fatal(err)
	}
	all, _ := LoadAll()
	if len(all) != maxRecords {
		t.Fatalf("expected %d records, got %d", maxRecords, len(all))
	}
	if all[0].URL != "u1" || all[len(all)-1].URL != "newest" {
		t.Errorf("oldest record should be dropped: first=%s last=%s", all[0].URL, all[len(all)-1].URL)
	}
}

func TestSummarize_Empty(t *testing.T) {
	setupTestDir(t)

	s, err := Summarize()
	if err != nil {
		t.Fatalf("Summarize failed: %v", err)
	}
	if s.TotalStreams != 0 || s.KindBreakdown == nil {
		t.Errorf("unexpected empty summary: %+v", s)
	}
}

func TestSummarize(t *testing.T) {
	now := time.Date(2026, 3, 10, 15, 0, 0, 0, time.UTC)
	records := []Record{
		{Timestamp: now.Add(-time.Hour), Kind: KindSummary, URL: "a", FirstChunkLatency: 100 * time.Millisecond, Duration: 1 * time.Second, Chunks: 10, ThinkingChars: 25, VisibleChars: 75, Success: true},
		{Timestamp: now.Add(-2 * time.Hour), Kind: KindAnswer, URL: "a", FirstChunkLatency: 300 * time.Millisecond, Duration: 3 * time.Second, Chunks: 30, ThinkingChars: 25, VisibleChars: 75, Success: true},
		{Timestamp: now.Add(-72 * time.Hour), Kind: KindSummary, URL: "b", Duration: 2 * time.Second, Chunks: 20, Success: false},
		{Timestamp: now.Add(-30 * 24 * time.Hour), Kind: KindSummary, URL: "c", Duration: 2 * time.Second, Success: true},
	}

	s := summarize(records, now)

	if s.TotalStreams != 4 {
		t.Errorf("expected 4 streams, got %d", s.TotalStreams)
	}
	if s.SuccessRate != 75 {
		t.Errorf("expected 75%% success, got %f", s.SuccessRate)
	}
	if s.AvgFirstChunkMs != 200 {
		t.Errorf("records without a first chunk should not count, got %d", s.AvgFirstChunkMs)
	}
	if s.AvgDurationMs != 2000 {
		t.Errorf("expected 2000ms average duration, got %d", s.AvgDurationMs)
	}
	if s.ThinkingShare != 25 {
		t.Errorf("expected 25%% thinking, got %f", s.ThinkingShare)
	}
	if s.KindBreakdown[KindSummary] != 3 || s.KindBreakdown[KindAnswer] != 1 {
		t.Errorf("unexpected kind breakdown: %v", s.KindBreakdown)
	}
	if s.TodayCount != 2 || s.ThisWeekCount != 3 {
		t.Errorf("expected 2 today and 3 this week, got %d and %d", s.TodayCount, s.ThisWeekCount)
	}
	if len(s.TopURLs) != 3 || s.TopURLs[0].URL != "a" || s.TopURLs[0].Count != 2 {
		t.Errorf("unexpected top URLs: %+v", s.TopURLs)
	}
}

func TestTopN(t *testing.T) {
	freq := map[string]int{"a": 1, "b": 5, "c": 3, "d": 3}
	top := topN(freq, 2)
	if len(top) != 2 || top[0].URL != "b" || top[1].URL != "c" {
		t.Errorf("unexpected topN: %+v", top)
	}
}
