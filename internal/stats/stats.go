// Package stats records per-stream metrics (time to first chunk, total
// duration, how much of the output was thinking) and persists them to
// ~/.pagesum/stats.json.
package stats

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/arin/pagesum/internal/config"
)

const (
	fileName   = "stats.json"
	maxRecords = 1000

	KindSummary = "summary"
	KindAnswer  = "answer"
)

// Record is a single instrumented model stream.
type Record struct {
	Timestamp         time.Time     `json:"timestamp"`
	Kind              string        `json:"kind"`
	URL               string        `json:"url"`
	Model             string        `json:"model,omitempty"`
	FirstChunkLatency time.Duration `json:"first_chunk_latency"`
	Duration          time.Duration `json:"duration"`
	Chunks            int           `json:"chunks"`
	ThinkingChars     int           `json:"thinking_chars"`
	VisibleChars      int           `json:"visible_chars"`
	Success           bool          `json:"success"`
}

// Summary is the aggregated stats dashboard.
type Summary struct {
	TotalStreams    int            `json:"total_streams"`
	SuccessRate     float64        `json:"success_rate"`
	AvgFirstChunkMs int64          `json:"avg_first_chunk_ms"`
	AvgDurationMs   int64          `json:"avg_duration_ms"`
	AvgChunks       float64        `json:"avg_chunks"`
	ThinkingShare   float64        `json:"thinking_share"`
	KindBreakdown   map[string]int `json:"kind_breakdown"`
	TopURLs         []URLCount     `json:"top_urls"`
	TodayCount      int            `json:"today_count"`
	ThisWeekCount   int            `json:"this_week_count"`
}

// URLCount pairs a page URL with how often it was streamed.
type URLCount struct {
	URL   string `json:"url"`
	Count int    `json:"count"`
}

var fileMu sync.Mutex

func statsPath() string {
	return filepath.Join(config.Dir(), fileName)
}

// Save appends a new record to the stats file.
func Save(r Record) error {
	fileMu.Lock()
	defer fileMu.Unlock()

	if r.Timestamp.IsZero() {
		r.Timestamp = time.Now()
	}

	records, _ := loadAll()
	records = append(records, r)

	if len(records) > maxRecords {
		records = records[len(records)-maxRecords:]
	}

	if err := os.MkdirAll(config.Dir(), 0o700); err != nil {
		return err
	}
	data, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(statsPath(), data, 0o600)
}

// LoadAll returns all stored records.
func LoadAll() ([]Record, error) {
	fileMu.Lock()
	defer fileMu.Unlock()
	return loadAll()
}

func loadAll() ([]Record, error) {
	data, err := os.ReadFile(statsPath())
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	var records []Record
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, err
	}
	return records, nil
}

// Summarize computes aggregated stats from all records.
func Summarize() (*Summary, error) {
	records, err := LoadAll()
	if err != nil {
		return nil, err
	}
	return summarize(records, time.Now()), nil
}

func summarize(records []Record, now time.Time) *Summary {
	s := &Summary{KindBreakdown: map[string]int{}}
	if len(records) == 0 {
		return s
	}
	s.TotalStreams = len(records)

	var (
		totalFirst, totalDur time.Duration
		firstCount           int
		successCount         int
		totalChunks          int
		thinking, visible    int
	)
	urlFreq := map[string]int{}
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	weekAgo := now.AddDate(0, 0, -7)

	for _, r := range records {
		if r.Success {
			successCount++
		}
		if r.FirstChunkLatency > 0 {
			totalFirst += r.FirstChunkLatency
			firstCount++
		}
		totalDur += r.Duration
		totalChunks += r.Chunks
		thinking += r.ThinkingChars
		visible += r.VisibleChars
		if r.Kind != "" {
			s.KindBreakdown[r.Kind]++
		}
		if r.URL != "" {
			urlFreq[r.URL]++
		}
		if !r.Timestamp.Before(today) {
			s.TodayCount++
		}
		if r.Timestamp.After(weekAgo) {
			s.ThisWeekCount++
		}
	}

	n := len(records)
	s.SuccessRate = float64(successCount) / float64(n) * 100
	s.AvgDurationMs = (totalDur / time.Duration(n)).Milliseconds()
	if firstCount > 0 {
		s.AvgFirstChunkMs = (totalFirst / time.Duration(firstCount)).Milliseconds()
	}
	s.AvgChunks = float64(totalChunks) / float64(n)
	if thinking+visible > 0 {
		s.ThinkingShare = float64(thinking) / float64(thinking+visible) * 100
	}
	s.TopURLs = topN(urlFreq, 5)
	return s
}

func topN(freq map[string]int, n int) []URLCount {
	all := make([]URLCount, 0, len(freq))
	for u, count := range freq {
		all = append(all, URLCount{URL: u, Count: count})
	}
	sort.Slice(all, func(i, j int) bool {
		if all[i].Count != all[j].Count {
			return all[i].Count > all[j].Count
		}
		return all[i].URL < all[j].URL
	})
	if len(all) > n {
		all = all[:n]
	}
	return all
}
