package logging

import (
	"encoding/json"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"
)

// Statistics represents the collected request statistics
type Statistics struct {
	UniqueVisitors   map[string]time.Time `json:"uniqueVisitors"`   // IP -> Last Visit Time
	AnalysisRequests int                  `json:"analysisRequests"` // Total number of analysis requests
	ErrorCount       int                  `json:"errorCount"`       // Number of failed analyses
	PopularDomains   map[string]int       `json:"popularDomains"`   // Domain -> Count
	Exports          map[string]int       `json:"exports"`          // Format -> Count
	AverageLoadTime  float64              `json:"averageLoadTime"`  // Average analysis time in milliseconds
	TotalLoadTime    float64              `json:"totalLoadTime"`
	LastPersisted    time.Time            `json:"lastPersisted"`

	path    string
	devMode bool
	mutex   sync.RWMutex
}

// DomainCount is one entry of the popular domains ranking.
type DomainCount struct {
	Domain string `json:"domain"`
	Count  int    `json:"count"`
}

// NewStatistics creates the statistics persisted at path and loads any
// existing file. In devMode GetStatistics also reports popular domains.
func NewStatistics(path string, devMode bool) (*Statistics, error) {
	s := &Statistics{
		UniqueVisitors: make(map[string]time.Time),
		PopularDomains: make(map[string]int),
		Exports:        make(map[string]int),
		LastPersisted:  time.Now(),
		path:           path,
		devMode:        devMode,
	}
	if err := s.Load(); err != nil {
		return s, err
	}
	return s, nil
}

// TrackVisitor records a unique visitor
func (s *Statistics) TrackVisitor(ip string) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	s.UniqueVisitors[ip] = time.Now()
}

// cleanDomain reduces user input to a host name, or "" for local hosts.
func cleanDomain(domain string) string {
	raw := strings.ToLower(strings.TrimSpace(domain))
	if raw == "" {
		return ""
	}
	if !strings.Contains(raw, "://") {
		raw = "http://" + raw
	}
	u, err := url.Parse(raw)
	if err != nil {
		return ""
	}

	host := strings.TrimPrefix(u.Hostname(), "www.")
	// Don't track our own hosts
	if host == "localhost" || host == "127.0.0.1" || host == "::1" {
		return ""
	}
	return host
}

// TrackAnalysis records an analysis request
func (s *Statistics) TrackAnalysis(domain string, loadTime float64, hasError bool) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	s.AnalysisRequests++

	if cleaned := cleanDomain(domain); cleaned != "" {
		s.PopularDomains[cleaned]++
	}

	if hasError {
		s.ErrorCount++
	}

	s.TotalLoadTime += loadTime
	s.AverageLoadTime = s.TotalLoadTime / float64(s.AnalysisRequests)
}

// TrackExport records a download in format ("xlsx" or "pptx").
func (s *Statistics) TrackExport(format string) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	s.Exports[format]++
}

// TotalRequests returns the number of tracked analyses.
func (s *Statistics) TotalRequests() int {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	return s.AnalysisRequests
}

// GetUniqueVisitorsCount returns the number of unique visitors in the last 24 hours
func (s *Statistics) GetUniqueVisitorsCount() int {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	return s.uniqueVisitors()
}

func (s *Statistics) uniqueVisitors() int {
	count := 0
	cutoff := time.Now().Add(-24 * time.Hour)
	for _, lastVisit := range s.UniqueVisitors {
		if lastVisit.After(cutoff) {
			count++
		}
	}
	return count
}

// GetPopularDomains returns the n most analyzed domains, most frequent first
func (s *Statistics) GetPopularDomains(n int) []DomainCount {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	return s.popularDomains(n)
}

func (s *Statistics) popularDomains(n int) []DomainCount {
	ranked := make([]DomainCount, 0, len(s.PopularDomains))
	for domain, count := range s.PopularDomains {
		ranked = append(ranked, DomainCount{Domain: domain, Count: count})
	}
	sort.Slice(ranked, func(i, j int) bool {
		if ranked[i].Count != ranked[j].Count {
			return ranked[i].Count > ranked[j].Count
		}
		return ranked[i].Domain < ranked[j].Domain
	})
	if len(ranked) > n {
		ranked = ranked[:n]
	}
	return ranked
}

// GetErrorRate returns the error rate as a percentage
func (s *Statistics) GetErrorRate() float64 {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	return s.errorRate()
}

func (s *Statistics) errorRate() float64 {
	if s.AnalysisRequests == 0 {
		return 0
	}
	return (float64(s.ErrorCount) / float64(s.AnalysisRequests)) * 100
}

// Save persists the statistics to disk
func (s *Statistics) Save() error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	s.LastPersisted = time.Now()

	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return fmt.Errorf("could not encode statistics: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(s.path), 0755); err != nil {
		return fmt.Errorf("could not create statistics directory: %w", err)
	}
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return fmt.Errorf("could not write statistics file: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("could not replace statistics file: %w", err)
	}
	return nil
}

// Load reads the statistics from disk
func (s *Statistics) Load() error {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil // Not an error if file doesn't exist yet
		}
		return fmt.Errorf("could not open statistics file: %w", err)
	}

	s.mutex.Lock()
	defer s.mutex.Unlock()

	if err := json.Unmarshal(data, s); err != nil {
		return fmt.Errorf("could not decode statistics: %w", err)
	}
	if s.UniqueVisitors == nil {
		s.UniqueVisitors = make(map[string]time.Time)
	}
	if s.PopularDomains == nil {
		s.PopularDomains = make(map[string]int)
	}
	if s.Exports == nil {
		s.Exports = make(map[string]int)
	}
	return nil
}

// GetStatistics returns a summary; popular domains only in development mode
func (s *Statistics) GetStatistics() map[string]any {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	result := map[string]any{
		"uniqueVisitors24h": s.uniqueVisitors(),
		"totalRequests":     s.AnalysisRequests,
		"errorRate":         s.errorRate(),
		"averageLoadTime":   s.AverageLoadTime,
		"exports":           copyCounts(s.Exports),
	}
	if s.devMode {
		result["popularDomains"] = s.popularDomains(5)
	}
	return result
}

func copyCounts(m map[string]int) map[string]int {
	out := make(map[string]int, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
