package stats

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Event identifies a counter in MonthlyStats
type Event int

const (
	AnalysisSucceeded Event = iota
	AnalysisFailed
	SpreadsheetExported
	SlidesExported
	ProbeCacheHit
	ProbeCacheMiss
)

// MonthlyStats represents statistics for a specific month
type MonthlyStats struct {
	AnalysesSucceeded  int       `json:"analyses_succeeded"`
	AnalysesFailed     int       `json:"analyses_failed"`
	SpreadsheetExports int       `json:"spreadsheet_exports"`
	SlideExports       int       `json:"slide_exports"`
	ProbeCacheHits     int       `json:"probe_hits"`
	ProbeCacheMisses   int       `json:"probe_misses"`
	LastUpdated        time.Time `json:"last_updated"`
}

// Recorder is implemented by Storage; components depend on it so tests can
// pass a no-op.
type Recorder interface {
	Record(e Event)
}

// Nop discards every event.
type Nop struct{}

// Record does nothing.
func (Nop) Record(Event) {}

// Storage handles persistent storage of statistics
type Storage struct {
	mutex       sync.RWMutex
	saveMutex   sync.Mutex
	stats       map[string]*MonthlyStats // key: "YYYY-MM"
	filePath    string
	lastWrite   time.Time
	writeBuffer chan struct{}
	done        chan struct{}
	stopped     chan struct{}
	closeOnce   sync.Once
	logger      *zap.Logger
}

// NewStorage creates a new statistics storage instance
func NewStorage(dataDir string, logger *zap.Logger) (*Storage, error) {
	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	s := &Storage{
		stats:       make(map[string]*MonthlyStats),
		filePath:    filepath.Join(dataDir, "stats.json"),
		writeBuffer: make(chan struct{}, 1), // Buffer for write requests
		done:        make(chan struct{}),
		stopped:     make(chan struct{}),
		logger:      logger,
	}

	// Load existing stats if file exists
	if err := s.load(); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("failed to load stats: %w", err)
	}

	go s.backgroundWriter()

	return s, nil
}

// load reads statistics from file
func (s *Storage) load() error {
	data, err := os.ReadFile(s.filePath)
	if err != nil {
		return err
	}

	s.mutex.Lock()
	defer s.mutex.Unlock()

	return json.Unmarshal(data, &s.stats)
}

// save writes statistics to file
func (s *Storage) save() error {
	s.saveMutex.Lock()
	defer s.saveMutex.Unlock()

	s.mutex.RLock()
	data, err := json.Marshal(s.stats)
	s.mutex.RUnlock()

	if err != nil {
		return fmt.Errorf("failed to marshal stats: %w", err)
	}

	// Write to temporary file first
	tempFile := s.filePath + ".tmp"
	if err := os.WriteFile(tempFile, data, 0644); err != nil {
		return fmt.Errorf("failed to write temporary file: %w", err)
	}

	// Rename is atomic on the same filesystem
	if err := os.Rename(tempFile, s.filePath); err != nil {
		os.Remove(tempFile)
		return fmt.Errorf("failed to rename temporary file: %w", err)
	}

	return nil
}

// backgroundWriter handles periodic writes to disk
func (s *Storage) backgroundWriter() {
	defer close(s.stopped)

	ticker := time.NewTicker(5 * time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-s.writeBuffer:
			s.saveAndLog()
		case <-ticker.C:
			s.saveAndLog()
		case <-s.done:
			s.saveAndLog()
			return
		}
	}
}

func (s *Storage) saveAndLog() {
	if err := s.save(); err != nil {
		s.logger.Warn("Failed to persist statistics", zap.Error(err))
	}
}

// getCurrentMonth returns the current month key in YYYY-MM format
func getCurrentMonth() string {
	return time.Now().Format("2006-01")
}

// requestWrite signals that a write to disk is needed
func (s *Storage) requestWrite() {
	select {
	case s.writeBuffer <- struct{}{}:
	default:
		// write already pending
	}
}

// Record increments the counter for e in the current month.
func (s *Storage) Record(e Event) {
	month := getCurrentMonth()

	s.mutex.Lock()
	defer s.mutex.Unlock()

	stats, exists := s.stats[month]
	if !exists {
		stats = &MonthlyStats{}
		s.stats[month] = stats
	}

	switch e {
	case AnalysisSucceeded:
		stats.AnalysesSucceeded++
	case AnalysisFailed:
		stats.AnalysesFailed++
	case SpreadsheetExported:
		stats.SpreadsheetExports++
	case SlidesExported:
		stats.SlideExports++
	case ProbeCacheHit:
		stats.ProbeCacheHits++
	case ProbeCacheMiss:
		stats.ProbeCacheMisses++
	}
	stats.LastUpdated = time.Now()

	// Request a write if enough time has passed
	if time.Since(s.lastWrite) > time.Minute {
		s.requestWrite()
		s.lastWrite = time.Now()
	}
}

// GetCurrentStats returns statistics for the current month
func (s *Storage) GetCurrentStats() MonthlyStats {
	stats, _ := s.GetMonthlyStats(getCurrentMonth())
	return stats
}

// Cleanup removes statistics older than retainMonths (current month counts as one).
func (s *Storage) Cleanup(retainMonths int) {
	if retainMonths < 1 {
		retainMonths = 1
	}
	keep := make(map[string]bool, retainMonths)
	for _, month := range recentMonths(time.Now(), retainMonths) {
		keep[month] = true
	}

	s.mutex.Lock()
	for key := range s.stats {
		if !keep[key] {
			delete(s.stats, key)
		}
	}
	s.mutex.Unlock()

	s.requestWrite()
	s.logger.Debug("Statistics cleaned up", zap.Int("retain_months", retainMonths))
}

// recentMonths lists the n months ending with now's month, newest first.
func recentMonths(now time.Time, n int) []string {
	months := make([]string, n)
	for i := range months {
		months[i] = time.Date(now.Year(), now.Month()-time.Month(i), 1, 0, 0, 0, 0, now.Location()).Format("2006-01")
	}
	return months
}

// GetMonthlyStats returns statistics for a specific month
func (s *Storage) GetMonthlyStats(yearMonth string) (MonthlyStats, bool) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	if stats, exists := s.stats[yearMonth]; exists {
		return *stats, true
	}
	return MonthlyStats{}, false
}

// GetAllMonths returns a sorted list of all months that have statistics
func (s *Storage) GetAllMonths() []string {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	months := make([]string, 0, len(s.stats))
	for month := range s.stats {
		months = append(months, month)
	}

	// newest first
	sort.Sort(sort.Reverse(sort.StringSlice(months)))

	return months
}

// Shutdown stops the background writer after a final save.
func (s *Storage) Shutdown() error {
	s.closeOnce.Do(func() {
		close(s.done)
	})
	<-s.stopped
	return nil
}
