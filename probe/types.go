package probe

import (
	"fmt"
	"strings"
	"time"
)

// SiteProfile is what the live homepage of a domain shows
type SiteProfile struct {
	Domain      string    `json:"domain"`
	URL         string    `json:"url"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	SchemaTypes []string  `json:"schemaTypes"`
	Paths       []string  `json:"paths"`
	FetchedAt   time.Time `json:"fetchedAt"`
}

// Summary renders the profile as prompt hints.
func (p *SiteProfile) Summary() string {
	if p == nil {
		return ""
	}

	var lines []string
	if p.Title != "" {
		lines = append(lines, "Title: "+p.Title)
	}
	if p.Description != "" {
		lines = append(lines, "Meta description: "+p.Description)
	}
	if len(p.SchemaTypes) > 0 {
		lines = append(lines, "Existing JSON-LD types: "+strings.Join(p.SchemaTypes, ", "))
	}
	if len(p.Paths) > 0 {
		lines = append(lines, fmt.Sprintf("Top-level paths linked from the homepage: %s", strings.Join(p.Paths, ", ")))
	}
	return strings.Join(lines, "\n")
}

// CacheStats provides statistics about the prober's cache
type CacheStats struct {
	Entries  int           `json:"entries"`
	Hits     int           `json:"hits"`
	Misses   int           `json:"misses"`
	CacheTTL time.Duration `json:"cacheTTL"`
}
