// Package probe fetches a domain's homepage and extracts the signals that
// ground segment classification: title, description, existing JSON-LD
// types and top-level paths.
package probe

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"html"
	"io"
	"net"
	"net/http"
	"net/netip"
	"net/url"
	"sort"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/microcosm-cc/bluemonday"
	"go.uber.org/zap"

	"github.com/seo-optimizer/segment-architect/stats"
)

const (
	userAgent    = "SegmentArchitect/1.0"
	maxBodyBytes = 5 << 20
	maxPaths     = 20
)

var (
	// ErrUnexpectedStatus is returned when the homepage answers outside 2xx.
	ErrUnexpectedStatus = errors.New("unexpected status")
	// ErrInvalidDomain is returned for anything but a bare host name or an
	// https URL without port or credentials.
	ErrInvalidDomain = errors.New("invalid domain")
	// ErrForbiddenAddress is returned when a host resolves to a loopback,
	// private, link-local or otherwise non-public address.
	ErrForbiddenAddress = errors.New("address not allowed")
)

// Cache entry with expiration
type cacheEntry struct {
	profile   *SiteProfile
	timestamp time.Time
}

// Prober fetches and caches homepage profiles
type Prober struct {
	client          *http.Client
	cache           map[string]cacheEntry
	cacheMutex      sync.RWMutex
	cacheTTL        time.Duration
	maxCacheSize    int
	cleanupInterval time.Duration
	hits            int
	misses          int
	recorder        stats.Recorder
	logger          *zap.Logger
	stop            chan struct{}
	stopOnce        sync.Once
}

// Options configures a Prober. Zero values take defaults.
type Options struct {
	Timeout         time.Duration
	CacheTTL        time.Duration
	MaxCacheSize    int
	CleanupInterval time.Duration
	Recorder        stats.Recorder
	Logger          *zap.Logger
}

// New creates a new Prober instance
func New(opts Options) *Prober {
	if opts.Timeout <= 0 {
		opts.Timeout = 10 * time.Second
	}
	if opts.CacheTTL <= 0 {
		opts.CacheTTL = 30 * time.Minute
	}
	if opts.MaxCacheSize <= 0 {
		opts.MaxCacheSize = 500
	}
	if opts.CleanupInterval <= 0 {
		opts.CleanupInterval = 5 * time.Minute
	}
	if opts.Recorder == nil {
		opts.Recorder = stats.Nop{}
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}

	dialer := &net.Dialer{
		Timeout: opts.Timeout,
		Control: publicOnly,
	}
	transport := &http.Transport{
		DialContext:         dialer.DialContext,
		MaxIdleConns:        100,
		MaxIdleConnsPerHost: 10,
		IdleConnTimeout:     90 * time.Second,
		TLSHandshakeTimeout: 10 * time.Second,
	}

	p := &Prober{
		client: &http.Client{
			Timeout:   opts.Timeout,
			Transport: transport,
		},
		cache:           make(map[string]cacheEntry),
		cacheTTL:        opts.CacheTTL,
		maxCacheSize:    opts.MaxCacheSize,
		cleanupInterval: opts.CleanupInterval,
		recorder:        opts.Recorder,
		logger:          opts.Logger,
		stop:            make(chan struct{}),
	}

	go p.periodicCleanup()

	return p
}

// Close stops the cleanup goroutine.
func (p *Prober) Close() {
	p.stopOnce.Do(func() { close(p.stop) })
}

func (p *Prober) periodicCleanup() {
	ticker := time.NewTicker(p.cleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			p.cleanup()
		case <-p.stop:
			return
		}
	}
}

// cleanup removes expired entries and enforces the size limit
func (p *Prober) cleanup() {
	now := time.Now()

	p.cacheMutex.Lock()
	defer p.cacheMutex.Unlock()

	for key, entry := range p.cache {
		if now.Sub(entry.timestamp) > p.cacheTTL {
			delete(p.cache, key)
		}
	}

	if len(p.cache) <= p.maxCacheSize {
		return
	}

	type keyed struct {
		key       string
		timestamp time.Time
	}
	entries := make([]keyed, 0, len(p.cache))
	for key, entry := range p.cache {
		entries = append(entries, keyed{key, entry.timestamp})
	}
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].timestamp.Before(entries[j].timestamp)
	})
	// oldest first
	for i := 0; i < len(entries)-p.maxCacheSize; i++ {
		delete(p.cache, entries[i].key)
	}
}

// generateCacheKey creates a unique key for the domain
func generateCacheKey(domain string) string {
	hash := md5.Sum([]byte(strings.ToLower(domain)))
	return hex.EncodeToString(hash[:])
}

// IsCached reports whether domain has a live cache entry
func (p *Prober) IsCached(domain string) bool {
	p.cacheMutex.RLock()
	defer p.cacheMutex.RUnlock()

	entry, found := p.cache[generateCacheKey(domain)]
	return found && time.Since(entry.timestamp) < p.cacheTTL
}

// GetCacheStats returns statistics about the cache
func (p *Prober) GetCacheStats() CacheStats {
	p.cacheMutex.RLock()
	defer p.cacheMutex.RUnlock()

	return CacheStats{
		Entries:  len(p.cache),
		Hits:     p.hits,
		Misses:   p.misses,
		CacheTTL: p.cacheTTL,
	}
}

// Hints implements oracle.HintSource.
func (p *Prober) Hints(ctx context.Context, domain string) (string, error) {
	profile, err := p.Probe(ctx, domain)
	if err != nil {
		return "", err
	}
	return profile.Summary(), nil
}

// Probe returns the homepage profile for domain, from cache when fresh.
func (p *Prober) Probe(ctx context.Context, domain string) (*SiteProfile, error) {
	key := generateCacheKey(domain)

	p.cacheMutex.Lock()
	if entry, found := p.cache[key]; found && time.Since(entry.timestamp) < p.cacheTTL {
		p.hits++
		p.cacheMutex.Unlock()
		p.recorder.Record(stats.ProbeCacheHit)
		return entry.profile, nil
	}
	p.misses++
	p.cacheMutex.Unlock()
	p.recorder.Record(stats.ProbeCacheMiss)

	profile, err := p.fetch(ctx, domain)
	if err != nil {
		return nil, err
	}

	p.cacheMutex.Lock()
	p.cache[key] = cacheEntry{profile: profile, timestamp: time.Now()}
	over := len(p.cache) > p.maxCacheSize
	p.cacheMutex.Unlock()
	if over {
		p.cleanup()
	}

	return profile, nil
}

// homepageURL accepts a bare host name or an https URL and returns the
// https root of that host.
func homepageURL(domain string) (*url.URL, error) {
	raw := strings.TrimSpace(domain)
	if !strings.Contains(raw, "://") {
		raw = "https://" + raw
	}
	u, err := url.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("%w %q: %v", ErrInvalidDomain, domain, err)
	}
	switch {
	case u.Scheme != "https":
		return nil, fmt.Errorf("%w %q: scheme %q", ErrInvalidDomain, domain, u.Scheme)
	case u.Hostname() == "":
		return nil, fmt.Errorf("%w %q: no host", ErrInvalidDomain, domain)
	case u.Port() != "":
		return nil, fmt.Errorf("%w %q: port not allowed", ErrInvalidDomain, domain)
	case u.User != nil:
		return nil, fmt.Errorf("%w %q: credentials not allowed", ErrInvalidDomain, domain)
	}
	return &url.URL{Scheme: "https", Host: u.Host, Path: "/"}, nil
}

// publicOnly is a net.Dialer Control hook; it runs for every connection,
// redirects included, after name resolution.
func publicOnly(network, address string, _ syscall.RawConn) error {
	host, _, err := net.SplitHostPort(address)
	if err != nil {
		return err
	}
	addr, err := netip.ParseAddr(host)
	if err != nil {
		return err
	}
	if !isPublic(addr) {
		return fmt.Errorf("%w: %s", ErrForbiddenAddress, addr)
	}
	return nil
}

func isPublic(addr netip.Addr) bool {
	addr = addr.Unmap()
	return addr.IsGlobalUnicast() &&
		!addr.IsPrivate() &&
		!addr.IsLoopback() &&
		!addr.IsLinkLocalUnicast()
}

func (p *Prober) fetch(ctx context.Context, domain string) (*SiteProfile, error) {
	home, err := homepageURL(domain)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, home.String(), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", userAgent)

	start := time.Now()
	resp, err := p.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", home, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("fetch %s: %w %d", home, ErrUnexpectedStatus, resp.StatusCode)
	}

	doc, err := goquery.NewDocumentFromReader(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", home, err)
	}

	// redirects may land on another host, e.g. www.
	base := resp.Request.URL
	profile := &SiteProfile{
		Domain:      domain,
		URL:         base.String(),
		Title:       strings.TrimSpace(doc.Find("title").First().Text()),
		SchemaTypes: extractSchemaTypes(doc),
		Paths:       extractPaths(doc, base),
		FetchedAt:   time.Now(),
	}
	description, _ := doc.Find("meta[name='description']").Attr("content")
	profile.Description = plainText(description)

	p.logger.Debug("Homepage probed",
		zap.String("domain", domain),
		zap.Int("schema_types", len(profile.SchemaTypes)),
		zap.Int("paths", len(profile.Paths)),
		zap.Duration("elapsed", time.Since(start)))

	return profile, nil
}

// meta content sometimes carries markup; hints must be plain text
var textPolicy = bluemonday.StrictPolicy()

func plainText(s string) string {
	return strings.TrimSpace(html.UnescapeString(textPolicy.Sanitize(s)))
}

// extractSchemaTypes collects the distinct @type values of every
// application/ld+json block, including @graph members.
func extractSchemaTypes(doc *goquery.Document) []string {
	seen := make(map[string]bool)
	var types []string

	var visit func(v any)
	visit = func(v any) {
		switch node := v.(type) {
		case []any:
			for _, item := range node {
				visit(item)
			}
		case map[string]any:
			switch t := node["@type"].(type) {
			case string:
				if !seen[t] {
					seen[t] = true
					types = append(types, t)
				}
			case []any:
				for _, item := range t {
					if s, ok := item.(string); ok && !seen[s] {
						seen[s] = true
						types = append(types, s)
					}
				}
			}
			if graph, ok := node["@graph"]; ok {
				visit(graph)
			}
		}
	}

	doc.Find(`script[type="application/ld+json"]`).Each(func(_ int, s *goquery.Selection) {
		var data any
		if err := json.Unmarshal([]byte(s.Text()), &data); err != nil {
			return
		}
		visit(data)
	})

	return types
}

// extractPaths returns distinct first-level internal paths in document order.
func extractPaths(doc *goquery.Document, base *url.URL) []string {
	seen := make(map[string]bool)
	var paths []string

	doc.Find("a[href]").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		href, _ := s.Attr("href")
		href = strings.TrimSpace(href)
		if href == "" || strings.HasPrefix(href, "#") {
			return true
		}

		ref, err := url.Parse(href)
		if err != nil {
			return true
		}
		abs := base.ResolveReference(ref)
		if (abs.Scheme != "http" && abs.Scheme != "https") || !sameSite(abs.Host, base.Host) {
			return true
		}

		first := strings.SplitN(strings.Trim(abs.Path, "/"), "/", 2)[0]
		if first == "" {
			return true
		}
		path := "/" + first
		if !seen[path] {
			seen[path] = true
			paths = append(paths, path)
		}
		return len(paths) < maxPaths
	})

	return paths
}

func sameSite(a, b string) bool {
	a = strings.TrimPrefix(strings.ToLower(a), "www.")
	b = strings.TrimPrefix(strings.ToLower(b), "www.")
	return a == b
}
