package oracle

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	"google.golang.org/genai"

	"github.com/seo-optimizer/segment-architect/segment"
)

// Defaults applied by Config.SetDefaults.
const (
	DefaultModel          = "gemini-3-pro-preview"
	DefaultThinkingBudget = 4000
	DefaultTimeout        = 2 * time.Minute
)

// Config configures a Gemini adapter. It is passed explicitly so several
// adapters with different credentials can coexist.
type Config struct {
	APIKey         string
	Model          string
	ThinkingBudget int32
	MaxSegments    int
	Timeout        time.Duration
	// BaseURL overrides the API endpoint (proxies, tests).
	BaseURL string
}

// SetDefaults fills zero values.
func (c *Config) SetDefaults() {
	if c.Model == "" {
		c.Model = DefaultModel
	}
	if c.ThinkingBudget == 0 {
		c.ThinkingBudget = DefaultThinkingBudget
	}
	if c.MaxSegments <= 0 {
		c.MaxSegments = DefaultMaxSegments
	}
	if c.Timeout <= 0 {
		c.Timeout = DefaultTimeout
	}
}

// generator is the subset of *genai.Models used by the adapter.
type generator interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

// Gemini is the Oracle backed by the Gemini API.
type Gemini struct {
	models generator
	cfg    Config
	hints  HintSource
	logger *zap.Logger
}

// Option customises a Gemini adapter.
type Option func(*Gemini)

// WithHints attaches a HintSource consulted before every exchange.
func WithHints(src HintSource) Option {
	return func(g *Gemini) { g.hints = src }
}

// WithLogger sets the adapter's logger.
func WithLogger(logger *zap.Logger) Option {
	return func(g *Gemini) {
		if logger != nil {
			g.logger = logger
		}
	}
}

// NewGemini creates a Gemini adapter with its own genai client.
func NewGemini(ctx context.Context, cfg Config, opts ...Option) (*Gemini, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("gemini API key is required")
	}

	clientCfg := &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	}
	if cfg.BaseURL != "" {
		clientCfg.HTTPOptions = genai.HTTPOptions{BaseURL: cfg.BaseURL}
	}

	client, err := genai.NewClient(ctx, clientCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create genai client: %w", err)
	}

	return newGemini(client.Models, cfg, opts...), nil
}

func newGemini(models generator, cfg Config, opts ...Option) *Gemini {
	cfg.SetDefaults()
	g := &Gemini{
		models: models,
		cfg:    cfg,
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Analyze performs exactly one exchange for domain. The domain is used
// verbatim; callers trim it.
func (g *Gemini) Analyze(ctx context.Context, domain string) (segment.AnalysisResult, error) {
	if strings.TrimSpace(domain) == "" {
		return segment.AnalysisResult{}, ErrEmptyDomain
	}

	ctx, cancel := context.WithTimeout(ctx, g.cfg.Timeout)
	defer cancel()

	log := g.logger.With(zap.String("domain", domain), zap.String("model", g.cfg.Model))
	start := time.Now()

	prompt := BuildPrompt(domain, g.lookupHints(ctx, domain, log))
	resp, err := g.models.GenerateContent(ctx, g.cfg.Model, genai.Text(prompt), g.generateConfig())
	if err != nil {
		var apiErr genai.APIError
		if errors.As(err, &apiErr) {
			log.Warn("Gemini API error", zap.Int("code", apiErr.Code), zap.String("status", apiErr.Status))
		}
		return segment.AnalysisResult{}, newError(ErrOracleUnavailable, domain, err)
	}

	text := responseText(resp)
	if text == "" {
		return segment.AnalysisResult{}, newError(ErrEmptyResponse, domain, blockReason(resp))
	}

	result, err := ParseResponse(text, g.cfg.MaxSegments)
	if err != nil {
		kind := KindOf(err)
		if kind == nil {
			kind = ErrMalformedResponse
		}
		log.Warn("Rejected oracle response", zap.Error(err), zap.Int("bytes", len(text)))
		return segment.AnalysisResult{}, newError(kind, domain, err)
	}

	log.Info("Domain analyzed",
		zap.Int("segments", len(result.Segments)),
		zap.Duration("elapsed", time.Since(start)))
	return result, nil
}

func (g *Gemini) generateConfig() *genai.GenerateContentConfig {
	return &genai.GenerateContentConfig{
		ResponseMIMEType: "application/json",
		ResponseSchema:   ResponseSchema(g.cfg.MaxSegments),
		ThinkingConfig: &genai.ThinkingConfig{
			ThinkingBudget: genai.Ptr(g.cfg.ThinkingBudget),
		},
	}
}

// lookupHints never fails the exchange; a broken homepage just means no hints.
func (g *Gemini) lookupHints(ctx context.Context, domain string, log *zap.Logger) string {
	if g.hints == nil {
		return ""
	}
	hints, err := g.hints.Hints(ctx, domain)
	if err != nil {
		log.Debug("Site hints unavailable", zap.Error(err))
		return ""
	}
	return hints
}

func responseText(resp *genai.GenerateContentResponse) string {
	if resp == nil {
		return ""
	}
	return strings.TrimSpace(resp.Text())
}

func blockReason(resp *genai.GenerateContentResponse) error {
	if resp == nil || resp.PromptFeedback == nil || resp.PromptFeedback.BlockReason == "" {
		return nil
	}
	return fmt.Errorf("prompt blocked: %s", resp.PromptFeedback.BlockReason)
}
