// Package pipeline orchestrates the scoring engines: it loads evidence,
// extracts document text, caches and records analyses, and attaches the
// optional reviewer advisory after scoring.
package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/ppiankov/claimlens/internal/cache"
	"github.com/ppiankov/claimlens/internal/forensics"
	"github.com/ppiankov/claimlens/internal/llm"
	"github.com/ppiankov/claimlens/internal/model"
	"github.com/ppiankov/claimlens/internal/observability"
	"github.com/ppiankov/claimlens/internal/ocr"
	"github.com/ppiankov/claimlens/internal/rules"
	"github.com/ppiankov/claimlens/internal/score"
	"github.com/ppiankov/claimlens/internal/store"
	"github.com/ppiankov/claimlens/internal/validate"
	"github.com/ppiankov/claimlens/internal/worker"
)

var (
	_ worker.Analyzer = (*Pipeline)(nil)
	_ worker.Loader   = (*Loader)(nil)
)

// Pipeline runs the engines for claims, documents and images
type Pipeline struct {
	scorer    *score.Scorer
	validator *validate.Validator
	images    *forensics.Analyzer
	extractor ocr.Extractor
	cache     *cache.Counted // nil when caching is off
	cacheTTL  time.Duration
	store     *store.Store // nil when history is off
	ownsStore bool
	advisor   *llm.Advisor
	metrics   *observability.Metrics
	loader    *Loader
	renderer  *Renderer
	logger    *slog.Logger
	now       func() time.Time
}

// Option customizes a Pipeline
type Option func(*Pipeline)

// WithMetrics records analyses on m
func WithMetrics(m *observability.Metrics) Option {
	return func(p *Pipeline) { p.metrics = m }
}

// WithStore records analyses in s. The caller keeps ownership of s.
func WithStore(s *store.Store) Option {
	return func(p *Pipeline) { p.store = s }
}

// WithExtractor replaces the built-in document text extractor
func WithExtractor(e ocr.Extractor) Option {
	return func(p *Pipeline) { p.extractor = e }
}

// WithAdvisor replaces the configured LLM advisor
func WithAdvisor(a *llm.Advisor) Option {
	return func(p *Pipeline) { p.advisor = a }
}

// WithLogger sets the logger
func WithLogger(l *slog.Logger) Option {
	return func(p *Pipeline) { p.logger = l }
}

// WithCache replaces the configured report cache
func WithCache(c *cache.Counted, ttl time.Duration) Option {
	return func(p *Pipeline) {
		p.cache = c
		p.cacheTTL = ttl
	}
}

// NewPipeline creates a pipeline from configuration. A rule table override
// that fails validation is an error; an LLM provider that cannot be built only
// disables the advisory.
func NewPipeline(cfg *model.Config, opts ...Option) (*Pipeline, error) {
	tables, err := loadRules(cfg.Rules.Path)
	if err != nil {
		return nil, err
	}

	p := &Pipeline{
		scorer:    score.NewScorer(tables),
		validator: validate.NewValidator(tables),
		images:    forensics.NewAnalyzer(tables),
		extractor: ocr.NewTextExtractor(),
		cacheTTL:  cfg.Cache.TTL,
		loader:    NewLoader(cfg.Loader),
		renderer:  NewRenderer(),
		logger:    slog.Default(),
		now:       time.Now,
	}
	if cfg.Cache.Enabled {
		p.cache = cache.New(cfg.Cache)
	}

	for _, opt := range opts {
		opt(p)
	}

	if p.advisor == nil {
		advisor, err := llm.NewAdvisor(llm.ConfigFromModel(cfg.LLM))
		if err != nil {
			p.logger.Warn("LLM advisory disabled", "provider", cfg.LLM.Provider, "error", err)
		} else {
			p.advisor = advisor
		}
	}

	if p.store == nil && cfg.Store.Enabled {
		s, err := store.Open(cfg.Store.Path)
		if err != nil {
			return nil, fmt.Errorf("open history store: %w", err)
		}
		p.store = s
		p.ownsStore = true
	}

	return p, nil
}

func loadRules(path string) (*rules.Tables, error) {
	if path == "" {
		return rules.Default()
	}
	tables, err := rules.LoadFile(path)
	if err != nil {
		return nil, fmt.Errorf("load rules: %w", err)
	}
	return tables, nil
}

// Close releases the history store if the pipeline opened it
func (p *Pipeline) Close() error {
	if p.ownsStore && p.store != nil {
		return p.store.Close()
	}
	return nil
}

// Loader returns the evidence loader
func (p *Pipeline) Loader() *Loader { return p.loader }

// Renderer returns the report renderer
func (p *Pipeline) Renderer() *Renderer { return p.renderer }

// Store returns the history store, or nil
func (p *Pipeline) Store() *store.Store { return p.store }

// CacheStats returns report cache counters. ok is false when caching is off.
func (p *Pipeline) CacheStats() (cache.Stats, bool) {
	if p.cache == nil {
		return cache.Stats{}, false
	}
	return p.cache.Stats(), true
}

// AdvisorName returns the advisory provider, or "none"
func (p *Pipeline) AdvisorName() string {
	return p.advisor.ProviderName()
}

// AnalyzeClaim scores a claim narrative
func (p *Pipeline) AnalyzeClaim(ctx context.Context, req model.ClaimRequest) (*model.Analysis, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if c, ok := model.ParseCategory(string(req.Category)); ok {
		req.Category = c
	}

	amount := strconv.FormatFloat(req.Amount, 'f', -1, 64)
	parts := [][]byte{[]byte(req.Category), []byte(req.Description), []byte(amount)}
	if req.LearnedAnomalyScore != nil {
		parts = append(parts, []byte(strconv.FormatFloat(*req.LearnedAnomalyScore, 'f', -1, 64)))
	}

	return p.run(ctx, model.KindClaim, subjectOr(req.ClaimID, "claim"), parts, func(a *model.Analysis) string {
		a.Claim = p.scorer.Analyze(req)
		return a.Claim.Error
	})
}

// ValidateDocument validates a document. When no text is supplied the text
// extractor reads it from the content; an extraction failure is an error.
func (p *Pipeline) ValidateDocument(ctx context.Context, doc model.Document) (*model.Analysis, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	doc.Type = model.ParseDocumentType(string(doc.Type))

	if strings.TrimSpace(doc.Text) == "" {
		res, err := p.extractor.Extract(ctx, doc.Content, doc.Filename)
		if err != nil {
			return nil, fmt.Errorf("extract text: %w", err)
		}
		doc.Text = res.Text
		doc.OCRConfidence = res.Confidence
	}

	parts := [][]byte{[]byte(doc.Type), []byte(doc.Filename), doc.Content, []byte(doc.Text)}
	return p.run(ctx, model.KindDocument, subjectOr(doc.Filename, "document"), parts, func(a *model.Analysis) string {
		a.Document = p.validator.Validate(doc)
		return a.Document.Error
	})
}

// AnalyzeImage runs the forensic analyzer on an image
func (p *Pipeline) AnalyzeImage(ctx context.Context, img model.Image) (*model.Analysis, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if len(img.Content) == 0 {
		return nil, fmt.Errorf("image %s: %w", img.Filename, model.ErrEmptyInput)
	}
	img.AnalysisType = model.ParseAnalysisType(string(img.AnalysisType))

	// the report echoes the filename, so it is part of the key
	parts := [][]byte{[]byte(img.AnalysisType), []byte(img.Filename), img.Content}
	return p.run(ctx, model.KindImage, subjectOr(img.Filename, "image"), parts, func(a *model.Analysis) string {
		a.Image = p.images.Analyze(img)
		return a.Image.Error
	})
}

// run wraps one engine call with caching, metrics, history and the advisory.
// engine fills the report on a and returns its absorbed error, if any.
func (p *Pipeline) run(ctx context.Context, kind model.AnalysisKind, subject string, parts [][]byte, engine func(a *model.Analysis) string) (*model.Analysis, error) {
	start := p.now()
	key := cache.Key(string(kind), parts...)

	analysis, hit := p.cached(key)
	p.metrics.RecordCacheLookup(string(kind), hit)
	if !hit {
		analysis = &model.Analysis{Kind: kind}
		engineErr := engine(analysis)
		analysis.Summary = analysis.Report().Summary()

		elapsed := p.now().Sub(start)
		p.metrics.RecordAnalysis(string(kind), string(analysis.Summary.Recommendation), analysis.Summary.Score, elapsed, engineErr != "")
		if engineErr != "" {
			p.logger.Debug("engine error absorbed", "kind", kind, "subject", subject, "error", engineErr)
		}
		p.remember(key, analysis)
	}

	analysis.ID = uuid.NewString()
	analysis.Subject = subject
	analysis.CreatedAt = p.now().UTC()
	analysis.DurationMS = p.now().Sub(start).Milliseconds()
	analysis.Cached = hit

	p.advise(ctx, analysis)
	p.record(ctx, analysis)
	return analysis, nil
}

func (p *Pipeline) cached(key string) (*model.Analysis, bool) {
	if p.cache == nil {
		return nil, false
	}
	data, ok := p.cache.Get(key)
	if !ok {
		return nil, false
	}
	var a model.Analysis
	if err := json.Unmarshal(data, &a); err != nil {
		p.logger.Debug("dropping unreadable cache entry", "key", key, "error", err)
		_ = p.cache.Delete(key)
		return nil, false
	}
	return &a, true
}

func (p *Pipeline) remember(key string, a *model.Analysis) {
	if p.cache == nil {
		return
	}
	data, err := json.Marshal(a)
	if err != nil {
		p.logger.Debug("cache encode failed", "key", key, "error", err)
		return
	}
	if err := p.cache.Set(key, data, p.cacheTTL); err != nil {
		p.logger.Debug("cache write failed", "key", key, "error", err)
	}
}

// advise attaches the reviewer note after scoring; it never touches the scores
func (p *Pipeline) advise(ctx context.Context, a *model.Analysis) {
	if !p.advisor.IsEnabled() {
		return
	}
	adv := p.advisor.Advise(ctx, a)
	if adv == nil {
		return
	}
	a.Advisory = adv

	status := "ok"
	switch {
	case !adv.Enabled:
		status = "unavailable"
	case adv.Summary == "":
		status = "failed"
		p.logger.Warn("advisory generation failed", "id", a.ID, "warnings", adv.Warnings)
	}
	p.metrics.RecordAdvisory(adv.Provider, status)
}

func (p *Pipeline) record(ctx context.Context, a *model.Analysis) {
	if p.store == nil {
		return
	}
	if err := p.store.Save(ctx, a); err != nil {
		p.logger.Warn("history save failed", "id", a.ID, "error", err)
	}
}

func subjectOr(s, fallback string) string {
	if s = strings.TrimSpace(s); s != "" {
		return s
	}
	return fallback
}
