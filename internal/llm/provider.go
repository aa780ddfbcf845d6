package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/ppiankov/claimlens/internal/model"
)

// Provider defines the interface for LLM providers
type Provider interface {
	// Name returns the provider name
	Name() string

	// Advise writes a reviewer note for a finished analysis
	Advise(ctx context.Context, req AdviseRequest) (*AdviseResponse, error)

	// IsAvailable checks if the provider is properly configured and accessible
	IsAvailable(ctx context.Context) bool
}

// AdviseRequest contains the input for an advisory note
type AdviseRequest struct {
	// Analysis is the deterministic result the note comments on
	Analysis *model.Analysis

	// Prompt is an optional custom prompt (if empty, use default)
	Prompt string

	// Model is the specific model to use (provider-specific)
	Model string

	// MaxTokens limits the response length
	MaxTokens int
}

// AdviseResponse contains the parsed reviewer note
type AdviseResponse struct {
	Summary    string
	Concerns   []string
	Model      string
	TokensUsed int
}

// Config holds LLM provider configuration
type Config struct {
	// Provider name: "openai", "anthropic", "ollama", ""
	Provider string

	// Model name (provider-specific)
	Model string

	// APIKey for OpenAI/Anthropic
	APIKey string

	// BaseURL for custom endpoints (e.g., Ollama)
	BaseURL string

	Timeout     time.Duration
	MaxTokens   int
	Temperature float32

	// Grounded rejects notes that name a recommendation other than the report's
	Grounded bool

	// Proxy settings
	HTTPProxy  string
	HTTPSProxy string
	NoProxy    string
}

// DefaultConfig returns sensible defaults
func DefaultConfig() Config {
	return Config{
		Provider:    "", // Disabled by default
		Timeout:     30 * time.Second,
		MaxTokens:   600,
		Temperature: 0.2,
		Grounded:    true,
	}
}

const systemPrompt = "You are an assistant to an insurance claims reviewer. You comment on deterministic fraud, document and image scores. You never change or re-derive a score."

// BuildPrompt constructs the default advisory prompt from the deterministic report
func BuildPrompt(a *model.Analysis) string {
	s := a.Summary
	var b strings.Builder
	fmt.Fprintf(&b, `Review this %s analysis produced by a rule-based scoring engine.

RULES:
1. The score and recommendation are final. Do not propose a different recommendation.
2. Only mention issues and risk factors listed below.
3. If the evidence is thin, say so.

Report:
- Subject: %s
- Score: %.3f
- Confidence: %.3f
- Recommendation: %s
`, a.Kind, a.Subject, s.Score, s.Confidence, s.Recommendation)

	b.WriteString("\nIssues:\n")
	b.WriteString(bulletList(s.Issues, 10))
	b.WriteString("\nRisk factors:\n")
	b.WriteString(bulletList(s.RiskFactors, 10))

	b.WriteString(`
Reply with JSON only, in the form {"summary": "<2-3 sentences>", "concerns": ["<short item>", ...]}.`)
	return b.String()
}

func bulletList(items []string, limit int) string {
	if len(items) == 0 {
		return "(none)\n"
	}
	var b strings.Builder
	for i, item := range items {
		if i >= limit { // Limit to avoid token bloat
			fmt.Fprintf(&b, "... and %d more\n", len(items)-limit)
			break
		}
		fmt.Fprintf(&b, "- %s\n", item)
	}
	return b.String()
}

type advice struct {
	Summary  string   `json:"summary"`
	Concerns []string `json:"concerns"`
}

// parseAdvice decodes the JSON note, tolerating markdown code fences and
// falling back to the raw text as the summary
func parseAdvice(text string) advice {
	text = strings.TrimSpace(text)
	if strings.HasPrefix(text, "```") {
		text = strings.TrimPrefix(text, "```json")
		text = strings.TrimPrefix(text, "```")
		text = strings.TrimSuffix(strings.TrimSpace(text), "```")
		text = strings.TrimSpace(text)
	}

	var out advice
	if start, end := strings.Index(text, "{"), strings.LastIndex(text, "}"); start >= 0 && end > start {
		if err := json.Unmarshal([]byte(text[start:end+1]), &out); err == nil && out.Summary != "" {
			return out
		}
	}
	return advice{Summary: text}
}

var recommendations = []model.Recommendation{
	model.RecommendHighRiskReject,
	model.RecommendManualReview,
	model.RecommendLowRiskApprove,
	model.RecommendStandardReview,
}

// checkGrounded fails when the note names a recommendation label other than the report's
func checkGrounded(note advice, want model.Recommendation) error {
	text := note.Summary + "\n" + strings.Join(note.Concerns, "\n")
	for _, rec := range recommendations {
		if rec != want && strings.Contains(text, string(rec)) {
			return fmt.Errorf("GROUNDING LEAK: note recommends %s, report says %s", rec, want)
		}
	}
	return nil
}

// finish parses raw model output into a response, enforcing grounding when configured
func finish(cfg Config, req AdviseRequest, raw, modelName string, tokens int) (*AdviseResponse, error) {
	note := parseAdvice(raw)
	if cfg.Grounded && req.Analysis != nil {
		if err := checkGrounded(note, req.Analysis.Summary.Recommendation); err != nil {
			return nil, err
		}
	}
	return &AdviseResponse{
		Summary:    note.Summary,
		Concerns:   note.Concerns,
		Model:      modelName,
		TokensUsed: tokens,
	}, nil
}

// promptFor returns the custom prompt or the default one built from the analysis
func promptFor(req AdviseRequest) (string, error) {
	if req.Prompt != "" {
		return req.Prompt, nil
	}
	if req.Analysis == nil {
		return "", fmt.Errorf("advise: analysis is required")
	}
	return BuildPrompt(req.Analysis), nil
}

func pick[T comparable](values ...T) T {
	var zero T
	for _, v := range values {
		if v != zero {
			return v
		}
	}
	return zero
}
