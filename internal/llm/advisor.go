package llm

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/ppiankov/claimlens/internal/model"
)

// Advisor attaches optional reviewer notes to analyses.
// It never returns an error that should fail an analysis: problems become warnings.
type Advisor struct {
	provider Provider
	config   Config

	once      sync.Once
	available bool
}

// NewAdvisor creates an advisor. An empty provider name yields a disabled advisor.
func NewAdvisor(config Config) (*Advisor, error) {
	provider, err := NewProvider(config)
	if err != nil {
		return nil, err
	}
	return &Advisor{provider: provider, config: config}, nil
}

// IsEnabled reports whether a provider is configured
func (a *Advisor) IsEnabled() bool {
	return a != nil && a.provider != nil
}

// ProviderName returns the configured provider, or "none"
func (a *Advisor) ProviderName() string {
	if !a.IsEnabled() {
		return "none"
	}
	return a.provider.Name()
}

// Advise returns the advisory note for an analysis. A disabled advisor returns nil.
func (a *Advisor) Advise(ctx context.Context, analysis *model.Analysis) *model.Advisory {
	if !a.IsEnabled() || analysis == nil {
		return nil
	}

	a.once.Do(func() { a.available = a.provider.IsAvailable(ctx) })
	if !a.available {
		return &model.Advisory{
			Enabled:  false,
			Provider: a.provider.Name(),
			Warnings: []string{fmt.Sprintf("LLM provider %s is not available", a.provider.Name())},
		}
	}

	adv := &model.Advisory{
		Enabled:  true,
		Provider: a.provider.Name(),
		Model:    a.config.Model,
	}

	resp, err := a.provider.Advise(ctx, AdviseRequest{
		Analysis:  analysis,
		Model:     a.config.Model,
		MaxTokens: a.config.MaxTokens,
	})
	if err != nil {
		adv.Warnings = append(adv.Warnings, fmt.Sprintf("Advisory generation failed: %v", err))
		return adv
	}

	adv.Model = resp.Model
	adv.Summary = resp.Summary
	adv.Concerns = resp.Concerns
	adv.Warnings = append(adv.Warnings, fmt.Sprintf("Tokens used: %d", resp.TokensUsed))
	return adv
}

// RenderMarkdown renders an advisory note as a standalone markdown section
func RenderMarkdown(adv *model.Advisory) string {
	if adv == nil || !adv.Enabled {
		return ""
	}

	var b strings.Builder
	b.WriteString("# Reviewer Advisory\n\n")
	b.WriteString("> GENERATED CONTENT. Scores and recommendations were determined independently by the rule engines and are not affected by this note.\n\n")
	fmt.Fprintf(&b, "- **Provider**: %s\n", adv.Provider)
	if adv.Model != "" {
		fmt.Fprintf(&b, "- **Model**: %s\n", adv.Model)
	}
	b.WriteString("\n")

	if adv.Summary == "" {
		b.WriteString("_No advisory generated._\n")
	} else {
		b.WriteString(adv.Summary)
		b.WriteString("\n")
	}

	if len(adv.Concerns) > 0 {
		b.WriteString("\n## Concerns\n\n")
		for _, c := range adv.Concerns {
			fmt.Fprintf(&b, "- %s\n", c)
		}
	}

	if len(adv.Warnings) > 0 {
		b.WriteString("\n## Notes\n\n")
		for _, w := range adv.Warnings {
			fmt.Fprintf(&b, "- %s\n", w)
		}
	}
	return b.String()
}
