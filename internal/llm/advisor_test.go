package llm

import (
	"context"
	"strings"
	"testing"

	"github.com/ppiankov/claimlens/internal/model"
)

// MockProvider is a mock LLM provider for testing
type MockProvider struct {
	name      string
	available bool
	response  *AdviseResponse
	err       error
	calls     int
	checks    int
}

func (m *MockProvider) Name() string {
	return m.name
}

func (m *MockProvider) Advise(ctx context.Context, req AdviseRequest) (*AdviseResponse, error) {
	m.calls++
	if m.err != nil {
		return nil, m.err
	}
	return m.response, nil
}

func (m *MockProvider) IsAvailable(ctx context.Context) bool {
	m.checks++
	return m.available
}

type mockError struct {
	msg string
}

func (e *mockError) Error() string {
	return e.msg
}

func TestNewAdvisor_DisabledProvider(t *testing.T) {
	advisor, err := NewAdvisor(Config{Provider: ""})
	if err != nil {
		t.Fatalf("Expected no error for disabled provider, got %v", err)
	}
	if advisor.IsEnabled() {
		t.Error("Expected advisor to be disabled")
	}
	if advisor.ProviderName() != "none" {
		t.Errorf("Expected provider name 'none', got %q", advisor.ProviderName())
	}
	if adv := advisor.Advise(context.Background(), testAnalysis()); adv != nil {
		t.Errorf("Expected nil advisory when disabled, got %+v", adv)
	}
}

func TestNewAdvisor_UnknownProvider(t *testing.T) {
	if _, err := NewAdvisor(Config{Provider: "bard"}); err == nil {
		t.Fatal("Expected error for unknown provider")
	}
}

func TestAdvisor_ProviderUnavailable(t *testing.T) {
	mock := &MockProvider{name: "test-provider", available: false}
	advisor := &Advisor{provider: mock, config: Config{Grounded: true}}

	adv := advisor.Advise(context.Background(), testAnalysis())
	if adv == nil {
		t.Fatal("Expected advisory with warnings")
	}
	if adv.Enabled {
		t.Error("Expected advisory to be marked as disabled")
	}
	if len(adv.Warnings) == 0 || !strings.Contains(adv.Warnings[0], "not available") {
		t.Errorf("Expected unavailability warning, got %v", adv.Warnings)
	}
	if mock.calls != 0 {
		t.Error("Expected no advise call when unavailable")
	}
}

func TestAdvisor_Success(t *testing.T) {
	mock := &MockProvider{
		name:      "test-provider",
		available: true,
		response: &AdviseResponse{
			Summary:    "Amount and wording both point to inflation.",
			Concerns:   []string{"amount above range"},
			Model:      "test-model",
			TokensUsed: 150,
		},
	}
	advisor := &Advisor{provider: mock, config: Config{Model: "test-model"}}

	analysis := testAnalysis()
	before := analysis.Summary.Score

	adv := advisor.Advise(context.Background(), analysis)
	if adv == nil || !adv.Enabled {
		t.Fatalf("Expected enabled advisory, got %+v", adv)
	}
	if adv.Provider != "test-provider" || adv.Model != "test-model" {
		t.Errorf("Unexpected provider/model: %s/%s", adv.Provider, adv.Model)
	}
	if adv.Summary != "Amount and wording both point to inflation." {
		t.Errorf("Unexpected summary: %s", adv.Summary)
	}
	if len(adv.Concerns) != 1 {
		t.Errorf("Unexpected concerns: %v", adv.Concerns)
	}
	if len(adv.Warnings) != 1 || adv.Warnings[0] != "Tokens used: 150" {
		t.Errorf("Expected token warning, got %v", adv.Warnings)
	}
	if analysis.Summary.Score != before {
		t.Error("Advisory must not change the score")
	}

	// availability is checked once per advisor
	advisor.Advise(context.Background(), analysis)
	if mock.checks != 1 {
		t.Errorf("Expected one availability check, got %d", mock.checks)
	}
}

func TestAdvisor_ProviderError(t *testing.T) {
	mock := &MockProvider{
		name:      "test-provider",
		available: true,
		err:       &mockError{msg: "API rate limit exceeded"},
	}
	advisor := &Advisor{provider: mock, config: Config{Model: "test-model"}}

	adv := advisor.Advise(context.Background(), testAnalysis())
	if adv == nil {
		t.Fatal("Expected advisory with error warning")
	}
	if !adv.Enabled {
		t.Error("Expected advisory to be marked as enabled (but failed)")
	}
	if adv.Summary != "" {
		t.Errorf("Expected no summary, got %q", adv.Summary)
	}
	found := false
	for _, w := range adv.Warnings {
		if strings.Contains(w, "failed") && strings.Contains(w, "rate limit") {
			found = true
		}
	}
	if !found {
		t.Errorf("Expected warning to mention error: %v", adv.Warnings)
	}
}

func TestRenderMarkdown(t *testing.T) {
	if md := RenderMarkdown(nil); md != "" {
		t.Error("Expected empty markdown when nil")
	}
	if md := RenderMarkdown(&model.Advisory{Enabled: false}); md != "" {
		t.Error("Expected empty markdown when disabled")
	}

	md := RenderMarkdown(&model.Advisory{
		Enabled:  true,
		Provider: "openai",
		Model:    "gpt-4o-mini",
		Summary:  "This is the generated note.",
		Concerns: []string{"duplicate invoice numbers"},
		Warnings: []string{"Tokens used: 150"},
	})
	for _, want := range []string{
		"# Reviewer Advisory",
		"GENERATED CONTENT",
		"determined independently",
		"openai",
		"gpt-4o-mini",
		"This is the generated note.",
		"## Concerns",
		"duplicate invoice numbers",
		"## Notes",
		"Tokens used: 150",
	} {
		if !strings.Contains(md, want) {
			t.Errorf("Expected markdown to contain %q", want)
		}
	}

	empty := RenderMarkdown(&model.Advisory{Enabled: true, Provider: "test-provider"})
	if !strings.Contains(empty, "No advisory generated") {
		t.Error("Expected message about no advisory")
	}
}

func TestBuildPrompt(t *testing.T) {
	prompt := BuildPrompt(testAnalysis())

	for _, want := range []string{
		"claim analysis",
		"CLM-1001",
		"0.720",
		"high_risk_reject",
		"Claimed amount significantly exceeds typical range",
		"high_fraud_keywords",
		`"concerns"`,
	} {
		if !strings.Contains(prompt, want) {
			t.Errorf("Expected prompt to contain %q", want)
		}
	}
}

func TestBuildPrompt_NoIssues(t *testing.T) {
	a := testAnalysis()
	a.Summary.Issues = nil
	a.Summary.RiskFactors = nil

	prompt := BuildPrompt(a)
	if strings.Count(prompt, "(none)") != 2 {
		t.Error("Expected '(none)' for empty issues and risk factors")
	}
}

func TestBulletList_Truncates(t *testing.T) {
	items := make([]string, 15)
	for i := range items {
		items[i] = "issue"
	}
	out := bulletList(items, 10)
	if strings.Count(out, "- issue") != 10 {
		t.Errorf("Expected 10 bullets, got %q", out)
	}
	if !strings.Contains(out, "and 5 more") {
		t.Error("Expected truncation note")
	}
}

func TestParseAdvice(t *testing.T) {
	tests := []struct {
		name     string
		in       string
		summary  string
		concerns int
	}{
		{"plain json", `{"summary": "ok", "concerns": ["a", "b"]}`, "ok", 2},
		{"fenced", "```json\n{\"summary\": \"ok\", \"concerns\": []}\n```", "ok", 0},
		{"prose around json", `Here you go: {"summary": "ok"} thanks`, "ok", 0},
		{"not json", "just text", "just text", 0},
		{"empty summary falls back", `{"concerns": ["x"]}`, `{"concerns": ["x"]}`, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := parseAdvice(tt.in)
			if got.Summary != tt.summary {
				t.Errorf("summary = %q, want %q", got.Summary, tt.summary)
			}
			if len(got.Concerns) != tt.concerns {
				t.Errorf("concerns = %v, want %d", got.Concerns, tt.concerns)
			}
		})
	}
}

func TestCheckGrounded(t *testing.T) {
	note := advice{Summary: "Agrees with manual_review_required."}
	if err := checkGrounded(note, model.RecommendManualReview); err != nil {
		t.Errorf("Expected matching recommendation to pass, got %v", err)
	}
	if err := checkGrounded(note, model.RecommendLowRiskApprove); err == nil {
		t.Error("Expected mismatched recommendation to fail")
	}
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	if cfg.Provider != "" {
		t.Errorf("Expected empty provider by default, got %q", cfg.Provider)
	}
	if !cfg.Grounded {
		t.Error("Expected grounding to be enforced by default")
	}
	if cfg.MaxTokens != 600 {
		t.Errorf("Expected 600 max tokens, got %d", cfg.MaxTokens)
	}
}

func TestConfigFromModel(t *testing.T) {
	t.Setenv("CLAIMLENS_LLM_API_KEY", "")
	t.Setenv("OPENAI_API_KEY", "sk-test")

	cfg := ConfigFromModel(model.LLMConfig{Enabled: false, Provider: "openai"})
	if cfg.Provider != "" {
		t.Errorf("Expected disabled config to have no provider, got %q", cfg.Provider)
	}

	cfg = ConfigFromModel(model.LLMConfig{Enabled: true, Provider: "openai", Model: "gpt-4o-mini", MaxTokens: 300})
	if cfg.Provider != "openai" || cfg.APIKey != "sk-test" || cfg.MaxTokens != 300 {
		t.Errorf("Unexpected config: %+v", cfg)
	}

	t.Setenv("CLAIMLENS_LLM_API_KEY", "override")
	cfg = ConfigFromModel(model.LLMConfig{Enabled: true, Provider: "openai"})
	if cfg.APIKey != "override" {
		t.Errorf("Expected CLAIMLENS_LLM_API_KEY to win, got %q", cfg.APIKey)
	}
}

func TestPick(t *testing.T) {
	if got := pick("", "b", "c"); got != "b" {
		t.Errorf("pick = %q, want b", got)
	}
	if got := pick(0, 0); got != 0 {
		t.Errorf("pick = %d, want 0", got)
	}
}
