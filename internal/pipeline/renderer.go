package pipeline

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/ppiankov/claimlens/internal/llm"
	"github.com/ppiankov/claimlens/internal/model"
)

// Renderer writes analyses as JSON, markdown or a terminal summary
type Renderer struct{}

// NewRenderer creates a renderer
func NewRenderer() *Renderer {
	return &Renderer{}
}

// WriteJSON writes the analysis as indented JSON
func (r *Renderer) WriteJSON(w io.Writer, a *model.Analysis) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(a); err != nil {
		return fmt.Errorf("encode analysis: %w", err)
	}
	return nil
}

// WriteMarkdown writes the engine report as markdown. The advisory is not
// included; see RenderAll.
func (r *Renderer) WriteMarkdown(w io.Writer, a *model.Analysis) error {
	_, err := io.WriteString(w, r.Markdown(a))
	return err
}

// Markdown renders the engine report
func (r *Renderer) Markdown(a *model.Analysis) string {
	var b strings.Builder

	fmt.Fprintf(&b, "# Claimlens %s analysis: %s\n\n", a.Kind, a.Subject)
	fmt.Fprintf(&b, "- **ID**: %s\n", a.ID)
	fmt.Fprintf(&b, "- **Created**: %s\n", a.CreatedAt.Format("2006-01-02 15:04:05 UTC"))
	if a.Cached {
		b.WriteString("- **Cached**: yes\n")
	}
	b.WriteString("\n## Summary\n\n")
	fmt.Fprintf(&b, "| Score | Confidence | Recommendation |\n|---|---|---|\n| %.3f | %.3f | %s |\n\n",
		a.Summary.Score, a.Summary.Confidence, a.Summary.Recommendation)

	switch {
	case a.Claim != nil:
		writeClaim(&b, a.Claim)
	case a.Document != nil:
		writeDocument(&b, a.Document)
	case a.Image != nil:
		writeImage(&b, a.Image)
	}

	writeList(&b, "Risk factors", a.Summary.RiskFactors)
	writeList(&b, "Issues", a.Summary.Issues)
	return b.String()
}

func writeClaim(b *strings.Builder, r *model.FraudReport) {
	fmt.Fprintf(b, "- **Category**: %s\n", r.Category)
	if len(r.DetectedKeywords) > 0 {
		fmt.Fprintf(b, "- **Keywords**: %s\n", strings.Join(r.DetectedKeywords, ", "))
	}
	if r.Error != "" {
		fmt.Fprintf(b, "- **Error**: %s\n", r.Error)
	}
	if len(r.Signals) == 0 {
		b.WriteString("\n")
		return
	}

	b.WriteString("\n## Signals\n\n| Signal | Severity | Description |\n|---|---|---|\n")
	for _, s := range r.Signals {
		fmt.Fprintf(b, "| %s | %s | %s |\n", s.Type, s.Severity, s.Description)
	}
	b.WriteString("\n")
}

func writeDocument(b *strings.Builder, r *model.ValidationReport) {
	fmt.Fprintf(b, "- **Declared type**: %s (rules: %s)\n", r.DocumentType, r.RuleTable)
	if r.SuggestedType != "" && r.SuggestedType != r.DocumentType {
		fmt.Fprintf(b, "- **Looks like**: %s\n", r.SuggestedType)
	}
	fmt.Fprintf(b, "- **Valid**: %t\n", r.IsValid)
	fmt.Fprintf(b, "- **Authenticity**: %.3f\n", r.AuthenticityScore)
	if r.ContentSHA256 != "" {
		fmt.Fprintf(b, "- **SHA-256**: `%s`\n", r.ContentSHA256)
	}
	if r.Error != "" {
		fmt.Fprintf(b, "- **Error**: %s\n", r.Error)
	}

	if keys := r.ExtractedData.Keys(); len(keys) > 0 {
		b.WriteString("\n## Extracted data\n\n| Field | Value |\n|---|---|\n")
		for _, k := range keys {
			fmt.Fprintf(b, "| %s | %v |\n", k, r.ExtractedData[k])
		}
	}
	b.WriteString("\n")
}

func writeImage(b *strings.Builder, r *model.ImageReport) {
	fmt.Fprintf(b, "- **Analysis type**: %s\n", r.AnalysisType)
	fmt.Fprintf(b, "- **Quality**: %.3f\n", r.QualityScore)
	if info := r.BasicInfo; info != nil {
		fmt.Fprintf(b, "- **Image**: %dx%d %s, hash `%s`\n", info.Width, info.Height, info.Format, info.AverageHash)
	}
	if r.Error != "" {
		fmt.Fprintf(b, "- **Error**: %s\n", r.Error)
	}

	d := r.Authenticity
	b.WriteString("\n## Authenticity\n\n| Detector | Score |\n|---|---|\n")
	fmt.Fprintf(b, "| compression | %.3f |\n| noise | %.3f |\n| color | %.3f |\n| edges | %.3f |\n",
		d.CompressionScore, d.NoiseScore, d.ColorScore, d.EdgeScore)
	fmt.Fprintf(b, "| metadata suspicious | %t |\n", d.Metadata.Suspicious)
	if len(d.Errors) > 0 {
		names := make([]string, 0, len(d.Errors))
		for name := range d.Errors {
			names = append(names, name)
		}
		sort.Strings(names)
		b.WriteString("\nDetector errors:\n\n")
		for _, name := range names {
			fmt.Fprintf(b, "- %s: %s\n", name, d.Errors[name])
		}
	}

	if dmg := r.Damage; dmg != nil {
		b.WriteString("\n## Damage\n\n")
		fmt.Fprintf(b, "- **Severity**: %s (%.3f)\n", dmg.Severity, dmg.SeverityScore)
		fmt.Fprintf(b, "- **Estimated cost**: %.2f\n", dmg.EstimatedCost)
		fmt.Fprintf(b, "- **Consistency**: %.3f\n", dmg.Consistency.Score)
		for _, loc := range dmg.Locations {
			fmt.Fprintf(b, "- %s at (%d,%d) %dx%d\n", loc.Region, loc.X, loc.Y, loc.Width, loc.Height)
		}
	}

	if sc := r.Scene; sc != nil {
		b.WriteString("\n## Scene\n\n")
		fmt.Fprintf(b, "- **Lighting**: %s (brightness %.1f, contrast %.1f)\n",
			sc.Lighting.Quality, sc.Lighting.Brightness, sc.Lighting.Contrast)
		fmt.Fprintf(b, "- **Focus**: %s (blur score %.1f)\n", sc.Focus.Quality, sc.Focus.BlurScore)
		for _, c := range sc.DominantColors {
			fmt.Fprintf(b, "- color #%02x%02x%02x\n", c[0], c[1], c[2])
		}
	}
	b.WriteString("\n")
}

func writeList(b *strings.Builder, title string, items []string) {
	if len(items) == 0 {
		return
	}
	fmt.Fprintf(b, "## %s\n\n", title)
	for _, item := range items {
		fmt.Fprintf(b, "- %s\n", item)
	}
	b.WriteString("\n")
}

// WriteSummary prints a short human-readable summary
func (r *Renderer) WriteSummary(w io.Writer, a *model.Analysis) {
	fmt.Fprintf(w, "%s %s\n", a.Kind, a.Subject)
	fmt.Fprintf(w, "  score:          %.3f\n", a.Summary.Score)
	fmt.Fprintf(w, "  confidence:     %.3f\n", a.Summary.Confidence)
	fmt.Fprintf(w, "  recommendation: %s\n", a.Summary.Recommendation)
	for _, f := range a.Summary.RiskFactors {
		fmt.Fprintf(w, "  ! %s\n", f)
	}
	if a.Advisory != nil && a.Advisory.Summary != "" {
		fmt.Fprintf(w, "  advisory (%s): %s\n", a.Advisory.Provider, a.Advisory.Summary)
	}
}

// Write renders a in the named format: json, md or summary
func (r *Renderer) Write(w io.Writer, a *model.Analysis, format string) error {
	switch format {
	case "", "json":
		return r.WriteJSON(w, a)
	case "md", "markdown":
		return r.WriteMarkdown(w, a)
	case "summary":
		r.WriteSummary(w, a)
		return nil
	default:
		return fmt.Errorf("unknown output format %q (want json, md or summary)", format)
	}
}

// RenderAll writes <id>.json and <id>.md into dir, plus <id>.advisory.md when
// an advisory was generated. It returns the written paths.
func (r *Renderer) RenderAll(a *model.Analysis, dir string) ([]string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create output dir: %w", err)
	}

	base := filepath.Join(dir, a.ID)
	var written []string

	data, err := json.MarshalIndent(a, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encode analysis: %w", err)
	}
	if err := os.WriteFile(base+".json", data, 0o644); err != nil {
		return nil, fmt.Errorf("write JSON: %w", err)
	}
	written = append(written, base+".json")

	if err := os.WriteFile(base+".md", []byte(r.Markdown(a)), 0o644); err != nil {
		return written, fmt.Errorf("write markdown: %w", err)
	}
	written = append(written, base+".md")

	if adv := llm.RenderMarkdown(a.Advisory); adv != "" {
		if err := os.WriteFile(base+".advisory.md", []byte(adv), 0o644); err != nil {
			return written, fmt.Errorf("write advisory: %w", err)
		}
		written = append(written, base+".advisory.md")
	}
	return written, nil
}
