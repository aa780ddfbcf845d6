// Scenario program that runs representative claims, documents and a
// synthesized photograph through the pipeline and prints the outcomes.
// Useful for eyeballing rule table changes: claimlens-scenarios [rules.yaml]
package main

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"os"
	"strings"
	"time"

	"github.com/ppiankov/claimlens/internal/model"
	"github.com/ppiankov/claimlens/internal/pipeline"
)

type scenario struct {
	name   string
	expect string
	run    func(ctx context.Context, p *pipeline.Pipeline) (*model.Analysis, error)
}

func main() {
	fmt.Println("=== Claimlens Scenario Run ===")
	fmt.Println()

	cfg := model.DefaultConfig()
	cfg.Cache.Enabled = false
	if len(os.Args) > 1 {
		cfg.Rules.Path = os.Args[1]
		fmt.Printf("Rules: %s\n\n", cfg.Rules.Path)
	}

	p, err := pipeline.NewPipeline(&cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()

	for _, sc := range scenarios() {
		fmt.Printf("Scenario: %s\n", sc.name)
		fmt.Println(strings.Repeat("-", 60))

		a, err := sc.run(ctx, p)
		if err != nil {
			fmt.Printf("  ✗ error: %v\n\n", err)
			continue
		}

		fmt.Printf("  score:          %.3f\n", a.Summary.Score)
		fmt.Printf("  confidence:     %.3f\n", a.Summary.Confidence)
		fmt.Printf("  recommendation: %s (expected %s)\n", a.Summary.Recommendation, sc.expect)
		for _, f := range a.Summary.RiskFactors {
			fmt.Printf("  ⚠️  %s\n", f)
		}
		fmt.Println()
	}

	fmt.Println("=== Done ===")
}

func scenarios() []scenario {
	return []scenario{
		{
			name:   "routine health claim",
			expect: "low_risk_approve or standard_review",
			run: func(ctx context.Context, p *pipeline.Pipeline) (*model.Analysis, error) {
				return p.AnalyzeClaim(ctx, model.ClaimRequest{
					ClaimID:  "SCN-1",
					Category: model.CategoryHealth,
					Description: `On 03/14/2024 I visited Dr. Smith at City General Hospital for a
sprained ankle. The X-ray and consultation cost $450.00.`,
					Amount: 450,
				})
			},
		},
		{
			name:   "pressured vehicle claim",
			expect: "high_risk_reject or manual_review_required",
			run: func(ctx context.Context, p *pipeline.Pipeline) (*model.Analysis, error) {
				return p.AnalyzeClaim(ctx, model.ClaimRequest{
					ClaimID:  "SCN-2",
					Category: model.CategoryVehicle,
					Description: `URGENT!!! My car was totally destroyed, total loss, I need cash
payment immediately. No police report, no receipts, no witnesses. Pay $50000 now.`,
					Amount: 50000,
				})
			},
		},
		{
			name:   "medical bill",
			expect: "standard_review",
			run: func(ctx context.Context, p *pipeline.Pipeline) (*model.Analysis, error) {
				return p.ValidateDocument(ctx, model.Document{
					Content:  []byte(medicalBill),
					Filename: "bill.txt",
					Type:     model.DocMedicalBill,
				})
			},
		},
		{
			name:   "receipt declared as police report",
			expect: "manual_review_required",
			run: func(ctx context.Context, p *pipeline.Pipeline) (*model.Analysis, error) {
				return p.ValidateDocument(ctx, model.Document{
					Content:  []byte("STORE RECEIPT\nItem: Phone case  $19.99\nTotal: $19.99"),
					Filename: "report.txt",
					Type:     model.DocPoliceReport,
				})
			},
		},
		{
			name:   "synthetic vehicle photo",
			expect: "standard_review",
			run: func(ctx context.Context, p *pipeline.Pipeline) (*model.Analysis, error) {
				content, err := gradientPNG(320, 240)
				if err != nil {
					return nil, err
				}
				return p.AnalyzeImage(ctx, model.Image{
					Content:      content,
					Filename:     "door.png",
					AnalysisType: model.AnalysisVehicle,
				})
			},
		},
	}
}

const medicalBill = `CITY GENERAL HOSPITAL
Patient: Jane Doe
Date of Service: 03/14/2024
Provider: Dr. Alan Smith
Diagnosis: Sprained ankle
Procedure: X-ray of left ankle
Total Amount: $450.00`

// gradientPNG draws a smooth gradient with a dark scratch across it
func gradientPNG(w, h int) ([]byte, error) {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.RGBA{R: uint8(60 + x/4), G: uint8(70 + y/4), B: 140, A: 255})
		}
	}
	for x := w / 4; x < 3*w/4; x++ {
		y := h/2 + (x-w/2)/6
		for dy := -2; dy <= 2; dy++ {
			img.Set(x, y+dy, color.RGBA{R: 20, G: 20, B: 20, A: 255})
		}
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
