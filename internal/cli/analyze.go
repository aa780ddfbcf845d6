package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/ppiankov/claimlens/internal/model"
	"github.com/ppiankov/claimlens/internal/pipeline"
	"github.com/spf13/cobra"
)

var (
	noCache      bool
	withHistory  bool
	llmEnabled   bool
	llmProvider  string
	llmModel     string
	outputFormat string
	outDir       string
	timeout      time.Duration

	claimID       string
	claimCategory string
	claimAmount   float64
	claimFile     string

	docType     string
	docTextFile string

	imageType string
)

// addAnalysisFlags registers the flags shared by claim, document, image and batch
func addAnalysisFlags(cmd *cobra.Command) {
	cmd.Flags().BoolVar(&noCache, "no-cache", false, "disable the report cache")
	cmd.Flags().BoolVar(&withHistory, "history", false, "record analyses in the history database")
	cmd.Flags().BoolVar(&llmEnabled, "llm", false, "attach an LLM reviewer advisory (never changes scores)")
	cmd.Flags().StringVar(&llmProvider, "llm-provider", "", "LLM provider (openai, anthropic, ollama)")
	cmd.Flags().StringVar(&llmModel, "llm-model", "", "LLM model name")
	cmd.Flags().StringVarP(&outputFormat, "format", "f", "", "output format (json, md, summary)")
	cmd.Flags().StringVar(&outDir, "out-dir", "", "also write <id>.json and <id>.md into this directory")
	cmd.Flags().DurationVar(&timeout, "timeout", 2*time.Minute, "overall timeout")
}

// claimCmd represents the claim command
var claimCmd = &cobra.Command{
	Use:   "claim [description|-]",
	Short: "Score a claim narrative for fraud signals",
	Long: `Claim scores a claim narrative for fraud signals: keywords, amounts,
suspicious patterns and category consistency.

The narrative is the argument, "-" for stdin, or --file.

Example:
  claimlens claim "Rear-ended at a red light on 03/02/2024, bumper replaced for $1,850" --category vehicle --amount 1850
  claimlens claim --file narrative.txt --category health --format md`,
	Args: cobra.MaximumNArgs(1),
	RunE: runClaim,
}

// documentCmd represents the document command
var documentCmd = &cobra.Command{
	Use:   "document <file|url>",
	Short: "Validate a supporting document against its declared type",
	Long: `Document validates a supporting document (bill, receipt, report...)
against the structure expected of its declared type.

Plain text and HTML documents are read directly. For scans, supply the
OCR text with --text-file.

Example:
  claimlens document bill.txt --type medical_bill
  claimlens document scan.pdf --type receipt --text-file scan.txt`,
	Args: cobra.ExactArgs(1),
	RunE: runDocument,
}

// imageCmd represents the image command
var imageCmd = &cobra.Command{
	Use:   "image <file|url>",
	Short: "Check a photograph for tampering and assess damage",
	Long: `Image checks a photograph for signs of tampering and, for vehicle,
health and property claims, estimates damage severity and cost.

Example:
  claimlens image bumper.jpg --type vehicle
  claimlens image https://evidence.example.com/roof.png --type property --format summary`,
	Args: cobra.ExactArgs(1),
	RunE: runImage,
}

func init() {
	rootCmd.AddCommand(claimCmd, documentCmd, imageCmd)

	for _, cmd := range []*cobra.Command{claimCmd, documentCmd, imageCmd} {
		addAnalysisFlags(cmd)
	}

	claimCmd.Flags().StringVar(&claimID, "id", "", "claim identifier")
	claimCmd.Flags().StringVarP(&claimCategory, "category", "c", "", "claim category (health, vehicle, travel, product_warranty, pet, agricultural)")
	claimCmd.Flags().Float64VarP(&claimAmount, "amount", "a", 0, "claimed amount")
	claimCmd.Flags().StringVar(&claimFile, "file", "", "read the narrative from a file")

	documentCmd.Flags().StringVarP(&docType, "type", "t", "general", "declared document type")
	documentCmd.Flags().StringVar(&docTextFile, "text-file", "", "OCR text for the document")

	imageCmd.Flags().StringVarP(&imageType, "type", "t", "general", "analysis type (vehicle, health, property, general)")
}

// buildConfig applies command flags over the loaded configuration
func buildConfig() (*model.Config, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}

	if noCache {
		cfg.Cache.Enabled = false
	}
	if withHistory {
		cfg.Store.Enabled = true
	}
	if outputFormat != "" {
		cfg.Output.Format = outputFormat
	}
	if llmEnabled {
		cfg.LLM.Enabled = true
	}
	if llmProvider != "" {
		cfg.LLM.Provider = llmProvider
	}
	if llmModel != "" {
		cfg.LLM.Model = llmModel
	}
	if cfg.LLM.Provider == "ollama" && cfg.LLM.BaseURL == "" {
		cfg.LLM.BaseURL = os.Getenv("OLLAMA_BASE_URL")
	}
	return cfg, nil
}

func openPipeline() (*model.Config, *pipeline.Pipeline, error) {
	cfg, err := buildConfig()
	if err != nil {
		return nil, nil, err
	}
	p, err := pipeline.NewPipeline(cfg)
	if err != nil {
		return nil, nil, fmt.Errorf("create pipeline: %w", err)
	}
	if verbose && cfg.LLM.Enabled {
		fmt.Fprintf(os.Stderr, "LLM advisory: %s\n", p.AdvisorName())
	}
	return cfg, p, nil
}

// emit prints the analysis and optionally writes report files
func emit(p *pipeline.Pipeline, cfg *model.Config, a *model.Analysis) error {
	if outDir != "" {
		paths, err := p.Renderer().RenderAll(a, outDir)
		if err != nil {
			return fmt.Errorf("write reports: %w", err)
		}
		for _, path := range paths {
			fmt.Fprintf(os.Stderr, "✓ Wrote %s\n", path)
		}
	}
	return p.Renderer().Write(os.Stdout, a, cfg.Output.Format)
}

func runClaim(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	description, err := readNarrative(args, claimFile, os.Stdin)
	if err != nil {
		return err
	}

	cfg, p, err := openPipeline()
	if err != nil {
		return err
	}
	defer func() { _ = p.Close() }()

	a, err := p.AnalyzeClaim(ctx, model.ClaimRequest{
		ClaimID:     claimID,
		Category:    model.Category(claimCategory),
		Description: description,
		Amount:      claimAmount,
	})
	if err != nil {
		return fmt.Errorf("analyze claim: %w", err)
	}
	return emit(p, cfg, a)
}

// readNarrative takes the narrative from the argument, "-" (stdin) or a file
func readNarrative(args []string, file string, stdin io.Reader) (string, error) {
	switch {
	case file != "":
		data, err := os.ReadFile(file)
		if err != nil {
			return "", fmt.Errorf("read narrative: %w", err)
		}
		return string(data), nil
	case len(args) == 1 && args[0] == "-":
		data, err := io.ReadAll(stdin)
		if err != nil {
			return "", fmt.Errorf("read stdin: %w", err)
		}
		return string(data), nil
	case len(args) == 1:
		return args[0], nil
	default:
		return "", fmt.Errorf("no narrative: pass it as an argument, \"-\" for stdin, or --file")
	}
}

func runDocument(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	cfg, p, err := openPipeline()
	if err != nil {
		return err
	}
	defer func() { _ = p.Close() }()

	content, err := p.Loader().Load(ctx, args[0])
	if err != nil {
		return fmt.Errorf("load %s: %w", args[0], err)
	}

	doc := model.Document{
		Content:  content,
		Filename: sourceName(args[0]),
		Type:     model.DocumentType(docType),
	}
	if docTextFile != "" {
		text, err := os.ReadFile(docTextFile)
		if err != nil {
			return fmt.Errorf("read text file: %w", err)
		}
		doc.Text = string(text)
	}

	a, err := p.ValidateDocument(ctx, doc)
	if err != nil {
		return fmt.Errorf("validate document: %w", err)
	}
	return emit(p, cfg, a)
}

func runImage(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	cfg, p, err := openPipeline()
	if err != nil {
		return err
	}
	defer func() { _ = p.Close() }()

	content, err := p.Loader().Load(ctx, args[0])
	if err != nil {
		return fmt.Errorf("load %s: %w", args[0], err)
	}

	a, err := p.AnalyzeImage(ctx, model.Image{
		Content:      content,
		Filename:     sourceName(args[0]),
		AnalysisType: model.AnalysisType(imageType),
	})
	if err != nil {
		return fmt.Errorf("analyze image: %w", err)
	}
	return emit(p, cfg, a)
}

// sourceName is the last path element of a file path or URL
func sourceName(source string) string {
	source = strings.SplitN(source, "?", 2)[0]
	return filepath.Base(strings.TrimSuffix(source, "/"))
}
