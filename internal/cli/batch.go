package cli

import (
	"context"
	"fmt"
	"os"
	"runtime"
	"time"

	"github.com/ppiankov/claimlens/internal/worker"
	"github.com/spf13/cobra"
)

var (
	concurrency int
	batchOutput string
	itemTimeout time.Duration
)

// batchCmd represents the batch command
var batchCmd = &cobra.Command{
	Use:   "batch <manifest.jsonl>",
	Short: "Analyze many claims, documents and images from a manifest",
	Long: `Batch processes a JSONL manifest concurrently. Each line is one item:

  {"kind": "claim", "id": "CLM-1", "category": "health", "description": "...", "amount": 120}
  {"kind": "document", "source": "bills/1.txt", "document_type": "medical_bill"}
  {"kind": "image", "source": "https://evidence.example.com/car.jpg", "analysis_type": "vehicle"}

Blank lines and lines starting with # are skipped. Output is one JSON result
per line followed by a summary line.

Example:
  claimlens batch claims.jsonl
  claimlens batch claims.jsonl --concurrency 8 --output results.jsonl`,
	Args: cobra.ExactArgs(1),
	RunE: runBatch,
}

func init() {
	rootCmd.AddCommand(batchCmd)

	addAnalysisFlags(batchCmd)
	batchCmd.Flags().IntVar(&concurrency, "concurrency", runtime.NumCPU(), "number of concurrent workers")
	batchCmd.Flags().StringVarP(&batchOutput, "output", "o", "", "write results to this file instead of stdout")
	batchCmd.Flags().DurationVar(&itemTimeout, "item-timeout", 0, "timeout per item (default: concurrency.timeout from config)")
}

func runBatch(cmd *cobra.Command, args []string) error {
	file := args[0]
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	cfg, p, err := openPipeline()
	if err != nil {
		return err
	}
	defer func() { _ = p.Close() }()

	if cmd.Flags().Changed("concurrency") || cfg.Concurrency.Workers <= 0 {
		cfg.Concurrency.Workers = concurrency
	}
	if itemTimeout > 0 {
		cfg.Concurrency.Timeout = itemTimeout
	}

	fmt.Fprintf(os.Stderr, "\n")
	fmt.Fprintf(os.Stderr, "═══════════════════════════════════════════════════════════\n")
	fmt.Fprintf(os.Stderr, "  Claimlens Batch Processing\n")
	fmt.Fprintf(os.Stderr, "═══════════════════════════════════════════════════════════\n")
	fmt.Fprintf(os.Stderr, "\n")
	fmt.Fprintf(os.Stderr, "  Manifest:     %s\n", file)
	fmt.Fprintf(os.Stderr, "  Workers:      %d\n", cfg.Concurrency.Workers)
	fmt.Fprintf(os.Stderr, "  Item timeout: %v\n", cfg.Concurrency.Timeout)
	fmt.Fprintf(os.Stderr, "  Timeout:      %v\n", timeout)
	fmt.Fprintf(os.Stderr, "\n")

	processor := worker.NewBatchProcessor(p, p.Loader(), cfg.Concurrency.Workers, cfg.Concurrency.Timeout)
	processor.OnProgress(printProgress)
	results, err := processor.ProcessFile(ctx, file)
	if err != nil {
		return fmt.Errorf("process manifest: %w", err)
	}

	out := os.Stdout
	if batchOutput != "" {
		f, err := os.Create(batchOutput)
		if err != nil {
			return fmt.Errorf("create output: %w", err)
		}
		defer func() { _ = f.Close() }()
		out = f
	}
	if err := worker.WriteJSONL(out, results); err != nil {
		return err
	}

	summary := worker.Summarize(results)
	fmt.Fprintf(os.Stderr, "\n")
	fmt.Fprintf(os.Stderr, "═══════════════════════════════════════════════════════════\n")
	fmt.Fprintf(os.Stderr, "  Batch Complete\n")
	fmt.Fprintf(os.Stderr, "═══════════════════════════════════════════════════════════\n")
	fmt.Fprintf(os.Stderr, "\n")
	fmt.Fprintf(os.Stderr, "  Total:         %d items\n", summary.Total)
	fmt.Fprintf(os.Stderr, "  Success:       %d\n", summary.Succeeded)
	fmt.Fprintf(os.Stderr, "  Failures:      %d\n", summary.Failed)
	fmt.Fprintf(os.Stderr, "  Average score: %.3f\n", summary.AverageScore)
	if batchOutput != "" {
		fmt.Fprintf(os.Stderr, "  Output:        %s\n", batchOutput)
	}
	fmt.Fprintf(os.Stderr, "\n")

	return nil
}

// printProgress reports each finished item on stderr; successes only with -v
func printProgress(done, total int, r *worker.ItemResult) {
	if r == nil {
		return
	}
	if r.Error != nil {
		fmt.Fprintf(os.Stderr, "[%d/%d] ✗ line %d (%s): %v\n", done, total, r.Item.Line, r.Item.Kind, r.Error)
		return
	}
	if verbose {
		a := r.Analysis
		fmt.Fprintf(os.Stderr, "[%d/%d] ✓ line %d %s %s: %.3f %s\n", done, total, r.Item.Line, a.Kind, a.Subject, a.Summary.Score, a.Summary.Recommendation)
	}
}
