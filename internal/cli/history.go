package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/ppiankov/claimlens/internal/model"
	"github.com/ppiankov/claimlens/internal/pipeline"
	"github.com/ppiankov/claimlens/internal/store"
	"github.com/spf13/cobra"
)

var (
	historyKind   string
	historyLimit  int
	historyOffset int
	pruneOlder    time.Duration
	showFormat    string
)

// historyCmd represents the history command
var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Inspect recorded analyses",
	Long: `Inspect the analysis history database (store.path). Analyses are
recorded when store.enabled is true or --history is passed.`,
}

var historyListCmd = &cobra.Command{
	Use:   "list",
	Short: "List recent analyses",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withStore(func(ctx context.Context, s *store.Store) error {
			records, err := s.List(ctx, store.ListOptions{
				Kind:   model.AnalysisKind(historyKind),
				Limit:  historyLimit,
				Offset: historyOffset,
			})
			if err != nil {
				return err
			}

			w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tKIND\tSUBJECT\tSCORE\tRECOMMENDATION\tCREATED")
			for _, r := range records {
				fmt.Fprintf(w, "%s\t%s\t%s\t%.3f\t%s\t%s\n",
					r.ID, r.Kind, r.Subject, r.Score, r.Recommendation, r.CreatedAt.Local().Format(time.DateTime))
			}
			return w.Flush()
		})
	},
}

var historyShowCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Show one stored analysis",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withStore(func(ctx context.Context, s *store.Store) error {
			a, err := s.Get(ctx, args[0])
			if err != nil {
				return err
			}
			return pipeline.NewRenderer().Write(os.Stdout, a, showFormat)
		})
	},
}

var historyStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Summarize the history",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withStore(func(ctx context.Context, s *store.Store) error {
			stats, err := s.Stats(ctx)
			if err != nil {
				return err
			}
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(stats)
		})
	},
}

var historyPruneCmd = &cobra.Command{
	Use:   "prune",
	Short: "Delete analyses older than --older-than",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if pruneOlder <= 0 {
			return fmt.Errorf("--older-than must be positive")
		}
		return withStore(func(ctx context.Context, s *store.Store) error {
			n, err := s.Delete(ctx, time.Now().Add(-pruneOlder))
			if err != nil {
				return err
			}
			fmt.Fprintf(os.Stderr, "✓ Deleted %d analyses older than %v\n", n, pruneOlder)
			return nil
		})
	},
}

func init() {
	rootCmd.AddCommand(historyCmd)
	historyCmd.AddCommand(historyListCmd, historyShowCmd, historyStatsCmd, historyPruneCmd)

	historyListCmd.Flags().StringVar(&historyKind, "kind", "", "filter by kind (claim, document, image)")
	historyListCmd.Flags().IntVar(&historyLimit, "limit", 20, "maximum rows")
	historyListCmd.Flags().IntVar(&historyOffset, "offset", 0, "rows to skip")
	historyShowCmd.Flags().StringVarP(&showFormat, "format", "f", "json", "output format (json, md, summary)")
	historyPruneCmd.Flags().DurationVar(&pruneOlder, "older-than", 90*24*time.Hour, "age threshold")
}

// withStore opens the configured history database for fn
func withStore(fn func(ctx context.Context, s *store.Store) error) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if _, err := os.Stat(cfg.Store.Path); err != nil {
		return fmt.Errorf("no history database at %s: %w", cfg.Store.Path, err)
	}

	s, err := store.Open(cfg.Store.Path)
	if err != nil {
		return err
	}
	defer func() { _ = s.Close() }()

	return fn(context.Background(), s)
}
