package worker

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/ppiankov/claimlens/internal/model"
)

// Analyzer runs the scoring engines for one evidence item
type Analyzer interface {
	AnalyzeClaim(ctx context.Context, req model.ClaimRequest) (*model.Analysis, error)
	ValidateDocument(ctx context.Context, doc model.Document) (*model.Analysis, error)
	AnalyzeImage(ctx context.Context, img model.Image) (*model.Analysis, error)
}

// Loader reads document and image bytes from a file path or URL
type Loader interface {
	Load(ctx context.Context, source string) ([]byte, error)
}

// Item is one line of a batch manifest
type Item struct {
	Kind model.AnalysisKind `json:"kind"`
	ID   string             `json:"id,omitempty"`

	// claim fields
	Category    model.Category `json:"category,omitempty"`
	Description string         `json:"description,omitempty"`
	Amount      float64        `json:"amount,omitempty"`

	// document and image fields
	Source       string `json:"source,omitempty"` // file path or URL
	DocumentType string `json:"document_type,omitempty"`
	Text         string `json:"text,omitempty"`
	AnalysisType string `json:"analysis_type,omitempty"`

	Line int `json:"-"`
}

// ItemJob analyzes one manifest item
type ItemJob struct {
	Index    int
	Item     Item
	Analyzer Analyzer
	Loader   Loader
	Timeout  time.Duration
}

// Execute executes the item job
func (j *ItemJob) Execute(ctx context.Context) Result {
	if j.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, j.Timeout)
		defer cancel()
	}

	analysis, err := j.run(ctx)
	return &ItemResult{
		Index:    j.Index,
		Item:     j.Item,
		Analysis: analysis,
		Error:    err,
	}
}

func (j *ItemJob) run(ctx context.Context) (*model.Analysis, error) {
	it := j.Item
	switch it.Kind {
	case model.KindClaim:
		return j.Analyzer.AnalyzeClaim(ctx, model.ClaimRequest{
			ClaimID:     it.ID,
			Category:    it.Category,
			Description: it.Description,
			Amount:      it.Amount,
		})

	case model.KindDocument:
		content, err := j.Loader.Load(ctx, it.Source)
		if err != nil {
			return nil, fmt.Errorf("load %s: %w", it.Source, err)
		}
		return j.Analyzer.ValidateDocument(ctx, model.Document{
			Content:  content,
			Filename: filepath.Base(it.Source),
			Type:     model.ParseDocumentType(it.DocumentType),
			Text:     it.Text,
		})

	case model.KindImage:
		content, err := j.Loader.Load(ctx, it.Source)
		if err != nil {
			return nil, fmt.Errorf("load %s: %w", it.Source, err)
		}
		return j.Analyzer.AnalyzeImage(ctx, model.Image{
			Content:      content,
			Filename:     filepath.Base(it.Source),
			AnalysisType: model.ParseAnalysisType(it.AnalysisType),
		})

	default:
		return nil, fmt.Errorf("unknown item kind %q", it.Kind)
	}
}

// ItemResult represents the result of an item job
type ItemResult struct {
	Index    int
	Item     Item
	Analysis *model.Analysis
	Error    error
}

// GetError returns the error from the item result
func (r *ItemResult) GetError() error {
	return r.Error
}

// BatchProcessor processes manifest items concurrently
type BatchProcessor struct {
	analyzer    Analyzer
	loader      Loader
	concurrency int
	timeout     time.Duration
	progress    func(done, total int, r *ItemResult)
}

// NewBatchProcessor creates a new batch processor. timeout bounds each item; zero means none.
func NewBatchProcessor(analyzer Analyzer, loader Loader, concurrency int, timeout time.Duration) *BatchProcessor {
	return &BatchProcessor{
		analyzer:    analyzer,
		loader:      loader,
		concurrency: concurrency,
		timeout:     timeout,
	}
}

// OnProgress registers fn to be called as each item finishes
func (b *BatchProcessor) OnProgress(fn func(done, total int, r *ItemResult)) {
	b.progress = fn
}

// ProcessItems processes items concurrently. Results keep manifest order, and
// every item gets a result: items never run because ctx ended carry its error.
func (b *BatchProcessor) ProcessItems(ctx context.Context, items []Item) []*ItemResult {
	if len(items) == 0 {
		return []*ItemResult{}
	}

	pool := NewPool(ctx, b.concurrency)
	if b.progress != nil {
		pool.OnResult(func(done int, r Result) {
			b.progress(done, len(items), toItemResult(r))
		})
	}
	pool.Start()

	for i, item := range items {
		pool.Submit(&ItemJob{
			Index:    i,
			Item:     item,
			Analyzer: b.analyzer,
			Loader:   b.loader,
			Timeout:  b.timeout,
		})
	}

	itemResults := make([]*ItemResult, len(items))
	for _, result := range pool.Wait() {
		if r := toItemResult(result); r != nil {
			itemResults[r.Index] = r
		}
	}

	for i, r := range itemResults {
		if r != nil {
			continue
		}
		err := ctx.Err()
		if err == nil {
			err = errors.New("item was not processed")
		}
		itemResults[i] = &ItemResult{Index: i, Item: items[i], Error: err}
	}

	return itemResults
}

// toItemResult maps pool results back to items; panics keep their job's index
func toItemResult(r Result) *ItemResult {
	switch v := r.(type) {
	case *ItemResult:
		return v
	case *PanicResult:
		if job, ok := v.Job.(*ItemJob); ok {
			return &ItemResult{Index: job.Index, Item: job.Item, Error: v.GetError()}
		}
	}
	return nil
}

// ProcessFile reads a manifest and processes it concurrently
func (b *BatchProcessor) ProcessFile(ctx context.Context, filePath string) ([]*ItemResult, error) {
	items, err := ReadManifest(filePath)
	if err != nil {
		return nil, fmt.Errorf("read manifest: %w", err)
	}

	return b.ProcessItems(ctx, items), nil
}

// ReadManifest reads a JSONL manifest file (one item per line)
func ReadManifest(filePath string) ([]Item, error) {
	file, err := os.Open(filePath)
	if err != nil {
		return nil, fmt.Errorf("open file: %w", err)
	}
	defer func() { _ = file.Close() }()

	return ParseManifest(file)
}

// ParseManifest parses JSONL items. Blank lines and # comments are skipped, and
// repeated identical lines are processed once.
func ParseManifest(r io.Reader) ([]Item, error) {
	var items []Item
	seen := make(map[string]bool)

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 4<<20)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())

		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		if seen[line] {
			continue
		}
		seen[line] = true

		var item Item
		if err := json.Unmarshal([]byte(line), &item); err != nil {
			return nil, fmt.Errorf("line %d: %w", lineNo, err)
		}
		item.Line = lineNo
		if err := item.validate(); err != nil {
			return nil, fmt.Errorf("line %d: %w", lineNo, err)
		}
		items = append(items, item)
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scan file: %w", err)
	}

	return items, nil
}

func (it Item) validate() error {
	switch it.Kind {
	case model.KindClaim:
		if strings.TrimSpace(it.Description) == "" {
			return fmt.Errorf("claim item needs a description")
		}
	case model.KindDocument, model.KindImage:
		if it.Source == "" {
			return fmt.Errorf("%s item needs a source", it.Kind)
		}
	default:
		return fmt.Errorf("unknown kind %q (want claim, document or image)", it.Kind)
	}
	return nil
}

// Summary aggregates a finished batch
type Summary struct {
	Total            int            `json:"total"`
	Succeeded        int            `json:"succeeded"`
	Failed           int            `json:"failed"`
	ByKind           map[string]int `json:"by_kind"`
	ByRecommendation map[string]int `json:"by_recommendation"`
	AverageScore     float64        `json:"average_score"`
}

// Summarize counts outcomes across results
func Summarize(results []*ItemResult) Summary {
	s := Summary{
		Total:            len(results),
		ByKind:           map[string]int{},
		ByRecommendation: map[string]int{},
	}
	var scoreSum float64
	for _, r := range results {
		s.ByKind[string(r.Item.Kind)]++
		if r.Error != nil || r.Analysis == nil {
			s.Failed++
			continue
		}
		s.Succeeded++
		s.ByRecommendation[string(r.Analysis.Summary.Recommendation)]++
		scoreSum += r.Analysis.Summary.Score
	}
	if s.Succeeded > 0 {
		s.AverageScore = scoreSum / float64(s.Succeeded)
	}
	return s
}

type resultLine struct {
	Line     int             `json:"line"`
	Kind     string          `json:"kind"`
	ID       string          `json:"id,omitempty"`
	Source   string          `json:"source,omitempty"`
	Analysis *model.Analysis `json:"analysis,omitempty"`
	Error    string          `json:"error,omitempty"`
}

// WriteJSONL writes one JSON object per result followed by a summary line
func WriteJSONL(w io.Writer, results []*ItemResult) error {
	enc := json.NewEncoder(w)
	for _, r := range results {
		line := resultLine{
			Line:     r.Item.Line,
			Kind:     string(r.Item.Kind),
			ID:       r.Item.ID,
			Source:   r.Item.Source,
			Analysis: r.Analysis,
		}
		if r.Error != nil {
			line.Error = r.Error.Error()
		}
		if err := enc.Encode(line); err != nil {
			return fmt.Errorf("write result: %w", err)
		}
	}
	summary := struct {
		Summary Summary `json:"summary"`
	}{Summarize(results)}
	if err := enc.Encode(summary); err != nil {
		return fmt.Errorf("write summary: %w", err)
	}
	return nil
}
