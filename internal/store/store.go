// Package store keeps a history of finished analyses in SQLite.
package store

import (
	"context"
	"database/sql"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/ppiankov/claimlens/internal/model"
	_ "modernc.org/sqlite"
)

//go:embed schema.sql
var schema string

// ErrNotFound is returned when no analysis has the requested id
var ErrNotFound = errors.New("analysis not found")

// Store is the analysis history database
type Store struct {
	db *sql.DB
}

// Record is the indexed summary of one stored analysis
type Record struct {
	ID             string               `json:"id"`
	Kind           model.AnalysisKind   `json:"kind"`
	Subject        string               `json:"subject"`
	Score          float64              `json:"score"`
	Confidence     float64              `json:"confidence"`
	Recommendation model.Recommendation `json:"recommendation"`
	CreatedAt      time.Time            `json:"created_at"`
}

// ListOptions filters List. Zero values mean no filter and a limit of 50.
type ListOptions struct {
	Kind   model.AnalysisKind
	Limit  int
	Offset int
}

// Stats aggregates the whole history
type Stats struct {
	Total            int                  `json:"total"`
	ByKind           map[string]KindStats `json:"by_kind"`
	ByRecommendation map[string]int       `json:"by_recommendation"`
	Since            *time.Time           `json:"since,omitempty"`
}

// KindStats aggregates one analysis kind
type KindStats struct {
	Count        int     `json:"count"`
	AverageScore float64 `json:"average_score"`
}

// Open opens (creating if needed) the database at path and applies the schema
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	// pragmas are per connection; one connection keeps them in force
	db.SetMaxOpenConns(1)

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA busy_timeout=5000",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("set pragma %q: %w", pragma, err)
		}
	}

	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}

	return &Store{db: db}, nil
}

// Close closes the database connection
func (s *Store) Close() error {
	return s.db.Close()
}

// Save inserts or replaces an analysis
func (s *Store) Save(ctx context.Context, a *model.Analysis) error {
	if a == nil || a.ID == "" {
		return fmt.Errorf("save analysis: missing id")
	}
	data, err := json.Marshal(a)
	if err != nil {
		return fmt.Errorf("marshal analysis: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO analyses
			(id, kind, subject, score, confidence, recommendation, created_at, report_json)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		a.ID, string(a.Kind), a.Subject, a.Summary.Score, a.Summary.Confidence,
		string(a.Summary.Recommendation), a.CreatedAt.UTC().UnixMilli(), string(data))
	if err != nil {
		return fmt.Errorf("save analysis %s: %w", a.ID, err)
	}
	return nil
}

// Get returns the full stored analysis
func (s *Store) Get(ctx context.Context, id string) (*model.Analysis, error) {
	var data string
	err := s.db.QueryRowContext(ctx, `SELECT report_json FROM analyses WHERE id = ?`, id).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("get analysis: %w", err)
	}

	var a model.Analysis
	if err := json.Unmarshal([]byte(data), &a); err != nil {
		return nil, fmt.Errorf("unmarshal analysis: %w", err)
	}
	return &a, nil
}

// List returns record summaries, newest first
func (s *Store) List(ctx context.Context, opts ListOptions) ([]Record, error) {
	limit := opts.Limit
	if limit <= 0 {
		limit = 50
	}

	query := `SELECT id, kind, subject, score, confidence, recommendation, created_at FROM analyses`
	args := []any{}
	if opts.Kind != "" {
		query += ` WHERE kind = ?`
		args = append(args, string(opts.Kind))
	}
	query += ` ORDER BY created_at DESC, id LIMIT ? OFFSET ?`
	args = append(args, limit, max(0, opts.Offset))

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list analyses: %w", err)
	}
	defer func() { _ = rows.Close() }()

	records := make([]Record, 0)
	for rows.Next() {
		var (
			r       Record
			kind    string
			rec     string
			created int64
		)
		if err := rows.Scan(&r.ID, &kind, &r.Subject, &r.Score, &r.Confidence, &rec, &created); err != nil {
			return nil, fmt.Errorf("scan analysis: %w", err)
		}
		r.Kind = model.AnalysisKind(kind)
		r.Recommendation = model.Recommendation(rec)
		r.CreatedAt = time.UnixMilli(created).UTC()
		records = append(records, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list analyses: %w", err)
	}
	return records, nil
}

// Stats returns totals by kind with average score, and counts per recommendation
func (s *Store) Stats(ctx context.Context) (Stats, error) {
	st := Stats{
		ByKind:           map[string]KindStats{},
		ByRecommendation: map[string]int{},
	}

	rows, err := s.db.QueryContext(ctx, `SELECT kind, COUNT(*), AVG(score) FROM analyses GROUP BY kind`)
	if err != nil {
		return st, fmt.Errorf("stats by kind: %w", err)
	}
	for rows.Next() {
		var kind string
		var ks KindStats
		if err := rows.Scan(&kind, &ks.Count, &ks.AverageScore); err != nil {
			_ = rows.Close()
			return st, fmt.Errorf("scan kind stats: %w", err)
		}
		st.ByKind[kind] = ks
		st.Total += ks.Count
	}
	_ = rows.Close()
	if err := rows.Err(); err != nil {
		return st, fmt.Errorf("stats by kind: %w", err)
	}

	rows, err = s.db.QueryContext(ctx, `SELECT recommendation, COUNT(*) FROM analyses GROUP BY recommendation`)
	if err != nil {
		return st, fmt.Errorf("stats by recommendation: %w", err)
	}
	for rows.Next() {
		var rec string
		var n int
		if err := rows.Scan(&rec, &n); err != nil {
			_ = rows.Close()
			return st, fmt.Errorf("scan recommendation stats: %w", err)
		}
		st.ByRecommendation[rec] = n
	}
	_ = rows.Close()
	if err := rows.Err(); err != nil {
		return st, fmt.Errorf("stats by recommendation: %w", err)
	}

	if st.Total > 0 {
		var first int64
		if err := s.db.QueryRowContext(ctx, `SELECT MIN(created_at) FROM analyses`).Scan(&first); err != nil {
			return st, fmt.Errorf("stats since: %w", err)
		}
		since := time.UnixMilli(first).UTC()
		st.Since = &since
	}
	return st, nil
}

// Delete removes analyses older than the cutoff and reports how many were removed
func (s *Store) Delete(ctx context.Context, olderThan time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM analyses WHERE created_at < ?`, olderThan.UTC().UnixMilli())
	if err != nil {
		return 0, fmt.Errorf("prune analyses: %w", err)
	}
	return res.RowsAffected()
}
