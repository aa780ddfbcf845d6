package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/ppiankov/claimlens/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "history.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func analysis(id string, kind model.AnalysisKind, score float64, rec model.Recommendation, at time.Time) *model.Analysis {
	return &model.Analysis{
		ID:        id,
		Kind:      kind,
		Subject:   "subject-" + id,
		CreatedAt: at,
		Summary: model.ScoreReport{
			Score:          score,
			Confidence:     0.9,
			Issues:         []string{"issue"},
			Recommendation: rec,
		},
	}
}

func TestStore_SaveGet(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	a := analysis("a1", model.KindClaim, 0.72, model.RecommendHighRiskReject, now)
	a.Claim = &model.FraudReport{FraudScore: 0.72, Category: model.CategoryHealth}
	require.NoError(t, s.Save(ctx, a))

	got, err := s.Get(ctx, "a1")
	require.NoError(t, err)
	assert.Equal(t, "a1", got.ID)
	assert.Equal(t, model.KindClaim, got.Kind)
	assert.True(t, got.CreatedAt.Equal(now))
	require.NotNil(t, got.Claim)
	assert.Equal(t, model.CategoryHealth, got.Claim.Category)

	// replace keeps a single row
	a.Summary.Score = 0.5
	require.NoError(t, s.Save(ctx, a))
	records, err := s.List(ctx, ListOptions{})
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.InDelta(t, 0.5, records[0].Score, 1e-9)
}

func TestStore_GetMissing(t *testing.T) {
	s := openTestStore(t)

	_, err := s.Get(context.Background(), "nope")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestStore_SaveRequiresID(t *testing.T) {
	s := openTestStore(t)

	assert.Error(t, s.Save(context.Background(), &model.Analysis{}))
	assert.Error(t, s.Save(context.Background(), nil))
}

func TestStore_List(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	base := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)

	require.NoError(t, s.Save(ctx, analysis("c1", model.KindClaim, 0.2, model.RecommendLowRiskApprove, base)))
	require.NoError(t, s.Save(ctx, analysis("d1", model.KindDocument, 0.9, model.RecommendStandardReview, base.Add(time.Minute))))
	require.NoError(t, s.Save(ctx, analysis("c2", model.KindClaim, 0.8, model.RecommendHighRiskReject, base.Add(2*time.Minute))))

	all, err := s.List(ctx, ListOptions{})
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, []string{"c2", "d1", "c1"}, []string{all[0].ID, all[1].ID, all[2].ID})
	assert.Equal(t, model.RecommendHighRiskReject, all[0].Recommendation)
	assert.True(t, all[2].CreatedAt.Equal(base))

	claims, err := s.List(ctx, ListOptions{Kind: model.KindClaim, Limit: 1})
	require.NoError(t, err)
	require.Len(t, claims, 1)
	assert.Equal(t, "c2", claims[0].ID)

	page, err := s.List(ctx, ListOptions{Kind: model.KindClaim, Limit: 1, Offset: 1})
	require.NoError(t, err)
	require.Len(t, page, 1)
	assert.Equal(t, "c1", page[0].ID)
}

func TestStore_Stats(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	empty, err := s.Stats(ctx)
	require.NoError(t, err)
	assert.Zero(t, empty.Total)
	assert.Nil(t, empty.Since)

	base := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	require.NoError(t, s.Save(ctx, analysis("c1", model.KindClaim, 0.2, model.RecommendLowRiskApprove, base)))
	require.NoError(t, s.Save(ctx, analysis("c2", model.KindClaim, 0.8, model.RecommendHighRiskReject, base.Add(time.Hour))))
	require.NoError(t, s.Save(ctx, analysis("i1", model.KindImage, 0.6, model.RecommendStandardReview, base.Add(2*time.Hour))))

	st, err := s.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, st.Total)
	assert.Equal(t, 2, st.ByKind["claim"].Count)
	assert.InDelta(t, 0.5, st.ByKind["claim"].AverageScore, 1e-9)
	assert.Equal(t, 1, st.ByKind["image"].Count)
	assert.Equal(t, 1, st.ByRecommendation["high_risk_reject"])
	assert.Equal(t, 1, st.ByRecommendation["low_risk_approve"])
	require.NotNil(t, st.Since)
	assert.True(t, st.Since.Equal(base))
}

func TestStore_Delete(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	base := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)

	require.NoError(t, s.Save(ctx, analysis("old", model.KindClaim, 0.2, model.RecommendLowRiskApprove, base)))
	require.NoError(t, s.Save(ctx, analysis("new", model.KindClaim, 0.2, model.RecommendLowRiskApprove, base.Add(48*time.Hour))))

	n, err := s.Delete(ctx, base.Add(24*time.Hour))
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)

	_, err = s.Get(ctx, "old")
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = s.Get(ctx, "new")
	assert.NoError(t, err)
}
