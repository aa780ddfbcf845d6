package score

import (
	"fmt"
	"math"
	"strings"

	"github.com/ppiankov/claimlens/internal/extract"
	"github.com/ppiankov/claimlens/internal/model"
	"github.com/ppiankov/claimlens/internal/rules"
)

// Features builds the typed feature record for one claim narrative
func (s *Scorer) Features(req model.ClaimRequest) model.FraudFeatures {
	text := req.Description
	lower := strings.ToLower(text)

	var f model.FraudFeatures
	s.lexicalFeatures(text, lower, &f)
	s.amountFeatures(text, req.Category, req.Amount, &f)
	s.patternFeatures(text, lower, &f)
	s.consistencyFeatures(lower, req.Category, &f)

	if req.LearnedAnomalyScore != nil {
		v := clamp01(*req.LearnedAnomalyScore)
		f.LearnedAnomalyScore = &v
	}
	return f
}

func (s *Scorer) lexicalFeatures(text, lower string, f *model.FraudFeatures) {
	stats := extract.Lexical(text, s.rules.Punctuation)
	f.CharCount = stats.Chars
	f.WordCount = stats.Words
	f.SentenceCount = stats.Sentences
	f.UppercaseRatio = stats.UppercaseRatio
	f.PunctuationRatio = stats.PunctuationRatio
	f.WordRepetition = stats.Repetition

	// Every occurrence counts, so repeating a keyword never lowers the ratio
	f.KeywordCount, f.DetectedKeywords = extract.KeywordHits(lower, s.rules.Keywords)
	f.KeywordRatio = float64(f.KeywordCount) / float64(max(f.WordCount, 1))
}

func (s *Scorer) amountFeatures(text string, category model.Category, claimed float64, f *model.FraudFeatures) {
	f.ExtractedAmounts = extract.Amounts(text, s.rules.AmountPattern.Regexp)

	if _, hi, ok := extract.MinMax(f.ExtractedAmounts); ok {
		f.MaxExtractedAmount = hi
		f.AmountConsistency = math.Abs(hi-claimed) / math.Max(claimed, 1)

		round := 0
		for _, amt := range f.ExtractedAmounts {
			if amt > 100 && math.Mod(amt, 100) == 0 {
				round++
			}
		}
		ratio := float64(round) / float64(len(f.ExtractedAmounts))
		f.RoundAmountRatio = &ratio
	} else {
		// Nothing to reconcile the claimed amount against
		f.AmountConsistency = 1.0
	}

	f.AmountAnomalyScore = amountAnomaly(s.rules.AmountBand(category), claimed)
}

// amountAnomaly places the claimed amount in the category band.
// Inside the band the score is the distance from the midpoint, capped at 0.2.
func amountAnomaly(band rules.AmountBand, claimed float64) float64 {
	switch {
	case claimed < band.Low:
		return 0.3
	case claimed >= band.High:
		return 0.8
	}
	position := (claimed - band.Low) / (band.High - band.Low)
	return math.Min(0.2, math.Abs(position-0.5))
}

func (s *Scorer) patternFeatures(text, lower string, f *model.FraudFeatures) {
	var indicators []string

	if round := extract.All(text, s.rules.RoundNumberPattern.Regexp); len(round) > 0 {
		indicators = append(indicators, fmt.Sprintf("Round number amounts: %s", strings.Join(round, ", ")))
	}

	for _, token := range s.rules.MissingInfo {
		if strings.Contains(lower, strings.ToLower(token)) {
			f.MissingInfoCount++
			indicators = append(indicators, "Missing information indicator: "+token)
		}
	}

	if amounts := extract.All(text, s.rules.DuplicateAmountPattern.Regexp); len(amounts) > 1 && extract.HasDuplicates(amounts) {
		indicators = append(indicators, "Duplicate amounts detected")
	}

	if dates := extract.All(text, s.rules.DatePattern.Regexp); len(dates) > 1 {
		span, ok, err := extract.Span(dates)
		switch {
		case err != nil:
			indicators = append(indicators, "Invalid date format detected")
		case ok && span > extract.Days(s.rules.DateSpanDays):
			indicators = append(indicators, "Inconsistent dates detected")
		}
	}

	f.SuspiciousIndicators = indicators
}

func (s *Scorer) consistencyFeatures(lower string, category model.Category, f *model.FraudFeatures) {
	for _, rule := range s.rules.ConsistencyRules(category) {
		if rule.Matches(lower) {
			f.ConsistencyIssues = append(f.ConsistencyIssues, rule.Issue)
		}
	}
	f.ConsistencyScore = math.Max(0, 1-float64(len(f.ConsistencyIssues))*s.rules.ConsistencyPenalty)
}

func clamp01(v float64) float64 {
	if math.IsNaN(v) {
		return 0
	}
	return math.Min(1, math.Max(0, v))
}
