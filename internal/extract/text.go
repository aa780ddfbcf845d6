package extract

import (
	"strings"
	"unicode"

	"golang.org/x/net/html"
)

// LexicalStats are the counts and ratios computed over raw text
type LexicalStats struct {
	Chars            int     `json:"chars"`
	Words            int     `json:"words"`
	UniqueWords      int     `json:"unique_words"`
	Sentences        int     `json:"sentences"`
	UppercaseRatio   float64 `json:"uppercase_ratio"`
	PunctuationRatio float64 `json:"punctuation_ratio"`
	Repetition       float64 `json:"repetition_ratio"`
}

// Lexical computes character, word and sentence statistics.
// punctuation lists the characters counted towards PunctuationRatio.
func Lexical(text, punctuation string) LexicalStats {
	chars := len([]rune(text))
	words := strings.Fields(text)

	var upper, punct int
	for _, r := range text {
		if unicode.IsUpper(r) {
			upper++
		}
		if strings.ContainsRune(punctuation, r) {
			punct++
		}
	}

	stats := LexicalStats{
		Chars:            chars,
		Words:            len(words),
		Sentences:        SentenceCount(text),
		UppercaseRatio:   float64(upper) / float64(max(chars, 1)),
		PunctuationRatio: float64(punct) / float64(max(chars, 1)),
	}
	stats.UniqueWords, stats.Repetition = Repetition(words)
	return stats
}

// SentenceCount is the number of '.'-separated parts, so text without a
// full stop counts as one sentence.
func SentenceCount(text string) int {
	return len(strings.Split(text, "."))
}

// Repetition returns the unique word count and 1 - unique/total over
// lowercased words. Empty input has no repetition.
func Repetition(words []string) (int, float64) {
	if len(words) == 0 {
		return 0, 0
	}
	seen := make(map[string]struct{}, len(words))
	for _, w := range words {
		seen[strings.ToLower(w)] = struct{}{}
	}
	return len(seen), 1 - float64(len(seen))/float64(len(words))
}

// KeywordHits counts non-overlapping occurrences of each term in lowered
// text. It returns the total and the distinct terms found, in term order.
func KeywordHits(lower string, terms []string) (int, []string) {
	total := 0
	var found []string
	for _, term := range terms {
		if term == "" {
			continue
		}
		if n := strings.Count(lower, term); n > 0 {
			total += n
			found = append(found, term)
		}
	}
	return total, found
}

// ContainsAny reports whether lowered text contains any of the terms
func ContainsAny(lower string, terms []string) bool {
	for _, t := range terms {
		if strings.Contains(lower, t) {
			return true
		}
	}
	return false
}

// LongestRun returns the length of the longest run of one repeated rune
func LongestRun(text string) int {
	longest, run := 0, 0
	var prev rune = -1
	for _, r := range text {
		if r == prev {
			run++
		} else {
			run = 1
			prev = r
		}
		if run > longest {
			longest = run
		}
	}
	return longest
}

// SpecialCharCount counts runes that are neither letters, digits nor space
func SpecialCharCount(text string) int {
	n := 0
	for _, r := range text {
		if !unicode.IsLetter(r) && !unicode.IsDigit(r) && !unicode.IsSpace(r) {
			n++
		}
	}
	return n
}

// VisibleText extracts text nodes from an HTML document, skipping scripts and styles.
// Block elements end a line so the result keeps the document's row structure.
func VisibleText(n *html.Node) string {
	var buf strings.Builder

	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			switch n.Data {
			case "script", "style", "noscript", "iframe", "head":
				return
			}
		}

		if n.Type == html.TextNode {
			text := strings.TrimSpace(n.Data)
			if text != "" {
				buf.WriteString(text)
				buf.WriteString(" ")
			}
		}

		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}

		if n.Type == html.ElementNode {
			switch n.Data {
			case "p", "div", "tr", "li", "br", "h1", "h2", "h3", "h4", "table":
				trimTrailingSpace(&buf)
				buf.WriteString("\n")
			}
		}
	}

	walk(n)
	return strings.TrimSpace(collapseBlankLines(buf.String()))
}

func trimTrailingSpace(b *strings.Builder) {
	s := b.String()
	trimmed := strings.TrimRight(s, " ")
	if len(trimmed) != len(s) {
		b.Reset()
		b.WriteString(trimmed)
	}
}

func collapseBlankLines(s string) string {
	lines := strings.Split(s, "\n")
	out := lines[:0]
	for _, l := range lines {
		if strings.TrimSpace(l) != "" {
			out = append(out, l)
		}
	}
	return strings.Join(out, "\n")
}
