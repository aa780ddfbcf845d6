package extract

import (
	"regexp"
	"testing"
)

var testAmountPattern = regexp.MustCompile(`\$\s?\d[\d,]*(?:\.\d{2})?|\b\d{1,3}(?:,\d{3})+\.\d{2}\b|\b\d+\.\d{2}\b`)

func TestAmounts(t *testing.T) {
	tests := []struct {
		text     string
		expected []float64
	}{
		{"Total: $1,234.56", []float64{1234.56}},
		{"Paid $ 45 and 12.50 later", []float64{45, 12.5}},
		{"Balance 10,000.00 carried", []float64{10000}},
		{"No money here", nil},
	}

	for _, tt := range tests {
		got := Amounts(tt.text, testAmountPattern)
		if len(got) != len(tt.expected) {
			t.Errorf("Amounts(%q) = %v, want %v", tt.text, got, tt.expected)
			continue
		}
		for i := range got {
			if got[i] != tt.expected[i] {
				t.Errorf("Amounts(%q)[%d] = %v, want %v", tt.text, i, got[i], tt.expected[i])
			}
		}
	}
}

func TestAmounts_NilPattern(t *testing.T) {
	if got := Amounts("$5.00", nil); got != nil {
		t.Errorf("Expected nil without a pattern, got %v", got)
	}
}

func TestParseAmount(t *testing.T) {
	tests := []struct {
		in   string
		want float64
		ok   bool
	}{
		{"$1,234.56", 1234.56, true},
		{"1234", 1234, true},
		{"$", 0, false},
		{"...", 0, false},
		{"1.2.3", 0, false},
	}

	for _, tt := range tests {
		got, ok := ParseAmount(tt.in)
		if ok != tt.ok || got != tt.want {
			t.Errorf("ParseAmount(%q) = %v, %v; want %v, %v", tt.in, got, ok, tt.want, tt.ok)
		}
	}
}

func TestMinMax(t *testing.T) {
	lo, hi, ok := MinMax([]float64{3, -1, 7.5, 2})
	if !ok || lo != -1 || hi != 7.5 {
		t.Errorf("MinMax = %v, %v, %v", lo, hi, ok)
	}
	if _, _, ok := MinMax(nil); ok {
		t.Error("Expected ok=false for empty input")
	}
}

func TestHasDuplicates(t *testing.T) {
	if !HasDuplicates([]string{"$5", "$6", "$5"}) {
		t.Error("Expected duplicates")
	}
	if HasDuplicates([]string{"$5", "$6"}) {
		t.Error("Expected no duplicates")
	}
}
