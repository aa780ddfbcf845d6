package extract

import (
	"regexp"
	"testing"
	"time"
)

func TestParseDate(t *testing.T) {
	tests := []struct {
		in      string
		want    Date
		wantErr bool
	}{
		{"03/14/2024", Date{Raw: "03/14/2024", Year: 2024, Month: 3, Day: 14}, false},
		{"3-4-2023", Date{Raw: "3-4-2023", Year: 2023, Month: 3, Day: 4}, false},
		{"2022-12-01", Date{Raw: "2022-12-01", Year: 2022, Month: 12, Day: 1}, false},
		{"2022/12", Date{}, true},
		{"aa/bb/cccc", Date{}, true},
	}

	for _, tt := range tests {
		got, err := ParseDate(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseDate(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			continue
		}
		if !tt.wantErr && got != tt.want {
			t.Errorf("ParseDate(%q) = %+v, want %+v", tt.in, got, tt.want)
		}
	}
}

func TestDate_Time(t *testing.T) {
	d := Date{Raw: "02/29/2024", Year: 2024, Month: 2, Day: 29}
	if _, err := d.Time(); err != nil {
		t.Errorf("Leap day should be valid: %v", err)
	}

	for _, bad := range []Date{
		{Raw: "02/30/2024", Year: 2024, Month: 2, Day: 30},
		{Raw: "13/01/2024", Year: 2024, Month: 13, Day: 1},
		{Raw: "00/10/2024", Year: 2024, Month: 0, Day: 10},
	} {
		if _, err := bad.Time(); err == nil {
			t.Errorf("Expected error for %s", bad.Raw)
		}
	}
}

func TestFindDates(t *testing.T) {
	patterns := []*regexp.Regexp{
		regexp.MustCompile(`\d{1,2}/\d{1,2}/\d{4}`),
		regexp.MustCompile(`\d{4}-\d{1,2}-\d{1,2}`),
	}

	got := FindDates("Seen 05/02/2024, again 05/02/2024 and on 2024-01-09", patterns)
	want := []string{"05/02/2024", "2024-01-09"}
	if len(got) != len(want) {
		t.Fatalf("FindDates = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("FindDates[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestSpan(t *testing.T) {
	span, ok, err := Span([]string{"01/10/2023", "02/14/2024"})
	if err != nil || !ok {
		t.Fatalf("Span failed: ok=%v err=%v", ok, err)
	}
	if span != 400*24*time.Hour {
		t.Errorf("Expected 400 days, got %v", span)
	}

	span, ok, err = Span([]string{"13/45/2020", "01/01/2020", "01/31/2020"})
	if err == nil {
		t.Error("Expected an error for the impossible date")
	}
	if !ok || span != Days(30) {
		t.Errorf("Expected span over the valid dates, got %v ok=%v", span, ok)
	}

	if _, ok, _ := Span([]string{"01/01/2020"}); ok {
		t.Error("A single date has no span")
	}
}
