package provider

import (
	"math"
	"testing"
)

func TestNormalizeSparkline_ShortSeriesPadsWithEarliest(t *testing.T) {
	in := []float64{10, 11, 12}
	out := NormalizeSparkline(in, 30)
	if len(out) != 30 {
		t.Fatalf("want 30 points, got %d", len(out))
	}
	for i := 0; i < 27; i++ {
		if out[i] != 10 {
			t.Fatalf("pad[%d]=%v, want earliest value 10", i, out[i])
		}
	}
	if out[27] != 10 || out[28] != 11 || out[29] != 12 {
		t.Fatalf("tail should be the original series, got %v", out[27:])
	}
}

func TestNormalizeSparkline_LongSeriesDownsamplesKeepingNewest(t *testing.T) {
	in := make([]float64, 90)
	for i := range in {
		in[i] = float64(i)
	}
	out := NormalizeSparkline(in, 30)
	if len(out) != 30 {
		t.Fatalf("want 30 points, got %d", len(out))
	}
	if out[0] != 0 {
		t.Fatalf("oldest point dropped: %v", out[0])
	}
	if out[29] != 89 {
		t.Fatalf("newest close must survive, got %v", out[29])
	}
	for i := 1; i < 30; i++ {
		if out[i] <= out[i-1] {
			t.Fatalf("downsample not order-preserving at %d: %v", i, out[i-1:i+1])
		}
	}
}

func TestNormalizeSparkline_ExactAndEmpty(t *testing.T) {
	in := make([]float64, 30)
	for i := range in {
		in[i] = float64(i) * 1.5
	}
	out := NormalizeSparkline(in, 30)
	if len(out) != 30 {
		t.Fatalf("want 30, got %d", len(out))
	}
	for i := range in {
		if out[i] != in[i] {
			t.Fatalf("exact-length series must pass through, idx %d", i)
		}
	}

	empty := NormalizeSparkline(nil, 30)
	if len(empty) != 30 {
		t.Fatalf("empty series must still yield 30 points, got %d", len(empty))
	}
}

func TestDerive_ExactChange(t *testing.T) {
	change, pct := Derive(100.50, 99.00)
	if change != 1.50 {
		t.Fatalf("change=%v, want 1.50", change)
	}
	if math.Abs(pct-1.5151515151515151) > 1e-9 {
		t.Fatalf("changePercent=%v, want ~1.515", pct)
	}
}

func TestDerive_ZeroPreviousClose(t *testing.T) {
	change, pct := Derive(10, 0)
	if change != 10 || pct != 0 {
		t.Fatalf("got change=%v pct=%v, want 10 and 0", change, pct)
	}
}

func TestParseFloat_Tolerant(t *testing.T) {
	cases := map[string]float64{
		"100.50":  100.50,
		"1,234.5": 1234.5,
		"  42 ":   42,
		"1.515%":  1.515,
		"":        0,
		"-":       0,
		"None":    0,
		"garbage": 0,
		"-12.5":   -12.5,
	}
	for in, want := range cases {
		if got := ParseFloat(in); got != want {
			t.Fatalf("ParseFloat(%q)=%v, want %v", in, got, want)
		}
	}
}

func TestSnapshotClone_IndependentSparkline(t *testing.T) {
	s := &Snapshot{Symbol: "AAPL", Sparkline: []float64{1, 2, 3}}
	c := s.Clone()
	c.Sparkline[0] = 99
	c.Provider = "x-stale"
	if s.Sparkline[0] != 1 || s.Provider != "" {
		t.Fatalf("clone mutated the original: %+v", s)
	}
}

func TestSanitize_FloorsNegatives(t *testing.T) {
	s := &Snapshot{Current: -1, Open: 10, High: -0.5, Low: 9, PreviousClose: -3, Volume: -100, Change: -2.5}
	s.Sanitize()
	if s.Current != 0 || s.High != 0 || s.PreviousClose != 0 || s.Volume != 0 {
		t.Fatalf("negative fields not floored: %+v", s)
	}
	if s.Open != 10 || s.Low != 9 {
		t.Fatalf("valid fields changed: %+v", s)
	}
	// change may legitimately be negative
	if s.Change != -2.5 {
		t.Fatalf("change should be untouched, got %v", s.Change)
	}
}
