package provider

import (
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
)

// SparklinePoints is the fixed length of a normalized sparkline.
const SparklinePoints = 30

// NormalizeSparkline resizes a close-price series (oldest first) to exactly
// n points. Short series are padded by repeating the earliest known value;
// long series are down-sampled by fixed-stride selection, keeping the last
// point so the newest close always survives.
func NormalizeSparkline(series []float64, n int) []float64 {
	if n <= 0 {
		n = SparklinePoints
	}
	out := make([]float64, 0, n)
	switch {
	case len(series) == 0:
		for i := 0; i < n; i++ {
			out = append(out, 0)
		}
	case len(series) < n:
		for i := len(series); i < n; i++ {
			out = append(out, series[0])
		}
		out = append(out, series...)
	case len(series) > n:
		stride := float64(len(series)-1) / float64(n-1)
		for i := 0; i < n-1; i++ {
			out = append(out, series[int(float64(i)*stride)])
		}
		out = append(out, series[len(series)-1])
	default:
		out = append(out, series...)
	}
	return out
}

// Derive computes change and changePercent from current and previousClose.
// Uses decimal arithmetic so a 100.50/99.00 quote yields exactly 1.50 rather
// than a float artifact. changePercent is 0 when previousClose is not > 0.
func Derive(current, previousClose float64) (change, changePercent float64) {
	cur := decimal.NewFromFloat(current)
	prev := decimal.NewFromFloat(previousClose)
	change, _ = cur.Sub(prev).Float64()
	if previousClose > 0 {
		changePercent, _ = cur.Sub(prev).Div(prev).Mul(decimal.NewFromInt(100)).Float64()
	}
	return change, changePercent
}

// Sanitize floors negative price and volume fields at zero. Upstreams
// occasionally send sentinel negatives for halted or delisted symbols;
// downstream consumers rely on prices being non-negative.
func (s *Snapshot) Sanitize() *Snapshot {
	for _, f := range []*float64{&s.Current, &s.Open, &s.High, &s.Low, &s.PreviousClose, &s.MarketCap} {
		if *f < 0 {
			*f = 0
		}
	}
	if s.Volume < 0 {
		s.Volume = 0
	}
	return s
}

// ParseFloat tolerantly parses an upstream numeric field. Missing or
// garbled values coerce to 0; only a wholly-missing quote is an error,
// and that decision belongs to the caller.
func ParseFloat(s string) float64 {
	s = strings.TrimSpace(strings.ReplaceAll(s, ",", ""))
	if s == "" || s == "-" || strings.EqualFold(s, "none") || strings.EqualFold(s, "null") {
		return 0
	}
	s = strings.TrimSuffix(s, "%")
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0
	}
	return f
}

// ParseInt is ParseFloat for integer fields (volume and the like).
func ParseInt(s string) int64 {
	return int64(ParseFloat(s))
}
