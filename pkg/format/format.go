// Package format turns raw trade magnitudes into display strings and derives
// the growth metrics shown on story cards.
package format

import (
	"fmt"
	"math"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

var printer = message.NewPrinter(language.English)

// Currency formats a USD magnitude with a B/M/K suffix.
// 5_200_000_000 -> "$5.2B", 450_000 -> "$450.0K", 999 -> "$999".
func Currency(v float64) string {
	sign := ""
	if v < 0 {
		sign = "-"
		v = -v
	}
	switch {
	case v >= 1e9:
		return fmt.Sprintf("%s$%.1fB", sign, v/1e9)
	case v >= 1e6:
		return fmt.Sprintf("%s$%.1fM", sign, v/1e6)
	case v >= 1e3:
		return fmt.Sprintf("%s$%.1fK", sign, v/1e3)
	default:
		return fmt.Sprintf("%s$%d", sign, int64(math.Round(v)))
	}
}

// ExportValue is the three-tier formatter used for record display strings:
// billions and millions get a suffix, anything smaller is printed in full
// with thousands separators.
func ExportValue(v float64) string {
	switch {
	case v >= 1e9:
		return fmt.Sprintf("$%.1fB", v/1e9)
	case v >= 1e6:
		return fmt.Sprintf("$%.1fM", v/1e6)
	default:
		return printer.Sprintf("$%d", int64(math.Round(v)))
	}
}

// Number prints an integer with thousands separators.
func Number(v int64) string {
	return printer.Sprintf("%d", v)
}

// GrowthRate returns round(((current-initial)/initial)*100), or 0 when
// initial is not positive.
func GrowthRate(initial, current float64) int {
	if initial <= 0 {
		return 0
	}
	return int(math.Round((current - initial) / initial * 100))
}

// RankingGain is base-year rank minus current-year rank; positive is better.
func RankingGain(baseRank, currentRank int) int {
	return baseRank - currentRank
}

// AnnualizedGrowth returns the compound annual growth rate in percent,
// rounded to one decimal. Non-positive inputs or years yield 0.
func AnnualizedGrowth(initial, current float64, years int) float64 {
	if initial <= 0 || current <= 0 || years <= 0 {
		return 0
	}
	cagr := (math.Pow(current/initial, 1/float64(years)) - 1) * 100
	return math.Round(cagr*10) / 10
}

// Percent formats a share value such as 2.35 as "2.4%".
func Percent(v float64) string {
	return fmt.Sprintf("%.1f%%", v)
}

// Growth formats a growth rate with an explicit sign, e.g. "+200%".
func Growth(rate int) string {
	if rate > 0 {
		return fmt.Sprintf("+%d%%", rate)
	}
	return fmt.Sprintf("%d%%", rate)
}
