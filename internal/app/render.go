package app

import (
	"fmt"
	"math"
	"strconv"
	"time"

	"github.com/LMJ-01/stylemate/internal/domain"
	"github.com/dustin/go-humanize"
)

// Percentages splits 100 between a and b. The pair always sums to 100,
// or is 0/0 when nobody voted.
func Percentages(a, b int) (int, int) {
	sum := float64(a) + float64(b)
	if sum <= 0 {
		return 0, 0
	}
	pctA := int(math.Round(float64(a) * 100 / sum))
	return pctA, 100 - pctA
}

// RenderTallies writes counts, total and bar widths into v. Without
// visibility every number is replaced by the masked placeholder.
func (l Labels) RenderTallies(v *domain.BoxView, a, b int, visible bool) {
	if !visible {
		l.mask(v)
		return
	}

	pctA, pctB := Percentages(a, b)
	v.Revealed = true
	v.CountA = strconv.Itoa(a)
	v.CountB = strconv.Itoa(b)
	v.Total = fmt.Sprintf(l.TotalFormat, humanize.Comma(int64(a)+int64(b)))
	v.BarA = clampPercent(pctA)
	v.BarB = clampPercent(pctB)
}

func (l Labels) mask(v *domain.BoxView) {
	v.Revealed = false
	v.CountA = l.Masked
	v.CountB = l.Masked
	v.Total = fmt.Sprintf(l.TotalFormat, l.Masked)
	v.BarA = 0
	v.BarB = 0
}

func clampPercent(n int) int {
	return max(0, min(100, n))
}

// formatRemaining renders d as HH:MM:SS. Hours are not capped at 24.
func formatRemaining(d time.Duration) string {
	if d <= 0 {
		return "00:00:00"
	}
	s := int64(d / time.Second)
	return fmt.Sprintf("%02d:%02d:%02d", s/3600, (s%3600)/60, s%60)
}
