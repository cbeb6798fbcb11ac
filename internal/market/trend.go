package market

import (
	"iter"
	"math"

	"github.com/capmatch/marketdata/internal/errors"
)

// One square mile in square meters.
const sqMetersPerSqMile = 2589988.110336

// ValidateTrend checks that observed trend years are strictly
// increasing. A violation is a data-integrity failure of the upstream
// payload, not something derivation can patch.
func ValidateTrend(points []TrendPoint) error {
	for i := 1; i < len(points); i++ {
		if points[i].Year <= points[i-1].Year {
			return errors.Newf("trend years not strictly increasing: %d after %d",
				points[i].Year, points[i-1].Year).
				Category(errors.CategoryDataIntegrity).
				Component("market").
				Build()
		}
	}
	return nil
}

// windowStart returns the oldest point usable as the start of a
// growth window ending at the last point, or nil when the available
// history does not cover the window.
func windowStart(points []TrendPoint, windowYears int) *TrendPoint {
	if len(points) < 2 || windowYears < 1 {
		return nil
	}
	last := points[len(points)-1]
	if last.Year-points[0].Year < windowYears {
		return nil
	}
	for i := range points {
		if points[i].Year >= last.Year-windowYears {
			return &points[i]
		}
	}
	return nil
}

// cagrFraction computes compound annual growth over the window as a
// fraction (0.0192 for 1.92%/yr). Nil on any degeneracy: too little
// history, a non-positive start value, or a zero-length period.
func cagrFraction(points []TrendPoint, windowYears int) *float64 {
	start := windowStart(points, windowYears)
	if start == nil || start.Population <= 0 {
		return nil
	}
	last := points[len(points)-1]
	span := last.Year - start.Year
	if span <= 0 {
		return nil
	}
	rate := math.Pow(float64(last.Population)/float64(start.Population), 1/float64(span)) - 1
	return &rate
}

// CAGR returns compound annual growth over the window as a percentage,
// or nil when the inputs are degenerate.
func CAGR(points []TrendPoint, windowYears int) *float64 {
	rate := cagrFraction(points, windowYears)
	if rate == nil {
		return nil
	}
	pct := *rate * 100
	return &pct
}

// YoY returns the percentage change between the last two trend points,
// or nil with fewer than two points or a non-positive base.
func YoY(points []TrendPoint) *float64 {
	if len(points) < 2 {
		return nil
	}
	prev := points[len(points)-2]
	last := points[len(points)-1]
	if prev.Population <= 0 {
		return nil
	}
	pct := (float64(last.Population)/float64(prev.Population) - 1) * 100
	return &pct
}

// AbsoluteChange returns end minus start population over the window,
// or nil when the history does not cover it.
func AbsoluteChange(points []TrendPoint, windowYears int) *int {
	start := windowStart(points, windowYears)
	if start == nil {
		return nil
	}
	diff := points[len(points)-1].Population - start.Population
	return &diff
}

// DensityPerSqMile converts a population total and a land area in
// square meters to people per square mile. Nil when the area is
// missing or not positive.
func DensityPerSqMile(total int, landAreaSqMeters *float64) *float64 {
	if landAreaSqMeters == nil || *landAreaSqMeters <= 0 {
		return nil
	}
	d := float64(total) / (*landAreaSqMeters / sqMetersPerSqMile)
	return &d
}

// DensityChangePercent derives the density change over the window.
// The land area is assumed constant over the window, so the change
// reduces to the population change over the same period.
func DensityChangePercent(points []TrendPoint, windowYears int, landAreaSqMeters *float64) *float64 {
	if landAreaSqMeters == nil || *landAreaSqMeters <= 0 {
		return nil
	}
	start := windowStart(points, windowYears)
	if start == nil || start.Population <= 0 {
		return nil
	}
	last := points[len(points)-1]
	pct := (float64(last.Population)/float64(start.Population) - 1) * 100
	return &pct
}

// Projection returns a restartable lazy sequence of projected
// population points: the window CAGR compounded forward from the last
// observed point for horizon years. Every yielded point carries the
// projection marker and strictly follows the last observed year. The
// sequence is empty when no growth rate can be derived.
func Projection(points []TrendPoint, windowYears, horizon int) iter.Seq[TrendPoint] {
	return func(yield func(TrendPoint) bool) {
		rate := cagrFraction(points, windowYears)
		if rate == nil || horizon < 1 {
			return
		}
		last := points[len(points)-1]
		pop := float64(last.Population)
		for i := 1; i <= horizon; i++ {
			pop *= 1 + *rate
			p := TrendPoint{
				Year:         last.Year + i,
				Population:   int(math.Round(pop)),
				IsProjection: true,
			}
			if !yield(p) {
				return
			}
		}
	}
}
