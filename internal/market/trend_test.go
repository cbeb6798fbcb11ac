package market

import (
	"slices"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/capmatch/marketdata/internal/errors"
)

func points(pairs ...[2]int) []TrendPoint {
	out := make([]TrendPoint, 0, len(pairs))
	for _, p := range pairs {
		out = append(out, TrendPoint{Year: p[0], Population: p[1]})
	}
	return out
}

func TestValidateTrend(t *testing.T) {
	t.Parallel()

	assert.NoError(t, ValidateTrend(nil))
	assert.NoError(t, ValidateTrend(points([2]int{2020, 100})))
	assert.NoError(t, ValidateTrend(points([2]int{2019, 90}, [2]int{2021, 100})))

	err := ValidateTrend(points([2]int{2021, 100}, [2]int{2019, 90}))
	require.Error(t, err)
	assert.True(t, errors.IsCategory(err, errors.CategoryDataIntegrity))

	err = ValidateTrend(points([2]int{2020, 100}, [2]int{2020, 100}))
	require.Error(t, err)
	assert.True(t, errors.IsCategory(err, errors.CategoryDataIntegrity))
}

func TestCAGR(t *testing.T) {
	t.Parallel()

	got := CAGR(points([2]int{2018, 1000}, [2]int{2023, 1100}), 5)
	require.NotNil(t, got)
	assert.InDelta(t, 1.92, *got, 0.01)
}

func TestCAGRDegeneracies(t *testing.T) {
	t.Parallel()

	// single point
	assert.Nil(t, CAGR(points([2]int{2023, 1000}), 5))

	// non-positive start
	assert.Nil(t, CAGR(points([2]int{2018, 0}, [2]int{2023, 1100}), 5))

	// window exceeds available history
	assert.Nil(t, CAGR(points([2]int{2021, 1000}, [2]int{2023, 1100}), 5))

	assert.Nil(t, CAGR(nil, 5))
}

func TestCAGRWithGapInSeries(t *testing.T) {
	t.Parallel()

	// 2018 missing: the window start snaps forward to the oldest point
	// inside the window and the exponent shrinks with it
	got := CAGR(points([2]int{2015, 900}, [2]int{2019, 1000}, [2]int{2023, 1100}), 5)
	require.NotNil(t, got)
	assert.InDelta(t, 2.41, *got, 0.01) // (1100/1000)^(1/4)-1
}

func TestYoY(t *testing.T) {
	t.Parallel()

	got := YoY(points([2]int{2022, 1000}, [2]int{2023, 1020}))
	require.NotNil(t, got)
	assert.InDelta(t, 2.0, *got, 0.001)

	assert.Nil(t, YoY(points([2]int{2023, 1000})))
	assert.Nil(t, YoY(points([2]int{2022, 0}, [2]int{2023, 1020})))
}

func TestAbsoluteChange(t *testing.T) {
	t.Parallel()

	got := AbsoluteChange(points([2]int{2018, 1000}, [2]int{2023, 1100}), 5)
	require.NotNil(t, got)
	assert.Equal(t, 100, *got)

	assert.Nil(t, AbsoluteChange(points([2]int{2023, 1100}), 5))
}

func TestDensityPerSqMile(t *testing.T) {
	t.Parallel()

	oneSqMile := sqMetersPerSqMile
	got := DensityPerSqMile(5000, &oneSqMile)
	require.NotNil(t, got)
	assert.InDelta(t, 5000.0, *got, 0.001)

	zero := 0.0
	assert.Nil(t, DensityPerSqMile(5000, &zero))
	assert.Nil(t, DensityPerSqMile(5000, nil))
}

func TestDensityChangePercent(t *testing.T) {
	t.Parallel()

	area := 2 * sqMetersPerSqMile
	got := DensityChangePercent(points([2]int{2018, 1000}, [2]int{2023, 1100}), 5, &area)
	require.NotNil(t, got)
	assert.InDelta(t, 10.0, *got, 0.001)

	assert.Nil(t, DensityChangePercent(points([2]int{2018, 1000}, [2]int{2023, 1100}), 5, nil))
}

func TestProjectionMonotonicity(t *testing.T) {
	t.Parallel()

	hist := points([2]int{2018, 1000}, [2]int{2023, 1100})
	proj := slices.Collect(Projection(hist, 5, 5))
	require.Len(t, proj, 5)

	// years strictly follow the last observed year with no gap
	assert.Equal(t, 2024, proj[0].Year)
	assert.Equal(t, 2028, proj[4].Year)
	for i, p := range proj {
		assert.Equal(t, 2024+i, p.Year)
		assert.True(t, p.IsProjection, "projection point %d must carry the marker", i)
	}

	// compounding forward from the last observed value
	assert.Greater(t, proj[0].Population, 1100)
	assert.Greater(t, proj[4].Population, proj[0].Population)
}

func TestProjectionIsRestartable(t *testing.T) {
	t.Parallel()

	hist := points([2]int{2018, 1000}, [2]int{2023, 1100})
	seq := Projection(hist, 5, 3)

	first := slices.Collect(seq)
	second := slices.Collect(seq)
	assert.Equal(t, first, second)
}

func TestProjectionEarlyStop(t *testing.T) {
	t.Parallel()

	hist := points([2]int{2018, 1000}, [2]int{2023, 1100})
	var got []TrendPoint
	for p := range Projection(hist, 5, 5) {
		got = append(got, p)
		if len(got) == 2 {
			break
		}
	}
	require.Len(t, got, 2)
	assert.Equal(t, 2025, got[1].Year)
}

func TestProjectionEmptyWhenNoGrowthRate(t *testing.T) {
	t.Parallel()

	assert.Empty(t, slices.Collect(Projection(points([2]int{2023, 1000}), 5, 5)))
	assert.Empty(t, slices.Collect(Projection(nil, 5, 5)))
}
