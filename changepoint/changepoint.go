// Package changepoint locates structural breaks in a finite series with
// a sliding-window CUSUM statistic.
package changepoint

import (
	"math"

	"trendengine/stats"
)

type Type string

const (
	TypeMean     Type = "mean"
	TypeVariance Type = "variance"
	TypeTrend    Type = "trend"
)

type Direction string

const (
	DirectionIncrease Direction = "increase"
	DirectionDecrease Direction = "decrease"
)

// ChangePoint marks an index where the generating process shifted.
type ChangePoint struct {
	Index      int
	Type       Type
	Magnitude  float64
	Confidence float64
	Direction  Direction
}

const (
	// minSegment is the shortest run of samples that can anchor a
	// reference window or separate two change points.
	minSegment = 5
	// cusumSlack is the standard allowance subtracted from each
	// standardized deviation, tuned for shifts of about one sigma.
	cusumSlack = 0.5
)

// Detect scans the series for change points. sensitivity in (0,1] maps
// onto the CUSUM decision threshold: higher sensitivity, lower threshold.
// The reference window restarts after each detection.
func Detect(values []float64, sensitivity float64) []ChangePoint {
	n := len(values)
	if n < 2*minSegment {
		return nil
	}
	if sensitivity <= 0 || sensitivity > 1 {
		sensitivity = 0.5
	}
	threshold := 4 + 8*(1-sensitivity)

	var points []ChangePoint

	reference := stats.NewWelford()
	segmentStart := 0
	gPos, gNeg := 0.0, 0.0

	for i := 0; i < n; i++ {
		if reference.Count() < 2*minSegment {
			reference.Update(values[i])
			continue
		}

		sd := reference.SD()
		if sd < 1e-12 {
			sd = 1e-12
		}
		z := (values[i] - reference.Mean()) / sd

		gPos = math.Max(0, gPos+z-cusumSlack)
		gNeg = math.Max(0, gNeg-z-cusumSlack)
		statistic := math.Max(gPos, gNeg)

		if statistic > threshold {
			cp := classify(values, segmentStart, i, statistic, threshold)
			points = append(points, cp)

			segmentStart = i
			reference.Reset()
			gPos, gNeg = 0, 0
			continue
		}

		// Samples well below the decision level extend the
		// reference window so its moments keep converging.
		if statistic < threshold/2 {
			reference.Update(values[i])
		}
	}
	return points
}

// classify builds the change point record from the pre-change segment
// and a post-change window.
func classify(values []float64, segmentStart, index int, statistic, threshold float64) ChangePoint {
	pre := stats.NewWelford()
	for i := segmentStart; i < index; i++ {
		pre.Update(values[i])
	}
	post := stats.NewWelford()
	end := index + minSegment*2
	if end > len(values) {
		end = len(values)
	}
	for i := index; i < end; i++ {
		post.Update(values[i])
	}

	preVar, postVar := pre.SampleVariance(), post.SampleVariance()
	pooled := math.Sqrt((preVar + postVar) / 2)
	if pooled < 1e-12 {
		pooled = 1e-12
	}

	shift := post.Mean() - pre.Mean()
	magnitude := shift / pooled

	cpType := TypeMean
	if math.Abs(magnitude) < 0.5 {
		ratio := math.Inf(1)
		if preVar > 0 {
			ratio = postVar / preVar
		}
		if ratio > 2 || ratio < 0.5 {
			cpType = TypeVariance
		} else {
			cpType = TypeTrend
		}
	}

	direction := DirectionIncrease
	if shift < 0 {
		direction = DirectionDecrease
	}

	confidence := (statistic - threshold) / threshold
	if confidence > 1 {
		confidence = 1
	}
	if confidence < 0 {
		confidence = 0
	}

	return ChangePoint{
		Index:      index,
		Type:       cpType,
		Magnitude:  magnitude,
		Confidence: confidence,
		Direction:  direction,
	}
}
