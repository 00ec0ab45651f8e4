package analytics

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/stat"
)

// minZScoreSamples is the smallest batch on which a z-score can exceed
// common thresholds at all.
const minZScoreSamples = 3

// ZScoreAnalyzer flags values whose distance from the batch mean exceeds
// threshold sample standard deviations.
type ZScoreAnalyzer struct {
	zScoreThreshold float64
}

func NewZScoreAnalyzer(zScoreThreshold float64) *ZScoreAnalyzer {
	return &ZScoreAnalyzer{zScoreThreshold: zScoreThreshold}
}

// Analyze returns one flag and one |z| per value.
func (a *ZScoreAnalyzer) Analyze(values []float64) ([]bool, []float64, error) {
	for i, v := range values {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return nil, nil, fmt.Errorf("value at index %d is not finite", i)
		}
	}

	flags := make([]bool, len(values))
	scores := make([]float64, len(values))
	if len(values) < minZScoreSamples {
		return flags, scores, nil
	}

	mean, stdDev := stat.MeanStdDev(values, nil)
	if math.IsInf(stdDev, 0) || math.IsNaN(stdDev) {
		return nil, nil, fmt.Errorf("standard deviation is not finite")
	}
	if stdDev == 0 {
		return flags, scores, nil
	}

	for i, v := range values {
		z := math.Abs((v - mean) / stdDev)
		scores[i] = z
		flags[i] = z > a.zScoreThreshold
	}
	return flags, scores, nil
}
