package analytics

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"telemetry-analyzer/internal/apperr"
	"telemetry-analyzer/internal/models"
)

// Describe computes count, mean, sample standard deviation, min, quartiles
// and max over the record values. The std of a single value is NaN. Values
// whose mean or spread does not fit in a float64 yield a ComputationError.
func Describe(records []models.TelemetryRecord) (models.Summary, error) {
	if len(records) == 0 {
		return models.Summary{}, nil
	}

	values := make([]float64, len(records))
	for i, rec := range records {
		if math.IsNaN(rec.Value) || math.IsInf(rec.Value, 0) {
			return models.Summary{}, apperr.Computation("describe",
				fmt.Errorf("value at index %d is not finite", i))
		}
		values[i] = rec.Value
	}

	sorted := sortedCopy(values)
	mean, std := stat.MeanStdDev(values, nil)
	// finite inputs near the float64 limits can still overflow the sums
	if math.IsInf(mean, 0) || math.IsNaN(mean) {
		return models.Summary{}, apperr.Computation("describe", errors.New("mean overflows float64"))
	}
	if len(values) > 1 && (math.IsInf(std, 0) || math.IsNaN(std)) {
		return models.Summary{}, apperr.Computation("describe", errors.New("standard deviation overflows float64"))
	}

	return models.Summary{
		Count: float64(len(values)),
		Mean:  mean,
		Std:   std,
		Min:   floats.Min(values),
		P25:   quantile(sorted, 0.25),
		P50:   quantile(sorted, 0.50),
		P75:   quantile(sorted, 0.75),
		Max:   floats.Max(values),
	}, nil
}
