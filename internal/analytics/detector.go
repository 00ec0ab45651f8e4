package analytics

import (
	"fmt"
	"math/rand"
	"time"

	"telemetry-analyzer/internal/apperr"
	"telemetry-analyzer/internal/models"
)

// Method selects the outlier model used by the Detector.
type Method string

const (
	MethodIsolationForest Method = "isolation_forest"
	MethodZScore          Method = "zscore"
)

// ParseMethod maps a query value to a Method. The empty string selects the
// isolation forest.
func ParseMethod(s string) (Method, error) {
	switch Method(s) {
	case "", MethodIsolationForest:
		return MethodIsolationForest, nil
	case MethodZScore:
		return MethodZScore, nil
	}
	return "", apperr.NewValidation(
		fmt.Sprintf("Input should be '%s' or '%s'", MethodIsolationForest, MethodZScore),
		"enum", "query", "method",
	)
}

// DetectorConfig holds the model hyperparameters.
type DetectorConfig struct {
	// Contamination is the expected share of outliers in a batch.
	Contamination float64
	NumEstimators int
	MaxSamples    int
	// Seed makes results reproducible when non-zero. Zero seeds every fit
	// from the clock, so borderline points may flip between calls.
	Seed            int64
	ZScoreThreshold float64
}

func DefaultDetectorConfig() DetectorConfig {
	return DetectorConfig{
		Contamination:   0.1,
		NumEstimators:   100,
		MaxSamples:      256,
		ZScoreThreshold: 3.0,
	}
}

// Detector labels records as normal or anomalous. It keeps no state between
// calls; a new model is fit on every batch.
type Detector struct {
	cfg DetectorConfig
}

func NewDetector(cfg DetectorConfig) *Detector {
	return &Detector{cfg: cfg}
}

// Detect returns the anomalous subset of records, in input order.
func (d *Detector) Detect(records []models.TelemetryRecord, method Method) ([]models.AnomalyResult, error) {
	anomalies := make([]models.AnomalyResult, 0)
	if len(records) == 0 {
		return anomalies, nil
	}

	values := make([]float64, len(records))
	for i, rec := range records {
		values[i] = rec.Value
	}

	var (
		flags  []bool
		scores []float64
		err    error
	)
	switch method {
	case MethodZScore:
		flags, scores, err = NewZScoreAnalyzer(d.cfg.ZScoreThreshold).Analyze(values)
	default:
		flags, scores, err = d.isolate(values)
	}
	if err != nil {
		return nil, apperr.Computation(string(method), err)
	}

	for i, rec := range records {
		if flags[i] {
			anomalies = append(anomalies, models.NewAnomalyResult(rec, scores[i]))
		}
	}
	return anomalies, nil
}

// isolate fits a forest and flags values scoring above the
// (1 - contamination) quantile of the batch scores.
func (d *Detector) isolate(values []float64) ([]bool, []float64, error) {
	forest := NewIsolationForest(d.cfg.NumEstimators, d.cfg.MaxSamples, d.newRand())
	if err := forest.Fit(values); err != nil {
		return nil, nil, fmt.Errorf("fit: %w", err)
	}

	scores, err := forest.ScoreAll(values)
	if err != nil {
		return nil, nil, fmt.Errorf("score: %w", err)
	}

	threshold := quantile(sortedCopy(scores), 1-d.cfg.Contamination)

	flags := make([]bool, len(values))
	for i, s := range scores {
		flags[i] = s > threshold
	}
	return flags, scores, nil
}

func (d *Detector) newRand() *rand.Rand {
	seed := d.cfg.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	return rand.New(rand.NewSource(seed))
}
