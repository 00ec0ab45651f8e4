package analytics

import (
	"encoding/json"
	"fmt"
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"telemetry-analyzer/internal/apperr"
	"telemetry-analyzer/internal/models"
)

// rampWithOutlier returns n readings between 9.5 and 10.5 followed by one
// reading at outlier.
func rampWithOutlier(n int, outlier float64) []models.TelemetryRecord {
	records := make([]models.TelemetryRecord, 0, n+1)
	for i := 0; i < n; i++ {
		records = append(records, models.TelemetryRecord{
			Timestamp: fmt.Sprintf("2024-01-01T00:%02d:00Z", i),
			Value:     9.5 + float64(i)/float64(n),
			SensorID:  "kiln-1",
		})
	}
	return append(records, models.TelemetryRecord{
		Timestamp: "2024-01-01T01:00:00Z",
		Value:     outlier,
		SensorID:  "kiln-1",
	})
}

func seededConfig(seed int64) DetectorConfig {
	cfg := DefaultDetectorConfig()
	cfg.Seed = seed
	return cfg
}

func TestQuantile(t *testing.T) {
	sorted := []float64{1, 2, 3, 4}
	assert.InDelta(t, 1.0, quantile(sorted, 0), 1e-12)
	assert.InDelta(t, 1.75, quantile(sorted, 0.25), 1e-12)
	assert.InDelta(t, 2.5, quantile(sorted, 0.5), 1e-12)
	assert.InDelta(t, 3.25, quantile(sorted, 0.75), 1e-12)
	assert.InDelta(t, 4.0, quantile(sorted, 1), 1e-12)
	assert.Equal(t, 7.0, quantile([]float64{7}, 0.9))
}

func TestAveragePathLength(t *testing.T) {
	assert.Equal(t, 0.0, averagePathLength(1))
	assert.Equal(t, 1.0, averagePathLength(2))
	// 2(ln 255 + gamma) - 2*255/256
	assert.InDelta(t, 10.244, averagePathLength(256), 1e-3)
}

func TestIsolationForest_OutlierScoresHighest(t *testing.T) {
	values := []float64{1.0, 1.1, 0.9, 1.2, 0.8, 1.0, 1.05, 0.95, 50.0}

	forest := NewIsolationForest(100, 256, rand.New(rand.NewSource(42)))
	require.NoError(t, forest.Fit(values))

	scores, err := forest.ScoreAll(values)
	require.NoError(t, err)

	outlier := scores[len(scores)-1]
	for i, s := range scores[:len(scores)-1] {
		assert.Greater(t, outlier, s, "value %v", values[i])
		assert.GreaterOrEqual(t, s, 0.0)
		assert.LessOrEqual(t, s, 1.0)
	}
}

func TestIsolationForest_Errors(t *testing.T) {
	forest := NewIsolationForest(10, 256, rand.New(rand.NewSource(1)))

	_, err := forest.Score(1)
	assert.ErrorIs(t, err, errNotFitted)

	assert.Error(t, forest.Fit(nil))
	assert.Error(t, forest.Fit([]float64{1, math.NaN()}))
	assert.Error(t, forest.Fit([]float64{-math.MaxFloat64, math.MaxFloat64}))
}

func TestDetector_FlagsOutlier(t *testing.T) {
	records := rampWithOutlier(50, 100)
	d := NewDetector(seededConfig(7))

	anomalies, err := d.Detect(records, MethodIsolationForest)
	require.NoError(t, err)

	require.NotEmpty(t, anomalies)
	assert.LessOrEqual(t, len(anomalies), 5)

	found := false
	for _, a := range anomalies {
		assert.Equal(t, models.OutlierLabel, a.Anomaly)
		if a.Value == 100 {
			found = true
		}
	}
	assert.True(t, found, "outlier not reported: %+v", anomalies)
}

func TestDetector_ResultsAreSubsetOfInput(t *testing.T) {
	records := rampWithOutlier(30, -40)
	anomalies, err := NewDetector(DefaultDetectorConfig()).Detect(records, MethodIsolationForest)
	require.NoError(t, err)

	inputs := make(map[string]models.TelemetryRecord, len(records))
	for _, r := range records {
		inputs[r.SensorID+"|"+r.Timestamp] = r
	}
	for _, a := range anomalies {
		rec, ok := inputs[a.SensorID+"|"+a.Timestamp]
		require.True(t, ok)
		assert.Equal(t, rec.Value, a.Value)
	}
	assert.LessOrEqual(t, len(anomalies), len(records))
}

func TestDetector_SeedIsReproducible(t *testing.T) {
	records := rampWithOutlier(40, 25)
	for i := 0; i < 5; i++ {
		records = append(records, models.TelemetryRecord{
			Timestamp: fmt.Sprintf("b%d", i), Value: 11 + float64(i)*0.3, SensorID: "kiln-2",
		})
	}

	first, err := NewDetector(seededConfig(99)).Detect(records, MethodIsolationForest)
	require.NoError(t, err)
	second, err := NewDetector(seededConfig(99)).Detect(records, MethodIsolationForest)
	require.NoError(t, err)

	assert.Equal(t, first, second)
}

func TestDetector_EdgeCases(t *testing.T) {
	d := NewDetector(seededConfig(3))

	anomalies, err := d.Detect(nil, MethodIsolationForest)
	require.NoError(t, err)
	assert.NotNil(t, anomalies)
	assert.Empty(t, anomalies)

	single := []models.TelemetryRecord{{Timestamp: "t", Value: 5, SensorID: "s"}}
	anomalies, err = d.Detect(single, MethodIsolationForest)
	require.NoError(t, err)
	assert.Empty(t, anomalies)

	same := make([]models.TelemetryRecord, 20)
	for i := range same {
		same[i] = models.TelemetryRecord{Timestamp: fmt.Sprint(i), Value: 3.3, SensorID: "s"}
	}
	anomalies, err = d.Detect(same, MethodIsolationForest)
	require.NoError(t, err)
	assert.Empty(t, anomalies)
}

func TestDetector_ComputationError(t *testing.T) {
	records := []models.TelemetryRecord{
		{Timestamp: "a", Value: -math.MaxFloat64, SensorID: "s"},
		{Timestamp: "b", Value: math.MaxFloat64, SensorID: "s"},
	}
	_, err := NewDetector(DefaultDetectorConfig()).Detect(records, MethodIsolationForest)
	require.Error(t, err)

	cerr, ok := apperr.AsComputation(err)
	require.True(t, ok)
	assert.Equal(t, string(MethodIsolationForest), cerr.Op)
}

func TestDetector_ZScore(t *testing.T) {
	records := rampWithOutlier(50, 100)
	anomalies, err := NewDetector(DefaultDetectorConfig()).Detect(records, MethodZScore)
	require.NoError(t, err)

	require.Len(t, anomalies, 1)
	assert.Equal(t, 100.0, anomalies[0].Value)
	assert.Greater(t, anomalies[0].Score, 3.0)
}

func TestZScoreAnalyzer_SmallOrFlatBatch(t *testing.T) {
	a := NewZScoreAnalyzer(2)

	flags, _, err := a.Analyze([]float64{1, 100})
	require.NoError(t, err)
	assert.Equal(t, []bool{false, false}, flags)

	flags, _, err = a.Analyze([]float64{4, 4, 4, 4})
	require.NoError(t, err)
	assert.Equal(t, []bool{false, false, false, false}, flags)
}

func TestParseMethod(t *testing.T) {
	m, err := ParseMethod("")
	require.NoError(t, err)
	assert.Equal(t, MethodIsolationForest, m)

	m, err = ParseMethod("zscore")
	require.NoError(t, err)
	assert.Equal(t, MethodZScore, m)

	_, err = ParseMethod("lof")
	_, ok := apperr.AsValidation(err)
	assert.True(t, ok)
}

func TestDescribe(t *testing.T) {
	records := []models.TelemetryRecord{
		{Value: 4}, {Value: 1}, {Value: 3}, {Value: 2},
	}

	s, err := Describe(records)
	require.NoError(t, err)

	assert.Equal(t, 4.0, s.Count)
	assert.InDelta(t, 2.5, s.Mean, 1e-12)
	assert.InDelta(t, math.Sqrt(5.0/3.0), s.Std, 1e-12)
	assert.Equal(t, 1.0, s.Min)
	assert.InDelta(t, 1.75, s.P25, 1e-12)
	assert.InDelta(t, 2.5, s.P50, 1e-12)
	assert.InDelta(t, 3.25, s.P75, 1e-12)
	assert.Equal(t, 4.0, s.Max)
}

func TestDescribe_EmptyAndSingle(t *testing.T) {
	s, err := Describe(nil)
	require.NoError(t, err)
	assert.True(t, s.Empty())

	b, err := json.Marshal(s)
	require.NoError(t, err)
	assert.JSONEq(t, `{}`, string(b))

	s, err = Describe([]models.TelemetryRecord{{Value: 7.5}})
	require.NoError(t, err)
	assert.Equal(t, 1.0, s.Count)
	assert.Equal(t, 7.5, s.Mean)
	assert.True(t, math.IsNaN(s.Std))
	assert.Equal(t, 7.5, s.Min)
	assert.Equal(t, 7.5, s.Max)

	b, err = json.Marshal(s)
	require.NoError(t, err)
	assert.JSONEq(t,
		`{"count":1,"mean":7.5,"std":null,"min":7.5,"25%":7.5,"50%":7.5,"75%":7.5,"max":7.5}`,
		string(b))
}

func TestDescribe_Overflow(t *testing.T) {
	tests := []struct {
		name   string
		values []float64
	}{
		{"mean overflows", []float64{1e308, 1e308}},
		{"spread overflows", []float64{1e200, -1e200}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			records := make([]models.TelemetryRecord, len(tt.values))
			for i, v := range tt.values {
				records[i] = models.TelemetryRecord{Value: v}
			}

			_, err := Describe(records)
			require.Error(t, err)
			cerr, ok := apperr.AsComputation(err)
			require.True(t, ok)
			assert.Equal(t, "describe", cerr.Op)
		})
	}

	s, err := Describe([]models.TelemetryRecord{{Value: 1e308}})
	require.NoError(t, err)
	assert.Equal(t, 1e308, s.Mean)
}
