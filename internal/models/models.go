package models

import (
	"bytes"
	"encoding/json"
	"math"
	"strconv"
)

// OutlierLabel is the label the detector assigns to anomalous records.
const OutlierLabel = -1

type TelemetryRecord struct {
	Timestamp string  `json:"timestamp"`
	Value     float64 `json:"value"`
	SensorID  string  `json:"sensor_id"`
}

type AnalysisRequest struct {
	Data []TelemetryRecord `json:"data"`
}

type AnomalyResult struct {
	Timestamp string  `json:"timestamp"`
	Value     float64 `json:"value"`
	SensorID  string  `json:"sensor_id"`
	Anomaly   int     `json:"anomaly"`
	Score     float64 `json:"anomaly_score"`
}

// NewAnomalyResult tags a record as an outlier with the given score.
func NewAnomalyResult(rec TelemetryRecord, score float64) AnomalyResult {
	return AnomalyResult{
		Timestamp: rec.Timestamp,
		Value:     rec.Value,
		SensorID:  rec.SensorID,
		Anomaly:   OutlierLabel,
		Score:     score,
	}
}

type AnomalyResponse struct {
	Anomalies []AnomalyResult `json:"anomalies"`
}

// Summary holds descriptive statistics over the value column. A zero Count
// means there was nothing to describe and it serializes as {}.
type Summary struct {
	Count float64
	Mean  float64
	Std   float64
	Min   float64
	P25   float64
	P50   float64
	P75   float64
	Max   float64
}

// Keys returns the statistic names in output order.
func (s Summary) Keys() []string {
	return []string{"count", "mean", "std", "min", "25%", "50%", "75%", "max"}
}

func (s Summary) values() []float64 {
	return []float64{s.Count, s.Mean, s.Std, s.Min, s.P25, s.P50, s.P75, s.Max}
}

// Empty reports whether the summary was computed over zero records.
func (s Summary) Empty() bool {
	return s.Count == 0
}

// MarshalJSON writes the statistics in a stable order. Non-finite values
// (std of a single sample) are written as null.
func (s Summary) MarshalJSON() ([]byte, error) {
	if s.Empty() {
		return []byte("{}"), nil
	}

	var buf bytes.Buffer
	buf.WriteByte('{')
	values := s.values()
	for i, key := range s.Keys() {
		if i > 0 {
			buf.WriteByte(',')
		}
		buf.WriteString(strconv.Quote(key))
		buf.WriteByte(':')
		v := values[i]
		if math.IsNaN(v) || math.IsInf(v, 0) {
			buf.WriteString("null")
			continue
		}
		b, err := json.Marshal(v)
		if err != nil {
			return nil, err
		}
		buf.Write(b)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

type SummaryResponse struct {
	Summary Summary `json:"summary"`
}

type HealthResponse struct {
	Status string `json:"status"`
}

// ErrorResponse is the envelope for 500 responses.
type ErrorResponse struct {
	Detail string `json:"detail"`
}
