// Package validation turns raw request bodies into telemetry records.
package validation

import (
	"bytes"
	"encoding/json"

	"telemetry-analyzer/internal/apperr"
	"telemetry-analyzer/internal/models"
)

const (
	fieldTimestamp = "timestamp"
	fieldValue     = "value"
	fieldSensorID  = "sensor_id"
)

// ParseRequest decodes a `{"data": [...]}` body. Every malformed record is
// reported, not only the first one. An empty data array is valid.
func ParseRequest(body []byte) (models.AnalysisRequest, error) {
	var req models.AnalysisRequest

	body = bytes.TrimSpace(body)
	if !json.Valid(body) {
		return req, apperr.NewValidation("JSON decode error", "json_invalid", "body")
	}

	var envelope map[string]json.RawMessage
	if err := json.Unmarshal(body, &envelope); err != nil || envelope == nil {
		return req, apperr.NewValidation("Input should be a valid dictionary", "dict_type", "body")
	}

	raw, ok := envelope["data"]
	if !ok {
		return req, apperr.NewValidation("Field required", "missing", "body", "data")
	}

	var items []json.RawMessage
	if err := json.Unmarshal(raw, &items); err != nil || isNull(raw) {
		return req, apperr.NewValidation("Input should be a valid list", "list_type", "body", "data")
	}

	verr := &apperr.ValidationError{}
	records := make([]models.TelemetryRecord, 0, len(items))
	for i, item := range items {
		rec, ok := parseRecord(item, i, verr)
		if ok {
			records = append(records, rec)
		}
	}
	if err := verr.OrNil(); err != nil {
		return req, err
	}

	req.Data = records
	return req, nil
}

func parseRecord(item json.RawMessage, idx int, verr *apperr.ValidationError) (models.TelemetryRecord, bool) {
	var rec models.TelemetryRecord

	var fields map[string]json.RawMessage
	if err := json.Unmarshal(item, &fields); err != nil || fields == nil {
		verr.Add("Input should be a valid dictionary", "dict_type", "body", "data", idx)
		return rec, false
	}

	before := len(verr.Issues)

	rec.Timestamp = stringField(fields, fieldTimestamp, idx, verr)
	rec.Value = numberField(fields, fieldValue, idx, verr)
	rec.SensorID = stringField(fields, fieldSensorID, idx, verr)

	return rec, len(verr.Issues) == before
}

func stringField(fields map[string]json.RawMessage, name string, idx int, verr *apperr.ValidationError) string {
	raw, ok := fields[name]
	if !ok {
		verr.Add("Field required", "missing", "body", "data", idx, name)
		return ""
	}
	raw = bytes.TrimSpace(raw)
	var s string
	if len(raw) == 0 || raw[0] != '"' || json.Unmarshal(raw, &s) != nil {
		verr.Add("Input should be a valid string", "string_type", "body", "data", idx, name)
		return ""
	}
	return s
}

func numberField(fields map[string]json.RawMessage, name string, idx int, verr *apperr.ValidationError) float64 {
	raw, ok := fields[name]
	if !ok {
		verr.Add("Field required", "missing", "body", "data", idx, name)
		return 0
	}
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || !(raw[0] == '-' || (raw[0] >= '0' && raw[0] <= '9')) {
		verr.Add("Input should be a valid number", "float_type", "body", "data", idx, name)
		return 0
	}
	var v float64
	if err := json.Unmarshal(raw, &v); err != nil {
		// syntactically a number but outside the float64 range
		verr.Add("Input should be a finite number", "finite_number", "body", "data", idx, name)
		return 0
	}
	return v
}

func isNull(raw json.RawMessage) bool {
	return bytes.Equal(bytes.TrimSpace(raw), []byte("null"))
}
