package server

import (
	"net/http"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

const apiTitle = "Telemetry Analysis Service"

func schemaRef(name string) map[string]any {
	return map[string]any{"$ref": "#/components/schemas/" + name}
}

func jsonContent(schema map[string]any) map[string]any {
	return map[string]any{"application/json": map[string]any{"schema": schema}}
}

// openAPIDocument describes the HTTP surface in OpenAPI 3.0 form.
func openAPIDocument() map[string]any {
	errorResponses := map[string]any{
		"422": map[string]any{
			"description": "Validation Error",
			"content":     jsonContent(schemaRef("ValidationErrorResponse")),
		},
		"500": map[string]any{
			"description": "Computation Error",
			"content":     jsonContent(schemaRef("ErrorResponse")),
		},
	}

	analyzeOp := func(summary, respSchema string, params []any) map[string]any {
		responses := map[string]any{
			"200": map[string]any{
				"description": "Successful Response",
				"content":     jsonContent(schemaRef(respSchema)),
			},
		}
		for code, resp := range errorResponses {
			responses[code] = resp
		}
		op := map[string]any{
			"summary": summary,
			"requestBody": map[string]any{
				"required": true,
				"content":  jsonContent(schemaRef("AnalysisRequest")),
			},
			"responses": responses,
		}
		if len(params) > 0 {
			op["parameters"] = params
		}
		return op
	}

	methodParam := map[string]any{
		"name":     "method",
		"in":       "query",
		"required": false,
		"schema": map[string]any{
			"type":    "string",
			"enum":    []string{"isolation_forest", "zscore"},
			"default": "isolation_forest",
		},
	}

	number := map[string]any{"type": "number", "nullable": true}

	return map[string]any{
		"openapi": "3.0.3",
		"info": map[string]any{
			"title":   apiTitle,
			"version": "1.0.0",
		},
		"paths": map[string]any{
			"/health": map[string]any{
				"get": map[string]any{
					"summary": "Health Check",
					"responses": map[string]any{
						"200": map[string]any{
							"description": "Successful Response",
							"content":     jsonContent(schemaRef("HealthResponse")),
						},
					},
				},
			},
			"/analyze/anomaly": map[string]any{
				"post": analyzeOp("Detect Anomaly", "AnomalyResponse", []any{methodParam}),
			},
			"/analyze/eda": map[string]any{
				"post": analyzeOp("Generate Eda", "SummaryResponse", nil),
			},
		},
		"components": map[string]any{
			"schemas": map[string]any{
				"TelemetryData": map[string]any{
					"type":     "object",
					"required": []string{"timestamp", "value", "sensor_id"},
					"properties": map[string]any{
						"timestamp": map[string]any{"type": "string"},
						"value":     map[string]any{"type": "number"},
						"sensor_id": map[string]any{"type": "string"},
					},
				},
				"AnalysisRequest": map[string]any{
					"type":     "object",
					"required": []string{"data"},
					"properties": map[string]any{
						"data": map[string]any{"type": "array", "items": schemaRef("TelemetryData")},
					},
				},
				"AnomalyResult": map[string]any{
					"type": "object",
					"properties": map[string]any{
						"timestamp":     map[string]any{"type": "string"},
						"value":         map[string]any{"type": "number"},
						"sensor_id":     map[string]any{"type": "string"},
						"anomaly":       map[string]any{"type": "integer", "enum": []int{-1}},
						"anomaly_score": map[string]any{"type": "number"},
					},
				},
				"AnomalyResponse": map[string]any{
					"type": "object",
					"properties": map[string]any{
						"anomalies": map[string]any{"type": "array", "items": schemaRef("AnomalyResult")},
					},
				},
				"SummaryResponse": map[string]any{
					"type": "object",
					"properties": map[string]any{
						"summary": map[string]any{
							"type": "object",
							"properties": map[string]any{
								"count": number, "mean": number, "std": number, "min": number,
								"25%": number, "50%": number, "75%": number, "max": number,
							},
						},
					},
				},
				"HealthResponse": map[string]any{
					"type":       "object",
					"properties": map[string]any{"status": map[string]any{"type": "string"}},
				},
				"ErrorResponse": map[string]any{
					"type":       "object",
					"properties": map[string]any{"detail": map[string]any{"type": "string"}},
				},
				"ValidationErrorResponse": map[string]any{
					"type": "object",
					"properties": map[string]any{
						"detail": map[string]any{
							"type": "array",
							"items": map[string]any{
								"type": "object",
								"properties": map[string]any{
									"loc":  map[string]any{"type": "array", "items": map[string]any{}},
									"msg":  map[string]any{"type": "string"},
									"type": map[string]any{"type": "string"},
								},
							},
						},
					},
				},
			},
		},
	}
}

func (s *Server) openAPIJSONHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, openAPIDocument())
}

func (s *Server) openAPIYAMLHandler(w http.ResponseWriter, r *http.Request) {
	out, err := yaml.Marshal(openAPIDocument())
	if err != nil {
		s.log.Error("failed to render openapi document", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, map[string]string{"detail": "Internal Server Error"})
		return
	}
	w.Header().Set("Content-Type", "application/yaml")
	w.Write(out)
}
