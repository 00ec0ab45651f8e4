package server

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"go.uber.org/zap"

	"telemetry-analyzer/internal/analytics"
	"telemetry-analyzer/internal/apperr"
	"telemetry-analyzer/internal/metrics"
	"telemetry-analyzer/internal/middleware"
	"telemetry-analyzer/internal/models"
	"telemetry-analyzer/internal/validation"
)

const (
	analysisAnomaly = "anomaly"
	analysisEDA     = "eda"
)

// genericDetail is returned instead of the internal message unless
// errors.expose_details is set.
var genericDetail = map[string]string{
	analysisAnomaly: "anomaly detection failed",
	analysisEDA:     "summary generation failed",
}

func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, models.HealthResponse{Status: "healthy"})
}

func (s *Server) anomalyHandler(w http.ResponseWriter, r *http.Request) {
	method, err := analytics.ParseMethod(r.URL.Query().Get("method"))
	if err != nil {
		s.writeError(w, r, analysisAnomaly, err)
		return
	}

	req, err := s.parseRequest(r)
	if err != nil {
		s.writeError(w, r, analysisAnomaly, err)
		return
	}

	anomalies, err := s.detector.Detect(req.Data, method)
	if err != nil {
		s.writeError(w, r, analysisAnomaly, err)
		return
	}

	metrics.RecordsProcessed.WithLabelValues(analysisAnomaly).Add(float64(len(req.Data)))
	metrics.AnomaliesDetected.WithLabelValues(string(method)).Add(float64(len(anomalies)))
	if len(anomalies) > 0 {
		s.log.Debug("anomalies detected",
			zap.String("method", string(method)),
			zap.Int("records", len(req.Data)),
			zap.Int("anomalies", len(anomalies)),
		)
	}

	writeJSON(w, http.StatusOK, models.AnomalyResponse{Anomalies: anomalies})
}

func (s *Server) edaHandler(w http.ResponseWriter, r *http.Request) {
	req, err := s.parseRequest(r)
	if err != nil {
		s.writeError(w, r, analysisEDA, err)
		return
	}

	summary, err := analytics.Describe(req.Data)
	if err != nil {
		s.writeError(w, r, analysisEDA, err)
		return
	}

	metrics.RecordsProcessed.WithLabelValues(analysisEDA).Add(float64(len(req.Data)))
	writeJSON(w, http.StatusOK, models.SummaryResponse{Summary: summary})
}

func (s *Server) parseRequest(r *http.Request) (models.AnalysisRequest, error) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		return models.AnalysisRequest{}, apperr.NewValidation(
			fmt.Sprintf("could not read body: %v", err), "body_read", "body")
	}
	return validation.ParseRequest(body)
}

// writeError maps the error taxonomy to status codes: validation problems
// are 422, everything else is 500.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, analysis string, err error) {
	reqID := middleware.RequestIDFrom(r.Context())

	if verr, ok := apperr.AsValidation(err); ok {
		metrics.AnalysisErrors.WithLabelValues(analysis, "validation").Inc()
		s.log.Info("request rejected",
			zap.String("analysis", analysis),
			zap.String("request_id", reqID),
			zap.Error(err),
		)
		writeJSON(w, http.StatusUnprocessableEntity, map[string]any{"detail": verr.Issues})
		return
	}

	kind := "internal"
	if _, ok := apperr.AsComputation(err); ok {
		kind = "computation"
	}
	metrics.AnalysisErrors.WithLabelValues(analysis, kind).Inc()
	s.log.Error("analysis failed",
		zap.String("analysis", analysis),
		zap.String("kind", kind),
		zap.String("request_id", reqID),
		zap.Error(err),
	)

	detail := genericDetail[analysis]
	if s.cfg.Errors.ExposeDetails {
		detail = err.Error()
	}
	writeJSON(w, http.StatusInternalServerError, models.ErrorResponse{Detail: detail})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
