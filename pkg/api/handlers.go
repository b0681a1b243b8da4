package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"fraud-gate/pkg/engine"
	"fraud-gate/pkg/features"
	"fraud-gate/pkg/model"
	"fraud-gate/pkg/transaction"

	"go.uber.org/zap"
)

var startTime = time.Now()

// errorResponse is the body of every failed decision request. Decision is
// always null so a client can never read a failure as SAFE.
type errorResponse struct {
	Error    string                   `json:"error"`
	Message  string                   `json:"message"`
	Reason   string                   `json:"reason,omitempty"`
	Fields   []transaction.FieldError `json:"fields,omitempty"`
	Decision *engine.Decision         `json:"decision"`
}

// Error codes used in errorResponse.
const (
	codeMalformed        = "malformed_request"
	codeInvalidInput     = "invalid_input"
	codeModelUnavailable = "model_unavailable"
	codeInferenceError   = "inference_error"
	codeInternal         = "internal_error"
)

type encodeResponse struct {
	Vector   features.Vector    `json:"vector"`
	Features []features.Feature `json:"features"`
}

type modelResponse struct {
	State    string    `json:"state"`
	Kind     string    `json:"kind,omitempty"`
	Version  string    `json:"version,omitempty"`
	Digest   string    `json:"digest,omitempty"`
	Path     string    `json:"path,omitempty"`
	LoadedAt time.Time `json:"loaded_at,omitempty"`
	Features []string  `json:"features"`
	Error    string    `json:"error,omitempty"`
}

// handleClassify evaluates one transaction.
func (s *Server) handleClassify(w http.ResponseWriter, r *http.Request) {
	in, ok := s.readInput(w, r)
	if !ok {
		return
	}

	ctx := r.Context()
	if s.config.RequestTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.config.RequestTimeout)
		defer cancel()
	}

	res, err := s.detector.Evaluate(ctx, in)
	if err != nil {
		s.writeFailure(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, res)
}

// handleEncode returns the feature vector for one transaction. It never
// touches the model.
func (s *Server) handleEncode(w http.ResponseWriter, r *http.Request) {
	in, ok := s.readInput(w, r)
	if !ok {
		return
	}

	v, err := s.detector.Encode(in)
	if err != nil {
		s.writeFailure(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, encodeResponse{Vector: v, Features: v.Named()})
}

// handleModel describes the loaded model.
func (s *Server) handleModel(w http.ResponseWriter, r *http.Request) {
	e := s.detector.Engine()
	resp := modelResponse{Features: features.Order[:]}

	m, err := e.Handle().Model()
	resp.State = e.Handle().State().String()
	if err != nil {
		resp.Error = err.Error()
		writeJSON(w, http.StatusOK, resp)
		return
	}

	resp.Kind = m.Kind
	resp.Version = m.Version
	resp.Digest = m.Digest
	resp.Path = m.Path
	resp.LoadedAt = m.LoadedAt
	writeJSON(w, http.StatusOK, resp)
}

// handleHealth reports liveness only.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":    "healthy",
		"timestamp": time.Now().Unix(),
		"uptime":    time.Since(startTime).String(),
	})
}

// handleReady returns 200 only when a model is loaded.
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	if err := s.detector.Engine().Available(); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]interface{}{
			"status": "unavailable",
			"error":  err.Error(),
		})
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status": "ready",
	})
}

// handleMetricsJSON returns the collector snapshot when it has one.
func (s *Server) handleMetricsJSON(w http.ResponseWriter, r *http.Request) {
	if mc, ok := s.metrics.(interface{ Snapshot() interface{} }); ok {
		writeJSON(w, http.StatusOK, mc.Snapshot())
		return
	}

	writeJSON(w, http.StatusNotImplemented, map[string]interface{}{
		"error": "metrics collector does not support JSON snapshots",
	})
}

// readInput decodes the request body. On failure it has already written the
// response.
func (s *Server) readInput(w http.ResponseWriter, r *http.Request) (transaction.Input, bool) {
	body := http.MaxBytesReader(w, r.Body, s.config.MaxBodyBytes)
	data, err := io.ReadAll(body)
	if err != nil {
		status := http.StatusBadRequest
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			status = http.StatusRequestEntityTooLarge
		}
		writeJSON(w, status, errorResponse{Error: codeMalformed, Message: err.Error()})
		return transaction.Input{}, false
	}

	in, err := transaction.Decode(data)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: codeMalformed, Message: err.Error()})
		return transaction.Input{}, false
	}
	return in, true
}

// writeFailure maps each failure class to its own status code.
func (s *Server) writeFailure(w http.ResponseWriter, r *http.Request, err error) {
	resp := errorResponse{Message: err.Error()}
	var status int

	var ve *transaction.ValidationError
	var ie *engine.InferenceError
	switch {
	case errors.As(err, &ve):
		status, resp.Error, resp.Fields = http.StatusBadRequest, codeInvalidInput, ve.Fields
	case model.IsUnavailable(err):
		status, resp.Error = http.StatusServiceUnavailable, codeModelUnavailable
	case errors.As(err, &ie):
		status, resp.Error, resp.Reason = http.StatusBadGateway, codeInferenceError, ie.Reason
	default:
		status, resp.Error = http.StatusInternalServerError, codeInternal
	}

	if status >= http.StatusInternalServerError {
		s.logger.Warn("no decision",
			zap.String("request_id", w.Header().Get(requestIDHeader)),
			zap.String("path", r.URL.Path),
			zap.Int("status", status),
			zap.Error(err),
		)
	}
	writeJSON(w, status, resp)
}

// writeJSON writes a JSON response.
func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}
