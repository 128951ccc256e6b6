package domain

import (
	"errors"
	"time"
)

// ============================================================
// Response envelopes — the uniform wire shape
// {"status": "success"|"error", ..., "timestamp": RFC3339}
// ============================================================

// Envelope statuses.
const (
	StatusSuccess   = "success"
	StatusError     = "error"
	StatusCompleted = "completed"
)

// ErrorKind maps a typed error to the stable string surfaced externally.
// This is the only place the error taxonomy becomes wire text; call sites
// must not invent their own kind strings.
func ErrorKind(err error) string {
	var validation *ErrValidation
	var connection *ErrConnection
	var timeout *ErrTimeout
	var upstream *ErrUpstream
	var circuitOpen *ErrCircuitOpen
	var configuration *ErrConfiguration

	switch {
	case errors.As(err, &validation):
		return "validation_error"
	case errors.As(err, &connection):
		return "connection_error"
	case errors.As(err, &timeout):
		return "timeout_error"
	case errors.As(err, &upstream):
		return "upstream_error"
	case errors.As(err, &circuitOpen):
		return "circuit_open"
	case errors.As(err, &configuration):
		return "configuration_error"
	default:
		return "internal_error"
	}
}

// ErrorEnvelope is the top-level error shape (validation failures,
// unreadable bodies, auth rejections).
type ErrorEnvelope struct {
	Status    string `json:"status"`
	ErrorKind string `json:"error_kind"`
	Error     string `json:"error"`
	Timestamp string `json:"timestamp"`
}

// NewErrorEnvelope wraps a typed error into the uniform error shape.
func NewErrorEnvelope(err error) ErrorEnvelope {
	return ErrorEnvelope{
		Status:    StatusError,
		ErrorKind: ErrorKind(err),
		Error:     err.Error(),
		Timestamp: time.Now().Format(time.RFC3339),
	}
}

// GenerateEnvelope is the response shape for single-question generation.
type GenerateEnvelope struct {
	Status     string      `json:"status"`
	ID         string      `json:"id,omitempty"`
	Question   string      `json:"question"`
	Response   string      `json:"response,omitempty"`
	Parameters *Parameters `json:"parameters,omitempty"`
	Attempts   int         `json:"attempts,omitempty"`
	ElapsedMs  int64       `json:"elapsed_ms,omitempty"`
	ErrorKind  string      `json:"error_kind,omitempty"`
	Error      string      `json:"error,omitempty"`
	Timestamp  string      `json:"timestamp"`
}

// NewGenerateEnvelope maps a single outcome into the uniform shape.
func NewGenerateEnvelope(o Outcome) GenerateEnvelope {
	if o.Succeeded() {
		r := o.Result
		return GenerateEnvelope{
			Status:     StatusSuccess,
			ID:         r.ID,
			Question:   r.Question,
			Response:   r.Answer,
			Parameters: &r.Params,
			Attempts:   r.Attempts,
			ElapsedMs:  r.ElapsedMs,
			Timestamp:  r.Timestamp.Format(time.RFC3339),
		}
	}
	f := o.Failure
	return GenerateEnvelope{
		Status:    StatusError,
		Question:  f.Question,
		ErrorKind: ErrorKind(f.Err),
		Error:     f.Message,
		Timestamp: f.Timestamp.Format(time.RFC3339),
	}
}

// BatchEntry is one per-question entry in a batch envelope.
type BatchEntry struct {
	Index     int    `json:"index"`
	Question  string `json:"question"`
	Status    string `json:"status"`
	Response  string `json:"response,omitempty"`
	ErrorKind string `json:"error_kind,omitempty"`
	Error     string `json:"error,omitempty"`
}

// BatchEnvelope is the response shape for batch generation. The overall
// status is "completed" even when individual questions failed.
type BatchEnvelope struct {
	Status         string       `json:"status"`
	TotalQuestions int          `json:"total_questions"`
	Results        []BatchEntry `json:"results"`
	Parameters     *Parameters  `json:"parameters,omitempty"`
	Timestamp      string       `json:"timestamp"`
}

// NewBatchEnvelope maps a batch outcome into the uniform shape, preserving
// input order.
func NewBatchEnvelope(outcome BatchOutcome, params Parameters) BatchEnvelope {
	results := make([]BatchEntry, 0, len(outcome))
	for i, o := range outcome {
		entry := BatchEntry{Index: i}
		if o.Succeeded() {
			entry.Question = o.Result.Question
			entry.Status = StatusSuccess
			entry.Response = o.Result.Answer
		} else {
			entry.Question = o.Failure.Question
			entry.Status = StatusError
			entry.ErrorKind = ErrorKind(o.Failure.Err)
			entry.Error = o.Failure.Message
		}
		results = append(results, entry)
	}
	return BatchEnvelope{
		Status:         StatusCompleted,
		TotalQuestions: len(outcome),
		Results:        results,
		Parameters:     &params,
		Timestamp:      time.Now().Format(time.RFC3339),
	}
}

// CompareEntry is one per-endpoint entry in a comparison envelope.
type CompareEntry struct {
	Status    string `json:"status"`
	Response  string `json:"response,omitempty"`
	ElapsedMs int64  `json:"elapsed_ms,omitempty"`
	ErrorKind string `json:"error_kind,omitempty"`
	Error     string `json:"error,omitempty"`
}

// CompareEnvelope is the response shape for endpoint comparison.
type CompareEnvelope struct {
	Status     string                  `json:"status"`
	Question   string                  `json:"question"`
	Responses  map[string]CompareEntry `json:"responses"`
	Parameters *Parameters             `json:"parameters,omitempty"`
	Timestamp  string                  `json:"timestamp"`
}

// NewCompareEnvelope maps a comparison outcome into the uniform shape.
// One endpoint's failure never suppresses another's entry.
func NewCompareEnvelope(question string, params Parameters, outcome ComparisonOutcome) CompareEnvelope {
	responses := make(map[string]CompareEntry, len(outcome))
	for id, o := range outcome {
		if o.Succeeded() {
			responses[id] = CompareEntry{
				Status:    StatusSuccess,
				Response:  o.Result.Answer,
				ElapsedMs: o.Result.ElapsedMs,
			}
			continue
		}
		responses[id] = CompareEntry{
			Status:    StatusError,
			ErrorKind: ErrorKind(o.Failure.Err),
			Error:     o.Failure.Message,
		}
	}
	return CompareEnvelope{
		Status:     StatusSuccess,
		Question:   question,
		Responses:  responses,
		Parameters: &params,
		Timestamp:  time.Now().Format(time.RFC3339),
	}
}

// SampleEnvelope is the response shape for the canned sample endpoint.
type SampleEnvelope struct {
	Status         string `json:"status"`
	SampleQuestion string `json:"sample_question"`
	SampleResponse string `json:"sample_response"`
	Timestamp      string `json:"timestamp"`
}

// NewSampleEnvelope wraps a sample pair into the uniform shape.
func NewSampleEnvelope(pair SamplePair) SampleEnvelope {
	return SampleEnvelope{
		Status:         StatusSuccess,
		SampleQuestion: pair.Question,
		SampleResponse: pair.Answer,
		Timestamp:      time.Now().Format(time.RFC3339),
	}
}
