package domain

import "time"

// ============================================================
// Generation request/result value objects
// ============================================================

// Parameters are the generation parameters sent to the backend.
type Parameters struct {
	MaxLength   int     `json:"max_length"`
	Temperature float64 `json:"temperature"`
	TopP        float64 `json:"top_p"`
}

// RawGenerationRequest is the unvalidated caller input as it arrives from
// the HTTP layer. Numeric fields are `any` so the validator can distinguish
// absent (nil), numeric (float64/json.Number) and wrong-typed values.
type RawGenerationRequest struct {
	Question    string `json:"question"`
	UserInput   string `json:"user_input"`
	MaxLength   any    `json:"max_length"`
	Temperature any    `json:"temperature"`
	TopP        any    `json:"top_p"`
}

// GenerationRequest is a validated, clamped request ready to be dispatched.
// Immutable once constructed.
type GenerationRequest struct {
	Question string
	Params   Parameters
}

// GenerationResult is produced only by a successful backend call.
type GenerationResult struct {
	ID        string
	Question  string
	Answer    string
	Params    Parameters
	Attempts  int
	Timestamp time.Time
	ElapsedMs int64
}

// GenerationFailure is produced by any unsuccessful attempt. It never carries
// partial answer text. Err holds the typed error for kind classification; the
// wire representation is built by the envelope package.
type GenerationFailure struct {
	Question  string
	Message   string
	Err       error
	Timestamp time.Time
}

// Outcome is either a result or a failure, never both.
type Outcome struct {
	Result  *GenerationResult
	Failure *GenerationFailure
}

// Succeeded reports whether the outcome carries a result.
func (o Outcome) Succeeded() bool {
	return o.Result != nil
}

// BatchOutcome holds one outcome per input question, in input order.
type BatchOutcome []Outcome

// ComparisonOutcome maps a compare endpoint identifier to its outcome.
type ComparisonOutcome map[string]Outcome

// SamplePair is a canned question/answer pair fetched from the backend.
type SamplePair struct {
	Question string
	Answer   string
}
