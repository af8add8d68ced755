package scenario

import (
	"errors"
	"fmt"
)

// ErrorCode categorizes scenario failures.
type ErrorCode string

const (
	// ErrCodeConfigInvalid indicates the scenario could not start: bad
	// parameters, an out-of-range split, or a pool that cannot satisfy the
	// action kind's threshold rule.
	ErrCodeConfigInvalid ErrorCode = "CONFIG_INVALID"

	// ErrCodeSubmissionRejected indicates the node refused a proposal or
	// vote submission with a non-transient error.
	ErrCodeSubmissionRejected ErrorCode = "SUBMISSION_REJECTED"

	// ErrCodeRetriesExhausted indicates a vote kept failing transiently
	// until the retry budget ran out.
	ErrCodeRetriesExhausted ErrorCode = "RETRIES_EXHAUSTED"

	// ErrCodeSettlementTimeout indicates no settlement signal was ever
	// observed: the observer's deadline expired, or the status query failed
	// terminally, before any proposal settled and before the epoch horizon
	// passed.
	ErrCodeSettlementTimeout ErrorCode = "SETTLEMENT_TIMEOUT"

	// ErrCodeEnactmentMismatch indicates the observed enactment disagrees
	// with the oracle's prediction.
	ErrCodeEnactmentMismatch ErrorCode = "ENACTMENT_MISMATCH"
)

// Error is a scenario failure with structured fields for diagnostics.
//
// Every failed scenario carries exactly one Error; the code determines
// whether the failure indicts the harness configuration, the node, or the
// ledger's ratification behavior.
type Error struct {
	// Code identifies the failure category.
	Code ErrorCode

	// Message is a human-readable description.
	Message string

	// Scenario is the run token of the affected scenario.
	Scenario string

	// Proposal identifies the affected proposal, when one is implicated.
	Proposal string

	// Details contains additional context.
	Details map[string]string

	// Err is the underlying cause, if any.
	Err error
}

func (e *Error) Error() string {
	if e.Proposal != "" {
		return fmt.Sprintf("%s: %s (scenario=%s, proposal=%s)", e.Code, e.Message, e.Scenario, e.Proposal)
	}
	if e.Scenario != "" {
		return fmt.Sprintf("%s: %s (scenario=%s)", e.Code, e.Message, e.Scenario)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// hasCode reports whether err is a scenario Error with the given code.
// Uses errors.As to handle wrapped errors.
func hasCode(err error, code ErrorCode) bool {
	var se *Error
	if errors.As(err, &se) {
		return se.Code == code
	}
	return false
}

// IsConfigInvalid reports whether the error is a configuration error.
func IsConfigInvalid(err error) bool { return hasCode(err, ErrCodeConfigInvalid) }

// IsSubmissionRejected reports whether the error is a hard node rejection.
func IsSubmissionRejected(err error) bool { return hasCode(err, ErrCodeSubmissionRejected) }

// IsRetriesExhausted reports whether the error is a retry budget exhaustion.
func IsRetriesExhausted(err error) bool { return hasCode(err, ErrCodeRetriesExhausted) }

// IsSettlementTimeout reports whether the error is a settlement timeout.
func IsSettlementTimeout(err error) bool { return hasCode(err, ErrCodeSettlementTimeout) }

// IsEnactmentMismatch reports whether the error is a prediction mismatch.
func IsEnactmentMismatch(err error) bool { return hasCode(err, ErrCodeEnactmentMismatch) }

func newError(code ErrorCode, token, message string, cause error) *Error {
	return &Error{
		Code:     code,
		Message:  message,
		Scenario: token,
		Err:      cause,
	}
}
