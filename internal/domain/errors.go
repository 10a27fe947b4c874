package domain

import (
	"errors"
	"fmt"
)

// Sentinel errors for the pipeline error taxonomy.
var (
	// ErrUpstreamRead indicates the upstream store was unreachable or a read
	// query failed after retries.
	ErrUpstreamRead = errors.New("upstream read failed")

	// ErrAgentCall indicates a remote agent was unreachable, timed out, or
	// returned a malformed response. Agent calls are never auto-retried.
	ErrAgentCall = errors.New("agent call failed")

	// ErrPersist indicates a write to the intermediate or final store failed
	// after retries.
	ErrPersist = errors.New("persist failed")

	// ErrAlreadyProcessed is a short-circuit signal, not a failure: the
	// workflow (or record) already completed the stage.
	ErrAlreadyProcessed = errors.New("already processed")

	// ErrNotFound indicates a requested entity was not found.
	ErrNotFound = errors.New("not found")

	// ErrInvalidInput indicates the input data is invalid.
	ErrInvalidInput = errors.New("invalid input")
)

// UpstreamReadError provides details about a failed upstream read.
type UpstreamReadError struct {
	Op    string
	Cause error
}

// Error implements the error interface.
func (e *UpstreamReadError) Error() string {
	return fmt.Sprintf("upstream read %s: %v", e.Op, e.Cause)
}

// Unwrap returns the sentinel error so errors.Is(err, ErrUpstreamRead) holds;
// the original cause remains reachable through the sentinel chain.
func (e *UpstreamReadError) Unwrap() error {
	return ErrUpstreamRead
}

// AgentCallError provides diagnostics for a failed or malformed agent call.
// RawPayload carries the response body that could not be parsed.
type AgentCallError struct {
	Agent      string
	StatusCode int
	Message    string
	RawPayload string
}

// Error implements the error interface.
func (e *AgentCallError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s agent call failed (status %d): %s", e.Agent, e.StatusCode, e.Message)
	}
	return fmt.Sprintf("%s agent call failed: %s", e.Agent, e.Message)
}

// Unwrap returns the underlying sentinel error for use with errors.Is.
func (e *AgentCallError) Unwrap() error {
	return ErrAgentCall
}

// PersistError provides details about a failed store write.
type PersistError struct {
	Store string
	Op    string
	Cause error
}

// Error implements the error interface.
func (e *PersistError) Error() string {
	return fmt.Sprintf("persist to %s (%s): %v", e.Store, e.Op, e.Cause)
}

// Unwrap returns the underlying sentinel error for use with errors.Is.
func (e *PersistError) Unwrap() error {
	return ErrPersist
}

// NotFoundError provides details about a missing entity.
type NotFoundError struct {
	Entity string
	ID     string
}

// Error implements the error interface.
func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s not found: %s", e.Entity, e.ID)
}

// Unwrap returns the underlying sentinel error for use with errors.Is.
func (e *NotFoundError) Unwrap() error {
	return ErrNotFound
}

// NewUpstreamReadError creates a new UpstreamReadError.
func NewUpstreamReadError(op string, cause error) *UpstreamReadError {
	return &UpstreamReadError{Op: op, Cause: cause}
}

// NewAgentCallError creates a new AgentCallError.
func NewAgentCallError(agent string, statusCode int, message, rawPayload string) *AgentCallError {
	return &AgentCallError{
		Agent:      agent,
		StatusCode: statusCode,
		Message:    message,
		RawPayload: rawPayload,
	}
}

// NewPersistError creates a new PersistError.
func NewPersistError(store, op string, cause error) *PersistError {
	return &PersistError{Store: store, Op: op, Cause: cause}
}

// NewNotFoundError creates a new NotFoundError.
func NewNotFoundError(entity, id string) *NotFoundError {
	return &NotFoundError{Entity: entity, ID: id}
}
