package domain

import (
	"errors"
	"fmt"
)

var (
	ErrValidation       = errors.New("validation failed")
	ErrNotFound         = errors.New("not found")
	ErrInvalidState     = errors.New("invalid state")
	ErrAgentUnavailable = errors.New("agent unavailable")
	ErrAgentCall        = errors.New("agent call failed")
	ErrAgentReported    = errors.New("agent reported an error")
	ErrPolicyBlocked    = errors.New("blocked by policy")
)

// ValidationError reports a malformed request. No state was changed.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string { return e.Message }

func (e *ValidationError) Is(target error) bool { return target == ErrValidation }

// NotFoundError reports an unknown id.
type NotFoundError struct {
	Kind string
	ID   string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s not found: %s", e.Kind, e.ID)
}

func (e *NotFoundError) Is(target error) bool { return target == ErrNotFound }

// StateError reports an operation that the current status does not permit.
// The original state is left untouched.
type StateError struct {
	Kind    string
	ID      string
	Current string
	Message string
}

func (e *StateError) Error() string {
	if e.ID == "" {
		return fmt.Sprintf("%s (status=%s)", e.Message, e.Current)
	}
	return fmt.Sprintf("%s %q: %s (status=%s)", e.Kind, e.ID, e.Message, e.Current)
}

func (e *StateError) Is(target error) bool { return target == ErrInvalidState }

// AgentUnavailableError reports an agent name with no registered endpoint.
type AgentUnavailableError struct {
	Agent string
}

func (e *AgentUnavailableError) Error() string {
	return fmt.Sprintf("Agent endpoint not found for: %s", e.Agent)
}

func (e *AgentUnavailableError) Is(target error) bool { return target == ErrAgentUnavailable }

// AgentError is an agent-level failure detected while decoding a response.
type AgentError struct {
	Result string
}

func (e *AgentError) Error() string {
	return fmt.Sprintf("Agent returned error: %s", e.Result)
}

func (e *AgentError) Is(target error) bool { return target == ErrAgentReported }

// AgentCallError wraps the last failure after the retry budget is spent.
type AgentCallError struct {
	Agent    string
	Tool     string
	TaskID   string
	Attempts int
	Err      error
}

func (e *AgentCallError) Error() string {
	return fmt.Sprintf("failed to call agent '%s' after %d attempts: %v", e.Agent, e.Attempts, e.Err)
}

func (e *AgentCallError) Unwrap() error { return e.Err }

func (e *AgentCallError) Is(target error) bool { return target == ErrAgentCall }

// PolicyError reports a policy decision that stopped an execution.
type PolicyError struct {
	Decision PolicyDecision
	Reason   string
}

func (e *PolicyError) Error() string {
	if e.Reason == "" {
		return fmt.Sprintf("execution %s by policy", e.Decision)
	}
	return fmt.Sprintf("execution %s by policy: %s", e.Decision, e.Reason)
}

func (e *PolicyError) Is(target error) bool { return target == ErrPolicyBlocked }
