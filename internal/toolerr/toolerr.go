// Package toolerr defines the error kinds shared by the capability servers
// and the orchestrator. A Kind is itself an error so callers can match with
// errors.Is(err, toolerr.NotFound).
package toolerr

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
)

// Kind classifies a failure.
type Kind string

const (
	// UnknownTool means a plan named a tool the registry does not have.
	UnknownTool Kind = "UnknownTool"
	// MissingParameter means a required parameter had no value.
	MissingParameter Kind = "MissingParameter"
	// ValidationError means a parameter failed its type or range check.
	ValidationError Kind = "ValidationError"
	// NotFound means a referenced task does not exist.
	NotFound Kind = "NotFound"
	// NotConfigured means a send was attempted before the provider was configured.
	NotConfigured Kind = "NotConfigured"
	// CapabilityUnavailable means a capability server was unreachable, timed out or rejected the call.
	CapabilityUnavailable Kind = "CapabilityUnavailable"
	// DeliveryFailed means the email provider rejected or timed out the send.
	DeliveryFailed Kind = "DeliveryFailed"
	// DependencyFailed marks a step skipped because a step it consumes did not succeed.
	DependencyFailed Kind = "DependencyFailed"
)

// Error implements error so a Kind can be used as a sentinel.
func (k Kind) Error() string {
	return string(k)
}

// CallerCorrectable reports whether the caller can fix the failure by
// rephrasing the instruction.
func (k Kind) CallerCorrectable() bool {
	return k == MissingParameter || k == ValidationError
}

// Error is a classified failure, optionally naming the offending field.
type Error struct {
	Kind    Kind
	Field   string
	Message string
	Err     error
}

// Error implements error.
func (e *Error) Error() string {
	msg := e.Message
	if msg == "" && e.Err != nil {
		msg = e.Err.Error()
	}
	if e.Field != "" {
		return fmt.Sprintf("%s: %s: %s", e.Kind, e.Field, msg)
	}
	return fmt.Sprintf("%s: %s", e.Kind, msg)
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches e against its Kind sentinel.
func (e *Error) Is(target error) bool {
	k, ok := target.(Kind)
	return ok && k == e.Kind
}

// New returns an Error of the given kind.
func New(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Wrap classifies err under kind.
func Wrap(kind Kind, err error, message string) *Error {
	return &Error{Kind: kind, Message: message, Err: err}
}

// Missing reports an absent required parameter.
func Missing(field string) *Error {
	return &Error{Kind: MissingParameter, Field: field, Message: "required parameter is missing"}
}

// Invalid reports a parameter that failed validation.
func Invalid(field, format string, args ...any) *Error {
	return &Error{Kind: ValidationError, Field: field, Message: fmt.Sprintf(format, args...)}
}

// KindOf classifies any error. Unclassified errors and deadline overruns
// count as CapabilityUnavailable: the capability did not give an answer.
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	var te *Error
	if errors.As(err, &te) {
		return te.Kind
	}
	var k Kind
	if errors.As(err, &k) {
		return k
	}
	return CapabilityUnavailable
}

// FieldOf returns the field named by a classified error, if any.
func FieldOf(err error) string {
	var te *Error
	if errors.As(err, &te) {
		return te.Field
	}
	return ""
}

// Timeout classifies a context error from a capability call.
func Timeout(err error) *Error {
	if errors.Is(err, context.DeadlineExceeded) {
		return Wrap(CapabilityUnavailable, err, "capability timed out")
	}
	return Wrap(CapabilityUnavailable, err, "capability call aborted")
}

// Payload is the JSON form of an Error carried across the MCP boundary.
type Payload struct {
	Kind    Kind   `json:"kind"`
	Message string `json:"message"`
	Field   string `json:"field,omitempty"`
}

// ToPayload converts err to its wire form.
func ToPayload(err error) Payload {
	p := Payload{Kind: KindOf(err), Message: err.Error()}
	var te *Error
	if errors.As(err, &te) {
		p.Field = te.Field
		p.Message = te.Message
		if p.Message == "" && te.Err != nil {
			p.Message = te.Err.Error()
		}
	}
	return p
}

// Marshal returns the JSON encoding of err's payload.
func Marshal(err error) string {
	data, _ := json.Marshal(ToPayload(err))
	return string(data)
}

// Parse rebuilds an Error from a payload. Text that is not a payload is
// reported as CapabilityUnavailable with the text as message.
func Parse(text string) *Error {
	var p Payload
	if err := json.Unmarshal([]byte(text), &p); err != nil || p.Kind == "" {
		return &Error{Kind: CapabilityUnavailable, Message: text}
	}
	return &Error{Kind: p.Kind, Field: p.Field, Message: p.Message}
}
