// Package errors carries the engine's Problem taxonomy and the closed
// error-code envelope returned at the external-interface boundary.
package errors

import (
	"encoding/json"
	"fmt"
	"time"
)

// Problem is anything the engine can fail with. Mirrors the
// fatal/non-fatal distinction the core draws between conditions that
// should stop an execution and ones that merely explain a partial
// result.
type Problem interface {
	error
	IsFatal() bool
}

// Code is drawn from the closed set named in the external-interface
// error envelope. Never add a code without updating every caller that
// switches on Code.
type Code string

const (
	EmptyFacts          Code = "EMPTY_FACTS"
	EmptyRules          Code = "EMPTY_RULES"
	InputTooLarge       Code = "INPUT_TOO_LARGE"
	InvalidJSON         Code = "INVALID_JSON"
	NonObjectJSON       Code = "NON_OBJECT_JSON"
	InvalidGRL          Code = "INVALID_GRL"
	NoRulesFound        Code = "NO_RULES_FOUND"
	ExecutionFailed     Code = "EXECUTION_FAILED"
	SerializationFailed Code = "SERIALIZATION_FAILED"
	IterationCapExceeded Code = "ITERATION_CAP_EXCEEDED"
)

// CodedError is a Problem tagged with one of the closed Codes. It is
// the type every external entry point (engine.Execute, engine.Query,
// ...) ultimately returns.
type CodedError struct {
	Code  Code
	Msg   string
	Fatal bool
}

func New(code Code, format string, args ...interface{}) *CodedError {
	return &CodedError{Code: code, Msg: fmt.Sprintf(format, args...), Fatal: true}
}

func (e *CodedError) Error() string {
	return e.Msg
}

func (e *CodedError) IsFatal() bool {
	return e.Fatal
}

// Envelope is the JSON shape returned for every failed external call:
// {error, error_code, timestamp}.
type Envelope struct {
	Error     string `json:"error"`
	ErrorCode Code   `json:"error_code"`
	Timestamp int64  `json:"timestamp"`
}

// ToEnvelope renders any error into the boundary's stable JSON shape.
// Errors that are not a *CodedError are reported under
// ExecutionFailed, which keeps the boundary's code set closed even
// when an internal package returns a plain error.
func ToEnvelope(err error) Envelope {
	code := ExecutionFailed
	if ce, ok := err.(*CodedError); ok {
		code = ce.Code
	}
	return Envelope{
		Error:     err.Error(),
		ErrorCode: code,
		Timestamp: time.Now().UnixMilli(),
	}
}

// MarshalEnvelope is a convenience used by cmd/ wrappers that must
// hand back raw JSON bytes rather than a Go error.
func MarshalEnvelope(err error) ([]byte, error) {
	return json.Marshal(ToEnvelope(err))
}

// SyntaxError reports a GRL parse failure. Always fatal, as the
// teacher's core.SyntaxError is.
type SyntaxError struct {
	Msg string
}

func NewSyntaxError(format string, args ...interface{}) *SyntaxError {
	return &SyntaxError{fmt.Sprintf(format, args...)}
}

func (e *SyntaxError) Error() string   { return e.Msg }
func (e *SyntaxError) IsFatal() bool   { return true }
func (e *SyntaxError) String() string  { return "SyntaxError: " + e.Msg }

// NotFoundError reports a missing rule, session, or function lookup.
// Not fatal by itself; callers decide whether absence is an error.
type NotFoundError struct {
	Msg string
}

func NewNotFoundError(format string, args ...interface{}) *NotFoundError {
	return &NotFoundError{fmt.Sprintf(format, args...)}
}

func (e *NotFoundError) Error() string  { return "not found: " + e.Msg }
func (e *NotFoundError) IsFatal() bool  { return false }
func (e *NotFoundError) String() string { return "NotFoundError: " + e.Msg }

// LimitError reports an iteration cap being exceeded with work still
// pending (rete.FireAll, forward.Run). The backward resolver does not
// return it: hitting its depth cap makes a goal unprovable.
type LimitError struct {
	Msg string
}

func NewLimitError(format string, args ...interface{}) *LimitError {
	return &LimitError{fmt.Sprintf(format, args...)}
}

func (e *LimitError) Error() string  { return e.Msg }
func (e *LimitError) IsFatal() bool  { return true }
func (e *LimitError) String() string { return "LimitError: " + e.Msg }
