// Package errors provides structured error handling compatible with standard library.
//
// Overview:
//   - Responsibility: Define error codes, the bootstrap error taxonomy and structured wrapping
//   - Key Types: Code for classification, E for structured errors, Builder for fluent construction
//   - Concurrency Model: All functions are safe for concurrent use
//   - Error Semantics: Compatible with errors.Is / errors.As through Unwrap
//
// Usage:
//
//	err := errors.PluginLoad("pluginx.Locate", path, cause)
//	if errors.IsPluginLoad(err) { ... }
//	code := errors.CodeOf(err)
package errors

import (
	"errors"
	"fmt"
	"strings"
)

// Code represents an error classification code.
type Code string

// Generic codes.
const (
	CodeInvalidArgument Code = "INVALID_ARGUMENT"
	CodeNotFound        Code = "NOT_FOUND"
	CodeAlreadyExists   Code = "ALREADY_EXISTS"
	CodeInternal        Code = "INTERNAL"
	CodeUnavailable     Code = "UNAVAILABLE"
	CodeAborted         Code = "ABORTED"
)

// Bootstrap taxonomy. Every one of these is fatal to node startup.
const (
	// CodeConfiguration: discovery path missing or unreadable, invalid settings.
	CodeConfiguration Code = "CONFIGURATION"
	// CodePluginLoad: a matched assembly file could not be loaded.
	CodePluginLoad Code = "PLUGIN_LOAD"
	// CodeRegistrarInstantiation: a registrar has no usable zero-argument constructor.
	CodeRegistrarInstantiation Code = "REGISTRAR_INSTANTIATION"
	// CodeRegistrarExecution: a registrar failed during Register.
	CodeRegistrarExecution Code = "REGISTRAR_EXECUTION"
	// CodeEndpointConfiguration: the external endpoint configuration hook failed.
	CodeEndpointConfiguration Code = "ENDPOINT_CONFIGURATION"
)

// E represents a structured error with code, operation, message, and details.
type E struct {
	Code    Code   // Error classification code
	Op      string // Operation that failed
	Err     error  // Underlying error (may be nil)
	Msg     string // Human-readable message
	Details []any  // Additional structured details, e.g. offending file or type
}

// Error implements the error interface.
func (e *E) Error() string {
	var b strings.Builder
	b.WriteString(string(e.Code))
	if e.Op != "" {
		b.WriteString(": ")
		b.WriteString(e.Op)
	}
	if e.Msg != "" {
		b.WriteString(": ")
		b.WriteString(e.Msg)
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

// Unwrap returns the underlying error for error unwrapping.
func (e *E) Unwrap() error {
	return e.Err
}

// New creates a new structured error with the given code and message.
func New(code Code, msg string) error {
	return &E{Code: code, Msg: msg}
}

// Newf creates a new structured error with a formatted message.
func Newf(code Code, format string, args ...any) error {
	return &E{Code: code, Msg: fmt.Sprintf(format, args...)}
}

// Wrap creates a new structured error wrapping an existing error.
// The operation name helps identify where the error occurred.
func Wrap(code Code, op string, err error) error {
	return &E{Code: code, Op: op, Err: err}
}

// Wrapf creates a new structured error wrapping an existing error with formatted message.
func Wrapf(code Code, op string, err error, format string, args ...any) error {
	return &E{Code: code, Op: op, Err: err, Msg: fmt.Sprintf(format, args...)}
}

// CodeOf extracts the outermost error code from an error.
// Returns empty string if the error doesn't have a code.
func CodeOf(err error) Code {
	var e *E
	if err != nil && errors.As(err, &e) {
		return e.Code
	}
	return ""
}

// IsCode reports whether any error in err's chain carries code.
func IsCode(err error, code Code) bool {
	for err != nil {
		var e *E
		if !errors.As(err, &e) {
			return false
		}
		if e.Code == code {
			return true
		}
		err = e.Err
	}
	return false
}

// As is a convenience wrapper around the standard library's errors.As.
func As(err error, target any) bool {
	return errors.As(err, target)
}

// Is is a convenience wrapper around the standard library's errors.Is.
func Is(err error, target error) bool {
	return errors.Is(err, target)
}

// Configuration reports a missing or invalid setting.
func Configuration(op, msg string, err error) error {
	return &E{Code: CodeConfiguration, Op: op, Msg: msg, Err: err}
}

// PluginLoad reports an assembly file that could not be loaded.
func PluginLoad(op, path string, err error) error {
	return &E{
		Code:    CodePluginLoad,
		Op:      op,
		Msg:     fmt.Sprintf("load assembly %q", path),
		Err:     err,
		Details: []any{"path", path},
	}
}

// RegistrarInstantiation reports a registrar type that could not be constructed.
func RegistrarInstantiation(op, typeName string, err error) error {
	return &E{
		Code:    CodeRegistrarInstantiation,
		Op:      op,
		Msg:     fmt.Sprintf("instantiate registrar %s", typeName),
		Err:     err,
		Details: []any{"type", typeName},
	}
}

// RegistrarExecution reports a registrar whose Register call failed.
func RegistrarExecution(op, typeName string, err error) error {
	return &E{
		Code:    CodeRegistrarExecution,
		Op:      op,
		Msg:     fmt.Sprintf("registrar %s failed", typeName),
		Err:     err,
		Details: []any{"type", typeName},
	}
}

// EndpointConfiguration reports a failing endpoint configuration hook.
func EndpointConfiguration(op, endpoint string, err error) error {
	return &E{
		Code:    CodeEndpointConfiguration,
		Op:      op,
		Msg:     fmt.Sprintf("configure endpoint %q", endpoint),
		Err:     err,
		Details: []any{"endpoint", endpoint},
	}
}

func IsConfiguration(err error) bool          { return IsCode(err, CodeConfiguration) }
func IsPluginLoad(err error) bool             { return IsCode(err, CodePluginLoad) }
func IsRegistrarInstantiation(err error) bool { return IsCode(err, CodeRegistrarInstantiation) }
func IsRegistrarExecution(err error) bool     { return IsCode(err, CodeRegistrarExecution) }
func IsEndpointConfiguration(err error) bool  { return IsCode(err, CodeEndpointConfiguration) }

// Builder provides a fluent interface for constructing errors.
type Builder struct {
	code    Code
	op      string
	err     error
	msg     string
	details []any
}

// Build starts a new error with the given code.
func Build(code Code) *Builder {
	return &Builder{code: code}
}

// WithOp sets the operation that failed.
func (b *Builder) WithOp(op string) *Builder {
	b.op = op
	return b
}

// WithErr wraps an underlying error.
func (b *Builder) WithErr(err error) *Builder {
	b.err = err
	return b
}

// WithMsgf sets a formatted human-readable message.
func (b *Builder) WithMsgf(format string, args ...any) *Builder {
	b.msg = fmt.Sprintf(format, args...)
	return b
}

// WithDetails adds structured details to the error.
func (b *Builder) WithDetails(details ...any) *Builder {
	b.details = append(b.details, details...)
	return b
}

// Err builds and returns the error.
func (b *Builder) Err() error {
	return &E{
		Code:    b.code,
		Op:      b.op,
		Err:     b.err,
		Msg:     b.msg,
		Details: b.details,
	}
}
