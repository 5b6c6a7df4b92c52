// Package errors provides user-facing error wrapping for cmd/cipadapter.
// The core library packages never use this type: their errors are consumed
// programmatically (mapped to CIP status codes), not shown to an operator.
package errors

import "strings"

// UserFriendlyError adds operator-facing context to a wrapped error: what
// failed, why, and what to try next.
type UserFriendlyError struct {
	Message string
	Reason  string
	Hint    string
	Try     string
	Err     error
}

func (e UserFriendlyError) Error() string {
	var buf strings.Builder
	buf.WriteString(e.Message)
	if e.Reason != "" {
		buf.WriteString("\n  Reason: " + e.Reason)
	}
	if e.Hint != "" {
		buf.WriteString("\n  Hint: " + e.Hint)
	}
	if e.Try != "" {
		buf.WriteString("\n  Try: " + e.Try)
	}
	if e.Err != nil {
		buf.WriteString("\n  Details: " + e.Err.Error())
	}
	return buf.String()
}

func (e UserFriendlyError) Unwrap() error {
	return e.Err
}

// WrapConfigError adds load-path context to a configuration error surfaced
// by cmd/cipadapter's serve command.
func WrapConfigError(err error, configPath string) error {
	if err == nil {
		return nil
	}
	return UserFriendlyError{
		Message: "Configuration error in " + configPath,
		Reason:  err.Error(),
		Hint:    "check connection-point sizes and identity fields against the adapter's assembly configuration",
		Try:     "cipadapter list-classes --config " + configPath,
		Err:     err,
	}
}
