package errors

import (
	"errors"
	"strings"
	"testing"
)

func TestUserFriendlyErrorFormatting(t *testing.T) {
	base := errors.New("size_bytes must be positive")
	err := WrapConfigError(base, "adapter.yaml")

	msg := err.Error()
	if !strings.Contains(msg, "adapter.yaml") {
		t.Errorf("message = %q, want it to mention the config path", msg)
	}
	if !strings.Contains(msg, "size_bytes must be positive") {
		t.Errorf("message = %q, want it to mention the underlying error", msg)
	}
}

func TestWrapConfigErrorNilPassthrough(t *testing.T) {
	if WrapConfigError(nil, "adapter.yaml") != nil {
		t.Error("expected nil error to stay nil")
	}
}

func TestUserFriendlyErrorUnwrap(t *testing.T) {
	base := errors.New("boom")
	err := WrapConfigError(base, "adapter.yaml")

	if !errors.Is(err, base) {
		t.Error("expected errors.Is to find the wrapped base error")
	}
}
