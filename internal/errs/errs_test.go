package errs

import (
	"errors"
	"fmt"
	"testing"
)

func TestKindOf(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want Kind
	}{
		{"direct", New(KindTimeout, "slow"), KindTimeout},
		{"wrapped cause", Wrap(KindAuthFailed, "rejected", errors.New("bad password")), KindAuthFailed},
		{"fmt-wrapped", fmt.Errorf("outer: %w", New(KindNotFound, "gone")), KindNotFound},
		{"plain error", errors.New("boring"), KindUnknown},
		{"nil", nil, KindUnknown},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := KindOf(tc.err); got != tc.want {
				t.Errorf("KindOf = %v, want %v", got, tc.want)
			}
		})
	}
}

func TestErrorsIsMatchesByKind(t *testing.T) {
	err := fmt.Errorf("context: %w", Wrap(KindConnectionRefused, "refused", errors.New("econnrefused")))

	if !errors.Is(err, New(KindConnectionRefused, "")) {
		t.Error("errors.Is should match errors of the same kind")
	}
	if errors.Is(err, New(KindTimeout, "")) {
		t.Error("errors.Is must not match a different kind")
	}
}

func TestUnwrapPreservesCause(t *testing.T) {
	cause := errors.New("root cause")
	err := Wrap(KindProtocol, "decode failed", cause)

	if !errors.Is(err, cause) {
		t.Error("wrapped cause lost from the chain")
	}
}

func TestErrorMessage(t *testing.T) {
	if got := New(KindValidation, "bad input").Error(); got != "bad input" {
		t.Errorf("Error() = %q", got)
	}

	wrapped := Wrap(KindValidation, "bad input", errors.New("field x"))
	if got := wrapped.Error(); got != "bad input: field x" {
		t.Errorf("Error() = %q", got)
	}
}

func TestNotFoundHelper(t *testing.T) {
	err := NotFound("server", "srv-1")
	if !IsKind(err, KindNotFound) {
		t.Error("NotFound should carry KindNotFound")
	}
	if err.Error() != "server srv-1 not found" {
		t.Errorf("Error() = %q", err.Error())
	}
}

func TestKindStrings(t *testing.T) {
	if KindConnectionRefused.String() != "connection_refused" {
		t.Errorf("unexpected string: %q", KindConnectionRefused.String())
	}
	if Kind(999).String() != "unknown" {
		t.Errorf("out-of-range kind should stringify as unknown")
	}
}
