package errors

import (
	"errors"
	"testing"
)

func TestNew(t *testing.T) {
	err := New(ErrCodeUnknownInstance, "no component named %q", "foo")

	if err.Code != ErrCodeUnknownInstance {
		t.Errorf("Code = %v, want %v", err.Code, ErrCodeUnknownInstance)
	}

	if err.Message != `no component named "foo"` {
		t.Errorf("Message = %v", err.Message)
	}

	expected := `UNKNOWN_INSTANCE: no component named "foo"`
	if err.Error() != expected {
		t.Errorf("Error() = %v, want %v", err.Error(), expected)
	}
}

func TestWrap(t *testing.T) {
	cause := errors.New("connection refused")
	err := Wrap(ErrCodeFetchFailure, cause, "fetch %s", "wasi:http@0.2.0")

	if err.Code != ErrCodeFetchFailure {
		t.Errorf("Code = %v, want %v", err.Code, ErrCodeFetchFailure)
	}
	if errors.Unwrap(err) != cause {
		t.Errorf("Unwrap() = %v, want %v", errors.Unwrap(err), cause)
	}
	if !errors.Is(err, cause) {
		t.Error("errors.Is(err, cause) = false, want true")
	}

	want := "FETCH_FAILURE: fetch wasi:http@0.2.0: connection refused"
	if err.Error() != want {
		t.Errorf("Error() = %q, want %q", err.Error(), want)
	}
}

func TestIs(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		code     Code
		expected bool
	}{
		{"matching code", New(ErrCodeAmbiguousExport, "x"), ErrCodeAmbiguousExport, true},
		{"non-matching code", New(ErrCodeAmbiguousExport, "x"), ErrCodeCyclicInstantiation, false},
		{"outer code wins", Wrap(ErrCodeFetchFailure, New(ErrCodeInvalidInput, "inner"), "outer"), ErrCodeFetchFailure, true},
		{"fmt wrapped", wrapf(New(ErrCodeUnresolvedImport, "x")), ErrCodeUnresolvedImport, true},
		{"non-Error type", errors.New("plain"), ErrCodeInvalidInput, false},
		{"nil", nil, ErrCodeInvalidInput, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Is(tt.err, tt.code); got != tt.expected {
				t.Errorf("Is() = %v, want %v", got, tt.expected)
			}
		})
	}
}

func wrapf(err error) error {
	return &wrapper{err}
}

type wrapper struct{ err error }

func (w *wrapper) Error() string { return "wrapped: " + w.err.Error() }
func (w *wrapper) Unwrap() error { return w.err }

func TestGetCode(t *testing.T) {
	if got := GetCode(New(ErrCodeConflictingPackage, "x")); got != ErrCodeConflictingPackage {
		t.Errorf("GetCode() = %v", got)
	}
	if got := GetCode(errors.New("plain")); got != "" {
		t.Errorf("GetCode(plain) = %v, want empty", got)
	}
}

func TestContextSetters(t *testing.T) {
	err := New(ErrCodeUnresolvedImport, "no provider").
		WithImport("frontend", "api").
		WithPackage("example:api@1.0.0").
		WithDetail("raw")

	if err.Instance != "frontend" || err.Import != "api" {
		t.Errorf("instance/import = %q/%q", err.Instance, err.Import)
	}
	if err.Package != "example:api@1.0.0" {
		t.Errorf("Package = %q", err.Package)
	}
	if err.Detail != "raw" {
		t.Errorf("Detail = %q", err.Detail)
	}
}

func TestUserMessage(t *testing.T) {
	if got := UserMessage(New(ErrCodeInvalidInput, "bad")); got != "bad" {
		t.Errorf("UserMessage() = %q", got)
	}
	if got := UserMessage(errors.New("plain")); got != "plain" {
		t.Errorf("UserMessage() = %q", got)
	}
}

func TestWarningString(t *testing.T) {
	w := NewWarning(WarnProfileFallback, "f", "profile %q not available", "debug")
	if w.String() != `PROFILE_FALLBACK: profile "debug" not available` {
		t.Errorf("String() = %q", w.String())
	}
	if w.Instance != "f" {
		t.Errorf("Instance = %q", w.Instance)
	}
}
