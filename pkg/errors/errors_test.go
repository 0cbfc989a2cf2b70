package errors

import (
	"fmt"
	"strings"
	"testing"
)

func TestReconcilerError_Error(t *testing.T) {
	err := New(CategoryParse, CodeInvalidData, "bad value")
	if err.Error() != "bad value" {
		t.Errorf("Error() = %q, want %q", err.Error(), "bad value")
	}

	err = err.WithSuggestion("fix the value")
	if !strings.Contains(err.Error(), "suggestion: fix the value") {
		t.Errorf("Error() should include suggestion, got %q", err.Error())
	}
}

func TestWrap_NilError(t *testing.T) {
	if Wrap(nil, CategoryFile, CodeFileNotFound, "whatever") != nil {
		t.Errorf("Wrap(nil, ...) should return nil")
	}
}

func TestWrap_PreservesCause(t *testing.T) {
	cause := fmt.Errorf("underlying failure")
	err := Wrap(cause, CategoryInternal, CodeUnexpectedError, "outer")

	if err.Unwrap() != cause {
		t.Errorf("Unwrap() should return the wrapped cause")
	}
}

func TestGetExitCode_ByCategory(t *testing.T) {
	tests := []struct {
		category ErrorCategory
		code     int
	}{
		{CategoryFile, 2},
		{CategoryParse, 3},
		{CategoryValidation, 3},
		{CategoryConfiguration, 4},
		{CategoryReconciliation, 5},
		{CategoryInternal, 5},
	}

	for _, tt := range tests {
		err := New(tt.category, CodeUnexpectedError, "test")
		if got := err.GetExitCode(); got != tt.code {
			t.Errorf("GetExitCode() for %s = %d, want %d", tt.category, got, tt.code)
		}
	}

	if GetExitCode(fmt.Errorf("plain error")) != 1 {
		t.Errorf("plain errors should map to exit code 1")
	}
}

func TestParseError_Context(t *testing.T) {
	err := ParseError(CodeInvalidData, "orders CSV", 5, "original_amount", "abc", fmt.Errorf("bad decimal"))

	if err.Category != CategoryParse {
		t.Errorf("category = %s, want %s", err.Category, CategoryParse)
	}
	if err.Context["row"] != 5 {
		t.Errorf("row context = %v, want 5", err.Context["row"])
	}
	if !strings.Contains(err.Message, "row 5") || !strings.Contains(err.Message, "original_amount") {
		t.Errorf("message should name the row and column, got %q", err.Message)
	}
}

func TestIsCategory(t *testing.T) {
	err := FileError(CodeFileNotFound, "/tmp/missing.csv", nil)

	if !IsCategory(err, CategoryFile) {
		t.Errorf("IsCategory should match the error's category")
	}
	if IsCategory(err, CategoryParse) {
		t.Errorf("IsCategory should not match a different category")
	}
	if IsCategory(fmt.Errorf("plain"), CategoryFile) {
		t.Errorf("IsCategory should be false for plain errors")
	}
}
