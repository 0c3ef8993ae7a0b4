package errors

import (
	stderr "errors"
	"fmt"
	"strings"
	"testing"
)

func TestNewError(t *testing.T) {
	err := NewError(ErrCodeRouteUnresolved, "no route matches /nope")

	if err.Code != ErrCodeRouteUnresolved {
		t.Errorf("expected code %s, got %s", ErrCodeRouteUnresolved, err.Code)
	}
	if err.Category != CategoryRouting {
		t.Errorf("expected routing category, got %s", err.Category)
	}
	if err.Timestamp.IsZero() {
		t.Error("expected timestamp set")
	}
	if err.Retryable {
		t.Error("route resolution errors must not be retryable by default")
	}
}

func TestErrorString(t *testing.T) {
	tests := []struct {
		name string
		err  *PreNavError
		want string
	}{
		{
			name: "bare",
			err:  NewError(ErrCodeFetchFailed, "session fetch failed"),
			want: "FETCH_FAILED: session fetch failed",
		},
		{
			name: "with component",
			err:  NewError(ErrCodeFetchFailed, "session fetch failed").WithComponent("navigator"),
			want: "[navigator] FETCH_FAILED: session fetch failed",
		},
		{
			name: "with component and operation",
			err: NewError(ErrCodeFetchFailed, "session fetch failed").
				WithComponent("navigator").
				WithOperation("navigate"),
			want: "[navigator:navigate] FETCH_FAILED: session fetch failed",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.Error(); got != tt.want {
				t.Errorf("Error() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestGetCategory(t *testing.T) {
	tests := []struct {
		code ErrorCode
		want ErrorCategory
	}{
		{ErrCodeInvalidConfig, CategoryConfiguration},
		{ErrCodeConfigLoad, CategoryConfiguration},
		{ErrCodeRouteUnresolved, CategoryRouting},
		{ErrCodeFetchTimeout, CategoryFetch},
		{ErrCodeNetworkError, CategoryFetch},
		{ErrCodePatternFetch, CategoryFetch},
		{ErrCodeFetcherMissing, CategoryFetch},
		{ErrCodeCacheFull, CategoryCache},
		{ErrCodeEntryStale, CategoryCache},
		{ErrCodeSnapshotDecode, CategorySnapshot},
		{ErrCodeNotInitialized, CategoryState},
		{ErrCodeOperationTimeout, CategoryOperation},
		{ErrCodeRetryExhausted, CategoryOperation},
		{ErrCodeInternalError, CategoryInternal},
		{ErrorCode("SOMETHING_ELSE"), CategoryInternal},
	}

	for _, tt := range tests {
		t.Run(string(tt.code), func(t *testing.T) {
			if got := GetCategory(tt.code); got != tt.want {
				t.Errorf("GetCategory(%s) = %s, want %s", tt.code, got, tt.want)
			}
		})
	}
}

func TestWrapPreservesCause(t *testing.T) {
	cause := fmt.Errorf("connection refused")
	err := Wrap(cause, ErrCodeNetworkError, "pattern feed unreachable")

	if !stderr.Is(err, cause) {
		t.Error("expected wrapped cause reachable via errors.Is")
	}
	if err.Unwrap() != cause {
		t.Error("expected Unwrap to return the cause")
	}
	if !err.Retryable {
		t.Error("network errors are retryable by default")
	}
}

func TestIsMatchesByCode(t *testing.T) {
	err := NewError(ErrCodeEntryExpired, "session expired").WithComponent("cache")
	target := NewError(ErrCodeEntryExpired, "different message")

	if !stderr.Is(err, target) {
		t.Error("expected errors with the same code to match")
	}

	other := NewError(ErrCodeCacheFull, "cache full")
	if stderr.Is(err, other) {
		t.Error("expected errors with different codes not to match")
	}
}

func TestIsRetryable(t *testing.T) {
	retryable := NewError(ErrCodeFetchTimeout, "slow upstream")
	if !IsRetryable(retryable) {
		t.Error("expected fetch timeout retryable")
	}

	overridden := NewError(ErrCodeFetchTimeout, "slow upstream").WithRetryable(false)
	if IsRetryable(overridden) {
		t.Error("expected retryable override respected")
	}

	wrapped := fmt.Errorf("outer: %w", NewError(ErrCodeNetworkError, "flaky"))
	if !IsRetryable(wrapped) {
		t.Error("expected retryable error found through the chain")
	}

	if IsRetryable(fmt.Errorf("plain error")) {
		t.Error("expected plain errors not retryable")
	}
	if IsRetryable(nil) {
		t.Error("expected nil not retryable")
	}
}

func TestCodeOf(t *testing.T) {
	err := NewError(ErrCodeSnapshotStore, "put failed")
	if got := CodeOf(err); got != ErrCodeSnapshotStore {
		t.Errorf("CodeOf = %s, want %s", got, ErrCodeSnapshotStore)
	}

	wrapped := fmt.Errorf("outer: %w", err)
	if got := CodeOf(wrapped); got != ErrCodeSnapshotStore {
		t.Errorf("CodeOf through chain = %s, want %s", got, ErrCodeSnapshotStore)
	}

	if got := CodeOf(fmt.Errorf("plain")); got != ErrCodeInternalError {
		t.Errorf("CodeOf(plain) = %s, want %s", got, ErrCodeInternalError)
	}
}

func TestWithContext(t *testing.T) {
	err := NewError(ErrCodeFetchFailed, "fetch failed").
		WithContext("session_id", "blog-hello").
		WithContext("attempt", "2")

	if err.Context["session_id"] != "blog-hello" {
		t.Errorf("expected context value, got %q", err.Context["session_id"])
	}
	if err.Context["attempt"] != "2" {
		t.Errorf("expected context value, got %q", err.Context["attempt"])
	}
}

func TestJSON(t *testing.T) {
	err := NewError(ErrCodeRouteUnresolved, "no route").WithComponent("router")
	out := err.JSON()

	for _, fragment := range []string{`"code":"ROUTE_UNRESOLVED"`, `"category":"routing"`, `"component":"router"`} {
		if !strings.Contains(out, fragment) {
			t.Errorf("expected JSON to contain %s, got %s", fragment, out)
		}
	}
}
