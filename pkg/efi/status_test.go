// pkg/efi/status_test.go
package efi

import (
	"errors"
	"fmt"
	"testing"
)

func TestFromStatus(t *testing.T) {
	cases := []Status{
		Success,
		WarnUnknownGlyph,
		WarnBufferTooSmall,
		WarnResetRequired,
		Status(0x1234),
		LoadError,
		NotReady,
		Aborted,
		HTTPError,
		ErrorBit | 0xdead,
	}

	for _, s := range cases {
		t.Run(s.String(), func(t *testing.T) {
			err := FromStatus(s)
			if s.IsError() != (err != nil) {
				t.Fatalf("FromStatus(%#x) = %v, IsError = %v", uint64(s), err, s.IsError())
			}
			if err == nil {
				return
			}

			got, ok := StatusOf(err)
			if !ok || got != s {
				t.Fatalf("StatusOf = %v, %v; want %v", got, ok, s)
			}
		})
	}
}

func TestFromStatusValue(t *testing.T) {
	v, err := FromStatusValue(WarnStaleData, 42)
	if err != nil || v != 42 {
		t.Fatalf("warning: got %d, %v", v, err)
	}

	v, err = FromStatusValue(DeviceError, 42)
	if err == nil || v != 0 {
		t.Fatalf("error: got %d, %v; payload must not leak", v, err)
	}
}

func TestStatusErrorMatching(t *testing.T) {
	err := fmt.Errorf("failed to start: %w", FromStatus(NotStarted))

	if !errors.Is(err, &StatusError{Status: NotStarted}) {
		t.Error("errors.Is does not match the same code through wrapping")
	}
	if errors.Is(err, &StatusError{Status: NotReady}) {
		t.Error("errors.Is matched a different code")
	}
	if !IsStatus(err, NotStarted) {
		t.Error("IsStatus = false")
	}
	if _, ok := StatusOf(ErrBootServicesExited); ok {
		t.Error("phase error must not carry a firmware status")
	}
}

func TestIsRetryable(t *testing.T) {
	cases := []struct {
		err  error
		want bool
	}{
		{FromStatus(NotReady), true},
		{FromStatus(Timeout), true},
		{FromStatus(NoResponse), true},
		{FromStatus(DeviceError), false},
		{FromStatus(InvalidParameter), false},
		{ErrBootServicesExited, false},
		{&ArgumentError{Op: "op", Reason: "bad"}, false},
	}

	for _, c := range cases {
		if got := IsRetryable(c.err); got != c.want {
			t.Errorf("IsRetryable(%v) = %v, want %v", c.err, got, c.want)
		}
	}
}

func TestStatusString(t *testing.T) {
	cases := map[Status]string{
		Success:          "EFI_SUCCESS",
		BufferTooSmall:   "EFI_BUFFER_TOO_SMALL",
		NotStarted:       "EFI_NOT_STARTED",
		ErrorBit | 0x100: "EFI_ERROR(0x100)",
		Status(0x42):     "EFI_WARN(0x42)",
	}

	for s, want := range cases {
		if got := s.String(); got != want {
			t.Errorf("%#x: got %q, want %q", uint64(s), got, want)
		}
	}
}

func TestStatusClasses(t *testing.T) {
	if Success.IsError() || Success.IsWarning() {
		t.Error("success is neither an error nor a warning")
	}
	if !WarnWriteFailure.IsWarning() || WarnWriteFailure.IsError() {
		t.Error("warning misclassified")
	}
	if !Aborted.IsError() || Aborted.IsWarning() {
		t.Error("error misclassified")
	}
}
