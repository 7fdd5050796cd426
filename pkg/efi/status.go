// pkg/efi/status.go
package efi

import "fmt"

// Status is the raw EFI_STATUS returned by every firmware service. It is a
// UINTN: success and warnings are small non-negative values, errors have the
// top bit set.
type Status uint64

// ErrorBit marks the error range of the status domain.
const ErrorBit Status = 1 << 63

// Success and warning codes
const (
	Success Status = iota
	WarnUnknownGlyph
	WarnDeleteFailure
	WarnWriteFailure
	WarnBufferTooSmall
	WarnStaleData
	WarnFileSystem
	WarnResetRequired
)

// Error codes
const (
	LoadError           = ErrorBit | 1
	InvalidParameter    = ErrorBit | 2
	Unsupported         = ErrorBit | 3
	BadBufferSize       = ErrorBit | 4
	BufferTooSmall      = ErrorBit | 5
	NotReady            = ErrorBit | 6
	DeviceError         = ErrorBit | 7
	WriteProtected      = ErrorBit | 8
	OutOfResources      = ErrorBit | 9
	VolumeCorrupted     = ErrorBit | 10
	VolumeFull          = ErrorBit | 11
	NoMedia             = ErrorBit | 12
	MediaChanged        = ErrorBit | 13
	NotFound            = ErrorBit | 14
	AccessDenied        = ErrorBit | 15
	NoResponse          = ErrorBit | 16
	NoMapping           = ErrorBit | 17
	Timeout             = ErrorBit | 18
	NotStarted          = ErrorBit | 19
	AlreadyStarted      = ErrorBit | 20
	Aborted             = ErrorBit | 21
	IcmpError           = ErrorBit | 22
	TftpError           = ErrorBit | 23
	ProtocolError       = ErrorBit | 24
	IncompatibleVersion = ErrorBit | 25
	SecurityViolation   = ErrorBit | 26
	CrcError            = ErrorBit | 27
	EndOfMedia          = ErrorBit | 28
	EndOfFile           = ErrorBit | 31
	InvalidLanguage     = ErrorBit | 32
	CompromisedData     = ErrorBit | 33
	IPAddressConflict   = ErrorBit | 34
	HTTPError           = ErrorBit | 35
)

var statusNames = map[Status]string{
	Success:             "EFI_SUCCESS",
	WarnUnknownGlyph:    "EFI_WARN_UNKNOWN_GLYPH",
	WarnDeleteFailure:   "EFI_WARN_DELETE_FAILURE",
	WarnWriteFailure:    "EFI_WARN_WRITE_FAILURE",
	WarnBufferTooSmall:  "EFI_WARN_BUFFER_TOO_SMALL",
	WarnStaleData:       "EFI_WARN_STALE_DATA",
	WarnFileSystem:      "EFI_WARN_FILE_SYSTEM",
	WarnResetRequired:   "EFI_WARN_RESET_REQUIRED",
	LoadError:           "EFI_LOAD_ERROR",
	InvalidParameter:    "EFI_INVALID_PARAMETER",
	Unsupported:         "EFI_UNSUPPORTED",
	BadBufferSize:       "EFI_BAD_BUFFER_SIZE",
	BufferTooSmall:      "EFI_BUFFER_TOO_SMALL",
	NotReady:            "EFI_NOT_READY",
	DeviceError:         "EFI_DEVICE_ERROR",
	WriteProtected:      "EFI_WRITE_PROTECTED",
	OutOfResources:      "EFI_OUT_OF_RESOURCES",
	VolumeCorrupted:     "EFI_VOLUME_CORRUPTED",
	VolumeFull:          "EFI_VOLUME_FULL",
	NoMedia:             "EFI_NO_MEDIA",
	MediaChanged:        "EFI_MEDIA_CHANGED",
	NotFound:            "EFI_NOT_FOUND",
	AccessDenied:        "EFI_ACCESS_DENIED",
	NoResponse:          "EFI_NO_RESPONSE",
	NoMapping:           "EFI_NO_MAPPING",
	Timeout:             "EFI_TIMEOUT",
	NotStarted:          "EFI_NOT_STARTED",
	AlreadyStarted:      "EFI_ALREADY_STARTED",
	Aborted:             "EFI_ABORTED",
	IcmpError:           "EFI_ICMP_ERROR",
	TftpError:           "EFI_TFTP_ERROR",
	ProtocolError:       "EFI_PROTOCOL_ERROR",
	IncompatibleVersion: "EFI_INCOMPATIBLE_VERSION",
	SecurityViolation:   "EFI_SECURITY_VIOLATION",
	CrcError:            "EFI_CRC_ERROR",
	EndOfMedia:          "EFI_END_OF_MEDIA",
	EndOfFile:           "EFI_END_OF_FILE",
	InvalidLanguage:     "EFI_INVALID_LANGUAGE",
	CompromisedData:     "EFI_COMPROMISED_DATA",
	IPAddressConflict:   "EFI_IP_ADDRESS_CONFLICT",
	HTTPError:           "EFI_HTTP_ERROR",
}

// IsError reports whether s lies in the error range.
func (s Status) IsError() bool {
	return s&ErrorBit != 0
}

// IsWarning reports whether s is a non-zero, non-error status.
func (s Status) IsWarning() bool {
	return s != Success && !s.IsError()
}

// String returns the EFI name of the status, or its hex value for codes
// without one.
func (s Status) String() string {
	if name, ok := statusNames[s]; ok {
		return name
	}

	if s.IsError() {
		return fmt.Sprintf("EFI_ERROR(%#x)", uint64(s&^ErrorBit))
	}

	return fmt.Sprintf("EFI_WARN(%#x)", uint64(s))
}

// FromStatus converts a raw status into an error. Success and every warning
// map to nil; the error range maps to a *StatusError carrying the code.
func FromStatus(s Status) error {
	if !s.IsError() {
		return nil
	}

	return &StatusError{Status: s}
}

// FromStatusValue is FromStatus for calls that produce a payload. The payload
// is only returned on success; on failure the zero value is returned along
// with the error.
func FromStatusValue[T any](s Status, v T) (T, error) {
	if err := FromStatus(s); err != nil {
		var zero T
		return zero, err
	}

	return v, nil
}
