package ntpserver

import "errors"

var (
	ErrAlreadyRunning = errors.New("ntpserver: already running")

	// ErrTooShort reports a datagram whose length is not PacketSize.
	ErrTooShort = errors.New("ntpserver: packet too short")
	// ErrMalformed reports a datagram that does not fit the fixed header layout.
	ErrMalformed = errors.New("ntpserver: unable to parse packet")
	// ErrUnsupportedVersion reports a query with a version above MaxVersion.
	ErrUnsupportedVersion = errors.New("ntpserver: bad version")
	// ErrUnexpectedMode reports a query that is not in client mode.
	ErrUnexpectedMode = errors.New("ntpserver: bad client mode")
)

// Error labels used by events and metrics.
const (
	reasonTooShort           = "too_short"
	reasonMalformed          = "malformed"
	reasonUnsupportedVersion = "unsupported_version"
	reasonUnexpectedMode     = "unexpected_mode"
	reasonRateLimited        = "rate_limited"
	reasonWriteFailed        = "write_failed"
)

func errorReason(err error) string {
	switch {
	case errors.Is(err, ErrTooShort):
		return reasonTooShort
	case errors.Is(err, ErrMalformed):
		return reasonMalformed
	case errors.Is(err, ErrUnsupportedVersion):
		return reasonUnsupportedVersion
	case errors.Is(err, ErrUnexpectedMode):
		return reasonUnexpectedMode
	default:
		return reasonWriteFailed
	}
}
