package ntpserver

import (
	"fmt"
	"time"
)

// ValidateQuery checks the only fields this server cares about in a query.
func ValidateQuery(req Packet) error {
	if req.VN > MaxVersion {
		return fmt.Errorf("%w %d", ErrUnsupportedVersion, req.VN)
	}
	if req.Mode != ModeClient {
		return fmt.Errorf("%w %d", ErrUnexpectedMode, req.Mode)
	}
	return nil
}

// BuildResponse builds the stratum 1 reply to req.
//
// The reply always advertises leap indicator 0 and zero root delay, root
// dispersion and reference ID; poll and stratum of the query are ignored.
func BuildResponse(req Packet, precision int8, receivedAt, transmittedAt time.Time) (Packet, error) {
	if err := ValidateQuery(req); err != nil {
		return Packet{}, err
	}
	recv := TimestampFromTime(receivedAt)
	return Packet{
		LI:      0,
		VN:      req.VN,
		Mode:    ModeServer,
		Stratum: 1,
		Poll:    0,
		Prec:    precision,

		Reference: recv,
		Originate: req.Transmit,
		Receive:   recv,
		Transmit:  TimestampFromTime(transmittedAt),
	}, nil
}
