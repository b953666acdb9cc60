package ntpserver

import (
	"math"
	"time"
)

// Timestamp is the 64-bit NTP timestamp (32-bit seconds, 32-bit fraction).
type Timestamp uint64

// ntpEpochOffset is the number of seconds between 1900-01-01 and 1970-01-01.
const ntpEpochOffset = 2208988800

const fractionScale = 1 << 32

// TimestampFromUnix converts fractional seconds since 1970 into an NTP timestamp.
//
// Times before 1900 produce a negative intermediate; the seconds wrap into the
// 32-bit field instead of failing and do not decode back to the input.
func TimestampFromUnix(sec float64) Timestamp {
	t := sec + ntpEpochOffset
	whole := math.Trunc(t)
	frac := uint64(math.Abs(t-whole) * fractionScale)
	return Timestamp(uint64(int64(whole))<<32 | frac&0xffffffff)
}

// TimestampFromTime converts t into an NTP timestamp using integer arithmetic.
func TimestampFromTime(t time.Time) Timestamp {
	seconds := uint64(int64(ntpEpochOffset) + t.Unix())
	fraction := uint64(t.Nanosecond()) * fractionScale / 1_000_000_000
	return Timestamp(seconds<<32 | fraction&0xffffffff)
}

// Seconds returns the whole seconds since the NTP epoch.
func (ts Timestamp) Seconds() uint32 { return uint32(ts >> 32) }

// Fraction returns the binary fraction of a second.
func (ts Timestamp) Fraction() uint32 { return uint32(ts) }

// Unix returns ts as fractional seconds since 1970.
func (ts Timestamp) Unix() float64 {
	return float64(ts.Seconds()) + float64(ts.Fraction())/fractionScale - ntpEpochOffset
}

// Time returns ts as a UTC time, rounded to the nearest nanosecond.
func (ts Timestamp) Time() time.Time {
	sec := int64(ts.Seconds()) - ntpEpochOffset
	nsec := (uint64(ts.Fraction())*1_000_000_000 + fractionScale/2) >> 32
	return time.Unix(sec, int64(nsec)).UTC()
}
