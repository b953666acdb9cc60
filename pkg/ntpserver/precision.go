package ntpserver

import "time"

// defaultResolution is assumed when the host clock resolution is unknown.
const defaultResolution = time.Nanosecond

// ComputePrecision returns the log2 exponent of the realtime clock resolution.
// It is meant to be called once at startup.
func ComputePrecision() int8 {
	res, ok := clockResolution()
	if !ok || res <= 0 {
		res = defaultResolution
	}
	return precisionFromResolution(res)
}

// precisionFromResolution counts how many times the tick rate can be halved
// before reaching one tick per second.
func precisionFromResolution(res time.Duration) int8 {
	if res <= 0 {
		res = defaultResolution
	}
	hz := int64(time.Second / res)
	var precision int8
	for hz > 1 {
		precision--
		hz >>= 1
	}
	return precision
}
