//go:build linux

package ntpserver

import (
	"time"

	"golang.org/x/sys/unix"
)

func clockResolution() (time.Duration, bool) {
	var ts unix.Timespec
	if err := unix.ClockGetres(unix.CLOCK_REALTIME, &ts); err != nil {
		return 0, false
	}
	return time.Duration(ts.Nano()), true
}
