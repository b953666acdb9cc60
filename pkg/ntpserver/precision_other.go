//go:build !linux

package ntpserver

import "time"

func clockResolution() (time.Duration, bool) { return 0, false }
