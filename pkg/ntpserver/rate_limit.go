package ntpserver

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

type limiter struct {
	mu    sync.Mutex
	perIP map[string]*rate.Limiter

	ratePerSec float64
	burst      int
}

func newLimiter(ratePerSec float64, burst int) *limiter {
	if burst <= 0 {
		burst = 1
	}
	return &limiter{
		perIP:      make(map[string]*rate.Limiter),
		ratePerSec: ratePerSec,
		burst:      burst,
	}
}

func (l *limiter) allow(ip string, now time.Time) bool {
	if l.ratePerSec <= 0 {
		return true
	}
	if ip == "" {
		return true
	}

	l.mu.Lock()
	b := l.perIP[ip]
	if b == nil {
		b = rate.NewLimiter(rate.Limit(l.ratePerSec), l.burst)
		l.perIP[ip] = b
	}
	l.mu.Unlock()

	return b.AllowN(now, 1)
}
