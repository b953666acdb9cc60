package ntpserver

import "go.uber.org/zap"

type Config struct {
	ListenAddr string
	// Network is "udp", "udp4" or "udp6". Defaults to "udp".
	Network string

	// Clock defaults to a system UTC clock.
	Clock Clock

	// Precision is advertised in every reply. Zero means it is computed
	// from the host clock resolution when the server is created.
	Precision int8

	// Workers > 0 dispatches each datagram to a pool of that size.
	// Zero handles datagrams one at a time on the read loop.
	Workers int

	// RateLimitPerSecond enables a per-IP token bucket limiter.
	// Set to 0 to disable.
	RateLimitPerSecond float64
	RateLimitBurst     int

	// EventBuffer is the buffer size per subscriber.
	EventBuffer int
	// HistorySize is how many recent events are kept.
	HistorySize int

	// Hook is called after validation, before responding.
	// If it returns a non-empty string, the request is dropped.
	Hook PacketHook

	// Countries resolves client IPs to ISO country codes for metrics.
	// Optional.
	Countries CountryResolver

	// Logger receives one record per datagram. Defaults to a no-op logger.
	Logger *zap.Logger
}

func (c Config) normalize() Config {
	out := c
	if out.ListenAddr == "" {
		out.ListenAddr = "0.0.0.0:123"
	}
	if out.Network == "" {
		out.Network = "udp"
	}
	if out.Clock == nil {
		out.Clock = systemClock{}
	}
	if out.Precision == 0 {
		out.Precision = ComputePrecision()
	}
	if out.Workers < 0 {
		out.Workers = 0
	}
	if out.EventBuffer <= 0 {
		out.EventBuffer = 128
	}
	if out.HistorySize <= 0 {
		out.HistorySize = 500
	}
	if out.RateLimitBurst <= 0 {
		out.RateLimitBurst = 5
	}
	if out.Logger == nil {
		out.Logger = zap.NewNop()
	}
	return out
}
