package ntpserver

import "time"

// Clock abstracts the wall clock the server stamps replies with.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now().UTC() }

// RequestEvent captures a single UDP request as observed by the server.
type RequestEvent struct {
	At             time.Time `json:"at"`
	ClientAddr     string    `json:"client_addr"`
	ClientIP       string    `json:"client_ip"`
	ClientPort     int       `json:"client_port"`
	Country        string    `json:"country,omitempty"`
	RawLen         int       `json:"raw_len"`
	Version        uint8     `json:"version"`
	Mode           uint8     `json:"mode"`
	PacketValid    bool      `json:"packet_valid"`
	Responded      bool      `json:"responded"`
	Originate      Timestamp `json:"originate,omitempty"`
	Receive        Timestamp `json:"receive,omitempty"`
	Error          string    `json:"error,omitempty"`
	ProcessingUSec int64     `json:"processing_usec"`
}

type ClientCount struct {
	ClientIP string `json:"client_ip"`
	Count    uint64 `json:"count"`
}

type MetricsSnapshot struct {
	StartedAt      time.Time         `json:"started_at"`
	TotalRequests  uint64            `json:"total_requests"`
	TotalResponses uint64            `json:"total_responses"`
	TotalErrors    uint64            `json:"total_errors"`
	ErrorsByReason map[string]uint64 `json:"errors_by_reason"`
	Countries      map[string]uint64 `json:"countries,omitempty"`
	LastRequestAt  time.Time         `json:"last_request_at"`
	LastRequestIP  string            `json:"last_request_ip"`
	UniqueClients  int               `json:"unique_clients"`
	TopClients     []ClientCount     `json:"top_clients"`
}

// PacketHook is called for every valid query before the reply is sent.
// A non-empty return value drops the request and is recorded as its error.
type PacketHook func(req Packet, meta RequestMeta) (dropReason string)

type RequestMeta struct {
	ReceivedAt time.Time
	ClientIP   string
	ClientPort int
	RawLen     int
}
