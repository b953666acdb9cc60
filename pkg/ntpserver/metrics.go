package ntpserver

import (
	"maps"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

type metrics struct {
	startedAt atomic.Value // time.Time

	totalRequests  atomic.Uint64
	totalResponses atomic.Uint64
	totalErrors    atomic.Uint64

	lastRequestAt atomic.Value // time.Time
	lastRequestIP atomic.Value // string

	mu        sync.Mutex
	byIP      map[string]uint64
	byReason  map[string]uint64
	byCountry map[string]uint64
}

func newMetrics() *metrics {
	m := &metrics{}
	m.reset(time.Time{})
	return m
}

func (m *metrics) reset(startedAt time.Time) {
	m.totalRequests.Store(0)
	m.totalResponses.Store(0)
	m.totalErrors.Store(0)
	m.startedAt.Store(startedAt)
	m.lastRequestAt.Store(time.Time{})
	m.lastRequestIP.Store("")
	m.mu.Lock()
	m.byIP = make(map[string]uint64)
	m.byReason = make(map[string]uint64)
	m.byCountry = make(map[string]uint64)
	m.mu.Unlock()
}

func (m *metrics) incRequest(ip, country string, at time.Time) {
	m.totalRequests.Add(1)
	m.lastRequestAt.Store(at)
	m.lastRequestIP.Store(ip)
	if ip == "" {
		return
	}
	m.mu.Lock()
	m.byIP[ip]++
	if country != "" {
		m.byCountry[country]++
	}
	m.mu.Unlock()
}

func (m *metrics) incResponse() {
	m.totalResponses.Add(1)
}

func (m *metrics) incError(reason string) {
	m.totalErrors.Add(1)
	m.mu.Lock()
	m.byReason[reason]++
	m.mu.Unlock()
}

func (m *metrics) snapshot() MetricsSnapshot {
	startedAt, _ := m.startedAt.Load().(time.Time)
	lastAt, _ := m.lastRequestAt.Load().(time.Time)
	lastIP, _ := m.lastRequestIP.Load().(string)

	m.mu.Lock()
	counts := make([]ClientCount, 0, len(m.byIP))
	for ip, c := range m.byIP {
		counts = append(counts, ClientCount{ClientIP: ip, Count: c})
	}
	unique := len(m.byIP)
	reasons := maps.Clone(m.byReason)
	countries := maps.Clone(m.byCountry)
	m.mu.Unlock()

	sort.Slice(counts, func(i, j int) bool {
		if counts[i].Count == counts[j].Count {
			return counts[i].ClientIP < counts[j].ClientIP
		}
		return counts[i].Count > counts[j].Count
	})
	if len(counts) > 10 {
		counts = counts[:10]
	}

	return MetricsSnapshot{
		StartedAt:      startedAt,
		TotalRequests:  m.totalRequests.Load(),
		TotalResponses: m.totalResponses.Load(),
		TotalErrors:    m.totalErrors.Load(),
		ErrorsByReason: reasons,
		Countries:      countries,
		LastRequestAt:  lastAt,
		LastRequestIP:  lastIP,
		UniqueClients:  unique,
		TopClients:     counts,
	}
}

var (
	requestsDesc = prometheus.NewDesc(
		"ntp_requests_total", "The total number of ntp requests received.", nil, nil)
	responsesDesc = prometheus.NewDesc(
		"ntp_responses_total", "The total number of ntp replies sent.", nil, nil)
	errorsDesc = prometheus.NewDesc(
		"ntp_errors_total", "Requests dropped without a reply, by reason.", []string{"reason"}, nil)
	countryDesc = prometheus.NewDesc(
		"ntp_requests_by_country_total", "Requests received, by client country.", []string{"cc"}, nil)
	uniqueClientsDesc = prometheus.NewDesc(
		"ntp_unique_clients", "Distinct client addresses seen since start.", nil, nil)
	startedDesc = prometheus.NewDesc(
		"ntp_start_time_seconds", "Unix time the server started listening.", nil, nil)
)

// collector exposes a metrics snapshot to Prometheus.
type collector struct {
	m *metrics
}

func (c collector) Describe(ch chan<- *prometheus.Desc) {
	ch <- requestsDesc
	ch <- responsesDesc
	ch <- errorsDesc
	ch <- countryDesc
	ch <- uniqueClientsDesc
	ch <- startedDesc
}

func (c collector) Collect(ch chan<- prometheus.Metric) {
	s := c.m.snapshot()
	ch <- prometheus.MustNewConstMetric(requestsDesc, prometheus.CounterValue, float64(s.TotalRequests))
	ch <- prometheus.MustNewConstMetric(responsesDesc, prometheus.CounterValue, float64(s.TotalResponses))
	for reason, n := range s.ErrorsByReason {
		ch <- prometheus.MustNewConstMetric(errorsDesc, prometheus.CounterValue, float64(n), reason)
	}
	for cc, n := range s.Countries {
		ch <- prometheus.MustNewConstMetric(countryDesc, prometheus.CounterValue, float64(n), cc)
	}
	ch <- prometheus.MustNewConstMetric(uniqueClientsDesc, prometheus.GaugeValue, float64(s.UniqueClients))
	if !s.StartedAt.IsZero() {
		ch <- prometheus.MustNewConstMetric(startedDesc, prometheus.GaugeValue, float64(s.StartedAt.Unix()))
	}
}
