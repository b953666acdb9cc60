package ntpserver

import (
	"bytes"
	"context"
	"errors"
	"net"
	"sync"
	"time"

	"github.com/panjf2000/ants/v2"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
)

// readBufferSize is larger than PacketSize so oversized datagrams are seen
// whole and rejected rather than truncated into a valid-looking packet.
const readBufferSize = 1024

type Server struct {
	cfg Config
	log *zap.Logger

	mu      sync.RWMutex
	conn    *net.UDPConn
	pool    *ants.Pool
	running bool

	hub     *eventHub
	metrics *metrics
	limiter *limiter

	wg       sync.WaitGroup
	stopOnce sync.Once
	stopCh   chan struct{}
}

func New(cfg Config) *Server {
	cfg = cfg.normalize()
	return &Server{
		cfg:     cfg,
		log:     cfg.Logger,
		hub:     newEventHub(cfg.HistorySize),
		metrics: newMetrics(),
		limiter: newLimiter(cfg.RateLimitPerSecond, cfg.RateLimitBurst),
		stopCh:  make(chan struct{}),
	}
}

func (s *Server) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return ErrAlreadyRunning
	}
	s.running = true
	s.stopCh = make(chan struct{})
	s.stopOnce = sync.Once{}
	s.mu.Unlock()

	conn, pool, err := s.listen()
	if err != nil {
		s.mu.Lock()
		s.running = false
		s.mu.Unlock()
		return err
	}

	s.mu.Lock()
	s.conn = conn
	s.pool = pool
	s.metrics.reset(time.Now().UTC())
	s.mu.Unlock()

	s.log.Info("NTP server started",
		zap.String("addr", conn.LocalAddr().String()),
		zap.Int8("precision", s.cfg.Precision),
		zap.Int("workers", s.cfg.Workers))

	s.wg.Add(1)
	go s.serveLoop(ctx, conn, pool)
	return nil
}

func (s *Server) listen() (*net.UDPConn, *ants.Pool, error) {
	udpAddr, err := net.ResolveUDPAddr(s.cfg.Network, s.cfg.ListenAddr)
	if err != nil {
		return nil, nil, err
	}
	conn, err := net.ListenUDP(s.cfg.Network, udpAddr)
	if err != nil {
		return nil, nil, err
	}
	if s.cfg.Workers == 0 {
		return conn, nil, nil
	}
	pool, err := ants.NewPool(s.cfg.Workers)
	if err != nil {
		_ = conn.Close()
		return nil, nil, err
	}
	return conn, pool, nil
}

// Addr returns the current bound local address if running, otherwise the configured ListenAddr.
func (s *Server) Addr() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.conn != nil {
		return s.conn.LocalAddr().String()
	}
	return s.cfg.ListenAddr
}

// Precision returns the precision exponent advertised in replies.
func (s *Server) Precision() int8 { return s.cfg.Precision }

// Stop closes the socket and waits for in-flight requests to finish.
func (s *Server) Stop() error {
	s.shutdown()
	s.wg.Wait()

	s.mu.Lock()
	pool := s.pool
	s.pool = nil
	s.mu.Unlock()
	if pool != nil {
		pool.Release()
	}
	return nil
}

func (s *Server) shutdown() {
	s.stopOnce.Do(func() {
		s.mu.Lock()
		conn := s.conn
		s.conn = nil
		wasRunning := s.running
		s.running = false
		close(s.stopCh)
		s.mu.Unlock()
		if conn != nil {
			_ = conn.Close()
		}
		if wasRunning {
			s.log.Info("NTP server stopped")
		}
	})
}

func (s *Server) Subscribe() (<-chan RequestEvent, func()) {
	return s.hub.subscribe(s.cfg.EventBuffer)
}

func (s *Server) History() []RequestEvent {
	return s.hub.snapshotHistory()
}

func (s *Server) Metrics() MetricsSnapshot {
	return s.metrics.snapshot()
}

// Collector exposes the server metrics for registration with Prometheus.
func (s *Server) Collector() prometheus.Collector {
	return collector{m: s.metrics}
}

func (s *Server) serveLoop(ctx context.Context, conn *net.UDPConn, pool *ants.Pool) {
	defer s.wg.Done()

	buf := make([]byte, readBufferSize)
	for {
		select {
		case <-ctx.Done():
			s.shutdown()
			return
		case <-s.stopCh:
			return
		default:
		}

		_ = conn.SetReadDeadline(time.Now().Add(1 * time.Second))
		n, raddr, err := conn.ReadFromUDP(buf)
		if err != nil {
			if ne, ok := err.(net.Error); ok && ne.Timeout() {
				continue
			}
			if !errors.Is(err, net.ErrClosed) {
				s.log.Warn("read failed, stopping", zap.Error(err))
			}
			return
		}
		receivedAt := s.cfg.Clock.Now()

		if pool == nil {
			s.handle(conn, raddr, buf[:n], receivedAt)
			continue
		}

		payload := bytes.Clone(buf[:n])
		s.wg.Add(1)
		err = pool.Submit(func() {
			defer s.wg.Done()
			s.handle(conn, raddr, payload, receivedAt)
		})
		if err != nil {
			s.wg.Done()
			s.log.Warn("dispatch failed", zap.Stringer("addr", raddr), zap.Error(err))
		}
	}
}
