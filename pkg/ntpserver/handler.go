package ntpserver

import (
	"errors"
	"net"
	"time"

	"go.uber.org/zap"
)

var errRateLimited = errors.New("ntpserver: rate limited")

// handle answers one datagram. It never retains payload.
func (s *Server) handle(conn *net.UDPConn, raddr *net.UDPAddr, payload []byte, receivedAt time.Time) {
	start := time.Now()

	ev := RequestEvent{At: receivedAt, RawLen: len(payload)}
	var ip net.IP
	if raddr != nil {
		ip = raddr.IP
		ev.ClientIP = raddr.IP.String()
		ev.ClientPort = raddr.Port
		ev.ClientAddr = raddr.String()
	}
	if s.cfg.Countries != nil && ip != nil {
		ev.Country = s.cfg.Countries.Country(ip)
	}
	s.metrics.incRequest(ev.ClientIP, ev.Country, receivedAt)

	fail := func(reason string, err error) {
		ev.Error = reason
		ev.ProcessingUSec = time.Since(start).Microseconds()
		s.metrics.incError(reason)
		s.hub.publish(ev)
		s.log.Warn("failed",
			zap.String("addr", ev.ClientIP),
			zap.Int("port", ev.ClientPort),
			zap.String("reason", reason),
			zap.Error(err))
	}

	if !s.limiter.allow(ev.ClientIP, start) {
		ev.PacketValid = true
		fail(reasonRateLimited, errRateLimited)
		return
	}

	req, err := ParsePacket(payload)
	if err != nil {
		fail(errorReason(err), err)
		return
	}
	ev.PacketValid = true
	ev.Version = req.VN
	ev.Mode = req.Mode
	ev.Originate = req.Transmit

	if ce := s.log.Check(zap.DebugLevel, "query"); ce != nil {
		ce.Write(zap.String("addr", ev.ClientAddr), packetField("packet", &req))
	}

	if err := ValidateQuery(req); err != nil {
		fail(errorReason(err), err)
		return
	}

	if s.cfg.Hook != nil {
		meta := RequestMeta{ReceivedAt: receivedAt, ClientIP: ev.ClientIP, ClientPort: ev.ClientPort, RawLen: len(payload)}
		if dropReason := s.cfg.Hook(req, meta); dropReason != "" {
			fail(dropReason, nil)
			return
		}
	}

	resp, err := BuildResponse(req, s.cfg.Precision, receivedAt, s.cfg.Clock.Now())
	if err != nil {
		fail(errorReason(err), err)
		return
	}

	if _, err := conn.WriteToUDP(resp.Marshal(), raddr); err != nil {
		fail(reasonWriteFailed, err)
		return
	}

	s.metrics.incResponse()
	ev.Responded = true
	ev.Receive = resp.Receive
	ev.ProcessingUSec = time.Since(start).Microseconds()
	s.hub.publish(ev)

	if ce := s.log.Check(zap.DebugLevel, "reply"); ce != nil {
		ce.Write(zap.String("addr", ev.ClientAddr), packetField("packet", &resp))
	}
	s.log.Info("ok",
		zap.String("addr", ev.ClientIP),
		zap.String("client", formatTimestamp(resp.Originate)),
		zap.String("server", formatTimestamp(resp.Receive)))
}
