package ntpserver

import (
	"context"
	"fmt"
	"net"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/beevik/ntp"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

type fixedClock struct{ t time.Time }

func (c fixedClock) Now() time.Time { return c.t }

func startServer(t *testing.T, cfg Config) *Server {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	if cfg.ListenAddr == "" {
		cfg.ListenAddr = "127.0.0.1:0"
	}
	srv := New(cfg)
	if err := srv.Start(ctx); err != nil {
		cancel()
		t.Fatalf("start: %v", err)
	}
	t.Cleanup(func() {
		_ = srv.Stop()
		cancel()
	})
	return srv
}

func query(t *testing.T, c *net.UDPConn, req Packet) Packet {
	t.Helper()
	if _, err := c.Write(req.Marshal()); err != nil {
		t.Fatalf("write: %v", err)
	}
	_ = c.SetReadDeadline(time.Now().Add(2 * time.Second))
	buf := make([]byte, 1024)
	n, err := c.Read(buf)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	resp, err := ParsePacket(buf[:n])
	if err != nil {
		t.Fatalf("parse reply: %v", err)
	}
	return resp
}

func TestServer_RespondsToClientRequest(t *testing.T) {
	now := time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)
	srv := startServer(t, Config{Clock: fixedClock{t: now}, Precision: -23})

	c := dialServer(t, srv)
	req := Packet{VN: 4, Mode: ModeClient, Stratum: 3, Poll: 6, Transmit: TimestampFromTime(now.Add(-time.Second))}
	resp := query(t, c, req)

	want := Packet{
		VN:        4,
		Mode:      ModeServer,
		Stratum:   1,
		Prec:      -23,
		Reference: TimestampFromTime(now),
		Originate: req.Transmit,
		Receive:   TimestampFromTime(now),
		Transmit:  TimestampFromTime(now),
	}
	if resp != want {
		t.Fatalf("reply mismatch:\n got=%+v\nwant=%+v", resp, want)
	}

	m := srv.Metrics()
	if m.TotalRequests == 0 {
		t.Fatalf("expected requests > 0")
	}
	if m.TotalResponses == 0 {
		t.Fatalf("expected responses > 0")
	}
}

func TestServer_BeevikClient(t *testing.T) {
	srv := startServer(t, Config{Network: "udp4"})

	host, portStr, err := net.SplitHostPort(srv.Addr())
	if err != nil {
		t.Fatalf("split addr: %v", err)
	}
	port, _ := strconv.Atoi(portStr)

	resp, err := ntp.QueryWithOptions(host, ntp.QueryOptions{Port: port, Timeout: 2 * time.Second})
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if err := resp.Validate(); err != nil {
		t.Fatalf("validate: %v", err)
	}
	if resp.Stratum != 1 {
		t.Fatalf("stratum: got=%d want=1", resp.Stratum)
	}
	if resp.Leap != ntp.LeapNoWarning {
		t.Fatalf("leap: got=%v want=%v", resp.Leap, ntp.LeapNoWarning)
	}
	if resp.ReferenceID != 0 {
		t.Fatalf("reference id: got=%#x want=0", resp.ReferenceID)
	}
	if off := resp.ClockOffset; off > time.Second || off < -time.Second {
		t.Fatalf("clock offset against local server too large: %v", off)
	}
}

func TestServer_BackToBackClientsGetOwnReplies(t *testing.T) {
	for _, workers := range []int{0, 4} {
		t.Run(fmt.Sprintf("workers=%d", workers), func(t *testing.T) {
			srv := startServer(t, Config{Workers: workers})

			a := dialServer(t, srv)
			b := dialServer(t, srv)
			reqA := Packet{VN: 4, Mode: ModeClient, Transmit: Timestamp(0xAAAAAAAA_00000001)}
			reqB := Packet{VN: 3, Mode: ModeClient, Transmit: Timestamp(0xBBBBBBBB_00000002)}

			if _, err := a.Write(reqA.Marshal()); err != nil {
				t.Fatalf("write a: %v", err)
			}
			if _, err := b.Write(reqB.Marshal()); err != nil {
				t.Fatalf("write b: %v", err)
			}

			for _, tc := range []struct {
				c   *net.UDPConn
				req Packet
			}{{a, reqA}, {b, reqB}} {
				_ = tc.c.SetReadDeadline(time.Now().Add(2 * time.Second))
				buf := make([]byte, 1024)
				n, err := tc.c.Read(buf)
				if err != nil {
					t.Fatalf("read: %v", err)
				}
				resp, err := ParsePacket(buf[:n])
				if err != nil {
					t.Fatalf("parse: %v", err)
				}
				if resp.Originate != tc.req.Transmit {
					t.Fatalf("originate: got=%#x want=%#x", resp.Originate, tc.req.Transmit)
				}
				if resp.VN != tc.req.VN {
					t.Fatalf("version: got=%d want=%d", resp.VN, tc.req.VN)
				}
			}
		})
	}
}

func TestServer_MalformedDoesNotAffectOtherClients(t *testing.T) {
	srv := startServer(t, Config{})

	bad := dialServer(t, srv)
	good := dialServer(t, srv)

	if _, err := bad.Write(make([]byte, PacketSize-1)); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := bad.Write(Packet{VN: 4, Mode: 2}.Marshal()); err != nil {
		t.Fatalf("write: %v", err)
	}
	expectNoResponse(t, bad)

	req := Packet{VN: 4, Mode: ModeClient, Transmit: TimestampFromTime(time.Now())}
	resp := query(t, good, req)
	if resp.Mode != ModeServer || resp.Originate != req.Transmit {
		t.Fatalf("reply after malformed input: got=%+v", resp)
	}
}

func TestServer_ConcurrentClientsWithWorkers(t *testing.T) {
	srv := startServer(t, Config{Workers: 8})

	const clients, perClient = 6, 10
	var wg sync.WaitGroup
	errs := make(chan error, clients)
	for i := 0; i < clients; i++ {
		c := dialServer(t, srv)
		wg.Add(1)
		go func(i int, c *net.UDPConn) {
			defer wg.Done()
			buf := make([]byte, 1024)
			for j := 0; j < perClient; j++ {
				tx := Timestamp(uint64(i+1)<<32 | uint64(j))
				if _, err := c.Write(Packet{VN: 4, Mode: ModeClient, Transmit: tx}.Marshal()); err != nil {
					errs <- err
					return
				}
				_ = c.SetReadDeadline(time.Now().Add(2 * time.Second))
				n, err := c.Read(buf)
				if err != nil {
					errs <- err
					return
				}
				resp, err := ParsePacket(buf[:n])
				if err != nil {
					errs <- err
					return
				}
				if resp.Originate != tx {
					errs <- fmt.Errorf("client %d: originate got=%#x want=%#x", i, resp.Originate, tx)
					return
				}
			}
		}(i, c)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Fatalf("client: %v", err)
	}

	if got := srv.Metrics().TotalResponses; got != clients*perClient {
		t.Fatalf("responses: got=%d want=%d", got, clients*perClient)
	}
}

func TestServer_LogsOneRecordPerDatagram(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	now := time.Date(2025, 6, 1, 12, 0, 0, 250_000_000, time.UTC)
	srv := startServer(t, Config{Clock: fixedClock{t: now}, Logger: zap.New(core)})

	c := dialServer(t, srv)
	clientTx := TimestampFromTime(now.Add(-1500 * time.Microsecond))
	query(t, c, Packet{VN: 4, Mode: ModeClient, Transmit: clientTx})
	if _, err := c.Write([]byte{1, 2, 3}); err != nil {
		t.Fatalf("write: %v", err)
	}

	deadline := time.Now().Add(2 * time.Second)
	for logs.FilterMessage("ok").Len() < 1 || logs.FilterMessage("failed").Len() < 1 {
		if time.Now().After(deadline) {
			t.Fatalf("timeout waiting for log records, have %d", logs.Len())
		}
		time.Sleep(10 * time.Millisecond)
	}

	ok := logs.FilterMessage("ok").All()[0]
	if ok.Level != zapcore.InfoLevel {
		t.Fatalf("ok level: got=%v", ok.Level)
	}
	fields := ok.ContextMap()
	if fields["addr"] != "127.0.0.1" {
		t.Fatalf("addr: got=%v", fields["addr"])
	}
	wantClient := now.Add(-1500 * time.Microsecond).Local().Format(logTimeLayout)
	if fields["client"] != wantClient {
		t.Fatalf("client time: got=%v want=%v", fields["client"], wantClient)
	}
	wantServer := now.Local().Format(logTimeLayout)
	if fields["server"] != wantServer {
		t.Fatalf("server time: got=%v want=%v", fields["server"], wantServer)
	}

	failed := logs.FilterMessage("failed").All()[0]
	if failed.Level != zapcore.WarnLevel {
		t.Fatalf("failed level: got=%v", failed.Level)
	}
	if r := failed.ContextMap()["reason"]; r != reasonTooShort {
		t.Fatalf("reason: got=%v want=%v", r, reasonTooShort)
	}
}
