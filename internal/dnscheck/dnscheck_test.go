package dnscheck

import (
	"log/slog"
	"net"
	"testing"
	"time"

	"github.com/miekg/dns"
)

func testLogger() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

// startStubResolver runs a UDP DNS server on a loopback port answering every
// query with the given rcode.
func startStubResolver(t *testing.T, rcode int) string {
	t.Helper()

	pc, err := net.ListenPacket("udp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}

	srv := &dns.Server{
		PacketConn: pc,
		Handler: dns.HandlerFunc(func(w dns.ResponseWriter, req *dns.Msg) {
			m := new(dns.Msg)
			m.SetRcode(req, rcode)
			_ = w.WriteMsg(m)
		}),
	}
	go func() { _ = srv.ActivateAndServe() }()
	t.Cleanup(func() { _ = srv.Shutdown() })

	return pc.LocalAddr().String()
}

func TestCheckSuccess(t *testing.T) {
	addr := startStubResolver(t, dns.RcodeSuccess)

	c := New(2*time.Second, testLogger())
	res := c.Check(addr)
	if res.Err != nil {
		t.Fatalf("Check error: %v", res.Err)
	}
	if !res.OK {
		t.Errorf("result not OK, rcode = %d", res.Rcode)
	}
	if res.Latency <= 0 {
		t.Errorf("latency = %v, want > 0", res.Latency)
	}
}

func TestCheckErrorRcode(t *testing.T) {
	addr := startStubResolver(t, dns.RcodeServerFailure)

	c := New(2*time.Second, testLogger())
	res := c.Check(addr)
	if res.Err != nil {
		t.Fatalf("Check error: %v", res.Err)
	}
	if res.OK {
		t.Error("SERVFAIL reply reported as OK")
	}
	if res.Rcode != dns.RcodeServerFailure {
		t.Errorf("rcode = %d, want SERVFAIL", res.Rcode)
	}
}

func TestCheckUnreachable(t *testing.T) {
	// A loopback port nothing listens on. The query must fail, not hang.
	c := New(500*time.Millisecond, testLogger())
	res := c.Check("127.0.0.1:1")
	if res.Err == nil {
		t.Fatal("expected error for unreachable resolver")
	}
	if res.OK {
		t.Error("unreachable resolver reported as OK")
	}
}

func TestCheckAppendsDefaultPort(t *testing.T) {
	c := New(100*time.Millisecond, testLogger())
	res := c.Check("127.0.0.1")
	if res.Server != "127.0.0.1:53" {
		t.Errorf("server = %q, want port 53 appended", res.Server)
	}
}
