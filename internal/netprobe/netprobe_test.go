package netprobe

import (
	"context"
	"log/slog"
	"net"
	"testing"
	"time"
)

func TestDegradedModeProbesClear(t *testing.T) {
	// No socket: the zero-value prober is the degraded mode NewProber falls
	// back to without CAP_NET_RAW.
	p := &Prober{logger: slog.New(slog.DiscardHandler)}

	if p.Available() {
		t.Error("prober without a socket must not report available")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	answered, err := p.Probe(ctx, net.IPv4(192, 168, 1, 1))
	if err != nil {
		t.Fatalf("degraded probe error: %v", err)
	}
	if answered {
		t.Error("degraded probe must report unanswered")
	}
	if err := p.Close(); err != nil {
		t.Errorf("Close in degraded mode: %v", err)
	}
}

func TestProbeLoopback(t *testing.T) {
	p, err := NewProber(slog.New(slog.DiscardHandler))
	if err != nil {
		t.Fatalf("NewProber: %v", err)
	}
	defer p.Close()
	if !p.Available() {
		t.Skip("no raw ICMP socket in this environment")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	answered, err := p.Probe(ctx, net.IPv4(127, 0, 0, 1))
	if err != nil {
		t.Fatalf("Probe: %v", err)
	}
	if !answered {
		t.Error("loopback did not answer the echo")
	}
}
