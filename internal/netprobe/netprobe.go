// Package netprobe verifies gateway reachability after a bind with an ICMP
// echo (RFC 792). A silent gateway is reported, never acted on.
package netprobe

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"os"
	"sync"
	"time"

	"golang.org/x/net/icmp"
	"golang.org/x/net/ipv4"

	"github.com/athena-dhcpd/athena-dhcpc/internal/metrics"
)

// Prober sends ICMP Echo Requests to the leased gateway. The socket is
// opened once and shared across probes.
type Prober struct {
	conn      *icmp.PacketConn
	logger    *slog.Logger
	available bool
	seq       uint16
	mu        sync.Mutex
}

// NewProber creates a gateway prober. If raw ICMP socket creation fails
// (missing CAP_NET_RAW), it logs a loud warning and returns a prober that
// reports every probe as skipped.
func NewProber(logger *slog.Logger) (*Prober, error) {
	p := &Prober{logger: logger}

	conn, err := icmp.ListenPacket("ip4:icmp", "0.0.0.0")
	if err != nil {
		logger.Error("FAILED TO OPEN ICMP SOCKET, gateway probing is DISABLED",
			"error", err,
			"hint", "Grant CAP_NET_RAW capability or run as root")
		return p, nil
	}

	p.conn = conn
	p.available = true
	logger.Info("gateway prober initialized")
	return p, nil
}

// Available reports whether the prober has a working socket.
func (p *Prober) Available() bool {
	return p.available
}

// Close closes the ICMP socket.
func (p *Prober) Close() error {
	if p.conn != nil {
		return p.conn.Close()
	}
	return nil
}

// Probe pings the gateway once and reports whether it answered before the
// context deadline. In degraded mode it returns false with no error.
func (p *Prober) Probe(ctx context.Context, gateway net.IP) (bool, error) {
	if !p.available {
		metrics.GatewayProbes.WithLabelValues("skipped").Inc()
		return false, nil
	}

	p.mu.Lock()
	p.seq++
	seq := p.seq
	p.mu.Unlock()

	start := time.Now()

	msg := &icmp.Message{
		Type: ipv4.ICMPTypeEcho,
		Code: 0,
		Body: &icmp.Echo{
			ID:   os.Getpid() & 0xffff,
			Seq:  int(seq),
			Data: []byte("athena-dhcpc"),
		},
	}
	msgBytes, err := msg.Marshal(nil)
	if err != nil {
		return false, fmt.Errorf("marshalling ICMP echo request: %w", err)
	}

	if deadline, ok := ctx.Deadline(); ok {
		if err := p.conn.SetDeadline(deadline); err != nil {
			return false, fmt.Errorf("setting ICMP deadline: %w", err)
		}
	}

	dst := &net.IPAddr{IP: gateway}
	if _, err := p.conn.WriteTo(msgBytes, dst); err != nil {
		metrics.GatewayProbes.WithLabelValues("error").Inc()
		return false, fmt.Errorf("sending ICMP echo to %s: %w", gateway, err)
	}

	buf := make([]byte, 1500)
	for {
		select {
		case <-ctx.Done():
			metrics.GatewayProbes.WithLabelValues("timeout").Inc()
			p.logger.Warn("gateway probe timed out",
				"gateway", gateway.String(),
				"duration", time.Since(start).String())
			return false, nil
		default:
		}

		n, peer, err := p.conn.ReadFrom(buf)
		if err != nil {
			if netErr, ok := err.(net.Error); ok && netErr.Timeout() {
				metrics.GatewayProbes.WithLabelValues("timeout").Inc()
				p.logger.Warn("gateway probe timed out",
					"gateway", gateway.String(),
					"duration", time.Since(start).String())
				return false, nil
			}
			return false, fmt.Errorf("reading ICMP reply: %w", err)
		}

		reply, err := icmp.ParseMessage(1, buf[:n])
		if err != nil {
			continue
		}
		if reply.Type != ipv4.ICMPTypeEchoReply {
			continue
		}
		if echo, ok := reply.Body.(*icmp.Echo); ok {
			if echo.ID == os.Getpid()&0xffff && echo.Seq == int(seq) {
				metrics.GatewayProbes.WithLabelValues("ok").Inc()
				p.logger.Debug("gateway answered",
					"gateway", gateway.String(),
					"responder", peer.String(),
					"latency", time.Since(start).String())
				return true, nil
			}
		}
	}
}
