package transport

import (
	"log/slog"
	"net"
	"testing"
	"time"

	"github.com/athena-dhcpd/athena-dhcpc/pkg/dhcpv4"
)

func newTestTransport(t *testing.T) *UDPTransport {
	t.Helper()
	tr, err := NewUDP("", slog.New(slog.DiscardHandler))
	if err != nil {
		t.Skipf("cannot bind client port in this environment: %v", err)
	}
	t.Cleanup(func() { tr.Close() })
	return tr
}

func TestPrepareRejectsForeignSourcePort(t *testing.T) {
	tr := newTestTransport(t)
	if err := tr.Prepare(1068, dhcpv4.BroadcastAddr, dhcpv4.ServerPort); err == nil {
		t.Error("expected error for source port the socket is not bound to")
	}
	if err := tr.Prepare(dhcpv4.ClientPort, dhcpv4.BroadcastAddr, dhcpv4.ServerPort); err != nil {
		t.Errorf("Prepare: %v", err)
	}
}

func TestTransmitWithoutPrepare(t *testing.T) {
	tr := newTestTransport(t)
	if err := tr.Transmit(10); err == nil {
		t.Error("expected error for Transmit with no prepared destination")
	}
}

func TestLoopbackExchange(t *testing.T) {
	tr := newTestTransport(t)

	// A stand-in server on a loopback port.
	peer, err := net.ListenUDP("udp4", &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1)})
	if err != nil {
		t.Fatalf("peer listen: %v", err)
	}
	defer peer.Close()
	peerAddr := peer.LocalAddr().(*net.UDPAddr)

	msg := []byte("dhcp-test-datagram")
	copy(tr.Payload(), msg)
	var dst dhcpv4.Addr
	copy(dst[:], peerAddr.IP.To4())
	if err := tr.Prepare(dhcpv4.ClientPort, dst, uint16(peerAddr.Port)); err != nil {
		t.Fatalf("Prepare: %v", err)
	}
	if err := tr.Transmit(len(msg)); err != nil {
		t.Fatalf("Transmit: %v", err)
	}

	peer.SetReadDeadline(time.Now().Add(2 * time.Second))
	buf := make([]byte, 64)
	n, client, err := peer.ReadFromUDP(buf)
	if err != nil {
		t.Fatalf("peer receive: %v", err)
	}
	if string(buf[:n]) != string(msg) {
		t.Errorf("peer received %q", buf[:n])
	}
	if client.Port != dhcpv4.ClientPort {
		t.Errorf("datagram source port = %d, want %d", client.Port, dhcpv4.ClientPort)
	}

	// And the reply path through Poll.
	if _, err := peer.WriteToUDP([]byte("reply"), client); err != nil {
		t.Fatalf("peer send: %v", err)
	}
	n, srcPort, err := tr.Poll(2 * time.Second)
	if err != nil {
		t.Fatalf("Poll: %v", err)
	}
	if n != 5 || string(tr.Payload()[:n]) != "reply" {
		t.Errorf("Poll returned %d bytes: %q", n, tr.Payload()[:n])
	}
	if srcPort != uint16(peerAddr.Port) {
		t.Errorf("Poll source port = %d, want %d", srcPort, peerAddr.Port)
	}
}

func TestPollTimeoutIsNotAnError(t *testing.T) {
	tr := newTestTransport(t)
	n, srcPort, err := tr.Poll(50 * time.Millisecond)
	if err != nil {
		t.Fatalf("Poll timeout: %v", err)
	}
	if n != 0 || srcPort != 0 {
		t.Errorf("Poll returned n=%d srcPort=%d on timeout", n, srcPort)
	}
}
