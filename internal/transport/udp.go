// Package transport provides the real UDP packet driver behind the lease
// state machine: one socket on the DHCP client port, one shared fixed
// payload buffer.
package transport

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"syscall"
	"time"

	"golang.org/x/sys/unix"

	"github.com/athena-dhcpd/athena-dhcpc/pkg/dhcpv4"
)

// UDPTransport sends and receives DHCP datagrams over a UDP socket bound to
// the client port with SO_BROADCAST set. It is driven from a single polling
// loop; the shared buffer is not guarded.
type UDPTransport struct {
	conn   *net.UDPConn
	buf    []byte
	dst    *net.UDPAddr
	iface  string
	logger *slog.Logger
}

// NewUDP opens the client socket. iface, when non-empty, binds the socket to
// that device so replies from other segments never reach the session.
func NewUDP(iface string, logger *slog.Logger) (*UDPTransport, error) {
	lc := net.ListenConfig{
		Control: func(network, address string, c syscall.RawConn) error {
			var opErr error
			err := c.Control(func(fd uintptr) {
				opErr = unix.SetsockoptInt(int(fd), unix.SOL_SOCKET, unix.SO_BROADCAST, 1)
				if opErr != nil {
					return
				}
				opErr = unix.SetsockoptInt(int(fd), unix.SOL_SOCKET, unix.SO_REUSEADDR, 1)
				if opErr != nil {
					return
				}
				if iface != "" {
					opErr = unix.BindToDevice(int(fd), iface)
				}
			})
			if err != nil {
				return err
			}
			return opErr
		},
	}

	pc, err := lc.ListenPacket(context.Background(),
		"udp4", fmt.Sprintf(":%d", dhcpv4.ClientPort))
	if err != nil {
		return nil, fmt.Errorf("opening client socket on port %d: %w", dhcpv4.ClientPort, err)
	}

	logger.Info("client socket open",
		"port", dhcpv4.ClientPort,
		"interface", iface)

	return &UDPTransport{
		conn:   pc.(*net.UDPConn),
		buf:    make([]byte, dhcpv4.MaxPacketSize),
		iface:  iface,
		logger: logger,
	}, nil
}

// Payload returns the shared packet buffer. Outgoing messages are built into
// it and received datagrams land in it.
func (t *UDPTransport) Payload() []byte {
	return t.buf
}

// Prepare records the destination for the next Transmit. The source port is
// fixed by the socket; srcPort is accepted for interface compatibility and
// must be the client port.
func (t *UDPTransport) Prepare(srcPort uint16, dst dhcpv4.Addr, dstPort uint16) error {
	if srcPort != dhcpv4.ClientPort {
		return fmt.Errorf("source port %d not supported, socket is bound to %d",
			srcPort, dhcpv4.ClientPort)
	}
	t.dst = &net.UDPAddr{IP: dst.IP(), Port: int(dstPort)}
	return nil
}

// SetDestinationHardwareAddr is a no-op: the kernel owns L2 addressing on a
// UDP socket.
func (t *UDPTransport) SetDestinationHardwareAddr(hw net.HardwareAddr) {}

// Transmit sends the first n bytes of the shared buffer to the prepared
// destination.
func (t *UDPTransport) Transmit(n int) error {
	if t.dst == nil {
		return fmt.Errorf("no destination prepared")
	}
	if _, err := t.conn.WriteToUDP(t.buf[:n], t.dst); err != nil {
		return fmt.Errorf("sending %d bytes to %s: %w", n, t.dst, err)
	}
	return nil
}

// Poll waits up to timeout for one datagram into the shared buffer and
// returns its length and source port. A timeout returns (0, 0, nil): nothing
// arrived, which is a normal polling outcome.
func (t *UDPTransport) Poll(timeout time.Duration) (int, uint16, error) {
	if err := t.conn.SetReadDeadline(time.Now().Add(timeout)); err != nil {
		return 0, 0, fmt.Errorf("setting read deadline: %w", err)
	}
	n, src, err := t.conn.ReadFromUDP(t.buf)
	if err != nil {
		if netErr, ok := err.(net.Error); ok && netErr.Timeout() {
			return 0, 0, nil
		}
		return 0, 0, fmt.Errorf("receiving datagram: %w", err)
	}
	return n, uint16(src.Port), nil
}

// Close closes the socket.
func (t *UDPTransport) Close() error {
	return t.conn.Close()
}
