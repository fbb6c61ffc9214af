package client

import (
	"net"
	"time"

	"github.com/athena-dhcpd/athena-dhcpc/pkg/dhcpv4"
)

// Transport is the UDP datagram primitive the session drives. Implementations
// own a single shared packet buffer: Payload returns the region where the
// DHCP payload of the next outgoing datagram is assembled, and the same
// region holds the most recently received datagram when Step is invoked.
// The caller must not let a new datagram overwrite the buffer while a Step
// invocation is still reading it.
type Transport interface {
	// Payload returns the shared buffer region beginning at the UDP payload.
	Payload() []byte

	// Prepare positions a UDP header for a datagram from srcPort to
	// dst:dstPort in the shared buffer.
	Prepare(srcPort uint16, dst dhcpv4.Addr, dstPort uint16) error

	// SetDestinationHardwareAddr overrides the destination MAC of the
	// prepared frame.
	SetDestinationHardwareAddr(hw net.HardwareAddr)

	// Transmit sends n payload bytes previously written after the UDP header.
	Transmit(n int) error
}

// GatewayResolver is implemented by transports that can start link-layer
// resolution of the default gateway ahead of its first use. The session
// calls it once per accepted ACK that carries a non-zero router.
type GatewayResolver interface {
	ResolveGateway(gw dhcpv4.Addr)
}

// Clock is a monotonic millisecond counter. It may wrap; elapsed time is
// always computed with uint32 subtraction, which stays correct across a
// single wrap. Leases longer than the wrap period (~49.7 days) will not
// renew on time; this is a known limitation carried from the embedded
// transports this client targets.
type Clock interface {
	Millis() uint32
}

// WallClock is the default Clock, counting milliseconds since creation.
type WallClock struct {
	start time.Time
}

// NewWallClock returns a Clock backed by the runtime monotonic clock.
func NewWallClock() *WallClock {
	return &WallClock{start: time.Now()}
}

// Millis returns elapsed milliseconds, truncated to uint32.
func (c *WallClock) Millis() uint32 {
	return uint32(time.Since(c.start).Milliseconds())
}
