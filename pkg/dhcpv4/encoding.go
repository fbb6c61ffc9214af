package dhcpv4

import (
	"encoding/binary"
	"fmt"
	"net"
)

// Addr is an IPv4 address as it appears on the wire. The client copies and
// zeroes whole interface bindings in place, so a fixed four-byte value is
// used instead of net.IP throughout.
type Addr [4]byte

// IsZero reports whether the address is 0.0.0.0.
func (a Addr) IsZero() bool {
	return a == Addr{}
}

// String formats the address in dotted-quad notation.
func (a Addr) String() string {
	return fmt.Sprintf("%d.%d.%d.%d", a[0], a[1], a[2], a[3])
}

// IP converts the address to a net.IP for use with the standard library.
func (a Addr) IP() net.IP {
	return net.IPv4(a[0], a[1], a[2], a[3])
}

// AddrFromIP converts a net.IP to an Addr. Non-IPv4 addresses map to 0.0.0.0.
func AddrFromIP(ip net.IP) Addr {
	var a Addr
	if ip4 := ip.To4(); ip4 != nil {
		copy(a[:], ip4)
	}
	return a
}

// ParseAddr parses a dotted-quad IPv4 string.
func ParseAddr(s string) (Addr, error) {
	ip := net.ParseIP(s)
	if ip == nil || ip.To4() == nil {
		return Addr{}, fmt.Errorf("invalid IPv4 address %q", s)
	}
	return AddrFromIP(ip), nil
}

// Uint32ToBytes converts a uint32 to 4 bytes (big-endian).
func Uint32ToBytes(v uint32) []byte {
	b := make([]byte, 4)
	binary.BigEndian.PutUint32(b, v)
	return b
}

// BytesToUint32 converts 4 bytes to uint32 (big-endian).
func BytesToUint32(b []byte) (uint32, error) {
	if len(b) != 4 {
		return 0, fmt.Errorf("invalid uint32 length %d: expected 4", len(b))
	}
	return binary.BigEndian.Uint32(b), nil
}

// Uint16ToBytes converts a uint16 to 2 bytes (big-endian).
func Uint16ToBytes(v uint16) []byte {
	b := make([]byte, 2)
	binary.BigEndian.PutUint16(b, v)
	return b
}

// BytesToUint16 converts 2 bytes to uint16 (big-endian).
func BytesToUint16(b []byte) (uint16, error) {
	if len(b) != 2 {
		return 0, fmt.Errorf("invalid uint16 length %d: expected 2", len(b))
	}
	return binary.BigEndian.Uint16(b), nil
}

// FormatMAC formats bytes as a colon-separated MAC address string.
func FormatMAC(b []byte) string {
	return net.HardwareAddr(b).String()
}
