package dhcpv4

import (
	"net"
	"testing"
)

func TestAddrString(t *testing.T) {
	a := Addr{192, 168, 4, 1}
	if a.String() != "192.168.4.1" {
		t.Errorf("Addr.String() = %q, want %q", a.String(), "192.168.4.1")
	}
}

func TestAddrIsZero(t *testing.T) {
	if !(Addr{}).IsZero() {
		t.Error("zero Addr should report IsZero")
	}
	if (Addr{0, 0, 0, 1}).IsZero() {
		t.Error("0.0.0.1 should not report IsZero")
	}
}

func TestAddrFromIPRoundTrip(t *testing.T) {
	a := Addr{10, 1, 2, 3}
	if got := AddrFromIP(a.IP()); got != a {
		t.Errorf("AddrFromIP(a.IP()) = %v, want %v", got, a)
	}
	if got := AddrFromIP(net.ParseIP("2001:db8::1")); !got.IsZero() {
		t.Errorf("AddrFromIP(IPv6) = %v, want zero", got)
	}
}

func TestParseAddr(t *testing.T) {
	a, err := ParseAddr("172.16.0.254")
	if err != nil {
		t.Fatalf("ParseAddr error: %v", err)
	}
	if a != (Addr{172, 16, 0, 254}) {
		t.Errorf("ParseAddr = %v", a)
	}
	if _, err := ParseAddr("not-an-ip"); err == nil {
		t.Error("expected error for invalid address")
	}
	if _, err := ParseAddr("::1"); err == nil {
		t.Error("expected error for IPv6 address")
	}
}

func TestUint32Conversions(t *testing.T) {
	b := Uint32ToBytes(3600)
	if len(b) != 4 {
		t.Fatalf("Uint32ToBytes length = %d", len(b))
	}
	v, err := BytesToUint32(b)
	if err != nil || v != 3600 {
		t.Errorf("BytesToUint32 = %d, %v", v, err)
	}
	if _, err := BytesToUint32([]byte{1, 2}); err == nil {
		t.Error("expected error for short uint32")
	}
}

func TestUint16Conversions(t *testing.T) {
	v, err := BytesToUint16(Uint16ToBytes(0x1234))
	if err != nil || v != 0x1234 {
		t.Errorf("BytesToUint16 = %#x, %v", v, err)
	}
	if _, err := BytesToUint16([]byte{1}); err == nil {
		t.Error("expected error for short uint16")
	}
}
