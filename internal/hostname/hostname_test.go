package hostname

import (
	"net"
	"strings"
	"testing"
)

func TestDefaultEncodesLastOctet(t *testing.T) {
	hw := net.HardwareAddr{0x02, 0x00, 0x00, 0xaa, 0xbb, 0x4f}
	got := Default(hw)
	if !strings.HasSuffix(got, "4F") {
		t.Errorf("Default = %q, want suffix %q", got, "4F")
	}
	if !strings.HasPrefix(got, "athena-dhcpc-") {
		t.Errorf("Default = %q, want template prefix", got)
	}
}

func TestDefaultHexDigits(t *testing.T) {
	cases := []struct {
		last byte
		want string
	}{
		{0x00, "00"},
		{0x09, "09"},
		{0x0a, "0A"},
		{0xff, "FF"},
	}
	for _, c := range cases {
		hw := net.HardwareAddr{0, 0, 0, 0, 0, c.last}
		if got := Default(hw); !strings.HasSuffix(got, c.want) {
			t.Errorf("Default(..%#x) = %q, want suffix %q", c.last, got, c.want)
		}
	}
}

func TestClean(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"myhost", "myhost"},
		{"my host!", "myhost"},
		{"-leading-hyphen", "leading-hyphen"},
		{"trailing-", "trailing"},
		{"under_score", "underscore"},
		{"ALL.dots.gone", "ALLdotsgone"},
		{"", ""},
		{"---", ""},
	}
	for _, c := range cases {
		if got := Clean(c.in); got != c.want {
			t.Errorf("Clean(%q) = %q, want %q", c.in, got, c.want)
		}
	}
}

func TestCleanCapsLength(t *testing.T) {
	long := strings.Repeat("a", 80)
	if got := Clean(long); len(got) != MaxLen {
		t.Errorf("Clean(long) length = %d, want %d", len(got), MaxLen)
	}
}
