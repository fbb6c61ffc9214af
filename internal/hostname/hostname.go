// Package hostname derives and cleans the hostname the client advertises in
// option 12. The wire field is tiny and servers register it straight into
// DNS, so anything that is not a plain DNS label is stripped before it is
// ever sent.
package hostname

import "net"

// MaxLen is the usable hostname length on the wire. Matches the 32-byte
// buffer of the embedded transports this client is written for, minus the
// terminator those transports reserve.
const MaxLen = 31

// defaultTemplate is used when no hostname is configured. The trailing two
// characters are replaced with the hex digits of the last hardware address
// octet so that unconfigured clients stay distinguishable.
const defaultTemplate = "athena-dhcpc-00"

// Default returns the template hostname with the last octet of hw encoded
// into its final two characters.
func Default(hw net.HardwareAddr) string {
	name := []byte(defaultTemplate)
	if len(hw) > 0 {
		last := hw[len(hw)-1]
		name[len(name)-2] = hexDigit(last >> 4)
		name[len(name)-1] = hexDigit(last)
	}
	return string(name)
}

// Clean strips bytes that are not valid in a DNS label and caps the result
// to MaxLen. An empty result means the caller should fall back to Default.
func Clean(name string) string {
	var out []byte
	for _, c := range []byte(name) {
		if (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') ||
			(c >= '0' && c <= '9') || c == '-' {
			out = append(out, c)
		}
	}
	// A label cannot start or end with a hyphen.
	for len(out) > 0 && out[0] == '-' {
		out = out[1:]
	}
	if len(out) > MaxLen {
		out = out[:MaxLen]
	}
	for len(out) > 0 && out[len(out)-1] == '-' {
		out = out[:len(out)-1]
	}
	return string(out)
}

func hexDigit(b byte) byte {
	b &= 0x0f
	if b <= 9 {
		return '0' + b
	}
	return 'A' + b - 10
}
