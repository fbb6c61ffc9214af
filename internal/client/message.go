package client

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/athena-dhcpd/athena-dhcpc/pkg/dhcpv4"
)

// ErrShortBuffer is returned when the shared payload buffer cannot hold the
// message under construction. The buffer is an externally sized resource, so
// running out of room is a caller configuration error and must fail fast
// rather than overrun.
var ErrShortBuffer = errors.New("dhcp: payload buffer too small")

// Fixed header field offsets within the payload (RFC 2131 §2).
const (
	offOp     = 0
	offHType  = 1
	offHLen   = 2
	offXID    = 4
	offCIAddr = 12
	offYIAddr = 16
	offSIAddr = 20
	offCHAddr = 28
)

// optionWriter appends TLV options to the payload buffer with bounds
// checking. The first write past the end latches ErrShortBuffer and turns
// the remaining writes into no-ops.
type optionWriter struct {
	buf []byte
	n   int
	err error
}

func (w *optionWriter) writeByte(b byte) {
	if w.err != nil {
		return
	}
	if w.n >= len(w.buf) {
		w.err = ErrShortBuffer
		return
	}
	w.buf[w.n] = b
	w.n++
}

func (w *optionWriter) writeBytes(p []byte) {
	for _, b := range p {
		w.writeByte(b)
	}
}

func (w *optionWriter) writeOption(code dhcpv4.OptionCode, val []byte) {
	w.writeByte(byte(code))
	w.writeByte(byte(len(val)))
	w.writeBytes(val)
}

// writeHeader zeroes the fixed header region and fills the fields common to
// every client message: BOOTREQUEST, Ethernet hardware addressing, the
// current transaction id, and chaddr.
func writeHeader(buf []byte, xid uint32, hw []byte) error {
	if len(buf) < dhcpv4.OptionsOffset {
		return ErrShortBuffer
	}
	clear(buf[:dhcpv4.HeaderSize])
	buf[offOp] = byte(dhcpv4.OpCodeBootRequest)
	buf[offHType] = byte(dhcpv4.HardwareTypeEthernet)
	buf[offHLen] = dhcpv4.HardwareAddrLen
	binary.BigEndian.PutUint32(buf[offXID:offXID+4], xid)
	copy(buf[offCHAddr:offCHAddr+dhcpv4.HardwareAddrLen], hw)
	copy(buf[dhcpv4.HeaderSize:dhcpv4.OptionsOffset], dhcpv4.MagicCookie[:])
	return nil
}

// buildMessage assembles a DISCOVER or REQUEST into the shared payload
// buffer and returns the payload length. The message type follows the
// session state: DISCOVER in INIT, REQUEST everywhere else. requested is nil
// for DISCOVER and for the renewal REQUEST; when non-nil, options 50 and 54
// are emitted together.
func buildMessage(s *Session, requested *dhcpv4.Addr) (int, error) {
	buf := s.transport.Payload()
	if err := writeHeader(buf, s.xid, s.hwaddr); err != nil {
		return 0, err
	}
	if s.state == StateBound {
		// Renewing: we hold an address and can answer ARP for it.
		copy(buf[offCIAddr:offCIAddr+4], s.binding.Addr[:])
	}

	w := optionWriter{buf: buf, n: dhcpv4.OptionsOffset}

	msgType := dhcpv4.MessageTypeRequest
	if s.state == StateInit {
		msgType = dhcpv4.MessageTypeDiscover
	}
	w.writeOption(dhcpv4.OptionDHCPMessageType, []byte{byte(msgType)})

	var cid [1 + dhcpv4.HardwareAddrLen]byte
	cid[0] = byte(dhcpv4.HardwareTypeEthernet)
	copy(cid[1:], s.hwaddr)
	w.writeOption(dhcpv4.OptionClientIdentifier, cid[:])

	if len(s.hostname) > 0 {
		w.writeOption(dhcpv4.OptionHostname, s.hostname)
	}

	if requested != nil {
		w.writeOption(dhcpv4.OptionRequestedIP, requested[:])
		w.writeOption(dhcpv4.OptionServerIdentifier, s.binding.ServerID[:])
	}

	params := []byte{
		byte(dhcpv4.OptionSubnetMask),
		byte(dhcpv4.OptionTimeOffset),
		byte(dhcpv4.OptionRouter),
		byte(dhcpv4.OptionTimeServer),
		byte(dhcpv4.OptionDomainNameServer),
		byte(dhcpv4.OptionNTPServers),
		byte(dhcpv4.OptionDomainSearchList),
	}
	if s.customOpt != 0 {
		params = append(params, byte(s.customOpt))
	}
	w.writeOption(dhcpv4.OptionParameterRequestList, params)

	w.writeByte(byte(dhcpv4.OptionEnd))
	if w.err != nil {
		return 0, w.err
	}
	return w.n, nil
}

// buildRelease assembles a RELEASE into the shared payload buffer. The
// message names the current binding (ciaddr, siaddr, option 54) so the
// server can drop the right reservation; no reply is expected.
func buildRelease(s *Session) (int, error) {
	buf := s.transport.Payload()
	if err := writeHeader(buf, s.xid, s.hwaddr); err != nil {
		return 0, err
	}
	copy(buf[offCIAddr:offCIAddr+4], s.binding.Addr[:])
	copy(buf[offSIAddr:offSIAddr+4], s.binding.ServerID[:])

	w := optionWriter{buf: buf, n: dhcpv4.OptionsOffset}
	w.writeOption(dhcpv4.OptionDHCPMessageType, []byte{byte(dhcpv4.MessageTypeRelease)})

	var cid [1 + dhcpv4.HardwareAddrLen]byte
	cid[0] = byte(dhcpv4.HardwareTypeEthernet)
	copy(cid[1:], s.hwaddr)
	w.writeOption(dhcpv4.OptionClientIdentifier, cid[:])

	w.writeOption(dhcpv4.OptionServerIdentifier, s.binding.ServerID[:])
	w.writeByte(byte(dhcpv4.OptionEnd))
	if w.err != nil {
		return 0, w.err
	}
	return w.n, nil
}

// walkOptions scans the TLV stream of the n-byte datagram held in buf,
// calling fn for each value-bearing option in stream order. PAD is skipped,
// END or the declared length terminates the walk, and fn returning false
// stops early. A TLV length that would read past the declared datagram
// length is a parse error, never trusted.
func walkOptions(buf []byte, n int, fn func(code dhcpv4.OptionCode, val []byte) bool) error {
	if n > len(buf) {
		n = len(buf)
	}
	if n < dhcpv4.OptionsOffset {
		return fmt.Errorf("dhcp: datagram too short for options: %d bytes", n)
	}
	if [4]byte(buf[dhcpv4.HeaderSize:dhcpv4.OptionsOffset]) != dhcpv4.MagicCookie {
		return fmt.Errorf("dhcp: bad magic cookie %x", buf[dhcpv4.HeaderSize:dhcpv4.OptionsOffset])
	}

	i := dhcpv4.OptionsOffset
	for i < n {
		code := dhcpv4.OptionCode(buf[i])
		i++
		if code == dhcpv4.OptionPad {
			continue
		}
		if code == dhcpv4.OptionEnd {
			return nil
		}
		if i >= n {
			return fmt.Errorf("dhcp: truncated option %d: no length byte", code)
		}
		length := int(buf[i])
		i++
		if i+length > n {
			return fmt.Errorf("dhcp: option %d length %d overruns datagram of %d bytes", code, length, n)
		}
		if fn != nil && !fn(code, buf[i:i+length]) {
			return nil
		}
		i += length
	}
	return nil
}

// replyXID extracts the transaction id of the datagram in buf.
func replyXID(buf []byte) uint32 {
	return binary.BigEndian.Uint32(buf[offXID : offXID+4])
}

// isReplyType reports whether the datagram is a server reply of the wanted
// type for the given transaction: long enough to be a DHCP message, sent
// from the server port, xid matching, and carrying option 53 equal to want.
// Anything else, a malformed option stream included, is not a reply.
func isReplyType(buf []byte, n int, srcPort uint16, xid uint32, want dhcpv4.MessageType) bool {
	if n < dhcpv4.MinReplySize || srcPort != dhcpv4.ServerPort {
		return false
	}
	if n < dhcpv4.OptionsOffset || n > len(buf) {
		return false
	}
	if replyXID(buf) != xid {
		return false
	}
	match := false
	err := walkOptions(buf, n, func(code dhcpv4.OptionCode, val []byte) bool {
		if code == dhcpv4.OptionDHCPMessageType && len(val) == 1 && dhcpv4.MessageType(val[0]) == want {
			match = true
			return false
		}
		return true
	})
	return err == nil && match
}

// parseOffer extracts the offered address (yiaddr) and, when present, the
// offering server's identifier (option 54) from the datagram in buf. The
// scan stops at the first server identifier; no comparison between
// competing offers is performed.
func parseOffer(buf []byte, n int) (offered dhcpv4.Addr, server dhcpv4.Addr, found bool, err error) {
	copy(offered[:], buf[offYIAddr:offYIAddr+4])
	err = walkOptions(buf, n, func(code dhcpv4.OptionCode, val []byte) bool {
		if code == dhcpv4.OptionServerIdentifier && len(val) == 4 {
			copy(server[:], val)
			found = true
			return false
		}
		return true
	})
	return offered, server, found, err
}
