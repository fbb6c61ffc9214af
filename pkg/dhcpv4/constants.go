// Package dhcpv4 provides constants, the fixed-size address type, and
// encoding helpers shared by the athena-dhcpc client packages.
package dhcpv4

// DHCP Message Types (RFC 2131 §9.6)
type MessageType byte

const (
	MessageTypeDiscover MessageType = 1 // DHCPDISCOVER
	MessageTypeOffer    MessageType = 2 // DHCPOFFER
	MessageTypeRequest  MessageType = 3 // DHCPREQUEST
	MessageTypeDecline  MessageType = 4 // DHCPDECLINE
	MessageTypeAck      MessageType = 5 // DHCPACK
	MessageTypeNak      MessageType = 6 // DHCPNAK
	MessageTypeRelease  MessageType = 7 // DHCPRELEASE
	MessageTypeInform   MessageType = 8 // DHCPINFORM
)

func (m MessageType) String() string {
	switch m {
	case MessageTypeDiscover:
		return "DHCPDISCOVER"
	case MessageTypeOffer:
		return "DHCPOFFER"
	case MessageTypeRequest:
		return "DHCPREQUEST"
	case MessageTypeDecline:
		return "DHCPDECLINE"
	case MessageTypeAck:
		return "DHCPACK"
	case MessageTypeNak:
		return "DHCPNAK"
	case MessageTypeRelease:
		return "DHCPRELEASE"
	case MessageTypeInform:
		return "DHCPINFORM"
	default:
		return "UNKNOWN"
	}
}

// DHCP Op Codes (RFC 2131 §2)
type OpCode byte

const (
	OpCodeBootRequest OpCode = 1 // BOOTREQUEST
	OpCodeBootReply   OpCode = 2 // BOOTREPLY
)

// Hardware Types (RFC 1700)
type HardwareType byte

const (
	HardwareTypeEthernet HardwareType = 1
)

// HardwareAddrLen is the significant hardware address length for Ethernet.
const HardwareAddrLen = 6

// DHCP Option Codes (RFC 2132). Only the codes the client reads or writes
// are named; anything else is carried opaquely.
type OptionCode byte

const (
	OptionPad                  OptionCode = 0
	OptionSubnetMask           OptionCode = 1
	OptionTimeOffset           OptionCode = 2
	OptionRouter               OptionCode = 3
	OptionTimeServer           OptionCode = 4
	OptionDomainNameServer     OptionCode = 6
	OptionHostname             OptionCode = 12
	OptionNTPServers           OptionCode = 42
	OptionVendorSpecific       OptionCode = 43
	OptionRequestedIP          OptionCode = 50
	OptionIPLeaseTime          OptionCode = 51
	OptionDHCPMessageType      OptionCode = 53
	OptionServerIdentifier     OptionCode = 54
	OptionParameterRequestList OptionCode = 55
	OptionRenewalTime          OptionCode = 58
	OptionClientIdentifier     OptionCode = 61
	OptionDomainSearchList     OptionCode = 119
	OptionEnd                  OptionCode = 255
)

// DHCP Packet Size Limits
const (
	// HeaderSize is the fixed BOOTP header preceding the magic cookie.
	HeaderSize = 236
	// OptionsOffset is where the TLV option stream begins (header + cookie).
	OptionsOffset = HeaderSize + 4
	// MinReplySize is the smallest datagram the client will consider a reply.
	MinReplySize = 70
	// MaxPacketSize bounds the shared packet buffer (Ethernet MTU).
	MaxPacketSize = 1500
)

// DHCP Ports
const (
	ServerPort = 67
	ClientPort = 68
)

// InfiniteLease is the on-wire lease value reserved for "infinity"
// (RFC 2132 §3.3). It is never scaled to milliseconds.
const InfiniteLease = 0xffffffff

// MagicCookie precedes the option stream (RFC 2131 §3).
var MagicCookie = [4]byte{99, 130, 83, 99}

// Broadcast destinations.
var (
	BroadcastMAC  = []byte{0xff, 0xff, 0xff, 0xff, 0xff, 0xff}
	BroadcastAddr = Addr{255, 255, 255, 255}
)
