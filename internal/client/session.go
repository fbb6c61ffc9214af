// Package client implements the DHCPv4 lease-acquisition state machine and
// its wire codec for a single network interface. The session never blocks:
// an external poller advances it once per received-datagram-or-timeout event
// and observes progress through the state and binding accessors. All
// protocol failures recover silently by restarting the negotiation; only
// transport and buffer misuse surface as errors.
package client

import (
	"encoding/binary"
	"errors"
	"log/slog"
	"net"

	"github.com/athena-dhcpd/athena-dhcpc/internal/hostname"
	"github.com/athena-dhcpd/athena-dhcpc/internal/metrics"
	"github.com/athena-dhcpd/athena-dhcpc/pkg/dhcpv4"
)

// State is the lease state machine state (RFC 2131 §4.4, reduced to the
// states this client implements).
type State uint8

const (
	StateInit State = iota
	StateSelecting
	StateRequesting
	StateBound
	StateRenewing
	StateReleasing
	StateReleased
)

func (s State) String() string {
	switch s {
	case StateInit:
		return "INIT"
	case StateSelecting:
		return "SELECTING"
	case StateRequesting:
		return "REQUESTING"
	case StateBound:
		return "BOUND"
	case StateRenewing:
		return "RENEWING"
	case StateReleasing:
		return "RELEASING"
	case StateReleased:
		return "RELEASED"
	default:
		return "UNKNOWN"
	}
}

// Binding is the interface configuration owned by the surrounding library.
// The session mutates it only on an accepted ACK and zeroes it on release
// or when re-entering INIT fails to bind.
type Binding struct {
	Addr     dhcpv4.Addr
	Netmask  dhcpv4.Addr
	Gateway  dhcpv4.Addr
	DNS      dhcpv4.Addr
	ServerID dhcpv4.Addr
}

// Clear zeroes every field.
func (b *Binding) Clear() {
	*b = Binding{}
}

// OptionCallback receives the raw bytes of options seen in an ACK. It fires
// for every value-bearing option in the stream, not only the registered one,
// so a registrant can observe the full reply.
type OptionCallback func(code dhcpv4.OptionCode, data []byte)

// Config assembles a Session. HardwareAddr and Transport are required.
type Config struct {
	HardwareAddr net.HardwareAddr
	Transport    Transport

	// Binding is the caller-owned interface configuration. Nil means the
	// session allocates its own, readable through Binding().
	Binding *Binding

	// Clock defaults to a WallClock.
	Clock Clock

	// Retry defaults to FixedRetry with the 10-second request timeout.
	Retry RetryPolicy

	// Logger defaults to slog.Default().
	Logger *slog.Logger

	// OnTransition, when set, is called after every state change.
	OnTransition func(old, new State)
}

// Session is one interface's lease state machine. It is not safe for
// concurrent use: the caller drives it from a single polling loop, which is
// also what guards the shared packet buffer.
type Session struct {
	state      State
	xid        uint32
	stateTimer uint32
	leaseStart uint32
	// leaseMillis is the lease length in milliseconds, or the untransformed
	// InfiniteLease sentinel.
	leaseMillis uint32
	hostname    []byte
	usingDHCP   bool

	customOpt dhcpv4.OptionCode
	customFn  OptionCallback

	binding      *Binding
	hwaddr       []byte
	transport    Transport
	clock        Clock
	retry        RetryPolicy
	logger       *slog.Logger
	onTransition func(old, new State)
}

// New creates an idle session. Call Setup to start acquisition.
func New(cfg Config) (*Session, error) {
	if len(cfg.HardwareAddr) != dhcpv4.HardwareAddrLen {
		return nil, errors.New("client: hardware address must be 6 bytes")
	}
	if cfg.Transport == nil {
		return nil, errors.New("client: transport is required")
	}

	s := &Session{
		state:        StateReleased,
		binding:      cfg.Binding,
		hwaddr:       append([]byte(nil), cfg.HardwareAddr...),
		transport:    cfg.Transport,
		clock:        cfg.Clock,
		retry:        cfg.Retry,
		logger:       cfg.Logger,
		onTransition: cfg.OnTransition,
	}
	if s.binding == nil {
		s.binding = &Binding{}
	}
	if s.clock == nil {
		s.clock = NewWallClock()
	}
	if s.retry == nil {
		s.retry = FixedRetry{}
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	return s, nil
}

// Setup arms (or re-arms) lease acquisition. It only forces the state to
// INIT; the first Step call performs the DISCOVER send. An empty name
// selects the default hostname with the MAC suffix.
func (s *Session) Setup(name string) {
	if name != "" {
		name = hostname.Clean(name)
	}
	if name == "" {
		name = hostname.Default(s.hwaddr)
	}
	s.hostname = []byte(name)
	s.usingDHCP = true
	s.setState(StateInit, "setup")
}

// RegisterOption subscribes one extra option code: it is appended to the
// parameter request list of outgoing messages, and cb fires for options
// seen in accepted ACKs (see OptionCallback for the broad dispatch rule).
func (s *Session) RegisterOption(code dhcpv4.OptionCode, cb OptionCallback) {
	s.customOpt = code
	s.customFn = cb
}

// Step advances the state machine once. n is the length of the datagram
// currently in the shared buffer (zero if nothing arrived) and srcPort its
// source UDP port. Step never blocks and sends at most one message.
func (s *Session) Step(n int, srcPort uint16) {
	switch s.state {
	case StateInit:
		s.xid = s.clock.Millis()
		s.binding.Addr = dhcpv4.Addr{}
		if err := s.send(nil); err != nil {
			// Stay in INIT; the next poll retries the DISCOVER.
			s.logger.Error("discover send failed", "error", err)
			return
		}
		s.setState(StateSelecting, "discover sent")
		s.stateTimer = s.clock.Millis()

	case StateSelecting:
		if s.isReply(n, srcPort, dhcpv4.MessageTypeOffer) && s.acceptOffer(n) {
			return
		}
		s.checkTimeout()

	case StateRequesting, StateRenewing:
		if s.isReply(n, srcPort, dhcpv4.MessageTypeAck) && s.acceptAck(n) {
			return
		}
		s.checkTimeout()

	case StateBound:
		if s.leaseMillis == dhcpv4.InfiniteLease {
			return
		}
		if s.clock.Millis()-s.leaseStart >= s.leaseMillis {
			// Still BOUND at send time: unicast to the server, ciaddr set,
			// no requested-IP/server-id options.
			if err := s.send(nil); err != nil {
				s.logger.Error("renewal send failed", "error", err)
				return
			}
			s.setState(StateRenewing, "lease expired")
			s.stateTimer = s.clock.Millis()
		}

	case StateReleasing, StateReleased:
		// Terminal until Setup re-arms.
	}
}

// Release unconditionally tears the binding down: it sends a RELEASE naming
// the current binding, zeroes the interface configuration and enters
// RELEASED. No reply is awaited. The send error, if any, is returned after
// the teardown completes.
func (s *Session) Release() error {
	s.setState(StateReleasing, "release requested")

	err := s.transport.Prepare(dhcpv4.ClientPort, s.binding.ServerID, dhcpv4.ServerPort)
	if err == nil {
		s.transport.SetDestinationHardwareAddr(dhcpv4.BroadcastMAC)
		var n int
		if n, err = buildRelease(s); err == nil {
			if err = s.transport.Transmit(n); err == nil {
				metrics.MessagesSent.WithLabelValues(dhcpv4.MessageTypeRelease.String()).Inc()
			}
		}
	}
	if err != nil {
		metrics.SendErrors.Inc()
		s.logger.Error("release send failed", "error", err)
	}

	s.binding.Clear()
	s.leaseMillis = 0
	s.leaseStart = 0
	s.usingDHCP = false
	metrics.LeaseSeconds.Set(0)
	s.setState(StateReleased, "released")
	return err
}

// State returns the current state.
func (s *Session) State() State {
	return s.state
}

// Binding returns a copy of the current interface configuration.
func (s *Session) Binding() Binding {
	return *s.binding
}

// UsingDHCP reports whether the session manages the interface configuration.
func (s *Session) UsingDHCP() bool {
	return s.usingDHCP
}

// LeaseMillis returns the current lease length in milliseconds, or the
// InfiniteLease sentinel.
func (s *Session) LeaseMillis() uint32 {
	return s.leaseMillis
}

// Hostname returns the hostname advertised in option 12.
func (s *Session) Hostname() string {
	return string(s.hostname)
}

func (s *Session) setState(next State, reason string) {
	if s.state == next {
		return
	}
	old := s.state
	s.state = next
	s.logger.Debug("dhcp state transition",
		"old_state", old.String(),
		"new_state", next.String(),
		"reason", reason)
	metrics.StateTransitions.WithLabelValues(old.String(), next.String()).Inc()
	if s.onTransition != nil {
		s.onTransition(old, next)
	}
}

// send prepares, builds and transmits a DISCOVER or REQUEST. The datagram
// is unicast to the cached server only while BOUND (renewal); everything
// else broadcasts. The destination MAC is always forced to broadcast: no
// cached server MAC is trusted, so renewals would otherwise go to whatever
// address other traffic left in the frame header.
func (s *Session) send(requested *dhcpv4.Addr) error {
	dst := dhcpv4.BroadcastAddr
	if s.state == StateBound {
		dst = s.binding.ServerID
	}
	if err := s.transport.Prepare(dhcpv4.ClientPort, dst, dhcpv4.ServerPort); err != nil {
		metrics.SendErrors.Inc()
		return err
	}
	s.transport.SetDestinationHardwareAddr(dhcpv4.BroadcastMAC)

	n, err := buildMessage(s, requested)
	if err != nil {
		return err
	}
	if err := s.transport.Transmit(n); err != nil {
		metrics.SendErrors.Inc()
		return err
	}

	msgType := dhcpv4.MessageTypeRequest
	if s.state == StateInit {
		msgType = dhcpv4.MessageTypeDiscover
	}
	metrics.MessagesSent.WithLabelValues(msgType.String()).Inc()
	return nil
}

func (s *Session) isReply(n int, srcPort uint16, want dhcpv4.MessageType) bool {
	ok := isReplyType(s.transport.Payload(), n, srcPort, s.xid, want)
	if ok {
		metrics.RepliesAccepted.WithLabelValues(want.String()).Inc()
	}
	return ok
}

// acceptOffer records the offered address and server identifier and answers
// with a broadcast REQUEST carrying options 50 and 54. Returns false when
// the offer could not be parsed, leaving the timeout countdown running.
func (s *Session) acceptOffer(n int) bool {
	offered, server, found, err := parseOffer(s.transport.Payload(), n)
	if err != nil {
		s.logger.Warn("discarding malformed offer", "error", err)
		return false
	}
	if found {
		s.binding.ServerID = server
	}
	s.logger.Info("offer received",
		"offered", offered.String(),
		"server", s.binding.ServerID.String())

	if err := s.send(&offered); err != nil {
		s.logger.Error("request send failed", "error", err)
		return false
	}
	s.setState(StateRequesting, "offer accepted")
	s.stateTimer = s.clock.Millis()
	return true
}

// acceptAck applies the ACK to the interface configuration and enters
// BOUND. Returns false when the option stream could not be parsed.
func (s *Session) acceptAck(n int) bool {
	if err := s.applyAck(s.transport.Payload(), n); err != nil {
		s.logger.Warn("discarding malformed ack", "error", err)
		return false
	}
	s.leaseStart = s.clock.Millis()

	if !s.binding.Gateway.IsZero() {
		if gr, ok := s.transport.(GatewayResolver); ok {
			gr.ResolveGateway(s.binding.Gateway)
		}
	}

	metrics.Binds.Inc()
	if s.leaseMillis == dhcpv4.InfiniteLease {
		metrics.LeaseSeconds.Set(-1)
	} else {
		metrics.LeaseSeconds.Set(float64(s.leaseMillis) / 1000)
	}
	s.logger.Info("lease bound",
		"addr", s.binding.Addr.String(),
		"netmask", s.binding.Netmask.String(),
		"gateway", s.binding.Gateway.String(),
		"dns", s.binding.DNS.String(),
		"server", s.binding.ServerID.String(),
		"lease_ms", s.leaseMillis)
	s.setState(StateBound, "ack accepted")
	return true
}

// applyAck extracts the interface configuration from the ACK held in the
// shared buffer. Options 51 and 58 both feed the lease length; whichever
// appears later in the stream wins. Absent options leave the prior value in
// place. Every value-bearing option is additionally offered to the
// registered callback.
func (s *Session) applyAck(buf []byte, n int) error {
	copy(s.binding.Addr[:], buf[offYIAddr:offYIAddr+4])
	return walkOptions(buf, n, func(code dhcpv4.OptionCode, val []byte) bool {
		switch code {
		case dhcpv4.OptionSubnetMask:
			if len(val) == 4 {
				copy(s.binding.Netmask[:], val)
			}
		case dhcpv4.OptionRouter:
			if len(val) >= 4 {
				copy(s.binding.Gateway[:], val)
			}
		case dhcpv4.OptionDomainNameServer:
			// Only the first server is kept.
			if len(val) >= 4 {
				copy(s.binding.DNS[:], val)
			}
		case dhcpv4.OptionIPLeaseTime, dhcpv4.OptionRenewalTime:
			if len(val) == 4 {
				secs := binary.BigEndian.Uint32(val)
				if secs == dhcpv4.InfiniteLease {
					s.leaseMillis = dhcpv4.InfiniteLease
				} else {
					s.leaseMillis = secs * 1000
				}
			}
		}
		if s.customFn != nil {
			s.customFn(code, val)
		}
		return true
	})
}

// checkTimeout restarts the negotiation from INIT when the current waiting
// state has outlived the retry policy's patience.
func (s *Session) checkTimeout() {
	if s.retry.Expired(s.clock.Millis() - s.stateTimer) {
		metrics.Timeouts.WithLabelValues(s.state.String()).Inc()
		s.logger.Warn("negotiation timeout, restarting", "state", s.state.String())
		s.setState(StateInit, "timeout")
	}
}
