// Package events provides the non-blocking event bus and the script hook
// runner for athena-dhcpc. The polling loop publishes lease lifecycle events;
// subscribers (journal, checks, hooks) consume them without ever being able
// to stall the state machine.
package events

import (
	"strconv"
	"time"
)

// EventType names a lease lifecycle or post-bind check event.
type EventType string

const (
	EventDiscover     EventType = "lease.discover"
	EventOffer        EventType = "lease.offer"
	EventBound        EventType = "lease.bound"
	EventRenewing     EventType = "lease.renewing"
	EventTimeout      EventType = "lease.timeout"
	EventReleased     EventType = "lease.released"
	EventDNSCheck     EventType = "check.dns"
	EventGatewayProbe EventType = "check.gateway"
)

// Event is the payload passed through the bus.
type Event struct {
	Type      EventType    `json:"type"`
	Timestamp time.Time    `json:"timestamp"`
	Interface string       `json:"interface,omitempty"`
	Binding   *BindingData `json:"binding,omitempty"`
	Check     *CheckData   `json:"check,omitempty"`
	Reason    string       `json:"reason,omitempty"`
}

// BindingData carries the interface configuration in lifecycle events.
type BindingData struct {
	Addr     string `json:"addr,omitempty"`
	Netmask  string `json:"netmask,omitempty"`
	Gateway  string `json:"gateway,omitempty"`
	DNS      string `json:"dns,omitempty"`
	Server   string `json:"server,omitempty"`
	Hostname string `json:"hostname,omitempty"`
	// LeaseSeconds is -1 for an infinite lease.
	LeaseSeconds int64 `json:"lease_seconds,omitempty"`
}

// CheckData carries the outcome of a post-bind reachability check.
type CheckData struct {
	Target        string `json:"target"`
	OK            bool   `json:"ok"`
	LatencyMillis int64  `json:"latency_ms"`
	Detail        string `json:"detail,omitempty"`
}

// ToEnvVars flattens an event into ATHENA_* environment variables for script
// hooks.
func (e *Event) ToEnvVars() map[string]string {
	env := map[string]string{
		"ATHENA_EVENT": string(e.Type),
	}
	if e.Interface != "" {
		env["ATHENA_IFACE"] = e.Interface
	}
	if e.Reason != "" {
		env["ATHENA_REASON"] = e.Reason
	}

	if b := e.Binding; b != nil {
		if b.Addr != "" {
			env["ATHENA_IP"] = b.Addr
		}
		if b.Netmask != "" {
			env["ATHENA_NETMASK"] = b.Netmask
		}
		if b.Gateway != "" {
			env["ATHENA_GATEWAY"] = b.Gateway
		}
		if b.DNS != "" {
			env["ATHENA_DNS"] = b.DNS
		}
		if b.Server != "" {
			env["ATHENA_SERVER"] = b.Server
		}
		if b.Hostname != "" {
			env["ATHENA_HOSTNAME"] = b.Hostname
		}
		if b.LeaseSeconds != 0 {
			env["ATHENA_LEASE_SECONDS"] = strconv.FormatInt(b.LeaseSeconds, 10)
		}
	}

	if c := e.Check; c != nil {
		env["ATHENA_CHECK_TARGET"] = c.Target
		env["ATHENA_CHECK_OK"] = strconv.FormatBool(c.OK)
		env["ATHENA_CHECK_MS"] = strconv.FormatInt(c.LatencyMillis, 10)
	}

	return env
}
