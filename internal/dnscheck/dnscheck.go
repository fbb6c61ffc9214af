// Package dnscheck verifies that the DNS resolver delivered in a lease
// actually answers. It is a post-bind diagnostic: a failing resolver is
// reported, never acted on.
package dnscheck

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/miekg/dns"

	"github.com/athena-dhcpd/athena-dhcpc/internal/metrics"
)

// Result is the outcome of one verification query.
type Result struct {
	Server  string
	OK      bool
	Latency time.Duration
	Rcode   int
	Err     error
}

// Checker probes lease-delivered resolvers with a recursion-desired NS query
// for the root zone.
type Checker struct {
	client  *dns.Client
	timeout time.Duration
	logger  *slog.Logger
}

// New creates a checker. A zero timeout defaults to 3 seconds.
func New(timeout time.Duration, logger *slog.Logger) *Checker {
	if timeout == 0 {
		timeout = 3 * time.Second
	}
	return &Checker{
		client:  &dns.Client{Timeout: timeout},
		timeout: timeout,
		logger:  logger,
	}
}

// Check sends one probe query to the resolver. addr may omit the port.
func (c *Checker) Check(addr string) Result {
	if !strings.Contains(addr, ":") {
		addr = addr + ":53"
	}

	msg := new(dns.Msg)
	msg.SetQuestion(".", dns.TypeNS)
	msg.RecursionDesired = true

	start := time.Now()
	reply, _, err := c.client.Exchange(msg, addr)
	elapsed := time.Since(start)

	res := Result{Server: addr, Latency: elapsed}
	if err != nil {
		res.Err = fmt.Errorf("querying %s: %w", addr, err)
		metrics.DNSCheckFailures.Inc()
		c.logger.Warn("dns check failed", "server", addr, "error", err)
		return res
	}

	metrics.DNSCheckDuration.Observe(elapsed.Seconds())
	res.Rcode = reply.Rcode
	res.OK = reply.Rcode == dns.RcodeSuccess
	if !res.OK {
		metrics.DNSCheckFailures.Inc()
		c.logger.Warn("dns check returned error rcode",
			"server", addr,
			"rcode", dns.RcodeToString[reply.Rcode])
		return res
	}

	c.logger.Debug("dns check ok",
		"server", addr,
		"latency_ms", float64(elapsed.Microseconds())/1000)
	return res
}
