// athena-dhcpc is a polling DHCPv4 client daemon: one interface, one lease,
// no blocking inside the protocol engine.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net"
	nethttp "net/http"
	_ "net/http/pprof"
	"os"
	"os/signal"
	"path/filepath"
	"runtime"
	"strconv"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/athena-dhcpd/athena-dhcpc/internal/client"
	"github.com/athena-dhcpd/athena-dhcpc/internal/config"
	"github.com/athena-dhcpd/athena-dhcpc/internal/dnscheck"
	"github.com/athena-dhcpd/athena-dhcpc/internal/events"
	"github.com/athena-dhcpd/athena-dhcpc/internal/journal"
	"github.com/athena-dhcpd/athena-dhcpc/internal/logging"
	"github.com/athena-dhcpd/athena-dhcpc/internal/netprobe"
	"github.com/athena-dhcpd/athena-dhcpc/internal/transport"
	"github.com/athena-dhcpd/athena-dhcpc/pkg/dhcpv4"
)

func main() {
	configPath := flag.String("config", "/etc/athena-dhcpc/config.toml", "path to configuration file")
	ifaceFlag := flag.String("interface", "", "network interface (overrides config)")
	hostnameFlag := flag.String("hostname", "", "hostname to advertise (overrides config)")
	debugPort := flag.String("debug-port", "", "enable pprof debug server on this port (e.g. 6060)")
	flag.Parse()

	if *debugPort != "" {
		runtime.SetMutexProfileFraction(5)
		runtime.SetBlockProfileRate(1)
		go func() {
			addr := "127.0.0.1:" + *debugPort
			fmt.Fprintf(os.Stderr, "pprof debug server on http://%s/debug/pprof/\n", addr)
			if err := nethttp.ListenAndServe(addr, nil); err != nil {
				fmt.Fprintf(os.Stderr, "pprof server failed: %v\n", err)
			}
		}()
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		// The default path is allowed to be absent; an explicit one is not.
		if errors.Is(err, os.ErrNotExist) && !flagPassed("config") {
			cfg = config.Default()
		} else {
			fmt.Fprintf(os.Stderr, "FATAL: %v\n", err)
			os.Exit(1)
		}
	}
	if *ifaceFlag != "" {
		cfg.Client.Interface = *ifaceFlag
	}
	if *hostnameFlag != "" {
		cfg.Client.Hostname = *hostnameFlag
	}

	logger := logging.Setup(cfg.Client.LogLevel, os.Stdout)
	logger.Info("athena-dhcpc starting",
		"config", *configPath,
		"interface", cfg.Client.Interface)

	iface, err := net.InterfaceByName(cfg.Client.Interface)
	if err != nil {
		logger.Error("interface not found", "interface", cfg.Client.Interface, "error", err)
		os.Exit(1)
	}
	if len(iface.HardwareAddr) != dhcpv4.HardwareAddrLen {
		logger.Error("interface has no usable hardware address",
			"interface", cfg.Client.Interface,
			"hwaddr", iface.HardwareAddr.String())
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Event bus
	bus := events.NewBus(cfg.Hooks.EventBufferSize, logger)
	go bus.Start()
	defer bus.Stop()

	// Diagnostic journal
	var jr *journal.Journal
	if cfg.Journal.Enabled {
		jr, err = journal.Open(cfg.Journal.Path)
		if err != nil {
			logger.Error("failed to open journal", "error", err)
			os.Exit(1)
		}
		defer jr.Close()
		if err := jr.Prune(cfg.Journal.MaxEntries); err != nil {
			logger.Warn("journal prune failed", "error", err)
		}
		jrCh := bus.Subscribe(cfg.Hooks.EventBufferSize)
		go jr.Consume(jrCh, func(err error) {
			logger.Warn("journal write failed", "error", err)
		})
		logger.Info("journal open", "path", cfg.Journal.Path)
	}

	// Script hook
	hookTimeout, _ := config.ParseDuration(cfg.Hooks.Timeout)
	var hookEvents []events.EventType
	for _, e := range cfg.Hooks.Events {
		hookEvents = append(hookEvents, events.EventType(e))
	}
	hooks := events.NewHookRunner(events.HookConfig{
		Command: cfg.Hooks.Command,
		Events:  hookEvents,
		Timeout: hookTimeout,
	}, cfg.Hooks.Concurrency, logger)
	if cfg.Hooks.Command != "" {
		hookCh := bus.Subscribe(cfg.Hooks.EventBufferSize)
		go func() {
			for evt := range hookCh {
				hooks.Dispatch(evt)
			}
		}()
		logger.Info("script hook enabled", "command", cfg.Hooks.Command)
	}

	// Metrics endpoint
	if cfg.Metrics.Enabled {
		mux := nethttp.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		go func() {
			logger.Info("metrics endpoint listening", "listen", cfg.Metrics.Listen)
			if err := nethttp.ListenAndServe(cfg.Metrics.Listen, mux); err != nil {
				logger.Error("metrics endpoint failed", "error", err)
			}
		}()
	}

	// Post-bind checks
	var dnsChecker *dnscheck.Checker
	if cfg.Checks.DNS {
		dnsTimeout, _ := config.ParseDuration(cfg.Checks.DNSTimeout)
		dnsChecker = dnscheck.New(dnsTimeout, logger)
	}
	var gwProber *netprobe.Prober
	if cfg.Checks.Gateway {
		gwProber, err = netprobe.NewProber(logger)
		if err != nil {
			logger.Warn("gateway prober unavailable", "error", err)
		} else {
			defer gwProber.Close()
		}
	}

	// Transport and session
	udp, err := transport.NewUDP(cfg.Client.Interface, logger)
	if err != nil {
		logger.Error("failed to open client socket", "error", err)
		os.Exit(1)
	}
	defer udp.Close()

	var session *client.Session
	session, err = client.New(client.Config{
		HardwareAddr: iface.HardwareAddr,
		Transport:    udp,
		Retry: client.FixedRetry{
			IntervalMillis: uint32(cfg.RequestTimeout().Milliseconds()),
		},
		Logger: logger,
		OnTransition: func(old, new client.State) {
			publishTransition(ctx, bus, cfg, session, old, new, dnsChecker, gwProber, logger)
		},
	})
	if err != nil {
		logger.Error("failed to create session", "error", err)
		os.Exit(1)
	}

	if code := cfg.Client.CustomOption; code != 0 {
		custom := dhcpv4.OptionCode(code)
		session.RegisterOption(custom, func(c dhcpv4.OptionCode, data []byte) {
			if c == custom {
				logger.Debug("custom option received",
					"code", uint8(c),
					"bytes", fmt.Sprintf("%x", data))
			}
		})
	}

	if cfg.Client.PIDFile != "" {
		if err := writePIDFile(cfg.Client.PIDFile); err != nil {
			logger.Warn("failed to write PID file", "path", cfg.Client.PIDFile, "error", err)
		} else {
			defer removePIDFile(cfg.Client.PIDFile)
		}
	}

	session.Setup(cfg.Client.Hostname)
	logger.Info("athena-dhcpc ready",
		"hwaddr", iface.HardwareAddr.String(),
		"hostname", session.Hostname(),
		"poll_interval", cfg.PollInterval().String())

	// Polling loop. The session is single-threaded: the loop owns every Step
	// and the final Release.
	stop := make(chan struct{})
	loopDone := make(chan struct{})
	go func() {
		defer close(loopDone)
		for {
			select {
			case <-stop:
				if err := session.Release(); err != nil {
					logger.Warn("release send failed on shutdown", "error", err)
				}
				return
			default:
			}
			n, srcPort, err := udp.Poll(cfg.PollInterval())
			if err != nil {
				logger.Error("receive failed", "error", err)
				continue
			}
			session.Step(n, srcPort)
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh
	logger.Info("received shutdown signal", "signal", sig.String())

	cancel()
	close(stop)
	select {
	case <-loopDone:
	case <-time.After(5 * time.Second):
		logger.Warn("polling loop did not stop in time")
	}
	hooks.Wait()
	logger.Info("athena-dhcpc stopped")
}

// publishTransition turns a state change into bus events and kicks off the
// post-bind checks.
func publishTransition(ctx context.Context, bus *events.Bus, cfg *config.Config,
	session *client.Session, old, new client.State,
	dnsChecker *dnscheck.Checker, gwProber *netprobe.Prober, logger *slog.Logger) {

	evt := events.Event{
		Timestamp: time.Now(),
		Interface: cfg.Client.Interface,
	}

	switch new {
	case client.StateSelecting:
		evt.Type = events.EventDiscover
	case client.StateRequesting:
		evt.Type = events.EventOffer
	case client.StateBound:
		evt.Type = events.EventBound
		evt.Binding = bindingData(session)
	case client.StateRenewing:
		evt.Type = events.EventRenewing
		evt.Binding = bindingData(session)
	case client.StateInit:
		if old == client.StateReleased {
			// Initial arming is not an event.
			return
		}
		evt.Type = events.EventTimeout
		evt.Reason = old.String()
	case client.StateReleased:
		evt.Type = events.EventReleased
	default:
		return
	}

	bus.Publish(evt)

	if new == client.StateBound {
		b := session.Binding()
		go runPostBindChecks(ctx, bus, cfg, b, dnsChecker, gwProber, logger)
	}
}

// runPostBindChecks verifies the delivered DNS server and gateway and
// publishes the outcomes. Purely diagnostic.
func runPostBindChecks(ctx context.Context, bus *events.Bus, cfg *config.Config,
	b client.Binding, dnsChecker *dnscheck.Checker, gwProber *netprobe.Prober,
	logger *slog.Logger) {

	if dnsChecker != nil && !b.DNS.IsZero() {
		res := dnsChecker.Check(b.DNS.String())
		detail := ""
		if res.Err != nil {
			detail = res.Err.Error()
		}
		bus.Publish(events.Event{
			Type:      events.EventDNSCheck,
			Timestamp: time.Now(),
			Interface: cfg.Client.Interface,
			Check: &events.CheckData{
				Target:        res.Server,
				OK:            res.OK,
				LatencyMillis: res.Latency.Milliseconds(),
				Detail:        detail,
			},
		})
	}

	if gwProber != nil && gwProber.Available() && !b.Gateway.IsZero() {
		timeout, _ := config.ParseDuration(cfg.Checks.GatewayTimeout)
		probeCtx, cancel := context.WithTimeout(ctx, timeout)
		start := time.Now()
		answered, err := gwProber.Probe(probeCtx, b.Gateway.IP())
		cancel()
		detail := ""
		if err != nil {
			detail = err.Error()
			logger.Warn("gateway probe failed", "error", err)
		}
		bus.Publish(events.Event{
			Type:      events.EventGatewayProbe,
			Timestamp: time.Now(),
			Interface: cfg.Client.Interface,
			Check: &events.CheckData{
				Target:        b.Gateway.String(),
				OK:            answered,
				LatencyMillis: time.Since(start).Milliseconds(),
				Detail:        detail,
			},
		})
	}
}

// bindingData snapshots the session's binding for an event payload.
func bindingData(session *client.Session) *events.BindingData {
	b := session.Binding()
	leaseSecs := int64(-1)
	if ms := session.LeaseMillis(); ms != dhcpv4.InfiniteLease {
		leaseSecs = int64(ms) / 1000
	}
	return &events.BindingData{
		Addr:         b.Addr.String(),
		Netmask:      b.Netmask.String(),
		Gateway:      b.Gateway.String(),
		DNS:          b.DNS.String(),
		Server:       b.ServerID.String(),
		Hostname:     session.Hostname(),
		LeaseSeconds: leaseSecs,
	}
}

// writePIDFile writes the current process ID to the given path.
func writePIDFile(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("creating PID directory %s: %w", dir, err)
		}
	}
	return os.WriteFile(path, []byte(strconv.Itoa(os.Getpid())+"\n"), 0644)
}

// removePIDFile removes the PID file.
func removePIDFile(path string) {
	os.Remove(path)
}

// flagPassed reports whether the named flag was set on the command line.
func flagPassed(name string) bool {
	passed := false
	flag.Visit(func(f *flag.Flag) {
		if f.Name == name {
			passed = true
		}
	})
	return passed
}
