package events

import (
	"log/slog"
	"os"
	"testing"
	"time"
)

func testLogger() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

func TestBusPublishSubscribe(t *testing.T) {
	bus := NewBus(100, testLogger())
	go bus.Start()
	defer bus.Stop()

	ch := bus.Subscribe(100)
	defer bus.Unsubscribe(ch)

	bus.Publish(Event{
		Type:      EventBound,
		Timestamp: time.Now(),
		Binding:   &BindingData{Addr: "192.168.4.77", Hostname: "athena-dhcpc-4F"},
	})

	select {
	case got := <-ch:
		if got.Type != EventBound {
			t.Errorf("event type = %q, want %q", got.Type, EventBound)
		}
		if got.Binding == nil || got.Binding.Addr != "192.168.4.77" {
			t.Error("binding data not preserved")
		}
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for event")
	}
}

func TestBusMultipleSubscribers(t *testing.T) {
	bus := NewBus(100, testLogger())
	go bus.Start()
	defer bus.Stop()

	ch1 := bus.Subscribe(100)
	ch2 := bus.Subscribe(100)
	defer bus.Unsubscribe(ch1)
	defer bus.Unsubscribe(ch2)

	bus.Publish(Event{Type: EventTimeout, Timestamp: time.Now()})

	for _, ch := range []<-chan Event{ch1, ch2} {
		select {
		case e := <-ch:
			if e.Type != EventTimeout {
				t.Errorf("event type = %q, want %q", e.Type, EventTimeout)
			}
		case <-time.After(time.Second):
			t.Fatal("timeout waiting for event on subscriber")
		}
	}
}

func TestBusUnsubscribe(t *testing.T) {
	bus := NewBus(100, testLogger())
	go bus.Start()
	defer bus.Stop()

	ch := bus.Subscribe(100)
	bus.Unsubscribe(ch)

	bus.Publish(Event{Type: EventReleased, Timestamp: time.Now()})
	time.Sleep(50 * time.Millisecond)

	select {
	case _, ok := <-ch:
		if ok {
			t.Error("should not receive events after unsubscribe")
		}
	default:
	}
}

func TestBusNonBlocking(t *testing.T) {
	bus := NewBus(1, testLogger())
	go bus.Start()
	defer bus.Stop()

	done := make(chan struct{})
	go func() {
		for i := 0; i < 100; i++ {
			bus.Publish(Event{Type: EventBound, Timestamp: time.Now()})
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("publishing blocked, bus must never block the poller")
	}
}

func TestToEnvVars(t *testing.T) {
	evt := Event{
		Type:      EventBound,
		Interface: "eth0",
		Binding: &BindingData{
			Addr:         "10.0.0.9",
			Netmask:      "255.255.255.0",
			Gateway:      "10.0.0.1",
			DNS:          "10.0.0.53",
			Server:       "10.0.0.1",
			Hostname:     "athena-dhcpc-4F",
			LeaseSeconds: 3600,
		},
	}
	env := evt.ToEnvVars()

	want := map[string]string{
		"ATHENA_EVENT":         "lease.bound",
		"ATHENA_IFACE":         "eth0",
		"ATHENA_IP":            "10.0.0.9",
		"ATHENA_NETMASK":       "255.255.255.0",
		"ATHENA_GATEWAY":       "10.0.0.1",
		"ATHENA_DNS":           "10.0.0.53",
		"ATHENA_SERVER":        "10.0.0.1",
		"ATHENA_HOSTNAME":      "athena-dhcpc-4F",
		"ATHENA_LEASE_SECONDS": "3600",
	}
	for k, v := range want {
		if env[k] != v {
			t.Errorf("env[%s] = %q, want %q", k, env[k], v)
		}
	}

	check := Event{
		Type:  EventDNSCheck,
		Check: &CheckData{Target: "10.0.0.53", OK: true, LatencyMillis: 4},
	}
	env = check.ToEnvVars()
	if env["ATHENA_CHECK_TARGET"] != "10.0.0.53" || env["ATHENA_CHECK_OK"] != "true" || env["ATHENA_CHECK_MS"] != "4" {
		t.Errorf("check env = %v", env)
	}
}

func TestHookRunnerMatches(t *testing.T) {
	all := NewHookRunner(HookConfig{Command: "true"}, 1, testLogger())
	if !all.Matches(EventBound) || !all.Matches(EventDNSCheck) {
		t.Error("empty event filter must match everything")
	}

	filtered := NewHookRunner(HookConfig{
		Command: "true",
		Events:  []EventType{EventBound, EventReleased},
	}, 1, testLogger())
	if !filtered.Matches(EventBound) {
		t.Error("listed event must match")
	}
	if filtered.Matches(EventTimeout) {
		t.Error("unlisted event must not match")
	}
}

func TestHookRunnerExecutes(t *testing.T) {
	dir := t.TempDir()
	out := dir + "/hook.out"
	r := NewHookRunner(HookConfig{
		Command: "printf '%s' \"$ATHENA_IP\" > " + out,
		Timeout: 5 * time.Second,
	}, 1, testLogger())

	r.Dispatch(Event{
		Type:    EventBound,
		Binding: &BindingData{Addr: "10.0.0.9"},
	})
	r.Wait()

	data, err := os.ReadFile(out)
	if err != nil {
		t.Fatalf("hook output: %v", err)
	}
	if string(data) != "10.0.0.9" {
		t.Errorf("hook saw ATHENA_IP = %q, want 10.0.0.9", data)
	}
}
