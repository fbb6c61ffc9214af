package events

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"sync"
	"time"

	"github.com/athena-dhcpd/athena-dhcpc/internal/metrics"
)

// HookConfig binds a shell command to a set of event types. An empty Events
// list matches everything.
type HookConfig struct {
	Command string
	Events  []EventType
	Timeout time.Duration
}

// HookRunner executes the configured script hook for matching events, in the
// manner of dhclient-script: the event arrives as ATHENA_* environment
// variables and as JSON on stdin. Executions run in a bounded goroutine pool
// so a slow script can never back up the polling loop.
type HookRunner struct {
	cfg    HookConfig
	logger *slog.Logger
	sem    chan struct{}
	wg     sync.WaitGroup
}

// NewHookRunner creates a runner with the given concurrency limit.
func NewHookRunner(cfg HookConfig, concurrency int, logger *slog.Logger) *HookRunner {
	if concurrency <= 0 {
		concurrency = 2
	}
	return &HookRunner{
		cfg:    cfg,
		logger: logger,
		sem:    make(chan struct{}, concurrency),
	}
}

// Matches reports whether the hook subscribes to the event type.
func (r *HookRunner) Matches(t EventType) bool {
	if len(r.cfg.Events) == 0 {
		return true
	}
	for _, e := range r.cfg.Events {
		if e == t {
			return true
		}
	}
	return false
}

// Dispatch runs the hook for the event if it matches. Non-blocking; a full
// pool drops the execution.
func (r *HookRunner) Dispatch(evt Event) {
	if r.cfg.Command == "" || !r.Matches(evt.Type) {
		return
	}
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		select {
		case r.sem <- struct{}{}:
			defer func() { <-r.sem }()
		default:
			r.logger.Warn("hook pool full, dropping execution",
				"event", string(evt.Type))
			return
		}
		r.execute(evt)
	}()
}

func (r *HookRunner) execute(evt Event) {
	timeout := r.cfg.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, "/bin/sh", "-c", r.cfg.Command)

	env := os.Environ()
	for k, v := range evt.ToEnvVars() {
		env = append(env, fmt.Sprintf("%s=%s", k, v))
	}
	cmd.Env = env

	jsonData, err := json.Marshal(evt)
	if err != nil {
		r.logger.Error("failed to marshal event for hook stdin", "error", err)
		return
	}
	cmd.Stdin = bytes.NewReader(jsonData)

	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	start := time.Now()
	err = cmd.Run()
	duration := time.Since(start)
	metrics.HookDuration.Observe(duration.Seconds())

	if err != nil {
		metrics.HookExecutions.WithLabelValues("error").Inc()
		if ctx.Err() == context.DeadlineExceeded {
			r.logger.Error("hook timed out, killed",
				"command", r.cfg.Command,
				"timeout", timeout.String(),
				"event", string(evt.Type))
		} else {
			r.logger.Error("hook failed",
				"command", r.cfg.Command,
				"error", err,
				"stderr", stderr.String(),
				"event", string(evt.Type))
		}
		return
	}

	metrics.HookExecutions.WithLabelValues("success").Inc()
	r.logger.Debug("hook completed",
		"duration", duration.String(),
		"event", string(evt.Type))
}

// Wait blocks until all in-flight hook executions complete.
func (r *HookRunner) Wait() {
	r.wg.Wait()
}
