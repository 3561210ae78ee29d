package executor

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/warden-dev/warden/internal/approval"
	"github.com/warden-dev/warden/internal/audit"
	"github.com/warden-dev/warden/internal/clog"
	"github.com/warden-dev/warden/internal/guardrails"
	"github.com/warden-dev/warden/internal/pathutil"
	"github.com/warden-dev/warden/internal/procmgr"
)

// DefaultHistoryLimit caps the in-memory result history.
const DefaultHistoryLimit = 50

// Executor orchestrates the command lifecycle. Guardrail checks and
// approval waits always complete before any command text reaches a shell.
type Executor struct {
	policy          *guardrails.Policy
	procs           *procmgr.Manager
	broker          *approval.Broker
	audit           *audit.Logger
	approvalTimeout time.Duration
	defaultTimeout  time.Duration
	historyLimit    int

	mu      sync.Mutex
	history []Result

	// OnApprovalRequired fires after a pending approval is registered
	// with the broker, before the execution suspends.
	OnApprovalRequired func(approval.Pending)
	// OnApprovalResolved fires once per approval, whether resolved
	// explicitly or by timeout.
	OnApprovalResolved func(id string, approved bool)
	// OnResult fires for every terminal result, after it is recorded.
	OnResult func(Result)
	// OnServiceStarted fires when a background process is handed to the
	// process manager.
	OnServiceStarted func(procmgr.ProcessInfo, Request)
}

// Option configures an Executor.
type Option func(*Executor)

// WithProcessManager sets the manager used for background processes.
func WithProcessManager(m *procmgr.Manager) Option {
	return func(e *Executor) { e.procs = m }
}

// WithBroker sets the approval channel. Without one, commands that
// require approval are rejected outright.
func WithBroker(b *approval.Broker) Option {
	return func(e *Executor) { e.broker = b }
}

// WithAudit sets the audit trail logger.
func WithAudit(l *audit.Logger) Option {
	return func(e *Executor) { e.audit = l }
}

// WithApprovalTimeout overrides how long an execution waits for a
// pending approval to be resolved.
func WithApprovalTimeout(d time.Duration) Option {
	return func(e *Executor) { e.approvalTimeout = d }
}

// WithDefaultTimeout sets the foreground timeout used when a request
// does not carry one.
func WithDefaultTimeout(d time.Duration) Option {
	return func(e *Executor) {
		if d > 0 {
			e.defaultTimeout = d
		}
	}
}

// WithHistoryLimit overrides the result history cap.
func WithHistoryLimit(n int) Option {
	return func(e *Executor) {
		if n > 0 {
			e.historyLimit = n
		}
	}
}

// New creates an Executor enforcing the given policy.
func New(policy *guardrails.Policy, opts ...Option) *Executor {
	e := &Executor{
		policy:          policy,
		procs:           procmgr.NewManager(),
		approvalTimeout: approval.DefaultTimeout,
		defaultTimeout:  DefaultCommandTimeout,
		historyLimit:    DefaultHistoryLimit,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Processes returns the manager tracking background processes.
func (e *Executor) Processes() *procmgr.Manager {
	return e.procs
}

// Broker returns the approval broker, nil when no approval channel is
// configured.
func (e *Executor) Broker() *approval.Broker {
	return e.broker
}

// Execute runs a single command through the full lifecycle and returns
// its terminal result. Concurrent calls are safe; each suspends
// independently while waiting for approval or subprocess exit.
func (e *Executor) Execute(ctx context.Context, req Request) Result {
	cwd, err := pathutil.Canonicalize(req.Cwd)
	if err != nil {
		cwd = req.Cwd
	}

	result := Result{Command: req.Command, Cwd: cwd, Status: StatusPending}

	e.audit.LogRequest(req.Command, cwd)

	if e.policy.IsBlocked(req.Command) {
		result.Status = StatusBlocked
		result.BlockedReason = "Command matches absolute blocklist"
		clog.Error("blocked command: %s", req.Command)
		e.audit.LogBlocked(req.Command, cwd, result.BlockedReason)
		return e.record(result)
	}

	if !e.policy.IsInAllowedDirectory(cwd) {
		result.Status = StatusBlocked
		result.BlockedReason = fmt.Sprintf("Directory %s is not in allowed directories", cwd)
		clog.Error("blocked: directory not allowed: %s", cwd)
		e.audit.LogBlocked(req.Command, cwd, result.BlockedReason)
		return e.record(result)
	}

	if needs, reason := e.policy.RequiresApproval(req.Command); needs {
		result.ApprovalReason = reason
		clog.Warn("approval required: %s (%s)", req.Command, reason)

		if e.broker == nil {
			result.Status = StatusRejected
			result.BlockedReason = "No approval handler configured"
			e.audit.LogDeny(req.Command, "", result.BlockedReason)
			return e.record(result)
		}

		approved := e.awaitApproval(ctx, req.Command, cwd, reason)
		if !approved {
			result.Status = StatusRejected
			clog.Info("command rejected: %s", req.Command)
			return e.record(result)
		}
		result.Status = StatusApproved
	}

	result.Status = StatusRunning
	result.StartedAt = timePtr(time.Now())
	clog.Info("executing: %s in %s", req.Command, cwd)

	if req.Background {
		e.runBackground(req, cwd, &result)
	} else {
		e.runForeground(req, cwd, &result)
	}

	result.CompletedAt = timePtr(time.Now())
	clog.Info("completed: %s (%s)", req.Command, result.Status)
	return e.record(result)
}

// awaitApproval registers a pending approval and suspends until it is
// resolved, the timeout fires, or the context is canceled. The timer is
// a hard upper bound; a resolve arriving after it fires is rejected by
// the broker because the id is no longer registered.
func (e *Executor) awaitApproval(ctx context.Context, command, cwd, reason string) bool {
	pending := approval.NewPending(command, cwd, reason)
	ch := e.broker.Register(pending)
	e.audit.LogApprovalRequired(command, cwd, pending.ID, reason)
	if e.OnApprovalRequired != nil {
		e.OnApprovalRequired(pending)
	}

	timer := time.NewTimer(e.approvalTimeout)
	defer timer.Stop()

	var approved bool
	select {
	case approved = <-ch:
	case <-timer.C:
		if e.broker.Remove(pending.ID) {
			clog.Warn("approval timed out: %s (%s)", command, pending.ID)
			e.audit.LogTimeout(command, cwd)
			approved = false
		} else {
			// A resolve won the race against the timer; the
			// channel is buffered so the answer is already there.
			approved = <-ch
		}
	case <-ctx.Done():
		if e.broker.Remove(pending.ID) {
			approved = false
		} else {
			approved = <-ch
		}
	}

	if approved {
		e.audit.LogApprove(command, pending.ID)
	} else {
		e.audit.LogDeny(command, pending.ID, "")
	}
	if e.OnApprovalResolved != nil {
		e.OnApprovalResolved(pending.ID, approved)
	}
	return approved
}

// runBackground hands the command to the process manager and reports the
// assigned process id. The caller owns monitoring it afterward.
func (e *Executor) runBackground(req Request, cwd string, result *Result) {
	info, err := e.procs.Start(req.Command, cwd, req.Env)
	if err != nil {
		result.Status = StatusFailed
		result.Stderr = err.Error()
		return
	}
	result.Status = StatusCompleted
	result.Stdout = fmt.Sprintf("Started background process: %s (PID: %d)", info.ID, info.PID)
	result.ExitCode = intPtr(0)
	e.audit.LogProcStart(info.ID, req.Command, cwd)
	if e.OnServiceStarted != nil {
		e.OnServiceStarted(info, req)
	}
}

// runForeground runs the command through the shell, bounded by the
// request timeout. On expiry the whole process group is killed so
// children do not outlive the run.
func (e *Executor) runForeground(req Request, cwd string, result *Result) {
	timeout := req.Timeout
	if timeout <= 0 {
		timeout = e.defaultTimeout
	}

	cmd := exec.Command("/bin/sh", "-c", req.Command)
	cmd.Dir = cwd
	cmd.Env = mergedEnv(req.Env)
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Start(); err != nil {
		result.Status = StatusFailed
		result.Stderr = err.Error()
		return
	}

	done := make(chan error, 1)
	go func() { done <- cmd.Wait() }()

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case err := <-done:
		result.Stdout = decode(stdout.Bytes())
		result.Stderr = decode(stderr.Bytes())
		code := cmd.ProcessState.ExitCode()
		result.ExitCode = intPtr(code)
		if err == nil && code == 0 {
			result.Status = StatusCompleted
		} else {
			result.Status = StatusFailed
		}
	case <-timer.C:
		syscall.Kill(-cmd.Process.Pid, syscall.SIGKILL)
		<-done
		result.Status = StatusTimeout
		result.Stderr = fmt.Sprintf("Command timed out after %d seconds", int(timeout.Seconds()))
		e.audit.LogTimeout(req.Command, cwd)
	}

	if result.Status == StatusCompleted || result.Status == StatusFailed {
		duration := time.Duration(0)
		if result.StartedAt != nil {
			duration = time.Since(*result.StartedAt)
		}
		e.audit.LogComplete(req.Command, cwd, derefExit(result.ExitCode), duration)
	}
}

// record appends a terminal result to the bounded history and notifies
// the result hook. Append order reflects completion order.
func (e *Executor) record(result Result) Result {
	e.mu.Lock()
	e.history = append(e.history, result)
	if len(e.history) > e.historyLimit {
		e.history = e.history[len(e.history)-e.historyLimit:]
	}
	e.mu.Unlock()

	if e.OnResult != nil {
		e.OnResult(result)
	}
	return result
}

// History returns up to limit of the most recent results, oldest first.
// A non-positive limit returns the full retained history.
func (e *Executor) History(limit int) []Result {
	e.mu.Lock()
	defer e.mu.Unlock()
	n := len(e.history)
	if limit > 0 && limit < n {
		n = limit
	}
	out := make([]Result, n)
	copy(out, e.history[len(e.history)-n:])
	return out
}

// decode converts captured output to a string, replacing invalid UTF-8
// rather than failing.
func decode(b []byte) string {
	return strings.ToValidUTF8(string(b), "�")
}

func derefExit(code *int) int {
	if code == nil {
		return -1
	}
	return *code
}

// mergedEnv layers overrides on top of the parent environment.
func mergedEnv(env map[string]string) []string {
	if len(env) == 0 {
		return nil
	}
	merged := os.Environ()
	for k, v := range env {
		merged = append(merged, k+"="+v)
	}
	return merged
}
