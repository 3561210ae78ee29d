// Package procmgr owns the table of background OS processes spawned by the
// daemon. Processes are started in their own process group so the whole
// subtree can be signaled together, and are referenced by an internally
// assigned id.
package procmgr

import (
	"fmt"
	"os"
	"os/exec"
	"sort"
	"strconv"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/warden-dev/warden/internal/clog"
)

// DefaultGracePeriod is how long Stop waits after SIGTERM before escalating
// to SIGKILL.
const DefaultGracePeriod = 5 * time.Second

// ProcessInfo is a best-effort snapshot of a managed process.
type ProcessInfo struct {
	ID        string    `json:"id"`
	PID       int       `json:"pid"`
	Command   string    `json:"command"`
	Cwd       string    `json:"cwd"`
	Running   bool      `json:"running"`
	MemoryMB  float64   `json:"memory_mb,omitempty"`
	StartedAt time.Time `json:"started_at"`
}

// managed is one tracked background process.
type managed struct {
	id        string
	command   string
	cwd       string
	cmd       *exec.Cmd
	startedAt time.Time
	done      chan struct{} // closed once Wait returns
}

// Manager tracks spawned background processes. It is safe for concurrent use.
type Manager struct {
	mu      sync.Mutex
	procs   map[string]*managed
	counter int
	grace   time.Duration
}

// NewManager creates an empty Manager with the default grace period.
func NewManager() *Manager {
	return NewManagerWithGrace(DefaultGracePeriod)
}

// NewManagerWithGrace creates an empty Manager with a custom SIGTERM grace
// period before SIGKILL escalation.
func NewManagerWithGrace(grace time.Duration) *Manager {
	return &Manager{
		procs: make(map[string]*managed),
		grace: grace,
	}
}

// Start launches command through a shell in a new process group and tracks
// it. It returns immediately after the spawn; completion is observed via
// Info/List/CleanupDead. Output is discarded: background processes are
// expected to do their own logging.
func (m *Manager) Start(command, cwd string, env map[string]string) (ProcessInfo, error) {
	cmd := exec.Command("/bin/sh", "-c", command)
	cmd.Dir = cwd
	cmd.Stdout = nil
	cmd.Stderr = nil
	cmd.Env = mergedEnv(env)
	// New process group so Stop can signal the entire subtree.
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}

	if err := cmd.Start(); err != nil {
		return ProcessInfo{}, fmt.Errorf("start process: %w", err)
	}

	m.mu.Lock()
	m.counter++
	id := fmt.Sprintf("proc_%d", m.counter)
	proc := &managed{
		id:        id,
		command:   command,
		cwd:       cwd,
		cmd:       cmd,
		startedAt: time.Now(),
		done:      make(chan struct{}),
	}
	m.procs[id] = proc
	m.mu.Unlock()

	// Reap in the background so the child never becomes a zombie.
	go func() {
		_ = cmd.Wait()
		close(proc.done)
	}()

	clog.Info("procmgr: started %s (pid %d): %s", id, cmd.Process.Pid, command)
	return m.snapshot(proc), nil
}

// Stop terminates the process group of the given id: SIGTERM first, then
// SIGKILL if the group has not exited within the grace period. Returns false
// if the id is unknown. Signaling an already-dead group is swallowed; the
// table entry is removed either way.
func (m *Manager) Stop(id string) bool {
	m.mu.Lock()
	proc, ok := m.procs[id]
	if ok {
		delete(m.procs, id)
	}
	m.mu.Unlock()

	if !ok {
		return false
	}

	pgid := proc.cmd.Process.Pid // Setpgid makes the child its own group leader

	// ESRCH here means the group already exited; that race is expected.
	_ = syscall.Kill(-pgid, syscall.SIGTERM)

	select {
	case <-proc.done:
	case <-time.After(m.grace):
		clog.Warn("procmgr: %s did not exit within %v, sending SIGKILL", id, m.grace)
		_ = syscall.Kill(-pgid, syscall.SIGKILL)
		<-proc.done
	}

	clog.Info("procmgr: stopped %s (pid %d)", id, pgid)
	return true
}

// Info returns a best-effort snapshot for the given id. The second return
// is false if the id is unknown. A process whose OS-level lookup fails is
// reported as not running rather than as an error.
func (m *Manager) Info(id string) (ProcessInfo, bool) {
	m.mu.Lock()
	proc, ok := m.procs[id]
	m.mu.Unlock()

	if !ok {
		return ProcessInfo{}, false
	}
	return m.snapshot(proc), true
}

// List returns snapshots of all currently tracked processes, ordered by id
// assignment (oldest first).
func (m *Manager) List() []ProcessInfo {
	m.mu.Lock()
	procs := make([]*managed, 0, len(m.procs))
	for _, p := range m.procs {
		procs = append(procs, p)
	}
	m.mu.Unlock()

	sort.Slice(procs, func(i, j int) bool {
		return procs[i].startedAt.Before(procs[j].startedAt)
	})

	result := make([]ProcessInfo, 0, len(procs))
	for _, p := range procs {
		result = append(result, m.snapshot(p))
	}
	return result
}

// CleanupDead removes table entries whose process has already exited,
// without signaling anything.
func (m *Manager) CleanupDead() {
	m.mu.Lock()
	defer m.mu.Unlock()

	for id, proc := range m.procs {
		select {
		case <-proc.done:
			clog.Debug("procmgr: reaping dead entry %s", id)
			delete(m.procs, id)
		default:
		}
	}
}

// Len returns the number of tracked processes.
func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.procs)
}

// StopAll stops every tracked process and returns the ids stopped.
func (m *Manager) StopAll() []string {
	m.mu.Lock()
	ids := make([]string, 0, len(m.procs))
	for id := range m.procs {
		ids = append(ids, id)
	}
	m.mu.Unlock()

	sort.Strings(ids)
	stopped := ids[:0]
	for _, id := range ids {
		if m.Stop(id) {
			stopped = append(stopped, id)
		}
	}
	return stopped
}

// snapshot builds a ProcessInfo for a managed process.
func (m *Manager) snapshot(proc *managed) ProcessInfo {
	info := ProcessInfo{
		ID:        proc.id,
		PID:       proc.cmd.Process.Pid,
		Command:   proc.command,
		Cwd:       proc.cwd,
		StartedAt: proc.startedAt,
	}
	select {
	case <-proc.done:
		info.Running = false
	default:
		info.Running = true
		info.MemoryMB = residentMemoryMB(info.PID)
	}
	return info
}

// residentMemoryMB reads the resident set size from /proc. Returns 0 on any
// failure (non-Linux platform, process already reaped).
func residentMemoryMB(pid int) float64 {
	data, err := os.ReadFile(fmt.Sprintf("/proc/%d/statm", pid))
	if err != nil {
		return 0
	}
	fields := strings.Fields(string(data))
	if len(fields) < 2 {
		return 0
	}
	pages, err := strconv.ParseFloat(fields[1], 64)
	if err != nil {
		return 0
	}
	return pages * float64(os.Getpagesize()) / 1024 / 1024
}

// mergedEnv returns the daemon environment with overrides applied.
func mergedEnv(env map[string]string) []string {
	if len(env) == 0 {
		return nil // nil means inherit os.Environ()
	}
	merged := os.Environ()
	for k, v := range env {
		merged = append(merged, k+"="+v)
	}
	return merged
}
