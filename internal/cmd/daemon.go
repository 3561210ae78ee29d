package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	xterm "golang.org/x/term"

	"github.com/warden-dev/warden/internal/approval"
	"github.com/warden-dev/warden/internal/audit"
	"github.com/warden-dev/warden/internal/clog"
	"github.com/warden-dev/warden/internal/config"
	"github.com/warden-dev/warden/internal/executor"
	"github.com/warden-dev/warden/internal/guardrails"
	"github.com/warden-dev/warden/internal/hub"
	"github.com/warden-dev/warden/internal/notify"
	"github.com/warden-dev/warden/internal/pathutil"
	"github.com/warden-dev/warden/internal/procmgr"
	"github.com/warden-dev/warden/internal/prompt"
	"github.com/warden-dev/warden/internal/server"
	"github.com/warden-dev/warden/internal/store"
	"github.com/warden-dev/warden/internal/term"
)

var (
	flagDaemonPrompt     bool
	flagDaemonForeground bool
)

var daemonCmd = &cobra.Command{
	Use:   "daemon",
	Short: "Run the warden daemon",
	Long: `Run the warden daemon: the HTTP API, the websocket observer
endpoint, the guardrail policy, and the background process manager.

The daemon stays in the foreground; use your service manager to
daemonize it. With --prompt and an attached terminal, pending approvals
are also asked interactively on the console.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}
		return runDaemon(cmd.Context(), cfg)
	},
}

func init() {
	daemonCmd.Flags().BoolVar(&flagDaemonPrompt, "prompt", false,
		"answer approvals interactively on the console (requires a terminal)")
	daemonCmd.Flags().BoolVar(&flagDaemonForeground, "foreground", false,
		"log warnings and errors to stderr in addition to the log file")
	rootCmd.AddCommand(daemonCmd)
}

func runDaemon(ctx context.Context, cfg *config.Config) error {
	logPath := cfg.Log.File
	if logPath == "" {
		logPath = clog.DefaultLogPath()
	}
	if err := clog.Configure(logPath, cfg.Log.Level == "debug", !flagDaemonForeground); err != nil {
		return fmt.Errorf("failed to configure logging: %w", err)
	}
	clog.SetLevel(clog.ParseLevel(cfg.Log.Level))
	defer clog.Close()

	var auditLog *audit.Logger
	if cfg.AuditFile != "" {
		f, err := os.OpenFile(cfg.AuditFile, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o600)
		if err != nil {
			return fmt.Errorf("failed to open audit file: %w", err)
		}
		defer f.Close()
		auditLog = audit.NewLogger(f)
	}

	var st *store.Store
	if cfg.StorePath != "" {
		var err error
		st, err = store.Open(cfg.StorePath)
		if err != nil {
			return fmt.Errorf("failed to open store: %w", err)
		}
		defer st.Close()
	}

	policy := guardrails.NewPolicy(cfg.Guardrails)
	broker := approval.NewBroker()
	procs := procmgr.NewManager()
	h := hub.New(hub.WithCommandLimit(cfg.HistoryLimit))
	if len(cfg.Guardrails.AllowedDirectories) > 0 {
		if root, err := pathutil.Canonicalize(cfg.Guardrails.AllowedDirectories[0]); err == nil {
			h.SetProject(hub.Project{Name: filepath.Base(root), Root: root})
		}
	}
	var notifier notify.Notifier = notify.LogNotifier{}

	exec := executor.New(policy,
		executor.WithBroker(broker),
		executor.WithProcessManager(procs),
		executor.WithAudit(auditLog),
		executor.WithApprovalTimeout(time.Duration(cfg.ApprovalTimeoutSecs)*time.Second),
		executor.WithDefaultTimeout(time.Duration(cfg.CommandTimeoutSecs)*time.Second),
		executor.WithHistoryLimit(cfg.HistoryLimit),
	)

	promptApprovals := flagDaemonPrompt && xterm.IsTerminal(int(os.Stdin.Fd()))
	if flagDaemonPrompt && !promptApprovals {
		term.Warn("--prompt ignored: stdin is not a terminal")
	}
	approver := &prompt.TerminalApprover{
		Prompter: prompt.NewStdinYesNoPrompter(os.Stdin, os.Stderr),
		Broker:   broker,
	}

	exec.OnApprovalRequired = func(p approval.Pending) {
		h.AddPendingApproval(p)
		notify.ApprovalRequired(notifier, p.Command, p.Reason)
		if promptApprovals {
			go approver.HandleApproval(p)
		}
	}
	exec.OnApprovalResolved = func(id string, approved bool) {
		h.RemovePendingApproval(id)
	}
	exec.OnServiceStarted = func(info procmgr.ProcessInfo, req executor.Request) {
		h.AddService(hub.ServiceInfo{
			ID:        info.ID,
			Name:      req.Command,
			Command:   req.Command,
			Cwd:       info.Cwd,
			PID:       info.PID,
			StartedAt: info.StartedAt,
			Status:    "running",
		})
		notify.ServiceStarted(notifier, req.Command, info.ID)
	}
	exec.OnResult = func(res executor.Result) {
		ev := hub.CommandEvent{
			Command:  res.Command,
			Cwd:      res.Cwd,
			Status:   string(res.Status),
			ExitCode: res.ExitCode,
			Stdout:   res.Stdout,
			Stderr:   res.Stderr,
		}
		if res.CompletedAt != nil {
			ev.Timestamp = *res.CompletedAt
		}
		h.AddCommand(ev)
		notify.CommandCompleted(notifier, res.Command, string(res.Status))

		rec := store.CommandRecord{
			Command:   ev.Command,
			Cwd:       ev.Cwd,
			Status:    ev.Status,
			ExitCode:  ev.ExitCode,
			Timestamp: ev.Timestamp,
		}
		if err := st.AppendResult(rec); err != nil {
			clog.Warn("failed to persist command result: %v", err)
		}
	}

	srv := server.New(cfg.Listen, exec, h, st)
	if err := srv.Start(); err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	h.StartHeartbeat(ctx, hub.DefaultHeartbeatInterval)
	go reapServices(ctx, procs, h, notifier)

	clog.Info("warden daemon listening on %s", srv.ListenAddr())
	term.Printf("warden daemon listening on %s\n", srv.ListenAddr())

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	select {
	case s := <-sig:
		clog.Info("received %s, shutting down", s)
	case <-ctx.Done():
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := srv.Stop(shutdownCtx); err != nil {
		clog.Warn("server shutdown: %v", err)
	}
	for _, id := range procs.StopAll() {
		clog.Info("stopped background process %s", id)
	}
	return nil
}

// reapServices periodically drops exited background processes from the
// process table and the observer-visible service map.
func reapServices(ctx context.Context, procs *procmgr.Manager, h *hub.Hub, notifier notify.Notifier) {
	ticker := time.NewTicker(10 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			for _, info := range procs.List() {
				if !info.Running {
					h.UpdateServiceStatus(info.ID, "stopped")
					h.RemoveService(info.ID)
					notify.ServiceStopped(notifier, info.ID)
				}
			}
			procs.CleanupDead()
		}
	}
}
