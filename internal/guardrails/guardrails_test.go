package guardrails

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/warden-dev/warden/internal/config"
)

func testPolicy() *Policy {
	return NewPolicy(config.GuardrailsConfig{
		BlockedCommands:    []string{"rm -rf /", "mkfs", "dd if="},
		ApprovalPatterns:   []string{"rm -rf", "sudo ", "DROP TABLE"},
		AllowedDirectories: []string{"~/work"},
		ProtectedRemotes:   []string{"origin", "upstream"},
	})
}

func TestIsBlocked(t *testing.T) {
	p := testPolicy()

	tests := []struct {
		name    string
		command string
		want    bool
	}{
		{"exact blocklist entry", "rm -rf /", true},
		{"blocklist entry embedded", "echo ok && rm -rf /", true},
		{"case-insensitive", "RM -RF /", true},
		{"mkfs variant", "mkfs.ext4 /dev/sdb1", true},
		{"dd", "dd if=/dev/zero of=/dev/sda", true},
		{"safe command", "ls -la", false},
		{"approval-only command not blocked", "rm -rf ./tmp", false},
		{"empty command", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := p.IsBlocked(tt.command); got != tt.want {
				t.Errorf("IsBlocked(%q) = %v, want %v", tt.command, got, tt.want)
			}
		})
	}
}

func TestRequiresApproval(t *testing.T) {
	p := testPolicy()

	t.Run("no match", func(t *testing.T) {
		needs, reason := p.RequiresApproval("echo hi")
		if needs {
			t.Errorf("RequiresApproval = true, reason %q", reason)
		}
		if reason != "" {
			t.Errorf("reason = %q, want empty", reason)
		}
	})

	t.Run("match carries pattern in reason", func(t *testing.T) {
		needs, reason := p.RequiresApproval("sudo systemctl restart nginx")
		if !needs {
			t.Fatal("RequiresApproval = false, want true")
		}
		want := "Command contains 'sudo ' which requires approval"
		if reason != want {
			t.Errorf("reason = %q, want %q", reason, want)
		}
	})

	t.Run("case-insensitive", func(t *testing.T) {
		needs, _ := p.RequiresApproval("psql -c 'drop table users'")
		if !needs {
			t.Error("RequiresApproval = false, want true for lowercased DROP TABLE")
		}
	})

	t.Run("first match wins", func(t *testing.T) {
		// Matches both "rm -rf" and "sudo "; list order says "rm -rf" first.
		needs, reason := p.RequiresApproval("sudo rm -rf ./build")
		if !needs {
			t.Fatal("RequiresApproval = false, want true")
		}
		want := "Command contains 'rm -rf' which requires approval"
		if reason != want {
			t.Errorf("reason = %q, want %q (first pattern in list order)", reason, want)
		}
	})

	t.Run("protected force push without pattern match", func(t *testing.T) {
		needs, reason := p.RequiresApproval("git push --force origin main")
		if !needs {
			t.Fatal("RequiresApproval = false, want true for protected force push")
		}
		want := "Force push to protected remote 'origin' requires approval"
		if reason != want {
			t.Errorf("reason = %q, want %q", reason, want)
		}
	})

	t.Run("empty command never matches", func(t *testing.T) {
		if needs, _ := p.RequiresApproval(""); needs {
			t.Error("empty command should not require approval")
		}
	})
}

func TestIsInAllowedDirectory(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)
	work := filepath.Join(home, "work")
	if err := os.MkdirAll(filepath.Join(work, "foo", "bar"), 0o755); err != nil {
		t.Fatal(err)
	}

	p := testPolicy()

	tests := []struct {
		name string
		path string
		want bool
	}{
		{"allowed base itself", "~/work", true},
		{"descendant", filepath.Join(work, "foo"), true},
		{"dot-dot resolves inside", "~/work/foo/../foo/bar", true},
		{"outside", "/etc", false},
		{"home but not allowed", "~", false},
		{"sibling name prefix", home + "/workspace", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := p.IsInAllowedDirectory(tt.path); got != tt.want {
				t.Errorf("IsInAllowedDirectory(%q) = %v, want %v", tt.path, got, tt.want)
			}
		})
	}
}

func TestIsProtectedForcePush(t *testing.T) {
	p := testPolicy()

	tests := []struct {
		name    string
		command string
		want    bool
	}{
		{"force to origin", "git push --force origin main", true},
		{"short flag", "git push -f origin main", true},
		{"force-with-lease", "git push --force-with-lease upstream main", true},
		{"no remote defaults to protected", "git push -f", true},
		{"unprotected remote", "git push --force fork main", false},
		{"plain push", "git push origin main", false},
		{"not git", "rsync --force a b", false},
		{"force push in chain", "make build && git push -f origin main", true},
		{"unparseable", "git push -f origin main && (", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, reason := p.IsProtectedForcePush(tt.command)
			if got != tt.want {
				t.Errorf("IsProtectedForcePush(%q) = %v (%q), want %v", tt.command, got, reason, tt.want)
			}
			if got && reason == "" {
				t.Error("matching force push should carry a reason")
			}
		})
	}
}

func TestIsProtectedForcePushNoRemotesConfigured(t *testing.T) {
	p := NewPolicy(config.GuardrailsConfig{
		AllowedDirectories: []string{"~/work"},
	})
	if got, _ := p.IsProtectedForcePush("git push --force origin main"); got {
		t.Error("no protected remotes configured; nothing should match")
	}
}
