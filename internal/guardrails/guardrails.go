// Package guardrails implements the command safety policy: an absolute
// blocklist, approval-trigger patterns, and an allowed-directory check.
//
// Matching is deliberately coarse: case-insensitive substring containment.
// This favors false positives over false negatives (a benign command quoting
// "sudo " will over-trigger, and an equivalent command spelled differently
// will under-trigger). That trade-off is a known limitation of the policy,
// not an accident of the implementation.
package guardrails

import (
	"fmt"
	"strings"

	"github.com/warden-dev/warden/internal/config"
	"github.com/warden-dev/warden/internal/pathutil"
)

// Policy classifies commands and working directories. It is immutable after
// construction and safe for concurrent use.
type Policy struct {
	blocked          []string
	approval         []string
	allowedDirs      []string
	protectedRemotes []string
}

// NewPolicy builds a Policy from the guardrails configuration.
func NewPolicy(cfg config.GuardrailsConfig) *Policy {
	return &Policy{
		blocked:          append([]string(nil), cfg.BlockedCommands...),
		approval:         append([]string(nil), cfg.ApprovalPatterns...),
		allowedDirs:      append([]string(nil), cfg.AllowedDirectories...),
		protectedRemotes: append([]string(nil), cfg.ProtectedRemotes...),
	}
}

// IsBlocked reports whether the command matches the absolute blocklist.
// Matching is case-insensitive substring containment; any match blocks.
func (p *Policy) IsBlocked(command string) bool {
	cmd := strings.ToLower(strings.TrimSpace(command))
	for _, blocked := range p.blocked {
		if strings.Contains(cmd, strings.ToLower(blocked)) {
			return true
		}
	}
	return false
}

// RequiresApproval reports whether the command matches an approval-trigger
// pattern. The patterns are checked in order and the first match supplies
// the reason; ordering of the configured list is therefore an observable
// contract. Force pushes to a protected remote also require approval,
// checked after the substring patterns.
func (p *Policy) RequiresApproval(command string) (bool, string) {
	cmd := strings.ToLower(strings.TrimSpace(command))
	for _, pattern := range p.approval {
		if strings.Contains(cmd, strings.ToLower(pattern)) {
			return true, fmt.Sprintf("Command contains '%s' which requires approval", pattern)
		}
	}
	if forced, reason := p.IsProtectedForcePush(command); forced {
		return true, reason
	}
	return false, ""
}

// IsInAllowedDirectory reports whether path is equal to or a descendant of
// one of the allowed base directories. Both the candidate and each base are
// tilde-expanded and resolved (symlinks, "..") before the containment check.
func (p *Policy) IsInAllowedDirectory(path string) bool {
	candidate, err := pathutil.Canonicalize(path)
	if err != nil {
		return false
	}
	for _, dir := range p.allowedDirs {
		base, err := pathutil.Canonicalize(dir)
		if err != nil {
			continue
		}
		if pathutil.Contains(base, candidate) {
			return true
		}
	}
	return false
}

// ProtectedRemotes returns the configured protected git remote names.
func (p *Policy) ProtectedRemotes() []string {
	return append([]string(nil), p.protectedRemotes...)
}
