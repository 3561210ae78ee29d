package guardrails

import (
	"fmt"
	"strings"

	"mvdan.cc/sh/v3/syntax"
)

// IsProtectedForcePush reports whether the command contains a git force push
// targeting a protected remote. Unlike the substring patterns, this check
// parses the command with a real shell grammar, so it sees through pipelines
// and chained commands but only flags actual git invocations.
//
// A force push with no explicit remote is treated as targeting the first
// protected remote (git defaults to origin).
func (p *Policy) IsProtectedForcePush(command string) (bool, string) {
	if len(p.protectedRemotes) == 0 {
		return false, ""
	}

	for _, words := range shellCalls(command) {
		remote, forced := parseGitPush(words)
		if !forced {
			continue
		}
		if remote == "" {
			// git push -f with no remote goes to the configured default,
			// conventionally origin.
			remote = p.protectedRemotes[0]
		}
		for _, protected := range p.protectedRemotes {
			if remote == protected {
				return true, fmt.Sprintf("Force push to protected remote '%s' requires approval", remote)
			}
		}
	}
	return false, ""
}

// parseGitPush inspects one simple command's words. It returns the push
// target remote and whether a force flag is present. Returns forced=false
// when the words are not a git push at all.
func parseGitPush(words []string) (remote string, forced bool) {
	if len(words) < 2 || words[0] != "git" {
		return "", false
	}

	pushIdx := -1
	for i, w := range words[1:] {
		if strings.HasPrefix(w, "-") {
			continue // global git flags like -C or -c
		}
		if w == "push" {
			pushIdx = i + 1
		}
		break
	}
	if pushIdx < 0 {
		return "", false
	}

	for _, w := range words[pushIdx+1:] {
		switch {
		case w == "--force" || w == "-f" || strings.HasPrefix(w, "--force-with-lease"):
			forced = true
		case strings.HasPrefix(w, "-"):
			// other push flags
		case remote == "":
			// first positional argument is the remote
			remote = w
		}
	}
	return remote, forced
}

// shellCalls parses a shell command line and returns the literal words of
// every simple command in it. Words containing expansions that cannot be
// resolved statically are returned as empty strings.
func shellCalls(command string) [][]string {
	file, err := syntax.NewParser().Parse(strings.NewReader(command), "")
	if err != nil {
		return nil
	}

	var calls [][]string
	syntax.Walk(file, func(node syntax.Node) bool {
		call, ok := node.(*syntax.CallExpr)
		if !ok {
			return true
		}
		words := make([]string, 0, len(call.Args))
		for _, arg := range call.Args {
			words = append(words, literalWord(arg))
		}
		if len(words) > 0 {
			calls = append(calls, words)
		}
		return true
	})
	return calls
}

// literalWord flattens a word into its literal text, or "" if it contains
// non-literal parts (command substitution, parameter expansion, globs).
func literalWord(w *syntax.Word) string {
	var b strings.Builder
	for _, part := range w.Parts {
		switch p := part.(type) {
		case *syntax.Lit:
			b.WriteString(p.Value)
		case *syntax.SglQuoted:
			b.WriteString(p.Value)
		case *syntax.DblQuoted:
			for _, inner := range p.Parts {
				lit, ok := inner.(*syntax.Lit)
				if !ok {
					return ""
				}
				b.WriteString(lit.Value)
			}
		default:
			return ""
		}
	}
	return b.String()
}
