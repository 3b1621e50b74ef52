// Package security holds the deny-list filter every command must pass before
// it reaches the relay queue. It is a fixed pattern table, not a sandbox: a
// command either passes unchanged or is rejected outright.
package security

import "regexp"

// MaxCommandLength bounds command size independent of content.
const MaxCommandLength = 1000

var dangerousPatterns = []*regexp.Regexp{
	// recursive forced deletion
	regexp.MustCompile(`(?i)rm\s+-\w*r\w*f`),
	regexp.MustCompile(`(?i)rm\s+-\w*f\w*r`),
	// privilege escalation
	regexp.MustCompile(`(?i)\bsudo\b`),
	// world-writable permission changes
	regexp.MustCompile(`(?i)chmod\s+777`),
	// redirection or dd output into device files
	regexp.MustCompile(`(?i)>\s*/dev/`),
	regexp.MustCompile(`(?i)\bdd\b[^|]*\bof=/dev/`),
	// pipe a downloaded script straight into a shell
	regexp.MustCompile(`(?i)\bcurl\b[^|]*\|\s*\w*sh\b`),
	regexp.MustCompile(`(?i)\bwget\b[^|]*\|\s*\w*sh\b`),
	// dynamic evaluation / process replacement
	regexp.MustCompile(`(?i)\beval\b`),
	regexp.MustCompile(`(?i)\bexec\b`),
}

// IsSafe reports whether command text may be submitted to the executor.
func IsSafe(command string) bool {
	if len(command) > MaxCommandLength {
		return false
	}
	for _, p := range dangerousPatterns {
		if p.MatchString(command) {
			return false
		}
	}
	return true
}
