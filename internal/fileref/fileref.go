// Package fileref validates the file references handed to a run.
//
// References come from the upload collaborator as names or paths; only the
// base name is matched, case-insensitively, against glob patterns such as
// "*.pdf".
package fileref

import (
	"fmt"
	"path"
	"path/filepath"
	"strings"

	"github.com/gobwas/glob"
)

// DefaultPatterns are the extensions the backend accepts.
var DefaultPatterns = []string{"*.pdf", "*.txt", "*.docx"}

// Rejection is a reference Filter refused and why.
type Rejection struct {
	Ref    string
	Reason string
}

// Result splits references into accepted and rejected ones, preserving input
// order.
type Result struct {
	Accepted []string
	Rejected []Rejection
}

// Matcher matches base names against a set of compiled patterns.
type Matcher struct {
	patterns []string
	globs    []glob.Glob
}

// NewMatcher compiles patterns. An empty list falls back to
// DefaultPatterns.
func NewMatcher(patterns []string) (*Matcher, error) {
	if len(patterns) == 0 {
		patterns = DefaultPatterns
	}
	m := &Matcher{patterns: patterns}
	for _, p := range patterns {
		g, err := glob.Compile(strings.ToLower(strings.TrimSpace(p)))
		if err != nil {
			return nil, fmt.Errorf("compile pattern %q: %w", p, err)
		}
		m.globs = append(m.globs, g)
	}
	return m, nil
}

// Match reports whether ref's base name matches any pattern.
func (m *Matcher) Match(ref string) bool {
	name := strings.ToLower(baseName(ref))
	for _, g := range m.globs {
		if g.Match(name) {
			return true
		}
	}
	return false
}

// Filter applies the matcher to refs. Blank and duplicate references are
// rejected.
func (m *Matcher) Filter(refs []string) Result {
	var res Result
	seen := make(map[string]bool, len(refs))
	for _, ref := range refs {
		trimmed := strings.TrimSpace(ref)
		switch {
		case trimmed == "" || baseName(trimmed) == "":
			res.Rejected = append(res.Rejected, Rejection{Ref: ref, Reason: "empty reference"})
		case seen[trimmed]:
			res.Rejected = append(res.Rejected, Rejection{Ref: ref, Reason: "duplicate reference"})
		case !m.Match(trimmed):
			res.Rejected = append(res.Rejected, Rejection{
				Ref:    ref,
				Reason: "unsupported file type (allowed: " + strings.Join(m.patterns, ", ") + ")",
			})
		default:
			seen[trimmed] = true
			res.Accepted = append(res.Accepted, trimmed)
		}
	}
	return res
}

// Filter compiles patterns and filters refs in one call.
func Filter(refs, patterns []string) (Result, error) {
	m, err := NewMatcher(patterns)
	if err != nil {
		return Result{}, err
	}
	return m.Filter(refs), nil
}

// baseName handles both slash and OS-specific separators, so references
// produced on another platform still resolve to their file name.
func baseName(ref string) string {
	ref = strings.TrimRight(ref, `/\`)
	if ref == "" {
		return ""
	}
	name := path.Base(filepath.ToSlash(strings.ReplaceAll(ref, `\`, "/")))
	if name == "." || name == "/" {
		return ""
	}
	return name
}
