// Package match decides which local files an upload skips.
//
// Paths are relative to the upload root and slash-separated. Exclude patterns
// use doublestar semantics, so "**/*.tmp" matches at any depth.
package match

import (
	"errors"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/3leaps/keeptree/pkg/tree"
)

// Skip reasons returned by Matcher.Reason.
const (
	ReasonHidden   = "hidden"
	ReasonExcluded = "excluded"
)

// ErrInvalidPattern is returned when an exclude pattern cannot be compiled.
var ErrInvalidPattern = errors.New("invalid glob pattern")

// PatternError names the offending pattern.
type PatternError struct {
	Pattern string
	Err     error
}

func (e *PatternError) Error() string {
	return "pattern " + e.Pattern + ": " + e.Err.Error()
}

func (e *PatternError) Unwrap() error {
	return e.Err
}

// Config configures a Matcher.
type Config struct {
	// Excludes are glob patterns; a path matching any of them is skipped.
	Excludes []string

	// IncludeHidden disables skipping of paths with a dot-segment.
	IncludeHidden bool
}

// Matcher is safe for concurrent use after creation.
type Matcher struct {
	excludes      []string
	includeHidden bool
}

// New compiles cfg. Every exclude pattern is normalized and validated.
func New(cfg Config) (*Matcher, error) {
	excludes := make([]string, 0, len(cfg.Excludes))
	for _, raw := range cfg.Excludes {
		p := NormalizePattern(raw)
		if p == "" || !doublestar.ValidatePattern(p) {
			return nil, &PatternError{Pattern: raw, Err: ErrInvalidPattern}
		}
		excludes = append(excludes, p)
	}
	return &Matcher{excludes: excludes, includeHidden: cfg.IncludeHidden}, nil
}

// Reason returns why rel is skipped, or "" when it should be uploaded.
// Hidden paths are reported before excluded ones.
func (m *Matcher) Reason(rel string) string {
	rel = tree.ToSlash(rel)
	if !m.includeHidden && tree.IsHiddenPath(rel) {
		return ReasonHidden
	}
	for _, p := range m.excludes {
		if ok, err := doublestar.Match(p, rel); err == nil && ok {
			return ReasonExcluded
		}
	}
	return ""
}

// Match reports whether rel should be uploaded.
func (m *Matcher) Match(rel string) bool {
	return m.Reason(rel) == ""
}

// ExcludePatterns returns the normalized exclude patterns.
func (m *Matcher) ExcludePatterns() []string {
	return append([]string(nil), m.excludes...)
}
