package middleware

import (
	"path"
	"strings"
)

// PathMatcher decides which request paths take part in session tracking.
// Patterns are ant-style: "*" matches within one segment, "**" matches any
// number of segments. An empty include list includes everything; excludes
// win over includes.
type PathMatcher struct {
	include [][]string
	exclude [][]string
}

// NewPathMatcher compiles include and exclude patterns.
func NewPathMatcher(include, exclude []string) *PathMatcher {
	return &PathMatcher{include: splitPatterns(include), exclude: splitPatterns(exclude)}
}

// Tracked reports whether p should be tagged with its session.
func (m *PathMatcher) Tracked(p string) bool {
	if m == nil {
		return true
	}
	segs := segments(p)
	for _, pat := range m.exclude {
		if matchSegments(pat, segs) {
			return false
		}
	}
	if len(m.include) == 0 {
		return true
	}
	for _, pat := range m.include {
		if matchSegments(pat, segs) {
			return true
		}
	}
	return false
}

func splitPatterns(patterns []string) [][]string {
	out := make([][]string, 0, len(patterns))
	for _, p := range patterns {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, segments(p))
		}
	}
	return out
}

func segments(p string) []string {
	return strings.FieldsFunc(p, func(r rune) bool { return r == '/' })
}

func matchSegments(pattern, segs []string) bool {
	if len(pattern) == 0 {
		return len(segs) == 0
	}
	if pattern[0] == "**" {
		for i := 0; i <= len(segs); i++ {
			if matchSegments(pattern[1:], segs[i:]) {
				return true
			}
		}
		return false
	}
	if len(segs) == 0 {
		return false
	}
	ok, err := path.Match(pattern[0], segs[0])
	if err != nil || !ok {
		return false
	}
	return matchSegments(pattern[1:], segs[1:])
}
