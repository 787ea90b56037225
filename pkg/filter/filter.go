package filter

import (
	"log/slog"
	"path"
	"regexp"
	"strings"
)

// Rules describes which parts of a repository snapshot are ingested.
// Paths are repository-relative with forward slashes.
type Rules struct {
	Exclude    []string // Directory names or relative directory paths to skip
	Extensions []string // Allowed extensions; empty allows every file
	Blacklist  []string // Reject regexes, applied first
	Whitelist  []string // Exception regexes that override the blacklist
}

// Filter is a compiled set of Rules
type Filter struct {
	exclude    map[string]bool
	globs      []string
	extensions map[string]bool
	blacklist  []*regexp.Regexp
	whitelist  []*regexp.Regexp
}

// New compiles rules. Invalid regexes are logged and ignored.
func New(r Rules) *Filter {
	f := &Filter{
		exclude:    make(map[string]bool),
		extensions: make(map[string]bool),
		blacklist:  compile(r.Blacklist),
		whitelist:  compile(r.Whitelist),
	}
	for _, e := range r.Exclude {
		e = strings.Trim(e, "/")
		if strings.ContainsAny(e, "*?[") {
			f.globs = append(f.globs, e)
			continue
		}
		f.exclude[e] = true
	}
	for _, ext := range r.Extensions {
		f.extensions[strings.ToLower(ext)] = true
	}
	return f
}

func compile(patterns []string) []*regexp.Regexp {
	out := make([]*regexp.Regexp, 0, len(patterns))
	for _, p := range patterns {
		re, err := regexp.Compile(p)
		if err != nil {
			slog.Debug("Invalid regex pattern", "pattern", p, "error", err)
			continue
		}
		out = append(out, re)
	}
	return out
}

// SkipDir reports whether the directory at rel should not be descended into.
// An entry matches either the directory's base name or its full relative path.
func (f *Filter) SkipDir(rel string) bool {
	base := path.Base(rel)
	if f.exclude[base] || f.exclude[rel] {
		return true
	}
	for _, g := range f.globs {
		if ok, _ := path.Match(g, base); ok {
			return true
		}
	}
	return false
}

// AllowFile checks the extension allow-list and then the blacklist/whitelist
func (f *Filter) AllowFile(rel string) bool {
	if len(f.extensions) > 0 && !f.extensions[strings.ToLower(path.Ext(rel))] {
		return false
	}
	return f.allowedByPatterns(rel)
}

// allowedByPatterns returns: NOT matches_blacklist OR matches_whitelist
func (f *Filter) allowedByPatterns(rel string) bool {
	var matchedPattern string
	for _, re := range f.blacklist {
		if re.MatchString(rel) {
			matchedPattern = re.String()
			break
		}
	}
	if matchedPattern == "" {
		return true
	}

	for _, re := range f.whitelist {
		if re.MatchString(rel) {
			slog.Debug("Whitelist exception matched - allowing file", "pattern", re.String(), "path", rel)
			return true
		}
	}

	slog.Debug("Rejecting file", "path", rel, "blacklist_pattern", matchedPattern)
	return false
}
