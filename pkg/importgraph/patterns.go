package importgraph

import (
	"path"
	"regexp"
)

// Pattern extracts candidate module specifiers from file content
type Pattern interface {
	Specifiers(content string) []string
}

// regexPattern returns the first capture group of every match
type regexPattern struct {
	re *regexp.Regexp
}

func (p regexPattern) Specifiers(content string) []string {
	matches := p.re.FindAllStringSubmatch(content, -1)
	specs := make([]string, 0, len(matches))
	for _, m := range matches {
		if len(m) > 1 && m[1] != "" {
			specs = append(specs, m[1])
		}
	}
	return specs
}

func rx(expr string) Pattern {
	return regexPattern{re: regexp.MustCompile(expr)}
}

var jsImport = rx(`(?:import\s.*?from\s+|require\s*\(\s*)['"]([^'"]+)['"]`)

// Table maps a file extension to its ordered import patterns.
// Adding a language means adding an entry here.
type Table map[string][]Pattern

// DefaultTable covers the languages the extractor understands
func DefaultTable() Table {
	return Table{
		".py": {
			rx(`(?m)^\s*import\s+([\w.]+)`),
			rx(`(?m)^\s*from\s+([\w.]+)\s+import`),
		},
		".js":   {jsImport},
		".jsx":  {jsImport},
		".ts":   {jsImport},
		".tsx":  {jsImport},
		".go":   {rx(`"([^"]+)"`)},
		".rs":   {rx(`(?:use|mod)\s+([\w:]+)`)},
		".java": {rx(`import\s+([\w.]+);`)},
		".rb":   {rx(`require\s+['"]([^'"]+)['"]`)},
	}
}

// PatternsFor returns the patterns registered for file's extension
func (t Table) PatternsFor(file string) []Pattern {
	return t[path.Ext(file)]
}
