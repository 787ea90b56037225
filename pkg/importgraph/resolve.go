package importgraph

import (
	"path"
	"strings"
)

var (
	sourceSuffixes = []string{".py", ".ts", ".tsx", ".js", ".jsx"}
	indexFiles     = []string{"index.ts", "index.tsx", "index.js", "__init__.py"}
	dottedSuffixes = []string{"", ".py", "/__init__.py"}
)

// Resolve maps a specifier found in source to a path in files.
// Candidates relative to the importing file's directory are tried first,
// then the dotted module form from the repository root. The first candidate
// present in files wins. Returns false for external or unknown modules.
func Resolve(source, specifier string, files map[string]struct{}) (string, bool) {
	dir := path.Dir(source)
	if dir == "." {
		dir = ""
	}
	target := strings.TrimLeft(specifier, "./")

	candidates := make([]string, 0, 1+len(sourceSuffixes)+len(indexFiles)+len(dottedSuffixes))
	candidates = append(candidates, path.Join(dir, target))
	for _, suffix := range sourceSuffixes {
		candidates = append(candidates, path.Join(dir, target+suffix))
	}
	for _, index := range indexFiles {
		candidates = append(candidates, path.Join(dir, target, index))
	}

	dotted := strings.ReplaceAll(target, ".", "/")
	for _, suffix := range dottedSuffixes {
		candidates = append(candidates, path.Clean(dotted+suffix))
	}

	for _, c := range candidates {
		if _, ok := files[c]; ok {
			return c, true
		}
	}
	return "", false
}
