package importgraph

import (
	"fmt"
	"reflect"
	"testing"
)

type memFiles map[string]string

func (m memFiles) Content(file string) (string, error) {
	c, ok := m[file]
	if !ok {
		return "", fmt.Errorf("no such file: %s", file)
	}
	return c, nil
}

func keys(files memFiles, order ...string) []string {
	if len(order) > 0 {
		return order
	}
	out := make([]string, 0, len(files))
	for k := range files {
		out = append(out, k)
	}
	return out
}

func TestExtract(t *testing.T) {
	tests := []struct {
		name           string
		files          memFiles
		order          []string
		wantEdges      []Edge
		wantUnresolved int
	}{
		{
			name: "python relative from-import",
			files: memFiles{
				"a/b.py": "from ..c import d\n",
				"a/c.py": "x = 1\n",
			},
			order:     []string{"a/b.py", "a/c.py"},
			wantEdges: []Edge{{Source: "a/b.py", Target: "a/c.py"}},
		},
		{
			name: "python dotted package init",
			files: memFiles{
				"app/main.py":         "import pkg.sub\nimport os\n",
				"pkg/sub/__init__.py": "",
				"pkg/__init__.py":     "",
			},
			order:          []string{"app/main.py", "pkg/__init__.py", "pkg/sub/__init__.py"},
			wantEdges:      []Edge{{Source: "app/main.py", Target: "pkg/sub/__init__.py"}},
			wantUnresolved: 1,
		},
		{
			name: "typescript relative and directory index",
			files: memFiles{
				"src/app.tsx":              "import React from 'react'\nimport { x } from './utils'\nimport Nav from \"./components\"\n",
				"src/utils.ts":             "export const x = 1\n",
				"src/components/index.tsx": "export default {}\n",
			},
			order: []string{"src/app.tsx", "src/components/index.tsx", "src/utils.ts"},
			wantEdges: []Edge{
				{Source: "src/app.tsx", Target: "src/utils.ts"},
				{Source: "src/app.tsx", Target: "src/components/index.tsx"},
			},
			wantUnresolved: 1,
		},
		{
			name: "commonjs require",
			files: memFiles{
				"lib/a.js": "const b = require('./b')\nconst fs = require(\"fs\")\n",
				"lib/b.js": "module.exports = {}\n",
			},
			order:          []string{"lib/a.js", "lib/b.js"},
			wantEdges:      []Edge{{Source: "lib/a.js", Target: "lib/b.js"}},
			wantUnresolved: 1,
		},
		{
			name: "self import discarded",
			files: memFiles{
				"a.py": "import a\n",
			},
			order: []string{"a.py"},
		},
		{
			name: "duplicate imports deduplicated",
			files: memFiles{
				"x.py": "import y\nfrom y import z\n",
				"y.py": "",
			},
			order:     []string{"x.py", "y.py"},
			wantEdges: []Edge{{Source: "x.py", Target: "y.py"}},
		},
		{
			name: "ruby require",
			files: memFiles{
				"lib/app.rb":    "require 'helper'\nrequire \"json\"\n",
				"lib/helper.rb": "",
			},
			order:          []string{"lib/app.rb", "lib/helper.rb"},
			wantUnresolved: 2,
		},
		{
			name: "java import of dotted file",
			files: memFiles{
				"com/acme/Main.java": "import com.acme.util;\n",
				"com/acme/util":      "",
			},
			order:     []string{"com/acme/Main.java", "com/acme/util"},
			wantEdges: []Edge{{Source: "com/acme/Main.java", Target: "com/acme/util"}},
		},
		{
			name: "unknown extension contributes nothing",
			files: memFiles{
				"README.md": "import x from './y'\n",
				"y.js":      "",
			},
			order: []string{"README.md", "y.js"},
		},
		{
			name: "unreadable file skipped",
			files: memFiles{
				"b.py": "",
			},
			order: []string{"missing.py", "b.py"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := New(nil).Extract(keys(tt.files, tt.order...), tt.files)
			if !reflect.DeepEqual(res.Edges, tt.wantEdges) {
				t.Errorf("edges = %v, want %v", res.Edges, tt.wantEdges)
			}
			if res.Unresolved != tt.wantUnresolved {
				t.Errorf("unresolved = %d, want %d", res.Unresolved, tt.wantUnresolved)
			}
		})
	}
}

func TestExtract_EdgesStayInsideFileSet(t *testing.T) {
	files := memFiles{
		"main.go":        "import (\n\t\"fmt\"\n\t\"pkg/util\"\n)\n",
		"pkg/util.go":    "package util\n",
		"web/index.ts":   "import a from '../main'\nimport b from './index'\n",
		"scripts/run.py": "import main\nfrom web import index\n",
		"src/lib.rs":     "use crate::foo;\nmod bar;\n",
		"src/bar.rs":     "",
	}
	order := []string{"main.go", "pkg/util.go", "scripts/run.py", "src/bar.rs", "src/lib.rs", "web/index.ts"}

	res := New(nil).Extract(order, files)
	for _, e := range res.Edges {
		if e.Source == e.Target {
			t.Errorf("self edge %v", e)
		}
		if _, ok := files[e.Target]; !ok {
			t.Errorf("edge target %q outside file set", e.Target)
		}
	}
}

func TestExtract_StableOrder(t *testing.T) {
	files := memFiles{
		"a.py": "import c\nimport b\n",
		"b.py": "import c\n",
		"c.py": "",
	}
	order := []string{"a.py", "b.py", "c.py"}

	first := New(nil).Extract(order, files)
	second := New(nil).Extract(order, files)
	if !reflect.DeepEqual(first, second) {
		t.Fatal("extraction not reproducible")
	}
	want := []Edge{{"a.py", "c.py"}, {"a.py", "b.py"}, {"b.py", "c.py"}}
	if !reflect.DeepEqual(first.Edges, want) {
		t.Errorf("edges = %v, want %v", first.Edges, want)
	}
}

func TestResolve(t *testing.T) {
	files := map[string]struct{}{
		"src/a.ts":            {},
		"src/a/index.ts":      {},
		"src/b.jsx":           {},
		"pkg/mod.py":          {},
		"pkg/sub/__init__.py": {},
	}

	tests := []struct {
		source, spec string
		want         string
		ok           bool
	}{
		{"src/main.ts", "./a", "src/a.ts", true},
		{"src/main.ts", "./b", "src/b.jsx", true},
		{"src/x/y.ts", "../a", "", false},
		{"main.py", "pkg.mod", "pkg/mod.py", true},
		{"main.py", "pkg.sub", "pkg/sub/__init__.py", true},
		{"main.py", "requests", "", false},
		{"pkg/other.py", "mod", "pkg/mod.py", true},
	}

	for _, tt := range tests {
		t.Run(tt.source+"->"+tt.spec, func(t *testing.T) {
			got, ok := Resolve(tt.source, tt.spec, files)
			if got != tt.want || ok != tt.ok {
				t.Errorf("Resolve(%q, %q) = (%q, %v), want (%q, %v)", tt.source, tt.spec, got, ok, tt.want, tt.ok)
			}
		})
	}
}

func TestTable_CustomLanguage(t *testing.T) {
	table := DefaultTable()
	table[".lua"] = []Pattern{rx(`require\s*\(?\s*['"]([^'"]+)['"]`)}

	files := memFiles{
		"init.lua": "local m = require('mod')\n",
		"mod.lua":  "",
	}
	res := New(table).Extract([]string{"init.lua", "mod.lua"}, files)
	if len(res.Edges) != 0 {
		t.Errorf("mod has no recognised suffix, got edges %v", res.Edges)
	}
	if res.Unresolved != 1 {
		t.Errorf("unresolved = %d, want 1", res.Unresolved)
	}
}
