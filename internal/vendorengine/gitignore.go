package vendorengine

import (
	"bufio"
	"os"
	"path/filepath"
	"strings"
)

// gitignoreFilter matches paths against a flat list of patterns parsed
// from a single .gitignore file. It supports plain glob patterns
// (via filepath.Match, applied against both the full relative path and
// the base name) and directory patterns (trailing slash); it does not
// support negation (`!pattern`) or nested .gitignore files, which
// covers the common case this step targets (skip vendor/, node_modules/,
// *.log, .env) without pulling in a dedicated gitignore-parsing
// dependency for a filter this narrow.
type gitignoreFilter struct {
	patterns []string
}

func loadGitignore(root string) (*gitignoreFilter, error) {
	f, err := os.Open(filepath.Join(root, ".gitignore"))
	if os.IsNotExist(err) {
		return &gitignoreFilter{}, nil
	}
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var patterns []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") || strings.HasPrefix(line, "!") {
			continue
		}
		patterns = append(patterns, strings.TrimSuffix(line, "/"))
	}
	return &gitignoreFilter{patterns: patterns}, scanner.Err()
}

// Ignored reports whether relPath (slash-separated, relative to the
// scanned root) should be excluded from vendoring.
func (g *gitignoreFilter) Ignored(relPath string) bool {
	if g == nil {
		return false
	}
	base := filepath.Base(relPath)
	for _, p := range g.patterns {
		if ok, _ := filepath.Match(p, relPath); ok {
			return true
		}
		if ok, _ := filepath.Match(p, base); ok {
			return true
		}
		if strings.HasPrefix(relPath, p+"/") {
			return true
		}
	}
	return false
}
