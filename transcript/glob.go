package transcript

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
)

// Expand resolves file paths and glob patterns (with ** and {a,b}
// alternatives) to a sorted, de-duplicated list of regular files. A plain
// path that does not exist is an error; a pattern may match nothing.
func Expand(patterns []string) ([]string, error) {
	seen := make(map[string]bool)
	var files []string

	for _, pattern := range patterns {
		matches, err := expandPattern(pattern)
		if err != nil {
			return nil, fmt.Errorf("expand %q: %w", pattern, err)
		}
		for _, m := range matches {
			if !seen[m] {
				seen[m] = true
				files = append(files, m)
			}
		}
	}

	sort.Strings(files)
	return files, nil
}

func expandPattern(pattern string) ([]string, error) {
	if !containsGlob(pattern) {
		info, err := os.Stat(pattern)
		if err != nil {
			return nil, err
		}
		if info.IsDir() {
			return nil, fmt.Errorf("path is a directory: %s", pattern)
		}
		return []string{filepath.Clean(pattern)}, nil
	}

	matches, err := doublestar.FilepathGlob(pattern)
	if err != nil {
		return nil, fmt.Errorf("glob error: %w", err)
	}

	var files []string
	for _, m := range matches {
		info, err := os.Stat(m)
		if err != nil || !info.Mode().IsRegular() {
			continue
		}
		files = append(files, m)
	}
	return files, nil
}

func containsGlob(pattern string) bool {
	return strings.ContainsAny(pattern, "*?[{")
}

// InterviewIDs derives one column header per file: the base name without
// extension, or the slash-separated path without extension when base
// names collide.
func InterviewIDs(files []string) []string {
	counts := make(map[string]int, len(files))
	for _, f := range files {
		counts[stem(filepath.Base(f))]++
	}

	ids := make([]string, len(files))
	for i, f := range files {
		id := stem(filepath.Base(f))
		if counts[id] > 1 {
			id = stem(filepath.ToSlash(filepath.Clean(f)))
		}
		ids[i] = id
	}
	return ids
}

func stem(name string) string {
	return strings.TrimSuffix(name, filepath.Ext(name))
}
