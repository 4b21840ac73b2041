package dataset

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"
)

// DefaultIncludePatterns selects the CSV extracts.
var DefaultIncludePatterns = []string{"*.csv"}

// DefaultExcludePatterns skips hidden and scratch files that often sit next
// to the extracts.
var DefaultExcludePatterns = []string{
	".*/**",
	"**/.*",
	"*.tmp",
	"*.partial",
	"**/~*",
}

// Source is a CSV file found under the source directory.
type Source struct {
	Path    string    `json:"path"`
	RelPath string    `json:"rel_path"`
	Size    int64     `json:"size"`
	ModTime time.Time `json:"mod_time"`
}

// SourceFilter decides which files under the source directory are loaded.
type SourceFilter struct {
	include []string
	exclude []string
}

// NewSourceFilter creates a filter with the default patterns.
func NewSourceFilter() *SourceFilter {
	return &SourceFilter{include: DefaultIncludePatterns, exclude: DefaultExcludePatterns}
}

// NewSourceFilterWithPatterns creates a filter with custom patterns. A nil
// include list means DefaultIncludePatterns.
func NewSourceFilterWithPatterns(include, exclude []string) *SourceFilter {
	if include == nil {
		include = DefaultIncludePatterns
	}
	return &SourceFilter{include: include, exclude: exclude}
}

// Accept reports whether relPath, relative to the source directory, should
// be loaded.
func (f *SourceFilter) Accept(relPath string) bool {
	relPath = filepath.ToSlash(relPath)
	for _, pattern := range f.exclude {
		if matchPattern(pattern, relPath) {
			return false
		}
	}
	for _, pattern := range f.include {
		if matchPattern(pattern, relPath) {
			return true
		}
	}
	return false
}

// Discover walks root and returns the accepted files sorted by relative
// path.
func Discover(root string, filter *SourceFilter) ([]Source, error) {
	info, err := os.Stat(root)
	if err != nil {
		return nil, fmt.Errorf("failed to stat source dir %s: %w", root, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("source path %s is not a directory", root)
	}

	var sources []Source
	err = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		if !filter.Accept(rel) {
			return nil
		}
		fi, err := d.Info()
		if err != nil {
			return err
		}
		sources = append(sources, Source{
			Path:    path,
			RelPath: filepath.ToSlash(rel),
			Size:    fi.Size(),
			ModTime: fi.ModTime().UTC(),
		})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to scan %s: %w", root, err)
	}

	slices.SortFunc(sources, func(a, b Source) int {
		return strings.Compare(a.RelPath, b.RelPath)
	})
	return sources, nil
}

// matchPattern matches a slash separated path against a glob. ** matches any
// number of directories.
func matchPattern(pattern, path string) bool {
	if rest, ok := strings.CutPrefix(pattern, "**/"); ok {
		parts := strings.Split(path, "/")
		for i := range parts {
			if matchSimplePattern(rest, strings.Join(parts[i:], "/")) {
				return true
			}
		}
		return false
	}

	if dir, ok := strings.CutSuffix(pattern, "/**"); ok {
		parts := strings.Split(path, "/")
		for _, part := range parts[:len(parts)-1] {
			if matched, _ := filepath.Match(dir, part); matched {
				return true
			}
		}
		return false
	}

	return matchSimplePattern(pattern, path)
}

// matchSimplePattern matches a glob without ** against the full path and
// then against the base name.
func matchSimplePattern(pattern, name string) bool {
	if ext, ok := strings.CutPrefix(pattern, "*."); ok && !strings.ContainsAny(ext, "*?[") {
		return strings.HasSuffix(strings.ToLower(name), "."+strings.ToLower(ext))
	}
	if pattern == name {
		return true
	}
	if matched, _ := filepath.Match(pattern, name); matched {
		return true
	}
	matched, _ := filepath.Match(pattern, filepath.Base(name))
	return matched
}
