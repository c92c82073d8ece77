// Package globutil compiles file globs ("src/**/*.{scss,css}") and expands
// them against the file system.
package globutil

import (
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"sort"
	"strings"

	"github.com/gobwas/glob"
)

const metaChars = "*?[{"

// Pattern is a compiled glob. "**" matches across directories, including
// zero of them, so "a/**/*.css" matches "a/x.css" as well as "a/b/x.css".
type Pattern struct {
	raw  string
	base string
	alts []glob.Glob
}

// Compile parses pattern. Separators may be given in either slash style.
func Compile(pattern string) (*Pattern, error) {
	p := filepath.ToSlash(pattern)

	variants := []string{p}
	if strings.Contains(p, "/**/") {
		variants = append(variants, strings.ReplaceAll(p, "/**/", "/"))
	}

	alts := make([]glob.Glob, 0, len(variants))

	for _, v := range variants {
		g, err := glob.Compile(v, '/')
		if err != nil {
			return nil, fmt.Errorf("compiling glob %q: %w", pattern, err)
		}

		alts = append(alts, g)
	}

	return &Pattern{raw: pattern, base: Base(pattern), alts: alts}, nil
}

// String returns the pattern as given.
func (p *Pattern) String() string { return p.raw }

// Base returns the static directory the pattern lives under.
func (p *Pattern) Base() string { return p.base }

// Match reports whether path matches the pattern.
func (p *Pattern) Match(path string) bool {
	s := filepath.ToSlash(path)

	for _, g := range p.alts {
		if g.Match(s) {
			return true
		}
	}

	return false
}

// Expand returns the files under the pattern's base that match, sorted.
// A missing base directory yields no matches.
func (p *Pattern) Expand() ([]string, error) {
	var matches []string

	err := filepath.WalkDir(p.base, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return filepath.SkipAll
			}

			return err
		}

		if !d.IsDir() && p.Match(path) {
			matches = append(matches, path)
		}

		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("expanding glob %q: %w", p.raw, err)
	}

	sort.Strings(matches)

	return matches, nil
}

// Base returns the directory part of pattern that contains no glob meta
// characters. A pattern without meta characters names a file, so its
// directory is returned.
func Base(pattern string) string {
	p := filepath.ToSlash(pattern)

	static := p
	if i := strings.IndexAny(p, metaChars); i >= 0 {
		static = p[:i]
	}

	slash := strings.LastIndex(static, "/")

	switch {
	case slash < 0:
		return "."
	case slash == 0:
		return string(filepath.Separator)
	}

	return filepath.FromSlash(static[:slash])
}
