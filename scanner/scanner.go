package scanner

import (
	"io/fs"
	"path/filepath"
	"sort"
	"strings"
)

type FileInfo struct {
	Path string
	Size int64
}

// Scanner finds source files below a root directory.
type Scanner struct {
	rootDir    string
	extensions []string
	skipDirs   map[string]bool
}

// defaultSkipDirs hold build output and vendored sources.
var defaultSkipDirs = []string{"target", "node_modules", "vendor"}

func New(rootDir string, extensions ...string) *Scanner {
	s := &Scanner{
		rootDir:    rootDir,
		extensions: extensions,
		skipDirs:   make(map[string]bool),
	}
	for _, d := range defaultSkipDirs {
		s.skipDirs[d] = true
	}
	return s
}

// SkipDir excludes every directory with the given base name.
func (s *Scanner) SkipDir(name string) {
	s.skipDirs[name] = true
}

// Scan returns the matching files sorted by path. Hidden directories are
// not entered.
func (s *Scanner) Scan() ([]FileInfo, error) {
	var files []FileInfo
	err := filepath.WalkDir(s.rootDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}

		if d.IsDir() {
			if path != s.rootDir && s.skipped(d.Name()) {
				return filepath.SkipDir
			}
			return nil
		}

		if !s.isTargetFile(path) {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		files = append(files, FileInfo{Path: path, Size: info.Size()})
		return nil
	})

	sort.Slice(files, func(i, j int) bool { return files[i].Path < files[j].Path })
	return files, err
}

func (s *Scanner) skipped(name string) bool {
	return s.skipDirs[name] || (strings.HasPrefix(name, ".") && name != "." && name != "..")
}

func (s *Scanner) isTargetFile(path string) bool {
	if len(s.extensions) == 0 {
		return true
	}

	ext := filepath.Ext(path)
	for _, targetExt := range s.extensions {
		if ext == targetExt {
			return true
		}
	}
	return false
}
