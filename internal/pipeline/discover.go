package pipeline

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// Supported media file extensions (lowercase, with leading dot).
var mediaExtensions = map[string]bool{
	".mkv":  true,
	".mp4":  true,
	".avi":  true,
	".m4v":  true,
	".mov":  true,
	".wmv":  true,
	".flv":  true,
	".webm": true,
	".ts":   true,
	".m2ts": true,
	".mpg":  true,
	".mpeg": true,
	".vob":  true,
	".ogv":  true,
}

// Discover walks inputDir, collects files with media extensions, prunes
// directories named "extras" (case-insensitive) and hidden files, and
// returns the paths sorted lexicographically so directory order is the
// concatenation order.
func Discover(inputDir string) ([]string, error) {
	var files []string
	err := filepath.WalkDir(inputDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if strings.EqualFold(d.Name(), "extras") {
				return filepath.SkipDir
			}
			return nil
		}
		// Unfinished outputs are written as hidden temp files.
		if strings.HasPrefix(d.Name(), ".") {
			return nil
		}
		ext := strings.ToLower(filepath.Ext(path))
		if mediaExtensions[ext] {
			files = append(files, path)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Strings(files)
	return files, nil
}

// ResolveInputs expands inputs in order: a file is kept as given (whatever
// its extension), a directory contributes its discovered media files. dirs
// lists the directories that were expanded.
func ResolveInputs(inputs []string) (files, dirs []string, err error) {
	for _, in := range inputs {
		fi, err := os.Stat(in)
		if err != nil {
			return nil, nil, fmt.Errorf("input not found: %s", in)
		}
		if !fi.IsDir() {
			files = append(files, in)
			continue
		}
		found, err := Discover(in)
		if err != nil {
			return nil, nil, fmt.Errorf("discover %s: %w", in, err)
		}
		if len(found) == 0 {
			return nil, nil, fmt.Errorf("no media files in %s", in)
		}
		files = append(files, found...)
		dirs = append(dirs, in)
	}
	return files, dirs, nil
}
