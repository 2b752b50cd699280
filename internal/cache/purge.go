package cache

import (
	"encoding/json"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

// ClearDir empties dir and recreates it.
func ClearDir(dir string) error {
	if strings.TrimSpace(dir) == "" {
		return errors.New("empty dir")
	}
	if err := os.RemoveAll(dir); err != nil {
		return err
	}
	return os.MkdirAll(dir, 0o755)
}

// PurgeByAge removes page entries saved more than maxAge ago and LLM answers
// not touched for maxAge. It returns the number of entries removed.
func PurgeByAge(dir string, maxAge time.Duration) (int, error) {
	if maxAge <= 0 {
		return 0, nil
	}
	now := time.Now().UTC()
	entries, err := scan(dir)
	if err != nil {
		return 0, err
	}
	removed := 0
	for _, e := range entries {
		if now.Sub(e.age) <= maxAge {
			continue
		}
		e.remove()
		removed++
	}
	return removed, nil
}

// EnforceLimits evicts least recently used entries until the cache holds at
// most maxEntries entries and maxBytes bytes. Zero disables a limit.
func EnforceLimits(dir string, maxBytes int64, maxEntries int) (int, error) {
	if maxBytes <= 0 && maxEntries <= 0 {
		return 0, nil
	}
	entries, err := scan(dir)
	if err != nil {
		return 0, err
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].used.Before(entries[j].used) })
	var total int64
	for _, e := range entries {
		total += e.size
	}
	removed := 0
	for _, e := range entries {
		overCount := maxEntries > 0 && len(entries)-removed > maxEntries
		overBytes := maxBytes > 0 && total > maxBytes
		if !overCount && !overBytes {
			break
		}
		e.remove()
		total -= e.size
		removed++
	}
	return removed, nil
}

type entry struct {
	paths []string
	size  int64
	// used is the last access time, age the reference for expiry
	used time.Time
	age  time.Time
}

func (e entry) remove() {
	for _, p := range e.paths {
		_ = os.Remove(p)
	}
}

func scan(dir string) ([]entry, error) {
	var out []entry
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return filepath.SkipDir
			}
			return err
		}
		if d.IsDir() {
			return nil
		}
		name := d.Name()
		switch {
		case strings.HasSuffix(name, pageMetaSuffix):
			if e, ok := pageEntry(path); ok {
				out = append(out, e)
			}
		case strings.HasSuffix(name, llmSuffix):
			info, err := d.Info()
			if err != nil {
				return nil
			}
			mt := info.ModTime().UTC()
			out = append(out, entry{paths: []string{path}, size: info.Size(), used: mt, age: mt})
		}
		return nil
	})
	return out, err
}

func pageEntry(metaPath string) (entry, bool) {
	b, err := os.ReadFile(metaPath)
	if err != nil {
		return entry{}, false
	}
	var pe PageEntry
	if err := json.Unmarshal(b, &pe); err != nil {
		return entry{}, false
	}
	body := strings.TrimSuffix(metaPath, pageMetaSuffix) + pageBodySuffix
	e := entry{paths: []string{metaPath, body}, size: int64(len(b)), age: pe.SavedAt.UTC(), used: pe.SavedAt.UTC()}
	if info, err := os.Stat(body); err == nil {
		e.size += info.Size()
		e.used = info.ModTime().UTC()
	}
	return e, true
}
