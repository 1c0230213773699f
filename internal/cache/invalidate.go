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

// ClearDir removes the directory and all contents, then recreates it empty.
func ClearDir(dir string) error {
	if strings.TrimSpace(dir) == "" {
		return errors.New("empty dir")
	}
	if err := os.RemoveAll(dir); err != nil {
		return err
	}
	return os.MkdirAll(dir, 0o755)
}

// PurgePageCacheByAge removes stored pages whose SavedAt is older than
// maxAge, deleting both the metadata and the body.
func PurgePageCacheByAge(dir string, maxAge time.Duration) (int, error) {
	if maxAge <= 0 {
		return 0, nil
	}
	now := time.Now().UTC()
	removed := 0
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return nil
			}
			return err
		}
		if d.IsDir() || !strings.HasSuffix(d.Name(), ".meta.json") {
			return nil
		}
		b, err := os.ReadFile(path)
		if err != nil {
			return nil
		}
		var e PageEntry
		if err := json.Unmarshal(b, &e); err != nil {
			return nil
		}
		if now.Sub(e.SavedAt) <= maxAge {
			return nil
		}
		removed++
		_ = os.Remove(path)
		_ = os.Remove(strings.TrimSuffix(path, ".meta.json") + ".body")
		return nil
	})
	return removed, err
}

// PurgeLLMCacheByAge removes model responses not used within maxAge.
func PurgeLLMCacheByAge(dir string, maxAge time.Duration) (int, error) {
	if maxAge <= 0 {
		return 0, nil
	}
	entries, err := scanLLM(dir)
	if err != nil {
		return 0, err
	}
	cutoff := time.Now().Add(-maxAge)
	removed := 0
	for _, e := range entries {
		if e.used.Before(cutoff) {
			removed += e.remove()
		}
	}
	return removed, nil
}

// EnforceLLMCacheLimits evicts least recently used model responses until the
// directory holds at most maxCount entries and maxBytes bytes. A zero limit
// is not enforced.
func EnforceLLMCacheLimits(dir string, maxBytes int64, maxCount int) (int, error) {
	entries, err := scanLLM(dir)
	if err != nil {
		return 0, err
	}
	return enforce(entries, maxBytes, maxCount), nil
}

// EnforcePageCacheLimits is EnforceLLMCacheLimits for stored pages. An entry
// is its metadata plus its body; recency follows the body.
func EnforcePageCacheLimits(dir string, maxBytes int64, maxCount int) (int, error) {
	entries, err := scanPages(dir)
	if err != nil {
		return 0, err
	}
	return enforce(entries, maxBytes, maxCount), nil
}

type entry struct {
	paths []string
	size  int64
	used  time.Time
}

func (e entry) remove() int {
	for _, p := range e.paths {
		_ = os.Remove(p)
	}
	return 1
}

func enforce(entries []entry, maxBytes int64, maxCount int) int {
	sort.Slice(entries, func(i, j int) bool { return entries[i].used.Before(entries[j].used) })
	var total int64
	for _, e := range entries {
		total += e.size
	}
	count := len(entries)
	removed := 0
	for _, e := range entries {
		overCount := maxCount > 0 && count > maxCount
		overBytes := maxBytes > 0 && total > maxBytes
		if !overCount && !overBytes {
			break
		}
		removed += e.remove()
		count--
		total -= e.size
	}
	return removed
}

func readDir(dir string) ([]fs.DirEntry, error) {
	des, err := os.ReadDir(dir)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	return des, err
}

func scanLLM(dir string) ([]entry, error) {
	des, err := readDir(dir)
	if err != nil {
		return nil, err
	}
	var out []entry
	for _, d := range des {
		name := d.Name()
		if d.IsDir() || !strings.HasSuffix(name, ".json") || strings.HasSuffix(name, ".meta.json") {
			continue
		}
		info, err := d.Info()
		if err != nil {
			continue
		}
		out = append(out, entry{
			paths: []string{filepath.Join(dir, name)},
			size:  info.Size(),
			used:  info.ModTime(),
		})
	}
	return out, nil
}

func scanPages(dir string) ([]entry, error) {
	des, err := readDir(dir)
	if err != nil {
		return nil, err
	}
	var out []entry
	for _, d := range des {
		name := d.Name()
		if d.IsDir() || !strings.HasSuffix(name, ".meta.json") {
			continue
		}
		meta := filepath.Join(dir, name)
		body := strings.TrimSuffix(meta, ".meta.json") + ".body"
		e := entry{paths: []string{meta, body}}
		if info, err := d.Info(); err == nil {
			e.size += info.Size()
			e.used = info.ModTime()
		}
		if info, err := os.Stat(body); err == nil {
			e.size += info.Size()
			e.used = info.ModTime()
		}
		out = append(out, e)
	}
	return out, nil
}
