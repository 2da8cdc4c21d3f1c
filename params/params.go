// Package params reads the engine's optional key=value parameter override
// file. Grounded on original_source/library/src/Parser.cpp: lines are
// trimmed, split on the first '=', and lines without one are ignored.
//
// Lookups are a linear scan (kept linear per spec.md's open question: the
// file has at most a handful of keys, so a hash map buys nothing), searched
// from the most-recently-parsed entry backward so a duplicate key's last
// occurrence wins.
package params

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
)

type entry struct {
	key, value string
}

// Set holds every key=value pair parsed from a parameter file, in file
// order, duplicates included.
type Set struct {
	entries []entry
}

// Parse reads key=value lines from r. Surrounding whitespace on the key and
// value is trimmed; blank lines and lines without '=' are ignored.
func Parse(r io.Reader) (*Set, error) {
	s := &Set{}
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		idx := strings.IndexByte(line, '=')
		if idx < 0 {
			continue
		}
		key := strings.TrimSpace(line[:idx])
		value := strings.TrimSpace(line[idx+1:])
		if key == "" {
			continue
		}
		s.entries = append(s.entries, entry{key: key, value: value})
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("params: reading: %w", err)
	}
	return s, nil
}

// Load opens and parses path.
func Load(path string) (*Set, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("params: %w", err)
	}
	defer f.Close()
	return Parse(f)
}

// find returns the value of the last occurrence of key, scanning backward
// from the end of the file so duplicate keys resolve last-wins.
func (s *Set) find(key string) (string, bool) {
	for i := len(s.entries) - 1; i >= 0; i-- {
		if s.entries[i].key == key {
			return s.entries[i].value, true
		}
	}
	return "", false
}

// Float64 returns the parsed value for key, and whether key was present.
func (s *Set) Float64(key string) (float64, bool, error) {
	raw, ok := s.find(key)
	if !ok {
		return 0, false, nil
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, true, fmt.Errorf("params: key %q: invalid float %q: %w", key, raw, err)
	}
	return v, true, nil
}

// Int returns the parsed value for key, and whether key was present.
func (s *Set) Int(key string) (int, bool, error) {
	raw, ok := s.find(key)
	if !ok {
		return 0, false, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, true, fmt.Errorf("params: key %q: invalid int %q: %w", key, raw, err)
	}
	return v, true, nil
}
