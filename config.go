package instmgr

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"
)

// ParseWarning records a non-blank configuration line that could not be
// interpreted as a key=value assignment. Warnings are informational; parsing
// always continues with the remaining lines.
type ParseWarning struct {
	// Line is the 1-based line number in the source text
	Line int
	// Text is the offending line after comment stripping
	Text string
}

// String returns a human-readable description of the warning
func (w ParseWarning) String() string {
	return fmt.Sprintf("line %d: ignoring malformed line %q", w.Line, w.Text)
}

// configEntry is one key=value assignment in source order
type configEntry struct {
	key   string
	value string
}

// Config is an ordered collection of key=value assignments from one
// instance's configuration file. Keys need not be unique; a later assignment
// shadows an earlier one on lookup. Every value is an uninterpreted string
// until the resolver converts it.
type Config struct {
	entries []configEntry
}

// ParseConfig parses instance configuration text. The grammar is a permissive
// line format: everything from the first '#' to end of line is a comment
// (there is no escape), blank lines are skipped, and a non-blank line without
// '=' is dropped with a ParseWarning. For a key=value line the key is the text
// before the first '=' with surrounding whitespace trimmed, and the value is
// the text after it with leading whitespace trimmed.
func ParseConfig(r io.Reader) (*Config, []ParseWarning) {
	cfg := &Config{}
	var warnings []ParseWarning

	scanner := bufio.NewScanner(r)
	lineno := 0
	for scanner.Scan() {
		lineno++
		line := scanner.Text()

		if i := strings.IndexByte(line, '#'); i >= 0 {
			line = line[:i]
		}
		if strings.TrimSpace(line) == "" {
			continue
		}

		eq := strings.IndexByte(line, '=')
		if eq < 0 {
			warnings = append(warnings, ParseWarning{Line: lineno, Text: strings.TrimSpace(line)})
			continue
		}

		key := strings.TrimSpace(line[:eq])
		value := strings.TrimLeft(line[eq+1:], " \t")
		cfg.entries = append(cfg.entries, configEntry{key: key, value: value})
	}

	return cfg, warnings
}

// ParseConfigFile parses the instance configuration file at path
func ParseConfigFile(path string) (*Config, []ParseWarning, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, fmt.Errorf("opening config file: %w", err)
	}
	defer func() { _ = f.Close() }()

	cfg, warnings := ParseConfig(f)
	return cfg, warnings, nil
}

// Get returns the value of the last assignment to key, or ErrKeyNotFound if
// the key was never assigned. Absence is an ordinary outcome that callers
// resolve with a default, not a failure to propagate.
func (c *Config) Get(key string) (string, error) {
	if v, ok := c.Lookup(key); ok {
		return v, nil
	}
	return "", fmt.Errorf("%q: %w", key, ErrKeyNotFound)
}

// Lookup returns the value of the last assignment to key and whether the key
// was assigned at all
func (c *Config) Lookup(key string) (string, bool) {
	for i := len(c.entries) - 1; i >= 0; i-- {
		if c.entries[i].key == key {
			return c.entries[i].value, true
		}
	}
	return "", false
}

// Len returns the number of assignments, counting shadowed duplicates
func (c *Config) Len() int {
	return len(c.entries)
}

// Keys returns every assigned key in source order, including duplicates
func (c *Config) Keys() []string {
	keys := make([]string, 0, len(c.entries))
	for _, e := range c.entries {
		keys = append(keys, e.key)
	}
	return keys
}
