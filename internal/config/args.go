package config

import (
	"fmt"
	"strings"
)

// checkArg rejects a key or value fragment containing whitespace or
// parentheses, mirroring config.cc's CheckArg (which guards against
// building a malformed synthetic Slang expression from untrusted argv
// text).
func checkArg(s string) bool {
	if s == "" {
		return false
	}
	return strings.IndexFunc(s, func(r rune) bool {
		switch r {
		case ' ', '\t', '\n', '\r', '\f', '\v', '(', ')':
			return true
		default:
			return false
		}
	}) < 0
}

// LoadFromOverrides parses `key=value` pairs from a repeated `--set`
// flag into a Config, the Go-idiomatic analog of config.cc's
// LoadFromArgs: rather than scanning `/key value` argv pairs directly,
// it takes cobra/pflag's already-split `--set key=value` values, but
// keeps the same trick the original uses - build a synthetic Slang
// document (`(key value)\n` per pair) and run it through the same
// parser every config file goes through, so overrides get identical
// type coercion (int/float/bool/string) as file-sourced values.
func LoadFromOverrides(overrides []string) (*Config, error) {
	var buf strings.Builder
	for _, o := range overrides {
		key, value, ok := strings.Cut(o, "=")
		if !ok {
			return nil, fmt.Errorf("config: override %q is not in key=value form", o)
		}
		if !checkArg(key) {
			return nil, fmt.Errorf("config: invalid override key %q", key)
		}
		if !checkArg(value) {
			return nil, fmt.Errorf("config: invalid override value %q", value)
		}
		buf.WriteByte('(')
		buf.WriteString(key)
		buf.WriteByte(' ')
		buf.WriteString(value)
		buf.WriteByte(')')
		buf.WriteByte('\n')
	}
	return LoadFromBuffer([]byte(buf.String()), "")
}
