// Package config implements the hierarchical configuration loader:
// the same S-expression grammar the VM executes is reused to load and
// flatten a config file into dotted keys, optionally layered with
// command-line overrides. Grounded on
// original_source/source/config/{config.h,config.cc,config_detail.h}.
package config

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// Kind classifies a config Value's scalar type. Mirrors
// config_detail.h's ConfigValue variant (monostate/int64_t/double/
// bool/CStrSpan).
type Kind int

const (
	KindInt Kind = iota
	KindFloat
	KindBool
	KindString
)

// Value is one scalar entry in a config key's value list.
type Value struct {
	Kind Kind
	I64  int64
	F64  float64
	Bool bool
	Str  string
}

// IntValue, FloatValue, BoolValue and StringValue construct Values of
// their respective Kind, mirroring ConfigValueConvertType's int->
// int64_t and float->double promotion rules.
func IntValue(v int64) Value    { return Value{Kind: KindInt, I64: v} }
func FloatValue(v float64) Value { return Value{Kind: KindFloat, F64: v} }
func BoolValue(v bool) Value    { return Value{Kind: KindBool, Bool: v} }
func StringValue(v string) Value { return Value{Kind: KindString, Str: v} }

// String renders v for logging/debugging, mirroring
// config_detail.cc's ConfigValueToString.
func (v Value) String() string {
	switch v.Kind {
	case KindInt:
		return strconv.FormatInt(v.I64, 10)
	case KindFloat:
		return strconv.FormatFloat(v.F64, 'g', -1, 64)
	case KindBool:
		if v.Bool {
			return "yes"
		}
		return "no"
	default:
		return v.Str
	}
}

// ErrKeyNotFound and ErrKeyInvalidType mirror ConfigKeyError's
// DoesNotExist/InvalidType arms.
var (
	ErrKeyNotFound    = fmt.Errorf("config: key not found")
	ErrKeyInvalidType = fmt.Errorf("config: key has a different type")
)

// Config is an immutable (once loaded) map of dotted keys to value
// lists, mirroring Config's ConfigMap. Every key, even one set with a
// single literal, holds a []Value — GetList always succeeds once a
// key exists; the scalar Get* helpers read the list's first value.
type Config struct {
	values map[string][]Value
}

// New creates an empty Config, useful as a Merge destination or as a
// base for building overrides programmatically.
func New() *Config {
	return &Config{values: make(map[string][]Value)}
}

// GetList returns the full value list for key.
func (c *Config) GetList(key string) ([]Value, error) {
	vs, ok := c.values[key]
	if !ok {
		return nil, ErrKeyNotFound
	}
	return vs, nil
}

// getOne returns the first value of key's list, failing only if the key
// is absent or holds no value; any further values are ignored
// (mirroring Get<T>'s std::get variant-index check, which only ever
// examines the head node).
func (c *Config) getOne(key string) (Value, error) {
	vs, ok := c.values[key]
	if !ok {
		return Value{}, ErrKeyNotFound
	}
	if len(vs) == 0 {
		return Value{}, ErrKeyNotFound
	}
	return vs[0], nil
}

// GetString returns key's value as a string.
func (c *Config) GetString(key string) (string, error) {
	v, err := c.getOne(key)
	if err != nil {
		return "", err
	}
	if v.Kind != KindString {
		return "", ErrKeyInvalidType
	}
	return v.Str, nil
}

// GetInt64 returns key's value as an int64.
func (c *Config) GetInt64(key string) (int64, error) {
	v, err := c.getOne(key)
	if err != nil {
		return 0, err
	}
	if v.Kind != KindInt {
		return 0, ErrKeyInvalidType
	}
	return v.I64, nil
}

// GetFloat64 returns key's value as a float64.
func (c *Config) GetFloat64(key string) (float64, error) {
	v, err := c.getOne(key)
	if err != nil {
		return 0, err
	}
	if v.Kind != KindFloat {
		return 0, ErrKeyInvalidType
	}
	return v.F64, nil
}

// GetBool returns key's value as a bool.
func (c *Config) GetBool(key string) (bool, error) {
	v, err := c.getOne(key)
	if err != nil {
		return false, err
	}
	if v.Kind != KindBool {
		return false, ErrKeyInvalidType
	}
	return v.Bool, nil
}

// StringOr and friends apply a default when the key is absent or of
// the wrong type, the common pattern the original documents via
// `conf.Get<T>(key).FoldLeft(default)`.
func (c *Config) StringOr(key, def string) string {
	if v, err := c.GetString(key); err == nil {
		return v
	}
	return def
}

func (c *Config) Int64Or(key string, def int64) int64 {
	if v, err := c.GetInt64(key); err == nil {
		return v
	}
	return def
}

func (c *Config) Float64Or(key string, def float64) float64 {
	if v, err := c.GetFloat64(key); err == nil {
		return v
	}
	return def
}

func (c *Config) BoolOr(key string, def bool) bool {
	if v, err := c.GetBool(key); err == nil {
		return v
	}
	return def
}

// Enumerate calls callback(key, value) for every key in sorted order,
// with value rendered the way Value.String does (and lists rendered
// as `[a, b, c]`), mirroring Config::Enumerate's debug-output contract.
func (c *Config) Enumerate(callback func(key, value string)) {
	keys := make([]string, 0, len(c.values))
	for k := range c.values {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, k := range keys {
		vs := c.values[k]
		if len(vs) == 1 {
			callback(k, vs[0].String())
			continue
		}
		parts := make([]string, len(vs))
		for i, v := range vs {
			parts[i] = v.String()
		}
		callback(k, "["+strings.Join(parts, ", ")+"]")
	}
}

// Merge overlays src's keys onto dst, with src winning on collision,
// and returns dst. Mirrors Config::Merge, minus the ScratchAllocator
// bookkeeping Go's GC makes unnecessary.
func Merge(dst, src *Config) *Config {
	for k, v := range src.values {
		dst.values[k] = v
	}
	return dst
}

// Set stores vs under key, overwriting whatever key previously held.
// Exported so a caller assembling overrides programmatically (e.g.
// collecting a repeated --listen flag into one list-valued key) can
// bypass LoadFromOverrides's key=value text synthesis, which can only
// ever express one value per pair - passing the same key through it
// twice would overwrite rather than accumulate, exactly like a
// repeated op in a config file does.
func (c *Config) Set(key string, vs []Value) {
	c.set(key, vs)
}

// set stores vs under key, used by the parser and by override loading.
func (c *Config) set(key string, vs []Value) {
	c.values[key] = vs
}
