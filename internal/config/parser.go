package config

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/xynqdb/xynq/internal/slang"
	"github.com/xynqdb/xynq/internal/xio"
)

const parseBufferSize = 4096

// frame tracks one nested op's accumulated key segment and pending
// value list while the parser is inside it. Mirrors the original
// ConfigParser's single cur_key_/cur_value_head_ pair, but scoped per
// level instead of shared mutable state - this port rejects mixing
// literal values with a nested op within the *same* frame rather than
// reproducing the original's single shared is_nested_list_ flag, whose
// truthiness depends on unrelated sibling ops closing elsewhere in the
// tree. Same intent ("a key holds either values or sub-keys, never
// both"), implemented as a local invariant instead of global state.
type frame struct {
	key         string // this frame's own key segment (not dotted)
	values      []Value
	hadNestedOp bool
}

// parser is a slang.Handler that extracts dotted key -> value-list
// pairs from the S-expression stream. Grounded on config.cc's
// ConfigParser.
type parser struct {
	cfg       *Config
	sourceDir string
	stack     []frame
}

func newParser(sourceDir string) *parser {
	return &parser{cfg: New(), sourceDir: sourceDir}
}

func (p *parser) errorf(format string, args ...any) error {
	return fmt.Errorf(format, args...)
}

func (p *parser) LexerBeginOp(name string) error {
	if len(p.stack) > 0 {
		top := &p.stack[len(p.stack)-1]
		if len(top.values) > 0 {
			return p.errorf("Invalid list. Lists cannot have nested keys.")
		}
	}
	p.stack = append(p.stack, frame{key: name})
	return nil
}

func (p *parser) fullKey() string {
	parts := make([]string, len(p.stack))
	for i, f := range p.stack {
		parts[i] = f.key
	}
	return strings.Join(parts, ".")
}

func (p *parser) LexerEndOp() error {
	if len(p.stack) == 0 {
		return p.errorf("No key")
	}

	cur := p.stack[len(p.stack)-1]
	p.stack = p.stack[:len(p.stack)-1]

	switch {
	case cur.key == "@locate":
		resolved, err := p.resolveLocate(cur.values)
		if err != nil {
			return err
		}
		if len(p.stack) == 0 {
			return p.errorf("@locate is not valid at top level")
		}
		parent := &p.stack[len(p.stack)-1]
		parent.values = append(parent.values, resolved...)
		return nil

	case cur.key == "@include":
		if len(p.stack) != 0 {
			return p.errorf("@include is expected at top level")
		}
		return p.applyInclude(cur.values)

	case strings.HasPrefix(cur.key, "@"):
		return p.errorf("Unknown directive.")

	default:
		fullKey := p.fullKey()
		if fullKey == "" {
			fullKey = cur.key
		} else {
			fullKey = fullKey + "." + cur.key
		}
		if len(cur.values) > 0 {
			p.cfg.set(fullKey, cur.values)
		}
		if len(p.stack) > 0 {
			p.stack[len(p.stack)-1].hadNestedOp = true
		}
		return nil
	}
}

func (p *parser) resolveLocate(values []Value) ([]Value, error) {
	out := make([]Value, len(values))
	for i, v := range values {
		if v.Kind != KindString {
			return nil, p.errorf("Expected filename string for @locate.")
		}
		out[i] = StringValue(filepath.Join(p.sourceDir, v.Str))
	}
	return out, nil
}

func (p *parser) applyInclude(values []Value) error {
	for _, v := range values {
		if v.Kind != KindString {
			return p.errorf("Invalid include filename. Should be a string.")
		}
		included, err := LoadFromFile(filepath.Join(p.sourceDir, v.Str))
		if err != nil {
			return p.errorf("Failed to load config: %s", err)
		}
		Merge(p.cfg, included)
	}
	return nil
}

func (p *parser) addValue(v Value) error {
	if len(p.stack) == 0 {
		return p.errorf("No key")
	}
	top := &p.stack[len(p.stack)-1]
	if top.hadNestedOp {
		return p.errorf("Nested lists are not allowed in config")
	}
	top.values = append(top.values, v)
	return nil
}

func (p *parser) LexerStrValue(s string) error {
	return p.addValue(StringValue(s))
}

func (p *parser) LexerIntValue(v int64) error {
	return p.addValue(IntValue(v))
}

func (p *parser) LexerDoubleValue(v float64) error {
	return p.addValue(FloatValue(v))
}

// LexerUnhandledValue recognizes the bareword boolean spellings
// config.cc accepts ("yes"/"Yes"/"no"/"No") before falling back to a
// plain string, exactly as ConfigParser::LexerUnhandledValue does.
func (p *parser) LexerUnhandledValue(s string) error {
	switch s {
	case "yes", "Yes":
		return p.addValue(BoolValue(true))
	case "no", "No":
		return p.addValue(BoolValue(false))
	default:
		return p.LexerStrValue(s)
	}
}

func (p *parser) LexerCustomData(token uint32, r *xio.Reader) error {
	return p.errorf("No custom data is allowed in config")
}

// LoadFromFile loads and flattens the config file at path.
func LoadFromFile(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	defer f.Close()
	return loadFromReaderSource(f, filepath.Dir(path))
}

// LoadFromBuffer loads and flattens an in-memory config document.
// sourceDir anchors any @include/@locate directives it contains.
func LoadFromBuffer(data []byte, sourceDir string) (*Config, error) {
	return loadFromReaderSource(strings.NewReader(string(data)), sourceDir)
}

func loadFromReaderSource(src io.Reader, sourceDir string) (*Config, error) {
	p := newParser(sourceDir)
	r := xio.NewReader(make([]byte, parseBufferSize), src)
	lx := slang.NewLexer(p, false)
	if err := lx.Run(r); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	if len(p.stack) != 0 {
		return nil, fmt.Errorf("config: unclosed key at end of input")
	}
	return p.cfg, nil
}
