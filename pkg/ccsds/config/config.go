// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 ExoSpaceLabs

// Package config reads packet configuration files.
//
// Each non-empty line that does not start with '#' has the form
//
//	key:type=value
//
// where type is one of string, int, float, bool or bytes. Integers accept
// a 0x prefix, strings may be quoted and bytes are written as a bracketed
// list such as [1, 0x02, 3].
package config

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
)

var (
	ErrSyntax     = errors.New("config syntax error")
	ErrMissingKey = errors.New("missing config key")
	ErrWrongType  = errors.New("config value has wrong type")
)

// Kind is the declared type of a value.
type Kind string

// Kind values
const (
	KindString Kind = "string"
	KindInt    Kind = "int"
	KindFloat  Kind = "float"
	KindBool   Kind = "bool"
	KindBytes  Kind = "bytes"
)

// Value is one parsed entry.
type Value struct {
	Kind  Kind
	Str   string
	Int   int64
	Float float64
	Bool  bool
	Bytes []byte
}

// ParseError reports the offending line.
type ParseError struct {
	Line int
	Text string
	Err  error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("line %d %q: %v", e.Line, e.Text, e.Err)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

// Config holds parsed values. Later lines override earlier ones.
type Config struct {
	values map[string]Value
	keys   []string
}

// Load reads and parses a configuration file.
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open config: %w", err)
	}
	defer f.Close()

	cfg, err := Parse(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// Parse reads configuration lines from r.
func Parse(r io.Reader) (*Config, error) {
	cfg := &Config{values: make(map[string]Value)}

	scanner := bufio.NewScanner(r)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		key, v, err := parseLine(line)
		if err != nil {
			return nil, &ParseError{Line: lineNo, Text: line, Err: err}
		}
		if _, seen := cfg.values[key]; !seen {
			cfg.keys = append(cfg.keys, key)
		}
		cfg.values[key] = v
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}
	return cfg, nil
}

func parseLine(line string) (string, Value, error) {
	colon := strings.IndexByte(line, ':')
	equal := strings.IndexByte(line, '=')
	if colon <= 0 || equal < 0 || equal < colon {
		return "", Value{}, fmt.Errorf("%w: expected key:type=value", ErrSyntax)
	}

	key := strings.TrimSpace(line[:colon])
	kind := Kind(strings.TrimSpace(line[colon+1 : equal]))
	raw := strings.TrimSpace(line[equal+1:])
	if key == "" {
		return "", Value{}, fmt.Errorf("%w: empty key", ErrSyntax)
	}

	v := Value{Kind: kind}
	var err error
	switch kind {
	case KindString:
		v.Str = unquote(raw)
	case KindInt:
		v.Int, err = parseInt(raw)
	case KindFloat:
		v.Float, err = strconv.ParseFloat(raw, 64)
	case KindBool:
		v.Bool, err = parseBool(raw)
	case KindBytes:
		v.Bytes, err = parseBytes(raw)
	default:
		return "", Value{}, fmt.Errorf("%w: unknown type %q", ErrSyntax, kind)
	}
	if err != nil {
		return "", Value{}, fmt.Errorf("%w: %s value %q: %v", ErrSyntax, kind, raw, err)
	}
	return key, v, nil
}

func unquote(s string) string {
	if len(s) >= 2 && s[0] == '"' && s[len(s)-1] == '"' {
		return s[1 : len(s)-1]
	}
	return s
}

func parseInt(s string) (int64, error) {
	if len(s) > 2 && (s[:2] == "0x" || s[:2] == "0X") {
		return strconv.ParseInt(s[2:], 16, 64)
	}
	return strconv.ParseInt(s, 10, 64)
}

func parseBool(s string) (bool, error) {
	switch strings.ToLower(s) {
	case "true", "1":
		return true, nil
	case "false", "0":
		return false, nil
	}
	return false, errors.New("expected true, false, 1 or 0")
}

func parseBytes(s string) ([]byte, error) {
	if len(s) < 2 || s[0] != '[' || s[len(s)-1] != ']' {
		return nil, errors.New("expected [..]")
	}
	inner := strings.TrimSpace(s[1 : len(s)-1])
	out := []byte{}
	if inner == "" {
		return out, nil
	}
	for _, tok := range strings.Split(inner, ",") {
		tok = strings.TrimSpace(tok)
		if tok == "" {
			return nil, errors.New("empty byte value")
		}
		base := 10
		if len(tok) > 2 && (tok[:2] == "0x" || tok[:2] == "0X") {
			tok, base = tok[2:], 16
		}
		n, err := strconv.ParseUint(tok, base, 8)
		if err != nil {
			return nil, fmt.Errorf("invalid byte value %q", tok)
		}
		out = append(out, byte(n))
	}
	return out, nil
}

// Has reports whether key is set.
func (c *Config) Has(key string) bool {
	_, ok := c.values[key]
	return ok
}

// Keys returns the keys in order of first appearance.
func (c *Config) Keys() []string {
	return append([]string(nil), c.keys...)
}

// Get returns the raw value for key.
func (c *Config) Get(key string) (Value, bool) {
	v, ok := c.values[key]
	return v, ok
}

func (c *Config) lookup(key string, kind Kind) (Value, error) {
	v, ok := c.values[key]
	if !ok {
		return Value{}, fmt.Errorf("%w: %s", ErrMissingKey, key)
	}
	if v.Kind != kind {
		return Value{}, fmt.Errorf("%w: %s is %s, want %s", ErrWrongType, key, v.Kind, kind)
	}
	return v, nil
}

// String returns a string value.
func (c *Config) String(key string) (string, error) {
	v, err := c.lookup(key, KindString)
	return v.Str, err
}

// Int returns an int value.
func (c *Config) Int(key string) (int64, error) {
	v, err := c.lookup(key, KindInt)
	return v.Int, err
}

// Float returns a float value. Int values are widened.
func (c *Config) Float(key string) (float64, error) {
	if v, ok := c.values[key]; ok && v.Kind == KindInt {
		return float64(v.Int), nil
	}
	v, err := c.lookup(key, KindFloat)
	return v.Float, err
}

// Bool returns a bool value. Int values 0 and 1 are accepted.
func (c *Config) Bool(key string) (bool, error) {
	if v, ok := c.values[key]; ok && v.Kind == KindInt && (v.Int == 0 || v.Int == 1) {
		return v.Int == 1, nil
	}
	v, err := c.lookup(key, KindBool)
	return v.Bool, err
}

// Bytes returns a copy of a bytes value.
func (c *Config) Bytes(key string) ([]byte, error) {
	v, err := c.lookup(key, KindBytes)
	return append([]byte(nil), v.Bytes...), err
}
