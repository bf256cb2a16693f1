package tool

import (
	"fmt"
	"strconv"
	"strings"
)

// Args are the key=value arguments of a tool run.
type Args map[string]string

// ParseArgs parses key=value pairs. Keys are trimmed and lower cased; values
// keep everything after the first '='.
func ParseArgs(pairs []string) (Args, error) {
	args := make(Args, len(pairs))
	for _, pair := range pairs {
		key, value, ok := strings.Cut(pair, "=")
		key = strings.ToLower(strings.TrimSpace(key))
		if !ok || key == "" {
			return nil, fmt.Errorf("invalid argument %q, expected key=value", pair)
		}
		args[key] = value
	}
	return args, nil
}

// Int returns the integer value of key, or def when the key is absent.
func (a Args) Int(key string, def int) (int, error) {
	v, ok := a[key]
	if !ok || strings.TrimSpace(v) == "" {
		return def, nil
	}
	n, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil {
		return 0, fmt.Errorf("%s must be a number: %w", key, err)
	}
	return n, nil
}

// String returns the value of key, or def when the key is absent.
func (a Args) String(key, def string) string {
	if v, ok := a[key]; ok {
		return v
	}
	return def
}
