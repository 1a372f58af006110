package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

func String(key, fallback string) string {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	return v
}

// Port returns the value of key as a TCP port. An empty fallback with an unset key yields "",
// which callers use to disable a listener.
func Port(key, fallback string) (string, error) {
	v := String(key, fallback)
	if v == "" {
		return "", nil
	}
	p, err := strconv.Atoi(v)
	if err != nil || p < 1 || p > 65535 {
		return "", fmt.Errorf("%s must be a valid TCP port (got %q)", key, v)
	}
	return v, nil
}

func Bool(key string, fallback bool) bool {
	switch strings.ToLower(String(key, "")) {
	case "":
		return fallback
	case "1", "true", "t", "yes", "y", "on":
		return true
	default:
		return false
	}
}

// Int returns a positive integer, or an error naming key when the value is malformed.
func Int(key string, fallback int) (int, error) {
	v := String(key, "")
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("%s must be a non-negative integer (got %q)", key, v)
	}
	return n, nil
}

func Seconds(key string, fallback time.Duration) (time.Duration, error) {
	n, err := Int(key, int(fallback/time.Second))
	if err != nil {
		return 0, err
	}
	return time.Duration(n) * time.Second, nil
}

// List splits a comma separated value, dropping blanks.
func List(key string, fallback []string) []string {
	raw := String(key, "")
	if raw == "" {
		return fallback
	}
	var out []string
	for _, item := range strings.Split(raw, ",") {
		if trimmed := strings.TrimSpace(item); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	if len(out) == 0 {
		return fallback
	}
	return out
}

// Float returns a float in [min, max].
func Float(key string, fallback, min, max float64) (float64, error) {
	v := String(key, "")
	if v == "" {
		return fallback, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil || f < min || f > max {
		return 0, fmt.Errorf("%s must be a number in [%g, %g] (got %q)", key, min, max, v)
	}
	return f, nil
}
