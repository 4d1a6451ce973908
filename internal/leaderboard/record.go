package leaderboard

import (
	"encoding/json"
	"math"
	"regexp"
	"strconv"
	"strings"
)

// Record is one raw item as a source returned it, before normalization.
type Record map[string]any

// Lookup resolves a dotted path ("user.statistics.pp") against the record.
func (r Record) Lookup(path string) (any, bool) {
	var cur any = map[string]any(r)
	for _, key := range strings.Split(path, ".") {
		obj, ok := asObject(cur)
		if !ok {
			return nil, false
		}
		cur, ok = obj[key]
		if !ok {
			return nil, false
		}
	}
	return cur, cur != nil
}

func asObject(v any) (map[string]any, bool) {
	switch obj := v.(type) {
	case map[string]any:
		return obj, true
	case Record:
		return obj, true
	}
	return nil, false
}

var numberPattern = regexp.MustCompile(`-?\d+(\.\d+)?`)

// parseNumber accepts JSON numbers and strings like "1,234.5pp" or "98.2%".
func parseNumber(v any) (float64, bool) {
	var f float64
	switch n := v.(type) {
	case json.Number:
		parsed, err := n.Float64()
		if err != nil {
			return 0, false
		}
		f = parsed
	case float64:
		f = n
	case float32:
		f = float64(n)
	case int:
		f = float64(n)
	case int64:
		f = float64(n)
	case string:
		match := numberPattern.FindString(strings.ReplaceAll(n, ",", ""))
		if match == "" {
			return 0, false
		}
		parsed, err := strconv.ParseFloat(match, 64)
		if err != nil {
			return 0, false
		}
		f = parsed
	default:
		return 0, false
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

// presentFloat reports a value usable as a decimal field. Zero and negative
// values count as absent so the next path in a chain gets a chance.
func presentFloat(v any) (float64, bool) {
	f, ok := parseNumber(v)
	if !ok || f <= 0 {
		return 0, false
	}
	return f, true
}

func presentInt(v any) (int64, bool) {
	f, ok := presentFloat(v)
	if !ok || f < 1 {
		return 0, false
	}
	return int64(f), true
}

func presentString(v any) (string, bool) {
	switch s := v.(type) {
	case string:
		s = strings.TrimSpace(s)
		return s, s != ""
	case json.Number:
		return s.String(), true
	}
	return "", false
}
