package matching

import (
	"bytes"
	"encoding/json"
	"math"
	"strconv"
	"strings"
)

// Tag fields of the extended-JSON numeric wrappers found in catalog dumps.
const (
	tagDouble = "$numberDouble"
	tagInt    = "$numberInt"
	tagLong   = "$numberLong"
)

// ResolveCutoff converts a raw stored cutoff into a float.
// ok is false when the value is absent: missing, null, malformed, non-finite or
// of an unsupported shape. A present zero resolves to (0, true).
//
// Accepted shapes:
//
//	85.5
//	"85.5"
//	{"$numberDouble": "85.5"}
//	{"$numberInt": "85"}
//	{"$numberLong": "85"}
func ResolveCutoff(raw json.RawMessage) (value float64, ok bool) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return 0, false
	}

	switch raw[0] {
	case '{':
		var wrapper map[string]json.RawMessage
		if err := json.Unmarshal(raw, &wrapper); err != nil {
			return 0, false
		}
		if v, present := wrapper[tagDouble]; present {
			return parseScalar(v, parseFloat)
		}
		if v, present := wrapper[tagInt]; present {
			return parseScalar(v, parseInt)
		}
		if v, present := wrapper[tagLong]; present {
			return parseScalar(v, parseInt)
		}
		return 0, false
	default:
		return parseScalar(raw, parseFloat)
	}
}

// parseScalar accepts a JSON number or a JSON string holding one.
func parseScalar(raw json.RawMessage, parse func(string) (float64, bool)) (float64, bool) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return 0, false
	}

	text := string(raw)
	if raw[0] == '"' {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return 0, false
		}
		text = strings.TrimSpace(s)
	} else if raw[0] != '-' && (raw[0] < '0' || raw[0] > '9') {
		// null, booleans, arrays and objects
		return 0, false
	}

	v, ok := parse(text)
	if !ok || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, false
	}
	return v, true
}

func parseFloat(s string) (float64, bool) {
	v, err := strconv.ParseFloat(s, 64)
	return v, err == nil
}

// parseInt reads an integer, truncating a fractional payload toward zero.
func parseInt(s string) (float64, bool) {
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		return float64(n), true
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false
	}
	return math.Trunc(v), true
}
