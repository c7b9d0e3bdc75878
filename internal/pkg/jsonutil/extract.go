package jsonutil

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/kaptinlin/jsonrepair"
)

const codeFence = "```"

// ErrNoJSON is returned when no JSON object can be located in model output.
var ErrNoJSON = errors.New("no json object found")

// ExtractObject returns the first JSON object in raw, looking inside a
// ``` fence first. The result is not validated.
func ExtractObject(raw string) (string, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", false
	}
	if block, ok := fencedBlock(raw); ok {
		if obj, ok := scanBalanced(block, '{', '}'); ok {
			return obj, true
		}
	}
	return scanBalanced(raw, '{', '}')
}

// DecodeObject extracts the first JSON object from raw and unmarshals it into v.
// Malformed objects (single quotes, trailing commas, unquoted keys) are repaired once.
func DecodeObject(raw string, v any) (string, error) {
	obj, ok := ExtractObject(raw)
	if !ok {
		// 模型偶尔输出被截断的对象，交给 jsonrepair 补全
		start := strings.Index(raw, "{")
		if start == -1 {
			return "", ErrNoJSON
		}
		obj = raw[start:]
	}
	if json.Valid([]byte(obj)) {
		return obj, json.Unmarshal([]byte(obj), v)
	}
	repaired, err := jsonrepair.JSONRepair(obj)
	if err != nil {
		return "", fmt.Errorf("repair json: %w", err)
	}
	if err := json.Unmarshal([]byte(repaired), v); err != nil {
		return "", fmt.Errorf("decode repaired json: %w", err)
	}
	return repaired, nil
}

func fencedBlock(raw string) (string, bool) {
	start := strings.Index(raw, codeFence)
	if start == -1 {
		return "", false
	}
	rest := raw[start+len(codeFence):]
	end := strings.Index(rest, codeFence)
	if end == -1 {
		return "", false
	}
	block := strings.TrimLeft(rest[:end], "\r\n")
	if idx := strings.Index(block, "\n"); idx != -1 {
		first := strings.TrimSpace(block[:idx])
		if first != "" && !strings.ContainsAny(first, "[{") {
			block = block[idx+1:]
		}
	}
	block = strings.TrimSpace(block)
	return block, block != ""
}

func scanBalanced(raw string, open, close byte) (string, bool) {
	start := strings.IndexByte(raw, open)
	if start == -1 {
		return "", false
	}
	depth := 0
	inString := false
	escape := false
	for i := start; i < len(raw); i++ {
		ch := raw[i]
		if inString {
			if escape {
				escape = false
				continue
			}
			if ch == '\\' {
				escape = true
				continue
			}
			if ch == '"' {
				inString = false
			}
			continue
		}
		switch ch {
		case '"':
			inString = true
		case open:
			depth++
		case close:
			depth--
			if depth == 0 {
				return strings.TrimSpace(raw[start : i+1]), true
			}
		}
	}
	return "", false
}
