package extract

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// ErrNoPayload is returned when no JSON value can be found in model text.
var ErrNoPayload = errors.New("no structured payload in model output")

// Payload pulls the JSON document out of free-form model output. It
// tolerates, in order of preference:
//
//   - a fenced code block (```json ... ``` or ``` ... ```), anywhere in the text
//   - a bare JSON object or array making up the whole text
//   - a JSON object or array surrounded by prose
//
// The returned bytes are valid JSON.
func Payload(text string) ([]byte, error) {
	return PayloadMatching(text, nil)
}

// PayloadMatching is Payload restricted to values accept approves. Valid
// values it rejects are skipped and the scan carries on, so prose such as
// "found [2] facts:" ahead of the real document does not shadow it. A nil
// accept approves every value.
func PayloadMatching(text string, accept func(raw []byte) bool) ([]byte, error) {
	if accept == nil {
		accept = func([]byte) bool { return true }
	}

	text = strings.TrimSpace(text)
	if text == "" {
		return nil, ErrNoPayload
	}

	if body, ok := fenced(text); ok {
		if json.Valid([]byte(body)) && accept([]byte(body)) {
			return []byte(body), nil
		}
		// A broken fence body may still hold a balanced value.
		if v, ok := balanced(body, accept); ok {
			return []byte(v), nil
		}
	}

	if json.Valid([]byte(text)) && (text[0] == '{' || text[0] == '[') && accept([]byte(text)) {
		return []byte(text), nil
	}

	if v, ok := balanced(text, accept); ok {
		return []byte(v), nil
	}

	return nil, ErrNoPayload
}

// Decode runs Payload and unmarshals the result into v.
func Decode(text string, v any) error {
	raw, err := Payload(text)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return fmt.Errorf("%w: %v", ErrNoPayload, err)
	}
	return nil
}

// fenced returns the body of the first ``` block. An unterminated fence
// runs to the end of the text.
func fenced(text string) (string, bool) {
	start := strings.Index(text, "```")
	if start < 0 {
		return "", false
	}
	rest := text[start+3:]

	// Drop the info string ("json", "JSON", ...) up to the first newline.
	if nl := strings.IndexByte(rest, '\n'); nl >= 0 {
		info := strings.TrimSpace(rest[:nl])
		if !strings.ContainsAny(info, "{[") {
			rest = rest[nl+1:]
		}
	}

	if end := strings.Index(rest, "```"); end >= 0 {
		rest = rest[:end]
	}
	return strings.TrimSpace(rest), true
}

// balanced scans for the first '{' or '[' that opens a complete, valid JSON
// value approved by accept and returns it. String literals are skipped so
// braces inside them do not count.
func balanced(text string, accept func([]byte) bool) (string, bool) {
	for i := 0; i < len(text); i++ {
		if text[i] != '{' && text[i] != '[' {
			continue
		}
		if end, ok := matchClose(text, i); ok {
			candidate := text[i : end+1]
			if json.Valid([]byte(candidate)) && accept([]byte(candidate)) {
				return candidate, true
			}
		}
	}
	return "", false
}

func matchClose(text string, open int) (int, bool) {
	var (
		stack    []byte
		inString bool
		escaped  bool
	)
	for i := open; i < len(text); i++ {
		c := text[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}

		switch c {
		case '"':
			inString = true
		case '{':
			stack = append(stack, '}')
		case '[':
			stack = append(stack, ']')
		case '}', ']':
			if len(stack) == 0 || stack[len(stack)-1] != c {
				return 0, false
			}
			stack = stack[:len(stack)-1]
			if len(stack) == 0 {
				return i, true
			}
		}
	}
	return 0, false
}
