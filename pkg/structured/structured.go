// Package structured locates JSON payloads embedded in model output and
// reduces them to comparable feature sets.
package structured

import (
	"encoding/json"
	"sort"
	"strconv"
	"strings"
	"unicode"
)

// Extract returns the first JSON object or array found in text. Markdown
// code fences and prose around the payload are tolerated. ok is false when
// no decodable payload exists.
func Extract(text string) (value any, ok bool) {
	s := strings.TrimSpace(stripFences(text))
	if s == "" {
		return nil, false
	}
	// Fast path: the whole text is JSON.
	if s[0] == '{' || s[0] == '[' {
		if err := json.Unmarshal([]byte(s), &value); err == nil {
			return value, true
		}
	}
	for _, sp := range spans(s) {
		if err := json.Unmarshal([]byte(s[sp.open:sp.close+1]), &value); err == nil {
			return value, true
		}
	}
	return nil, false
}

// ExtractObject is like Extract but only accepts a JSON object.
func ExtractObject(text string) (map[string]any, bool) {
	v, ok := Extract(text)
	if !ok {
		return nil, false
	}
	m, ok := v.(map[string]any)
	return m, ok
}

func stripFences(text string) string {
	start := strings.Index(text, "```")
	if start < 0 {
		return text
	}
	body := text[start+3:]
	// Drop the info string (e.g. "json") on the opening fence line.
	if nl := strings.IndexByte(body, '\n'); nl >= 0 {
		body = body[nl+1:]
	}
	if end := strings.Index(body, "```"); end >= 0 {
		body = body[:end]
	}
	return body
}

// maxSpans bounds the decode attempts for one text.
const maxSpans = 64

type span struct{ open, close int }

// spans returns the balanced bracket pairs of s ordered by opening
// position, in a single pass. Brackets inside JSON strings are ignored;
// string state is only tracked while a bracket is open so quotes in
// surrounding prose do not matter. Openers that never close produce no
// span.
func spans(s string) []span {
	var (
		out      []span
		stack    []int
		inString bool
		escaped  bool
	)
	for i := 0; i < len(s); i++ {
		c := s[i]
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
			inString = len(stack) > 0
		case '{', '[':
			stack = append(stack, i)
		case '}', ']':
			if len(stack) == 0 {
				continue
			}
			out = append(out, span{open: stack[len(stack)-1], close: i})
			stack = stack[:len(stack)-1]
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].open < out[j].open })
	if len(out) > maxSpans {
		out = out[:maxSpans]
	}
	return out
}

// Features flattens a decoded JSON value into a set of path and
// path=value entries. Array positions are collapsed to "[]" so element
// order does not matter. Leaf values are normalized (case, whitespace,
// number formatting).
func Features(v any) map[string]struct{} {
	set := make(map[string]struct{})
	walk("$", v, set)
	return set
}

func walk(path string, v any, set map[string]struct{}) {
	if path != "$" {
		set[path] = struct{}{}
	}
	switch t := v.(type) {
	case map[string]any:
		keys := make([]string, 0, len(t))
		for k := range t {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			walk(path+"."+strings.ToLower(k), t[k], set)
		}
	case []any:
		for _, e := range t {
			walk(path+"[]", e, set)
		}
	default:
		set[path+"="+leaf(t)] = struct{}{}
	}
}

func leaf(v any) string {
	switch t := v.(type) {
	case nil:
		return "null"
	case string:
		return strings.Join(strings.Fields(strings.ToLower(t)), " ")
	case float64:
		return strconv.FormatFloat(t, 'g', 6, 64)
	case bool:
		return strconv.FormatBool(t)
	default:
		b, _ := json.Marshal(t)
		return string(b)
	}
}

// Tokens returns the set of lowercase word tokens in text.
func Tokens(text string) map[string]struct{} {
	set := make(map[string]struct{})
	for _, w := range strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	}) {
		set[w] = struct{}{}
	}
	return set
}

// Jaccard returns |a∩b| / |a∪b|. Two empty sets are identical.
func Jaccard(a, b map[string]struct{}) float64 {
	if len(a) == 0 && len(b) == 0 {
		return 1
	}
	inter := 0
	for k := range a {
		if _, ok := b[k]; ok {
			inter++
		}
	}
	union := len(a) + len(b) - inter
	return float64(inter) / float64(union)
}
