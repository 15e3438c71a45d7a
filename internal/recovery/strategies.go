package recovery

import (
	"bytes"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
)

// stripMarkdownFence removes a surrounding ```json ... ``` code fence and
// isolates the outermost JSON array when extra prose surrounds it.
func stripMarkdownFence(text string) string {
	text = strings.TrimSpace(text)

	if strings.HasPrefix(text, "```json") {
		text = strings.TrimPrefix(text, "```json")
		if idx := strings.LastIndex(text, "```"); idx >= 0 {
			text = text[:idx]
		}
	} else if strings.HasPrefix(text, "```") {
		text = strings.TrimPrefix(text, "```")
		if idx := strings.LastIndex(text, "```"); idx >= 0 {
			text = text[:idx]
		}
	}

	start := strings.Index(text, "[")
	end := strings.LastIndex(text, "]")
	if start >= 0 && end > start {
		text = text[start : end+1]
	}

	return strings.TrimSpace(text)
}

// stripTrailingSeparators removes commas that directly precede a closing
// bracket or brace, e.g. `[{"a":1,},]` becomes `[{"a":1}]`. Commas inside
// string literals are left alone.
func stripTrailingSeparators(text string) string {
	var out bytes.Buffer
	inString := false
	escape := false

	for i := 0; i < len(text); i++ {
		c := text[i]

		if escape {
			out.WriteByte(c)
			escape = false
			continue
		}
		if inString {
			if c == '\\' {
				escape = true
			} else if c == '"' {
				inString = false
			}
			out.WriteByte(c)
			continue
		}
		if c == '"' {
			inString = true
			out.WriteByte(c)
			continue
		}

		if c == ',' {
			// Look ahead past whitespace; drop the comma if a closer follows.
			j := i + 1
			for j < len(text) && (text[j] == ' ' || text[j] == '\t' || text[j] == '\n' || text[j] == '\r') {
				j++
			}
			if j < len(text) && (text[j] == '}' || text[j] == ']') {
				continue
			}
		}
		out.WriteByte(c)
	}

	return out.String()
}

// closeBrackets appends closers for any brackets or braces left open by a
// truncated payload, trimming dangling commas before each closer.
func closeBrackets(text string) string {
	if len(text) == 0 {
		return text
	}

	var stack []byte
	inString := false
	escape := false

	for i := 0; i < len(text); i++ {
		c := text[i]

		if escape {
			escape = false
			continue
		}
		if c == '\\' && inString {
			escape = true
			continue
		}
		if c == '"' {
			inString = !inString
			continue
		}
		if inString {
			continue
		}

		switch c {
		case '{':
			stack = append(stack, '}')
		case '[':
			stack = append(stack, ']')
		case '}', ']':
			if len(stack) > 0 && stack[len(stack)-1] == c {
				stack = stack[:len(stack)-1]
			}
		}
	}

	// A payload truncated mid-string needs its quote closed first.
	if inString {
		text = strings.TrimRight(text, "\\")
		text += `"`
	}

	for i := len(stack) - 1; i >= 0; i-- {
		text = strings.TrimRight(text, " \t\n\r,")
		text += string(stack[i])
	}

	return text
}

// escapeControlChars escapes raw newlines, tabs, and other control bytes
// that the model sometimes emits inside string literals.
func escapeControlChars(text string) string {
	var out bytes.Buffer
	inString := false
	escape := false

	for i := 0; i < len(text); i++ {
		c := text[i]

		if escape {
			out.WriteByte(c)
			escape = false
			continue
		}
		if inString && c == '\\' {
			out.WriteByte(c)
			escape = true
			continue
		}
		if c == '"' {
			inString = !inString
			out.WriteByte(c)
			continue
		}

		if inString && c < 0x20 {
			switch c {
			case '\n':
				out.WriteString(`\n`)
			case '\t':
				out.WriteString(`\t`)
			case '\r':
				out.WriteString(`\r`)
			default:
				fmt.Fprintf(&out, `\u%04x`, c)
			}
			continue
		}
		out.WriteByte(c)
	}

	return out.String()
}

// largestValidSubsequence decodes element objects one at a time from the
// opening bracket and keeps everything parsed before the first decode
// error, re-serializing the survivors as a valid array.
func largestValidSubsequence(text string) string {
	start := strings.Index(text, "[")
	if start < 0 {
		return text
	}

	dec := json.NewDecoder(strings.NewReader(text[start:]))
	tok, err := dec.Token()
	if err != nil {
		return text
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '[' {
		return text
	}

	var kept []json.RawMessage
	for dec.More() {
		var raw json.RawMessage
		if err := dec.Decode(&raw); err != nil {
			break
		}
		// Keep only object-shaped entries.
		trimmedRaw := bytes.TrimSpace(raw)
		if len(trimmedRaw) > 0 && trimmedRaw[0] == '{' {
			kept = append(kept, raw)
		}
	}

	if len(kept) == 0 {
		return text
	}
	out, err := json.Marshal(kept)
	if err != nil {
		return text
	}
	return string(out)
}

// fragmentPattern matches a quoted key/value pair; used as a last resort
// when no bracket structure survives.
var fragmentPattern = regexp.MustCompile(`"(element_type|text|evidence_type|confidence)"\s*:\s*("(?:[^"\\]|\\.)*"|[0-9.]+)`)

// reconstructFragments rebuilds candidates from loose key/value fragments.
// A new candidate starts at each element_type key; a candidate is kept
// once it has both a type and a text.
func reconstructFragments(text string) string {
	matches := fragmentPattern.FindAllStringSubmatch(text, -1)
	if len(matches) == 0 {
		return text
	}

	var candidates []Candidate
	var current *Candidate

	flush := func() {
		if current != nil && current.ElementType != "" && current.Text != "" {
			candidates = append(candidates, *current)
		}
		current = nil
	}

	for _, m := range matches {
		key, rawVal := m[1], m[2]

		if key == "element_type" {
			flush()
			current = &Candidate{}
		}
		if current == nil {
			current = &Candidate{}
		}

		switch key {
		case "element_type":
			current.ElementType = unquoteFragment(rawVal)
		case "text":
			current.Text = unquoteFragment(rawVal)
		case "evidence_type":
			current.EvidenceType = unquoteFragment(rawVal)
		case "confidence":
			var f float64
			if err := json.Unmarshal([]byte(rawVal), &f); err == nil {
				current.Confidence = f
			}
		}
	}
	flush()

	if len(candidates) == 0 {
		return text
	}
	out, err := json.Marshal(candidates)
	if err != nil {
		return text
	}
	return string(out)
}

func unquoteFragment(raw string) string {
	var s string
	if err := json.Unmarshal([]byte(raw), &s); err != nil {
		return strings.Trim(raw, `"`)
	}
	return s
}
