package extract

import (
	"bytes"
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"unicode/utf16"
	"unicode/utf8"
)

// sanitizeRules are applied in order to the text outside string literals
var sanitizeRules = []struct {
	re   *regexp.Regexp
	repl string
}{
	{regexp.MustCompile(`function\s*\([^)]*\)\s*\{[^{}]*(?:\{[^{}]*\}[^{}]*)*\}`), "null"},
	{regexp.MustCompile(`:\s*undefined`), ":null"},
	{regexp.MustCompile(`,\s*undefined`), ",null"},
	{regexp.MustCompile(`/\*[\s\S]*?\*/`), ""},
	{regexp.MustCompile(`(?m)//.*$`), ""},
	{regexp.MustCompile(`,\s*\}`), "}"},
	{regexp.MustCompile(`,\s*\]`), "]"},
	{regexp.MustCompile(`new\s+Date\([^)]*\)`), "null"},
	{regexp.MustCompile(`Symbol\([^)]*\)`), "null"},
	{regexp.MustCompile(`[a-zA-Z_$][a-zA-Z0-9_$]*\s*\([^)]*\)`), "null"},
	{regexp.MustCompile(`([a-zA-Z0-9_]+):`), `"${1}":`},
}

var placeholderRe = regexp.MustCompile("\x00([0-9]+)\x00")

// CleanJSONString rewrites a JavaScript object literal into something JSON can
// usually parse. String literals are left intact and re-emitted as JSON strings.
// The result is not guaranteed to be valid JSON.
func CleanJSONString(s string) string {
	masked, literals := maskLiterals(s)

	for _, rule := range sanitizeRules {
		masked = rule.re.ReplaceAllString(masked, rule.repl)
	}

	return placeholderRe.ReplaceAllStringFunc(masked, func(m string) string {
		idx, err := strconv.Atoi(m[1 : len(m)-1])
		if err != nil || idx >= len(literals) {
			return m
		}
		return quoteJSON(unquoteJS(literals[idx]))
	})
}

// maskLiterals replaces quoted literals with numbered placeholders.
// Comments are copied verbatim so quotes inside them are not treated as literals.
func maskLiterals(s string) (string, []string) {
	var b strings.Builder
	var literals []string

	for i := 0; i < len(s); {
		c := s[i]
		switch {
		case c == '"' || c == '\'' || c == '`':
			end := scanLiteral(s, i)
			if end < 0 {
				b.WriteString(s[i:])
				return b.String(), literals
			}
			literals = append(literals, s[i:end])
			b.WriteByte(0)
			b.WriteString(strconv.Itoa(len(literals) - 1))
			b.WriteByte(0)
			i = end
		case c == '/' && i+1 < len(s) && s[i+1] == '/':
			j := strings.IndexByte(s[i:], '\n')
			if j < 0 {
				j = len(s) - i
			}
			b.WriteString(s[i : i+j])
			i += j
		case c == '/' && i+1 < len(s) && s[i+1] == '*':
			j := strings.Index(s[i+2:], "*/")
			if j < 0 {
				b.WriteString(s[i:])
				return b.String(), literals
			}
			b.WriteString(s[i : i+2+j+2])
			i += 2 + j + 2
		default:
			b.WriteByte(c)
			i++
		}
	}
	return b.String(), literals
}

// scanLiteral returns the index just past the literal starting at start, or -1
func scanLiteral(s string, start int) int {
	quote := s[start]
	for i := start + 1; i < len(s); i++ {
		switch s[i] {
		case '\\':
			i++
		case quote:
			return i + 1
		case '\n':
			if quote != '`' {
				return -1
			}
		}
	}
	return -1
}

// unquoteJS decodes the escapes of a quoted JavaScript literal
func unquoteJS(lit string) string {
	body := lit[1 : len(lit)-1]
	if strings.IndexByte(body, '\\') < 0 {
		return body
	}

	var b strings.Builder
	for i := 0; i < len(body); i++ {
		c := body[i]
		if c != '\\' || i+1 >= len(body) {
			b.WriteByte(c)
			continue
		}
		i++
		switch body[i] {
		case 'n':
			b.WriteByte('\n')
		case 't':
			b.WriteByte('\t')
		case 'r':
			b.WriteByte('\r')
		case 'b':
			b.WriteByte('\b')
		case 'f':
			b.WriteByte('\f')
		case 'v':
			b.WriteByte('\v')
		case '0':
			b.WriteByte(0)
		case '\n':
		case '\r':
			if i+1 < len(body) && body[i+1] == '\n' {
				i++
			}
		case 'x':
			if i+2 < len(body) {
				if n, err := strconv.ParseUint(body[i+1:i+3], 16, 8); err == nil {
					b.WriteRune(rune(n))
					i += 2
					continue
				}
			}
			b.WriteByte('x')
		case 'u':
			r, width := decodeUnicodeEscape(body[i+1:])
			if width == 0 {
				b.WriteByte('u')
				continue
			}
			i += width
			if utf16.IsSurrogate(r) {
				if strings.HasPrefix(body[i+1:], `\u`) {
					if r2, w2 := decodeUnicodeEscape(body[i+3:]); w2 == 4 {
						if dec := utf16.DecodeRune(r, r2); dec != utf8.RuneError {
							b.WriteRune(dec)
							i += 2 + w2
							continue
						}
					}
				}
				r = utf8.RuneError
			}
			b.WriteRune(r)
		default:
			b.WriteByte(body[i])
		}
	}
	return b.String()
}

// decodeUnicodeEscape reads XXXX or {X...} after a \u and returns the rune and bytes consumed
func decodeUnicodeEscape(s string) (rune, int) {
	if strings.HasPrefix(s, "{") {
		end := strings.IndexByte(s, '}')
		if end < 2 {
			return 0, 0
		}
		n, err := strconv.ParseUint(s[1:end], 16, 32)
		if err != nil || n > utf8.MaxRune {
			return 0, 0
		}
		return rune(n), end + 1
	}
	if len(s) < 4 {
		return 0, 0
	}
	n, err := strconv.ParseUint(s[:4], 16, 16)
	if err != nil {
		return 0, 0
	}
	return rune(n), 4
}

// quoteJSON encodes s as a JSON string without HTML escaping
func quoteJSON(s string) string {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(s); err != nil {
		return strconv.Quote(s)
	}
	return strings.TrimRight(buf.String(), "\n")
}

// NearJSON decodes JavaScript object literals that are almost JSON.
// A nil Eval disables the script evaluation fallback.
type NearJSON struct {
	Eval *Evaluator
}

// Decode tries strict JSON, then the sanitizer, then the evaluator on the sanitized text
func (d NearJSON) Decode(text string) (interface{}, error) {
	v, err := DecodeOrdered(text)
	if err == nil {
		return v, nil
	}

	cleaned := CleanJSONString(text)
	v, cleanErr := DecodeOrdered(cleaned)
	if cleanErr == nil {
		return v, nil
	}

	if d.Eval == nil {
		return nil, cleanErr
	}
	out, evalErr := d.Eval.ToJSON(cleaned)
	if evalErr != nil {
		return nil, evalErr
	}
	return DecodeOrdered(out)
}

// DecodeInto decodes text like Decode and stores the result in dst
func (d NearJSON) DecodeInto(text string, dst interface{}) error {
	v, err := d.Decode(text)
	if err != nil {
		return err
	}
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("re-encode literal: %w", err)
	}
	return json.Unmarshal(data, dst)
}

// BalancedAfter returns the brace-balanced object that starts at the first '{'
// at or after from, skipping braces inside string literals
func BalancedAfter(s string, from int) (string, bool) {
	if from < 0 || from >= len(s) {
		return "", false
	}
	start := strings.IndexByte(s[from:], '{')
	if start < 0 {
		return "", false
	}
	start += from

	depth := 0
	var quote byte
	escape := false
	for i := start; i < len(s); i++ {
		ch := s[i]
		if quote != 0 {
			if escape {
				escape = false
				continue
			}
			if ch == '\\' {
				escape = true
				continue
			}
			if ch == quote {
				quote = 0
			}
			continue
		}
		switch ch {
		case '"', '\'', '`':
			quote = ch
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return s[start : i+1], true
			}
		}
	}
	return "", false
}
