package nl2query

import (
	"strings"
	"unicode"
)

const fence = "```"

// sqlLeadWords start a statement, so they are never read as a language tag
// on a one-line fence such as "```SELECT 1```".
var sqlLeadWords = map[string]bool{
	"select": true, "with": true, "insert": true, "update": true, "delete": true,
	"show": true, "explain": true, "describe": true, "values": true,
}

// knownTags may also be followed by a space on a one-line fence.
var knownTags = map[string]bool{
	"javascript": true, "mongodb": true, "mongo": true, "json5": true, "json": true, "js": true,
	"postgresql": true, "postgres": true, "mysql": true, "sqlite": true, "sql": true, "tsql": true,
	"bson": true, "plaintext": true, "text": true,
}

// Escaped line breaks the model sometimes emits in place of real ones.
var escapedBreaks = []string{`\r\n`, `\n`}

// StripFences removes code fence markers (with an optional language tag),
// surrounding single backticks, and unwraps a fenced block embedded in prose.
// It runs to a fixpoint, so StripFences(StripFences(s)) == StripFences(s).
func StripFences(value string) string {
	current := strings.TrimSpace(value)
	for {
		next := stripOnce(current)
		if next == current {
			return current
		}
		current = next
	}
}

func stripOnce(value string) string {
	trimmed := strings.TrimSpace(value)
	if strings.HasPrefix(trimmed, fence) {
		rest := stripLanguageTag(strings.TrimPrefix(trimmed, fence))
		if end := strings.Index(rest, fence); end >= 0 {
			rest = rest[:end]
		}
		return strings.TrimSpace(rest)
	}
	if block, ok := embeddedBlock(trimmed); ok {
		return block
	}
	if strings.HasSuffix(trimmed, fence) {
		return strings.TrimSpace(strings.TrimSuffix(trimmed, fence))
	}
	if len(trimmed) >= 2 && strings.HasPrefix(trimmed, "`") && strings.HasSuffix(trimmed, "`") {
		return strings.TrimSpace(trimmed[1 : len(trimmed)-1])
	}
	return trimmed
}

// stripLanguageTag drops the identifier token that follows an opening fence,
// such as json, tsql or postgres. The token must end the fence line, at a
// real or escaped line break or the end of input, unless it is a known tag or
// the body that follows is a JSON document.
func stripLanguageTag(value string) string {
	end := 0
	for end < len(value) && isTagByte(value[end]) {
		end++
	}
	if end == 0 {
		return value
	}
	tag, rest := value[:end], value[end:]
	if isDigit(tag[0]) || sqlLeadWords[strings.ToLower(tag)] {
		return value
	}
	if rest == "" {
		return rest
	}
	for _, escaped := range escapedBreaks {
		if strings.HasPrefix(rest, escaped) {
			return rest[len(escaped):]
		}
	}
	switch next := rune(rest[0]); {
	case next == '\n' || next == '\r' || next == '{' || next == '[':
		return rest
	case unicode.IsSpace(next):
		body := strings.TrimLeftFunc(rest, unicode.IsSpace)
		if knownTags[strings.ToLower(tag)] || strings.HasPrefix(body, "{") || strings.HasPrefix(body, "[") {
			return rest
		}
	}
	return value
}

func isTagByte(b byte) bool {
	return b == '_' || b == '-' || b == '+' || b == '#' || isDigit(b) ||
		(b >= 'a' && b <= 'z') || (b >= 'A' && b <= 'Z')
}

func isDigit(b byte) bool {
	return b >= '0' && b <= '9'
}

// embeddedBlock returns the body of the first fenced block in prose such as
// "Here is the query:\n```json\n{...}\n```\nHope it helps".
func embeddedBlock(value string) (string, bool) {
	start := strings.Index(value, fence)
	if start < 0 {
		return "", false
	}
	body := value[start+len(fence):]
	end := strings.Index(body, fence)
	if end < 0 {
		return "", false
	}
	return strings.TrimSpace(stripLanguageTag(body[:end])), true
}

var escapeReplacer = strings.NewReplacer(`\r\n`, "\n", `\n`, "\n", `\"`, `"`)

func unescape(value string) string {
	return escapeReplacer.Replace(value)
}
