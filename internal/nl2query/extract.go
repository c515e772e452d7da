package nl2query

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"go.mongodb.org/mongo-driver/v2/bson"

	"github.com/askmesh/askmesh/internal/schema"
)

const quoteLimit = 300

// Extraction is the outcome of reducing a raw model response. Query is never
// nil; it is NoQuery when nothing executable was found.
type Extraction struct {
	Query     Query
	Candidate string
	Notices   []Notice
}

func (e Extraction) Coerced() bool {
	for _, notice := range e.Notices {
		if notice.Level == NoticeWarning && strings.HasPrefix(notice.Message, coercionPrefix) {
			return true
		}
	}
	return false
}

// Extract reduces a raw inference response to a query for the given variant.
// It does not fail: unusable input yields NoQuery plus notices.
func Extract(raw []byte, variant schema.Variant) Extraction {
	out := Extraction{Query: NoQuery{}}
	if len(bytes.TrimSpace(raw)) == 0 {
		out.Notices = append(out.Notices, Notice{Level: NoticeInfo, Message: "model returned an empty response"})
		return out
	}

	candidate, ok := envelopeResponse(raw)
	if !ok {
		candidate = accumulateLines(raw)
	}
	if strings.TrimSpace(candidate) == "" && bytes.Contains(raw, []byte(fence)) {
		candidate = string(raw)
	}

	candidate = StripFences(candidate)
	switch variant {
	case schema.VariantSQL:
		candidate = strings.TrimSpace(unescape(candidate))
		out.Candidate = candidate
		if candidate == "" {
			out.Notices = append(out.Notices, Notice{Level: NoticeInfo, Message: "model response contained no query text"})
			return out
		}
		out.Query = SQL{Text: candidate}
		return out
	case schema.VariantMongo:
		if !json.Valid([]byte(candidate)) {
			candidate = unescape(candidate)
		}
		candidate = strings.TrimSpace(candidate)
		out.Candidate = candidate
		out.Query, out.Notices = parseMongo(candidate, out.Notices)
		return out
	default:
		out.Notices = append(out.Notices, Notice{Level: NoticeError, Message: fmt.Sprintf("unsupported variant %q", variant)})
		return out
	}
}

// envelopeResponse handles a body that is exactly one JSON envelope carrying a
// response field.
func envelopeResponse(raw []byte) (string, bool) {
	var envelope map[string]json.RawMessage
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return "", false
	}
	value, ok := envelope["response"]
	if !ok {
		return "", false
	}
	return responseText(value), true
}

// accumulateLines reassembles newline-delimited envelopes in arrival order.
// Lines that are not JSON but open with a brace or bracket start raw
// accumulation, and once accumulation has started every following non-JSON
// line is appended.
func accumulateLines(raw []byte) string {
	normalized := strings.ReplaceAll(string(raw), "\r\n", "\n")
	var acc strings.Builder
	for _, line := range strings.Split(normalized, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if json.Valid([]byte(line)) {
			var envelope map[string]json.RawMessage
			if err := json.Unmarshal([]byte(line), &envelope); err != nil {
				continue
			}
			if value, ok := envelope["response"]; ok {
				acc.WriteString(responseText(value))
				continue
			}
			if acc.Len() == 0 {
				return line
			}
			continue
		}
		if acc.Len() == 0 && !strings.HasPrefix(line, "{") && !strings.HasPrefix(line, "[") {
			continue
		}
		acc.WriteString(line)
	}
	return acc.String()
}

func responseText(value json.RawMessage) string {
	var text string
	if err := json.Unmarshal(value, &text); err == nil {
		return text
	}
	trimmed := bytes.TrimSpace(value)
	if bytes.Equal(trimmed, []byte("null")) {
		return ""
	}
	return string(trimmed)
}

func parseMongo(candidate string, notices []Notice) (Query, []Notice) {
	if candidate == "" {
		return NoQuery{}, append(notices, Notice{Level: NoticeInfo, Message: "model response contained no query"})
	}
	if !json.Valid([]byte(candidate)) {
		return NoQuery{}, append(notices, Notice{
			Level:   NoticeError,
			Message: fmt.Sprintf("model returned a non-JSON response for the query: %s", quote(candidate)),
		})
	}
	if !strings.HasPrefix(candidate, "{") {
		return NoQuery{}, append(notices, Notice{
			Level:   NoticeError,
			Message: fmt.Sprintf("query must be a JSON object with find or aggregate, got: %s", quote(candidate)),
		})
	}

	var doc bson.D
	if err := bson.UnmarshalExtJSON([]byte(candidate), false, &doc); err != nil {
		return NoQuery{}, append(notices, Notice{
			Level:   NoticeError,
			Message: fmt.Sprintf("model returned an unreadable query %s: %v", quote(candidate), err),
		})
	}
	return Classify(doc, notices)
}

func quote(text string) string {
	if len(text) > quoteLimit {
		text = text[:quoteLimit] + "..."
	}
	return fmt.Sprintf("%q", text)
}
