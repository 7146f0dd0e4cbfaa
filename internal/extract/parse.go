package extract

import (
	"encoding/json"
	"regexp"
	"strings"
)

// tagFallbackRe salvages tag-shaped substrings when the model did not
// return a clean JSON list.
var tagFallbackRe = regexp.MustCompile(`[A-Za-z0-9\-\.'"/]{3,45}`)

// parseTagList reads a model reply into a deduplicated tag list. The
// expected form is a JSON array of strings, possibly wrapped in a
// markdown code fence; anything else falls back to scanning the raw
// reply for tag-shaped substrings.
func parseTagList(raw string) []string {
	content := strings.TrimSpace(raw)
	content = strings.TrimPrefix(content, "```json")
	content = strings.TrimPrefix(content, "```")
	content = strings.TrimSuffix(content, "```")
	content = strings.TrimSpace(content)

	var parsed []string
	if err := json.Unmarshal([]byte(content), &parsed); err == nil {
		return dedupe(parsed)
	}
	return dedupe(tagFallbackRe.FindAllString(raw, -1))
}

// trimQuotePair removes one matching pair of surrounding quotes, the
// artifact of the fallback scan picking quoted strings out of a JSON
// object reply. A lone trailing quote is an inch mark and stays.
func trimQuotePair(s string) string {
	if len(s) >= 2 && (s[0] == '"' || s[0] == '\'') && s[len(s)-1] == s[0] {
		return s[1 : len(s)-1]
	}
	return s
}

func dedupe(in []string) []string {
	seen := make(map[string]struct{}, len(in))
	out := make([]string, 0, len(in))
	for _, s := range in {
		s = trimQuotePair(s)
		if s == "" {
			continue
		}
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	return out
}
