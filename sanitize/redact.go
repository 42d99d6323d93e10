package sanitize

import (
	"regexp"
	"unicode/utf8"
)

// MaxRedactedLength is the longest string Redact returns, in characters.
const MaxRedactedLength = 500

const ellipsis = "..."

type rule struct {
	pattern     *regexp.Regexp
	replacement string
}

// redactRules run in order; earlier rules consume text before later ones see it.
var redactRules = []rule{
	{regexp.MustCompile(`(?i)api[_-]?keys?[:\s=]+[^\s]+`), "[API_KEY]"},
	{regexp.MustCompile(`(?i)tokens?[:\s=]+[^\s]+`), "[TOKEN]"},
	{regexp.MustCompile(`(?i)passwords?[:\s=]+[^\s]+`), "[PASSWORD]"},
	{regexp.MustCompile(`(?i)secrets?[:\s=]+[^\s]+`), "[SECRET]"},
	{regexp.MustCompile(`(?i)bearer\s+[^\s]+`), "[BEARER_TOKEN]"},
	{regexp.MustCompile(`[A-Za-z0-9._%+-]+@[A-Za-z0-9.-]+\.[A-Za-z]{2,}`), "[EMAIL]"},
	{regexp.MustCompile(`\b(?:\d{1,3}\.){3}\d{1,3}\b`), "[IP_ADDRESS]"},
}

// scrubPatterns are replaced with a single generic marker. File paths are
// included because error messages routinely carry them.
var scrubPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)api[_-]?keys?[:\s=]+[^\s]+`),
	regexp.MustCompile(`(?i)tokens?[:\s=]+[^\s]+`),
	regexp.MustCompile(`(?i)passwords?[:\s=]+[^\s]+`),
	regexp.MustCompile(`(?i)secrets?[:\s=]+[^\s]+`),
	regexp.MustCompile(`(?i)bearer\s+[^\s]+`),
	regexp.MustCompile(`(/[A-Za-z0-9_\-./]+){3,}`),
	regexp.MustCompile(`[A-Za-z0-9._%+-]+@[A-Za-z0-9.-]+\.[A-Za-z]{2,}`),
	regexp.MustCompile(`\b(?:\d{1,3}\.){3}\d{1,3}\b`),
}

// Redacted is the marker Scrub substitutes for sensitive text.
const Redacted = "[REDACTED]"

// Redact replaces credentials, bearer tokens, email addresses and IPv4
// addresses with placeholder tags and caps the result at MaxRedactedLength
// characters. Redact(Redact(s)) == Redact(s).
func Redact(s string) string {
	out := applyRules(s)
	for utf8.RuneCountInString(out) > MaxRedactedLength {
		// Truncation can expose a new match at the cut, so the rules run again.
		out = applyRules(truncateRunes(out, MaxRedactedLength-len(ellipsis)) + ellipsis)
	}
	return out
}

func applyRules(s string) string {
	for _, r := range redactRules {
		s = r.pattern.ReplaceAllLiteralString(s, r.replacement)
	}
	return s
}

// Scrub replaces every sensitive substring, file paths included, with
// Redacted. It does not truncate.
func Scrub(s string) string {
	for _, p := range scrubPatterns {
		s = p.ReplaceAllLiteralString(s, Redacted)
	}
	return s
}

func truncateRunes(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	i := 0
	for pos := range s {
		if i == n {
			return s[:pos]
		}
		i++
	}
	return s
}
