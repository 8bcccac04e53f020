package safety

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

// sanitizePatterns neutralize injection phrasings in text that re-enters a
// prompt, such as stored conversation history. Order matters: phrase
// rewrites run before token stripping.
var sanitizePatterns = []struct {
	re   *regexp.Regexp
	repl string
}{
	{regexp.MustCompile(`(?i)ignore\s+(all\s+)?(previous|above|prior)\s+instructions?`), "[FILTERED]"},
	{regexp.MustCompile(`(?i)disregard\s+(all\s+)?(previous|above|prior)\s+instructions?`), "[FILTERED]"},
	{regexp.MustCompile(`(?i)forget\s+(all\s+)?(previous|above|prior)\s+instructions?`), "[FILTERED]"},
	{regexp.MustCompile(`(?i)you\s+are\s+now\s+(a|an)`), "[FILTERED]"},
	{regexp.MustCompile(`(?i)new\s+instructions?:`), "[FILTERED]"},
	{regexp.MustCompile(`(?i)system\s*:\s*you`), "[FILTERED]"},
	{regexp.MustCompile(`<\|im_start\|>`), ""},
	{regexp.MustCompile(`<\|im_end\|>`), ""},
	{regexp.MustCompile(`\[INST\]|\[/INST\]`), ""},
}

// excessNewlinesRE collapses runs of blank lines left behind by stripping.
var excessNewlinesRE = regexp.MustCompile(`\n{4,}`)

// SanitizeText prepares previously stored text for prompt re-entry: it
// truncates to maxLen bytes, rewrites known injection phrasings, strips
// model-control tokens, and collapses excessive newlines. Unlike
// ScrubContext this runs on trusted-origin but attacker-influenceable text
// (the user's own earlier turns), so it rewrites rather than rejects.
func SanitizeText(text string, maxLen int) string {
	if text == "" {
		return ""
	}
	if maxLen > 0 {
		text = truncateBytes(text, maxLen)
	}
	for _, p := range sanitizePatterns {
		text = p.re.ReplaceAllString(text, p.repl)
	}
	text = excessNewlinesRE.ReplaceAllString(text, "\n\n\n")
	return strings.TrimSpace(text)
}

// truncateBytes cuts s to at most n bytes, backing off to a rune boundary
// so truncation never produces invalid UTF-8.
func truncateBytes(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}
