package safety

import (
	"regexp"
	"strconv"
	"strings"
)

var (
	sentSplitRE = regexp.MustCompile(`(?:[.!?])\s+`)
	citationRE  = regexp.MustCompile(`\[(\d+)\]`)
)

// splitSentences splits answer text at sentence punctuation followed by
// whitespace and a capital letter or digit, keeping the punctuation with
// the preceding sentence.
func splitSentences(text string) []string {
	var out []string
	rest := text
	for {
		loc := findBoundary(rest)
		if loc == nil {
			break
		}
		// Punctuation belongs to the left sentence; whitespace is dropped.
		out = append(out, rest[:loc[0]+1])
		rest = rest[loc[1]:]
	}
	if rest != "" {
		out = append(out, rest)
	}
	return out
}

// findBoundary locates the next sentence boundary. Go regexp has no
// lookahead, so the capital/digit requirement is checked by hand.
func findBoundary(s string) []int {
	off := 0
	for {
		loc := sentSplitRE.FindStringIndex(s[off:])
		if loc == nil {
			return nil
		}
		start, end := off+loc[0], off+loc[1]
		if end < len(s) && isSentenceStart(s[end]) {
			return []int{start, end}
		}
		off = end
	}
}

func isSentenceStart(b byte) bool {
	return (b >= 'A' && b <= 'Z') || (b >= '0' && b <= '9')
}

// EnforceCitations drops every sentence of the answer that carries no valid
// numeric bracket reference. It returns the cleaned answer and whether all
// sentences survived. It never fabricates citations, only removes
// unsupported claims.
func EnforceCitations(answer string, validIDs map[int]struct{}) (string, bool) {
	if answer == "" {
		return "", false
	}

	supported := true
	var keep []string
	for _, sent := range splitSentences(strings.TrimSpace(answer)) {
		sent = strings.TrimSpace(sent)
		if sent == "" {
			continue
		}
		if !sentenceCited(sent, validIDs) {
			supported = false
			continue
		}
		keep = append(keep, sent)
	}
	return strings.Join(keep, " "), supported
}

// sentenceCited reports whether the sentence contains at least one [n]
// marker inside the valid reference set.
func sentenceCited(sent string, validIDs map[int]struct{}) bool {
	for _, m := range citationRE.FindAllStringSubmatch(sent, -1) {
		n, err := strconv.Atoi(m[1])
		if err != nil {
			continue
		}
		if _, ok := validIDs[n]; ok {
			return true
		}
	}
	return false
}
