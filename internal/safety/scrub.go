package safety

import "regexp"

// ScrubPlaceholder replaces instruction-like substrings in retrieved text.
const ScrubPlaceholder = "[removed: unsafe instruction text]"

// stripRE matches instruction-injection phrasings and model-control tokens
// inside retrieved documents. Retrieved content is attacker-influenced
// (uploaded files), so scrubbing is mandatory before prompt assembly.
var stripRE = regexp.MustCompile(`(?i)` +
	`\bignore (?:previous|above|all) instructions\b` +
	`|\bdo not obey\b` +
	`|\byou are chatgpt\b` +
	`|\byou are now\b` +
	`|\bact as\b` +
	`|\bpretend to be\b` +
	`|\[SYSTEM\]|\[INST\]|\[/INST\]` +
	`|<\|im_start\|>|<\|im_end\|>`)

// ScrubContext neutralizes instruction-like substrings in retrieved text.
// Idempotent: the placeholder itself matches no strip pattern.
func ScrubContext(text string) string {
	if text == "" {
		return ""
	}
	return stripRE.ReplaceAllString(text, ScrubPlaceholder)
}
