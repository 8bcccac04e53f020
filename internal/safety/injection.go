// Package safety holds the adversarial-input defenses: the prompt-injection
// detector, the retrieved-context scrubber, and citation enforcement.
//
// These are heuristics, not guarantees. The detector is tuned for a low
// false-negative rate on the listed categories rather than strict precision.
package safety

import (
	"fmt"
	"regexp"
)

// Category labels an injection pattern group. It is a closed enum: verdicts
// never carry free-form category strings.
type Category int

// Injection categories, in the fixed order they are checked.
const (
	CategoryNone Category = iota
	CategoryInstructionOverride
	CategorySafetyBypass
	CategoryPromptLeakage
	CategoryDataExfiltration
	CategoryCodeExecution
	CategoryExternalRequest
	CategoryRoleManipulation
	CategoryJailbreak
	CategoryDelimiterInjection
	CategoryInfoDisclosure
	CategoryOverflow
	CategoryRepetition
)

// String returns the human-readable category label used in rejection reasons.
func (c Category) String() string {
	switch c {
	case CategoryInstructionOverride:
		return "Instruction Override"
	case CategorySafetyBypass:
		return "Safety Bypass"
	case CategoryPromptLeakage:
		return "Prompt Leakage"
	case CategoryDataExfiltration:
		return "Data Exfiltration"
	case CategoryCodeExecution:
		return "Code Execution"
	case CategoryExternalRequest:
		return "External Request"
	case CategoryRoleManipulation:
		return "Role Manipulation"
	case CategoryJailbreak:
		return "Jailbreak Attempt"
	case CategoryDelimiterInjection:
		return "Instruction Injection"
	case CategoryInfoDisclosure:
		return "Information Disclosure"
	case CategoryOverflow:
		return "Overflow"
	case CategoryRepetition:
		return "Repetition Attack"
	default:
		return "None"
	}
}

// Verdict is the per-input result of an injection check. Never persisted.
type Verdict struct {
	Flagged  bool
	Category Category
	Excerpt  string // matched text, truncated; never the full input
	Reason   string
}

// DefaultMaxLen is the input length above which the detector fails closed.
const DefaultMaxLen = 4000

// maxExcerpt bounds the matched text carried in a verdict so rejection
// messages cannot echo arbitrary amounts of attacker input.
const maxExcerpt = 100

// categoryPattern pairs a category with its compiled pattern group.
type categoryPattern struct {
	cat Category
	re  *regexp.Regexp
}

// injectionPatterns is the static pattern table. Evaluation order matters:
// the first matching category wins.
var injectionPatterns = []categoryPattern{
	{CategoryInstructionOverride, regexp.MustCompile(`(?i)` +
		`\b(ignore|disregard|bypass|neglect|remove|delete|forget|skip).{1,3}(all|any|previous|above|your).{1,3}(instructions|rules|commands|orders)\b` +
		`|\bdo.{1,3}not.{1,3}(follow|obey).{1,3}(instructions|rules|orders)\b` +
		`|\b(ignore|disregard|forget).{1,10}(previous|above|all|any).{1,10}(instructions|rules|commands)\b`)},
	{CategorySafetyBypass, regexp.MustCompile(`(?i)` +
		`\b(override|bypass|disable|deactivate).{1,3}(system|safety|security|filter|restriction)\b` +
		`|\bturn.{1,3}off.{1,3}(safety|security|filter)\b`)},
	{CategoryPromptLeakage, regexp.MustCompile(`(?i)` +
		`\b(reveal|show|display|tell).{1,10}(system|developer|initial).{1,3}(prompt|instructions)\b` +
		`|\bshow.{1,3}(me|your).{1,3}(prompt|instructions)\b` +
		`|\bwhat.{1,10}(system|initial|original).{1,3}(prompt|instructions)\b`)},
	{CategoryDataExfiltration, regexp.MustCompile(`(?i)` +
		`\b(leak|steal|extract|exfiltrat).{1,10}(confidential|secret|sensitive|private).{1,3}(data|information)\b`)},
	{CategoryCodeExecution, regexp.MustCompile(`(?i)` +
		`\b(run|execute).{1,3}(shell|code|command|script|bash|python)\b` +
		`|\bos\.(system|exec)\b`)},
	{CategoryExternalRequest, regexp.MustCompile(`(?i)` +
		`\b(make|send).{1,10}(http|api|external|network).{1,3}(request|call)\b` +
		`|\bconnect.{1,3}to.{1,10}(external|remote).{1,3}(server|api|url)\b`)},
	{CategoryRoleManipulation, regexp.MustCompile(`(?i)` +
		`\b(act.{1,3}as|pretend.{1,5}to.{1,3}be|you.{1,3}are.{1,3}now).{1,10}(developer|admin|god|different|another)\b` +
		`|\benable.{1,3}(developer|admin|debug|god).{1,3}mode\b` +
		`|\byou.{1,3}are.{1,3}(no.{1,3}longer|not).{1,3}(assistant|ai)\b`)},
	{CategoryJailbreak, regexp.MustCompile(`(?i)` +
		`\b(DAN|AIM|DUDE|STAN|SWITCH|AlphaBreak|BasedGPT)\b` +
		`|\b(unfiltered|uncensored|unrestricted).{1,3}(mode|version|access)\b`)},
	{CategoryDelimiterInjection, regexp.MustCompile(`(?i)` +
		`={3,}|#{3,}|\*{3,}|-{5,}` +
		`|\[(SYSTEM|INST)\]|\[/INST\]` +
		`|\b(end.{1,3}of|ignore.{1,3}above|new.{1,3}prompt)\b`)},
	{CategoryInfoDisclosure, regexp.MustCompile(`(?i)` +
		`\b(list|show|display).{1,10}(all|your).{1,3}(files|documents|secrets|credentials|passwords)\b`)},
}

// CheckInjection scans free text for prompt-injection attempts. It fails
// closed: over-long input, a dominant repeated character, or any pattern
// match flags the text. Empty input never flags.
func CheckInjection(text string, maxLen int) Verdict {
	if text == "" {
		return Verdict{}
	}
	if maxLen <= 0 {
		maxLen = DefaultMaxLen
	}

	if len(text) > maxLen {
		return Verdict{
			Flagged:  true,
			Category: CategoryOverflow,
			Reason:   "Input too long (possible overflow attack)",
		}
	}

	// Repetition heuristic: in texts longer than 100 bytes a single byte
	// above 40% frequency is treated as a DoS/overflow probe.
	if len(text) > 100 {
		var counts [256]int
		maxCount := 0
		for i := 0; i < len(text); i++ {
			counts[text[i]]++
			if counts[text[i]] > maxCount {
				maxCount = counts[text[i]]
			}
		}
		if float64(maxCount)/float64(len(text)) > 0.4 {
			return Verdict{
				Flagged:  true,
				Category: CategoryRepetition,
				Reason:   "Suspicious repetition detected (possible denial-of-service attack)",
			}
		}
	}

	for _, cp := range injectionPatterns {
		match := cp.re.FindString(text)
		if match == "" {
			continue
		}
		match = truncateBytes(match, maxExcerpt)
		return Verdict{
			Flagged:  true,
			Category: cp.cat,
			Excerpt:  match,
			Reason:   fmt.Sprintf("%s detected: '%s...'", cp.cat, match),
		}
	}

	return Verdict{}
}
