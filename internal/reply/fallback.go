package reply

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
)

// OwnActionChoice is always the last choice of a fallback turn.
const OwnActionChoice = "Propose your own action. Describe what you do in your own words."

var fallbackChoices = []string{
	"Survey the immediate area for threats or hidden clues.",
	"Call out cautiously to test who might answer.",
	"Advance toward the most striking feature nearby.",
	"Pause to steady yourself and recall what you know.",
	OwnActionChoice,
}

// BuildFallback renders a Keeper reply in the legacy sectioned dialect so that it parses exactly like a real reply.
//
// The narration is seed when it has content, otherwise silent. There are always five choices.
func BuildFallback(seed, silent string) string {
	narration := plainNarration(seed)
	if narration == "" {
		narration = plainNarration(silent)
	}

	var b strings.Builder
	b.WriteString("NARRATION:\n")
	b.WriteString(narration)
	b.WriteString("\n\nCHOICES:\n")
	for i, choice := range fallbackChoices {
		if i > 0 {
			b.WriteByte('\n')
		}
		fmt.Fprintf(&b, "%d. %s", i+1, choice)
	}
	return b.String()
}

var (
	// choicesLabel only matches a label that starts a line, "his choices: stay or flee" is prose.
	choicesLabel = regexp.MustCompile(`(?im)^[ \t]*CHOICES:`)
	// leadingNarrationLabel matches the label in capitals or alone on its line. "Narration: the door opens." is prose.
	leadingNarrationLabel = regexp.MustCompile(`^(?:NARRATION:|(?i:narration:)[ \t]*\r?\n)`)
	truncatedJSON         = regexp.MustCompile(`^(?:` + "```" + `[A-Za-z]*\s*)?\{\s*"narration"\s*:\s*"((?:[^"\\]|\\.)*)`)
)

// plainNarration peels reply structure off text so that it can be embedded as fallback narration without
// contributing choices of its own. Partial replies cut off mid-stream are the usual input.
func plainNarration(text string) string {
	for {
		text = strings.TrimSpace(text)
		if turn, err := parseStructured(text); err == nil {
			text = turn.Narration
			continue
		}
		if m := truncatedJSON.FindStringSubmatch(text); m != nil {
			var narration string
			if json.Unmarshal([]byte(`"`+m[1]+`"`), &narration) != nil {
				narration = m[1]
			}
			text = narration
			continue
		}
		if loc := leadingNarrationLabel.FindStringIndex(text); loc != nil {
			text = text[loc[1]:]
			continue
		}
		if loc := choicesLabel.FindStringIndex(text); loc != nil {
			text = text[:loc[0]]
			continue
		}
		return text
	}
}

// providerNoise matches status lines some providers inject into the stream, e.g. ": OPENROUTER PROCESSING".
var providerNoise = regexp.MustCompile(`(?i):?[ \t]*openrouter[ \t]*proc\w*[^\n]*\n?`)

// Sanitize strips provider status noise from accumulated completion text.
func Sanitize(text string) string {
	return providerNoise.ReplaceAllString(text, "")
}

// SanitizePartial is Sanitize for text that is still streaming in. A tail that may still grow into a noise line is
// held back, so that sanitizing a longer prefix of the same stream never shortens the result.
func SanitizePartial(text string) string {
	text = Sanitize(text)
	for i := strings.LastIndexByte(text, '\n') + 1; i < len(text); i++ {
		if noisePrefix(text[i:]) {
			return text[:i]
		}
	}
	return text
}

// noisePrefix reports whether s is an incomplete start of a providerNoise match.
func noisePrefix(s string) bool {
	const name, status = "openrouter", "proc"
	s = strings.TrimLeft(strings.TrimPrefix(strings.ToLower(s), ":"), " \t")
	if len(s) <= len(name) {
		return strings.HasPrefix(name, s)
	}
	if !strings.HasPrefix(s, name) {
		return false
	}
	rest := strings.TrimLeft(s[len(name):], " \t")
	return len(rest) < len(status) && strings.HasPrefix(status, rest)
}

// Preview returns the narration of a reply that is still streaming in. It is empty until the reply shows narration
// text, so that bare structure like an opening brace or a partial section label is never displayed.
func Preview(text string) string {
	narration := plainNarration(text)
	switch {
	case strings.HasPrefix(narration, "{"), strings.HasPrefix(narration, "`"):
		return ""
	case strings.HasPrefix("NARRATION:", strings.ToUpper(narration)):
		return ""
	}
	return narration
}
