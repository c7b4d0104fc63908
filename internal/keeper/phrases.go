package keeper

import "strings"

// Phrases are the fixed texts the orchestrator adds to a session on its own.
type Phrases struct {
	// IntroPrompt is sent as the player utterance of the introduction turn. {investigator} and {scenario} are
	// replaced with the record names.
	IntroPrompt string `yaml:"introPrompt"`
	// IntroFallback narrates the introduction when no completion endpoint is configured.
	IntroFallback string `yaml:"introFallback"`
	// MessageFallback narrates a regular turn when no completion endpoint is configured.
	MessageFallback string `yaml:"messageFallback"`
	// SilentFallback narrates a failed turn that produced no text.
	SilentFallback string `yaml:"silentFallback"`
	// RewriteNote is the system note inserted before an edited player action.
	RewriteNote string `yaml:"rewriteNote"`
}

// DefaultPhrases returns the built-in English phrases.
func DefaultPhrases() Phrases {
	return Phrases{
		IntroPrompt: "Begin the scenario {scenario}. Introduce the opening scene for my investigator " +
			"{investigator} and offer the first choices.",
		IntroFallback: "The scenario begins. The air is heavy with something unspoken, and the world around you " +
			"waits for your first move.",
		MessageFallback: "The Keeper considers your action. For a moment nothing stirs, then the scene shifts " +
			"almost imperceptibly around you.",
		SilentFallback: "The Keeper falls silent. The scene waits for you.",
		RewriteNote:    "The player rewrote their previous action.",
	}
}

// merge fills blank fields of p from defaults.
func (p Phrases) merge(defaults Phrases) Phrases {
	pick := func(value, fallback string) string {
		if strings.TrimSpace(value) == "" {
			return fallback
		}
		return value
	}
	return Phrases{
		IntroPrompt:     pick(p.IntroPrompt, defaults.IntroPrompt),
		IntroFallback:   pick(p.IntroFallback, defaults.IntroFallback),
		MessageFallback: pick(p.MessageFallback, defaults.MessageFallback),
		SilentFallback:  pick(p.SilentFallback, defaults.SilentFallback),
		RewriteNote:     pick(p.RewriteNote, defaults.RewriteNote),
	}
}

func (p Phrases) introPrompt(investigator, scenario string) string {
	return strings.NewReplacer("{investigator}", investigator, "{scenario}", scenario).Replace(p.IntroPrompt)
}
