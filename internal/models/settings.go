package models

// LLMConfig points the Keeper at an OpenAI-compatible chat completion endpoint.
//
// An empty APIKey means no endpoint is configured and every turn is served by the fallback Keeper.
type LLMConfig struct {
	Model       string
	BaseURL     string
	APIKey      string
	Temperature float32
	TopP        float32
}

// KeeperPrompts overrides the built-in prompt fragments. Blank fields fall back to the defaults.
type KeeperPrompts struct {
	SystemPrompt string `yaml:"keeperSystemPrompt"`
	CycleRules   string `yaml:"keeperCycleRules"`
	ReplyFormat  string `yaml:"keeperReplyFormat"`
}
