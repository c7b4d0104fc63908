// Package config reads the settings shared by the binaries from the environment and the optional prompts file.
package config

import (
	"log/slog"
	"os"

	"github.com/myrjola/keeper/internal/envstruct"
	"github.com/myrjola/keeper/internal/errors"
	"github.com/myrjola/keeper/internal/keeper"
	"github.com/myrjola/keeper/internal/models"
	"gopkg.in/yaml.v3"
)

type Config struct {
	// Model is the model name passed to the completion endpoint.
	Model string `env:"KEEPER_MODEL" envDefault:"gpt-4o-mini"`
	// BaseURL is the root of the OpenAI-compatible API without the /v1 suffix.
	BaseURL string `env:"KEEPER_BASE_URL" envDefault:"https://api.openai.com"`
	// APIKey authenticates against the endpoint. Empty runs every turn on the fallback Keeper.
	APIKey      string  `env:"KEEPER_API_KEY" envDefault:""`
	Temperature float32 `env:"KEEPER_TEMPERATURE" envDefault:"0.7"`
	TopP        float32 `env:"KEEPER_TOP_P" envDefault:"0.9"`
	// HistoryLimit bounds the chat messages sent with each turn. Zero sends the whole chat.
	HistoryLimit int `env:"KEEPER_HISTORY_LIMIT" envDefault:"0"`
	// PromptsFile is an optional YAML file overriding prompts and phrases.
	PromptsFile string `env:"KEEPER_PROMPTS_FILE" envDefault:""`
	SqliteURL   string `env:"KEEPER_SQLITE_URL" envDefault:"./keeper.sqlite"`
	Addr        string `env:"KEEPER_ADDR" envDefault:"localhost:4000"`
	PprofPort   string `env:"KEEPER_PPROF_PORT" envDefault:""`
}

// PromptsFile is the document format of KEEPER_PROMPTS_FILE.
type PromptsFile struct {
	Prompts models.KeeperPrompts `yaml:"prompts"`
	Phrases keeper.Phrases       `yaml:"phrases"`
}

// Load populates the Config from lookupEnv, which has the signature of [os.LookupEnv].
func Load(lookupEnv func(string) (string, bool)) (Config, error) {
	var cfg Config
	if err := envstruct.Populate(&cfg, lookupEnv); err != nil {
		return cfg, errors.Wrap(err, "populate config")
	}
	if cfg.HistoryLimit < 0 {
		return cfg, errors.New("history limit must not be negative", slog.Int("history_limit", cfg.HistoryLimit))
	}
	return cfg, nil
}

// LLM returns the completion endpoint settings.
func (c Config) LLM() models.LLMConfig {
	return models.LLMConfig{
		Model:       c.Model,
		BaseURL:     c.BaseURL,
		APIKey:      c.APIKey,
		Temperature: c.Temperature,
		TopP:        c.TopP,
	}
}

// Keeper returns the orchestrator settings, reading the prompts file when one is set.
func (c Config) Keeper() (keeper.Config, error) {
	cfg := keeper.Config{
		Prompts:      models.KeeperPrompts{SystemPrompt: "", CycleRules: "", ReplyFormat: ""},
		Phrases:      keeper.Phrases{}, //nolint:exhaustruct // blank phrases fall back to the defaults
		HistoryLimit: c.HistoryLimit,
	}
	if c.PromptsFile == "" {
		return cfg, nil
	}
	file, err := ReadPromptsFile(c.PromptsFile)
	if err != nil {
		return cfg, err
	}
	cfg.Prompts = file.Prompts
	cfg.Phrases = file.Phrases
	return cfg, nil
}

// ReadPromptsFile decodes a YAML prompts file. Unknown keys are rejected.
func ReadPromptsFile(path string) (*PromptsFile, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, "open prompts file", slog.String("path", path))
	}
	defer func() {
		_ = f.Close()
	}()
	var file PromptsFile
	decoder := yaml.NewDecoder(f)
	decoder.KnownFields(true)
	if err = decoder.Decode(&file); err != nil {
		return nil, errors.Wrap(err, "decode prompts file", slog.String("path", path))
	}
	return &file, nil
}
