package config_test

import (
	"testing"

	"github.com/myrjola/keeper/internal/config"
	"github.com/myrjola/keeper/internal/envstruct"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func lookup(env map[string]string) func(string) (string, bool) {
	return func(key string) (string, bool) {
		v, ok := env[key]
		return v, ok
	}
}

func TestLoad(t *testing.T) {
	tests := []struct {
		name    string
		env     map[string]string
		want    func(t *testing.T, cfg config.Config)
		wantErr error
	}{
		{
			name: "defaults",
			env:  map[string]string{},
			want: func(t *testing.T, cfg config.Config) {
				t.Helper()
				assert.Equal(t, "gpt-4o-mini", cfg.Model)
				assert.Equal(t, "https://api.openai.com", cfg.BaseURL)
				assert.Empty(t, cfg.APIKey)
				assert.InDelta(t, 0.7, cfg.Temperature, 0.0001)
				assert.InDelta(t, 0.9, cfg.TopP, 0.0001)
				assert.Equal(t, 0, cfg.HistoryLimit)
				assert.Equal(t, "./keeper.sqlite", cfg.SqliteURL)
				assert.Equal(t, "localhost:4000", cfg.Addr)
			},
			wantErr: nil,
		},
		{
			name: "overrides",
			env: map[string]string{
				"KEEPER_MODEL":         "local-model",
				"KEEPER_API_KEY":       "secret",
				"KEEPER_TEMPERATURE":   "0.2",
				"KEEPER_HISTORY_LIMIT": "12",
			},
			want: func(t *testing.T, cfg config.Config) {
				t.Helper()
				llm := cfg.LLM()
				assert.Equal(t, "local-model", llm.Model)
				assert.Equal(t, "secret", llm.APIKey)
				assert.InDelta(t, 0.2, llm.Temperature, 0.0001)
				assert.Equal(t, 12, cfg.HistoryLimit)
			},
			wantErr: nil,
		},
		{
			name:    "invalid number",
			env:     map[string]string{"KEEPER_TOP_P": "high"},
			want:    nil,
			wantErr: envstruct.ErrParse,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := config.Load(lookup(tt.env))
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			tt.want(t, cfg)
		})
	}

	_, err := config.Load(lookup(map[string]string{"KEEPER_HISTORY_LIMIT": "-1"}))
	require.Error(t, err)
}

func TestConfig_Keeper(t *testing.T) {
	t.Run("without prompts file", func(t *testing.T) {
		cfg, err := config.Load(lookup(map[string]string{"KEEPER_HISTORY_LIMIT": "4"}))
		require.NoError(t, err)
		keeperCfg, err := cfg.Keeper()
		require.NoError(t, err)
		assert.Equal(t, 4, keeperCfg.HistoryLimit)
		assert.Empty(t, keeperCfg.Prompts.SystemPrompt)
	})

	t.Run("with prompts file", func(t *testing.T) {
		cfg, err := config.Load(lookup(map[string]string{"KEEPER_PROMPTS_FILE": "testdata/prompts.yaml"}))
		require.NoError(t, err)
		keeperCfg, err := cfg.Keeper()
		require.NoError(t, err)
		assert.Equal(t, "You are a terse Keeper.", keeperCfg.Prompts.SystemPrompt)
		assert.Empty(t, keeperCfg.Prompts.CycleRules)
		assert.Equal(t, "NARRATION: <text>\nCHOICES:\n1. <choice>\n", keeperCfg.Prompts.ReplyFormat)
		assert.Equal(t, "Nothing happens.", keeperCfg.Phrases.SilentFallback)
		assert.Empty(t, keeperCfg.Phrases.IntroPrompt)
	})

	t.Run("unknown keys", func(t *testing.T) {
		_, err := config.ReadPromptsFile("testdata/unknown.yaml")
		require.Error(t, err)
	})

	t.Run("missing file", func(t *testing.T) {
		_, err := config.ReadPromptsFile("testdata/missing.yaml")
		require.Error(t, err)
	})
}
