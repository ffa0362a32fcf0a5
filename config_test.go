package main

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"

	"github.com/Seednode/mash/plan"
)

func TestConfig_validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"defaults", func(*Config) {}, ""},
		{"cert without key", func(c *Config) { c.tlsCert = "cert.pem" }, "tls-key"},
		{"port too low", func(c *Config) { c.port = 0 }, "invalid port"},
		{"port too high", func(c *Config) { c.port = 70000 }, "invalid port"},
		{"unknown provider", func(c *Config) { c.llmProvider = "claude" }, "invalid llm provider"},
		{"gemini", func(c *Config) { c.llmProvider = "gemini" }, ""},
		{"no llm timeout", func(c *Config) { c.llmTimeout = 0 }, "invalid llm timeout"},
		{"no tokens", func(c *Config) { c.maxOutputTokens = 0 }, "invalid max output tokens"},
		{"too many tokens", func(c *Config) { c.maxOutputTokens = math.MaxInt32 + 1 }, "invalid max output tokens"},
		{"negative playback", func(c *Config) { c.playbackDelay = -time.Second }, "invalid playback delay"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := testConfig()
			tt.mutate(cfg)

			err := cfg.validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}

			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestConfig_scheme(t *testing.T) {
	cfg := testConfig()
	assert.Equal(t, "http", cfg.scheme())

	cfg.tlsCert, cfg.tlsKey = "cert.pem", "key.pem"
	assert.Equal(t, "https", cfg.scheme())
}

func TestConfig_apiKey(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "sk-openai")
	t.Setenv("GEMINI_API_KEY", "")
	t.Setenv("GOOGLE_API_KEY", "google-key")

	cfg := testConfig()
	assert.Equal(t, "sk-openai", cfg.apiKey())

	cfg.llmProvider = "gemini"
	assert.Equal(t, "google-key", cfg.apiKey())

	t.Setenv("GEMINI_API_KEY", "gemini-key")
	assert.Equal(t, "gemini-key", cfg.apiKey())

	cfg.llmAPIKey = "flag-key"
	assert.Equal(t, "flag-key", cfg.apiKey())
}

func TestConfig_newGenerator(t *testing.T) {
	cfg := testConfig()
	_, ok := cfg.newGenerator().(*plan.OpenAI)
	assert.True(t, ok)

	cfg.llmProvider = "gemini"
	_, ok = cfg.newGenerator().(*plan.Gemini)
	assert.True(t, ok)
}

func TestNewCmd_defaults(t *testing.T) {
	cfg := &Config{}
	newCmd(cfg)

	assert.Equal(t, "0.0.0.0", cfg.bind)
	assert.Equal(t, 8080, cfg.port)
	assert.Equal(t, "openai", cfg.llmProvider)
	assert.Equal(t, 2*time.Minute, cfg.llmTimeout)
	assert.Equal(t, plan.DefaultMaxOutputTokens, cfg.maxOutputTokens)
	assert.Equal(t, 300*time.Millisecond, cfg.playbackDelay)
	assert.Equal(t, time.Hour, cfg.sessionTimeout)
	assert.NoError(t, cfg.validate())
}

func TestNewCmd_environment(t *testing.T) {
	t.Setenv("MASH_PORT", "9090")
	t.Setenv("MASH_LLM_PROVIDER", "gemini")
	t.Setenv("MASH_PLAYBACK_DELAY", "50ms")
	t.Setenv("MASH_VERBOSE", "true")

	cfg := &Config{}
	newCmd(cfg)

	assert.Equal(t, 9090, cfg.port)
	assert.Equal(t, "gemini", cfg.llmProvider)
	assert.Equal(t, 50*time.Millisecond, cfg.playbackDelay)
	assert.True(t, cfg.verbose)
}

func TestNewCmd_flagsBeatEnvironment(t *testing.T) {
	t.Setenv("MASH_PORT", "9090")

	cfg := &Config{}
	cmd := newCmd(cfg)

	require.NoError(t, cmd.Flags().Set("port", "7070"))
	assert.Equal(t, 7070, cfg.port)
}

func TestConfig_newLogger(t *testing.T) {
	cfg := testConfig()
	require.NoError(t, cfg.newLogger())
	require.NotNil(t, cfg.logger)

	assert.False(t, cfg.logger.Desugar().Core().Enabled(zapcore.DebugLevel))

	cfg.verbose = true
	require.NoError(t, cfg.newLogger())
	assert.True(t, cfg.logger.Desugar().Core().Enabled(zapcore.DebugLevel))
}
