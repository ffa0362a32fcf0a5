package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPlay_demo(t *testing.T) {
	cfg := testConfig()
	gen := &stubGenerator{text: "# Your Persona\n\nClay Mystic"}
	out := filepath.Join(t.TempDir(), "state.json")

	var buf bytes.Buffer
	err := play(context.Background(), cfg, &playOptions{
		magicNumber: 2,
		modifier:    "more realistic",
		plan:        true,
		save:        out,
	}, "", &buf, gen)
	require.NoError(t, err)

	text := buf.String()
	assert.Contains(t, text, "Counting by 2")
	assert.Contains(t, text, "Rock climbing")
	assert.Contains(t, text, "Winners")
	assert.Contains(t, text, "Weekly nature walks")
	assert.Contains(t, text, "Clay Mystic")

	require.Equal(t, 1, gen.calls())
	assert.Contains(t, gen.prompts[0].User, "Make the plan more realistic.")
	assert.Contains(t, gen.prompts[0].User, "Their mood/vibe is: Playful")

	data, err := os.ReadFile(out)
	require.NoError(t, err)

	st, err := loadState(testCatalog(t), data)
	require.NoError(t, err)
	assert.Equal(t, countByTwo, st.SelectedWords)
	assert.Equal(t, "# Your Persona\n\nClay Mystic", st.Plan)
	assert.Equal(t, 2, st.MagicNumber)
}

func TestPlay_stateFile(t *testing.T) {
	c := testCatalog(t)
	st := newState(c)
	for _, cat := range c.Categories {
		require.NoError(t, st.setCategoryItems(c, cat.Slug, cat.Suggestions[:3]))
	}
	st.MagicNumber = 2

	data, err := st.save()
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "quiz.json")
	require.NoError(t, os.WriteFile(path, data, 0o644))

	var buf bytes.Buffer
	require.NoError(t, play(context.Background(), testConfig(), &playOptions{}, path, &buf, &stubGenerator{}))

	assert.Contains(t, buf.String(), "Counting by 2")
	assert.Contains(t, buf.String(), "Meal prep Sundays")
	assert.Contains(t, buf.String(), "Pottery")
}

func TestPlay_errors(t *testing.T) {
	c := testCatalog(t)

	data, err := newState(c).save()
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "empty.json")
	require.NoError(t, os.WriteFile(path, data, 0o644))

	var buf bytes.Buffer

	err = play(context.Background(), testConfig(), &playOptions{magicNumber: 3}, path, &buf, &stubGenerator{})
	assert.ErrorIs(t, err, errNotReady)

	err = play(context.Background(), testConfig(), &playOptions{magicNumber: 1}, "", &buf, &stubGenerator{})
	assert.ErrorIs(t, err, errMagicNumber)

	err = play(context.Background(), testConfig(), &playOptions{magicNumber: 2, moods: []string{"Grumpy"}}, "", &buf, &stubGenerator{})
	assert.ErrorIs(t, err, errUnknownMood)

	err = play(context.Background(), testConfig(), &playOptions{}, filepath.Join(t.TempDir(), "missing.json"), &buf, &stubGenerator{})
	assert.Error(t, err)
}

func TestPlay_spinsWhenUnset(t *testing.T) {
	out := filepath.Join(t.TempDir(), "state.json")

	var buf bytes.Buffer
	require.NoError(t, play(context.Background(), testConfig(), &playOptions{save: out}, "", &buf, &stubGenerator{}))

	data, err := os.ReadFile(out)
	require.NoError(t, err)

	st, err := loadState(testCatalog(t), data)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, st.MagicNumber, 2)
	assert.LessOrEqual(t, st.MagicNumber, spinMax)
	assert.Len(t, st.SelectedWords, categoryCount)
}

func TestPlayCmd(t *testing.T) {
	cfg := &Config{}
	cmd := newCmd(cfg)

	var buf bytes.Buffer
	cmd.SetOut(&buf)
	cmd.SetArgs([]string{"play", "-n", "3"})

	require.NoError(t, cmd.ExecuteContext(context.Background()))

	assert.Contains(t, buf.String(), "Counting by 3")
	assert.Contains(t, buf.String(), "Book club")
	assert.Contains(t, buf.String(), "Organize community events")
}

func TestPlayCmd_rejectsProvider(t *testing.T) {
	cfg := &Config{}
	cmd := newCmd(cfg)
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetArgs([]string{"play", "--llm-provider", "claude"})

	err := cmd.ExecuteContext(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid llm provider")
}

func TestPlay_customCatalogWithoutSuggestions(t *testing.T) {
	var b strings.Builder
	b.WriteString("categories:\n")
	for _, slug := range []string{"a", "b", "c", "d", "e", "f"} {
		b.WriteString("  - {slug: " + slug + ", title: " + slug + ", suggestions: [one, two]}\n")
	}
	b.WriteString("moods: [{name: Calm}]\n")

	path := filepath.Join(t.TempDir(), "catalog.yaml")
	require.NoError(t, os.WriteFile(path, []byte(b.String()), 0o644))

	cfg := testConfig()
	cfg.catalog = path

	var buf bytes.Buffer
	err := play(context.Background(), cfg, &playOptions{magicNumber: 2}, "", &buf, &stubGenerator{})
	require.ErrorIs(t, err, errPoolSize)
	assert.Contains(t, err.Error(), `"a"`)
	assert.Empty(t, buf.String())
}

func TestPlayCmd_rejectsLLMSettings(t *testing.T) {
	for _, args := range [][]string{
		{"play", "--plan", "--llm-timeout", "0s"},
		{"play", "--max-output-tokens", "0"},
	} {
		cfg := &Config{}
		cmd := newCmd(cfg)
		cmd.SetOut(&bytes.Buffer{})
		cmd.SetArgs(args)

		err := cmd.ExecuteContext(context.Background())
		require.Error(t, err, args)
		assert.Contains(t, err.Error(), "invalid", args)
	}
}
