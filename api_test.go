package main

import (
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Seednode/mash/elimination"
	"github.com/Seednode/mash/plan"
)

func TestAPI_plan(t *testing.T) {
	valid := plan.Request{
		Categories: map[string]string{"Career Growth": "Build a side project"},
		Mood:       []string{"Serious"},
	}

	tests := []struct {
		name    string
		body    any
		genErr  error
		want    int
		message string
	}{
		{"malformed body", "{", nil, http.StatusBadRequest, "Missing required fields"},
		{"missing mood", map[string]any{"categories": map[string]string{}}, nil, http.StatusBadRequest, "Missing required fields"},
		{"missing categories", map[string]any{"mood": []string{"Serious"}}, nil, http.StatusBadRequest, "Missing required fields"},
		{"no api key", valid, &plan.ConfigError{Provider: "OpenAI", EnvVar: "OPENAI_API_KEY"}, http.StatusInternalServerError, "OpenAI API key not configured. Please set OPENAI_API_KEY."},
		{"upstream failure", valid, errors.New("boom"), http.StatusInternalServerError, "Failed to generate plan. Please try again."},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ts := newTestServer(t)
			ts.gen.err = tt.genErr

			rec := ts.do(t, http.MethodPost, "/api/plan", tt.body, nil)
			assert.Equal(t, tt.want, rec.Code)
			assert.Equal(t, tt.message, decode[errorResponse](t, rec).Error)
		})
	}

	t.Run("success", func(t *testing.T) {
		ts := newTestServer(t)

		rec := ts.do(t, http.MethodPost, "/api/plan", valid, nil)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		assert.Equal(t, "## Your Persona\nClay Mystic", decode[planResponse](t, rec).Plan)
		assert.Contains(t, ts.gen.prompts[0].User, "- Career Growth: Build a side project\n")
	})

	t.Run("empty categories are accepted", func(t *testing.T) {
		ts := newTestServer(t)

		rec := ts.do(t, http.MethodPost, "/api/plan", map[string]any{"categories": map[string]string{}, "mood": []string{}}, nil)
		assert.Equal(t, http.StatusOK, rec.Code)
	})
}

func TestAPI_eliminate(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(t, http.MethodPost, "/api/eliminate", eliminateRequest{
		Pools: []elimination.Pool{
			{Category: "A", Items: []string{"a1", "a2", "a3"}},
			{Category: "B", Items: []string{"b1", "b2", "b3", "b4"}},
		},
		MagicNumber: 2,
	}, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	result := decode[elimination.Result](t, rec)
	assert.Equal(t, []elimination.Step{
		{Category: "A", Item: "a2", Index: 1},
		{Category: "B", Item: "b1", Index: 3},
		{Category: "B", Item: "b3", Index: 5},
		{Category: "A", Item: "a1", Index: 0},
		{Category: "B", Item: "b2", Index: 4},
	}, result.Steps)
	assert.Equal(t, map[elimination.Category]string{"A": "a3", "B": "b4"}, result.Winners)

	rec = ts.do(t, http.MethodPost, "/api/eliminate", "[", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAPI_eliminateDegenerate(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(t, http.MethodPost, "/api/eliminate", eliminateRequest{
		Pools:       []elimination.Pool{{Category: "A", Items: []string{"a1", "a2"}}},
		MagicNumber: 1,
	}, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	result := decode[elimination.Result](t, rec)
	assert.Empty(t, result.Steps)
	assert.NotNil(t, result.Steps)
	assert.Equal(t, "a2", result.Winners["A"])
}

func TestAPI_catalog(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(t, http.MethodGet, "/api/catalog", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	c := decode[Catalog](t, rec)
	assert.Len(t, c.Categories, categoryCount)
	assert.Equal(t, "Volunteer Cause", c.Categories[3].Title)
	assert.Equal(t, "public, max-age=3600", rec.Header().Get("Cache-Control"))
}
