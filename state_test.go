package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Seednode/mash/elimination"
)

func TestState_setMoods(t *testing.T) {
	c := testCatalog(t)
	st := newState(c)

	require.NoError(t, st.setMoods(c, []string{"Playful", "Serious", "Playful"}))
	assert.Equal(t, []string{"Playful", "Serious"}, st.Moods)

	assert.ErrorIs(t, st.setMoods(c, nil), errNoMoods)
	assert.ErrorIs(t, st.setMoods(c, []string{"Grumpy"}), errUnknownMood)
	assert.Equal(t, []string{"Playful", "Serious"}, st.Moods)
}

func TestState_setCategoryItems(t *testing.T) {
	c := testCatalog(t)
	st := newState(c)
	st.SelectedWords = map[string]string{"lifestyle": "Morning meditation"}
	st.Plan = "old plan"

	require.NoError(t, st.setCategoryItems(c, "lifestyle", []string{" Yoga ", "", "Running", "Journaling"}))
	assert.Equal(t, []string{"Yoga", "Running", "Journaling"}, st.Categories["lifestyle"])
	assert.Empty(t, st.SelectedWords)
	assert.Empty(t, st.Plan)

	assert.ErrorIs(t, st.setCategoryItems(c, "lifestyle", []string{"a", " ", "b"}), errPoolSize)
	assert.ErrorIs(t, st.setCategoryItems(c, "lifestyle", []string{"a", "b", "c", "d", "e", "f"}), errPoolSize)
	assert.ErrorIs(t, st.setCategoryItems(c, "astrology", []string{"a", "b", "c"}), errUnknownCategory)
}

func TestState_setMagicNumber(t *testing.T) {
	st := newState(testCatalog(t))

	assert.ErrorIs(t, st.setMagicNumber(1), errMagicNumber)
	require.NoError(t, st.setMagicNumber(7))
	assert.Equal(t, 7, st.MagicNumber)

	assert.Equal(t, 2, magicFromLoops(0))
	assert.Equal(t, 2, magicFromLoops(1))
	assert.Equal(t, 4, magicFromLoops(4))
}

func TestState_ready(t *testing.T) {
	c := testCatalog(t)
	st := newState(c)

	assert.ErrorIs(t, st.ready(c), errNotReady)

	st.MagicNumber = 3
	err := st.ready(c)
	assert.ErrorIs(t, err, errNotReady)
	assert.ErrorIs(t, err, errPoolSize)

	for _, cat := range c.Categories {
		require.NoError(t, st.setCategoryItems(c, cat.Slug, cat.Suggestions[:3]))
	}
	assert.NoError(t, st.ready(c))
}

func TestState_pools(t *testing.T) {
	c := testCatalog(t)
	st := newState(c)
	st.Categories["lifestyle"] = []string{"Yoga"}

	pools := st.pools(c)
	require.Len(t, pools, categoryCount)

	for i, cat := range c.Categories {
		assert.Equal(t, elimination.Category(cat.Slug), pools[i].Category)
	}
	assert.Equal(t, []string{"Yoga"}, pools[5].Items)
}

func TestState_applyResult(t *testing.T) {
	st := newState(testCatalog(t))
	st.Plan = "stale"

	st.applyResult(elimination.Result{Winners: map[elimination.Category]string{"lifestyle": "Yoga"}})

	assert.Equal(t, map[string]string{"lifestyle": "Yoga"}, st.SelectedWords)
	assert.Empty(t, st.Plan)

	st.Plan = "## Your AP Persona"
	st.applyResult(elimination.Result{Winners: map[elimination.Category]string{"lifestyle": "Yoga"}})
	assert.Equal(t, "## Your AP Persona", st.Plan)

	st.applyResult(elimination.Result{Winners: map[elimination.Category]string{"lifestyle": "Running"}})
	assert.Equal(t, map[string]string{"lifestyle": "Running"}, st.SelectedWords)
	assert.Empty(t, st.Plan)
}

func TestLoadState(t *testing.T) {
	c := testCatalog(t)

	t.Run("round trip", func(t *testing.T) {
		st := newState(c)
		require.NoError(t, st.setMoods(c, []string{"Chaos Mode"}))
		require.NoError(t, st.setCategoryItems(c, "career-growth", []string{"a", "b", "c"}))
		st.MagicNumber = 4
		st.SelectedWords = map[string]string{"career-growth": "c"}
		st.Plan = "## Your Persona"

		data, err := st.save()
		require.NoError(t, err)

		got, err := loadState(c, data)
		require.NoError(t, err)
		assert.Equal(t, st, got)
	})

	t.Run("partial document", func(t *testing.T) {
		got, err := loadState(c, []byte(`{"magicNumber":3,"categories":{"lifestyle":["a","b","c"]}}`))
		require.NoError(t, err)

		assert.Equal(t, 3, got.MagicNumber)
		assert.Len(t, got.Categories, categoryCount)
		assert.Equal(t, []string{}, got.Categories["career-growth"])
		assert.Equal(t, []string{}, got.Moods)
		assert.NotNil(t, got.SelectedWords)
	})

	t.Run("nulls", func(t *testing.T) {
		got, err := loadState(c, []byte(`{"moods":null,"categories":null,"selectedWords":null}`))
		require.NoError(t, err)
		assert.Len(t, got.Categories, categoryCount)
		assert.NotNil(t, got.Moods)
	})

	t.Run("unknown category", func(t *testing.T) {
		_, err := loadState(c, []byte(`{"categories":{"astrology":["a"]}}`))
		assert.ErrorIs(t, err, errUnknownCategory)
	})

	t.Run("not json", func(t *testing.T) {
		_, err := loadState(c, []byte(`{`))
		assert.Error(t, err)
	})
}

func TestState_clone(t *testing.T) {
	c := testCatalog(t)
	st := newState(c)
	st.Moods = []string{"Playful"}
	st.Categories["lifestyle"] = []string{"a", "b", "c"}
	st.SelectedWords = map[string]string{"lifestyle": "a"}

	cp := st.clone()
	cp.Moods[0] = "Serious"
	cp.Categories["lifestyle"][0] = "z"
	cp.SelectedWords["lifestyle"] = "z"

	assert.Equal(t, "Playful", st.Moods[0])
	assert.Equal(t, "a", st.Categories["lifestyle"][0])
	assert.Equal(t, "a", st.SelectedWords["lifestyle"])
}
