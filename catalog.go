/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package main

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/Seednode/mash/elimination"
)

const categoryCount = 6

//go:embed catalog.yaml
var defaultCatalog []byte

type CategoryInfo struct {
	Slug        string   `yaml:"slug" json:"slug"`
	Title       string   `yaml:"title" json:"title"`
	Description string   `yaml:"description" json:"description"`
	Icon        string   `yaml:"icon" json:"icon"`
	Suggestions []string `yaml:"suggestions" json:"suggestions"`
}

type Mood struct {
	Name        string `yaml:"name" json:"name"`
	Emoji       string `yaml:"emoji" json:"emoji"`
	Description string `yaml:"description" json:"description"`
}

// Catalog is the fixed set of categories and moods a quiz is played with.
type Catalog struct {
	Categories []CategoryInfo `yaml:"categories" json:"categories"`
	Moods      []Mood         `yaml:"moods" json:"moods"`
}

func parseCatalog(data []byte) (*Catalog, error) {
	c := &Catalog{}

	if err := yaml.Unmarshal(data, c); err != nil {
		return nil, fmt.Errorf("invalid catalog: %w", err)
	}

	if len(c.Categories) != categoryCount {
		return nil, fmt.Errorf("invalid catalog: expected %d categories, found %d", categoryCount, len(c.Categories))
	}

	seen := make(map[string]bool, len(c.Categories))
	for _, cat := range c.Categories {
		if cat.Slug == "" || cat.Title == "" {
			return nil, errors.New("invalid catalog: every category needs a slug and a title")
		}
		if seen[cat.Slug] {
			return nil, fmt.Errorf("invalid catalog: duplicate category %q", cat.Slug)
		}
		seen[cat.Slug] = true
	}

	if len(c.Moods) == 0 {
		return nil, errors.New("invalid catalog: no moods defined")
	}

	return c, nil
}

// loadCatalog reads path, or the embedded catalog when path is empty.
func loadCatalog(path string) (*Catalog, error) {
	if path == "" {
		return parseCatalog(defaultCatalog)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	return parseCatalog(data)
}

func (c *Catalog) Category(slug string) (CategoryInfo, bool) {
	for _, cat := range c.Categories {
		if cat.Slug == slug {
			return cat, true
		}
	}

	return CategoryInfo{}, false
}

// Title returns the display title for slug, or slug itself if unknown.
func (c *Catalog) Title(slug string) string {
	if cat, ok := c.Category(slug); ok {
		return cat.Title
	}

	return slug
}

func (c *Catalog) ValidMood(name string) bool {
	for _, m := range c.Moods {
		if m.Name == name {
			return true
		}
	}

	return false
}

// Suggest returns the first suggestion for slug not already in have.
func (c *Catalog) Suggest(slug string, have []string) (string, bool) {
	cat, ok := c.Category(slug)
	if !ok {
		return "", false
	}

	taken := make(map[string]bool, len(have))
	for _, h := range have {
		taken[strings.ToLower(strings.TrimSpace(h))] = true
	}

	for _, s := range cat.Suggestions {
		if !taken[strings.ToLower(s)] {
			return s, true
		}
	}

	return "", false
}

// titles rewrites a winners map keyed by slug into one keyed by title.
func (c *Catalog) titles(winners map[elimination.Category]string) map[string]string {
	out := make(map[string]string, len(winners))
	for slug, item := range winners {
		out[c.Title(string(slug))] = item
	}

	return out
}
