/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

// Package plan turns the winners of an elimination round into a narrative
// life plan by way of a text-generation backend.
package plan

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
)

const (
	DefaultMaxOutputTokens = 5000

	fallbackPlan = "Unable to generate plan"
)

var (
	ErrValidation            = errors.New("missing required fields")
	ErrUpstreamConfiguration = errors.New("plan generator not configured")
	ErrUpstreamRequest       = errors.New("plan generation failed")
)

// ConfigError reports a generator that cannot run without credentials.
type ConfigError struct {
	Provider string
	EnvVar   string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("%s API key not configured. Please set %s.", e.Provider, e.EnvVar)
}

func (e *ConfigError) Is(target error) bool {
	return target == ErrUpstreamConfiguration
}

// StatusCode maps a Plan error onto the HTTP status reported to callers.
func StatusCode(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, ErrValidation):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// Message is the user-facing text for a Plan error.
func Message(err error) string {
	var cfgErr *ConfigError

	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrValidation):
		return "Missing required fields"
	case errors.As(err, &cfgErr):
		return cfgErr.Error()
	case errors.Is(err, ErrUpstreamConfiguration):
		return "Plan generator not configured. Please check the server configuration."
	default:
		return "Failed to generate plan. Please try again."
	}
}

// Request mirrors the JSON body accepted by the plan endpoint. Categories
// maps a category title to the item that won it.
type Request struct {
	Categories map[string]string `json:"categories"`
	Mood       []string          `json:"mood"`
	Modifier   string            `json:"modifier,omitempty"`
}

// Validate rejects requests missing categories or moods. Present but empty
// values are allowed.
func (r Request) Validate() error {
	if r.Categories == nil || r.Mood == nil {
		return ErrValidation
	}

	return nil
}

type Prompt struct {
	System          string
	User            string
	MaxOutputTokens int
}

// Generator produces free text from a prompt. Implementations report
// missing credentials as ErrUpstreamConfiguration.
type Generator interface {
	Generate(ctx context.Context, p Prompt) (string, error)
}

type Planner struct {
	gen       Generator
	maxTokens int
}

type Option func(*Planner)

func WithMaxOutputTokens(n int) Option {
	return func(p *Planner) {
		if n > 0 {
			p.maxTokens = n
		}
	}
}

func NewPlanner(gen Generator, opts ...Option) *Planner {
	p := &Planner{
		gen:       gen,
		maxTokens: DefaultMaxOutputTokens,
	}

	for _, opt := range opts {
		opt(p)
	}

	return p
}

// Plan validates req, builds its prompt and asks the generator for a plan.
// Generator failures other than missing configuration are wrapped in
// ErrUpstreamRequest.
func (p *Planner) Plan(ctx context.Context, req Request) (string, error) {
	if err := req.Validate(); err != nil {
		return "", err
	}

	text, err := p.gen.Generate(ctx, BuildPrompt(req, p.maxTokens))
	switch {
	case err == nil:
	case errors.Is(err, ErrUpstreamConfiguration), errors.Is(err, ErrUpstreamRequest):
		return "", err
	default:
		return "", fmt.Errorf("%w: %w", ErrUpstreamRequest, err)
	}

	if strings.TrimSpace(text) == "" {
		return fallbackPlan, nil
	}

	return text, nil
}
