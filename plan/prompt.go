package plan

import (
	"fmt"
	"sort"
	"strings"
)

const systemPrompt = "You are an enthusiastic life coach who creates actionable, inspiring plans with a playful tone."

const outline = `Create a comprehensive, actionable 6-month plan that incorporates ALL of these selections. Structure your response with these sections:

## Your AP Persona
(Create a creative 2-3 word label for their overachiever persona based on their selections)

## The Big Picture
(A 2-3 sentence summary connecting all their choices into a cohesive life vision)

## Month 1-2: Foundation
(Concrete steps to start each area)

## Month 3-4: Momentum
(How to build consistency and deepen engagement)

## Month 5-6: Integration
(How to make this sustainable long-term)

## Weekly Routine Suggestions
(A sample weekly schedule integrating all activities)

## Daily Rituals
(3-5 small daily practices that support their goals)

## Community & Resources
(Suggestions for finding local groups, online communities, or resources for each category. Be specific but acknowledge these are examples to inspire their own research)

Make it inspiring, practical, and fun. Match the tone to their mood selections.`

// BuildPrompt renders req into a prompt. Categories are listed in key order
// so identical requests always produce identical prompts.
func BuildPrompt(req Request, maxTokens int) Prompt {
	keys := make([]string, 0, len(req.Categories))
	for k := range req.Categories {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder

	b.WriteString("You are a life coach creating a personalized 6-month life redesign plan. ")
	b.WriteString("The user selected these life goals through a playful MASH-style game:\n\n")

	for _, k := range keys {
		fmt.Fprintf(&b, "- %s: %s\n", k, req.Categories[k])
	}

	fmt.Fprintf(&b, "\nTheir mood/vibe is: %s\n\n", strings.Join(req.Mood, ", "))

	if m := strings.TrimSpace(req.Modifier); m != "" {
		fmt.Fprintf(&b, "Make the plan %s.\n\n", m)
	}

	b.WriteString(outline)

	if maxTokens <= 0 {
		maxTokens = DefaultMaxOutputTokens
	}

	return Prompt{
		System:          systemPrompt,
		User:            b.String(),
		MaxOutputTokens: maxTokens,
	}
}
