package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/Seednode/mash/elimination"
	"github.com/Seednode/mash/plan"
)

type playOptions struct {
	magicNumber int
	modifier    string
	moods       []string
	plan        bool
	save        string
}

var (
	headingStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#FFEE58"))
	removedStyle = lipgloss.NewStyle().Faint(true).Strikethrough(true)
	winnerStyle  = lipgloss.NewStyle().Bold(true)
)

// demoState fills every category from the catalog's suggestions.
func demoState(catalog *Catalog) (State, error) {
	st := newState(catalog)

	for _, c := range catalog.Categories {
		if err := st.setCategoryItems(catalog, c.Slug, c.Suggestions[:min(len(c.Suggestions), maxPoolSize)]); err != nil {
			return State{}, fmt.Errorf("not enough suggestions in %q to play without a state file: %w", c.Slug, err)
		}
	}

	st.Moods = []string{catalog.Moods[0].Name}

	return st, nil
}

func readPlayState(catalog *Catalog, path string) (State, error) {
	if path == "" {
		return demoState(catalog)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return State{}, err
	}

	return loadState(catalog, data)
}

func renderTrace(w io.Writer, catalog *Catalog, st State, result elimination.Result) {
	fmt.Fprintln(w, headingStyle.Render(fmt.Sprintf("Counting by %d", st.MagicNumber)))

	for i, step := range result.Steps {
		fmt.Fprintf(w, "%3d. %-18s %s\n", i+1, catalog.Title(string(step.Category)), removedStyle.Render(step.Item))
	}

	if result.Truncated {
		fmt.Fprintf(w, "stopped after %d eliminations\n", len(result.Steps))
	}

	fmt.Fprintln(w)
	fmt.Fprintln(w, headingStyle.Render("Winners"))

	for _, c := range catalog.Categories {
		if item, ok := result.Winners[elimination.Category(c.Slug)]; ok {
			fmt.Fprintf(w, "%s %-18s %s\n", c.Icon, c.Title, winnerStyle.Render(item))
		}
	}
}

func renderPlan(w io.Writer, text string) error {
	r, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(80),
	)
	if err != nil {
		return err
	}

	out, err := r.Render(text)
	if err != nil {
		return err
	}

	_, err = io.WriteString(w, out)

	return err
}

func play(ctx context.Context, cfg *Config, opts *playOptions, path string, w io.Writer, gen plan.Generator) error {
	catalog, err := loadCatalog(cfg.catalog)
	if err != nil {
		return err
	}

	st, err := readPlayState(catalog, path)
	if err != nil {
		return err
	}

	if len(opts.moods) > 0 {
		if err := st.setMoods(catalog, opts.moods); err != nil {
			return err
		}
	}

	switch {
	case opts.magicNumber != 0:
		if err := st.setMagicNumber(opts.magicNumber); err != nil {
			return err
		}
	case st.MagicNumber == 0:
		n, err := spin()
		if err != nil {
			return err
		}
		st.MagicNumber = n
	}

	if err := st.ready(catalog); err != nil {
		return err
	}

	result := elimination.Run(st.pools(catalog), st.MagicNumber)
	st.applyResult(result)

	if result.Truncated || result.Stalls > 0 {
		warnf(cfg, "ELIMINATION: truncated=%t stalls=%d with step size %d", result.Truncated, result.Stalls, st.MagicNumber)
	}

	renderTrace(w, catalog, st, result)

	if opts.plan {
		ctx, cancel := context.WithTimeout(ctx, cfg.llmTimeout)
		defer cancel()

		text, err := plan.NewPlanner(gen, plan.WithMaxOutputTokens(cfg.maxOutputTokens)).Plan(ctx, plan.Request{
			Categories: catalog.titles(result.Winners),
			Mood:       st.Moods,
			Modifier:   opts.modifier,
		})
		if err != nil {
			return errors.New(plan.Message(err))
		}

		st.Plan = text

		fmt.Fprintln(w)
		if err := renderPlan(w, text); err != nil {
			return err
		}
	}

	if opts.save != "" {
		data, err := st.save()
		if err != nil {
			return err
		}

		if err := os.WriteFile(opts.save, data, 0o644); err != nil {
			return err
		}

		logf(cfg, "PLAY: Saved state to %s", opts.save)
	}

	return nil
}

func newPlayCmd(cfg *Config, v *viper.Viper) *cobra.Command {
	opts := &playOptions{}

	cmd := &cobra.Command{
		Use:   "play [state.json]",
		Short: "Count out a saved quiz (or the built-in suggestions) in the terminal.",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := cfg.validateLLM(); err != nil {
				return err
			}

			path := ""
			if len(args) == 1 {
				path = args[0]
			}

			return play(cmd.Context(), cfg, opts, path, cmd.OutOrStdout(), cfg.newGenerator())
		},
	}

	fs := cmd.Flags()
	fs.IntVarP(&opts.magicNumber, "magic-number", "n", 0, "step size to count by, spun at random when unset (env: MASH_MAGIC_NUMBER)")
	fs.StringVar(&opts.modifier, "modifier", "", "adjust the plan, e.g. \"more ambitious\" (env: MASH_MODIFIER)")
	fs.StringSliceVar(&opts.moods, "mood", nil, "mood to write the plan in, repeatable (env: MASH_MOOD)")
	fs.BoolVar(&opts.plan, "plan", false, "write a plan for the winners (env: MASH_PLAN)")
	fs.StringVar(&opts.save, "save", "", "write the resulting state to this file (env: MASH_SAVE)")

	bindEnv(v, fs)

	return cmd
}
