package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/goliatone/go-multiform/pkg/prompt"
)

func (c *cli) fillCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "fill",
		Short: "Fill the forms interactively and print the saved records",
		RunE:  c.runFill,
	}
	cmd.Flags().Int("max-attempts", 3, "submissions before giving up on invalid answers")
	return cmd
}

func (c *cli) runFill(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	a := newApp(c.cfg, c.logger)
	defer func() {
		if err := a.Close(); err != nil {
			c.logger.Warn("close", zap.Error(err))
		}
	}()

	view, _, err := a.view(ctx, false)
	if err != nil {
		return err
	}

	opts := []prompt.Option{
		prompt.WithLogger(c.logger),
		prompt.WithMaxAttempts(c.cfg.MaxAttempts),
	}
	if c.driver != nil {
		opts = append(opts, prompt.WithDriver(c.driver))
	} else {
		opts = append(opts, prompt.WithDriver(&prompt.SurveyDriver{Out: cmd.OutOrStdout()}))
	}
	filler, err := prompt.New(view, opts...)
	if err != nil {
		return err
	}
	result, err := filler.Fill(ctx)
	if err != nil {
		return err
	}

	enc := yaml.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent(2)
	if err := enc.Encode(map[string]any{
		"redirect": result.Redirect,
		"saved":    result.Saved,
	}); err != nil {
		return fmt.Errorf("print result: %w", err)
	}
	return enc.Close()
}
