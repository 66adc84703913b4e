package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/goliatone/go-multiform/pkg/definition"
)

func (c *cli) lintCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "lint",
		Short: "Check form definitions for problems",
		RunE:  c.runLint,
	}
}

func (c *cli) runLint(cmd *cobra.Command, _ []string) error {
	catalog, err := newApp(c.cfg, c.logger).catalog(cmd.Context())
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	issues := definition.Lint(catalog)
	for _, issue := range issues {
		fmt.Fprintln(out, issue.String())
	}
	if len(issues) > 0 {
		return fmt.Errorf("%d issue(s) found", len(issues))
	}
	fmt.Fprintf(out, "ok: %d form(s)\n", catalog.Len())
	return nil
}
