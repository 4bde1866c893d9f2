// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/invowk/scriptc/internal/cache"
	"github.com/invowk/scriptc/internal/issue"
)

func newCacheCommand(app *App) *cobra.Command {
	cacheCmd := &cobra.Command{
		Use:   "cache",
		Short: "Manage the artifact cache used by 'scriptc exec'",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cmd.Help()
		},
	}

	cacheCmd.AddCommand(&cobra.Command{
		Use:   "dir",
		Short: "Print the artifact cache directory",
		Args:  cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			dir, err := app.cacheDir()
			if err != nil {
				return withIssue(err, "resolve cache directory", "", issue.CacheUnavailableId)
			}
			fmt.Fprintln(app.stdout, dir)
			return nil
		},
	})

	cacheCmd.AddCommand(&cobra.Command{
		Use:   "prune",
		Short: "Remove every cached artifact",
		Args:  cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			dir, err := app.cacheDir()
			if err != nil {
				return withIssue(err, "resolve cache directory", "", issue.CacheUnavailableId)
			}
			c, err := cache.Open(dir)
			if err != nil {
				return withIssue(err, "open cache", dir, issue.CacheUnavailableId)
			}
			n, err := c.Prune()
			if err != nil {
				return withIssue(err, "prune cache", dir, issue.CacheUnavailableId)
			}
			fmt.Fprintf(app.stdout, "%s Removed %d cached artifact(s) from %s\n", SuccessStyle.Render("✓"), n, dir)
			return nil
		},
	})

	return cacheCmd
}
