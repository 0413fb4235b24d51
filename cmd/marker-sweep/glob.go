package main

import (
	"github.com/spf13/cobra"

	"marker-sweep/internal/config"
	"marker-sweep/internal/runner"
)

func newGlobCommand(opts *options) *cobra.Command {
	var root string

	cmd := &cobra.Command{
		Use:   "glob [root]",
		Short: "Find and remove every marker file under a directory",
		Long: `Search root recursively for files whose name equals the marker and remove
each one. Symlinked directories are not followed. The root may be given as an
argument, with --root, or as glob.root in the config file.`,
		Example: `  marker-sweep glob ./libs
  marker-sweep glob --marker .eslintcache --dry-run ./packages`,
		Args: usageArgs(cobra.MaximumNArgs(1)),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 1 {
				root = args[0]
			}

			cfg, err := opts.loadConfig(cmd, func(c *config.Config) {
				if root != "" {
					c.Glob.Root = root
				}
			})
			if err != nil {
				return err
			}
			return opts.runSweep(cmd, cfg, runner.RunGlob)
		},
	}

	cmd.Flags().StringVar(&root, "root", "", "directory to search")

	return cmd
}
