package main

import (
	"github.com/spf13/cobra"

	"marker-sweep/internal/config"
	"marker-sweep/internal/runner"
)

func newListCommand(opts *options) *cobra.Command {
	var (
		baseDir   string
		pathsFile string
	)

	cmd := &cobra.Command{
		Use:   "list [path...]",
		Short: "Remove an explicit list of marker files",
		Long: `Remove each listed path that exists, in order. Missing paths are reported
and skipped. Paths come from the arguments, or from list.paths and
list.paths_file in the config file; relative paths resolve against --base-dir.`,
		Example: `  marker-sweep list --base-dir ~/src/monorepo libs/common/.npmignore
  marker-sweep list --config marker-sweep.yaml --policy fail-fast`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.loadConfig(cmd, func(c *config.Config) {
				if len(args) > 0 {
					c.List.Paths = args
					c.List.PathsFile = ""
				}
				if baseDir != "" {
					c.List.BaseDir = baseDir
				}
				if pathsFile != "" {
					c.List.PathsFile = pathsFile
				}
			})
			if err != nil {
				return err
			}
			return opts.runSweep(cmd, cfg, runner.RunList)
		},
	}

	cmd.Flags().StringVar(&baseDir, "base-dir", "", "directory relative paths resolve against (default: working directory)")
	cmd.Flags().StringVar(&pathsFile, "paths-file", "", "newline-delimited file of paths; '#' starts a comment")

	return cmd
}
