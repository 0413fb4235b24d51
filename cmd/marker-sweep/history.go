package main

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"marker-sweep/internal/database"
)

type historyFlags struct {
	recent int
	runs   int
	status string
	path   string
	stats  bool
	days   int
	prune  int
}

func newHistoryCommand(opts *options) *cobra.Command {
	hf := &historyFlags{}

	cmd := &cobra.Command{
		Use:   "history",
		Short: "Query the sweep history database",
		Example: `  marker-sweep history --db history.db --recent 10     # 10 most recent outcomes
  marker-sweep history --db history.db --runs 5        # 5 most recent runs
  marker-sweep history --db history.db --stats         # statistics for the last 30 days
  marker-sweep history --db history.db --status failed # only failed paths
  marker-sweep history --db history.db --path '/src/libs/%'
  marker-sweep history --db history.db --prune 90      # drop runs older than 90 days`,
		Args: usageArgs(cobra.NoArgs),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.loadConfig(cmd, nil)
			if err != nil {
				return err
			}
			if cfg.DatabasePath == "" {
				return fmt.Errorf("%w: history needs --db or database_path", errUsage)
			}

			db, err := database.NewHistoryDB(cfg.DatabasePath)
			if err != nil {
				return fmt.Errorf("open history %s: %w", cfg.DatabasePath, err)
			}
			defer db.Close()

			return hf.show(cmd.OutOrStdout(), db, opts.jsonOut)
		},
	}

	f := cmd.Flags()
	f.IntVar(&hf.recent, "recent", 0, "show N most recent outcomes")
	f.IntVar(&hf.runs, "runs", 0, "show N most recent runs")
	f.StringVar(&hf.status, "status", "", "filter outcomes by status (removed, not_found, failed, blocked, would_remove)")
	f.StringVar(&hf.path, "path", "", "filter outcomes by path pattern (SQL LIKE syntax)")
	f.BoolVar(&hf.stats, "stats", false, "show sweep statistics")
	f.IntVar(&hf.days, "days", 30, "number of days for statistics")
	f.IntVar(&hf.prune, "prune", 0, "delete runs older than N days and vacuum")

	return cmd
}

func (hf *historyFlags) show(w io.Writer, db *database.HistoryDB, jsonOutput bool) error {
	switch {
	case hf.prune > 0:
		n, err := db.DeleteOldRecords(hf.prune)
		if err != nil {
			return fmt.Errorf("prune history: %w", err)
		}
		if err := db.Vacuum(); err != nil {
			return fmt.Errorf("vacuum history: %w", err)
		}
		if jsonOutput {
			return writeJSON(w, map[string]int64{"deleted_runs": n})
		}
		fmt.Fprintf(w, "Deleted %d runs older than %d days\n", n, hf.prune)
		return nil

	case hf.stats:
		stats, err := db.GetSweepStats(hf.days)
		if err != nil {
			return fmt.Errorf("get statistics: %w", err)
		}
		if jsonOutput {
			return writeJSON(w, stats)
		}
		printStats(w, stats, hf.days)
		return nil

	case hf.runs > 0:
		runs, err := db.GetRecentRuns(hf.runs)
		if err != nil {
			return fmt.Errorf("get recent runs: %w", err)
		}
		if jsonOutput {
			return writeJSON(w, runs)
		}
		printRuns(w, runs)
		return nil

	case hf.recent > 0:
		records, err := db.GetRecentOutcomes(hf.recent)
		if err != nil {
			return fmt.Errorf("get recent outcomes: %w", err)
		}
		return printOrEncode(w, records, jsonOutput, "")

	case hf.status != "":
		records, err := db.GetOutcomesByStatus(hf.status)
		if err != nil {
			return fmt.Errorf("query by status: %w", err)
		}
		return printOrEncode(w, records, jsonOutput, fmt.Sprintf("Outcomes with status: %s", hf.status))

	case hf.path != "":
		records, err := db.GetOutcomesByPath(hf.path)
		if err != nil {
			return fmt.Errorf("query by path: %w", err)
		}
		return printOrEncode(w, records, jsonOutput, fmt.Sprintf("Outcomes matching path pattern: %s", hf.path))

	default:
		return fmt.Errorf("%w: pick one of --recent, --runs, --status, --path, --stats or --prune", errUsage)
	}
}

func printOrEncode(w io.Writer, records []database.OutcomeRecord, jsonOutput bool, header string) error {
	if jsonOutput {
		return writeJSON(w, records)
	}
	if header != "" {
		fmt.Fprintf(w, "%s\n\n", header)
	}
	printOutcomes(w, records)
	return nil
}

func writeJSON(w io.Writer, v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(w, string(data))
	return err
}

func printStats(w io.Writer, stats *database.SweepStats, days int) {
	fmt.Fprintf(w, "Sweep Statistics (Last %d days)\n", days)
	fmt.Fprintf(w, "Period: %s to %s\n\n", stats.StartDate.Format("2006-01-02"), stats.EndDate.Format("2006-01-02"))
	fmt.Fprintf(w, "Runs:       %d\n", stats.Runs)
	fmt.Fprintf(w, "Removed:    %d\n", stats.Removed)
	fmt.Fprintf(w, "Not found:  %d\n", stats.NotFound)
	fmt.Fprintf(w, "Errors:     %d\n\n", stats.Errors)

	printCounts(w, "By Mode:", stats.ByMode)
	printCounts(w, "By Status:", stats.ByStatus)
}

func printCounts(w io.Writer, title string, counts map[string]int) {
	if len(counts) == 0 {
		return
	}
	keys := make([]string, 0, len(counts))
	for k := range counts {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	fmt.Fprintln(w, title)
	for _, k := range keys {
		fmt.Fprintf(w, "  %-15s %d\n", k, counts[k])
	}
	fmt.Fprintln(w)
}

func printRuns(w io.Writer, runs []database.RunRecord) {
	if len(runs) == 0 {
		fmt.Fprintln(w, "No runs found")
		return
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(tw, "ID\tStarted\tMode\tDry\tTotal\tRemoved\tNotFound\tErrors\tRoot")
	_, _ = fmt.Fprintln(tw, "--\t-------\t----\t---\t-----\t-------\t--------\t------\t----")

	for _, r := range runs {
		removed := r.Removed
		if r.DryRun {
			removed = r.WouldRemove
		}
		mode := r.Mode
		if r.Aborted {
			mode += "!"
		}
		_, _ = fmt.Fprintf(tw, "%d\t%s\t%s\t%t\t%d\t%d\t%d\t%d\t%s\n",
			r.ID, r.StartedAt.Format("2006-01-02 15:04:05"), mode, r.DryRun,
			r.Total, removed, r.NotFound, r.Errors, r.Root)
	}
	_ = tw.Flush()
}

func printOutcomes(w io.Writer, records []database.OutcomeRecord) {
	if len(records) == 0 {
		fmt.Fprintln(w, "No records found")
		return
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(tw, "ID\tRun\tTimestamp\tStatus\tReason\tPath")
	_, _ = fmt.Fprintln(tw, "--\t---\t---------\t------\t------\t----")

	for _, r := range records {
		_, _ = fmt.Fprintf(tw, "%d\t%d\t%s\t%s\t%s\t%s\n",
			r.ID, r.RunID, r.Timestamp.Format("2006-01-02 15:04:05"), r.Status, r.Reason, r.Path)
	}
	_ = tw.Flush()
}
