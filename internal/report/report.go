// Package report renders sweep results for people and for scripts.
package report

import (
	"encoding/json"
	"fmt"
	"io"

	"marker-sweep/internal/sweep"
)

// Text writes one line per outcome in visit order followed by the summary.
func Text(w io.Writer, res *sweep.Result) error {
	for _, o := range res.Outcomes {
		if _, err := fmt.Fprintln(w, Line(o)); err != nil {
			return err
		}
	}
	_, err := fmt.Fprintln(w, Summary(res))
	return err
}

// Line renders a single outcome.
func Line(o sweep.Outcome) string {
	switch o.Status {
	case sweep.StatusRemoved:
		return "Removed: " + o.Path
	case sweep.StatusNotFound:
		return "File not found: " + o.Path
	case sweep.StatusWouldRemove:
		return "Would remove: " + o.Path
	default:
		return fmt.Sprintf("Error removing %s: %s", o.Path, o.Reason)
	}
}

// Summary renders the closing line. Glob runs report the removal total; list
// runs report removals against the number of listed paths.
func Summary(res *sweep.Result) string {
	n := res.Removed
	if res.DryRun {
		n = res.WouldRemove
	}

	s := fmt.Sprintf("Total files removed: %d", n)
	if res.Mode == sweep.ModeList {
		s = fmt.Sprintf("Removed %d out of %d files.", n, res.Total)
	}
	if res.DryRun {
		s += " (dry run)"
	}
	if res.Aborted {
		s += " (aborted)"
	}
	return s
}

// JSON writes the whole result as indented JSON.
func JSON(w io.Writer, res *sweep.Result) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(res)
}
