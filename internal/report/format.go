package report

import (
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"

	"gopkg.in/yaml.v3"

	"lambda-janitor/internal/janitor"
)

// WriteJSON writes v as indented JSON.
func WriteJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// WriteYAML writes v as YAML using the same field names as its JSON form.
func WriteYAML(w io.Writer, v any) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return err
	}
	var doc any
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return fmt.Errorf("convert json to yaml: %w", err)
	}
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(doc); err != nil {
		return err
	}
	return enc.Close()
}

// WriteSummaryText writes a human readable run summary.
func WriteSummaryText(w io.Writer, s janitor.Summary) error {
	mode := "live"
	if s.DryRun {
		mode = "dry run"
	}
	fmt.Fprintf(w, "run %s (%s) as of %s\n", s.RunID, mode, s.AsOf.UTC().Format("2006-01-02 15:04:05 UTC"))
	fmt.Fprintf(w, "functions: %d scanned, %d failed\n", s.FunctionsScanned, s.FunctionsFailed)
	fmt.Fprintf(w, "versions: %d scanned, %d kept, %d warned, %d deleted, %d would delete, %d already gone, %d failed\n",
		s.VersionsScanned, s.Kept, s.Warned, s.Deleted, s.WouldDelete, s.AlreadyGone, s.DeleteFailed)
	switch {
	case s.NotificationSent:
		fmt.Fprintln(w, "notification: sent")
	case s.NotificationFailed:
		fmt.Fprintln(w, "notification: failed")
	default:
		fmt.Fprintln(w, "notification: not sent")
	}
	if s.Error != "" {
		fmt.Fprintf(w, "error: %s\n", s.Error)
	}
	if len(s.Outcomes) == 0 {
		return nil
	}

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "\nFUNCTION\tVERSION\tACTION\tSTATUS\tAGE\tERROR")
	for _, o := range s.Outcomes {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\n", o.FunctionName, o.Version, o.Action, o.Status, age(o.AgeDays), o.Error)
	}
	return tw.Flush()
}

// WritePlanText writes the classification of every version in scope.
func WritePlanText(w io.Writer, plans []janitor.FunctionPlan) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "FUNCTION\tVERSION\tACTION\tAGE\tLAST USED\tDELETION")
	for _, p := range plans {
		if p.Error != "" {
			fmt.Fprintf(tw, "%s\t-\tERROR\t-\t-\t%s\n", p.FunctionName, p.Error)
			continue
		}
		for _, c := range p.Classifications {
			lastUsed := "never"
			if c.Record.LastUsedAt != nil {
				lastUsed = c.Record.LastUsedAt.UTC().Format("2006-01-02")
			}
			deletion := "-"
			if !c.ScheduledDeletion.IsZero() {
				deletion = c.ScheduledDeletion.UTC().Format("2006-01-02")
			}
			action := c.Action.String()
			if c.Protected {
				action += " (protected)"
			}
			fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\n", c.Record.FunctionName, c.Record.Version, action, age(c.AgeDays), lastUsed, deletion)
		}
	}
	return tw.Flush()
}

func age(days int) string {
	if days < 0 {
		return "-"
	}
	return fmt.Sprintf("%dd", days)
}
