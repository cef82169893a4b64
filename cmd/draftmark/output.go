package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"draftmark/internal/app"
	"draftmark/internal/review"
)

// table writes a text rendering of a result.
type table func(w io.Writer)

// wantJSON reports whether output should be JSON: when --json is set or
// stdout is not a terminal.
func wantJSON(cmd *cobra.Command) bool {
	if jsonOutput {
		return true
	}
	f, ok := cmd.OutOrStdout().(*os.File)
	return !ok || !term.IsTerminal(int(f.Fd()))
}

// render prints v as indented JSON or through t as aligned columns.
func render(cmd *cobra.Command, v any, t table) error {
	out := cmd.OutOrStdout()
	if wantJSON(cmd) {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	}
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	t(tw)
	return tw.Flush()
}

func formatTime(t time.Time) string {
	return t.Local().Format("2006-01-02 15:04:05")
}

func markupTable(markups ...*review.Markup) table {
	return func(w io.Writer) {
		fmt.Fprintln(w, "#\tID\tTYPE\tX\tY\tCOLOR\tSIZE\tFEEDBACK\tCOMMENTS")
		for _, m := range markups {
			comments := fmt.Sprint(m.CommentCount)
			if m.HasUnresolvedComments {
				comments += " (open)"
			}
			feedback := m.FeedbackID
			if feedback == "" {
				feedback = "-"
			}
			fmt.Fprintf(w, "%d\t%s\t%s\t%.2f\t%.2f\t%s\t%g\t%s\t%s\n",
				m.SequenceNumber, m.ID, m.Type, m.X, m.Y, m.Color, m.Size, feedback, comments)
		}
	}
}

func feedbackTable(feedbacks ...*review.Feedback) table {
	return func(w io.Writer) {
		fmt.Fprintln(w, "ID\tMARKUP\tSTATUS\tPRIORITY\tCATEGORY\tTITLE")
		for _, f := range feedbacks {
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n", f.ID, f.MarkupID, f.Status, f.Priority, f.Category, f.Title)
		}
	}
}

func commentRow(w io.Writer, c *review.Comment, indent string) {
	state := "open"
	if c.IsResolved {
		state = "resolved by " + c.ResolvedBy
	}
	fmt.Fprintf(w, "%s%s\t%s (%s)\t%s\t%s\t%s\n",
		indent, c.ID, c.AuthorName, c.AuthorRole, formatTime(c.CreatedAt), state, oneLine(c.Content))
}

func threadTable(threads []*review.Thread) table {
	return func(w io.Writer) {
		fmt.Fprintln(w, "ID\tAUTHOR\tCREATED\tSTATE\tTEXT")
		for _, th := range threads {
			commentRow(w, th.Comment, "")
			for _, r := range th.Replies {
				commentRow(w, r, "  ")
			}
		}
	}
}

func statsTable(r *app.StatsReport) table {
	return func(w io.Writer) {
		m, c := r.Markups, r.Comments
		fmt.Fprintf(w, "Markups\t%d\n", m.TotalMarkups)
		fmt.Fprintf(w, "Feedback\t%d\tpending %d\tin progress %d\tresolved %d\trejected %d\n",
			m.TotalFeedbacks, m.Pending, m.InProgress, m.Resolved, m.Rejected)
		fmt.Fprintf(w, "Priority\t\tlow %d\tmedium %d\thigh %d\n", m.Priority.Low, m.Priority.Medium, m.Priority.High)
		fmt.Fprintf(w, "Comments\t%d\tunresolved %d\tmarkups with open threads %d\n",
			c.TotalComments, c.UnresolvedComments, c.MarkupsWithUnresolved)
		if !r.Verified {
			return
		}
		if len(r.Mismatches) == 0 {
			fmt.Fprintln(w, "Rollups\tok")
			return
		}
		for _, mm := range r.Mismatches {
			fmt.Fprintf(w, "Stale rollup\t#%d %s\tcached %d/%t\tactual %d/%t\n", mm.SequenceNumber, mm.MarkupID,
				mm.Cached.CommentCount, mm.Cached.HasUnresolved, mm.Actual.CommentCount, mm.Actual.HasUnresolved)
		}
	}
}

func snapshotTable(snaps ...*review.Snapshot) table {
	return func(w io.Writer) {
		fmt.Fprintln(w, "VERSION\tREVISION\tARCHIVED\tMARKUPS\tFEEDBACK\tGENERAL")
		for _, s := range snaps {
			fmt.Fprintf(w, "%s\t%d\t%s\t%d\t%d\t%d\n", s.VersionID, s.RevisionNumber, formatTime(s.ArchivedAt),
				len(s.Markups), len(s.Feedbacks), len(s.GeneralFeedbacks))
		}
	}
}

func historyTable(ops []*review.Operation) table {
	return func(w io.Writer) {
		for _, op := range ops {
			duration := ""
			if op.FinishedAt != nil {
				duration = op.FinishedAt.Sub(op.StartedAt).Truncate(time.Millisecond).String()
			}
			fmt.Fprintf(w, "#%d\t%s\t%s\t%s\t%s\n", op.ID, op.Operation, formatTime(op.StartedAt), op.Status, duration)
		}
	}
}

func oneLine(s string) string {
	s = strings.ReplaceAll(s, "\n", " ")
	if len(s) > 60 {
		return s[:57] + "..."
	}
	return s
}
