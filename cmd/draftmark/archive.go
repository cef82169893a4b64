package main

import (
	"fmt"
	"io"
	"strconv"
	"time"

	"draftmark/internal/review"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

var archiveCmd = &cobra.Command{
	Use:   "archive",
	Short: "Archive and inspect closed review rounds",
}

func parseRevision(s string) (int, error) {
	rev, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("invalid revision %q: %w", s, err)
	}
	return rev, nil
}

var archiveCloseCmd = &cobra.Command{
	Use:   "close VERSION REVISION",
	Short: "Snapshot the markups and feedback of a version as a revision",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		rev, err := parseRevision(args[1])
		if err != nil {
			return err
		}
		notes, _ := cmd.Flags().GetStringArray("note")
		by, _ := cmd.Flags().GetString("by")
		if len(notes) > 0 && by == "" {
			return fmt.Errorf("--by is required with --note")
		}

		general := make([]review.GeneralFeedback, 0, len(notes))
		now := time.Now().UTC()
		for _, n := range notes {
			general = append(general, review.GeneralFeedback{
				ID:        uuid.New().String(),
				AuthorID:  by,
				Content:   n,
				CreatedAt: now,
			})
		}

		a, err := newApp(cmd, "archive close")
		if err != nil {
			return err
		}
		defer a.Close()

		snap, err := a.CloseRound(cmd.Context(), args[0], rev, general)
		if err != nil {
			return err
		}
		return render(cmd, snap, snapshotTable(snap))
	},
}

var archiveGetCmd = &cobra.Command{
	Use:   "get VERSION REVISION",
	Short: "Show an archived round",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		rev, err := parseRevision(args[1])
		if err != nil {
			return err
		}

		a, err := newApp(cmd, "archive get")
		if err != nil {
			return err
		}
		defer a.Close()

		snap, err := a.GetSnapshot(cmd.Context(), args[0], rev)
		if err != nil {
			return err
		}
		return render(cmd, snap, func(w io.Writer) {
			snapshotTable(snap)(w)
			fmt.Fprintln(w)
			markupTable(ptrs(snap.Markups)...)(w)
			if len(snap.Feedbacks) > 0 {
				fmt.Fprintln(w)
				feedbackTable(ptrs(snap.Feedbacks)...)(w)
			}
			for _, g := range snap.GeneralFeedbacks {
				fmt.Fprintf(w, "\nGeneral\t%s\t%s\n", g.AuthorID, oneLine(g.Content))
			}
		})
	},
}

var archiveListCmd = &cobra.Command{
	Use:   "list VERSION",
	Short: "List archived rounds of a version",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd, "archive list")
		if err != nil {
			return err
		}
		defer a.Close()

		snaps, err := a.ListSnapshots(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		if len(snaps) == 0 && !wantJSON(cmd) {
			fmt.Fprintln(cmd.OutOrStdout(), "No archived rounds.")
			return nil
		}
		return render(cmd, snaps, snapshotTable(snaps...))
	},
}

func ptrs[T any](items []T) []*T {
	out := make([]*T, len(items))
	for i := range items {
		out[i] = &items[i]
	}
	return out
}

func init() {
	archiveCmd.AddCommand(archiveCloseCmd)
	archiveCloseCmd.Flags().StringArray("note", nil, "General feedback for the round (repeatable)")
	archiveCloseCmd.Flags().String("by", "", "Author id of the general feedback")

	archiveCmd.AddCommand(archiveGetCmd)
	archiveCmd.AddCommand(archiveListCmd)
}
