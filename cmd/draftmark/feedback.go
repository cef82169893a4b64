package main

import (
	"fmt"

	"draftmark/internal/review"

	"github.com/spf13/cobra"
)

var feedbackCmd = &cobra.Command{
	Use:   "feedback",
	Short: "Manage structured feedback attached to markups",
}

var feedbackAddCmd = &cobra.Command{
	Use:   "add MARKUP",
	Short: "Attach feedback to a markup",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		flags := cmd.Flags()
		version, _ := flags.GetString("version")
		project, _ := flags.GetString("project")
		title, _ := flags.GetString("title")
		desc, _ := flags.GetString("desc")
		category, _ := flags.GetString("category")
		priority, _ := flags.GetString("priority")
		by, _ := flags.GetString("by")

		a, err := newApp(cmd, "feedback add")
		if err != nil {
			return err
		}
		defer a.Close()

		f, err := a.AddFeedback(cmd.Context(), review.CreateFeedbackInput{
			MarkupID:    args[0],
			VersionID:   version,
			ProjectID:   project,
			Title:       title,
			Description: desc,
			Category:    review.FeedbackCategory(category),
			Priority:    review.Priority(priority),
			CreatedBy:   by,
		})
		if err != nil {
			return err
		}
		return render(cmd, f, feedbackTable(f))
	},
}

var feedbackSetCmd = &cobra.Command{
	Use:   "set ID",
	Short: "Change feedback fields or status",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var patch review.FeedbackPatch
		flags := cmd.Flags()
		if flags.Changed("title") {
			v, _ := flags.GetString("title")
			patch.Title = &v
		}
		if flags.Changed("desc") {
			v, _ := flags.GetString("desc")
			patch.Description = &v
		}
		if flags.Changed("category") {
			v, _ := flags.GetString("category")
			c := review.FeedbackCategory(v)
			patch.Category = &c
		}
		if flags.Changed("priority") {
			v, _ := flags.GetString("priority")
			p := review.Priority(v)
			patch.Priority = &p
		}
		if flags.Changed("status") {
			v, _ := flags.GetString("status")
			s := review.FeedbackStatus(v)
			patch.Status = &s
		}

		a, err := newApp(cmd, "feedback set")
		if err != nil {
			return err
		}
		defer a.Close()

		f, err := a.UpdateFeedback(cmd.Context(), args[0], patch)
		if err != nil {
			return err
		}
		return render(cmd, f, feedbackTable(f))
	},
}

var feedbackRmCmd = &cobra.Command{
	Use:   "rm ID",
	Short: "Delete feedback and unlink its markup",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd, "feedback rm")
		if err != nil {
			return err
		}
		defer a.Close()

		if err := a.DeleteFeedback(cmd.Context(), args[0]); err != nil {
			return err
		}
		fmt.Fprintf(cmd.ErrOrStderr(), "Deleted feedback %s\n", args[0])
		return nil
	},
}

var feedbackListCmd = &cobra.Command{
	Use:   "list VERSION",
	Short: "List the feedback of a version, oldest first",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd, "feedback list")
		if err != nil {
			return err
		}
		defer a.Close()

		feedbacks, err := a.ListFeedback(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		if len(feedbacks) == 0 && !wantJSON(cmd) {
			fmt.Fprintln(cmd.OutOrStdout(), "No feedback.")
			return nil
		}
		return render(cmd, feedbacks, feedbackTable(feedbacks...))
	},
}

func init() {
	feedbackCmd.AddCommand(feedbackAddCmd)
	addFlags := feedbackAddCmd.Flags()
	addFlags.String("version", "", "Version the markup belongs to")
	addFlags.String("project", "", "Project id")
	addFlags.String("title", "", "Short title")
	addFlags.String("desc", "", "Description")
	addFlags.String("category", string(review.CategoryGeneral), "color, typography, layout, content, size, positioning, style or general")
	addFlags.String("priority", string(review.PriorityMedium), "low, medium or high")
	addFlags.String("by", "", "Id of the reviewer")
	for _, name := range []string{"version", "project", "title", "desc", "by"} {
		feedbackAddCmd.MarkFlagRequired(name)
	}

	feedbackCmd.AddCommand(feedbackSetCmd)
	setFlags := feedbackSetCmd.Flags()
	setFlags.String("title", "", "New title")
	setFlags.String("desc", "", "New description")
	setFlags.String("category", "", "New category")
	setFlags.String("priority", "", "New priority")
	setFlags.String("status", "", "pending, in_progress, resolved or rejected")

	feedbackCmd.AddCommand(feedbackRmCmd)
	feedbackCmd.AddCommand(feedbackListCmd)
}
