package main

import (
	"fmt"

	"draftmark/internal/review"

	"github.com/spf13/cobra"
)

var commentCmd = &cobra.Command{
	Use:   "comment",
	Short: "Manage comment threads on markups and checklist items",
}

// subjectFromFlags builds the comment subject from the --kind flag.
func subjectFromFlags(cmd *cobra.Command, id string) (review.Subject, error) {
	kind, _ := cmd.Flags().GetString("kind")
	switch kind {
	case "markup":
		return review.MarkupSubject(id), nil
	case "checklist":
		return review.ChecklistSubject(id), nil
	default:
		return review.Subject{}, fmt.Errorf("unknown subject kind %q (want markup or checklist)", kind)
	}
}

var commentAddCmd = &cobra.Command{
	Use:   "add SUBJECT",
	Short: "Add a comment or, with --parent, a reply",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		subject, err := subjectFromFlags(cmd, args[0])
		if err != nil {
			return err
		}
		flags := cmd.Flags()
		authorID, _ := flags.GetString("author-id")
		authorName, _ := flags.GetString("author-name")
		role, _ := flags.GetString("role")
		text, _ := flags.GetString("text")
		parent, _ := flags.GetString("parent")

		a, err := newApp(cmd, "comment add")
		if err != nil {
			return err
		}
		defer a.Close()

		c, err := a.AddComment(cmd.Context(), subject, review.AddCommentInput{
			AuthorID:   authorID,
			AuthorName: authorName,
			AuthorRole: review.AuthorRole(role),
			Content:    text,
			ParentID:   parent,
		})
		if err != nil {
			return err
		}
		return render(cmd, c, threadTable([]*review.Thread{{Comment: c}}))
	},
}

var commentRmCmd = &cobra.Command{
	Use:   "rm SUBJECT COMMENT",
	Short: "Delete a comment and its replies",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		subject, err := subjectFromFlags(cmd, args[0])
		if err != nil {
			return err
		}

		a, err := newApp(cmd, "comment rm")
		if err != nil {
			return err
		}
		defer a.Close()

		if err := a.DeleteComment(cmd.Context(), subject, args[1]); err != nil {
			return err
		}
		fmt.Fprintf(cmd.ErrOrStderr(), "Deleted comment %s\n", args[1])
		return nil
	},
}

var commentResolveCmd = &cobra.Command{
	Use:   "resolve SUBJECT COMMENT",
	Short: "Toggle a comment between resolved and open (designers only)",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		subject, err := subjectFromFlags(cmd, args[0])
		if err != nil {
			return err
		}
		byID, _ := cmd.Flags().GetString("by-id")
		byName, _ := cmd.Flags().GetString("by-name")
		role, _ := cmd.Flags().GetString("role")

		a, err := newApp(cmd, "comment resolve")
		if err != nil {
			return err
		}
		defer a.Close()

		c, err := a.ToggleComment(cmd.Context(), subject, args[1], review.Principal{
			ID:   byID,
			Name: byName,
			Role: review.AuthorRole(role),
		})
		if err != nil {
			return err
		}
		return render(cmd, c, threadTable([]*review.Thread{{Comment: c}}))
	},
}

var commentListCmd = &cobra.Command{
	Use:   "list SUBJECT",
	Short: "Show the comment threads of a subject",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		subject, err := subjectFromFlags(cmd, args[0])
		if err != nil {
			return err
		}

		a, err := newApp(cmd, "comment list")
		if err != nil {
			return err
		}
		defer a.Close()

		threads, err := a.ListThreads(cmd.Context(), subject)
		if err != nil {
			return err
		}
		if len(threads) == 0 && !wantJSON(cmd) {
			fmt.Fprintln(cmd.OutOrStdout(), "No comments.")
			return nil
		}
		return render(cmd, threads, threadTable(threads))
	},
}

func init() {
	for _, c := range []*cobra.Command{commentAddCmd, commentRmCmd, commentResolveCmd, commentListCmd} {
		c.Flags().String("kind", "markup", "Subject kind: markup or checklist")
		commentCmd.AddCommand(c)
	}

	addFlags := commentAddCmd.Flags()
	addFlags.String("author-id", "", "Author id")
	addFlags.String("author-name", "", "Author display name")
	addFlags.String("role", string(review.RoleClient), "client or designer")
	addFlags.String("text", "", "Comment text")
	addFlags.String("parent", "", "Reply to this top-level comment")
	for _, name := range []string{"author-id", "author-name", "text"} {
		commentAddCmd.MarkFlagRequired(name)
	}

	resolveFlags := commentResolveCmd.Flags()
	resolveFlags.String("by-id", "", "Designer id")
	resolveFlags.String("by-name", "", "Designer display name")
	resolveFlags.String("role", string(review.RoleDesigner), "Role of the acting user")
	commentResolveCmd.MarkFlagRequired("by-id")
}
