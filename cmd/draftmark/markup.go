package main

import (
	"fmt"
	"strconv"

	"draftmark/internal/review"

	"github.com/spf13/cobra"
)

var markupCmd = &cobra.Command{
	Use:   "markup",
	Short: "Manage markups on a design version",
}

func parseCoords(xs, ys string) (float64, float64, error) {
	x, err := strconv.ParseFloat(xs, 64)
	if err != nil {
		return 0, 0, fmt.Errorf("invalid x %q: %w", xs, err)
	}
	y, err := strconv.ParseFloat(ys, 64)
	if err != nil {
		return 0, 0, fmt.Errorf("invalid y %q: %w", ys, err)
	}
	return x, y, nil
}

var markupAddCmd = &cobra.Command{
	Use:   "add VERSION X Y",
	Short: "Place a markup at a percentage position",
	Args:  cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		x, y, err := parseCoords(args[1], args[2])
		if err != nil {
			return err
		}
		markupType, _ := cmd.Flags().GetString("type")
		by, _ := cmd.Flags().GetString("by")

		in := review.CreateMarkupInput{
			VersionID: args[0],
			X:         x,
			Y:         y,
			Type:      review.MarkupType(markupType),
			CreatedBy: by,
		}
		if cmd.Flags().Changed("color") {
			color, _ := cmd.Flags().GetString("color")
			in.Color = &color
		}
		if cmd.Flags().Changed("size") {
			size, _ := cmd.Flags().GetFloat64("size")
			in.Size = &size
		}

		a, err := newApp(cmd, "markup add")
		if err != nil {
			return err
		}
		defer a.Close()

		m, err := a.AddMarkup(cmd.Context(), in)
		if err != nil {
			return err
		}
		return render(cmd, m, markupTable(m))
	},
}

var markupListCmd = &cobra.Command{
	Use:   "list VERSION",
	Short: "List the markups of a version in sequence order",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd, "markup list")
		if err != nil {
			return err
		}
		defer a.Close()

		markups, err := a.ListMarkups(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		if len(markups) == 0 && !wantJSON(cmd) {
			fmt.Fprintln(cmd.OutOrStdout(), "No markups.")
			return nil
		}
		return render(cmd, markups, markupTable(markups...))
	},
}

var markupMoveCmd = &cobra.Command{
	Use:   "move ID X Y",
	Short: "Move a markup to a new position",
	Args:  cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		x, y, err := parseCoords(args[1], args[2])
		if err != nil {
			return err
		}

		a, err := newApp(cmd, "markup move")
		if err != nil {
			return err
		}
		defer a.Close()

		m, err := a.UpdateMarkup(cmd.Context(), args[0], review.MarkupPatch{X: &x, Y: &y})
		if err != nil {
			return err
		}
		return render(cmd, m, markupTable(m))
	},
}

var markupSetCmd = &cobra.Command{
	Use:   "set ID",
	Short: "Change a markup's style, type or sequence number",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var patch review.MarkupPatch
		flags := cmd.Flags()
		if flags.Changed("color") {
			color, _ := flags.GetString("color")
			patch.Color = &color
		}
		if flags.Changed("size") {
			size, _ := flags.GetFloat64("size")
			patch.Size = &size
		}
		if flags.Changed("type") {
			markupType, _ := flags.GetString("type")
			t := review.MarkupType(markupType)
			patch.Type = &t
		}
		if flags.Changed("seq") {
			seq, _ := flags.GetInt("seq")
			patch.SequenceNumber = &seq
		}

		a, err := newApp(cmd, "markup set")
		if err != nil {
			return err
		}
		defer a.Close()

		m, err := a.UpdateMarkup(cmd.Context(), args[0], patch)
		if err != nil {
			return err
		}
		return render(cmd, m, markupTable(m))
	},
}

var markupRmCmd = &cobra.Command{
	Use:   "rm ID",
	Short: "Delete a markup and its feedback",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd, "markup rm")
		if err != nil {
			return err
		}
		defer a.Close()

		if err := a.DeleteMarkup(cmd.Context(), args[0]); err != nil {
			return err
		}
		fmt.Fprintf(cmd.ErrOrStderr(), "Deleted markup %s\n", args[0])
		return nil
	},
}

var markupClearCmd = &cobra.Command{
	Use:   "clear VERSION",
	Short: "Delete every markup of a version",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd, "markup clear")
		if err != nil {
			return err
		}
		defer a.Close()

		n, err := a.ClearMarkups(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.ErrOrStderr(), "Deleted %d markup(s)\n", n)
		return nil
	},
}

func init() {
	markupCmd.AddCommand(markupAddCmd)
	markupAddCmd.Flags().String("type", string(review.MarkupPoint), "point, circle, arrow, rectangle, text or freehand")
	markupAddCmd.Flags().String("by", "", "Id of the user placing the markup")
	markupAddCmd.Flags().String("color", "", "Color (defaults by type)")
	markupAddCmd.Flags().Float64("size", 0, "Size (defaults by type)")
	markupAddCmd.MarkFlagRequired("by")

	markupCmd.AddCommand(markupListCmd)
	markupCmd.AddCommand(markupMoveCmd)

	markupCmd.AddCommand(markupSetCmd)
	markupSetCmd.Flags().String("color", "", "New color")
	markupSetCmd.Flags().Float64("size", 0, "New size")
	markupSetCmd.Flags().String("type", "", "New markup type")
	markupSetCmd.Flags().Int("seq", 0, "Move to this sequence number within the version")

	markupCmd.AddCommand(markupRmCmd)
	markupCmd.AddCommand(markupClearCmd)
}
