package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/BTreeMap/CaseTrack/internal/eligibility"
)

func newEligibilityCmd(app *App) *cobra.Command {
	var list bool
	cmd := &cobra.Command{
		Use:   "eligibility [question-id...]",
		Short: "Recommend a green-card category from the questions answered yes",
		Long: "Pass the ids of the questions you answer \"yes\" to; every other question counts as \"no\".\n" +
			"Use --questions to print the questionnaire.",
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			if list {
				rows := make([][]string, 0, len(eligibility.Questions()))
				for _, q := range eligibility.Questions() {
					rows = append(rows, []string{q.ID, q.Text(app.lang)})
				}
				fmt.Fprint(out, app.Format.Header("Questions"))
				fmt.Fprint(out, app.Format.Table([]string{"ID", "QUESTION"}, rows))
				return nil
			}

			known := make(map[string]bool, len(eligibility.Questions()))
			for _, q := range eligibility.Questions() {
				known[q.ID] = true
			}
			answers := eligibility.Answers{}
			for _, id := range args {
				if !known[id] {
					return fmt.Errorf("unknown question %q", id)
				}
				answers[id] = true
			}

			res, err := eligibility.MustDefault().Determine(cmd.Context(), answers)
			if err != nil {
				return err
			}
			text := res.Category.Localized(app.lang)
			fmt.Fprint(out, app.Format.Header("Recommendation"))
			fmt.Fprint(out, app.Format.Field("Category", fmt.Sprintf("%s %s", text.Title, app.Format.Dim("("+res.CategoryID+")"))))
			fmt.Fprintln(out, text.Description)
			for _, r := range text.Requirements {
				fmt.Fprintf(out, "  - %s\n", r)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&list, "questions", false, "list the questions instead of evaluating")
	return cmd
}
