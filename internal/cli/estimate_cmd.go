package cli

import (
	"fmt"
	"strconv"

	"github.com/goccy/go-json"
	"github.com/spf13/cobra"

	"github.com/BTreeMap/CaseTrack/internal/dashboard"
	"github.com/BTreeMap/CaseTrack/internal/models"
)

func newEstimateCmd(app *App) *cobra.Command {
	var (
		req       models.EstimationRequest
		completed string
		asJSON    bool
	)
	cmd := &cobra.Command{
		Use:   "estimate",
		Short: "Project the next step and completion date of a case",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if completed != "" {
				req.CompletedStages = []models.StageProgress{{
					StageID:       req.CurrentStageID,
					Completed:     true,
					DateCompleted: completed,
				}}
			}
			if err := req.Validate(); err != nil {
				return err
			}
			cfg, err := app.loadConfig()
			if err != nil {
				return err
			}
			res, err := app.engine(cfg).Estimate(req)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if asJSON {
				data, err := json.MarshalIndent(res, "", "  ")
				if err != nil {
					return err
				}
				fmt.Fprintln(out, string(data))
				return nil
			}

			next := res.NextStepEstimate
			name := next.StageName
			if app.lang == "zh" {
				name = dashboard.TranslateStageTitle(name)
			}
			fmt.Fprint(out, app.Format.Header("Estimate"))
			fmt.Fprint(out, app.Format.Field("Case", fmt.Sprintf("%s / %s / %s", req.VisaType, req.ProcessingCenter, req.CountryOfBirth)))
			fmt.Fprint(out, app.Format.Field("Next step", fmt.Sprintf("%s (stage %d)", name, next.StageID)))
			fmt.Fprint(out, app.Format.Field("Expected", fmt.Sprintf("%s %s", next.ExpectedDate, app.Format.Dim("in "+strconv.Itoa(next.EtaDays)+" days"))))
			fmt.Fprint(out, app.Format.Field("Confidence", app.Format.Confidence(next.ConfidenceLevel)))
			fmt.Fprint(out, app.Format.Field("Completion", res.EstimatedCompletionDate))
			return nil
		},
	}
	cmd.Flags().StringVar(&req.VisaType, "visa", "", "visa type, e.g. EB-2")
	cmd.Flags().StringVar(&req.ProcessingCenter, "center", "", "processing center")
	cmd.Flags().StringVar(&req.CountryOfBirth, "country", "", "country of birth")
	cmd.Flags().IntVar(&req.CurrentStageID, "stage", 1, "current stage id")
	cmd.Flags().StringVar(&completed, "completed", "", "date the current stage was completed (YYYY-MM-DD); today when empty")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the result as JSON")
	return cmd
}
