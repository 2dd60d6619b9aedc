package cli

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/BTreeMap/CaseTrack/internal/dashboard"
)

func newStagesCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "stages",
		Short: "List the tracked case stages",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := app.loadConfig()
			if err != nil {
				return err
			}
			rows := make([][]string, 0, len(cfg.Stages))
			for _, s := range cfg.Stages {
				name := s.Name
				if app.lang == "zh" {
					name = dashboard.TranslateStageTitle(name)
				}
				flags := ""
				if s.IsMilestone {
					flags = "milestone"
				}
				if s.RequiresUserAction {
					if flags != "" {
						flags += ", "
					}
					flags += "action"
				}
				rows = append(rows, []string{
					strconv.Itoa(s.StageID),
					name,
					strconv.Itoa(s.EstimatedDurationDays.Average),
					flags,
				})
			}
			out := cmd.OutOrStdout()
			fmt.Fprint(out, app.Format.Header("Stages"))
			fmt.Fprint(out, app.Format.Table([]string{"ID", "STAGE", "AVG DAYS", "FLAGS"}, rows))
			return nil
		},
	}
}
