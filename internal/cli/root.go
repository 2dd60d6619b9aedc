// Package cli implements casectl, an offline companion to the CaseTrack server that answers
// configuration, estimation and eligibility questions without a database.
package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/BTreeMap/CaseTrack/internal/config"
	"github.com/BTreeMap/CaseTrack/internal/estimation"
)

// App holds what every command needs.
type App struct {
	Format Formatter
	// Now overrides the clock used for projections. Nil uses time.Now.
	Now func() time.Time

	configPath string
	lang       string
}

// loadConfig returns the configuration named by --config, or the built-in one.
func (a *App) loadConfig() (*config.TrackingConfig, error) {
	if a.configPath == "" {
		return config.Default(), nil
	}
	cfg, err := config.Load(a.configPath)
	if err != nil {
		return nil, fmt.Errorf("load config %s: %w", a.configPath, err)
	}
	return cfg, nil
}

func (a *App) engine(cfg *config.TrackingConfig) *estimation.Engine {
	if a.Now == nil {
		return estimation.NewEngine(cfg)
	}
	return estimation.NewEngine(cfg, estimation.WithClock(a.Now))
}

// NewRootCmd builds the casectl command tree.
func NewRootCmd(app *App) *cobra.Command {
	root := &cobra.Command{
		Use:           "casectl",
		Short:         "Inspect green-card stages, estimates and eligibility offline",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&app.configPath, "config", "", "tracking configuration YAML (built-in when empty)")
	root.PersistentFlags().StringVar(&app.lang, "lang", "en", "output language (en or zh)")

	root.AddCommand(
		newStagesCmd(app),
		newEstimateCmd(app),
		newEligibilityCmd(app),
	)
	return root
}
