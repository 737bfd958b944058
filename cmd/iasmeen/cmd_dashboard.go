package main

import (
	"iasmeen/cmd/iasmeen/ui"
	"iasmeen/internal/export"
	"iasmeen/internal/logging"

	"github.com/spf13/cobra"
)

// runDashboard starts the terminal dashboard.
func runDashboard(cmd *cobra.Command, args []string) error {
	ctx, cancel := signalContext()
	defer cancel()

	a, err := openApp(ctx, true)
	if err != nil {
		return err
	}
	defer a.Close()

	loc, err := localizer()
	if err != nil {
		return err
	}

	styles := ui.DefaultStyles()
	if cfg.UI.DarkMode {
		styles = ui.NewStyles(ui.DarkTheme())
	}
	exp := export.New(cfg.Export.Dir, cfg.Export.ChromeBin, newPrinter())

	logging.Get(logging.CategoryUI).Info("dashboard starting: lang=%s", loc.Language())
	return ui.Run(ctx, a.newSession(loc), loc, exp, styles)
}
