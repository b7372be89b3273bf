package commands

import (
	"fmt"

	"github.com/de-tools/secboard/pkg/runtime/terminal/export"
	"github.com/spf13/cobra"
)

type DashboardCmd struct {
	app App
}

func NewDashboardCmd(app App) *cobra.Command {
	dc := &DashboardCmd{app: app}
	return &cobra.Command{
		Use:   "dashboard",
		Short: "Show the finding summary of every category and recent critical findings",
		Args:  cobra.NoArgs,
		RunE:  dc.run,
	}
}

func (dc *DashboardCmd) run(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()

	session, err := dc.app.Session(ctx)
	if err != nil {
		return err
	}

	page := session.Dashboard()
	if err := page.Load(ctx); err != nil {
		return fmt.Errorf("failed to load dashboard: %w", err)
	}
	return dc.app.Reporter().Dashboard(export.DashboardFromView(page.Snapshot()))
}
