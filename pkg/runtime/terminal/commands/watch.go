package commands

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/de-tools/secboard/pkg/runtime/terminal/export"
	"github.com/de-tools/secboard/pkg/services/pages"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

type WatchCmd struct {
	app      App
	interval time.Duration
}

func NewWatchCmd(app App) *cobra.Command {
	wc := &WatchCmd{app: app}
	cmd := &cobra.Command{
		Use:       "watch [dashboard|attack-surface|cloud]",
		Short:     "Keep a page open and print it whenever its data changes",
		Args:      cobra.MaximumNArgs(1),
		ValidArgs: pages.Navigation,
		RunE:      wc.run,
	}
	cmd.Flags().DurationVar(&wc.interval, "interval", 30*time.Second, "How often the page data is refreshed")
	return cmd
}

func (wc *WatchCmd) run(cmd *cobra.Command, args []string) error {
	name := pages.NameDashboard
	if len(args) > 0 {
		name = args[0]
	}
	if wc.interval <= 0 {
		return fmt.Errorf("interval must be positive")
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	logger := zerolog.Ctx(ctx)

	session, err := wc.app.Session(ctx)
	if err != nil {
		return err
	}
	page, err := session.Page(name)
	if err != nil {
		return err
	}

	changes := make(chan struct{}, 1)
	err = page.Mount(ctx, func() {
		select {
		case changes <- struct{}{}:
		default:
		}
	})
	if err != nil {
		return fmt.Errorf("failed to open page %s: %w", name, err)
	}
	defer page.Unmount()

	ticker := time.NewTicker(wc.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			logger.Debug().Str("page", name).Msg("refreshing page data")
			session.Cache.Invalidate(page.Keys()...)
		case <-changes:
			if err := RenderPage(wc.app.Reporter(), session, name); err != nil {
				return err
			}
		}
	}
}

// RenderPage prints the current state of a page.
func RenderPage(reporter *export.Reporter, session *pages.Session, name string) error {
	switch name {
	case pages.NameDashboard:
		return reporter.Dashboard(export.DashboardFromView(session.Dashboard().Snapshot()))
	case pages.NameAttackSurface:
		v := session.AttackSurface().Snapshot()
		if err := reporter.Repositories(export.RepositoriesFromView(v.Repos)); err != nil {
			return err
		}
		return reporter.Findings(export.AttackSurfaceFindingsFromView(v.Findings))
	case pages.NameCloud:
		v := session.Cloud().Snapshot()
		if err := reporter.Accounts(export.AccountsFromView(v.Accounts)); err != nil {
			return err
		}
		return reporter.Findings(export.CloudFindingsFromView(v.Findings))
	default:
		return fmt.Errorf("unknown page %q", name)
	}
}
