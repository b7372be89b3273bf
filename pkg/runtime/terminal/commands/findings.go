package commands

import (
	"context"
	"fmt"

	"github.com/de-tools/secboard/pkg/runtime/terminal/export"
	"github.com/de-tools/secboard/pkg/services/attacksurface"
	"github.com/de-tools/secboard/pkg/services/cloud"
	"github.com/de-tools/secboard/pkg/services/pages"
	"github.com/spf13/cobra"
)

type FindingsCmd struct {
	app    App
	source string
}

func NewFindingsCmd(app App) *cobra.Command {
	fc := &FindingsCmd{app: app}
	cmd := &cobra.Command{
		Use:   "findings",
		Short: "List findings and change their status",
	}
	cmd.PersistentFlags().StringVar(&fc.source, "source", pages.NameAttackSurface,
		"Findings source: attack-surface or cloud")

	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List findings of a source",
		Args:  cobra.NoArgs,
		RunE:  fc.list,
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "set-status <finding-id> <open|acknowledged|resolved|false_positive>",
		Short: "Change the status of a finding",
		Args:  cobra.ExactArgs(2),
		RunE:  fc.setStatus,
	})
	return cmd
}

// findingsSource hides the differences between the two findings pages.
type findingsSource struct {
	fetch  func(ctx context.Context) error
	render func() error
	change func(ctx context.Context, id, status string) error
}

func (fc *FindingsCmd) resolve(cmd *cobra.Command) (*findingsSource, error) {
	ctx := cmd.Context()
	session, err := fc.app.Session(ctx)
	if err != nil {
		return nil, err
	}
	reporter := fc.app.Reporter()

	switch fc.source {
	case pages.NameAttackSurface:
		page := session.AttackSurface()
		return &findingsSource{
			fetch: func(ctx context.Context) error {
				_, err := session.Cache.Fetch(ctx, attacksurface.KeyFindings)
				return err
			},
			render: func() error {
				return reporter.Findings(export.AttackSurfaceFindingsFromView(page.Snapshot().Findings))
			},
			change: page.ChangeFindingStatus,
		}, nil
	case pages.NameCloud:
		page := session.Cloud()
		return &findingsSource{
			fetch: func(ctx context.Context) error {
				_, err := session.Cache.Fetch(ctx, cloud.KeyFindings)
				return err
			},
			render: func() error {
				return reporter.Findings(export.CloudFindingsFromView(page.Snapshot().Findings))
			},
			change: page.ChangeFindingStatus,
		}, nil
	default:
		return nil, fmt.Errorf("unknown findings source %q, use %s or %s", fc.source, pages.NameAttackSurface, pages.NameCloud)
	}
}

func (fc *FindingsCmd) list(cmd *cobra.Command, _ []string) error {
	src, err := fc.resolve(cmd)
	if err != nil {
		return err
	}
	if err := src.fetch(cmd.Context()); err != nil {
		return fmt.Errorf("failed to list findings: %w", err)
	}
	return src.render()
}

func (fc *FindingsCmd) setStatus(cmd *cobra.Command, args []string) error {
	id, status := args[0], args[1]

	src, err := fc.resolve(cmd)
	if err != nil {
		return err
	}
	if err := src.change(cmd.Context(), id, status); err != nil {
		return fmt.Errorf("failed to update finding %s: %w", id, err)
	}
	return fc.app.Reporter().Message(fmt.Sprintf("Finding %s marked %s.", id, status))
}
