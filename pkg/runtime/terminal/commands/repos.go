package commands

import (
	"context"
	"fmt"

	"github.com/de-tools/secboard/pkg/runtime/terminal/export"
	"github.com/de-tools/secboard/pkg/services/attacksurface"
	"github.com/spf13/cobra"
)

type ReposCmd struct {
	app   App
	name  string
	url   string
	token string
}

func NewReposCmd(app App) *cobra.Command {
	rc := &ReposCmd{app: app}
	cmd := &cobra.Command{
		Use:   "repos",
		Short: "Manage repositories watched by the attack surface monitor",
	}

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List repositories",
		Args:  cobra.NoArgs,
		RunE:  rc.list,
	}

	addCmd := &cobra.Command{
		Use:   "add",
		Short: "Add a repository",
		Args:  cobra.NoArgs,
		RunE:  rc.add,
	}
	addCmd.Flags().StringVar(&rc.name, "name", "", "Repository name, e.g. acme/app")
	addCmd.Flags().StringVar(&rc.url, "url", "", "Repository URL")
	addCmd.Flags().StringVar(&rc.token, "token", "", "GitHub token (default $"+tokenEnv+" or prompt)")
	_ = addCmd.MarkFlagRequired("name")
	_ = addCmd.MarkFlagRequired("url")

	scanCmd := &cobra.Command{
		Use:   "scan <repo-id>",
		Short: "Start a scan of a repository",
		Args:  cobra.ExactArgs(1),
		RunE:  rc.scan,
	}
	scanCmd.Flags().StringVar(&rc.token, "token", "", "GitHub token (default $"+tokenEnv+" or prompt)")

	cmd.AddCommand(listCmd, addCmd, scanCmd)
	return cmd
}

func (rc *ReposCmd) page(cmd *cobra.Command) (*attacksurface.Page, error) {
	session, err := rc.app.Session(cmd.Context())
	if err != nil {
		return nil, err
	}
	return session.AttackSurface(), nil
}

func (rc *ReposCmd) list(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()

	session, err := rc.app.Session(ctx)
	if err != nil {
		return err
	}
	if _, err := session.Cache.Fetch(ctx, attacksurface.KeyRepos); err != nil {
		return fmt.Errorf("failed to list repositories: %w", err)
	}
	return rc.app.Reporter().Repositories(export.RepositoriesFromView(session.AttackSurface().Snapshot().Repos))
}

func (rc *ReposCmd) add(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()

	page, err := rc.page(cmd)
	if err != nil {
		return err
	}

	token, ok, err := tokenSource(rc.app, rc.token).PromptToken(ctx, "Enter GitHub token:")
	if err != nil {
		return fmt.Errorf("failed to read github token: %w", err)
	}
	if !ok {
		return fmt.Errorf("a github token is required to add a repository")
	}

	page.OpenAddForm()
	err = page.SubmitAddRepository(ctx, attacksurface.RepositoryForm{Name: rc.name, URL: rc.url, Token: token})
	if err != nil {
		return fmt.Errorf("failed to add repository: %w", err)
	}
	return rc.app.Reporter().Message(fmt.Sprintf("Repository %s added.", rc.name))
}

func (rc *ReposCmd) scan(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	repoID := args[0]

	page, err := rc.page(cmd)
	if err != nil {
		return err
	}

	prompter := tokenSource(rc.app, rc.token)
	asked := false
	tracked := attacksurface.TokenPrompterFunc(func(ctx context.Context, label string) (string, bool, error) {
		token, ok, err := prompter.PromptToken(ctx, label)
		asked = ok && token != ""
		return token, ok, err
	})

	if err := page.TriggerScan(ctx, repoID, tracked); err != nil {
		return fmt.Errorf("failed to scan repository %s: %w", repoID, err)
	}
	if !asked {
		return rc.app.Reporter().Message("Scan cancelled.")
	}
	return rc.app.Reporter().Message(fmt.Sprintf("Scan started for repository %s.", repoID))
}
