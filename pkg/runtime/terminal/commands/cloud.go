package commands

import (
	"fmt"

	"github.com/de-tools/secboard/pkg/runtime/terminal/export"
	"github.com/de-tools/secboard/pkg/services/cloud"
	"github.com/spf13/cobra"
)

type CloudCmd struct {
	app       App
	accountID string
	provider  string
	name      string
}

func NewCloudCmd(app App) *cobra.Command {
	cc := &CloudCmd{app: app}
	cmd := &cobra.Command{
		Use:   "cloud",
		Short: "Manage cloud accounts watched by the cloud monitor",
	}

	accountsCmd := &cobra.Command{
		Use:   "accounts",
		Short: "List cloud accounts",
		Args:  cobra.NoArgs,
		RunE:  cc.accounts,
	}

	addCmd := &cobra.Command{
		Use:   "add",
		Short: "Add a cloud account",
		Args:  cobra.NoArgs,
		RunE:  cc.add,
	}
	addCmd.Flags().StringVar(&cc.accountID, "account-id", "", "Provider account id")
	addCmd.Flags().StringVar(&cc.provider, "provider", "aws", "Cloud provider: aws, azure or gcp")
	addCmd.Flags().StringVar(&cc.name, "name", "", "Display name of the account")
	_ = addCmd.MarkFlagRequired("account-id")

	syncCmd := &cobra.Command{
		Use:   "sync <id>",
		Short: "Sync the findings of a cloud account",
		Long: "Sync the findings of a cloud account. <id> is the id listed by `secboard cloud accounts`,\n" +
			"not the provider account id.",
		Args:  cobra.ExactArgs(1),
		RunE:  cc.sync,
	}

	cmd.AddCommand(accountsCmd, addCmd, syncCmd)
	return cmd
}

func (cc *CloudCmd) accounts(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()

	session, err := cc.app.Session(ctx)
	if err != nil {
		return err
	}
	if _, err := session.Cache.Fetch(ctx, cloud.KeyAccounts); err != nil {
		return fmt.Errorf("failed to list cloud accounts: %w", err)
	}
	return cc.app.Reporter().Accounts(export.AccountsFromView(session.Cloud().Snapshot().Accounts))
}

func (cc *CloudCmd) add(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()

	session, err := cc.app.Session(ctx)
	if err != nil {
		return err
	}

	page := session.Cloud()
	page.OpenAddForm()
	err = page.SubmitAddAccount(ctx, cloud.AccountForm{AccountID: cc.accountID, Name: cc.name, Provider: cc.provider})
	if err != nil {
		return fmt.Errorf("failed to add cloud account: %w", err)
	}
	return cc.app.Reporter().Message(fmt.Sprintf("Cloud account %s added.", cc.accountID))
}

func (cc *CloudCmd) sync(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	id := args[0]

	session, err := cc.app.Session(ctx)
	if err != nil {
		return err
	}
	if err := session.Cloud().TriggerSync(ctx, id); err != nil {
		return fmt.Errorf("failed to sync cloud account %s: %w", id, err)
	}
	return cc.app.Reporter().Message(fmt.Sprintf("Sync started for cloud account %s.", id))
}
