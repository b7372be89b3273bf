package terminal

import (
	"context"
	"errors"
	"io"
	"os"

	"github.com/de-tools/secboard/pkg/logging"
	"github.com/de-tools/secboard/pkg/runtime/terminal/commands"
	"github.com/de-tools/secboard/pkg/runtime/terminal/export"
	"github.com/de-tools/secboard/pkg/services/attacksurface"
	"github.com/de-tools/secboard/pkg/services/config"
	"github.com/de-tools/secboard/pkg/services/pages"
	"github.com/spf13/cobra"
)

// CLI represents the command-line interface
type CLI struct {
	opts    Options
	flags   globalFlags
	rootCmd *cobra.Command

	cfg       *config.Config
	reporter  *export.Reporter
	session   *pages.Session
	logCloser io.Closer
}

// Options contain configuration for the CLI
type Options struct {
	Output    io.Writer
	ErrOutput io.Writer
	// Prompter asks for secrets. Defaults to a hidden prompt on stdin.
	Prompter attacksurface.TokenPrompter
	// Backend replaces the HTTP client built from the configuration.
	Backend pages.Backend
}

type globalFlags struct {
	profile      string
	profilesPath string
	configPath   string
	host         string
	output       string
	logLevel     string
}

// NewCLI creates a new CLI instance
func NewCLI(opts Options) *CLI {
	if opts.Output == nil {
		opts.Output = os.Stdout
	}
	if opts.ErrOutput == nil {
		opts.ErrOutput = os.Stderr
	}
	if opts.Prompter == nil {
		opts.Prompter = hiddenPrompter{in: os.Stdin, out: opts.ErrOutput}
	}

	cli := &CLI{opts: opts}
	cli.rootCmd = cli.newRootCmd()
	return cli
}

func (cli *CLI) Execute() error {
	return cli.ExecuteContext(context.Background())
}

func (cli *CLI) ExecuteContext(ctx context.Context) error {
	defer cli.close()
	return cli.rootCmd.ExecuteContext(ctx)
}

// SetArgs overrides the command line, for tests.
func (cli *CLI) SetArgs(args []string) {
	cli.rootCmd.SetArgs(args)
}

func (cli *CLI) Session(ctx context.Context) (*pages.Session, error) {
	if cli.session != nil {
		return cli.session, nil
	}
	if cli.cfg == nil {
		return nil, errors.New("configuration is not loaded")
	}

	var (
		session *pages.Session
		err     error
	)
	if cli.opts.Backend != nil {
		session, err = pages.NewSession(ctx, cli.opts.Backend, nil, pages.SessionOptions(cli.cfg))
	} else {
		session, err = pages.Connect(ctx, cli.cfg)
	}
	if err != nil {
		return nil, err
	}
	cli.session = session
	return session, nil
}

func (cli *CLI) Reporter() *export.Reporter {
	return cli.reporter
}

func (cli *CLI) Prompter() attacksurface.TokenPrompter {
	return cli.opts.Prompter
}

func (cli *CLI) newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:               "secboard",
		Short:             "Security findings console",
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: cli.setup,
	}
	cmd.SetOut(cli.opts.Output)
	cmd.SetErr(cli.opts.ErrOutput)

	flags := cmd.PersistentFlags()
	flags.StringVar(&cli.flags.profile, "profile", config.DefaultProfile, "Profile of the profiles file to use")
	flags.StringVar(&cli.flags.profilesPath, "profiles-file", "", "Path to the profiles file (default is $HOME/.secboardcfg)")
	flags.StringVar(&cli.flags.configPath, "config", "", "Path to a YAML configuration file")
	flags.StringVar(&cli.flags.host, "host", "", "Backend API base URL, e.g. https://findings.example.com/api")
	flags.StringVarP(&cli.flags.output, "output", "o", string(export.FormatText), "Output format: text, json or yaml")
	flags.StringVar(&cli.flags.logLevel, "log-level", "", "Log level: trace, debug, info, warn or error")

	cmd.AddCommand(commands.NewDashboardCmd(cli))
	cmd.AddCommand(commands.NewReposCmd(cli))
	cmd.AddCommand(commands.NewFindingsCmd(cli))
	cmd.AddCommand(commands.NewCloudCmd(cli))
	cmd.AddCommand(commands.NewWatchCmd(cli))

	return cmd
}

func (cli *CLI) setup(cmd *cobra.Command, _ []string) error {
	format, err := export.ParseFormat(cli.flags.output)
	if err != nil {
		return err
	}
	cli.reporter = export.NewReporter(cmd.OutOrStdout(), format)

	cfg, err := config.LoadConfig(cli.flags.configPath)
	if err != nil {
		return err
	}
	if cli.flags.logLevel != "" {
		cfg.Log.Level = cli.flags.logLevel
	}

	logger, closer, err := logging.New(logging.Options{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		File:   cfg.Log.File,
		Output: cli.opts.ErrOutput,
	})
	if err != nil {
		return err
	}
	cli.logCloser = closer
	cmd.SetContext(logger.WithContext(cmd.Context()))

	profile, err := cli.loadProfile(cmd)
	if err != nil {
		return err
	}
	cfg.ApplyProfile(profile)
	if cli.flags.host != "" {
		cfg.Host = cli.flags.host
	}
	cli.cfg = cfg

	logger.Debug().Str("host", cfg.Host).Msg("configuration loaded")
	return nil
}

func (cli *CLI) loadProfile(cmd *cobra.Command) (*config.Profile, error) {
	explicit := cmd.Flags().Changed("profile") || cmd.Flags().Changed("profiles-file")
	return config.ResolveProfile(cmd.Context(), cli.flags.profilesPath, cli.flags.profile, explicit)
}

func (cli *CLI) close() {
	if cli.session != nil {
		cli.session.Close()
		cli.session = nil
	}
	if cli.logCloser != nil {
		_ = cli.logCloser.Close()
		cli.logCloser = nil
	}
}
