package main

import (
	"fmt"
	"os"

	"github.com/de-tools/secboard/pkg/logging"
	"github.com/de-tools/secboard/pkg/server"
	"github.com/de-tools/secboard/pkg/services/config"
	"github.com/de-tools/secboard/pkg/services/pages"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var (
	cfgPath      string
	profilesPath string
	profileName  string
	host         string
)

func main() {
	var rootCmd = &cobra.Command{
		Use:          "web",
		Short:        "Start the web dashboard for secboard",
		SilenceUsage: true,
		RunE:         runServer,
	}

	rootCmd.Flags().StringVarP(&cfgPath, "config", "c", "", "Path to a YAML configuration file")
	rootCmd.Flags().StringVar(&profilesPath, "profiles-file", "",
		"Path to the profiles file (default is $HOME/.secboardcfg)")
	rootCmd.Flags().StringVar(&profileName, "profile", config.DefaultProfile, "Profile of the profiles file to use")
	rootCmd.Flags().StringVar(&host, "host", "", "Backend API base URL")

	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}

func runServer(cmd *cobra.Command, _ []string) error {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		fmt.Printf("Error loading .env file: %v\n", err)
	}

	cfg, err := config.LoadConfig(cfgPath)
	if err != nil {
		return err
	}

	logger, closer, err := logging.New(logging.Options{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		File:   cfg.Log.File,
		Output: os.Stdout,
	})
	if err != nil {
		return err
	}
	defer closer.Close()
	ctx := logger.WithContext(cmd.Context())

	explicit := cmd.Flags().Changed("profile") || cmd.Flags().Changed("profiles-file")
	profile, err := config.ResolveProfile(ctx, profilesPath, profileName, explicit)
	if err != nil {
		return err
	}
	cfg.ApplyProfile(profile)
	if host != "" {
		cfg.Host = host
	}
	if profile != nil {
		logger.Info().Str("profile", profile.Name).Msg("profile loaded")
	}

	session, err := pages.Connect(ctx, cfg)
	if err != nil {
		return err
	}
	defer session.Close()

	webAPI, err := server.NewWebAPI(logger, server.Config{
		Addr:         cfg.Addr(),
		Dependencies: server.Dependencies{Session: session},
	})
	if err != nil {
		return fmt.Errorf("failed to create web server: %w", err)
	}

	logger.Info().Str("backend", cfg.Host).Msg("serving dashboard")
	return webAPI.Start()
}
