package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/Perth-Artifactory/Volunteer-Tokens/internal"
	"github.com/Perth-Artifactory/Volunteer-Tokens/internal/app"
	"github.com/Perth-Artifactory/Volunteer-Tokens/internal/chart"
	"github.com/Perth-Artifactory/Volunteer-Tokens/internal/config"
	"github.com/Perth-Artifactory/Volunteer-Tokens/internal/rewards"
	"github.com/Perth-Artifactory/Volunteer-Tokens/internal/service"
	"github.com/Perth-Artifactory/Volunteer-Tokens/internal/slack"
	"github.com/Perth-Artifactory/Volunteer-Tokens/internal/storage"
	"github.com/Perth-Artifactory/Volunteer-Tokens/internal/tidyhq"
)

func main() {
	var (
		configPath string
		cronMode   bool
	)

	rootCmd := &cobra.Command{
		Use:   "volunteerbot",
		Short: "Slack app for tracking volunteer hours and rewards",
		Long: `volunteerbot serves a Slack app home where volunteers see their logged
hours and reward progress, and where admins record new hours. Member
identity comes from TidyHQ through a local expiring cache.`,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(configPath, cronMode)
		},
	}

	rootCmd.Flags().StringVar(&configPath, "config", "config.json", "path to the configuration file")
	rootCmd.Flags().BoolVar(&cronMode, "cron", false, "pre-warm every user's app home and exit")

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func run(configPath string, cronMode bool) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	logger, err := internal.NewLogger(cfg.LogLevel)
	if err != nil {
		return fmt.Errorf("building logger: %w", err)
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	httpClient := &http.Client{Timeout: 30 * time.Second}

	ledger, err := storage.NewFileLedger(cfg.Storage.HoursFile, logger)
	if err != nil {
		return fmt.Errorf("opening hours ledger: %w", err)
	}
	claims, err := storage.NewFileClaims(cfg.Storage.ClaimsFile)
	if err != nil {
		return fmt.Errorf("opening claims store: %w", err)
	}

	catalog, err := rewards.LoadCatalog(cfg.RewardsFile)
	if err != nil {
		return fmt.Errorf("loading reward catalog: %w", err)
	}
	logger.Infof("loaded %d monthly and %d cumulative reward tiers",
		len(catalog.Monthly), len(catalog.Cumulative))

	tidyClient, err := tidyhq.NewClient(httpClient, cfg.TidyHQ.BaseURL, cfg.TidyHQ.Token)
	if err != nil {
		return fmt.Errorf("building tidyhq client: %w", err)
	}
	cache, err := tidyhq.NewCache(tidyClient, cfg.TidyHQ.ExpiryDuration(), cfg.TidyHQ.CacheFile, cfg.TidyHQ.SlackFieldID, logger)
	if err != nil {
		return fmt.Errorf("building tidyhq cache: %w", err)
	}
	if err := cache.Warm(ctx); err != nil {
		return fmt.Errorf("warming tidyhq cache: %w", err)
	}

	slackClient, err := slack.NewClient(httpClient, "", cfg.Slack.BotToken)
	if err != nil {
		return fmt.Errorf("building slack client: %w", err)
	}
	identity, err := slackClient.AuthTest(ctx)
	if err != nil {
		return fmt.Errorf("slack auth check failed: %w", err)
	}
	logger.Infof("connected to workspace %s as bot %s", identity.Team, identity.UserID)

	charts, err := chart.NewGenerator(httpClient)
	if err != nil {
		return fmt.Errorf("building chart generator: %w", err)
	}

	badge := service.NewBadge(tidyClient, cfg.TidyHQ.BadgeFieldID, logger)
	hours := service.NewHours(ledger, cache, catalog, badge, logger)

	renderer := app.NewRenderer(catalog, ledger, claims, charts, cfg.TidyHQ.AdminGroups, logger)
	dispatcher := app.NewDispatcher(slackClient, cache, ledger, claims, hours, renderer, cfg.Slack.AdminChannel, logger)

	if cronMode {
		logger.Infof("running one-shot home pre-warm")
		return dispatcher.PreWarm(ctx)
	}

	switch cfg.Slack.Mode {
	case "events":
		logger.Infof("listening for Slack events on %s", cfg.Slack.ListenAddr)
		server := slack.NewEventServer(cfg.Slack.ListenAddr, cfg.Slack.SigningSecret, dispatcher, logger)
		return server.Run(ctx)
	default:
		logger.Infof("connecting to Slack in socket mode")
		socket := slack.NewSocketMode(slackClient, cfg.Slack.AppToken, dispatcher, logger)
		return socket.Run(ctx)
	}
}
