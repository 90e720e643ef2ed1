package main

import (
	"context"
	"errors"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/toppings/giveandtake/internal/config"
	"github.com/toppings/giveandtake/internal/eventbus"
	"github.com/toppings/giveandtake/internal/referee"
	"github.com/toppings/giveandtake/internal/slackbot"
	"github.com/toppings/giveandtake/internal/telemetry"
)

var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Run the referee as a Slack bot",
	Long: `Starts the Slack bot in the foreground. The bot connects via Socket Mode,
checks every scoreboard posted to the scoring channel and reports problems
in the chat channel.

Required (flag, GT_* variable or legacy name):
  --bot-token        GT_SLACK_BOT_TOKEN / SLACK_BOT_TOKEN (xoxb-...)
  --app-token        GT_SLACK_APP_TOKEN / SLACK_APP_TOKEN (xapp-...)
  --scoring-channel  GT_SCORING_CHANNEL / GIVE_AND_TAKE_CHANNEL
  --chat-channel     GT_CHAT_CHANNEL / GIVE_AND_TAKE_CHAT_CHANNEL

Optional:
  --nats-url         GT_NATS_URL, publish verdicts to JetStream
  --health-port      GT_HEALTH_PORT (default: 8080)
  GT_OTEL_ENABLED    enable OpenTelemetry traces and metrics
  GT_OTEL_STDOUT     print spans and metrics to stdout
  GT_OTEL_ENDPOINT   OTLP/HTTP collector (or OTEL_EXPORTER_OTLP_ENDPOINT)`,
	RunE: runStart,
}

var (
	startBotToken       string
	startAppToken       string
	startScoringChannel string
	startChatChannel    string
	startNatsURL        string
	startHealthPort     int
	startDebug          bool
)

func init() {
	rootCmd.AddCommand(startCmd)

	startCmd.Flags().StringVar(&startBotToken, "bot-token", "", "Slack bot token")
	startCmd.Flags().StringVar(&startAppToken, "app-token", "", "Slack app-level token")
	startCmd.Flags().StringVar(&startScoringChannel, "scoring-channel", "", "Channel ID where scoreboards are posted")
	startCmd.Flags().StringVar(&startChatChannel, "chat-channel", "", "Channel ID for feedback and the kill list")
	startCmd.Flags().StringVar(&startNatsURL, "nats-url", "", "NATS server URL for verdict events")
	startCmd.Flags().IntVar(&startHealthPort, "health-port", 0, "Health check HTTP port")
	startCmd.Flags().BoolVar(&startDebug, "debug", false, "Enable Slack client debug output")
}

func runStart(cmd *cobra.Command, args []string) error {
	botCfg := slackbot.BotConfig{
		BotToken:       firstNonEmpty(startBotToken, config.GetString(config.KeySlackBotToken)),
		AppToken:       firstNonEmpty(startAppToken, config.GetString(config.KeySlackAppToken)),
		ScoringChannel: firstNonEmpty(startScoringChannel, config.GetString(config.KeyScoringChannel)),
		ChatChannel:    firstNonEmpty(startChatChannel, config.GetString(config.KeyChatChannel)),
		Debug:          startDebug || config.GetBool(config.KeySlackDebug),
	}
	natsURL := firstNonEmpty(startNatsURL, config.GetString(config.KeyNATSURL))
	healthPort := startHealthPort
	if healthPort == 0 {
		healthPort = config.GetInt(config.KeyHealthPort)
	}

	ctx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	bot, err := slackbot.NewBot(botCfg, logger)
	if err != nil {
		return fmt.Errorf("create Slack bot: %w", err)
	}

	rost, err := loadRoster()
	if err != nil {
		return err
	}

	if err := telemetry.Init(ctx, telemetry.Settings{
		Enabled:         config.GetBool(config.KeyOTelEnabled),
		Stdout:          config.GetBool(config.KeyOTelStdout),
		Endpoint:        config.GetString(config.KeyOTelEndpoint),
		MetricsEndpoint: config.GetString(config.KeyOTelMetricsEndpoint),
		MetricInterval:  config.GetDuration(config.KeyOTelMetricInterval),
		SampleRatio:     config.GetFloat64(config.KeyOTelSampleRatio),
		ServiceName:     "giveandtake",
		Version:         Version,
		ScoringChannel:  botCfg.ScoringChannel,
		ChatChannel:     botCfg.ChatChannel,
		RosterSize:      len(rost.Items()),
	}); err != nil {
		return err
	}
	defer telemetry.Shutdown(context.Background())

	opts := []referee.Option{
		referee.WithLogger(logger),
		referee.WithSink(telemetry.OutcomeSink()),
	}
	var publisher *eventbus.Publisher
	if natsURL != "" {
		publisher = eventbus.NewPublisher(natsURL, config.GetString(config.KeyNATSSubjectPrefix), logger)
		opts = append(opts, referee.WithSink(publisher))
	}

	ref := referee.New(
		telemetry.WrapPlatform(bot.Platform()),
		rost,
		newResolver(),
		referee.Config{
			ChatChannel:   botCfg.ChatChannel,
			ScanDepth:     config.GetInt(config.KeyScanDepth),
			CommandPrefix: config.GetString(config.KeyCommandPrefix),
		},
		opts...,
	)
	bot.SetHandler(ref)

	g, ctx := errgroup.WithContext(ctx)

	health := slackbot.NewHealthServer(bot, healthPort, logger)
	g.Go(func() error { return health.Start(ctx) })

	if path := config.GetString(config.KeyRosterFile); path != "" && config.GetBool(config.KeyRosterWatch) {
		g.Go(func() error { return rost.Watch(ctx, path, logger) })
	}

	if publisher != nil {
		g.Go(func() error { return publisher.Run(ctx) })
	}

	g.Go(func() error { return bot.Run(ctx) })

	logger.Info("giveandtake: starting",
		zap.String("scoring_channel", botCfg.ScoringChannel),
		zap.String("chat_channel", botCfg.ChatChannel),
		zap.Int("items", len(rost.Items())),
		zap.Bool("nats", publisher != nil),
		zap.String("config_file", config.ConfigFileUsed()),
	)

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}
