package cmd

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/kayz/sqlpal/internal/bridge"
	"github.com/kayz/sqlpal/internal/logger"
	"github.com/kayz/sqlpal/internal/platforms/dingtalk"
	"github.com/kayz/sqlpal/internal/platforms/discord"
	"github.com/kayz/sqlpal/internal/platforms/feishu"
	"github.com/kayz/sqlpal/internal/platforms/slack"
	"github.com/kayz/sqlpal/internal/platforms/telegram"
	"github.com/kayz/sqlpal/internal/schedule"
)

var (
	slackBotToken   string
	slackAppToken   string
	telegramToken   string
	discordToken    string
	feishuAppID     string
	feishuAppSecret string
	dingtalkID      string
	dingtalkSecret  string
)

var bridgeCmd = &cobra.Command{
	Use:   "bridge",
	Short: "Bridge chat platforms to the SQL assistant",
	Long: `Receive questions from chat platforms and answer them with the
SQL pipeline. Platforms are enabled by providing their credentials.

Supported platforms:
  - Slack: SLACK_BOT_TOKEN + SLACK_APP_TOKEN
  - Telegram: TELEGRAM_BOT_TOKEN
  - Discord: DISCORD_BOT_TOKEN
  - Feishu: FEISHU_APP_ID + FEISHU_APP_SECRET
  - DingTalk: DINGTALK_CLIENT_ID + DINGTALK_CLIENT_SECRET

Standing questions from the scheduler are delivered to their configured
platform channel.`,
	Run: runBridge,
}

func init() {
	rootCmd.AddCommand(bridgeCmd)

	bridgeCmd.Flags().StringVar(&slackBotToken, "slack-bot-token", "", "Slack Bot Token (or SLACK_BOT_TOKEN env)")
	bridgeCmd.Flags().StringVar(&slackAppToken, "slack-app-token", "", "Slack App Token (or SLACK_APP_TOKEN env)")
	bridgeCmd.Flags().StringVar(&telegramToken, "telegram-token", "", "Telegram Bot Token (or TELEGRAM_BOT_TOKEN env)")
	bridgeCmd.Flags().StringVar(&discordToken, "discord-token", "", "Discord Bot Token (or DISCORD_BOT_TOKEN env)")
	bridgeCmd.Flags().StringVar(&feishuAppID, "feishu-app-id", "", "Feishu App ID (or FEISHU_APP_ID env)")
	bridgeCmd.Flags().StringVar(&feishuAppSecret, "feishu-app-secret", "", "Feishu App Secret (or FEISHU_APP_SECRET env)")
	bridgeCmd.Flags().StringVar(&dingtalkID, "dingtalk-client-id", "", "DingTalk AppKey (or DINGTALK_CLIENT_ID env)")
	bridgeCmd.Flags().StringVar(&dingtalkSecret, "dingtalk-client-secret", "", "DingTalk AppSecret (or DINGTALK_CLIENT_SECRET env)")
}

// resolve picks the first non-empty of flag, environment variable, config.
func resolve(flagValue, envName, cfgValue string) string {
	if flagValue != "" {
		return flagValue
	}
	if v := os.Getenv(envName); v != "" {
		return v
	}
	return cfgValue
}

func runBridge(cmd *cobra.Command, args []string) {
	cfg := loadConfig()
	p := cfg.Platforms

	slackBotToken = resolve(slackBotToken, "SLACK_BOT_TOKEN", p.Slack.BotToken)
	slackAppToken = resolve(slackAppToken, "SLACK_APP_TOKEN", p.Slack.AppToken)
	telegramToken = resolve(telegramToken, "TELEGRAM_BOT_TOKEN", p.Telegram.Token)
	discordToken = resolve(discordToken, "DISCORD_BOT_TOKEN", p.Discord.Token)
	feishuAppID = resolve(feishuAppID, "FEISHU_APP_ID", p.Feishu.AppID)
	feishuAppSecret = resolve(feishuAppSecret, "FEISHU_APP_SECRET", p.Feishu.AppSecret)
	dingtalkID = resolve(dingtalkID, "DINGTALK_CLIENT_ID", p.DingTalk.ClientID)
	dingtalkSecret = resolve(dingtalkSecret, "DINGTALK_CLIENT_SECRET", p.DingTalk.ClientSecret)

	pipe := newPipeline(cfg)
	store := openHistory(cfg)
	if store != nil {
		defer store.Close()
	}

	answerer := bridge.NewAnswerer(pipe, bridgeOpener(mcpConfig(cfg)), store)
	r := bridge.New(answerer.HandleMessage)

	registered := 0
	if slackBotToken != "" && slackAppToken != "" {
		platform, err := slack.New(slack.Config{BotToken: slackBotToken, AppToken: slackAppToken})
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error creating Slack platform: %v\n", err)
			os.Exit(1)
		}
		r.Register(platform)
		registered++
	} else {
		log.Println("Slack tokens not provided, skipping Slack integration")
	}

	if telegramToken != "" {
		platform, err := telegram.New(telegram.Config{Token: telegramToken})
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error creating Telegram platform: %v\n", err)
			os.Exit(1)
		}
		r.Register(platform)
		registered++
	} else {
		log.Println("Telegram token not provided, skipping Telegram integration")
	}

	if discordToken != "" {
		platform, err := discord.New(discord.Config{Token: discordToken})
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error creating Discord platform: %v\n", err)
			os.Exit(1)
		}
		r.Register(platform)
		registered++
	} else {
		log.Println("Discord token not provided, skipping Discord integration")
	}

	if feishuAppID != "" && feishuAppSecret != "" {
		platform, err := feishu.New(feishu.Config{AppID: feishuAppID, AppSecret: feishuAppSecret})
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error creating Feishu platform: %v\n", err)
			os.Exit(1)
		}
		r.Register(platform)
		registered++
	} else {
		log.Println("Feishu tokens not provided, skipping Feishu integration")
	}

	if dingtalkID != "" && dingtalkSecret != "" {
		platform, err := dingtalk.New(dingtalk.Config{ClientID: dingtalkID, ClientSecret: dingtalkSecret})
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error creating DingTalk platform: %v\n", err)
			os.Exit(1)
		}
		r.Register(platform)
		registered++
	} else {
		log.Println("DingTalk credentials not provided, skipping DingTalk integration")
	}

	if registered == 0 {
		fmt.Fprintln(os.Stderr, "Error: no platform credentials provided")
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := r.Start(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error starting bridge: %v\n", err)
		os.Exit(1)
	}

	// Standing questions deliver to their configured platform channel.
	var scheduler *schedule.Scheduler
	schedStore, err := schedule.NewStore(cfg.Schedule.Path)
	if err != nil {
		logger.Warn("scheduler disabled: %v", err)
	} else {
		scheduler = schedule.NewScheduler(schedStore, answerer, r)
		if err := scheduler.Start(); err != nil {
			logger.Warn("scheduler failed to start: %v", err)
			scheduler = nil
		}
	}

	log.Printf("Bridge started with %d platform(s). Press Ctrl+C to stop.", registered)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	log.Println("Shutting down...")
	if scheduler != nil {
		_ = scheduler.Stop()
	}
	r.Stop()
}
