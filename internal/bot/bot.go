package bot

import (
	"context"
	"fmt"

	"github.com/mymmrac/telego"
	th "github.com/mymmrac/telego/telegohandler"

	"tg-broadcast/internal/config"
	"tg-broadcast/internal/logger"
	"tg-broadcast/internal/models"
)

var allowedUpdates = []string{"message", "edited_message", "callback_query"}

// BotService represents the Telegram bot service
type BotService struct {
	Bot     *telego.Bot
	Handler *th.BotHandler
	// Server is nil when updates arrive by long polling
	Server *WebhookServer
}

// Start runs the update handler until the update source is closed
func (b *BotService) Start() error {
	return b.Handler.Start()
}

// Stop stops the bot handler and the webhook server, if any
func (b *BotService) Stop(ctx context.Context) {
	if err := b.Handler.StopWithContext(ctx); err != nil {
		logger.Warningf("Bot handler did not stop cleanly: %v", err)
	}
	if b.Server != nil {
		if err := b.Server.Shutdown(ctx); err != nil {
			logger.Warningf("Webhook server shutdown: %v", err)
		}
	}
}

// Initialize creates the bot and its update source. ctx bounds the lifetime
// of the update stream.
func Initialize(ctx context.Context, cfg *config.Config, status StatusFunc) (*BotService, error) {
	if cfg.Bot.Token == "" {
		return nil, fmt.Errorf("bot token is required")
	}

	bot, err := telego.NewBot(cfg.Bot.Token, telego.WithLogger(telegoLogger{}))
	if err != nil {
		return nil, fmt.Errorf("failed to initialize bot: %w", err)
	}

	botUser, err := bot.GetMe(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get bot info: %w", err)
	}
	logger.Infof("Authorized on account %s, replying in %s", botUser.Username, models.GetLanguageName(cfg.Bot.Language))

	setLocalizedCommands(ctx, bot)

	err = bot.DeleteWebhook(ctx, &telego.DeleteWebhookParams{})
	if err != nil {
		return nil, fmt.Errorf("failed to delete existing webhook: %w", err)
	}

	if cfg.Bot.Webhook.Endpoint == "" {
		logger.Infof("No webhook endpoint configured, using long polling")
		updates, err := bot.UpdatesViaLongPolling(ctx, &telego.GetUpdatesParams{
			Timeout:        30,
			AllowedUpdates: allowedUpdates,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to start long polling: %w", err)
		}
		bh, err := th.NewBotHandler(bot, updates)
		if err != nil {
			return nil, fmt.Errorf("failed to create bot handler: %w", err)
		}
		return &BotService{Bot: bot, Handler: bh}, nil
	}

	bh, server, err := SetupWebhook(ctx, bot, cfg.Bot.Webhook, secretTokenFor(cfg.Bot.Token), status)
	if err != nil {
		return nil, fmt.Errorf("failed to setup webhook: %w", err)
	}

	return &BotService{
		Bot:     bot,
		Handler: bh,
		Server:  server,
	}, nil
}

// setLocalizedCommands sets bot commands in different languages
func setLocalizedCommands(ctx context.Context, bot *telego.Bot) {
	commandKeys := []struct {
		Command string
		DescKey string
	}{
		{Command: "start", DescKey: "cmd_desc_start"},
		{Command: "queue", DescKey: "cmd_desc_queue"},
		{Command: "cancel", DescKey: "cmd_desc_cancel"},
		{Command: "del", DescKey: "cmd_desc_del"},
		{Command: "logs", DescKey: "cmd_desc_logs"},
	}

	commandsFor := func(lang string) []telego.BotCommand {
		var commands []telego.BotCommand
		for _, cmd := range commandKeys {
			commands = append(commands, telego.BotCommand{
				Command:     cmd.Command,
				Description: models.GetTranslation(lang, cmd.DescKey),
			})
		}
		return commands
	}

	for _, lang := range []string{models.LangEnglish, models.LangRussian} {
		err := bot.SetMyCommands(ctx, &telego.SetMyCommandsParams{
			Commands:     commandsFor(lang),
			LanguageCode: lang,
		})
		if err != nil {
			logger.Warningf("Failed to set bot commands for %s: %v", lang, err)
		}
	}

	// Default commands (without language code)
	err := bot.SetMyCommands(ctx, &telego.SetMyCommandsParams{
		Commands: commandsFor(models.LangEnglish),
	})
	if err != nil {
		logger.Warningf("Failed to set default bot commands: %v", err)
	}
}

// telegoLogger routes telego's own logging into the process logger
type telegoLogger struct{}

func (telegoLogger) Debugf(format string, args ...any) {
	logger.Debugf("telego: "+format, args...)
}

func (telegoLogger) Errorf(format string, args ...any) {
	logger.Errorf("telego: "+format, args...)
}
