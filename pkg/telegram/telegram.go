package telegram

import (
	"context"
	"fmt"
	"golang-quant/config"
	"golang-quant/pkg/logger"
	"strconv"
	"time"

	"golang.org/x/time/rate"
	"gopkg.in/telebot.v3"
)

// Notifier delivers run summaries and alerts to operators.
type Notifier interface {
	Notify(ctx context.Context, message string) error
	Alert(message string)
}

type telegramNotifier struct {
	log     *logger.Logger
	bot     *telebot.Bot
	chat    *telebot.Chat
	limiter *rate.Limiter
	timeout time.Duration
}

type nopNotifier struct{}

func (nopNotifier) Notify(context.Context, string) error { return nil }
func (nopNotifier) Alert(string)                         {}

// NewNotifier returns a Telegram backed notifier, or a no-op one when no bot
// token is configured.
func NewNotifier(cfg config.TelegramConfig, log *logger.Logger) (Notifier, error) {
	if cfg.BotToken == "" || cfg.ChatID == "" {
		return nopNotifier{}, nil
	}

	chatID, err := strconv.ParseInt(cfg.ChatID, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid telegram chat id %q: %w", cfg.ChatID, err)
	}

	bot, err := telebot.NewBot(telebot.Settings{
		Token:   cfg.BotToken,
		Offline: true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create telegram bot: %w", err)
	}

	perSecond := cfg.MaxMessagePerSecond
	if perSecond <= 0 {
		perSecond = 1
	}

	return &telegramNotifier{
		log:     log,
		bot:     bot,
		chat:    &telebot.Chat{ID: chatID},
		limiter: rate.NewLimiter(rate.Limit(perSecond), perSecond),
		timeout: cfg.TimeoutDuration,
	}, nil
}

func (t *telegramNotifier) Notify(ctx context.Context, message string) error {
	if err := t.limiter.Wait(ctx); err != nil {
		return err
	}
	_, err := t.bot.Send(t.chat, message)
	return err
}

// Alert sends asynchronously so logging never blocks on the network.
func (t *telegramNotifier) Alert(message string) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), t.timeout)
		defer cancel()
		if err := t.Notify(ctx, message); err != nil {
			t.log.Warn("Failed to send telegram alert", logger.ErrorField(err))
		}
	}()
}
