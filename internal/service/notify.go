package service

import (
	"context"
	"time"

	"golang-quant/pkg/logger"
	"golang-quant/pkg/telegram"
)

const notifyTimeout = 10 * time.Second

// notify sends message without letting a slow chat hold up the caller.
func notify(log *logger.Logger, notifier telegram.Notifier, message *telegram.MessageBuilder) {
	if notifier == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), notifyTimeout)
	defer cancel()
	if err := notifier.Notify(ctx, message.String()); err != nil {
		log.Warn("Failed to send run notification", logger.ErrorField(err))
	}
}
